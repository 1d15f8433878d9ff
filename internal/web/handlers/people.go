package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/kozaktomas/photo-gallery/internal/constants"
	"github.com/kozaktomas/photo-gallery/internal/database"
	"github.com/kozaktomas/photo-gallery/internal/identity"
	"github.com/kozaktomas/photo-gallery/internal/logger"
	"go.uber.org/zap"
)

const maxSimilarPeople = 50

// PeopleHandler serves persons and their images.
type PeopleHandler struct {
	persons  database.PersonReader
	images   database.ImageReader
	resolver *identity.Resolver
}

// NewPeopleHandler creates a new people handler.
func NewPeopleHandler(persons database.PersonReader, images database.ImageReader, resolver *identity.Resolver) *PeopleHandler {
	return &PeopleHandler{persons: persons, images: images, resolver: resolver}
}

// PersonResponse represents a person in API responses.
type PersonResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	FaceCount int       `json:"face_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func personToResponse(p database.Person) PersonResponse {
	return PersonResponse{
		ID:        p.ID,
		Name:      p.Name,
		FaceCount: p.FaceCount,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// SimilarPersonResponse is a merge suggestion.
type SimilarPersonResponse struct {
	PersonResponse
	Similarity float64 `json:"similarity"`
}

// List returns all persons in creation order.
func (h *PeopleHandler) List(w http.ResponseWriter, r *http.Request) {
	persons, err := h.persons.ListPersons(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("failed to list persons", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list persons")
		return
	}

	resp := make([]PersonResponse, 0, len(persons))
	for _, p := range persons {
		resp = append(resp, personToResponse(p))
	}
	respondJSON(w, http.StatusOK, resp)
}

// RenameRequest represents a person rename request.
type RenameRequest struct {
	Name string `json:"name"`
}

// Rename changes a person's display name.
func (h *PeopleHandler) Rename(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req RenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	if err := h.resolver.Rename(r.Context(), id, name); err != nil {
		if errors.Is(err, identity.ErrPersonNotFound) {
			respondError(w, http.StatusNotFound, "person not found")
			return
		}
		logger.FromContext(r.Context()).Error("failed to rename person", zap.Int64("person_id", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to rename person")
		return
	}

	p, err := h.persons.GetPerson(r.Context(), id)
	if err != nil || p == nil {
		respondJSON(w, http.StatusOK, map[string]any{"id": id, "name": name})
		return
	}
	respondJSON(w, http.StatusOK, personToResponse(*p))
}

// Similar returns persons whose averages are closest to the given one.
func (h *PeopleHandler) Similar(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit := queryLimit(r, constants.DefaultSimilarPeopleLimit, maxSimilarPeople)

	similar, err := h.resolver.SimilarPeople(r.Context(), id, limit)
	if err != nil {
		if errors.Is(err, identity.ErrPersonNotFound) {
			respondError(w, http.StatusNotFound, "person not found")
			return
		}
		logger.FromContext(r.Context()).Error("failed to find similar persons", zap.Int64("person_id", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to find similar persons")
		return
	}

	resp := make([]SimilarPersonResponse, 0, len(similar))
	for _, s := range similar {
		resp = append(resp, SimilarPersonResponse{PersonResponse: personToResponse(s.Person), Similarity: s.Similarity})
	}
	respondJSON(w, http.StatusOK, resp)
}

// Images returns the images a person appears in.
func (h *PeopleHandler) Images(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.persons.GetPerson(r.Context(), id)
	if err != nil {
		logger.FromContext(r.Context()).Error("failed to get person", zap.Int64("person_id", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to get person")
		return
	}
	if p == nil {
		respondError(w, http.StatusNotFound, "person not found")
		return
	}

	ids, err := h.persons.ImagesByPerson(r.Context(), id)
	if err != nil {
		logger.FromContext(r.Context()).Error("failed to list person images", zap.Int64("person_id", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list person images")
		return
	}

	images, err := loadImages(r, h.images, ids)
	if err != nil {
		logger.FromContext(r.Context()).Error("failed to load images", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load images")
		return
	}
	respondJSON(w, http.StatusOK, images)
}

// loadImages fetches images by ID, skipping any that disappeared meanwhile.
func loadImages(r *http.Request, images database.ImageReader, ids []int64) ([]ImageResponse, error) {
	out := make([]ImageResponse, 0, len(ids))
	for _, id := range ids {
		img, err := images.GetImage(r.Context(), id)
		if err != nil {
			return nil, err
		}
		if img != nil {
			out = append(out, imageToResponse(img))
		}
	}
	return out, nil
}
