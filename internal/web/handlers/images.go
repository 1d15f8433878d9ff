package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/kozaktomas/photo-gallery/internal/ai"
	"github.com/kozaktomas/photo-gallery/internal/database"
	"github.com/kozaktomas/photo-gallery/internal/describe"
	"github.com/kozaktomas/photo-gallery/internal/geometry"
	"github.com/kozaktomas/photo-gallery/internal/logger"
	"go.uber.org/zap"
)

// ImagesHandler serves image details and the image chat.
type ImagesHandler struct {
	images    database.ImageReader
	describer *describe.Describer
}

// NewImagesHandler creates a new images handler.
func NewImagesHandler(images database.ImageReader, describer *describe.Describer) *ImagesHandler {
	return &ImagesHandler{images: images, describer: describer}
}

// ImageResponse represents an image in API responses.
type ImageResponse struct {
	ID          int64      `json:"id"`
	UID         string     `json:"uid"`
	Path        string     `json:"path"`
	FileName    string     `json:"file_name"`
	FileSize    int64      `json:"file_size"`
	Width       int        `json:"width"`
	Height      int        `json:"height"`
	TakenAt     *time.Time `json:"taken_at,omitempty"`
	Description string     `json:"description"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

func imageToResponse(img *database.Image) ImageResponse {
	return ImageResponse{
		ID:          img.ID,
		UID:         img.UID,
		Path:        img.Path,
		FileName:    img.FileName,
		FileSize:    img.FileSize,
		Width:       img.Width,
		Height:      img.Height,
		TakenAt:     img.TakenAt,
		Description: img.Description,
		ProcessedAt: img.ProcessedAt,
	}
}

// TagResponse is a detected object.
type TagResponse struct {
	Label        string        `json:"label"`
	Confidence   float64       `json:"confidence"`
	BBox         geometry.Rect `json:"bbox"`
	RelativeBBox geometry.Rect `json:"relative_bbox"` // 0-1 of the image size, for overlays
}

// FaceResponse is a detected face.
type FaceResponse struct {
	ID           int64         `json:"id"`
	FaceIndex    int           `json:"face_index"`
	Confidence   float64       `json:"confidence"`
	BBox         geometry.Rect `json:"bbox"`
	RelativeBBox geometry.Rect `json:"relative_bbox"`
	PersonID     *int64        `json:"person_id,omitempty"`
}

// ImageDetailResponse is an image with its annotations.
type ImageDetailResponse struct {
	ImageResponse
	Tags  []TagResponse  `json:"tags"`
	Faces []FaceResponse `json:"faces"`
}

// Get returns one image with its tags and faces.
func (h *ImagesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	img, err := h.images.GetImage(r.Context(), id)
	if err != nil {
		logger.FromContext(r.Context()).Error("failed to get image", zap.Int64("image_id", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to get image")
		return
	}
	if img == nil {
		respondError(w, http.StatusNotFound, "image not found")
		return
	}

	ann, err := h.images.GetAnnotations(r.Context(), id)
	if err != nil {
		logger.FromContext(r.Context()).Error("failed to get annotations", zap.Int64("image_id", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to get annotations")
		return
	}

	resp := ImageDetailResponse{
		ImageResponse: imageToResponse(img),
		Tags:          []TagResponse{},
		Faces:         []FaceResponse{},
	}
	if ann != nil {
		for _, t := range ann.Tags {
			resp.Tags = append(resp.Tags, TagResponse{
				Label:        t.Label,
				Confidence:   t.Confidence,
				BBox:         t.BBox,
				RelativeBBox: t.BBox.Relative(img.Width, img.Height),
			})
		}
		for _, f := range ann.Faces {
			resp.Faces = append(resp.Faces, FaceResponse{
				ID:           f.ID,
				FaceIndex:    f.FaceIndex,
				Confidence:   f.Confidence,
				BBox:         f.BBox,
				RelativeBBox: f.BBox.Relative(img.Width, img.Height),
				PersonID:     f.PersonID,
			})
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

// ChatMessage is one turn of an image conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest carries the conversation so far, oldest first.
type ChatRequest struct {
	Messages []ChatMessage `json:"messages"`
}

// Chat answers a question about an image using its detected objects and faces.
func (h *ImagesHandler) Chat(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if len(req.Messages) == 0 || req.Messages[len(req.Messages)-1].Role != string(ai.RoleUser) {
		respondError(w, http.StatusBadRequest, "last message must be from the user")
		return
	}

	ann, err := h.images.GetAnnotations(r.Context(), id)
	if err != nil {
		logger.FromContext(r.Context()).Error("failed to get annotations", zap.Int64("image_id", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to get annotations")
		return
	}
	if ann == nil {
		respondError(w, http.StatusNotFound, "image not found")
		return
	}

	conversation := make([]ai.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		conversation = append(conversation, ai.Message{Role: ai.Role(m.Role), Content: m.Content})
	}
	reply := h.describer.Chat(r.Context(), describe.ContextFromAnnotations(ann), conversation)
	respondJSON(w, http.StatusOK, map[string]string{"reply": reply})
}
