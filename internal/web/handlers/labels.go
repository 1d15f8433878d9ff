package handlers

import (
	"net/http"

	"github.com/kozaktomas/photo-gallery/internal/database"
	"github.com/kozaktomas/photo-gallery/internal/logger"
	"go.uber.org/zap"
)

// LabelsHandler handles label-related endpoints.
type LabelsHandler struct {
	images database.ImageReader
}

// NewLabelsHandler creates a new labels handler.
func NewLabelsHandler(images database.ImageReader) *LabelsHandler {
	return &LabelsHandler{images: images}
}

// LabelResponse represents a label in API responses.
type LabelResponse struct {
	Name       string `json:"name"`
	ImageCount int    `json:"image_count"`
}

// List returns all detected labels, most frequent first.
func (h *LabelsHandler) List(w http.ResponseWriter, r *http.Request) {
	counts, err := h.images.LabelCounts(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("failed to count labels", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list labels")
		return
	}

	resp := make([]LabelResponse, 0, len(counts))
	for _, c := range counts {
		resp = append(resp, LabelResponse{Name: c.Label, ImageCount: c.Count})
	}
	respondJSON(w, http.StatusOK, resp)
}
