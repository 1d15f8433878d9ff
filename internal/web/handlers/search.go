package handlers

import (
	"net/http"
	"strings"

	"github.com/kozaktomas/photo-gallery/internal/constants"
	"github.com/kozaktomas/photo-gallery/internal/database"
	"github.com/kozaktomas/photo-gallery/internal/logger"
	"github.com/kozaktomas/photo-gallery/internal/search"
	"go.uber.org/zap"
)

const maxSearchLimit = 1000

// SearchHandler serves natural-language image search.
type SearchHandler struct {
	engine *search.Engine
	images database.ImageReader
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(engine *search.Engine, images database.ImageReader) *SearchHandler {
	return &SearchHandler{engine: engine, images: images}
}

// SearchResult is a matched image with its relevance.
type SearchResult struct {
	Image     ImageResponse `json:"image"`
	Relevance float64       `json:"relevance"`
}

// SearchResponse is the search endpoint payload.
type SearchResponse struct {
	Query   string         `json:"query"`
	Total   int            `json:"total"`
	Results []SearchResult `json:"results"`
}

// Search evaluates the "q" query parameter.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit := queryLimit(r, constants.DefaultSearchLimit, maxSearchLimit)

	results, err := h.engine.Search(r.Context(), q)
	if err != nil {
		logger.FromContext(r.Context()).Error("search failed", zap.String("query", sanitizeForLog(q)), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "search failed")
		return
	}

	resp := SearchResponse{Query: q, Total: len(results), Results: []SearchResult{}}
	for _, res := range results {
		if len(resp.Results) == limit {
			break
		}
		img, err := h.images.GetImage(r.Context(), res.ImageID)
		if err != nil {
			logger.FromContext(r.Context()).Error("failed to load image", zap.Int64("image_id", res.ImageID), zap.Error(err))
			respondError(w, http.StatusInternalServerError, "failed to load images")
			return
		}
		if img == nil {
			continue
		}
		resp.Results = append(resp.Results, SearchResult{Image: imageToResponse(img), Relevance: res.Relevance})
	}
	respondJSON(w, http.StatusOK, resp)
}
