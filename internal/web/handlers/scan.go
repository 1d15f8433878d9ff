package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kozaktomas/photo-gallery/internal/config"
	"github.com/kozaktomas/photo-gallery/internal/gallery"
	"go.uber.org/zap"
)

// DirectoryIndexer indexes every image below a directory.
type DirectoryIndexer interface {
	IndexDirectory(ctx context.Context, root string, recursive, force bool, onProgress func(gallery.Progress)) (gallery.Summary, error)
}

// ScanHandler runs directory scans as background jobs.
type ScanHandler struct {
	indexer    DirectoryIndexer
	jobManager *JobManager
	cfg        config.ScanConfig
	log        *zap.Logger
}

// NewScanHandler creates a new scan handler.
func NewScanHandler(indexer DirectoryIndexer, jm *JobManager, cfg config.ScanConfig, log *zap.Logger) *ScanHandler {
	return &ScanHandler{indexer: indexer, jobManager: jm, cfg: cfg, log: log}
}

// ScanRequest represents a scan start request.
type ScanRequest struct {
	Path      string `json:"path"`
	Recursive *bool  `json:"recursive,omitempty"`
	Force     bool   `json:"force"`
}

// Start starts a new scan job.
func (h *ScanHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Path == "" {
		respondError(w, http.StatusBadRequest, "path is required")
		return
	}

	root := filepath.Clean(req.Path)
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}

	options := ScanJobOptions{Recursive: h.cfg.Recursive, Force: req.Force}
	if req.Recursive != nil {
		options.Recursive = *req.Recursive
	}

	ctx, cancel := context.WithCancel(context.Background())
	jobID := uuid.New().String()
	job := h.jobManager.CreateJob(jobID, root, options, cancel)

	h.jobManager.Go(func() { h.runScanJob(ctx, cancel, job) })

	respondJSON(w, http.StatusAccepted, map[string]string{
		"job_id": jobID,
		"path":   root,
		"status": string(JobStatusPending),
	})
}

// Status returns the status of a scan job.
func (h *ScanHandler) Status(w http.ResponseWriter, r *http.Request) {
	job := h.jobManager.GetJob(chi.URLParam(r, "jobId"))
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	respondJSON(w, http.StatusOK, job.Snapshot())
}

// Events streams job events via SSE.
func (h *ScanHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamSSEEvents(w, r,
		func(id string) SSEJob {
			job := h.jobManager.GetJob(id)
			if job == nil {
				return nil
			}
			return job
		},
		func(job SSEJob) any {
			return job.(*ScanJob).Snapshot()
		},
	)
}

// Cancel cancels a scan job.
func (h *ScanHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	job := h.jobManager.GetJob(chi.URLParam(r, "jobId"))
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"cancelled": job.Cancel()})
}

func (h *ScanHandler) runScanJob(ctx context.Context, cancel context.CancelFunc, job *ScanJob) {
	defer cancel()

	snap := job.Snapshot()
	job.setRunning()
	job.SendEvent(JobEvent{Type: "started", Data: snap.Path})
	h.log.Info("scan started", zap.String("job_id", snap.ID), zap.String("path", snap.Path))

	summary, err := h.indexer.IndexDirectory(ctx, snap.Path, snap.Options.Recursive, snap.Options.Force, func(p gallery.Progress) {
		job.setProgress(p)
		job.SendEvent(JobEvent{Type: "progress", Data: p})
	})

	switch job.finish(summary, err) {
	case JobStatusCompleted:
		h.log.Info("scan completed", zap.String("job_id", snap.ID),
			zap.Int("processed", summary.Processed), zap.Int("skipped", summary.Skipped), zap.Int("failed", summary.Failed))
		job.SendEvent(JobEvent{Type: "completed", Data: summary})
	case JobStatusFailed:
		h.log.Error("scan failed", zap.String("job_id", snap.ID), zap.Error(err))
		job.SendEvent(JobEvent{Type: "job_error", Message: err.Error()})
	case JobStatusCancelled:
		h.log.Info("scan cancelled", zap.String("job_id", snap.ID), zap.Int("done", summary.Processed+summary.Skipped+summary.Failed))
	}
}
