// Package web serves the gallery HTTP API.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/photo-gallery/internal/config"
	"github.com/kozaktomas/photo-gallery/internal/database"
	"github.com/kozaktomas/photo-gallery/internal/describe"
	"github.com/kozaktomas/photo-gallery/internal/identity"
	"github.com/kozaktomas/photo-gallery/internal/metrics"
	"github.com/kozaktomas/photo-gallery/internal/search"
	"github.com/kozaktomas/photo-gallery/internal/web/handlers"
	"github.com/kozaktomas/photo-gallery/internal/web/middleware"
	"go.uber.org/zap"
)

// Services are the components the API exposes.
type Services struct {
	Store     database.Store
	Search    *search.Engine
	Resolver  *identity.Resolver
	Describer *describe.Describer
	Indexer   handlers.DirectoryIndexer
}

// Server represents the web server
type Server struct {
	config     *config.Config
	services   Services
	router     *chi.Mux
	httpServer *http.Server
	jobManager *handlers.JobManager
	log        *zap.Logger
}

// NewServer creates a new web server
func NewServer(cfg *config.Config, services Services, log *zap.Logger) *Server {
	r := chi.NewRouter()

	s := &Server{
		config:     cfg,
		services:   services,
		router:     r,
		jobManager: handlers.NewJobManager(),
		log:        log,
	}

	metrics.RegisterGalleryMetrics()

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger(log))
	r.Use(chiMiddleware.Recoverer)
	r.Use(metrics.Middleware())
	r.Use(chiMiddleware.Timeout(5 * time.Minute))
	r.Use(middleware.CORS(cfg.Web.AllowedOrigins))

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // Long timeout for SSE
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info("starting web server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown cancels running scan jobs and gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down web server")

	for _, job := range s.jobManager.ListJobs() {
		job.Cancel()
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	if err := s.jobManager.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for scan jobs: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}
