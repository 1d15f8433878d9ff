package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/photo-gallery/internal/web/handlers"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) setupRoutes() {
	store := s.services.Store

	searchHandler := handlers.NewSearchHandler(s.services.Search, store)
	peopleHandler := handlers.NewPeopleHandler(store, store, s.services.Resolver)
	imagesHandler := handlers.NewImagesHandler(store, s.services.Describer)
	labelsHandler := handlers.NewLabelsHandler(store)
	scanHandler := handlers.NewScanHandler(s.services.Indexer, s.jobManager, s.config.Scan, s.log)

	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handlers.HealthCheck)

		// Search
		r.Get("/search", searchHandler.Search)

		// People
		r.Get("/people", peopleHandler.List)
		r.Put("/people/{id}", peopleHandler.Rename)
		r.Get("/people/{id}/similar", peopleHandler.Similar)
		r.Get("/people/{id}/images", peopleHandler.Images)

		// Images
		r.Get("/images/{id}", imagesHandler.Get)
		r.Post("/images/{id}/chat", imagesHandler.Chat)

		// Labels
		r.Get("/labels", labelsHandler.List)

		// Scan (long-running operations)
		r.Post("/scan", scanHandler.Start)
		r.Get("/scan/{jobId}", scanHandler.Status)
		r.Get("/scan/{jobId}/events", scanHandler.Events)
		r.Delete("/scan/{jobId}", scanHandler.Cancel)
	})
}
