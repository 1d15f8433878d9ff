package metrics

import "github.com/prometheus/client_golang/prometheus"

// Gallery Prometheus metrics.
var (
	ImagesProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gallery",
			Name:      "images_processed_total",
			Help:      "Total number of images run through the indexing pipeline",
		},
		[]string{"status"}, // "ok" / "skipped" / "error"
	)

	FacesDetectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gallery",
			Name:      "faces_detected_total",
			Help:      "Total number of faces kept after decoding",
		},
	)

	FaceEmbeddingFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gallery",
			Name:      "face_embedding_failures_total",
			Help:      "Faces left unassignable because embedding extraction failed",
		},
	)

	IdentityResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gallery",
			Name:      "identity_resolutions_total",
			Help:      "Face to person resolutions",
		},
		[]string{"result"}, // "matched" / "created"
	)

	VersionConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gallery",
			Name:      "person_version_conflicts_total",
			Help:      "Optimistic version conflicts retried while updating person embeddings",
		},
	)

	InferenceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gallery",
			Name:      "inference_duration_seconds",
			Help:      "Model inference request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"model"},
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gallery",
			Name:      "search_duration_seconds",
			Help:      "Search evaluation duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"mode"}, // "predicate" / "fallback"
	)

	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gallery",
			Name:      "llm_requests_total",
			Help:      "Total number of LLM completion requests",
		},
		[]string{"provider", "status"},
	)
)

var galleryMetricsRegistered bool

// RegisterGalleryMetrics registers gallery metrics. Must be called once from main.
func RegisterGalleryMetrics() {
	if galleryMetricsRegistered {
		return
	}
	prometheus.MustRegister(ImagesProcessedTotal)
	prometheus.MustRegister(FacesDetectedTotal)
	prometheus.MustRegister(FaceEmbeddingFailuresTotal)
	prometheus.MustRegister(IdentityResolutionsTotal)
	prometheus.MustRegister(VersionConflictsTotal)
	prometheus.MustRegister(InferenceDuration)
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(LLMRequestsTotal)
	galleryMetricsRegistered = true
}
