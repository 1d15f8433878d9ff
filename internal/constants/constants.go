// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Detection defaults
const (
	// DefaultObjectConfidence is the minimum class score for object detections
	DefaultObjectConfidence = 0.25

	// DefaultFaceConfidence is the minimum score for face detections
	DefaultFaceConfidence = 0.75

	// DefaultIoUThreshold is the overlap at which same-label boxes are suppressed
	DefaultIoUThreshold = 0.5

	// DefaultObjectInputSize is the square input resolution of the object detector (YOLOv8)
	DefaultObjectInputSize = 640

	// DefaultFaceInputSize is the square input resolution of the face detector (BlazeFace)
	DefaultFaceInputSize = 128

	// DefaultEmbedInputSize is the square face crop size expected by the embedder (ArcFace)
	DefaultEmbedInputSize = 112

	// DefaultMaxFacesPerImage caps the faces kept per image
	DefaultMaxFacesPerImage = 20
)

// Identity defaults
const (
	// DefaultMinFaceConfidence is the minimum cosine similarity to assign a face to a known person
	DefaultMinFaceConfidence = 0.6

	// DefaultMaxUpdateRetries bounds retries of a person average update after a version conflict
	DefaultMaxUpdateRetries = 5

	// DefaultSimilarPeopleLimit is the default number of similar people suggestions
	DefaultSimilarPeopleLimit = 5
)

// Description constants
const (
	// MaxDescriptionLength is the maximum length of an enhanced description
	MaxDescriptionLength = 500

	// DescriptionEllipsis is appended when a description is truncated
	DescriptionEllipsis = "..."
)

// Processing constants
const (
	// DefaultConcurrency is the default number of parallel indexing workers
	DefaultConcurrency = 4

	// EventChannelBuffer is the buffer size for job event channels
	EventChannelBuffer = 100

	// DefaultSearchLimit is the default maximum number of search results returned by the API
	DefaultSearchLimit = 200
)

// ImageExtensions are the file extensions picked up by directory scans, in scan order.
var ImageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp"}
