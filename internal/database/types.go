package database

import (
	"time"

	"github.com/kozaktomas/photo-gallery/internal/geometry"
)

// Person is a stable identity built from matched faces.
// Embedding holds the running average of every face attached to the person.
type Person struct {
	ID        int64
	Name      string
	Embedding []float32
	FaceCount int
	Version   int64 // incremented on every embedding update
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Image represents an indexed image file.
type Image struct {
	ID          int64
	UID         string
	Path        string
	FileName    string
	FileSize    int64
	Width       int
	Height      int
	TakenAt     *time.Time // EXIF DateTimeOriginal, nil when absent
	Description string
	ProcessedAt *time.Time // nil until the pipeline has annotated the image
	CreatedAt   time.Time
}

// Processed reports whether annotations have been stored for the image.
func (i *Image) Processed() bool {
	return i.ProcessedAt != nil
}

// Tag is a detected object on an image.
type Tag struct {
	ImageID    int64
	Label      string
	Confidence float64
	BBox       geometry.Rect
}

// Face is a detected face on an image. Embedding is nil when extraction failed,
// PersonID is nil when the face could not be assigned.
type Face struct {
	ID         int64
	ImageID    int64
	FaceIndex  int
	BBox       geometry.Rect
	Confidence float64
	Embedding  []float32
	PersonID   *int64
}

// ImageAnnotations is everything the pipeline produced for one image.
// Stored and replaced as a unit.
type ImageAnnotations struct {
	ImageID     int64
	Tags        []Tag
	Faces       []Face
	Description string
}

// TagHit is a tag matched by a label search.
type TagHit struct {
	ImageID    int64
	Label      string
	Confidence float64
}

// LabelCount is the number of distinct images carrying a label.
type LabelCount struct {
	Label string
	Count int
}
