package database

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/kozaktomas/photo-gallery/internal/facematch"
)

var (
	// ErrVersionConflict is returned when a conditional person update lost a race.
	ErrVersionConflict = errors.New("person version conflict")
	// ErrNotFound is returned by writes targeting a missing row.
	ErrNotFound = errors.New("not found")
)

// PersonReader provides read-only access to persons
type PersonReader interface {
	// GetPerson retrieves a person by ID, returns nil if not found
	GetPerson(ctx context.Context, id int64) (*Person, error)
	// ListPersons returns all persons in creation order (ID ascending)
	ListPersons(ctx context.Context) ([]Person, error)
	// FindPersonsByName returns persons whose name contains term, ignoring case and diacritics
	FindPersonsByName(ctx context.Context, term string) ([]Person, error)
	// ImagesByPerson returns the sorted distinct image IDs with a face assigned to the person
	ImagesByPerson(ctx context.Context, personID int64) ([]int64, error)
	// CountPersons returns the number of persons
	CountPersons(ctx context.Context) (int, error)
}

// PersonWriter provides write access to persons
type PersonWriter interface {
	PersonReader

	// CreatePerson inserts a person and fills ID, Version and timestamps.
	// An empty name becomes "Person <id>".
	CreatePerson(ctx context.Context, p *Person) error

	// UpdatePersonEmbedding stores a new average and face count only if the stored
	// version still equals expectedVersion. Returns ErrVersionConflict otherwise.
	UpdatePersonEmbedding(ctx context.Context, id int64, embedding []float32, faceCount int, expectedVersion int64) error

	// RenamePerson changes the display name. Returns ErrNotFound for a missing person.
	RenamePerson(ctx context.Context, id int64, name string) error
}

// ImageReader provides read-only access to images and their annotations
type ImageReader interface {
	// GetImage retrieves an image by ID, returns nil if not found
	GetImage(ctx context.Context, id int64) (*Image, error)
	// GetImageByPath retrieves an image by its file path, returns nil if not found
	GetImageByPath(ctx context.Context, path string) (*Image, error)
	// ListImageIDs returns all image IDs in ascending order
	ListImageIDs(ctx context.Context) ([]int64, error)
	// CountImages returns the number of images
	CountImages(ctx context.Context) (int, error)
	// FindTagHits returns tags whose label contains term case-insensitively,
	// ordered by image ID then descending confidence
	FindTagHits(ctx context.Context, term string) ([]TagHit, error)
	// GetAnnotations returns the stored annotations for an image, nil if the image is unknown
	GetAnnotations(ctx context.Context, imageID int64) (*ImageAnnotations, error)
	// LabelCounts returns per-label image counts, most frequent first
	LabelCounts(ctx context.Context) ([]LabelCount, error)
}

// ImageWriter provides write access to images and annotations
type ImageWriter interface {
	ImageReader

	// SaveImage inserts or updates an image keyed by path. Fills ID and UID.
	SaveImage(ctx context.Context, img *Image) error

	// ReplaceAnnotations atomically swaps all tags and faces of an image, stores the
	// description and marks the image processed. Face IDs are filled on success.
	ReplaceAnnotations(ctx context.Context, ann *ImageAnnotations) error
}

// Store groups the repositories of one backend.
type Store interface {
	PersonWriter
	ImageWriter
	Close() error
}

// FilterPersonsByName keeps persons whose name contains term, ignoring case and diacritics.
// Backends share it so name lookups behave identically everywhere.
func FilterPersonsByName(persons []Person, term string) []Person {
	var out []Person
	for _, p := range persons {
		if facematch.NameContains(p.Name, term) {
			out = append(out, p)
		}
	}
	return out
}

// DefaultPersonName returns name, or "Person <id>" when name is blank.
func DefaultPersonName(name string, id int64) string {
	if strings.TrimSpace(name) == "" {
		return fmt.Sprintf("Person %d", id)
	}
	return name
}

// SortedUnique sorts ids ascending and removes duplicates in place.
func SortedUnique(ids []int64) []int64 {
	slices.Sort(ids)
	return slices.Compact(ids)
}
