package identity

import (
	"context"
	"fmt"
	"slices"

	"github.com/kozaktomas/photo-gallery/internal/database"
)

// ImageSets answers set queries over the person to image association.
type ImageSets struct {
	persons database.PersonReader
}

func NewImageSets(persons database.PersonReader) *ImageSets {
	return &ImageSets{persons: persons}
}

// ImagesContainingAll returns images that contain every listed person.
func (s *ImageSets) ImagesContainingAll(ctx context.Context, personIDs []int64) ([]int64, error) {
	if len(personIDs) == 0 {
		return nil, nil
	}
	var result []int64
	for i, id := range uniqueIDs(personIDs) {
		imgs, err := s.persons.ImagesByPerson(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("images of person %d: %w", id, err)
		}
		if i == 0 {
			result = database.SortedUnique(slices.Clone(imgs))
		} else {
			result = intersect(result, imgs)
		}
		if len(result) == 0 {
			return nil, nil
		}
	}
	return result, nil
}

// ImagesContainingAny returns images that contain at least one listed person.
func (s *ImageSets) ImagesContainingAny(ctx context.Context, personIDs []int64) ([]int64, error) {
	var result []int64
	for _, id := range uniqueIDs(personIDs) {
		imgs, err := s.persons.ImagesByPerson(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("images of person %d: %w", id, err)
		}
		result = append(result, imgs...)
	}
	if len(result) == 0 {
		return nil, nil
	}
	return database.SortedUnique(result), nil
}

// ImagesExcluding returns base minus every image containing one of the listed persons.
func (s *ImageSets) ImagesExcluding(ctx context.Context, base, personIDs []int64) ([]int64, error) {
	excluded, err := s.ImagesContainingAny(ctx, personIDs)
	if err != nil {
		return nil, err
	}
	out := make([]int64, 0, len(base))
	for _, id := range database.SortedUnique(slices.Clone(base)) {
		if _, found := slices.BinarySearch(excluded, id); !found {
			out = append(out, id)
		}
	}
	return out, nil
}

func uniqueIDs(ids []int64) []int64 {
	return database.SortedUnique(slices.Clone(ids))
}

// intersect keeps the elements of sorted a that also occur in b.
func intersect(a, b []int64) []int64 {
	set := make(map[int64]struct{}, len(b))
	for _, id := range b {
		set[id] = struct{}{}
	}
	out := a[:0]
	for _, id := range a {
		if _, ok := set[id]; ok {
			out = append(out, id)
		}
	}
	return out
}
