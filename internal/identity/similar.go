package identity

import (
	"context"
	"fmt"

	"github.com/kozaktomas/photo-gallery/internal/database"
	"go.uber.org/zap"
)

// SimilarPerson is a merge suggestion.
type SimilarPerson struct {
	Person     database.Person
	Similarity float64
}

// RebuildIndex loads every person embedding into the HNSW index.
func (r *Resolver) RebuildIndex(ctx context.Context) error {
	if r.index == nil {
		return nil
	}
	persons, err := r.persons.ListPersons(ctx)
	if err != nil {
		return fmt.Errorf("list persons: %w", err)
	}
	r.index.Build(persons)
	r.log.Info("person index built", zap.Int("persons", r.index.Len()))
	return nil
}

// LoadIndex restores the HNSW index from path when its metadata still matches the
// repository, and rebuilds it otherwise.
func (r *Resolver) LoadIndex(ctx context.Context, path string) error {
	if r.index == nil {
		return nil
	}
	if path == "" {
		return r.RebuildIndex(ctx)
	}

	count, err := r.persons.CountPersons(ctx)
	if err != nil {
		return fmt.Errorf("count persons: %w", err)
	}

	meta, err := database.LoadPersonIndexMetadata(path)
	switch {
	case err != nil:
		r.log.Debug("no cached person index", zap.String("path", path), zap.Error(err))
	case meta.PersonCount != count:
		r.log.Info("person index is stale, rebuilding",
			zap.Int("cached", meta.PersonCount),
			zap.Int("persons", count))
	default:
		if err := r.index.Load(path); err != nil {
			r.log.Warn("failed to load person index, rebuilding", zap.Error(err))
			break
		}
		r.log.Info("person index loaded from disk", zap.String("path", path), zap.Int("persons", meta.PersonCount))
		return nil
	}

	return r.RebuildIndex(ctx)
}

// SaveIndex persists the HNSW index to path.
func (r *Resolver) SaveIndex(path string) error {
	if r.index == nil || path == "" {
		return nil
	}
	if err := r.index.Save(path); err != nil {
		return fmt.Errorf("save person index: %w", err)
	}
	return nil
}

// SimilarPeople returns up to k persons whose averages are closest to the given person.
// The suggestions come from an approximate index and are never used for assignment.
func (r *Resolver) SimilarPeople(ctx context.Context, personID int64, k int) ([]SimilarPerson, error) {
	p, err := r.persons.GetPerson(ctx, personID)
	if err != nil {
		return nil, fmt.Errorf("get person %d: %w", personID, err)
	}
	if p == nil {
		return nil, fmt.Errorf("person %d: %w", personID, ErrPersonNotFound)
	}
	if r.index == nil || len(p.Embedding) == 0 || k <= 0 {
		return nil, nil
	}

	// one extra slot for the person itself
	neighbors := r.index.Search(p.Embedding, k+1)
	out := make([]SimilarPerson, 0, k)
	for _, n := range neighbors {
		if n.PersonID == personID {
			continue
		}
		other, err := r.persons.GetPerson(ctx, n.PersonID)
		if err != nil {
			return nil, fmt.Errorf("get person %d: %w", n.PersonID, err)
		}
		if other == nil {
			continue
		}
		out = append(out, SimilarPerson{Person: *other, Similarity: n.Similarity})
		if len(out) == k {
			break
		}
	}
	return out, nil
}
