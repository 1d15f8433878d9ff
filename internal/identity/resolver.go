// Package identity resolves face embeddings to stable persons.
package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kozaktomas/photo-gallery/internal/config"
	"github.com/kozaktomas/photo-gallery/internal/database"
	"github.com/kozaktomas/photo-gallery/internal/facematch"
	"github.com/kozaktomas/photo-gallery/internal/metrics"
	"go.uber.org/zap"
)

var (
	ErrEmptyEmbedding    = errors.New("empty embedding")
	ErrPersonNotFound    = errors.New("person not found")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Resolver finds or creates persons for face embeddings and maintains their running averages.
type Resolver struct {
	persons database.PersonWriter
	index   *database.PersonIndex // optional, nil disables similar-people suggestions
	cfg     config.IdentityConfig
	log     *zap.Logger

	// createMu covers the scan-then-create sequence so concurrent unseen faces
	// of the same person resolve to one new row.
	createMu sync.Mutex

	locksMu sync.Mutex
	locks   map[int64]*sync.Mutex
}

// NewResolver creates a resolver over the person repository. index may be nil.
func NewResolver(persons database.PersonWriter, index *database.PersonIndex, cfg config.IdentityConfig, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{
		persons: persons,
		index:   index,
		cfg:     cfg,
		log:     log,
		locks:   make(map[int64]*sync.Mutex),
	}
}

// lockPerson serializes updates of a single person within this process.
func (r *Resolver) lockPerson(id int64) func() {
	r.locksMu.Lock()
	mu, ok := r.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		r.locks[id] = mu
	}
	r.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// ResolveOrCreate returns the most similar person at or above minConfidence, or creates
// a new person seeded with embedding. created reports which case happened.
func (r *Resolver) ResolveOrCreate(ctx context.Context, embedding []float32, minConfidence float64) (*database.Person, bool, error) {
	if len(embedding) == 0 {
		return nil, false, ErrEmptyEmbedding
	}

	r.createMu.Lock()
	defer r.createMu.Unlock()

	persons, err := r.persons.ListPersons(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("list persons: %w", err)
	}

	var best *database.Person
	bestSim := 0.0
	for i := range persons {
		p := &persons[i]
		if !facematch.SameDimension(p.Embedding, embedding) {
			if len(p.Embedding) > 0 {
				r.log.Debug("skipping person with different embedding dimension",
					zap.Int64("person_id", p.ID),
					zap.Int("dim", len(p.Embedding)),
					zap.Int("want", len(embedding)))
			}
			continue
		}
		sim := facematch.CosineSimilarity(p.Embedding, embedding)
		// strict comparison keeps the earliest person on exact ties
		if best == nil || sim > bestSim {
			best, bestSim = p, sim
		}
	}

	if best != nil && bestSim >= minConfidence {
		metrics.IdentityResolutionsTotal.WithLabelValues("matched").Inc()
		r.log.Debug("face matched person",
			zap.Int64("person_id", best.ID),
			zap.Float64("similarity", bestSim))
		return best, false, nil
	}

	p := &database.Person{
		Embedding: facematch.RunningAverage(nil, embedding),
		FaceCount: 1,
	}
	if err := r.persons.CreatePerson(ctx, p); err != nil {
		return nil, false, fmt.Errorf("create person: %w", err)
	}
	metrics.IdentityResolutionsTotal.WithLabelValues("created").Inc()
	r.log.Info("created person", zap.Int64("person_id", p.ID), zap.String("name", p.Name))
	r.indexPerson(p.ID, p.Embedding)
	return p, true, nil
}

// AttachFace folds embedding into the person's running average.
// The write is conditional on the version read and retried on conflict.
func (r *Resolver) AttachFace(ctx context.Context, personID int64, embedding []float32) error {
	if len(embedding) == 0 {
		return ErrEmptyEmbedding
	}

	unlock := r.lockPerson(personID)
	defer unlock()

	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		p, err := r.persons.GetPerson(ctx, personID)
		if err != nil {
			return fmt.Errorf("get person %d: %w", personID, err)
		}
		if p == nil {
			return fmt.Errorf("person %d: %w", personID, ErrPersonNotFound)
		}
		if len(p.Embedding) > 0 && !facematch.SameDimension(p.Embedding, embedding) {
			return fmt.Errorf("person %d has dim %d, face has %d: %w",
				personID, len(p.Embedding), len(embedding), ErrDimensionMismatch)
		}

		avg := facematch.RunningAverage(p.Embedding, embedding)
		err = r.persons.UpdatePersonEmbedding(ctx, personID, avg, p.FaceCount+1, p.Version)
		switch {
		case errors.Is(err, database.ErrVersionConflict):
			metrics.VersionConflictsTotal.Inc()
			r.log.Debug("person version conflict, retrying",
				zap.Int64("person_id", personID),
				zap.Int("attempt", attempt+1))
			continue
		case errors.Is(err, database.ErrNotFound):
			return fmt.Errorf("person %d: %w", personID, ErrPersonNotFound)
		case err != nil:
			return fmt.Errorf("update person %d: %w", personID, err)
		}

		r.indexPerson(personID, avg)
		return nil
	}

	return fmt.Errorf("update person %d after %d retries: %w", personID, r.cfg.MaxRetries, database.ErrVersionConflict)
}

// Assign resolves embedding to a person using the configured minimum confidence and,
// when an existing person matched, folds the embedding into its average.
func (r *Resolver) Assign(ctx context.Context, embedding []float32) (int64, error) {
	p, created, err := r.ResolveOrCreate(ctx, embedding, r.cfg.MinConfidence)
	if err != nil {
		return 0, err
	}
	if !created {
		if err := r.AttachFace(ctx, p.ID, embedding); err != nil {
			return 0, err
		}
	}
	return p.ID, nil
}

// Rename changes a person's display name.
func (r *Resolver) Rename(ctx context.Context, personID int64, name string) error {
	if err := r.persons.RenamePerson(ctx, personID, name); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("person %d: %w", personID, ErrPersonNotFound)
		}
		return fmt.Errorf("rename person %d: %w", personID, err)
	}
	return nil
}

func (r *Resolver) indexPerson(id int64, embedding []float32) {
	if r.index == nil {
		return
	}
	r.index.Upsert(id, embedding)
}
