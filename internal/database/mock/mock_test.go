package mock

import (
	"context"
	"errors"
	"testing"

	"github.com/kozaktomas/photo-gallery/internal/database"
	"github.com/kozaktomas/photo-gallery/internal/database/storetest"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) database.Store {
		return NewStore()
	})
}

func TestUpdateConflictsInjection(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	id := store.AddPerson(database.Person{Embedding: []float32{1, 0}, FaceCount: 1})

	store.UpdateConflicts = 1
	err := store.UpdatePersonEmbedding(ctx, id, []float32{0, 1}, 2, 1)
	if !errors.Is(err, database.ErrVersionConflict) {
		t.Fatalf("UpdatePersonEmbedding() error = %v, want ErrVersionConflict", err)
	}
	p, _ := store.GetPerson(ctx, id)
	if p.Version != 2 {
		t.Errorf("Version after injected conflict = %d, want 2", p.Version)
	}
	if err := store.UpdatePersonEmbedding(ctx, id, []float32{0, 1}, 2, p.Version); err != nil {
		t.Errorf("UpdatePersonEmbedding() with fresh version error = %v", err)
	}
	if store.UpdateCalls != 2 {
		t.Errorf("UpdateCalls = %d, want 2", store.UpdateCalls)
	}
}

func TestRegisteredAsMemory(t *testing.T) {
	found := false
	for _, name := range database.Backends() {
		if name == "memory" {
			found = true
		}
	}
	if !found {
		t.Errorf("Backends() = %v, want memory registered", database.Backends())
	}
}
