package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/kozaktomas/photo-gallery/internal/config"
	"github.com/kozaktomas/photo-gallery/internal/database"
	"github.com/kozaktomas/photo-gallery/internal/database/storetest"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	cfg := &config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "gallery.db")}
	store, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) database.Store {
		return openTemp(t)
	})
}

func TestEmbeddingEncoding(t *testing.T) {
	tests := []struct {
		name string
		in   []float32
	}{
		{"empty", nil},
		{"single", []float32{0.25}},
		{"mixed", []float32{-1.5, 0, 3.25, 1e-7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := encodeEmbedding(tt.in)
			if len(encoded) != len(tt.in)*4 {
				t.Fatalf("encodeEmbedding() length = %d, want %d", len(encoded), len(tt.in)*4)
			}
			got := decodeEmbedding(encoded)
			if len(got) != len(tt.in) {
				t.Fatalf("decodeEmbedding() length = %d, want %d", len(got), len(tt.in))
			}
			for i := range got {
				if got[i] != tt.in[i] {
					t.Errorf("value %d = %v, want %v", i, got[i], tt.in[i])
				}
			}
		})
	}
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	cfg := &config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "gallery.db")}

	store, err := Open(ctx, cfg)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	p := &database.Person{Name: "Ana", Embedding: []float32{1, 2, 3}}
	if err := store.CreatePerson(ctx, p); err != nil {
		t.Fatalf("CreatePerson() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := database.Open(ctx, cfg)
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	defer reopened.Close()

	got, err := reopened.GetPerson(ctx, p.ID)
	if err != nil || got == nil {
		t.Fatalf("GetPerson() = %v, %v", got, err)
	}
	if got.Name != "Ana" || len(got.Embedding) != 3 || got.Embedding[2] != 3 {
		t.Errorf("GetPerson() = %+v, want Ana with 3-dim embedding", got)
	}
}

func TestDataSourceName(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"", "gallery.db?_foreign_keys=on&_busy_timeout=5000"},
		{"/data/g.db", "/data/g.db?_foreign_keys=on&_busy_timeout=5000"},
		{"file:g.db?mode=memory", "file:g.db?mode=memory"},
	}
	for _, tt := range tests {
		if got := dataSourceName(tt.path); got != tt.want {
			t.Errorf("dataSourceName(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
