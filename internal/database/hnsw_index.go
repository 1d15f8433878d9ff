package database

import (
	"bufio"
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/coder/hnsw"
	"github.com/kozaktomas/photo-gallery/internal/facematch"
)

// PersonIndexMetadata stores metadata for validating a cached person index.
type PersonIndexMetadata struct {
	PersonCount int       `json:"person_count"`
	MaxPersonID int64     `json:"max_person_id"`
	Dim         int       `json:"dim"`
	BuildTime   time.Time `json:"build_time"`
	Version     int       `json:"version"`
}

const personIndexMetadataVersion = 1

// Neighbor is an approximate nearest person.
type Neighbor struct {
	PersonID   int64
	Similarity float64
}

// PersonIndex wraps an HNSW graph over person embeddings for "similar people" suggestions.
// Averages move on every attached face, so updated persons mark the graph dirty and
// it is rebuilt lazily before the next search.
type PersonIndex struct {
	mu      sync.Mutex
	graph   *hnsw.Graph[int64]
	vectors map[int64][]float32
	dim     int
	dirty   bool
}

// NewPersonIndex creates a new empty person index.
func NewPersonIndex() *PersonIndex {
	return &PersonIndex{vectors: make(map[int64][]float32)}
}

func newPersonGraph() *hnsw.Graph[int64] {
	g := hnsw.NewGraph[int64]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.EfSearch = HNSWEfSearch
	g.Distance = hnsw.CosineDistance
	return g
}

// Build replaces the index content with the given persons.
// Persons without an embedding, or with a dimension different from the first one seen, are skipped.
func (h *PersonIndex) Build(persons []Person) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.vectors = make(map[int64][]float32, len(persons))
	h.dim = 0
	for i := range persons {
		h.put(persons[i].ID, persons[i].Embedding)
	}
	h.rebuild()
}

// Upsert adds or refreshes one person. Returns false when the embedding was skipped.
func (h *PersonIndex) Upsert(id int64, embedding []float32) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	_, existed := h.vectors[id]
	if !h.put(id, embedding) {
		return false
	}
	if existed || h.dirty || h.graph == nil {
		h.dirty = true
		return true
	}
	h.graph.Add(hnsw.MakeNode(id, h.vectors[id]))
	return true
}

func (h *PersonIndex) put(id int64, embedding []float32) bool {
	if len(embedding) == 0 {
		return false
	}
	if h.dim == 0 {
		h.dim = len(embedding)
	}
	if len(embedding) != h.dim {
		return false
	}
	h.vectors[id] = slices.Clone(embedding)
	return true
}

func (h *PersonIndex) rebuild() {
	h.dirty = false
	if len(h.vectors) == 0 {
		h.graph = nil
		return
	}

	ids := make([]int64, 0, len(h.vectors))
	for id := range h.vectors {
		ids = append(ids, id)
	}
	slices.Sort(ids) // deterministic insertion order

	g := newPersonGraph()
	for _, id := range ids {
		g.Add(hnsw.MakeNode(id, h.vectors[id]))
	}
	h.graph = g
}

// Search returns up to k persons closest to query, most similar first.
func (h *PersonIndex) Search(query []float32, k int) []Neighbor {
	h.mu.Lock()
	defer h.mu.Unlock()

	if k <= 0 || len(query) == 0 || len(query) != h.dim {
		return nil
	}
	if h.dirty {
		h.rebuild()
	}
	if h.graph == nil || h.graph.Len() == 0 {
		return nil
	}

	nodes := h.graph.Search(query, k)
	out := make([]Neighbor, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, Neighbor{
			PersonID:   n.Key,
			Similarity: facematch.CosineSimilarity(query, n.Value),
		})
	}
	slices.SortStableFunc(out, func(a, b Neighbor) int {
		switch {
		case a.Similarity > b.Similarity:
			return -1
		case a.Similarity < b.Similarity:
			return 1
		}
		return 0
	})
	return out
}

// Len returns the number of indexed persons.
func (h *PersonIndex) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.vectors)
}

// Metadata describes the current index content.
func (h *PersonIndex) Metadata() PersonIndexMetadata {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.metadata()
}

func (h *PersonIndex) metadata() PersonIndexMetadata {
	meta := PersonIndexMetadata{
		PersonCount: len(h.vectors),
		Dim:         h.dim,
		BuildTime:   time.Now(),
		Version:     personIndexMetadataVersion,
	}
	for id := range h.vectors {
		meta.MaxPersonID = max(meta.MaxPersonID, id)
	}
	return meta
}

// Save persists the graph, the person vectors and metadata next to path.
func (h *PersonIndex) Save(path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.dirty {
		h.rebuild()
	}

	if h.graph == nil {
		// Remove existing files if index is empty (best-effort cleanup).
		_ = os.Remove(path)
		_ = os.Remove(path + ".meta")
		_ = os.Remove(path + ".persons")
		return nil
	}

	f, err := os.Create(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to create HNSW index file: %w", err)
	}
	if err := h.graph.Export(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to export HNSW graph: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close HNSW index file: %w", err)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(h.vectors); err != nil {
		return fmt.Errorf("failed to encode person vectors: %w", err)
	}
	if err := os.WriteFile(path+".persons", buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write person vectors: %w", err)
	}

	metaData, err := json.Marshal(h.metadata())
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(path+".meta", metaData, 0600); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}
	return nil
}

// Load restores an index written by Save.
func (h *PersonIndex) Load(path string) error {
	data, err := os.ReadFile(path + ".persons") //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to read person vectors: %w", err)
	}
	vectors := make(map[int64][]float32)
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&vectors); err != nil {
		return fmt.Errorf("failed to decode person vectors: %w", err)
	}

	f, err := os.Open(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to open HNSW index file: %w", err)
	}
	defer f.Close()

	g := newPersonGraph()
	if err := g.Import(bufio.NewReader(f)); err != nil {
		return fmt.Errorf("failed to import HNSW graph: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.graph = g
	h.vectors = vectors
	h.dirty = false
	h.dim = 0
	for _, v := range vectors {
		h.dim = len(v)
		break
	}
	return nil
}

// LoadPersonIndexMetadata loads metadata from a separate .meta file.
func LoadPersonIndexMetadata(path string) (PersonIndexMetadata, error) {
	var metadata PersonIndexMetadata

	data, err := os.ReadFile(path + ".meta") //nolint:gosec // path is from trusted config
	if err != nil {
		return metadata, fmt.Errorf("failed to read metadata file: %w", err)
	}
	if err := json.Unmarshal(data, &metadata); err != nil {
		return metadata, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	if metadata.Version != personIndexMetadataVersion {
		return metadata, fmt.Errorf("unsupported person index version %d", metadata.Version)
	}
	return metadata, nil
}
