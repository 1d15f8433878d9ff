package database

import (
	"path/filepath"
	"testing"
)

func testPersons() []Person {
	return []Person{
		{ID: 1, Embedding: []float32{1, 0, 0}},
		{ID: 2, Embedding: []float32{0.9, 0.1, 0}},
		{ID: 3, Embedding: []float32{0, 1, 0}},
		{ID: 4, Embedding: []float32{0, 0, 1}},
		{ID: 5},                             // no embedding
		{ID: 6, Embedding: []float32{1, 0}}, // wrong dimension
	}
}

func TestPersonIndex_BuildAndSearch(t *testing.T) {
	idx := NewPersonIndex()
	idx.Build(testPersons())

	if got := idx.Len(); got != 4 {
		t.Fatalf("Len() = %d, want 4", got)
	}

	res := idx.Search([]float32{1, 0, 0}, 2)
	if len(res) != 2 {
		t.Fatalf("Search() returned %d results, want 2", len(res))
	}
	if res[0].PersonID != 1 || res[1].PersonID != 2 {
		t.Errorf("Search() order = [%d %d], want [1 2]", res[0].PersonID, res[1].PersonID)
	}
	if res[0].Similarity < 0.999 {
		t.Errorf("self similarity = %v, want ~1", res[0].Similarity)
	}
}

func TestPersonIndex_SearchEdgeCases(t *testing.T) {
	idx := NewPersonIndex()
	if res := idx.Search([]float32{1, 0, 0}, 3); res != nil {
		t.Errorf("Search on empty index = %v, want nil", res)
	}

	idx.Build(testPersons())
	if res := idx.Search([]float32{1, 0}, 3); res != nil {
		t.Errorf("Search with wrong dim = %v, want nil", res)
	}
	if res := idx.Search([]float32{1, 0, 0}, 0); res != nil {
		t.Errorf("Search with k=0 = %v, want nil", res)
	}
}

func TestPersonIndex_Upsert(t *testing.T) {
	idx := NewPersonIndex()
	if !idx.Upsert(1, []float32{1, 0, 0}) {
		t.Fatal("Upsert of first vector should succeed")
	}
	if idx.Upsert(2, []float32{1, 0}) {
		t.Error("Upsert with mismatched dimension should be skipped")
	}
	if idx.Upsert(3, nil) {
		t.Error("Upsert with empty embedding should be skipped")
	}
	idx.Upsert(2, []float32{0, 1, 0})

	// move person 2 next to the query
	idx.Upsert(2, []float32{0, 0, 1})
	res := idx.Search([]float32{0, 0, 1}, 1)
	if len(res) != 1 || res[0].PersonID != 2 {
		t.Errorf("Search after update = %+v, want person 2 first", res)
	}
}

func TestPersonIndex_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persons.hnsw")

	idx := NewPersonIndex()
	idx.Build(testPersons())
	if err := idx.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	meta, err := LoadPersonIndexMetadata(path)
	if err != nil {
		t.Fatalf("LoadPersonIndexMetadata() error = %v", err)
	}
	if meta.PersonCount != 4 || meta.MaxPersonID != 4 || meta.Dim != 3 {
		t.Errorf("metadata = %+v, want count 4, max id 4, dim 3", meta)
	}

	loaded := NewPersonIndex()
	if err := loaded.Load(path); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Len() != 4 {
		t.Errorf("loaded Len() = %d, want 4", loaded.Len())
	}
	res := loaded.Search([]float32{0, 1, 0}, 1)
	if len(res) != 1 || res[0].PersonID != 3 {
		t.Errorf("loaded Search() = %+v, want person 3", res)
	}
}

func TestPersonIndex_LoadMissing(t *testing.T) {
	if err := NewPersonIndex().Load(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("Load() of missing file should fail")
	}
}

func TestFilterPersonsByName(t *testing.T) {
	persons := []Person{
		{ID: 1, Name: "Tomáš Novák"},
		{ID: 2, Name: "Tina"},
		{ID: 3, Name: "Martina"},
	}

	tests := []struct {
		term string
		want []int64
	}{
		{"tomas", []int64{1}},
		{"TINA", []int64{2, 3}},
		{"nobody", nil},
		{"", nil},
	}

	for _, tt := range tests {
		got := FilterPersonsByName(persons, tt.term)
		var ids []int64
		for _, p := range got {
			ids = append(ids, p.ID)
		}
		if len(ids) != len(tt.want) {
			t.Errorf("FilterPersonsByName(%q) = %v, want %v", tt.term, ids, tt.want)
			continue
		}
		for i := range ids {
			if ids[i] != tt.want[i] {
				t.Errorf("FilterPersonsByName(%q) = %v, want %v", tt.term, ids, tt.want)
				break
			}
		}
	}
}

func TestSortedUnique(t *testing.T) {
	got := SortedUnique([]int64{3, 1, 3, 2, 1})
	want := []int64{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("SortedUnique() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("SortedUnique() = %v, want %v", got, want)
		}
	}
}
