package search

import (
	"context"
	"errors"
	"testing"

	"github.com/kozaktomas/photo-gallery/internal/database"
	"github.com/kozaktomas/photo-gallery/internal/database/mock"
	"go.uber.org/zap"
)

// newTestEngine builds five images:
//
//	1: Samantha, dog 0.9
//	2: Samantha, Tina, dog 0.6, hot dog 0.8
//	3: Tina, Dina, cat 0.7
//	4: Tina, Dina, Ramesh
//	5: Martina, horse 0.95
func newTestEngine(t *testing.T) (*Engine, *mock.Store) {
	t.Helper()
	store := mock.NewStore()
	for range 5 {
		store.AddImage(database.Image{})
	}
	samantha := store.AddPerson(database.Person{Name: "Samantha"})
	tina := store.AddPerson(database.Person{Name: "Tina"})
	dina := store.AddPerson(database.Person{Name: "Dina"})
	ramesh := store.AddPerson(database.Person{Name: "Ramesh"})
	martina := store.AddPerson(database.Person{Name: "Martina"})

	store.AssignFace(1, samantha)
	store.AssignFace(2, samantha)
	store.AssignFace(2, tina)
	store.AssignFace(3, tina)
	store.AssignFace(3, dina)
	store.AssignFace(4, tina)
	store.AssignFace(4, dina)
	store.AssignFace(4, ramesh)
	store.AssignFace(5, martina)

	store.AddTag(1, "dog", 0.9)
	store.AddTag(2, "dog", 0.6)
	store.AddTag(2, "hot dog", 0.8)
	store.AddTag(3, "cat", 0.7)
	store.AddTag(5, "horse", 0.95)

	return NewEngine(store, store, zap.NewNop()), store
}

func TestSearch(t *testing.T) {
	e, _ := newTestEngine(t)

	tests := []struct {
		query string
		want  []Result
	}{
		{"find all images with Samantha in it", []Result{{1, 1}, {2, 1}}},
		{"find all images where Samantha and Tina are together", []Result{{2, 1}}},
		{"find all pics where Tina is with Dina but not with Ramesh", []Result{{3, 1}}},
		{"search for dog", []Result{{1, 0.9}, {2, 0.6}}},
		{"search for hot", []Result{{2, 0}}},
		{"find pictures with dogs", []Result{{1, 0.9}, {2, 0.6}}},
		{"find all images where samantha is with a dog", []Result{{1, 0.9}, {2, 0.6}}},
		{"find all images where tina is with a dog", []Result{{2, 0.6}}},
		{"find all images where dina is with a dog", nil},
		{"search for DOG without tina", []Result{{1, 0.9}}},
		{"photos without tina", []Result{{1, 1}}},
		{"find photos with tina", []Result{{2, 1}, {3, 1}, {4, 1}, {5, 1}}},
		{"find all images where tina and samantha are together", []Result{{2, 1}}},
		{"find all images where tina and bob are together", nil},
		{"find all images with bob in it", nil},
		{"horse tina", []Result{{5, 1}, {2, 1}, {3, 1}, {4, 1}}},
		{"sunset", nil},
		{"", nil},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := e.Search(context.Background(), tt.query)
			if err != nil {
				t.Fatalf("Search(%q) error = %v", tt.query, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Search(%q) = %v, want %v", tt.query, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Search(%q)[%d] = %v, want %v", tt.query, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSearchByTags_MaxConfidencePerImage(t *testing.T) {
	e, _ := newTestEngine(t)

	got, err := e.SearchByTags(context.Background(), []string{"hot", "dog", "cat"})
	if err != nil {
		t.Fatalf("SearchByTags() error = %v", err)
	}
	want := []Result{{1, 0.9}, {3, 0.7}, {2, 0.6}}
	if len(got) != len(want) {
		t.Fatalf("SearchByTags() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("SearchByTags()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSearchByTags_ContainmentOnlyScoresZero(t *testing.T) {
	store := mock.NewStore()
	store.AddImage(database.Image{})
	store.AddImage(database.Image{})
	store.AddTag(1, "dog", 0.6)
	store.AddTag(2, "hot dog", 0.9)
	e := NewEngine(store, store, zap.NewNop())

	got, err := e.Search(context.Background(), "search for dog")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	want := []Result{{1, 0.6}, {2, 0}}
	if len(got) != len(want) {
		t.Fatalf("Search() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Search()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSearchByPeople_ExcludedUnknownName(t *testing.T) {
	e, _ := newTestEngine(t)

	got, err := e.SearchByPeople(context.Background(), []string{"samantha"}, false, []string{"nobody"})
	if err != nil {
		t.Fatalf("SearchByPeople() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("SearchByPeople() = %v, want images 1 and 2", got)
	}
}

func TestSearch_RepositoryErrors(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name  string
		query string
		setup func(*mock.Store)
	}{
		{"tags", "search for dog", func(s *mock.Store) { s.FindTagHitsError = boom }},
		{"people", "find all images with samantha in it", func(s *mock.Store) { s.ListPersonsError = boom }},
		{"exclusion only", "photos without tina", func(s *mock.Store) { s.ListImageIDsError = boom }},
		{"sets", "find all images with samantha in it", func(s *mock.Store) { s.ImagesByPersonError = boom }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, store := newTestEngine(t)
			tt.setup(store)
			if _, err := e.Search(context.Background(), tt.query); !errors.Is(err, boom) {
				t.Errorf("Search(%q) error = %v, want wrapped boom", tt.query, err)
			}
		})
	}
}

func TestMerger(t *testing.T) {
	var m merger
	m.add(3, 0.5)
	m.add(1, 0.9)
	m.add(3, 0.7)
	m.add(2, 0.7)
	m.add(1, 0.1)

	got := m.results()
	want := []Result{{1, 0.9}, {3, 0.7}, {2, 0.7}}
	if len(got) != len(want) {
		t.Fatalf("results() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("results()[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	var empty merger
	if empty.results() != nil {
		t.Error("empty merger should return nil")
	}
}
