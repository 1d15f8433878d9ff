// Package storetest holds behaviour tests shared by every database backend.
package storetest

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/kozaktomas/photo-gallery/internal/database"
	"github.com/kozaktomas/photo-gallery/internal/geometry"
)

// Run exercises a fresh, empty store returned by open.
func Run(t *testing.T, open func(t *testing.T) database.Store) {
	t.Run("Persons", func(t *testing.T) { testPersons(t, open(t)) })
	t.Run("VersionedUpdate", func(t *testing.T) { testVersionedUpdate(t, open(t)) })
	t.Run("Images", func(t *testing.T) { testImages(t, open(t)) })
	t.Run("Annotations", func(t *testing.T) { testAnnotations(t, open(t)) })
}

func testPersons(t *testing.T, store database.Store) {
	ctx := context.Background()

	missing, err := store.GetPerson(ctx, 9999)
	if err != nil || missing != nil {
		t.Errorf("GetPerson(missing) = %v, %v, want nil, nil", missing, err)
	}

	auto := &database.Person{Embedding: []float32{1, 0, 0}, FaceCount: 1}
	if err := store.CreatePerson(ctx, auto); err != nil {
		t.Fatalf("CreatePerson() error = %v", err)
	}
	if auto.ID == 0 || auto.Version != 1 || auto.CreatedAt.IsZero() {
		t.Errorf("CreatePerson() filled %+v, want ID, version 1 and timestamps", auto)
	}
	if want := "Person " + itoa(auto.ID); auto.Name != want {
		t.Errorf("auto name = %q, want %q", auto.Name, want)
	}

	named := &database.Person{Name: "Zoë Novák"}
	if err := store.CreatePerson(ctx, named); err != nil {
		t.Fatalf("CreatePerson() error = %v", err)
	}

	got, err := store.GetPerson(ctx, auto.ID)
	if err != nil || got == nil {
		t.Fatalf("GetPerson() = %v, %v", got, err)
	}
	if len(got.Embedding) != 3 || got.Embedding[0] != 1 || got.FaceCount != 1 {
		t.Errorf("GetPerson() = %+v, want stored embedding and face count", got)
	}

	empty, err := store.GetPerson(ctx, named.ID)
	if err != nil || empty == nil {
		t.Fatalf("GetPerson() = %v, %v", empty, err)
	}
	if len(empty.Embedding) != 0 {
		t.Errorf("person without embedding has %v", empty.Embedding)
	}

	persons, err := store.ListPersons(ctx)
	if err != nil {
		t.Fatalf("ListPersons() error = %v", err)
	}
	if len(persons) != 2 || persons[0].ID != auto.ID || persons[1].ID != named.ID {
		t.Errorf("ListPersons() = %+v, want creation order", persons)
	}

	found, err := store.FindPersonsByName(ctx, "zoe")
	if err != nil {
		t.Fatalf("FindPersonsByName() error = %v", err)
	}
	if len(found) != 1 || found[0].ID != named.ID {
		t.Errorf("FindPersonsByName(zoe) = %+v, want %d", found, named.ID)
	}

	if err := store.RenamePerson(ctx, auto.ID, "Samantha"); err != nil {
		t.Fatalf("RenamePerson() error = %v", err)
	}
	renamed, _ := store.GetPerson(ctx, auto.ID)
	if renamed == nil || renamed.Name != "Samantha" {
		t.Errorf("after rename = %+v, want Samantha", renamed)
	}
	if err := store.RenamePerson(ctx, 9999, "Nobody"); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("RenamePerson(missing) error = %v, want ErrNotFound", err)
	}

	n, err := store.CountPersons(ctx)
	if err != nil || n != 2 {
		t.Errorf("CountPersons() = %d, %v, want 2", n, err)
	}
}

func testVersionedUpdate(t *testing.T, store database.Store) {
	ctx := context.Background()

	p := &database.Person{Embedding: []float32{1, 0}, FaceCount: 1}
	if err := store.CreatePerson(ctx, p); err != nil {
		t.Fatalf("CreatePerson() error = %v", err)
	}

	if err := store.UpdatePersonEmbedding(ctx, p.ID, []float32{0.5, 0.5}, 2, p.Version); err != nil {
		t.Fatalf("UpdatePersonEmbedding() error = %v", err)
	}
	got, _ := store.GetPerson(ctx, p.ID)
	if got == nil || got.Version != p.Version+1 || got.FaceCount != 2 || got.Embedding[1] != 0.5 {
		t.Errorf("after update = %+v, want version %d, 2 faces", got, p.Version+1)
	}

	err := store.UpdatePersonEmbedding(ctx, p.ID, []float32{0, 1}, 3, p.Version)
	if !errors.Is(err, database.ErrVersionConflict) {
		t.Errorf("stale UpdatePersonEmbedding() error = %v, want ErrVersionConflict", err)
	}
	unchanged, _ := store.GetPerson(ctx, p.ID)
	if unchanged == nil || unchanged.FaceCount != 2 {
		t.Errorf("stale update was applied: %+v", unchanged)
	}

	err = store.UpdatePersonEmbedding(ctx, 9999, []float32{1, 0}, 1, 1)
	if !errors.Is(err, database.ErrNotFound) {
		t.Errorf("UpdatePersonEmbedding(missing) error = %v, want ErrNotFound", err)
	}
}

func testImages(t *testing.T, store database.Store) {
	ctx := context.Background()
	taken := time.Date(2023, 7, 14, 10, 30, 0, 0, time.UTC)

	img := &database.Image{Path: "/photos/a.jpg", FileName: "a.jpg", FileSize: 1234, Width: 640, Height: 480, TakenAt: &taken}
	if err := store.SaveImage(ctx, img); err != nil {
		t.Fatalf("SaveImage() error = %v", err)
	}
	if img.ID == 0 || img.UID == "" {
		t.Fatalf("SaveImage() did not fill ID/UID: %+v", img)
	}

	again := &database.Image{Path: "/photos/a.jpg", FileName: "a.jpg", FileSize: 999, Width: 640, Height: 480}
	if err := store.SaveImage(ctx, again); err != nil {
		t.Fatalf("SaveImage() error = %v", err)
	}
	if again.ID != img.ID || again.UID != img.UID {
		t.Errorf("re-save got ID %d UID %s, want %d %s", again.ID, again.UID, img.ID, img.UID)
	}

	other := &database.Image{Path: "/photos/b.jpg", FileName: "b.jpg"}
	if err := store.SaveImage(ctx, other); err != nil {
		t.Fatalf("SaveImage() error = %v", err)
	}

	byPath, err := store.GetImageByPath(ctx, "/photos/a.jpg")
	if err != nil || byPath == nil {
		t.Fatalf("GetImageByPath() = %v, %v", byPath, err)
	}
	if byPath.FileSize != 999 || byPath.Processed() {
		t.Errorf("GetImageByPath() = %+v, want updated size and unprocessed", byPath)
	}

	missing, err := store.GetImageByPath(ctx, "/nope.jpg")
	if err != nil || missing != nil {
		t.Errorf("GetImageByPath(missing) = %v, %v, want nil, nil", missing, err)
	}
	if img, err := store.GetImage(ctx, 9999); err != nil || img != nil {
		t.Errorf("GetImage(missing) = %v, %v, want nil, nil", img, err)
	}

	ids, err := store.ListImageIDs(ctx)
	if err != nil || len(ids) != 2 || ids[0] != img.ID || ids[1] != other.ID {
		t.Errorf("ListImageIDs() = %v, %v, want [%d %d]", ids, err, img.ID, other.ID)
	}
	if n, err := store.CountImages(ctx); err != nil || n != 2 {
		t.Errorf("CountImages() = %d, %v, want 2", n, err)
	}
}

func testAnnotations(t *testing.T, store database.Store) {
	ctx := context.Background()

	person := &database.Person{Name: "Tina", Embedding: []float32{0, 1, 0}, FaceCount: 1}
	if err := store.CreatePerson(ctx, person); err != nil {
		t.Fatalf("CreatePerson() error = %v", err)
	}

	first := &database.Image{Path: "/p/1.jpg", FileName: "1.jpg"}
	second := &database.Image{Path: "/p/2.jpg", FileName: "2.jpg"}
	for _, img := range []*database.Image{first, second} {
		if err := store.SaveImage(ctx, img); err != nil {
			t.Fatalf("SaveImage() error = %v", err)
		}
	}

	box := geometry.Rect{X: 1.5, Y: 2, W: 30, H: 40}
	ann := &database.ImageAnnotations{
		ImageID:     first.ID,
		Description: "This image contains a dog and a hot dog.",
		Tags: []database.Tag{
			{Label: "dog", Confidence: 0.7, BBox: box},
			{Label: "hot dog", Confidence: 0.9, BBox: box},
			{Label: "person", Confidence: 0.8, BBox: box},
		},
		Faces: []database.Face{
			{FaceIndex: 0, BBox: box, Confidence: 0.95, Embedding: []float32{0, 1, 0}, PersonID: &person.ID},
			{FaceIndex: 1, BBox: box, Confidence: 0.8},
		},
	}
	if err := store.ReplaceAnnotations(ctx, ann); err != nil {
		t.Fatalf("ReplaceAnnotations() error = %v", err)
	}
	if ann.Faces[0].ID == 0 || ann.Faces[1].ID == 0 {
		t.Errorf("ReplaceAnnotations() did not fill face IDs: %+v", ann.Faces)
	}

	second2 := &database.ImageAnnotations{
		ImageID: second.ID,
		Tags:    []database.Tag{{Label: "Dog", Confidence: 0.6, BBox: box}},
	}
	if err := store.ReplaceAnnotations(ctx, second2); err != nil {
		t.Fatalf("ReplaceAnnotations() error = %v", err)
	}

	got, err := store.GetAnnotations(ctx, first.ID)
	if err != nil || got == nil {
		t.Fatalf("GetAnnotations() = %v, %v", got, err)
	}
	if got.Description != ann.Description || len(got.Tags) != 3 || len(got.Faces) != 2 {
		t.Fatalf("GetAnnotations() = %+v", got)
	}
	if got.Tags[0].BBox != box {
		t.Errorf("tag bbox = %+v, want %+v", got.Tags[0].BBox, box)
	}
	f0 := got.Faces[0]
	if f0.PersonID == nil || *f0.PersonID != person.ID || len(f0.Embedding) != 3 || f0.Embedding[1] != 1 {
		t.Errorf("face 0 = %+v, want assigned to %d with embedding", f0, person.ID)
	}
	if got.Faces[1].PersonID != nil || len(got.Faces[1].Embedding) != 0 {
		t.Errorf("face 1 = %+v, want unassigned without embedding", got.Faces[1])
	}

	img, _ := store.GetImage(ctx, first.ID)
	if img == nil || !img.Processed() || img.Description != ann.Description {
		t.Errorf("image after annotation = %+v, want processed with description", img)
	}

	resaved := &database.Image{Path: "/p/1.jpg", FileName: "1.jpg"}
	if err := store.SaveImage(ctx, resaved); err != nil {
		t.Fatalf("SaveImage() error = %v", err)
	}
	if !resaved.Processed() || resaved.Description != ann.Description {
		t.Errorf("re-saving a processed image lost its state: %+v", resaved)
	}

	hits, err := store.FindTagHits(ctx, "DOG")
	if err != nil {
		t.Fatalf("FindTagHits() error = %v", err)
	}
	want := []database.TagHit{
		{ImageID: first.ID, Label: "hot dog", Confidence: 0.9},
		{ImageID: first.ID, Label: "dog", Confidence: 0.7},
		{ImageID: second.ID, Label: "Dog", Confidence: 0.6},
	}
	if len(hits) != len(want) {
		t.Fatalf("FindTagHits(DOG) = %+v, want %+v", hits, want)
	}
	for i := range want {
		if hits[i] != want[i] {
			t.Errorf("FindTagHits(DOG)[%d] = %+v, want %+v", i, hits[i], want[i])
		}
	}
	if hits, err := store.FindTagHits(ctx, "100%"); err != nil || len(hits) != 0 {
		t.Errorf("FindTagHits(100%%) = %v, %v, want none", hits, err)
	}

	ids, err := store.ImagesByPerson(ctx, person.ID)
	if err != nil || len(ids) != 1 || ids[0] != first.ID {
		t.Errorf("ImagesByPerson() = %v, %v, want [%d]", ids, err, first.ID)
	}

	counts, err := store.LabelCounts(ctx)
	if err != nil {
		t.Fatalf("LabelCounts() error = %v", err)
	}
	if len(counts) != 4 {
		t.Errorf("LabelCounts() = %+v, want 4 labels", counts)
	}

	replacement := &database.ImageAnnotations{ImageID: first.ID, Tags: []database.Tag{{Label: "cat", Confidence: 0.5, BBox: box}}}
	if err := store.ReplaceAnnotations(ctx, replacement); err != nil {
		t.Fatalf("ReplaceAnnotations() error = %v", err)
	}
	got, _ = store.GetAnnotations(ctx, first.ID)
	if got == nil || len(got.Tags) != 1 || got.Tags[0].Label != "cat" || len(got.Faces) != 0 {
		t.Errorf("after replacement = %+v, want only the cat tag", got)
	}
	if ids, _ := store.ImagesByPerson(ctx, person.ID); len(ids) != 0 {
		t.Errorf("ImagesByPerson() after replacement = %v, want none", ids)
	}

	err = store.ReplaceAnnotations(ctx, &database.ImageAnnotations{ImageID: 9999})
	if !errors.Is(err, database.ErrNotFound) {
		t.Errorf("ReplaceAnnotations(missing) error = %v, want ErrNotFound", err)
	}
	if ann, err := store.GetAnnotations(ctx, 9999); err != nil || ann != nil {
		t.Errorf("GetAnnotations(missing) = %v, %v, want nil, nil", ann, err)
	}
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
