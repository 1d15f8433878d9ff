// Package mock provides an in-memory implementation of the database interfaces for testing.
package mock

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/photo-gallery/internal/config"
	"github.com/kozaktomas/photo-gallery/internal/database"
)

func init() {
	database.RegisterBackend("memory", func(ctx context.Context, cfg *config.DatabaseConfig) (database.Store, error) {
		return NewStore(), nil
	})
}

// Store is an in-memory database.Store.
type Store struct {
	mu           sync.RWMutex
	persons      map[int64]*database.Person
	images       map[int64]*database.Image
	byPath       map[string]int64
	annotations  map[int64]*database.ImageAnnotations
	nextPersonID int64
	nextImageID  int64
	nextFaceID   int64

	// Error injection
	GetPersonError      error
	ListPersonsError    error
	CreatePersonError   error
	UpdatePersonError   error
	ImagesByPersonError error
	GetImageError       error
	SaveImageError      error
	FindTagHitsError    error
	ReplaceError        error
	ListImageIDsError   error

	// UpdateConflicts makes the next N UpdatePersonEmbedding calls behave as if another
	// writer got there first: the stored version is bumped and ErrVersionConflict returned.
	UpdateConflicts int
	// UpdateCalls counts UpdatePersonEmbedding invocations, including conflicting ones.
	UpdateCalls int
}

var _ database.Store = (*Store)(nil)

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{
		persons:     make(map[int64]*database.Person),
		images:      make(map[int64]*database.Image),
		byPath:      make(map[string]int64),
		annotations: make(map[int64]*database.ImageAnnotations),
	}
}

// Close is a no-op.
func (m *Store) Close() error { return nil }

func clonePerson(p *database.Person) *database.Person {
	c := *p
	c.Embedding = slices.Clone(p.Embedding)
	return &c
}

func cloneImage(img *database.Image) *database.Image {
	c := *img
	return &c
}

// AddPerson stores a person directly, assigning the next ID when p.ID is zero.
func (m *Store) AddPerson(p database.Person) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == 0 {
		m.nextPersonID++
		p.ID = m.nextPersonID
	} else if p.ID > m.nextPersonID {
		m.nextPersonID = p.ID
	}
	if p.Version == 0 {
		p.Version = 1
	}
	m.persons[p.ID] = clonePerson(&p)
	return p.ID
}

// AddImage stores an image directly, assigning the next ID when img.ID is zero.
func (m *Store) AddImage(img database.Image) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if img.ID == 0 {
		m.nextImageID++
		img.ID = m.nextImageID
	} else if img.ID > m.nextImageID {
		m.nextImageID = img.ID
	}
	if img.Path == "" {
		img.Path = fmt.Sprintf("/images/%d.jpg", img.ID)
	}
	m.images[img.ID] = cloneImage(&img)
	m.byPath[img.Path] = img.ID
	return img.ID
}

// AddTag appends a tag to an image's annotations.
func (m *Store) AddTag(imageID int64, label string, confidence float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ann := m.annotationsFor(imageID)
	ann.Tags = append(ann.Tags, database.Tag{ImageID: imageID, Label: label, Confidence: confidence})
}

// AssignFace appends a face owned by personID to an image's annotations.
func (m *Store) AssignFace(imageID, personID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ann := m.annotationsFor(imageID)
	m.nextFaceID++
	pid := personID
	ann.Faces = append(ann.Faces, database.Face{
		ID:        m.nextFaceID,
		ImageID:   imageID,
		FaceIndex: len(ann.Faces),
		PersonID:  &pid,
	})
}

func (m *Store) annotationsFor(imageID int64) *database.ImageAnnotations {
	ann, ok := m.annotations[imageID]
	if !ok {
		ann = &database.ImageAnnotations{ImageID: imageID}
		m.annotations[imageID] = ann
	}
	return ann
}

// GetPerson retrieves a person by ID
func (m *Store) GetPerson(ctx context.Context, id int64) (*database.Person, error) {
	if m.GetPersonError != nil {
		return nil, m.GetPersonError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.persons[id]
	if !ok {
		return nil, nil
	}
	return clonePerson(p), nil
}

// ListPersons returns all persons ordered by ID
func (m *Store) ListPersons(ctx context.Context) ([]database.Person, error) {
	if m.ListPersonsError != nil {
		return nil, m.ListPersonsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.Person, 0, len(m.persons))
	for _, p := range m.persons {
		out = append(out, *clonePerson(p))
	}
	slices.SortFunc(out, func(a, b database.Person) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// FindPersonsByName returns persons whose name contains term
func (m *Store) FindPersonsByName(ctx context.Context, term string) ([]database.Person, error) {
	persons, err := m.ListPersons(ctx)
	if err != nil {
		return nil, err
	}
	return database.FilterPersonsByName(persons, term), nil
}

// ImagesByPerson returns image IDs with a face assigned to the person
func (m *Store) ImagesByPerson(ctx context.Context, personID int64) ([]int64, error) {
	if m.ImagesByPersonError != nil {
		return nil, m.ImagesByPersonError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []int64
	for imageID, ann := range m.annotations {
		for _, f := range ann.Faces {
			if f.PersonID != nil && *f.PersonID == personID {
				ids = append(ids, imageID)
				break
			}
		}
	}
	return database.SortedUnique(ids), nil
}

// CountPersons returns the number of persons
func (m *Store) CountPersons(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.persons), nil
}

// CreatePerson inserts a person
func (m *Store) CreatePerson(ctx context.Context, p *database.Person) error {
	if m.CreatePersonError != nil {
		return m.CreatePersonError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextPersonID++
	now := time.Now()
	p.ID = m.nextPersonID
	p.Version = 1
	p.CreatedAt = now
	p.UpdatedAt = now
	p.Name = database.DefaultPersonName(p.Name, p.ID)
	m.persons[p.ID] = clonePerson(p)
	return nil
}

// UpdatePersonEmbedding conditionally stores a new average
func (m *Store) UpdatePersonEmbedding(ctx context.Context, id int64, embedding []float32, faceCount int, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateCalls++
	if m.UpdatePersonError != nil {
		return m.UpdatePersonError
	}
	p, ok := m.persons[id]
	if !ok {
		return database.ErrNotFound
	}
	if m.UpdateConflicts > 0 {
		m.UpdateConflicts--
		p.Version++
		return database.ErrVersionConflict
	}
	if p.Version != expectedVersion {
		return database.ErrVersionConflict
	}
	p.Embedding = slices.Clone(embedding)
	p.FaceCount = faceCount
	p.Version++
	p.UpdatedAt = time.Now()
	return nil
}

// RenamePerson changes a person's name
func (m *Store) RenamePerson(ctx context.Context, id int64, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.persons[id]
	if !ok {
		return database.ErrNotFound
	}
	p.Name = name
	p.UpdatedAt = time.Now()
	return nil
}

// GetImage retrieves an image by ID
func (m *Store) GetImage(ctx context.Context, id int64) (*database.Image, error) {
	if m.GetImageError != nil {
		return nil, m.GetImageError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	img, ok := m.images[id]
	if !ok {
		return nil, nil
	}
	return cloneImage(img), nil
}

// GetImageByPath retrieves an image by path
func (m *Store) GetImageByPath(ctx context.Context, path string) (*database.Image, error) {
	if m.GetImageError != nil {
		return nil, m.GetImageError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byPath[path]
	if !ok {
		return nil, nil
	}
	return cloneImage(m.images[id]), nil
}

// ListImageIDs returns all image IDs in ascending order
func (m *Store) ListImageIDs(ctx context.Context) ([]int64, error) {
	if m.ListImageIDsError != nil {
		return nil, m.ListImageIDsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]int64, 0, len(m.images))
	for id := range m.images {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// CountImages returns the number of images
func (m *Store) CountImages(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.images), nil
}

// FindTagHits returns tags whose label contains term
func (m *Store) FindTagHits(ctx context.Context, term string) ([]database.TagHit, error) {
	if m.FindTagHitsError != nil {
		return nil, m.FindTagHitsError
	}
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var hits []database.TagHit
	for imageID, ann := range m.annotations {
		for _, tag := range ann.Tags {
			if strings.Contains(strings.ToLower(tag.Label), term) {
				hits = append(hits, database.TagHit{ImageID: imageID, Label: tag.Label, Confidence: tag.Confidence})
			}
		}
	}
	slices.SortStableFunc(hits, func(a, b database.TagHit) int {
		if c := cmp.Compare(a.ImageID, b.ImageID); c != 0 {
			return c
		}
		return cmp.Compare(b.Confidence, a.Confidence)
	})
	return hits, nil
}

// GetAnnotations returns stored annotations for an image
func (m *Store) GetAnnotations(ctx context.Context, imageID int64) (*database.ImageAnnotations, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	img, ok := m.images[imageID]
	if !ok {
		return nil, nil
	}
	out := &database.ImageAnnotations{ImageID: imageID, Description: img.Description}
	if ann, ok := m.annotations[imageID]; ok {
		out.Tags = slices.Clone(ann.Tags)
		out.Faces = slices.Clone(ann.Faces)
	}
	return out, nil
}

// LabelCounts returns per-label image counts
func (m *Store) LabelCounts(ctx context.Context) ([]database.LabelCount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	perLabel := make(map[string]map[int64]struct{})
	for imageID, ann := range m.annotations {
		for _, tag := range ann.Tags {
			if perLabel[tag.Label] == nil {
				perLabel[tag.Label] = make(map[int64]struct{})
			}
			perLabel[tag.Label][imageID] = struct{}{}
		}
	}
	out := make([]database.LabelCount, 0, len(perLabel))
	for label, imgs := range perLabel {
		out = append(out, database.LabelCount{Label: label, Count: len(imgs)})
	}
	slices.SortFunc(out, func(a, b database.LabelCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return strings.Compare(a.Label, b.Label)
	})
	return out, nil
}

// SaveImage inserts or updates an image keyed by path
func (m *Store) SaveImage(ctx context.Context, img *database.Image) error {
	if m.SaveImageError != nil {
		return m.SaveImageError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byPath[img.Path]; ok {
		existing := m.images[id]
		img.ID = id
		img.UID = existing.UID
		img.CreatedAt = existing.CreatedAt
		if img.ProcessedAt == nil {
			img.ProcessedAt = existing.ProcessedAt
		}
		if img.Description == "" {
			img.Description = existing.Description
		}
	} else {
		m.nextImageID++
		img.ID = m.nextImageID
		if img.UID == "" {
			img.UID = uuid.NewString()
		}
		img.CreatedAt = time.Now()
	}
	m.images[img.ID] = cloneImage(img)
	m.byPath[img.Path] = img.ID
	return nil
}

// ReplaceAnnotations swaps all annotations of an image
func (m *Store) ReplaceAnnotations(ctx context.Context, ann *database.ImageAnnotations) error {
	if m.ReplaceError != nil {
		return m.ReplaceError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	img, ok := m.images[ann.ImageID]
	if !ok {
		return database.ErrNotFound
	}
	stored := &database.ImageAnnotations{ImageID: ann.ImageID, Description: ann.Description}
	for _, tag := range ann.Tags {
		tag.ImageID = ann.ImageID
		stored.Tags = append(stored.Tags, tag)
	}
	for i := range ann.Faces {
		m.nextFaceID++
		ann.Faces[i].ID = m.nextFaceID
		ann.Faces[i].ImageID = ann.ImageID
		face := ann.Faces[i]
		face.Embedding = slices.Clone(face.Embedding)
		stored.Faces = append(stored.Faces, face)
	}
	m.annotations[ann.ImageID] = stored
	now := time.Now()
	img.Description = ann.Description
	img.ProcessedAt = &now
	return nil
}
