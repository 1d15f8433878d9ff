package sqlite

import (
	"context"
	"fmt"

	"github.com/kozaktomas/photo-gallery/internal/database"
	"gorm.io/gorm"
)

// GetPerson retrieves a person by ID, returns nil if not found.
func (s *Store) GetPerson(ctx context.Context, id int64) (*database.Person, error) {
	var m personModel
	if err := s.db.WithContext(ctx).First(&m, id).Error; err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get person by ID %d: %w", id, err)
	}
	p := m.toPerson()
	return &p, nil
}

// ListPersons returns all persons ordered by ID.
func (s *Store) ListPersons(ctx context.Context) ([]database.Person, error) {
	var models []personModel
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list persons: %w", err)
	}
	persons := make([]database.Person, 0, len(models))
	for i := range models {
		persons = append(persons, models[i].toPerson())
	}
	return persons, nil
}

// FindPersonsByName returns persons whose name contains term.
func (s *Store) FindPersonsByName(ctx context.Context, term string) ([]database.Person, error) {
	persons, err := s.ListPersons(ctx)
	if err != nil {
		return nil, err
	}
	return database.FilterPersonsByName(persons, term), nil
}

// ImagesByPerson returns the distinct image IDs with a face assigned to the person.
func (s *Store) ImagesByPerson(ctx context.Context, personID int64) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Model(&faceModel{}).
		Where("person_id = ?", personID).
		Distinct().
		Order("image_id ASC").
		Pluck("image_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list images of person %d: %w", personID, err)
	}
	return ids, nil
}

// CountPersons returns the number of persons.
func (s *Store) CountPersons(ctx context.Context) (int, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&personModel{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count persons: %w", err)
	}
	return int(n), nil
}

// CreatePerson inserts a person. An empty name becomes "Person <id>".
func (s *Store) CreatePerson(ctx context.Context, p *database.Person) error {
	m := personModel{
		Name:      p.Name,
		Embedding: encodeEmbedding(p.Embedding),
		FaceCount: p.FaceCount,
		Version:   1,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&m).Error; err != nil {
			return err
		}
		if name := database.DefaultPersonName(m.Name, m.ID); name != m.Name {
			m.Name = name
			return tx.Model(&m).UpdateColumn("name", name).Error
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create person: %w", err)
	}

	p.ID = m.ID
	p.Name = m.Name
	p.Version = m.Version
	p.CreatedAt = m.CreatedAt
	p.UpdatedAt = m.UpdatedAt
	return nil
}

// UpdatePersonEmbedding stores a new average only while the stored version still equals expectedVersion.
func (s *Store) UpdatePersonEmbedding(ctx context.Context, id int64, embedding []float32, faceCount int, expectedVersion int64) error {
	result := s.db.WithContext(ctx).Model(&personModel{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(map[string]any{
			"embedding":  encodeEmbedding(embedding),
			"face_count": faceCount,
			"version":    gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update person %d: %w", id, result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}
	return s.missingPerson(ctx, id, database.ErrVersionConflict)
}

// RenamePerson changes the display name.
func (s *Store) RenamePerson(ctx context.Context, id int64, name string) error {
	result := s.db.WithContext(ctx).Model(&personModel{}).
		Where("id = ?", id).
		Update("name", name)
	if result.Error != nil {
		return fmt.Errorf("failed to rename person %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return database.ErrNotFound
	}
	return nil
}

// missingPerson tells a vanished person apart from a lost race.
func (s *Store) missingPerson(ctx context.Context, id int64, onMiss error) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(&personModel{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return fmt.Errorf("failed to check person %d: %w", id, err)
	}
	if n == 0 {
		return database.ErrNotFound
	}
	return onMiss
}
