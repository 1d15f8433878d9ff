package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/photo-gallery/internal/database"
	"gorm.io/gorm"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (s *Store) firstImage(ctx context.Context, query string, arg any) (*database.Image, error) {
	var m imageModel
	if err := s.db.WithContext(ctx).Where(query, arg).First(&m).Error; err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get image: %w", err)
	}
	return m.toImage(), nil
}

// GetImage retrieves an image by ID, returns nil if not found.
func (s *Store) GetImage(ctx context.Context, id int64) (*database.Image, error) {
	return s.firstImage(ctx, "id = ?", id)
}

// GetImageByPath retrieves an image by its file path, returns nil if not found.
func (s *Store) GetImageByPath(ctx context.Context, path string) (*database.Image, error) {
	return s.firstImage(ctx, "path = ?", path)
}

// ListImageIDs returns all image IDs in ascending order.
func (s *Store) ListImageIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := s.db.WithContext(ctx).Model(&imageModel{}).Order("id ASC").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list image IDs: %w", err)
	}
	return ids, nil
}

// CountImages returns the number of images.
func (s *Store) CountImages(ctx context.Context) (int, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&imageModel{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count images: %w", err)
	}
	return int(n), nil
}

// FindTagHits returns tags whose label contains term, ignoring case.
func (s *Store) FindTagHits(ctx context.Context, term string) ([]database.TagHit, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return nil, nil
	}

	var tags []tagModel
	err := s.db.WithContext(ctx).
		Where(`LOWER(label) LIKE ? ESCAPE '\'`, "%"+likeEscaper.Replace(term)+"%").
		Order("image_id ASC, confidence DESC").
		Find(&tags).Error
	if err != nil {
		return nil, fmt.Errorf("failed to search tags for %q: %w", term, err)
	}

	hits := make([]database.TagHit, 0, len(tags))
	for _, t := range tags {
		hits = append(hits, database.TagHit{ImageID: t.ImageID, Label: t.Label, Confidence: t.Confidence})
	}
	return hits, nil
}

// GetAnnotations returns the stored tags and faces of an image, nil if the image is unknown.
func (s *Store) GetAnnotations(ctx context.Context, imageID int64) (*database.ImageAnnotations, error) {
	img, err := s.GetImage(ctx, imageID)
	if err != nil || img == nil {
		return nil, err
	}

	var tags []tagModel
	if err := s.db.WithContext(ctx).Where("image_id = ?", imageID).Order("id ASC").Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("failed to load tags of image %d: %w", imageID, err)
	}
	var faces []faceModel
	if err := s.db.WithContext(ctx).Where("image_id = ?", imageID).Order("face_index ASC").Find(&faces).Error; err != nil {
		return nil, fmt.Errorf("failed to load faces of image %d: %w", imageID, err)
	}

	ann := &database.ImageAnnotations{ImageID: imageID, Description: img.Description}
	for _, t := range tags {
		ann.Tags = append(ann.Tags, database.Tag{ImageID: imageID, Label: t.Label, Confidence: t.Confidence, BBox: t.Box.rect()})
	}
	for i := range faces {
		ann.Faces = append(ann.Faces, faces[i].toFace())
	}
	return ann, nil
}

// LabelCounts returns per-label image counts, most frequent first.
func (s *Store) LabelCounts(ctx context.Context) ([]database.LabelCount, error) {
	var counts []database.LabelCount
	err := s.db.WithContext(ctx).Model(&tagModel{}).
		Select("label, COUNT(DISTINCT image_id) AS count").
		Group("label").
		Order("count DESC, label ASC").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count labels: %w", err)
	}
	return counts, nil
}

// SaveImage inserts or updates an image keyed by path.
// Description and processing state of an existing row are kept.
func (s *Store) SaveImage(ctx context.Context, img *database.Image) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing imageModel
		err := tx.Where("path = ?", img.Path).First(&existing).Error
		switch {
		case notFound(err):
			m := imageModel{
				UID:      img.UID,
				Path:     img.Path,
				FileName: img.FileName,
				FileSize: img.FileSize,
				Width:    img.Width,
				Height:   img.Height,
				TakenAt:  img.TakenAt,
			}
			if m.UID == "" {
				m.UID = uuid.NewString()
			}
			if err := tx.Create(&m).Error; err != nil {
				return err
			}
			*img = *m.toImage()
			return nil
		case err != nil:
			return err
		}

		existing.FileName = img.FileName
		existing.FileSize = img.FileSize
		existing.Width = img.Width
		existing.Height = img.Height
		existing.TakenAt = img.TakenAt
		err = tx.Model(&existing).
			Select("file_name", "file_size", "width", "height", "taken_at").
			Updates(&existing).Error
		if err != nil {
			return err
		}
		*img = *existing.toImage()
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save image %s: %w", img.Path, err)
	}
	return nil
}

// ReplaceAnnotations swaps all tags and faces of an image in one transaction.
func (s *Store) ReplaceAnnotations(ctx context.Context, ann *database.ImageAnnotations) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&imageModel{}).Where("id = ?", ann.ImageID).Updates(map[string]any{
			"description":  ann.Description,
			"processed_at": time.Now(),
		})
		if result.Error != nil {
			return fmt.Errorf("failed to update image %d: %w", ann.ImageID, result.Error)
		}
		if result.RowsAffected == 0 {
			return database.ErrNotFound
		}

		if err := tx.Where("image_id = ?", ann.ImageID).Delete(&tagModel{}).Error; err != nil {
			return fmt.Errorf("failed to delete tags: %w", err)
		}
		if err := tx.Where("image_id = ?", ann.ImageID).Delete(&faceModel{}).Error; err != nil {
			return fmt.Errorf("failed to delete faces: %w", err)
		}

		if len(ann.Tags) > 0 {
			tags := make([]tagModel, 0, len(ann.Tags))
			for _, t := range ann.Tags {
				tags = append(tags, tagModel{ImageID: ann.ImageID, Label: t.Label, Confidence: t.Confidence, Box: boxOf(t.BBox)})
			}
			if err := tx.Create(&tags).Error; err != nil {
				return fmt.Errorf("failed to insert tags: %w", err)
			}
		}

		if len(ann.Faces) > 0 {
			faces := make([]faceModel, 0, len(ann.Faces))
			for _, f := range ann.Faces {
				faces = append(faces, faceModel{
					ImageID:    ann.ImageID,
					FaceIndex:  f.FaceIndex,
					Box:        boxOf(f.BBox),
					Confidence: f.Confidence,
					Embedding:  encodeEmbedding(f.Embedding),
					PersonID:   f.PersonID,
				})
			}
			if err := tx.Create(&faces).Error; err != nil {
				return fmt.Errorf("failed to insert faces: %w", err)
			}
			for i := range faces {
				ann.Faces[i].ID = faces[i].ID
				ann.Faces[i].ImageID = ann.ImageID
			}
		}
		return nil
	})
}
