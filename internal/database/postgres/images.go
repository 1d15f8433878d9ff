package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/kozaktomas/photo-gallery/internal/database"
	"github.com/kozaktomas/photo-gallery/internal/geometry"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

var imageColumns = []string{
	"id", "uid", "path", "file_name", "file_size", "width", "height",
	"taken_at", "description", "processed_at", "created_at",
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func scanImage(row rowScanner) (*database.Image, error) {
	var img database.Image
	err := row.Scan(&img.ID, &img.UID, &img.Path, &img.FileName, &img.FileSize, &img.Width, &img.Height,
		&img.TakenAt, &img.Description, &img.ProcessedAt, &img.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &img, nil
}

func bboxArg(r geometry.Rect) any {
	return pq.Float64Array{r.X, r.Y, r.W, r.H}
}

func bboxFromArray(a pq.Float64Array) geometry.Rect {
	if len(a) != 4 {
		return geometry.Rect{}
	}
	return geometry.Rect{X: a[0], Y: a[1], W: a[2], H: a[3]}
}

func (s *Store) getImageWhere(ctx context.Context, pred sq.Eq) (*database.Image, error) {
	row, err := queryRow(ctx, s.pool.db, psql.Select(imageColumns...).From("images").Where(pred))
	if err != nil {
		return nil, err
	}
	img, err := scanImage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get image: %w", err)
	}
	return img, nil
}

// GetImage retrieves an image by ID, returns nil if not found.
func (s *Store) GetImage(ctx context.Context, id int64) (*database.Image, error) {
	return s.getImageWhere(ctx, sq.Eq{"id": id})
}

// GetImageByPath retrieves an image by path, returns nil if not found.
func (s *Store) GetImageByPath(ctx context.Context, path string) (*database.Image, error) {
	return s.getImageWhere(ctx, sq.Eq{"path": path})
}

// ListImageIDs returns all image IDs in ascending order.
func (s *Store) ListImageIDs(ctx context.Context) ([]int64, error) {
	rows, err := query(ctx, s.pool.db, psql.Select("id").From("images").OrderBy("id"))
	if err != nil {
		return nil, fmt.Errorf("list image ids: %w", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

// CountImages returns the number of images.
func (s *Store) CountImages(ctx context.Context) (int, error) {
	return s.count(ctx, "images")
}

// FindTagHits returns tags whose label contains term, ignoring case.
func (s *Store) FindTagHits(ctx context.Context, term string) ([]database.TagHit, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, nil
	}
	rows, err := query(ctx, s.pool.db, psql.Select("image_id", "label", "confidence").
		From("tags").
		Where(sq.ILike{"label": "%" + likeEscaper.Replace(term) + "%"}).
		OrderBy("image_id", "confidence DESC"))
	if err != nil {
		return nil, fmt.Errorf("find tags %q: %w", term, err)
	}
	defer rows.Close()

	var hits []database.TagHit
	for rows.Next() {
		var h database.TagHit
		if err := rows.Scan(&h.ImageID, &h.Label, &h.Confidence); err != nil {
			return nil, fmt.Errorf("scan tag hit: %w", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tag hits: %w", err)
	}
	return hits, nil
}

// GetAnnotations returns the tags, faces and description of an image.
func (s *Store) GetAnnotations(ctx context.Context, imageID int64) (*database.ImageAnnotations, error) {
	img, err := s.GetImage(ctx, imageID)
	if err != nil || img == nil {
		return nil, err
	}
	ann := &database.ImageAnnotations{ImageID: imageID, Description: img.Description}

	tagRows, err := query(ctx, s.pool.db, psql.Select("label", "confidence", "bbox").
		From("tags").
		Where(sq.Eq{"image_id": imageID}).
		OrderBy("id"))
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}
	defer tagRows.Close()
	for tagRows.Next() {
		tag := database.Tag{ImageID: imageID}
		var bbox pq.Float64Array
		if err := tagRows.Scan(&tag.Label, &tag.Confidence, &bbox); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tag.BBox = bboxFromArray(bbox)
		ann.Tags = append(ann.Tags, tag)
	}
	if err := tagRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}

	faceRows, err := query(ctx, s.pool.db, psql.Select("id", "face_index", "bbox", "confidence", "embedding", "person_id").
		From("faces").
		Where(sq.Eq{"image_id": imageID}).
		OrderBy("face_index"))
	if err != nil {
		return nil, fmt.Errorf("query faces: %w", err)
	}
	defer faceRows.Close()
	for faceRows.Next() {
		face := database.Face{ImageID: imageID}
		var bbox pq.Float64Array
		var emb *pgvector.Vector
		if err := faceRows.Scan(&face.ID, &face.FaceIndex, &bbox, &face.Confidence, &emb, &face.PersonID); err != nil {
			return nil, fmt.Errorf("scan face: %w", err)
		}
		face.BBox = bboxFromArray(bbox)
		if emb != nil {
			face.Embedding = emb.Slice()
		}
		ann.Faces = append(ann.Faces, face)
	}
	if err := faceRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate faces: %w", err)
	}
	return ann, nil
}

// LabelCounts returns per-label image counts, most frequent first.
func (s *Store) LabelCounts(ctx context.Context) ([]database.LabelCount, error) {
	rows, err := query(ctx, s.pool.db, psql.Select("label", "COUNT(DISTINCT image_id) AS n").
		From("tags").
		GroupBy("label").
		OrderBy("n DESC", "label"))
	if err != nil {
		return nil, fmt.Errorf("label counts: %w", err)
	}
	defer rows.Close()

	var counts []database.LabelCount
	for rows.Next() {
		var lc database.LabelCount
		if err := rows.Scan(&lc.Label, &lc.Count); err != nil {
			return nil, fmt.Errorf("scan label count: %w", err)
		}
		counts = append(counts, lc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate label counts: %w", err)
	}
	return counts, nil
}

// SaveImage inserts or updates an image keyed by path.
// Description and processing state of an existing row are kept.
func (s *Store) SaveImage(ctx context.Context, img *database.Image) error {
	if img.UID == "" {
		img.UID = uuid.NewString()
	}
	row, err := queryRow(ctx, s.pool.db, psql.Insert("images").
		Columns("uid", "path", "file_name", "file_size", "width", "height", "taken_at").
		Values(img.UID, img.Path, img.FileName, img.FileSize, img.Width, img.Height, img.TakenAt).
		Suffix(`ON CONFLICT (path) DO UPDATE SET
			file_name = EXCLUDED.file_name,
			file_size = EXCLUDED.file_size,
			width = EXCLUDED.width,
			height = EXCLUDED.height,
			taken_at = EXCLUDED.taken_at
		RETURNING id, uid, description, processed_at, created_at`))
	if err != nil {
		return err
	}
	if err := row.Scan(&img.ID, &img.UID, &img.Description, &img.ProcessedAt, &img.CreatedAt); err != nil {
		return fmt.Errorf("save image %s: %w", img.Path, err)
	}
	return nil
}

// ReplaceAnnotations swaps all tags and faces of an image in one transaction.
func (s *Store) ReplaceAnnotations(ctx context.Context, ann *database.ImageAnnotations) error {
	return s.pool.withTx(ctx, func(tx *sql.Tx) error {
		result, err := exec(ctx, tx, psql.Update("images").
			Set("description", ann.Description).
			Set("processed_at", sq.Expr("NOW()")).
			Where(sq.Eq{"id": ann.ImageID}))
		if err != nil {
			return fmt.Errorf("update image %d: %w", ann.ImageID, err)
		}
		if n, err := result.RowsAffected(); err != nil {
			return fmt.Errorf("rows affected: %w", err)
		} else if n == 0 {
			return database.ErrNotFound
		}

		if _, err := exec(ctx, tx, psql.Delete("tags").Where(sq.Eq{"image_id": ann.ImageID})); err != nil {
			return fmt.Errorf("delete tags: %w", err)
		}
		if _, err := exec(ctx, tx, psql.Delete("faces").Where(sq.Eq{"image_id": ann.ImageID})); err != nil {
			return fmt.Errorf("delete faces: %w", err)
		}

		if len(ann.Tags) > 0 {
			insert := psql.Insert("tags").Columns("image_id", "label", "confidence", "bbox")
			for _, tag := range ann.Tags {
				insert = insert.Values(ann.ImageID, tag.Label, tag.Confidence, bboxArg(tag.BBox))
			}
			if _, err := exec(ctx, tx, insert); err != nil {
				return fmt.Errorf("insert tags: %w", err)
			}
		}

		for i := range ann.Faces {
			f := &ann.Faces[i]
			row, err := queryRow(ctx, tx, psql.Insert("faces").
				Columns("image_id", "face_index", "bbox", "confidence", "embedding", "person_id").
				Values(ann.ImageID, f.FaceIndex, bboxArg(f.BBox), f.Confidence, vectorArg(f.Embedding), f.PersonID).
				Suffix("RETURNING id"))
			if err != nil {
				return err
			}
			if err := row.Scan(&f.ID); err != nil {
				return fmt.Errorf("insert face %d: %w", f.FaceIndex, err)
			}
			f.ImageID = ann.ImageID
		}
		return nil
	})
}
