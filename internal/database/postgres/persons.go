package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/kozaktomas/photo-gallery/internal/database"
	"github.com/pgvector/pgvector-go"
)

var personColumns = []string{"id", "name", "embedding", "face_count", "version", "created_at", "updated_at"}

// vectorArg converts an embedding to a query argument, NULL when empty.
func vectorArg(embedding []float32) any {
	if len(embedding) == 0 {
		return nil
	}
	return pgvector.NewVector(embedding)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPerson(row rowScanner) (*database.Person, error) {
	var p database.Person
	var emb *pgvector.Vector
	if err := row.Scan(&p.ID, &p.Name, &emb, &p.FaceCount, &p.Version, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if emb != nil {
		p.Embedding = emb.Slice()
	}
	return &p, nil
}

// GetPerson retrieves a person by ID, returns nil if not found.
func (s *Store) GetPerson(ctx context.Context, id int64) (*database.Person, error) {
	row, err := queryRow(ctx, s.pool.db, psql.Select(personColumns...).From("persons").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	p, err := scanPerson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get person %d: %w", id, err)
	}
	return p, nil
}

// ListPersons returns all persons ordered by ID.
func (s *Store) ListPersons(ctx context.Context) ([]database.Person, error) {
	rows, err := query(ctx, s.pool.db, psql.Select(personColumns...).From("persons").OrderBy("id"))
	if err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
	}
	defer rows.Close()

	var persons []database.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		persons = append(persons, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate persons: %w", err)
	}
	return persons, nil
}

// FindPersonsByName filters persons by name in Go so that diacritics folding
// matches the other backends.
func (s *Store) FindPersonsByName(ctx context.Context, term string) ([]database.Person, error) {
	persons, err := s.ListPersons(ctx)
	if err != nil {
		return nil, err
	}
	return database.FilterPersonsByName(persons, term), nil
}

// ImagesByPerson returns the sorted distinct image IDs with a face of the person.
func (s *Store) ImagesByPerson(ctx context.Context, personID int64) ([]int64, error) {
	rows, err := query(ctx, s.pool.db, psql.Select("DISTINCT image_id").
		From("faces").
		Where(sq.Eq{"person_id": personID}).
		OrderBy("image_id"))
	if err != nil {
		return nil, fmt.Errorf("images by person %d: %w", personID, err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

// CountPersons returns the number of persons.
func (s *Store) CountPersons(ctx context.Context) (int, error) {
	return s.count(ctx, "persons")
}

// CreatePerson inserts p and fills ID, Version and timestamps.
func (s *Store) CreatePerson(ctx context.Context, p *database.Person) error {
	return s.pool.withTx(ctx, func(tx *sql.Tx) error {
		row, err := queryRow(ctx, tx, psql.Insert("persons").
			Columns("name", "embedding", "face_count").
			Values(p.Name, vectorArg(p.Embedding), p.FaceCount).
			Suffix("RETURNING id, version, created_at, updated_at"))
		if err != nil {
			return err
		}
		if err := row.Scan(&p.ID, &p.Version, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return fmt.Errorf("insert person: %w", err)
		}

		if name := database.DefaultPersonName(p.Name, p.ID); name != p.Name {
			p.Name = name
			if _, err := exec(ctx, tx, psql.Update("persons").Set("name", p.Name).Where(sq.Eq{"id": p.ID})); err != nil {
				return fmt.Errorf("name person %d: %w", p.ID, err)
			}
		}
		return nil
	})
}

// UpdatePersonEmbedding writes a new average only if the stored version matches.
func (s *Store) UpdatePersonEmbedding(ctx context.Context, id int64, embedding []float32, faceCount int, expectedVersion int64) error {
	result, err := exec(ctx, s.pool.db, psql.Update("persons").
		Set("embedding", vectorArg(embedding)).
		Set("face_count", faceCount).
		Set("version", sq.Expr("version + 1")).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id, "version": expectedVersion}))
	if err != nil {
		return fmt.Errorf("update person %d: %w", id, err)
	}
	return s.checkPersonUpdate(ctx, result, id, database.ErrVersionConflict)
}

// RenamePerson changes the display name of a person.
func (s *Store) RenamePerson(ctx context.Context, id int64, name string) error {
	result, err := exec(ctx, s.pool.db, psql.Update("persons").
		Set("name", name).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("rename person %d: %w", id, err)
	}
	return s.checkPersonUpdate(ctx, result, id, database.ErrNotFound)
}

// checkPersonUpdate maps zero affected rows to ErrNotFound for a missing person
// and to onMiss otherwise.
func (s *Store) checkPersonUpdate(ctx context.Context, result sql.Result, id int64, onMiss error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	existing, err := s.GetPerson(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return database.ErrNotFound
	}
	return onMiss
}

func (s *Store) count(ctx context.Context, table string) (int, error) {
	row, err := queryRow(ctx, s.pool.db, psql.Select("COUNT(*)").From(table))
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

func scanIDs(rows *sql.Rows) ([]int64, error) {
	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ids: %w", err)
	}
	return ids, nil
}
