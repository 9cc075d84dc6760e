package data

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type SchoolModel struct {
	DB DBTX
}

func (m SchoolModel) Create(ctx context.Context, s *School) error {
	query := `
		INSERT INTO schools (name)
		VALUES ($1)
		RETURNING id, created_at, updated_at`

	err := m.DB.QueryRowContext(ctx, query, s.Name).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}

func (m SchoolModel) GetByID(ctx context.Context, id uuid.UUID) (*School, error) {
	query := `SELECT id, name, created_at, updated_at FROM schools WHERE id = $1`

	var s School
	err := m.DB.QueryRowContext(ctx, query, id).Scan(&s.ID, &s.Name, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (m SchoolModel) List(ctx context.Context, limit, offset int) ([]*School, int, error) {
	var total int
	if err := m.DB.QueryRowContext(ctx, `SELECT count(*) FROM schools`).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, name, created_at, updated_at
		FROM schools
		ORDER BY name ASC
		LIMIT $1 OFFSET $2`

	rows, err := m.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var schools []*School
	for rows.Next() {
		var s School
		if err := rows.Scan(&s.ID, &s.Name, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, 0, err
		}
		schools = append(schools, &s)
	}
	return schools, total, rows.Err()
}
