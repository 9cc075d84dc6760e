package data

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type CameraAreaModel struct {
	DB DBTX
}

const areaColumns = `id, school_id, name, external_id, created_at, updated_at`

func scanArea(row interface{ Scan(...any) error }) (*CameraArea, error) {
	var a CameraArea
	var externalID sql.NullString

	err := row.Scan(&a.ID, &a.SchoolID, &a.Name, &externalID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if externalID.Valid {
		a.ExternalID = &externalID.String
	}
	return &a, nil
}

func (m CameraAreaModel) Create(ctx context.Context, a *CameraArea) error {
	query := `
		INSERT INTO camera_areas (school_id, name, external_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`

	err := m.DB.QueryRowContext(ctx, query, a.SchoolID, a.Name, a.ExternalID).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}

func (m CameraAreaModel) GetByID(ctx context.Context, id uuid.UUID) (*CameraArea, error) {
	query := `SELECT ` + areaColumns + ` FROM camera_areas WHERE id = $1`

	a, err := scanArea(m.DB.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (m CameraAreaModel) GetBySchoolAndExternalID(ctx context.Context, schoolID uuid.UUID, externalID string) (*CameraArea, error) {
	query := `SELECT ` + areaColumns + ` FROM camera_areas WHERE school_id = $1 AND external_id = $2`

	a, err := scanArea(m.DB.QueryRowContext(ctx, query, schoolID, externalID))
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (m CameraAreaModel) GetBySchoolAndName(ctx context.Context, schoolID uuid.UUID, name string) (*CameraArea, error) {
	query := `SELECT ` + areaColumns + ` FROM camera_areas WHERE school_id = $1 AND name = $2`

	a, err := scanArea(m.DB.QueryRowContext(ctx, query, schoolID, name))
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (m CameraAreaModel) ListBySchool(ctx context.Context, schoolID uuid.UUID) ([]*CameraArea, error) {
	query := `
		SELECT ` + areaColumns + `
		FROM camera_areas
		WHERE school_id = $1
		ORDER BY name ASC`

	rows, err := m.DB.QueryContext(ctx, query, schoolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var areas []*CameraArea
	for rows.Next() {
		a, err := scanArea(rows)
		if err != nil {
			return nil, err
		}
		areas = append(areas, a)
	}
	return areas, rows.Err()
}

func (m CameraAreaModel) Update(ctx context.Context, a *CameraArea) error {
	query := `
		UPDATE camera_areas
		SET name = $1, external_id = $2, updated_at = (NOW() AT TIME ZONE 'UTC')
		WHERE id = $3
		RETURNING updated_at`

	err := m.DB.QueryRowContext(ctx, query, a.Name, a.ExternalID, a.ID).Scan(&a.UpdatedAt)
	if err == sql.ErrNoRows {
		return ErrRecordNotFound
	}
	return err
}

func (m CameraAreaModel) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := m.DB.ExecContext(ctx, `DELETE FROM camera_areas WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrRecordNotFound
	}
	return nil
}
