package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type NVRModel struct {
	DB DBTX
}

const nvrColumns = `id, school_id, name, host, http_port, onvif_port, rtsp_port,
	username, password_encrypted, vendor, status, health_summary, last_checked_at,
	last_sync_status, last_sync_error, last_sync_at,
	created_at, updated_at`

func (m NVRModel) Create(ctx context.Context, nvr *NVR) error {
	query := `
		INSERT INTO nvrs (school_id, name, host, http_port, onvif_port, rtsp_port, username, password_encrypted, vendor, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`

	err := m.DB.QueryRowContext(ctx, query,
		nvr.SchoolID, nvr.Name, nvr.Host, nvr.HTTPPort, nvr.OnvifPort, nvr.RTSPPort,
		nvr.Username, nvr.PasswordEncrypted, nvr.Vendor, nvr.Status,
	).Scan(&nvr.ID, &nvr.CreatedAt, &nvr.UpdatedAt)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}

func scanNVR(row interface{ Scan(...any) error }) (*NVR, error) {
	var n NVR
	var vendor, summary, syncStatus, syncErr sql.NullString
	var checkedAt, syncedAt sql.NullTime

	err := row.Scan(
		&n.ID, &n.SchoolID, &n.Name, &n.Host, &n.HTTPPort, &n.OnvifPort, &n.RTSPPort,
		&n.Username, &n.PasswordEncrypted, &vendor, &n.Status, &summary, &checkedAt,
		&syncStatus, &syncErr, &syncedAt,
		&n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if vendor.Valid {
		n.Vendor = &vendor.String
	}
	if summary.Valid {
		n.HealthSummary = &summary.String
	}
	if checkedAt.Valid {
		n.LastCheckedAt = &checkedAt.Time
	}
	if syncStatus.Valid {
		n.LastSyncStatus = &syncStatus.String
	}
	if syncErr.Valid {
		n.LastSyncError = &syncErr.String
	}
	if syncedAt.Valid {
		n.LastSyncAt = &syncedAt.Time
	}
	return &n, nil
}

func (m NVRModel) GetByID(ctx context.Context, id uuid.UUID) (*NVR, error) {
	query := fmt.Sprintf(`SELECT %s FROM nvrs WHERE id = $1 AND deleted_at IS NULL`, nvrColumns)

	nvr, err := scanNVR(m.DB.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return nvr, nil
}

func (m NVRModel) ListBySchool(ctx context.Context, schoolID uuid.UUID, filter NVRFilter, limit, offset int) ([]*NVR, int, error) {
	where := "WHERE school_id = $1 AND deleted_at IS NULL"
	args := []any{schoolID}
	nextArg := 2

	if filter.Vendor != nil {
		where += fmt.Sprintf(" AND vendor = $%d", nextArg)
		args = append(args, *filter.Vendor)
		nextArg++
	}
	if filter.Status != nil {
		where += fmt.Sprintf(" AND status = $%d", nextArg)
		args = append(args, *filter.Status)
		nextArg++
	}
	if filter.Query != "" {
		where += fmt.Sprintf(" AND (name ILIKE '%%' || $%d || '%%' OR host ILIKE '%%' || $%d || '%%')", nextArg, nextArg)
		args = append(args, filter.Query)
		nextArg++
	}

	var total int
	countQuery := "SELECT count(*) FROM nvrs " + where
	if err := m.DB.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT %s FROM nvrs
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, nvrColumns, where, nextArg, nextArg+1)
	args = append(args, limit, offset)

	rows, err := m.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var nvrs []*NVR
	for rows.Next() {
		n, err := scanNVR(rows)
		if err != nil {
			return nil, 0, err
		}
		nvrs = append(nvrs, n)
	}
	return nvrs, total, rows.Err()
}

func (m NVRModel) ListAll(ctx context.Context) ([]*NVR, error) {
	query := fmt.Sprintf(`SELECT %s FROM nvrs WHERE deleted_at IS NULL`, nvrColumns)

	rows, err := m.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nvrs []*NVR
	for rows.Next() {
		n, err := scanNVR(rows)
		if err != nil {
			return nil, err
		}
		nvrs = append(nvrs, n)
	}
	return nvrs, rows.Err()
}

func (m NVRModel) Update(ctx context.Context, nvr *NVR) error {
	query := `
		UPDATE nvrs
		SET name = $1, host = $2, http_port = $3, onvif_port = $4, rtsp_port = $5,
			username = $6, password_encrypted = $7, vendor = $8,
			updated_at = (NOW() AT TIME ZONE 'UTC')
		WHERE id = $9 AND deleted_at IS NULL
		RETURNING updated_at`

	err := m.DB.QueryRowContext(ctx, query,
		nvr.Name, nvr.Host, nvr.HTTPPort, nvr.OnvifPort, nvr.RTSPPort,
		nvr.Username, nvr.PasswordEncrypted, nvr.Vendor, nvr.ID,
	).Scan(&nvr.UpdatedAt)
	if err == sql.ErrNoRows {
		return ErrRecordNotFound
	}
	return err
}

func (m NVRModel) UpdateHealth(ctx context.Context, id uuid.UUID, status, summary string, checkedAt time.Time) error {
	query := `
		UPDATE nvrs
		SET status = $1, health_summary = $2, last_checked_at = $3,
			updated_at = (NOW() AT TIME ZONE 'UTC')
		WHERE id = $4 AND deleted_at IS NULL`

	result, err := m.DB.ExecContext(ctx, query, status, summary, checkedAt, id)
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

func (m NVRModel) UpdateSyncStatus(ctx context.Context, id uuid.UUID, status string, message *string, syncedAt time.Time) error {
	query := `
		UPDATE nvrs
		SET last_sync_status = $1, last_sync_error = $2, last_sync_at = $3,
			updated_at = (NOW() AT TIME ZONE 'UTC')
		WHERE id = $4 AND deleted_at IS NULL`

	result, err := m.DB.ExecContext(ctx, query, status, message, syncedAt, id)
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

func (m NVRModel) Delete(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE nvrs
		SET deleted_at = (NOW() AT TIME ZONE 'UTC')
		WHERE id = $1 AND deleted_at IS NULL`

	result, err := m.DB.ExecContext(ctx, query, id)
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
