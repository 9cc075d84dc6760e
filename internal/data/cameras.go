package data

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type CameraModel struct {
	DB DBTX
}

const cameraColumns = `id, school_id, nvr_id, area_id, name, external_id, channel_no,
	stream_url, stream_profile, auto_generate_url, protocol, status, is_active,
	created_at, updated_at`

func (m CameraModel) Create(ctx context.Context, c *Camera) error {
	query := `
		INSERT INTO cameras (school_id, nvr_id, area_id, name, external_id, channel_no,
			stream_url, stream_profile, auto_generate_url, protocol, status, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at`

	err := m.DB.QueryRowContext(ctx, query,
		c.SchoolID, c.NVRID, c.AreaID, c.Name, c.ExternalID, c.ChannelNo,
		c.StreamURL, c.StreamProfile, c.AutoGenerateURL, c.Protocol, c.Status, c.IsActive,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}

func scanCamera(row interface{ Scan(...any) error }) (*Camera, error) {
	var c Camera
	var nvrID, areaID uuid.NullUUID
	var externalID, streamURL sql.NullString
	var channelNo sql.NullInt64

	err := row.Scan(
		&c.ID, &c.SchoolID, &nvrID, &areaID, &c.Name, &externalID, &channelNo,
		&streamURL, &c.StreamProfile, &c.AutoGenerateURL, &c.Protocol, &c.Status, &c.IsActive,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if nvrID.Valid {
		c.NVRID = &nvrID.UUID
	}
	if areaID.Valid {
		c.AreaID = &areaID.UUID
	}
	if externalID.Valid {
		c.ExternalID = &externalID.String
	}
	if channelNo.Valid {
		n := int(channelNo.Int64)
		c.ChannelNo = &n
	}
	if streamURL.Valid {
		c.StreamURL = &streamURL.String
	}
	return &c, nil
}

func (m CameraModel) GetByID(ctx context.Context, id uuid.UUID) (*Camera, error) {
	query := fmt.Sprintf(`SELECT %s FROM cameras WHERE id = $1 AND deleted_at IS NULL`, cameraColumns)

	c, err := scanCamera(m.DB.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (m CameraModel) ListBySchool(ctx context.Context, schoolID uuid.UUID, filter CameraFilter, limit, offset int) ([]*Camera, int, error) {
	where := "WHERE school_id = $1 AND deleted_at IS NULL"
	args := []any{schoolID}
	nextArg := 2

	if filter.NVRID != nil {
		where += fmt.Sprintf(" AND nvr_id = $%d", nextArg)
		args = append(args, *filter.NVRID)
		nextArg++
	}
	if filter.AreaID != nil {
		where += fmt.Sprintf(" AND area_id = $%d", nextArg)
		args = append(args, *filter.AreaID)
		nextArg++
	}
	if filter.IsActive != nil {
		where += fmt.Sprintf(" AND is_active = $%d", nextArg)
		args = append(args, *filter.IsActive)
		nextArg++
	}
	if filter.Status != nil {
		where += fmt.Sprintf(" AND status = $%d", nextArg)
		args = append(args, *filter.Status)
		nextArg++
	}
	if filter.Query != "" {
		where += fmt.Sprintf(" AND (name ILIKE '%%' || $%d || '%%' OR external_id ILIKE '%%' || $%d || '%%')", nextArg, nextArg)
		args = append(args, filter.Query)
		nextArg++
	}

	var total int
	countQuery := "SELECT count(*) FROM cameras " + where
	if err := m.DB.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT %s FROM cameras
		%s
		ORDER BY channel_no ASC NULLS LAST, created_at ASC
		LIMIT $%d OFFSET $%d`, cameraColumns, where, nextArg, nextArg+1)
	args = append(args, limit, offset)

	rows, err := m.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var cameras []*Camera
	for rows.Next() {
		c, err := scanCamera(rows)
		if err != nil {
			return nil, 0, err
		}
		cameras = append(cameras, c)
	}
	return cameras, total, rows.Err()
}

func (m CameraModel) listActive(ctx context.Context, column string, id uuid.UUID) ([]*Camera, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM cameras
		WHERE %s = $1 AND is_active = TRUE AND deleted_at IS NULL
		ORDER BY school_id ASC, channel_no ASC NULLS LAST`, cameraColumns, column)

	rows, err := m.DB.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cameras []*Camera
	for rows.Next() {
		c, err := scanCamera(rows)
		if err != nil {
			return nil, err
		}
		cameras = append(cameras, c)
	}
	return cameras, rows.Err()
}

func (m CameraModel) ListActiveByNVR(ctx context.Context, nvrID uuid.UUID) ([]*Camera, error) {
	return m.listActive(ctx, "nvr_id", nvrID)
}

func (m CameraModel) ListActiveBySchool(ctx context.Context, schoolID uuid.UUID) ([]*Camera, error) {
	return m.listActive(ctx, "school_id", schoolID)
}

func (m CameraModel) GetByNVRAndChannel(ctx context.Context, nvrID uuid.UUID, channelNo int) (*Camera, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM cameras
		WHERE nvr_id = $1 AND channel_no = $2 AND deleted_at IS NULL`, cameraColumns)

	c, err := scanCamera(m.DB.QueryRowContext(ctx, query, nvrID, channelNo))
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (m CameraModel) GetByNVRAndExternalID(ctx context.Context, nvrID uuid.UUID, externalID string) (*Camera, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM cameras
		WHERE nvr_id = $1 AND external_id = $2 AND deleted_at IS NULL`, cameraColumns)

	c, err := scanCamera(m.DB.QueryRowContext(ctx, query, nvrID, externalID))
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (m CameraModel) Update(ctx context.Context, c *Camera) error {
	query := `
		UPDATE cameras
		SET nvr_id = $1, area_id = $2, name = $3, external_id = $4, channel_no = $5,
			stream_url = $6, stream_profile = $7, auto_generate_url = $8,
			protocol = $9, status = $10, is_active = $11,
			updated_at = (NOW() AT TIME ZONE 'UTC')
		WHERE id = $12 AND deleted_at IS NULL
		RETURNING updated_at`

	err := m.DB.QueryRowContext(ctx, query,
		c.NVRID, c.AreaID, c.Name, c.ExternalID, c.ChannelNo,
		c.StreamURL, c.StreamProfile, c.AutoGenerateURL,
		c.Protocol, c.Status, c.IsActive, c.ID,
	).Scan(&c.UpdatedAt)
	if err == sql.ErrNoRows {
		return ErrRecordNotFound
	}
	return err
}

func (m CameraModel) SetActive(ctx context.Context, ids []uuid.UUID, active bool) error {
	if len(ids) == 0 {
		return nil
	}
	query := `
		UPDATE cameras
		SET is_active = $1, updated_at = (NOW() AT TIME ZONE 'UTC')
		WHERE id = ANY($2) AND deleted_at IS NULL`

	_, err := m.DB.ExecContext(ctx, query, active, pq.Array(ids))
	return err
}

func (m CameraModel) Delete(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE cameras
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
