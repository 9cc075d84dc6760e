package data

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cameraRows(cams ...*Camera) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "school_id", "nvr_id", "area_id", "name", "external_id", "channel_no",
		"stream_url", "stream_profile", "auto_generate_url", "protocol", "status",
		"is_active", "created_at", "updated_at",
	})
	for _, c := range cams {
		rows.AddRow(
			c.ID, c.SchoolID, c.NVRID, c.AreaID, c.Name, c.ExternalID, c.ChannelNo,
			c.StreamURL, c.StreamProfile, c.AutoGenerateURL, c.Protocol, c.Status,
			c.IsActive, c.CreatedAt, c.UpdatedAt,
		)
	}
	return rows
}

func sampleCamera() *Camera {
	nvrID := uuid.New()
	ch := 3
	ext := "GATE-3"
	return &Camera{
		ID:              uuid.New(),
		SchoolID:        uuid.New(),
		NVRID:           &nvrID,
		Name:            "Gate 3",
		ExternalID:      &ext,
		ChannelNo:       &ch,
		StreamProfile:   "main",
		AutoGenerateURL: true,
		Protocol:        "HYBRID",
		Status:          "UNKNOWN",
		IsActive:        true,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
}

func TestCameraCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	c := sampleCamera()
	mock.ExpectQuery("INSERT INTO cameras").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(uuid.New(), time.Now(), time.Now()))

	m := CameraModel{DB: db}
	require.NoError(t, m.Create(context.Background(), c))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCameraGetByIDNullFields(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	c := sampleCamera()
	c.NVRID = nil
	c.ExternalID = nil
	c.ChannelNo = nil
	c.StreamURL = nil

	mock.ExpectQuery("SELECT (.+) FROM cameras").
		WithArgs(c.ID).
		WillReturnRows(cameraRows(c))

	m := CameraModel{DB: db}
	got, err := m.GetByID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Nil(t, got.NVRID)
	assert.Nil(t, got.ExternalID)
	assert.Nil(t, got.ChannelNo)
	assert.Nil(t, got.StreamURL)
}

func TestCameraListActiveByNVR(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	nvrID := uuid.New()
	c1 := sampleCamera()
	c2 := sampleCamera()
	mock.ExpectQuery("SELECT (.+) FROM cameras").
		WithArgs(nvrID).
		WillReturnRows(cameraRows(c1, c2))

	m := CameraModel{DB: db}
	cams, err := m.ListActiveByNVR(context.Background(), nvrID)
	require.NoError(t, err)
	assert.Len(t, cams, 2)
}

func TestCameraGetByNVRAndChannelNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	nvrID := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM cameras").
		WithArgs(nvrID, 7).
		WillReturnRows(cameraRows())

	m := CameraModel{DB: db}
	_, err = m.GetByNVRAndChannel(context.Background(), nvrID, 7)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestCameraSetActive(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ids := []uuid.UUID{uuid.New(), uuid.New()}
	mock.ExpectExec("UPDATE cameras").
		WillReturnResult(sqlmock.NewResult(0, 2))

	m := CameraModel{DB: db}
	require.NoError(t, m.SetActive(context.Background(), ids, false))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCameraSetActiveEmptyIsNoop(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	m := CameraModel{DB: db}
	require.NoError(t, m.SetActive(context.Background(), nil, true))
	assert.NoError(t, mock.ExpectationsWereMet())
}
