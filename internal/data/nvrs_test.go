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

func nvrRows(n *NVR) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "school_id", "name", "host", "http_port", "onvif_port", "rtsp_port",
		"username", "password_encrypted", "vendor", "status", "health_summary",
		"last_checked_at", "last_sync_status", "last_sync_error", "last_sync_at",
		"created_at", "updated_at",
	}).AddRow(
		n.ID, n.SchoolID, n.Name, n.Host, n.HTTPPort, n.OnvifPort, n.RTSPPort,
		n.Username, n.PasswordEncrypted, n.Vendor, n.Status, n.HealthSummary,
		n.LastCheckedAt, n.LastSyncStatus, n.LastSyncError, n.LastSyncAt,
		n.CreatedAt, n.UpdatedAt,
	)
}

func sampleNVR() *NVR {
	vendor := "hikvision"
	return &NVR{
		ID:                uuid.New(),
		SchoolID:          uuid.New(),
		Name:              "Main Building",
		Host:              "10.0.0.5",
		HTTPPort:          80,
		OnvifPort:         8000,
		RTSPPort:          554,
		Username:          "admin",
		PasswordEncrypted: "aXY=:Y3Q=:dGFn",
		Vendor:            &vendor,
		Status:            "unknown",
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}
}

func TestNVRCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	nvr := sampleNVR()
	mock.ExpectQuery("INSERT INTO nvrs").
		WithArgs(nvr.SchoolID, nvr.Name, nvr.Host, nvr.HTTPPort, nvr.OnvifPort,
			nvr.RTSPPort, nvr.Username, nvr.PasswordEncrypted, nvr.Vendor, nvr.Status).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(uuid.New(), time.Now(), time.Now()))

	m := NVRModel{DB: db}
	require.NoError(t, m.Create(context.Background(), nvr))
	assert.NotEqual(t, uuid.Nil, nvr.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNVRGetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	want := sampleNVR()
	mock.ExpectQuery("SELECT (.+) FROM nvrs").
		WithArgs(want.ID).
		WillReturnRows(nvrRows(want))

	m := NVRModel{DB: db}
	got, err := m.GetByID(context.Background(), want.ID)
	require.NoError(t, err)
	assert.Equal(t, want.Host, got.Host)
	assert.Equal(t, want.PasswordEncrypted, got.PasswordEncrypted)
	require.NotNil(t, got.Vendor)
	assert.Equal(t, "hikvision", *got.Vendor)
	assert.Nil(t, got.LastCheckedAt)
}

func TestNVRGetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	id := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM nvrs").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	m := NVRModel{DB: db}
	_, err = m.GetByID(context.Background(), id)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestNVRListBySchoolAppliesFilters(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	schoolID := uuid.New()
	vendor := "dahua"

	mock.ExpectQuery("SELECT count").
		WithArgs(schoolID, vendor, "gate").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT (.+) FROM nvrs").
		WithArgs(schoolID, vendor, "gate", 20, 0).
		WillReturnRows(nvrRows(sampleNVR()))

	m := NVRModel{DB: db}
	nvrs, total, err := m.ListBySchool(context.Background(), schoolID,
		NVRFilter{Vendor: &vendor, Query: "gate"}, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, nvrs, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNVRUpdateHealth(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	id := uuid.New()
	now := time.Now()
	mock.ExpectExec("UPDATE nvrs").
		WithArgs("partial", "http:true onvif:true rtsp:false", now, id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	m := NVRModel{DB: db}
	require.NoError(t, m.UpdateHealth(context.Background(), id, "partial",
		"http:true onvif:true rtsp:false", now))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNVRUpdateSyncStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	id := uuid.New()
	now := time.Now()
	msg := "camera name required"
	mock.ExpectExec("UPDATE nvrs").
		WithArgs("error", &msg, now, id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	m := NVRModel{DB: db}
	require.NoError(t, m.UpdateSyncStatus(context.Background(), id, "error", &msg, now))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNVRDeleteNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	id := uuid.New()
	mock.ExpectExec("UPDATE nvrs").
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	m := NVRModel{DB: db}
	assert.ErrorIs(t, m.Delete(context.Background(), id), ErrRecordNotFound)
}
