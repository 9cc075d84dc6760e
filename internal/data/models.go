package data

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrDuplicate      = errors.New("duplicate record")
)

// DBTX is a common interface for *sql.DB and *sql.Tx
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type School struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NVR is a recorder endpoint. PasswordEncrypted is the AES-GCM payload;
// only the nvr service decrypts it, and it never serializes.
type NVR struct {
	ID                uuid.UUID  `json:"id"`
	SchoolID          uuid.UUID  `json:"school_id"`
	Name              string     `json:"name"`
	Host              string     `json:"host"`
	HTTPPort          int        `json:"http_port"`
	OnvifPort         int        `json:"onvif_port"`
	RTSPPort          int        `json:"rtsp_port"`
	Username          string     `json:"username"`
	PasswordEncrypted string     `json:"-"`
	Vendor            *string    `json:"vendor,omitempty"`
	Status            string     `json:"status"` // unknown, ok, partial, offline
	HealthSummary     *string    `json:"health_summary,omitempty"`
	LastCheckedAt     *time.Time `json:"last_checked_at,omitempty"`
	LastSyncStatus    *string    `json:"last_sync_status,omitempty"` // ok, error
	LastSyncError     *string    `json:"last_sync_error,omitempty"`
	LastSyncAt        *time.Time `json:"last_sync_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

type Camera struct {
	ID              uuid.UUID  `json:"id"`
	SchoolID        uuid.UUID  `json:"school_id"`
	NVRID           *uuid.UUID `json:"nvr_id,omitempty"`
	AreaID          *uuid.UUID `json:"area_id,omitempty"`
	Name            string     `json:"name"`
	ExternalID      *string    `json:"external_id,omitempty"`
	ChannelNo       *int       `json:"channel_no,omitempty"`
	StreamURL       *string    `json:"stream_url,omitempty"`
	StreamProfile   string     `json:"stream_profile"` // main, sub
	AutoGenerateURL bool       `json:"auto_generate_url"`
	Protocol        string     `json:"protocol"` // ONVIF, RTSP, HYBRID
	Status          string     `json:"status"`   // ONLINE, OFFLINE, UNKNOWN
	IsActive        bool       `json:"is_active"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// CameraArea groups cameras by physical zone (gate, corridor, yard).
// ExternalID is the vendor/operator token batch sync upserts by.
type CameraArea struct {
	ID         uuid.UUID `json:"id"`
	SchoolID   uuid.UUID `json:"school_id"`
	Name       string    `json:"name"`
	ExternalID *string   `json:"external_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type NVRFilter struct {
	Vendor *string
	Status *string
	Query  string // name or host
}

type CameraFilter struct {
	NVRID    *uuid.UUID
	AreaID   *uuid.UUID
	IsActive *bool
	Status   *string
	Query    string
}

type SchoolRepository interface {
	Create(ctx context.Context, s *School) error
	GetByID(ctx context.Context, id uuid.UUID) (*School, error)
	List(ctx context.Context, limit, offset int) ([]*School, int, error)
}

type NVRRepository interface {
	Create(ctx context.Context, nvr *NVR) error
	GetByID(ctx context.Context, id uuid.UUID) (*NVR, error)
	ListBySchool(ctx context.Context, schoolID uuid.UUID, filter NVRFilter, limit, offset int) ([]*NVR, int, error)
	// ListAll feeds the background monitor. No school scoping.
	ListAll(ctx context.Context) ([]*NVR, error)
	Update(ctx context.Context, nvr *NVR) error
	UpdateHealth(ctx context.Context, id uuid.UUID, status, summary string, checkedAt time.Time) error
	// UpdateSyncStatus records the outcome of a batch sync; message is
	// nil on success.
	UpdateSyncStatus(ctx context.Context, id uuid.UUID, status string, message *string, syncedAt time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type CameraRepository interface {
	Create(ctx context.Context, c *Camera) error
	GetByID(ctx context.Context, id uuid.UUID) (*Camera, error)
	ListBySchool(ctx context.Context, schoolID uuid.UUID, filter CameraFilter, limit, offset int) ([]*Camera, int, error)
	// ListActiveByNVR returns active cameras ordered by channel for
	// config generation.
	ListActiveByNVR(ctx context.Context, nvrID uuid.UUID) ([]*Camera, error)
	ListActiveBySchool(ctx context.Context, schoolID uuid.UUID) ([]*Camera, error)
	GetByNVRAndChannel(ctx context.Context, nvrID uuid.UUID, channelNo int) (*Camera, error)
	GetByNVRAndExternalID(ctx context.Context, nvrID uuid.UUID, externalID string) (*Camera, error)
	Update(ctx context.Context, c *Camera) error
	SetActive(ctx context.Context, ids []uuid.UUID, active bool) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type CameraAreaRepository interface {
	Create(ctx context.Context, a *CameraArea) error
	GetByID(ctx context.Context, id uuid.UUID) (*CameraArea, error)
	GetBySchoolAndExternalID(ctx context.Context, schoolID uuid.UUID, externalID string) (*CameraArea, error)
	GetBySchoolAndName(ctx context.Context, schoolID uuid.UUID, name string) (*CameraArea, error)
	ListBySchool(ctx context.Context, schoolID uuid.UUID) ([]*CameraArea, error)
	Update(ctx context.Context, a *CameraArea) error
	Delete(ctx context.Context, id uuid.UUID) error
}
