package nvr

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/technoclass/campus-vms/internal/data"
	"github.com/technoclass/campus-vms/internal/metrics"
	"github.com/technoclass/campus-vms/internal/rtsp"
)

// AreaSyncInput is one area row from an operator export.
type AreaSyncInput struct {
	Name       string  `json:"name"`
	ExternalID *string `json:"external_id,omitempty"`
}

// CameraSyncInput is one camera row from an operator export. Cameras
// are keyed by external ID when present, by channel number otherwise.
type CameraSyncInput struct {
	Name           string     `json:"name"`
	ExternalID     *string    `json:"external_id,omitempty"`
	ChannelNo      *int       `json:"channel_no,omitempty"`
	StreamURL      *string    `json:"stream_url,omitempty"`
	Status         string     `json:"status,omitempty"`
	IsActive       *bool      `json:"is_active,omitempty"`
	AreaID         *uuid.UUID `json:"area_id,omitempty"`
	AreaExternalID *string    `json:"area_external_id,omitempty"`
}

type BatchSyncInput struct {
	Areas   []AreaSyncInput   `json:"areas,omitempty"`
	Cameras []CameraSyncInput `json:"cameras,omitempty"`
}

type BatchSyncResult struct {
	AreasCreated   int `json:"areas_created"`
	AreasUpdated   int `json:"areas_updated"`
	CamerasCreated int `json:"cameras_created"`
	CamerasUpdated int `json:"cameras_updated"`
}

// BatchSync upserts operator-supplied areas and cameras under one NVR
// and records the outcome on the NVR's last_sync_* columns. Rows apply
// one by one; the first failure stops the batch and is written to
// last_sync_error so dashboards can surface it.
func (s *Service) BatchSync(ctx context.Context, id uuid.UUID, in BatchSyncInput) (*BatchSyncResult, error) {
	nvr, err := s.nvrs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(in.Areas) == 0 && len(in.Cameras) == 0 {
		return nil, badInput("areas or cameras required")
	}

	result, err := s.applyBatch(ctx, nvr, in)
	now := time.Now().UTC()
	if err != nil {
		msg := err.Error()
		if serr := s.nvrs.UpdateSyncStatus(ctx, nvr.ID, "error", &msg, now); serr != nil {
			s.logger.Printf("nvr: record sync failure for %s failed: %v", nvr.ID, serr)
		}
		metrics.BatchSyncTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	if serr := s.nvrs.UpdateSyncStatus(ctx, nvr.ID, "ok", nil, now); serr != nil {
		s.logger.Printf("nvr: record sync success for %s failed: %v", nvr.ID, serr)
	}
	metrics.BatchSyncTotal.WithLabelValues("ok").Inc()

	s.publish(&Event{
		Type:     EventCamerasSynced,
		SchoolID: nvr.SchoolID.String(),
		NVRID:    nvr.ID.String(),
		Detail: fmt.Sprintf("areas=%d/%d cameras=%d/%d",
			result.AreasCreated, result.AreasUpdated, result.CamerasCreated, result.CamerasUpdated),
		OccurredAt: now,
	})
	return result, nil
}

func (s *Service) applyBatch(ctx context.Context, nvr *data.NVR, in BatchSyncInput) (*BatchSyncResult, error) {
	result := &BatchSyncResult{}

	// Areas first so cameras can reference them by external ID.
	areaByExternal := make(map[string]uuid.UUID)
	for _, a := range in.Areas {
		area, created, err := s.upsertArea(ctx, nvr.SchoolID, a)
		if err != nil {
			return nil, err
		}
		if created {
			result.AreasCreated++
		} else {
			result.AreasUpdated++
		}
		if a.ExternalID != nil {
			areaByExternal[*a.ExternalID] = area.ID
		}
	}

	for _, c := range in.Cameras {
		created, err := s.upsertCamera(ctx, nvr, c, areaByExternal)
		if err != nil {
			return nil, err
		}
		if created {
			result.CamerasCreated++
		} else {
			result.CamerasUpdated++
		}
	}
	return result, nil
}

func (s *Service) upsertArea(ctx context.Context, schoolID uuid.UUID, in AreaSyncInput) (*data.CameraArea, bool, error) {
	if in.Name == "" {
		return nil, false, badInput("area name required")
	}

	var (
		existing *data.CameraArea
		err      error
	)
	if in.ExternalID != nil && *in.ExternalID != "" {
		existing, err = s.areas.GetBySchoolAndExternalID(ctx, schoolID, *in.ExternalID)
	} else {
		existing, err = s.areas.GetBySchoolAndName(ctx, schoolID, in.Name)
	}
	switch {
	case errors.Is(err, data.ErrRecordNotFound):
		area := &data.CameraArea{
			SchoolID:   schoolID,
			Name:       in.Name,
			ExternalID: in.ExternalID,
		}
		if err := s.areas.Create(ctx, area); err != nil {
			return nil, false, err
		}
		return area, true, nil
	case err != nil:
		return nil, false, err
	}

	existing.Name = in.Name
	if in.ExternalID != nil {
		existing.ExternalID = in.ExternalID
	}
	if err := s.areas.Update(ctx, existing); err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *Service) upsertCamera(ctx context.Context, nvr *data.NVR, in CameraSyncInput, areaByExternal map[string]uuid.UUID) (bool, error) {
	if in.Name == "" {
		return false, badInput("camera name required")
	}
	if in.Status != "" && !allowedStatuses[in.Status] {
		return false, badInput("invalid camera status")
	}
	if in.StreamURL != nil && rtsp.IsMasked(*in.StreamURL) {
		return false, badInput("masked stream url not allowed")
	}

	areaID := in.AreaID
	if areaID == nil && in.AreaExternalID != nil {
		if id, ok := areaByExternal[*in.AreaExternalID]; ok {
			resolved := id
			areaID = &resolved
		}
	}

	var (
		existing *data.Camera
		err      error
	)
	switch {
	case in.ExternalID != nil && *in.ExternalID != "":
		existing, err = s.cameras.GetByNVRAndExternalID(ctx, nvr.ID, *in.ExternalID)
	case in.ChannelNo != nil && *in.ChannelNo > 0:
		existing, err = s.cameras.GetByNVRAndChannel(ctx, nvr.ID, *in.ChannelNo)
	default:
		return false, badInput("camera externalId or channelNo required")
	}

	switch {
	case errors.Is(err, data.ErrRecordNotFound):
		camera := &data.Camera{
			SchoolID:        nvr.SchoolID,
			NVRID:           &nvr.ID,
			AreaID:          areaID,
			Name:            in.Name,
			ExternalID:      in.ExternalID,
			ChannelNo:       in.ChannelNo,
			StreamURL:       in.StreamURL,
			StreamProfile:   string(rtsp.ProfileMain),
			AutoGenerateURL: in.StreamURL == nil,
			Protocol:        "RTSP",
			Status:          stringOr(in.Status, "UNKNOWN"),
			IsActive:        in.IsActive == nil || *in.IsActive,
		}
		return true, s.cameras.Create(ctx, camera)
	case err != nil:
		return false, err
	}

	existing.Name = in.Name
	if in.ExternalID != nil {
		existing.ExternalID = in.ExternalID
	}
	if in.ChannelNo != nil {
		existing.ChannelNo = in.ChannelNo
	}
	if in.StreamURL != nil {
		existing.StreamURL = in.StreamURL
	}
	if areaID != nil {
		existing.AreaID = areaID
	}
	if in.Status != "" {
		existing.Status = in.Status
	}
	if in.IsActive != nil {
		existing.IsActive = *in.IsActive
	}
	return false, s.cameras.Update(ctx, existing)
}
