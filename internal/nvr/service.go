package nvr

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/technoclass/campus-vms/internal/crypto"
	"github.com/technoclass/campus-vms/internal/data"
	"github.com/technoclass/campus-vms/internal/health"
	"github.com/technoclass/campus-vms/internal/mediamtx"
	"github.com/technoclass/campus-vms/internal/metrics"
	"github.com/technoclass/campus-vms/internal/onvif"
	"github.com/technoclass/campus-vms/internal/rtsp"
)

var (
	ErrPasswordRequired = errors.New("nvr password required")
	// ErrNoStreamSource means the camera has neither a manual URL nor
	// enough NVR linkage to synthesize one.
	ErrNoStreamSource = errors.New("camera has no stream source")
)

// ValidationError marks caller-fixable input problems on NVR and
// camera operations. The API layer maps it to 400.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func badInput(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// Config carries the feature switches for the camera plane.
type Config struct {
	WebRTCBaseURL string
	HLSBaseURL    string
	// DeployEnabled gates the whole deploy surface.
	DeployEnabled bool
	// AllowRestartCommands additionally gates remote restart commands.
	AllowRestartCommands bool
}

// Service owns NVRs and cameras: CRUD with encrypted credentials,
// connectivity checks, ONVIF channel sync, stream URL resolution and
// MediaMTX config generation/deploy.
type Service struct {
	nvrs     data.NVRRepository
	cameras  data.CameraRepository
	areas    data.CameraAreaRepository
	box      *crypto.SecretBox
	onvif    *onvif.Client
	prober   *health.Prober
	executor *mediamtx.Executor

	publisher Publisher
	dedup     *EventDedup
	targets   *TargetCache

	cfgMu  sync.RWMutex
	cfg    Config
	logger *log.Logger
}

func NewService(
	nvrs data.NVRRepository,
	cameras data.CameraRepository,
	areas data.CameraAreaRepository,
	box *crypto.SecretBox,
	onvifClient *onvif.Client,
	prober *health.Prober,
	executor *mediamtx.Executor,
	cfg Config,
	logger *log.Logger,
) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		nvrs:     nvrs,
		cameras:  cameras,
		areas:    areas,
		box:      box,
		onvif:    onvifClient,
		prober:   prober,
		executor: executor,
		dedup:    NewEventDedup(1024, 5*time.Minute),
		cfg:      cfg,
		logger:   logger,
	}
}

// SetPublisher enables eventing. Safe to skip in tests and tools.
func (s *Service) SetPublisher(p Publisher) { s.publisher = p }

// SetTargetCache enables remembering the last deploy target per scope.
func (s *Service) SetTargetCache(c *TargetCache) { s.targets = c }

// UpdateConfig swaps the feature switches at runtime, used by the
// config file watcher.
func (s *Service) UpdateConfig(cfg Config) {
	s.cfgMu.Lock()
	s.cfg = cfg
	s.cfgMu.Unlock()
}

func (s *Service) config() Config {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg
}

func (s *Service) publish(event *Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(event); err != nil {
		s.logger.Printf("nvr: publish %s failed: %v", event.Type, err)
	}
}

// --- NVR CRUD ---

type NVRInput struct {
	Name      string  `json:"name"`
	Host      string  `json:"host"`
	HTTPPort  int     `json:"http_port"`
	OnvifPort int     `json:"onvif_port"`
	RTSPPort  int     `json:"rtsp_port"`
	Username  string  `json:"username"`
	Password  string  `json:"password"`
	Vendor    *string `json:"vendor,omitempty"`
}

func (in *NVRInput) validate(passwordRequired bool) error {
	if in.Name == "" {
		return badInput("nvr name required")
	}
	if in.Host == "" || !mediamtx.IsSafeHost(in.Host) {
		return badInput("invalid nvr host")
	}
	if in.Username == "" {
		return badInput("nvr username required")
	}
	if passwordRequired && in.Password == "" {
		return ErrPasswordRequired
	}
	for _, port := range []int{in.HTTPPort, in.OnvifPort, in.RTSPPort} {
		if port != 0 && !mediamtx.IsValidPort(port) {
			return badInput("invalid nvr port")
		}
	}
	return nil
}

func (s *Service) CreateNVR(ctx context.Context, schoolID uuid.UUID, in NVRInput) (*data.NVR, error) {
	if err := in.validate(true); err != nil {
		return nil, err
	}

	encrypted, err := s.box.Encrypt(in.Password)
	if err != nil {
		return nil, fmt.Errorf("encrypt nvr password: %w", err)
	}

	nvr := &data.NVR{
		SchoolID:          schoolID,
		Name:              in.Name,
		Host:              in.Host,
		HTTPPort:          portOr(in.HTTPPort, 80),
		OnvifPort:         portOr(in.OnvifPort, 8000),
		RTSPPort:          portOr(in.RTSPPort, 554),
		Username:          in.Username,
		PasswordEncrypted: encrypted,
		Vendor:            in.Vendor,
		Status:            "unknown",
	}
	if err := s.nvrs.Create(ctx, nvr); err != nil {
		return nil, err
	}

	s.publish(&Event{
		Type:       EventNVRCreated,
		SchoolID:   nvr.SchoolID.String(),
		NVRID:      nvr.ID.String(),
		OccurredAt: time.Now().UTC(),
	})
	return nvr, nil
}

func (s *Service) GetNVR(ctx context.Context, id uuid.UUID) (*data.NVR, error) {
	return s.nvrs.GetByID(ctx, id)
}

func (s *Service) ListNVRs(ctx context.Context, schoolID uuid.UUID, filter data.NVRFilter, limit, offset int) ([]*data.NVR, int, error) {
	return s.nvrs.ListBySchool(ctx, schoolID, filter, limit, offset)
}

// UpdateNVR applies in over the stored NVR. An empty password keeps
// the current credential.
func (s *Service) UpdateNVR(ctx context.Context, id uuid.UUID, in NVRInput) (*data.NVR, error) {
	if err := in.validate(false); err != nil {
		return nil, err
	}

	nvr, err := s.nvrs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	nvr.Name = in.Name
	nvr.Host = in.Host
	nvr.HTTPPort = portOr(in.HTTPPort, nvr.HTTPPort)
	nvr.OnvifPort = portOr(in.OnvifPort, nvr.OnvifPort)
	nvr.RTSPPort = portOr(in.RTSPPort, nvr.RTSPPort)
	nvr.Username = in.Username
	if in.Vendor != nil {
		nvr.Vendor = in.Vendor
	}
	if in.Password != "" {
		encrypted, err := s.box.Encrypt(in.Password)
		if err != nil {
			return nil, fmt.Errorf("encrypt nvr password: %w", err)
		}
		nvr.PasswordEncrypted = encrypted
	}

	if err := s.nvrs.Update(ctx, nvr); err != nil {
		return nil, err
	}

	s.publish(&Event{
		Type:       EventNVRUpdated,
		SchoolID:   nvr.SchoolID.String(),
		NVRID:      nvr.ID.String(),
		OccurredAt: time.Now().UTC(),
	})
	return nvr, nil
}

func (s *Service) DeleteNVR(ctx context.Context, id uuid.UUID) error {
	nvr, err := s.nvrs.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.nvrs.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(&Event{
		Type:       EventNVRDeleted,
		SchoolID:   nvr.SchoolID.String(),
		NVRID:      nvr.ID.String(),
		OccurredAt: time.Now().UTC(),
	})
	return nil
}

func (s *Service) password(nvr *data.NVR) (string, error) {
	return s.box.Decrypt(nvr.PasswordEncrypted)
}

func portOr(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}

// --- Connectivity ---

type HealthReport struct {
	NVRID     uuid.UUID       `json:"nvr_id"`
	Snapshot  health.Snapshot `json:"snapshot"`
	Verdict   health.Verdict  `json:"verdict"`
	CheckedAt time.Time       `json:"checked_at"`
}

// TestConnection probes the NVR's service ports, persists the result
// and publishes a health event for transitions.
func (s *Service) TestConnection(ctx context.Context, id uuid.UUID) (*HealthReport, error) {
	nvr, err := s.nvrs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.checkAndRecord(ctx, nvr), nil
}

func (s *Service) checkAndRecord(ctx context.Context, nvr *data.NVR) *HealthReport {
	snap := s.prober.CheckAll(ctx, health.Endpoint{
		Host:      nvr.Host,
		HTTPPort:  nvr.HTTPPort,
		OnvifPort: nvr.OnvifPort,
		RTSPPort:  nvr.RTSPPort,
	})
	verdict := snap.Verdict()
	now := time.Now().UTC()

	if err := s.nvrs.UpdateHealth(ctx, nvr.ID, string(verdict), snap.Summary(), now); err != nil {
		s.logger.Printf("nvr: persist health for %s failed: %v", nvr.ID, err)
	}
	metrics.NVRChecksTotal.WithLabelValues("success", string(verdict)).Inc()

	key := BuildDedupKey(nvr.ID.String(), EventHealthChanged, string(verdict), now)
	if !s.dedup.IsDuplicate(key) {
		s.publish(&Event{
			Type:       EventHealthChanged,
			SchoolID:   nvr.SchoolID.String(),
			NVRID:      nvr.ID.String(),
			Status:     string(verdict),
			Detail:     snap.Summary(),
			OccurredAt: now,
		})
	}

	return &HealthReport{NVRID: nvr.ID, Snapshot: snap, Verdict: verdict, CheckedAt: now}
}

// --- ONVIF ---

func (s *Service) onvifTarget(nvr *data.NVR) (onvif.Target, error) {
	password, err := s.password(nvr)
	if err != nil {
		return onvif.Target{}, err
	}
	return onvif.Target{
		Host:     nvr.Host,
		Port:     nvr.OnvifPort,
		Username: nvr.Username,
		Password: password,
	}, nil
}

func (s *Service) FetchDeviceInfo(ctx context.Context, id uuid.UUID) (onvif.DeviceInfo, error) {
	nvr, err := s.nvrs.GetByID(ctx, id)
	if err != nil {
		return onvif.DeviceInfo{}, err
	}
	target, err := s.onvifTarget(nvr)
	if err != nil {
		return onvif.DeviceInfo{}, err
	}
	return s.onvif.FetchDeviceInfo(ctx, target)
}

func (s *Service) FetchProfiles(ctx context.Context, id uuid.UUID) (onvif.ProfileSet, error) {
	nvr, err := s.nvrs.GetByID(ctx, id)
	if err != nil {
		return onvif.ProfileSet{}, err
	}
	target, err := s.onvifTarget(nvr)
	if err != nil {
		return onvif.ProfileSet{}, err
	}
	return s.fetchProfiles(ctx, target)
}

func (s *Service) fetchProfiles(ctx context.Context, target onvif.Target) (onvif.ProfileSet, error) {
	start := time.Now()
	set, err := s.onvif.FetchProfiles(ctx, target)
	metrics.OnvifFetchSeconds.Observe(time.Since(start).Seconds())
	return set, err
}

type SyncOptions struct {
	// OverwriteNames replaces existing camera names with profile names.
	OverwriteNames bool `json:"overwrite_names"`
	// DisableMissing deactivates cameras whose channel no longer
	// appears on the device.
	DisableMissing bool `json:"disable_missing"`
}

type SyncResult struct {
	Profiles int `json:"profiles"`
	Created  int `json:"created"`
	Updated  int `json:"updated"`
	Disabled int `json:"disabled"`
	// SkippedNoChannel counts streams whose URI carried no channel
	// number we could map.
	SkippedNoChannel int `json:"skipped_no_channel"`
}

// OnvifSync discovers device profiles and reconciles them with the
// camera table keyed by (nvr, channel).
func (s *Service) OnvifSync(ctx context.Context, id uuid.UUID, opts SyncOptions) (*SyncResult, error) {
	nvr, err := s.nvrs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	target, err := s.onvifTarget(nvr)
	if err != nil {
		return nil, err
	}

	set, err := s.fetchProfiles(ctx, target)
	if err != nil {
		metrics.OnvifSyncTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	result := &SyncResult{Profiles: len(set.Profiles)}
	seen := make(map[int]bool)

	for _, stream := range set.Streams {
		if stream.ChannelNo <= 0 {
			result.SkippedNoChannel++
			continue
		}
		if seen[stream.ChannelNo] {
			continue
		}
		seen[stream.ChannelNo] = true

		name := stream.Profile.Name
		if name == "" {
			name = fmt.Sprintf("Channel %d", stream.ChannelNo)
		}

		existing, err := s.cameras.GetByNVRAndChannel(ctx, nvr.ID, stream.ChannelNo)
		switch {
		case errors.Is(err, data.ErrRecordNotFound):
			channel := stream.ChannelNo
			camera := &data.Camera{
				SchoolID:        nvr.SchoolID,
				NVRID:           &nvr.ID,
				Name:            name,
				ChannelNo:       &channel,
				StreamProfile:   string(rtsp.ProfileMain),
				AutoGenerateURL: true,
				Protocol:        "ONVIF",
				Status:          "UNKNOWN",
				IsActive:        true,
			}
			if err := s.cameras.Create(ctx, camera); err != nil {
				s.logger.Printf("nvr: sync create channel %d failed: %v", stream.ChannelNo, err)
				continue
			}
			result.Created++
		case err != nil:
			metrics.OnvifSyncTotal.WithLabelValues("error").Inc()
			return nil, err
		case opts.OverwriteNames && existing.Name != name:
			existing.Name = name
			if err := s.cameras.Update(ctx, existing); err != nil {
				s.logger.Printf("nvr: sync rename channel %d failed: %v", stream.ChannelNo, err)
				continue
			}
			result.Updated++
		}
	}

	if opts.DisableMissing {
		active, err := s.cameras.ListActiveByNVR(ctx, nvr.ID)
		if err != nil {
			metrics.OnvifSyncTotal.WithLabelValues("error").Inc()
			return nil, err
		}
		var stale []uuid.UUID
		for _, c := range active {
			if c.ChannelNo != nil && !seen[*c.ChannelNo] {
				stale = append(stale, c.ID)
			}
		}
		if len(stale) > 0 {
			if err := s.cameras.SetActive(ctx, stale, false); err != nil {
				metrics.OnvifSyncTotal.WithLabelValues("error").Inc()
				return nil, err
			}
			result.Disabled = len(stale)
		}
	}

	metrics.OnvifSyncTotal.WithLabelValues("ok").Inc()
	s.publish(&Event{
		Type:       EventCamerasSynced,
		SchoolID:   nvr.SchoolID.String(),
		NVRID:      nvr.ID.String(),
		Detail:     fmt.Sprintf("created=%d updated=%d disabled=%d", result.Created, result.Updated, result.Disabled),
		OccurredAt: time.Now().UTC(),
	})
	return result, nil
}

// --- Cameras ---

type CameraInput struct {
	NVRID           *uuid.UUID `json:"nvr_id,omitempty"`
	AreaID          *uuid.UUID `json:"area_id,omitempty"`
	Name            string     `json:"name"`
	ExternalID      *string    `json:"external_id,omitempty"`
	ChannelNo       *int       `json:"channel_no,omitempty"`
	StreamURL       *string    `json:"stream_url,omitempty"`
	StreamProfile   string     `json:"stream_profile,omitempty"`
	AutoGenerateURL bool       `json:"auto_generate_url"`
	Protocol        string     `json:"protocol,omitempty"`
	Status          string     `json:"status,omitempty"`
	IsActive        *bool      `json:"is_active,omitempty"`
}

var (
	allowedProtocols = map[string]bool{"ONVIF": true, "RTSP": true, "HYBRID": true}
	allowedStatuses  = map[string]bool{"ONLINE": true, "OFFLINE": true, "UNKNOWN": true}
)

func (in *CameraInput) validate() error {
	if in.Name == "" {
		return badInput("camera name required")
	}
	if in.ChannelNo != nil && *in.ChannelNo <= 0 {
		return badInput("invalid channel number")
	}
	switch in.StreamProfile {
	case "", string(rtsp.ProfileMain), string(rtsp.ProfileSub):
	default:
		return badInput("invalid stream profile")
	}
	if in.Protocol != "" && !allowedProtocols[in.Protocol] {
		return badInput("invalid protocol")
	}
	if in.Status != "" && !allowedStatuses[in.Status] {
		return badInput("invalid status")
	}
	// A masked URL is display output; writing it back would corrupt
	// the stored credential.
	if in.StreamURL != nil && rtsp.IsMasked(*in.StreamURL) {
		return badInput("masked stream url not allowed")
	}
	return nil
}

func (s *Service) CreateCamera(ctx context.Context, schoolID uuid.UUID, in CameraInput) (*data.Camera, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	camera := &data.Camera{
		SchoolID:        schoolID,
		NVRID:           in.NVRID,
		AreaID:          in.AreaID,
		Name:            in.Name,
		ExternalID:      in.ExternalID,
		ChannelNo:       in.ChannelNo,
		StreamURL:       in.StreamURL,
		StreamProfile:   stringOr(in.StreamProfile, string(rtsp.ProfileMain)),
		AutoGenerateURL: in.AutoGenerateURL,
		Protocol:        stringOr(in.Protocol, "RTSP"),
		Status:          stringOr(in.Status, "UNKNOWN"),
		IsActive:        in.IsActive == nil || *in.IsActive,
	}
	if err := s.cameras.Create(ctx, camera); err != nil {
		return nil, err
	}
	return camera, nil
}

func (s *Service) GetCamera(ctx context.Context, id uuid.UUID) (*data.Camera, error) {
	return s.cameras.GetByID(ctx, id)
}

func (s *Service) ListCameras(ctx context.Context, schoolID uuid.UUID, filter data.CameraFilter, limit, offset int) ([]*data.Camera, int, error) {
	return s.cameras.ListBySchool(ctx, schoolID, filter, limit, offset)
}

func (s *Service) UpdateCamera(ctx context.Context, id uuid.UUID, in CameraInput) (*data.Camera, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	camera, err := s.cameras.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	camera.NVRID = in.NVRID
	camera.AreaID = in.AreaID
	camera.Name = in.Name
	camera.ExternalID = in.ExternalID
	camera.ChannelNo = in.ChannelNo
	camera.StreamURL = in.StreamURL
	camera.StreamProfile = stringOr(in.StreamProfile, camera.StreamProfile)
	camera.AutoGenerateURL = in.AutoGenerateURL
	camera.Protocol = stringOr(in.Protocol, camera.Protocol)
	camera.Status = stringOr(in.Status, camera.Status)
	if in.IsActive != nil {
		camera.IsActive = *in.IsActive
	}

	if err := s.cameras.Update(ctx, camera); err != nil {
		return nil, err
	}
	return camera, nil
}

func (s *Service) DeleteCamera(ctx context.Context, id uuid.UUID) error {
	return s.cameras.Delete(ctx, id)
}

func stringOr(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

// --- Stream resolution ---

// ResolveStreamURL returns the full RTSP URL for a camera and how it
// was obtained: "manual" or "auto:<vendor>". The returned URL carries
// cleartext credentials.
func (s *Service) ResolveStreamURL(ctx context.Context, cameraID uuid.UUID) (string, string, error) {
	camera, err := s.cameras.GetByID(ctx, cameraID)
	if err != nil {
		return "", "", err
	}

	if camera.StreamURL != nil && *camera.StreamURL != "" {
		metrics.StreamResolutionsTotal.WithLabelValues("manual").Inc()
		return *camera.StreamURL, "manual", nil
	}

	if !camera.AutoGenerateURL || camera.NVRID == nil || camera.ChannelNo == nil || *camera.ChannelNo <= 0 {
		return "", "", ErrNoStreamSource
	}

	nvr, err := s.nvrs.GetByID(ctx, *camera.NVRID)
	if err != nil {
		return "", "", err
	}
	if nvr.Host == "" || nvr.RTSPPort == 0 || nvr.Username == "" {
		return "", "", ErrNoStreamSource
	}

	password, err := s.password(nvr)
	if err != nil {
		return "", "", err
	}

	vendor := rtsp.VendorHikvision
	if nvr.Vendor != nil && *nvr.Vendor != "" {
		vendor = rtsp.Vendor(strings.ToLower(*nvr.Vendor))
	}
	profile := rtsp.Profile(stringOr(camera.StreamProfile, string(rtsp.ProfileMain)))

	url := rtsp.Build(vendor, rtsp.Endpoint{
		Host:     nvr.Host,
		RTSPPort: nvr.RTSPPort,
		Username: nvr.Username,
		Password: password,
	}, *camera.ChannelNo, profile)

	source := "auto:" + string(vendor)
	metrics.StreamResolutionsTotal.WithLabelValues(source).Inc()
	return url, source, nil
}

type StreamInfo struct {
	CameraID   uuid.UUID `json:"camera_id"`
	PathKey    string    `json:"path_key"`
	WHEPURL    string    `json:"whep_url"`
	HLSURL     string    `json:"hls_url,omitempty"`
	RTSPMasked string    `json:"rtsp_url"`
	Source     string    `json:"source"`
	Codec      string    `json:"codec"`
	// Player is the suggested playback path: "webrtc" for H.264,
	// "hls" for H.265 which browsers cannot decode over WebRTC.
	Player string `json:"recommended_player"`

	// RTSPFull carries cleartext credentials. The API layer exposes it
	// to admin roles only; it is never serialized by default.
	RTSPFull string `json:"-"`
}

// GetStreamInfo returns playback coordinates for a camera. The RTSP
// URL in the serialized form is masked; the cleartext form is carried
// separately for callers allowed to see it.
func (s *Service) GetStreamInfo(ctx context.Context, cameraID uuid.UUID) (*StreamInfo, error) {
	camera, err := s.cameras.GetByID(ctx, cameraID)
	if err != nil {
		return nil, err
	}

	url, source, err := s.ResolveStreamURL(ctx, cameraID)
	if err != nil {
		return nil, err
	}

	codec := "H.265"
	player := "hls"
	if rtsp.Profile(camera.StreamProfile) == rtsp.ProfileSub {
		codec = "H.264"
		player = "webrtc"
	}

	cfg := s.config()
	pathKey := mediamtx.PathKey(camera.SchoolID.String(), camera.ID.String(), deref(camera.ExternalID))
	info := &StreamInfo{
		CameraID:   camera.ID,
		PathKey:    pathKey,
		WHEPURL:    mediamtx.WHEPURL(cfg.WebRTCBaseURL, pathKey),
		RTSPMasked: rtsp.Mask(url),
		Source:     source,
		Codec:      codec,
		Player:     player,
		RTSPFull:   url,
	}
	if base := strings.TrimSuffix(cfg.HLSBaseURL, "/"); base != "" {
		info.HLSURL = base + "/" + pathKey + "/index.m3u8"
	}
	return info, nil
}

type StreamProbe struct {
	CameraID   uuid.UUID `json:"camera_id"`
	RTSPMasked string    `json:"rtsp_url"`
	Reachable  bool      `json:"reachable"`
	LatencyMS  int64     `json:"latency_ms"`
	Err        string    `json:"error,omitempty"`
}

// TestStream resolves the camera URL and TCP-probes its RTSP endpoint.
func (s *Service) TestStream(ctx context.Context, cameraID uuid.UUID) (*StreamProbe, error) {
	url, _, err := s.ResolveStreamURL(ctx, cameraID)
	if err != nil {
		return nil, err
	}

	parsed, err := rtsp.Parse(url)
	if err != nil {
		return nil, err
	}

	res := s.prober.ProbeTCP(ctx, parsed.Host, parsed.Port)
	return &StreamProbe{
		CameraID:   cameraID,
		RTSPMasked: rtsp.Mask(url),
		Reachable:  res.Reachable,
		LatencyMS:  res.LatencyMS,
		Err:        res.Err,
	}, nil
}

// PreviewRTSPURL synthesizes and masks a URL for a prospective channel
// without touching the camera table.
func (s *Service) PreviewRTSPURL(ctx context.Context, nvrID uuid.UUID, channelNo int, profile rtsp.Profile) (string, error) {
	if channelNo <= 0 {
		return "", badInput("invalid channel number")
	}
	switch profile {
	case "", rtsp.ProfileMain, rtsp.ProfileSub:
	default:
		return "", badInput("invalid stream profile")
	}

	nvr, err := s.nvrs.GetByID(ctx, nvrID)
	if err != nil {
		return "", err
	}
	password, err := s.password(nvr)
	if err != nil {
		return "", err
	}

	vendor := rtsp.VendorHikvision
	if nvr.Vendor != nil && *nvr.Vendor != "" {
		vendor = rtsp.Vendor(strings.ToLower(*nvr.Vendor))
	}
	if profile == "" {
		profile = rtsp.ProfileMain
	}

	url := rtsp.Build(vendor, rtsp.Endpoint{
		Host:     nvr.Host,
		RTSPPort: nvr.RTSPPort,
		Username: nvr.Username,
		Password: password,
	}, channelNo, profile)
	return rtsp.Mask(url), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// --- Config generation & deploy ---

func (s *Service) mediaCamera(c *data.Camera) mediamtx.Camera {
	out := mediamtx.Camera{
		ID:              c.ID.String(),
		SchoolID:        c.SchoolID.String(),
		ExternalID:      deref(c.ExternalID),
		StreamURL:       deref(c.StreamURL),
		StreamProfile:   rtsp.Profile(c.StreamProfile),
		AutoGenerateURL: c.AutoGenerateURL,
	}
	if c.ChannelNo != nil {
		out.ChannelNo = *c.ChannelNo
	}
	if c.NVRID != nil {
		out.NVRID = c.NVRID.String()
	}
	return out
}

func (s *Service) nvrAuth(nvr *data.NVR) (mediamtx.NVRAuth, error) {
	password, err := s.password(nvr)
	if err != nil {
		return mediamtx.NVRAuth{}, err
	}
	return mediamtx.NVRAuth{
		ID:       nvr.ID.String(),
		Host:     nvr.Host,
		RTSPPort: nvr.RTSPPort,
		Username: nvr.Username,
		Password: password,
		Vendor:   deref(nvr.Vendor),
	}, nil
}

// BuildConfigForNVR renders a config covering one recorder's active
// cameras.
func (s *Service) BuildConfigForNVR(ctx context.Context, id uuid.UUID) (mediamtx.Output, error) {
	nvr, err := s.nvrs.GetByID(ctx, id)
	if err != nil {
		return mediamtx.Output{}, err
	}
	auth, err := s.nvrAuth(nvr)
	if err != nil {
		return mediamtx.Output{}, err
	}

	cameras, err := s.cameras.ListActiveByNVR(ctx, nvr.ID)
	if err != nil {
		return mediamtx.Output{}, err
	}

	media := make([]mediamtx.Camera, 0, len(cameras))
	for _, c := range cameras {
		media = append(media, s.mediaCamera(c))
	}
	return mediamtx.BuildConfig(media, map[string]mediamtx.NVRAuth{auth.ID: auth}), nil
}

// BuildConfigForSchool renders a config covering every active camera
// in a school, across all its recorders.
func (s *Service) BuildConfigForSchool(ctx context.Context, schoolID uuid.UUID) (mediamtx.Output, error) {
	cameras, err := s.cameras.ListActiveBySchool(ctx, schoolID)
	if err != nil {
		return mediamtx.Output{}, err
	}

	authByID := make(map[string]mediamtx.NVRAuth)
	media := make([]mediamtx.Camera, 0, len(cameras))
	for _, c := range cameras {
		media = append(media, s.mediaCamera(c))
		if c.NVRID == nil {
			continue
		}
		key := c.NVRID.String()
		if _, ok := authByID[key]; ok {
			continue
		}
		nvr, err := s.nvrs.GetByID(ctx, *c.NVRID)
		if err != nil {
			if errors.Is(err, data.ErrRecordNotFound) {
				continue
			}
			return mediamtx.Output{}, err
		}
		auth, err := s.nvrAuth(nvr)
		if err != nil {
			return mediamtx.Output{}, err
		}
		authByID[key] = auth
	}
	return mediamtx.BuildConfig(media, authByID), nil
}

// DeployScope selects what a deploy covers.
type DeployScope struct {
	NVRID    *uuid.UUID
	SchoolID *uuid.UUID
}

// Deploy renders the scope's config and ships it to the target. Gated
// by DeployEnabled; restart commands additionally by
// AllowRestartCommands.
func (s *Service) Deploy(ctx context.Context, scope DeployScope, req mediamtx.DeployRequest) (mediamtx.Result, error) {
	cfg := s.config()
	if !cfg.DeployEnabled {
		return mediamtx.Result{}, badInput("deploy disabled")
	}
	if err := mediamtx.ValidateRequest(req, cfg.AllowRestartCommands); err != nil {
		return mediamtx.Result{}, err
	}

	var (
		out      mediamtx.Output
		err      error
		schoolID string
		nvrID    string
	)
	switch {
	case scope.NVRID != nil:
		nvrID = scope.NVRID.String()
		nvr, gerr := s.nvrs.GetByID(ctx, *scope.NVRID)
		if gerr != nil {
			return mediamtx.Result{}, gerr
		}
		schoolID = nvr.SchoolID.String()
		out, err = s.BuildConfigForNVR(ctx, *scope.NVRID)
	case scope.SchoolID != nil:
		schoolID = scope.SchoolID.String()
		out, err = s.BuildConfigForSchool(ctx, *scope.SchoolID)
	default:
		return mediamtx.Result{}, badInput("deploy scope required")
	}
	if err != nil {
		return mediamtx.Result{}, err
	}

	result, err := s.executor.Deploy(ctx, out.Content, req)
	if err != nil {
		metrics.ConfigDeploysTotal.WithLabelValues(string(req.Mode), "error").Inc()
		return mediamtx.Result{}, err
	}
	metrics.ConfigDeploysTotal.WithLabelValues(string(req.Mode), "ok").Inc()

	if s.targets != nil {
		if err := s.targets.Remember(ctx, scopeKey(scope), req); err != nil {
			s.logger.Printf("nvr: remember deploy target failed: %v", err)
		}
	}

	s.publish(&Event{
		Type:       EventConfigDeployed,
		SchoolID:   schoolID,
		NVRID:      nvrID,
		Status:     string(req.Mode),
		Detail:     fmt.Sprintf("paths=%d skipped=%d", out.Paths, out.Skipped),
		OccurredAt: time.Now().UTC(),
	})
	return result, nil
}

// LastDeployTarget returns the remembered target for a scope, or nil.
func (s *Service) LastDeployTarget(ctx context.Context, scope DeployScope) (*mediamtx.DeployRequest, error) {
	if s.targets == nil {
		return nil, nil
	}
	return s.targets.Recall(ctx, scopeKey(scope))
}

func scopeKey(scope DeployScope) string {
	if scope.NVRID != nil {
		return "nvr:" + scope.NVRID.String()
	}
	if scope.SchoolID != nil {
		return "school:" + scope.SchoolID.String()
	}
	return "unknown"
}
