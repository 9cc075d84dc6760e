package onvif

import "context"

// Target identifies the ONVIF device service on an NVR.
type Target struct {
	Host     string
	Port     int
	Username string
	Password string
}

// DeviceInfo is the identity reported by GetDeviceInformation.
type DeviceInfo struct {
	Manufacturer    string `json:"manufacturer"`
	Model           string `json:"model"`
	FirmwareVersion string `json:"firmware_version"`
	SerialNumber    string `json:"serial_number"`
	HardwareID      string `json:"hardware_id,omitempty"`
}

// Profile is one media profile exposed by the device.
type Profile struct {
	Token string `json:"token"`
	Name  string `json:"name"`
}

// Stream pairs a profile with its resolved RTSP URI. URI is empty and
// ChannelNo zero when resolution failed for that profile only.
type Stream struct {
	Profile   Profile `json:"profile"`
	URI       string  `json:"uri,omitempty"`
	ChannelNo int     `json:"channel_no,omitempty"`
}

// ProfileSet is the result of a full profile discovery run.
type ProfileSet struct {
	Profiles []Profile `json:"profiles"`
	Streams  []Stream  `json:"streams"`
}

// DeviceSession is the capability boundary over one authenticated device.
// Production wires the SOAP implementation below; tests wire a fake.
// Implementations are expected to be safe for concurrent GetStreamURI
// calls, since profile resolution fans out over a worker pool.
type DeviceSession interface {
	// Init establishes the session and resolves service addresses.
	Init(ctx context.Context) error
	GetDeviceInformation(ctx context.Context) (DeviceInfo, error)
	GetProfiles(ctx context.Context) ([]Profile, error)
	GetStreamURI(ctx context.Context, profileToken string) (string, error)
}

// SessionFactory opens a DeviceSession for a target.
type SessionFactory func(t Target) (DeviceSession, error)
