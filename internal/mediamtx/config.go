package mediamtx

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/technoclass/campus-vms/internal/rtsp"
)

var unsafeSegment = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// SanitizePathSegment maps arbitrary external IDs onto the charset
// MediaMTX accepts in path names.
func SanitizePathSegment(value string) string {
	return unsafeSegment.ReplaceAllString(value, "_")
}

// PathKey is the stream path for one camera. Cameras with a trimmed,
// non-empty external ID publish under that ID; the rest fall back to
// their database ID, which is already path-safe.
func PathKey(schoolID, cameraID, externalID string) string {
	if ext := strings.TrimSpace(externalID); ext != "" {
		return fmt.Sprintf("schools/%s/cameras/%s", schoolID, SanitizePathSegment(ext))
	}
	return fmt.Sprintf("schools/%s/cameras/%s", schoolID, cameraID)
}

// WHEPURL is the playback endpoint for a path key.
func WHEPURL(baseURL, pathKey string) string {
	return strings.TrimSuffix(baseURL, "/") + "/" + pathKey + "/whep"
}

// Camera carries the fields config generation needs, in caller order.
// Callers sort by school then channel so output stays deterministic.
type Camera struct {
	ID              string
	SchoolID        string
	ExternalID      string
	StreamURL       string
	StreamProfile   rtsp.Profile
	AutoGenerateURL bool
	ChannelNo       int
	NVRID           string
}

// NVRAuth is a decrypted NVR endpoint used for URL synthesis. Password
// is cleartext here; the rendered config embeds it, so output must stay
// behind authenticated surfaces.
type NVRAuth struct {
	ID       string
	Host     string
	RTSPPort int
	Username string
	Password string
	Vendor   string
}

// Output is a rendered config plus generation stats.
type Output struct {
	Content string
	Paths   int
	// Skipped counts cameras dropped because another camera already
	// claimed their path key.
	Skipped int
}

// BuildConfig renders a full MediaMTX configuration. Cameras without a
// resolvable source are omitted; duplicate path keys keep the first
// camera that resolved a source.
func BuildConfig(cameras []Camera, nvrAuthByID map[string]NVRAuth) Output {
	lines := []string{
		"# Auto-generated MediaMTX config",
		"logLevel: info",
		"",
		"rtsp: yes",
		"rtspAddress: :8554",
		"",
		"hls: yes",
		"hlsAddress: :8888",
		"hlsAllowOrigin: '*'",
		"hlsAlwaysRemux: yes",
		"",
		"webrtc: yes",
		"webrtcAddress: :8889",
		"webrtcAllowOrigin: '*'",
		"",
		"paths:",
	}

	used := make(map[string]bool)
	out := Output{}

	for _, camera := range cameras {
		pathKey := PathKey(camera.SchoolID, camera.ID, camera.ExternalID)
		if used[pathKey] {
			out.Skipped++
			continue
		}

		rtspURL := camera.StreamURL

		if camera.AutoGenerateURL && rtspURL == "" && camera.NVRID != "" && camera.ChannelNo != 0 {
			if nvr, ok := nvrAuthByID[camera.NVRID]; ok {
				vendor := rtsp.Vendor(strings.ToLower(nvr.Vendor))
				if vendor == "" {
					vendor = rtsp.VendorHikvision
				}
				profile := camera.StreamProfile
				if profile == "" {
					profile = rtsp.ProfileMain
				}
				rtspURL = rtsp.Build(vendor, rtsp.Endpoint{
					Host:     nvr.Host,
					RTSPPort: nvr.RTSPPort,
					Username: nvr.Username,
					Password: nvr.Password,
				}, camera.ChannelNo, profile)
			}
		}

		if rtspURL == "" {
			continue
		}

		used[pathKey] = true
		out.Paths++

		profileLabel := "H.265"
		if camera.StreamProfile == rtsp.ProfileSub {
			profileLabel = "H.264"
		}
		lines = append(lines,
			fmt.Sprintf("  # %s (%s)", camera.ID, profileLabel),
			fmt.Sprintf("  %s:", pathKey),
			fmt.Sprintf("    source: %s", rtspURL),
			"    rtspTransport: tcp",
			"    sourceOnDemand: yes",
			"    sourceOnDemandCloseAfter: 10s",
		)
	}

	out.Content = strings.Join(lines, "\n")
	return out
}
