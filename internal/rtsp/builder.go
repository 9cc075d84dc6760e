package rtsp

import (
	"fmt"
	"net/url"
	"strings"
)

// Profile is a quality tier of the same camera feed.
type Profile string

const (
	ProfileMain Profile = "main"
	ProfileSub  Profile = "sub"
)

// Vendor selects the RTSP path dialect used by a device family.
type Vendor string

const (
	VendorHikvision Vendor = "hikvision"
	VendorSeetong   Vendor = "seetong"
	VendorDahua     Vendor = "dahua"
	VendorGeneric   Vendor = "generic"
)

// Endpoint is the network identity of an NVR's RTSP service.
type Endpoint struct {
	Host     string
	RTSPPort int
	Username string
	Password string
}

// encodeAuth percent-encodes a credential for safe embedding in a URL.
// QueryEscape turns spaces into "+", which userinfo does not allow.
func encodeAuth(value string) string {
	return strings.ReplaceAll(url.QueryEscape(value), "+", "%20")
}

// Build synthesizes a vendor-specific stream URL. Channel and stream
// encodings are device-protocol facts and must not be normalized:
//
//	hikvision: /Streaming/Channels/<channelNo*100 + (main=1, sub=2)>
//	seetong:   /user=<u>&password=<p>&channel=<n>&stream=<main=0, sub=1>.sdp
//	dahua:     /cam/realmonitor?channel=<n>&subtype=<main=0, sub=1>
//	generic:   /ch<n>/<profile>/av_stream
//
// Unknown vendors fall back to the hikvision dialect.
func Build(vendor Vendor, e Endpoint, channelNo int, profile Profile) string {
	switch vendor {
	case VendorSeetong:
		return buildSeetong(e, channelNo, profile)
	case VendorDahua:
		return buildDahua(e, channelNo, profile)
	case VendorGeneric:
		return buildGeneric(e, channelNo, profile)
	default:
		return BuildHikvision(e, channelNo, profile)
	}
}

// BuildHikvision is exported separately because it doubles as the fallback
// dialect for ONVIF-synced devices without a recognized vendor.
func BuildHikvision(e Endpoint, channelNo int, profile Profile) string {
	streamID := 1
	if profile == ProfileSub {
		streamID = 2
	}
	channel := channelNo*100 + streamID
	return fmt.Sprintf("rtsp://%s:%s@%s:%d/Streaming/Channels/%d",
		encodeAuth(e.Username), encodeAuth(e.Password), e.Host, e.RTSPPort, channel)
}

func buildSeetong(e Endpoint, channelNo int, profile Profile) string {
	streamID := 0
	if profile == ProfileSub {
		streamID = 1
	}
	user := encodeAuth(e.Username)
	pass := encodeAuth(e.Password)
	return fmt.Sprintf("rtsp://%s:%s@%s:%d/user=%s&password=%s&channel=%d&stream=%d.sdp",
		user, pass, e.Host, e.RTSPPort, user, pass, channelNo, streamID)
}

func buildDahua(e Endpoint, channelNo int, profile Profile) string {
	subtype := 0
	if profile == ProfileSub {
		subtype = 1
	}
	return fmt.Sprintf("rtsp://%s:%s@%s:%d/cam/realmonitor?channel=%d&subtype=%d",
		encodeAuth(e.Username), encodeAuth(e.Password), e.Host, e.RTSPPort, channelNo, subtype)
}

func buildGeneric(e Endpoint, channelNo int, profile Profile) string {
	return fmt.Sprintf("rtsp://%s:%s@%s:%d/ch%d/%s/av_stream",
		encodeAuth(e.Username), encodeAuth(e.Password), e.Host, e.RTSPPort, channelNo, profile)
}
