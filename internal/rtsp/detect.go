package rtsp

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	hikvisionChannelRegex = regexp.MustCompile(`/Streaming/Channels/(\d+)`)
	seetongStreamRegex    = regexp.MustCompile(`&stream=(\d)`)
	dahuaSubtypeRegex     = regexp.MustCompile(`subtype=(\d)`)
)

// DetectVendor infers the vendor dialect from the shape of an externally
// supplied stream URL. Pure string analysis, no network access.
func DetectVendor(raw string) Vendor {
	switch {
	case strings.Contains(raw, "/Streaming/Channels/"):
		return VendorHikvision
	case strings.Contains(raw, "&stream=") && strings.Contains(raw, ".sdp"):
		return VendorSeetong
	case strings.Contains(raw, "/cam/realmonitor"):
		return VendorDahua
	case strings.Contains(raw, "/ch") && strings.Contains(raw, "/av_stream"):
		return VendorGeneric
	default:
		return VendorGeneric
	}
}

// DetectProfile infers the stream profile from an externally supplied URL.
// For hikvision only stream index 2 means sub; any other index (including
// a third profile a device might expose) is reported as main rather than
// guessed at.
func DetectProfile(raw string) Profile {
	if m := hikvisionChannelRegex.FindStringSubmatch(raw); m != nil {
		channel, err := strconv.Atoi(m[1])
		if err == nil && channel%100 == 2 {
			return ProfileSub
		}
		return ProfileMain
	}

	if m := seetongStreamRegex.FindStringSubmatch(raw); m != nil {
		if m[1] == "1" {
			return ProfileSub
		}
		return ProfileMain
	}

	if m := dahuaSubtypeRegex.FindStringSubmatch(raw); m != nil {
		if m[1] == "1" {
			return ProfileSub
		}
		return ProfileMain
	}

	if strings.Contains(raw, "/sub/") {
		return ProfileSub
	}
	return ProfileMain
}

// ChannelFromURI extracts the vendor channel index from a resolved stream
// URI containing a Channels/<n> segment, where the index is n/100.
// Returns 0 when no usable channel is present.
func ChannelFromURI(uri string) int {
	m := channelSegmentRegex.FindStringSubmatch(uri)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0
	}
	return n / 100
}

var channelSegmentRegex = regexp.MustCompile(`(?i)Channels/(\d+)`)
