package rtsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectVendor(t *testing.T) {
	tests := []struct {
		raw    string
		vendor Vendor
	}{
		{"rtsp://u:p@h:554/Streaming/Channels/101", VendorHikvision},
		{"rtsp://u:p@h:554/user=u&password=p&channel=1&stream=0.sdp", VendorSeetong},
		{"rtsp://u:p@h:554/cam/realmonitor?channel=1&subtype=0", VendorDahua},
		{"rtsp://u:p@h:554/ch1/main/av_stream", VendorGeneric},
		{"rtsp://u:p@h:554/some/unknown/path", VendorGeneric},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.vendor, DetectVendor(tt.raw), "url %q", tt.raw)
	}
}

func TestDetectProfile(t *testing.T) {
	tests := []struct {
		raw     string
		profile Profile
	}{
		{"rtsp://h/Streaming/Channels/101", ProfileMain},
		{"rtsp://h/Streaming/Channels/102", ProfileSub},
		// A third stream index is not guessed at.
		{"rtsp://h/Streaming/Channels/103", ProfileMain},
		{"rtsp://h/user=u&password=p&channel=1&stream=1.sdp", ProfileSub},
		{"rtsp://h/user=u&password=p&channel=1&stream=0.sdp", ProfileMain},
		{"rtsp://h/cam/realmonitor?channel=1&subtype=1", ProfileSub},
		{"rtsp://h/cam/realmonitor?channel=1&subtype=0", ProfileMain},
		{"rtsp://h/ch1/sub/av_stream", ProfileSub},
		{"rtsp://h/ch1/main/av_stream", ProfileMain},
		{"rtsp://h/anything", ProfileMain},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.profile, DetectProfile(tt.raw), "url %q", tt.raw)
	}
}

func TestChannelFromURI(t *testing.T) {
	tests := []struct {
		uri     string
		channel int
	}{
		{"rtsp://h:554/Streaming/Channels/101", 1},
		{"rtsp://h:554/Streaming/Channels/1202", 12},
		{"rtsp://h:554/streaming/channels/302", 3},
		// Index below 100 maps to no usable channel.
		{"rtsp://h:554/Streaming/Channels/1", 0},
		{"rtsp://h:554/live/main", 0},
		{"", 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.channel, ChannelFromURI(tt.uri), "uri %q", tt.uri)
	}
}
