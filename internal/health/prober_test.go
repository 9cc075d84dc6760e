package health

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// listenTCP opens a loopback listener and returns its port.
func listenTCP(t *testing.T) (net.Listener, int) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l, l.Addr().(*net.TCPAddr).Port
}

// closedPort returns a port that was just released, so dialing it is
// refused immediately.
func closedPort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func TestProbeTCPReachable(t *testing.T) {
	_, port := listenTCP(t)
	p := NewProber()

	res := p.ProbeTCP(context.Background(), "127.0.0.1", port)
	assert.True(t, res.Reachable)
	assert.Empty(t, res.Err)
}

func TestProbeTCPRefused(t *testing.T) {
	p := NewProber()
	p.Timeout = 500 * time.Millisecond

	res := p.ProbeTCP(context.Background(), "127.0.0.1", closedPort(t))
	assert.False(t, res.Reachable)
	assert.NotEmpty(t, res.Err)
}

func TestResultLatencySerializesAsMilliseconds(t *testing.T) {
	_, port := listenTCP(t)
	p := NewProber()

	res := p.ProbeTCP(context.Background(), "127.0.0.1", port)
	require.True(t, res.Reachable)
	// A loopback dial is far below the timeout; a nanosecond value
	// would blow this bound by six orders of magnitude.
	assert.Less(t, res.LatencyMS, int64(DefaultTimeout/time.Millisecond))

	body, err := json.Marshal(Result{Reachable: true, LatencyMS: 1500})
	require.NoError(t, err)
	assert.Contains(t, string(body), `"latency_ms":1500`)
}

func TestCheckAllPartial(t *testing.T) {
	_, httpPort := listenTCP(t)
	_, onvifPort := listenTCP(t)
	p := NewProber()
	p.Timeout = 500 * time.Millisecond

	snap := p.CheckAll(context.Background(), Endpoint{
		Host:      "127.0.0.1",
		HTTPPort:  httpPort,
		OnvifPort: onvifPort,
		RTSPPort:  closedPort(t),
	})

	assert.True(t, snap.HTTP.Reachable)
	assert.True(t, snap.Onvif.Reachable)
	assert.False(t, snap.RTSP.Reachable)
	assert.Equal(t, VerdictPartial, snap.Verdict())
	assert.Equal(t, "http:true onvif:true rtsp:false", snap.Summary())
}

func TestCheckAllOK(t *testing.T) {
	_, a := listenTCP(t)
	_, b := listenTCP(t)
	_, c := listenTCP(t)
	p := NewProber()

	snap := p.CheckAll(context.Background(), Endpoint{
		Host: "127.0.0.1", HTTPPort: a, OnvifPort: b, RTSPPort: c,
	})
	assert.Equal(t, VerdictOK, snap.Verdict())
}

func TestVerdictOffline(t *testing.T) {
	var snap Snapshot
	assert.Equal(t, VerdictOffline, snap.Verdict())
	assert.Equal(t, "http:false onvif:false rtsp:false", snap.Summary())
}
