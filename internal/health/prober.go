package health

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"
)

// DefaultTimeout bounds a single TCP probe.
const DefaultTimeout = 3000 * time.Millisecond

// Verdict summarises a full connectivity check.
type Verdict string

const (
	VerdictOK      Verdict = "ok"
	VerdictPartial Verdict = "partial"
	VerdictOffline Verdict = "offline"
)

// Endpoint names the three service ports checked on an NVR.
type Endpoint struct {
	Host      string
	HTTPPort  int
	OnvifPort int
	RTSPPort  int
}

// Result is the outcome of one port probe. Latency is carried in
// whole milliseconds; a time.Duration here would serialize as
// nanoseconds under the latency_ms key.
type Result struct {
	Reachable bool   `json:"reachable"`
	LatencyMS int64  `json:"latency_ms"`
	Err       string `json:"error,omitempty"`
}

// Snapshot holds the three probe results of one check run.
type Snapshot struct {
	HTTP  Result `json:"http"`
	Onvif Result `json:"onvif"`
	RTSP  Result `json:"rtsp"`
}

// Verdict is ok when every port answered, offline when none did.
func (s Snapshot) Verdict() Verdict {
	up := 0
	for _, r := range []Result{s.HTTP, s.Onvif, s.RTSP} {
		if r.Reachable {
			up++
		}
	}
	switch up {
	case 3:
		return VerdictOK
	case 0:
		return VerdictOffline
	default:
		return VerdictPartial
	}
}

// Summary renders the per-service reachability in a fixed order for
// logs and persisted health rows.
func (s Snapshot) Summary() string {
	return fmt.Sprintf("http:%t onvif:%t rtsp:%t",
		s.HTTP.Reachable, s.Onvif.Reachable, s.RTSP.Reachable)
}

// Prober runs raw TCP connect checks. A successful dial is enough; no
// protocol handshake is attempted, so a port held by the wrong service
// still counts as reachable.
type Prober struct {
	// Timeout applies per port. Zero means DefaultTimeout.
	Timeout time.Duration
}

func NewProber() *Prober {
	return &Prober{Timeout: DefaultTimeout}
}

func (p *Prober) timeout() time.Duration {
	if p.Timeout > 0 {
		return p.Timeout
	}
	return DefaultTimeout
}

// ProbeTCP dials one host:port and reports reachability with latency.
func (p *Prober) ProbeTCP(ctx context.Context, host string, port int) Result {
	start := time.Now()
	address := net.JoinHostPort(host, strconv.Itoa(port))

	d := net.Dialer{Timeout: p.timeout()}
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return Result{Reachable: false, Err: err.Error()}
	}
	conn.Close()

	return Result{Reachable: true, LatencyMS: time.Since(start).Milliseconds()}
}

// CheckAll probes the HTTP, ONVIF and RTSP ports concurrently and
// returns a single snapshot.
func (p *Prober) CheckAll(ctx context.Context, e Endpoint) Snapshot {
	var snap Snapshot
	var wg sync.WaitGroup

	probe := func(port int, dst *Result) {
		defer wg.Done()
		*dst = p.ProbeTCP(ctx, e.Host, port)
	}

	wg.Add(3)
	go probe(e.HTTPPort, &snap.HTTP)
	go probe(e.OnvifPort, &snap.Onvif)
	go probe(e.RTSPPort, &snap.RTSP)
	wg.Wait()

	return snap
}
