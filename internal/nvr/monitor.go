package nvr

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/technoclass/campus-vms/internal/data"
	"github.com/technoclass/campus-vms/internal/health"
	"github.com/technoclass/campus-vms/internal/metrics"
)

// MonitorConfig tunes the background health sweep.
type MonitorConfig struct {
	Interval  time.Duration
	Workers   int
	QueueSize int
}

func (c MonitorConfig) withDefaults() MonitorConfig {
	if c.Interval <= 0 {
		c.Interval = 60 * time.Second
	}
	if c.Workers <= 0 {
		c.Workers = 8
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	return c
}

// Monitor periodically probes every NVR and records the result through
// the service, which persists health and emits transition events.
type Monitor struct {
	service *Service
	nvrs    data.NVRRepository

	cfg   MonitorConfig
	queue chan *data.NVR

	// statusCache holds the last verdict per NVR so transitions can be
	// logged without a DB read. Map NVRID -> string (verdict).
	statusCache sync.Map

	logger *log.Logger
}

func NewMonitor(s *Service, nvrs data.NVRRepository, cfg MonitorConfig, logger *log.Logger) *Monitor {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = log.Default()
	}
	return &Monitor{
		service: s,
		nvrs:    nvrs,
		cfg:     cfg,
		queue:   make(chan *data.NVR, cfg.QueueSize),
		logger:  logger,
	}
}

// Start launches the workers and the scheduler. They exit when ctx is
// cancelled.
func (m *Monitor) Start(ctx context.Context) {
	for i := 0; i < m.cfg.Workers; i++ {
		go m.worker(ctx)
	}
	go m.run(ctx)
}

func (m *Monitor) run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

func (m *Monitor) sweep(ctx context.Context) {
	nvrs, err := m.nvrs.ListAll(ctx)
	if err != nil {
		m.logger.Printf("monitor: list nvrs: %v", err)
		return
	}

	metrics.NVRQueueDepth.Set(float64(len(m.queue)))
	metrics.NVRsOnline.Set(float64(m.onlineCount()))

	for _, n := range nvrs {
		// Strict boundedness: a full queue means workers are behind,
		// so this cycle skips the remainder instead of blocking the
		// scheduler.
		select {
		case m.queue <- n:
		default:
			metrics.NVRChecksTotal.WithLabelValues("fail", "queue_full").Inc()
		}
	}
}

func (m *Monitor) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-m.queue:
			m.check(ctx, n)
		}
	}
}

func (m *Monitor) check(ctx context.Context, n *data.NVR) {
	// The ticker releases a whole batch at once; a small random delay
	// smooths the probe burst across device networks.
	jitter := time.NewTimer(time.Duration(rand.Intn(500)) * time.Millisecond)
	select {
	case <-ctx.Done():
		jitter.Stop()
		return
	case <-jitter.C:
	}

	report := m.service.checkAndRecord(ctx, n)

	verdict := string(report.Verdict)
	prev, had := m.statusCache.Load(n.ID)
	m.statusCache.Store(n.ID, verdict)
	if had && prev.(string) != verdict {
		m.logger.Printf("monitor: nvr %s (%s) %s -> %s", n.ID, n.Name, prev, verdict)
	}
}

func (m *Monitor) onlineCount() int {
	count := 0
	m.statusCache.Range(func(_, v any) bool {
		if v.(string) == string(health.VerdictOK) {
			count++
		}
		return true
	})
	return count
}

// Forget drops cached status for a deleted NVR so the online gauge
// does not count it forever.
func (m *Monitor) Forget(id uuid.UUID) {
	m.statusCache.Delete(id)
}
