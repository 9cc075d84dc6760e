package nvr

import (
	"bytes"
	"context"
	"log"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitorSweepDropsWhenQueueFull(t *testing.T) {
	f := newFixture(t, Config{}, nil)
	schoolID := uuid.New()
	for i := 0; i < 3; i++ {
		f.createNVR(t, schoolID, "")
	}

	m := NewMonitor(f.svc, f.nvrs, MonitorConfig{QueueSize: 1}, log.New(&bytes.Buffer{}, "", 0))

	// No workers running: the first NVR fills the queue, the other two
	// are dropped and the sweep returns without blocking.
	done := make(chan struct{})
	go func() {
		m.sweep(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweep blocked on a full queue")
	}
	assert.Len(t, m.queue, 1)
}

func TestMonitorLogsTransitions(t *testing.T) {
	f := newFixture(t, Config{}, nil)
	created := f.createUnreachableNVR(t)

	var buf bytes.Buffer
	m := NewMonitor(f.svc, f.nvrs, MonitorConfig{}, log.New(&buf, "", 0))

	stored, err := f.nvrs.GetByID(context.Background(), created.ID)
	require.NoError(t, err)

	m.check(context.Background(), stored)
	assert.Empty(t, buf.String(), "first observation is not a transition")

	// Same verdict again: still no transition line.
	m.check(context.Background(), stored)
	assert.Empty(t, buf.String())

	m.statusCache.Store(created.ID, "ok")
	m.check(context.Background(), stored)
	assert.Contains(t, buf.String(), "ok -> offline")
}

func TestMonitorOnlineCountAndForget(t *testing.T) {
	f := newFixture(t, Config{}, nil)
	m := NewMonitor(f.svc, f.nvrs, MonitorConfig{}, nil)

	a, b := uuid.New(), uuid.New()
	m.statusCache.Store(a, "ok")
	m.statusCache.Store(b, "offline")
	assert.Equal(t, 1, m.onlineCount())

	m.Forget(a)
	assert.Equal(t, 0, m.onlineCount())
}

func TestMonitorConfigDefaults(t *testing.T) {
	cfg := MonitorConfig{}.withDefaults()
	assert.Equal(t, 60*time.Second, cfg.Interval)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 256, cfg.QueueSize)

	custom := MonitorConfig{Interval: 5 * time.Second, Workers: 2, QueueSize: 16}.withDefaults()
	assert.Equal(t, 5*time.Second, custom.Interval)
}
