package nvr

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventDedupSuppressesWithinTTL(t *testing.T) {
	d := NewEventDedup(16, time.Minute)

	key := BuildDedupKey("nvr-1", EventHealthChanged, "offline", time.Now())
	assert.False(t, d.IsDuplicate(key))
	assert.True(t, d.IsDuplicate(key))
	assert.True(t, d.IsDuplicate(key))

	// A different status is a different transition.
	other := BuildDedupKey("nvr-1", EventHealthChanged, "ok", time.Now())
	assert.False(t, d.IsDuplicate(other))
}

func TestEventDedupExpires(t *testing.T) {
	d := NewEventDedup(16, 20*time.Millisecond)

	assert.False(t, d.IsDuplicate("k"))
	time.Sleep(30 * time.Millisecond)
	assert.False(t, d.IsDuplicate("k"))
}

func TestBuildDedupKeyBucketsToMinute(t *testing.T) {
	base := time.Date(2026, 3, 14, 9, 26, 5, 0, time.UTC)

	a := BuildDedupKey("nvr-1", EventHealthChanged, "offline", base)
	b := BuildDedupKey("nvr-1", EventHealthChanged, "offline", base.Add(40*time.Second))
	c := BuildDedupKey("nvr-1", EventHealthChanged, "offline", base.Add(2*time.Minute))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestHealthCheckPublishesTransitionOnce(t *testing.T) {
	f := newFixture(t, Config{}, nil)
	created := f.createUnreachableNVR(t)

	stored, err := f.nvrs.GetByID(context.Background(), created.ID)
	require.NoError(t, err)

	// Every probe port is refused, so both sweeps observe the same
	// offline verdict; only the first one may produce an event.
	f.svc.checkAndRecord(context.Background(), stored)

	// Claim the next minute bucket too so the assertion holds even when
	// the second sweep lands just past a minute boundary.
	next := BuildDedupKey(created.ID.String(), EventHealthChanged, "offline", time.Now().Add(time.Minute))
	f.svc.dedup.IsDuplicate(next)

	f.svc.checkAndRecord(context.Background(), stored)

	events := f.publisher.byType(EventHealthChanged)
	require.Len(t, events, 1)
	assert.Equal(t, created.ID.String(), events[0].NVRID)
}
