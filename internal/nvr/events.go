package nvr

import (
	"encoding/json"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/nats-io/nats.go"
)

const (
	EventNVRCreated     = "nvr.created"
	EventNVRUpdated     = "nvr.updated"
	EventNVRDeleted     = "nvr.deleted"
	EventHealthChanged  = "nvr.health.changed"
	EventCamerasSynced  = "nvr.cameras.synced"
	EventConfigDeployed = "mediamtx.config.deployed"
)

// Event is the camera-plane notification published to the attendance
// pipeline.
type Event struct {
	Type       string    `json:"type"`
	SchoolID   string    `json:"school_id"`
	NVRID      string    `json:"nvr_id,omitempty"`
	CameraID   string    `json:"camera_id,omitempty"`
	Status     string    `json:"status,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher is implemented by the NATS publisher below and by test
// fakes. A nil Publisher on the service disables eventing.
type Publisher interface {
	Publish(event *Event) error
}

type NATSPublisher struct {
	conn       *nats.Conn
	subject    string
	maxRetries int
}

func NewNATSPublisher(conn *nats.Conn, subject string, maxRetries int) *NATSPublisher {
	return &NATSPublisher{
		conn:       conn,
		subject:    subject,
		maxRetries: maxRetries,
	}
}

func (p *NATSPublisher) Publish(event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	for i := 0; i <= p.maxRetries; i++ {
		err = p.conn.Publish(p.subject, data)
		if err == nil {
			return nil
		}

		// Backoff
		time.Sleep(time.Duration(i*100) * time.Millisecond)
	}

	return fmt.Errorf("publish failed after %d retries: %w", p.maxRetries, err)
}

// EventDedup suppresses repeated health-change events inside a window.
// Monitor sweeps re-observe the same transition on every tick while a
// recorder stays down; consumers only need the edge.
type EventDedup struct {
	cache *lru.Cache[string, time.Time]
	ttl   time.Duration
}

func NewEventDedup(maxKeys int, ttl time.Duration) *EventDedup {
	c, _ := lru.New[string, time.Time](maxKeys)
	return &EventDedup{cache: c, ttl: ttl}
}

func (d *EventDedup) IsDuplicate(key string) bool {
	if addedAt, ok := d.cache.Get(key); ok {
		if time.Since(addedAt) < d.ttl {
			return true
		}
	}
	d.cache.Add(key, time.Now())
	return false
}

// BuildDedupKey buckets time to one minute so jittered monitor ticks
// collapse onto one key.
func BuildDedupKey(nvrID, eventType, status string, occurredAt time.Time) string {
	ts := occurredAt.Truncate(time.Minute).Unix()
	return fmt.Sprintf("%s|%s|%s|%d", nvrID, eventType, status, ts)
}
