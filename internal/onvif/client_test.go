package onvif

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	mu       sync.Mutex
	inFlight int
	peak     int

	initErr    error
	info       DeviceInfo
	infoErr    error
	profiles   []Profile
	streamURIs map[string]string
	streamErr  map[string]error
	streamLag  time.Duration
}

func (f *fakeSession) Init(ctx context.Context) error { return f.initErr }

func (f *fakeSession) GetDeviceInformation(ctx context.Context) (DeviceInfo, error) {
	return f.info, f.infoErr
}

func (f *fakeSession) GetProfiles(ctx context.Context) ([]Profile, error) {
	return f.profiles, nil
}

func (f *fakeSession) GetStreamURI(ctx context.Context, token string) (string, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.peak {
		f.peak = f.inFlight
	}
	f.mu.Unlock()

	if f.streamLag > 0 {
		time.Sleep(f.streamLag)
	}

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()

	if err, ok := f.streamErr[token]; ok {
		return "", err
	}
	return f.streamURIs[token], nil
}

func factoryFor(s DeviceSession) SessionFactory {
	return func(Target) (DeviceSession, error) { return s, nil }
}

func TestFetchDeviceInfo(t *testing.T) {
	want := DeviceInfo{
		Manufacturer:    "HIKVISION",
		Model:           "DS-7616NI-K2",
		FirmwareVersion: "V4.30.085",
		SerialNumber:    "1620210512CCRR",
	}
	c := NewClient(factoryFor(&fakeSession{info: want}))

	got, err := c.FetchDeviceInfo(context.Background(), Target{Host: "10.0.0.5"})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFetchDeviceInfoInitFailure(t *testing.T) {
	boom := errors.New("connection refused")
	c := NewClient(factoryFor(&fakeSession{initErr: boom}))

	_, err := c.FetchDeviceInfo(context.Background(), Target{Host: "10.0.0.5"})
	assert.ErrorIs(t, err, boom)
}

func TestFetchProfilesResolvesStreams(t *testing.T) {
	sess := &fakeSession{
		profiles: []Profile{
			{Token: "prof1", Name: "MainStream"},
			{Token: "prof2", Name: "SubStream"},
		},
		streamURIs: map[string]string{
			"prof1": "rtsp://10.0.0.5:554/Streaming/Channels/101",
			"prof2": "rtsp://10.0.0.5:554/Streaming/Channels/102",
		},
	}
	c := NewClient(factoryFor(sess))

	set, err := c.FetchProfiles(context.Background(), Target{Host: "10.0.0.5"})
	require.NoError(t, err)
	require.Len(t, set.Streams, 2)
	assert.Equal(t, "rtsp://10.0.0.5:554/Streaming/Channels/101", set.Streams[0].URI)
	assert.Equal(t, 1, set.Streams[0].ChannelNo)
	assert.Equal(t, 1, set.Streams[1].ChannelNo)
}

func TestFetchProfilesIsolatesPerStreamFailure(t *testing.T) {
	sess := &fakeSession{
		profiles: []Profile{
			{Token: "prof1", Name: "Cam1"},
			{Token: "prof2", Name: "Cam2"},
			{Token: "prof3", Name: "Cam3"},
		},
		streamURIs: map[string]string{
			"prof1": "rtsp://10.0.0.5:554/Streaming/Channels/101",
			"prof3": "rtsp://10.0.0.5:554/Streaming/Channels/301",
		},
		streamErr: map[string]error{
			"prof2": errors.New("profile busy"),
		},
	}
	c := NewClient(factoryFor(sess))

	set, err := c.FetchProfiles(context.Background(), Target{Host: "10.0.0.5"})
	require.NoError(t, err)
	require.Len(t, set.Streams, 3)

	assert.NotEmpty(t, set.Streams[0].URI)
	assert.Empty(t, set.Streams[1].URI, "failed profile keeps its slot with no URI")
	assert.Zero(t, set.Streams[1].ChannelNo)
	assert.Equal(t, 3, set.Streams[2].ChannelNo)
}

func TestFetchProfilesHonorsConcurrencyBound(t *testing.T) {
	profiles := make([]Profile, 12)
	uris := make(map[string]string, len(profiles))
	for i := range profiles {
		token := fmt.Sprintf("prof%d", i)
		profiles[i] = Profile{Token: token, Name: token}
		uris[token] = fmt.Sprintf("rtsp://10.0.0.5:554/Streaming/Channels/%d01", i+1)
	}
	sess := &fakeSession{
		profiles:   profiles,
		streamURIs: uris,
		streamLag:  20 * time.Millisecond,
	}
	c := NewClient(factoryFor(sess))
	c.Concurrency = 3

	_, err := c.FetchProfiles(context.Background(), Target{Host: "10.0.0.5"})
	require.NoError(t, err)
	assert.LessOrEqual(t, sess.peak, 3)
	assert.Greater(t, sess.peak, 1, "pool should actually run in parallel")
}

func TestFetchProfilesConcurrencyFloor(t *testing.T) {
	sess := &fakeSession{
		profiles:   []Profile{{Token: "prof1"}, {Token: "prof2"}},
		streamURIs: map[string]string{"prof1": "rtsp://h/1", "prof2": "rtsp://h/2"},
		streamLag:  5 * time.Millisecond,
	}
	c := NewClient(factoryFor(sess))
	c.Concurrency = 0

	_, err := c.FetchProfiles(context.Background(), Target{Host: "10.0.0.5"})
	require.NoError(t, err)
	assert.Equal(t, 1, sess.peak)
}

func TestCallTimeoutNamesOperation(t *testing.T) {
	sess := &fakeSession{
		profiles:   []Profile{{Token: "prof1"}},
		streamURIs: map[string]string{"prof1": "rtsp://h/1"},
	}
	c := NewClient(factoryFor(sess))
	c.Timeout = 10 * time.Millisecond

	err := c.callWithin(context.Background(), "getProfiles", func() error {
		time.Sleep(200 * time.Millisecond)
		return nil
	})

	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "getProfiles", te.Op)
	assert.Equal(t, 10*time.Millisecond, te.Bound)
	assert.Contains(t, te.Error(), "getProfiles")
}

func TestCallWithinHonorsContextCancel(t *testing.T) {
	c := NewClient(factoryFor(&fakeSession{}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.callWithin(ctx, "init", func() error {
		time.Sleep(time.Second)
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
