package onvif

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/technoclass/campus-vms/internal/rtsp"
)

const (
	// DefaultTimeout bounds each individual SOAP call.
	DefaultTimeout = 5 * time.Second
	// DefaultConcurrency bounds parallel stream URI resolution.
	DefaultConcurrency = 4
)

// TimeoutError reports a single device operation that exceeded its bound.
type TimeoutError struct {
	Op    string
	Bound time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("onvif %s timed out after %s", e.Op, e.Bound)
}

// Client orchestrates discovery against one device at a time.
type Client struct {
	Factory SessionFactory
	// Timeout applies per operation, not per discovery run.
	Timeout time.Duration
	// Concurrency caps in-flight GetStreamURI calls. Values below 1
	// are treated as 1.
	Concurrency int
}

func NewClient(factory SessionFactory) *Client {
	return &Client{
		Factory:     factory,
		Timeout:     DefaultTimeout,
		Concurrency: DefaultConcurrency,
	}
}

func (c *Client) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

func (c *Client) concurrency() int {
	if c.Concurrency < 1 {
		return 1
	}
	return c.Concurrency
}

// callWithin waits at most the per-op bound for fn. On timeout only the
// wait is abandoned: fn keeps running on its goroutine and its result is
// discarded, since SOAP over a device session has no cancel primitive.
func (c *Client) callWithin(ctx context.Context, op string, fn func() error) error {
	timer := time.NewTimer(c.timeout())
	defer timer.Stop()

	done := make(chan error, 1)
	go func() { done <- fn() }()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return &TimeoutError{Op: op, Bound: c.timeout()}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FetchDeviceInfo opens a session and reads the device identity.
func (c *Client) FetchDeviceInfo(ctx context.Context, t Target) (DeviceInfo, error) {
	sess, err := c.open(ctx, t)
	if err != nil {
		return DeviceInfo{}, err
	}

	var info DeviceInfo
	err = c.callWithin(ctx, "getDeviceInformation", func() error {
		var e error
		info, e = sess.GetDeviceInformation(ctx)
		return e
	})
	return info, err
}

// FetchProfiles discovers all media profiles and resolves their stream
// URIs over a bounded worker pool. A failed resolution leaves that
// stream's URI empty without failing the run.
func (c *Client) FetchProfiles(ctx context.Context, t Target) (ProfileSet, error) {
	sess, err := c.open(ctx, t)
	if err != nil {
		return ProfileSet{}, err
	}

	var profiles []Profile
	err = c.callWithin(ctx, "getProfiles", func() error {
		var e error
		profiles, e = sess.GetProfiles(ctx)
		return e
	})
	if err != nil {
		return ProfileSet{}, err
	}

	streams := make([]Stream, len(profiles))
	jobs := make(chan int)
	var wg sync.WaitGroup

	workers := c.concurrency()
	if workers > len(profiles) {
		workers = len(profiles)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				p := profiles[i]
				var uri string
				err := c.callWithin(ctx, "getStreamUri", func() error {
					var e error
					uri, e = sess.GetStreamURI(ctx, p.Token)
					return e
				})
				if err != nil {
					streams[i] = Stream{Profile: p}
					continue
				}
				streams[i] = Stream{
					Profile:   p,
					URI:       uri,
					ChannelNo: rtsp.ChannelFromURI(uri),
				}
			}
		}()
	}
	for i := range profiles {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return ProfileSet{Profiles: profiles, Streams: streams}, nil
}

func (c *Client) open(ctx context.Context, t Target) (DeviceSession, error) {
	sess, err := c.Factory(t)
	if err != nil {
		return nil, err
	}
	if err := c.callWithin(ctx, "init", func() error { return sess.Init(ctx) }); err != nil {
		return nil, err
	}
	return sess, nil
}
