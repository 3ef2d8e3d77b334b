// Package clocksync estimates the offset between the local clock and the
// realtime store's clock from round-trip probes.
package clocksync

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/xerrors"
)

// window is the number of recent samples considered.
const window = 8

// Sample is one probe: local send and receive times and the server time
// reported in between.
type Sample struct {
	SentAt       time.Time
	ReceivedAt   time.Time
	ServerMillis int64
}

func (s Sample) RTT() time.Duration { return s.ReceivedAt.Sub(s.SentAt) }

// Offset is server time minus the local midpoint of the probe.
func (s Sample) Offset() time.Duration {
	mid := s.SentAt.Add(s.RTT() / 2)
	return time.Duration(s.ServerMillis-mid.UnixMilli()) * time.Millisecond
}

// Estimator keeps the most recent samples and reports the offset of the one
// with the smallest round trip.
type Estimator struct {
	mu      sync.RWMutex
	samples []Sample
	offset  time.Duration
	synced  bool
}

func NewEstimator() *Estimator {
	return &Estimator{}
}

// Observe records a probe. Samples with a negative round trip are ignored.
func (e *Estimator) Observe(s Sample) {
	if s.RTT() < 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.samples = append(e.samples, s)
	if len(e.samples) > window {
		e.samples = e.samples[len(e.samples)-window:]
	}
	best := e.samples[0]
	for _, c := range e.samples[1:] {
		if c.RTT() < best.RTT() {
			best = c
		}
	}
	e.offset = best.Offset()
	e.synced = true
}

// Set forces the offset, for when the store reports it directly.
func (e *Estimator) Set(offset time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.samples = nil
	e.offset = offset
	e.synced = true
}

func (e *Estimator) Offset() time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.offset
}

// Synced reports whether at least one sample has been taken.
func (e *Estimator) Synced() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.synced
}

func (e *Estimator) Samples() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.samples)
}

// DefaultProbeTimeout bounds a probe when NewServerClock is given none.
const DefaultProbeTimeout = 10 * time.Second

var ErrProbeTimeout = errors.New("server time probe timed out")

// Prober reads the authoritative server time in milliseconds.
type Prober interface {
	ProbeServerTime(ctx context.Context) (int64, error)
}

// WindowProber stamps the server time in one step of a longer exchange and
// reports the local times around that step, read through now.
type WindowProber interface {
	ProbeServerTimeWindow(ctx context.Context, now func() time.Time) (server int64, sentAt, receivedAt time.Time, err error)
}

// ServerClock is a local clock corrected by the estimated server offset.
type ServerClock struct {
	clock   clockwork.Clock
	est     *Estimator
	timeout time.Duration
}

func NewServerClock(clock clockwork.Clock, est *Estimator, timeout time.Duration) *ServerClock {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &ServerClock{clock: clock, est: est, timeout: timeout}
}

func (c *ServerClock) Clock() clockwork.Clock { return c.clock }

func (c *ServerClock) Estimator() *Estimator { return c.est }

func (c *ServerClock) Now() time.Time {
	return c.clock.Now().Add(c.est.Offset())
}

func (c *ServerClock) NowMillis() int64 {
	return c.Now().UnixMilli()
}

// Sync takes one probe and feeds it to the estimator. The probe is
// cancelled after the probe timeout, measured on the local clock.
func (c *ServerClock) Sync(ctx context.Context, p Prober) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var timedOut atomic.Bool
	deadline := c.clock.AfterFunc(c.timeout, func() {
		timedOut.Store(true)
		cancel()
	})
	defer deadline.Stop()

	sample, err := c.probe(ctx, p)
	if err != nil {
		if timedOut.Load() {
			return xerrors.Errorf("%w: %v", ErrProbeTimeout, err)
		}
		return err
	}
	c.est.Observe(sample)
	return nil
}

func (c *ServerClock) probe(ctx context.Context, p Prober) (Sample, error) {
	if wp, ok := p.(WindowProber); ok {
		server, sent, received, err := wp.ProbeServerTimeWindow(ctx, c.clock.Now)
		if err != nil {
			return Sample{}, err
		}
		return Sample{SentAt: sent, ReceivedAt: received, ServerMillis: server}, nil
	}
	sent := c.clock.Now()
	server, err := p.ProbeServerTime(ctx)
	if err != nil {
		return Sample{}, err
	}
	return Sample{SentAt: sent, ReceivedAt: c.clock.Now(), ServerMillis: server}, nil
}

// Run probes immediately and then every interval until ctx is done.
func (c *ServerClock) Run(ctx context.Context, p Prober, interval time.Duration) {
	if err := c.Sync(ctx, p); err != nil {
		log.Warn().Err(err).Msg("server clock probe failed")
	}
	ticker := c.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if err := c.Sync(ctx, p); err != nil {
				log.Warn().Err(err).Msg("server clock probe failed")
				continue
			}
			log.Debug().Dur("offset", c.est.Offset()).Msg("server clock synced")
		}
	}
}
