package viewer

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/nvbf/gameday-sync/pkg/countdown"
)

const (
	tickInterval  = 250 * time.Millisecond
	blinkInterval = 500 * time.Millisecond
	blinkToggles  = 10
)

// ServerClock is the local clock corrected by the server offset.
type ServerClock interface {
	NowMillis() int64
}

// Display is what the countdown shows.
type Display struct {
	Text       string
	Remaining  int
	Phase      countdown.Phase
	AfterRound bool
	// Hidden is true during the off half of a blink.
	Hidden bool
	// ClockVisible is false when the clock is switched off for viewers.
	ClockVisible bool
}

// ExpiryFunc is called once per countdown that reaches zero. It runs on
// the display loop and must not call Update.
type ExpiryFunc func(s countdown.State, outcome countdown.ExpiryOutcome)

// Countdown renders the shared timer locally. At most one display loop runs;
// every update cancels and waits for the previous one before starting anew.
type Countdown struct {
	clock      clockwork.Clock
	server     ServerClock
	privileged bool
	render     func(Display)
	onExpire   ExpiryFunc

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	expiredMu sync.Mutex
	expired   int64
	hasFired  bool
}

func NewCountdown(clock clockwork.Clock, server ServerClock, privileged bool, render func(Display), onExpire ExpiryFunc) *Countdown {
	return &Countdown{
		clock:      clock,
		server:     server,
		privileged: privileged,
		render:     render,
		onExpire:   onExpire,
	}
}

// Update shows s and, when it is running, installs a new display loop.
func (c *Countdown) Update(s countdown.State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()

	now := c.server.NowMillis()
	if s.Running && s.Remaining(now) <= 0 && c.alreadyFired(s) {
		// A repeated delivery of an expired countdown shows what the
		// expiry left behind.
		if !c.privileged && !s.StartAfterRoundRunning {
			s = countdown.Reset(s)
		}
		c.show(s, now, false)
		return
	}
	c.show(s, now, false)
	if !s.Running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.cancel, c.done = cancel, done
	go func() {
		defer close(done)
		c.loop(ctx, s)
	}()
}

// Stop cancels the display loop and waits for it to end.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Countdown) stopLocked() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
	c.cancel, c.done = nil, nil
}

func (c *Countdown) show(s countdown.State, now int64, hidden bool) {
	rem := s.Remaining(now)
	c.render(Display{
		Text:         countdown.Format(rem),
		Remaining:    rem,
		Phase:        s.Phase(now),
		AfterRound:   s.StartAfterRoundRunning,
		Hidden:       hidden,
		ClockVisible: s.ClockVisible(c.privileged),
	})
}

func (c *Countdown) alreadyFired(s countdown.State) bool {
	c.expiredMu.Lock()
	defer c.expiredMu.Unlock()
	return c.hasFired && c.expired == s.StartTime
}

// fire reports whether this is the first expiry of s.
func (c *Countdown) fire(s countdown.State) bool {
	c.expiredMu.Lock()
	defer c.expiredMu.Unlock()
	if c.hasFired && c.expired == s.StartTime {
		return false
	}
	c.expired, c.hasFired = s.StartTime, true
	return true
}

func (c *Countdown) loop(ctx context.Context, s countdown.State) {
	ticker := c.clock.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
		}
		now := c.server.NowMillis()
		c.show(s, now, false)
		if s.Remaining(now) > 0 {
			continue
		}
		ticker.Stop()
		if !c.fire(s) {
			return
		}
		_, outcome := countdown.Expire(s, now, countdown.ExpiryPolicy{Privileged: c.privileged})
		if c.onExpire != nil {
			c.onExpire(s, outcome)
		}
		if outcome == countdown.ExpiryBlink {
			c.blink(ctx, s)
		}
		return
	}
}

// blink flashes 0:00 and then shows the last set duration. Nothing is
// written to the shared timer.
func (c *Countdown) blink(ctx context.Context, s countdown.State) {
	ticker := c.clock.NewTicker(blinkInterval)
	defer ticker.Stop()
	hidden := false
	for i := 0; i < blinkToggles; i++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
		}
		hidden = !hidden
		c.show(s, c.server.NowMillis(), hidden)
	}
	reset := countdown.Reset(s)
	c.show(reset, c.server.NowMillis(), false)
}
