package viewer

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvbf/gameday-sync/pkg/countdown"
)

type clockworkServer struct {
	clock clockwork.Clock
}

func (c clockworkServer) NowMillis() int64 { return c.clock.Now().UnixMilli() }

type harness struct {
	clock    *clockwork.FakeClock
	cd       *Countdown
	displays chan Display
	fired    chan countdown.ExpiryOutcome
	ctx      context.Context
}

func newHarness(t *testing.T, privileged bool) *harness {
	t.Helper()
	h := &harness{
		clock:    clockwork.NewFakeClock(),
		displays: make(chan Display, 64),
		fired:    make(chan countdown.ExpiryOutcome, 4),
	}
	var cancel context.CancelFunc
	h.ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	h.cd = NewCountdown(h.clock, clockworkServer{h.clock}, privileged,
		func(d Display) { h.displays <- d },
		func(_ countdown.State, o countdown.ExpiryOutcome) { h.fired <- o })
	t.Cleanup(func() {
		h.cd.Stop()
		cancel()
	})
	return h
}

func (h *harness) next(t *testing.T) Display {
	t.Helper()
	select {
	case d := <-h.displays:
		return d
	case <-time.After(time.Second):
		t.Fatal("no display update")
	}
	return Display{}
}

// endingSoon is a 300 second countdown with 100ms left.
func (h *harness) endingSoon() countdown.State {
	s := countdown.Defaults()
	s.Running = true
	s.StartTime = h.clock.Now().UnixMilli() - 299_900
	return s
}

func TestCountdownBlinksOnceForViewers(t *testing.T) {
	h := newHarness(t, false)
	s := h.endingSoon()

	h.cd.Update(s)
	assert.Equal(t, "0:01", h.next(t).Text)
	require.NoError(t, h.clock.BlockUntilContext(h.ctx, 1))

	h.clock.Advance(tickInterval)
	d := h.next(t)
	assert.Equal(t, "0:00", d.Text)
	assert.Equal(t, countdown.Expired, d.Phase)
	assert.Equal(t, countdown.ExpiryBlink, <-h.fired)

	require.NoError(t, h.clock.BlockUntilContext(h.ctx, 1))
	for i := 0; i < blinkToggles; i++ {
		h.clock.Advance(blinkInterval)
		assert.Equal(t, i%2 == 0, h.next(t).Hidden)
	}
	assert.Equal(t, "5:00", h.next(t).Text)
	require.NoError(t, h.clock.BlockUntilContext(h.ctx, 0))

	// The same expired state delivered again does not fire again.
	h.cd.Update(s)
	assert.Equal(t, "5:00", h.next(t).Text)
	assert.Empty(t, h.fired)
	require.NoError(t, h.clock.BlockUntilContext(h.ctx, 0))
}

func TestCountdownPrivilegedResets(t *testing.T) {
	h := newHarness(t, true)
	h.cd.Update(h.endingSoon())
	h.next(t)
	require.NoError(t, h.clock.BlockUntilContext(h.ctx, 1))

	h.clock.Advance(tickInterval)
	h.next(t)
	assert.Equal(t, countdown.ExpiryReset, <-h.fired)
	require.NoError(t, h.clock.BlockUntilContext(h.ctx, 0))
}

func TestCountdownReplacesLoop(t *testing.T) {
	h := newHarness(t, false)
	s := countdown.Defaults()
	s.Running = true
	s.StartTime = h.clock.Now().UnixMilli()

	h.cd.Update(s)
	h.next(t)
	require.NoError(t, h.clock.BlockUntilContext(h.ctx, 1))

	h.cd.Update(s)
	h.next(t)
	require.NoError(t, h.clock.BlockUntilContext(h.ctx, 1))

	stopped, err := countdown.Stop(s, h.clock.Now().UnixMilli())
	require.NoError(t, err)
	h.cd.Update(stopped)
	d := h.next(t)
	assert.Equal(t, countdown.Idle, d.Phase)
	assert.Equal(t, "5:00", d.Text)
	require.NoError(t, h.clock.BlockUntilContext(h.ctx, 0))
}

func TestCountdownHiddenClock(t *testing.T) {
	h := newHarness(t, false)
	s := countdown.SetShowClock(countdown.Defaults(), false)
	h.cd.Update(s)
	assert.False(t, h.next(t).ClockVisible)
}
