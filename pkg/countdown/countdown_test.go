package countdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xorcare/pointer"
)

const t0 = int64(1_700_000_000_000)

func running(duration int) State {
	s := Defaults()
	s.Duration = duration
	s.Running = true
	s.StartTime = t0
	return s
}

func TestRemaining(t *testing.T) {
	s := running(300)
	assert.Equal(t, 300, s.Remaining(t0))
	assert.Equal(t, 300, s.Remaining(t0+999))
	assert.Equal(t, 299, s.Remaining(t0+1000))
	assert.Equal(t, 5, s.Remaining(t0+295_000))
	assert.Equal(t, 0, s.Remaining(t0+305_000))
	assert.Equal(t, 300, s.Remaining(t0-5_000))

	s.Running = false
	assert.Equal(t, 300, s.Remaining(t0+305_000))
}

func TestPhase(t *testing.T) {
	assert.Equal(t, Idle, Defaults().Phase(t0))
	assert.Equal(t, Running, running(300).Phase(t0+1000))
	assert.Equal(t, Expired, running(300).Phase(t0+305_000))

	ar := running(60)
	ar.StartAfterRoundRunning = true
	assert.Equal(t, RunningAfterRound, ar.Phase(t0+1000))
}

func TestStartStop(t *testing.T) {
	s, err := Start(Defaults(), t0)
	require.NoError(t, err)
	assert.True(t, s.Running)
	assert.Equal(t, t0, s.StartTime)

	_, err = Start(s, t0+10)
	assert.ErrorIs(t, err, ErrTimerRunning)

	s, err = Stop(s, t0+42_500)
	require.NoError(t, err)
	assert.False(t, s.Running)
	assert.Equal(t, 258, s.Duration)
	assert.Equal(t, 300, s.LastSetDuration)

	_, err = Stop(s, t0)
	assert.ErrorIs(t, err, ErrTimerIdle)
}

func TestStopAfterExpiryClampsToZero(t *testing.T) {
	s, err := Stop(running(10), t0+60_000)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Duration)
}

func TestStartFromZeroUsesDefault(t *testing.T) {
	s := Defaults()
	s.Duration = 0
	s, err := Start(s, t0)
	require.NoError(t, err)
	assert.Equal(t, DefaultDuration, s.Duration)
}

func TestReset(t *testing.T) {
	s := running(45)
	s.LastSetDuration = 240
	s.StartAfterRoundRunning = true
	s = Reset(s)
	assert.Equal(t, 240, s.Duration)
	assert.False(t, s.Running)
	assert.False(t, s.StartAfterRoundRunning)
}

func TestAdjust(t *testing.T) {
	cases := []struct {
		duration, delta, want int
	}{
		{300, 30, 330},
		{300, -30, 270},
		{30, -30, 30},
		{45, 0, 60},
		{44, 0, 30},
		{258, 30, 300},
	}
	for _, c := range cases {
		s := Defaults()
		s.Duration = c.duration
		got, err := Adjust(s, c.delta)
		require.NoError(t, err)
		assert.Equal(t, c.want, got.Duration, "%d%+d", c.duration, c.delta)
		assert.Equal(t, c.want, got.LastSetDuration)
	}
}

func TestAdjustRefusedWhileRunning(t *testing.T) {
	s := running(300)
	got, err := Adjust(s, 30)
	assert.ErrorIs(t, err, ErrTimerRunning)
	assert.Equal(t, s, got)
}

func TestAdjustAfterRound(t *testing.T) {
	s := Defaults()
	s = AdjustAfterRound(s, 15)
	assert.Equal(t, 75, s.AfterRoundDuration)

	s.AfterRoundDuration = 20
	s = AdjustAfterRound(s, -15)
	assert.Equal(t, 15, s.AfterRoundDuration)

	s.AfterRoundDuration = 0
	s = AdjustAfterRound(s, -15)
	assert.Equal(t, 45, s.AfterRoundDuration)
}

func TestExpireOnlyWhenExpired(t *testing.T) {
	s := running(300)
	got, out := Expire(s, t0+10_000, ExpiryPolicy{Privileged: true})
	assert.Equal(t, ExpiryNone, out)
	assert.Equal(t, s, got)

	_, out = Expire(Defaults(), t0, ExpiryPolicy{Privileged: true})
	assert.Equal(t, ExpiryNone, out)
}

func TestExpirePrivilegedResetsOnce(t *testing.T) {
	s := running(300)
	s.LastSetDuration = 300
	now := t0 + 305_000
	require.Equal(t, 0, s.Remaining(now))

	s, out := Expire(s, now, ExpiryPolicy{Privileged: true})
	assert.Equal(t, ExpiryReset, out)
	assert.True(t, out.Changed())
	assert.False(t, s.Running)
	assert.Equal(t, 300, s.Duration)

	_, out = Expire(s, now+250, ExpiryPolicy{Privileged: true})
	assert.Equal(t, ExpiryNone, out)
}

func TestExpireNonPrivilegedBlinks(t *testing.T) {
	s := running(300)
	got, out := Expire(s, t0+305_000, ExpiryPolicy{})
	assert.Equal(t, ExpiryBlink, out)
	assert.False(t, out.Changed())
	assert.Equal(t, s, got)
}

func TestExpireStartsAfterRound(t *testing.T) {
	s := running(300)
	s.AfterRoundDuration = 45
	now := t0 + 300_000
	s, out := Expire(s, now, ExpiryPolicy{AfterRoundEnabled: true, Privileged: true})
	assert.Equal(t, ExpiryAfterRoundStarted, out)
	assert.True(t, s.Running)
	assert.True(t, s.StartAfterRoundRunning)
	assert.Equal(t, 45, s.Duration)
	assert.Equal(t, now, s.StartTime)
	assert.Equal(t, 300, s.LastSetDuration)

	s, out = Expire(s, now+45_000, ExpiryPolicy{AfterRoundEnabled: true, Privileged: true})
	assert.Equal(t, ExpiryAfterRoundFinished, out)
	assert.False(t, s.Running)
	assert.False(t, s.StartAfterRoundRunning)
	assert.Equal(t, 300, s.Duration)
}

func TestDecode(t *testing.T) {
	s, ok, err := Decode(nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, Defaults(), s)

	s, ok, err = Decode([]byte(`{"showClock":false,"currentRound":"9:00 AM"}`))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, DefaultDuration, s.Duration)
	assert.Equal(t, pointer.Bool(false), s.ShowClock)
	assert.Equal(t, "9:00 AM", s.CurrentRound)

	s, ok, err = Decode([]byte(`{"duration":0,"running":false}`))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, s.Duration)
	assert.Equal(t, DefaultDuration, s.LastSetDuration)
	assert.Equal(t, DefaultAfterRoundDuration, s.AfterRoundDuration)
}

func TestClockVisible(t *testing.T) {
	s := Defaults()
	assert.True(t, s.ClockVisible(false))
	s = SetShowClock(s, false)
	assert.False(t, s.ClockVisible(false))
	assert.True(t, s.ClockVisible(true))
}

func TestAdjustable(t *testing.T) {
	s := Defaults()
	assert.True(t, s.Adjustable())
	s.Duration = 120
	assert.False(t, s.Adjustable())
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "5:00", Format(300))
	assert.Equal(t, "0:09", Format(9))
	assert.Equal(t, "0:00", Format(-3))
	assert.Equal(t, "12:34", Format(754))
}

func TestRoundNavigation(t *testing.T) {
	rounds := []string{"9:00 AM", "10:00 AM", "P1"}

	next, ok := NextRound(rounds, "9:00 AM")
	assert.True(t, ok)
	assert.Equal(t, "10:00 AM", next)

	_, ok = NextRound(rounds, "P1")
	assert.False(t, ok)

	_, ok = PreviousRound(rounds, "9:00 AM")
	assert.False(t, ok)

	prev, ok := PreviousRound(rounds, "P1")
	assert.True(t, ok)
	assert.Equal(t, "10:00 AM", prev)

	next, ok = NextRound(rounds, "stale")
	assert.True(t, ok)
	assert.Equal(t, "10:00 AM", next)

	_, ok = PreviousRound(rounds, "stale")
	assert.False(t, ok)

	_, ok = NextRound(nil, "")
	assert.False(t, ok)
}

func TestEnsureRound(t *testing.T) {
	rounds := []string{"9:00 AM", "P1"}
	got, changed := EnsureRound(rounds, "P1")
	assert.False(t, changed)
	assert.Equal(t, "P1", got)

	got, changed = EnsureRound(rounds, "old")
	assert.True(t, changed)
	assert.Equal(t, "9:00 AM", got)

	got, changed = EnsureRound(nil, "")
	assert.True(t, changed)
	assert.Equal(t, UnknownRound, got)

	_, changed = EnsureRound(nil, UnknownRound)
	assert.False(t, changed)
}
