package countdown

// Start begins the countdown at nowMillis. A zero duration starts from the
// default.
func Start(s State, nowMillis int64) (State, error) {
	if s.Running {
		return s, ErrTimerRunning
	}
	if s.Duration <= 0 {
		s.Duration = DefaultDuration
	}
	s.StartTime = nowMillis
	s.Running = true
	return s, nil
}

// Stop freezes the remaining time into Duration. The after-round flag is
// kept so a reset can clear it.
func Stop(s State, nowMillis int64) (State, error) {
	if !s.Running {
		return s, ErrTimerIdle
	}
	left := s.Duration - s.elapsedSeconds(nowMillis)
	if left < 0 {
		left = 0
	}
	s.Duration = left
	s.Running = false
	return s, nil
}

// Reset returns to the last set duration.
func Reset(s State) State {
	s.Duration = s.lastSet()
	s.Running = false
	s.StartAfterRoundRunning = false
	return s
}

// Adjust changes the duration by delta seconds, rounded to the nearest
// AdjustStep and floored at MinDuration. It is refused while running.
func Adjust(s State, delta int) (State, error) {
	if s.Running {
		return s, ErrTimerRunning
	}
	d := s.Duration + delta
	if d < MinDuration {
		d = MinDuration
	}
	d = roundToStep(d, AdjustStep)
	s.Duration = d
	s.LastSetDuration = d
	s.Running = false
	return s, nil
}

// AdjustAfterRound changes the grace period length by delta seconds,
// floored at MinAfterRoundDuration.
func AdjustAfterRound(s State, delta int) State {
	d := s.afterRound() + delta
	if d < MinAfterRoundDuration {
		d = MinAfterRoundDuration
	}
	s.AfterRoundDuration = d
	return s
}

func SetShowClock(s State, show bool) State {
	s.ShowClock = &show
	return s
}

// ExpiryPolicy describes the viewer handling an expiry.
type ExpiryPolicy struct {
	// AfterRoundEnabled starts the grace countdown instead of stopping.
	AfterRoundEnabled bool
	// Privileged viewers write the reset; others only blink locally.
	Privileged bool
}

// ExpiryOutcome says what Expire did.
type ExpiryOutcome int

const (
	ExpiryNone ExpiryOutcome = iota
	ExpiryAfterRoundFinished
	ExpiryAfterRoundStarted
	ExpiryReset
	ExpiryBlink
)

func (o ExpiryOutcome) String() string {
	switch o {
	case ExpiryAfterRoundFinished:
		return "after_round_finished"
	case ExpiryAfterRoundStarted:
		return "after_round_started"
	case ExpiryReset:
		return "reset"
	case ExpiryBlink:
		return "blink"
	}
	return "none"
}

// Changed reports whether the outcome must be written to the shared store.
func (o ExpiryOutcome) Changed() bool {
	return o == ExpiryAfterRoundFinished || o == ExpiryAfterRoundStarted || o == ExpiryReset
}

// Expire applies the natural expiry transition at nowMillis. It does nothing
// unless the timer is running and has reached zero.
func Expire(s State, nowMillis int64, p ExpiryPolicy) (State, ExpiryOutcome) {
	if s.Phase(nowMillis) != Expired {
		return s, ExpiryNone
	}
	switch {
	case s.StartAfterRoundRunning:
		s.Duration = s.lastSet()
		s.LastSetDuration = s.lastSet()
		s.Running = false
		s.StartAfterRoundRunning = false
		return s, ExpiryAfterRoundFinished
	case p.AfterRoundEnabled:
		s.Duration = s.afterRound()
		s.StartTime = nowMillis
		s.Running = true
		s.StartAfterRoundRunning = true
		return s, ExpiryAfterRoundStarted
	case !p.Privileged:
		return s, ExpiryBlink
	}
	s.Duration = s.lastSet()
	s.Running = false
	return s, ExpiryReset
}
