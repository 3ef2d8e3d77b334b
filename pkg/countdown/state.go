// Package countdown implements the shared round timer as a pure state
// machine. Callers pass in the authoritative server time in milliseconds;
// nothing here reads a clock.
package countdown

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

const (
	DefaultDuration           = 300
	DefaultAfterRoundDuration = 60
	AdjustStep                = 30
	MinDuration               = 30
	AfterRoundStep            = 15
	MinAfterRoundDuration     = 15
)

var (
	ErrTimerRunning = errors.New("timer is running")
	ErrTimerIdle    = errors.New("timer is not running")
)

// Phase is the derived state of the timer at a point in time.
type Phase int

const (
	Idle Phase = iota
	Running
	RunningAfterRound
	Expired
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case RunningAfterRound:
		return "running_after_round"
	case Expired:
		return "expired"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// State is the persisted singleton timer. Durations are seconds, StartTime
// is server milliseconds since the epoch.
type State struct {
	Duration               int    `json:"duration"`
	LastSetDuration        int    `json:"lastSetDuration"`
	Running                bool   `json:"running"`
	StartTime              int64  `json:"startTime"`
	StartAfterRoundRunning bool   `json:"startAfterRoundRunning"`
	AfterRoundDuration     int    `json:"afterRoundDuration"`
	ShowClock              *bool  `json:"showClock,omitempty"`
	CurrentRound           string `json:"currentRound"`
}

// Defaults is the state written when the timer has never been initialized.
func Defaults() State {
	return State{
		Duration:           DefaultDuration,
		LastSetDuration:    DefaultDuration,
		AfterRoundDuration: DefaultAfterRoundDuration,
	}
}

// Decode reads a stored timer node. The second return is false when the node
// is absent or has no duration, which means it still needs default values.
func Decode(raw []byte) (State, bool, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return Defaults(), false, nil
	}
	var probe struct {
		Duration *float64 `json:"duration"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return State{}, false, err
	}
	var s State
	if err := json.Unmarshal(raw, &s); err != nil {
		return State{}, false, err
	}
	if probe.Duration == nil {
		d := Defaults()
		d.ShowClock = s.ShowClock
		d.CurrentRound = s.CurrentRound
		if s.AfterRoundDuration > 0 {
			d.AfterRoundDuration = s.AfterRoundDuration
		}
		return d, false, nil
	}
	return s.Normalize(), true, nil
}

// Normalize replaces out of range values with defaults.
func (s State) Normalize() State {
	if s.Duration < 0 {
		s.Duration = 0
	}
	if s.LastSetDuration <= 0 {
		s.LastSetDuration = DefaultDuration
	}
	if s.AfterRoundDuration <= 0 {
		s.AfterRoundDuration = DefaultAfterRoundDuration
	}
	return s
}

// elapsedSeconds is floor((now-start)/1000), never negative.
func (s State) elapsedSeconds(nowMillis int64) int {
	d := nowMillis - s.StartTime
	if d <= 0 {
		return 0
	}
	return int(d / 1000)
}

// Remaining is the number of whole seconds left at nowMillis.
func (s State) Remaining(nowMillis int64) int {
	if !s.Running {
		if s.Duration < 0 {
			return 0
		}
		return s.Duration
	}
	left := s.Duration - s.elapsedSeconds(nowMillis)
	if left < 0 {
		return 0
	}
	return left
}

// Phase derives the timer phase at nowMillis.
func (s State) Phase(nowMillis int64) Phase {
	switch {
	case !s.Running:
		return Idle
	case s.Remaining(nowMillis) <= 0:
		return Expired
	case s.StartAfterRoundRunning:
		return RunningAfterRound
	}
	return Running
}

// Deadline is the server millisecond at which a running timer reaches zero.
func (s State) Deadline() int64 {
	return s.StartTime + int64(s.Duration)*1000
}

// Adjustable reports whether the duration controls apply: the timer is idle
// and still shows its last set duration.
func (s State) Adjustable() bool {
	return !s.Running && s.Duration == s.lastSet()
}

// ClockVisible reports whether a viewer should see the clock. Privileged
// viewers always do.
func (s State) ClockVisible(privileged bool) bool {
	return privileged || s.ShowClock == nil || *s.ShowClock
}

func (s State) lastSet() int {
	if s.LastSetDuration > 0 {
		return s.LastSetDuration
	}
	return DefaultDuration
}

func (s State) afterRound() int {
	if s.AfterRoundDuration > 0 {
		return s.AfterRoundDuration
	}
	return DefaultAfterRoundDuration
}

// Format renders seconds as m:ss.
func Format(sec int) string {
	if sec < 0 {
		sec = 0
	}
	return fmt.Sprintf("%d:%02d", sec/60, sec%60)
}

func roundToStep(v, step int) int {
	return int(math.Floor(float64(v)/float64(step)+0.5)) * step
}
