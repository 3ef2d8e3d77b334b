package timer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nvbf/gameday-sync/pkg/countdown"
	"github.com/nvbf/gameday-sync/pkg/schedule"
	"github.com/nvbf/gameday-sync/repos"
)

// errUnchanged aborts a transaction without writing.
var errUnchanged = errors.New("unchanged")

// Store holds the shared countdown.
type Store interface {
	GetTimer(ctx context.Context) (countdown.State, bool, error)
	TransactTimer(ctx context.Context, fn func(cur countdown.State, initialized bool) (countdown.State, bool)) error
}

// ServerStamper is a Store that can stamp the start of a running countdown
// with its own clock inside the transaction.
type ServerStamper interface {
	TransactTimerStamped(ctx context.Context, fn func(cur countdown.State, initialized bool) (countdown.State, bool)) error
}

// RoundSource loads the schedule the round list is built from.
type RoundSource interface {
	Load(ctx context.Context, division string) (schedule.DivisionData, error)
}

// ServerClock is the authoritative clock.
type ServerClock interface {
	NowMillis() int64
}

type Options struct {
	Store   Store
	Rounds  RoundSource
	Clock   ServerClock
	Timeout time.Duration
}

// TimerService owns every mutation of the shared countdown. Each mutation
// is a read-then-conditional-write inside a store transaction.
type TimerService struct {
	opts Options

	mu                sync.Mutex
	afterRoundEnabled bool
	expired           int64
	listeners         []func(countdown.State)
}

func NewTimerService(opts Options) *TimerService {
	return &TimerService{opts: opts}
}

// OnChange registers fn to be called with every state this service writes.
func (s *TimerService) OnChange(fn func(countdown.State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *TimerService) notify(st countdown.State) {
	s.mu.Lock()
	listeners := append([]func(countdown.State){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(st)
	}
}

// transact applies fn to the current state. A node that was never written is
// initialized with defaults even when fn refuses the change.
func (s *TimerService) transact(ctx context.Context, op string, fn func(cur countdown.State) (countdown.State, error)) (countdown.State, error) {
	return s.transactWith(ctx, op, s.opts.Store.TransactTimer, false, fn)
}

// transactStamped is transact with the start time taken from the store's
// clock when the store supports it. The stored state is read back so callers
// see the stamped value.
func (s *TimerService) transactStamped(ctx context.Context, op string, fn func(cur countdown.State) (countdown.State, error)) (countdown.State, error) {
	stamper, ok := s.opts.Store.(ServerStamper)
	if !ok {
		return s.transact(ctx, op, fn)
	}
	return s.transactWith(ctx, op, stamper.TransactTimerStamped, true, fn)
}

type transactFunc func(ctx context.Context, fn func(cur countdown.State, initialized bool) (countdown.State, bool)) error

func (s *TimerService) transactWith(ctx context.Context, op string, run transactFunc, readBack bool, fn func(cur countdown.State) (countdown.State, error)) (countdown.State, error) {
	var out countdown.State
	var opErr error
	var wrote bool
	err := repos.WithTimeout(ctx, s.opts.Timeout, func(ctx context.Context) error {
		return run(ctx, func(cur countdown.State, initialized bool) (countdown.State, bool) {
			next, err := fn(cur)
			opErr = err
			if err != nil {
				out = cur
				wrote = !initialized
				return cur, wrote
			}
			out = next
			wrote = true
			return next, true
		})
	})
	if err != nil {
		log.Error().Err(err).Str("op", op).Msg("Timer transaction failed")
		return countdown.State{}, err
	}
	if wrote && readBack && opErr == nil {
		out = s.readBack(ctx, op, out)
	}
	if wrote {
		log.Info().Str("op", op).Bool("running", out.Running).Int("duration", out.Duration).Msg("Timer updated")
		s.notify(out)
	}
	if errors.Is(opErr, errUnchanged) {
		return out, nil
	}
	return out, opErr
}

func (s *TimerService) readBack(ctx context.Context, op string, written countdown.State) countdown.State {
	var st countdown.State
	err := repos.WithTimeout(ctx, s.opts.Timeout, func(ctx context.Context) error {
		var err error
		st, _, err = s.opts.Store.GetTimer(ctx)
		return err
	})
	if err != nil {
		log.Warn().Err(err).Str("op", op).Msg("Failed to read back stamped timer")
		return written
	}
	return st
}

// State returns the current countdown, writing defaults the first time.
func (s *TimerService) State(ctx context.Context) (countdown.State, error) {
	var st countdown.State
	var initialized bool
	err := repos.WithTimeout(ctx, s.opts.Timeout, func(ctx context.Context) error {
		var err error
		st, initialized, err = s.opts.Store.GetTimer(ctx)
		return err
	})
	if err != nil {
		return countdown.State{}, err
	}
	if initialized {
		return st, nil
	}
	return s.transact(ctx, "init", func(cur countdown.State) (countdown.State, error) {
		return cur, errUnchanged
	})
}

// Start runs the countdown from now. Stores that implement ServerStamper
// stamp the start with their own clock.
func (s *TimerService) Start(ctx context.Context) (countdown.State, error) {
	return s.transactStamped(ctx, "start", func(cur countdown.State) (countdown.State, error) {
		return countdown.Start(cur, s.opts.Clock.NowMillis())
	})
}

func (s *TimerService) Stop(ctx context.Context) (countdown.State, error) {
	return s.transact(ctx, "stop", func(cur countdown.State) (countdown.State, error) {
		return countdown.Stop(cur, s.opts.Clock.NowMillis())
	})
}

func (s *TimerService) Reset(ctx context.Context) (countdown.State, error) {
	return s.transact(ctx, "reset", func(cur countdown.State) (countdown.State, error) {
		return countdown.Reset(cur), nil
	})
}

// Adjust returns countdown.ErrTimerRunning when the timer is running at
// write time.
func (s *TimerService) Adjust(ctx context.Context, delta int) (countdown.State, error) {
	return s.transact(ctx, "adjust", func(cur countdown.State) (countdown.State, error) {
		return countdown.Adjust(cur, delta)
	})
}

func (s *TimerService) AdjustAfterRound(ctx context.Context, delta int) (countdown.State, error) {
	return s.transact(ctx, "adjust_after_round", func(cur countdown.State) (countdown.State, error) {
		return countdown.AdjustAfterRound(cur, delta), nil
	})
}

func (s *TimerService) SetShowClock(ctx context.Context, show bool) (countdown.State, error) {
	return s.transact(ctx, "show_clock", func(cur countdown.State) (countdown.State, error) {
		return countdown.SetShowClock(cur, show), nil
	})
}

// SetAfterRoundEnabled toggles the grace countdown on expiry. The flag
// belongs to the controlling process and is not stored.
func (s *TimerService) SetAfterRoundEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.afterRoundEnabled = enabled
	log.Info().Bool("enabled", enabled).Msg("After-round countdown toggled")
}

func (s *TimerService) AfterRoundEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.afterRoundEnabled
}

func (s *TimerService) rounds(ctx context.Context, division string) ([]string, error) {
	var data schedule.DivisionData
	err := repos.WithTimeout(ctx, s.opts.Timeout, func(ctx context.Context) error {
		var err error
		data, err = s.opts.Rounds.Load(ctx, division)
		return err
	})
	if err != nil {
		return nil, err
	}
	return schedule.BuildRoundList(data.Schedule), nil
}

func (s *TimerService) moveRound(ctx context.Context, op, division string, move func([]string, string) (string, bool)) (countdown.State, error) {
	rounds, err := s.rounds(ctx, division)
	if err != nil {
		return countdown.State{}, err
	}
	return s.transact(ctx, op, func(cur countdown.State) (countdown.State, error) {
		next, changed := move(rounds, cur.CurrentRound)
		if !changed {
			return cur, errUnchanged
		}
		cur.CurrentRound = next
		return cur, nil
	})
}

// NextRound moves the current round forward within the division's round
// list. It does nothing at the last round.
func (s *TimerService) NextRound(ctx context.Context, division string) (countdown.State, error) {
	return s.moveRound(ctx, "next_round", division, countdown.NextRound)
}

// PreviousRound does nothing at the first round.
func (s *TimerService) PreviousRound(ctx context.Context, division string) (countdown.State, error) {
	return s.moveRound(ctx, "previous_round", division, countdown.PreviousRound)
}

// EnsureRound replaces a current round the division does not have.
func (s *TimerService) EnsureRound(ctx context.Context, division string) (countdown.State, error) {
	return s.moveRound(ctx, "ensure_round", division, countdown.EnsureRound)
}

// HandleExpiry applies the natural expiry of the countdown started at
// startTime. It acts at most once per start time; later calls and calls for
// a countdown that was restarted or stopped meanwhile return ExpiryNone.
func (s *TimerService) HandleExpiry(ctx context.Context, startTime int64) (countdown.State, countdown.ExpiryOutcome, error) {
	s.mu.Lock()
	if s.expired == startTime {
		s.mu.Unlock()
		return countdown.State{}, countdown.ExpiryNone, nil
	}
	policy := countdown.ExpiryPolicy{AfterRoundEnabled: s.afterRoundEnabled, Privileged: true}
	s.mu.Unlock()

	var outcome countdown.ExpiryOutcome
	st, err := s.transact(ctx, "expire", func(cur countdown.State) (countdown.State, error) {
		outcome = countdown.ExpiryNone
		if !cur.Running || cur.StartTime != startTime {
			return cur, errUnchanged
		}
		next, o := countdown.Expire(cur, s.opts.Clock.NowMillis(), policy)
		if !o.Changed() {
			return cur, errUnchanged
		}
		outcome = o
		return next, nil
	})
	if err != nil {
		return countdown.State{}, countdown.ExpiryNone, err
	}
	if outcome != countdown.ExpiryNone {
		s.mu.Lock()
		s.expired = startTime
		s.mu.Unlock()
		log.Info().Str("outcome", outcome.String()).Int64("startTime", startTime).Msg("Timer expired")
	}
	return st, outcome, nil
}
