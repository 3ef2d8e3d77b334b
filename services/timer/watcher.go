package timer

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/nvbf/gameday-sync/pkg/countdown"
)

// expirySlack is added to the deadline so the server clock has passed it
// when the timer fires.
const expirySlack = 100 * time.Millisecond

const (
	// retryDelay is used when the store still reports time left at expiry.
	retryDelay = 250 * time.Millisecond
	// errorRetryDelay is used when the expiry could not be written.
	errorRetryDelay = 2 * time.Second
)

// Expirer applies the natural expiry of a countdown.
type Expirer interface {
	HandleExpiry(ctx context.Context, startTime int64) (countdown.State, countdown.ExpiryOutcome, error)
}

// Watcher acts as the privileged controller: it keeps one one-shot timer for
// the running countdown and applies the expiry when it fires.
type Watcher struct {
	expirer Expirer
	server  ServerClock
	clock   clockwork.Clock

	mu      sync.Mutex
	updates chan countdown.State
}

func NewWatcher(expirer Expirer, server ServerClock, clock clockwork.Clock) *Watcher {
	return &Watcher{
		expirer: expirer,
		server:  server,
		clock:   clock,
		updates: make(chan countdown.State, 1),
	}
}

// Observe hands the watcher the latest countdown state. Only the newest
// unprocessed state is kept.
func (w *Watcher) Observe(s countdown.State) {
	w.mu.Lock()
	defer w.mu.Unlock()
	select {
	case <-w.updates:
	default:
	}
	w.updates <- s
}

func (w *Watcher) delay(s countdown.State) time.Duration {
	d := time.Duration(s.Deadline()-w.server.NowMillis())*time.Millisecond + expirySlack
	if d < 0 {
		return 0
	}
	return d
}

// Run serves state updates until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	var (
		timer clockwork.Timer
		fire  <-chan time.Time
		armed countdown.State
	)
	cancel := func() {
		if timer != nil {
			stopAndDrainTimer(timer)
		}
		timer, fire = nil, nil
	}
	arm := func(s countdown.State, d time.Duration) {
		cancel()
		timer = w.clock.NewTimer(d)
		fire = timer.Chan()
		armed = s
		log.Debug().Int64("startTime", s.StartTime).Dur("in", d).Msg("Armed timer expiry")
	}

	for {
		select {
		case <-ctx.Done():
			cancel()
			return
		case s := <-w.updates:
			if !s.Running {
				cancel()
				continue
			}
			if timer != nil && armed.StartTime == s.StartTime && armed.Duration == s.Duration {
				continue
			}
			arm(s, w.delay(s))
		case <-fire:
			timer, fire = nil, nil
			st, outcome, err := w.expirer.HandleExpiry(ctx, armed.StartTime)
			if err != nil {
				log.Error().Err(err).Int64("startTime", armed.StartTime).Msg("Failed to apply timer expiry")
				arm(armed, errorRetryDelay)
				continue
			}
			if outcome == countdown.ExpiryNone && st.Running && st.StartTime == armed.StartTime {
				arm(st, retryDelay)
			}
		}
	}
}

// stopAndDrainTimer stops a timer and drains its channel.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
