package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Runner runs one reconciliation.
type Runner interface {
	Run(ctx context.Context) (Report, error)
}

// Scheduler runs a reconciliation on an interval.
type Scheduler struct {
	runner   Runner
	clock    clockwork.Clock
	interval time.Duration
}

func NewScheduler(runner Runner, clock clockwork.Clock, interval time.Duration) *Scheduler {
	return &Scheduler{runner: runner, clock: clock, interval: interval}
}

// Run blocks until ctx is done. A non-positive interval disables it.
func (s *Scheduler) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()
	log.Info().Dur("interval", s.interval).Msg("Reconciliation scheduler started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Reconciliation scheduler shutting down")
			return
		case <-ticker.Chan():
			if _, err := s.runner.Run(ctx); err != nil && !errors.Is(err, ErrAlreadyRunning) {
				log.Error().Err(err).Msg("Scheduled reconciliation failed")
			}
		}
	}
}
