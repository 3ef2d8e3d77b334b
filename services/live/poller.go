package live

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/nvbf/gameday-sync/pkg/countdown"
	"github.com/nvbf/gameday-sync/pkg/schedule"
)

// DivisionLoader reads a division from its store, bypassing any cache.
type DivisionLoader interface {
	Load(ctx context.Context, division string) (schedule.DivisionData, error)
}

// TimerReader reads the shared countdown.
type TimerReader interface {
	GetTimer(ctx context.Context) (countdown.State, bool, error)
}

// Poller keeps the hub current by reading watched divisions and the timer
// from the stores on an interval, and on demand through Refresh.
type Poller struct {
	hub      *Hub
	loader   DivisionLoader
	timer    TimerReader
	clock    clockwork.Clock
	interval time.Duration
	timeout  time.Duration

	mu       sync.Mutex
	pending  map[string]bool
	kick     chan struct{}
	watchers []func(countdown.State)
}

func NewPoller(hub *Hub, loader DivisionLoader, timer TimerReader, clock clockwork.Clock, interval, timeout time.Duration) *Poller {
	return &Poller{
		hub:      hub,
		loader:   loader,
		timer:    timer,
		clock:    clock,
		interval: interval,
		timeout:  timeout,
		pending:  make(map[string]bool),
		kick:     make(chan struct{}, 1),
	}
}

// OnTimer registers fn to be called with every timer state the poller reads
// or is handed.
func (p *Poller) OnTimer(fn func(countdown.State)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.watchers = append(p.watchers, fn)
}

// Refresh schedules an immediate reload of division. It never blocks.
func (p *Poller) Refresh(_ context.Context, division string) {
	p.mu.Lock()
	p.pending[division] = true
	p.mu.Unlock()
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// TimerChanged publishes a timer state that was just written.
func (p *Poller) TimerChanged(s countdown.State) {
	p.publishTimer(s)
}

// Run polls until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()
	log.Info().Dur("interval", p.interval).Msg("Live poller started")

	p.PollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Live poller shutting down")
			return
		case <-ticker.Chan():
			p.PollOnce(ctx)
		case <-p.kick:
			p.refreshPending(ctx)
		}
	}
}

// PollOnce reloads the timer and every watched division.
func (p *Poller) PollOnce(ctx context.Context) {
	p.pollTimer(ctx)
	for _, division := range p.hub.Watched() {
		p.pollDivision(ctx, division)
	}
}

func (p *Poller) refreshPending(ctx context.Context) {
	p.mu.Lock()
	divisions := make([]string, 0, len(p.pending))
	for d := range p.pending {
		divisions = append(divisions, d)
	}
	p.pending = make(map[string]bool)
	p.mu.Unlock()

	for _, d := range divisions {
		p.pollDivision(ctx, d)
	}
}

func (p *Poller) pollDivision(ctx context.Context, division string) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	data, err := p.loader.Load(ctx, division)
	if err != nil {
		log.Warn().Err(err).Str("division", division).Msg("Failed to poll division")
		return
	}
	b, err := json.Marshal(data)
	if err != nil {
		log.Error().Err(err).Str("division", division).Msg("Failed to encode division")
		return
	}
	if p.hub.PublishDivision(division, b) {
		log.Debug().Str("division", division).Msg("Division changed")
	}
}

func (p *Poller) pollTimer(ctx context.Context) {
	if p.timer == nil {
		return
	}
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	s, _, err := p.timer.GetTimer(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to poll timer")
		return
	}
	p.publishTimer(s)
}

func (p *Poller) publishTimer(s countdown.State) {
	b, err := json.Marshal(s)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode timer")
		return
	}
	p.hub.PublishTimer(b)

	p.mu.Lock()
	watchers := append([]func(countdown.State){}, p.watchers...)
	p.mu.Unlock()
	for _, fn := range watchers {
		fn(s)
	}
}

func (p *Poller) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.timeout)
}
