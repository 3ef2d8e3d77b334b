package viewer

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/nvbf/gameday-sync/pkg/countdown"
	"github.com/nvbf/gameday-sync/pkg/schedule"
	"github.com/nvbf/gameday-sync/services/live"
)

// Stream is one subscription to a division.
type Stream interface {
	Recv() (live.Message, error)
	Close() error
}

// Subscriber opens subscriptions.
type Subscriber interface {
	Subscribe(ctx context.Context, division string) (Stream, error)
}

// Session holds at most one subscription and feeds each delivered snapshot
// into the State and the Countdown from a single loop.
type Session struct {
	subscriber Subscriber
	countdown  *Countdown
	render     func(*State)

	stateMu sync.Mutex
	state   *State

	mu       sync.Mutex
	division string
	stream   Stream
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewSession(subscriber Subscriber, cd *Countdown, render func(*State)) *Session {
	return &Session{
		subscriber: subscriber,
		countdown:  cd,
		render:     render,
		state:      NewState(),
	}
}

// Watch switches to division. The previous subscription is closed and its
// loop has ended before the new one is opened.
func (s *Session) Watch(ctx context.Context, division string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()

	stream, err := s.subscriber.Subscribe(ctx, division)
	if err != nil {
		return err
	}
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.division, s.stream, s.cancel, s.done = division, stream, cancel, done
	go func() {
		defer close(done)
		s.loop(loopCtx, division, stream)
	}()
	log.Info().Str("division", division).Msg("Watching division")
	return nil
}

// Done is closed when the current subscription ends.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return s.done
}

func (s *Session) Division() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.division
}

// Close ends the subscription and the countdown loop.
func (s *Session) Close() {
	s.mu.Lock()
	s.stopLocked()
	s.mu.Unlock()
	if s.countdown != nil {
		s.countdown.Stop()
	}
}

func (s *Session) stopLocked() {
	if s.stream == nil {
		return
	}
	s.cancel()
	s.stream.Close()
	<-s.done
	s.stream, s.cancel = nil, nil
}

// Do runs fn on the state and re-renders.
func (s *Session) Do(fn func(*State)) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	fn(s.state)
	s.render(s.state)
}

func (s *Session) loop(ctx context.Context, division string, stream Stream) {
	for {
		m, err := stream.Recv()
		if err != nil {
			if ctx.Err() == nil {
				log.Warn().Err(err).Str("division", division).Msg("Subscription ended")
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		s.handle(division, m)
	}
}

func (s *Session) handle(division string, m live.Message) {
	switch m.Type {
	case live.TypeDivision:
		if m.Division != division {
			return
		}
		var data schedule.DivisionData
		if err := json.Unmarshal(m.Data, &data); err != nil {
			log.Error().Err(err).Str("division", division).Msg("Failed to decode division snapshot")
			return
		}
		s.Do(func(st *State) { st.Apply(division, data) })
	case live.TypeTimer:
		st, _, err := countdown.Decode(m.Data)
		if err != nil {
			log.Error().Err(err).Msg("Failed to decode timer snapshot")
			return
		}
		if s.countdown != nil {
			s.countdown.Update(st)
		}
	case live.TypeError:
		log.Warn().Str("error", m.Error).Msg("Server rejected a message")
	}
}
