package live

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Snapshot kinds.
const (
	KindDivision = "division"
	KindTimer    = "timer"
)

// Snapshot is the full current value of a watched subtree.
type Snapshot struct {
	Kind     string
	Division string
	Data     json.RawMessage
}

// Subscription receives snapshots of one division and of the timer. Only the
// latest snapshot of each kind is kept until it is drained.
//
// Lock order is Hub.mu before Subscription.mu.
type Subscription struct {
	ID string

	mu       sync.Mutex
	division string
	pending  map[string]Snapshot
	ready    chan struct{}
	closed   bool
}

func (s *Subscription) Division() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.division
}

// Ready is signalled when Drain has something to return.
func (s *Subscription) Ready() <-chan struct{} { return s.ready }

// Drain returns the pending snapshots, division before timer.
func (s *Subscription) Drain() []Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Snapshot
	for _, kind := range []string{KindDivision, KindTimer} {
		if snap, ok := s.pending[kind]; ok {
			out = append(out, snap)
			delete(s.pending, kind)
		}
	}
	return out
}

// Next blocks until snapshots are available or ctx is done.
func (s *Subscription) Next(ctx context.Context) ([]Snapshot, error) {
	for {
		if out := s.Drain(); len(out) > 0 {
			return out, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.ready:
		}
	}
}

func (s *Subscription) deliver(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if snap.Kind == KindDivision && snap.Division != s.division {
		return
	}
	s.pending[snap.Kind] = snap
	select {
	case s.ready <- struct{}{}:
	default:
	}
}

// Hub fans out division and timer snapshots to subscriptions.
type Hub struct {
	mu         sync.RWMutex
	byDivision map[string]map[*Subscription]bool
	all        map[*Subscription]bool
	latest     map[string]json.RawMessage
	timer      json.RawMessage
}

func NewHub() *Hub {
	return &Hub{
		byDivision: make(map[string]map[*Subscription]bool),
		all:        make(map[*Subscription]bool),
		latest:     make(map[string]json.RawMessage),
	}
}

// Subscribe watches division. The last known snapshots are replayed at once.
func (h *Hub) Subscribe(division string) *Subscription {
	sub := &Subscription{
		ID:      uuid.New().String(),
		pending: make(map[string]Snapshot),
		ready:   make(chan struct{}, 1),
	}
	h.mu.Lock()
	h.all[sub] = true
	if h.timer != nil {
		sub.deliver(Snapshot{Kind: KindTimer, Data: h.timer})
	}
	h.mu.Unlock()

	h.attach(sub, division)
	log.Debug().Str("subscription", sub.ID).Str("division", division).Msg("Subscribed")
	return sub
}

func (h *Hub) attach(sub *Subscription, division string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub.mu.Lock()
	sub.division = division
	sub.mu.Unlock()
	if division == "" {
		return
	}
	if h.byDivision[division] == nil {
		h.byDivision[division] = make(map[*Subscription]bool)
	}
	h.byDivision[division][sub] = true
	if data := h.latest[division]; data != nil {
		sub.deliver(Snapshot{Kind: KindDivision, Division: division, Data: data})
	}
}

func (h *Hub) detach(sub *Subscription) {
	sub.mu.Lock()
	division := sub.division
	sub.division = ""
	delete(sub.pending, KindDivision)
	sub.mu.Unlock()

	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.byDivision[division]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.byDivision, division)
		}
	}
}

// Switch moves sub to another division. The previous division is detached
// before the new one is attached.
func (h *Hub) Switch(sub *Subscription, division string) {
	if sub.Division() == division {
		return
	}
	h.detach(sub)
	h.attach(sub, division)
}

// Unsubscribe detaches sub for good. It is safe to call more than once.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.detach(sub)
	sub.mu.Lock()
	sub.closed = true
	sub.pending = map[string]Snapshot{}
	sub.mu.Unlock()

	h.mu.Lock()
	delete(h.all, sub)
	h.mu.Unlock()
}

// PublishDivision stores and fans out a division snapshot. It reports false
// when data equals the last published snapshot.
func (h *Hub) PublishDivision(division string, data json.RawMessage) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if bytes.Equal(h.latest[division], data) {
		return false
	}
	h.latest[division] = data
	snap := Snapshot{Kind: KindDivision, Division: division, Data: data}
	for sub := range h.byDivision[division] {
		sub.deliver(snap)
	}
	return true
}

// PublishTimer stores and fans out a timer snapshot to every subscription.
func (h *Hub) PublishTimer(data json.RawMessage) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if bytes.Equal(h.timer, data) {
		return false
	}
	h.timer = data
	snap := Snapshot{Kind: KindTimer, Data: data}
	for sub := range h.all {
		sub.deliver(snap)
	}
	return true
}

// Latest returns the last division snapshot.
func (h *Hub) Latest(division string) (json.RawMessage, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	data, ok := h.latest[division]
	return data, ok
}

// Watched lists the divisions with at least one subscription.
func (h *Hub) Watched() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.byDivision))
	for d := range h.byDivision {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Stats returns statistics about active subscriptions.
func (h *Hub) Stats() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()
	counts := make(map[string]int, len(h.byDivision))
	for d, subs := range h.byDivision {
		counts[d] = len(subs)
	}
	return map[string]interface{}{
		"total_subscriptions":    len(h.all),
		"watched_divisions":      len(h.byDivision),
		"division_subscriptions": counts,
	}
}
