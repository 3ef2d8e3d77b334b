package viewer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvbf/gameday-sync/pkg/schedule"
	"github.com/nvbf/gameday-sync/services/live"
)

type fakeStream struct {
	msgs   chan live.Message
	once   sync.Once
	closed chan struct{}
}

func newFakeStream() *fakeStream {
	return &fakeStream{msgs: make(chan live.Message, 8), closed: make(chan struct{})}
}

func (f *fakeStream) Recv() (live.Message, error) {
	select {
	case m := <-f.msgs:
		return m, nil
	case <-f.closed:
		return live.Message{}, errors.New("closed")
	}
}

func (f *fakeStream) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

type fakeSubscriber struct {
	mu      sync.Mutex
	streams map[string]*fakeStream
	order   []string
}

func (f *fakeSubscriber) Subscribe(_ context.Context, division string) (Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := newFakeStream()
	f.streams[division] = s
	f.order = append(f.order, division)
	return s, nil
}

func (f *fakeSubscriber) stream(division string) *fakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streams[division]
}

func divisionMessage(t *testing.T, division string, data schedule.DivisionData) live.Message {
	t.Helper()
	b, err := json.Marshal(data)
	require.NoError(t, err)
	return live.Message{Type: live.TypeDivision, Division: division, Data: b}
}

func TestSessionSwitchesSubscriptions(t *testing.T) {
	sub := &fakeSubscriber{streams: map[string]*fakeStream{}}
	renders := make(chan string, 8)
	s := NewSession(sub, nil, func(st *State) { renders <- st.Division })
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Watch(ctx, "A"))
	a := sub.stream("A")
	a.msgs <- divisionMessage(t, "A", divisionA())
	assert.Equal(t, "A", waitFor(t, renders))

	require.NoError(t, s.Watch(ctx, "B"))
	select {
	case <-a.closed:
	default:
		t.Fatal("previous subscription left open")
	}
	assert.Equal(t, "B", s.Division())

	b := sub.stream("B")
	b.msgs <- divisionMessage(t, "A", divisionA())
	b.msgs <- divisionMessage(t, "B", divisionB())
	assert.Equal(t, "B", waitFor(t, renders))
	assert.Empty(t, renders)

	var teams []string
	s.Do(func(st *State) { teams = st.Teams })
	<-renders
	assert.Equal(t, []string{"Crows", "Ducks"}, teams)
	assert.Equal(t, []string{"A", "B"}, sub.order)
}

func TestSessionDoneWhenStreamEnds(t *testing.T) {
	sub := &fakeSubscriber{streams: map[string]*fakeStream{}}
	s := NewSession(sub, nil, func(*State) {})
	require.NoError(t, s.Watch(context.Background(), "A"))
	sub.stream("A").Close()
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("session did not end")
	}
	s.Close()
}

func TestSessionFeedsCountdown(t *testing.T) {
	h := newHarness(t, false)
	sub := &fakeSubscriber{streams: map[string]*fakeStream{}}
	s := NewSession(sub, h.cd, func(*State) {})
	defer s.Close()

	require.NoError(t, s.Watch(context.Background(), "A"))
	sub.stream("A").msgs <- live.Message{Type: live.TypeTimer, Data: json.RawMessage(`{"duration":90,"lastSetDuration":90,"running":false}`)}
	assert.Equal(t, "1:30", h.next(t).Text)
}

func waitFor(t *testing.T, ch chan string) string {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
	return ""
}
