package timer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvbf/gameday-sync/pkg/countdown"
	"github.com/nvbf/gameday-sync/pkg/schedule"
)

const t0 = int64(1_700_000_000_000)

type fakeStore struct {
	mu          sync.Mutex
	state       countdown.State
	initialized bool
	writes      int
	err         error
}

func (f *fakeStore) GetTimer(context.Context) (countdown.State, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.initialized {
		return countdown.Defaults(), false, f.err
	}
	return f.state, true, f.err
}

func (f *fakeStore) TransactTimer(_ context.Context, fn func(countdown.State, bool) (countdown.State, bool)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	cur := f.state
	if !f.initialized {
		cur = countdown.Defaults()
	}
	next, ok := fn(cur, f.initialized)
	if ok {
		f.state = next
		f.initialized = true
		f.writes++
	}
	return nil
}

type manualClock struct {
	mu sync.Mutex
	ms int64
}

func (c *manualClock) NowMillis() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ms
}

func (c *manualClock) set(ms int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ms = ms
}

type fakeRounds struct{}

func (fakeRounds) Load(context.Context, string) (schedule.DivisionData, error) {
	return schedule.DivisionData{Schedule: []schedule.Match{
		{RoundTime: "P1.Final"},
		{RoundTime: "10:00 AM"},
		{RoundTime: "9:00 AM"},
		{RoundTime: "10:00 AM"},
	}}, nil
}

func newTestService() (*TimerService, *fakeStore, *manualClock) {
	store := &fakeStore{}
	clock := &manualClock{ms: t0}
	return NewTimerService(Options{Store: store, Rounds: fakeRounds{}, Clock: clock}), store, clock
}

func TestStateInitializesDefaults(t *testing.T) {
	s, store, _ := newTestService()
	st, err := s.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 300, st.Duration)
	assert.True(t, store.initialized)
	assert.Equal(t, 1, store.writes)

	_, err = s.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, store.writes)
}

func TestStartStopReset(t *testing.T) {
	s, _, clock := newTestService()
	ctx := context.Background()

	st, err := s.Start(ctx)
	require.NoError(t, err)
	assert.True(t, st.Running)
	assert.Equal(t, t0, st.StartTime)

	_, err = s.Start(ctx)
	assert.ErrorIs(t, err, countdown.ErrTimerRunning)

	clock.set(t0 + 61_500)
	st, err = s.Stop(ctx)
	require.NoError(t, err)
	assert.False(t, st.Running)
	assert.Equal(t, 239, st.Duration)

	_, err = s.Stop(ctx)
	assert.ErrorIs(t, err, countdown.ErrTimerIdle)

	st, err = s.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, 300, st.Duration)
}

func TestAdjustRefusedWhileRunning(t *testing.T) {
	s, store, _ := newTestService()
	ctx := context.Background()

	st, err := s.Adjust(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, 330, st.Duration)
	assert.Equal(t, 330, st.LastSetDuration)

	st, err = s.Adjust(ctx, -1000)
	require.NoError(t, err)
	assert.Equal(t, 30, st.Duration)

	_, err = s.Start(ctx)
	require.NoError(t, err)
	writes := store.writes
	_, err = s.Adjust(ctx, 30)
	assert.ErrorIs(t, err, countdown.ErrTimerRunning)
	assert.Equal(t, writes, store.writes)
	assert.Equal(t, 30, store.state.Duration)
}

func TestAfterRoundAndShowClock(t *testing.T) {
	s, _, _ := newTestService()
	ctx := context.Background()

	st, err := s.AdjustAfterRound(ctx, -100)
	require.NoError(t, err)
	assert.Equal(t, 15, st.AfterRoundDuration)

	st, err = s.SetShowClock(ctx, false)
	require.NoError(t, err)
	require.NotNil(t, st.ShowClock)
	assert.False(t, *st.ShowClock)

	assert.False(t, s.AfterRoundEnabled())
	s.SetAfterRoundEnabled(true)
	assert.True(t, s.AfterRoundEnabled())
}

func TestRoundNavigationClamps(t *testing.T) {
	s, store, _ := newTestService()
	ctx := context.Background()

	st, err := s.EnsureRound(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, "9:00 AM", st.CurrentRound)

	st, err = s.PreviousRound(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, "9:00 AM", st.CurrentRound)

	st, err = s.NextRound(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, "10:00 AM", st.CurrentRound)
	st, err = s.NextRound(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, "P1.Final", st.CurrentRound)

	writes := store.writes
	st, err = s.NextRound(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, "P1.Final", st.CurrentRound)
	assert.Equal(t, writes, store.writes)
}

func TestHandleExpiryFiresOnce(t *testing.T) {
	s, store, clock := newTestService()
	ctx := context.Background()
	var notified []countdown.State
	s.OnChange(func(st countdown.State) { notified = append(notified, st) })

	_, err := s.Start(ctx)
	require.NoError(t, err)

	clock.set(t0 + 100_000)
	st, outcome, err := s.HandleExpiry(ctx, t0)
	require.NoError(t, err)
	assert.Equal(t, countdown.ExpiryNone, outcome)
	assert.True(t, st.Running)

	clock.set(t0 + 305_000)
	assert.Equal(t, 0, store.state.Remaining(clock.NowMillis()))
	st, outcome, err = s.HandleExpiry(ctx, t0)
	require.NoError(t, err)
	assert.Equal(t, countdown.ExpiryReset, outcome)
	assert.False(t, st.Running)
	assert.Equal(t, 300, st.Duration)

	writes := store.writes
	_, outcome, err = s.HandleExpiry(ctx, t0)
	require.NoError(t, err)
	assert.Equal(t, countdown.ExpiryNone, outcome)
	assert.Equal(t, writes, store.writes)
	assert.Len(t, notified, 2)
}

func TestHandleExpiryAfterRound(t *testing.T) {
	s, _, clock := newTestService()
	ctx := context.Background()
	s.SetAfterRoundEnabled(true)

	_, err := s.Start(ctx)
	require.NoError(t, err)
	clock.set(t0 + 300_000)
	st, outcome, err := s.HandleExpiry(ctx, t0)
	require.NoError(t, err)
	assert.Equal(t, countdown.ExpiryAfterRoundStarted, outcome)
	assert.True(t, st.StartAfterRoundRunning)
	assert.Equal(t, 60, st.Duration)

	clock.set(t0 + 360_000)
	st, outcome, err = s.HandleExpiry(ctx, st.StartTime)
	require.NoError(t, err)
	assert.Equal(t, countdown.ExpiryAfterRoundFinished, outcome)
	assert.False(t, st.Running)
	assert.Equal(t, 300, st.Duration)
}

func TestStoreErrorIsReturned(t *testing.T) {
	s, store, _ := newTestService()
	store.err = errors.New("unavailable")
	_, err := s.Start(context.Background())
	assert.Error(t, err)
}

func TestHTTP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	s, _, clock := newTestService()
	NewHTTPHandler(HTTPOptions{
		Service:     s,
		Clock:       clock,
		Router:      r.Group("/api"),
		AdminRouter: r.Group("/api"),
	})

	do := func(method, path, body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		return w
	}

	w := do(http.MethodGet, "/api/timer", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Success   bool            `json:"success"`
		Timer     countdown.State `json:"timer"`
		Remaining int             `json:"remaining"`
		Phase     string          `json:"phase"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, 300, body.Remaining)
	assert.Equal(t, "idle", body.Phase)

	w = do(http.MethodPost, "/api/timer/start", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(http.MethodPost, "/api/timer/adjust", `{"delta":30}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)

	w = do(http.MethodPost, "/api/timer/after-round/enabled", `{"enabled":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"afterRoundEnabled":true`)

	w = do(http.MethodPost, "/api/timer/round/next", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(http.MethodPost, "/api/timer/round/next?sheetName=A", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"currentRound":"10:00 AM"`)

	w = do(http.MethodPost, "/api/timer/round/ensure?sheetName=A", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"currentRound":"10:00 AM"`)
}

// stampingStore stamps running countdowns with its own clock, like the tree.
type stampingStore struct {
	*fakeStore
	serverMs int64
}

func (f *stampingStore) TransactTimerStamped(ctx context.Context, fn func(countdown.State, bool) (countdown.State, bool)) error {
	return f.TransactTimer(ctx, func(cur countdown.State, initialized bool) (countdown.State, bool) {
		next, ok := fn(cur, initialized)
		if ok && next.Running {
			next.StartTime = f.serverMs
		}
		return next, ok
	})
}

func TestStartUsesStoreClock(t *testing.T) {
	store := &stampingStore{fakeStore: &fakeStore{}, serverMs: t0 + 420}
	clock := &manualClock{ms: t0}
	s := NewTimerService(Options{Store: store, Rounds: fakeRounds{}, Clock: clock})
	var notified []countdown.State
	s.OnChange(func(st countdown.State) { notified = append(notified, st) })

	st, err := s.Start(context.Background())
	require.NoError(t, err)
	assert.True(t, st.Running)
	assert.Equal(t, t0+420, st.StartTime)
	require.Len(t, notified, 1)
	assert.Equal(t, t0+420, notified[0].StartTime)

	_, err = s.Start(context.Background())
	assert.ErrorIs(t, err, countdown.ErrTimerRunning)
	assert.Equal(t, t0+420, store.state.StartTime)
}
