package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvbf/gameday-sync/pkg/schedule"
)

type fakeKV struct {
	data map[string]string
	ttl  map[string]time.Duration
	err  error
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (f *fakeKV) Get(_ context.Context, key string) *redis.StringCmd {
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeKV) Set(_ context.Context, key string, value interface{}, exp time.Duration) *redis.StatusCmd {
	f.data[key] = string(value.([]byte))
	f.ttl[key] = exp
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeKV) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(f.data, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func TestRedisRoundTrip(t *testing.T) {
	kv := newFakeKV()
	c := &Redis{client: kv, ttl: 15 * time.Second}
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "Div A")
	require.NoError(t, err)
	assert.False(t, ok)

	data := schedule.DivisionData{
		Settings:  schedule.Settings{IsTieAllowed: true},
		Standings: []schedule.StandingsEntry{{Rank: 1, Team: "Ducks"}},
		Schedule:  []schedule.Match{{Match: "1", Team1: "Ducks", Team2: "Geese", FirebaseIndex: schedule.IndexKey(0)}},
	}
	require.NoError(t, c.Set(ctx, "Div A", data))
	assert.Equal(t, 15*time.Second, kv.ttl["alldata:Div A"])

	got, ok, err := c.Get(ctx, "Div A")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, data, got)

	require.NoError(t, c.Invalidate(ctx, "Div A"))
	_, ok, _ = c.Get(ctx, "Div A")
	assert.False(t, ok)
}

func TestRedisCorruptEntryIsMiss(t *testing.T) {
	kv := newFakeKV()
	kv.data["alldata:X"] = "{broken"
	_, ok, err := (&Redis{client: kv}).Get(context.Background(), "X")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisError(t *testing.T) {
	kv := newFakeKV()
	kv.err = errors.New("down")
	_, _, err := (&Redis{client: kv}).Get(context.Background(), "X")
	assert.Error(t, err)
}
