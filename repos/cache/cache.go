package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/xerrors"

	"github.com/nvbf/gameday-sync/pkg/schedule"
)

// DivisionCache holds recently loaded division payloads.
type DivisionCache interface {
	Get(ctx context.Context, division string) (schedule.DivisionData, bool, error)
	Set(ctx context.Context, division string, data schedule.DivisionData) error
	Invalidate(ctx context.Context, division string) error
}

// Noop never holds anything.
type Noop struct{}

func (Noop) Get(context.Context, string) (schedule.DivisionData, bool, error) {
	return schedule.DivisionData{}, false, nil
}

func (Noop) Set(context.Context, string, schedule.DivisionData) error { return nil }

func (Noop) Invalidate(context.Context, string) error { return nil }

type kv interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Redis caches payloads as JSON strings with a TTL.
type Redis struct {
	client kv
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

// Connect parses url and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, xerrors.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, xerrors.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func key(division string) string {
	return "alldata:" + division
}

func (r *Redis) Get(ctx context.Context, division string) (schedule.DivisionData, bool, error) {
	b, err := r.client.Get(ctx, key(division)).Bytes()
	if errors.Is(err, redis.Nil) {
		return schedule.DivisionData{}, false, nil
	}
	if err != nil {
		return schedule.DivisionData{}, false, xerrors.Errorf("cache get %s: %w", division, err)
	}
	var data schedule.DivisionData
	if err := json.Unmarshal(b, &data); err != nil {
		// A payload we cannot read is a miss.
		return schedule.DivisionData{}, false, nil
	}
	return data, true, nil
}

func (r *Redis) Set(ctx context.Context, division string, data schedule.DivisionData) error {
	b, err := json.Marshal(data)
	if err != nil {
		return xerrors.Errorf("encode cache entry: %w", err)
	}
	if err := r.client.Set(ctx, key(division), b, r.ttl).Err(); err != nil {
		return xerrors.Errorf("cache set %s: %w", division, err)
	}
	return nil
}

func (r *Redis) Invalidate(ctx context.Context, division string) error {
	if err := r.client.Del(ctx, key(division)).Err(); err != nil {
		return xerrors.Errorf("cache invalidate %s: %w", division, err)
	}
	return nil
}
