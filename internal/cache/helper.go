package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"quad/internal/middleware"
	"quad/internal/observability"

	"github.com/redis/go-redis/v9"
)

// keyspace is the key prefix up to the first colon, used as a metric label.
func keyspace(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}

func lookup[T any](ctx context.Context, key string) (T, bool) {
	var zero T
	raw, err := client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		observability.CacheLookups.WithLabelValues(keyspace(key), "miss").Inc()
		return zero, false
	case err != nil:
		observability.CacheLookups.WithLabelValues(keyspace(key), "error").Inc()
		middleware.Logger.WarnContext(ctx, "cache read failed", slog.String("key", key), slog.String("error", err.Error()))
		return zero, false
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		// Stale shape from an older release; treat as a miss and overwrite.
		observability.CacheLookups.WithLabelValues(keyspace(key), "error").Inc()
		return zero, false
	}
	observability.CacheLookups.WithLabelValues(keyspace(key), "hit").Inc()
	return v, true
}

func store(ctx context.Context, key string, v any, ttl time.Duration) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := client.Set(ctx, key, raw, ttl).Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}

// Remember returns the cached value for key or, on a miss, the result of load,
// which is then cached for ttl. The bool reports a cache hit. Cache faults
// never fail the call; load errors are returned as is and nothing is stored.
func Remember[T any](ctx context.Context, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, bool, error) {
	if client != nil {
		if v, ok := lookup[T](ctx, key); ok {
			return v, true, nil
		}
	}

	v, err := load(ctx)
	if err != nil {
		return v, false, err
	}
	if client != nil {
		store(ctx, key, v, ttl)
	}
	return v, false, nil
}
