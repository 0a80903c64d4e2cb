// Package cache holds the shared Redis client and the cache-aside helpers built on it.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"quad/internal/middleware"
	"quad/internal/observability"

	"github.com/redis/go-redis/v9"
	"github.com/redis/go-redis/v9/maintnotifications"
)

const pingTimeout = 5 * time.Second

var client *redis.Client

// instrumentation feeds command latency and failures into Prometheus.
type instrumentation struct{}

func (instrumentation) DialHook(next redis.DialHook) redis.DialHook { return next }

func (instrumentation) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		record(cmd.Name(), start, err)
		return err
	}
}

func (instrumentation) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		record("pipeline", start, err)
		return err
	}
}

func record(command string, start time.Time, err error) {
	observability.RedisCommandDuration.WithLabelValues(command).Observe(time.Since(start).Seconds())
	if err != nil && !errors.Is(err, redis.Nil) {
		observability.RedisErrors.WithLabelValues(command).Inc()
	}
}

// optionsFor accepts either a redis:// URL or a bare host:port. Maintenance
// notifications are off since older servers reject the handshake.
func optionsFor(addr string) (*redis.Options, error) {
	opts := &redis.Options{Addr: addr}
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	}
	opts.MaintNotificationsConfig = &maintnotifications.Config{Mode: maintnotifications.ModeDisabled}
	return opts, nil
}

// Open dials Redis and verifies it answers PING.
func Open(ctx context.Context, addr string) (*redis.Client, error) {
	opts, err := optionsFor(addr)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	rdb.AddHook(instrumentation{})

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// InitRedis installs the shared client. On failure the client stays nil and
// every caller runs without a cache.
func InitRedis(addr string) {
	rdb, err := Open(context.Background(), addr)
	if err != nil {
		middleware.Logger.Warn("redis unavailable, running without cache", slog.String("error", err.Error()))
		client = nil
		return
	}
	middleware.Logger.Info("redis connected", slog.String("addr", rdb.Options().Addr))
	client = rdb
}

// SetClient swaps the shared client, e.g. for a miniredis instance in tests.
func SetClient(rdb *redis.Client) {
	if rdb != nil {
		rdb.AddHook(instrumentation{})
	}
	client = rdb
}

// GetClient returns the shared client, which may be nil.
func GetClient() *redis.Client {
	return client
}
