package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy decides what happens when Redis cannot answer.
type FailPolicy int

const (
	// FailOpen lets the request through.
	FailOpen FailPolicy = iota
	// FailClosed answers 503.
	FailClosed
)

// Throttle is a named request budget per caller.
type Throttle struct {
	Name   string
	Limit  int
	Window time.Duration
	OnFail FailPolicy
}

// Budgets for write-heavy routes.
var (
	SignupThrottle         = Throttle{Name: "signup", Limit: 3, Window: 10 * time.Minute}
	LoginThrottle          = Throttle{Name: "login", Limit: 10, Window: 5 * time.Minute}
	NetworkRequestThrottle = Throttle{Name: "network_request", Limit: 10, Window: 5 * time.Minute}
	CreatePostThrottle     = Throttle{Name: "create_post", Limit: 5, Window: 5 * time.Minute}
	CreateCommentThrottle  = Throttle{Name: "create_comment", Limit: 10, Window: time.Minute}
	SendMessageThrottle    = Throttle{Name: "send_message", Limit: 30, Window: time.Minute}
)

var errNoRedis = errors.New("redis client is nil")

// Usage is the outcome of counting one request against a Throttle.
type Usage struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
}

// throttlingDisabled is true for APP_ENV test, development (the default) and stress.
func throttlingDisabled() bool {
	switch os.Getenv("APP_ENV") {
	case "", "test", "development", "stress":
		return true
	}
	return false
}

func throttleKey(name, id string) string {
	return fmt.Sprintf("rl:%s:%s", name, id)
}

// Count adds one hit for id and reports whether it fits the budget.
func (t Throttle) Count(ctx context.Context, rdb *redis.Client, id string) (Usage, error) {
	if throttlingDisabled() {
		return Usage{Allowed: true, Remaining: t.Limit}, nil
	}
	if rdb == nil {
		return Usage{}, errNoRedis
	}

	key := throttleKey(t.Name, id)
	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	if _, err := rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		ttl = pipe.PTTL(ctx, key)
		return nil
	}); err != nil {
		return Usage{}, err
	}

	resetIn := ttl.Val()
	if resetIn < 0 {
		// First hit in this window, or a key that lost its expiry.
		if err := rdb.Expire(ctx, key, t.Window).Err(); err != nil {
			return Usage{}, err
		}
		resetIn = t.Window
	}

	hits := int(incr.Val())
	return Usage{
		Allowed:   hits <= t.Limit,
		Remaining: max(t.Limit-hits, 0),
		ResetIn:   resetIn,
	}, nil
}

// CheckRateLimit counts one hit of id against an ad-hoc budget.
func CheckRateLimit(ctx context.Context, rdb *redis.Client, resource, id string, limit int, window time.Duration) (bool, error) {
	u, err := Throttle{Name: resource, Limit: limit, Window: window}.Count(ctx, rdb, id)
	return u.Allowed, err
}

// callerID keys by authenticated user when known, otherwise by IP.
func callerID(c *fiber.Ctx) string {
	if uid, ok := c.Locals("userID").(uint); ok && uid != 0 {
		return "user:" + strconv.FormatUint(uint64(uid), 10)
	}
	return "ip:" + c.IP()
}

// RateLimit enforces t per caller on a route.
func RateLimit(rdb *redis.Client, t Throttle) fiber.Handler {
	return func(c *fiber.Ctx) error {
		usage, err := t.Count(c.UserContext(), rdb, callerID(c))
		if err != nil {
			if t.OnFail == FailClosed {
				Logger.WarnContext(c.UserContext(), "rate limit unavailable, rejecting",
					slog.String("throttle", t.Name),
					slog.String("path", c.Path()),
					slog.String("error", err.Error()),
				)
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"error": "Rate limiting unavailable, try again shortly",
					"code":  "RATE_LIMIT_UNAVAILABLE",
				})
			}
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(t.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(usage.Remaining))
		if !usage.Allowed {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(usage.ResetIn.Round(time.Second).Seconds())))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, slow down",
				"code":  "RATE_LIMITED",
			})
		}
		return c.Next()
	}
}
