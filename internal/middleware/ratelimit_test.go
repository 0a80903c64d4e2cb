package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestCheckRateLimit(t *testing.T) {
	tests := []struct {
		name      string
		env       string
		nilRedis  bool
		limit     int
		calls     int
		wantAllow bool
		wantErr   bool
	}{
		{name: "test env bypass", env: "test", limit: 1, calls: 5, wantAllow: true},
		{name: "development bypass", env: "development", limit: 1, calls: 5, wantAllow: true},
		{name: "empty env is development", env: "", limit: 1, calls: 5, wantAllow: true},
		{name: "stress bypass", env: "stress", limit: 1, calls: 5, wantAllow: true},
		{name: "under limit", env: "production", limit: 3, calls: 3, wantAllow: true},
		{name: "over limit", env: "production", limit: 3, calls: 4, wantAllow: false},
		{name: "nil redis errors", env: "production", nilRedis: true, limit: 1, calls: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("APP_ENV", tt.env)
			_, rdb := newRedis(t)
			if tt.nilRedis {
				rdb = nil
			}

			var (
				allowed bool
				err     error
			)
			for i := 0; i < tt.calls; i++ {
				allowed, err = CheckRateLimit(context.Background(), rdb, "res", "ip:1", tt.limit, time.Minute)
			}
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAllow, allowed)
		})
	}
}

func TestCheckRateLimit_WindowExpires(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	mr, rdb := newRedis(t)
	ctx := context.Background()

	allowed, err := CheckRateLimit(ctx, rdb, "login", "ip:1", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = CheckRateLimit(ctx, rdb, "login", "ip:1", 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)

	assert.Equal(t, time.Minute, mr.TTL("rl:login:ip:1"))
	mr.FastForward(time.Minute + time.Second)

	allowed, err = CheckRateLimit(ctx, rdb, "login", "ip:1", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	_, rdb := newRedis(t)

	app := fiber.New()
	signup := Throttle{Name: "signup", Limit: 2, Window: time.Minute}
	app.Post("/signup", RateLimit(rdb, signup), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})

	var (
		codes     []int
		remaining []string
		last      *http.Response
	)
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/signup", nil), -1)
		require.NoError(t, err)
		_ = resp.Body.Close()
		codes = append(codes, resp.StatusCode)
		remaining = append(remaining, resp.Header.Get("X-RateLimit-Remaining"))
		last = resp
	}
	assert.Equal(t, []int{fiber.StatusCreated, fiber.StatusCreated, fiber.StatusTooManyRequests}, codes)
	assert.Equal(t, []string{"1", "0", "0"}, remaining)
	assert.Equal(t, "2", last.Header.Get("X-RateLimit-Limit"))
	assert.Equal(t, "60", last.Header.Get(fiber.HeaderRetryAfter))
}

func TestThrottleCount_RepairsMissingExpiry(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	mr, rdb := newRedis(t)
	require.NoError(t, mr.Set("rl:create_post:ip:9", "2"))

	u, err := CreatePostThrottle.Count(context.Background(), rdb, "ip:9")
	require.NoError(t, err)
	assert.True(t, u.Allowed)
	assert.Equal(t, 2, u.Remaining)
	assert.Equal(t, CreatePostThrottle.Window, mr.TTL("rl:create_post:ip:9"))
}

func TestRateLimitMiddleware_KeysByUser(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	mr, rdb := newRedis(t)

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userID", uint(7))
		return c.Next()
	})
	app.Post("/msg", RateLimit(rdb, SendMessageThrottle), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/msg", nil), -1)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.True(t, mr.Exists("rl:send_message:user:7"))
}

func TestRateLimit_RedisDown(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	mr, rdb := newRedis(t)
	mr.Close()

	handler := func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) }

	open := fiber.New()
	open.Get("/", RateLimit(rdb, Throttle{Name: "x", Limit: 1, Window: time.Minute, OnFail: FailOpen}), handler)
	resp, err := open.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	closed := fiber.New()
	closed.Get("/", RateLimit(rdb, Throttle{Name: "x", Limit: 1, Window: time.Minute, OnFail: FailClosed}), handler)
	resp, err = closed.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}
