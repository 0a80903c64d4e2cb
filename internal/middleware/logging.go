// Package middleware provides request-scoped Fiber middleware and the shared logger.
package middleware

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Logger is the process-wide structured logger.
var Logger *slog.Logger

func init() {
	Logger = NewLogger(os.Getenv("APP_ENV"))
}

// NewLogger returns a JSON logger in production and a text logger elsewhere.
// LOG_LEVEL (debug, info, warn, error) overrides the default of info.
func NewLogger(env string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: levelFromEnv(os.Getenv("LOG_LEVEL"))}

	var h slog.Handler
	switch env {
	case "production", "prod":
		h = slog.NewJSONHandler(os.Stdout, opts)
	default:
		h = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(scopeHandler{h})
}

func levelFromEnv(v string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(v))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

type scopeKey struct{}

// requestScope carries the identifiers every log line of a request should have.
// It is stored by pointer so later middleware (auth, tracing) can fill it in.
type requestScope struct {
	RequestID string
	TraceID   string
	UserID    uint
}

func scopeFrom(ctx context.Context) *requestScope {
	s, _ := ctx.Value(scopeKey{}).(*requestScope)
	return s
}

// WithRequestID returns ctx carrying a request scope with the given ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if s := scopeFrom(ctx); s != nil {
		s.RequestID = requestID
		return ctx
	}
	return context.WithValue(ctx, scopeKey{}, &requestScope{RequestID: requestID})
}

// WithUserID tags ctx with the authenticated user.
func WithUserID(ctx context.Context, userID uint) context.Context {
	if s := scopeFrom(ctx); s != nil {
		s.UserID = userID
		return ctx
	}
	return context.WithValue(ctx, scopeKey{}, &requestScope{UserID: userID})
}

// scopeHandler appends request_id, trace_id and user_id from the request scope.
type scopeHandler struct {
	slog.Handler
}

func (h scopeHandler) Handle(ctx context.Context, r slog.Record) error {
	if s := scopeFrom(ctx); s != nil {
		if s.RequestID != "" {
			r.AddAttrs(slog.String("request_id", s.RequestID))
		}
		if s.TraceID != "" {
			r.AddAttrs(slog.String("trace_id", s.TraceID))
		}
		if s.UserID != 0 {
			r.AddAttrs(slog.Uint64("user_id", uint64(s.UserID)))
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h scopeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return scopeHandler{h.Handler.WithAttrs(attrs)}
}

func (h scopeHandler) WithGroup(name string) slog.Handler {
	return scopeHandler{h.Handler.WithGroup(name)}
}

// RequestScope opens the log scope for a request. It must run after requestid.
func RequestScope() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rid, _ := c.Locals("requestid").(string)
		c.SetUserContext(context.WithValue(c.UserContext(), scopeKey{}, &requestScope{RequestID: rid}))
		return c.Next()
	}
}

// quietPaths are polled by probes and scrapers.
var quietPaths = map[string]bool{
	"/health":       true,
	"/health/live":  true,
	"/health/ready": true,
	"/metrics":      true,
}

// AccessLog writes one line per request, at warn for 4xx and error for 5xx.
func AccessLog() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if quietPaths[c.Path()] {
			return c.Next()
		}
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}
		attrs := []slog.Attr{
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.String("route", c.Route().Path),
			slog.Int("status", status),
			slog.Duration("latency", time.Since(start)),
			slog.String("ip", c.IP()),
		}

		level, msg := slog.LevelInfo, "request processed"
		switch {
		case err != nil || status >= fiber.StatusInternalServerError:
			level, msg = slog.LevelError, "request failed"
			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
			}
		case status >= fiber.StatusBadRequest:
			level = slog.LevelWarn
		}
		Logger.LogAttrs(c.UserContext(), level, msg, attrs...)
		return err
	}
}
