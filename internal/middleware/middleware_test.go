package middleware

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/faireye-hive/hive-cache/internal/observability"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckRateLimit(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		allowed bool
		wantErr bool
	}{
		{name: "Test Environment Bypass", env: "test", allowed: true},
		{name: "Development Environment Bypass", env: "development", allowed: true},
		{name: "Nil Redis In Production", env: "production", allowed: false, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("APP_ENV", tt.env)

			allowed, err := CheckRateLimit(context.Background(), nil, "scan", "1", 1, time.Minute)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoRedis)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.allowed, allowed)
		})
	}
}

func TestCheckRateLimitCountsInRedis(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := CheckRateLimit(ctx, rdb, "scan", "ip:1", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := CheckRateLimit(ctx, rdb, "scan", "ip:1", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.True(t, mr.Exists("hivecache:rl:scan:ip:1"))
	assert.Greater(t, mr.TTL("hivecache:rl:scan:ip:1"), time.Duration(0))

	mr.FastForward(time.Minute + time.Second)
	ok, err = CheckRateLimit(ctx, rdb, "scan", "ip:1", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRateLimitMiddleware(t *testing.T) {
	ok := func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) }

	t.Run("Bypass in test mode", func(t *testing.T) {
		t.Setenv("APP_ENV", "test")
		app := fiber.New()
		app.Get("/test", RateLimit(nil, 1, time.Minute), ok)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/test", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		_ = resp.Body.Close()
	})

	t.Run("FailOpen with nil redis in production", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		app := fiber.New()
		app.Get("/test", RateLimit(nil, 1, time.Minute), ok)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/test", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		_ = resp.Body.Close()
	})

	t.Run("FailClosed with nil redis in production", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		app := fiber.New()
		app.Get("/sensitive", RateLimitWithPolicy(nil, 1, time.Minute, FailClosed), ok)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/sensitive", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		_ = resp.Body.Close()
	})

	t.Run("Rejects over the limit", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer func() { _ = rdb.Close() }()

		app := fiber.New()
		app.Post("/scan", RateLimit(rdb, 1, time.Minute, "scan"), ok)

		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/scan", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		_ = resp.Body.Close()

		resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/scan", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		_ = resp.Body.Close()
	})
}

func TestContextMiddlewarePropagatesModerator(t *testing.T) {
	var got struct{ requestID, moderator string }
	session := func() string { return "session-mod" }

	app := fiber.New()
	app.Use(requestid.New())
	app.Use(ContextMiddleware(session))
	app.Get("/", func(c *fiber.Ctx) error {
		got.requestID, _ = c.UserContext().Value(observability.RequestIDKey).(string)
		got.moderator = observability.ModeratorFrom(c.UserContext())
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.NotEmpty(t, got.requestID)
	assert.Equal(t, "session-mod", got.moderator)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(ModeratorHeader, "header-mod")
	resp, err = app.Test(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, "header-mod", got.moderator)
}

func TestStructuredLoggerWritesRequestLine(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewLogger("production", &buf, slog.LevelInfo)

	app := fiber.New()
	app.Use(requestid.New())
	app.Use(ContextMiddleware(nil))
	app.Use(StructuredLogger(logger))
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.NoError(t, err)
	_ = resp.Body.Close()

	line := buf.String()
	assert.Contains(t, line, `"msg":"request processed"`)
	assert.Contains(t, line, `"path":"/ping"`)
	assert.Contains(t, line, `"request_id"`)
}

func TestTracingMiddlewareSetsTraceHeader(t *testing.T) {
	app := fiber.New()
	app.Use(TracingMiddleware())
	app.Get("/", func(c *fiber.Ctx) error {
		assert.NotNil(t, c.Locals("traceID"))
		return c.SendStatus(fiber.StatusNoContent)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Len(t, resp.Header.Get("X-Trace-ID"), 32)
}

func TestInitMetricsIsShared(t *testing.T) {
	a := InitMetrics("hive-cache")
	b := InitMetrics("other")
	assert.Same(t, a, b)
	assert.NotNil(t, MetricsMiddleware(a))
}
