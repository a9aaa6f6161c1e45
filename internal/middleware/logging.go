// Package middleware provides the Fiber middleware shared by every route.
package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/faireye-hive/hive-cache/internal/observability"

	"github.com/gofiber/fiber/v2"
)

// ModeratorHeader lets a dashboard name the acting moderator per request.
const ModeratorHeader = "X-Moderator"

// ContextMiddleware copies the request ID, trace ID and acting moderator
// from Fiber locals into the request context so the context-aware logger
// picks them up in deeper layers. session returns the logged-in moderator
// and is consulted when the request does not carry ModeratorHeader.
func ContextMiddleware(session func() string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()

		if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
			ctx = context.WithValue(ctx, observability.RequestIDKey, rid)
		}
		if tid, ok := c.Locals("traceID").(string); ok && tid != "" {
			ctx = context.WithValue(ctx, observability.TraceIDKey, tid)
		}

		moderator := c.Get(ModeratorHeader)
		if moderator == "" && session != nil {
			moderator = session()
		}
		if moderator != "" {
			c.Locals("moderator", moderator)
			ctx = observability.WithModerator(ctx, moderator)
		}

		c.SetUserContext(ctx)
		return c.Next()
	}
}

// StructuredLogger returns a Fiber middleware for logging requests using slog
func StructuredLogger(logger *slog.Logger) fiber.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		fields := []any{
			slog.Int("status", c.Response().StatusCode()),
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.String("ip", c.IP()),
			slog.Duration("latency", time.Since(start)),
			slog.String("user_agent", c.Get("User-Agent")),
		}

		if err != nil {
			fields = append(fields, slog.String("error", err.Error()))
			logger.ErrorContext(c.UserContext(), "request failed", fields...)
		} else {
			logger.InfoContext(c.UserContext(), "request processed", fields...)
		}
		return err
	}
}
