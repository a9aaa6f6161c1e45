// Package cache provides the Redis client and JSON caching helpers.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/faireye-hive/hive-cache/internal/observability"

	"github.com/redis/go-redis/v9"
	"github.com/redis/go-redis/v9/maintnotifications"
)

type metricsHook struct{}

func (h metricsHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h metricsHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		if err != nil && !errors.Is(err, redis.Nil) {
			observability.RedisErrors.WithLabelValues(cmd.Name()).Inc()
		}
		return err
	}
}

func (h metricsHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		if err != nil && !errors.Is(err, redis.Nil) {
			observability.RedisErrors.WithLabelValues("pipeline").Inc()
		}
		return err
	}
}

// Options builds client options from either a plain host:port or a
// redis:// / rediss:// URL.
func Options(addr string) (*redis.Options, error) {
	if addr == "" {
		addr = "localhost:6379"
	}
	var opts *redis.Options
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, err
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: addr}
	}
	// Servers without the maintenance subcommand reject the handshake.
	opts.MaintNotificationsConfig = &maintnotifications.Config{Mode: maintnotifications.ModeDisabled}
	return opts, nil
}

// Connect returns a Redis client for addr, or nil when the URL is invalid or
// the server does not answer a ping. Callers treat a nil client as "Redis
// unavailable" and degrade instead of failing.
func Connect(addr string, logger *slog.Logger) *redis.Client {
	opts, err := Options(addr)
	if err != nil {
		logger.Warn("invalid REDIS_URL, continuing without redis",
			slog.String("addr", addr),
			slog.String("error", err.Error()),
		)
		return nil
	}

	client := redis.NewClient(opts)
	client.AddHook(metricsHook{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, continuing without redis", slog.String("error", err.Error()))
		_ = client.Close()
		return nil
	}
	logger.Info("redis connected", slog.String("addr", opts.Addr))
	return client
}

// Instrument attaches the metrics hook to an externally built client.
func Instrument(client *redis.Client) *redis.Client {
	if client != nil {
		client.AddHook(metricsHook{})
	}
	return client
}
