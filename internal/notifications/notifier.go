// Package notifications queues moderation alerts and fans them out to
// connected dashboards.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/faireye-hive/hive-cache/internal/cache"
	"github.com/faireye-hive/hive-cache/internal/models"

	"github.com/redis/go-redis/v9"
)

// AlertChannel is the Redis channel alerts are published on.
const AlertChannel = cache.KeyPrefix + "alerts"

// Notifier publishes alerts into Redis. A nil client makes every call a no-op.
type Notifier struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{rdb: rdb, logger: logger}
}

// Enabled reports whether alerts leave the process.
func (n *Notifier) Enabled() bool {
	return n != nil && n.rdb != nil
}

// Publish sends one alert to every subscriber.
func (n *Notifier) Publish(ctx context.Context, alert models.Notification) error {
	if !n.Enabled() {
		return nil
	}
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	return n.rdb.Publish(ctx, AlertChannel, payload).Err()
}

// StartSubscriber subscribes to AlertChannel and calls onMessage with each
// raw payload until ctx is cancelled.
func (n *Notifier) StartSubscriber(ctx context.Context, onMessage func(payload string)) error {
	if !n.Enabled() {
		return nil
	}
	sub := n.rdb.Subscribe(ctx, AlertChannel)
	// Wait for the subscription to be confirmed so no publish is missed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", AlertChannel, err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							n.logger.Error("panic in alert subscriber",
								slog.Any("panic", r),
								slog.String("stack", string(debug.Stack())),
							)
						}
					}()
					onMessage(msg.Payload)
				}()
			}
		}
	}()

	return nil
}
