package notifications

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Dispatcher queues an alert for display and fans it out to dashboards:
// through Redis when a notifier is enabled, straight to the local hub
// otherwise.
type Dispatcher struct {
	Queue    *Queue
	Notifier *Notifier
	Hub      *Hub
	Logger   *slog.Logger
}

// Alert enqueues message at level and broadcasts it.
func (d *Dispatcher) Alert(ctx context.Context, message, level string) {
	if d == nil {
		return
	}
	n := d.Queue.Push(message, level)

	if d.Notifier.Enabled() {
		if err := d.Notifier.Publish(ctx, n); err != nil && d.Logger != nil {
			d.Logger.WarnContext(ctx, "alert publish failed", slog.String("error", err.Error()))
		}
		return
	}
	if d.Hub != nil {
		payload, err := json.Marshal(n)
		if err != nil {
			return
		}
		d.Hub.BroadcastAll(payload)
	}
}
