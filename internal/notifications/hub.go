package notifications

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/faireye-hive/hive-cache/internal/observability"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	// Max total dashboard connections
	maxTotalConns = 256
)

// ErrHubClosed is returned by Register after Shutdown.
var ErrHubClosed = errors.New("hub is shut down")

// Hub tracks dashboard websocket clients and broadcasts alerts to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	closed  bool
	logger  *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{clients: make(map[*Client]struct{}), logger: logger}
}

// Register adds a connection. It fails once the connection limit is reached.
func (h *Hub) Register(conn *websocket.Conn, moderator string) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}
	if len(h.clients) >= maxTotalConns {
		return nil, errors.New("server connection limit reached")
	}

	c := newClient(h, conn, uuid.NewString(), moderator)
	h.clients[c] = struct{}{}
	observability.WebSocketConnections.Inc()
	return c, nil
}

// UnregisterClient removes c and closes its send channel. Safe to call twice.
func (h *Hub) UnregisterClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.Send)
		observability.WebSocketConnections.Dec()
	}
}

// Count reports connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastAll sends message to every connected client.
func (h *Hub) BroadcastAll(message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.TrySend(message)
	}
}

// StartWiring forwards alerts published through n to every client. Without
// Redis the caller must broadcast locally instead.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartSubscriber(ctx, func(payload string) {
		h.BroadcastAll([]byte(payload))
	})
}

// Shutdown closes every client's send channel. Each WritePump then sends a
// going-away frame and closes its connection, so the conn keeps a single
// writer.
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for c := range h.clients {
		close(c.Send)
		observability.WebSocketConnections.Dec()
	}
	if n := len(h.clients); n > 0 {
		h.logger.Info("closing dashboard connections", slog.Int("clients", n))
	}
	h.clients = make(map[*Client]struct{})
	return nil
}
