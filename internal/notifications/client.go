package notifications

import (
	"log/slog"
	"time"

	"github.com/faireye-hive/hive-cache/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Dashboards only send control frames.
	maxMessageSize = 1024

	sendBuffer = 64
)

// Client is one dashboard connection.
type Client struct {
	hub *Hub

	// ID is a random identifier for logs.
	ID string

	// Moderator is the session user at connect time, possibly empty.
	Moderator string

	Conn *websocket.Conn

	// Send carries outbound alert payloads.
	Send chan []byte
}

func newClient(hub *Hub, conn *websocket.Conn, id, moderator string) *Client {
	return &Client{
		hub:       hub,
		ID:        id,
		Moderator: moderator,
		Conn:      conn,
		Send:      make(chan []byte, sendBuffer),
	}
}

// ReadPump reads until the peer goes away, keeping the read deadline fresh
// on pongs. Incoming payloads are discarded.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.UnregisterClient(c)
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { _ = c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket read failed", slog.String("client", c.ID), slog.String("error", err.Error()))
			}
			return
		}
	}
}

// WritePump drains Send into the connection and pings on an interval.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				_ = c.Conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down"))
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// TrySend queues message without blocking. A full or closed buffer drops it.
func (c *Client) TrySend(message []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			observability.WebSocketDrops.Inc()
		}
	}()

	select {
	case c.Send <- message:
		return true
	default:
		observability.WebSocketDrops.Inc()
		c.hub.logger.Warn("websocket buffer full, dropped alert", slog.String("client", c.ID))
		return false
	}
}
