package server

import (
	"encoding/json"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WebsocketHandler streams alerts to a dashboard. The currently displayed
// notification is sent first so a fresh tab is not blank.
func (s *Server) WebsocketHandler() fiber.Handler {
	upgrade := websocket.New(func(conn *websocket.Conn) {
		mod, _ := conn.Locals("moderator").(string)

		client, err := s.hub.Register(conn, mod)
		if err != nil {
			s.logger.Warn("websocket register failed", slog.String("error", err.Error()))
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}
		s.logger.Info("dashboard connected",
			slog.String("client", client.ID),
			slog.String("moderator", mod),
		)

		if n := s.queue.Current(); n != nil {
			if payload, err := json.Marshal(n); err == nil {
				client.TrySend(payload)
			}
		}

		go client.WritePump()
		client.ReadPump()
	})

	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return upgrade(c)
	}
}
