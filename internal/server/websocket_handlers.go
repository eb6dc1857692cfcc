package server

import (
	"context"
	"encoding/json"
	"time"

	"matchday/internal/middleware"
	"matchday/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const wsCommandTimeout = 5 * time.Second

type wsCommand struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// WebsocketHandler streams notifications and comment events to the viewer.
// On connect the client gets its unread count; it may then send
// {"type":"mark_read","id":...} or {"type":"mark_all_read"}.
func (s *Server) WebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, _ := conn.Locals("userID").(string)
		if userID == "" {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unauthorized"}`))
			_ = conn.Close()
			return
		}

		// Register connection with scaling guardrails
		client, err := s.hub.Register(userID, conn)
		if err != nil {
			middleware.Logger.Warn("websocket register failed", "user_id", userID, "error", err)
			payload, _ := json.Marshal(map[string]string{"error": err.Error()})
			_ = conn.WriteMessage(websocket.TextMessage, payload)
			_ = conn.Close()
			return
		}
		defer s.hub.UnregisterClient(client)

		s.sendUnreadCount(client)
		client.Serve(s.handleWSCommand)
	})
}

func (s *Server) handleWSCommand(client *notifications.Client, message []byte) {
	var cmd wsCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		middleware.Logger.Debug("websocket: invalid message", "user_id", client.UserID)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithValue(context.Background(), middleware.UserIDKey, client.UserID), wsCommandTimeout)
	defer cancel()

	var err error
	switch cmd.Type {
	case "mark_read":
		err = s.notificationService.MarkRead(ctx, cmd.ID, client.UserID)
	case "mark_all_read":
		_, err = s.notificationService.MarkAllRead(ctx, client.UserID)
	case "ping":
		client.TrySend([]byte(`{"type":"pong"}`))
		return
	default:
		return
	}
	if err != nil {
		middleware.Logger.WarnContext(ctx, "websocket command failed", "type", cmd.Type, "error", err)
		payload, _ := json.Marshal(map[string]string{"type": "error", "error": err.Error()})
		client.TrySend(payload)
		return
	}
	s.sendUnreadCount(client)
}

func (s *Server) sendUnreadCount(client *notifications.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), wsCommandTimeout)
	defer cancel()

	count, err := s.notificationService.UnreadCount(ctx, client.UserID)
	if err != nil {
		middleware.Logger.Warn("websocket unread count failed", "user_id", client.UserID, "error", err)
		return
	}
	payload, _ := json.Marshal(map[string]any{
		"type":    "unread_count",
		"payload": map[string]int64{"unread": count},
	})
	client.TrySend(payload)
}
