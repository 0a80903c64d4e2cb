package server

import (
	"context"
	"errors"
	"log/slog"

	"quad/internal/middleware"
	"quad/internal/models"
	"quad/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// IssueWSTicket handles POST /api/ws/ticket
// @Summary Issue a WebSocket ticket
// @Description Returns a single-use ticket valid for 30 seconds. Connect with /api/ws?ticket=...
// @Tags realtime
// @Security BearerAuth
// @Produce json
// @Success 200 {object} object{ticket=string,expires_in=int}
// @Failure 503 {object} models.ErrorResponse
// @Router /ws/ticket [post]
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	ticket, err := s.tickets.Issue(c.UserContext(), currentUserID(c))
	if errors.Is(err, notifications.ErrTicketStoreUnavailable) {
		return respondError(c, models.NewUnavailableError("Realtime notifications are unavailable", err))
	}
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"ticket":     ticket,
		"expires_in": int(notifications.TicketTTL.Seconds()),
	})
}

// WebSocketUpgrade rejects plain HTTP requests to WebSocket routes.
func (s *Server) WebSocketUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// WebsocketHandler registers the connection with the notification hub.
// Authentication is handled by route middleware and userID is read from connection locals.
func (s *Server) WebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		uid, ok := conn.Locals("userID").(uint)
		if !ok || uid == 0 {
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(uid, conn)
		if err != nil {
			middleware.Logger.Warn("websocket registration refused",
				slog.Uint64("user_id", uint64(uid)),
				slog.String("error", err.Error()),
			)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}
		defer s.hub.UnregisterClient(client)

		s.sendUnreadSnapshot(client)
		client.Serve()
	})
}

// sendUnreadSnapshot queues the current unread count so clients can render a badge immediately.
func (s *Server) sendUnreadSnapshot(client *notifications.Client) {
	ctx := middleware.WithUserID(context.Background(), client.UserID)
	n, err := s.notifications.UnreadCount(ctx, client.UserID)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "failed to load unread count", slog.String("error", err.Error()))
		return
	}
	msg, err := notifications.MarshalEvent("unread_count", fiber.Map{"count": n})
	if err != nil {
		return
	}
	client.TrySend([]byte(msg))
}
