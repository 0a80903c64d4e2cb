// Package service implements Quad's business logic on top of the repositories.
package service

import (
	"context"
	"log/slog"

	"quad/internal/middleware"
)

// Realtime event types delivered over the notification WebSocket.
const (
	EventNotificationCreated = "notification_created"
	EventNetworkRequest      = "network_request"
	EventNetworkRequestSent  = "network_request_sent"
	EventNetworkAccepted     = "network_accepted"
	EventNetworkRemoved      = "network_removed"
	EventMessageReceived     = "message_received"
	EventConversationRead    = "conversation_read"
)

// EventPublisher delivers a realtime event to one user's live sessions.
type EventPublisher interface {
	PublishEvent(ctx context.Context, userID uint, eventType string, payload interface{}) error
}

type noopPublisher struct{}

func (noopPublisher) PublishEvent(context.Context, uint, string, interface{}) error { return nil }

func publisherOrNoop(p EventPublisher) EventPublisher {
	if p == nil {
		return noopPublisher{}
	}
	return p
}

// publish sends an event and logs failures; delivery is best effort.
func publish(ctx context.Context, p EventPublisher, userID uint, eventType string, payload interface{}) {
	if err := p.PublishEvent(ctx, userID, eventType, payload); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish realtime event",
			slog.String("event", eventType),
			slog.Uint64("user_id", uint64(userID)),
			slog.String("error", err.Error()),
		)
	}
}
