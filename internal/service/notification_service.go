package service

import (
	"context"
	"log/slog"

	"quad/internal/middleware"
	"quad/internal/models"
	"quad/internal/repository"
)

// NotificationService stores notifications and pushes them to live sessions.
type NotificationService struct {
	repo      repository.NotificationRepository
	publisher EventPublisher
}

// NewNotificationService returns a NotificationService. publisher may be nil.
func NewNotificationService(repo repository.NotificationRepository, publisher EventPublisher) *NotificationService {
	return &NotificationService{repo: repo, publisher: publisherOrNoop(publisher)}
}

// Notify persists n and publishes it to the recipient. Self-notifications are skipped.
func (s *NotificationService) Notify(ctx context.Context, n *models.Notification) error {
	if n.ActorID != nil && *n.ActorID == n.RecipientID {
		return nil
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return err
	}
	publish(ctx, s.publisher, n.RecipientID, EventNotificationCreated, n)
	return nil
}

// notifyQuietly is Notify for side effects that must not fail the caller.
func (s *NotificationService) notifyQuietly(ctx context.Context, n *models.Notification) {
	if err := s.Notify(ctx, n); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to create notification",
			slog.String("type", string(n.Type)),
			slog.Uint64("recipient_id", uint64(n.RecipientID)),
			slog.String("error", err.Error()),
		)
	}
}

func (s *NotificationService) List(ctx context.Context, userID uint, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	return s.repo.ListByRecipient(ctx, userID, unreadOnly, limit, offset)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	return s.repo.UnreadCount(ctx, userID)
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id uint) error {
	return s.repo.MarkRead(ctx, id, userID)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID)
}

func (s *NotificationService) Delete(ctx context.Context, userID, id uint) error {
	return s.repo.Delete(ctx, id, userID)
}

func (s *NotificationService) resolve(ctx context.Context, recipientID uint, kind models.NotificationType, targetType string, targetID uint) error {
	return s.repo.MarkReadByTarget(ctx, recipientID, kind, targetType, targetID)
}

func (s *NotificationService) retract(ctx context.Context, kind models.NotificationType, targetType string, targetID uint) error {
	return s.repo.DeleteByTarget(ctx, kind, targetType, targetID)
}

func actorPtr(id uint) *uint {
	return &id
}
