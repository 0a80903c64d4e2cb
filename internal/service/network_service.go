package service

import (
	"context"
	"fmt"

	"quad/internal/cache"
	"quad/internal/models"
	"quad/internal/repository"
)

const connectionTarget = "connection"

// Network status values reported by NetworkService.Status.
const (
	NetworkStatusNone            = "none"
	NetworkStatusPendingSent     = "pending_sent"
	NetworkStatusPendingReceived = "pending_received"
	NetworkStatusConnected       = "connected"
	NetworkStatusBlocked         = "blocked"
)

// NetworkService manages the bidirectional user network.
type NetworkService struct {
	connRepo      repository.ConnectionRepository
	userRepo      repository.UserRepository
	notifications *NotificationService
	publisher     EventPublisher
}

// NewNetworkService returns a new NetworkService.
func NewNetworkService(
	connRepo repository.ConnectionRepository,
	userRepo repository.UserRepository,
	notifications *NotificationService,
	publisher EventPublisher,
) *NetworkService {
	return &NetworkService{
		connRepo:      connRepo,
		userRepo:      userRepo,
		notifications: notifications,
		publisher:     publisherOrNoop(publisher),
	}
}

// SendRequest opens a pending edge from one user to another.
func (s *NetworkService) SendRequest(ctx context.Context, fromID, toID uint) (*models.Connection, error) {
	if fromID == toID {
		return nil, models.NewValidationError("Cannot add yourself to your network")
	}

	from, err := s.userRepo.GetByID(ctx, fromID)
	if err != nil {
		return nil, err
	}
	if _, err := s.userRepo.GetByID(ctx, toID); err != nil {
		return nil, err
	}

	existing, err := s.connRepo.Between(ctx, fromID, toID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		switch existing.Status {
		case models.ConnectionStatusAccepted:
			return nil, models.NewConflictError("You are already connected")
		case models.ConnectionStatusBlocked:
			return nil, models.NewConflictError("This connection is blocked")
		default:
			if existing.RequesterID == fromID {
				return nil, models.NewConflictError("Request already sent")
			}
			return nil, models.NewConflictError("This user has already sent you a request")
		}
	}

	conn := &models.Connection{
		RequesterID: fromID,
		AddresseeID: toID,
		Status:      models.ConnectionStatusPending,
	}
	if err := s.connRepo.Create(ctx, conn); err != nil {
		return nil, err
	}

	s.notifications.notifyQuietly(ctx, &models.Notification{
		RecipientID: toID,
		ActorID:     actorPtr(fromID),
		Type:        models.NotificationNetworkRequest,
		TargetType:  connectionTarget,
		TargetID:    conn.ID,
		Message:     fmt.Sprintf("%s wants to join your network", displayName(from)),
	})

	created, err := s.connRepo.GetByID(ctx, conn.ID)
	if err != nil {
		return nil, err
	}
	cache.InvalidateRecommendations(ctx, fromID, toID)
	publish(ctx, s.publisher, toID, EventNetworkRequest, created)
	publish(ctx, s.publisher, fromID, EventNetworkRequestSent, created)
	return created, nil
}

// Accept turns a pending request addressed to userID into a connection.
func (s *NetworkService) Accept(ctx context.Context, userID, requestID uint) (*models.Connection, error) {
	conn, err := s.connRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if conn.AddresseeID != userID {
		return nil, models.NewForbiddenError("You can only accept requests sent to you")
	}
	if conn.Status != models.ConnectionStatusPending {
		return nil, models.NewConflictError("Request is not pending")
	}

	if err := s.connRepo.UpdateStatus(ctx, requestID, models.ConnectionStatusAccepted); err != nil {
		return nil, err
	}
	conn.Status = models.ConnectionStatusAccepted

	if err := s.notifications.resolve(ctx, userID, models.NotificationNetworkRequest, connectionTarget, requestID); err != nil {
		return nil, err
	}
	s.notifications.notifyQuietly(ctx, &models.Notification{
		RecipientID: conn.RequesterID,
		ActorID:     actorPtr(userID),
		Type:        models.NotificationNetworkAccepted,
		TargetType:  connectionTarget,
		TargetID:    requestID,
		Message:     fmt.Sprintf("%s accepted your network request", displayName(&conn.Addressee)),
	})

	cache.InvalidateRecommendations(ctx, conn.RequesterID, conn.AddresseeID)
	publish(ctx, s.publisher, conn.RequesterID, EventNetworkAccepted, conn)
	publish(ctx, s.publisher, conn.AddresseeID, EventNetworkAccepted, conn)
	return conn, nil
}

// Reject lets the addressee decline or the requester cancel a pending request.
func (s *NetworkService) Reject(ctx context.Context, userID, requestID uint) (*models.Connection, error) {
	conn, err := s.connRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if conn.AddresseeID != userID && conn.RequesterID != userID {
		return nil, models.NewForbiddenError("You can only reject or cancel your own requests")
	}
	if conn.Status != models.ConnectionStatusPending {
		return nil, models.NewConflictError("Request is not pending")
	}

	if err := s.connRepo.Delete(ctx, requestID); err != nil {
		return nil, err
	}
	if err := s.notifications.retract(ctx, models.NotificationNetworkRequest, connectionTarget, requestID); err != nil {
		return nil, err
	}

	cache.InvalidateRecommendations(ctx, conn.RequesterID, conn.AddresseeID)
	publish(ctx, s.publisher, conn.OtherUser(userID), EventNetworkRemoved, conn)
	return conn, nil
}

// Remove deletes an accepted connection between userID and otherID.
func (s *NetworkService) Remove(ctx context.Context, userID, otherID uint) error {
	conn, err := s.connRepo.Between(ctx, userID, otherID)
	if err != nil {
		return err
	}
	if conn == nil || conn.Status != models.ConnectionStatusAccepted {
		return models.NewNotFoundError("Connection", otherID)
	}
	if err := s.connRepo.Delete(ctx, conn.ID); err != nil {
		return err
	}

	cache.InvalidateRecommendations(ctx, userID, otherID)
	publish(ctx, s.publisher, otherID, EventNetworkRemoved, conn)
	return nil
}

// List returns the users in userID's network.
func (s *NetworkService) List(ctx context.Context, userID uint) ([]models.User, error) {
	return s.connRepo.ConnectedUsers(ctx, userID)
}

// IDs returns the network as a list of user ids.
func (s *NetworkService) IDs(ctx context.Context, userID uint) ([]uint, error) {
	return s.connRepo.ConnectedIDs(ctx, userID)
}

// Status describes the edge between userID and otherID from userID's side.
func (s *NetworkService) Status(ctx context.Context, userID, otherID uint) (string, *models.Connection, error) {
	if _, err := s.userRepo.GetByID(ctx, otherID); err != nil {
		return "", nil, err
	}
	conn, err := s.connRepo.Between(ctx, userID, otherID)
	if err != nil {
		return "", nil, err
	}
	if conn == nil {
		return NetworkStatusNone, nil, nil
	}
	switch conn.Status {
	case models.ConnectionStatusAccepted:
		return NetworkStatusConnected, conn, nil
	case models.ConnectionStatusBlocked:
		return NetworkStatusBlocked, conn, nil
	default:
		if conn.RequesterID == userID {
			return NetworkStatusPendingSent, conn, nil
		}
		return NetworkStatusPendingReceived, conn, nil
	}
}

// Pending lists requests waiting on userID.
func (s *NetworkService) Pending(ctx context.Context, userID uint) ([]models.Connection, error) {
	return s.connRepo.Pending(ctx, userID)
}

// Sent lists requests userID is waiting on.
func (s *NetworkService) Sent(ctx context.Context, userID uint) ([]models.Connection, error) {
	return s.connRepo.Sent(ctx, userID)
}

func displayName(u *models.User) string {
	if u == nil {
		return "Someone"
	}
	if u.DisplayName != "" {
		return u.DisplayName
	}
	if u.Username != "" {
		return u.Username
	}
	return "Someone"
}
