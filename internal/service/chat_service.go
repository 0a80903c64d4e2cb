package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"quad/internal/models"
	"quad/internal/repository"
	"quad/internal/validation"
)

const (
	maxMessageLen        = 10000
	maxConversationName  = 100
	maxGroupParticipants = 50
	conversationTarget   = "conversation"
)

// ChatService provides private messaging between users.
type ChatService struct {
	chatRepo      repository.ChatRepository
	userRepo      repository.UserRepository
	notifications *NotificationService
	publisher     EventPublisher
}

// CreateConversationInput is the input for creating a conversation.
type CreateConversationInput struct {
	UserID         uint
	Name           string
	IsGroup        bool
	ParticipantIDs []uint
}

// SendMessageInput is the input for sending a message.
type SendMessageInput struct {
	UserID         uint
	ConversationID uint
	Content        string
}

// NewChatService returns a new ChatService.
func NewChatService(
	chatRepo repository.ChatRepository,
	userRepo repository.UserRepository,
	notifications *NotificationService,
	publisher EventPublisher,
) *ChatService {
	return &ChatService{
		chatRepo:      chatRepo,
		userRepo:      userRepo,
		notifications: notifications,
		publisher:     publisherOrNoop(publisher),
	}
}

// DirectKey identifies the 1:1 conversation between two users regardless of order.
func DirectKey(a, b uint) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

// CreateConversation creates a group or returns the existing DM for a pair.
func (s *ChatService) CreateConversation(ctx context.Context, in CreateConversationInput) (*models.Conversation, error) {
	others := uniqueOthers(in.UserID, in.ParticipantIDs)
	if len(others) == 0 {
		return nil, models.NewValidationError("At least one participant is required")
	}

	var (
		name string
		err  error
	)
	if in.IsGroup {
		name, err = validation.ValidateLength("name", in.Name, 1, maxConversationName)
		if err != nil {
			return nil, models.NewValidationError("Group conversations require a name (max 100 characters)")
		}
		if len(others)+1 > maxGroupParticipants {
			return nil, models.NewValidationError(fmt.Sprintf("Groups are limited to %d participants", maxGroupParticipants))
		}
	} else if len(others) != 1 {
		return nil, models.NewValidationError("Direct conversations have exactly one other participant")
	}

	found, err := s.userRepo.GetByIDs(ctx, others)
	if err != nil {
		return nil, err
	}
	if len(found) != len(others) {
		return nil, models.NewValidationError("One or more participants do not exist")
	}

	conv := &models.Conversation{
		Name:      name,
		IsGroup:   in.IsGroup,
		CreatedBy: in.UserID,
	}
	if !in.IsGroup {
		key := DirectKey(in.UserID, others[0])
		existing, err := s.chatRepo.FindDirect(ctx, key)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
		conv.DirectKey = &key
	}

	if err := s.chatRepo.CreateConversation(ctx, conv, append([]uint{in.UserID}, others...)); err != nil {
		var appErr *models.AppError
		if conv.DirectKey != nil && errors.As(err, &appErr) && appErr.Code == models.CodeConflict {
			// Lost a race with the other participant opening the same DM.
			if existing, findErr := s.chatRepo.FindDirect(ctx, *conv.DirectKey); findErr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, err
	}
	return s.chatRepo.GetConversation(ctx, conv.ID)
}

// GetConversation returns a conversation the user participates in.
func (s *ChatService) GetConversation(ctx context.Context, userID, convID uint) (*models.Conversation, error) {
	if err := s.requireParticipant(ctx, convID, userID); err != nil {
		return nil, err
	}
	return s.chatRepo.GetConversation(ctx, convID)
}

// ListConversations returns the user's conversations, newest activity first,
// each with its last message and the user's unread count.
func (s *ChatService) ListConversations(ctx context.Context, userID uint) ([]models.Conversation, error) {
	convs, err := s.chatRepo.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(convs))
	for _, c := range convs {
		ids = append(ids, c.ID)
	}
	latest, err := s.chatRepo.LatestMessages(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range convs {
		convs[i].LastMessage = latest[convs[i].ID]
	}
	return convs, nil
}

// SendMessage stores a message and fans it out to the other participants.
func (s *ChatService) SendMessage(ctx context.Context, in SendMessageInput) (*models.Message, error) {
	content, err := validation.ValidateLength("content", in.Content, 1, maxMessageLen)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	conv, err := s.chatRepo.GetConversation(ctx, in.ConversationID)
	if err != nil {
		return nil, err
	}
	var sender *models.User
	for i := range conv.Participants {
		if conv.Participants[i].UserID == in.UserID {
			sender = &conv.Participants[i].User
		}
	}
	if sender == nil {
		return nil, models.NewForbiddenError("You are not a participant of this conversation")
	}

	msg := &models.Message{
		ConversationID: conv.ID,
		SenderID:       in.UserID,
		Content:        content,
	}
	if err := s.chatRepo.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	msg.Sender = *sender

	for _, p := range conv.Participants {
		if p.UserID == in.UserID {
			continue
		}
		s.notifications.notifyQuietly(ctx, &models.Notification{
			RecipientID: p.UserID,
			ActorID:     actorPtr(in.UserID),
			Type:        models.NotificationMessage,
			TargetType:  conversationTarget,
			TargetID:    conv.ID,
			Message:     fmt.Sprintf("New message from %s", displayName(sender)),
		})
		publish(ctx, s.publisher, p.UserID, EventMessageReceived, msg)
	}
	return msg, nil
}

// GetMessages returns a page of messages in chronological order.
func (s *ChatService) GetMessages(ctx context.Context, convID, userID uint, limit, offset int) ([]models.Message, error) {
	if err := s.requireParticipant(ctx, convID, userID); err != nil {
		return nil, err
	}
	return s.chatRepo.ListMessages(ctx, convID, limit, offset)
}

// MarkRead clears the user's unread count and the matching notifications.
func (s *ChatService) MarkRead(ctx context.Context, convID, userID uint) error {
	if err := s.requireParticipant(ctx, convID, userID); err != nil {
		return err
	}
	if err := s.chatRepo.MarkRead(ctx, convID, userID); err != nil {
		return err
	}
	if err := s.notifications.resolve(ctx, userID, models.NotificationMessage, conversationTarget, convID); err != nil {
		return err
	}
	publish(ctx, s.publisher, userID, EventConversationRead, map[string]uint{"conversation_id": convID})
	return nil
}

// LeaveConversation removes the user. Direct conversations are deleted
// outright and groups go once empty.
func (s *ChatService) LeaveConversation(ctx context.Context, convID, userID uint) error {
	if err := s.requireParticipant(ctx, convID, userID); err != nil {
		return err
	}
	conv, err := s.chatRepo.GetConversation(ctx, convID)
	if err != nil {
		return err
	}
	if !conv.IsGroup {
		return s.chatRepo.DeleteConversation(ctx, convID)
	}
	if err := s.chatRepo.RemoveParticipant(ctx, convID, userID); err != nil {
		return err
	}
	remaining, err := s.chatRepo.CountParticipants(ctx, convID)
	if err != nil {
		return err
	}
	if remaining == 0 {
		return s.chatRepo.DeleteConversation(ctx, convID)
	}
	return nil
}

func (s *ChatService) requireParticipant(ctx context.Context, convID, userID uint) error {
	p, err := s.chatRepo.GetParticipant(ctx, convID, userID)
	if err != nil {
		return err
	}
	if p == nil {
		if _, err := s.chatRepo.GetConversation(ctx, convID); err != nil {
			return err
		}
		return models.NewForbiddenError("You are not a participant of this conversation")
	}
	return nil
}

func uniqueOthers(self uint, ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 || id == self {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
