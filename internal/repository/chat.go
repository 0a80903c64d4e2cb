package repository

import (
	"context"
	"errors"
	"time"

	"quad/internal/models"

	"gorm.io/gorm"
)

// ChatRepository defines persistence operations for conversations and messages.
type ChatRepository interface {
	CreateConversation(ctx context.Context, conv *models.Conversation, participantIDs []uint) error
	GetConversation(ctx context.Context, id uint) (*models.Conversation, error)
	FindDirect(ctx context.Context, directKey string) (*models.Conversation, error)
	ListForUser(ctx context.Context, userID uint) ([]models.Conversation, error)
	GetParticipant(ctx context.Context, convID, userID uint) (*models.ConversationParticipant, error)
	RemoveParticipant(ctx context.Context, convID, userID uint) error
	CountParticipants(ctx context.Context, convID uint) (int64, error)
	DeleteConversation(ctx context.Context, convID uint) error
	CreateMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, convID uint, limit, offset int) ([]models.Message, error)
	LatestMessages(ctx context.Context, convIDs []uint) (map[uint]*models.Message, error)
	MarkRead(ctx context.Context, convID, userID uint) error
}

type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository creates a new chat repository
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

func (r *chatRepository) CreateConversation(ctx context.Context, conv *models.Conversation, participantIDs []uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Participants").Create(conv).Error; err != nil {
			return err
		}
		now := time.Now()
		parts := make([]models.ConversationParticipant, 0, len(participantIDs))
		for _, uid := range participantIDs {
			parts = append(parts, models.ConversationParticipant{
				ConversationID: conv.ID,
				UserID:         uid,
				JoinedAt:       now,
			})
		}
		if err := tx.Omit("User").Create(&parts).Error; err != nil {
			return err
		}
		conv.Participants = parts
		return nil
	})
	return translateError(err, "Conversation", conv.ID)
}

func (r *chatRepository) GetConversation(ctx context.Context, id uint) (*models.Conversation, error) {
	var conv models.Conversation
	if err := r.db.WithContext(ctx).
		Preload("Participants.User").
		First(&conv, id).Error; err != nil {
		return nil, translateError(err, "Conversation", id)
	}
	return &conv, nil
}

// FindDirect returns the 1:1 conversation for a direct key, or nil.
func (r *chatRepository) FindDirect(ctx context.Context, directKey string) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.db.WithContext(ctx).
		Preload("Participants.User").
		Where("direct_key = ?", directKey).
		First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &conv, nil
}

// ListForUser returns the user's conversations, most recent activity first,
// with the user's unread count filled in.
func (r *chatRepository) ListForUser(ctx context.Context, userID uint) ([]models.Conversation, error) {
	var convs []models.Conversation
	if err := r.db.WithContext(ctx).
		Joins("JOIN conversation_participants cp ON conversations.id = cp.conversation_id").
		Where("cp.user_id = ?", userID).
		Preload("Participants.User").
		Order("conversations.updated_at desc").
		Order("conversations.id desc").
		Find(&convs).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	var unread []struct {
		ConversationID uint
		UnreadCount    int
	}
	if err := r.db.WithContext(ctx).
		Model(&models.ConversationParticipant{}).
		Select("conversation_id, unread_count").
		Where("user_id = ?", userID).
		Scan(&unread).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	counts := make(map[uint]int, len(unread))
	for _, u := range unread {
		counts[u.ConversationID] = u.UnreadCount
	}
	for i := range convs {
		convs[i].UnreadCount = counts[convs[i].ID]
	}
	return convs, nil
}

func (r *chatRepository) GetParticipant(ctx context.Context, convID, userID uint) (*models.ConversationParticipant, error) {
	var p models.ConversationParticipant
	err := r.db.WithContext(ctx).
		Joins("JOIN conversations ON conversations.id = conversation_participants.conversation_id AND conversations.deleted_at IS NULL").
		Where("conversation_participants.conversation_id = ? AND conversation_participants.user_id = ?", convID, userID).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &p, nil
}

func (r *chatRepository) RemoveParticipant(ctx context.Context, convID, userID uint) error {
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", convID, userID).
		Delete(&models.ConversationParticipant{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *chatRepository) CountParticipants(ctx context.Context, convID uint) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).
		Model(&models.ConversationParticipant{}).
		Where("conversation_id = ?", convID).
		Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

// DeleteConversation soft deletes the conversation and releases its direct key
// so the pair can open a fresh DM later.
func (r *chatRepository) DeleteConversation(ctx context.Context, convID uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Conversation{}).
			Where("id = ?", convID).
			Update("direct_key", nil).Error; err != nil {
			return err
		}
		if err := tx.Where("conversation_id = ?", convID).
			Delete(&models.ConversationParticipant{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Conversation{}, convID).Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// CreateMessage stores msg, bumps unread counts for the other participants
// and touches the conversation, atomically.
func (r *chatRepository) CreateMessage(ctx context.Context, msg *models.Message) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Sender").Create(msg).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.ConversationParticipant{}).
			Where("conversation_id = ? AND user_id <> ?", msg.ConversationID, msg.SenderID).
			Update("unread_count", gorm.Expr("unread_count + 1")).Error; err != nil {
			return err
		}
		return tx.Model(&models.Conversation{}).
			Where("id = ?", msg.ConversationID).
			Update("updated_at", time.Now()).Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// ListMessages returns a page of the latest messages in chronological order.
func (r *chatRepository) ListMessages(ctx context.Context, convID uint, limit, offset int) ([]models.Message, error) {
	limit, offset = clampPage(limit, offset, 50)
	var messages []models.Message
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ?", convID).
		Preload("Sender").
		Order("created_at desc").
		Order("id desc").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *chatRepository) LatestMessages(ctx context.Context, convIDs []uint) (map[uint]*models.Message, error) {
	out := make(map[uint]*models.Message, len(convIDs))
	if len(convIDs) == 0 {
		return out, nil
	}

	latest := r.db.Model(&models.Message{}).
		Select("MAX(id)").
		Where("conversation_id IN ?", convIDs).
		Group("conversation_id")

	var messages []models.Message
	if err := r.db.WithContext(ctx).
		Where("id IN (?)", latest).
		Preload("Sender").
		Find(&messages).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	for i := range messages {
		out[messages[i].ConversationID] = &messages[i]
	}
	return out, nil
}

func (r *chatRepository) MarkRead(ctx context.Context, convID, userID uint) error {
	now := time.Now()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.ConversationParticipant{}).
			Where("conversation_id = ? AND user_id = ?", convID, userID).
			Updates(map[string]interface{}{"unread_count": 0, "last_read_at": now}).Error; err != nil {
			return err
		}
		return tx.Model(&models.Message{}).
			Where("conversation_id = ? AND sender_id <> ? AND is_read = ?", convID, userID, false).
			Updates(map[string]interface{}{"is_read": true, "read_at": now}).Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
