package models

import (
	"time"

	"gorm.io/gorm"
)

// Conversation groups participants exchanging private messages.
type Conversation struct {
	ID           uint                      `gorm:"primaryKey" json:"id"`
	Name         string                    `json:"name,omitempty"`
	IsGroup      bool                      `gorm:"default:false" json:"is_group"`
	CreatedBy    uint                      `gorm:"not null" json:"created_by"`
	DirectKey    *string                   `gorm:"uniqueIndex;size:64" json:"-"`
	Participants []ConversationParticipant `gorm:"foreignKey:ConversationID" json:"participants,omitempty"`
	LastMessage  *Message                  `gorm:"-" json:"last_message,omitempty"`
	UnreadCount  int                       `gorm:"-" json:"unread_count"`
	CreatedAt    time.Time                 `json:"created_at"`
	UpdatedAt    time.Time                 `gorm:"index" json:"updated_at"`
	DeletedAt    gorm.DeletedAt            `gorm:"index" json:"-"`
}

// ConversationParticipant joins a user to a conversation with per-user read state.
type ConversationParticipant struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	ConversationID uint       `gorm:"not null;uniqueIndex:idx_participant_conv_user" json:"conversation_id"`
	UserID         uint       `gorm:"not null;uniqueIndex:idx_participant_conv_user;index" json:"user_id"`
	User           User       `gorm:"foreignKey:UserID" json:"user"`
	UnreadCount    int        `gorm:"default:0" json:"unread_count"`
	LastReadAt     *time.Time `json:"last_read_at,omitempty"`
	JoinedAt       time.Time  `json:"joined_at"`
}

// Message is a private message. Content holds plaintext in memory and an
// encrypted envelope at rest.
type Message struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	ConversationID uint           `gorm:"not null;index" json:"conversation_id"`
	SenderID       uint           `gorm:"not null;index" json:"sender_id"`
	Sender         User           `gorm:"foreignKey:SenderID" json:"sender"`
	Content        string         `gorm:"type:text;not null" json:"content"`
	IsRead         bool           `gorm:"default:false" json:"is_read"`
	ReadAt         *time.Time     `json:"read_at,omitempty"`
	CreatedAt      time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

// SealedFields exposes the columns stored encrypted.
func (m *Message) SealedFields() []*string {
	return []*string{&m.Content}
}

// SealedColumns names the encrypted columns for map based updates.
func (m *Message) SealedColumns() []string {
	return []string{"content"}
}
