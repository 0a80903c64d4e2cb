package models

import "time"

// NotificationType classifies a notification.
type NotificationType string

const (
	NotificationNetworkRequest  NotificationType = "network_request"
	NotificationNetworkAccepted NotificationType = "network_accepted"
	NotificationMessage         NotificationType = "message"
	NotificationComment         NotificationType = "comment"
	NotificationLoan            NotificationType = "loan"
	NotificationSystem          NotificationType = "system"
)

// Notification is a pending network request or a system event addressed to one user.
type Notification struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	RecipientID uint             `gorm:"not null;index:idx_notifications_recipient_read" json:"recipient_id"`
	ActorID     *uint            `gorm:"index" json:"actor_id,omitempty"`
	Actor       *User            `gorm:"foreignKey:ActorID" json:"actor,omitempty"`
	Type        NotificationType `gorm:"type:varchar(30);not null;index" json:"type"`
	TargetType  string           `gorm:"type:varchar(30)" json:"target_type,omitempty"`
	TargetID    uint             `json:"target_id,omitempty"`
	Message     string           `json:"message"`
	IsRead      bool             `gorm:"default:false;index:idx_notifications_recipient_read" json:"is_read"`
	ReadAt      *time.Time       `json:"read_at,omitempty"`
	CreatedAt   time.Time        `gorm:"index" json:"created_at"`
}
