package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ConnectionStatus represents the state of a network edge.
type ConnectionStatus string

const (
	// ConnectionStatusPending indicates a request awaiting the addressee.
	ConnectionStatusPending ConnectionStatus = "pending"
	// ConnectionStatusAccepted indicates both users are in each other's network.
	ConnectionStatusAccepted ConnectionStatus = "accepted"
	// ConnectionStatusBlocked indicates one side blocked the other.
	ConnectionStatusBlocked ConnectionStatus = "blocked"
)

// Connection is one edge of the bidirectional user network.
// Direction is kept so pending requests can be told apart as sent or received.
type Connection struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	RequesterID uint             `gorm:"not null;index:idx_connection_users" json:"requester_id"`
	AddresseeID uint             `gorm:"not null;index:idx_connection_users;index" json:"addressee_id"`
	PairKey     string           `gorm:"size:64;uniqueIndex" json:"-"`
	Status      ConnectionStatus `gorm:"type:varchar(20);default:'pending';index" json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`

	Requester User `gorm:"foreignKey:RequesterID" json:"requester,omitempty"`
	Addressee User `gorm:"foreignKey:AddresseeID" json:"addressee,omitempty"`
}

// TableName specifies the table name for GORM
func (Connection) TableName() string {
	return "connections"
}

// ConnectionPairKey identifies the edge between two users regardless of
// which one sent the request.
func ConnectionPairKey(a, b uint) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

// BeforeCreate stamps the unordered pair key so a second edge between the
// same two users is rejected in either direction.
func (c *Connection) BeforeCreate(*gorm.DB) error {
	c.PairKey = ConnectionPairKey(c.RequesterID, c.AddresseeID)
	return nil
}

// OtherUser returns the id on the opposite side of the edge from userID.
func (c *Connection) OtherUser(userID uint) uint {
	if c.RequesterID == userID {
		return c.AddresseeID
	}
	return c.RequesterID
}
