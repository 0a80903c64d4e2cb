package models

import (
	"time"

	"gorm.io/gorm"
)

// Resource is a curated link shared with the community, grouped by category.
type Resource struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Category    string         `gorm:"size:64;not null;index" json:"category"`
	Title       string         `gorm:"not null" json:"title"`
	URL         string         `gorm:"not null" json:"url"`
	Description string         `gorm:"type:text" json:"description,omitempty"`
	AuthorID    uint           `gorm:"not null;index" json:"author_id"`
	Author      User           `gorm:"foreignKey:AuthorID" json:"author"`
	IsPinned    bool           `gorm:"default:false;index" json:"is_pinned"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}
