package repository

import (
	"context"

	"quad/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ForumRepository defines persistence operations for forums.
type ForumRepository interface {
	List(ctx context.Context) ([]models.Forum, error)
	GetBySlug(ctx context.Context, slug string) (*models.Forum, error)
	Upsert(ctx context.Context, forum *models.Forum) error
}

type forumRepository struct {
	db *gorm.DB
}

// NewForumRepository creates a new forum repository
func NewForumRepository(db *gorm.DB) ForumRepository {
	return &forumRepository{db: db}
}

func (r *forumRepository) List(ctx context.Context) ([]models.Forum, error) {
	var forums []models.Forum
	if err := r.db.WithContext(ctx).
		Model(&models.Forum{}).
		Select("forums.*, (SELECT COUNT(*) FROM posts WHERE posts.forum_id = forums.id AND posts.deleted_at IS NULL) AS post_count").
		Order("position asc").
		Order("id asc").
		Find(&forums).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return forums, nil
}

func (r *forumRepository) GetBySlug(ctx context.Context, slug string) (*models.Forum, error) {
	var forum models.Forum
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&forum).Error; err != nil {
		return nil, translateError(err, "Forum", slug)
	}
	return &forum, nil
}

// Upsert inserts the forum or refreshes name, description and position by slug.
func (r *forumRepository) Upsert(ctx context.Context, forum *models.Forum) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slug"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "description", "position", "updated_at"}),
	}).Create(forum).Error
	return translateError(err, "Forum", forum.Slug)
}
