package repository

import (
	"context"

	"quad/internal/models"

	"gorm.io/gorm"
)

// PostRepository defines persistence operations for forum posts.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	ListByForum(ctx context.Context, forumID uint, limit, offset int) ([]models.Post, int64, error)
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id uint) error
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

const postCommentsCount = "posts.*, (SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id AND comments.deleted_at IS NULL) AS comments_count"

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Select(postCommentsCount).
		Preload("User").
		Preload("Forum").
		First(&post, id).Error; err != nil {
		return nil, translateError(err, "Post", id)
	}
	return &post, nil
}

// ListByForum returns pinned posts first, then the newest, with the forum's total.
func (r *postRepository) ListByForum(ctx context.Context, forumID uint, limit, offset int) ([]models.Post, int64, error) {
	limit, offset = clampPage(limit, offset, 20)

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Post{}).Where("forum_id = ?", forumID).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var posts []models.Post
	if err := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Select(postCommentsCount).
		Where("forum_id = ?", forumID).
		Preload("User").
		Order("is_pinned desc").
		Order("created_at desc").
		Order("id desc").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return posts, total, nil
}

func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).
		Model(post).
		Select("title", "body", "is_pinned", "is_locked").
		Updates(post).Error; err != nil {
		return translateError(err, "Post", post.ID)
	}
	return nil
}

func (r *postRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.Post{}, id).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
