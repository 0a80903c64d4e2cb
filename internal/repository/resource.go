package repository

import (
	"context"

	"quad/internal/models"

	"gorm.io/gorm"
)

// ResourceRepository defines persistence operations for curated resources.
type ResourceRepository interface {
	Create(ctx context.Context, res *models.Resource) error
	GetByID(ctx context.Context, id uint) (*models.Resource, error)
	List(ctx context.Context, category string, limit, offset int) ([]models.Resource, error)
	Update(ctx context.Context, res *models.Resource) error
	Delete(ctx context.Context, id uint) error
}

type resourceRepository struct {
	db *gorm.DB
}

// NewResourceRepository creates a new resource repository
func NewResourceRepository(db *gorm.DB) ResourceRepository {
	return &resourceRepository{db: db}
}

func (r *resourceRepository) Create(ctx context.Context, res *models.Resource) error {
	return translateError(r.db.WithContext(ctx).Omit("Author").Create(res).Error, "Resource", res.Title)
}

func (r *resourceRepository) GetByID(ctx context.Context, id uint) (*models.Resource, error) {
	var res models.Resource
	if err := r.db.WithContext(ctx).Preload("Author").First(&res, id).Error; err != nil {
		return nil, translateError(err, "Resource", id)
	}
	return &res, nil
}

// List returns resources, pinned first then newest, optionally for one category.
func (r *resourceRepository) List(ctx context.Context, category string, limit, offset int) ([]models.Resource, error) {
	limit, offset = clampPage(limit, offset, 20)
	q := r.db.WithContext(ctx)
	if category != "" {
		q = q.Where("category = ?", category)
	}
	var out []models.Resource
	if err := q.Preload("Author").
		Order("is_pinned desc").
		Order("created_at desc").
		Order("id desc").
		Limit(limit).
		Offset(offset).
		Find(&out).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return out, nil
}

func (r *resourceRepository) Update(ctx context.Context, res *models.Resource) error {
	if err := r.db.WithContext(ctx).
		Model(res).
		Select("category", "title", "url", "description", "is_pinned").
		Updates(res).Error; err != nil {
		return translateError(err, "Resource", res.ID)
	}
	return nil
}

func (r *resourceRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.Resource{}, id).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
