package service

import (
	"context"
	"strings"

	"quad/internal/models"
	"quad/internal/repository"
	"quad/internal/validation"
)

const (
	maxResourceTitleLen       = 200
	maxResourceDescriptionLen = 2000
)

// ResourceService manages curated resource links.
type ResourceService struct {
	repo     repository.ResourceRepository
	userRepo repository.UserRepository
}

// ResourceInput carries the editable fields of a resource.
type ResourceInput struct {
	Category    string
	Title       string
	URL         string
	Description string
}

func NewResourceService(repo repository.ResourceRepository, userRepo repository.UserRepository) *ResourceService {
	return &ResourceService{repo: repo, userRepo: userRepo}
}

func (s *ResourceService) List(ctx context.Context, category string, limit, offset int) ([]models.Resource, error) {
	category = strings.ToLower(strings.TrimSpace(category))
	if category != "" {
		if err := validation.ValidateCategorySlug(category); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
	}
	return s.repo.List(ctx, category, limit, offset)
}

func (s *ResourceService) Get(ctx context.Context, id uint) (*models.Resource, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *ResourceService) Create(ctx context.Context, authorID uint, in ResourceInput) (*models.Resource, error) {
	res := &models.Resource{AuthorID: authorID}
	if err := applyResourceInput(res, in); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, res); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, res.ID)
}

// Update replaces the editable fields; author or admin only.
func (s *ResourceService) Update(ctx context.Context, userID, id uint, in ResourceInput) (*models.Resource, error) {
	res, err := s.authored(ctx, userID, id, "You can only edit your own resources")
	if err != nil {
		return nil, err
	}
	if err := applyResourceInput(res, in); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *ResourceService) Delete(ctx context.Context, userID, id uint) error {
	if _, err := s.authored(ctx, userID, id, "You can only delete your own resources"); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// SetPinned pins or unpins a resource. Admin only.
func (s *ResourceService) SetPinned(ctx context.Context, userID, id uint, pinned bool) (*models.Resource, error) {
	admin, err := isAdmin(ctx, s.userRepo, userID)
	if err != nil {
		return nil, err
	}
	if !admin {
		return nil, models.NewForbiddenError("Admin access required")
	}
	res, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	res.IsPinned = pinned
	if err := s.repo.Update(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *ResourceService) authored(ctx context.Context, userID, id uint, msg string) (*models.Resource, error) {
	res, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.AuthorID == userID {
		return res, nil
	}
	admin, err := isAdmin(ctx, s.userRepo, userID)
	if err != nil {
		return nil, err
	}
	if !admin {
		return nil, models.NewForbiddenError(msg)
	}
	return res, nil
}

func applyResourceInput(res *models.Resource, in ResourceInput) error {
	category := strings.ToLower(strings.TrimSpace(in.Category))
	if err := validation.ValidateCategorySlug(category); err != nil {
		return models.NewValidationError(err.Error())
	}
	title, err := validation.ValidateLength("title", in.Title, 1, maxResourceTitleLen)
	if err != nil {
		return models.NewValidationError(err.Error())
	}
	link, err := validation.ValidateURL(in.URL)
	if err != nil {
		return models.NewValidationError(err.Error())
	}
	description, err := validation.ValidateLength("description", in.Description, 0, maxResourceDescriptionLen)
	if err != nil {
		return models.NewValidationError(err.Error())
	}
	res.Category = category
	res.Title = title
	res.URL = link
	res.Description = description
	return nil
}
