package service

import (
	"context"
	"fmt"

	"quad/internal/cache"
	"quad/internal/models"
	"quad/internal/repository"
	"quad/internal/validation"
)

const (
	maxPostTitleLen   = 200
	maxPostBodyLen    = 20000
	maxCommentBodyLen = 10000
	postTarget        = "post"
)

// ForumService covers forums, posts and comments.
type ForumService struct {
	forumRepo     repository.ForumRepository
	postRepo      repository.PostRepository
	commentRepo   repository.CommentRepository
	userRepo      repository.UserRepository
	notifications *NotificationService
}

type CreatePostInput struct {
	UserID    uint
	ForumSlug string
	Title     string
	Body      string
}

type UpdatePostInput struct {
	UserID uint
	PostID uint
	Title  *string
	Body   *string
}

// ForumPage is a forum with one page of its posts.
type ForumPage struct {
	Forum *models.Forum  `json:"forum"`
	Posts []models.Post  `json:"posts"`
	Total int64          `json:"total"`
	Page  PageParameters `json:"page"`
}

// PageParameters echoes the pagination used for a listing.
type PageParameters struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

func NewForumService(
	forumRepo repository.ForumRepository,
	postRepo repository.PostRepository,
	commentRepo repository.CommentRepository,
	userRepo repository.UserRepository,
	notifications *NotificationService,
) *ForumService {
	return &ForumService{
		forumRepo:     forumRepo,
		postRepo:      postRepo,
		commentRepo:   commentRepo,
		userRepo:      userRepo,
		notifications: notifications,
	}
}

// ListForums returns every forum ordered by position.
func (s *ForumService) ListForums(ctx context.Context) ([]models.Forum, error) {
	forums, _, err := cache.Remember(ctx, cache.ForumListKey, cache.ForumListTTL, s.forumRepo.List)
	if err != nil {
		return nil, err
	}
	return forums, nil
}

// GetForum returns a forum and a page of its posts, pinned first.
func (s *ForumService) GetForum(ctx context.Context, slug string, limit, offset int) (*ForumPage, error) {
	forum, err := s.forumRepo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	posts, total, err := s.postRepo.ListByForum(ctx, forum.ID, limit, offset)
	if err != nil {
		return nil, err
	}
	return &ForumPage{
		Forum: forum,
		Posts: posts,
		Total: total,
		Page:  PageParameters{Limit: limit, Offset: offset},
	}, nil
}

func (s *ForumService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	forum, err := s.forumRepo.GetBySlug(ctx, in.ForumSlug)
	if err != nil {
		return nil, err
	}
	title, err := validation.ValidateLength("title", in.Title, 1, maxPostTitleLen)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	body, err := validation.ValidateLength("body", in.Body, 1, maxPostBodyLen)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	post := &models.Post{
		ForumID: forum.ID,
		UserID:  in.UserID,
		Title:   title,
		Body:    body,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}
	cache.Invalidate(ctx, cache.ForumListKey)
	return s.postRepo.GetByID(ctx, post.ID)
}

func (s *ForumService) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	return s.postRepo.GetByID(ctx, id)
}

// UpdatePost edits title or body; allowed for the author or an admin.
func (s *ForumService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, err
	}
	if err := s.authorOrAdmin(ctx, in.UserID, post.UserID, "You can only edit your own posts"); err != nil {
		return nil, err
	}
	if in.Title != nil {
		title, err := validation.ValidateLength("title", *in.Title, 1, maxPostTitleLen)
		if err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		post.Title = title
	}
	if in.Body != nil {
		body, err := validation.ValidateLength("body", *in.Body, 1, maxPostBodyLen)
		if err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		post.Body = body
	}
	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// DeletePost removes a post; allowed for the author or an admin.
func (s *ForumService) DeletePost(ctx context.Context, userID, postID uint) error {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if err := s.authorOrAdmin(ctx, userID, post.UserID, "You can only delete your own posts"); err != nil {
		return err
	}
	if err := s.postRepo.Delete(ctx, postID); err != nil {
		return err
	}
	cache.Invalidate(ctx, cache.ForumListKey)
	return nil
}

// SetPinned pins or unpins a post. Admin only.
func (s *ForumService) SetPinned(ctx context.Context, userID, postID uint, pinned bool) (*models.Post, error) {
	return s.moderate(ctx, userID, postID, func(p *models.Post) { p.IsPinned = pinned })
}

// SetLocked locks or unlocks a post for comments. Admin only.
func (s *ForumService) SetLocked(ctx context.Context, userID, postID uint, locked bool) (*models.Post, error) {
	return s.moderate(ctx, userID, postID, func(p *models.Post) { p.IsLocked = locked })
}

func (s *ForumService) moderate(ctx context.Context, userID, postID uint, apply func(*models.Post)) (*models.Post, error) {
	if err := s.requireAdmin(ctx, userID); err != nil {
		return nil, err
	}
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	apply(post)
	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *ForumService) ListComments(ctx context.Context, postID uint, limit, offset int) ([]models.Comment, error) {
	if _, err := s.postRepo.GetByID(ctx, postID); err != nil {
		return nil, err
	}
	return s.commentRepo.ListByPost(ctx, postID, limit, offset)
}

// CreateComment adds a reply and notifies the post author.
func (s *ForumService) CreateComment(ctx context.Context, userID, postID uint, body string) (*models.Comment, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.IsLocked {
		return nil, models.NewForbiddenError("This post is locked")
	}
	body, err = validation.ValidateLength("comment", body, 1, maxCommentBodyLen)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	comment := &models.Comment{PostID: postID, UserID: userID, Body: body}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}

	if post.UserID != userID {
		s.notifications.notifyQuietly(ctx, &models.Notification{
			RecipientID: post.UserID,
			ActorID:     actorPtr(userID),
			Type:        models.NotificationComment,
			TargetType:  postTarget,
			TargetID:    postID,
			Message:     fmt.Sprintf("%s commented on %q", displayName(&comment.User), post.Title),
		})
	}
	return comment, nil
}

func (s *ForumService) UpdateComment(ctx context.Context, userID, commentID uint, body string) (*models.Comment, error) {
	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if comment.UserID != userID {
		return nil, models.NewForbiddenError("You can only edit your own comments")
	}
	body, err = validation.ValidateLength("comment", body, 1, maxCommentBodyLen)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	comment.Body = body
	if err := s.commentRepo.Update(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

func (s *ForumService) DeleteComment(ctx context.Context, userID, commentID uint) error {
	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return err
	}
	if err := s.authorOrAdmin(ctx, userID, comment.UserID, "You can only delete your own comments"); err != nil {
		return err
	}
	return s.commentRepo.Delete(ctx, commentID)
}

func (s *ForumService) authorOrAdmin(ctx context.Context, userID, authorID uint, msg string) error {
	if userID == authorID {
		return nil
	}
	admin, err := isAdmin(ctx, s.userRepo, userID)
	if err != nil {
		return err
	}
	if !admin {
		return models.NewForbiddenError(msg)
	}
	return nil
}

func (s *ForumService) requireAdmin(ctx context.Context, userID uint) error {
	admin, err := isAdmin(ctx, s.userRepo, userID)
	if err != nil {
		return err
	}
	if !admin {
		return models.NewForbiddenError("Admin access required")
	}
	return nil
}

func isAdmin(ctx context.Context, users repository.UserRepository, userID uint) (bool, error) {
	user, err := users.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return user.IsAdmin, nil
}
