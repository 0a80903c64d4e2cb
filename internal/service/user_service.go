package service

import (
	"context"
	"errors"
	"strings"

	"quad/internal/cache"
	"quad/internal/models"
	"quad/internal/repository"
	"quad/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

const (
	maxDisplayNameLen = 80
	maxUniversityLen  = 120
	maxMajorLen       = 120
	maxInterests      = 20
	maxInterestLen    = 40
	maxYearOfStudy    = 10
)

// UserService covers account creation, credentials and profiles.
type UserService struct {
	userRepo repository.UserRepository
}

// SignupInput is the registration payload.
type SignupInput struct {
	Username    string
	Email       string
	Password    string
	DisplayName string
	University  string
	Major       string
}

// UpdateProfileInput carries optional profile edits; nil leaves a field as is.
type UpdateProfileInput struct {
	UserID      uint
	DisplayName *string
	Bio         *string
	Avatar      *string
	University  *string
	Major       *string
	YearOfStudy *int
	Interests   []string
}

func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

// Signup validates in, hashes the password and creates the user.
func (s *UserService) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if err := validation.ValidateUsername(username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateEmail(email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Username:    username,
		Email:       email,
		Password:    string(hashed),
		DisplayName: strings.TrimSpace(in.DisplayName),
		University:  strings.TrimSpace(in.University),
		Major:       strings.TrimSpace(in.Major),
	}
	if user.DisplayName == "" {
		user.DisplayName = username
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) && appErr.Code == models.CodeConflict {
			return nil, models.NewConflictError("Username or email already taken")
		}
		return nil, err
	}
	return user, nil
}

// Authenticate checks credentials and returns the user.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	invalid := models.NewUnauthorizedError("Invalid credentials")
	user, err := s.userRepo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) && appErr.Code == models.CodeNotFound {
			return nil, invalid
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, invalid
	}
	return user, nil
}

func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

func (s *UserService) Search(ctx context.Context, query string, limit, offset int) ([]models.User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, models.NewValidationError("Search query is required")
	}
	return s.userRepo.Search(ctx, query, limit, offset)
}

// UpdateProfile applies in. Changes to the fields the recommender reads
// drop the user's cached recommendations.
func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	similarityChanged := false
	if in.DisplayName != nil {
		name, err := validation.ValidateLength("display name", *in.DisplayName, 1, maxDisplayNameLen)
		if err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		user.DisplayName = name
	}
	if in.Bio != nil {
		if err := validation.ValidateBio(*in.Bio); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		bio := strings.TrimSpace(*in.Bio)
		similarityChanged = similarityChanged || bio != user.Bio
		user.Bio = bio
	}
	if in.Avatar != nil {
		avatar := strings.TrimSpace(*in.Avatar)
		if avatar != "" {
			if avatar, err = validation.ValidateURL(avatar); err != nil {
				return nil, models.NewValidationError("avatar must be an http or https URL")
			}
		}
		user.Avatar = avatar
	}
	if in.University != nil {
		uni, err := validation.ValidateLength("university", *in.University, 0, maxUniversityLen)
		if err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		similarityChanged = similarityChanged || uni != user.University
		user.University = uni
	}
	if in.Major != nil {
		major, err := validation.ValidateLength("major", *in.Major, 0, maxMajorLen)
		if err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		similarityChanged = similarityChanged || major != user.Major
		user.Major = major
	}
	if in.YearOfStudy != nil {
		if *in.YearOfStudy < 0 || *in.YearOfStudy > maxYearOfStudy {
			return nil, models.NewValidationError("year_of_study must be between 0 and 10")
		}
		similarityChanged = similarityChanged || *in.YearOfStudy != user.YearOfStudy
		user.YearOfStudy = *in.YearOfStudy
	}
	if in.Interests != nil {
		interests, err := normalizeInterests(in.Interests)
		if err != nil {
			return nil, err
		}
		similarityChanged = similarityChanged || interests != user.Interests
		user.Interests = interests
	}

	if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
		return nil, err
	}
	if similarityChanged {
		cache.InvalidateRecommendations(ctx, user.ID)
	}
	return user, nil
}

func normalizeInterests(tags []string) (string, error) {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(strings.ReplaceAll(t, ",", " ")))
		if t == "" {
			continue
		}
		if len(t) > maxInterestLen {
			return "", models.NewValidationError("interest tags are limited to 40 characters")
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) > maxInterests {
		return "", models.NewValidationError("at most 20 interests are allowed")
	}
	return strings.Join(out, ","), nil
}
