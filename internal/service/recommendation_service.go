package service

import (
	"context"
	"time"

	"quad/internal/cache"
	"quad/internal/models"
	"quad/internal/observability"
	"quad/internal/recommend"
	"quad/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultRecommendationLimit = 10
	candidatePoolSize          = 200
	secondDegreePoolSize       = 100
)

// RecommendedUser is a ranked suggestion for the viewer's network.
type RecommendedUser struct {
	User    models.UserSummary `json:"user"`
	Major   string             `json:"major,omitempty"`
	Year    int                `json:"year_of_study,omitempty"`
	Score   float64            `json:"score"`
	Reasons []string           `json:"reasons"`
}

// RecommendationService suggests new connections.
type RecommendationService struct {
	userRepo repository.UserRepository
	connRepo repository.ConnectionRepository
	opts     recommend.Options
}

// NewRecommendationService returns a RecommendationService. A limit <= 0
// falls back to the default page size.
func NewRecommendationService(userRepo repository.UserRepository, connRepo repository.ConnectionRepository, limit int, minScore float64) *RecommendationService {
	if limit <= 0 {
		limit = defaultRecommendationLimit
	}
	return &RecommendationService{
		userRepo: userRepo,
		connRepo: connRepo,
		opts: recommend.Options{
			Weights:  recommend.DefaultWeights(),
			Limit:    limit,
			MinScore: minScore,
		},
	}
}

// ForUser returns cached recommendations for userID, computing them on a miss.
func (s *RecommendationService) ForUser(ctx context.Context, userID uint) (out []RecommendedUser, err error) {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "recommend", "for_user", attribute.Int("user.id", int(userID)))
	defer func() { observability.EndSpan(span, err) }()

	out, hit, err := cache.Remember(ctx, cache.RecommendationKey(userID), cache.RecommendationTTL,
		func(ctx context.Context) ([]RecommendedUser, error) { return s.compute(ctx, userID) })
	if err != nil {
		return nil, err
	}

	source := "computed"
	if hit {
		source = "cache"
	}
	span.SetAttributes(attribute.String("recommend.source", source), attribute.Int("recommend.count", len(out)))
	observability.ObserveRecommendation(source, start)
	return out, nil
}

func (s *RecommendationService) compute(ctx context.Context, userID uint) ([]RecommendedUser, error) {
	viewer, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	pool, err := s.userRepo.Candidates(ctx, viewer, candidatePoolSize)
	if err != nil {
		return nil, err
	}
	secondDegree, err := s.connRepo.SecondDegreeIDs(ctx, userID, secondDegreePoolSize)
	if err != nil {
		return nil, err
	}
	pool, err = s.mergePool(ctx, pool, secondDegree)
	if err != nil {
		return nil, err
	}

	related, err := s.connRepo.RelatedIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	exclude := make(map[uint]struct{}, len(related))
	for _, id := range related {
		exclude[id] = struct{}{}
	}

	ids := make([]uint, 0, len(pool)+1)
	ids = append(ids, userID)
	byID := make(map[uint]*models.User, len(pool))
	for i := range pool {
		if _, skip := exclude[pool[i].ID]; skip {
			continue
		}
		ids = append(ids, pool[i].ID)
		byID[pool[i].ID] = &pool[i]
	}
	network, err := s.connRepo.ConnectedIDsFor(ctx, ids)
	if err != nil {
		return nil, err
	}

	candidates := make([]recommend.Profile, 0, len(byID))
	for _, id := range ids[1:] {
		candidates = append(candidates, profileOf(byID[id], network[id]))
	}

	ranked := recommend.Rank(profileOf(viewer, network[userID]), candidates, exclude, s.opts)
	out := make([]RecommendedUser, 0, len(ranked))
	for _, r := range ranked {
		u := byID[r.UserID]
		out = append(out, RecommendedUser{
			User:    u.Summary(),
			Major:   u.Major,
			Year:    u.YearOfStudy,
			Score:   r.Score,
			Reasons: r.Reasons,
		})
	}
	return out, nil
}

// mergePool appends friends-of-friends missing from the base pool.
func (s *RecommendationService) mergePool(ctx context.Context, pool []models.User, extra []uint) ([]models.User, error) {
	seen := make(map[uint]struct{}, len(pool))
	for _, u := range pool {
		seen[u.ID] = struct{}{}
	}
	missing := make([]uint, 0, len(extra))
	for _, id := range extra {
		if _, ok := seen[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return pool, nil
	}
	more, err := s.userRepo.GetByIDs(ctx, missing)
	if err != nil {
		return nil, err
	}
	return append(pool, more...), nil
}

func profileOf(u *models.User, connections []uint) recommend.Profile {
	return recommend.Profile{
		UserID:      u.ID,
		University:  u.University,
		Major:       u.Major,
		Year:        u.YearOfStudy,
		Interests:   u.InterestList(),
		Bio:         u.Bio,
		Connections: connections,
	}
}
