package seed

import (
	"context"
	"fmt"
	"log/slog"

	"quad/internal/middleware"
	"quad/internal/models"
	"quad/internal/repository"

	"gorm.io/gorm"
)

// Options configure the demo seeder.
type Options struct {
	NumUsers int
	// PostsPerForum is the number of demo posts in each built-in forum.
	PostsPerForum int
	DryRun        bool
	SkipBcrypt    bool
	MaxDays       int
	// RandSeed makes output reproducible when non-zero.
	RandSeed int64
}

// Summary counts what a run created.
type Summary struct {
	Forums      int
	Users       int
	Connections int
	Posts       int
	Comments    int
	Books       int
	Resources   int
}

// Seeder populates a database with built-in forums and demo data.
type Seeder struct {
	db      *gorm.DB
	forums  repository.ForumRepository
	factory *Factory
	opts    Options
}

// NewSeeder returns a Seeder. db may be nil in DryRun mode.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	s := &Seeder{db: db, factory: NewFactory(db, opts), opts: opts}
	if db != nil {
		s.forums = repository.NewForumRepository(db)
	}
	return s
}

// Run seeds forums, then users and their content.
func (s *Seeder) Run(ctx context.Context) (*Summary, error) {
	sum := &Summary{}
	log := middleware.Logger.With(slog.Bool("dry_run", s.opts.DryRun))
	log.InfoContext(ctx, "seeding started", slog.Int("users", s.opts.NumUsers))

	forums, err := s.seedForums(ctx)
	if err != nil {
		return nil, err
	}
	sum.Forums = len(forums)

	users, err := s.seedUsers()
	if err != nil {
		return nil, err
	}
	sum.Users = len(users)
	if len(users) == 0 {
		log.InfoContext(ctx, "seeding completed", slog.Int("forums", sum.Forums))
		return sum, nil
	}

	if sum.Connections, err = s.seedNetwork(users); err != nil {
		return nil, err
	}
	if sum.Posts, sum.Comments, err = s.seedPosts(forums, users); err != nil {
		return nil, err
	}
	if sum.Books, err = s.seedBooks(users); err != nil {
		return nil, err
	}
	if sum.Resources, err = s.seedResources(users); err != nil {
		return nil, err
	}

	log.InfoContext(ctx, "seeding completed",
		slog.Int("forums", sum.Forums),
		slog.Int("users", sum.Users),
		slog.Int("connections", sum.Connections),
		slog.Int("posts", sum.Posts),
		slog.Int("comments", sum.Comments),
		slog.Int("books", sum.Books),
		slog.Int("resources", sum.Resources),
	)
	return sum, nil
}

func (s *Seeder) seedForums(ctx context.Context) ([]models.Forum, error) {
	if s.opts.DryRun {
		builtIns, err := BuiltInForums()
		if err != nil {
			return nil, err
		}
		out := make([]models.Forum, len(builtIns))
		for i, f := range builtIns {
			out[i] = models.Forum{ID: uint(i + 1), Slug: f.Slug, Name: f.Name, Position: i}
		}
		return out, nil
	}
	if err := Forums(ctx, s.forums); err != nil {
		return nil, err
	}
	return s.forums.List(ctx)
}

func (s *Seeder) seedUsers() ([]*models.User, error) {
	users := make([]*models.User, 0, s.opts.NumUsers)
	for i := 0; i < s.opts.NumUsers; i++ {
		u, err := s.factory.CreateUser()
		if err != nil {
			middleware.Logger.Warn("skipping demo user", slog.String("error", err.Error()))
			continue
		}
		users = append(users, u)
	}
	return users, nil
}

// seedNetwork links each user to a few neighbours in a ring, leaving the
// last link of every third user pending so request flows have data.
func (s *Seeder) seedNetwork(users []*models.User) (int, error) {
	n := len(users)
	if n < 2 {
		return 0, nil
	}
	degree := 3
	if degree > n-1 {
		degree = n - 1
	}

	seen := make(map[[2]uint]bool)
	count := 0
	for i, u := range users {
		for d := 1; d <= degree; d++ {
			other := users[(i+d)%n]
			key := [2]uint{min(u.ID, other.ID), max(u.ID, other.ID)}
			if seen[key] {
				continue
			}
			seen[key] = true

			status := models.ConnectionStatusAccepted
			if d == degree && i%3 == 0 {
				status = models.ConnectionStatusPending
			}
			if _, err := s.factory.CreateConnection(u.ID, other.ID, status); err != nil {
				return count, fmt.Errorf("create connection: %w", err)
			}
			count++
		}
	}
	return count, nil
}

func (s *Seeder) seedPosts(forums []models.Forum, users []*models.User) (int, int, error) {
	perForum := s.opts.PostsPerForum
	if perForum <= 0 {
		perForum = 3
	}
	posts, comments := 0, 0
	for _, forum := range forums {
		for i := 0; i < perForum; i++ {
			author := users[s.factory.rnd.Intn(len(users))]
			post, err := s.factory.CreatePost(forum.ID, author.ID)
			if err != nil {
				return posts, comments, fmt.Errorf("create post: %w", err)
			}
			posts++

			for j := s.factory.rnd.Intn(4); j > 0; j-- {
				commenter := users[s.factory.rnd.Intn(len(users))]
				if _, err := s.factory.CreateComment(post.ID, commenter.ID); err != nil {
					return posts, comments, fmt.Errorf("create comment: %w", err)
				}
				comments++
			}
		}
	}
	return posts, comments, nil
}

func (s *Seeder) seedBooks(users []*models.User) (int, error) {
	count := 0
	for i, u := range users {
		if i%2 != 0 {
			continue
		}
		if _, err := s.factory.CreateBook(u.ID); err != nil {
			return count, fmt.Errorf("create book: %w", err)
		}
		count++
	}
	return count, nil
}

func (s *Seeder) seedResources(users []*models.User) (int, error) {
	count := 0
	for i, u := range users {
		if i%3 != 0 {
			continue
		}
		if _, err := s.factory.CreateResource(u.ID); err != nil {
			return count, fmt.Errorf("create resource: %w", err)
		}
		count++
	}
	return count, nil
}
