package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"quad/internal/cache"
	"quad/internal/models"
	"quad/internal/repository"
	"quad/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type publishedEvent struct {
	UserID  uint
	Type    string
	Payload interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) PublishEvent(_ context.Context, userID uint, eventType string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{UserID: userID, Type: eventType, Payload: payload})
	return nil
}

func (p *recordingPublisher) typesFor(userID uint) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		if e.UserID == userID {
			out = append(out, e.Type)
		}
	}
	return out
}

// fixture wires every service over one in-memory database.
type fixture struct {
	db            *gorm.DB
	pub           *recordingPublisher
	users         repository.UserRepository
	notifRepo     repository.NotificationRepository
	notifications *NotificationService
	network       *NetworkService
	forums        *ForumService
	chat          *ChatService
	library       *LibraryService
	resources     *ResourceService
	recs          *RecommendationService
	accounts      *UserService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	pub := &recordingPublisher{}

	users := repository.NewUserRepository(db)
	conns := repository.NewConnectionRepository(db)
	notifRepo := repository.NewNotificationRepository(db)
	notifications := NewNotificationService(notifRepo, pub)

	return &fixture{
		db:            db,
		pub:           pub,
		users:         users,
		notifRepo:     notifRepo,
		notifications: notifications,
		network:       NewNetworkService(conns, users, notifications, pub),
		forums: NewForumService(
			repository.NewForumRepository(db),
			repository.NewPostRepository(db),
			repository.NewCommentRepository(db),
			users,
			notifications,
		),
		chat:      NewChatService(repository.NewChatRepository(db), users, notifications, pub),
		library:   NewLibraryService(repository.NewBookRepository(db), users, notifications, NewCoverStore(nil)),
		resources: NewResourceService(repository.NewResourceRepository(db), users),
		recs:      NewRecommendationService(users, conns, 10, 0),
		accounts:  NewUserService(users),
	}
}

// useMiniredis points the package cache at a fresh miniredis for the test.
func useMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache.SetClient(rdb)
	t.Cleanup(func() {
		cache.SetClient(nil)
		_ = rdb.Close()
	})
	return mr
}

func appCode(err error) string {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, appCode(err), "unexpected error: %v", err)
}

func makeAdmin(t *testing.T, db *gorm.DB, userID uint) {
	t.Helper()
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", userID).Update("is_admin", true).Error)
}
