package seed

import (
	"context"
	"math/rand"
	"testing"

	"quad/internal/models"
	"quad/internal/repository"
	"quad/internal/testutil"
	"quad/internal/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltInForums_Catalog(t *testing.T) {
	forums, err := BuiltInForums()
	require.NoError(t, err)
	require.NotEmpty(t, forums)
	assert.Equal(t, "general", forums[0].Slug)
}

func TestParseForums_Rejects(t *testing.T) {
	tests := map[string]string{
		"bad slug":  "forums:\n  - slug: Bad Slug\n    name: x\n",
		"no name":   "forums:\n  - slug: ok\n",
		"duplicate": "forums:\n  - slug: ok\n    name: a\n  - slug: ok\n    name: b\n",
		"not yaml":  "forums: [",
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := parseForums([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestForums_Idempotent(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := repository.NewForumRepository(db)
	ctx := context.Background()

	require.NoError(t, Forums(ctx, repo))
	require.NoError(t, db.Model(&models.Forum{}).Where("slug = ?", "general").Update("name", "Renamed").Error)
	require.NoError(t, Forums(ctx, repo))

	builtIns, err := BuiltInForums()
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.Forum{}).Count(&count).Error)
	assert.Equal(t, int64(len(builtIns)), count)

	general, err := repo.GetBySlug(ctx, "general")
	require.NoError(t, err)
	assert.Equal(t, "General", general.Name)
}

func TestFakeISBN13_Valid(t *testing.T) {
	//nolint:gosec // test data
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		isbn := FakeISBN13(r)
		_, err := validation.ValidateISBN(isbn)
		assert.NoError(t, err, isbn)
	}
}

func TestFactory_BuildUserPassesValidation(t *testing.T) {
	f := NewFactory(nil, Options{DryRun: true, SkipBcrypt: true, RandSeed: 7})
	for i := 0; i < 20; i++ {
		u := f.BuildUser()
		assert.NoError(t, validation.ValidateUsername(u.Username), u.Username)
		assert.NotEmpty(t, u.InterestList())
		assert.GreaterOrEqual(t, u.YearOfStudy, 1)
	}
}

func TestSeeder_DryRun(t *testing.T) {
	s := NewSeeder(nil, Options{NumUsers: 6, PostsPerForum: 2, DryRun: true, SkipBcrypt: true, RandSeed: 42})

	sum, err := s.Run(context.Background())
	require.NoError(t, err)

	builtIns, err := BuiltInForums()
	require.NoError(t, err)
	assert.Equal(t, len(builtIns), sum.Forums)
	assert.Equal(t, 6, sum.Users)
	assert.Equal(t, 2*len(builtIns), sum.Posts)
	assert.Equal(t, 3, sum.Books)
	assert.Equal(t, 2, sum.Resources)
	assert.Equal(t, 15, sum.Connections)
}

func TestSeeder_Persists(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	s := NewSeeder(db, Options{NumUsers: 4, PostsPerForum: 1, SkipBcrypt: true, RandSeed: 3})

	sum, err := s.Run(context.Background())
	require.NoError(t, err)

	var users, posts, books, conns int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	require.NoError(t, db.Model(&models.Post{}).Count(&posts).Error)
	require.NoError(t, db.Model(&models.Book{}).Count(&books).Error)
	require.NoError(t, db.Model(&models.Connection{}).Count(&conns).Error)

	assert.Equal(t, int64(sum.Users), users)
	assert.Equal(t, int64(sum.Posts), posts)
	assert.Equal(t, int64(sum.Books), books)
	assert.Equal(t, int64(sum.Connections), conns)

	// Every pair appears once regardless of direction.
	var dup int64
	require.NoError(t, db.Raw(`SELECT COUNT(*) FROM connections a JOIN connections b
		ON a.requester_id = b.addressee_id AND a.addressee_id = b.requester_id`).Scan(&dup).Error)
	assert.Zero(t, dup)
}
