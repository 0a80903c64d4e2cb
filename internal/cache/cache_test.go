package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { SetClient(nil) })
	return mr
}

func TestRemember_MissThenHit(t *testing.T) {
	mr := setupMiniredis(t)
	ctx := context.Background()
	calls := 0
	load := func(context.Context) ([]uint, error) {
		calls++
		return []uint{3, 1, 2}, nil
	}

	first, hit, err := Remember(ctx, RecommendationKey(7), RecommendationTTL, load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []uint{3, 1, 2}, first)
	assert.True(t, mr.Exists("recs:user:7"))
	assert.Equal(t, RecommendationTTL, mr.TTL("recs:user:7"))

	second, hit, err := Remember(ctx, RecommendationKey(7), RecommendationTTL, load)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestRemember_LoadErrorNotCached(t *testing.T) {
	mr := setupMiniredis(t)
	_, _, err := Remember(context.Background(), "k", time.Minute, func(context.Context) (int, error) {
		return 0, errors.New("db down")
	})
	assert.Error(t, err)
	assert.False(t, mr.Exists("k"))
}

func TestRemember_CorruptEntryIsReloaded(t *testing.T) {
	mr := setupMiniredis(t)
	require.NoError(t, mr.Set(ForumListKey, "{not json"))

	v, hit, err := Remember(context.Background(), ForumListKey, ForumListTTL, func(context.Context) ([]string, error) {
		return []string{"general"}, nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []string{"general"}, v)

	raw, err := mr.Get(ForumListKey)
	require.NoError(t, err)
	assert.JSONEq(t, `["general"]`, raw)
}

func TestRemember_NoClientFallsThrough(t *testing.T) {
	SetClient(nil)
	v, hit, err := Remember(context.Background(), "k", time.Minute, func(context.Context) ([]uint, error) {
		return []uint{1}, nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []uint{1}, v)
}

func TestKeyspace(t *testing.T) {
	assert.Equal(t, "recs", keyspace("recs:user:1"))
	assert.Equal(t, "forums", keyspace(ForumListKey))
	assert.Equal(t, "plain", keyspace("plain"))
}

func TestOpen(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb, err := Open(context.Background(), mr.Addr())
	require.NoError(t, err)
	_ = rdb.Close()

	rdb, err = Open(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	_ = rdb.Close()

	_, err = Open(context.Background(), "redis://%zz")
	assert.Error(t, err)
}

func TestInvalidateRecommendations(t *testing.T) {
	mr := setupMiniredis(t)
	require.NoError(t, mr.Set("recs:user:1", "x"))
	require.NoError(t, mr.Set("recs:user:2", "y"))
	require.NoError(t, mr.Set("recs:user:3", "z"))

	InvalidateRecommendations(context.Background(), 1, 2)

	assert.False(t, mr.Exists("recs:user:1"))
	assert.False(t, mr.Exists("recs:user:2"))
	assert.True(t, mr.Exists("recs:user:3"))
}
