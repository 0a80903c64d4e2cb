package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserKeyPrefix           = "user:%d"
	RecommendationKeyPrefix = "recs:user:%d"
	ForumListKey            = "forums:all"
)

const (
	UserTTL           = 5 * time.Minute
	RecommendationTTL = 10 * time.Minute
	ForumListTTL      = 30 * time.Minute
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func RecommendationKey(userID uint) string {
	return fmt.Sprintf(RecommendationKeyPrefix, userID)
}

func Invalidate(ctx context.Context, keys ...string) {
	if client != nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}

// InvalidateRecommendations drops cached recommendation lists for every given user.
func InvalidateRecommendations(ctx context.Context, userIDs ...uint) {
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, RecommendationKey(id))
	}
	Invalidate(ctx, keys...)
}
