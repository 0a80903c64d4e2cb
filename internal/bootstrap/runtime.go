// Package bootstrap wires process-level dependencies shared by commands.
package bootstrap

import (
	"context"
	"fmt"

	"quad/internal/cache"
	"quad/internal/config"
	"quad/internal/database"
	"quad/internal/repository"
	"quad/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	SeedBuiltIns bool
}

// InitRuntime connects to DB and Redis and optionally upserts the built-in forums.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Init Redis (may result in nil client if unreachable)
	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if opts.SeedBuiltIns {
		if err := SeedBuiltIns(context.Background(), db); err != nil {
			return nil, nil, err
		}
	}

	return db, r, nil
}

// SeedBuiltIns upserts the permanent forums.
func SeedBuiltIns(ctx context.Context, db *gorm.DB) error {
	if err := seed.Forums(ctx, repository.NewForumRepository(db)); err != nil {
		return fmt.Errorf("failed to seed built-in forums: %w", err)
	}
	return nil
}
