// Package bootstrap wires the process-level dependencies shared by the API and the CLI tools.
package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"matchday/internal/cache"
	"matchday/internal/config"
	"matchday/internal/database"
	"matchday/internal/middleware"
	"matchday/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// ApplySchema runs SQL migrations and/or AutoMigrate per DB_SCHEMA_MODE.
	ApplySchema bool
	// SeedDemo fills an empty development database with demo content.
	SeedDemo bool
}

// InitRuntime connects the primary store, the optional read replica and Redis.
// The Redis client is nil when Redis is unreachable.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}
	if _, err := database.ConnectRead(cfg, db); err != nil {
		return nil, nil, fmt.Errorf("read replica connection failed: %w", err)
	}

	if opts.ApplySchema {
		if err := database.ApplySchema(ctx, db, cfg); err != nil {
			return nil, nil, fmt.Errorf("apply schema: %w", err)
		}
	}

	cache.InitRedis(cfg.RedisURL)
	rdb := cache.GetClient()

	if opts.SeedDemo {
		if err := seedDemo(cfg, db); err != nil {
			return nil, nil, fmt.Errorf("failed to seed demo content: %w", err)
		}
	}

	return db, rdb, nil
}

// seedDemo only ever touches an empty development database.
func seedDemo(cfg *config.Config, db *gorm.DB) error {
	if !strings.EqualFold(cfg.Env, "development") {
		return nil
	}
	empty, err := seed.IsEmpty(db)
	if err != nil || !empty {
		return err
	}
	middleware.Logger.Info("Seeding demo content into empty development database")
	_, err = seed.NewSeeder(db, seed.Options{}).Run(seed.DefaultCounts)
	return err
}
