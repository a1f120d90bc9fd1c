// Package bootstrap wires the process-level dependencies shared by the
// server and the maintenance commands.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"agora/internal/cache"
	"agora/internal/config"
	"agora/internal/database"
	"agora/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	ApplySchema bool
	// SeedDemoData seeds an empty development database.
	SeedDemoData bool
	SkipRedis    bool
}

// InitRuntime connects to the database and Redis, applies the schema policy
// and optionally seeds demo data. The Redis client is nil when Redis is
// unreachable or skipped.
func InitRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	if opts.ApplySchema {
		if err := database.ApplySchema(ctx, db, cfg, logger); err != nil {
			closeDB(db)
			return nil, nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	if opts.SeedDemoData {
		if err := seedIfEmpty(ctx, cfg, db, logger); err != nil {
			closeDB(db)
			return nil, nil, err
		}
	}

	var r *redis.Client
	if !opts.SkipRedis {
		r = cache.InitRedis(logger, cfg.RedisURL)
	}
	return db, r, nil
}

func seedIfEmpty(ctx context.Context, cfg *config.Config, db *gorm.DB, logger *slog.Logger) error {
	if cfg.IsProduction() {
		logger.Warn("Demo seeding requested in production, skipping")
		return nil
	}

	var count int64
	if err := db.WithContext(ctx).Table("topics").Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count topics: %w", err)
	}
	if count > 0 {
		logger.Debug("Database already has topics, skipping demo seed", slog.Int64("topics", count))
		return nil
	}

	opts := seed.DefaultOptions()
	opts.Logger = logger
	if _, err := seed.Seed(ctx, db, opts); err != nil {
		return fmt.Errorf("failed to seed demo data: %w", err)
	}
	return nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
