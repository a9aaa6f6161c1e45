// Package bootstrap connects the external dependencies selected by the
// configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/faireye-hive/hive-cache/internal/cache"
	"github.com/faireye-hive/hive-cache/internal/config"
	"github.com/faireye-hive/hive-cache/internal/database"
	"github.com/faireye-hive/hive-cache/internal/feed"
	"github.com/faireye-hive/hive-cache/internal/repository"
	"github.com/faireye-hive/hive-cache/internal/rules"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Runtime holds the connected backends.
type Runtime struct {
	Redis     *redis.Client
	DB        *gorm.DB
	KV        repository.KV
	Rules     *rules.Set
	Source    feed.Source
	Blacklist feed.Blacklist
}

// InitRuntime connects Redis and the state store and loads the rule set and
// blacklist. Redis is optional: without it derived views are not cached,
// alerts stay local and STORE_DRIVER=redis falls back to memory.
func InitRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: nil config")
	}
	if logger == nil {
		logger = slog.Default()
	}

	set, err := rules.Load(cfg.RulesPath)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{
		Redis:  cache.Connect(cfg.RedisURL, logger),
		Rules:  set,
		Source: feed.NewSource(cfg.FeedURL, cfg.FeedPath),
	}

	switch cfg.StoreDriver {
	case config.DriverRedis:
		if rt.Redis == nil {
			logger.WarnContext(ctx, "redis unavailable, keeping moderation state in memory")
			rt.KV = repository.NewMemoryKV()
		} else {
			rt.KV = repository.NewRedisKV(rt.Redis)
		}
	case config.DriverSQLite, config.DriverPostgres:
		db, err := database.Connect(cfg, logger)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("database connection failed: %w", err)
		}
		kv, err := repository.NewGormKV(db)
		if err != nil {
			rt.DB = db
			rt.Close()
			return nil, fmt.Errorf("prepare state table: %w", err)
		}
		rt.DB = db
		rt.KV = kv
	default:
		rt.KV = repository.NewMemoryKV()
	}

	if src := feed.NewSource(cfg.BlacklistURL, cfg.BlacklistPath); src != nil {
		rt.Blacklist = feed.LoadBlacklist(ctx, src, logger)
		logger.InfoContext(ctx, "blacklist loaded", slog.Int("handles", len(rt.Blacklist)))
	} else {
		rt.Blacklist = feed.NewBlacklist()
	}

	logger.InfoContext(ctx, "runtime initialized",
		slog.String("store", rt.KV.Backend()),
		slog.Bool("redis", rt.Redis != nil),
		slog.Bool("feed_source", rt.Source != nil),
	)
	return rt, nil
}

// Close releases the database and Redis connections.
func (rt *Runtime) Close() {
	if rt == nil {
		return
	}
	if rt.DB != nil {
		if sqlDB, err := rt.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if rt.Redis != nil {
		_ = rt.Redis.Close()
	}
}
