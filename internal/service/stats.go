package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/faireye-hive/hive-cache/internal/cache"
	"github.com/faireye-hive/hive-cache/internal/models"
	"github.com/faireye-hive/hive-cache/internal/stats"
)

// CacheStats describes the loaded post set and the state backend.
type CacheStats struct {
	TotalPosts     int        `json:"totalPosts"`
	LastUpdate     *time.Time `json:"lastUpdate,omitempty"`
	LastPostDate   *time.Time `json:"lastPostDate,omitempty"`
	Generation     uint64     `json:"generation"`
	FeedDigest     string     `json:"feedDigest,omitempty"`
	Flags          int        `json:"flags"`
	Mutes          int        `json:"mutes"`
	RiskCacheSize  int        `json:"riskCacheSize"`
	StoreDriver    string     `json:"storeDriver"`
	StoreHealthy   bool       `json:"storeHealthy"`
	RedisConnected bool       `json:"redisConnected"`
}

// Rankings ranks authors with posts inside the last hours (0 = all time).
func (m *Moderation) Rankings(ctx context.Context, by stats.RankBy, hours int) ([]stats.RankingEntry, error) {
	if hours < 0 {
		return nil, models.NewValidationError("hours must not be negative")
	}
	m.mu.RLock()
	posts, digest := m.posts, m.digest
	m.mu.RUnlock()

	var out []stats.RankingEntry
	err := m.cache.CacheAside(ctx, cache.RankingKey(digest, string(by), hours), &out, cache.DerivedTTL, func() error {
		out = stats.Rankings(posts, by, time.Duration(hours)*time.Hour, m.now())
		return nil
	})
	if out == nil {
		out = []stats.RankingEntry{}
	}
	return out, err
}

// Summary computes the statistics panel.
func (m *Moderation) Summary(ctx context.Context) (stats.Summary, error) {
	m.mu.RLock()
	posts, digest, flags := m.posts, m.digest, m.flags.Len()
	m.mu.RUnlock()

	var out stats.Summary
	err := m.cache.CacheAside(ctx, cache.SummaryKey(digest, flags), &out, cache.DerivedTTL, func() error {
		out = stats.Summarize(posts, flags)
		return nil
	})
	return out, err
}

// Apps counts client apps once per author.
func (m *Moderation) Apps(ctx context.Context) ([]stats.AppCount, error) {
	m.mu.RLock()
	posts, digest := m.posts, m.digest
	m.mu.RUnlock()

	var out []stats.AppCount
	err := m.cache.CacheAside(ctx, cache.AppsKey(digest), &out, cache.DerivedTTL, func() error {
		out = stats.CountApps(posts)
		return nil
	})
	if out == nil {
		out = []stats.AppCount{}
	}
	return out, err
}

// CacheStats reports on the loaded set and the backends.
func (m *Moderation) CacheStats(ctx context.Context) CacheStats {
	m.mu.RLock()
	out := CacheStats{
		TotalPosts:    len(m.posts),
		Generation:    m.generation,
		FeedDigest:    m.digest,
		Flags:         m.flags.Len(),
		Mutes:         len(m.mutes.Set()),
		RiskCacheSize: m.engine.Len(),
		StoreDriver:   m.repo.Backend(),
	}
	if !m.lastImport.IsZero() {
		t := m.lastImport
		out.LastUpdate = &t
	}
	var latest time.Time
	for i := range m.posts {
		if m.posts[i].Created.After(latest) {
			latest = m.posts[i].Created
		}
	}
	m.mu.RUnlock()

	if !latest.IsZero() {
		out.LastPostDate = &latest
	}
	out.StoreHealthy = m.repo.Ping(ctx) == nil
	if m.redisPing != nil {
		out.RedisConnected = m.redisPing(ctx) == nil
	}
	return out
}

// ClearCache removes persisted flags, mutes and settings and resets the
// in-memory state to match. The post set and the session are kept.
func (m *Moderation) ClearCache(ctx context.Context) error {
	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	m.mu.Lock()
	m.flags = NewFlagStore(nil)
	m.mutes = NewMuteStore(nil)
	m.settings = models.DefaultSettings()
	m.engine.Purge()
	m.mu.Unlock()

	if err := m.repo.Clear(ctx); err != nil {
		m.logger.ErrorContext(ctx, "failed to clear persisted state", slog.String("error", err.Error()))
		return err
	}
	m.alert(ctx, "Cache limpo", models.LevelSuccess)
	return nil
}
