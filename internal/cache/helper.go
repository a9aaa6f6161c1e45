package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// KeyPrefix namespaces every key written by the service.
	KeyPrefix = "hivecache:"

	rankingKeyFormat = KeyPrefix + "ranking:%s:%s:%d"
	summaryKeyFormat = KeyPrefix + "summary:%s:%d"
	appsKeyFormat    = KeyPrefix + "apps:%s"
)

const (
	// DerivedTTL bounds how long derived views survive in Redis. Keys embed
	// the digest of the imported feed, so a server never reads views built
	// from a different feed, even one cached by an earlier process.
	DerivedTTL = 10 * time.Minute
)

// RankingKey derives the key of one ranking view.
func RankingKey(feed, by string, hours int) string {
	return fmt.Sprintf(rankingKeyFormat, feed, by, hours)
}

// SummaryKey derives the key of the statistics summary. flags is part of
// the key because the flag rate depends on it.
func SummaryKey(feed string, flags int) string {
	return fmt.Sprintf(summaryKeyFormat, feed, flags)
}

// AppsKey derives the key of the app distribution.
func AppsKey(feed string) string {
	return fmt.Sprintf(appsKeyFormat, feed)
}

// JSONCache stores JSON documents in Redis. A nil client turns every
// operation into a miss.
type JSONCache struct {
	rdb *redis.Client
}

// NewJSONCache wraps rdb, which may be nil.
func NewJSONCache(rdb *redis.Client) *JSONCache {
	return &JSONCache{rdb: rdb}
}

// GetJSON attempts to get the key from Redis and unmarshal into dest.
// Returns (true, nil) if found and unmarshaled, (false, nil) if not found.
func (c *JSONCache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if c == nil || c.rdb == nil {
		return false, nil
	}
	s, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(s), dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON marshals v and sets the key with TTL.
func (c *JSONCache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, b, ttl).Err()
}

// CacheAside tries Redis first, on miss it calls fetch (which should populate dest),
// then stores the result in Redis with ttl. A Redis read error is treated as a miss.
func (c *JSONCache) CacheAside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	if found, err := c.GetJSON(ctx, key, dest); err == nil && found {
		return nil
	}
	if err := fetch(); err != nil {
		return err
	}
	_ = c.SetJSON(ctx, key, dest, ttl)
	return nil
}

// Invalidate removes keys; errors are ignored.
func (c *JSONCache) Invalidate(ctx context.Context, keys ...string) {
	if c == nil || c.rdb == nil || len(keys) == 0 {
		return
	}
	c.rdb.Del(ctx, keys...)
}
