package repository

import (
	"context"
	"errors"

	"github.com/faireye-hive/hive-cache/internal/cache"

	"github.com/redis/go-redis/v9"
)

const stateKeyPrefix = cache.KeyPrefix + "state:"

// RedisKV stores blobs as plain Redis strings without expiry.
type RedisKV struct {
	rdb *redis.Client
}

// NewRedisKV wraps rdb.
func NewRedisKV(rdb *redis.Client) *RedisKV {
	return &RedisKV{rdb: rdb}
}

func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.rdb.Get(ctx, stateKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return b, err
}

func (r *RedisKV) Set(ctx context.Context, key string, value []byte) error {
	return r.rdb.Set(ctx, stateKeyPrefix+key, value, 0).Err()
}

func (r *RedisKV) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = stateKeyPrefix + k
	}
	return r.rdb.Del(ctx, prefixed...).Err()
}

func (r *RedisKV) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *RedisKV) Backend() string { return "redis" }
