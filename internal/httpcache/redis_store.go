package httpcache

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists cache validators across process restarts, per the
// §9 design note permitting (not requiring) validator persistence.
type RedisStore struct {
	redis  *redis.Client
	prefix string
}

// NewRedisStore constructs a validator store backed by rdb.
func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	return &RedisStore{redis: rdb, prefix: prefix}
}

// Get returns the stored validator for key, or a zero Validator if absent or
// on a Redis error (fail open: no conditional headers applied).
func (s *RedisStore) Get(ctx context.Context, key string) Validator {
	res, err := s.redis.HGetAll(ctx, s.prefix+key).Result()
	if err != nil {
		slog.Warn("httpcache redis get failed", slog.String("key", key), slog.Any("error", err))
		return Validator{}
	}
	return Validator{ETag: res["etag"], LastModified: res["last_modified"]}
}

// Set stores v under key.
func (s *RedisStore) Set(ctx context.Context, key string, v Validator) {
	err := s.redis.HSet(ctx, s.prefix+key, map[string]interface{}{
		"etag":          v.ETag,
		"last_modified": v.LastModified,
	}).Err()
	if err != nil {
		slog.Warn("httpcache redis set failed", slog.String("key", key), slog.Any("error", err))
	}
}
