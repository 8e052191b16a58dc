package repository

import (
	"context"
	"time"

	"clinic-auth/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const rateLimitKeyPrefix = "rate_limit:"

// RedisRateLimitRepository implements rate limiting using Redis counters
type RedisRateLimitRepository struct {
	client *redis.Client
	logger *logger.Logger
}

// NewRedisRateLimitRepository creates a new Redis rate limit repository
func NewRedisRateLimitRepository(client *redis.Client, logger *logger.Logger) RateLimitRepository {
	return &RedisRateLimitRepository{
		client: client,
		logger: logger,
	}
}

// Hit increments the counter for key and starts the window on the first hit
func (r *RedisRateLimitRepository) Hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	redisKey := rateLimitKeyPrefix + key

	// INCR and TTL in one round trip
	pipe := r.client.TxPipeline()
	incrCmd := pipe.Incr(ctx, redisKey)
	ttlCmd := pipe.TTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, storageError("rate limit hit", err)
	}

	count := incrCmd.Val()

	// A negative TTL means the key has no expiry yet: this hit opened the window,
	// or an earlier EXPIRE was lost.
	if ttlCmd.Val() < 0 {
		if err := r.client.Expire(ctx, redisKey, window).Err(); err != nil {
			return 0, storageError("rate limit expire", err)
		}
		r.logger.Debugw("Starting new rate limit window",
			"key", key,
			"ttl_seconds", int(window.Seconds()))
	}

	r.logger.Debugw("Rate limit hit recorded", "key", key, "request_count", count)
	return count, nil
}

// Reset deletes the counter for key
func (r *RedisRateLimitRepository) Reset(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, rateLimitKeyPrefix+key).Err(); err != nil {
		return storageError("rate limit reset", err)
	}
	return nil
}
