package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "custodia:ratelimit:"

// RedisStore is a fixed-window attempt counter shared across replicas.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore builds a store over an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Allow increments the key's window counter, setting the expiry when the
// window opens. INCR and EXPIRE run in one pipeline round trip.
func (s *RedisStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	redisKey := redisKeyPrefix + key

	pipe := s.client.TxPipeline()
	count := pipe.Incr(ctx, redisKey)
	pipe.ExpireNX(ctx, redisKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, err
	}

	ttl, err := s.client.TTL(ctx, redisKey).Result()
	if err != nil {
		return Result{}, err
	}

	n := int(count.Val())
	result := Result{
		Allowed: n <= limit,
		Limit:   limit,
		ResetAt: time.Now().Add(ttl),
	}
	if result.Allowed {
		result.Remaining = limit - n
	}
	return result, nil
}
