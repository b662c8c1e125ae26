package bucket

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"warden/internal/ratelimit/models"
)

// RedisBucketStore is a fixed window shared by all instances: INCR the key
// and start its expiry on the first hit of the window.
type RedisBucketStore struct {
	client redis.Cmdable
	now    func() time.Time
}

func NewRedisBucketStore(client redis.Cmdable) *RedisBucketStore {
	return &RedisBucketStore{client: client, now: time.Now}
}

func (s *RedisBucketStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error) {
	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		ttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis rate limit %s: %w", key, err)
	}

	now := s.now()
	count := int(incr.Val())
	resetAt := now.Add(window)
	if d := ttl.Val(); d > 0 {
		resetAt = now.Add(d)
	}
	allowed := count <= limit
	return &models.RateLimitResult{
		Allowed:    allowed,
		Limit:      limit,
		Remaining:  max(limit-count, 0),
		ResetAt:    resetAt,
		RetryAfter: models.RetryAfterSeconds(allowed, resetAt, now),
	}, nil
}

func (s *RedisBucketStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis reset %s: %w", key, err)
	}
	return nil
}
