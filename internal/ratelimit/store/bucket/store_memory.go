package bucket

import (
	"context"
	"sync"
	"time"

	"warden/internal/ratelimit/models"
)

// InMemoryBucketStore implements a per-process sliding window.
// For multi-instance deployments, use RedisBucketStore instead.
type InMemoryBucketStore struct {
	mu      sync.Mutex
	buckets map[string]*slidingWindow
	now     func() time.Time
}

type slidingWindow struct {
	timestamps []time.Time
	window     time.Duration
}

// tryConsume records one request if capacity remains.
func (sw *slidingWindow) tryConsume(limit int, now time.Time) (allowed bool, remaining int, resetAt time.Time) {
	sw.cleanupExpired(now)

	if len(sw.timestamps) >= limit {
		return false, 0, sw.timestamps[0].Add(sw.window)
	}
	sw.timestamps = append(sw.timestamps, now)
	return true, limit - len(sw.timestamps), sw.timestamps[0].Add(sw.window)
}

func (sw *slidingWindow) cleanupExpired(now time.Time) {
	cutoff := now.Add(-sw.window)
	i := 0
	for ; i < len(sw.timestamps); i++ {
		if sw.timestamps[i].After(cutoff) {
			break
		}
	}
	sw.timestamps = sw.timestamps[i:]
}

type MemoryOption func(*InMemoryBucketStore)

func WithClock(now func() time.Time) MemoryOption {
	return func(s *InMemoryBucketStore) {
		s.now = now
	}
}

func NewInMemoryBucketStore(opts ...MemoryOption) *InMemoryBucketStore {
	s := &InMemoryBucketStore{
		buckets: make(map[string]*slidingWindow),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Allow checks if a request is allowed and counts it when it is.
func (s *InMemoryBucketStore) Allow(_ context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	bucket, ok := s.buckets[key]
	if !ok {
		bucket = &slidingWindow{window: window}
		s.buckets[key] = bucket
	}
	allowed, remaining, resetAt := bucket.tryConsume(limit, now)

	return &models.RateLimitResult{
		Allowed:    allowed,
		Limit:      limit,
		Remaining:  remaining,
		ResetAt:    resetAt,
		RetryAfter: models.RetryAfterSeconds(allowed, resetAt, now),
	}, nil
}

// Reset clears the counter for a key.
func (s *InMemoryBucketStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buckets, key)
	return nil
}

// Prune drops buckets with no requests left in their window.
func (s *InMemoryBucketStore) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	pruned := 0
	for key, bucket := range s.buckets {
		bucket.cleanupExpired(now)
		if len(bucket.timestamps) == 0 {
			delete(s.buckets, key)
			pruned++
		}
	}
	return pruned
}
