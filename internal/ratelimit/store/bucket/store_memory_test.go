package bucket

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestInMemoryBucketStore_Allow(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := NewInMemoryBucketStore(WithClock(clock.Now))
	ctx := context.Background()
	key := "rl:credential:/v1/auth/login:10.0.0.1"

	t.Run("requests up to limit allowed", func(t *testing.T) {
		for i := range 3 {
			result, err := store.Allow(ctx, key, 3, 5*time.Minute)
			require.NoError(t, err)
			assert.True(t, result.Allowed)
			assert.Equal(t, 2-i, result.Remaining)
			clock.Advance(time.Minute)
		}
	})

	t.Run("request over limit denied", func(t *testing.T) {
		result, err := store.Allow(ctx, key, 3, 5*time.Minute)
		require.NoError(t, err)
		assert.False(t, result.Allowed)
		assert.Equal(t, 0, result.Remaining)
		// oldest hit was 3 minutes ago
		assert.Equal(t, 120, result.RetryAfter)
	})

	t.Run("window slides", func(t *testing.T) {
		clock.Advance(2 * time.Minute)
		result, err := store.Allow(ctx, key, 3, 5*time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	})

	t.Run("keys are independent", func(t *testing.T) {
		result, err := store.Allow(ctx, "rl:credential:/v1/auth/login:10.0.0.2", 3, 5*time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, 2, result.Remaining)
	})
}

func TestInMemoryBucketStore_ResetAndPrune(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := NewInMemoryBucketStore(WithClock(clock.Now))
	ctx := context.Background()

	_, err := store.Allow(ctx, "a", 1, time.Minute)
	require.NoError(t, err)
	denied, err := store.Allow(ctx, "a", 1, time.Minute)
	require.NoError(t, err)
	require.False(t, denied.Allowed)

	require.NoError(t, store.Reset(ctx, "a"))
	again, err := store.Allow(ctx, "a", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, again.Allowed)

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 1, store.Prune())
}

func TestInMemoryBucketStore_Concurrent(t *testing.T) {
	store := NewInMemoryBucketStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := store.Allow(ctx, "hot", 10, time.Minute)
			if err == nil && result.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, allowed)
}
