package bucket

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisBucketStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisBucketStore(client), mr
}

func TestRedisBucketStore_Allow(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()
	key := "rl:verify:/v1/auth/verify-login:10.0.0.1"

	for i := range 10 {
		result, err := store.Allow(ctx, key, 10, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed, "request %d", i+1)
		assert.Equal(t, 9-i, result.Remaining)
	}

	result, err := store.Allow(ctx, key, 10, time.Minute)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)
	assert.Positive(t, result.RetryAfter)
	assert.LessOrEqual(t, result.RetryAfter, 60)

	ttl := mr.TTL(key)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)

	mr.FastForward(time.Minute)
	result, err = store.Allow(ctx, key, 10, time.Minute)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 9, result.Remaining)
}

func TestRedisBucketStore_ExpiryNotExtended(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	_, err := store.Allow(ctx, "k", 3, time.Minute)
	require.NoError(t, err)
	mr.FastForward(40 * time.Second)
	_, err = store.Allow(ctx, "k", 3, time.Minute)
	require.NoError(t, err)

	assert.LessOrEqual(t, mr.TTL("k"), 20*time.Second)
}

func TestRedisBucketStore_Reset(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	_, err := store.Allow(ctx, "k", 1, time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.Reset(ctx, "k"))
	assert.False(t, mr.Exists("k"))
}

func TestRedisBucketStore_Unavailable(t *testing.T) {
	store, mr := newRedisStore(t)
	mr.Close()

	_, err := store.Allow(context.Background(), "k", 1, time.Minute)
	assert.Error(t, err)
}
