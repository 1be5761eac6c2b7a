package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T, threshold int, duration time.Duration) (*RedisLockoutStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisLockoutStore(client, threshold, duration), mr
}

func TestRedisLockoutStore_LocksAtThreshold(t *testing.T) {
	store, _ := newRedisStore(t, 3, time.Minute)
	ctx := context.Background()
	key := "ada@example.com"

	for i := 0; i < 2; i++ {
		locked, err := store.RecordFailure(ctx, key)
		require.NoError(t, err)
		assert.False(t, locked, "failure %d should not lock", i+1)
	}

	locked, err := store.RecordFailure(ctx, key)
	require.NoError(t, err)
	assert.True(t, locked)
	assert.True(t, isLocked(t, store, key))

	remaining, err := store.RemainingLockoutTime(ctx, key)
	require.NoError(t, err)
	assert.Greater(t, remaining, time.Duration(0))
	assert.LessOrEqual(t, remaining, time.Minute)
}

func TestRedisLockoutStore_Expires(t *testing.T) {
	store, mr := newRedisStore(t, 1, time.Minute)
	ctx := context.Background()

	fail(t, store, "k")
	require.True(t, isLocked(t, store, "k"))

	mr.FastForward(61 * time.Second)

	assert.False(t, isLocked(t, store, "k"))
	remaining, err := store.RemainingLockoutTime(ctx, "k")
	require.NoError(t, err)
	assert.Zero(t, remaining)
}

func TestRedisLockoutStore_ClearAndIsolation(t *testing.T) {
	store, mr := newRedisStore(t, 2, time.Hour)
	ctx := context.Background()

	fail(t, store, "a")
	fail(t, store, "a")
	fail(t, store, "b")

	assert.True(t, isLocked(t, store, "a"))
	assert.False(t, isLocked(t, store, "b"))

	require.NoError(t, store.ClearFailures(ctx, "a"))
	assert.False(t, isLocked(t, store, "a"))
	assert.False(t, mr.Exists(lockKey("a")))
	assert.False(t, mr.Exists(failKey("a")))
}

func TestRedisLockoutStore_Unavailable(t *testing.T) {
	store, mr := newRedisStore(t, 2, time.Hour)
	mr.Close()

	_, err := store.RecordFailure(context.Background(), "a")
	assert.Error(t, err)
}
