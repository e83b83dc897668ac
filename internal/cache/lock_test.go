package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisLock(t *testing.T) (*RedisLock, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLockFromClient(client), mr
}

func TestRedisLock_TryLockUnlock(t *testing.T) {
	l, mr := newTestRedisLock(t)
	ctx := context.Background()
	require.NoError(t, l.Ping(ctx))

	token, ok, err := l.TryLock(ctx, "invoice-post:t1:inv1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEmpty(t, token)
	got, err := mr.Get("stock-recon:invoice-post:t1:inv1")
	require.NoError(t, err)
	assert.Equal(t, token, got)

	_, ok, err = l.TryLock(ctx, "invoice-post:t1:inv1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// другой ключ не мешает
	_, ok, err = l.TryLock(ctx, "invoice-post:t1:inv2", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.ErrorIs(t, l.Unlock(ctx, "invoice-post:t1:inv1", "someone-else"), ErrLockNotHeld)
	assert.True(t, mr.Exists("stock-recon:invoice-post:t1:inv1"))

	require.NoError(t, l.Unlock(ctx, "invoice-post:t1:inv1", token))
	_, ok, err = l.TryLock(ctx, "invoice-post:t1:inv1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLock_Expires(t *testing.T) {
	l, mr := newTestRedisLock(t)
	ctx := context.Background()

	_, ok, err := l.TryLock(ctx, "k", 30*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(31 * time.Second)
	_, ok, err = l.TryLock(ctx, "k", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

// Просроченный владелец не снимает чужую блокировку.
func TestRedisLock_ExpiredOwnerCannotReleaseSuccessor(t *testing.T) {
	l, mr := newTestRedisLock(t)
	ctx := context.Background()

	first, ok, err := l.TryLock(ctx, "invoice-post:t1:inv1", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)
	second, ok, err := l.TryLock(ctx, "invoice-post:t1:inv1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	assert.ErrorIs(t, l.Unlock(ctx, "invoice-post:t1:inv1", first), ErrLockNotHeld)

	_, ok, err = l.TryLock(ctx, "invoice-post:t1:inv1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "successor still holds the lock")

	require.NoError(t, l.Unlock(ctx, "invoice-post:t1:inv1", second))
	assert.False(t, mr.Exists("stock-recon:invoice-post:t1:inv1"))
}

func TestRedisLock_PingFails(t *testing.T) {
	l, mr := newTestRedisLock(t)
	mr.Close()
	assert.Error(t, l.Ping(context.Background()))
}

func TestLocalLock(t *testing.T) {
	l := NewLocalLock()
	ctx := context.Background()

	token, ok, err := l.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, _ = l.TryLock(ctx, "k", time.Minute)
	assert.False(t, ok)

	assert.ErrorIs(t, l.Unlock(ctx, "k", "other"), ErrLockNotHeld)
	require.NoError(t, l.Unlock(ctx, "k", token))
	_, ok, _ = l.TryLock(ctx, "k", time.Minute)
	assert.True(t, ok)
}

func TestLocalLock_ExpiredOwnerCannotReleaseSuccessor(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	l := NewLocalLock()
	l.now = func() time.Time { return now }
	ctx := context.Background()

	first, ok, _ := l.TryLock(ctx, "k", time.Second)
	require.True(t, ok)

	now = now.Add(2 * time.Second)
	second, ok, _ := l.TryLock(ctx, "k", time.Minute)
	require.True(t, ok)

	assert.ErrorIs(t, l.Unlock(ctx, "k", first), ErrLockNotHeld)
	_, ok, _ = l.TryLock(ctx, "k", time.Minute)
	assert.False(t, ok)

	require.NoError(t, l.Unlock(ctx, "k", second))
}
