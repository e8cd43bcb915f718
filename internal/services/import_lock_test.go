package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisImportLockSingleHolder(t *testing.T) {
	mr, client := newTestRedis(t)
	lock := NewRedisImportLock(client, time.Minute, testLogger())

	release, err := lock.TryAcquire(context.Background())
	require.NoError(t, err)
	assert.True(t, mr.Exists(importLockKey))
	assert.Equal(t, time.Minute, mr.TTL(importLockKey))

	// A second replica sharing the key is turned away
	other := NewRedisImportLock(client, time.Minute, testLogger())
	_, err = other.TryAcquire(context.Background())
	assert.ErrorIs(t, err, ErrImportInProgress)

	release()
	release()
	assert.False(t, mr.Exists(importLockKey))

	again, err := other.TryAcquire(context.Background())
	require.NoError(t, err)
	again()
}

func TestRedisImportLockRenewsWhileHeld(t *testing.T) {
	mr, client := newTestRedis(t)
	ttl := 300 * time.Millisecond
	lock := NewRedisImportLock(client, ttl, testLogger())

	release, err := lock.TryAcquire(context.Background())
	require.NoError(t, err)

	// Most of the ttl passes with the job still running
	mr.FastForward(250 * time.Millisecond)

	assert.Eventually(t, func() bool {
		return mr.TTL(importLockKey) > 200*time.Millisecond
	}, 2*time.Second, 10*time.Millisecond)

	// Past the original expiry the key is still held
	mr.FastForward(250 * time.Millisecond)
	assert.True(t, mr.Exists(importLockKey))

	release()
	assert.False(t, mr.Exists(importLockKey))
}

func TestRedisImportLockReleaseKeepsForeignKey(t *testing.T) {
	mr, client := newTestRedis(t)
	lock := NewRedisImportLock(client, time.Minute, testLogger())

	release, err := lock.TryAcquire(context.Background())
	require.NoError(t, err)

	// The key expired and another replica took it
	require.NoError(t, mr.Set(importLockKey, "other-replica"))
	release()

	value, err := mr.Get(importLockKey)
	require.NoError(t, err)
	assert.Equal(t, "other-replica", value)
}

func TestRedisImportLockFallsBackWhenRedisDown(t *testing.T) {
	mr, client := newTestRedis(t)
	mr.Close()
	lock := NewRedisImportLock(client, time.Minute, testLogger())

	release, err := lock.TryAcquire(context.Background())
	require.NoError(t, err)

	_, err = lock.TryAcquire(context.Background())
	assert.ErrorIs(t, err, ErrImportInProgress)

	release()
	again, err := lock.TryAcquire(context.Background())
	require.NoError(t, err)
	again()
}

func TestNewRedisImportLockDefaultTTL(t *testing.T) {
	_, client := newTestRedis(t)
	lock := NewRedisImportLock(client, 0, nil)
	assert.Equal(t, 30*time.Minute, lock.ttl)
}
