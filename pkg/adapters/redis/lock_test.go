package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/weft/pkg/adapters/redis"
)

func TestLocker_Exclusive(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "weft:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "workflow", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, mr.Exists("weft:lock:workflow"))

	busy, cancel := context.WithTimeout(ctx, 150*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(busy, "workflow", 10*time.Second)
	assert.ErrorIs(t, err, redis.ErrLockAcquire)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("weft:lock:workflow"))

	unlock, err = locker.Lock(ctx, "workflow", 10*time.Second)
	require.NoError(t, err)
	require.NoError(t, unlock(ctx))
}

func TestLocker_StaleUnlockKeepsNewOwner(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "weft:")
	ctx := context.Background()

	unlockOld, err := locker.Lock(ctx, "workflow", time.Second)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	unlockNew, err := locker.Lock(ctx, "workflow", 10*time.Second)
	require.NoError(t, err)

	require.NoError(t, unlockOld(ctx))
	assert.True(t, mr.Exists("weft:lock:workflow"), "expired owner must not release the new lock")
	require.NoError(t, unlockNew(ctx))
}
