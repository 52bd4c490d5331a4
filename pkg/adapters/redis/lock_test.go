package redis_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/aris/pkg/adapters/memory"
	"github.com/aretw0/aris/pkg/adapters/redis"
	"github.com/aretw0/aris/pkg/checkpoint"
	"github.com/aretw0/aris/pkg/domain"
	"github.com/aretw0/aris/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLocker_LockUnlock(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	lease, err := locker.Lock(ctx, "resource1", 5*time.Second)
	require.NoError(t, err)
	require.NotNil(t, lease)
	assert.True(t, mr.Exists("test:lock:resource1"), "Lock key should be set in Redis")

	require.NoError(t, lease.Unlock(ctx))
	assert.False(t, mr.Exists("test:lock:resource1"), "Lock key should be removed after unlock")
}

func TestRedisLocker_Contention(t *testing.T) {
	mr, client := newClient(t)
	locker1 := redis.NewLocker(client, "test:")
	locker2 := redis.NewLocker(client, "test:")
	ctx := context.Background()
	key := "shared-resource"

	lease1, err := locker1.Lock(ctx, key, 5*time.Second)
	require.NoError(t, err)

	ctxTimeout, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = locker2.Lock(ctxTimeout, key, 5*time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.WithinDuration(t, start.Add(500*time.Millisecond), time.Now(), 150*time.Millisecond, "Should block until timeout")

	require.NoError(t, lease1.Unlock(ctx))

	lease2, err := locker2.Lock(ctx, key, 5*time.Second)
	require.NoError(t, err)
	defer lease2.Unlock(ctx)

	assert.True(t, mr.Exists("test:lock:shared-resource"))
}

func TestRedisLocker_StaleUnlockKeepsNewOwner(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	leaseOld, err := locker.Lock(ctx, "k", time.Second)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	leaseNew, err := locker.Lock(ctx, "k", 5*time.Second)
	require.NoError(t, err)

	require.NoError(t, leaseOld.Unlock(ctx))
	assert.True(t, mr.Exists("test:lock:k"), "expired holder must not release the new lock")

	require.NoError(t, leaseNew.Unlock(ctx))
	assert.False(t, mr.Exists("test:lock:k"))
}

func TestRedisLocker_WithCheckpointManager(t *testing.T) {
	mr, client := newClient(t)
	manager := checkpoint.NewManager(memory.NewStore(),
		checkpoint.WithLocker(redis.NewLocker(client, "aris:")),
	)
	ctx := context.Background()

	require.NoError(t, manager.Save(ctx, "t1", domain.NewState("t1", "q", domain.JobQuery)))
	assert.False(t, mr.Exists("aris:lock:t1"), "lock is released after save")

	state, err := manager.Load(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "q", state.Query)
}

func TestRedisLocker_Refresh(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	lease, err := locker.Lock(ctx, "k", time.Second)
	require.NoError(t, err)
	mr.FastForward(800 * time.Millisecond)
	require.NoError(t, lease.Refresh(ctx, time.Second))
	mr.FastForward(800 * time.Millisecond)
	assert.True(t, mr.Exists("test:lock:k"), "refresh restarts the TTL")

	mr.FastForward(time.Second)
	assert.ErrorIs(t, lease.Refresh(ctx, time.Second), ports.ErrLockLost)

	other, err := locker.Lock(ctx, "k", time.Second)
	require.NoError(t, err)
	assert.ErrorIs(t, lease.Refresh(ctx, time.Second), ports.ErrLockLost, "a stale lease cannot extend the new owner's lock")
	require.NoError(t, other.Unlock(ctx))
}

func TestRedisLocker_ManagerKeepsLockPastTTL(t *testing.T) {
	mr, client := newClient(t)
	ttl := 600 * time.Millisecond
	manager := checkpoint.NewManager(memory.NewStore(),
		checkpoint.WithLocker(redis.NewLocker(client, "aris:")),
		checkpoint.WithLockTTL(ttl),
	)

	err := manager.WithLock(context.Background(), "t1", func(ctx context.Context) error {
		for range 4 {
			time.Sleep(ttl / 2)
			mr.FastForward(ttl / 2)
		}
		if !mr.Exists("aris:lock:t1") {
			return errors.New("lock expired while held")
		}
		return ctx.Err()
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists("aris:lock:t1"))
}
