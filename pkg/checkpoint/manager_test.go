package checkpoint_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/aris/pkg/adapters/memory"
	"github.com/aretw0/aris/pkg/checkpoint"
	"github.com/aretw0/aris/pkg/domain"
	"github.com/aretw0/aris/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SlowStore simulates latency and detects overlapping writes for one task.
type SlowStore struct {
	mu       sync.Mutex
	data     map[string]*domain.State
	inflight int32
	overlaps int32
}

func (s *SlowStore) Save(ctx context.Context, taskID string, state *domain.State) error {
	if atomic.AddInt32(&s.inflight, 1) > 1 {
		atomic.AddInt32(&s.overlaps, 1)
	}
	defer atomic.AddInt32(&s.inflight, -1)

	time.Sleep(5 * time.Millisecond) // Simulate IO
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		s.data = make(map[string]*domain.State)
	}
	s.data[taskID] = state.Clone()
	return nil
}

func (s *SlowStore) Load(ctx context.Context, taskID string) (*domain.State, error) {
	time.Sleep(5 * time.Millisecond) // Simulate IO
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.data[taskID]; ok {
		return state.Clone(), nil
	}
	return nil, domain.ErrCheckpointNotFound
}

func (s *SlowStore) Delete(ctx context.Context, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, taskID)
	return nil
}

func (s *SlowStore) List(ctx context.Context) ([]string, error) {
	return nil, nil
}

func TestManager_Contract(t *testing.T) {
	ports.RunCheckpointStoreContract(t, checkpoint.NewManager(memory.NewStore()))
}

func TestManager_Locking(t *testing.T) {
	store := &SlowStore{}
	manager := checkpoint.NewManager(store)
	ctx := context.Background()
	id := "race-test"

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := manager.Save(ctx, id, domain.NewState(id, "updated", domain.JobQuery))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Zero(t, atomic.LoadInt32(&store.overlaps), "saves for one task must be serialized")
}

type fakeLocker struct {
	mu       sync.Mutex
	keys     []string
	ttls     []time.Duration
	unlocked   int
	refreshed  int
	lockErr    error
	refreshErr error
	unlockFn   func() error
}

func (l *fakeLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lockErr != nil {
		return nil, l.lockErr
	}
	l.keys = append(l.keys, key)
	l.ttls = append(l.ttls, ttl)
	return fakeLease{l}, nil
}

type fakeLease struct{ l *fakeLocker }

func (f fakeLease) Refresh(ctx context.Context, ttl time.Duration) error {
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	f.l.refreshed++
	return f.l.refreshErr
}

func (f fakeLease) Unlock(ctx context.Context) error {
	f.l.mu.Lock()
	f.l.unlocked++
	f.l.mu.Unlock()
	if f.l.unlockFn != nil {
		return f.l.unlockFn()
	}
	return nil
}

func TestManager_RefreshesLockDuringLongWork(t *testing.T) {
	locker := &fakeLocker{}
	manager := checkpoint.NewManager(memory.NewStore(),
		checkpoint.WithLocker(locker),
		checkpoint.WithLockTTL(30*time.Millisecond),
	)

	err := manager.WithLock(context.Background(), "t1", func(ctx context.Context) error {
		time.Sleep(100 * time.Millisecond)
		return nil
	})
	require.NoError(t, err)

	locker.mu.Lock()
	defer locker.mu.Unlock()
	assert.GreaterOrEqual(t, locker.refreshed, 2)
	assert.Equal(t, 1, locker.unlocked)
}

func TestManager_LostLockStopsWork(t *testing.T) {
	locker := &fakeLocker{refreshErr: ports.ErrLockLost}
	manager := checkpoint.NewManager(memory.NewStore(),
		checkpoint.WithLocker(locker),
		checkpoint.WithLockTTL(30*time.Millisecond),
	)

	var saveErr error
	err := manager.WithLock(context.Background(), "t1", func(ctx context.Context) error {
		select {
		case <-ctx.Done():
		case <-time.After(2 * time.Second):
			return errors.New("work was not cancelled")
		}
		saveErr = manager.Save(context.WithoutCancel(ctx), "t1", domain.NewState("t1", "q", domain.JobQuery))
		return ctx.Err()
	})
	assert.ErrorIs(t, err, ports.ErrLockLost)
	assert.ErrorIs(t, saveErr, ports.ErrLockLost, "a stale holder must not write")

	_, err = manager.Load(context.Background(), "t1")
	assert.ErrorIs(t, err, domain.ErrCheckpointNotFound)
}

func TestManager_DistributedLocker(t *testing.T) {
	locker := &fakeLocker{}
	manager := checkpoint.NewManager(memory.NewStore(),
		checkpoint.WithLocker(locker),
		checkpoint.WithLockTTL(5*time.Second),
	)
	ctx := context.Background()

	require.NoError(t, manager.Save(ctx, "t1", domain.NewState("t1", "q", domain.JobQuery)))
	_, err := manager.Load(ctx, "t1")
	require.NoError(t, err)

	assert.Equal(t, []string{"t1", "t1"}, locker.keys)
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, locker.ttls)
	assert.Equal(t, 2, locker.unlocked)
}

func TestManager_DistributedLockFailure(t *testing.T) {
	locker := &fakeLocker{lockErr: errors.New("redis down")}
	manager := checkpoint.NewManager(memory.NewStore(), checkpoint.WithLocker(locker))

	err := manager.Save(context.Background(), "t1", domain.NewState("t1", "q", domain.JobQuery))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to acquire distributed lock")
	assert.Contains(t, err.Error(), "redis down")
}

func TestManager_UnlockFailureIsNotFatal(t *testing.T) {
	locker := &fakeLocker{unlockFn: func() error { return errors.New("expired") }}
	manager := checkpoint.NewManager(memory.NewStore(), checkpoint.WithLocker(locker))

	err := manager.Save(context.Background(), "t1", domain.NewState("t1", "q", domain.JobQuery))
	assert.NoError(t, err)
	assert.Equal(t, 1, locker.unlocked)
}

func TestManager_WithLockIsReentrant(t *testing.T) {
	locker := &fakeLocker{}
	manager := checkpoint.NewManager(memory.NewStore(), checkpoint.WithLocker(locker))
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		done <- manager.WithLock(ctx, "t1", func(ctx context.Context) error {
			if err := manager.Save(ctx, "t1", domain.NewState("t1", "q", domain.JobQuery)); err != nil {
				return err
			}
			_, err := manager.Load(ctx, "t1")
			return err
		})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("nested WithLock deadlocked")
	}
	assert.Equal(t, []string{"t1"}, locker.keys, "the distributed lock is taken once")

	// Other tasks are not covered by the held lock.
	require.NoError(t, manager.WithLock(ctx, "t1", func(ctx context.Context) error {
		return manager.Save(ctx, "t2", domain.NewState("t2", "q", domain.JobQuery))
	}))
	assert.Equal(t, []string{"t1", "t1", "t2"}, locker.keys)
}
