package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/aris/internal/logging"
	"github.com/aretw0/aris/pkg/domain"
	"github.com/aretw0/aris/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed lock survives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates checkpoint access, ensuring safe concurrent operations.
// It uses reference counting to garbage collect unused locks.
type Manager struct {
	store ports.CheckpointStore

	mu    sync.Mutex
	locks map[string]*lockEntry

	locker  ports.DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL overrides DefaultLockTTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a Manager on top of the given store.
func NewManager(store ports.CheckpointStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var _ ports.CheckpointStore = (*Manager)(nil)

// acquire gets or creates a lock entry and increments its reference count.
// The caller must lock entry.mu and call release(taskID) after unlocking.
func (m *Manager) acquire(taskID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[taskID]
	if !exists {
		entry = &lockEntry{}
		m.locks[taskID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(taskID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[taskID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, taskID)
	}
}

// Load retrieves a checkpoint from the store.
func (m *Manager) Load(ctx context.Context, taskID string) (*domain.State, error) {
	var state *domain.State
	err := m.WithLock(ctx, taskID, func(ctx context.Context) error {
		var err error
		state, err = m.store.Load(ctx, taskID)
		return err
	})
	return state, err
}

// Save persists the state.
func (m *Manager) Save(ctx context.Context, taskID string, state *domain.State) error {
	return m.WithLock(ctx, taskID, func(ctx context.Context) error {
		return m.store.Save(ctx, taskID, state)
	})
}

// Delete removes the checkpoint from the store.
func (m *Manager) Delete(ctx context.Context, taskID string) error {
	return m.WithLock(ctx, taskID, func(ctx context.Context) error {
		return m.store.Delete(ctx, taskID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying checkpoint store.
func (m *Manager) Store() ports.CheckpointStore {
	return m.store
}

type heldKey struct {
	m      *Manager
	taskID string
}

// held marks a context running under WithLock.
type held struct {
	lost atomic.Bool
}

// WithLock executes fn while holding the lock for the task. The lock is
// re-entrant through the context handed to fn, so a run executing under
// WithLock can still Load and Save its own checkpoint.
//
// A distributed lock is refreshed every third of its TTL while fn runs. If a
// refresh fails, fn's context is cancelled, later nested calls fail with
// ports.ErrLockLost, and so does WithLock.
func (m *Manager) WithLock(ctx context.Context, taskID string, fn func(context.Context) error) error {
	key := heldKey{m: m, taskID: taskID}
	if h, ok := ctx.Value(key).(*held); ok {
		if h.lost.Load() {
			return ports.ErrLockLost
		}
		return fn(ctx)
	}

	entry := m.acquire(taskID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(taskID)
	}()

	h := &held{}
	if m.locker == nil {
		return fn(context.WithValue(ctx, key, h))
	}

	lease, err := m.locker.Lock(ctx, taskID, m.lockTTL)
	if err != nil {
		return fmt.Errorf("failed to acquire distributed lock: %w", err)
	}
	defer func() {
		if err := lease.Unlock(context.WithoutCancel(ctx)); err != nil {
			m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
				"task_id", taskID,
				"error", err,
			)
		}
	}()

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	stop := m.keepAlive(runCtx, cancel, taskID, lease, h)
	err = fn(context.WithValue(runCtx, key, h))
	stop()

	if h.lost.Load() {
		return errors.Join(err, ports.ErrLockLost)
	}
	return err
}

// keepAlive refreshes lease until stop is called or a refresh fails.
func (m *Manager) keepAlive(ctx context.Context, cancel context.CancelCauseFunc, taskID string, lease ports.Lease, h *held) (stop func()) {
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		ticker := time.NewTicker(m.lockTTL / 3)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if err := lease.Refresh(ctx, m.lockTTL); err != nil {
				if ctx.Err() != nil {
					return
				}
				h.lost.Store(true)
				m.logger.Error("Distributed lock lost, stopping run", "task_id", taskID, "error", err)
				cancel(ports.ErrLockLost)
				return
			}
		}
	}()
	return func() {
		close(done)
		<-exited
	}
}
