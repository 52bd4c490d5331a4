package ports

import (
	"context"
	"errors"
	"time"
)

// ErrLockLost is returned once a held distributed lock has expired or been
// taken over by another holder.
var ErrLockLost = errors.New("distributed lock lost")

// Lease is a held distributed lock.
type Lease interface {
	// Refresh pushes the expiry to ttl from now. It fails with ErrLockLost
	// when the lease no longer owns the lock.
	Refresh(ctx context.Context, ttl time.Duration) error
	// Unlock releases the lock if the lease still owns it.
	Unlock(ctx context.Context) error
}

// DistributedLocker coordinates checkpoint writes across replicas.
type DistributedLocker interface {
	// Lock blocks until the lock for key (a task ID) is acquired or ctx is
	// done. The lock expires after ttl unless refreshed; the returned Lease
	// must be unlocked.
	Lock(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}
