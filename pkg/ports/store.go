package ports

import (
	"context"

	"github.com/aretw0/aris/pkg/domain"
)

// CheckpointStore persists the state of in-flight runs so they can be
// inspected or resumed after a crash. The core never requires one.
type CheckpointStore interface {
	// Save persists the state for a given task ID.
	Save(ctx context.Context, taskID string, state *domain.State) error

	// Load retrieves the state for a given task ID.
	// Returns domain.ErrCheckpointNotFound if nothing was saved.
	Load(ctx context.Context, taskID string) (*domain.State, error)

	// Delete removes the checkpoint for a given task ID.
	Delete(ctx context.Context, taskID string) error

	// List returns the IDs of all stored checkpoints.
	List(ctx context.Context) ([]string, error)
}
