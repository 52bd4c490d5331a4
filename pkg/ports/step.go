package ports

import (
	"context"

	"github.com/aretw0/aris/pkg/domain"
)

// Step is a unit of work the engine runs between two routing decisions.
//
// Execute receives a state the step may modify freely (the engine hands it a
// private copy) and returns the updated state. Any error is fatal for the run;
// implementations wrap it in a *domain.StepError.
type Step interface {
	Name() domain.Label
	Execute(ctx context.Context, state *domain.State) (*domain.State, error)
}
