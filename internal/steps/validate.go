package steps

import (
	"context"

	"github.com/aretw0/aris/pkg/domain"
	"github.com/aretw0/aris/pkg/ports"
	"github.com/aretw0/aris/pkg/retry"
)

// Validate critiques the latest generation. It records a verdict for the
// router and never touches the history.
type Validate struct {
	validator ports.Validator
	opts      options
}

// NewValidate creates the validate step.
func NewValidate(validator ports.Validator, opts ...Option) *Validate {
	return &Validate{validator: validator, opts: buildOptions(domain.StepValidate, opts)}
}

func (v *Validate) Name() domain.Label { return domain.StepValidate }

func (v *Validate) Execute(ctx context.Context, state *domain.State) (*domain.State, error) {
	if state.Generation == nil {
		return nil, domain.NewStepError(domain.StepValidate, domain.Violationf("nothing to validate"))
	}

	verdict, err := retry.Do(ctx, v.opts.policy, func(ctx context.Context) (domain.Verdict, error) {
		return v.validator.Validate(ctx, state)
	})
	if err != nil {
		return nil, domain.NewStepError(domain.StepValidate, err)
	}

	state.Verdict = &verdict
	if !verdict.Passed {
		state.ValidationFailures++
		v.opts.logger.InfoContext(ctx, "Generation rejected",
			"score", verdict.Score,
			"failures", state.ValidationFailures,
		)
	}
	return state, nil
}
