package runtime

import (
	"fmt"

	"github.com/aretw0/aris/pkg/domain"
)

// RouterConfig holds the knobs the router reads besides the state.
type RouterConfig struct {
	// ValidateEnabled routes finished generations through the validate step.
	ValidateEnabled bool
	// MaxValidationRetries is how many failed verdicts send the run back to
	// generate before it fails.
	MaxValidationRetries int
	// MaxSteps bounds the number of executed steps. Zero disables the guard.
	MaxSteps int
}

// Route picks the label of the next step from the state alone. It is a pure
// function: the same state and config always yield the same label.
//
// A non-nil error always comes with LabelFailed.
func Route(s *domain.State, cfg RouterConfig) (domain.Label, error) {
	label, err := route(s, cfg)
	if err != nil {
		return domain.LabelFailed, err
	}
	if !label.IsTerminal() && cfg.MaxSteps > 0 && s.Steps >= cfg.MaxSteps {
		return domain.LabelFailed, fmt.Errorf("%w: %d steps executed, next would be %s", domain.ErrMaxStepsExceeded, s.Steps, label)
	}
	return label, nil
}

func route(s *domain.State, cfg RouterConfig) (domain.Label, error) {
	if s == nil {
		return "", &domain.RouteError{Reason: "no state", Err: domain.ErrContractViolation}
	}

	switch s.LastStep {
	case "":
		if s.JobType.SelectsSearch() {
			return domain.StepSearch, nil
		}
		return domain.StepGenerate, nil

	case domain.StepSearch:
		for _, d := range s.Documents {
			if d.NeedsFetch() {
				return domain.StepRetrieve, nil
			}
		}
		return domain.StepGenerate, nil

	case domain.StepRetrieve, domain.StepExecuteTools:
		return domain.StepGenerate, nil

	case domain.StepGenerate:
		return afterGenerate(s, cfg)

	case domain.StepValidate:
		return afterValidate(s, cfg)

	case domain.StepSynthesize:
		return domain.LabelEnd, nil

	default:
		return "", &domain.RouteError{
			After:  s.LastStep,
			Reason: "unknown step",
			Err:    domain.ErrContractViolation,
		}
	}
}

func afterGenerate(s *domain.State, cfg RouterConfig) (domain.Label, error) {
	switch last := s.Messages.Last().(type) {
	case domain.AssistantMessage:
		if last.HasToolCalls() {
			return domain.StepExecuteTools, nil
		}
		if cfg.ValidateEnabled {
			return domain.StepValidate, nil
		}
		return domain.LabelEnd, nil
	case domain.ToolResultMessage:
		return domain.StepGenerate, nil
	default:
		return "", &domain.RouteError{
			After:  domain.StepGenerate,
			Reason: fmt.Sprintf("last message is %T", last),
			Err:    domain.ErrContractViolation,
		}
	}
}

func afterValidate(s *domain.State, cfg RouterConfig) (domain.Label, error) {
	if s.Verdict == nil {
		return "", &domain.RouteError{
			After:  domain.StepValidate,
			Reason: "no verdict recorded",
			Err:    domain.ErrContractViolation,
		}
	}
	if s.Verdict.Passed {
		return domain.StepSynthesize, nil
	}
	if s.ValidationFailures <= cfg.MaxValidationRetries {
		return domain.StepGenerate, nil
	}
	return "", &domain.RouteError{
		After:  domain.StepValidate,
		Reason: fmt.Sprintf("%d failed verdicts", s.ValidationFailures),
		Err:    domain.ErrValidationExhausted,
	}
}
