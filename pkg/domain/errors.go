package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrContractViolation marks a broken state or message contract. It is never retried.
	ErrContractViolation = errors.New("contract violation")

	// ErrValidationExhausted is returned when the validate step failed more
	// often than the configured budget allows.
	ErrValidationExhausted = errors.New("validation retries exhausted")

	// ErrMaxStepsExceeded is returned when a run executes more steps than allowed.
	ErrMaxStepsExceeded = errors.New("max steps exceeded")

	// ErrToolNotFound is reported inside a ToolResultMessage when the registry has no such tool.
	ErrToolNotFound = errors.New("tool not found")

	// ErrCheckpointNotFound is returned by checkpoint stores for unknown task IDs.
	ErrCheckpointNotFound = errors.New("checkpoint not found")
)

// StepError is the only error a step surfaces to the engine. It is fatal for
// the run that raised it.
type StepError struct {
	Step  Label
	Cause error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s failed: %v", e.Step, e.Cause)
}

func (e *StepError) Unwrap() error {
	return e.Cause
}

// NewStepError wraps cause for the given step. A nil cause yields nil.
func NewStepError(step Label, cause error) error {
	if cause == nil {
		return nil
	}
	var se *StepError
	if errors.As(cause, &se) && se.Step == step {
		return cause
	}
	return &StepError{Step: step, Cause: cause}
}

// RouteError is returned by the router when it cannot pick a next step.
type RouteError struct {
	After  Label
	Reason string
	Err    error
}

func (e *RouteError) Error() string {
	after := string(e.After)
	if after == "" {
		after = "start"
	}
	return fmt.Sprintf("cannot route after %s: %s", after, e.Reason)
}

func (e *RouteError) Unwrap() error {
	return e.Err
}

// Violationf builds an error wrapping ErrContractViolation.
func Violationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrContractViolation, fmt.Sprintf(format, args...))
}
