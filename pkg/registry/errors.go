package registry

import (
	"errors"
	"fmt"
	"strings"
)

// ArgError represents a single argument validation failure.
type ArgError struct {
	Key    string
	Reason string
	Value  any
}

func (e *ArgError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("argument %q: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("argument %q: %s (got %T)", e.Key, e.Reason, e.Value)
}

// ArgsError aggregates every failure found in one argument set.
type ArgsError struct {
	Errors []error
}

func (e *ArgsError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	parts := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		parts[i] = err.Error()
	}
	return fmt.Sprintf("%d invalid arguments: %s", len(e.Errors), strings.Join(parts, "; "))
}

func (e *ArgsError) Unwrap() []error {
	return e.Errors
}

// IsArgsError reports whether err was caused by invalid tool arguments.
func IsArgsError(err error) bool {
	var ae *ArgsError
	return errors.As(err, &ae)
}
