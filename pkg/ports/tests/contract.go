package tests

import (
	"context"
	"testing"

	"github.com/aretw0/aris/pkg/domain"
	"github.com/aretw0/aris/pkg/ports"
)

// StepContractTest is a reusable check that a ports.Step honours the state
// contract: history is only appended to and every tool result answers an
// earlier call. It returns the step's output for further assertions.
func StepContractTest(t *testing.T, step ports.Step, input *domain.State) *domain.State {
	t.Helper()

	if step.Name() == "" {
		t.Fatal("step has no name")
	}

	before := input.Clone()
	out, err := step.Execute(context.Background(), input.Clone())
	if err != nil {
		t.Fatalf("step %s failed: %v", step.Name(), err)
	}

	if err := domain.Extends(before, out); err != nil {
		t.Errorf("step %s broke the append-only contract: %v", step.Name(), err)
	}
	if err := domain.ValidateToolResults(out.Messages); err != nil {
		t.Errorf("step %s broke referential integrity: %v", step.Name(), err)
	}
	if len(out.Messages) < len(before.Messages) {
		t.Errorf("messages shrank: got %d, want at least %d", len(out.Messages), len(before.Messages))
	}
	return out
}
