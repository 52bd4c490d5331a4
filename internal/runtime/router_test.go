package runtime_test

import (
	"testing"

	"github.com/aretw0/aris/internal/runtime"
	"github.com/aretw0/aris/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func after(label domain.Label, s *domain.State) *domain.State {
	s.LastStep = label
	return s
}

func withCalls(s *domain.State, calls ...domain.ToolCall) *domain.State {
	s.SetGeneration(domain.AssistantMessage{ToolCalls: calls})
	return s
}

func TestRoute(t *testing.T) {
	research := func() *domain.State { return domain.NewState("t", "Q", domain.JobResearch) }
	query := func() *domain.State { return domain.NewState("t", "Q", domain.JobQuery) }
	plain := runtime.RouterConfig{MaxValidationRetries: 2}
	validating := runtime.RouterConfig{ValidateEnabled: true, MaxValidationRetries: 2}

	tests := []struct {
		name  string
		state *domain.State
		cfg   runtime.RouterConfig
		want  domain.Label
	}{
		{"research enters at search", research(), plain, domain.StepSearch},
		{"other jobs enter at generate", query(), plain, domain.StepGenerate},
		{"unknown job type enters at generate", domain.NewState("t", "Q", "summarize"), plain, domain.StepGenerate},
		{
			"search with unresolved sources goes to retrieve",
			func() *domain.State {
				s := after(domain.StepSearch, research())
				s.Documents = []domain.Document{{Content: "x"}, {Source: "https://a"}}
				return s
			}(),
			plain, domain.StepRetrieve,
		},
		{
			"search without sources skips retrieve",
			func() *domain.State {
				s := after(domain.StepSearch, research())
				s.Documents = []domain.Document{{Content: "inline"}}
				return s
			}(),
			plain, domain.StepGenerate,
		},
		{"retrieve goes to generate", after(domain.StepRetrieve, research()), plain, domain.StepGenerate},
		{
			"tool calls go to execute_tools",
			after(domain.StepGenerate, withCalls(query(), domain.ToolCall{ID: "t1", Name: "toolA"})),
			plain, domain.StepExecuteTools,
		},
		{
			"final answer ends without validate",
			func() *domain.State {
				s := after(domain.StepGenerate, query())
				s.SetGeneration(domain.AssistantMessage{Content: "A"})
				return s
			}(),
			plain, domain.LabelEnd,
		},
		{
			"final answer validates when configured",
			func() *domain.State {
				s := after(domain.StepGenerate, query())
				s.SetGeneration(domain.AssistantMessage{Content: "A"})
				return s
			}(),
			validating, domain.StepValidate,
		},
		{
			"tool result after generate loops back",
			func() *domain.State {
				s := withCalls(query(), domain.ToolCall{ID: "t1", Name: "toolA"})
				s.Append(domain.ToolResultMessage{CallID: "t1"})
				return after(domain.StepGenerate, s)
			}(),
			plain, domain.StepGenerate,
		},
		{"execute_tools goes to generate", after(domain.StepExecuteTools, query()), plain, domain.StepGenerate},
		{
			"passing verdict goes to synthesize",
			func() *domain.State {
				s := after(domain.StepValidate, query())
				s.Verdict = &domain.Verdict{Passed: true}
				return s
			}(),
			validating, domain.StepSynthesize,
		},
		{
			"failing verdict within budget regenerates",
			func() *domain.State {
				s := after(domain.StepValidate, query())
				s.Verdict = &domain.Verdict{Passed: false}
				s.ValidationFailures = 2
				return s
			}(),
			validating, domain.StepGenerate,
		},
		{"synthesize ends", after(domain.StepSynthesize, query()), validating, domain.LabelEnd},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := runtime.Route(tt.state, tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRoute_FailsClosed(t *testing.T) {
	cfg := runtime.RouterConfig{ValidateEnabled: true, MaxValidationRetries: 1}

	tests := []struct {
		name    string
		state   *domain.State
		wantErr error
	}{
		{
			"user message after generate",
			after(domain.StepGenerate, domain.NewState("t", "Q", domain.JobQuery)),
			domain.ErrContractViolation,
		},
		{
			"pointer variant is not a recognised message",
			func() *domain.State {
				s := after(domain.StepGenerate, domain.NewState("t", "Q", domain.JobQuery))
				s.Append(&domain.AssistantMessage{Content: "A"})
				return s
			}(),
			domain.ErrContractViolation,
		},
		{
			"empty history after generate",
			func() *domain.State {
				s := after(domain.StepGenerate, domain.NewState("t", "Q", domain.JobQuery))
				s.Messages = nil
				return s
			}(),
			domain.ErrContractViolation,
		},
		{
			"validate without verdict",
			after(domain.StepValidate, domain.NewState("t", "Q", domain.JobQuery)),
			domain.ErrContractViolation,
		},
		{
			"unknown last step",
			after("plan", domain.NewState("t", "Q", domain.JobQuery)),
			domain.ErrContractViolation,
		},
		{
			"validation budget exhausted",
			func() *domain.State {
				s := after(domain.StepValidate, domain.NewState("t", "Q", domain.JobQuery))
				s.Verdict = &domain.Verdict{Passed: false}
				s.ValidationFailures = 2
				return s
			}(),
			domain.ErrValidationExhausted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := runtime.Route(tt.state, cfg)
			assert.Equal(t, domain.LabelFailed, got)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRoute_MaxStepsGuard(t *testing.T) {
	s := after(domain.StepExecuteTools, domain.NewState("t", "Q", domain.JobQuery))
	s.Steps = 10

	got, err := runtime.Route(s, runtime.RouterConfig{MaxSteps: 10})
	assert.Equal(t, domain.LabelFailed, got)
	assert.ErrorIs(t, err, domain.ErrMaxStepsExceeded)

	// terminal decisions are never blocked by the guard
	s.LastStep = domain.StepSynthesize
	got, err = runtime.Route(s, runtime.RouterConfig{MaxSteps: 10})
	require.NoError(t, err)
	assert.Equal(t, domain.LabelEnd, got)
}

func TestRoute_IsDeterministic(t *testing.T) {
	s := withCalls(domain.NewState("t", "Q", domain.JobQuery), domain.ToolCall{ID: "t1", Name: "toolA"})
	s.LastStep = domain.StepGenerate
	snapshot := s.Clone()
	cfg := runtime.RouterConfig{ValidateEnabled: true, MaxValidationRetries: 2}

	first, err := runtime.Route(s, cfg)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		got, err := runtime.Route(s.Clone(), cfg)
		require.NoError(t, err)
		assert.Equal(t, first, got)
	}
	assert.Equal(t, snapshot, s, "Route must not mutate the state")
}
