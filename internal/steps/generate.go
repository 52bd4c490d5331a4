package steps

import (
	"context"

	"github.com/aretw0/aris/pkg/domain"
	"github.com/aretw0/aris/pkg/ports"
	"github.com/aretw0/aris/pkg/retry"
	"github.com/google/uuid"
)

// ToolCatalog lists the tools offered to the generator.
type ToolCatalog interface {
	Definitions() []domain.ToolDefinition
}

// Generate asks the language model for the next assistant turn.
type Generate struct {
	generator ports.Generator
	tools     ToolCatalog
	purpose   ports.Purpose
	label     domain.Label
	opts      options
}

// NewGenerate creates the generate step. tools may be nil when no tools are offered.
func NewGenerate(generator ports.Generator, tools ToolCatalog, opts ...Option) *Generate {
	return &Generate{
		generator: generator,
		tools:     tools,
		purpose:   ports.PurposeGenerate,
		label:     domain.StepGenerate,
		opts:      buildOptions(domain.StepGenerate, opts),
	}
}

// NewSynthesize creates the synthesize step: a generation without tools whose
// output is the final answer.
func NewSynthesize(generator ports.Generator, opts ...Option) *Generate {
	return &Generate{
		generator: generator,
		purpose:   ports.PurposeSynthesize,
		label:     domain.StepSynthesize,
		opts:      buildOptions(domain.StepSynthesize, opts),
	}
}

func (g *Generate) Name() domain.Label { return g.label }

// Execute builds the request from the query, documents and full history,
// calls the generator through the retry wrapper, then appends the returned
// message and records it as the generation.
func (g *Generate) Execute(ctx context.Context, state *domain.State) (*domain.State, error) {
	req := ports.GenerateRequest{
		Purpose:   g.purpose,
		Query:     state.Query,
		Documents: state.Documents,
		Messages:  state.Messages,
	}
	if g.tools != nil {
		req.Tools = g.tools.Definitions()
	}
	if v := state.Verdict; v != nil && !v.Passed {
		req.Critique = v.Critique
	}

	msg, err := retry.Do(ctx, g.opts.policy, func(ctx context.Context) (domain.AssistantMessage, error) {
		return g.generator.Generate(ctx, req)
	})
	if err != nil {
		return nil, domain.NewStepError(g.label, err)
	}
	msg = msg.Clone()

	if g.purpose == ports.PurposeSynthesize && msg.HasToolCalls() {
		g.opts.logger.WarnContext(ctx, "Dropping tool calls from synthesis", "count", len(msg.ToolCalls))
		msg.ToolCalls = nil
	}
	if err := assignCallIDs(state.Messages, &msg); err != nil {
		return nil, domain.NewStepError(g.label, err)
	}

	state.SetGeneration(msg)
	g.opts.logger.DebugContext(ctx, "Generation appended", "tool_calls", len(msg.ToolCalls))
	return state, nil
}

// assignCallIDs gives every call without an ID a fresh one and rejects IDs
// that collide with each other or with calls already in the history.
func assignCallIDs(history domain.Messages, msg *domain.AssistantMessage) error {
	if !msg.HasToolCalls() {
		return nil
	}
	used := make(map[string]bool)
	for _, m := range history {
		if a, ok := m.(domain.AssistantMessage); ok {
			for _, c := range a.ToolCalls {
				used[c.ID] = true
			}
		}
	}
	for i := range msg.ToolCalls {
		call := &msg.ToolCalls[i]
		if call.ID == "" {
			call.ID = "call_" + uuid.NewString()
		}
		if used[call.ID] {
			return domain.Violationf("duplicate tool call id %q", call.ID)
		}
		if call.Name == "" {
			return domain.Violationf("tool call %q has no name", call.ID)
		}
		used[call.ID] = true
	}
	return nil
}
