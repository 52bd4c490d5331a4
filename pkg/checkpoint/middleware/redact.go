package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/aris/pkg/domain"
	"github.com/aretw0/aris/pkg/ports"
)

// Mask replaces redacted values in stored checkpoints.
const Mask = "***"

type redactMiddleware struct {
	next     ports.CheckpointStore
	patterns []*regexp.Regexp
}

// NewRedactMiddleware creates a middleware that masks tool call arguments and
// map-shaped tool results whose keys match any of the patterns. The state
// handed to Save is never modified.
func NewRedactMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redact pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.CheckpointStore) ports.CheckpointStore {
		return &redactMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *redactMiddleware) Save(ctx context.Context, taskID string, state *domain.State) error {
	cloned := state.Clone()
	for i, msg := range cloned.Messages {
		switch v := msg.(type) {
		case domain.AssistantMessage:
			m.maskCalls(v.ToolCalls)
		case domain.ToolResultMessage:
			v.Content = m.maskValue(v.Content)
			cloned.Messages[i] = v
		}
	}
	if cloned.Generation != nil {
		m.maskCalls(cloned.Generation.ToolCalls)
	}
	return m.next.Save(ctx, taskID, cloned)
}

func (m *redactMiddleware) Load(ctx context.Context, taskID string) (*domain.State, error) {
	return m.next.Load(ctx, taskID)
}

func (m *redactMiddleware) Delete(ctx context.Context, taskID string) error {
	return m.next.Delete(ctx, taskID)
}

func (m *redactMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

// maskCalls rewrites the argument maps in place; callers pass cloned calls.
func (m *redactMiddleware) maskCalls(calls []domain.ToolCall) {
	for i := range calls {
		if calls[i].Args != nil {
			calls[i].Args = m.maskMap(calls[i].Args)
		}
	}
}

func (m *redactMiddleware) maskValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return m.maskMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = m.maskValue(item)
		}
		return out
	default:
		return v
	}
}

// maskMap returns a copy of in with matching keys masked, recursing into nested values.
func (m *redactMiddleware) maskMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		if m.matches(k) {
			out[k] = Mask
			continue
		}
		out[k] = m.maskValue(v)
	}
	return out
}

func (m *redactMiddleware) matches(key string) bool {
	for _, p := range m.patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}
