package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventStepEnter  EventType = "step_enter"
	EventStepLeave  EventType = "step_leave"
	EventToolCall   EventType = "tool_call"
	EventToolReturn EventType = "tool_return"
	EventRunFinish  EventType = "run_finish"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	TaskID    string    `json:"task_id"`
}

// StepEvent represents entry into or exit from a step.
type StepEvent struct {
	EventBase
	Step     Label         `json:"step"`
	Duration time.Duration `json:"duration,omitempty"`
	Err      error         `json:"-"`
}

// ToolEvent represents a single tool invocation. Arguments are deliberately
// absent: hooks may ship events to places that must not see them.
type ToolEvent struct {
	EventBase
	CallID   string `json:"call_id"`
	ToolName string `json:"tool_name"`
	IsError  bool   `json:"is_error,omitempty"`
	IsDenied bool   `json:"is_denied,omitempty"`
}

// RunEvent is emitted once per run when a terminal label is reached.
type RunEvent struct {
	EventBase
	JobType JobType       `json:"job_type"`
	Status  Status        `json:"status"`
	Steps   int           `json:"steps"`
	Elapsed time.Duration `json:"elapsed"`
}

// LifecycleHooks defines callbacks for engine observability. Hooks run
// synchronously on the goroutine that raised the event.
type LifecycleHooks struct {
	OnStepEnter  func(context.Context, *StepEvent)
	OnStepLeave  func(context.Context, *StepEvent)
	OnToolCall   func(context.Context, *ToolEvent)
	OnToolReturn func(context.Context, *ToolEvent)
	OnRunFinish  func(context.Context, *RunEvent)
}

// Merge combines two hook sets; both callbacks run, a first then b.
func (a LifecycleHooks) Merge(b LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnStepEnter:  chain(a.OnStepEnter, b.OnStepEnter),
		OnStepLeave:  chain(a.OnStepLeave, b.OnStepLeave),
		OnToolCall:   chain(a.OnToolCall, b.OnToolCall),
		OnToolReturn: chain(a.OnToolReturn, b.OnToolReturn),
		OnRunFinish:  chain(a.OnRunFinish, b.OnRunFinish),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
