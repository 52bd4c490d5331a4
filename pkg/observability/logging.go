package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/aris/pkg/domain"
)

// LogHooks returns hooks that write one structured line per lifecycle event.
// Step and tool events go to debug; run completion goes to info.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepEnter: func(ctx context.Context, e *domain.StepEvent) {
			logger.DebugContext(ctx, "step_enter", "task_id", e.TaskID, "step", string(e.Step))
		},
		OnStepLeave: func(ctx context.Context, e *domain.StepEvent) {
			attrs := []any{"task_id", e.TaskID, "step", string(e.Step), "duration", e.Duration}
			if e.Err != nil {
				attrs = append(attrs, "error", e.Err)
			}
			logger.DebugContext(ctx, "step_leave", attrs...)
		},
		OnToolCall: func(ctx context.Context, e *domain.ToolEvent) {
			logger.DebugContext(ctx, "tool_call", "task_id", e.TaskID, "tool_name", e.ToolName, "call_id", e.CallID)
		},
		OnToolReturn: func(ctx context.Context, e *domain.ToolEvent) {
			logger.DebugContext(ctx, "tool_return",
				"task_id", e.TaskID,
				"tool_name", e.ToolName,
				"call_id", e.CallID,
				"is_error", e.IsError,
				"is_denied", e.IsDenied,
			)
		},
		OnRunFinish: func(ctx context.Context, e *domain.RunEvent) {
			logger.InfoContext(ctx, "run_finish",
				"task_id", e.TaskID,
				"job_type", string(e.JobType),
				"status", string(e.Status),
				"steps", e.Steps,
				"elapsed", e.Elapsed,
			)
		},
	}
}
