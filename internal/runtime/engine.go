package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/aris/internal/logging"
	"github.com/aretw0/aris/pkg/domain"
	"github.com/aretw0/aris/pkg/ports"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Engine drives one state through the workflow graph. It holds no per-run
// data, so a single Engine serves any number of concurrent runs.
type Engine struct {
	steps       map[domain.Label]ports.Step
	router      RouterConfig
	logger      *slog.Logger
	hooks       domain.LifecycleHooks
	checkpoints ports.CheckpointStore
	tracer      trace.Tracer
}

// NewEngine creates an engine from its steps. Generate is mandatory; a
// validate step turns validation on.
func NewEngine(steps []ports.Step, opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		steps:  make(map[domain.Label]ports.Step, len(steps)),
		router: RouterConfig{MaxValidationRetries: 2},
		logger: logging.NewNop(),
		tracer: otel.Tracer(tracerName),
	}
	for _, s := range steps {
		if s == nil {
			continue
		}
		name := s.Name()
		if name.IsTerminal() || name == "" {
			return nil, fmt.Errorf("invalid step name %q", name)
		}
		if _, dup := e.steps[name]; dup {
			return nil, fmt.Errorf("step %s registered twice", name)
		}
		e.steps[name] = s
	}
	if _, ok := e.steps[domain.StepGenerate]; !ok {
		return nil, fmt.Errorf("a %s step is required", domain.StepGenerate)
	}
	_, e.router.ValidateEnabled = e.steps[domain.StepValidate]

	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Router returns the routing configuration in effect.
func (e *Engine) Router() RouterConfig {
	return e.router
}

// Has reports whether a step is configured for label.
func (e *Engine) Has(label domain.Label) bool {
	_, ok := e.steps[label]
	return ok
}

// Run executes the workflow until a terminal label. The returned state is
// always non-nil and carries the terminal status; the error explains a
// "failed" outcome and is nil for "end".
//
// Run resumes from wherever the state is: a fresh state starts at the entry
// step, a checkpointed one continues after its LastStep.
func (e *Engine) Run(ctx context.Context, state *domain.State) (*domain.State, error) {
	if state == nil {
		return nil, fmt.Errorf("%w: nil state", domain.ErrContractViolation)
	}
	start := time.Now()
	logger := e.logger.With("task_id", state.TaskID, "job_type", string(state.JobType))
	ctx, span := e.startRunSpan(ctx, state)

	state = state.Clone()
	state.Status = domain.StatusRunning
	final, err := e.loop(ctx, logger, state)

	// A run stopped by its context is checkpointed as still running so it
	// can be resumed; only the returned state reports the failure.
	interrupted := err != nil && ctx.Err() != nil
	switch {
	case interrupted:
		final.Status = domain.StatusRunning
		e.checkpoint(ctx, logger, final)
		final.Status = domain.StatusFailed
		logger.WarnContext(ctx, "Run interrupted", "steps", final.Steps, "last_step", string(final.LastStep), "error", err)
	case err != nil:
		final.Status = domain.StatusFailed
		e.checkpoint(ctx, logger, final)
		logger.WarnContext(ctx, "Run failed", "steps", final.Steps, "error", err)
	default:
		final.Status = domain.StatusEnded
		e.checkpoint(ctx, logger, final)
		logger.InfoContext(ctx, "Run finished", "steps", final.Steps, "elapsed", time.Since(start))
	}
	endRunSpan(span, final, err)

	if e.hooks.OnRunFinish != nil {
		e.hooks.OnRunFinish(ctx, &domain.RunEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventRunFinish, TaskID: final.TaskID},
			JobType:   final.JobType,
			Status:    final.Status,
			Steps:     final.Steps,
			Elapsed:   time.Since(start),
		})
	}
	return final, err
}

func (e *Engine) loop(ctx context.Context, logger *slog.Logger, state *domain.State) (*domain.State, error) {
	for {
		if err := ctx.Err(); err != nil {
			return state, fmt.Errorf("run interrupted: %w", err)
		}

		label, err := Route(state, e.router)
		if err != nil {
			return state, err
		}
		if label == domain.LabelEnd {
			return state, nil
		}

		step, ok := e.steps[label]
		if !ok {
			return state, domain.NewStepError(label, fmt.Errorf("no %s step configured", label))
		}

		next, err := e.execute(ctx, logger, step, state)
		if err != nil {
			return state, err
		}
		next.LastStep = label
		next.Steps = state.Steps + 1
		state = next
		e.checkpoint(ctx, logger, state)
	}
}

// execute runs one step on a private copy of the state and checks that the
// result is a legal successor.
func (e *Engine) execute(ctx context.Context, logger *slog.Logger, step ports.Step, state *domain.State) (*domain.State, error) {
	label := step.Name()
	ctx, span := e.startStepSpan(ctx, label, state)
	e.emitStep(ctx, domain.EventStepEnter, state.TaskID, label, 0, nil)
	logger.DebugContext(ctx, "Entering step", "step", string(label), "index", state.Steps+1)

	started := time.Now()
	next, err := step.Execute(ctx, state.Clone())
	if err == nil {
		err = e.checkSuccessor(label, state, next)
	}
	elapsed := time.Since(started)

	e.emitStep(ctx, domain.EventStepLeave, state.TaskID, label, elapsed, err)
	endStepSpan(span, err)
	if err != nil {
		return nil, domain.NewStepError(label, err)
	}
	logger.DebugContext(ctx, "Leaving step",
		"step", string(label),
		"elapsed", elapsed,
		"appended", len(domain.Appended(state, next)),
	)
	return next, nil
}

func (e *Engine) checkSuccessor(label domain.Label, prev, next *domain.State) error {
	if err := domain.Extends(prev, next); err != nil {
		return err
	}
	if err := domain.ValidateToolResults(next.Messages); err != nil {
		return err
	}
	// Verdict bookkeeping is owned by the validate step.
	if label != domain.StepValidate {
		next.Verdict = prev.Verdict
		next.ValidationFailures = prev.ValidationFailures
	}
	return nil
}

func (e *Engine) emitStep(ctx context.Context, typ domain.EventType, taskID string, label domain.Label, d time.Duration, err error) {
	hook := e.hooks.OnStepEnter
	if typ == domain.EventStepLeave {
		hook = e.hooks.OnStepLeave
	}
	if hook == nil {
		return
	}
	hook(ctx, &domain.StepEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: typ, TaskID: taskID},
		Step:      label,
		Duration:  d,
		Err:       err,
	})
}

func (e *Engine) checkpoint(ctx context.Context, logger *slog.Logger, state *domain.State) {
	if e.checkpoints == nil {
		return
	}
	// A cancelled run still records where it stopped.
	saveCtx := context.WithoutCancel(ctx)
	if err := e.checkpoints.Save(saveCtx, state.TaskID, state); err != nil {
		logger.WarnContext(ctx, "Failed to save checkpoint", "error", err)
	}
}
