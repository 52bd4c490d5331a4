package aris

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/aris/internal/logging"
	"github.com/aretw0/aris/internal/runtime"
	"github.com/aretw0/aris/internal/steps"
	"github.com/aretw0/aris/pkg/domain"
	"github.com/aretw0/aris/pkg/ports"
	"github.com/aretw0/aris/pkg/registry"
	"github.com/google/uuid"
)

var (
	// ErrNoGenerator is returned by New when WithGenerator was not given.
	ErrNoGenerator = errors.New("a generator is required")
	// ErrNoCheckpoints is returned by Resume when the engine has no checkpoint store.
	ErrNoCheckpoints = errors.New("checkpoints are not configured")
	// ErrInvalidTaskID rejects caller-supplied task IDs that are not UUIDs.
	ErrInvalidTaskID = errors.New("task id must be a UUID")
	// ErrTaskExists rejects a caller-supplied task ID that already has a checkpoint.
	ErrTaskExists = errors.New("task id already in use")
)

// Engine is the high-level entry point of the library. It wires the
// configured capabilities into steps and runs tasks through them.
// An Engine is safe for concurrent use.
type Engine struct {
	runtime     *runtime.Engine
	registry    *registry.Registry
	checkpoints ports.CheckpointStore
	logger      *slog.Logger
	maxQuery    int
}

var _ ports.TaskRunner = (*Engine)(nil)

// New builds an Engine from options.
func New(opts ...Option) (*Engine, error) {
	cfg := &config{
		maxSteps:             DefaultMaxSteps,
		maxValidationRetries: -1,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.generator == nil {
		return nil, ErrNoGenerator
	}
	if cfg.searcher != nil && cfg.fetcher == nil {
		return nil, errors.New("a searcher requires a fetcher for the retrieve step")
	}
	if cfg.logger == nil {
		cfg.logger = logging.NewNop()
	}

	reg, err := registry.New(cfg.tools...)
	if err != nil {
		return nil, fmt.Errorf("invalid tools: %w", err)
	}

	pipeline := []ports.Step{
		steps.NewGenerate(cfg.generator, reg, cfg.stepOptions(domain.StepGenerate)...),
		steps.NewExecuteTools(reg, cfg.interceptor, cfg.stepOptions(domain.StepExecuteTools)...),
		steps.NewSynthesize(cfg.generator, cfg.stepOptions(domain.StepSynthesize)...),
	}
	if cfg.searcher != nil {
		var searchOpts []steps.SearchOption
		if len(cfg.facets) > 0 {
			searchOpts = append(searchOpts, steps.WithFacets(cfg.facets...))
		}
		if cfg.maxResults > 0 {
			searchOpts = append(searchOpts, steps.WithMaxResults(cfg.maxResults))
		}
		pipeline = append(pipeline,
			steps.NewSearch(cfg.searcher, searchOpts, cfg.stepOptions(domain.StepSearch)...),
			steps.NewRetrieve(cfg.fetcher, cfg.stepOptions(domain.StepRetrieve)...),
		)
	} else if cfg.fetcher != nil {
		pipeline = append(pipeline, steps.NewRetrieve(cfg.fetcher, cfg.stepOptions(domain.StepRetrieve)...))
	}
	if cfg.validator != nil {
		pipeline = append(pipeline, steps.NewValidate(cfg.validator, cfg.stepOptions(domain.StepValidate)...))
	}

	runtimeOpts := []runtime.EngineOption{
		runtime.WithLogger(cfg.logger),
		runtime.WithLifecycleHooks(cfg.hooks),
		runtime.WithMaxSteps(cfg.maxSteps),
	}
	if cfg.maxValidationRetries >= 0 {
		runtimeOpts = append(runtimeOpts, runtime.WithMaxValidationRetries(cfg.maxValidationRetries))
	}
	if cfg.checkpoints != nil {
		runtimeOpts = append(runtimeOpts, runtime.WithCheckpoints(cfg.checkpoints))
	}
	if cfg.tracer != nil {
		runtimeOpts = append(runtimeOpts, runtime.WithTracer(cfg.tracer))
	}

	rt, err := runtime.NewEngine(pipeline, runtimeOpts...)
	if err != nil {
		return nil, err
	}
	return &Engine{
		runtime:     rt,
		registry:    reg,
		checkpoints: cfg.checkpoints,
		logger:      cfg.logger,
		maxQuery:    cfg.maxQuerySize,
	}, nil
}

// Submit runs a task to completion. The returned Result never carries
// internal error details; those are logged under the task ID.
func (e *Engine) Submit(ctx context.Context, task domain.Task) domain.Result {
	taskID := task.ID
	if taskID == "" {
		taskID = uuid.NewString()
	} else if _, err := uuid.Parse(taskID); err != nil {
		return domain.Result{TaskID: task.ID, Status: domain.StatusFailed, Error: ErrInvalidTaskID.Error()}
	}

	query, err := SanitizeQuery(task.Query, e.maxQuery)
	if err != nil {
		return domain.Result{TaskID: taskID, Status: domain.StatusFailed, Error: err.Error()}
	}
	jobType := task.JobType
	if jobType == "" {
		jobType = domain.JobQuery
	}
	if jobType.SelectsSearch() && !e.runtime.Has(domain.StepSearch) {
		return domain.Result{
			TaskID: taskID,
			Status: domain.StatusFailed,
			Error:  fmt.Sprintf("%s jobs are not supported by this engine", jobType),
		}
	}

	state := domain.NewState(taskID, query, jobType)
	if task.ID == "" || e.checkpoints == nil {
		final, err := e.Run(ctx, state)
		return e.result(taskID, final, err)
	}

	// A caller-chosen ID must be new. Under a task lock the check and the
	// run are one critical section.
	var res domain.Result
	claimAndRun := func(ctx context.Context) error {
		if err := e.unused(ctx, taskID); err != nil {
			return err
		}
		final, err := e.Run(ctx, state)
		res = e.result(taskID, final, err)
		return nil
	}
	if locker, ok := e.checkpoints.(taskLocker); ok {
		err = locker.WithLock(ctx, taskID, claimAndRun)
	} else {
		err = claimAndRun(ctx)
	}
	switch {
	case errors.Is(err, ErrTaskExists):
		return domain.Result{TaskID: taskID, Status: domain.StatusFailed, Error: err.Error()}
	case err != nil:
		e.logger.ErrorContext(ctx, "Task could not start", "task_id", taskID, "error", err)
		return domain.Result{TaskID: taskID, Status: domain.StatusFailed, Error: internalError(taskID)}
	}
	return res
}

// unused fails with ErrTaskExists when taskID already has a checkpoint.
func (e *Engine) unused(ctx context.Context, taskID string) error {
	_, err := e.checkpoints.Load(ctx, taskID)
	switch {
	case err == nil:
		return ErrTaskExists
	case errors.Is(err, domain.ErrCheckpointNotFound):
		return nil
	default:
		return fmt.Errorf("checkpoint lookup failed: %w", err)
	}
}

// MaxQuerySize is the query limit Submit enforces, in bytes.
func (e *Engine) MaxQuerySize() int {
	if e.maxQuery <= 0 {
		return DefaultMaxQuerySize
	}
	return e.maxQuery
}

// Run executes the workflow on a caller-built state and returns the full
// final state. Most callers want Submit.
func (e *Engine) Run(ctx context.Context, state *domain.State) (*domain.State, error) {
	return e.runtime.Run(ctx, state)
}

// Resume continues a checkpointed run. Runs that already reached a terminal
// status are reported without executing anything.
func (e *Engine) Resume(ctx context.Context, taskID string) (domain.Result, error) {
	if e.checkpoints == nil {
		return domain.Result{}, ErrNoCheckpoints
	}
	state, err := e.checkpoints.Load(ctx, taskID)
	if err != nil {
		return domain.Result{}, err
	}

	if res, done := e.finished(taskID, state); done {
		return res, nil
	}

	e.logger.InfoContext(ctx, "Resuming run", "task_id", taskID, "last_step", string(state.LastStep), "steps", state.Steps)

	locker, ok := e.checkpoints.(taskLocker)
	if !ok {
		final, err := e.Run(ctx, state)
		return e.result(taskID, final, err), nil
	}
	var res domain.Result
	err = locker.WithLock(ctx, taskID, func(ctx context.Context) error {
		// Reload under the lock: another worker may have advanced the run.
		current, err := e.checkpoints.Load(ctx, taskID)
		if err != nil {
			return err
		}
		if r, done := e.finished(taskID, current); done {
			res = r
			return nil
		}
		final, err := e.Run(ctx, current)
		res = e.result(taskID, final, err)
		return nil
	})
	if err != nil {
		return domain.Result{}, err
	}
	return res, nil
}

// finished reports the result of a run that already reached a terminal status.
func (e *Engine) finished(taskID string, state *domain.State) (domain.Result, bool) {
	switch state.Status {
	case domain.StatusEnded:
		return e.result(taskID, state, nil), true
	case domain.StatusFailed:
		return domain.Result{TaskID: taskID, Status: domain.StatusFailed, Error: internalError(taskID)}, true
	}
	return domain.Result{}, false
}

// taskLocker serializes work on one task, e.g. checkpoint.Manager.
type taskLocker interface {
	WithLock(ctx context.Context, taskID string, fn func(context.Context) error) error
}

// Tools lists the registered tools, sorted by name.
func (e *Engine) Tools() []domain.ToolDefinition {
	return e.registry.Definitions()
}

// Registry exposes the immutable tool registry.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// Topology lists the steps configured on this engine in canonical order.
func (e *Engine) Topology() []domain.Label {
	var out []domain.Label
	for _, l := range domain.Steps {
		if e.runtime.Has(l) {
			out = append(out, l)
		}
	}
	return out
}

func (e *Engine) result(taskID string, final *domain.State, err error) domain.Result {
	if err == nil {
		return domain.Result{
			TaskID:     taskID,
			Status:     domain.StatusEnded,
			Query:      final.Query,
			Generation: final.GenerationContent(),
			Sources:    final.Citations(),
		}
	}
	e.logger.Error("Task failed", "task_id", taskID, "error", err)
	return domain.Result{TaskID: taskID, Status: domain.StatusFailed, Error: publicError(taskID, err)}
}

// publicError maps a run failure to a message that is safe to show callers.
func publicError(taskID string, err error) string {
	switch {
	case errors.Is(err, domain.ErrValidationExhausted):
		return "the answer did not pass validation"
	case errors.Is(err, domain.ErrMaxStepsExceeded):
		return "the task exceeded its step budget"
	case errors.Is(err, context.DeadlineExceeded):
		return "the task timed out"
	case errors.Is(err, context.Canceled):
		return "the task was cancelled"
	default:
		return internalError(taskID)
	}
}

func internalError(taskID string) string {
	return fmt.Sprintf("internal error (reference %s)", taskID)
}
