package runtime

import (
	"log/slog"

	"github.com/aretw0/aris/pkg/domain"
	"github.com/aretw0/aris/pkg/ports"
	"go.opentelemetry.io/otel/trace"
)

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithMaxSteps bounds the number of steps a run may execute.
func WithMaxSteps(n int) EngineOption {
	return func(e *Engine) {
		e.router.MaxSteps = n
	}
}

// WithMaxValidationRetries sets how many failed verdicts a run tolerates.
func WithMaxValidationRetries(n int) EngineOption {
	return func(e *Engine) {
		e.router.MaxValidationRetries = n
	}
}

// WithCheckpoints saves the state after every step. Save failures are logged
// and never fail the run.
func WithCheckpoints(store ports.CheckpointStore) EngineOption {
	return func(e *Engine) {
		e.checkpoints = store
	}
}

// WithTracer overrides the OpenTelemetry tracer (default: the global provider).
func WithTracer(tracer trace.Tracer) EngineOption {
	return func(e *Engine) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}
