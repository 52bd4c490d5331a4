package steps

import (
	"log/slog"

	"github.com/aretw0/aris/internal/logging"
	"github.com/aretw0/aris/pkg/domain"
	"github.com/aretw0/aris/pkg/retry"
)

// DefaultConcurrency bounds the fan-out of Retrieve and ExecuteTools.
const DefaultConcurrency = 4

type options struct {
	logger      *slog.Logger
	policy      retry.Policy
	hooks       domain.LifecycleHooks
	concurrency int
}

// Option configures a step.
type Option func(*options)

// WithLogger sets the logger used for warnings and retry messages.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRetry sets the retry policy applied to every external call of the step.
func WithRetry(p retry.Policy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithLifecycleHooks registers observability hooks (tool events).
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(o *options) {
		o.hooks = hooks
	}
}

// WithConcurrency bounds the number of concurrent external calls.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

func buildOptions(name domain.Label, opts []Option) options {
	o := options{
		logger:      logging.NewNop(),
		policy:      retry.Default(),
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.With("step", string(name))
	if o.policy.Logger == nil {
		o.policy.Logger = o.logger
	}
	if o.policy.Name == "" {
		o.policy.Name = string(name)
	}
	return o
}
