package aris

import (
	"log/slog"

	"github.com/aretw0/aris/internal/steps"
	"github.com/aretw0/aris/pkg/domain"
	"github.com/aretw0/aris/pkg/ports"
	"github.com/aretw0/aris/pkg/registry"
	"github.com/aretw0/aris/pkg/retry"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxSteps bounds runs whose caller did not set WithMaxSteps.
const DefaultMaxSteps = 50

// ToolInterceptor decides, before execution, whether a tool call may run.
type ToolInterceptor = steps.ToolInterceptor

type config struct {
	searcher  ports.Searcher
	fetcher   ports.Fetcher
	generator ports.Generator
	validator ports.Validator

	tools       []registry.Tool
	interceptor ToolInterceptor

	logger      *slog.Logger
	hooks       domain.LifecycleHooks
	tracer      trace.Tracer
	checkpoints ports.CheckpointStore

	policies    map[domain.Label]retry.Policy
	concurrency int
	facets      []string
	maxResults  int

	maxSteps             int
	maxValidationRetries int
	maxQuerySize         int
}

// Option configures an Engine.
type Option func(*config)

// WithGenerator sets the model client. It is required.
func WithGenerator(g ports.Generator) Option {
	return func(c *config) { c.generator = g }
}

// WithSearcher enables research jobs. A fetcher must be configured too.
func WithSearcher(s ports.Searcher) Option {
	return func(c *config) { c.searcher = s }
}

// WithFetcher sets the client used by the retrieve step.
func WithFetcher(f ports.Fetcher) Option {
	return func(c *config) { c.fetcher = f }
}

// WithValidator routes finished generations through the validate step.
func WithValidator(v ports.Validator) Option {
	return func(c *config) { c.validator = v }
}

// WithTools adds tools to the registry offered to the model.
func WithTools(tools ...registry.Tool) Option {
	return func(c *config) { c.tools = append(c.tools, tools...) }
}

// WithInterceptor installs a gate evaluated before each tool call.
func WithInterceptor(i ToolInterceptor) Option {
	return func(c *config) { c.interceptor = i }
}

// WithLogger sets the structured logger shared by the engine and its steps.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(c *config) { c.hooks = c.hooks.Merge(hooks) }
}

// WithTracer overrides the OpenTelemetry tracer (the global provider by default).
func WithTracer(t trace.Tracer) Option {
	return func(c *config) { c.tracer = t }
}

// WithCheckpoints persists the state after every step, enabling Resume.
func WithCheckpoints(store ports.CheckpointStore) Option {
	return func(c *config) { c.checkpoints = store }
}

// WithRetry sets the retry policy of one step. Synthesize falls back to the
// generate policy.
func WithRetry(step domain.Label, p retry.Policy) Option {
	return func(c *config) {
		if c.policies == nil {
			c.policies = make(map[domain.Label]retry.Policy)
		}
		c.policies[step] = p
	}
}

// WithConcurrency bounds the fan-out of retrieve and execute_tools.
func WithConcurrency(n int) Option {
	return func(c *config) { c.concurrency = n }
}

// WithSearchFacets expands each research query with the given suffixes.
func WithSearchFacets(facets ...string) Option {
	return func(c *config) { c.facets = facets }
}

// WithMaxSearchResults caps the documents added by the search step.
func WithMaxSearchResults(n int) Option {
	return func(c *config) { c.maxResults = n }
}

// WithMaxSteps overrides DefaultMaxSteps. Zero disables the guard.
func WithMaxSteps(n int) Option {
	return func(c *config) { c.maxSteps = n }
}

// WithMaxQuerySize caps submitted queries, in bytes. Zero keeps
// DefaultMaxQuerySize.
func WithMaxQuerySize(n int) Option {
	return func(c *config) { c.maxQuerySize = n }
}

// WithMaxValidationRetries sets how many failed verdicts are tolerated.
func WithMaxValidationRetries(n int) Option {
	return func(c *config) { c.maxValidationRetries = n }
}

func (c *config) stepOptions(label domain.Label) []steps.Option {
	opts := []steps.Option{
		steps.WithLogger(c.logger),
		steps.WithLifecycleHooks(c.hooks),
		steps.WithConcurrency(c.concurrency),
	}
	p, ok := c.policies[label]
	if !ok && label == domain.StepSynthesize {
		p, ok = c.policies[domain.StepGenerate]
	}
	if ok {
		opts = append(opts, steps.WithRetry(p))
	}
	return opts
}
