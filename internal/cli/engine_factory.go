package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/aretw0/aris"
	"github.com/aretw0/aris/internal/config"
	"github.com/aretw0/aris/internal/logging"
	"github.com/aretw0/aris/internal/steps"
	"github.com/aretw0/aris/pkg/adapters/bleve"
	httpAdapter "github.com/aretw0/aris/pkg/adapters/http"
	"github.com/aretw0/aris/pkg/adapters/memory"
	"github.com/aretw0/aris/pkg/adapters/ollama"
	"github.com/aretw0/aris/pkg/adapters/process"
	"github.com/aretw0/aris/pkg/adapters/scripted"
	"github.com/aretw0/aris/pkg/adapters/web"
	"github.com/aretw0/aris/pkg/checkpoint"
	"github.com/aretw0/aris/pkg/domain"
	"github.com/aretw0/aris/pkg/observability"
	"github.com/aretw0/aris/pkg/ports"
	"github.com/aretw0/aris/pkg/registry"
	"github.com/prometheus/client_golang/prometheus"
)

// retryLabels maps the retry keys of the config file to the steps they tune.
var retryLabels = map[string]domain.Label{
	"search":   domain.StepSearch,
	"fetch":    domain.StepRetrieve,
	"generate": domain.StepGenerate,
	"tool":     domain.StepExecuteTools,
	"validate": domain.StepValidate,
}

// App is an engine wired from configuration, plus the pieces the commands
// need next to it.
type App struct {
	Engine *aris.Engine
	// Checkpoints is nil when the checkpoint backend is "none".
	Checkpoints *checkpoint.Manager
	Metrics     *prometheus.Registry
	Streams     *httpAdapter.StreamManager
	Logger      *slog.Logger
	Config      *config.Config

	closers []io.Closer
}

// Close releases indexes and checkpoint backends.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// BuildOption tweaks Build.
type BuildOption func(*buildOptions)

type buildOptions struct {
	promptIn  io.Reader
	promptOut io.Writer
	generator ports.Generator
	hooks     []domain.LifecycleHooks
}

// WithPrompt is where tool confirmations are asked when tools.confirm is set.
func WithPrompt(in io.Reader, out io.Writer) BuildOption {
	return func(o *buildOptions) {
		o.promptIn = in
		o.promptOut = out
	}
}

// WithGenerator replaces the configured LLM provider.
func WithGenerator(g ports.Generator) BuildOption {
	return func(o *buildOptions) { o.generator = g }
}

// WithHooks adds lifecycle hooks next to the logging and metrics ones.
func WithHooks(h domain.LifecycleHooks) BuildOption {
	return func(o *buildOptions) { o.hooks = append(o.hooks, h) }
}

// NewLogger creates the application logger from the log section. Debug
// forces the debug level.
func NewLogger(cfg config.LogConfig, w io.Writer, debug bool) *slog.Logger {
	level := logging.ParseLevel(cfg.Level)
	if debug {
		level = slog.LevelDebug
	}
	return logging.NewWithFormat(w, level, cfg.Format)
}

// Build wires an App from cfg. The caller must Close it.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...BuildOption) (_ *App, err error) {
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	app := &App{
		Metrics: prometheus.NewRegistry(),
		Streams: httpAdapter.NewStreamManager(logger),
		Logger:  logger,
		Config:  cfg,
	}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	engineOpts := []aris.Option{
		aris.WithLogger(logger),
		aris.WithMaxSteps(cfg.Engine.MaxSteps),
		aris.WithMaxValidationRetries(cfg.Engine.MaxValidationRetries),
		aris.WithConcurrency(cfg.Engine.Concurrency),
		aris.WithMaxQuerySize(cfg.Engine.MaxQuerySize),
		aris.WithLifecycleHooks(observability.LogHooks(logger)),
		aris.WithLifecycleHooks(app.Streams.Hooks()),
	}
	for _, h := range o.hooks {
		engineOpts = append(engineOpts, aris.WithLifecycleHooks(h))
	}

	metrics, err := observability.NewMetrics(app.Metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	engineOpts = append(engineOpts, aris.WithLifecycleHooks(metrics.Hooks()))

	for key, rc := range cfg.Retry {
		label, ok := retryLabels[key]
		if !ok {
			return nil, fmt.Errorf("unknown retry key %q", key)
		}
		p := rc.Policy()
		p.Logger = logger
		engineOpts = append(engineOpts, aris.WithRetry(label, p))
	}

	gen := o.generator
	if gen == nil {
		gen = newGenerator(cfg.LLM, logger)
	}
	engineOpts = append(engineOpts, aris.WithGenerator(gen))

	capOpts, tools, err := app.capabilities(ctx, cfg)
	if err != nil {
		return nil, err
	}
	engineOpts = append(engineOpts, capOpts...)
	engineOpts = append(engineOpts, aris.WithTools(tools...))

	if cfg.Engine.Validate {
		engineOpts = append(engineOpts, aris.WithValidator(researchValidator(cfg.Engine.ValidationThreshold)))
	}
	if cfg.Tools.Confirm && o.promptIn != nil {
		engineOpts = append(engineOpts, aris.WithInterceptor(steps.ConfirmationMiddleware(o.promptIn, o.promptOut)))
	}

	store, err := app.openCheckpoints(ctx, cfg.Checkpoint)
	if err != nil {
		return nil, err
	}
	if store != nil {
		app.Checkpoints = store
		engineOpts = append(engineOpts, aris.WithCheckpoints(store))
	}

	app.Engine, err = aris.New(engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	return app, nil
}

func newGenerator(cfg config.LLMConfig, logger *slog.Logger) ports.Generator {
	if cfg.Provider == "scripted" {
		replies := make([]scripted.Reply, 0, len(cfg.Script))
		for _, s := range cfg.Script {
			replies = append(replies, scripted.Say(s))
		}
		return scripted.NewGenerator(replies...)
	}
	opts := []ollama.Option{
		ollama.WithHost(cfg.Host),
		ollama.WithModel(cfg.Model),
		ollama.WithLogger(logger),
	}
	if cfg.Temperature != nil {
		opts = append(opts, ollama.WithTemperature(*cfg.Temperature))
	}
	return ollama.NewGenerator(opts...)
}

// capabilities wires search, fetch and the tool catalogue. The research
// source is SearXNG, else the inline corpus, else the knowledge index; the
// index is still offered as a tool.
func (a *App) capabilities(ctx context.Context, cfg *config.Config) ([]aris.Option, []registry.Tool, error) {
	var (
		opts  []aris.Option
		tools []registry.Tool
	)

	client := &http.Client{Timeout: cfg.Fetch.Timeout}
	fetcher := web.NewFetcher(
		web.WithFetchClient(client),
		web.WithUserAgent(cfg.Fetch.UserAgent),
		web.WithMaxBodyBytes(cfg.Fetch.MaxBytes),
		web.WithFetchLogger(a.Logger),
	)
	if cfg.Fetch.Tool {
		tools = append(tools, web.FetchTool(fetcher))
	}

	index, err := a.openIndex(ctx, cfg.Tools)
	if err != nil {
		return nil, nil, err
	}
	if index != nil {
		tools = append(tools, bleve.SearchTool(index))
	}

	switch {
	case cfg.Search.SearXNGURL != "":
		searcher, err := web.NewSearcher(cfg.Search.SearXNGURL,
			web.WithHTTPClient(client),
			web.WithMaxResults(cfg.Search.MaxResults),
			web.WithCategories(cfg.Search.Categories),
			web.WithSearchLogger(a.Logger),
		)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, aris.WithSearcher(searcher), aris.WithFetcher(fetcher))
	case len(cfg.Search.Corpus) > 0:
		pages := make([]memory.Page, 0, len(cfg.Search.Corpus))
		for _, p := range cfg.Search.Corpus {
			pages = append(pages, memory.Page{Source: p.Source, Title: p.Title, Content: p.Content})
		}
		corpus := memory.NewCorpus(cfg.Search.MaxResults, pages...)
		opts = append(opts, aris.WithSearcher(corpus), aris.WithFetcher(corpus))
	case index != nil:
		opts = append(opts, aris.WithSearcher(index), aris.WithFetcher(index))
	}
	if cfg.Search.MaxResults > 0 {
		opts = append(opts, aris.WithMaxSearchResults(cfg.Search.MaxResults))
	}
	if cfg.Search.Expand {
		facets := cfg.Search.Facets
		if len(facets) == 0 {
			facets = steps.DefaultFacets
		}
		opts = append(opts, aris.WithSearchFacets(facets...))
	}

	procTools, err := process.LoadTools(cfg.Tools.File)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load tools: %w", err)
	}
	if len(procTools) > 0 {
		runner := process.NewRunner(
			process.WithRegistry(procTools),
			process.WithBaseDir(filepath.Dir(cfg.Tools.File)),
			process.WithLogger(a.Logger),
		)
		tools = append(tools, runner.Tools()...)
		a.Logger.Debug("Process tools loaded", "path", cfg.Tools.File, "count", len(procTools))
	}
	return opts, tools, nil
}

// openIndex opens the persistent knowledge index, or an in-memory one when
// only a directory is given, and indexes the directory into it.
func (a *App) openIndex(ctx context.Context, cfg config.ToolsConfig) (*bleve.Index, error) {
	var (
		index *bleve.Index
		err   error
	)
	switch {
	case cfg.KnowledgeIndex != "":
		index, err = bleve.Open(cfg.KnowledgeIndex, bleve.WithLogger(a.Logger))
	case cfg.KnowledgeDir != "":
		index, err = bleve.NewMemory(bleve.WithLogger(a.Logger))
	default:
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open knowledge index: %w", err)
	}
	a.closers = append(a.closers, index)

	if cfg.KnowledgeDir != "" {
		n, err := index.AddDir(ctx, cfg.KnowledgeDir)
		if err != nil {
			return nil, fmt.Errorf("failed to index %s: %w", cfg.KnowledgeDir, err)
		}
		a.Logger.Info("Knowledge indexed", "dir", cfg.KnowledgeDir, "files", n)
	}
	return index, nil
}

// researchValidator judges research answers with the content heuristic.
// Other jobs pass: the heuristic rewards long, sourced write-ups.
func researchValidator(threshold float64) ports.Validator {
	h := steps.NewHeuristicValidator()
	if threshold > 0 {
		h.Threshold = threshold
	}
	return ports.ValidatorFunc(func(ctx context.Context, s *domain.State) (domain.Verdict, error) {
		if s.JobType != domain.JobResearch {
			return domain.Verdict{Passed: true, Score: 1}, nil
		}
		return h.Validate(ctx, s)
	})
}
