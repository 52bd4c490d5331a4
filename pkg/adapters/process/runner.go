// Package process exposes allow-listed local commands as tools.
//
// Tool arguments never reach the command line. Each argument is passed as an
// ARIS_ARG_<NAME> environment variable, which rules out flag injection.
package process

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"os/exec"
	"slices"
	"strings"
	"time"

	"github.com/aretw0/aris/internal/logging"
	"github.com/aretw0/aris/pkg/domain"
	"github.com/aretw0/aris/pkg/registry"
)

// EnvPrefix prefixes the environment variables carrying tool arguments.
const EnvPrefix = "ARIS_ARG_"

// DefaultGracePeriod is how long a cancelled process gets between the
// interrupt and the kill.
const DefaultGracePeriod = 5 * time.Second

// Runner executes registered commands. It follows a strict allow-list:
// only commands added through Register or WithRegistry can run.
type Runner struct {
	registry    map[string]ProcessConfig
	baseDir     string
	gracePeriod time.Duration
	logger      *slog.Logger
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithRegistry populates the allow-list from a loaded config.
func WithRegistry(tools []ProcessConfig) RunnerOption {
	return func(r *Runner) {
		for _, tool := range tools {
			r.registry[tool.Name] = tool
		}
	}
}

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

// WithGracePeriod overrides DefaultGracePeriod.
func WithGracePeriod(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.gracePeriod = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner creates a new Process Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		registry:    make(map[string]ProcessConfig),
		gracePeriod: DefaultGracePeriod,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a trusted command to the allow-list.
func (r *Runner) Register(name string, command string, args ...string) {
	r.registry[name] = ProcessConfig{Name: name, Command: command, Args: args}
}

// Tools returns one registry tool per registered command, ordered by name.
func (r *Runner) Tools() []registry.Tool {
	names := slices.Sorted(maps.Keys(r.registry))
	out := make([]registry.Tool, 0, len(names))
	for _, name := range names {
		cfg := r.registry[name]
		desc := cfg.Description
		if desc == "" {
			desc = "Runs " + cfg.Command
		}
		out = append(out, registry.Tool{
			Definition: domain.ToolDefinition{
				Name:        name,
				Description: desc,
				Parameters:  maps.Clone(cfg.Parameters),
			},
			Fn: func(ctx context.Context, args map[string]any) (any, error) {
				return r.Run(ctx, name, args)
			},
		})
	}
	return out
}

// Run executes the named command. Stdout that parses as a JSON object or
// array is returned decoded; anything else is returned as trimmed text. A
// non-zero exit is an error carrying stderr.
func (r *Runner) Run(ctx context.Context, name string, args map[string]any) (any, error) {
	proc, ok := r.registry[name]
	if !ok {
		return nil, fmt.Errorf("process tool not registered: %s", name)
	}
	if proc.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, proc.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, proc.Command, proc.Args...)
	cmd.Dir = r.baseDir
	// Interrupt first; WaitDelay escalates to a kill.
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = r.gracePeriod
	cmd.Env = append(cmd.Environ(), processEnv(proc.Environment, args)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w (%v)", ctxErr, err)
		}
		r.logger.WarnContext(ctx, "Process tool failed", "tool", name, "elapsed", time.Since(start), "error", err)
		return nil, fmt.Errorf("execution failed: %w. Stderr: %s", err, strings.TrimSpace(stderr.String()))
	}
	r.logger.DebugContext(ctx, "Process tool finished", "tool", name, "elapsed", time.Since(start))
	return decodeOutput(stdout.String()), nil
}

func processEnv(static map[string]string, args map[string]any) []string {
	env := make([]string, 0, len(static)+len(args))
	for _, k := range slices.Sorted(maps.Keys(static)) {
		env = append(env, k+"="+static[k])
	}
	for _, k := range slices.Sorted(maps.Keys(args)) {
		env = append(env, EnvPrefix+strings.ToUpper(k)+"="+formatArg(args[k]))
	}
	return env
}

// formatArg renders primitives with %v and structured values as JSON.
func formatArg(v any) string {
	switch v.(type) {
	case nil:
		return ""
	case string, int, int64, float64, bool:
		return fmt.Sprintf("%v", v)
	default:
		if data, err := json.Marshal(v); err == nil {
			return string(data)
		}
		return fmt.Sprintf("%v", v)
	}
}

func decodeOutput(output string) any {
	trimmed := strings.TrimSpace(output)
	if (strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}")) ||
		(strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]")) {
		var decoded any
		if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
			return decoded
		}
	}
	return trimmed
}
