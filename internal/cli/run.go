package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/aris"
	"github.com/aretw0/aris/internal/config"
	"github.com/aretw0/aris/internal/presentation/tui"
	"github.com/aretw0/aris/pkg/domain"
)

// RunOptions contains all the configuration for the Run command.
type RunOptions struct {
	ConfigPath string
	Query      string
	JobType    string
	// Resume continues the checkpointed task with this ID instead of
	// submitting Query.
	Resume string
	// Output, when set, receives the answer and its sources as a markdown
	// report once the task ends successfully.
	Output string
	JSON   bool
	Quiet  bool
	Debug  bool
}

// Execute handles the 'run' command logic on the process streams.
func Execute(opts RunOptions) error {
	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()
	return Run(sigCtx, opts, StdStreams())
}

// Run submits one task, or resumes one, and prints the outcome. It returns
// ErrTaskFailed when the task did not end successfully.
func Run(ctx context.Context, opts RunOptions, streams IOStreams) error {
	jobType := domain.JobType(strings.TrimSpace(opts.JobType))
	switch jobType {
	case "", domain.JobQuery, domain.JobResearch:
	default:
		return fmt.Errorf("unknown job type %q (want query or research)", opts.JobType)
	}
	if opts.Resume == "" && strings.TrimSpace(opts.Query) == "" {
		return errors.New("a query is required")
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}
	logger := NewLogger(cfg.Log, streams.Err, opts.Debug)
	printer := newPrinter(streams.Out)
	quiet := opts.Quiet || opts.JSON

	var buildOpts []BuildOption
	if cfg.Tools.Confirm {
		buildOpts = append(buildOpts, WithPrompt(NewInterruptibleReader(streams.In, ctx.Done()), streams.Err))
	}
	if !quiet {
		tui.PrintBanner(streams.Out, aris.Version)
		buildOpts = append(buildOpts, WithHooks(progressHooks(printer)))
	}

	app, err := Build(ctx, cfg, logger, buildOpts...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := app.Close(); cerr != nil {
			logger.Warn("Failed to release resources", "error", cerr)
		}
	}()

	var res domain.Result
	if opts.Resume != "" {
		if !quiet {
			printer.Status(fmt.Sprintf("Resuming task '%s'...", opts.Resume))
		}
		res, err = app.Engine.Resume(ctx, opts.Resume)
		if err != nil {
			if errors.Is(err, domain.ErrCheckpointNotFound) && cfg.Checkpoint.Backend == config.BackendMemory {
				return fmt.Errorf("%w (the memory backend does not outlive a process; use file, sqlite or redis)", err)
			}
			return handleExecutionError(err)
		}
	} else {
		res = app.Engine.Submit(ctx, domain.Task{Query: opts.Query, JobType: jobType})
	}

	if ctx.Err() != nil && !res.Succeeded() {
		if !opts.JSON {
			resumable := ""
			if app.Checkpoints != nil && cfg.Checkpoint.Backend != config.BackendMemory {
				resumable = res.TaskID
			}
			logInterrupt(printer, signalOf(ctx), resumable)
		}
		return nil
	}
	if err := printResult(printer, streams, res, opts.JSON, quiet); err != nil {
		return err
	}
	if opts.Output != "" {
		if err := writeReport(opts.Output, res); err != nil {
			return err
		}
		logger.Info("Report written", "task_id", res.TaskID, "path", opts.Output, "sources", len(res.Sources))
		if !quiet {
			printer.Status(fmt.Sprintf("Report written to %s", opts.Output))
		}
	}
	return nil
}

func printResult(p *tui.Printer, streams IOStreams, res domain.Result, asJSON, quiet bool) error {
	if asJSON {
		enc := json.NewEncoder(streams.Out)
		if err := enc.Encode(res); err != nil {
			return err
		}
		if !res.Succeeded() {
			return ErrTaskFailed
		}
		return nil
	}

	if !res.Succeeded() {
		p.Error(fmt.Sprintf("Task '%s' failed: %s", res.TaskID, res.Error))
		return ErrTaskFailed
	}
	if err := p.Answer(res.Generation); err != nil {
		return err
	}
	if !quiet {
		p.Status(fmt.Sprintf("Task '%s' ended.", res.TaskID))
	}
	return nil
}
