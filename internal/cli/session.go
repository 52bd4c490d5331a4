package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/aris/internal/config"
	"github.com/aretw0/aris/internal/logging"
	"github.com/aretw0/aris/internal/presentation/graph"
	"github.com/aretw0/aris/pkg/checkpoint"
)

// ErrCheckpointsDisabled is returned by checkpoint commands when the backend is "none".
var ErrCheckpointsDisabled = errors.New("checkpoints are disabled (checkpoint.backend is none)")

// OpenApp loads the config and wires an App with a quiet logger, for the
// short-lived inspection commands.
func OpenApp(ctx context.Context, configPath string, streams IOStreams, debug bool) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger := logging.NewNop()
	if debug {
		logger = NewLogger(cfg.Log, streams.Err, true)
	}
	return Build(ctx, cfg, logger)
}

func checkpointsOf(app *App) (*checkpoint.Manager, error) {
	if app.Checkpoints == nil {
		return nil, ErrCheckpointsDisabled
	}
	return app.Checkpoints, nil
}

// ListCheckpoints prints the stored task IDs.
func ListCheckpoints(ctx context.Context, app *App, w io.Writer) error {
	store, err := checkpointsOf(app)
	if err != nil {
		return err
	}
	ids, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("error listing checkpoints: %w", err)
	}
	if len(ids) == 0 {
		fmt.Fprintln(w, "No checkpoints found.")
		return nil
	}
	fmt.Fprintln(w, "Checkpoints:")
	for _, id := range ids {
		fmt.Fprintln(w, "- "+id)
	}
	return nil
}

// InspectCheckpoint prints the stored state of one task as indented JSON, or
// as a Mermaid diagram of its progress when asGraph is set.
func InspectCheckpoint(ctx context.Context, app *App, taskID string, asGraph bool, w io.Writer) error {
	store, err := checkpointsOf(app)
	if err != nil {
		return err
	}
	state, err := store.Load(ctx, taskID)
	if err != nil {
		return fmt.Errorf("error loading checkpoint '%s': %w", taskID, err)
	}
	if asGraph {
		_, err := io.WriteString(w, graph.GenerateMermaid(app.Engine.Topology(), graph.OverlayFor(state)))
		return err
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling state: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// RemoveCheckpoints deletes every listed task, reporting each outcome.
func RemoveCheckpoints(ctx context.Context, app *App, taskIDs []string, w io.Writer) error {
	store, err := checkpointsOf(app)
	if err != nil {
		return err
	}
	var errs []error
	for _, id := range taskIDs {
		if err := store.Delete(ctx, id); err != nil {
			fmt.Fprintf(w, "Error removing '%s': %v\n", id, err)
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(w, "Removed checkpoint '%s'\n", id)
	}
	return errors.Join(errs...)
}
