package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/aretw0/aris/internal/presentation/tui"
	"github.com/aretw0/aris/pkg/domain"
)

// ErrTaskFailed is returned by the run command when the task did not end
// successfully. The failure itself has already been printed.
var ErrTaskFailed = errors.New("task failed")

// ErrInterrupted is reported by InterruptibleReader once cancelled.
var ErrInterrupted = errors.New("interrupted")

// IOStreams are the standard streams of a command.
type IOStreams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// StdStreams returns the process streams.
func StdStreams() IOStreams {
	return IOStreams{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
}

// SignalContext wraps a context and captures the signal that cancelled it.
type SignalContext struct {
	context.Context
	Cancel func()
	start  sync.Once
	stop   sync.Once
	sigCh  chan os.Signal
	sigVal os.Signal
	mu     sync.Mutex
}

// NewSignalContext creates a context that is cancelled on SIGINT or SIGTERM.
// It acts as a drop-in replacement for signal.NotifyContext but allows retrieving the signal.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{
		Context: ctx,
		Cancel:  cancel,
		sigCh:   make(chan os.Signal, 1),
	}

	sc.start.Do(func() {
		signal.Notify(sc.sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			select {
			case sig := <-sc.sigCh:
				sc.mu.Lock()
				sc.sigVal = sig
				sc.mu.Unlock()
				sc.Cancel()
			case <-sc.Context.Done():
			}
			sc.stop.Do(func() {
				signal.Stop(sc.sigCh)
			})
		}()
	})

	return sc
}

// Signal returns the signal that caused the context to be cancelled, or nil.
func (sc *SignalContext) Signal() os.Signal {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.sigVal
}

// signalOf returns the captured signal when ctx is a SignalContext.
func signalOf(ctx context.Context) os.Signal {
	if sc, ok := ctx.(*SignalContext); ok {
		return sc.Signal()
	}
	return nil
}

// newPrinter styles output only when w is a terminal file.
func newPrinter(w io.Writer) *tui.Printer {
	if f, ok := w.(*os.File); ok {
		return tui.NewPrinter(f)
	}
	return tui.NewPlainPrinter(w)
}

// progressHooks print one status line per step and tool call.
func progressHooks(p *tui.Printer) domain.LifecycleHooks {
	var mu sync.Mutex
	status := func(format string, args ...any) {
		mu.Lock()
		defer mu.Unlock()
		p.Status(fmt.Sprintf(format, args...))
	}
	return domain.LifecycleHooks{
		OnStepEnter: func(ctx context.Context, e *domain.StepEvent) {
			status("%s...", e.Step)
		},
		OnToolReturn: func(ctx context.Context, e *domain.ToolEvent) {
			switch {
			case e.IsDenied:
				status("Tool '%s' denied.", e.ToolName)
			case e.IsError:
				status("Tool '%s' failed.", e.ToolName)
			default:
				status("Tool '%s' done.", e.ToolName)
			}
		},
	}
}

// InterruptibleReader wraps an io.Reader (like os.Stdin) and checks for a cancellation signal.
type InterruptibleReader struct {
	base   io.Reader
	cancel <-chan struct{}
}

func NewInterruptibleReader(base io.Reader, cancel <-chan struct{}) *InterruptibleReader {
	return &InterruptibleReader{
		base:   base,
		cancel: cancel,
	}
}

func (r *InterruptibleReader) Read(p []byte) (n int, err error) {
	select {
	case <-r.cancel:
		return 0, ErrInterrupted
	default:
	}

	// Read (This blocks!)
	n, err = r.base.Read(p)

	select {
	case <-r.cancel:
		return 0, ErrInterrupted
	default:
	}
	return n, err
}

func isInterrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, ErrInterrupted)
}

// handleExecutionError maps interruptions to a clean exit.
func handleExecutionError(err error) error {
	if err == nil || isInterrupted(err) {
		return nil
	}
	return err
}

func logInterrupt(p *tui.Printer, sig os.Signal, taskID string) {
	suffix := ""
	if taskID != "" {
		suffix = fmt.Sprintf(" Resume with 'aris run --resume %s'.", taskID)
	}
	switch sig {
	case os.Interrupt:
		p.Status("[CTRL+C] Interrupted." + suffix)
	case nil:
		p.Status("Interrupted." + suffix)
	default:
		p.Status("Terminated." + suffix)
	}
}
