package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aretw0/aris/internal/config"
	httpAdapter "github.com/aretw0/aris/pkg/adapters/http"
	"github.com/aretw0/aris/pkg/adapters/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ShutdownTimeout is how long in-flight requests get once a stop is requested.
const ShutdownTimeout = 5 * time.Second

// ServeOptions configures the HTTP server command.
type ServeOptions struct {
	ConfigPath string
	// Addr overrides http.addr.
	Addr  string
	Debug bool
}

// NewHTTPHandler exposes app over HTTP with the configured limits.
func NewHTTPHandler(app *App) http.Handler {
	opts := []httpAdapter.Option{
		httpAdapter.WithLogger(app.Logger),
		httpAdapter.WithStreams(app.Streams),
		httpAdapter.WithTaskTimeout(app.Config.HTTP.TaskTimeout),
	}
	if app.Config.HTTP.Metrics {
		opts = append(opts, httpAdapter.WithMetricsHandler(promhttp.HandlerFor(app.Metrics, promhttp.HandlerOpts{})))
	}
	return httpAdapter.NewHandler(app.Engine, opts...)
}

// Serve runs the HTTP server until ctx is done, then shuts it down gracefully.
func Serve(ctx context.Context, opts ServeOptions, streams IOStreams) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}
	if opts.Addr != "" {
		cfg.HTTP.Addr = opts.Addr
	}
	logger := NewLogger(cfg.Log, streams.Err, opts.Debug)

	app, err := Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           NewHTTPHandler(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "addr", srv.Addr, "steps", app.Engine.Topology(), "tools", len(app.Engine.Tools()))
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("Shutting down HTTP server", "signal", signalOf(ctx))
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Graceful shutdown did not complete", "timeout", ShutdownTimeout, "error", err)
			return srv.Close()
		}
		logger.Info("HTTP server stopped gracefully")
		return nil
	}
}

// MCPOptions configures the MCP server command.
type MCPOptions struct {
	ConfigPath string
	Transport  string // stdio or sse
	Port       int
	Debug      bool
}

// ServeMCP exposes the engine as an MCP server. Logs always go to the error
// stream so stdio JSON-RPC stays clean.
func ServeMCP(ctx context.Context, opts MCPOptions, streams IOStreams) error {
	switch opts.Transport {
	case "stdio", "sse":
	default:
		return fmt.Errorf("unknown transport %q (supported: stdio, sse)", opts.Transport)
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}
	logger := NewLogger(cfg.Log, streams.Err, opts.Debug)
	if cfg.Tools.Confirm {
		logger.Warn("tools.confirm is ignored by the MCP server: there is no terminal to ask")
	}

	app, err := Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	srv := mcp.NewServer(app.Engine, mcp.WithLogger(logger))
	if opts.Transport == "stdio" {
		logger.Info("Starting MCP server (stdio)")
		return srv.ServeStdio()
	}

	logger.Info("Starting MCP server (SSE)", "port", opts.Port)
	if err := srv.ServeSSE(ctx, opts.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("MCP server stopped gracefully")
	return nil
}
