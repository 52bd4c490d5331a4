// Package mcp exposes a task runner as a Model Context Protocol server, so
// other agents can delegate whole tasks to it.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/aris"
	"github.com/aretw0/aris/internal/logging"
	"github.com/aretw0/aris/pkg/domain"
	"github.com/aretw0/aris/pkg/ports"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// ToolsURI is the resource listing the runner's tools.
const ToolsURI = "aris://tools"

// RunTaskArgs are the arguments of the run_task tool.
type RunTaskArgs struct {
	Query   string `json:"query"`
	JobType string `json:"job_type,omitempty"`
}

// Server wraps a TaskRunner and exposes it as an MCP server.
type Server struct {
	runner    ports.TaskRunner
	logger    *slog.Logger
	mcpServer *server.MCPServer
	maxQuery  int
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMaxQuerySize sets the limit run_task checks queries against. Defaults
// to the runner's limit when it reports one.
func WithMaxQuerySize(n int) Option {
	return func(s *Server) { s.maxQuery = n }
}

// NewServer creates an MCP server for runner.
func NewServer(runner ports.TaskRunner, opts ...Option) *Server {
	s := &Server{
		runner:    runner,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("aris-mcp", strings.TrimSpace(aris.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if l, ok := runner.(interface{ MaxQuerySize() int }); ok && s.maxQuery <= 0 {
		s.maxQuery = l.MaxQuerySize()
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying server, for custom transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on port until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("Shutdown signal received, stopping MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	runTool := mcp.NewTool("run_task",
		mcp.WithDescription("Run a question through the workflow and return the final answer."),
		mcp.WithString("query", mcp.Required(), mcp.Description("The question or instruction")),
		mcp.WithString("job_type",
			mcp.Description("research searches and reads sources first; query answers directly"),
			mcp.Enum(string(domain.JobQuery), string(domain.JobResearch)),
		),
		mcp.WithOutputSchema[domain.Result](),
	)
	s.mcpServer.AddTool(runTool, mcp.NewStructuredToolHandler(s.handleRunTask))

	s.mcpServer.AddTool(mcp.NewTool("list_tools",
		mcp.WithDescription("List the tools the workflow may call while answering."),
	), s.handleListTools)
}

func (s *Server) handleRunTask(ctx context.Context, request mcp.CallToolRequest, args RunTaskArgs) (domain.Result, error) {
	jobType := domain.JobType(args.JobType)
	switch jobType {
	case "", domain.JobQuery, domain.JobResearch:
	default:
		return domain.Result{}, fmt.Errorf("unknown job_type %q", args.JobType)
	}
	if _, err := aris.SanitizeQuery(args.Query, s.maxQuery); err != nil {
		s.logger.Warn("MCP run_task: Query rejected", "error", err, "size", len(args.Query))
		return domain.Result{}, fmt.Errorf("query rejected: %w", err)
	}

	res := s.runner.Submit(ctx, domain.Task{Query: args.Query, JobType: jobType})
	s.logger.Info("MCP run_task finished", "task_id", res.TaskID, "status", string(res.Status))
	return res, nil
}

func (s *Server) handleListTools(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := s.toolsJSON()
	if err != nil {
		return mcp.NewToolResultError("failed to encode tools"), nil
	}
	return mcp.NewToolResultText(data), nil
}

func (s *Server) toolsJSON() (string, error) {
	tools := s.runner.Tools()
	if tools == nil {
		tools = []domain.ToolDefinition{}
	}
	data, err := json.Marshal(tools)
	return string(data), err
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(ToolsURI, "Registered tools",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		data, err := s.toolsJSON()
		if err != nil {
			return nil, fmt.Errorf("failed to encode tools: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      ToolsURI,
				MIMEType: "application/json",
				Text:     data,
			},
		}, nil
	})
}
