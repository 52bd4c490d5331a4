package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/aris"
	"github.com/aretw0/aris/internal/logging"
	"github.com/aretw0/aris/pkg/domain"
	"github.com/aretw0/aris/pkg/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// DefaultMaxBodyBytes caps request bodies.
const DefaultMaxBodyBytes = 64 << 10

// TaskRequest is the body of POST /v1/tasks.
type TaskRequest struct {
	// TaskID is optional. Subscribing to /v1/events?task_id= with it before
	// posting streams the run live.
	TaskID  string `json:"task_id,omitempty"`
	Query   string `json:"query"`
	JobType string `json:"job_type,omitempty"`
}

// ErrorResponse is returned for rejected requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Server serves a TaskRunner.
type Server struct {
	Runner  ports.TaskRunner
	Streams *StreamManager

	metrics      http.Handler
	logger       *slog.Logger
	timeout      time.Duration
	maxBodyBytes int64
	maxQuery     int
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsHandler mounts h at /metrics, typically promhttp.Handler().
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithStreams shares a StreamManager whose Hooks feed the engine.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) { s.Streams = sm }
}

// WithTaskTimeout bounds each POST /v1/tasks run. Zero means no limit.
func WithTaskTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// WithMaxQuerySize sets the query limit checked before submitting. Without
// it the runner's own limit is used when it reports one.
func WithMaxQuerySize(n int) Option {
	return func(s *Server) { s.maxQuery = n }
}

type queryLimiter interface {
	MaxQuerySize() int
}

// NewHandler creates the HTTP handler for runner.
func NewHandler(runner ports.TaskRunner, opts ...Option) http.Handler {
	s := &Server{
		Runner:       runner,
		logger:       logging.NewNop(),
		maxBodyBytes: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	if l, ok := runner.(queryLimiter); ok && s.maxQuery <= 0 {
		s.maxQuery = l.MaxQuerySize()
	}
	if s.Streams == nil {
		s.Streams = NewStreamManager(s.logger)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	r.Route("/v1", func(r chi.Router) {
		r.Post("/tasks", s.SubmitTask)
		r.Get("/tools", s.ListTools)
		r.Get("/events", s.SubscribeEvents)
	})
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SubmitTask handles POST /v1/tasks. A failed run is still a 200: the
// outcome lives in Result.Status.
func (s *Server) SubmitTask(w http.ResponseWriter, r *http.Request) {
	var body TaskRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, s.maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		s.logger.Warn("SubmitTask: Invalid request body", "error", err)
		writeJSON(w, s.logger, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	jobType := domain.JobType(strings.TrimSpace(body.JobType))
	switch jobType {
	case "", domain.JobQuery, domain.JobResearch:
	default:
		writeJSON(w, s.logger, http.StatusBadRequest, ErrorResponse{Error: "unknown job_type"})
		return
	}
	if _, err := aris.SanitizeQuery(body.Query, s.maxQuery); err != nil {
		writeJSON(w, s.logger, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	ctx := r.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	res := s.Runner.Submit(ctx, domain.Task{ID: body.TaskID, Query: body.Query, JobType: jobType})
	s.logger.Info("Task finished",
		"task_id", res.TaskID,
		"status", string(res.Status),
		"request_id", middleware.GetReqID(r.Context()),
	)
	writeJSON(w, s.logger, http.StatusOK, res)
}

// ListTools handles GET /v1/tools.
func (s *Server) ListTools(w http.ResponseWriter, r *http.Request) {
	tools := s.Runner.Tools()
	if tools == nil {
		tools = []domain.ToolDefinition{}
	}
	writeJSON(w, s.logger, http.StatusOK, tools)
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, map[string]string{
		"app":     "aris-http",
		"version": strings.TrimSpace(aris.Version),
	})
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Response encode failed", "error", err)
	}
}
