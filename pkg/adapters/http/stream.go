package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/aretw0/aris/internal/logging"
	"github.com/aretw0/aris/pkg/domain"
)

// allTasks is the subscription key for clients that did not filter by task.
const allTasks = ""

// StreamManager fans lifecycle events out to SSE subscribers.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // task ID -> set of channels
	logger      *slog.Logger
}

// NewStreamManager creates an empty manager.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a channel for taskID ("" for every task). The returned
// func unsubscribes and closes the channel.
func (sm *StreamManager) Subscribe(taskID string) (<-chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 16)
	if _, ok := sm.subscribers[taskID]; !ok {
		sm.subscribers[taskID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[taskID][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			if subs, ok := sm.subscribers[taskID]; ok {
				delete(subs, ch)
				close(ch)
				if len(subs) == 0 {
					delete(sm.subscribers, taskID)
				}
			}
		})
	}
}

// Broadcast delivers msg to the subscribers of taskID and to global subscribers.
// Slow clients lose messages instead of blocking the run.
func (sm *StreamManager) Broadcast(taskID string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	keys := []string{allTasks}
	if taskID != allTasks {
		keys = append(keys, taskID)
	}
	for _, key := range keys {
		for ch := range sm.subscribers[key] {
			select {
			case ch <- msg:
			default:
				sm.logger.Warn("SSE: Client buffer full, dropping message", "task_id", taskID)
			}
		}
	}
}

// Hooks returns lifecycle hooks that broadcast every event as JSON.
func (sm *StreamManager) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepEnter: func(ctx context.Context, e *domain.StepEvent) {
			sm.publish(e.TaskID, e)
		},
		OnStepLeave: func(ctx context.Context, e *domain.StepEvent) {
			sm.publish(e.TaskID, stepPayload{StepEvent: e, Failed: e.Err != nil})
		},
		OnToolCall: func(ctx context.Context, e *domain.ToolEvent) {
			sm.publish(e.TaskID, e)
		},
		OnToolReturn: func(ctx context.Context, e *domain.ToolEvent) {
			sm.publish(e.TaskID, e)
		},
		OnRunFinish: func(ctx context.Context, e *domain.RunEvent) {
			sm.publish(e.TaskID, e)
		},
	}
}

// stepPayload exposes whether a step failed without leaking the error text.
type stepPayload struct {
	*domain.StepEvent
	Failed bool `json:"failed,omitempty"`
}

func (sm *StreamManager) publish(taskID string, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		sm.logger.Error("SSE: Event encode failed", "error", err)
		return
	}
	sm.Broadcast(taskID, string(data))
}

// SubscribeEvents handles GET /v1/events (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	taskID := r.URL.Query().Get("task_id")
	events, cancel := s.Streams.Subscribe(taskID)
	defer cancel()
	s.logger.Debug("SSE: Subscribed", "task_id", taskID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-events:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
