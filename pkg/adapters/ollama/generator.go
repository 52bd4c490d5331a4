// Package ollama implements ports.Generator against the Ollama chat API
// (POST /api/chat, non-streaming, with native tool calling).
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/aris/internal/logging"
	"github.com/aretw0/aris/pkg/domain"
	"github.com/aretw0/aris/pkg/ports"
	"github.com/aretw0/aris/pkg/registry"
	"github.com/aretw0/aris/pkg/retry"
)

const (
	DefaultHost  = "http://localhost:11434"
	DefaultModel = "llama3.1"
)

// ErrEmptyReply is returned when the model answers with neither content nor tool calls.
var ErrEmptyReply = errors.New("ollama: empty reply")

// Generator talks to an Ollama server.
type Generator struct {
	host         string
	model        string
	client       *http.Client
	temperature  *float64
	maxDocChars  int
	systemPrompt string
	logger       *slog.Logger
}

// Option configures the Generator.
type Option func(*Generator)

func WithHost(host string) Option {
	return func(g *Generator) {
		if host != "" {
			g.host = strings.TrimRight(host, "/")
		}
	}
}

func WithModel(model string) Option {
	return func(g *Generator) {
		if model != "" {
			g.model = model
		}
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(g *Generator) {
		if c != nil {
			g.client = c
		}
	}
}

func WithTemperature(t float64) Option {
	return func(g *Generator) { g.temperature = &t }
}

// WithMaxDocumentChars truncates each document put into the prompt.
func WithMaxDocumentChars(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxDocChars = n
		}
	}
}

// WithSystemPrompt replaces the base instructions.
func WithSystemPrompt(p string) Option {
	return func(g *Generator) {
		if p != "" {
			g.systemPrompt = p
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

const basePrompt = "You are a careful research assistant. Answer the user's question accurately. " +
	"Use the tools when they help. Cite sources by URL when you rely on them."

// NewGenerator creates a generator. Without options it targets a local
// server and DefaultModel.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		host:         DefaultHost,
		model:        DefaultModel,
		client:       &http.Client{Timeout: 5 * time.Minute},
		maxDocChars:  6000,
		systemPrompt: basePrompt,
		logger:       logging.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

var _ ports.Generator = (*Generator)(nil)

type chatMessage struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	ToolCalls []chatToolCall `json:"tool_calls,omitempty"`
	ToolName  string         `json:"tool_name,omitempty"`
}

type chatToolCall struct {
	Function struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"function"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function chatFunction `json:"function"`
}

type chatFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Tools    []chatTool     `json:"tools,omitempty"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
	Error   string      `json:"error,omitempty"`
}

// Generate sends one chat request. Tool calls in the reply carry no IDs;
// the generate step assigns them.
func (g *Generator) Generate(ctx context.Context, req ports.GenerateRequest) (domain.AssistantMessage, error) {
	body, err := g.buildRequest(req)
	if err != nil {
		return domain.AssistantMessage{}, err
	}
	data, err := json.Marshal(body)
	if err != nil {
		return domain.AssistantMessage{}, fmt.Errorf("encode chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.host+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return domain.AssistantMessage{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := g.client.Do(httpReq)
	if err != nil {
		return domain.AssistantMessage{}, fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	var decoded chatResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 16<<20)).Decode(&decoded); err != nil {
		if resp.StatusCode != http.StatusOK {
			return domain.AssistantMessage{}, statusError(resp, fmt.Errorf("ollama returned %s", resp.Status))
		}
		return domain.AssistantMessage{}, fmt.Errorf("decode chat response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || decoded.Error != "" {
		return domain.AssistantMessage{}, statusError(resp, fmt.Errorf("ollama returned %s: %s", resp.Status, decoded.Error))
	}

	msg := domain.AssistantMessage{Content: strings.TrimSpace(decoded.Message.Content)}
	for _, tc := range decoded.Message.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, domain.ToolCall{Name: tc.Function.Name, Args: tc.Function.Arguments})
	}
	if msg.Content == "" && !msg.HasToolCalls() {
		return domain.AssistantMessage{}, ErrEmptyReply
	}
	g.logger.DebugContext(ctx, "Ollama replied",
		"model", g.model,
		"purpose", string(req.Purpose),
		"tool_calls", len(msg.ToolCalls),
		"elapsed", time.Since(start),
	)
	return msg, nil
}

func (g *Generator) buildRequest(req ports.GenerateRequest) (chatRequest, error) {
	out := chatRequest{Model: g.model}
	if g.temperature != nil {
		out.Options = map[string]any{"temperature": *g.temperature}
	}
	out.Messages = append(out.Messages, chatMessage{Role: "system", Content: g.system(req)})

	for _, m := range req.Messages {
		switch m := m.(type) {
		case domain.UserMessage:
			out.Messages = append(out.Messages, chatMessage{Role: "user", Content: m.Content})
		case domain.AssistantMessage:
			cm := chatMessage{Role: "assistant", Content: m.Content}
			for _, call := range m.ToolCalls {
				var tc chatToolCall
				tc.Function.Name = call.Name
				tc.Function.Arguments = call.Args
				cm.ToolCalls = append(cm.ToolCalls, tc)
			}
			out.Messages = append(out.Messages, cm)
		case domain.ToolResultMessage:
			out.Messages = append(out.Messages, chatMessage{Role: "tool", ToolName: m.Name, Content: toolContent(m)})
		}
	}

	for _, def := range req.Tools {
		schema, err := registry.SchemaOf(def.Parameters)
		if err != nil {
			return chatRequest{}, fmt.Errorf("tool %s: %w", def.Name, err)
		}
		out.Tools = append(out.Tools, chatTool{
			Type:     "function",
			Function: chatFunction{Name: def.Name, Description: def.Description, Parameters: schema},
		})
	}
	return out, nil
}

func (g *Generator) system(req ports.GenerateRequest) string {
	var b strings.Builder
	b.WriteString(g.systemPrompt)
	if req.Purpose == ports.PurposeSynthesize {
		b.WriteString("\n\nWrite the final answer now. Start with a title heading, ")
		b.WriteString("combine the sources below into a structured report and do not call tools.")
	}
	if len(req.Documents) > 0 {
		b.WriteString("\n\nSources:\n")
		for i, d := range req.Documents {
			content := []rune(d.Content)
			if len(content) > g.maxDocChars {
				content = content[:g.maxDocChars]
			}
			fmt.Fprintf(&b, "\n[%d] %s %s\n%s\n", i+1, d.Title, d.Source, string(content))
		}
	}
	if req.Critique != "" {
		b.WriteString("\n\nYour previous answer was rejected. Reviewer feedback: ")
		b.WriteString(req.Critique)
	}
	return b.String()
}

func toolContent(m domain.ToolResultMessage) string {
	if m.IsError {
		return "error: " + m.Error
	}
	if s, ok := m.Content.(string); ok {
		return s
	}
	data, err := json.Marshal(m.Content)
	if err != nil {
		return fmt.Sprintf("%v", m.Content)
	}
	return string(data)
}

// Ping checks that the server answers /api/tags.
func (g *Generator) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.host+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned %s", resp.Status)
	}
	return nil
}

// statusError marks client errors as permanent: an unknown model or a bad
// request fails the same way on every attempt. Timeouts and rate limits
// stay retryable.
func statusError(resp *http.Response, err error) error {
	code := resp.StatusCode
	if code >= 400 && code < 500 && code != http.StatusRequestTimeout && code != http.StatusTooManyRequests {
		return retry.Permanent(err)
	}
	return err
}
