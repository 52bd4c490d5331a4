// Package scripted provides deterministic capability doubles for tests,
// demos and offline runs. Every double is safe for concurrent use and counts
// its calls.
package scripted

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aretw0/aris/pkg/domain"
	"github.com/aretw0/aris/pkg/ports"
)

// ErrScriptEmpty is returned by a Generator created without replies.
var ErrScriptEmpty = errors.New("scripted: no replies")

// Reply is one scripted generator answer.
type Reply struct {
	Message domain.AssistantMessage
	Err     error
}

// Say replies with plain content.
func Say(content string) Reply {
	return Reply{Message: domain.AssistantMessage{Content: content}}
}

// CallTools replies with tool call requests.
func CallTools(calls ...domain.ToolCall) Reply {
	return Reply{Message: domain.AssistantMessage{ToolCalls: calls}}
}

// Fail replies with an error.
func Fail(err error) Reply {
	return Reply{Err: err}
}

// Generator plays its replies in order; once they run out it keeps
// repeating the last one.
type Generator struct {
	mu       sync.Mutex
	replies  []Reply
	requests []ports.GenerateRequest
}

// NewGenerator creates a scripted generator.
func NewGenerator(replies ...Reply) *Generator {
	return &Generator{replies: replies}
}

func (g *Generator) Generate(ctx context.Context, req ports.GenerateRequest) (domain.AssistantMessage, error) {
	if err := ctx.Err(); err != nil {
		return domain.AssistantMessage{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if len(g.replies) == 0 {
		return domain.AssistantMessage{}, ErrScriptEmpty
	}
	i := min(len(g.requests), len(g.replies)) - 1
	r := g.replies[i]
	if r.Err != nil {
		return domain.AssistantMessage{}, r.Err
	}
	return r.Message.Clone(), nil
}

// Calls returns how many times Generate was invoked.
func (g *Generator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

// Requests returns a copy of every request received.
func (g *Generator) Requests() []ports.GenerateRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]ports.GenerateRequest(nil), g.requests...)
}

// Searcher answers queries from a fixed table. Queries missing from the
// table get Default.
type Searcher struct {
	Results map[string][]ports.SearchResult
	Errors  map[string]error
	Default []ports.SearchResult

	mu      sync.Mutex
	queries []string
}

func (s *Searcher) Search(ctx context.Context, query string) ([]ports.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.queries = append(s.queries, query)
	s.mu.Unlock()

	if err, ok := s.Errors[query]; ok {
		return nil, err
	}
	if res, ok := s.Results[query]; ok {
		return res, nil
	}
	return s.Default, nil
}

// Queries returns every query received, in arrival order.
func (s *Searcher) Queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}

// Fetcher serves pages from a fixed table; unknown sources fail.
type Fetcher struct {
	Pages  map[string]ports.FetchedPage
	Errors map[string]error

	mu    sync.Mutex
	calls map[string]int
}

func (f *Fetcher) Fetch(ctx context.Context, source string) (ports.FetchedPage, error) {
	if err := ctx.Err(); err != nil {
		return ports.FetchedPage{}, err
	}
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[source]++
	f.mu.Unlock()

	if err, ok := f.Errors[source]; ok {
		return ports.FetchedPage{}, err
	}
	if page, ok := f.Pages[source]; ok {
		return page, nil
	}
	return ports.FetchedPage{}, fmt.Errorf("scripted: no page for %s", source)
}

// Calls returns how many times source was fetched.
func (f *Fetcher) Calls(source string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[source]
}

// TotalCalls returns the number of fetches across all sources.
func (f *Fetcher) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}
