package ports

import (
	"context"

	"github.com/aretw0/aris/pkg/domain"
)

// SearchResult is one hit returned by a Searcher.
type SearchResult struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

// Searcher finds candidate sources for a query.
type Searcher interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// FetchedPage is the content retrieved for a source.
type FetchedPage struct {
	Title   string
	Content string
}

// Fetcher retrieves the full content behind a source reference.
type Fetcher interface {
	Fetch(ctx context.Context, source string) (FetchedPage, error)
}

// Purpose tells the generator which step is asking.
type Purpose string

const (
	PurposeGenerate   Purpose = "generate"
	PurposeSynthesize Purpose = "synthesize"
)

// GenerateRequest is everything a Generator gets to produce the next assistant turn.
type GenerateRequest struct {
	Purpose   Purpose
	Query     string
	Documents []domain.Document
	Messages  domain.Messages
	Tools     []domain.ToolDefinition
	// Critique is the feedback of the last failed validation, if any.
	Critique string
}

// Generator is the language-model capability.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (domain.AssistantMessage, error)
}

// Validator critiques a generation. It must not have side effects on the state.
type Validator interface {
	Validate(ctx context.Context, state *domain.State) (domain.Verdict, error)
}

// The Func adapters let plain functions satisfy the capability interfaces.

type SearcherFunc func(ctx context.Context, query string) ([]SearchResult, error)

func (f SearcherFunc) Search(ctx context.Context, query string) ([]SearchResult, error) {
	return f(ctx, query)
}

type FetcherFunc func(ctx context.Context, source string) (FetchedPage, error)

func (f FetcherFunc) Fetch(ctx context.Context, source string) (FetchedPage, error) {
	return f(ctx, source)
}

type GeneratorFunc func(ctx context.Context, req GenerateRequest) (domain.AssistantMessage, error)

func (f GeneratorFunc) Generate(ctx context.Context, req GenerateRequest) (domain.AssistantMessage, error) {
	return f(ctx, req)
}

type ValidatorFunc func(ctx context.Context, state *domain.State) (domain.Verdict, error)

func (f ValidatorFunc) Validate(ctx context.Context, state *domain.State) (domain.Verdict, error) {
	return f(ctx, state)
}
