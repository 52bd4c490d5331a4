package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aretw0/aris/internal/logging"
	"github.com/aretw0/aris/pkg/ports"
)

// DefaultMaxResults caps the hits returned per query.
const DefaultMaxResults = 10

// Searcher queries a SearXNG instance (format=json).
type Searcher struct {
	baseURL    string
	client     *http.Client
	maxResults int
	categories string
	logger     *slog.Logger
}

// SearcherOption configures a Searcher.
type SearcherOption func(*Searcher)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) SearcherOption {
	return func(s *Searcher) {
		if c != nil {
			s.client = c
		}
	}
}

// WithMaxResults caps the number of hits returned.
func WithMaxResults(n int) SearcherOption {
	return func(s *Searcher) {
		if n > 0 {
			s.maxResults = n
		}
	}
}

// WithCategories restricts the search, e.g. "general,science".
func WithCategories(c string) SearcherOption {
	return func(s *Searcher) { s.categories = c }
}

// WithSearchLogger sets the logger.
func WithSearchLogger(l *slog.Logger) SearcherOption {
	return func(s *Searcher) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSearcher creates a searcher for the instance at baseURL.
func NewSearcher(baseURL string, opts ...SearcherOption) (*Searcher, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid searxng url %q", baseURL)
	}
	s := &Searcher{
		baseURL:    strings.TrimRight(baseURL, "/"),
		client:     &http.Client{Timeout: 15 * time.Second},
		maxResults: DefaultMaxResults,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

type searxResponse struct {
	Results []struct {
		URL     string `json:"url"`
		Title   string `json:"title"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search returns up to maxResults hits, dropping entries without a URL and
// repeated URLs.
func (s *Searcher) Search(ctx context.Context, query string) ([]ports.SearchResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	if s.categories != "" {
		params.Set("categories", s.categories)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("search returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var decoded searxResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	seen := make(map[string]bool)
	out := make([]ports.SearchResult, 0, min(len(decoded.Results), s.maxResults))
	for _, r := range decoded.Results {
		if len(out) == s.maxResults {
			break
		}
		if r.URL == "" || seen[r.URL] {
			continue
		}
		seen[r.URL] = true
		out = append(out, ports.SearchResult{URL: r.URL, Title: r.Title, Snippet: r.Content})
	}
	s.logger.DebugContext(ctx, "Search finished", "query", query, "results", len(out))
	return out, nil
}
