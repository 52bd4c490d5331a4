// Package bleve keeps a local full-text knowledge base on a Bleve index.
//
// An Index serves as a Searcher and Fetcher for offline research, and
// SearchTool exposes it to the generator as knowledge_search.
package bleve

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	blevesearch "github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/aretw0/aris/internal/logging"
	"github.com/aretw0/aris/pkg/ports"
)

const DefaultLimit = 5

// Page is one indexed document. Source doubles as the document ID.
type Page struct {
	Source  string `json:"source"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Index wraps a Bleve index of pages.
type Index struct {
	index  blevesearch.Index
	limit  int
	logger *slog.Logger
}

type Option func(*Index)

// WithLimit caps search hits.
func WithLimit(n int) Option {
	return func(i *Index) {
		if n > 0 {
			i.limit = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(i *Index) {
		if l != nil {
			i.logger = l
		}
	}
}

// Open opens the index at path, creating it when missing.
func Open(path string, opts ...Option) (*Index, error) {
	var (
		idx blevesearch.Index
		err error
	)
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		idx, err = blevesearch.New(path, buildMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create bleve index: %w", err)
		}
	} else {
		idx, err = blevesearch.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open bleve index: %w", err)
		}
	}
	return wrap(idx, opts), nil
}

// NewMemory creates a volatile in-memory index.
func NewMemory(opts ...Option) (*Index, error) {
	idx, err := blevesearch.NewMemOnly(buildMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create bleve index: %w", err)
	}
	return wrap(idx, opts), nil
}

func wrap(idx blevesearch.Index, opts []Option) *Index {
	i := &Index{index: idx, limit: DefaultLimit, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func buildMapping() mapping.IndexMapping {
	page := blevesearch.NewDocumentMapping()

	text := blevesearch.NewTextFieldMapping()
	text.Analyzer = standard.Name

	source := blevesearch.NewTextFieldMapping()
	source.Analyzer = keyword.Name

	page.AddFieldMappingsAt("title", text)
	page.AddFieldMappingsAt("content", text)
	page.AddFieldMappingsAt("source", source)

	m := blevesearch.NewIndexMapping()
	m.DefaultMapping = page
	m.DefaultAnalyzer = standard.Name
	return m
}

// Add indexes pages in one batch. Re-adding a source replaces it.
func (i *Index) Add(ctx context.Context, pages ...Page) error {
	batch := i.index.NewBatch()
	for _, p := range pages {
		if p.Source == "" {
			return fmt.Errorf("page %q has no source", p.Title)
		}
		if err := batch.Index(p.Source, p); err != nil {
			return fmt.Errorf("index %s: %w", p.Source, err)
		}
	}
	if err := i.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to write batch: %w", err)
	}
	i.logger.DebugContext(ctx, "Indexed pages", "count", len(pages))
	return nil
}

// AddDir indexes every .md and .txt file below dir. The source is the path
// relative to dir and the title the first line of the file.
func (i *Index) AddDir(ctx context.Context, dir string) (int, error) {
	var pages []Page
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".md", ".txt":
		default:
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		content := string(data)
		title, _, _ := strings.Cut(strings.TrimSpace(content), "\n")
		pages = append(pages, Page{
			Source:  filepath.ToSlash(rel),
			Title:   strings.TrimSpace(strings.TrimLeft(title, "# ")),
			Content: content,
		})
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	if len(pages) == 0 {
		return 0, nil
	}
	return len(pages), i.Add(ctx, pages...)
}

// Count returns the number of indexed pages.
func (i *Index) Count() (uint64, error) {
	return i.index.DocCount()
}

// Hit is a scored search result.
type Hit struct {
	Page
	Score float64 `json:"score"`
}

// Query runs a match query over title and content.
func (i *Index) Query(ctx context.Context, text string, limit int) ([]Hit, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = i.limit
	}
	req := blevesearch.NewSearchRequestOptions(blevesearch.NewMatchQuery(text), limit, 0, false)
	req.Fields = []string{"source", "title", "content"}

	res, err := i.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("knowledge search failed: %w", err)
	}
	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		title, _ := h.Fields["title"].(string)
		content, _ := h.Fields["content"].(string)
		hits = append(hits, Hit{Page: Page{Source: h.ID, Title: title, Content: content}, Score: h.Score})
	}
	return hits, nil
}

// Search implements ports.Searcher.
func (i *Index) Search(ctx context.Context, query string) ([]ports.SearchResult, error) {
	hits, err := i.Query(ctx, query, 0)
	if err != nil {
		return nil, err
	}
	out := make([]ports.SearchResult, 0, len(hits))
	for _, h := range hits {
		out = append(out, ports.SearchResult{URL: h.Source, Title: h.Title, Snippet: snippet(h.Content, 200)})
	}
	return out, nil
}

// Fetch implements ports.Fetcher by reading the stored page back.
func (i *Index) Fetch(ctx context.Context, source string) (ports.FetchedPage, error) {
	q := blevesearch.NewDocIDQuery([]string{source})
	req := blevesearch.NewSearchRequest(q)
	req.Fields = []string{"title", "content"}
	res, err := i.index.SearchInContext(ctx, req)
	if err != nil {
		return ports.FetchedPage{}, fmt.Errorf("knowledge fetch failed: %w", err)
	}
	if len(res.Hits) == 0 {
		return ports.FetchedPage{}, fmt.Errorf("no page for %s", source)
	}
	title, _ := res.Hits[0].Fields["title"].(string)
	content, _ := res.Hits[0].Fields["content"].(string)
	return ports.FetchedPage{Title: title, Content: content}, nil
}

// Close releases the index.
func (i *Index) Close() error {
	return i.index.Close()
}

func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
