package steps

import (
	"context"
	"errors"
	"strings"

	"github.com/aretw0/aris/pkg/domain"
	"github.com/aretw0/aris/pkg/ports"
	"github.com/aretw0/aris/pkg/retry"
	"golang.org/x/sync/errgroup"
)

// DefaultFacets are the suffixes appended to the query when facet expansion
// is enabled.
var DefaultFacets = []string{"overview", "research", "analysis", "best practices", "trends"}

// Search turns the task query into source documents.
type Search struct {
	searcher   ports.Searcher
	facets     []string
	maxResults int
	opts       options
}

// SearchOption configures the search step beyond the common options.
type SearchOption func(*Search)

// WithFacets expands the query into one search per facet, in addition to
// the bare query.
func WithFacets(facets ...string) SearchOption {
	return func(s *Search) {
		s.facets = facets
	}
}

// WithMaxResults caps the number of documents appended per run. Zero keeps all.
func WithMaxResults(n int) SearchOption {
	return func(s *Search) {
		s.maxResults = n
	}
}

// NewSearch creates the search step.
func NewSearch(searcher ports.Searcher, searchOpts []SearchOption, opts ...Option) *Search {
	s := &Search{searcher: searcher, opts: buildOptions(domain.StepSearch, opts)}
	for _, opt := range searchOpts {
		opt(s)
	}
	return s
}

func (s *Search) Name() domain.Label { return domain.StepSearch }

// Execute is a no-op for job types that do not select search. Otherwise it
// runs every planned query and appends the hits, deduplicated by source, in
// plan order. It fails only when every query failed.
func (s *Search) Execute(ctx context.Context, state *domain.State) (*domain.State, error) {
	if !state.JobType.SelectsSearch() {
		return state, nil
	}

	queries := PlanQueries(state.Query, s.facets)
	hits := make([][]ports.SearchResult, len(queries))
	errs := make([]error, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.concurrency)
	for i, q := range queries {
		g.Go(func() error {
			res, err := retry.Do(gctx, s.opts.policy, func(ctx context.Context) ([]ports.SearchResult, error) {
				return s.searcher.Search(ctx, q)
			})
			hits[i], errs[i] = res, err
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for i, err := range errs {
		if err != nil {
			failed++
			s.opts.logger.WarnContext(ctx, "Search query failed", "query", queries[i], "error", err)
		}
	}
	if failed == len(queries) {
		return nil, domain.NewStepError(domain.StepSearch, errors.Join(errs...))
	}

	seen := make(map[string]bool, len(state.Documents))
	for _, d := range state.Documents {
		if d.HasSource() {
			seen[d.Source] = true
		}
	}
	added := 0
	for _, batch := range hits {
		for _, h := range batch {
			if s.maxResults > 0 && added >= s.maxResults {
				break
			}
			if h.URL != "" {
				if seen[h.URL] {
					continue
				}
				seen[h.URL] = true
			}
			state.Documents = append(state.Documents, domain.Document{
				Content: h.Snippet,
				Source:  h.URL,
				Title:   h.Title,
			})
			added++
		}
	}
	s.opts.logger.DebugContext(ctx, "Search finished", "queries", len(queries), "documents", added)
	return state, nil
}

// PlanQueries returns the bare query followed by one query per facet.
func PlanQueries(query string, facets []string) []string {
	query = strings.TrimSpace(query)
	out := []string{query}
	for _, f := range facets {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		out = append(out, query+" "+f)
	}
	return out
}
