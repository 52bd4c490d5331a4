package steps

import (
	"context"

	"github.com/aretw0/aris/pkg/domain"
	"github.com/aretw0/aris/pkg/ports"
	"github.com/aretw0/aris/pkg/retry"
	"golang.org/x/sync/errgroup"
)

// Retrieve replaces the snippet of every sourced document with the fetched page.
type Retrieve struct {
	fetcher ports.Fetcher
	opts    options
}

// NewRetrieve creates the retrieve step.
func NewRetrieve(fetcher ports.Fetcher, opts ...Option) *Retrieve {
	return &Retrieve{fetcher: fetcher, opts: buildOptions(domain.StepRetrieve, opts)}
}

func (r *Retrieve) Name() domain.Label { return domain.StepRetrieve }

// Execute fetches every document that names an unresolved source. A failed
// fetch is logged once and leaves its document untouched; it never aborts
// the others. Documents without a source are never handed to the fetcher.
func (r *Retrieve) Execute(ctx context.Context, state *domain.State) (*domain.State, error) {
	type fetched struct {
		page ports.FetchedPage
		err  error
		ran  bool
	}
	results := make([]fetched, len(state.Documents))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.concurrency)
	for i, doc := range state.Documents {
		if !doc.NeedsFetch() {
			continue
		}
		g.Go(func() error {
			page, err := retry.Do(gctx, r.opts.policy, func(ctx context.Context) (ports.FetchedPage, error) {
				return r.fetcher.Fetch(ctx, doc.Source)
			})
			results[i] = fetched{page: page, err: err, ran: true}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, domain.NewStepError(domain.StepRetrieve, err)
	}

	ok := 0
	for i, res := range results {
		if !res.ran {
			continue
		}
		doc := &state.Documents[i]
		if res.err != nil {
			r.opts.logger.WarnContext(ctx, "Fetch failed, keeping document unchanged",
				"index", i,
				"source", doc.Source,
				"error", res.err,
			)
			continue
		}
		if res.page.Content != "" {
			doc.Content = res.page.Content
		}
		if doc.Title == "" {
			doc.Title = res.page.Title
		}
		doc.Resolved = true
		ok++
	}
	r.opts.logger.DebugContext(ctx, "Retrieve finished", "fetched", ok, "documents", len(state.Documents))
	return state, nil
}
