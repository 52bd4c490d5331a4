package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/aretw0/aris/pkg/ports"
)

// Page is one document of an in-memory corpus.
type Page struct {
	Source  string `json:"source" yaml:"source"`
	Title   string `json:"title" yaml:"title"`
	Content string `json:"content" yaml:"content"`
}

// Corpus is a fixed set of pages acting as both Searcher and Fetcher.
// It lets the engine run offline against local material.
type Corpus struct {
	pages []Page
	bySrc map[string]Page
	limit int
}

// NewCorpus creates a corpus. limit caps search hits (0 means 10).
func NewCorpus(limit int, pages ...Page) *Corpus {
	if limit <= 0 {
		limit = 10
	}
	c := &Corpus{pages: pages, bySrc: make(map[string]Page, len(pages)), limit: limit}
	for _, p := range pages {
		c.bySrc[p.Source] = p
	}
	return c
}

// Search ranks pages by how many distinct query terms they contain.
// Ties keep corpus order.
func (c *Corpus) Search(ctx context.Context, query string) ([]ports.SearchResult, error) {
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil, nil
	}

	type hit struct {
		idx   int
		score int
	}
	var hits []hit
	for i, p := range c.pages {
		text := strings.ToLower(p.Title + " " + p.Content)
		score := 0
		for _, t := range terms {
			if strings.Contains(text, t) {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, hit{idx: i, score: score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	out := make([]ports.SearchResult, 0, min(len(hits), c.limit))
	for _, h := range hits {
		if len(out) == c.limit {
			break
		}
		p := c.pages[h.idx]
		out = append(out, ports.SearchResult{URL: p.Source, Title: p.Title, Snippet: snippet(p.Content, 200)})
	}
	return out, nil
}

// Fetch returns the full page for source.
func (c *Corpus) Fetch(ctx context.Context, source string) (ports.FetchedPage, error) {
	p, ok := c.bySrc[source]
	if !ok {
		return ports.FetchedPage{}, fmt.Errorf("no page for %s", source)
	}
	return ports.FetchedPage{Title: p.Title, Content: p.Content}, nil
}

func tokenize(s string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(f) < 3 || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

func snippet(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
