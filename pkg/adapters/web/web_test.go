package web

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aretw0/aris/pkg/ports"
	"github.com/aretw0/aris/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearcher(t *testing.T) {
	var gotQuery, gotFormat string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search", r.URL.Path)
		gotQuery = r.URL.Query().Get("q")
		gotFormat = r.URL.Query().Get("format")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"results": [
			{"url": "https://a.example/1", "title": "A", "content": "first"},
			{"url": "", "title": "no url"},
			{"url": "https://a.example/1", "title": "dup"},
			{"url": "https://b.example/2", "title": "B", "content": "second"},
			{"url": "https://c.example/3", "title": "C"}
		]}`)
	}))
	defer srv.Close()

	s, err := NewSearcher(srv.URL+"/", WithMaxResults(2))
	require.NoError(t, err)

	res, err := s.Search(context.Background(), "go concurrency")
	require.NoError(t, err)
	assert.Equal(t, "go concurrency", gotQuery)
	assert.Equal(t, "json", gotFormat)
	assert.Equal(t, []ports.SearchResult{
		{URL: "https://a.example/1", Title: "A", Snippet: "first"},
		{URL: "https://b.example/2", Title: "B", Snippet: "second"},
	}, res)
}

func TestSearcher_Errors(t *testing.T) {
	_, err := NewSearcher("not a url")
	assert.Error(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "broken" {
			fmt.Fprint(w, "{")
			return
		}
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s, err := NewSearcher(srv.URL)
	require.NoError(t, err)

	_, err = s.Search(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "rate limited")

	_, err = s.Search(context.Background(), "broken")
	assert.ErrorContains(t, err, "decode")
}

const samplePage = `<!DOCTYPE html>
<html><head><title> Goroutines explained </title>
<style>body { color: red }</style>
<script>var tracking = 1;</script></head>
<body>
<nav><a href="/">Home</a> | <a href="/about">About</a></nav>
<article>
<h1>Goroutines</h1>
<p>A goroutine is a   lightweight thread
managed by the Go runtime.</p>
<ul><li>cheap</li><li>multiplexed</li></ul>
</article>
<footer>Copyright</footer>
</body></html>`

func TestExtractText(t *testing.T) {
	page, err := ExtractText(strings.NewReader(samplePage))
	require.NoError(t, err)

	assert.Equal(t, "Goroutines explained", page.Title)
	assert.Equal(t, "Goroutines\nA goroutine is a lightweight thread managed by the Go runtime.\ncheap\nmultiplexed", page.Content)
}

func TestFetcher(t *testing.T) {
	var gotUA string
	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, samplePage)
	})
	mux.HandleFunc("/plain", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, "  just text \n")
	})
	mux.HandleFunc("/image", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte{0x89, 'P', 'N', 'G'})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := NewFetcher(WithUserAgent("test-agent"))
	ctx := context.Background()

	page, err := f.Fetch(ctx, srv.URL+"/page")
	require.NoError(t, err)
	assert.Equal(t, "test-agent", gotUA)
	assert.Equal(t, "Goroutines explained", page.Title)
	assert.Contains(t, page.Content, "lightweight thread")
	assert.NotContains(t, page.Content, "tracking")
	assert.NotContains(t, page.Content, "Copyright")

	page, err = f.Fetch(ctx, srv.URL+"/plain")
	require.NoError(t, err)
	assert.Equal(t, "just text", page.Content)

	_, err = f.Fetch(ctx, srv.URL+"/image")
	assert.ErrorContains(t, err, "unsupported content type")

	_, err = f.Fetch(ctx, srv.URL+"/missing")
	assert.ErrorContains(t, err, "404")

	_, err = f.Fetch(ctx, "file:///etc/passwd")
	assert.ErrorContains(t, err, "unsupported source")
}

func TestFetchTool(t *testing.T) {
	fetcher := ports.FetcherFunc(func(ctx context.Context, source string) (ports.FetchedPage, error) {
		if source != "https://x.example" {
			return ports.FetchedPage{}, fmt.Errorf("no page")
		}
		return ports.FetchedPage{Title: "X", Content: "abcdefghij"}, nil
	})
	reg, err := registry.New(FetchTool(fetcher))
	require.NoError(t, err)

	out, err := reg.Execute(context.Background(), FetchToolName, map[string]any{"url": "https://x.example", "max_chars": float64(4)})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"title": "X", "content": "abcd", "truncated": true}, out)

	_, err = reg.Execute(context.Background(), FetchToolName, map[string]any{"url": "https://y.example"})
	assert.ErrorContains(t, err, "fetch_url")

	_, err = reg.Execute(context.Background(), FetchToolName, map[string]any{})
	assert.Error(t, err)
}
