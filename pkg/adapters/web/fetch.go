package web

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aretw0/aris/internal/logging"
	"github.com/aretw0/aris/pkg/ports"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	DefaultUserAgent    = "Mozilla/5.0 (compatible; aris/1.0)"
	DefaultMaxBodyBytes = 2 << 20
	DefaultFetchTimeout = 20 * time.Second
)

// Fetcher downloads pages over HTTP(S) and extracts their readable text.
type Fetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
	logger    *slog.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

func WithFetchClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) {
		if c != nil {
			f.client = c
		}
	}
}

func WithUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxBodyBytes truncates bodies beyond n bytes.
func WithMaxBodyBytes(n int64) FetcherOption {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBytes = n
		}
	}
}

func WithFetchLogger(l *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewFetcher creates a fetcher.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:    &http.Client{Timeout: DefaultFetchTimeout},
		userAgent: DefaultUserAgent,
		maxBytes:  DefaultMaxBodyBytes,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

var _ ports.Fetcher = (*Fetcher)(nil)

// Fetch retrieves source. HTML is reduced to text; plain text and JSON are
// returned as is; other media types are refused.
func (f *Fetcher) Fetch(ctx context.Context, source string) (ports.FetchedPage, error) {
	u, err := url.Parse(source)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ports.FetchedPage{}, fmt.Errorf("unsupported source %q", source)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return ports.FetchedPage{}, err
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,text/plain;q=0.9,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return ports.FetchedPage{}, fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ports.FetchedPage{}, fmt.Errorf("fetch %s: %s", source, resp.Status)
	}

	body := io.LimitReader(resp.Body, f.maxBytes)
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	switch {
	case mediaType == "" || mediaType == "text/html" || mediaType == "application/xhtml+xml":
		page, err := ExtractText(body)
		if err != nil {
			return ports.FetchedPage{}, fmt.Errorf("parse %s: %w", source, err)
		}
		f.logger.DebugContext(ctx, "Fetched page", "source", source, "chars", len(page.Content))
		return page, nil
	case strings.HasPrefix(mediaType, "text/") || mediaType == "application/json":
		data, err := io.ReadAll(body)
		if err != nil {
			return ports.FetchedPage{}, fmt.Errorf("read %s: %w", source, err)
		}
		return ports.FetchedPage{Content: strings.TrimSpace(string(data))}, nil
	default:
		return ports.FetchedPage{}, fmt.Errorf("fetch %s: unsupported content type %s", source, mediaType)
	}
}

var skipped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Svg:      true,
	atom.Nav:      true,
	atom.Footer:   true,
	atom.Header:   true,
	atom.Aside:    true,
	atom.Form:     true,
	atom.Iframe:   true,
}

var blocks = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Section: true, atom.Article: true, atom.Main: true,
	atom.Br: true, atom.Li: true, atom.Ul: true, atom.Ol: true, atom.Tr: true,
	atom.Table: true, atom.Blockquote: true, atom.Pre: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
}

// ExtractText parses an HTML document and returns its title and visible
// text, one paragraph per line. Navigation chrome and scripts are dropped.
func ExtractText(r io.Reader) (ports.FetchedPage, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return ports.FetchedPage{}, err
	}

	var page ports.FetchedPage
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if n.DataAtom == atom.Title && page.Title == "" {
				page.Title = strings.TrimSpace(textOf(n))
				return
			}
			if skipped[n.DataAtom] {
				return
			}
		}
		if n.Type == html.TextNode {
			if text := strings.Join(strings.Fields(n.Data), " "); text != "" {
				if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
					b.WriteByte(' ')
				}
				b.WriteString(text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blocks[n.DataAtom] && b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
			b.WriteByte('\n')
		}
	}
	walk(doc)

	page.Content = strings.TrimSpace(b.String())
	return page, nil
}

func textOf(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}
