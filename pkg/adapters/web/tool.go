package web

import (
	"context"
	"fmt"

	"github.com/aretw0/aris/pkg/domain"
	"github.com/aretw0/aris/pkg/ports"
	"github.com/aretw0/aris/pkg/registry"
)

// FetchToolName is the name the fetch tool is registered under.
const FetchToolName = "fetch_url"

type fetchArgs struct {
	URL      string `mapstructure:"url"`
	MaxChars int    `mapstructure:"max_chars"`
}

// FetchTool exposes a Fetcher as a tool returning {title, content}.
// max_chars truncates the content (default 8000).
func FetchTool(f ports.Fetcher) registry.Tool {
	return registry.Tool{
		Definition: domain.ToolDefinition{
			Name:        FetchToolName,
			Description: "Download a web page and return its readable text.",
			Parameters:  map[string]string{"url": "string", "max_chars": "int?"},
		},
		Fn: func(ctx context.Context, args map[string]any) (any, error) {
			in, err := registry.DecodeArgs[fetchArgs](args)
			if err != nil {
				return nil, err
			}
			if in.MaxChars <= 0 {
				in.MaxChars = 8000
			}
			page, err := f.Fetch(ctx, in.URL)
			if err != nil {
				return nil, fmt.Errorf("fetch_url: %w", err)
			}
			content := []rune(page.Content)
			truncated := len(content) > in.MaxChars
			if truncated {
				content = content[:in.MaxChars]
			}
			return map[string]any{
				"title":     page.Title,
				"content":   string(content),
				"truncated": truncated,
			}, nil
		},
	}
}
