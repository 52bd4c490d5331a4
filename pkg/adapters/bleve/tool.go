package bleve

import (
	"context"

	"github.com/aretw0/aris/pkg/domain"
	"github.com/aretw0/aris/pkg/registry"
)

// SearchToolName is the name the knowledge tool is registered under.
const SearchToolName = "knowledge_search"

type searchArgs struct {
	Query string `mapstructure:"query"`
	Limit int    `mapstructure:"limit"`
}

// SearchTool exposes the index as knowledge_search. Each hit carries
// source, title, a snippet and the score.
func SearchTool(idx *Index) registry.Tool {
	return registry.Tool{
		Definition: domain.ToolDefinition{
			Name:        SearchToolName,
			Description: "Search the local knowledge base. Returns matching documents with snippets.",
			Parameters:  map[string]string{"query": "string", "limit": "int?"},
		},
		Fn: func(ctx context.Context, args map[string]any) (any, error) {
			in, err := registry.DecodeArgs[searchArgs](args)
			if err != nil {
				return nil, err
			}
			hits, err := idx.Query(ctx, in.Query, in.Limit)
			if err != nil {
				return nil, err
			}
			out := make([]map[string]any, 0, len(hits))
			for _, h := range hits {
				out = append(out, map[string]any{
					"source":  h.Source,
					"title":   h.Title,
					"snippet": snippet(h.Content, 300),
					"score":   h.Score,
				})
			}
			return out, nil
		},
	}
}
