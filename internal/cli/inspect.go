package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/aretw0/aris/internal/presentation/graph"
	"github.com/aretw0/aris/pkg/registry"
)

// toolInfo is the JSON form of a registered tool.
type toolInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

// PrintTools lists the tool catalogue as a markdown table, or as JSON with
// parameter schemas when asJSON is set.
func PrintTools(app *App, w io.Writer, asJSON bool) error {
	defs := app.Engine.Tools()

	if asJSON {
		out := make([]toolInfo, 0, len(defs))
		for _, d := range defs {
			schema, err := registry.SchemaOf(d.Parameters)
			if err != nil {
				return fmt.Errorf("tool %s: %w", d.Name, err)
			}
			out = append(out, toolInfo{Name: d.Name, Description: d.Description, Parameters: schema})
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if len(defs) == 0 {
		_, err := fmt.Fprintln(w, "No tools registered.")
		return err
	}
	var b strings.Builder
	b.WriteString("| Tool | Parameters | Description |\n|---|---|---|\n")
	for _, d := range defs {
		params := make([]string, 0, len(d.Parameters))
		for name, typ := range d.Parameters {
			params = append(params, fmt.Sprintf("`%s: %s`", name, typ))
		}
		slices.Sort(params)
		fmt.Fprintf(&b, "| %s | %s | %s |\n", d.Name, strings.Join(params, " "), strings.ReplaceAll(d.Description, "|", "\\|"))
	}
	return newPrinter(w).Answer(b.String())
}

// PrintGraph writes the Mermaid diagram of the configured workflow.
func PrintGraph(app *App, w io.Writer) error {
	_, err := io.WriteString(w, graph.GenerateMermaid(app.Engine.Topology(), nil))
	return err
}
