// Package graph renders the workflow topology as a Mermaid flowchart.
package graph

import (
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/aris/pkg/domain"
)

// Overlay marks run progress on the chart.
type Overlay struct {
	Visited []domain.Label
	Current domain.Label
}

const entryID = "start"

type edge struct {
	from, to  domain.Label
	condition string
}

// Edges lists the routing decisions possible between the configured steps.
// Start is the entry pseudo-node; end and failed are the terminals.
func edges(topology []domain.Label) []edge {
	has := func(l domain.Label) bool { return slices.Contains(topology, l) }

	var out []edge
	if has(domain.StepSearch) {
		out = append(out,
			edge{entryID, domain.StepSearch, "research"},
			edge{entryID, domain.StepGenerate, "query"},
		)
		if has(domain.StepRetrieve) {
			out = append(out, edge{domain.StepSearch, domain.StepRetrieve, "unfetched sources"})
		}
		out = append(out, edge{domain.StepSearch, domain.StepGenerate, ""})
	} else {
		out = append(out, edge{entryID, domain.StepGenerate, ""})
	}
	if has(domain.StepRetrieve) {
		out = append(out, edge{domain.StepRetrieve, domain.StepGenerate, ""})
	}
	if has(domain.StepExecuteTools) {
		out = append(out,
			edge{domain.StepGenerate, domain.StepExecuteTools, "tool calls"},
			edge{domain.StepExecuteTools, domain.StepGenerate, ""},
		)
	}
	if has(domain.StepValidate) {
		out = append(out,
			edge{domain.StepGenerate, domain.StepValidate, "answer"},
			edge{domain.StepValidate, domain.StepGenerate, "rejected"},
			edge{domain.StepValidate, domain.LabelFailed, "retries exhausted"},
		)
		if has(domain.StepSynthesize) {
			out = append(out,
				edge{domain.StepValidate, domain.StepSynthesize, "passed"},
				edge{domain.StepSynthesize, domain.LabelEnd, ""},
			)
		}
	} else {
		out = append(out, edge{domain.StepGenerate, domain.LabelEnd, "answer"})
	}
	return out
}

// GenerateMermaid produces a flowchart of topology. Shapes:
//   - start, end, failed: ((Circle))
//   - execute_tools: [[Subroutine]]
//   - search, retrieve: [(Database)]
//   - other steps: [Rectangle]
func GenerateMermaid(topology []domain.Label, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	fmt.Fprintf(&sb, "    %s((\"%s\"))\n", entryID, entryID)
	for _, l := range topology {
		opener, closer := "[", "]"
		switch l {
		case domain.StepExecuteTools:
			opener, closer = "[[", "]]"
		case domain.StepSearch, domain.StepRetrieve:
			opener, closer = "[(", ")]"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", l, opener, l, closer)
	}
	fmt.Fprintf(&sb, "    %s((\"%s\"))\n", domain.LabelEnd, domain.LabelEnd)
	if slices.Contains(topology, domain.StepValidate) {
		fmt.Fprintf(&sb, "    %s((\"%s\"))\n", domain.LabelFailed, domain.LabelFailed)
	}

	for _, e := range edges(topology) {
		if e.condition == "" {
			fmt.Fprintf(&sb, "    %s --> %s\n", e.from, e.to)
			continue
		}
		fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", e.from, strings.ReplaceAll(e.condition, "\"", "'"), e.to)
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast regardless of theme
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[domain.Label]bool)
		for _, l := range overlay.Visited {
			if l == "" || seen[l] || l == overlay.Current {
				continue
			}
			seen[l] = true
			fmt.Fprintf(&sb, "    class %s visited;\n", l)
		}
		if overlay.Current != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", overlay.Current)
		}
	}

	return sb.String()
}

// OverlayFor derives an overlay from a checkpointed state: the last step is
// current, and finished runs highlight their terminal.
func OverlayFor(s *domain.State) *Overlay {
	if s == nil {
		return nil
	}
	o := &Overlay{Current: s.LastStep}
	switch s.Status {
	case domain.StatusEnded:
		o.Visited = append(o.Visited, s.LastStep)
		o.Current = domain.LabelEnd
	case domain.StatusFailed:
		o.Visited = append(o.Visited, s.LastStep)
		o.Current = domain.LabelFailed
	}
	if o.Current == "" {
		o.Current = entryID
	}
	return o
}
