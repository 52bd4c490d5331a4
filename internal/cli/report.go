package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/aris/pkg/domain"
)

// renderReport formats a finished task as a markdown article: the query as
// the heading, the answer, then the fetched sources it drew on.
func renderReport(res domain.Result) string {
	var b strings.Builder
	title := strings.TrimSpace(res.Query)
	if title == "" {
		title = "Task " + res.TaskID
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	b.WriteString(strings.TrimSpace(res.Generation))
	b.WriteString("\n")

	if len(res.Sources) > 0 {
		b.WriteString("\n## Sources\n\n")
		for i, c := range res.Sources {
			if c.Title != "" {
				fmt.Fprintf(&b, "%d. [%s](%s)\n", i+1, c.Title, c.Source)
			} else {
				fmt.Fprintf(&b, "%d. <%s>\n", i+1, c.Source)
			}
		}
	}
	return b.String()
}

func writeReport(path string, res domain.Result) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(renderReport(res)), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
