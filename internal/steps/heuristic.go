package steps

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/aretw0/aris/pkg/domain"
)

// DefaultKeywords mark research-flavoured content.
var DefaultKeywords = []string{"article", "research", "study", "analysis"}

// HeuristicValidator scores a generation on length, structure, word count and
// research vocabulary. It needs no model and is deterministic.
type HeuristicValidator struct {
	// Threshold is the minimum passing score (default 0.6).
	Threshold float64
	Keywords  []string
}

// NewHeuristicValidator returns a validator with the stock threshold and keywords.
func NewHeuristicValidator() *HeuristicValidator {
	return &HeuristicValidator{Threshold: 0.6, Keywords: DefaultKeywords}
}

// Validate implements ports.Validator.
func (h *HeuristicValidator) Validate(ctx context.Context, state *domain.State) (domain.Verdict, error) {
	score, missing := h.Score(state.GenerationContent())
	threshold := h.Threshold
	if threshold <= 0 {
		threshold = 0.6
	}
	v := domain.Verdict{Passed: score >= threshold, Score: score}
	if !v.Passed {
		v.Critique = fmt.Sprintf("The answer scored %.1f of a required %.1f. Improve it: %s.",
			score, threshold, strings.Join(missing, "; "))
	}
	return v, nil
}

// Score returns the content score in [0, 1] and the unmet criteria.
func (h *HeuristicValidator) Score(content string) (float64, []string) {
	var (
		score   float64
		missing []string
	)

	switch n := len(content); {
	case n > 1000:
		score += 0.3
	case n > 500:
		score += 0.2
		missing = append(missing, "expand the answer beyond 1000 characters")
	default:
		missing = append(missing, "the answer is too short")
	}

	if hasHeading(content) {
		score += 0.2
	} else {
		missing = append(missing, "add a title heading")
	}

	if len(strings.Fields(content)) > 100 {
		score += 0.3
	} else {
		missing = append(missing, "use more than 100 words")
	}

	keywords := h.Keywords
	if keywords == nil {
		keywords = DefaultKeywords
	}
	lower := strings.ToLower(content)
	found := false
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			found = true
			break
		}
	}
	if found {
		score += 0.2
	} else {
		missing = append(missing, "ground the answer in the research material")
	}

	return math.Round(score*10) / 10, missing
}

func hasHeading(content string) bool {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		return strings.HasPrefix(line, "#") || (len(line) <= 120 && !strings.ContainsAny(line, ".!?"))
	}
	return false
}
