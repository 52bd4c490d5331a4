package domain

// Verdict is the outcome of the validate step. It is read only by the router
// and, through the critique, by the next generate step.
type Verdict struct {
	Passed   bool    `json:"passed"`
	Score    float64 `json:"score"`
	Critique string  `json:"critique,omitempty"`
}
