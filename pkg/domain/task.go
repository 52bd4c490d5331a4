package domain

// Task is what a caller submits to the engine.
type Task struct {
	// ID is optional. A caller that sets it (a UUID) can subscribe to the
	// run's events before submitting.
	ID      string  `json:"id,omitempty"`
	Query   string  `json:"query"`
	JobType JobType `json:"job_type"`
}

// Result is what the engine hands back once a run reaches a terminal label.
// Error is a caller-safe summary; it never carries internal details.
type Result struct {
	TaskID     string `json:"task_id"`
	Status     Status `json:"status"`
	Query      string `json:"query,omitempty"`
	Generation string `json:"generation,omitempty"`
	// Sources lists the fetched documents the answer was grounded on.
	Sources []Citation `json:"sources,omitempty"`
	Error   string     `json:"error,omitempty"`
}

// Citation names one source behind an answer.
type Citation struct {
	Source string `json:"source"`
	Title  string `json:"title,omitempty"`
}

// Succeeded reports whether the run ended in the success terminal.
func (r Result) Succeeded() bool {
	return r.Status == StatusEnded
}
