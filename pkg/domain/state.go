package domain

// JobType selects which subset of steps applies to a run.
type JobType string

const (
	// JobResearch enables the search and retrieve steps.
	JobResearch JobType = "research"
	// JobQuery goes straight to generation.
	JobQuery JobType = "query"
)

// SelectsSearch reports whether the job type enters the workflow at search.
func (j JobType) SelectsSearch() bool {
	return j == JobResearch
}

// Status is the lifecycle position of a run.
type Status string

const (
	StatusRunning Status = "running"
	StatusEnded   Status = "end"
	StatusFailed  Status = "failed"
)

// State is the single record threaded through one workflow run.
//
// Query and JobType are fixed at creation. Messages and Documents only grow.
// Generation mirrors the latest assistant output. The remaining fields are
// engine bookkeeping used by the router; they are not part of the history.
type State struct {
	TaskID  string  `json:"task_id"`
	Query   string  `json:"query"`
	JobType JobType `json:"job_type"`

	Messages   Messages          `json:"messages"`
	Documents  []Document        `json:"documents,omitempty"`
	Generation *AssistantMessage `json:"generation,omitempty"`

	// LastStep is the label of the step that produced this state ("" before the first step).
	LastStep Label `json:"last_step,omitempty"`
	// Verdict is the most recent validate outcome.
	Verdict *Verdict `json:"verdict,omitempty"`
	// ValidationFailures counts failed verdicts over the whole run.
	ValidationFailures int `json:"validation_failures,omitempty"`
	// Steps counts executed steps.
	Steps  int    `json:"steps"`
	Status Status `json:"status"`

	// Sealed holds an encrypted copy of the full state. Only encrypting
	// checkpoint stores set it; live states never carry one.
	Sealed string `json:"sealed,omitempty"`
}

// NewState creates the state for a freshly submitted task. The query is also
// recorded as the first user message.
func NewState(taskID, query string, jobType JobType) *State {
	return &State{
		TaskID:   taskID,
		Query:    query,
		JobType:  jobType,
		Messages: Messages{UserMessage{Content: query}},
		Status:   StatusRunning,
	}
}

// Clone returns a deep copy so a step can work on it without touching the
// engine's copy.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	next := *s
	next.Messages = s.Messages.Clone()
	if s.Documents != nil {
		next.Documents = make([]Document, len(s.Documents))
		copy(next.Documents, s.Documents)
	}
	if s.Generation != nil {
		gen := s.Generation.Clone()
		next.Generation = &gen
	}
	if s.Verdict != nil {
		v := *s.Verdict
		next.Verdict = &v
	}
	return &next
}

// Append adds entries to the history and returns the state for chaining.
func (s *State) Append(msgs ...Message) *State {
	s.Messages = append(s.Messages, msgs...)
	return s
}

// SetGeneration appends the assistant message and records it as the latest generation.
func (s *State) SetGeneration(msg AssistantMessage) *State {
	s.Messages = append(s.Messages, msg)
	gen := msg.Clone()
	s.Generation = &gen
	return s
}

// Citations lists the fetched documents, one per source, in the order
// they were found. Search snippets that were never retrieved are left out.
func (s *State) Citations() []Citation {
	if s == nil {
		return nil
	}
	var out []Citation
	seen := make(map[string]bool)
	for _, d := range s.Documents {
		if !d.Resolved || !d.HasSource() || seen[d.Source] {
			continue
		}
		seen[d.Source] = true
		out = append(out, Citation{Source: d.Source, Title: d.Title})
	}
	return out
}

// GenerationContent returns the text of the latest generation, or "".
func (s *State) GenerationContent() string {
	if s == nil || s.Generation == nil {
		return ""
	}
	return s.Generation.Content
}
