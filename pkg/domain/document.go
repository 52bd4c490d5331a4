package domain

// Document is a unit of retrieved or derived content.
type Document struct {
	// Content is the body of the document. Search fills it with a snippet,
	// Retrieve replaces it with the fetched page.
	Content string `json:"content"`
	// Source is the provenance reference (usually a URL). Documents without
	// a source are never handed to the retrieve step.
	Source string `json:"source,omitempty"`
	Title  string `json:"title,omitempty"`
	// Resolved is set once the source has been fetched.
	Resolved bool `json:"resolved,omitempty"`
}

// HasSource reports whether the document names a fetchable source.
func (d Document) HasSource() bool {
	return d.Source != ""
}

// NeedsFetch reports whether the retrieve step should process the document.
func (d Document) NeedsFetch() bool {
	return d.HasSource() && !d.Resolved
}
