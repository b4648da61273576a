package models

// Section is one story of the newsletter. Empty Insight or Action means the
// model did not provide one.
type Section struct {
	Title   string   `json:"title"`
	Body    []string `json:"body"`
	Insight string   `json:"insight,omitempty"`
	Action  string   `json:"action,omitempty"`
}

// Synthesis is the closing cross-story takeaway.
type Synthesis struct {
	Text string `json:"text"`
}

// Document is the parsed form of a generated newsletter.
type Document struct {
	Sections  []Section  `json:"sections"`
	Synthesis *Synthesis `json:"synthesis,omitempty"`
}

// IsFallback reports whether the document is the single untitled block produced
// when the generated text had no recognizable structure.
func (d Document) IsFallback() bool {
	return len(d.Sections) == 1 && d.Sections[0].Title == ""
}

// ProviderRole tells which slot of the router produced the text.
type ProviderRole string

const (
	RolePrimary   ProviderRole = "primary"
	RoleSecondary ProviderRole = "secondary"
)

// GenerationOutcome is the text returned by the one provider attempt that succeeded.
type GenerationOutcome struct {
	Text     string       `json:"text"`
	Role     ProviderRole `json:"role"`
	Provider string       `json:"provider"`
}
