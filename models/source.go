package models

// Link is a candidate headline discovered on a source page.
type Link struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// SourceResult is the outcome of fetching one configured source during a run.
type SourceResult struct {
	URL     string `json:"url"`
	Text    string `json:"text"`
	Links   []Link `json:"links"`
	Success bool   `json:"success"`
	Err     string `json:"error,omitempty"`
}

// Successful returns the results that fetched cleanly, in their original order.
func Successful(results []SourceResult) []SourceResult {
	out := make([]SourceResult, 0, len(results))
	for _, r := range results {
		if r.Success {
			out = append(out, r)
		}
	}
	return out
}
