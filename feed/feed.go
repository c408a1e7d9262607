// Package feed defines the paper data model and retrieves daily arXiv
// category feeds.
package feed

import "context"

// Paper is a single paper entry from a daily feed. Created at fetch time and
// never mutated afterwards.
type Paper struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Authors        []string `json:"authors"`
	Abstract       string   `json:"abstract"`
	PrimarySubject string   `json:"primary_subject"`
	Label          string   `json:"label"`
	AbsURL         string   `json:"abs_url"`
	PDFURL         string   `json:"pdf_url"`
	HTMLURL        string   `json:"html_url"`
}

// Feed is one retrieval result for a category. Bozo marks a malformed
// upstream document whose parseable entries were still extracted.
type Feed struct {
	Category        string
	Updated         string // upstream-reported timestamp, verbatim
	Bozo            bool
	NewSubmissions  []Paper
	CrossLists      []Paper
	NumReplacements int
}

// Total counts every announced item including replacements.
func (f *Feed) Total() int {
	return len(f.NewSubmissions) + len(f.CrossLists) + f.NumReplacements
}

// EntryCount counts the entries carried in the feed body.
func (f *Feed) EntryCount() int {
	return len(f.NewSubmissions) + len(f.CrossLists)
}

// Retriever fetches the daily feed for one category. The alias table maps
// requested category names to the names the upstream service publishes under.
type Retriever interface {
	Retrieve(ctx context.Context, category string, aliases map[string]string) (*Feed, error)
}
