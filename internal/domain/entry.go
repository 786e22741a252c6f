package domain

import "time"

// Entry is one ingested article read from the FreshRSS database.
// Entries are immutable once fetched; the pipeline never writes them back.
type Entry struct {
	ID          int64
	Title       string
	Content     string
	Link        string
	PublishedAt time.Time
}

// Digest is the generated artifact of one pipeline run: a markdown body
// organized into named category sections, prefixed with a timestamped title.
type Digest struct {
	Title       string
	Body        string
	GeneratedAt time.Time
}

// Text returns the full digest text as delivered and persisted.
func (d Digest) Text() string {
	if d.Title == "" {
		return d.Body
	}
	return d.Title + "\n\n" + d.Body
}

// Category names recognized in digest section headers. The two delivery
// groups are fixed; a digest is split into at most two parts along them.
const (
	CategoryAI         = "AI"
	CategorySemi       = "Semi"
	CategorySmartphone = "Smartphone"
	CategoryOtherTech  = "Other Tech"
	CategoryWorldNews  = "World News"
	CategoryMisc       = "Misc"
)

// PartOneCategories and PartTwoCategories define the fixed reassembly order
// of the two delivery parts, independent of source order in the digest.
var (
	PartOneCategories = []string{CategoryAI, CategorySemi, CategorySmartphone}
	PartTwoCategories = []string{CategoryOtherTech, CategoryWorldNews, CategoryMisc}
)
