package glossary

import "time"

// Acronym is the canonical glossary entry.
type Acronym struct {
	ID          int64
	Term        string
	Expansion   string
	Description string
}

// Page is a provenance record for where an acronym was sighted.
type Page struct {
	ID        int64
	URL       string
	Title     string
	ScannedAt time.Time
}

// PageSighting links an Acronym with a Page and the context of its first
// occurrence there.
type PageSighting struct {
	ID              int64
	AcronymID       int64
	PageID          int64
	Context         string
	OccurrenceCount int
	FirstSeenAt     time.Time
}
