package segment

import (
	"sync"

	json "github.com/goccy/go-json"
)

// Sighting is one distinct term seen on the page with the surrounding
// context of its first occurrence.
type Sighting struct {
	Term    string `json:"term"`
	Context string `json:"context"`
}

// Report accumulates the first sighting of each distinct term. It is safe
// for concurrent use: detection for a batch runs on several goroutines.
type Report struct {
	mu    sync.Mutex
	order []string
	seen  map[string]string
}

// NewReport returns an empty report.
func NewReport() *Report {
	return &Report{seen: make(map[string]string)}
}

// Record stores term with context unless the term was already seen; the
// first occurrence wins.
func (r *Report) Record(term, context string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seen[term]; ok {
		return
	}
	r.seen[term] = context
	r.order = append(r.order, term)
}

// Len returns the number of distinct terms recorded.
func (r *Report) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// Sightings returns the recorded terms in first-seen order.
func (r *Report) Sightings() []Sighting {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Sighting, 0, len(r.order))
	for _, term := range r.order {
		out = append(out, Sighting{Term: term, Context: r.seen[term]})
	}
	return out
}

// MarshalJSON encodes the consolidated end-of-pass report.
func (r *Report) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Sightings())
}
