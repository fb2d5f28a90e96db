// Package detect finds acronym-like tokens in plain text using a fixed
// lexical heuristic. It is deliberately not a language model: the rules
// below decide *what* is worth looking up, nothing more.
package detect

import (
	"regexp"
	"unicode"
	"unicode/utf8"
)

// ContextWindow is the maximum length, in runes, of the surrounding-context
// string attached to each match.
const ContextWindow = 100

// maxTermLen rejects matches longer than this many runes; anything longer is
// almost certainly shouting, not an acronym.
const maxTermLen = 12

// Match is a single accepted candidate within the scanned text.
type Match struct {
	Term    string
	Start   int // byte offset of the first byte of Term
	End     int // byte offset just past Term
	Context string
}

// Patterns are tried in order at each position; the first that matches wins.
// All are anchored so they can only match at the scan position.
var patterns = []*regexp.Regexp{
	// Plain acronyms, optionally with trailing digits/uppercase ("HTTP", "PS5", "MP3").
	regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]*`),
	// Lowercase marketing prefix ("iOS", "eBook").
	regexp.MustCompile(`^[ie][A-Z][a-zA-Z]+`),
	// Known product/framework names with an optional ".js"/"js" suffix.
	regexp.MustCompile(`^(?:Node|Web|React|Vue|Next)(?:\.?[jJ][sS])?`),
}

// skipSet holds common non-technical abbreviations that would raw-match the
// patterns above but should never produce a tooltip.
var skipSet = map[string]struct{}{
	"USA": {}, "UK": {}, "EU": {}, "UN": {},
	"Mr": {}, "Mrs": {}, "Ms": {}, "Dr": {},
	"AM": {}, "PM": {},
}

// Scanner walks a string left to right producing non-overlapping matches.
// It retains no state between texts; create a fresh Scanner per pass.
type Scanner struct {
	text string
	pos  int
	prev rune // rune immediately before pos; 0 at the start of the text
}

// NewScanner returns a scanner positioned at the start of text.
func NewScanner(text string) *Scanner {
	return &Scanner{text: text}
}

// Next returns the next accepted match, or ok=false when the text is
// exhausted. Rejected raw matches (skip-set, over-length) are passed over
// silently and scanning resumes after them.
func (s *Scanner) Next() (Match, bool) {
	for s.pos < len(s.text) {
		r, size := utf8.DecodeRuneInString(s.text[s.pos:])

		if !isWordRune(s.prev) {
			if term, end, ok := s.matchAt(s.pos); ok {
				start := s.pos
				s.advanceTo(end)
				if accepted(term) {
					return Match{
						Term:    term,
						Start:   start,
						End:     end,
						Context: contextAround(s.text, start, end),
					}, true
				}
				continue
			}
		}

		s.prev = r
		s.pos += size
	}
	return Match{}, false
}

// All drains the scanner into a slice. Convenience for callers that need the
// whole pass up front.
func (s *Scanner) All() []Match {
	var out []Match
	for {
		m, ok := s.Next()
		if !ok {
			return out
		}
		out = append(out, m)
	}
}

// Detect runs a full pass over text and returns every accepted match.
func Detect(text string) []Match {
	return NewScanner(text).All()
}

// matchAt tries each pattern at byte offset start. A raw match whose trailing
// boundary would split a larger word does not count; the next pattern gets a
// chance, mirroring regex alternation.
func (s *Scanner) matchAt(start int) (term string, end int, ok bool) {
	rest := s.text[start:]
	for _, re := range patterns {
		loc := re.FindStringIndex(rest)
		if loc == nil {
			continue
		}
		end = start + loc[1]
		if end < len(s.text) {
			next, _ := utf8.DecodeRuneInString(s.text[end:])
			if isWordRune(next) {
				continue
			}
		}
		return s.text[start:end], end, true
	}
	return "", 0, false
}

// advanceTo moves the scan position to the byte offset end, keeping prev in
// sync so the following boundary check stays correct.
func (s *Scanner) advanceTo(end int) {
	s.prev, _ = utf8.DecodeLastRuneInString(s.text[:end])
	s.pos = end
}

func accepted(term string) bool {
	if _, skip := skipSet[term]; skip {
		return false
	}
	return utf8.RuneCountInString(term) <= maxTermLen
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// contextAround widens the [start,end) byte range rune by rune on both sides
// until it spans ContextWindow runes or runs out of text.
func contextAround(text string, start, end int) string {
	need := ContextWindow - utf8.RuneCountInString(text[start:end])
	lo, hi := start, end
	for need > 0 && (lo > 0 || hi < len(text)) {
		if lo > 0 {
			_, size := utf8.DecodeLastRuneInString(text[:lo])
			lo -= size
			need--
			if need == 0 {
				break
			}
		}
		if hi < len(text) {
			_, size := utf8.DecodeRuneInString(text[hi:])
			hi += size
			need--
		}
	}
	return text[lo:hi]
}
