// Package segment rewrites the text nodes of an HTML tree so that detected
// acronyms become markable spans a presenter can attach tooltips to.
package segment

import (
	"context"
	"log"
	"strings"

	"github.com/go-shiori/dom"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/acrolens/acrolens/pkg/detect"
)

const (
	// MarkClass is the marker class carried by every markable span. It is
	// used both for rendering and to exclude the span from re-scanning.
	MarkClass = "acro-mark"
	// TermAttr carries the recognized term on the span.
	TermAttr = "data-acro-term"

	// DefaultBatchSize caps how many text nodes are scanned in flight at
	// once during a traversal.
	DefaultBatchSize = 50
)

// Elements whose text is never scanned.
var opaqueTags = map[string]struct{}{
	"script": {}, "style": {}, "code": {}, "pre": {},
}

// Segmenter turns matched text nodes into mixed plain-text/markable-span
// sequences. One Segmenter serves a whole page; its Report accumulates the
// first sighting of each distinct term across passes.
type Segmenter struct {
	BatchSize int
	// Logger is used for informational messages. nil means no logging.
	Logger *log.Logger

	report *Report
}

// NewSegmenter creates a segmenter recording first sightings into report.
// A nil report disables recording.
func NewSegmenter(report *Report) *Segmenter {
	return &Segmenter{BatchSize: DefaultBatchSize, report: report}
}

// Report returns the segmenter's first-sighting report.
func (s *Segmenter) Report() *Report { return s.report }

// Segment runs the detector over a single text node and, on at least one
// accepted match, replaces the node in place with alternating plain-text and
// markable-span fragments. Returns whether anything was marked. Nodes inside
// opaque elements or already-marked spans are left untouched.
func (s *Segmenter) Segment(node *html.Node) bool {
	if node == nil || node.Type != html.TextNode || insideExcluded(node) {
		return false
	}
	return s.apply(node, detect.Detect(node.Data))
}

// Traverse scans every eligible text node under root in batches: detection
// for a batch runs concurrently, then the batch's DOM rewrites are applied by
// this goroutine alone before the next batch starts. Returns the number of
// nodes that had at least one span marked.
func (s *Segmenter) Traverse(ctx context.Context, root *html.Node) (int, error) {
	if root == nil {
		return 0, nil
	}
	var nodes []*html.Node
	collectTextNodes(root, &nodes)

	batchSize := s.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	marked := 0
	for lo := 0; lo < len(nodes); lo += batchSize {
		hi := lo + batchSize
		if hi > len(nodes) {
			hi = len(nodes)
		}
		batch := nodes[lo:hi]

		results := make([][]detect.Match, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		for i, n := range batch {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				results[i] = detect.Detect(n.Data)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return marked, err
		}

		for i, n := range batch {
			if err := ctx.Err(); err != nil {
				return marked, err
			}
			if s.apply(n, results[i]) {
				marked++
			}
		}
	}
	return marked, nil
}

// apply splices the fragment sequence for matches into node's parent. A node
// detached since collection (parent gone) is skipped, never an error.
func (s *Segmenter) apply(node *html.Node, matches []detect.Match) bool {
	if len(matches) == 0 {
		return false
	}
	parent := node.Parent
	if parent == nil {
		if s.Logger != nil {
			s.Logger.Printf("segment: skipping detached text node (%d matches)", len(matches))
		}
		return false
	}

	text := node.Data
	prev := 0
	for _, m := range matches {
		if m.Start > prev {
			parent.InsertBefore(dom.CreateTextNode(text[prev:m.Start]), node)
		}
		parent.InsertBefore(newMarkSpan(m.Term), node)
		prev = m.End
		if s.report != nil {
			s.report.Record(m.Term, m.Context)
		}
	}
	if prev < len(text) {
		parent.InsertBefore(dom.CreateTextNode(text[prev:]), node)
	}
	parent.RemoveChild(node)
	return true
}

// newMarkSpan builds <span class="acro-mark" data-acro-term="TERM">TERM</span>.
func newMarkSpan(term string) *html.Node {
	span := dom.CreateElement("span")
	dom.SetAttribute(span, "class", MarkClass)
	dom.SetAttribute(span, TermAttr, term)
	dom.AppendChild(span, dom.CreateTextNode(term))
	return span
}

// TermOf returns the term carried by a markable span, or "" for any other
// node.
func TermOf(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	return dom.GetAttribute(n, TermAttr)
}

// IsMarked reports whether n is an element currently carrying the marker
// class.
func IsMarked(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	return hasClass(dom.GetAttribute(n, "class"), MarkClass)
}

// UnmarkAll strips the marker class from every marked span under root,
// leaving the span, its term attribute, and its text in the DOM. Returns how
// many spans were unmarked.
func UnmarkAll(root *html.Node) int {
	count := 0
	walk(root, func(n *html.Node) bool {
		if IsMarked(n) {
			dom.SetAttribute(n, "class", removeClass(dom.GetAttribute(n, "class"), MarkClass))
			count++
		}
		return true
	})
	return count
}

// MarkedSpans returns every currently marked span under root in document
// order.
func MarkedSpans(root *html.Node) []*html.Node {
	var spans []*html.Node
	walk(root, func(n *html.Node) bool {
		if IsMarked(n) {
			spans = append(spans, n)
			return false
		}
		return true
	})
	return spans
}

// collectTextNodes gathers text nodes eligible for segmentation, rejecting
// descendants of opaque elements and of already-marked spans.
func collectTextNodes(n *html.Node, out *[]*html.Node) {
	switch n.Type {
	case html.TextNode:
		if strings.TrimSpace(n.Data) != "" {
			*out = append(*out, n)
		}
		return
	case html.CommentNode, html.DoctypeNode:
		return
	case html.ElementNode:
		if _, opaque := opaqueTags[strings.ToLower(n.Data)]; opaque {
			return
		}
		if IsMarked(n) {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectTextNodes(c, out)
	}
}

// insideExcluded reports whether node sits under an opaque element or a
// marked span.
func insideExcluded(node *html.Node) bool {
	for p := node.Parent; p != nil; p = p.Parent {
		if p.Type != html.ElementNode {
			continue
		}
		if _, opaque := opaqueTags[strings.ToLower(p.Data)]; opaque {
			return true
		}
		if IsMarked(p) {
			return true
		}
	}
	return false
}

// walk visits every node under root; visit returning false prunes the
// subtree.
func walk(n *html.Node, visit func(*html.Node) bool) {
	if !visit(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

func hasClass(classAttr, class string) bool {
	for _, c := range strings.Fields(classAttr) {
		if c == class {
			return true
		}
	}
	return false
}

func removeClass(classAttr, class string) string {
	var kept []string
	for _, c := range strings.Fields(classAttr) {
		if c != class {
			kept = append(kept, c)
		}
	}
	return strings.Join(kept, " ")
}
