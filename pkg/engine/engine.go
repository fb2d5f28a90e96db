// Package engine wires the page-scoped singletons together: one Engine per
// page load owns the segmenter, mutation watcher, resolution coordinator,
// bridge, and tooltip presenter, so no component relies on hidden globals.
package engine

import (
	"context"
	"log"
	"sync"

	"github.com/go-shiori/dom"
	"golang.org/x/net/html"

	"github.com/acrolens/acrolens/pkg/resolve"
	"github.com/acrolens/acrolens/pkg/segment"
	"github.com/acrolens/acrolens/pkg/tooltip"
)

// Engine is the per-page context object.
type Engine struct {
	// Logger is shared with the owned components. nil means no logging.
	Logger *log.Logger

	Doc         *html.Node
	Segmenter   *segment.Segmenter
	Watcher     *segment.Watcher
	Coordinator *resolve.Coordinator
	Presenter   *tooltip.Presenter

	bridge *resolve.Bridge

	mu      sync.Mutex
	enabled bool
}

// New builds an engine for doc. factory creates the isolated-context model
// session on first request; renderer draws the tooltip. The engine starts
// enabled.
func New(doc *html.Node, factory resolve.ExpanderFactory, renderer tooltip.Renderer) *Engine {
	seg := segment.NewSegmenter(segment.NewReport())
	bridge := resolve.NewBridge(factory, 16)
	coord := resolve.NewCoordinator(bridge)
	return &Engine{
		Doc:         doc,
		Segmenter:   seg,
		Watcher:     segment.NewWatcher(seg, 16),
		Coordinator: coord,
		Presenter:   tooltip.NewPresenter(coord, renderer),
		bridge:      bridge,
		enabled:     true,
	}
}

// Start launches the bridge's isolated context and the mutation watcher.
func (e *Engine) Start(ctx context.Context) {
	e.bridge.Logger = e.Logger
	e.Watcher.Logger = e.Logger
	e.Segmenter.Logger = e.Logger
	e.Coordinator.Logger = e.Logger
	e.bridge.Start(ctx, e.Coordinator.HandleResponse)
	e.Watcher.Start(ctx)
}

// Close shuts down the watcher and the bridge, draining in-flight work.
func (e *Engine) Close() {
	e.Watcher.Close()
	e.bridge.Close()
}

// Report returns the consolidated first-sighting report.
func (e *Engine) Report() *segment.Report { return e.Segmenter.Report() }

// ScanPage segments every eligible text node under the page body (the whole
// document when no body exists). Returns the number of nodes marked.
func (e *Engine) ScanPage(ctx context.Context) (int, error) {
	if !e.Enabled() {
		return 0, nil
	}
	return e.Segmenter.Traverse(ctx, e.root())
}

// NodeAdded reports a structural insertion; the watcher re-scans exactly
// that node.
func (e *Engine) NodeAdded(node *html.Node) error {
	if !e.Enabled() {
		return nil
	}
	return e.Watcher.Enqueue(node)
}

// Hover resolves the span's term and shows the tooltip when the expansion is
// non-empty. Spans without a term, or no longer marked, show nothing.
func (e *Engine) Hover(ctx context.Context, span *html.Node, anchor tooltip.Rect) {
	if !e.Enabled() || !segment.IsMarked(span) {
		return
	}
	term := segment.TermOf(span)
	if term == "" {
		return
	}
	e.Presenter.Hover(ctx, term, anchor)
}

// Unhover schedules the tooltip to hide.
func (e *Engine) Unhover() { e.Presenter.Unhover() }

// Enabled reports the current settings toggle.
func (e *Engine) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled
}

// SetEnabled applies the settings-changed event. Disabling strips the marker
// class from every marked span, leaving the DOM structure and the resolution
// cache intact. Re-enabling re-runs the full-page traversal; already-resolved
// terms are served from the warm cache without new requests.
func (e *Engine) SetEnabled(ctx context.Context, enabled bool) error {
	e.mu.Lock()
	if e.enabled == enabled {
		e.mu.Unlock()
		return nil
	}
	e.enabled = enabled
	e.mu.Unlock()

	if !enabled {
		n := segment.UnmarkAll(e.root())
		if e.Logger != nil {
			e.Logger.Printf("engine: disabled, unmarked %d spans", n)
		}
		return nil
	}
	_, err := e.Segmenter.Traverse(ctx, e.root())
	return err
}

// root returns the body element when present, else the document itself.
func (e *Engine) root() *html.Node {
	if bodies := dom.GetElementsByTagName(e.Doc, "body"); len(bodies) > 0 {
		return bodies[0]
	}
	return e.Doc
}
