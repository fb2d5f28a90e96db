// Package tooltip owns the single shared tooltip: one element per page,
// reused across all terms, with a debounced hide so moving between adjacent
// marked spans does not flicker.
package tooltip

import (
	"context"
	"sync"
	"time"
)

// DefaultHideDelay is how long Unhover waits before actually hiding, unless
// a re-hover cancels it.
const DefaultHideDelay = 200 * time.Millisecond

// Point is a page coordinate.
type Point struct{ X, Y int }

// Rect is the bounding box of a hovered element.
type Rect struct{ X, Y, W, H int }

// Below returns the anchor point just under the box.
func (r Rect) Below() Point { return Point{X: r.X, Y: r.Y + r.H} }

// Resolver yields the expansion for a term; the empty string means "show
// nothing".
type Resolver interface {
	Resolve(ctx context.Context, term string) string
}

// Renderer draws the shared tooltip element. Styling and the concrete
// surface are the renderer's business, not the presenter's.
type Renderer interface {
	Show(text string, at Point)
	Hide()
}

// Presenter mediates between hover events and the resolver. It owns the
// tooltip state exclusively.
type Presenter struct {
	// HideDelay replaces DefaultHideDelay when positive.
	HideDelay time.Duration

	resolver Resolver
	renderer Renderer

	mu        sync.Mutex
	visible   bool
	text      string
	hideTimer *time.Timer
}

// NewPresenter creates a presenter drawing through renderer.
func NewPresenter(resolver Resolver, renderer Renderer) *Presenter {
	return &Presenter{HideDelay: DefaultHideDelay, resolver: resolver, renderer: renderer}
}

// Hover cancels any scheduled hide, resolves term (triggering a lookup only
// if the cache is cold), and shows the tooltip just below anchor when the
// expansion is non-empty. An empty expansion shows nothing.
func (p *Presenter) Hover(ctx context.Context, term string, anchor Rect) {
	p.cancelHide()

	expansion := p.resolver.Resolve(ctx, term)
	if expansion == "" {
		return
	}

	p.mu.Lock()
	p.visible = true
	p.text = expansion
	p.mu.Unlock()
	p.renderer.Show(expansion, anchor.Below())
}

// Unhover schedules the tooltip to hide after the delay. A Hover arriving
// before the delay elapses keeps it up.
func (p *Presenter) Unhover() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.hideTimer != nil {
		p.hideTimer.Stop()
	}
	delay := p.HideDelay
	if delay <= 0 {
		delay = DefaultHideDelay
	}
	p.hideTimer = time.AfterFunc(delay, p.hide)
}

// Visible reports whether the tooltip is currently shown.
func (p *Presenter) Visible() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible
}

// Text returns the currently shown expansion, or "".
func (p *Presenter) Text() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.text
}

func (p *Presenter) hide() {
	p.mu.Lock()
	p.visible = false
	p.text = ""
	p.hideTimer = nil
	p.mu.Unlock()
	p.renderer.Hide()
}

func (p *Presenter) cancelHide() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.hideTimer != nil {
		p.hideTimer.Stop()
		p.hideTimer = nil
	}
}
