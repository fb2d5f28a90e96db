package engine

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"golang.org/x/net/html"

	"github.com/acrolens/acrolens/pkg/resolve"
	"github.com/acrolens/acrolens/pkg/segment"
	"github.com/acrolens/acrolens/pkg/tooltip"
)

type countingExpander struct {
	calls int32
}

func (c *countingExpander) Expand(ctx context.Context, term string) (string, error) {
	atomic.AddInt32(&c.calls, 1)
	if term == "USA" {
		return "Not a tech term", nil
	}
	return term + ": explained", nil
}

type recordingRenderer struct {
	mu    sync.Mutex
	shown []string
}

func (r *recordingRenderer) Show(text string, at tooltip.Point) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shown = append(r.shown, text)
}

func (r *recordingRenderer) Hide() {}

func (r *recordingRenderer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.shown)
}

func newTestEngine(t *testing.T, body string) (*Engine, *countingExpander, *recordingRenderer) {
	t.Helper()
	doc, err := html.Parse(strings.NewReader("<html><head></head><body>" + body + "</body></html>"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	exp := &countingExpander{}
	factory := func(ctx context.Context) (resolve.Expander, error) { return exp, nil }
	renderer := &recordingRenderer{}
	return New(doc, factory, renderer), exp, renderer
}

func TestHoverResolvesOnceAndShowsTooltip(t *testing.T) {
	eng, exp, renderer := newTestEngine(t, "<p>Check the GPU and HDR settings</p>")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eng.Start(ctx)
	defer eng.Close()

	marked, err := eng.ScanPage(ctx)
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if marked != 1 {
		t.Fatalf("expected 1 marked node, got %d", marked)
	}

	spans := segment.MarkedSpans(eng.Doc)
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	var gpu *html.Node
	for _, s := range spans {
		if segment.TermOf(s) == "GPU" {
			gpu = s
		}
	}
	if gpu == nil {
		t.Fatal("no GPU span found")
	}

	anchor := tooltip.Rect{X: 0, Y: 0, W: 10, H: 1}
	eng.Hover(ctx, gpu, anchor)
	if !eng.Presenter.Visible() || eng.Presenter.Text() != "GPU: explained" {
		t.Fatalf("tooltip not shown, text %q", eng.Presenter.Text())
	}
	if n := atomic.LoadInt32(&exp.calls); n != 1 {
		t.Fatalf("expected 1 expansion call, got %d", n)
	}

	// Second hover is a synchronous cache hit: no new request.
	eng.Hover(ctx, gpu, anchor)
	if n := atomic.LoadInt32(&exp.calls); n != 1 {
		t.Errorf("cached hover issued a new request: %d calls", n)
	}
	if renderer.count() != 2 {
		t.Errorf("expected 2 renders, got %d", renderer.count())
	}
}

func TestDisableStripsMarksAndEnableRescansWarm(t *testing.T) {
	eng, exp, _ := newTestEngine(t, "<p>the GPU is busy</p>")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eng.Start(ctx)
	defer eng.Close()

	if _, err := eng.ScanPage(ctx); err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	spans := segment.MarkedSpans(eng.Doc)
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	eng.Hover(ctx, spans[0], tooltip.Rect{})
	if n := atomic.LoadInt32(&exp.calls); n != 1 {
		t.Fatalf("expected 1 expansion call, got %d", n)
	}

	if err := eng.SetEnabled(ctx, false); err != nil {
		t.Fatalf("disable failed: %v", err)
	}
	if got := len(segment.MarkedSpans(eng.Doc)); got != 0 {
		t.Fatalf("disable left %d marked spans", got)
	}
	if _, ok := eng.Coordinator.Cached("GPU"); !ok {
		t.Fatal("disable must not evict the resolution cache")
	}

	if err := eng.SetEnabled(ctx, true); err != nil {
		t.Fatalf("enable failed: %v", err)
	}
	spans = segment.MarkedSpans(eng.Doc)
	if len(spans) != 1 {
		t.Fatalf("re-enable should re-mark, got %d spans", len(spans))
	}

	// The cache is still warm: hovering the re-created span is free.
	eng.Hover(ctx, spans[0], tooltip.Rect{})
	if n := atomic.LoadInt32(&exp.calls); n != 1 {
		t.Errorf("warm-cache hover issued a new request: %d calls", n)
	}
}

func TestHoverIgnoresUnmarkedSpans(t *testing.T) {
	eng, exp, renderer := newTestEngine(t, "<p>the GPU is busy</p>")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eng.Start(ctx)
	defer eng.Close()

	if _, err := eng.ScanPage(ctx); err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	spans := segment.MarkedSpans(eng.Doc)
	if err := eng.SetEnabled(ctx, false); err != nil {
		t.Fatalf("disable failed: %v", err)
	}

	eng.Hover(ctx, spans[0], tooltip.Rect{})
	if n := atomic.LoadInt32(&exp.calls); n != 0 {
		t.Errorf("hover on a stripped span resolved anyway: %d calls", n)
	}
	if renderer.count() != 0 {
		t.Errorf("tooltip rendered while disabled")
	}
}

func TestNodeAddedScansOnlyNewContent(t *testing.T) {
	eng, _, _ := newTestEngine(t, "<div id=\"root\"><p>static GPU text</p></div>")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eng.Start(ctx)

	if _, err := eng.ScanPage(ctx); err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	// Simulate a dynamic insertion.
	inserted := &html.Node{Type: html.ElementNode, Data: "p"}
	inserted.AppendChild(&html.Node{Type: html.TextNode, Data: "dynamic HDR text"})
	root := segment.MarkedSpans(eng.Doc)[0].Parent.Parent
	root.AppendChild(inserted)

	if err := eng.NodeAdded(inserted); err != nil {
		t.Fatalf("NodeAdded failed: %v", err)
	}
	eng.Close()

	terms := map[string]bool{}
	for _, s := range segment.MarkedSpans(eng.Doc) {
		terms[segment.TermOf(s)] = true
	}
	if !terms["GPU"] || !terms["HDR"] {
		t.Errorf("expected GPU and HDR marked, got %v", terms)
	}
	if got := len(segment.MarkedSpans(eng.Doc)); got != 2 {
		t.Errorf("expected exactly 2 spans, got %d", got)
	}
}
