package tooltip

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeResolver struct {
	mu       sync.Mutex
	values   map[string]string
	resolves int
}

func (f *fakeResolver) Resolve(ctx context.Context, term string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolves++
	return f.values[term]
}

type fakeRenderer struct {
	mu    sync.Mutex
	shown []string
	at    []Point
	hides int
}

func (f *fakeRenderer) Show(text string, at Point) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shown = append(f.shown, text)
	f.at = append(f.at, at)
}

func (f *fakeRenderer) Hide() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hides++
}

func (f *fakeRenderer) hideCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hides
}

func TestHoverShowsBelowAnchor(t *testing.T) {
	r := &fakeRenderer{}
	p := NewPresenter(&fakeResolver{values: map[string]string{"GPU": "Graphics Processing Unit"}}, r)

	p.Hover(context.Background(), "GPU", Rect{X: 10, Y: 20, W: 30, H: 16})

	if !p.Visible() {
		t.Fatal("tooltip should be visible")
	}
	if p.Text() != "Graphics Processing Unit" {
		t.Errorf("unexpected text %q", p.Text())
	}
	if len(r.shown) != 1 || r.at[0] != (Point{X: 10, Y: 36}) {
		t.Errorf("tooltip not positioned below anchor: %+v", r.at)
	}
}

func TestHoverEmptyExpansionShowsNothing(t *testing.T) {
	r := &fakeRenderer{}
	p := NewPresenter(&fakeResolver{values: map[string]string{}}, r)

	p.Hover(context.Background(), "USA", Rect{})

	if p.Visible() {
		t.Fatal("tooltip must not be shown for an empty expansion")
	}
	if len(r.shown) != 0 {
		t.Errorf("renderer was invoked: %v", r.shown)
	}
}

func TestUnhoverHidesAfterDelay(t *testing.T) {
	r := &fakeRenderer{}
	p := NewPresenter(&fakeResolver{values: map[string]string{"GPU": "gpu"}}, r)
	p.HideDelay = 20 * time.Millisecond

	p.Hover(context.Background(), "GPU", Rect{})
	p.Unhover()

	deadline := time.Now().Add(time.Second)
	for p.Visible() {
		if time.Now().After(deadline) {
			t.Fatal("tooltip never hid")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if r.hideCount() != 1 {
		t.Errorf("expected 1 hide, got %d", r.hideCount())
	}
}

func TestRehoverCancelsScheduledHide(t *testing.T) {
	r := &fakeRenderer{}
	p := NewPresenter(&fakeResolver{values: map[string]string{"GPU": "gpu", "HDR": "hdr"}}, r)
	p.HideDelay = 50 * time.Millisecond

	p.Hover(context.Background(), "GPU", Rect{})
	p.Unhover()
	// Move to an adjacent span before the delay elapses.
	time.Sleep(10 * time.Millisecond)
	p.Hover(context.Background(), "HDR", Rect{})

	time.Sleep(100 * time.Millisecond)
	if !p.Visible() {
		t.Fatal("re-hover within the delay should keep the tooltip up")
	}
	if p.Text() != "hdr" {
		t.Errorf("tooltip should show the new term, got %q", p.Text())
	}
	if r.hideCount() != 0 {
		t.Errorf("hide fired despite re-hover: %d", r.hideCount())
	}
}
