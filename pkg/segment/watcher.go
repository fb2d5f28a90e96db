package segment

import (
	"context"
	"log"
	"sync"

	"golang.org/x/net/html"
)

// ErrWatcherClosed is returned if an Enqueue is attempted after Close.
var ErrWatcherClosed = &WatcherError{"mutation watcher closed"}

// WatcherError provides a simple typed error for watcher operations.
type WatcherError struct{ msg string }

func (e *WatcherError) Error() string { return e.msg }

// Watcher reacts to structural insertions: every node handed to Enqueue is
// traversed in isolation, so already-processed content elsewhere in the tree
// is never re-scanned.
type Watcher struct {
	// Logger is used for traversal failures. nil means no logging.
	Logger *log.Logger

	seg     *Segmenter
	added   chan *html.Node
	wg      sync.WaitGroup
	closeMu sync.Mutex
	closed  bool
}

// NewWatcher creates a watcher feeding inserted nodes to seg. queue bounds
// how many pending insertions may be buffered before Enqueue blocks.
func NewWatcher(seg *Segmenter, queue int) *Watcher {
	if queue <= 0 {
		queue = 16
	}
	return &Watcher{seg: seg, added: make(chan *html.Node, queue)}
}

// Start begins consuming insertion notifications until ctx is done or Close
// is called. DOM rewrites happen only on this goroutine.
func (w *Watcher) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case node, ok := <-w.added:
				if !ok {
					return
				}
				if _, err := w.seg.Traverse(ctx, node); err != nil {
					if w.Logger != nil {
						w.Logger.Printf("watcher: traversal failed: %v", err)
					}
				}
			}
		}
	}()
}

// Enqueue delivers an inserted node for scanning. Returns an error if the
// watcher is closed.
func (w *Watcher) Enqueue(node *html.Node) error {
	w.closeMu.Lock()
	defer w.closeMu.Unlock()
	if w.closed {
		return ErrWatcherClosed
	}
	w.added <- node
	return nil
}

// Close stops accepting insertions and waits for in-flight traversals to
// finish.
func (w *Watcher) Close() {
	w.closeMu.Lock()
	if w.closed {
		w.closeMu.Unlock()
		return
	}
	w.closed = true
	close(w.added)
	w.closeMu.Unlock()
	w.wg.Wait()
}
