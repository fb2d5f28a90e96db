package glossary

import (
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// ErrWriterClosed is returned if a Submit is attempted after Close.
var ErrWriterClosed = &WriterError{"glossary writer closed"}

// WriterError provides a simple typed error for writer operations.
type WriterError struct{ msg string }

func (e *WriterError) Error() string { return e.msg }

// WriteFunc is a callback that performs database writes inside a transaction.
type WriteFunc func(tx *sql.Tx) error

// Writer buffers glossary writes and commits them in batched transactions,
// so a page scan producing hundreds of sightings does not pay per-row
// transaction cost.
type Writer struct {
	mu     sync.Mutex
	db     *sql.DB
	buf    []WriteFunc
	cap    int
	ticker *time.Ticker
	closed bool

	commitCh chan []WriteFunc
	done     chan struct{}
	wg       sync.WaitGroup

	errMu   sync.Mutex
	lastErr error
}

// NewWriter creates a writer flushing every batchSize submissions, or after
// flushInterval (0 disables the timer).
func NewWriter(db *sql.DB, batchSize int, flushInterval time.Duration) *Writer {
	if batchSize <= 0 {
		batchSize = 10
	}
	w := &Writer{
		db:       db,
		buf:      make([]WriteFunc, 0, batchSize),
		cap:      batchSize,
		commitCh: make(chan []WriteFunc, 2),
		done:     make(chan struct{}),
	}

	w.wg.Add(1)
	go w.committer()

	if flushInterval > 0 {
		w.ticker = time.NewTicker(flushInterval)
		w.wg.Add(1)
		go w.tickLoop()
	}
	return w
}

// Submit enqueues a write. Backpressure: when the committer lags, Submit
// blocks on the full commit channel.
func (w *Writer) Submit(fn WriteFunc) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}
	w.buf = append(w.buf, fn)
	if len(w.buf) >= w.cap {
		w.flushLocked()
	}
	return nil
}

// flushLocked assumes w.mu is held.
func (w *Writer) flushLocked() {
	if len(w.buf) == 0 {
		return
	}
	batch := w.buf
	w.buf = make([]WriteFunc, 0, w.cap)
	w.commitCh <- batch
}

func (w *Writer) tickLoop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case <-w.ticker.C:
			w.mu.Lock()
			w.flushLocked()
			w.mu.Unlock()
		}
	}
}

func (w *Writer) committer() {
	defer w.wg.Done()
	for batch := range w.commitCh {
		if err := w.commit(batch); err != nil {
			w.errMu.Lock()
			if w.lastErr == nil {
				w.lastErr = err
			}
			w.errMu.Unlock()
		}
	}
}

func (w *Writer) commit(batch []WriteFunc) error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("begin batch tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // ignored if committed
	}()

	for _, fn := range batch {
		if err := fn(tx); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch (%d items): %w", len(batch), err)
	}
	return nil
}

// Close flushes the remaining buffer, waits for pending commits, and returns
// the first error seen during asynchronous flushing, if any.
func (w *Writer) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWriterClosed
	}
	w.closed = true
	if w.ticker != nil {
		w.ticker.Stop()
	}
	close(w.done)
	w.flushLocked()
	w.mu.Unlock()

	close(w.commitCh)
	w.wg.Wait()

	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.lastErr
}
