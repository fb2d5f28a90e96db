// Package resolve coordinates acronym-expansion lookups: a session-scoped
// cache, a single-flight pending registry, and the request/response channel
// to the isolated context that performs the model invocation.
package resolve

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"
)

// NotATechTerm is the literal service reply meaning the term has no useful
// expansion. Compared case-insensitively after trimming.
const NotATechTerm = "not a tech term"

// DefaultTimeout bounds how long a pending resolution may wait for the
// isolated context before settling to the empty expansion.
const DefaultTimeout = 10 * time.Second

// Channel is the outbound half of the cross-context bridge.
type Channel interface {
	Send(ctx context.Context, term string) error
}

// entry is a term's resolution state: pending (waiters set) or resolved.
type entry struct {
	resolved bool
	value    string
	waiters  []chan string
	timer    *time.Timer
}

// Coordinator maps terms to resolutions. At most one outbound request is in
// flight per term; every concurrent caller joins it and receives the same
// value. Resolved entries live for the page session and are never evicted.
type Coordinator struct {
	// Timeout replaces DefaultTimeout when positive; zero disables it.
	Timeout time.Duration
	// Logger is used for diagnostics only. nil means no logging.
	Logger *log.Logger

	mu      sync.Mutex
	entries map[string]*entry
	channel Channel
}

// NewCoordinator creates a coordinator issuing requests through ch.
func NewCoordinator(ch Channel) *Coordinator {
	return &Coordinator{
		Timeout: DefaultTimeout,
		entries: make(map[string]*entry),
		channel: ch,
	}
}

// Resolve returns the expansion for term, issuing at most one request
// through the channel no matter how many callers arrive concurrently. The
// empty string means "no useful expansion"; it is a valid cached outcome,
// never an error. Resolve does not block past the coordinator timeout or ctx.
func (c *Coordinator) Resolve(ctx context.Context, term string) string {
	c.mu.Lock()
	e, ok := c.entries[term]
	if ok && e.resolved {
		value := e.value
		c.mu.Unlock()
		return value
	}

	wait := make(chan string, 1)
	issue := false
	if ok {
		e.waiters = append(e.waiters, wait)
	} else {
		e = &entry{waiters: []chan string{wait}}
		if c.Timeout > 0 {
			e.timer = time.AfterFunc(c.Timeout, func() { c.settle(term, "") })
		}
		c.entries[term] = e
		issue = true
	}
	c.mu.Unlock()

	if issue {
		if err := c.channel.Send(ctx, term); err != nil {
			if c.Logger != nil {
				c.Logger.Printf("resolve: send %q failed: %v", term, err)
			}
			c.settle(term, "")
		}
	}

	select {
	case value := <-wait:
		return value
	case <-ctx.Done():
		return ""
	}
}

// HandleResponse settles a pending term with a raw expansion from the
// isolated context. Responses for unknown terms are ignored; a resolved
// entry is never overwritten, so late responses after a timeout are no-ops.
func (c *Coordinator) HandleResponse(term, expansion string) {
	c.settle(term, Normalize(expansion))
}

// Cached returns the resolved expansion for term, if any.
func (c *Coordinator) Cached(term string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[term]; ok && e.resolved {
		return e.value, true
	}
	return "", false
}

// settle transitions a pending entry to resolved and releases every waiter
// with the same value.
func (c *Coordinator) settle(term, value string) {
	c.mu.Lock()
	e, ok := c.entries[term]
	if !ok || e.resolved {
		c.mu.Unlock()
		return
	}
	e.resolved = true
	e.value = value
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	waiters := e.waiters
	e.waiters = nil
	c.mu.Unlock()

	for _, w := range waiters {
		w <- value
	}
}

// Normalize trims a raw expansion and maps the "not a tech term" reply, in
// any letter case, to the empty expansion.
func Normalize(expansion string) string {
	v := strings.TrimSpace(expansion)
	if strings.EqualFold(v, NotATechTerm) {
		return ""
	}
	return v
}
