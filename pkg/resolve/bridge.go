package resolve

import (
	"context"
	"log"
	"sync"

	json "github.com/goccy/go-json"
)

// Wire message types exchanged with the isolated context.
const (
	TypeExpandRequest   = "EXPAND_ACRONYM"
	TypeExpansionResult = "EXPANSION_RESULT"
)

// Request is the outbound envelope asking the isolated context to expand a
// term.
type Request struct {
	Type string `json:"type"`
	Term string `json:"term"`
}

// Response is the inbound envelope carrying an expansion, correlated back to
// a pending entry by term.
type Response struct {
	Type      string `json:"type"`
	Term      string `json:"term"`
	Expansion string `json:"expansion"`
}

// Expander is the isolated context's view of the AI expansion service.
type Expander interface {
	Expand(ctx context.Context, term string) (string, error)
}

// ExpanderFactory creates the underlying model session. The bridge calls it
// lazily: the first request pays the initialization cost, later requests
// reuse the session.
type ExpanderFactory func(ctx context.Context) (Expander, error)

// ErrBridgeClosed is returned if a Send is attempted after Close.
var ErrBridgeClosed = &BridgeError{"bridge closed"}

// BridgeError provides a simple typed error for bridge operations.
type BridgeError struct{ msg string }

func (e *BridgeError) Error() string { return e.msg }

// Bridge is an in-process request/response channel to an isolated goroutine
// owning the model session. Messages cross in their JSON wire form on both
// directions, so the bridge can be swapped for any transport speaking the
// same envelopes. Every request gets a response: expander errors, session
// init failures, and malformed envelopes all surface as empty expansions.
type Bridge struct {
	// Logger is used for diagnostics only. nil means no logging.
	Logger *log.Logger

	factory  ExpanderFactory
	requests chan []byte
	wg       sync.WaitGroup

	closeMu sync.Mutex
	closed  bool

	sessMu  sync.Mutex
	session Expander
}

// NewBridge creates a bridge whose isolated context builds its expander via
// factory. queue bounds how many requests may be buffered before Send blocks.
func NewBridge(factory ExpanderFactory, queue int) *Bridge {
	if queue <= 0 {
		queue = 16
	}
	return &Bridge{factory: factory, requests: make(chan []byte, queue)}
}

// Start launches the isolated context. Settled expansions are delivered
// through deliver, keyed by term; the coordinator's HandleResponse is the
// intended receiver.
func (b *Bridge) Start(ctx context.Context, deliver func(term, expansion string)) {
	b.wg.Add(1)
	go b.run(ctx, deliver)
}

// Send marshals an EXPAND_ACRONYM envelope for term and queues it for the
// isolated context.
func (b *Bridge) Send(ctx context.Context, term string) error {
	raw, err := json.Marshal(Request{Type: TypeExpandRequest, Term: term})
	if err != nil {
		return err
	}
	b.closeMu.Lock()
	defer b.closeMu.Unlock()
	if b.closed {
		return ErrBridgeClosed
	}
	select {
	case b.requests <- raw:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting requests and waits for the isolated context to
// drain.
func (b *Bridge) Close() {
	b.closeMu.Lock()
	if b.closed {
		b.closeMu.Unlock()
		return
	}
	b.closed = true
	close(b.requests)
	b.closeMu.Unlock()
	b.wg.Wait()
}

func (b *Bridge) run(ctx context.Context, deliver func(term, expansion string)) {
	defer b.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-b.requests:
			if !ok {
				return
			}
			var req Request
			if err := json.Unmarshal(raw, &req); err != nil || req.Type != TypeExpandRequest {
				if b.Logger != nil {
					b.Logger.Printf("bridge: dropping malformed request %q: %v", raw, err)
				}
				continue
			}

			out, err := json.Marshal(Response{
				Type:      TypeExpansionResult,
				Term:      req.Term,
				Expansion: b.expand(ctx, req.Term),
			})
			if err != nil {
				if b.Logger != nil {
					b.Logger.Printf("bridge: encoding response for %q failed: %v", req.Term, err)
				}
				continue
			}
			var resp Response
			if err := json.Unmarshal(out, &resp); err != nil || resp.Type != TypeExpansionResult {
				if b.Logger != nil {
					b.Logger.Printf("bridge: dropping malformed response %q: %v", out, err)
				}
				continue
			}
			deliver(resp.Term, resp.Expansion)
		}
	}
}

// expand resolves term against the lazily created session. Any failure
// yields the empty expansion rather than an unanswered request.
func (b *Bridge) expand(ctx context.Context, term string) string {
	exp, err := b.getSession(ctx)
	if err != nil {
		if b.Logger != nil {
			b.Logger.Printf("bridge: session init failed for %q: %v", term, err)
		}
		return ""
	}
	value, err := exp.Expand(ctx, term)
	if err != nil {
		if b.Logger != nil {
			b.Logger.Printf("bridge: expand %q failed: %v", term, err)
		}
		return ""
	}
	return value
}

// getSession returns the shared expander, creating it on first use. A failed
// creation is retried on the next request rather than poisoning the bridge.
func (b *Bridge) getSession(ctx context.Context) (Expander, error) {
	b.sessMu.Lock()
	defer b.sessMu.Unlock()
	if b.session != nil {
		return b.session, nil
	}
	session, err := b.factory(ctx)
	if err != nil {
		return nil, err
	}
	b.session = session
	return session, nil
}
