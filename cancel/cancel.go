// Package cancel implements the one-shot CancellationToken from spec.md §3
// and §5: a signal that aborts in-flight work and is observed at fixed
// checkpoints (before HTTP dispatch, during stream consumption, between
// tool-loop iterations, inside cooperating tool executors).
package cancel

import (
	"context"
	"sync"
)

// Token is a single-shot cancellation signal. Cancel is idempotent: only
// the first call's reason is retained and listeners fire exactly once.
type Token struct {
	mu        sync.Mutex
	cancelled bool
	reason    string
	listeners []func(reason string)
	done      chan struct{}
}

// New constructs an unfired Token.
func New() *Token {
	return &Token{done: make(chan struct{})}
}

// Cancel fires the token with reason. Subsequent calls are no-ops; the
// reason recorded is always the first one observed.
func (t *Token) Cancel(reason string) {
	t.mu.Lock()
	if t.cancelled {
		t.mu.Unlock()
		return
	}
	t.cancelled = true
	t.reason = reason
	listeners := t.listeners
	t.listeners = nil
	close(t.done)
	t.mu.Unlock()

	for _, l := range listeners {
		l(reason)
	}
}

// IsCancelled reports whether Cancel has fired.
func (t *Token) IsCancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// Reason returns the reason passed to the first Cancel call, or "" if the
// token has not fired.
func (t *Token) Reason() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reason
}

// Done returns a channel closed when the token fires, suitable for use in a
// select alongside other channels (HTTP body reads, tool executor results).
func (t *Token) Done() <-chan struct{} {
	return t.done
}

// OnCancel registers a listener invoked exactly once when the token fires.
// If the token has already fired, the listener is invoked synchronously and
// immediately.
func (t *Token) OnCancel(fn func(reason string)) {
	t.mu.Lock()
	if t.cancelled {
		reason := t.reason
		t.mu.Unlock()
		fn(reason)
		return
	}
	t.listeners = append(t.listeners, fn)
	t.mu.Unlock()
}

// Context returns a context derived from parent that is cancelled when the
// token fires, bridging to the host HTTP client's abort facility.
func (t *Token) Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	t.OnCancel(func(string) { cancel() })
	return ctx, cancel
}
