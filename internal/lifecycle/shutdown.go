// Package lifecycle holds the shutdown-flag primitive shared by the
// extractor (producer) and orchestrator (consumer) without creating an
// import cycle between those packages.
package lifecycle

import "sync"

// ShutdownFlag is a single flag owned by the orchestrator, set by the
// producer after it has pushed its last item and observed the queue
// drained, and read by the consumer to know end-of-stream.
//
// It is backed by a closed channel rather than a hand-rolled atomic.Bool:
// closing a channel already gives Go's happens-before guarantee for free —
// every write that happened before the close is visible to any goroutine
// that observes the close — which is exactly the Release/Acquire ordering
// the shutdown handoff requires, without needing explicit memory-order
// annotations.
type ShutdownFlag struct {
	once sync.Once
	ch   chan struct{}
}

// NewShutdownFlag creates an unset flag.
func NewShutdownFlag() *ShutdownFlag {
	return &ShutdownFlag{ch: make(chan struct{})}
}

// Set marks the flag, idempotently.
func (f *ShutdownFlag) Set() {
	f.once.Do(func() { close(f.ch) })
}

// IsSet reports whether Set has been called, without blocking.
func (f *ShutdownFlag) IsSet() bool {
	select {
	case <-f.ch:
		return true
	default:
		return false
	}
}

// Done returns a channel closed exactly when Set is called, for use in a
// select alongside context cancellation.
func (f *ShutdownFlag) Done() <-chan struct{} { return f.ch }
