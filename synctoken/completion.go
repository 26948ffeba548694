// Package synctoken provides the one-shot synchronization tokens used to
// supervise background servers: a completion token (one producer publishes a
// value exactly once, any number of consumers wait for it) and a cancellation
// token (one trigger, any number of waits can be raced against it).
package synctoken

import "sync"

// completionState is shared by the Completable/CompletionToken pair.
// The value is written before done is closed, so every waiter that returns
// from <-done observes the same value.
type completionState[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
}

// Completable is the producer half of a completion token.
// It is meant to be handed to exactly one background task.
type Completable[T any] struct {
	s *completionState[T]
}

// CompletionToken is the consumer half of a completion token.
// It can be shared freely; all waiters see the same value.
type CompletionToken[T any] struct {
	s *completionState[T]
}

// NewCompletion creates a linked producer/consumer pair in the unset state.
func NewCompletion[T any]() (*Completable[T], *CompletionToken[T]) {
	s := &completionState[T]{done: make(chan struct{})}
	return &Completable[T]{s: s}, &CompletionToken[T]{s: s}
}

// Complete publishes the value and wakes every waiter.
// Only the first call has any effect; later calls are ignored.
func (c *Completable[T]) Complete(v T) {
	c.s.once.Do(func() {
		c.s.value = v
		close(c.s.done)
	})
}

// Wait blocks until the value is published, then returns it.
// Returns immediately if the value is already set. Wait itself cannot be
// canceled; race Done() against a Cancelable at the call site if you need
// that.
func (t *CompletionToken[T]) Wait() T {
	<-t.s.done
	return t.s.value
}

// Done returns a channel that is closed once the value is published.
func (t *CompletionToken[T]) Done() <-chan struct{} {
	return t.s.done
}

// Value is a non-blocking probe. ok is false while the token is unset.
func (t *CompletionToken[T]) Value() (v T, ok bool) {
	select {
	case <-t.s.done:
		return t.s.value, true
	default:
		var zero T
		return zero, false
	}
}
