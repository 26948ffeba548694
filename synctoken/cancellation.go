package synctoken

import "sync"

// cancelState is shared by the CancellationToken/Cancelable pair.
type cancelState struct {
	once sync.Once
	done chan struct{}
}

// CancellationToken is the trigger half of a cancellation token. It belongs
// to whoever has the authority to stop the system.
type CancellationToken struct {
	s *cancelState
}

// Cancelable is the observer half. It is handed to the task(s) that must
// stop, which race their blocking operations against it with AllowCancel.
type Cancelable struct {
	s *cancelState
}

// NewCancellation creates a linked trigger/observer pair in the armed state.
func NewCancellation() (*CancellationToken, *Cancelable) {
	s := &cancelState{done: make(chan struct{})}
	return &CancellationToken{s: s}, &Cancelable{s: s}
}

// Cancel requests cancellation and wakes every blocked AllowCancel.
// Idempotent; calling it any number of times is the same as calling it once.
func (t *CancellationToken) Cancel() {
	t.s.once.Do(func() {
		close(t.s.done)
	})
}

// Done returns a channel that is closed once cancellation is requested.
func (c *Cancelable) Done() <-chan struct{} {
	return c.s.done
}

// Canceled reports whether cancellation has been requested.
func (c *Cancelable) Canceled() bool {
	select {
	case <-c.s.done:
		return true
	default:
		return false
	}
}

// AllowCancel waits for a result on op unless cancellation wins the race, in
// which case fallback is returned immediately.
//
// A race that starts after Cancel has returned always resolves to fallback,
// even when op already has a result pending. When both become ready at the
// same moment either outcome is possible.
//
// AllowCancel abandons the wait, never the operation: the goroutine feeding
// op keeps running to its natural end. For that reason op must be buffered
// (capacity >= 1) so the producer can deliver its result and exit even after
// nobody is listening. Anything the abandoned operation owns (an accepted
// connection, say) must be tracked and cleaned up by the caller.
func AllowCancel[T any](c *Cancelable, op <-chan T, fallback T) T {
	select {
	case <-c.s.done:
		return fallback
	default:
	}

	select {
	case v := <-op:
		return v
	case <-c.s.done:
		return fallback
	}
}
