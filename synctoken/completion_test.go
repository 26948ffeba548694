package synctoken

import (
	"sync"
	"testing"
	"time"
)

func TestCompletion_WaitAfterComplete(t *testing.T) {
	t.Parallel()

	completable, token := NewCompletion[int]()
	completable.Complete(42)

	if got := token.Wait(); got != 42 {
		t.Fatalf("Wait() = %d, want 42", got)
	}
	// Waiting again must keep returning the same value.
	if got := token.Wait(); got != 42 {
		t.Fatalf("second Wait() = %d, want 42", got)
	}
}

func TestCompletion_WaitBeforeComplete(t *testing.T) {
	t.Parallel()

	completable, token := NewCompletion[string]()

	got := make(chan string, 1)
	go func() {
		got <- token.Wait()
	}()

	// Give the waiter a chance to block first.
	time.Sleep(10 * time.Millisecond)
	completable.Complete("ready")

	select {
	case v := <-got:
		if v != "ready" {
			t.Fatalf("Wait() = %q, want %q", v, "ready")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiter was not woken by Complete")
	}
}

func TestCompletion_ManyWaitersSameValue(t *testing.T) {
	t.Parallel()

	const waiters = 32

	completable, token := NewCompletion[int]()

	var wg sync.WaitGroup
	results := make([]int, waiters)
	for i := 0; i < waiters; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = token.Wait()
		}()
	}

	completable.Complete(7)
	wg.Wait()

	for i, v := range results {
		if v != 7 {
			t.Fatalf("waiter %d observed %d, want 7", i, v)
		}
	}
}

func TestCompletion_SecondCompleteHasNoEffect(t *testing.T) {
	t.Parallel()

	completable, token := NewCompletion[int]()
	completable.Complete(1)
	completable.Complete(2)

	if got := token.Wait(); got != 1 {
		t.Fatalf("Wait() = %d, want the first completed value 1", got)
	}
}

func TestCompletion_Value(t *testing.T) {
	t.Parallel()

	completable, token := NewCompletion[int]()

	if v, ok := token.Value(); ok {
		t.Fatalf("Value() before Complete = (%d, true), want ok=false", v)
	}

	completable.Complete(9)

	v, ok := token.Value()
	if !ok || v != 9 {
		t.Fatalf("Value() after Complete = (%d, %v), want (9, true)", v, ok)
	}
}

func TestCompletion_DoneUnblocksSelect(t *testing.T) {
	t.Parallel()

	completable, token := NewCompletion[struct{}]()

	select {
	case <-token.Done():
		t.Fatal("Done() closed before Complete")
	default:
	}

	completable.Complete(struct{}{})

	select {
	case <-token.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Done() not closed after Complete")
	}
}
