package synctoken

import (
	"sync"
	"testing"
	"time"
)

func TestCancellation_IdempotentCancel(t *testing.T) {
	t.Parallel()

	trigger, cancelable := NewCancellation()

	if cancelable.Canceled() {
		t.Fatal("Canceled() = true before Cancel")
	}

	// k cancels behave like one.
	for i := 0; i < 5; i++ {
		trigger.Cancel()
	}

	if !cancelable.Canceled() {
		t.Fatal("Canceled() = false after Cancel")
	}

	select {
	case <-cancelable.Done():
	default:
		t.Fatal("Done() not closed after Cancel")
	}
}

func TestCancellation_ConcurrentCancel(t *testing.T) {
	t.Parallel()

	trigger, cancelable := NewCancellation()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			trigger.Cancel()
		}()
	}
	wg.Wait()

	if !cancelable.Canceled() {
		t.Fatal("Canceled() = false after concurrent Cancels")
	}
}

func TestAllowCancel_OperationWins(t *testing.T) {
	t.Parallel()

	_, cancelable := NewCancellation()

	op := make(chan int, 1)
	op <- 11

	if got := AllowCancel(cancelable, op, -1); got != 11 {
		t.Fatalf("AllowCancel() = %d, want the operation result 11", got)
	}
}

func TestAllowCancel_FallbackWhenAlreadyCanceled(t *testing.T) {
	t.Parallel()

	trigger, cancelable := NewCancellation()

	// The operation result is already pending, but the race starts after
	// Cancel returned, so the fallback must win.
	op := make(chan int, 1)
	op <- 11
	trigger.Cancel()

	if got := AllowCancel(cancelable, op, -1); got != -1 {
		t.Fatalf("AllowCancel() after Cancel = %d, want fallback -1", got)
	}
}

func TestAllowCancel_CancelUnblocksInFlightRace(t *testing.T) {
	t.Parallel()

	trigger, cancelable := NewCancellation()

	op := make(chan int, 1) // never written: the operation outlives the wait

	got := make(chan int, 1)
	go func() {
		got <- AllowCancel(cancelable, op, -1)
	}()

	time.Sleep(10 * time.Millisecond)
	trigger.Cancel()

	select {
	case v := <-got:
		if v != -1 {
			t.Fatalf("AllowCancel() = %d, want fallback -1", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight AllowCancel was not unblocked by Cancel")
	}
}

func TestAllowCancel_ManyRacesAllUnblocked(t *testing.T) {
	t.Parallel()

	trigger, cancelable := NewCancellation()

	const races = 16

	var wg sync.WaitGroup
	results := make([]int, races)
	for i := 0; i < races; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			op := make(chan int, 1)
			results[i] = AllowCancel(cancelable, op, -1)
		}()
	}

	time.Sleep(10 * time.Millisecond)
	trigger.Cancel()
	wg.Wait()

	for i, v := range results {
		if v != -1 {
			t.Fatalf("race %d resolved to %d, want fallback -1", i, v)
		}
	}
}

func TestAllowCancel_AbandonedOperationCanStillDeliver(t *testing.T) {
	t.Parallel()

	trigger, cancelable := NewCancellation()
	trigger.Cancel()

	// The op channel is buffered, so the abandoned producer can send its
	// result and exit even though the race already resolved to the fallback.
	op := make(chan int, 1)
	if got := AllowCancel(cancelable, op, -1); got != -1 {
		t.Fatalf("AllowCancel() = %d, want fallback -1", got)
	}

	done := make(chan struct{})
	go func() {
		op <- 99 // must not block
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("abandoned producer blocked on its result channel")
	}
}
