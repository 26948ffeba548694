package runtime

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestRuntime_FromContext(t *testing.T) {
	t.Parallel()

	rt := New()
	if got := FromContext(rt.Ctx()); got != rt {
		t.Fatalf("FromContext returned %p, want %p", got, rt)
	}
	if got := FromContext(context.Background()); got != nil {
		t.Fatalf("FromContext on a bare context = %p, want nil", got)
	}
}

func TestRuntime_GoNamedRecoversPanic(t *testing.T) {
	t.Parallel()

	rt := New()
	rt.GoNamed("exploding", func() {
		panic("boom")
	})

	err := rt.Wait()
	if err == nil {
		t.Fatal("Wait() = nil, want the recorded panic")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Fatalf("Wait() = %v, want the panic message", err)
	}

	// First failure cancels the global context.
	select {
	case <-rt.Ctx().Done():
	default:
		t.Fatal("global context not cancelled after panic")
	}
}

func TestRuntime_WaitJoinsAllGoroutines(t *testing.T) {
	t.Parallel()

	rt := New()

	done := make(chan struct{}, 3)
	for i := 0; i < 3; i++ {
		rt.Go(func() {
			done <- struct{}{}
		})
	}

	if err := rt.Wait(); err != nil {
		t.Fatalf("Wait() = %v, want nil", err)
	}
	if len(done) != 3 {
		t.Fatalf("only %d goroutines ran, want 3", len(done))
	}
}

func TestRuntime_OnShutdownRunsOnCancel(t *testing.T) {
	t.Parallel()

	rt := New()

	ran := make(chan struct{})
	rt.OnShutdown(func(ctx context.Context) {
		if ctx.Err() != nil {
			t.Error("shutdown context already expired")
		}
		close(ran)
	})

	rt.CancelCtx()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("OnShutdown hook did not run after CancelCtx")
	}
	if err := rt.Wait(); err != nil {
		t.Fatalf("Wait() = %v, want nil", err)
	}
}
