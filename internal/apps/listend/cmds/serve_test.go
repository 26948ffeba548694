package listend

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/0xa1bed0/listend/internal/runtime"
)

func TestStopOnReturnTriggersStop(t *testing.T) {
	t.Parallel()

	stopped := make(chan struct{})
	stopOnReturn(strings.NewReader("\n"), func() {
		close(stopped)
	})

	select {
	case <-stopped:
	default:
		t.Fatal("stop not called after Return")
	}
}

func TestStopOnReturnIgnoresEOFWithoutNewline(t *testing.T) {
	t.Parallel()

	stopOnReturn(strings.NewReader("no newline"), func() {
		t.Error("stop called without a full line")
	})
}

func TestRuntimeJoinNotBlockedByStdinReader(t *testing.T) {
	t.Parallel()

	rt := runtime.New()

	// A reader that never delivers, like an idle terminal. The stdin watcher
	// runs detached, so the runtime join must still return after a
	// signal-driven shutdown.
	pr, pw := io.Pipe()
	defer pw.Close()
	go stopOnReturn(pr, func() {})

	rt.CancelCtx()

	done := make(chan error, 1)
	go func() {
		done <- rt.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Wait() = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("runtime join blocked by the stdin reader")
	}
}
