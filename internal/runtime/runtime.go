package runtime

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/0xa1bed0/listend/internal/logs"
)

// Runtime is the task substrate every background goroutine of the process
// runs on: named spawns with panic recovery, a global context, shutdown
// hooks and a join point for main.
type Runtime struct {
	runID string

	ctx        context.Context    // global context
	cancelFunc context.CancelFunc // cancelFunc of global context

	mu sync.Mutex

	wg              sync.WaitGroup
	shutdownTimeout time.Duration

	firstFailErr error

	// logWriter is the destination for the full run log, when one is open.
	logWriter io.Writer
}

type runtimeKey struct{}

func New() *Runtime {
	baseCtx, cancel := context.WithCancel(context.Background())
	rt := &Runtime{
		runID:           strconv.FormatInt(time.Now().Unix(), 10),
		cancelFunc:      cancel,
		shutdownTimeout: 5 * time.Second,
	}
	// The runtime pointer rides on the context so cobra command handlers can
	// pick it up from cmd.Context(). It is read back exactly once at the
	// root of each command and nowhere else.
	rt.ctx = context.WithValue(baseCtx, runtimeKey{}, rt)
	return rt
}

func FromContext(ctx context.Context) *Runtime {
	v := ctx.Value(runtimeKey{})
	if v == nil {
		return nil
	}
	rt, _ := v.(*Runtime)
	return rt
}

func (rt *Runtime) Ctx() context.Context {
	return rt.ctx
}

func (rt *Runtime) CancelCtx() {
	rt.cancelFunc()
}

func (rt *Runtime) RunID() string {
	return rt.runID
}

func (rt *Runtime) LogWriter() io.Writer {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.logWriter
}

// SetLogWriter records the full-log destination so shutdown can close it.
func (rt *Runtime) SetLogWriter(w io.Writer) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.logWriter = w
}

// Go runs fn on a new goroutine with panic recovery; see GoNamed.
func (rt *Runtime) Go(fn func()) {
	rt.GoNamed("", fn)
}

// GoNamed runs fn in a new goroutine, with panic recovery.
//
// Contract:
//   - If fn panics, the panic is recovered, wrapped into an error, recorded,
//     and the global context is cancelled.
//   - Runtime.Wait() waits for all such goroutines and returns the first
//     recorded error.
func (rt *Runtime) GoNamed(name string, fn func()) {
	if name == "" {
		name = "annonymous"
	}
	rt.wg.Add(1)
	go func() {
		defer rt.wg.Done()
		logs.Debugf("%s goroutine start", name)
		defer func() {
			// recover panic
			if r := recover(); r != nil {
				err := fmt.Errorf("panic in %s: %v\n%s", name, r, debug.Stack())
				rt.mu.Lock()
				if rt.firstFailErr == nil {
					rt.firstFailErr = err
					// cancel everyone on first failure
					rt.cancelFunc()
				}
				rt.mu.Unlock()
			}
		}()

		fn()
		logs.Debugf("%s goroutine finish", name)
	}()
}

func (rt *Runtime) Wait() error {
	rt.wg.Wait()

	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.firstFailErr
}

// OnShutdown registers fn to run once the global context is cancelled. fn
// gets a fresh context with the shutdown timeout, not the cancelled one.
func (rt *Runtime) OnShutdown(fn func(ctx context.Context)) {
	rt.GoNamed("OnShutdown", func() {
		<-rt.ctx.Done()

		cleanupCtx, cancel := context.WithTimeout(context.Background(), rt.shutdownTimeout)
		defer cancel()

		fn(cleanupCtx)
	})
}

// Finalize handles both panic and normal exit.
// Call it in a defer at the top of main.
func (rt *Runtime) Finalize(appName, helpHint string, execErr *error) {
	// detect panic
	if r := recover(); r != nil {
		fmt.Fprintf(os.Stderr, "%s panic: %v\n", appName, r)
		fmt.Fprintf(os.Stderr, "%s\n", debug.Stack())
		fmt.Fprintln(os.Stderr, "")
		if helpHint != "" {
			fmt.Fprintln(os.Stderr, helpHint)
		}

		// cancel & wait so OnShutdown hooks run
		rt.CancelCtx()
		_ = rt.Wait()

		logs.Close()
		os.Exit(1)
	}

	// normal (non-panic) path - trigger OnShutdown hooks and join
	rt.CancelCtx()
	waitErr := rt.Wait()

	if execErr != nil && *execErr != nil {
		logs.Errorf("%s error: %v", appName, *execErr)
		if helpHint != "" {
			fmt.Fprintln(os.Stderr, helpHint)
		}
	} else if waitErr != nil {
		logs.Errorf("%s fail reason: %v", appName, waitErr)
	}

	logs.Close()
}
