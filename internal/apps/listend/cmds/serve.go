package listend

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	appconfig "github.com/0xa1bed0/listend/internal/apps/listend/config"
	"github.com/0xa1bed0/listend/internal/logs"
	"github.com/0xa1bed0/listend/internal/runtime"
	"github.com/0xa1bed0/listend/internal/state"
	"github.com/0xa1bed0/listend/internal/ui"
	"github.com/0xa1bed0/listend/netserver"

	"github.com/spf13/cobra"
)

type serveOptions struct {
	Host string
	Port int
}

// attachServeCmdFlags attaches the "serve" cmd flags to the given command and
// injects a serveOptions instance into the command's context via PreRun.
func attachServeCmdFlags(cmd *cobra.Command) {
	opts := &serveOptions{}

	flags := cmd.Flags()
	flags.StringVar(&opts.Host, "host", "127.0.0.1", "Host/interface to bind")
	flags.IntVarP(&opts.Port, "port", "p", 0, "Port to bind (0 picks a free one)")

	// Store opts in command context before running
	cmd.PreRun = func(cmd *cobra.Command, args []string) {
		cmd.SetContext(withServeOptions(cmd.Context(), opts))
	}
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the echo server",
		Long: `Bind a TCP listener and echo every byte each client sends.

The server announces the bound address once the listener is up, then
runs until Ctrl-C (or Return on a terminal).`,
		Args: cobra.NoArgs,
		RunE: serveCmdRunE,
	}

	attachServeCmdFlags(cmd)

	return cmd
}

// serveCmdRunE is a separate function so root can reuse it (default command)
func serveCmdRunE(cmd *cobra.Command, args []string) error {
	logs.Debugf("starting server...")

	rt := runtime.FromContext(cmd.Context())
	opts := getServeOptions(cmd.Context())
	if opts == nil {
		// This should not normally happen because attachServeCmdFlags sets it,
		// but keep a safe fallback for root or tests.
		opts = &serveOptions{Host: "127.0.0.1"}
	}

	if err := openRunLog(rt); err != nil {
		logs.Warnf("run log unavailable: %v", err)
	}

	signalsCtx, stopSignalsCtx := signal.NotifyContext(rt.Ctx(), os.Interrupt, syscall.SIGTERM)
	defer stopSignalsCtx()

	tail := logs.NewTailBox("connections")
	defer tail.Close()

	srv := netserver.Start(rt, netserver.Options{
		Host:    opts.Host,
		Port:    opts.Port,
		Handler: echoHandler(tail),
	})

	addr, err := srv.WaitReady()
	if err != nil {
		return err
	}

	logs.Banner(fmt.Sprintf("listening on %s", addr))

	runStore := recordRun(signalsCtx, rt, addr)

	// Press Return (TTY) or Ctrl-C to stop.
	if ui.IsTerminal(os.Stdin) {
		logs.Infof("press Return to stop")
		go stopOnReturn(os.Stdin, srv.Stop)
	}

	select {
	case <-signalsCtx.Done():
		logs.Infof("shutting down...")
		srv.Stop()
	case <-srv.Done().Done():
	}

	err = srv.Wait()
	finishRun(rt, runStore, err)

	if errors.Is(err, netserver.ErrTerminated) {
		// Clean stop requested by us.
		return nil
	}
	return err
}

// stopOnReturn calls stop once a full line arrives on r. It runs detached
// (plain go, never on the runtime): a blocked stdin read cannot be canceled,
// so it must not count toward the runtime join when shutdown comes from a
// signal instead of Return.
func stopOnReturn(r io.Reader, stop func()) {
	reader := bufio.NewReader(r)
	if _, err := reader.ReadString('\n'); err == nil {
		stop()
	}
}

// echoHandler returns a connection handler that echoes every byte back and
// reports connection lifecycle to the tail box.
func echoHandler(tail ui.Tail) func(net.Conn) {
	return func(conn net.Conn) {
		remote := conn.RemoteAddr()
		tail.Printf("%s connected", remote)

		n, err := io.Copy(conn, conn)
		conn.Close()

		if err != nil {
			tail.Printf("%s closed after %d bytes: %v", remote, n, err)
			return
		}
		tail.Printf("%s closed after %d bytes", remote, n)
	}
}

// openRunLog routes the full log into ~/.config/listend/logs/run-<id>.log.
func openRunLog(rt *runtime.Runtime) error {
	f, err := appconfig.RunLogPathOpen(rt.RunID())
	if err != nil {
		return err
	}

	w := ui.NewTimestampWriter(ui.NewSyncWriter(f, 200*time.Millisecond))
	logs.SetFullLogWriter(w)
	rt.SetLogWriter(w)
	return nil
}

// recordRun opens a row in the run history. A nil return means history is
// unavailable (bad state db); serving continues without it.
//
// The store is opened on the runtime context, not the signals context, so the
// database stays usable for Finish after Ctrl-C.
func recordRun(ctx context.Context, rt *runtime.Runtime, addr net.Addr) *state.RunStore {
	store, err := state.DefaultRunStore(rt.Ctx())
	if err != nil {
		logs.Warnf("run history unavailable: %v", err)
		return nil
	}

	err = store.Record(ctx, state.Run{
		ID:        rt.RunID(),
		Address:   addr.String(),
		PID:       os.Getpid(),
		StartedAt: time.Now(),
	})
	if err != nil {
		logs.Warnf("failed to record run: %v", err)
		return nil
	}
	return store
}

func finishRun(rt *runtime.Runtime, store *state.RunStore, srvErr error) {
	if store == nil {
		return
	}

	outcome := "stopped"
	if srvErr != nil && !errors.Is(srvErr, netserver.ErrTerminated) {
		outcome = srvErr.Error()
	}

	// rt.Ctx() may already be cancelled here; use a short fresh context.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := store.Finish(ctx, rt.RunID(), outcome); err != nil {
		logs.Warnf("failed to finish run record: %v", err)
	}
}

type ctxKeyServeOptions struct{}

func withServeOptions(ctx context.Context, opts *serveOptions) context.Context {
	return context.WithValue(ctx, ctxKeyServeOptions{}, opts)
}

func getServeOptions(ctx context.Context) *serveOptions {
	v := ctx.Value(ctxKeyServeOptions{})
	if v == nil {
		return nil
	}
	return v.(*serveOptions)
}
