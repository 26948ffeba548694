// Package netserver runs a network listener on a background task with an
// observable startup and a cooperative shutdown. Start returns immediately
// with a handle; the caller waits on the handle to learn the bound address,
// and later triggers a stop that unblocks the supervisor without tearing
// down connections it already handed off.
package netserver

import (
	"errors"
	"fmt"
	"net"

	"github.com/0xa1bed0/listend/synctoken"
)

// ErrTerminated is the terminal outcome of a server that was stopped on
// request. Anything else coming out of Wait means the server died for a
// different reason (bind failure, fatal accept error).
var ErrTerminated = errors.New("server terminated")

// Spawner runs fn on its own goroutine. The supervisor, every accept attempt
// and every connection handler go through it, so whoever owns the Spawner
// can join and panic-guard all server tasks.
type Spawner interface {
	GoNamed(name string, fn func())
}

// Options configures Start. The zero value listens on tcp, wildcard host,
// ephemeral port, and closes every accepted connection.
type Options struct {
	// Network is the listen network, "tcp" if empty.
	Network string

	// Host is the bind host. Empty means the wildcard address.
	Host string

	// Port is the bind port. Zero asks the platform for an ephemeral one;
	// the actually assigned port is what the ready token reports.
	Port int

	// Listener, when set, is an already bound listener (tests, socket
	// activation). Network/Host/Port are ignored and the bind step is
	// skipped. The supervisor takes ownership and closes it on termination.
	Listener net.Listener

	// Handler receives each accepted connection on its own spawned task and
	// owns it from that point on. Nil means accept-and-close.
	Handler func(conn net.Conn)
}

func (o *Options) network() string {
	if o.Network == "" {
		return "tcp"
	}
	return o.Network
}

func (o *Options) bindAddr() string {
	return fmt.Sprintf("%s:%d", o.Host, o.Port)
}

// Bound is the value the ready token resolves to. Exactly one of Addr/Err is
// meaningful: a bind failure still completes the token (with Err set) so a
// waiter is never left hanging.
type Bound struct {
	Addr net.Addr
	Err  error
}

// Server is the handle returned by Start: the ready waiter, the stop
// trigger, and the join-able terminal result of the background task. One
// handle per Start; it cannot be rearmed to start a second server.
type Server struct {
	ready *synctoken.CompletionToken[Bound]
	done  *synctoken.CompletionToken[error]
	stop  *synctoken.CancellationToken
}

// Ready exposes the completion token for the bound address, for callers that
// want to race it against something else.
func (s *Server) Ready() *synctoken.CompletionToken[Bound] {
	return s.ready
}

// WaitReady blocks until the server is actually accepting connections and
// returns the concrete bound address, or the bind error.
func (s *Server) WaitReady() (net.Addr, error) {
	b := s.ready.Wait()
	return b.Addr, b.Err
}

// Stop requests a cooperative shutdown. Idempotent, non-blocking, and safe
// to call even if the server already terminated for another reason. Follow
// with Wait to observe the terminal outcome.
func (s *Server) Stop() {
	s.stop.Cancel()
}

// Wait blocks until the background task terminates and returns its outcome.
// A server stopped via Stop yields ErrTerminated; any other error is the
// fatal failure that ended it. Multiple callers all observe the same result.
func (s *Server) Wait() error {
	return s.done.Wait()
}

// Done exposes the terminal-result token for select-based composition.
func (s *Server) Done() *synctoken.CompletionToken[error] {
	return s.done
}

// Shutdown is Stop followed by Wait.
func (s *Server) Shutdown() error {
	s.Stop()
	return s.Wait()
}

// acceptResult carries one accept attempt's outcome over the race channel.
type acceptResult struct {
	conn net.Conn
	err  error
}

// Start launches the supervisor on sp and returns its handle without
// blocking. The caller learns the bound address via WaitReady and stops the
// server via Stop + Wait.
func Start(sp Spawner, opts Options) *Server {
	completable, ready := synctoken.NewCompletion[Bound]()
	finished, done := synctoken.NewCompletion[error]()
	trigger, cancelable := synctoken.NewCancellation()

	sup := &supervisor{
		spawner:    sp,
		opts:       opts,
		ready:      completable,
		cancelable: cancelable,
	}

	sp.GoNamed("netserver:supervise", func() {
		finished.Complete(sup.run())
	})

	return &Server{
		ready: ready,
		done:  done,
		stop:  trigger,
	}
}

// supervisor owns the listener across loop iterations; nothing else touches
// it until termination.
type supervisor struct {
	spawner    Spawner
	opts       Options
	ready      *synctoken.Completable[Bound]
	cancelable *synctoken.Cancelable
}

func (s *supervisor) run() error {
	ln := s.opts.Listener
	if ln == nil {
		var err error
		ln, err = net.Listen(s.opts.network(), s.opts.bindAddr())
		if err != nil {
			// Still drive the ready token so WaitReady can't hang forever.
			err = fmt.Errorf("bind %s %s: %w", s.opts.network(), s.opts.bindAddr(), err)
			s.ready.Complete(Bound{Err: err})
			return err
		}
	}

	s.ready.Complete(Bound{Addr: ln.Addr()})

	accepts := s.acceptAsync(ln)
	for {
		res := synctoken.AllowCancel(s.cancelable, accepts, acceptResult{err: ErrTerminated})

		if errors.Is(res.err, ErrTerminated) {
			// Stopped on request. Closing the listener fails the in-flight
			// accept so its goroutine can exit; the drain task picks up a
			// connection it may have won in the meantime.
			_ = ln.Close()
			s.drainAbandoned(accepts)
			return ErrTerminated
		}
		if res.err != nil {
			// Accept errors are fatal here; retrying belongs to a layer
			// above if anyone wants it.
			_ = ln.Close()
			return res.err
		}

		conn := res.conn
		s.spawner.GoNamed("netserver:handle;"+conn.RemoteAddr().String(), func() {
			s.handle(conn)
		})

		accepts = s.acceptAsync(ln)
	}
}

// acceptAsync starts one accept attempt as its own task. The channel is
// buffered so the attempt can deliver its result and terminate even when the
// supervisor abandoned the wait.
func (s *supervisor) acceptAsync(ln net.Listener) <-chan acceptResult {
	ch := make(chan acceptResult, 1)
	s.spawner.GoNamed("netserver:accept", func() {
		conn, err := ln.Accept()
		ch <- acceptResult{conn: conn, err: err}
	})
	return ch
}

// drainAbandoned collects the result of the abandoned accept attempt so a
// just-accepted connection is closed instead of leaking. The attempt always
// delivers exactly one result once the listener is closed, so this task
// terminates.
func (s *supervisor) drainAbandoned(accepts <-chan acceptResult) {
	s.spawner.GoNamed("netserver:drain", func() {
		if res := <-accepts; res.conn != nil {
			_ = res.conn.Close()
		}
	})
}

func (s *supervisor) handle(conn net.Conn) {
	if s.opts.Handler == nil {
		_ = conn.Close()
		return
	}
	s.opts.Handler(conn)
}
