package netserver

import (
	"errors"
	"net"
	"testing"

	"go.uber.org/mock/gomock"

	"github.com/0xa1bed0/listend/netserver/mocks"
)

var mockAddr = &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 4242}

// TestSupervisor_CancelWithoutPendingConnection checks the core race
// contract against a listener that never produces a connection: a stop must
// terminate the supervisor without the accept attempt ever completing on its
// own. The mock only returns from Accept once Close unblocks it, exactly
// like a real listener with no pending connection.
func TestSupervisor_CancelWithoutPendingConnection(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	closed := make(chan struct{})

	ln := mocks.NewMockListener(ctrl)
	ln.EXPECT().Addr().Return(mockAddr)
	ln.EXPECT().Accept().DoAndReturn(func() (net.Conn, error) {
		<-closed
		return nil, net.ErrClosed
	})
	ln.EXPECT().Close().DoAndReturn(func() error {
		close(closed)
		return nil
	})

	sp := &testSpawner{}
	srv := Start(sp, Options{Listener: ln})

	addr, err := srv.WaitReady()
	if err != nil {
		t.Fatalf("WaitReady() error: %v", err)
	}
	if addr != mockAddr {
		t.Fatalf("WaitReady() addr = %v, want %v", addr, mockAddr)
	}

	srv.Stop()
	if err := srv.Wait(); !errors.Is(err, ErrTerminated) {
		t.Fatalf("Wait() = %v, want ErrTerminated", err)
	}

	// The abandoned accept attempt and the drain task must both terminate.
	sp.Join(t)
}

// TestSupervisor_AcceptErrorIsFatal checks the non-cancellation error path:
// the loop terminates, closes the listener, and propagates the accept error
// as the task outcome.
func TestSupervisor_AcceptErrorIsFatal(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("accept blew up")

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ln := mocks.NewMockListener(ctrl)
	ln.EXPECT().Addr().Return(mockAddr)
	ln.EXPECT().Accept().Return(nil, errBoom)
	ln.EXPECT().Close().Return(nil)

	sp := &testSpawner{}
	srv := Start(sp, Options{Listener: ln})

	if _, err := srv.WaitReady(); err != nil {
		t.Fatalf("WaitReady() error: %v", err)
	}

	err := srv.Wait()
	if !errors.Is(err, errBoom) {
		t.Fatalf("Wait() = %v, want the accept error", err)
	}
	if errors.Is(err, ErrTerminated) {
		t.Fatalf("Wait() = %v, must not look like a requested stop", err)
	}

	sp.Join(t)
}

// TestSupervisor_ConnectionsKeepFlowingUntilStop drives two connections
// through the loop via the mock and then stops, checking that the loop
// re-arms a fresh accept attempt after every handoff.
func TestSupervisor_ConnectionsKeepFlowingUntilStop(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// Two conns delivered, then Accept parks until Close.
	c1, p1 := net.Pipe()
	c2, p2 := net.Pipe()
	defer p1.Close()
	defer p2.Close()

	closed := make(chan struct{})
	conns := make(chan net.Conn, 2)
	conns <- c1
	conns <- c2

	ln := mocks.NewMockListener(ctrl)
	ln.EXPECT().Addr().Return(mockAddr)
	ln.EXPECT().Accept().DoAndReturn(func() (net.Conn, error) {
		select {
		case c := <-conns:
			return c, nil
		case <-closed:
			return nil, net.ErrClosed
		}
	}).Times(3)
	ln.EXPECT().Close().DoAndReturn(func() error {
		close(closed)
		return nil
	})

	handled := make(chan net.Conn, 2)

	sp := &testSpawner{}
	srv := Start(sp, Options{
		Listener: ln,
		Handler: func(conn net.Conn) {
			defer conn.Close()
			handled <- conn
		},
	})

	if _, err := srv.WaitReady(); err != nil {
		t.Fatalf("WaitReady() error: %v", err)
	}

	for i := 0; i < 2; i++ {
		if c := <-handled; c == nil {
			t.Fatalf("handler %d got nil conn", i)
		}
	}

	srv.Stop()
	if err := srv.Wait(); !errors.Is(err, ErrTerminated) {
		t.Fatalf("Wait() = %v, want ErrTerminated", err)
	}

	sp.Join(t)
}
