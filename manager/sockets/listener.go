package sockets

import (
	"errors"
	"net"
	"sync"

	manager_io "github.com/OpenListTeam/wazero-netops/manager/io"
)

var (
	// ErrWouldBlock means no connection is ready yet.
	ErrWouldBlock = errors.New("accept would block")
	// ErrAcceptInProgress is returned by Track when another task is already
	// parked on the listener.
	ErrAcceptInProgress = errors.New("another accept task is ongoing")
)

type acceptResult struct {
	conn net.Conn
	err  error
}

// Listener wraps a net.Listener with a single waker slot.
//
// The blocking Accept runs on a background goroutine that is armed on
// demand, at most one per listener. Its result is parked in a one-element
// slot until the next TryAccept picks it up, and the tracked waker is woken.
type Listener struct {
	ln        net.Listener
	localPath string

	mu      sync.Mutex
	waker   manager_io.Waker
	armed   bool
	pending *acceptResult
	closed  bool

	closeOnce sync.Once
	closeErr  error
}

func newListener(ln net.Listener, path string) *Listener {
	return &Listener{ln: ln, localPath: path}
}

func (l *Listener) LocalAddr() net.Addr { return l.ln.Addr() }

// LocalPath is the bound path for Unix listeners, empty otherwise.
func (l *Listener) LocalPath() string { return l.localPath }

// TryAccept never blocks. It returns the parked connection, or
// ErrWouldBlock when nothing is ready.
func (l *Listener) TryAccept() (net.Conn, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if r := l.pending; r != nil {
		l.pending = nil
		return r.conn, r.err
	}
	if l.closed {
		return nil, net.ErrClosed
	}
	return nil, ErrWouldBlock
}

// Track registers w as the task waiting for the next connection and arms
// the background acceptor. Re-registering the same waker is allowed. A
// different waker fails with ErrAcceptInProgress and leaves the slot alone.
//
// If a result is already parked, or the listener is closed, w is woken
// right away.
func (l *Listener) Track(w manager_io.Waker) error {
	l.mu.Lock()
	if l.waker != nil && l.waker != w {
		l.mu.Unlock()
		return ErrAcceptInProgress
	}
	l.waker = w

	wakeNow := l.pending != nil || l.closed
	if !wakeNow && !l.armed {
		l.armed = true
		go l.acceptOnce()
	}
	l.mu.Unlock()

	if wakeNow {
		w.Wake()
	}
	return nil
}

// Untrack clears the slot if it still holds w.
func (l *Listener) Untrack(w manager_io.Waker) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.waker == w {
		l.waker = nil
	}
}

// Tracked reports whether a task is parked on the listener.
func (l *Listener) Tracked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.waker != nil
}

func (l *Listener) acceptOnce() {
	conn, err := l.ln.Accept()

	l.mu.Lock()
	l.armed = false
	if l.closed {
		l.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	l.pending = &acceptResult{conn: conn, err: err}
	w := l.waker
	l.mu.Unlock()

	if w != nil {
		w.Wake()
	}
}

// Close wakes the parked task before the socket goes away, drops any
// connection nobody picked up, then closes the OS listener.
func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.closed = true
		w := l.waker
		l.waker = nil
		pending := l.pending
		l.pending = nil
		l.mu.Unlock()

		if w != nil {
			w.Wake()
		}

		closers := manager_io.NewMultiCloser()
		if pending != nil && pending.conn != nil {
			closers.Add(pending.conn)
		}
		closers.Add(l.ln)
		l.closeErr = closers.Close()
	})
	return l.closeErr
}
