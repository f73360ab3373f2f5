package netops

import (
	"context"
	"errors"
	"net"

	"go.uber.org/zap"

	manager_io "github.com/OpenListTeam/wazero-netops/manager/io"
	"github.com/OpenListTeam/wazero-netops/manager/resource"
	"github.com/OpenListTeam/wazero-netops/manager/sockets"
)

// ConnResult is returned by Accept and Connect.
type ConnResult struct {
	Rid        Rid        `json:"rid"`
	LocalAddr  SocketAddr `json:"localAddr"`
	RemoteAddr SocketAddr `json:"remoteAddr"`
}

// Accept waits for the next connection on listener rid.
//
// Only one Accept may be parked on a listener at a time; a second one fails
// with ProtocolViolation and leaves the first untouched. Closing the
// listener wakes the parked Accept, which then fails with BadResource.
// Cancelling ctx unparks it and returns an IoError wrapping ctx.Err().
func (o *Ops) Accept(ctx context.Context, rid Rid, t Transport) (res ConnResult, err error) {
	defer func() { o.metrics.observe(opAccept, t, err) }()

	if e := o.checkTransport(opAccept, t); e != nil {
		return res, e
	}

	waker := manager_io.NewPollable()
	parked := false
	defer func() {
		if parked {
			o.metrics.accepts.Dec()
		}
	}()

	for {
		waker.Reset()

		// The listener is looked up again on every step; a close between
		// steps shows up here as "not found".
		l, ok := o.lookupListener(rid, t)
		if !ok {
			return res, badResource(opAccept, t, "listener has been closed")
		}

		conn, err := l.TryAccept()
		switch {
		case err == nil:
			l.Untrack(waker)
			return o.addStream(opAccept, t, conn)
		case errors.Is(err, sockets.ErrWouldBlock):
		default:
			l.Untrack(waker)
			return res, classify(opAccept, t, "listener has been closed", err)
		}

		if err := l.Track(waker); err != nil {
			return res, newError(KindProtocolViolation, opAccept, t, "another accept task is ongoing", err)
		}
		if !parked {
			parked = true
			o.metrics.accepts.Inc()
		}

		select {
		case <-waker.Channel():
		case <-ctx.Done():
			l.Untrack(waker)
			return res, classify(opAccept, t, "", ctx.Err())
		}
	}
}

func (o *Ops) lookupListener(rid Rid, t Transport) (*sockets.Listener, bool) {
	switch t {
	case TCP:
		if l, ok := resource.Lookup[*sockets.TCPListener](o.table, rid); ok {
			return l.Listener, true
		}
	case Unix:
		if l, ok := resource.Lookup[*sockets.UnixListener](o.table, rid); ok {
			return l.Listener, true
		}
	}
	return nil, false
}

// addStream puts an accepted or dialed connection into the table.
func (o *Ops) addStream(op string, t Transport, conn net.Conn) (ConnResult, error) {
	s, ok := sockets.NewStreamFromConn(conn)
	if !ok {
		conn.Close()
		return ConnResult{}, newError(KindIoError, op, t, "unexpected connection type", nil)
	}
	local, remote := connAddrs(t, s)

	rid, err := o.add(op, t, s)
	if err != nil {
		return ConnResult{}, err
	}
	o.log.Debug("new connection",
		zap.String("op", op),
		zap.Uint32("rid", rid),
		zap.String("transport", string(t)),
		zap.Stringer("local", local),
		zap.Stringer("remote", remote))
	return ConnResult{Rid: rid, LocalAddr: local, RemoteAddr: remote}, nil
}

type addrPair interface {
	LocalAddr() net.Addr
	RemoteAddr() net.Addr
}

func connAddrs(t Transport, c addrPair) (local, remote SocketAddr) {
	if t.isUnix() {
		return sockets.UnixAddrOrUnnamed(c.LocalAddr(), string(t)),
			sockets.UnixAddrOrUnnamed(c.RemoteAddr(), string(t))
	}
	local, _ = sockets.ToSocketAddr(c.LocalAddr())
	remote, _ = sockets.ToSocketAddr(c.RemoteAddr())
	return local, remote
}
