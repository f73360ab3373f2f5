package netops

import (
	"context"
	"io"
	"net"

	"github.com/OpenListTeam/wazero-netops/manager/resource"
	"github.com/OpenListTeam/wazero-netops/manager/sockets"
)

// ReceiveResult is returned by Receive.
type ReceiveResult struct {
	Size       int        `json:"size"`
	RemoteAddr SocketAddr `json:"remoteAddr"`
}

const socketClosed = "socket has been closed"

// Send writes payload as one datagram and returns the number of bytes sent.
//
// For udp the network permission is checked and the destination resolved on
// every call. For unixpacket the read permission is checked on the given
// path, but the datagram is addressed to the path the socket was bound to.
func (o *Ops) Send(ctx context.Context, rid Rid, t Transport, addr Address, payload []byte) (n int, err error) {
	defer func() { o.metrics.observe(opSend, t, err) }()

	ip, path, e := o.splitAddress(opSend, t, addr)
	if e != nil {
		return 0, e
	}

	var (
		sock *sockets.Datagram
		dst  net.Addr
	)
	if ip != nil {
		if e := o.checkNet(opSend, t, *ip); e != nil {
			return 0, e
		}
		udp, ok := resource.Lookup[*sockets.UDPSocket](o.table, rid)
		if !ok {
			return 0, badResource(opSend, t, socketClosed)
		}
		ap, e := o.resolve(ctx, opSend, t, *ip)
		if e != nil {
			return 0, e
		}
		sock, dst = udp.Datagram, net.UDPAddrFromAddrPort(ap)
	} else {
		if e := o.checkRead(opSend, t, path.Path); e != nil {
			return 0, e
		}
		ud, ok := resource.Lookup[*sockets.UnixDatagram](o.table, rid)
		if !ok {
			return 0, badResource(opSend, t, socketClosed)
		}
		sock, dst = ud.Datagram, &net.UnixAddr{Name: ud.LocalPath(), Net: "unixgram"}
	}

	n, err = sock.SendTo(ctx, payload, dst)
	if err != nil {
		return n, classify(opSend, t, socketClosed, err)
	}
	if n < len(payload) {
		return n, newError(KindIoError, opSend, t, "", io.ErrShortWrite)
	}
	return n, nil
}

// Receive reads one datagram into buf. Concurrent Receives on one socket
// are not serialized.
func (o *Ops) Receive(ctx context.Context, rid Rid, t Transport, buf []byte) (res ReceiveResult, err error) {
	defer func() { o.metrics.observe(opReceive, t, err) }()

	if e := o.checkTransport(opReceive, t); e != nil {
		return res, e
	}

	var sock *sockets.Datagram
	switch t {
	case UDP:
		if s, ok := resource.Lookup[*sockets.UDPSocket](o.table, rid); ok {
			sock = s.Datagram
		}
	case UnixPacket:
		if s, ok := resource.Lookup[*sockets.UnixDatagram](o.table, rid); ok {
			sock = s.Datagram
		}
	}
	if sock == nil {
		return res, badResource(opReceive, t, socketClosed)
	}

	n, from, err := sock.RecvFrom(ctx, buf)
	if err != nil {
		return res, classify(opReceive, t, socketClosed, err)
	}

	res.Size = n
	if t == UDP {
		res.RemoteAddr, _ = sockets.ToSocketAddr(from)
	} else {
		res.RemoteAddr = sockets.UnixAddrOrUnnamed(from, string(t))
	}
	return res, nil
}
