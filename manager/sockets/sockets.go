// Package sockets holds the socket resources that live in the resource
// table: listeners with their accept waker slot, half-closable streams, and
// datagram sockets.
package sockets

import (
	"net"
)

// Kind names reported through the resource table.
const (
	KindTCPListener  = "tcpListener"
	KindTCPStream    = "tcpStream"
	KindUDPSocket    = "udpSocket"
	KindUnixListener = "unixListener"
	KindUnixStream   = "unixStream"
	KindUnixDatagram = "unixDatagram"
)

// TCPListener is a listening TCP socket.
type TCPListener struct {
	*Listener
}

func NewTCPListener(ln *net.TCPListener) *TCPListener {
	return &TCPListener{Listener: newListener(ln, "")}
}

func (*TCPListener) Name() string { return KindTCPListener }

// UnixListener is a listening Unix stream socket bound to LocalPath.
type UnixListener struct {
	*Listener
}

func NewUnixListener(ln *net.UnixListener, path string) *UnixListener {
	return &UnixListener{Listener: newListener(ln, path)}
}

func (*UnixListener) Name() string { return KindUnixListener }

// TCPStream is a connected TCP stream.
type TCPStream struct {
	*Stream
}

func NewTCPStream(c *net.TCPConn) *TCPStream {
	return &TCPStream{Stream: newStream(c)}
}

func (*TCPStream) Name() string { return KindTCPStream }

type UnixStream struct {
	*Stream
}

func NewUnixStream(c *net.UnixConn) *UnixStream {
	return &UnixStream{Stream: newStream(c)}
}

func (*UnixStream) Name() string { return KindUnixStream }

// UDPSocket is a bound UDP socket.
type UDPSocket struct {
	*Datagram
}

func NewUDPSocket(c *net.UDPConn) *UDPSocket {
	return &UDPSocket{Datagram: newDatagram(c, "")}
}

func (*UDPSocket) Name() string { return KindUDPSocket }

// UnixDatagram is a bound Unix datagram socket. Its LocalPath never changes.
type UnixDatagram struct {
	*Datagram
}

func NewUnixDatagram(c *net.UnixConn, path string) *UnixDatagram {
	return &UnixDatagram{Datagram: newDatagram(c, path)}
}

func (*UnixDatagram) Name() string { return KindUnixDatagram }

// NewStreamFromConn wraps an accepted or dialed connection in the matching
// stream resource.
func NewStreamFromConn(c net.Conn) (StreamResource, bool) {
	switch conn := c.(type) {
	case *net.TCPConn:
		return NewTCPStream(conn), true
	case *net.UnixConn:
		return NewUnixStream(conn), true
	default:
		return nil, false
	}
}

// StreamResource is implemented by TCPStream and UnixStream.
type StreamResource interface {
	Name() string
	Close() error
	StreamConn
}

var (
	_ StreamResource = (*TCPStream)(nil)
	_ StreamResource = (*UnixStream)(nil)
)
