package sockets

import (
	"context"
	"fmt"
	"net"
	"sync"
)

// ShutdownMode selects which half of a stream to close.
type ShutdownMode uint8

const (
	ShutdownRead  ShutdownMode = 0
	ShutdownWrite ShutdownMode = 1
)

func (m ShutdownMode) Valid() bool {
	return m == ShutdownRead || m == ShutdownWrite
}

func (m ShutdownMode) String() string {
	switch m {
	case ShutdownRead:
		return "read"
	case ShutdownWrite:
		return "write"
	default:
		return fmt.Sprintf("ShutdownMode(%d)", uint8(m))
	}
}

// halfCloser is satisfied by *net.TCPConn and *net.UnixConn.
type halfCloser interface {
	net.Conn
	CloseRead() error
	CloseWrite() error
}

// StreamConn is the behaviour shared by TCP and Unix streams.
type StreamConn interface {
	Shutdown(mode ShutdownMode) error
	ShutdownState() (read, write bool)
	Read(ctx context.Context, b []byte) (int, error)
	Write(ctx context.Context, b []byte) (int, error)
	LocalAddr() net.Addr
	RemoteAddr() net.Addr
}

// Stream is a connected stream socket with a half-close state that only
// ever moves forward.
type Stream struct {
	conn halfCloser

	mu        sync.Mutex
	readShut  bool
	writeShut bool
}

func newStream(c halfCloser) *Stream {
	return &Stream{conn: c}
}

func (s *Stream) LocalAddr() net.Addr  { return s.conn.LocalAddr() }
func (s *Stream) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }

// Shutdown closes one direction. Repeating it for a direction that is
// already shut is a no-op. Invalid modes panic.
func (s *Stream) Shutdown(mode ShutdownMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch mode {
	case ShutdownRead:
		if s.readShut {
			return nil
		}
		if err := s.conn.CloseRead(); err != nil {
			return err
		}
		s.readShut = true
	case ShutdownWrite:
		if s.writeShut {
			return nil
		}
		if err := s.conn.CloseWrite(); err != nil {
			return err
		}
		s.writeShut = true
	default:
		panic(fmt.Sprintf("sockets: invalid shutdown mode %d", uint8(mode)))
	}
	return nil
}

func (s *Stream) ShutdownState() (read, write bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readShut, s.writeShut
}

func (s *Stream) Read(ctx context.Context, b []byte) (int, error) {
	done, err := interruptOnDone(ctx, s.conn, dirRead)
	if err != nil {
		return 0, err
	}
	n, err := s.conn.Read(b)
	return n, done(err)
}

func (s *Stream) Write(ctx context.Context, b []byte) (int, error) {
	done, err := interruptOnDone(ctx, s.conn, dirWrite)
	if err != nil {
		return 0, err
	}
	n, err := s.conn.Write(b)
	return n, done(err)
}

func (s *Stream) Close() error {
	return s.conn.Close()
}
