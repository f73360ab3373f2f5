package sockets

import (
	"context"
	"net"
)

// Datagram is a bound datagram socket. Sends and receives are not
// serialized; callers must not run two receives on one socket at once.
type Datagram struct {
	conn      net.PacketConn
	localPath string
}

func newDatagram(c net.PacketConn, path string) *Datagram {
	return &Datagram{conn: c, localPath: path}
}

func (d *Datagram) LocalAddr() net.Addr { return d.conn.LocalAddr() }

// LocalPath is the bound path for Unix datagram sockets, empty otherwise.
func (d *Datagram) LocalPath() string { return d.localPath }

// SendTo writes one datagram to addr.
func (d *Datagram) SendTo(ctx context.Context, b []byte, addr net.Addr) (int, error) {
	done, err := interruptOnDone(ctx, d.conn, dirWrite)
	if err != nil {
		return 0, err
	}
	n, err := d.conn.WriteTo(b, addr)
	return n, done(err)
}

// RecvFrom reads one datagram into b.
func (d *Datagram) RecvFrom(ctx context.Context, b []byte) (int, net.Addr, error) {
	done, err := interruptOnDone(ctx, d.conn, dirRead)
	if err != nil {
		return 0, nil, err
	}
	n, addr, err := d.conn.ReadFrom(b)
	return n, addr, done(err)
}

func (d *Datagram) Close() error {
	return d.conn.Close()
}
