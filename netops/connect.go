package netops

import (
	"context"
	"net"
)

// Connect dials tcp or unix and returns the new stream. Failures are
// returned as they are; nothing is retried.
func (o *Ops) Connect(ctx context.Context, t Transport, addr Address) (res ConnResult, err error) {
	defer func() { o.metrics.observe(opConnect, t, err) }()

	ip, path, e := o.splitAddress(opConnect, t, addr)
	if e != nil {
		return res, e
	}

	d := net.Dialer{Control: o.sockopts.Control()}
	var conn net.Conn
	if ip != nil {
		if e := o.checkNet(opConnect, t, *ip); e != nil {
			return res, e
		}
		ap, e := o.resolve(ctx, opConnect, t, *ip)
		if e != nil {
			return res, e
		}
		conn, err = d.DialContext(ctx, "tcp", ap.String())
	} else {
		if e := o.checkRead(opConnect, t, path.Path); e != nil {
			return res, e
		}
		conn, err = d.DialContext(ctx, "unix", path.Path)
	}
	if err != nil {
		return res, classify(opConnect, t, "", err)
	}
	return o.addStream(opConnect, t, conn)
}
