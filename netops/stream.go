package netops

import (
	"context"
	"errors"
	"io"

	"github.com/OpenListTeam/wazero-netops/manager/resource"
	"github.com/OpenListTeam/wazero-netops/manager/sockets"
)

// Read reads from a tcp or unix stream. End of stream is reported as
// (0, io.EOF), unwrapped.
func (o *Ops) Read(ctx context.Context, rid Rid, buf []byte) (n int, err error) {
	s, ok := resource.Lookup[sockets.StreamResource](o.table, rid)
	t := streamTransport(s)
	defer func() {
		if err == io.EOF {
			o.metrics.observe(opRead, t, nil)
			return
		}
		o.metrics.observe(opRead, t, err)
	}()
	if !ok {
		return 0, badResource(opRead, "", "bad resource id")
	}

	n, err = s.Read(ctx, buf)
	switch {
	case err == nil:
		return n, nil
	case errors.Is(err, io.EOF):
		return n, io.EOF
	default:
		return n, classify(opRead, t, socketClosed, err)
	}
}

// Write writes all of buf to a tcp or unix stream.
func (o *Ops) Write(ctx context.Context, rid Rid, buf []byte) (n int, err error) {
	s, ok := resource.Lookup[sockets.StreamResource](o.table, rid)
	t := streamTransport(s)
	defer func() { o.metrics.observe(opWrite, t, err) }()
	if !ok {
		return 0, badResource(opWrite, "", "bad resource id")
	}

	n, err = s.Write(ctx, buf)
	if err != nil {
		return n, classify(opWrite, t, socketClosed, err)
	}
	return n, nil
}
