package netops

import (
	"fmt"

	"github.com/OpenListTeam/wazero-netops/manager/resource"
	"github.com/OpenListTeam/wazero-netops/manager/sockets"
)

// ParseShutdownMode validates a wire-level direction. Anything other than
// 0 (read) or 1 (write) is a ProtocolViolation.
func ParseShutdownMode(how int) (ShutdownMode, error) {
	if how < 0 || how > 255 || !ShutdownMode(how).Valid() {
		return 0, newError(KindProtocolViolation, opShutdown, "", fmt.Sprintf("invalid shutdown direction %d", how), nil)
	}
	return ShutdownMode(how), nil
}

// Shutdown closes one direction of a tcp or unix stream. The resource stays
// in the table. Listeners and datagram sockets fail with BadResource.
//
// An invalid mode is a caller bug and panics; decode untrusted input with
// ParseShutdownMode first.
func (o *Ops) Shutdown(rid Rid, mode ShutdownMode) (err error) {
	if !mode.Valid() {
		panic(fmt.Sprintf("netops: invalid shutdown mode %d", uint8(mode)))
	}

	s, ok := resource.Lookup[sockets.StreamResource](o.table, rid)
	t := streamTransport(s)
	defer func() { o.metrics.observe(opShutdown, t, err) }()
	if !ok {
		return badResource(opShutdown, "", "bad resource id")
	}

	if err := s.Shutdown(mode); err != nil {
		return classify(opShutdown, t, socketClosed, err)
	}
	return nil
}

func streamTransport(s sockets.StreamResource) Transport {
	switch s.(type) {
	case *sockets.TCPStream:
		return TCP
	case *sockets.UnixStream:
		return Unix
	default:
		return ""
	}
}
