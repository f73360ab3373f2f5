package sockets

import (
	"strings"
	"syscall"
)

// Options are applied to every socket before bind or connect.
type Options struct {
	// IPv6Only sets IPV6_V6ONLY on IPv6 sockets so that a wildcard "::"
	// bind does not also accept IPv4 traffic.
	IPv6Only bool
}

// Control returns a hook for net.ListenConfig and net.Dialer.
func (o Options) Control() func(network, address string, c syscall.RawConn) error {
	return func(network, _ string, c syscall.RawConn) error {
		if !o.IPv6Only || !strings.HasSuffix(network, "6") {
			return nil
		}
		return setIPv6Only(c, true)
	}
}
