// Package resolver turns guest-supplied hostnames into socket addresses.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
)

// ErrNoAddress is returned when a lookup succeeds but yields nothing usable.
var ErrNoAddress = errors.New("no address found")

// Resolver resolves a hostname and port. An empty hostname means 0.0.0.0.
type Resolver interface {
	Resolve(ctx context.Context, hostname string, port uint16) (netip.AddrPort, error)
}

// Func adapts a function to Resolver.
type Func func(ctx context.Context, hostname string, port uint16) (netip.AddrPort, error)

func (f Func) Resolve(ctx context.Context, hostname string, port uint16) (netip.AddrPort, error) {
	return f(ctx, hostname, port)
}

// literal handles the cases that never need a lookup: the empty host and IP
// literals, bracketed or not.
func literal(hostname string, port uint16) (netip.AddrPort, bool) {
	host := strings.TrimSuffix(strings.TrimPrefix(hostname, "["), "]")
	if host == "" {
		return netip.AddrPortFrom(netip.IPv4Unspecified(), port), true
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		return netip.AddrPortFrom(addr, port), true
	}
	return netip.AddrPort{}, false
}

// System uses the Go resolver.
type System struct {
	Resolver *net.Resolver
}

func (s System) Resolve(ctx context.Context, hostname string, port uint16) (netip.AddrPort, error) {
	if ap, ok := literal(hostname, port); ok {
		return ap, nil
	}
	r := s.Resolver
	if r == nil {
		r = net.DefaultResolver
	}
	addrs, err := r.LookupNetIP(ctx, "ip", hostname)
	if err != nil {
		return netip.AddrPort{}, err
	}
	for _, a := range addrs {
		if a.Unmap().Is4() {
			return netip.AddrPortFrom(a.Unmap(), port), nil
		}
	}
	if len(addrs) == 0 {
		return netip.AddrPort{}, fmt.Errorf("%s: %w", hostname, ErrNoAddress)
	}
	return netip.AddrPortFrom(addrs[0], port), nil
}
