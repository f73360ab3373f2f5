package netops

import (
	"slices"

	"github.com/OpenListTeam/wazero-netops/manager/sockets"
)

// Transport is the guest-facing transport tag.
type Transport string

const (
	TCP        Transport = sockets.TransportTCP
	UDP        Transport = sockets.TransportUDP
	Unix       Transport = sockets.TransportUnix
	UnixPacket Transport = sockets.TransportUnixPacket
)

func (t Transport) isUnix() bool {
	return t == Unix || t == UnixPacket
}

// Address is either an IPAddr or a PathAddr.
type Address interface {
	isAddress()
}

// IPAddr addresses tcp and udp endpoints. An empty Hostname means 0.0.0.0.
type IPAddr struct {
	Hostname string
	Port     uint16
}

// PathAddr addresses unix and unixpacket endpoints.
type PathAddr struct {
	Path string
}

func (IPAddr) isAddress()   {}
func (PathAddr) isAddress() {}

// Capabilities lists the transports the platform supports beyond TCP/UDP.
type Capabilities struct {
	Unix       bool
	UnixPacket bool
}

// DefaultCapabilities reports what the current platform supports.
func DefaultCapabilities() Capabilities {
	return defaultCapabilities
}

const (
	opListen   = "listen"
	opAccept   = "accept"
	opConnect  = "connect"
	opSend     = "send"
	opReceive  = "receive"
	opShutdown = "shutdown"
	opClose    = "close"
	opRead     = "read"
	opWrite    = "write"
)

var verbTransports = map[string][]Transport{
	opListen:  {TCP, UDP, Unix, UnixPacket},
	opAccept:  {TCP, Unix},
	opConnect: {TCP, Unix},
	opSend:    {UDP, UnixPacket},
	opReceive: {UDP, UnixPacket},
}

// checkTransport rejects unknown tags, tags the verb does not serve, and
// tags the platform lacks.
func (o *Ops) checkTransport(op string, t Transport) *Error {
	if !slices.Contains(verbTransports[op], t) {
		return unsupportedTransport(op, t)
	}
	switch {
	case t == Unix && !o.caps.Unix, t == UnixPacket && !o.caps.UnixPacket:
		return unsupportedTransport(op, t)
	}
	return nil
}

// splitAddress validates the transport for op and matches addr against it.
// Exactly one of the returned addresses is set.
func (o *Ops) splitAddress(op string, t Transport, addr Address) (*IPAddr, *PathAddr, *Error) {
	if err := o.checkTransport(op, t); err != nil {
		return nil, nil, err
	}
	switch a := addr.(type) {
	case IPAddr:
		if t.isUnix() {
			return nil, nil, wrongArgumentFormat(op, t)
		}
		return &a, nil, nil
	case *IPAddr:
		if t.isUnix() || a == nil {
			return nil, nil, wrongArgumentFormat(op, t)
		}
		return a, nil, nil
	case PathAddr:
		if !t.isUnix() {
			return nil, nil, wrongArgumentFormat(op, t)
		}
		return nil, &a, nil
	case *PathAddr:
		if !t.isUnix() || a == nil {
			return nil, nil, wrongArgumentFormat(op, t)
		}
		return nil, a, nil
	default:
		return nil, nil, wrongArgumentFormat(op, t)
	}
}
