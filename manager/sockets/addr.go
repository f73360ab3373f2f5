package sockets

import (
	"encoding/json"
	"errors"
	"net"
	"strconv"
)

// Transport tags as seen by the guest.
const (
	TransportTCP        = "tcp"
	TransportUDP        = "udp"
	TransportUnix       = "unix"
	TransportUnixPacket = "unixpacket"
)

// SocketAddr is the guest-visible form of a local or remote address.
// IP addresses carry Hostname/Port, Unix addresses carry Path. An unnamed
// Unix peer has Unnamed set and encodes its address as null.
type SocketAddr struct {
	Transport string
	Hostname  string
	Port      uint16
	Path      string
	Unnamed   bool
}

func (a SocketAddr) IsUnix() bool {
	return a.Transport == TransportUnix || a.Transport == TransportUnixPacket
}

func (a SocketAddr) String() string {
	if a.IsUnix() {
		if a.Unnamed {
			return "@"
		}
		return a.Path
	}
	return net.JoinHostPort(a.Hostname, strconv.Itoa(int(a.Port)))
}

func (a SocketAddr) MarshalJSON() ([]byte, error) {
	if a.IsUnix() {
		var addr *string
		if !a.Unnamed {
			addr = &a.Path
		}
		return json.Marshal(struct {
			Address   *string `json:"address"`
			Transport string  `json:"transport"`
		}{addr, a.Transport})
	}
	return json.Marshal(struct {
		Hostname  string `json:"hostname"`
		Port      uint16 `json:"port"`
		Transport string `json:"transport"`
	}{a.Hostname, a.Port, a.Transport})
}

// ToSocketAddr converts an address returned by the net package.
func ToSocketAddr(addr net.Addr) (SocketAddr, error) {
	switch a := addr.(type) {
	case *net.TCPAddr:
		ap := a.AddrPort()
		return SocketAddr{
			Transport: TransportTCP,
			Hostname:  ap.Addr().Unmap().String(),
			Port:      ap.Port(),
		}, nil
	case *net.UDPAddr:
		ap := a.AddrPort()
		return SocketAddr{
			Transport: TransportUDP,
			Hostname:  ap.Addr().Unmap().String(),
			Port:      ap.Port(),
		}, nil
	case *net.UnixAddr:
		transport := TransportUnix
		if a.Net == "unixgram" {
			transport = TransportUnixPacket
		}
		// Linux reports an unnamed peer as "@".
		unnamed := a.Name == "" || a.Name == "@"
		sa := SocketAddr{Transport: transport, Unnamed: unnamed}
		if !unnamed {
			sa.Path = a.Name
		}
		return sa, nil
	case nil:
		return SocketAddr{}, errors.New("nil address")
	default:
		return SocketAddr{}, errors.New("unsupported address type " + addr.Network())
	}
}

// UnixAddrOrUnnamed is ToSocketAddr for Unix peers that may be nil, which
// happens for unbound senders and accepted Unix connections.
func UnixAddrOrUnnamed(addr net.Addr, transport string) SocketAddr {
	if ua, ok := addr.(*net.UnixAddr); ok && ua != nil {
		sa, _ := ToSocketAddr(ua)
		sa.Transport = transport
		return sa
	}
	return SocketAddr{Transport: transport, Unnamed: true}
}
