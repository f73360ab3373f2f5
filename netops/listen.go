package netops

import (
	"context"
	"net"
	"net/netip"

	"go.uber.org/zap"

	"github.com/OpenListTeam/wazero-netops/manager/resource"
	"github.com/OpenListTeam/wazero-netops/manager/sockets"
)

// ListenResult is returned by Listen.
type ListenResult struct {
	Rid       Rid        `json:"rid"`
	LocalAddr SocketAddr `json:"localAddr"`
}

// Listen binds a new socket. tcp and unix produce listeners, udp and
// unixpacket produce datagram sockets. The permission check runs before any
// resolution or bind.
func (o *Ops) Listen(ctx context.Context, t Transport, addr Address) (res ListenResult, err error) {
	defer func() { o.metrics.observe(opListen, t, err) }()

	ip, path, e := o.splitAddress(opListen, t, addr)
	if e != nil {
		return res, e
	}
	if ip != nil {
		return o.listenIP(ctx, t, *ip)
	}
	return o.listenUnix(ctx, t, path.Path)
}

func (o *Ops) listenIP(ctx context.Context, t Transport, ip IPAddr) (ListenResult, error) {
	if e := o.checkNet(opListen, t, ip); e != nil {
		return ListenResult{}, e
	}
	ap, e := o.resolve(ctx, opListen, t, ip)
	if e != nil {
		return ListenResult{}, e
	}

	lc := net.ListenConfig{Control: o.sockopts.Control()}
	switch t {
	case TCP:
		ln, err := lc.Listen(ctx, "tcp", ap.String())
		if err != nil {
			return ListenResult{}, classify(opListen, t, "", err)
		}
		return o.addListener(t, sockets.NewTCPListener(ln.(*net.TCPListener)), ln.Addr())
	default:
		pc, err := lc.ListenPacket(ctx, "udp", ap.String())
		if err != nil {
			return ListenResult{}, classify(opListen, t, "", err)
		}
		return o.addListener(t, sockets.NewUDPSocket(pc.(*net.UDPConn)), pc.LocalAddr())
	}
}

func (o *Ops) listenUnix(ctx context.Context, t Transport, path string) (ListenResult, error) {
	if e := o.checkRead(opListen, t, path); e != nil {
		return ListenResult{}, e
	}

	lc := net.ListenConfig{}
	switch t {
	case Unix:
		ln, err := lc.Listen(ctx, "unix", path)
		if err != nil {
			return ListenResult{}, classify(opListen, t, "", err)
		}
		return o.addListener(t, sockets.NewUnixListener(ln.(*net.UnixListener), path), ln.Addr())
	default:
		pc, err := lc.ListenPacket(ctx, "unixgram", path)
		if err != nil {
			return ListenResult{}, classify(opListen, t, "", err)
		}
		return o.addListener(t, sockets.NewUnixDatagram(pc.(*net.UnixConn), path), pc.LocalAddr())
	}
}

func (o *Ops) addListener(t Transport, r resource.Resource, local net.Addr) (ListenResult, error) {
	la, err := sockets.ToSocketAddr(local)
	if err != nil {
		r.Close()
		return ListenResult{}, newError(KindIoError, opListen, t, "local address", err)
	}
	rid, err := o.add(opListen, t, r)
	if err != nil {
		return ListenResult{}, err
	}
	o.log.Debug("new listener",
		zap.Uint32("rid", rid),
		zap.String("transport", string(t)),
		zap.Stringer("addr", la))
	return ListenResult{Rid: rid, LocalAddr: la}, nil
}

// checkNet consults the permission checker for an IP endpoint. It runs on
// every call; results are never cached.
func (o *Ops) checkNet(op string, t Transport, ip IPAddr) *Error {
	if err := o.perms.CheckNetwork(ip.Hostname, ip.Port); err != nil {
		return newError(KindPermissionDenied, op, t, "", err)
	}
	return nil
}

func (o *Ops) checkRead(op string, t Transport, path string) *Error {
	if err := o.perms.CheckRead(path); err != nil {
		return newError(KindPermissionDenied, op, t, "", err)
	}
	return nil
}

func (o *Ops) resolve(ctx context.Context, op string, t Transport, ip IPAddr) (netip.AddrPort, *Error) {
	ap, err := o.resolver.Resolve(ctx, ip.Hostname, ip.Port)
	if err != nil {
		return netip.AddrPort{}, newError(KindResolutionFailed, op, t, ip.Hostname, err)
	}
	return ap, nil
}
