package netops

import (
	"context"
	"net/netip"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/OpenListTeam/wazero-netops/manager/permissions"
	"github.com/OpenListTeam/wazero-netops/manager/resolver"
)

func TestUDPRoundTrip(t *testing.T) {
	o := newTestOps(t)
	ctx := context.Background()

	receiver, err := o.Listen(ctx, UDP, loopback)
	require.NoError(t, err)
	sender, err := o.Listen(ctx, UDP, loopback)
	require.NoError(t, err)
	require.Equal(t, "udp", sender.LocalAddr.Transport)

	payload := []byte("datagram payload")
	n, err := o.Send(ctx, sender.Rid, UDP, IPAddr{Hostname: "127.0.0.1", Port: receiver.LocalAddr.Port}, payload)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)

	buf := make([]byte, 64)
	res, err := o.Receive(ctx, receiver.Rid, UDP, buf)
	require.NoError(t, err)
	require.Equal(t, len(payload), res.Size)
	require.Equal(t, payload, buf[:res.Size])
	require.Equal(t, sender.LocalAddr, res.RemoteAddr)
}

func TestSendChecksEveryCall(t *testing.T) {
	var lookups atomic.Int32
	res := resolver.Func(func(ctx context.Context, host string, port uint16) (netip.AddrPort, error) {
		lookups.Add(1)
		return resolver.System{}.Resolve(ctx, host, port)
	})
	allow := permissions.NewAllowlist(permissions.AllowNet("127.0.0.1"))
	o := newTestOps(t, WithPermissions(allow), WithResolver(res))
	ctx := context.Background()

	receiver, err := o.Listen(ctx, UDP, loopback)
	require.NoError(t, err)
	dst := IPAddr{Hostname: "127.0.0.1", Port: receiver.LocalAddr.Port}
	base := lookups.Load()

	for range 3 {
		_, err := o.Send(ctx, receiver.Rid, UDP, dst, []byte("x"))
		require.NoError(t, err)
	}
	require.Equal(t, base+3, lookups.Load(), "destination is resolved on every send")

	_, err = o.Send(ctx, receiver.Rid, UDP, IPAddr{Hostname: "10.0.0.1", Port: 9}, []byte("x"))
	require.ErrorIs(t, err, ErrPermissionDenied)
}

func TestSendReceiveErrors(t *testing.T) {
	o := newTestOps(t)
	ctx := context.Background()

	tcp, err := o.Listen(ctx, TCP, loopback)
	require.NoError(t, err)

	_, err = o.Send(ctx, tcp.Rid, UDP, IPAddr{Hostname: "127.0.0.1", Port: 9}, []byte("x"))
	require.ErrorIs(t, err, ErrBadResource, "a tcp listener is not a udp socket")

	_, err = o.Send(ctx, 1, UDP, PathAddr{Path: "/tmp/x"}, nil)
	require.ErrorIs(t, err, ErrProtocolViolation)
	require.Contains(t, err.Error(), "wrong argument format")

	_, err = o.Send(ctx, 1, TCP, IPAddr{}, nil)
	require.ErrorIs(t, err, ErrUnsupported)

	_, err = o.Receive(ctx, 99, UDP, make([]byte, 1))
	require.ErrorIs(t, err, ErrBadResource)

	_, err = o.Send(ctx, 1, UDP, IPAddr{Hostname: "no-such-host.invalid", Port: 9}, nil)
	require.ErrorIs(t, err, ErrBadResource, "lookup happens before resolution")
}

func TestReceiveUnblocksOnClose(t *testing.T) {
	o := newTestOps(t)
	ctx := context.Background()

	sock, err := o.Listen(ctx, UDP, loopback)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := o.Receive(ctx, sock.Rid, UDP, make([]byte, 8))
		done <- err
	}()

	// Give the receive a moment to park in the poller.
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, o.Close(sock.Rid))

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrBadResource)
	case <-time.After(5 * time.Second):
		t.Fatal("receive hung after close")
	}
}

func TestResolutionFailure(t *testing.T) {
	failing := resolver.Func(func(context.Context, string, uint16) (netip.AddrPort, error) {
		return netip.AddrPort{}, resolver.ErrNoAddress
	})
	o := newTestOps(t, WithResolver(failing))

	_, err := o.Listen(context.Background(), TCP, IPAddr{Hostname: "example.test"})
	require.ErrorIs(t, err, ErrResolutionFailed)
	require.ErrorIs(t, err, resolver.ErrNoAddress)
}

func TestListenPermissionDenied(t *testing.T) {
	var resolved atomic.Bool
	res := resolver.Func(func(context.Context, string, uint16) (netip.AddrPort, error) {
		resolved.Store(true)
		return netip.AddrPort{}, resolver.ErrNoAddress
	})
	o, err := New(WithResolver(res))
	require.NoError(t, err)
	defer o.CloseAll()

	_, err = o.Listen(context.Background(), TCP, loopback)
	require.ErrorIs(t, err, ErrPermissionDenied)
	require.False(t, resolved.Load(), "permission is checked before resolution")
}
