package resolver

import (
	"context"
	"net"
	"net/netip"
	"sync/atomic"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"
)

// startDNS serves A records from zone and NXDOMAIN for anything else.
func startDNS(t *testing.T, zone map[string]string) (string, *atomic.Int32) {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	var queries atomic.Int32
	handler := dns.HandlerFunc(func(w dns.ResponseWriter, req *dns.Msg) {
		queries.Add(1)
		m := new(dns.Msg)
		m.SetReply(req)
		q := req.Question[0]
		ip, ok := zone[q.Name]
		switch {
		case !ok:
			m.Rcode = dns.RcodeNameError
		case q.Qtype == dns.TypeA:
			m.Answer = append(m.Answer, &dns.A{
				Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60},
				A:   net.ParseIP(ip),
			})
		}
		w.WriteMsg(m)
	})

	started := make(chan struct{})
	srv := &dns.Server{PacketConn: pc, Handler: handler, NotifyStartedFunc: func() { close(started) }}
	go srv.ActivateAndServe()
	<-started
	t.Cleanup(func() { srv.Shutdown() })

	return pc.LocalAddr().String(), &queries
}

func TestLiterals(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"", "0.0.0.0:80"},
		{"127.0.0.1", "127.0.0.1:80"},
		{"::1", "[::1]:80"},
		{"[::1]", "[::1]:80"},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			for _, r := range []Resolver{System{}, NewDNS(nil, 0)} {
				ap, err := r.Resolve(context.Background(), tt.host, 80)
				require.NoError(t, err)
				require.Equal(t, netip.MustParseAddrPort(tt.want), ap)
			}
		})
	}
}

func TestSystemResolvesLocalhost(t *testing.T) {
	ap, err := System{}.Resolve(context.Background(), "localhost", 8080)
	require.NoError(t, err)
	require.True(t, ap.Addr().IsLoopback())
	require.Equal(t, uint16(8080), ap.Port())
}

func TestDNSResolver(t *testing.T) {
	ns, _ := startDNS(t, map[string]string{"svc.test.": "10.1.2.3"})
	r := NewDNS([]string{ns}, time.Second)

	ap, err := r.Resolve(context.Background(), "svc.test", 443)
	require.NoError(t, err)
	require.Equal(t, netip.MustParseAddrPort("10.1.2.3:443"), ap)

	_, err = r.Resolve(context.Background(), "missing.test", 443)
	require.Error(t, err)
	require.Contains(t, err.Error(), "NXDOMAIN")
}

func TestDNSResolverWithoutNameservers(t *testing.T) {
	_, err := NewDNS(nil, time.Second).Resolve(context.Background(), "svc.test", 1)
	require.ErrorIs(t, err, ErrNoNameservers)
}

func TestCachedResolver(t *testing.T) {
	ns, queries := startDNS(t, map[string]string{"svc.test.": "10.1.2.3"})
	r := NewCached(NewDNS([]string{ns}, time.Second), 8, time.Minute)

	ap, err := r.Resolve(context.Background(), "svc.test", 1)
	require.NoError(t, err)
	require.Equal(t, uint16(1), ap.Port())
	first := queries.Load()

	ap, err = r.Resolve(context.Background(), "svc.test", 2)
	require.NoError(t, err)
	require.Equal(t, netip.MustParseAddrPort("10.1.2.3:2"), ap)
	require.Equal(t, first, queries.Load(), "second lookup must hit the cache")
	require.Equal(t, 1, r.Len())

	_, err = r.Resolve(context.Background(), "missing.test", 1)
	require.Error(t, err)
	require.Equal(t, 1, r.Len(), "failures are not cached")
}
