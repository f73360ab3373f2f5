package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/multierr"
)

const defaultTimeout = 2 * time.Second

var ErrNoNameservers = errors.New("no nameservers configured")

// DNS queries the configured nameservers directly, A before AAAA. Each
// nameserver is tried once; there is no retry.
type DNS struct {
	nameservers []string
	client      *dns.Client
}

// NewDNS returns a resolver for nameservers given as "host:port".
func NewDNS(nameservers []string, timeout time.Duration) *DNS {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &DNS{
		nameservers: nameservers,
		client:      &dns.Client{Net: "udp", Timeout: timeout},
	}
}

func (r *DNS) Resolve(ctx context.Context, hostname string, port uint16) (netip.AddrPort, error) {
	if ap, ok := literal(hostname, port); ok {
		return ap, nil
	}

	fqdn := dns.Fqdn(hostname)
	var errs error
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		addr, err := r.query(ctx, fqdn, qtype)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if addr.IsValid() {
			return netip.AddrPortFrom(addr, port), nil
		}
	}
	if errs != nil {
		return netip.AddrPort{}, errs
	}
	return netip.AddrPort{}, fmt.Errorf("%s: %w", hostname, ErrNoAddress)
}

// query returns the first address of type qtype. A valid response with no
// matching record yields the zero Addr and no error.
func (r *DNS) query(ctx context.Context, fqdn string, qtype uint16) (netip.Addr, error) {
	m := new(dns.Msg)
	m.SetQuestion(fqdn, qtype)
	m.RecursionDesired = true

	var errs error
	for _, ns := range r.nameservers {
		in, _, err := r.client.ExchangeContext(ctx, m, ns)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", ns, err))
			continue
		}
		if in.Rcode != dns.RcodeSuccess {
			errs = multierr.Append(errs, fmt.Errorf("%s: %s %s", ns, dns.TypeToString[qtype], dns.RcodeToString[in.Rcode]))
			continue
		}
		for _, rr := range in.Answer {
			switch v := rr.(type) {
			case *dns.A:
				if qtype == dns.TypeA {
					if a, ok := netip.AddrFromSlice(v.A.To4()); ok {
						return a, nil
					}
				}
			case *dns.AAAA:
				if qtype == dns.TypeAAAA {
					if a, ok := netip.AddrFromSlice(v.AAAA.To16()); ok {
						return a, nil
					}
				}
			}
		}
		return netip.Addr{}, nil
	}
	if errs == nil {
		return netip.Addr{}, ErrNoNameservers
	}
	return netip.Addr{}, errs
}
