package resolver

import (
	"context"
	"net/netip"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cached remembers successful lookups for ttl. Failures are not cached and
// the port is applied per call, so entries are keyed by hostname only.
type Cached struct {
	next  Resolver
	cache *expirable.LRU[string, netip.Addr]
}

func NewCached(next Resolver, size int, ttl time.Duration) *Cached {
	return &Cached{
		next:  next,
		cache: expirable.NewLRU[string, netip.Addr](size, nil, ttl),
	}
}

func (c *Cached) Resolve(ctx context.Context, hostname string, port uint16) (netip.AddrPort, error) {
	if ap, ok := literal(hostname, port); ok {
		return ap, nil
	}
	if addr, ok := c.cache.Get(hostname); ok {
		return netip.AddrPortFrom(addr, port), nil
	}
	ap, err := c.next.Resolve(ctx, hostname, port)
	if err != nil {
		return netip.AddrPort{}, err
	}
	c.cache.Add(hostname, ap.Addr())
	return ap, nil
}

// Len reports the number of live entries.
func (c *Cached) Len() int { return c.cache.Len() }
