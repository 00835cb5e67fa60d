// Package arpcache implements the per-router, time-limited IPv4-to-MAC
// cache, backed by github.com/jellydator/ttlcache/v3 the same
// way a TTL-scoped lookaside cache is used elsewhere in this codebase.
package arpcache

import (
	"net"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/quaylabs/iprouter/internal/netheader"
)

const (
	// DefaultTTL is the default ARP cache entry lifetime.
	DefaultTTL = 15 * time.Second
	// DefaultCapacity bounds how many resolved neighbors a single router
	// instance remembers at once.
	DefaultCapacity = 256
)

// Cache is the mutable half of the per-router ARP state. Callers
// are responsible for holding the router's ARP mutex around every method;
// Cache itself does no locking: a single outer mutex guards a bundle of
// related state rather than a lock per collaborator.
type Cache struct {
	inner *ttlcache.Cache[netheader.Addr, net.HardwareAddr]
}

// New builds an empty cache with the given TTL and capacity. The cache's
// own background janitor is intentionally never started (no Start call):
// expiration is driven exclusively by the ARP worker calling ExpireNow
// once per tick.
func New(ttl time.Duration, capacity int) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	inner := ttlcache.New[netheader.Addr, net.HardwareAddr](
		ttlcache.WithTTL[netheader.Addr, net.HardwareAddr](ttl),
		ttlcache.WithCapacity[netheader.Addr, net.HardwareAddr](uint64(capacity)),
	)
	return &Cache{inner: inner}
}

// Lookup returns the MAC cached for ip, if any and not expired.
func (c *Cache) Lookup(ip netheader.Addr) (net.HardwareAddr, bool) {
	item := c.inner.Get(ip)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

// Add inserts or refreshes ip's entry, stamping a fresh insertion time.
func (c *Cache) Add(ip netheader.Addr, mac net.HardwareAddr) {
	c.inner.Set(ip, mac, ttlcache.DefaultTTL)
}

// ExpireNow removes every entry older than the configured TTL. Called once
// per ARP worker tick; never called from the frame-processing path.
func (c *Cache) ExpireNow() {
	c.inner.DeleteExpired()
}

// Len reports the number of live (non-expired) entries, used for metrics.
func (c *Cache) Len() int {
	return c.inner.Len()
}
