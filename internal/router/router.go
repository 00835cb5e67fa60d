// Package router implements the router core: per-frame
// classification, IPv4 forwarding, and the ARP resolution state machine,
// for one independent router instance. Multiple instances share nothing
// but the process they run in.
package router

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/quaylabs/iprouter/internal/arpcache"
	"github.com/quaylabs/iprouter/internal/icmpresp"
	"github.com/quaylabs/iprouter/internal/metrics"
	"github.com/quaylabs/iprouter/internal/netheader"
	"github.com/quaylabs/iprouter/internal/pending"
	"github.com/quaylabs/iprouter/internal/topology"
)

// IOLayer is the one thing the core invokes on its external collaborator:
// transmitting a fully-built frame out an interface.
type IOLayer interface {
	SendFrame(ctx context.Context, iface *topology.Interface, frame []byte) error
}

// InboundFrame is a frame as delivered by the I/O layer: a read-only byte
// buffer plus the interface it arrived on. The router never
// retains Data beyond the call that receives it without deep-copying it
// first.
type InboundFrame struct {
	Data    []byte
	Ingress *topology.Interface
}

// Router is the per-instance state: an ordered
// interface list, an immutable routing table, an ARP cache, a pending
// request table, and the mutex guarding the latter two together.
type Router struct {
	Name       string
	Interfaces []*topology.Interface
	Table      *topology.Table

	io  IOLayer
	log *slog.Logger
	met *metrics.Metrics
	icmp *icmpresp.Responder

	arpMu   sync.Mutex
	cache   *arpcache.Cache
	pending *pending.Table

	arpCacheTTL      time.Duration
	arpCacheCapacity int
	retryInterval    time.Duration
	maxRetries       int
}

// Option configures a Router at construction time, the same functional
// options shape used elsewhere in this codebase.
type Option func(*Router)

// WithLogger overrides the router's *slog.Logger (default: slog.Default).
func WithLogger(log *slog.Logger) Option {
	return func(r *Router) { r.log = log }
}

// WithMetrics attaches a *metrics.Metrics; if omitted, metrics calls are
// no-ops.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Router) { r.met = m }
}

// WithARPCacheTTL overrides the ARP cache entry lifetime (default 15s).
func WithARPCacheTTL(ttl time.Duration) Option {
	return func(r *Router) { r.arpCacheTTL = ttl }
}

// WithARPCacheCapacity overrides the ARP cache capacity (default 256).
func WithARPCacheCapacity(n int) Option {
	return func(r *Router) { r.arpCacheCapacity = n }
}

// WithRetryInterval records the pending-ARP retry cadence (default 1s).
// The Router does not read it: one ARP request is retransmitted per
// pending entry on each ARPTick call, so the cadence is that of the caller
// driving ARPTick.
func WithRetryInterval(d time.Duration) Option {
	return func(r *Router) { r.retryInterval = d }
}

// WithMaxRetries overrides the retry cap before abandonment (default 5).
func WithMaxRetries(n int) Option {
	return func(r *Router) { r.maxRetries = n }
}

// New builds a Router for name, serving ifaces and routed by table, using
// io to transmit frames.
func New(name string, ifaces []*topology.Interface, table *topology.Table, io IOLayer, opts ...Option) *Router {
	r := &Router{
		Name:             name,
		Interfaces:       ifaces,
		Table:            table,
		io:               io,
		log:              slog.Default(),
		icmp:             icmpresp.New(),
		pending:          pending.New(),
		arpCacheTTL:      arpcache.DefaultTTL,
		arpCacheCapacity: arpcache.DefaultCapacity,
		retryInterval:    time.Second,
		maxRetries:       5,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.cache = arpcache.New(r.arpCacheTTL, r.arpCacheCapacity)
	if r.log == nil {
		r.log = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return r
}

// ownInterface returns the interface owning ip among r.Interfaces, if any.
func (r *Router) ownInterface(ip netheader.Addr) (*topology.Interface, bool) {
	for _, iface := range r.Interfaces {
		if iface.IP == ip {
			return iface, true
		}
	}
	return nil, false
}
