// Package topology holds the router's immutable, load-time data: the
// interface list and the routing table. Neither is mutated after
// startup, so both are safe to read from the classifier and the ARP
// worker without synchronization.
package topology

import (
	"math/bits"
	"net"

	"github.com/quaylabs/iprouter/internal/netheader"
)

// Interface is a router-owned link: a name, a MAC, and an IPv4 address.
// Created at startup, never mutated.
type Interface struct {
	Name string
	MAC  net.HardwareAddr
	IP   netheader.Addr
}

// Route is a single routing table entry: destination network, mask, an
// optional gateway (the zero address means directly connected), and the
// egress interface.
type Route struct {
	Dest    netheader.Addr
	Mask    netheader.Addr
	Gateway netheader.Addr
	Iface   *Interface
}

// DirectlyConnected reports whether this route has no next-hop gateway.
func (r Route) DirectlyConnected() bool {
	return r.Gateway.IsZero()
}

func (r Route) maskLen() int {
	n := 0
	for _, b := range r.Mask {
		n += bits.OnesCount8(b)
	}
	return n
}

func (r Route) matches(dst netheader.Addr) bool {
	for i := range dst {
		if dst[i]&r.Mask[i] != r.Dest[i]&r.Mask[i] {
			return false
		}
	}
	return true
}

// Table is the immutable, loaded-once routing table. A linear scan over
// the handful of entries a learning router carries is the intended
// implementation -- this is not a candidate for a trie.
type Table struct {
	routes []Route
}

// NewTable builds a Table from entries, preserving insertion order so that
// longest-prefix-match ties break deterministically on "first inserted".
func NewTable(entries []Route) *Table {
	routes := make([]Route, len(entries))
	copy(routes, entries)
	return &Table{routes: routes}
}

// Lookup returns the route with the longest matching prefix for dst, or
// false if no route matches.
func (t *Table) Lookup(dst netheader.Addr) (Route, bool) {
	best := -1
	bestLen := -1
	for i, r := range t.routes {
		if !r.matches(dst) {
			continue
		}
		if l := r.maskLen(); l > bestLen {
			bestLen = l
			best = i
		}
	}
	if best < 0 {
		return Route{}, false
	}
	return t.routes[best], true
}
