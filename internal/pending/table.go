// Package pending implements the per-router pending ARP request table:
// one in-flight next-hop resolution per unresolved IPv4 address, each
// carrying the frames withheld while that resolution is in flight.
package pending

import (
	"errors"
	"fmt"
	"time"

	"github.com/quaylabs/iprouter/internal/netheader"
	"github.com/quaylabs/iprouter/internal/topology"
)

// MaxWithheldPerEntry bounds how many frames a single pending entry may
// buffer before further attaches are rejected as resource exhaustion. A
// learning router serving a handful of hosts never legitimately needs
// more than this in flight for one unresolved neighbor.
const MaxWithheldPerEntry = 256

// ErrWithheldLimit is returned by AttachFrame when an entry's withheld
// list is already at MaxWithheldPerEntry.
var ErrWithheldLimit = errors.New("pending: withheld frame limit reached for this entry")

// WithheldFrame is an owned deep copy of an inbound frame, held aside
// until its next-hop resolves or the pending entry is abandoned. Ingress
// is kept so a host-unreachable or time-exceeded ICMP can be generated
// back toward the frame's original source interface.
type WithheldFrame struct {
	Data    []byte
	Ingress *topology.Interface
}

// Entry is one unresolved next-hop: the IPv4 target, the interface an ARP
// request is sent on, retry bookkeeping, and the frames waiting on it.
type Entry struct {
	TargetIP  netheader.Addr
	Egress    *topology.Interface
	TimesSent int
	LastSent  time.Time
	Withheld  []WithheldFrame
}

// Table is the mutable pending-request half of the per-router ARP state.
// Like Cache, it performs no locking of its own -- every method
// must be called with the router's ARP mutex held, the same single-lock
// discipline other stateful types in this codebase use for their maps.
type Table struct {
	entries map[netheader.Addr]*Entry
}

// New returns an empty pending-request table.
func New() *Table {
	return &Table{entries: make(map[netheader.Addr]*Entry)}
}

// Lookup returns the pending entry for ip, if one exists.
func (t *Table) Lookup(ip netheader.Addr) (*Entry, bool) {
	e, ok := t.entries[ip]
	return e, ok
}

// Create registers a new pending entry for ip on egress, with times_sent
// and last_sent zeroed; the caller sets both when it sends the initial
// ARP request.
func (t *Table) Create(ip netheader.Addr, egress *topology.Interface) *Entry {
	e := &Entry{TargetIP: ip, Egress: egress}
	t.entries[ip] = e
	return e
}

// AttachFrame takes a deep copy of raw and appends it, with its ingress
// interface, to e's withheld list. The deep copy is mandatory: the I/O
// layer reclaims the original buffer once the classifier returns.
func (t *Table) AttachFrame(e *Entry, raw []byte, ingress *topology.Interface) error {
	if len(e.Withheld) >= MaxWithheldPerEntry {
		return fmt.Errorf("%w (target=%s)", ErrWithheldLimit, e.TargetIP)
	}
	cp := make([]byte, len(raw))
	copy(cp, raw)
	e.Withheld = append(e.Withheld, WithheldFrame{Data: cp, Ingress: ingress})
	return nil
}

// Remove frees the entry for ip, releasing its withheld frames along with
// it (Go's GC reclaims the backing buffers once the entry is unreachable).
func (t *Table) Remove(ip netheader.Addr) {
	delete(t.entries, ip)
}

// All returns every pending entry, for the ARP worker's per-tick sweep.
// The caller holds the ARP mutex for the duration of the sweep.
func (t *Table) All() []*Entry {
	out := make([]*Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	return out
}

// Len reports how many targets are currently unresolved, used for metrics.
func (t *Table) Len() int {
	return len(t.entries)
}
