package router

import (
	"context"
	"net"
	"time"

	"github.com/google/gopacket/layers"
	"github.com/quaylabs/iprouter/internal/icmpresp"
	"github.com/quaylabs/iprouter/internal/netheader"
	"github.com/quaylabs/iprouter/internal/pending"
	"github.com/quaylabs/iprouter/internal/topology"
)

// handleARP answers or applies an inbound ARP packet. ARP
// whose target is not the ingress interface's IP (including another
// interface of this router) is ignored silently.
func (r *Router) handleARP(ctx context.Context, f InboundFrame, d *netheader.Decoded) Outcome {
	target := netheader.AddrFromIP(net.IP(d.ARP.DstProtAddress))
	if target != f.Ingress.IP {
		return OK()
	}

	switch d.ARP.Operation {
	case layers.ARPRequest:
		return r.sendARPReply(ctx, f.Ingress, d.ARP)
	case layers.ARPReply:
		return r.handleARPReply(ctx, f.Ingress, d.ARP)
	default:
		return OK()
	}
}

func (r *Router) sendARPReply(ctx context.Context, iface *topology.Interface, req *layers.ARP) Outcome {
	eth := &layers.Ethernet{
		SrcMAC:       iface.MAC,
		DstMAC:       net.HardwareAddr(req.SourceHwAddress),
		EthernetType: layers.EthernetTypeARP,
	}
	reply := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPReply,
		SourceHwAddress:   iface.MAC,
		SourceProtAddress: iface.IP.IP().To4(),
		DstHwAddress:      req.SourceHwAddress,
		DstProtAddress:    req.SourceProtAddress,
	}
	out, err := netheader.Serialize(eth, reply)
	if err != nil {
		return NonCritical(ErrSerialize)
	}
	if err := r.io.SendFrame(ctx, iface, out); err != nil {
		return NonCritical(ErrSendFrame)
	}
	return OK()
}

// handleARPReply installs the advertised mapping in the ARP cache and
// drains any pending entry waiting on it.
func (r *Router) handleARPReply(ctx context.Context, iface *topology.Interface, reply *layers.ARP) Outcome {
	spa := netheader.AddrFromIP(net.IP(reply.SourceProtAddress))
	sha := net.HardwareAddr(append([]byte(nil), reply.SourceHwAddress...))

	r.arpMu.Lock()
	r.cache.Add(spa, sha)
	entry, ok := r.pending.Lookup(spa)
	var withheld []pending.WithheldFrame
	var egress *topology.Interface
	if ok {
		withheld = entry.Withheld
		egress = entry.Egress
		r.pending.Remove(spa)
	}
	r.met.SetCacheSize(r.cache.Len())
	r.met.SetPendingSize(r.pending.Len())
	r.arpMu.Unlock()

	if !ok {
		return OK()
	}
	for _, wf := range withheld {
		r.drainWithheldFrame(ctx, egress, wf, sha)
	}
	return OK()
}

// drainWithheldFrame forwards a withheld frame now that its next hop has
// resolved, or emits a time-exceeded ICMP back to its original ingress if
// the datagram's TTL was already at the floor.
func (r *Router) drainWithheldFrame(ctx context.Context, egress *topology.Interface, wf pending.WithheldFrame, mac net.HardwareAddr) {
	d, err := netheader.Decode(wf.Data)
	if err != nil || d.IPv4 == nil {
		r.log.Warn("dropping withheld frame that no longer decodes", "iface", wf.Ingress.Name)
		return
	}
	if d.IPv4.TTL == 1 {
		r.sendError(ctx, wf.Ingress, d, "time_exceeded", func() ([]byte, error) {
			return r.icmp.TimeExceeded(wf.Ingress, d)
		})
		return
	}
	r.rewriteAndSend(ctx, egress, mac, d)
}

// ARPTick advances the ARP resolution subsystem by one tick:
// expiring stale cache entries, abandoning pending entries that have
// exhausted their retries, and retransmitting ARP requests for the rest.
// Called at ~1 Hz by the ARP worker, independently of inbound traffic.
//
// A pending entry with times_sent already past the retry cap should be
// impossible -- an entry is abandoned and removed on the first tick that
// finds it at the cap, so no live entry should ever be found above it. ARPTick checks
// this defensively before acting on the sweep and reports Fatal if it
// ever finds one, since that means the retry bookkeeping itself is
// corrupt, not that a neighbor is merely unreachable.
func (r *Router) ARPTick(ctx context.Context) Outcome {
	r.arpMu.Lock()
	r.cache.ExpireNow()

	entries := r.pending.All()
	var abandoned []*pending.Entry
	var retry []*pending.Entry
	for _, e := range entries {
		if e.TimesSent > r.maxRetries {
			r.arpMu.Unlock()
			r.log.Error("pending entry violates times_sent invariant",
				"target", e.TargetIP, "times_sent", e.TimesSent, "max_retries", r.maxRetries)
			return Fatal(ErrPendingEntryCorrupt)
		}
		if e.TimesSent == r.maxRetries {
			abandoned = append(abandoned, e)
			continue
		}
		retry = append(retry, e)
	}
	for _, e := range abandoned {
		r.pending.Remove(e.TargetIP)
	}
	now := time.Now()
	for _, e := range retry {
		e.TimesSent++
		e.LastSent = now
	}
	r.met.SetCacheSize(r.cache.Len())
	r.met.SetPendingSize(r.pending.Len())
	r.arpMu.Unlock()

	for _, e := range abandoned {
		r.met.IncARPAbandoned()
		for _, wf := range e.Withheld {
			d, err := netheader.Decode(wf.Data)
			if err != nil || d.IPv4 == nil {
				continue
			}
			r.sendError(ctx, wf.Ingress, d, "host_unreachable", func() ([]byte, error) {
				return r.icmp.DestUnreachable(wf.Ingress, d, icmpresp.CodeHostUnreachable)
			})
		}
	}
	for _, e := range retry {
		r.sendARPRequest(ctx, e.Egress, e.TargetIP)
	}
	return OK()
}
