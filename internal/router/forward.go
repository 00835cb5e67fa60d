package router

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/quaylabs/iprouter/internal/icmpresp"
	"github.com/quaylabs/iprouter/internal/netheader"
	"github.com/quaylabs/iprouter/internal/topology"
)

// forward handles an IPv4 datagram not addressed to this router: route
// lookup, ARP cache hit/miss, and either an immediate rewrite-and-transmit
// or queuing behind a pending ARP request.
func (r *Router) forward(ctx context.Context, f InboundFrame, d *netheader.Decoded) Outcome {
	dst := netheader.AddrFromIP(d.IPv4.DstIP)
	route, ok := r.Table.Lookup(dst)
	if !ok {
		return r.sendError(ctx, f.Ingress, d, "network_unreachable", func() ([]byte, error) {
			return r.icmp.DestUnreachable(f.Ingress, d, icmpresp.CodeNetUnreachable)
		})
	}
	nextHop := route.Gateway
	if nextHop.IsZero() {
		nextHop = dst
	}

	r.arpMu.Lock()
	mac, hit := r.cache.Lookup(nextHop)
	if hit {
		r.arpMu.Unlock()
		if d.IPv4.TTL == 1 {
			return r.sendError(ctx, f.Ingress, d, "time_exceeded", func() ([]byte, error) {
				return r.icmp.TimeExceeded(f.Ingress, d)
			})
		}
		return r.rewriteAndSend(ctx, route.Iface, mac, d)
	}

	entry, exists := r.pending.Lookup(nextHop)
	if !exists {
		entry = r.pending.Create(nextHop, route.Iface)
		attachErr := r.pending.AttachFrame(entry, f.Data, f.Ingress)
		if attachErr == nil {
			entry.TimesSent = 1
			entry.LastSent = time.Now()
		}
		r.arpMu.Unlock()
		if attachErr != nil {
			return NonCritical(fmt.Errorf("%w: %w", ErrWithheldFrameLimit, attachErr))
		}
		r.met.SetPendingSize(r.pending.Len())
		return r.sendARPRequest(ctx, route.Iface, nextHop)
	}
	attachErr := r.pending.AttachFrame(entry, f.Data, f.Ingress)
	r.arpMu.Unlock()
	if attachErr != nil {
		return NonCritical(fmt.Errorf("%w: %w", ErrWithheldFrameLimit, attachErr))
	}
	return OK()
}

// rewriteAndSend rebuilds the Ethernet header around the original IPv4
// datagram, decrements TTL, recomputes the IPv4 checksum, and transmits
// on egress.
func (r *Router) rewriteAndSend(ctx context.Context, egress *topology.Interface, dstMAC net.HardwareAddr, d *netheader.Decoded) Outcome {
	ip := *d.IPv4
	ip.TTL--
	ip.IHL = 5
	ip.Options = nil
	ip.Padding = nil
	ip.Checksum = 0

	eth := &layers.Ethernet{
		SrcMAC:       egress.MAC,
		DstMAC:       dstMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}
	out, err := netheader.Serialize(eth, &ip, gopacket.Payload(d.IPv4.Payload))
	if err != nil {
		return NonCritical(ErrSerialize)
	}
	if err := r.io.SendFrame(ctx, egress, out); err != nil {
		return NonCritical(ErrSendFrame)
	}
	r.met.IncForwarded()
	return OK()
}

// sendARPRequest broadcasts an ARP request for target on egress.
func (r *Router) sendARPRequest(ctx context.Context, egress *topology.Interface, target netheader.Addr) Outcome {
	eth := &layers.Ethernet{
		SrcMAC:       egress.MAC,
		DstMAC:       netheader.BroadcastMAC(),
		EthernetType: layers.EthernetTypeARP,
	}
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   egress.MAC,
		SourceProtAddress: egress.IP.IP().To4(),
		DstHwAddress:      []byte{0, 0, 0, 0, 0, 0},
		DstProtAddress:    target.IP().To4(),
	}
	out, err := netheader.Serialize(eth, arp)
	if err != nil {
		return NonCritical(ErrSerialize)
	}
	if err := r.io.SendFrame(ctx, egress, out); err != nil {
		return NonCritical(ErrSendFrame)
	}
	r.met.IncARPRequest()
	return OK()
}
