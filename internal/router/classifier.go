package router

import (
	"context"

	"github.com/google/gopacket/layers"
	"github.com/quaylabs/iprouter/internal/icmpresp"
	"github.com/quaylabs/iprouter/internal/netheader"
	"github.com/quaylabs/iprouter/internal/topology"
)

// ProcessFrame is the top-level per-frame state machine. It never blocks
// on anything but the router's ARP mutex, held only for short critical
// sections.
func (r *Router) ProcessFrame(ctx context.Context, f InboundFrame) Outcome {
	d, err := netheader.Decode(f.Data)
	if err != nil {
		r.log.Debug("dropping malformed frame", "iface", f.Ingress.Name, "error", err)
		r.met.IncDropped("malformed")
		return OK()
	}

	switch {
	case d.IPv4 != nil:
		return r.handleIPv4(ctx, f, d)
	case d.ARP != nil:
		return r.handleARP(ctx, f, d)
	default:
		// Any other ethertype is silently ignored.
		return OK()
	}
}

func (r *Router) handleIPv4(ctx context.Context, f InboundFrame, d *netheader.Decoded) Outcome {
	dst := netheader.AddrFromIP(d.IPv4.DstIP)

	// Addressed to the ingress interface's own IP.
	if dst == f.Ingress.IP {
		return r.handleLocal(ctx, f.Ingress, d)
	}
	// Addressed to a different interface of this router.
	if _, ok := r.ownInterface(dst); ok {
		return r.sendError(ctx, f.Ingress, d, "host_unreachable", func() ([]byte, error) {
			return r.icmp.DestUnreachable(f.Ingress, d, icmpresp.CodeHostUnreachable)
		})
	}
	return r.forward(ctx, f, d)
}

func (r *Router) handleLocal(ctx context.Context, ingress *topology.Interface, d *netheader.Decoded) Outcome {
	switch {
	case d.IPv4.Protocol == layers.IPProtocolTCP || d.IPv4.Protocol == layers.IPProtocolUDP:
		return r.sendError(ctx, ingress, d, "port_unreachable", func() ([]byte, error) {
			return r.icmp.DestUnreachable(ingress, d, icmpresp.CodePortUnreachable)
		})
	case d.IPv4.TTL == 1:
		return r.sendError(ctx, ingress, d, "time_exceeded", func() ([]byte, error) {
			return r.icmp.TimeExceeded(ingress, d)
		})
	case d.IPv4.Protocol == layers.IPProtocolICMPv4 && d.ICMPv4 != nil && d.ICMPv4.TypeCode.Type() == layers.ICMPv4TypeEchoRequest:
		return r.sendError(ctx, ingress, d, "echo_reply", func() ([]byte, error) {
			return r.icmp.EchoReply(ingress, d)
		})
	default:
		return r.sendError(ctx, ingress, d, "protocol_unreachable", func() ([]byte, error) {
			return r.icmp.DestUnreachable(ingress, d, icmpresp.CodeProtoUnreachable)
		})
	}
}

// sendError builds a response (an echo reply or an ICMP error) via build
// and transmits it back out ingress. Serialize/send failures are
// non-critical: the triggering frame is simply dropped.
func (r *Router) sendError(ctx context.Context, ingress *topology.Interface, d *netheader.Decoded, reason string, build func() ([]byte, error)) Outcome {
	out, err := build()
	if err != nil {
		return NonCritical(ErrSerialize)
	}
	if err := r.io.SendFrame(ctx, ingress, out); err != nil {
		return NonCritical(ErrSendFrame)
	}
	r.met.IncICMP(reason)
	return OK()
}
