// Package icmpresp builds the small set of ICMP messages a learning router
// emits: echo replies and the two error messages it produces itself,
// destination unreachable (with the codes below) and time exceeded.
// Every message is assembled with gopacket/layers and serialized through
// netheader.Serialize so lengths and checksums are always recomputed,
// never hand-maintained.
package icmpresp

import (
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/quaylabs/iprouter/internal/netheader"
	"github.com/quaylabs/iprouter/internal/topology"
)

// ICMP codes for destination unreachable (type 3).
const (
	CodeNetUnreachable  = 0
	CodeHostUnreachable = 1
	CodeProtoUnreachable = 2
	CodePortUnreachable  = 3
)

// Responder constructs ICMP responses. It is stateless; every method is
// a pure function of its arguments plus the outgoing interface.
type Responder struct{}

// New returns a Responder.
func New() *Responder { return &Responder{} }

// EchoReply answers an echo request carried in trigger with an echo
// reply, preserving identifier, sequence number, and opaque payload. It
// is sent from ingress back to the trigger's source.
func (r *Responder) EchoReply(ingress *topology.Interface, trigger *netheader.Decoded) ([]byte, error) {
	payload := make([]byte, len(trigger.ICMPv4.Payload))
	copy(payload, trigger.ICMPv4.Payload)
	return r.build(ingress, trigger.Eth.SrcMAC, netheader.AddrFromIP(trigger.IPv4.SrcIP),
		layers.ICMPv4TypeEchoReply, 0, trigger.ICMPv4.Id, trigger.ICMPv4.Seq, payload)
}

// DestUnreachable builds a destination-unreachable message (one of the
// code constants above) for the IPv4 datagram carried in trigger.
func (r *Responder) DestUnreachable(ingress *topology.Interface, trigger *netheader.Decoded, code uint8) ([]byte, error) {
	return r.errorMessage(ingress, trigger, layers.ICMPv4TypeDestinationUnreachable, code)
}

// TimeExceeded builds a TTL-expired message for the IPv4 datagram carried
// in trigger.
func (r *Responder) TimeExceeded(ingress *topology.Interface, trigger *netheader.Decoded) ([]byte, error) {
	return r.errorMessage(ingress, trigger, layers.ICMPv4TypeTimeExceeded, 0)
}

func (r *Responder) errorMessage(ingress *topology.Interface, trigger *netheader.Decoded, typ uint8, code uint8) ([]byte, error) {
	body := trigger.OriginalIPv4Prefix()
	return r.build(ingress, trigger.Eth.SrcMAC, netheader.AddrFromIP(trigger.IPv4.SrcIP), typ, code, 0, 0, body)
}

func (r *Responder) build(ingress *topology.Interface, dstMAC net.HardwareAddr, dstIP netheader.Addr, typ, code uint8, id, seq uint16, payload []byte) ([]byte, error) {
	eth := &layers.Ethernet{
		SrcMAC:       ingress.MAC,
		DstMAC:       dstMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TOS:      0,
		Id:       0,
		TTL:      64,
		Protocol: layers.IPProtocolICMPv4,
		SrcIP:    ingress.IP.IP(),
		DstIP:    dstIP.IP(),
	}
	icmp := &layers.ICMPv4{
		TypeCode: layers.CreateICMPv4TypeCode(typ, code),
		Id:       id,
		Seq:      seq,
	}
	return netheader.Serialize(eth, ip, icmp, gopacket.Payload(payload))
}
