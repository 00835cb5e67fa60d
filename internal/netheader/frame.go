package netheader

import (
	"errors"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// ErrMalformed marks a frame that is too short or otherwise fails to parse
// as a well-formed Ethernet/IPv4/ARP/ICMPv4 chain. These are dropped
// silently by the classifier; they are never surfaced as errors.
var ErrMalformed = errors.New("netheader: malformed frame")

// Decoded is the parsed view of an inbound Ethernet frame: at most one of
// IPv4 or ARP is populated, matching the two ethertypes the router acts on.
type Decoded struct {
	Eth     *layers.Ethernet
	IPv4    *layers.IPv4
	ICMPv4  *layers.ICMPv4
	ARP     *layers.ARP
	Payload []byte // ICMPv4 payload past its header if ICMPv4 decoded, else the whole IPv4 payload
}

// Decode parses raw into its Ethernet/IPv4(+ICMPv4)/ARP layers. A frame that
// fails to parse returns ErrMalformed; callers drop it and continue
// (malformed frame is not an error condition the caller sees).
func Decode(raw []byte) (*Decoded, error) {
	packet := gopacket.NewPacket(raw, layers.LayerTypeEthernet, gopacket.DecodeOptions{
		Lazy:   true,
		NoCopy: true,
	})
	if err := packet.ErrorLayer(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err.Error())
	}
	ethLayer := packet.Layer(layers.LayerTypeEthernet)
	if ethLayer == nil {
		return nil, ErrMalformed
	}
	d := &Decoded{Eth: ethLayer.(*layers.Ethernet)}

	if ipLayer := packet.Layer(layers.LayerTypeIPv4); ipLayer != nil {
		d.IPv4 = ipLayer.(*layers.IPv4)
		if icmpLayer := packet.Layer(layers.LayerTypeICMPv4); icmpLayer != nil {
			d.ICMPv4 = icmpLayer.(*layers.ICMPv4)
			d.Payload = icmpLayer.(*layers.ICMPv4).Payload
		} else {
			d.Payload = d.IPv4.Payload
		}
		return d, nil
	}
	if arpLayer := packet.Layer(layers.LayerTypeARP); arpLayer != nil {
		d.ARP = arpLayer.(*layers.ARP)
		return d, nil
	}
	return d, nil
}

// OriginalIPv4Prefix returns the offending datagram's IPv4 header followed
// by up to 8 bytes of its payload, the exact body RFC 792 prescribes for
// destination-unreachable and time-exceeded messages.
func (d *Decoded) OriginalIPv4Prefix() []byte {
	n := len(d.IPv4.Payload)
	if n > 8 {
		n = 8
	}
	out := make([]byte, 0, len(d.IPv4.Contents)+n)
	out = append(out, d.IPv4.Contents...)
	out = append(out, d.IPv4.Payload[:n]...)
	return out
}

// Serialize assembles ls (outermost layer first, e.g. Ethernet, IPv4, ...,
// gopacket.Payload(body)) into a single wire-format byte slice, fixing
// lengths and recomputing every checksum along the way.
func Serialize(ls ...gopacket.SerializableLayer) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, ls...); err != nil {
		return nil, fmt.Errorf("serialize frame: %w", err)
	}
	out := make([]byte, len(buf.Bytes()))
	copy(out, buf.Bytes())
	return out, nil
}
