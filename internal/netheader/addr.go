package netheader

import (
	"fmt"
	"net"
)

// Addr is an IPv4 address in its 4-byte wire form. It is comparable and
// usable as a map/cache key, unlike net.IP's variable-length byte slice.
type Addr [4]byte

// Zero is the all-zeros address 0.0.0.0. It marks a route with no gateway
// (directly connected) and is what AddrFromIP returns for non-IPv4 input.
var Zero Addr

// AddrFromIP converts a net.IP holding an IPv4 address into an Addr. The
// caller must ensure ip.To4() is non-nil; malformed input yields Zero.
func AddrFromIP(ip net.IP) Addr {
	v4 := ip.To4()
	if v4 == nil {
		return Zero
	}
	var a Addr
	copy(a[:], v4)
	return a
}

// IP returns the net.IP form of a, suitable for gopacket layer fields.
func (a Addr) IP() net.IP {
	return net.IPv4(a[0], a[1], a[2], a[3]).To4()
}

func (a Addr) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", a[0], a[1], a[2], a[3])
}

// IsZero reports whether a is the zero address (0.0.0.0), used to detect
// directly-connected routes per the "gateway == 0" convention.
func (a Addr) IsZero() bool {
	return a == Zero
}

// BroadcastMAC is the link-layer broadcast address used as the Ethernet
// destination for outgoing ARP requests.
func BroadcastMAC() net.HardwareAddr {
	return net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
}
