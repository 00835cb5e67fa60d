package icmpresp

import (
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/quaylabs/iprouter/internal/netheader"
	"github.com/quaylabs/iprouter/internal/topology"
	"github.com/stretchr/testify/require"
)

var (
	ifaceMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	ifaceIP  = netheader.AddrFromIP(net.ParseIP("10.0.0.1"))
	hostMAC  = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}
	hostIP   = netheader.AddrFromIP(net.ParseIP("10.0.0.10"))
	iface    = &topology.Interface{Name: "eth0", MAC: ifaceMAC, IP: ifaceIP}
)

func decodeTrigger(t *testing.T, ls ...gopacket.SerializableLayer) *netheader.Decoded {
	t.Helper()
	raw, err := netheader.Serialize(ls...)
	require.NoError(t, err)
	d, err := netheader.Decode(raw)
	require.NoError(t, err)
	return d
}

func TestResponder_EchoReplyPreservesIdSeqAndPayload(t *testing.T) {
	eth := &layers.Ethernet{SrcMAC: hostMAC, DstMAC: ifaceMAC, EthernetType: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{Version: 4, IHL: 5, TTL: 64, Protocol: layers.IPProtocolICMPv4, SrcIP: hostIP.IP(), DstIP: ifaceIP.IP()}
	icmp := &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0), Id: 99, Seq: 7}
	trigger := decodeTrigger(t, eth, ip, icmp, gopacket.Payload([]byte("abc123")))

	r := New()
	out, err := r.EchoReply(iface, trigger)
	require.NoError(t, err)

	d, err := netheader.Decode(out)
	require.NoError(t, err)
	require.NotNil(t, d.ICMPv4)
	require.Equal(t, uint8(layers.ICMPv4TypeEchoReply), d.ICMPv4.TypeCode.Type())
	require.Equal(t, uint16(99), d.ICMPv4.Id)
	require.Equal(t, uint16(7), d.ICMPv4.Seq)
	require.Equal(t, []byte("abc123"), d.Payload)
	require.Equal(t, hostIP.IP(), d.IPv4.DstIP)
	require.Equal(t, ifaceIP.IP(), d.IPv4.SrcIP)
	require.Equal(t, hostMAC, net.HardwareAddr(d.Eth.DstMAC))
	require.True(t, d.IPv4.Checksum != 0 || d.IPv4.Protocol == layers.IPProtocolICMPv4)
}

func TestResponder_DestUnreachableCarriesOriginalHeaderAndEightBytes(t *testing.T) {
	eth := &layers.Ethernet{SrcMAC: hostMAC, DstMAC: ifaceMAC, EthernetType: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{Version: 4, IHL: 5, TTL: 64, Protocol: layers.IPProtocolUDP, SrcIP: hostIP.IP(), DstIP: ifaceIP.IP()}
	udp := &layers.UDP{SrcPort: 1111, DstPort: 53}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
	trigger := decodeTrigger(t, eth, ip, udp, gopacket.Payload([]byte("0123456789abcdef")))

	r := New()
	out, err := r.DestUnreachable(iface, trigger, CodePortUnreachable)
	require.NoError(t, err)

	d, err := netheader.Decode(out)
	require.NoError(t, err)
	require.NotNil(t, d.ICMPv4)
	require.Equal(t, uint8(layers.ICMPv4TypeDestinationUnreachable), d.ICMPv4.TypeCode.Type())
	require.Equal(t, uint8(CodePortUnreachable), d.ICMPv4.TypeCode.Code())

	body := d.Payload
	require.GreaterOrEqual(t, len(body), 20+8)
	require.Equal(t, uint8(layers.IPProtocolUDP), body[9])
}

func TestResponder_TimeExceeded(t *testing.T) {
	eth := &layers.Ethernet{SrcMAC: hostMAC, DstMAC: ifaceMAC, EthernetType: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{Version: 4, IHL: 5, TTL: 1, Protocol: layers.IPProtocolUDP, SrcIP: hostIP.IP(), DstIP: ifaceIP.IP()}
	udp := &layers.UDP{SrcPort: 1111, DstPort: 53}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
	trigger := decodeTrigger(t, eth, ip, udp, gopacket.Payload([]byte("x")))

	r := New()
	out, err := r.TimeExceeded(iface, trigger)
	require.NoError(t, err)

	d, err := netheader.Decode(out)
	require.NoError(t, err)
	require.Equal(t, uint8(layers.ICMPv4TypeTimeExceeded), d.ICMPv4.TypeCode.Type())
	require.Equal(t, uint8(0), d.ICMPv4.TypeCode.Code())
}
