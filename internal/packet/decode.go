package packet

import (
	"encoding/binary"
	"net"
	"net/netip"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

const (
	ethernetHeaderLen = 14
	ipv4MinHeaderLen  = 20
	tcpMinHeaderLen   = 20
)

// Decode reads the Ethernet, IPv4 and TCP headers of one frame. It never
// fails: a field that is missing or would lie past the end of data is left
// unset and Class records how far decoding got. The returned record owns all
// of its memory, data may be reused as soon as Decode returns.
func Decode(data []byte, wireLen int, ts time.Time) Record {
	rec := Record{
		Timestamp:     ts,
		Length:        wireLen,
		CaptureLength: len(data),
		Class:         ClassUnparseable,
	}
	if rec.Length < rec.CaptureLength {
		rec.Length = rec.CaptureLength
	}

	if len(data) < ethernetHeaderLen {
		return rec
	}
	var eth layers.Ethernet
	if err := eth.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return rec
	}
	rec.SrcMAC = cloneMAC(eth.SrcMAC)
	rec.DstMAC = cloneMAC(eth.DstMAC)
	rec.EtherType = eth.EthernetType

	if eth.EthernetType != layers.EthernetTypeIPv4 {
		rec.Class = ClassNonIP
		return rec
	}

	// Nothing at the network layer is read until the fixed IPv4 header is there.
	nw := eth.Payload
	if len(nw) < ipv4MinHeaderLen || nw[0]>>4 != 4 {
		return rec
	}
	rec.Class = ClassIP
	rec.SrcIP = netip.AddrFrom4([4]byte(nw[12:16]))
	rec.DstIP = netip.AddrFrom4([4]byte(nw[16:20]))
	rec.Protocol = layers.IPProtocol(nw[9])

	// The transport offset comes from the IHL field alone. Options are not
	// parsed, so a malformed option never hides the ports behind it.
	ihl := int(nw[0]&0x0f) * 4
	if ihl < ipv4MinHeaderLen || ihl > len(nw) {
		return rec
	}
	// A zero total length is left by TCP segmentation offload.
	if total := int(binary.BigEndian.Uint16(nw[2:4])); total != 0 {
		if total < ihl {
			return rec
		}
		if total < len(nw) {
			nw = nw[:total]
		}
	}
	fragOffset := binary.BigEndian.Uint16(nw[6:8]) & 0x1fff
	if rec.Protocol != layers.IPProtocolTCP || fragOffset != 0 {
		return rec
	}

	seg := nw[ihl:]
	if len(seg) < tcpMinHeaderLen {
		return rec
	}
	rec.SrcPort = binary.BigEndian.Uint16(seg[0:2])
	rec.DstPort = binary.BigEndian.Uint16(seg[2:4])
	rec.Class = ClassTCP
	return rec
}

func cloneMAC(mac net.HardwareAddr) net.HardwareAddr {
	if mac == nil {
		return nil
	}
	out := make(net.HardwareAddr, len(mac))
	copy(out, mac)
	return out
}
