// Package packet turns captured link-layer frames into owned, consumer-facing records.
package packet

import (
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/google/gopacket/layers"
)

// Class tells how far a frame could be decoded.
type Class int

const (
	// ClassUnparseable frames are too short to hold the headers they announce.
	ClassUnparseable Class = iota
	// ClassNonIP frames carry something other than IPv4 (ARP, IPv6, LLC...).
	ClassNonIP
	// ClassIP frames have IPv4 addresses but no TCP ports.
	ClassIP
	// ClassTCP frames have IPv4 addresses and TCP ports.
	ClassTCP
)

var classNames = map[Class]string{
	ClassUnparseable: "unparseable",
	ClassNonIP:       "non-ip",
	ClassIP:          "ip",
	ClassTCP:         "ip+tcp",
}

func (c Class) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}
	return fmt.Sprintf("class(%d)", int(c))
}

// MarshalText implements encoding.TextMarshaler.
func (c Class) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Record is the decoded form of one frame. It shares no memory with the
// captured bytes, so it can be handed to another goroutine and kept.
type Record struct {
	Timestamp time.Time
	// Length is the on-wire length, CaptureLength what the snap length let through.
	Length        int
	CaptureLength int
	Class         Class

	// Link layer, present unless Class is ClassUnparseable.
	SrcMAC    net.HardwareAddr
	DstMAC    net.HardwareAddr
	EtherType layers.EthernetType

	// Network layer, valid for ClassIP and ClassTCP.
	SrcIP    netip.Addr
	DstIP    netip.Addr
	Protocol layers.IPProtocol

	// Transport layer, set for ClassTCP only.
	SrcPort uint16
	DstPort uint16
}

// HasAddrs reports whether the network addresses were decoded.
func (r Record) HasAddrs() bool {
	return r.Class == ClassIP || r.Class == ClassTCP
}

// HasPorts reports whether the transport ports were decoded.
func (r Record) HasPorts() bool {
	return r.Class == ClassTCP
}

// Truncated reports whether the snap length cut the frame short.
func (r Record) Truncated() bool {
	return r.Length > r.CaptureLength
}

func (r Record) String() string {
	switch r.Class {
	case ClassTCP:
		return fmt.Sprintf("%s %s:%d -> %s:%d len=%d", r.Class, r.SrcIP, r.SrcPort, r.DstIP, r.DstPort, r.Length)
	case ClassIP:
		return fmt.Sprintf("%s %s -> %s proto=%s len=%d", r.Class, r.SrcIP, r.DstIP, r.Protocol, r.Length)
	case ClassNonIP:
		return fmt.Sprintf("%s %s -> %s type=%s len=%d", r.Class, r.SrcMAC, r.DstMAC, r.EtherType, r.Length)
	default:
		return fmt.Sprintf("%s caplen=%d len=%d", r.Class, r.CaptureLength, r.Length)
	}
}
