package capture

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
)

const (
	DefaultSnapLen     = 65535
	DefaultReadTimeout = time.Second
)

// LiveOpener opens devices with libpcap (Npcap on Windows).
type LiveOpener struct {
	SnapLen     int
	Promiscuous bool
	// ReadTimeout bounds every read, and so how long a stop request can wait.
	ReadTimeout time.Duration
}

func (o LiveOpener) Open(dev Device) (Handle, error) {
	snapLen := o.SnapLen
	if snapLen <= 0 {
		snapLen = DefaultSnapLen
	}
	timeout := o.ReadTimeout
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}

	h, err := pcap.OpenLive(dev.Name, int32(snapLen), o.Promiscuous, timeout)
	if err != nil {
		return nil, err
	}
	return &liveHandle{h: h}, nil
}

type liveHandle struct {
	h *pcap.Handle
}

func (l *liveHandle) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	data, ci, err := l.h.ZeroCopyReadPacketData()
	if err == pcap.NextErrorTimeoutExpired {
		return nil, ci, ErrReadTimeout
	}
	return data, ci, err
}

func (l *liveHandle) LinkType() layers.LinkType {
	return l.h.LinkType()
}

func (l *liveHandle) Close() {
	l.h.Close()
}

// PcapCatalog lists the devices libpcap can open.
type PcapCatalog struct{}

func (PcapCatalog) ListDevices() ([]Device, error) {
	ifaces, err := pcap.FindAllDevs()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	devices := make([]Device, 0, len(ifaces))
	for _, iface := range ifaces {
		dev := Device{Name: iface.Name, Description: iface.Description}
		for _, a := range iface.Addresses {
			if addr, ok := netip.AddrFromSlice(a.IP); ok {
				dev.Addresses = append(dev.Addresses, addr.Unmap())
			}
		}
		devices = append(devices, dev)
	}
	return devices, nil
}
