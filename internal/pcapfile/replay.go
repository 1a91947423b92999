package pcapfile

import (
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"EnigmaNetz/Enigma-Capture/internal/capture"
)

type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// ReplayOpener opens the file named by Device.Name as a capture handle. Reads
// never time out and the end of the file is reported as io.EOF, which ends the
// capture cleanly.
type ReplayOpener struct{}

func (ReplayOpener) Open(dev capture.Device) (capture.Handle, error) {
	f, err := os.Open(dev.Name)
	if err != nil {
		return nil, fmt.Errorf("error opening pcap file: %w", err)
	}

	// Try pcapng format first
	var r packetReader
	ngReader, err := pcapgo.NewNgReader(f, pcapgo.DefaultNgReaderOptions)
	if err == nil {
		r = ngReader
	} else {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			f.Close()
			return nil, fmt.Errorf("error resetting file position: %w", err)
		}
		reader, err := pcapgo.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("error creating pcap reader: %w", err)
		}
		r = reader
	}
	return &replayHandle{file: f, r: r}, nil
}

// Device describes a pcap file as a capture device.
func Device(path string) capture.Device {
	return capture.Device{Name: path, Description: "file " + path}
}

type replayHandle struct {
	file *os.File
	r    packetReader
}

func (h *replayHandle) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	data, ci, err := h.r.ReadPacketData()
	if err == io.ErrUnexpectedEOF {
		// A capture cut off mid-record ends like a complete one.
		return nil, ci, io.EOF
	}
	return data, ci, err
}

func (h *replayHandle) LinkType() layers.LinkType {
	return h.r.LinkType()
}

func (h *replayHandle) Close() {
	h.file.Close()
}
