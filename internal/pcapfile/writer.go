// Package pcapfile saves captured frames to pcap files and replays pcap or
// pcapng files as capture sources.
package pcapfile

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"EnigmaNetz/Enigma-Capture/internal/logger"
)

// Writer appends frames to a pcap file. It implements capture.FrameTap and is
// safe for use from the capture goroutine while another goroutine closes it.
type Writer struct {
	mu       sync.Mutex
	path     string
	file     *os.File
	buf      *bufio.Writer
	w        *pcapgo.Writer
	snapLen  uint32
	linkType layers.LinkType
	header   bool
	frames   uint64
	closed   bool
}

// Create creates (or truncates) path and writes the pcap file header.
func Create(path string, snapLen int, linkType layers.LinkType) (*Writer, error) {
	w, err := CreateForRuns(path, snapLen)
	if err != nil {
		return nil, err
	}
	if err := w.BeginRun(linkType); err != nil {
		w.file.Close()
		return nil, err
	}
	return w, nil
}

// CreateForRuns creates (or truncates) path but leaves the file header to the
// first BeginRun, so the file takes the link type of the first capture run.
func CreateForRuns(path string, snapLen int) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create pcap file: %w", err)
	}

	buf := bufio.NewWriter(f)
	logger.GetLogger().Info("[pcapfile] Saving frames to %s", path)
	return &Writer{path: path, file: f, buf: buf, w: pcapgo.NewWriter(buf), snapLen: uint32(snapLen)}, nil
}

// BeginRun is called before the first frame of each capture run. The first
// call writes the file header; later runs must report the same link type,
// since one pcap file holds a single link type.
func (w *Writer) BeginRun(linkType layers.LinkType) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("pcap file %s is closed", w.path)
	}
	if w.header {
		if linkType != w.linkType {
			return fmt.Errorf("pcap file %s holds %s frames, source is %s", w.path, w.linkType, linkType)
		}
		return nil
	}
	return w.writeHeader(linkType)
}

func (w *Writer) writeHeader(linkType layers.LinkType) error {
	if err := w.w.WriteFileHeader(w.snapLen, linkType); err != nil {
		return fmt.Errorf("failed to write pcap header: %w", err)
	}
	w.linkType = linkType
	w.header = true
	return nil
}

// LinkType returns the link type in the file header, and false before the
// header is written.
func (w *Writer) LinkType() (layers.LinkType, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.linkType, w.header
}

// WriteFrame writes one frame. data is not retained.
func (w *Writer) WriteFrame(ci gopacket.CaptureInfo, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("pcap file %s is closed", w.path)
	}
	if !w.header {
		return fmt.Errorf("pcap file %s has no link type yet", w.path)
	}

	ci.CaptureLength = len(data)
	if ci.Length < ci.CaptureLength {
		ci.Length = ci.CaptureLength
	}
	if err := w.w.WritePacket(ci, data); err != nil {
		return fmt.Errorf("failed to write packet: %w", err)
	}
	w.frames++
	return nil
}

// Frames returns how many frames have been written.
func (w *Writer) Frames() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.frames
}

// Close flushes buffered frames and closes the file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	// A file no run wrote to still gets a header, so it opens as an empty capture.
	var headerErr error
	if !w.header {
		headerErr = w.writeHeader(layers.LinkTypeEthernet)
	}
	flushErr := w.buf.Flush()
	closeErr := w.file.Close()
	logger.GetLogger().Info("[pcapfile] Wrote %d frames to %s", w.frames, w.path)
	if headerErr != nil {
		return headerErr
	}
	if flushErr != nil {
		return fmt.Errorf("failed to flush pcap file: %w", flushErr)
	}
	return closeErr
}
