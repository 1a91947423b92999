package capture

import (
	"errors"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// ErrReadTimeout is returned by Handle.ReadPacketData when the bounded read
// timeout elapsed without a frame.
var ErrReadTimeout = errors.New("capture: read timeout")

// Handle is an open capture on one device. ReadPacketData blocks for at most
// the handle's read timeout; the returned bytes are only valid until the next
// call. io.EOF means the source is exhausted (offline replays).
type Handle interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
	Close()
}

// Opener opens capture handles.
type Opener interface {
	Open(dev Device) (Handle, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(dev Device) (Handle, error)

func (f OpenerFunc) Open(dev Device) (Handle, error) {
	return f(dev)
}

// FrameTap sees every raw frame before it is decoded. The data must not be
// retained after WriteFrame returns.
type FrameTap interface {
	WriteFrame(ci gopacket.CaptureInfo, data []byte) error
}

// RunTap is implemented by taps that need the link type of each run before
// its first frame. An error disables the tap for that run.
type RunTap interface {
	BeginRun(linkType layers.LinkType) error
}
