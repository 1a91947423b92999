package capture

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"EnigmaNetz/Enigma-Capture/internal/packet"
)

// read is one scripted result of fakeHandle.ReadPacketData.
type read struct {
	data []byte
	err  error
}

// fakeHandle replays scripted reads, then behaves like an idle device whose
// reads time out after tick.
type fakeHandle struct {
	mu     sync.Mutex
	reads  []read
	tick   time.Duration
	closed int32
	ledger *ledger
	id     int
}

func (h *fakeHandle) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	if atomic.LoadInt32(&h.closed) > 0 {
		return nil, gopacket.CaptureInfo{}, errors.New("read on closed handle")
	}
	h.mu.Lock()
	if len(h.reads) > 0 {
		r := h.reads[0]
		h.reads = h.reads[1:]
		h.mu.Unlock()
		if r.err != nil {
			return nil, gopacket.CaptureInfo{}, r.err
		}
		ci := gopacket.CaptureInfo{
			Timestamp:     time.Now(),
			CaptureLength: len(r.data),
			Length:        len(r.data),
		}
		return r.data, ci, nil
	}
	h.mu.Unlock()
	time.Sleep(h.tick)
	return nil, gopacket.CaptureInfo{}, ErrReadTimeout
}

func (h *fakeHandle) LinkType() layers.LinkType { return layers.LinkTypeEthernet }

func (h *fakeHandle) Close() {
	atomic.AddInt32(&h.closed, 1)
	if h.ledger != nil {
		h.ledger.add(fmt.Sprintf("close %d", h.id))
	}
}

func (h *fakeHandle) closeCount() int32 { return atomic.LoadInt32(&h.closed) }

// ledger records opens and closes in the order they happen.
type ledger struct {
	mu      sync.Mutex
	entries []string
	open    int
	maxOpen int
}

func (l *ledger) add(entry string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	if entry[:4] == "open" {
		l.open++
		if l.open > l.maxOpen {
			l.maxOpen = l.open
		}
	} else {
		l.open--
	}
}

func (l *ledger) snapshot() ([]string, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...), l.maxOpen
}

// fakeOpener hands out fakeHandles. script, if set, provides the reads of
// each newly opened handle.
type fakeOpener struct {
	mu      sync.Mutex
	ledger  *ledger
	handles []*fakeHandle
	err     error
	tick    time.Duration
	script  func(n int) []read
}

func newFakeOpener() *fakeOpener {
	return &fakeOpener{ledger: &ledger{}, tick: 2 * time.Millisecond}
}

func (o *fakeOpener) Open(dev Device) (Handle, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return nil, o.err
	}
	h := &fakeHandle{tick: o.tick, ledger: o.ledger, id: len(o.handles) + 1}
	if o.script != nil {
		h.reads = o.script(h.id)
	}
	o.handles = append(o.handles, h)
	o.ledger.add(fmt.Sprintf("open %d", h.id))
	return h, nil
}

func (o *fakeOpener) opened() []*fakeHandle {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*fakeHandle(nil), o.handles...)
}

// recordingSink keeps everything delivered to it, in order.
type recordingSink struct {
	mu      sync.Mutex
	records []packet.Record
	events  []Event
	order   []string
}

func (s *recordingSink) HandleRecord(rec packet.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	s.order = append(s.order, "record")
}

func (s *recordingSink) HandleEvent(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	s.order = append(s.order, ev.Kind.String())
}

func (s *recordingSink) snapshot() ([]packet.Record, []Event, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]packet.Record(nil), s.records...),
		append([]Event(nil), s.events...),
		append([]string(nil), s.order...)
}

func (s *recordingSink) eventCount(kind EventKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, ev := range s.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

// frame builds a minimal Ethernet/IPv4/TCP frame with the given source port.
func frame(srcPort uint16) []byte {
	b := make([]byte, 54)
	b[12], b[13] = 0x08, 0x00
	b[14] = 0x45
	b[17] = 40
	b[23] = 6
	copy(b[26:30], []byte{10, 0, 0, 1})
	copy(b[30:34], []byte{10, 0, 0, 2})
	b[34], b[35] = byte(srcPort>>8), byte(srcPort)
	b[36], b[37] = 0x00, 0x50
	b[46] = 0x50
	return b
}
