package sink

import (
	"fmt"
	"io"
	"sync"

	"EnigmaNetz/Enigma-Capture/internal/capture"
	"EnigmaNetz/Enigma-Capture/internal/packet"
)

const separator = "==============================================================================="

// Printer writes a text block per IP record and a line per lifecycle event.
type Printer struct {
	mu sync.Mutex
	w  io.Writer
	// All also prints non-IP and unparseable frames as one line each.
	All bool
}

func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

func (p *Printer) HandleRecord(rec packet.Record) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !rec.HasAddrs() {
		if p.All {
			fmt.Fprintf(p.w, "%s %s\n", rec.Timestamp.Format("2006-01-02 15:04:05"), rec)
		}
		return
	}

	srcPort, dstPort := "-", "-"
	if rec.HasPorts() {
		srcPort = fmt.Sprint(rec.SrcPort)
		dstPort = fmt.Sprint(rec.DstPort)
	}
	fmt.Fprintf(p.w, "Source IP:\t%s\t\tDestination IP:\t%s\n", rec.SrcIP, rec.DstIP)
	fmt.Fprintf(p.w, "Source Port:\t%s\t\tDestination Port:\t%s\n", srcPort, dstPort)
	fmt.Fprintf(p.w, "Timestamp:\t%s\t\tLength:\t%d\n", rec.Timestamp.Format("2006-01-02 15:04:05"), rec.Length)
	fmt.Fprintln(p.w, separator)
}

func (p *Printer) HandleEvent(ev capture.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch ev.Kind {
	case capture.EventStarted:
		fmt.Fprintf(p.w, "+++++++++++ Capture started on %s +++++++++++\n", ev.Device.Label())
	case capture.EventStopped:
		fmt.Fprintf(p.w, "Packet capture stopped on %s.\n", ev.Device.Label())
	case capture.EventFailed:
		fmt.Fprintf(p.w, "Packet capture failed on %s: %v\n", ev.Device.Label(), ev.Err)
	}
}
