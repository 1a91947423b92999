package capture

import (
	"fmt"
	"time"

	"EnigmaNetz/Enigma-Capture/internal/packet"
)

// EventKind is the lifecycle transition an Event reports.
type EventKind int

const (
	EventStarted EventKind = iota
	EventStopped
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventStopped:
		return "stopped"
	case EventFailed:
		return "failed"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is a lifecycle notification delivered to the Sink in order with records.
type Event struct {
	Kind   EventKind
	Device Device
	RunID  string
	Time   time.Time
	// Err is set for EventFailed.
	Err error
}

func (e Event) String() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s run=%s: %v", e.Kind, e.Device, e.RunID, e.Err)
	}
	return fmt.Sprintf("%s %s run=%s", e.Kind, e.Device, e.RunID)
}

// Sink consumes what a session produces. Records arrive in capture order from
// the capture goroutine; Started is delivered from the goroutine calling Start.
// Implementations must not call back into the Session.
type Sink interface {
	HandleRecord(rec packet.Record)
	HandleEvent(ev Event)
}

type discard struct{}

func (discard) HandleRecord(packet.Record) {}
func (discard) HandleEvent(Event)          {}
