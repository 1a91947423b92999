// Package sink holds consumers for the records and lifecycle events a capture session produces.
package sink

import (
	"EnigmaNetz/Enigma-Capture/internal/capture"
	"EnigmaNetz/Enigma-Capture/internal/packet"
)

// Fanout delivers everything to each of its sinks, in slice order.
type Fanout []capture.Sink

func (f Fanout) HandleRecord(rec packet.Record) {
	for _, s := range f {
		s.HandleRecord(rec)
	}
}

func (f Fanout) HandleEvent(ev capture.Event) {
	for _, s := range f {
		s.HandleEvent(ev)
	}
}

// Funcs adapts plain functions to capture.Sink. Nil fields ignore their input.
type Funcs struct {
	Record func(packet.Record)
	Event  func(capture.Event)
}

func (f Funcs) HandleRecord(rec packet.Record) {
	if f.Record != nil {
		f.Record(rec)
	}
}

func (f Funcs) HandleEvent(ev capture.Event) {
	if f.Event != nil {
		f.Event(ev)
	}
}
