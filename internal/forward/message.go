package forward

import (
	"time"

	"EnigmaNetz/Enigma-Capture/internal/capture"
	"EnigmaNetz/Enigma-Capture/internal/packet"
)

// Message is one JSON document sent to the analysis server.
type Message struct {
	Type   string         `json:"type"` // "record" or "event"
	Record *RecordMessage `json:"record,omitempty"`
	Event  *EventMessage  `json:"event,omitempty"`
}

// RecordMessage is the wire form of a packet.Record.
type RecordMessage struct {
	TS        time.Time `json:"ts"`
	Length    int       `json:"length"`
	CapLen    int       `json:"caplen"`
	Class     string    `json:"class"`
	SrcMAC    string    `json:"src_mac,omitempty"`
	DstMAC    string    `json:"dst_mac,omitempty"`
	EtherType string    `json:"ether_type,omitempty"`
	SrcIP     string    `json:"src_ip,omitempty"`
	DstIP     string    `json:"dst_ip,omitempty"`
	Proto     string    `json:"proto,omitempty"`
	SrcPort   uint16    `json:"src_port,omitempty"`
	DstPort   uint16    `json:"dst_port,omitempty"`
}

// EventMessage is the wire form of a capture.Event.
type EventMessage struct {
	TS     time.Time `json:"ts"`
	Kind   string    `json:"kind"`
	Device string    `json:"device"`
	RunID  string    `json:"run_id"`
	Error  string    `json:"error,omitempty"`
}

func recordMessage(rec packet.Record) Message {
	m := &RecordMessage{
		TS:     rec.Timestamp,
		Length: rec.Length,
		CapLen: rec.CaptureLength,
		Class:  rec.Class.String(),
	}
	if rec.Class != packet.ClassUnparseable {
		m.SrcMAC = rec.SrcMAC.String()
		m.DstMAC = rec.DstMAC.String()
		m.EtherType = rec.EtherType.String()
	}
	if rec.HasAddrs() {
		m.SrcIP = rec.SrcIP.String()
		m.DstIP = rec.DstIP.String()
		m.Proto = rec.Protocol.String()
	}
	if rec.HasPorts() {
		m.SrcPort = rec.SrcPort
		m.DstPort = rec.DstPort
	}
	return Message{Type: "record", Record: m}
}

func eventMessage(ev capture.Event) Message {
	m := &EventMessage{
		TS:     ev.Time,
		Kind:   ev.Kind.String(),
		Device: ev.Device.Name,
		RunID:  ev.RunID,
	}
	if ev.Err != nil {
		m.Error = ev.Err.Error()
	}
	return Message{Type: "event", Event: m}
}
