package sink

import (
	"fmt"
	"sync"

	"EnigmaNetz/Enigma-Capture/internal/capture"
	"EnigmaNetz/Enigma-Capture/internal/packet"
)

// PacketStats holds statistics about decoded records
type PacketStats struct {
	TotalPackets  uint64
	CapturedBytes uint64
	WireBytes     uint64
	ClassCounts   map[packet.Class]uint64
	Runs          uint64
	Failures      uint64
}

func (s PacketStats) String() string {
	return fmt.Sprintf("Total Packets: %d\nCaptured Bytes: %d\nWire Bytes: %d\nClass Distribution: %v\nRuns: %d (failed %d)",
		s.TotalPackets, s.CapturedBytes, s.WireBytes, s.ClassCounts, s.Runs, s.Failures)
}

// Stats accumulates PacketStats across runs.
type Stats struct {
	mu    sync.Mutex
	stats PacketStats
}

func NewStats() *Stats {
	return &Stats{stats: PacketStats{ClassCounts: make(map[packet.Class]uint64)}}
}

func (s *Stats) HandleRecord(rec packet.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.TotalPackets++
	s.stats.CapturedBytes += uint64(rec.CaptureLength)
	s.stats.WireBytes += uint64(rec.Length)
	s.stats.ClassCounts[rec.Class]++
}

func (s *Stats) HandleEvent(ev capture.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch ev.Kind {
	case capture.EventStarted:
		s.stats.Runs++
	case capture.EventFailed:
		s.stats.Failures++
	}
}

// Snapshot returns a copy of the counters.
func (s *Stats) Snapshot() PacketStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.stats
	out.ClassCounts = make(map[packet.Class]uint64, len(s.stats.ClassCounts))
	for k, v := range s.stats.ClassCounts {
		out.ClassCounts[k] = v
	}
	return out
}
