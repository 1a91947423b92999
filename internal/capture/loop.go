package capture

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/google/gopacket/layers"

	"EnigmaNetz/Enigma-Capture/internal/logger"
	"EnigmaNetz/Enigma-Capture/internal/packet"
)

// loop reads one handle until it is cancelled or the handle fails. A loop is
// used for a single run and owns its handle for that run.
type loop struct {
	handle Handle
	device Device
	runID  string
	sink   Sink
	tap    FrameTap
	log    *logger.Logger

	// onExit is called once after the handle is closed, with the terminal
	// error or nil when the loop was cancelled or the source ran dry.
	onExit func(err error)

	closeOnce sync.Once
	frames    uint64
	tapFailed bool
}

// run is the capture goroutine body. Cancellation is polled between reads;
// each read is bounded by the handle's timeout, so ctx is observed within one
// timeout interval.
func (l *loop) run(ctx context.Context) (err error) {
	defer func() {
		l.closeHandle()
		l.log.Info("[capture] Capture %s on %s finished after %d frames", l.runID, l.device.Name, l.frames)
		if l.onExit != nil {
			l.onExit(err)
		}
	}()

	lt := l.handle.LinkType()
	if lt != layers.LinkTypeEthernet {
		l.log.Warn("[capture] Device %s reports link type %s, frames are decoded as Ethernet", l.device.Name, lt)
	}
	if rt, ok := l.tap.(RunTap); ok {
		if terr := rt.BeginRun(lt); terr != nil {
			l.log.Warn("[capture] Frame tap rejected capture %s, disabling it for this run: %v", l.runID, terr)
			l.tapFailed = true
		}
	}

	for {
		if ctx.Err() != nil {
			l.log.Debug("[capture] Capture %s on %s cancelled", l.runID, l.device.Name)
			return nil
		}

		data, ci, rerr := l.handle.ReadPacketData()
		switch {
		case rerr == nil:
		case errors.Is(rerr, ErrReadTimeout):
			continue
		case errors.Is(rerr, io.EOF):
			l.log.Info("[capture] Source %s exhausted", l.device.Name)
			return nil
		default:
			l.log.Error("[capture] Capture %s: read from %s failed: %v", l.runID, l.device.Name, rerr)
			return &TerminalCaptureError{Device: l.device, Err: rerr}
		}

		l.frames++
		if l.tap != nil && !l.tapFailed {
			if terr := l.tap.WriteFrame(ci, data); terr != nil {
				// One warning, then the tap is skipped for the rest of the run.
				l.log.Warn("[capture] Frame tap failed, disabling it for this run: %v", terr)
				l.tapFailed = true
			}
		}

		wireLen := ci.Length
		if wireLen == 0 {
			wireLen = len(data)
		}
		l.sink.HandleRecord(packet.Decode(data, wireLen, ci.Timestamp))
	}
}

func (l *loop) closeHandle() {
	l.closeOnce.Do(func() {
		l.handle.Close()
		l.log.Debug("[capture] Closed handle for %s", l.device.Name)
	})
}
