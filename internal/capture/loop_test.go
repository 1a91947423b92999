package capture

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EnigmaNetz/Enigma-Capture/internal/logger"
	"EnigmaNetz/Enigma-Capture/internal/packet"
)

type tapRecorder struct {
	mu        sync.Mutex
	frames    [][]byte
	infos     []gopacket.CaptureInfo
	err       error
	calls     int
	linkTypes []layers.LinkType
	beginErr  error
}

func (r *tapRecorder) BeginRun(lt layers.LinkType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.linkTypes = append(r.linkTypes, lt)
	return r.beginErr
}

func (r *tapRecorder) WriteFrame(ci gopacket.CaptureInfo, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return r.err
	}
	r.frames = append(r.frames, append([]byte(nil), data...))
	r.infos = append(r.infos, ci)
	return nil
}

func newTestLoop(h Handle, sink Sink, tap FrameTap) *loop {
	return &loop{
		handle: h,
		device: eth0,
		runID:  "run-1",
		sink:   sink,
		tap:    tap,
		log:    logger.GetLogger(),
	}
}

func TestLoopDeliversInReadOrder(t *testing.T) {
	h := &fakeHandle{reads: []read{
		{data: frame(1)},
		{err: ErrReadTimeout},
		{data: []byte{0x01, 0x02}},
		{data: frame(3)},
		{err: io.EOF},
	}}
	sink := &recordingSink{}
	tap := &tapRecorder{}
	l := newTestLoop(h, sink, tap)

	var exitErr error
	exits := 0
	l.onExit = func(err error) {
		exits++
		exitErr = err
	}

	err := l.run(context.Background())

	require.NoError(t, err)
	assert.NoError(t, exitErr)
	assert.Equal(t, 1, exits)
	assert.Equal(t, int32(1), h.closeCount())

	recs, _, _ := sink.snapshot()
	require.Len(t, recs, 3)
	assert.Equal(t, packet.ClassTCP, recs[0].Class)
	assert.Equal(t, uint16(1), recs[0].SrcPort)
	assert.Equal(t, packet.ClassUnparseable, recs[1].Class)
	assert.Equal(t, uint16(3), recs[2].SrcPort)

	require.Len(t, tap.frames, 3)
	assert.Equal(t, frame(1), tap.frames[0])
	assert.Equal(t, 54, tap.infos[0].Length)
	assert.Equal(t, uint64(3), l.frames)
}

func TestLoopTerminalError(t *testing.T) {
	cause := errors.New("handle invalidated")
	h := &fakeHandle{reads: []read{{data: frame(1)}, {err: cause}, {data: frame(2)}}}
	sink := &recordingSink{}
	l := newTestLoop(h, sink, nil)

	var exitErr error
	l.onExit = func(err error) { exitErr = err }

	err := l.run(context.Background())

	var termErr *TerminalCaptureError
	require.True(t, errors.As(err, &termErr))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, err, exitErr)
	assert.Equal(t, int32(1), h.closeCount())

	recs, _, _ := sink.snapshot()
	assert.Len(t, recs, 1, "nothing is read after the failure")
}

func TestLoopCancelledBeforeFirstRead(t *testing.T) {
	h := &fakeHandle{reads: []read{{data: frame(1)}}}
	sink := &recordingSink{}
	l := newTestLoop(h, sink, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, l.run(ctx))
	recs, _, _ := sink.snapshot()
	assert.Empty(t, recs)
	assert.Equal(t, int32(1), h.closeCount())
}

func TestLoopDisablesFailingTap(t *testing.T) {
	h := &fakeHandle{reads: []read{{data: frame(1)}, {data: frame(2)}, {err: io.EOF}}}
	sink := &recordingSink{}
	tap := &tapRecorder{err: errors.New("disk full")}
	l := newTestLoop(h, sink, tap)

	require.NoError(t, l.run(context.Background()))

	assert.Equal(t, 1, tap.calls)
	recs, _, _ := sink.snapshot()
	assert.Len(t, recs, 2, "capture continues without the tap")
}

func TestLoopCloseHandleOnce(t *testing.T) {
	h := &fakeHandle{}
	l := newTestLoop(h, &recordingSink{}, nil)

	l.closeHandle()
	l.closeHandle()

	assert.Equal(t, int32(1), h.closeCount())
}

func TestLoopLogsRunID(t *testing.T) {
	var buf bytes.Buffer
	log, err := logger.NewLogger(logger.Config{LogLevel: logger.Debug, Output: &buf})
	require.NoError(t, err)

	h := &fakeHandle{reads: []read{{data: frame(1)}, {err: errors.New("link down")}}}
	l := newTestLoop(h, &recordingSink{}, nil)
	l.log = log

	require.Error(t, l.run(context.Background()))

	out := buf.String()
	assert.Contains(t, out, "Capture run-1: read from eth0 failed: link down")
	assert.Contains(t, out, "Capture run-1 on eth0 finished after 1 frames")
}

// rawHandle is a fakeHandle on a device without an Ethernet header.
type rawHandle struct{ *fakeHandle }

func (rawHandle) LinkType() layers.LinkType { return layers.LinkTypeRaw }

func TestLoopTellsTapTheLinkType(t *testing.T) {
	h := rawHandle{&fakeHandle{reads: []read{{data: []byte{0x45, 0x00}}, {err: io.EOF}}}}
	tap := &tapRecorder{}
	l := newTestLoop(h, &recordingSink{}, tap)

	require.NoError(t, l.run(context.Background()))

	assert.Equal(t, []layers.LinkType{layers.LinkTypeRaw}, tap.linkTypes)
	assert.Len(t, tap.frames, 1)
}

func TestLoopSkipsTapThatRejectsRun(t *testing.T) {
	h := &fakeHandle{reads: []read{{data: frame(1)}, {data: frame(2)}, {err: io.EOF}}}
	sink := &recordingSink{}
	tap := &tapRecorder{beginErr: errors.New("link type mismatch")}
	l := newTestLoop(h, sink, tap)

	require.NoError(t, l.run(context.Background()))

	assert.Zero(t, tap.calls)
	recs, _, _ := sink.snapshot()
	assert.Len(t, recs, 2)
}
