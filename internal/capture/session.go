package capture

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"EnigmaNetz/Enigma-Capture/internal/logger"
)

// SessionConfig wires a Session to its collaborators.
type SessionConfig struct {
	Opener Opener
	// Sink receives records and lifecycle events. Nil discards them.
	Sink Sink
	// Tap, when set, sees every raw frame before decoding.
	Tap FrameTap
}

// Session runs at most one capture at a time and guarantees the previous
// capture's handle is closed before a new one is opened.
//
// Start, Stop and Restart are serialized by opMu. mu guards the status and is
// never held while waiting for the capture goroutine, which takes it on exit.
type Session struct {
	opener Opener
	sink   Sink
	tap    FrameTap
	log    *logger.Logger

	opMu sync.Mutex

	mu     sync.Mutex
	status Status
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSession creates an idle session.
func NewSession(cfg SessionConfig) *Session {
	s := &Session{
		opener: cfg.Opener,
		sink:   cfg.Sink,
		tap:    cfg.Tap,
		log:    logger.GetLogger(),
	}
	if s.sink == nil {
		s.sink = discard{}
	}
	return s
}

// Status returns a snapshot of the lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Start opens dev and begins capturing on a background goroutine. It returns
// once the capture is running. Starting while capturing or stopping fails with
// an *InvalidStateError; an open failure is returned as a *DeviceOpenError and
// leaves the status unchanged.
func (s *Session) Start(dev Device) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.start(dev)
}

// Stop cancels the running capture and waits until its goroutine has exited
// and closed the handle. Stopping an idle session is a no-op. If ctx ends
// first a *StopError is returned and the session stays Stopping; calling Stop
// again resumes the wait.
func (s *Session) Stop(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.stop(ctx)
}

// Restart stops the current capture, if any, and starts dev. No other Start
// or Stop runs in between.
func (s *Session) Restart(ctx context.Context, dev Device) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if err := s.stop(ctx); err != nil {
		return err
	}
	return s.start(dev)
}

func (s *Session) start(dev Device) error {
	s.mu.Lock()
	state, done := s.status.State, s.done
	s.mu.Unlock()

	if state == StateCapturing || state == StateStopping {
		return &InvalidStateError{Op: "start", State: state}
	}
	// A failed run has reported its error but may still be unwinding.
	if done != nil {
		<-done
	}

	handle, err := s.opener.Open(dev)
	if err != nil {
		s.log.Error("[session] Failed to open %s: %v", dev.Name, err)
		return &DeviceOpenError{Device: dev, Err: err}
	}

	runID := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	done = make(chan struct{})
	l := &loop{
		handle: handle,
		device: dev,
		runID:  runID,
		sink:   s.sink,
		tap:    s.tap,
		log:    s.log,
		onExit: func(err error) { s.loopExited(runID, err) },
	}

	s.mu.Lock()
	s.status = Status{State: StateCapturing, Device: dev, RunID: runID}
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	s.log.Info("[session] Capture %s started on %s", runID, dev.Label())
	s.sink.HandleEvent(Event{Kind: EventStarted, Device: dev, RunID: runID, Time: time.Now()})

	go func() {
		defer close(done)
		defer cancel()
		l.run(ctx)
	}()
	return nil
}

func (s *Session) stop(ctx context.Context) error {
	s.mu.Lock()
	switch s.status.State {
	case StateIdle:
		s.mu.Unlock()
		return nil
	case StateCapturing:
		s.status.State = StateStopping
	}
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			s.log.Warn("[session] Gave up waiting for capture to stop: %v", ctx.Err())
			return &StopError{Err: ctx.Err()}
		}
	}

	s.mu.Lock()
	s.status = Status{State: StateIdle}
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	s.log.Info("[session] Capture stopped")
	return nil
}

// loopExited runs on the capture goroutine after the handle is closed. It is
// the only path by which a run's outcome reaches the status.
func (s *Session) loopExited(runID string, err error) {
	s.mu.Lock()
	if s.status.RunID != runID {
		s.mu.Unlock()
		return
	}
	ev := Event{Kind: EventStopped, Device: s.status.Device, RunID: runID, Time: time.Now()}
	switch {
	case err != nil:
		s.status = Status{State: StateFailed, Device: s.status.Device, RunID: runID, Err: err}
		ev.Kind = EventFailed
		ev.Err = err
	case s.status.State == StateCapturing:
		// The source ended on its own; nobody will call Stop for this run.
		s.status = Status{State: StateIdle}
	}
	s.mu.Unlock()

	if ev.Kind == EventFailed {
		s.log.Error("[session] Capture %s failed: %v", runID, err)
	}
	s.sink.HandleEvent(ev)
}
