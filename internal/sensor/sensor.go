// Package sensor assembles a capture session from configuration and drives it
// until the source ends, the context is cancelled or a stop signal arrives.
package sensor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"
	"time"

	"EnigmaNetz/Enigma-Capture/config"
	"EnigmaNetz/Enigma-Capture/internal/capture"
	"EnigmaNetz/Enigma-Capture/internal/forward"
	"EnigmaNetz/Enigma-Capture/internal/logger"
	"EnigmaNetz/Enigma-Capture/internal/pcapfile"
	"EnigmaNetz/Enigma-Capture/internal/sink"
)

// ErrNoDevice is returned when no capture device is available.
var ErrNoDevice = errors.New("no capture device available")

// Options controls what New wires in addition to the configuration.
type Options struct {
	// Opener overrides the opener chosen from the configuration.
	Opener capture.Opener
	// Output receives printed records. Nil disables printing.
	Output io.Writer
	// PrintAll also prints records without IP addresses.
	PrintAll bool
}

// Sensor owns one capture session and everything attached to it.
type Sensor struct {
	cfg       *config.Config
	session   *capture.Session
	stats     *sink.Stats
	tap       *pcapfile.Writer
	forwarder *forward.Forwarder
	ended     chan struct{}
	log       *logger.Logger
}

// New builds the sink chain, the optional save tap and forwarder, and the
// session. Close releases what New opened.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Sensor, error) {
	s := &Sensor{
		cfg:   cfg,
		stats: sink.NewStats(),
		ended: make(chan struct{}, 1),
		log:   logger.GetLogger(),
	}

	sinks := sink.Fanout{s.stats}
	if opts.Output != nil {
		p := sink.NewPrinter(opts.Output)
		p.All = opts.PrintAll
		sinks = append(sinks, p)
	}

	if cfg.Forward.URL != "" {
		f, err := forward.Dial(ctx, forward.Config{
			URL:          cfg.Forward.URL,
			QueueSize:    cfg.Forward.QueueSize,
			WriteTimeout: cfg.ForwardWriteTimeout(),
		})
		if err != nil {
			return nil, err
		}
		s.forwarder = f
		sinks = append(sinks, f)
	}

	// Wakes Run whenever a run ends so it can inspect the status.
	sinks = append(sinks, sink.Funcs{Event: func(ev capture.Event) {
		if ev.Kind == capture.EventStarted {
			return
		}
		select {
		case s.ended <- struct{}{}:
		default:
		}
	}})

	var tap capture.FrameTap
	if cfg.Save.Path != "" {
		w, err := pcapfile.CreateForRuns(cfg.Save.Path, cfg.Capture.SnapLen)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.tap = w
		tap = w
		s.log.Info("[sensor] Saving frames to %s", cfg.Save.Path)
	}

	opener := opts.Opener
	if opener == nil {
		opener = OpenerFor(cfg)
	}
	s.session = capture.NewSession(capture.SessionConfig{Opener: opener, Sink: sinks, Tap: tap})
	return s, nil
}

// OpenerFor returns the replay opener when a read file is configured and the
// live opener otherwise.
func OpenerFor(cfg *config.Config) capture.Opener {
	if cfg.Capture.ReadFile != "" {
		return pcapfile.ReplayOpener{}
	}
	return capture.LiveOpener{
		SnapLen:     cfg.Capture.SnapLen,
		Promiscuous: cfg.Capture.Promiscuous,
		ReadTimeout: cfg.ReadTimeout(),
	}
}

// SelectDevice resolves the configured source to a Device. A read file wins
// over an interface; an unknown interface name is passed through so the open
// reports the failure.
func SelectDevice(cfg *config.Config, catalog capture.Catalog) (capture.Device, error) {
	if cfg.Capture.ReadFile != "" {
		return pcapfile.Device(cfg.Capture.ReadFile), nil
	}
	devices := capture.AvailableDevices(catalog)
	if cfg.Capture.Interface != "" {
		if d, ok := capture.FindDevice(devices, cfg.Capture.Interface); ok {
			return d, nil
		}
		return capture.Device{Name: cfg.Capture.Interface}, nil
	}
	if d, ok := capture.FirstActive(devices); ok {
		return d, nil
	}
	return capture.Device{}, ErrNoDevice
}

// Session exposes the underlying session.
func (s *Sensor) Session() *capture.Session { return s.session }

// Stats returns a snapshot of the counters so far.
func (s *Sensor) Stats() sink.PacketStats { return s.stats.Snapshot() }

// Run starts capturing on dev and blocks until the capture ends. SIGHUP on
// signals restarts the capture, any other signal stops it. A nil signals
// channel disables signal handling. The error is the terminal capture error
// when the run failed.
func (s *Sensor) Run(ctx context.Context, dev capture.Device, signals <-chan os.Signal) error {
	if err := s.session.Start(dev); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			s.log.Info("[sensor] Context cancelled, stopping capture")
			return s.stop()
		case sig := <-signals:
			if sig == syscall.SIGHUP {
				s.log.Info("[sensor] Received %v, restarting capture on %s", sig, dev.Name)
				if err := s.restart(dev); err != nil {
					return err
				}
				continue
			}
			s.log.Info("[sensor] Received %v, stopping capture", sig)
			return s.stop()
		case <-s.ended:
			st := s.session.Status()
			switch st.State {
			case capture.StateIdle:
				return nil
			case capture.StateFailed:
				return st.Err
			}
		}
	}
}

func (s *Sensor) stopTimeout() time.Duration {
	return 2*s.cfg.ReadTimeout() + 2*time.Second
}

func (s *Sensor) stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.stopTimeout())
	defer cancel()
	if err := s.session.Stop(ctx); err != nil {
		return fmt.Errorf("failed to stop capture: %w", err)
	}
	return nil
}

func (s *Sensor) restart(dev capture.Device) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.stopTimeout())
	defer cancel()
	return s.session.Restart(ctx, dev)
}

// Close stops the session if it is still running, then closes the save file
// and the forwarder.
func (s *Sensor) Close() error {
	var errs []error
	if s.session != nil {
		errs = append(errs, s.stop())
	}
	if s.tap != nil {
		if err := s.tap.Close(); err != nil {
			errs = append(errs, err)
		} else {
			s.log.Info("[sensor] Saved %d frames to %s", s.tap.Frames(), s.cfg.Save.Path)
		}
	}
	if s.forwarder != nil {
		errs = append(errs, s.forwarder.Close())
	}
	return errors.Join(errs...)
}
