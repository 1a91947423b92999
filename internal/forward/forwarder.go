// Package forward streams capture output to a remote analysis server over a websocket.
package forward

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"EnigmaNetz/Enigma-Capture/internal/capture"
	"EnigmaNetz/Enigma-Capture/internal/logger"
	"EnigmaNetz/Enigma-Capture/internal/packet"
)

const (
	defaultQueueSize    = 1024
	defaultWriteTimeout = 5 * time.Second
)

// Config configures a Forwarder.
type Config struct {
	// URL of the analysis server, ws:// or wss://
	URL string
	// QueueSize bounds the messages waiting to be written. Records arriving
	// while it is full are dropped.
	QueueSize    int
	WriteTimeout time.Duration
	// OnReply is called with every message the server sends back.
	OnReply func(data []byte)
}

// Forwarder is a capture.Sink that sends records and events as JSON text
// messages. It never blocks the capture goroutine on the network.
type Forwarder struct {
	conn         *websocket.Conn
	queue        chan Message
	done         chan struct{}
	writerDone   chan struct{}
	writeTimeout time.Duration
	onReply      func([]byte)
	log          *logger.Logger

	closeOnce sync.Once
	sent      atomic.Uint64
	dropped   atomic.Uint64
	broken    atomic.Bool
}

// Dial connects to the analysis server.
func Dial(ctx context.Context, cfg Config) (*Forwarder, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to analysis server %s: %w", cfg.URL, err)
	}
	logger.GetLogger().Info("[forward] Connected to analysis server %s", cfg.URL)
	return newForwarder(conn, cfg), nil
}

func newForwarder(conn *websocket.Conn, cfg Config) *Forwarder {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	f := &Forwarder{
		conn:         conn,
		queue:        make(chan Message, cfg.QueueSize),
		done:         make(chan struct{}),
		writerDone:   make(chan struct{}),
		writeTimeout: cfg.WriteTimeout,
		onReply:      cfg.OnReply,
		log:          logger.GetLogger(),
	}
	go f.writeLoop()
	go f.readLoop()
	return f
}

func (f *Forwarder) HandleRecord(rec packet.Record) {
	if f.closed() {
		f.dropped.Add(1)
		return
	}
	select {
	case f.queue <- recordMessage(rec):
	default:
		f.dropped.Add(1)
	}
}

// HandleEvent queues a lifecycle event, waiting up to the write timeout for
// room since events are rare and worth more than records.
func (f *Forwarder) HandleEvent(ev capture.Event) {
	if f.closed() {
		f.dropped.Add(1)
		return
	}
	timer := time.NewTimer(f.writeTimeout)
	defer timer.Stop()
	select {
	case f.queue <- eventMessage(ev):
	case <-f.done:
		f.dropped.Add(1)
	case <-timer.C:
		f.dropped.Add(1)
	}
}

func (f *Forwarder) closed() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Sent returns the number of messages written to the server.
func (f *Forwarder) Sent() uint64 { return f.sent.Load() }

// Dropped returns the number of messages discarded because the queue was
// full, the connection broke or the forwarder was closed.
func (f *Forwarder) Dropped() uint64 { return f.dropped.Load() }

// Close flushes queued messages, says goodbye to the server and closes the connection.
func (f *Forwarder) Close() error {
	var err error
	f.closeOnce.Do(func() {
		close(f.done)
		<-f.writerDone

		deadline := time.Now().Add(f.writeTimeout)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "capture finished")
		if werr := f.conn.WriteControl(websocket.CloseMessage, msg, deadline); werr != nil && !f.broken.Load() {
			f.log.Debug("[forward] Close handshake failed: %v", werr)
		}
		err = f.conn.Close()
		f.log.Info("[forward] Disconnected: %d sent, %d dropped", f.Sent(), f.Dropped())
	})
	return err
}

func (f *Forwarder) writeLoop() {
	defer close(f.writerDone)
	for {
		select {
		case m := <-f.queue:
			f.write(m)
		case <-f.done:
			for {
				select {
				case m := <-f.queue:
					f.write(m)
				default:
					return
				}
			}
		}
	}
}

func (f *Forwarder) write(m Message) {
	if f.broken.Load() {
		f.dropped.Add(1)
		return
	}
	f.conn.SetWriteDeadline(time.Now().Add(f.writeTimeout))
	if err := f.conn.WriteJSON(m); err != nil {
		f.log.Error("[forward] Write failed, dropping further messages: %v", err)
		f.broken.Store(true)
		f.dropped.Add(1)
		return
	}
	f.sent.Add(1)
}

func (f *Forwarder) readLoop() {
	for {
		_, data, err := f.conn.ReadMessage()
		if err != nil {
			select {
			case <-f.done:
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					f.log.Warn("[forward] Read from analysis server failed: %v", err)
				}
			}
			return
		}
		if f.onReply != nil {
			f.onReply(data)
		} else {
			f.log.Info("[forward] Server reply: %s", data)
		}
	}
}
