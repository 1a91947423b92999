// Package load generates local HTTP traffic while a capture session runs, as
// a smoke test for a device and the decoding path.
package load

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"EnigmaNetz/Enigma-Capture/internal/capture"
	"EnigmaNetz/Enigma-Capture/internal/logger"
	"EnigmaNetz/Enigma-Capture/internal/packet"
	"EnigmaNetz/Enigma-Capture/internal/sink"
)

// Config controls the synthetic traffic and the device it is captured on.
type Config struct {
	Duration time.Duration
	// Device should see loopback traffic.
	Device capture.Device
	// RPS is the target request rate.
	RPS int
}

// Result summarises one synthetic run.
type Result struct {
	Requests int64
	// ServerRecords counts TCP records to or from the synthetic server.
	ServerRecords int64
	Stats         sink.PacketStats
}

// RunSyntheticCaptureLoad starts a capture on cfg.Device, drives HTTP
// requests against a local server for cfg.Duration, stops the capture and
// reports what was seen.
func RunSyntheticCaptureLoad(ctx context.Context, opener capture.Opener, cfg Config) (Result, error) {
	if cfg.Duration <= 0 {
		cfg.Duration = 5 * time.Second
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 10
	}
	log := logger.GetLogger()

	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusOK)
	})}
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return Result{}, err
	}
	srv.Addr = listener.Addr().String()
	go srv.Serve(listener)
	defer srv.Shutdown(context.Background())

	_, portStr, _ := net.SplitHostPort(srv.Addr)
	port, _ := strconv.Atoi(portStr)

	var serverRecords atomic.Int64
	stats := sink.NewStats()
	counter := sink.Funcs{Record: func(rec packet.Record) {
		if rec.HasPorts() && (int(rec.SrcPort) == port || int(rec.DstPort) == port) {
			serverRecords.Add(1)
		}
	}}
	session := capture.NewSession(capture.SessionConfig{Opener: opener, Sink: sink.Fanout{stats, counter}})
	if err := session.Start(cfg.Device); err != nil {
		return Result{}, err
	}

	genCtx, cancelGen := context.WithTimeout(ctx, cfg.Duration)
	defer cancelGen()
	var requests atomic.Int64
	var wg sync.WaitGroup
	wg.Add(1)
	go func(addr string) {
		defer wg.Done()
		client := &http.Client{Timeout: time.Second}
		interval := time.Second / time.Duration(cfg.RPS)
		for genCtx.Err() == nil {
			req, _ := http.NewRequestWithContext(genCtx, http.MethodGet, "http://"+addr, nil)
			if resp, err := client.Do(req); err == nil {
				resp.Body.Close()
				requests.Add(1)
			}
			time.Sleep(interval)
		}
	}(srv.Addr)
	wg.Wait()

	stopCtx, cancelStop := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelStop()
	if err := session.Stop(stopCtx); err != nil {
		return Result{}, fmt.Errorf("failed to stop capture on %s: %w", cfg.Device.Name, err)
	}

	res := Result{Requests: requests.Load(), ServerRecords: serverRecords.Load(), Stats: stats.Snapshot()}
	if res.Stats.Failures > 0 {
		return res, fmt.Errorf("capture on %s failed during the run", cfg.Device.Name)
	}
	log.Info("[load] %d requests, %d frames captured, %d for the synthetic server", res.Requests, res.Stats.TotalPackets, res.ServerRecords)
	return res, nil
}
