package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"EnigmaNetz/Enigma-Capture/internal/capture"
	"EnigmaNetz/Enigma-Capture/load"
)

func main() {
	duration := flag.Duration("duration", 5*time.Second, "traffic generation duration")
	iface := flag.String("i", "lo", "loopback device to capture on")
	rps := flag.Int("rps", 100, "target requests per second")
	flag.Parse()

	devices := capture.AvailableDevices(capture.PcapCatalog{})
	dev, ok := capture.FindDevice(devices, *iface)
	if !ok {
		dev = capture.Device{Name: *iface}
	}

	opener := capture.LiveOpener{SnapLen: capture.DefaultSnapLen, ReadTimeout: 100 * time.Millisecond}
	res, err := load.RunSyntheticCaptureLoad(context.Background(), opener, load.Config{Duration: *duration, Device: dev, RPS: *rps})
	if err != nil {
		log.Fatalf("synthetic capture failed: %v", err)
	}

	fmt.Printf("Requests: %d\nRecords for synthetic server: %d\n%s\n", res.Requests, res.ServerRecords, res.Stats)
	if res.ServerRecords == 0 {
		log.Fatalf("no traffic to the synthetic server was captured on %s", dev.Label())
	}
}
