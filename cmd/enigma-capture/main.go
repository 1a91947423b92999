package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"EnigmaNetz/Enigma-Capture/config"
	"EnigmaNetz/Enigma-Capture/internal/capture"
	collect_logs "EnigmaNetz/Enigma-Capture/internal/collect_logs"
	"EnigmaNetz/Enigma-Capture/internal/logger"
	"EnigmaNetz/Enigma-Capture/internal/sensor"
	"EnigmaNetz/Enigma-Capture/internal/version"
)

func printHelp() {
	fmt.Print(`Enigma Capture - Live Packet Capture Tool

Usage: enigma-capture [devices|collect-logs] [flags] [--version|-v] [--help|-h]

Captures frames from a network device (or replays a pcap file), decodes the
Ethernet, IPv4 and TCP headers of each frame and prints the result.

Commands:
  devices         List the capture devices and exit
  collect-logs    Package logs, saved captures, config, devices and diagnostics into a zip archive for support

Flags:
  -config path    Configuration file (default config.json, optional)
  -env path       .env file with ENIGMA_CAPTURE_* overrides (default .env, optional)
  -i name         Device name to capture on, as listed by "devices"
  -r file         Replay a pcap or pcapng file instead of capturing
  -w file         Save every captured frame to a pcap file
  -forward url    Stream records to an analysis server (ws:// or wss://)
  -print          Print records to stdout (default true)
  -all            Also print frames without IPv4 addresses
  --version, -v   Print version and exit
  --help, -h      Show this help message and exit

Signals:
  SIGINT, SIGTERM stop the capture and exit
  SIGHUP          restart the capture on the same device

Example:
  enigma-capture devices
  enigma-capture -i eth0 -w captures/eth0.pcap
  enigma-capture -r captures/eth0.pcap -all
`)
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--help", "-h":
			printHelp()
			return
		case "--version", "-v":
			fmt.Println(version.Version)
			return
		case "devices":
			os.Exit(listDevices(os.Stdout))
		case "collect-logs":
			os.Exit(collectLogs(os.Args[2:]))
		}
	}
	os.Exit(run(os.Args[1:]))
}

func listDevices(w io.Writer) int {
	devices, err := capture.PcapCatalog{}.ListDevices()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list devices: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(w, "No capture devices found.")
		return 0
	}
	for i, d := range devices {
		fmt.Fprintf(w, "%d. %s\n", i+1, d.Label())
	}
	return 0
}

func collectLogs(args []string) int {
	fs := flag.NewFlagSet("collect-logs", flag.ContinueOnError)
	configPath := fs.String("config", config.DefaultPath, "configuration file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	cfg, err := config.LoadConfigOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	src := collect_logs.Sources{
		LogDir:     "logs",
		ConfigPath: *configPath,
		Captures:   []string{"captures"},
		Catalog:    capture.PcapCatalog{},
	}
	if cfg.Logging.File != "" {
		src.LogDir = filepath.Dir(cfg.Logging.File)
	}
	if cfg.Save.Path != "" {
		src.Captures = append(src.Captures, cfg.Save.Path)
	}

	zipName := fmt.Sprintf("enigma-capture-logs-%s.zip", time.Now().Format("20060102-150405"))
	if err := collect_logs.CollectLogs(zipName, src); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to collect logs: %v\n", err)
		return 1
	}
	fmt.Printf("Created %s with logs, captures, config, and diagnostics.\n", zipName)
	return 0
}

func run(args []string) int {
	fs := flag.NewFlagSet("enigma-capture", flag.ContinueOnError)
	configPath := fs.String("config", config.DefaultPath, "configuration file")
	envPath := fs.String("env", ".env", ".env file")
	iface := fs.String("i", "", "device to capture on")
	readFile := fs.String("r", "", "pcap file to replay")
	savePath := fs.String("w", "", "pcap file to save frames to")
	forwardURL := fs.String("forward", "", "analysis server websocket url")
	printRecords := fs.Bool("print", true, "print records")
	all := fs.Bool("all", false, "print frames without IPv4 addresses")
	fs.Usage = printHelp
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if err := config.LoadEnvFile(*envPath); err != nil {
		log.Printf("Warning: %v", err)
	}
	cfg, err := config.LoadConfigOrDefault(*configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		return 1
	}
	if err := cfg.ApplyEnv(); err != nil {
		log.Printf("Failed to apply environment: %v", err)
		return 1
	}

	// Flags win over the file and the environment.
	if *iface != "" {
		cfg.Capture.Interface = *iface
	}
	if *readFile != "" {
		cfg.Capture.ReadFile = *readFile
	}
	if *savePath != "" {
		cfg.Save.Path = *savePath
	}
	if *forwardURL != "" {
		cfg.Forward.URL = *forwardURL
	}

	if err := cfg.Validate(); err != nil {
		log.Printf("Invalid configuration: %v", err)
		return 1
	}
	if err := cfg.InitializeLogging(); err != nil {
		log.Printf("Failed to initialize logging: %v", err)
		return 1
	}
	lg := logger.GetLogger()
	defer lg.Close()
	lg.Info("Enigma Capture %s starting", version.Version)

	dev, err := sensor.SelectDevice(cfg, capture.PcapCatalog{})
	if err != nil {
		lg.Error("Failed to select a device: %v", err)
		return 1
	}

	opts := sensor.Options{PrintAll: *all}
	if *printRecords {
		opts.Output = os.Stdout
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := sensor.New(ctx, cfg, opts)
	if err != nil {
		lg.Error("Failed to set up capture: %v", err)
		return 1
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	runErr := s.Run(ctx, dev, sigCh)
	if err := s.Close(); err != nil {
		lg.Warn("Shutdown was not clean: %v", err)
	}
	lg.Info("Capture statistics:\n%s", s.Stats())

	if runErr != nil {
		lg.Error("Capture on %s failed: %v", dev.Label(), runErr)
		return 1
	}
	return 0
}
