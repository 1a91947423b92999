package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"EnigmaNetz/Enigma-Capture/internal/logger"
)

const (
	// DefaultPath is read when no config file is named on the command line.
	DefaultPath = "config.json"

	maxInterfaceNameLength = 255
	maxSnapLen             = 262144
	maxReadTimeoutMS       = 60000
)

// Config represents the application configuration
type Config struct {
	// Logging configuration
	Logging struct {
		// Level is the minimum log level to output (debug, info, warn, error)
		Level string `json:"level"`
		// File is the path to the log file. If empty, logs to stdout only
		File string `json:"file"`
		// MaxSizeMB is the maximum size of log file before rotation
		MaxSizeMB int `json:"max_size_mb"`
		// LogRetentionDays is how long rotated log files are kept
		LogRetentionDays int `json:"log_retention_days"`
		MaxBackups       int `json:"max_backups"`
	} `json:"logging"`

	// Capture configuration
	Capture struct {
		// Interface names the device to open. Empty picks the first active one.
		Interface     string `json:"interface"`
		SnapLen       int    `json:"snap_len"`
		Promiscuous   bool   `json:"promiscuous"`
		ReadTimeoutMS int    `json:"read_timeout_ms"`
		// ReadFile replays a pcap file instead of opening a device
		ReadFile string `json:"read_file"`
	} `json:"capture"`

	// Save writes every captured frame to a pcap file when Path is set
	Save struct {
		Path string `json:"path"`
	} `json:"save"`

	// Forward streams records to an analysis server when URL is set
	Forward struct {
		URL            string `json:"url"`
		QueueSize      int    `json:"queue_size"`
		WriteTimeoutMS int    `json:"write_timeout_ms"`
	} `json:"forward"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// LoadConfig loads configuration from a JSON file
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = DefaultPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.setDefaults()
	return &config, nil
}

// LoadConfigOrDefault behaves like LoadConfig but returns the defaults when
// the file does not exist.
func LoadConfigOrDefault(configPath string) (*Config, error) {
	cfg, err := LoadConfig(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

func (c *Config) setDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = 100
	}
	if c.Logging.LogRetentionDays == 0 {
		c.Logging.LogRetentionDays = 7
	}
	if c.Capture.SnapLen == 0 {
		c.Capture.SnapLen = 65535
	}
	if c.Capture.ReadTimeoutMS == 0 {
		c.Capture.ReadTimeoutMS = 1000
	}
	if c.Forward.QueueSize == 0 {
		c.Forward.QueueSize = 1024
	}
	if c.Forward.WriteTimeoutMS == 0 {
		c.Forward.WriteTimeoutMS = 5000
	}
}

// LoadEnvFile loads variables from a .env file into the process environment.
// A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields from ENIGMA_CAPTURE_* environment variables.
func (c *Config) ApplyEnv() error {
	strs := map[string]*string{
		"ENIGMA_CAPTURE_INTERFACE":   &c.Capture.Interface,
		"ENIGMA_CAPTURE_READ_FILE":   &c.Capture.ReadFile,
		"ENIGMA_CAPTURE_LOG_LEVEL":   &c.Logging.Level,
		"ENIGMA_CAPTURE_LOG_FILE":    &c.Logging.File,
		"ENIGMA_CAPTURE_SAVE_PATH":   &c.Save.Path,
		"ENIGMA_CAPTURE_FORWARD_URL": &c.Forward.URL,
	}
	for key, field := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*field = v
		}
	}

	ints := map[string]*int{
		"ENIGMA_CAPTURE_SNAP_LEN":           &c.Capture.SnapLen,
		"ENIGMA_CAPTURE_READ_TIMEOUT_MS":    &c.Capture.ReadTimeoutMS,
		"ENIGMA_CAPTURE_FORWARD_QUEUE_SIZE": &c.Forward.QueueSize,
	}
	for key, field := range ints {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, v, err)
		}
		*field = n
	}

	if v, ok := os.LookupEnv("ENIGMA_CAPTURE_PROMISCUOUS"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid ENIGMA_CAPTURE_PROMISCUOUS %q: %w", v, err)
		}
		c.Capture.Promiscuous = b
	}
	return nil
}

// Validate rejects values that would fail or misbehave once capture starts.
func (c *Config) Validate() error {
	if _, err := logger.ParseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	if c.Capture.Interface != "" {
		if err := validateInterfaceName(c.Capture.Interface); err != nil {
			return fmt.Errorf("invalid interface '%s': %w", c.Capture.Interface, err)
		}
	}
	if c.Capture.SnapLen < 1 || c.Capture.SnapLen > maxSnapLen {
		return fmt.Errorf("snap length must be between 1 and %d, got %d", maxSnapLen, c.Capture.SnapLen)
	}
	if c.Capture.ReadTimeoutMS < 1 || c.Capture.ReadTimeoutMS > maxReadTimeoutMS {
		return fmt.Errorf("read timeout must be between 1 and %d ms, got %d", maxReadTimeoutMS, c.Capture.ReadTimeoutMS)
	}
	if c.Forward.URL != "" {
		u, err := url.Parse(c.Forward.URL)
		if err != nil {
			return fmt.Errorf("invalid forward url: %w", err)
		}
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return fmt.Errorf("forward url must use ws or wss, got %q", u.Scheme)
		}
		if u.Host == "" {
			return fmt.Errorf("forward url has no host")
		}
	}
	if c.Forward.QueueSize < 1 {
		return fmt.Errorf("forward queue size must be positive, got %d", c.Forward.QueueSize)
	}
	return nil
}

// ReadTimeout is the bound on a single blocking read from a device.
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.Capture.ReadTimeoutMS) * time.Millisecond
}

// ForwardWriteTimeout bounds each websocket write.
func (c *Config) ForwardWriteTimeout() time.Duration {
	return time.Duration(c.Forward.WriteTimeoutMS) * time.Millisecond
}

var (
	interfaceNamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
	// npcap names look like \Device\NPF_{GUID}
	npcapNamePattern = regexp.MustCompile(`^\\Device\\NPF_(\{[0-9A-Fa-f-]+\}|Loopback)$`)
)

// validateInterfaceName allows only characters that appear in real device
// names, so a configured name can never smuggle shell syntax or paths.
func validateInterfaceName(name string) error {
	if name == "" {
		return fmt.Errorf("interface name cannot be empty")
	}
	if len(name) > maxInterfaceNameLength {
		return fmt.Errorf("interface name too long: %d characters", len(name))
	}
	if !interfaceNamePattern.MatchString(name) && !npcapNamePattern.MatchString(name) {
		return fmt.Errorf("interface name contains invalid characters")
	}
	return nil
}

// InitializeLogging sets up logging based on config
func (c *Config) InitializeLogging() error {
	level, err := logger.ParseLogLevel(c.Logging.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	if c.Logging.File != "" {
		logDir := filepath.Dir(c.Logging.File)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	logConfig := logger.Config{
		LogLevel:   level,
		LogFile:    c.Logging.File,
		MaxSizeMB:  c.Logging.MaxSizeMB,
		MaxAgeDays: c.Logging.LogRetentionDays,
		MaxBackups: c.Logging.MaxBackups,
	}

	if err := logger.Initialize(logConfig); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	return nil
}
