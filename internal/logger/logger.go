package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	// Debug level for detailed troubleshooting
	Debug LogLevel = iota
	// Info level for general operational entries
	Info
	// Warn level for non-critical issues
	Warn
	// Error level for errors that need attention
	Error
)

var levelNames = map[LogLevel]string{
	Debug: "DEBUG",
	Info:  "INFO",
	Warn:  "WARN",
	Error: "ERROR",
}

func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// Logger is a leveled wrapper around the standard library logger.
type Logger struct {
	loggers map[LogLevel]*log.Logger
	level   LogLevel
	mu      sync.Mutex
	file    io.Closer // rotating log file, nil when logging to stdout only
}

var (
	defaultLogger *Logger
	defaultMu     sync.Mutex
)

// Config holds logger configuration
type Config struct {
	// LogLevel sets the minimum level to log
	LogLevel LogLevel
	// LogFile is the path to the log file. If empty, logs to stdout only
	LogFile string
	// MaxSizeMB is the size a log file reaches before it is rotated
	MaxSizeMB int
	// MaxAgeDays is how long rotated files are kept
	MaxAgeDays int
	// MaxBackups is how many rotated files are kept
	MaxBackups int
	// Output replaces stdout as the console writer when set
	Output io.Writer
}

// Initialize sets up the default logger with configuration. Calling it again
// replaces the default logger and closes the previous log file.
func Initialize(config Config) error {
	l, err := NewLogger(config)
	if err != nil {
		return err
	}

	defaultMu.Lock()
	prev := defaultLogger
	defaultLogger = l
	defaultMu.Unlock()

	if prev != nil {
		return prev.Close()
	}
	return nil
}

// NewLogger creates a new logger instance
func NewLogger(config Config) (*Logger, error) {
	console := config.Output
	if console == nil {
		console = os.Stdout
	}
	writers := []io.Writer{console}

	var file io.Closer
	if config.LogFile != "" {
		path := filepath.Clean(config.LogFile)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		rotating := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    config.MaxSizeMB,  // megabytes
			MaxAge:     config.MaxAgeDays, // days
			MaxBackups: config.MaxBackups,
			Compress:   true,
		}
		file = rotating
		writers = append(writers, rotating)
	}

	out := io.MultiWriter(writers...)
	flags := log.Ldate | log.Ltime | log.Lmicroseconds

	loggers := make(map[LogLevel]*log.Logger, len(levelNames))
	for level, name := range levelNames {
		loggers[level] = log.New(out, name+": ", flags)
	}

	return &Logger{
		loggers: loggers,
		level:   config.LogLevel,
		file:    file,
	}, nil
}

// Close properly closes the logger's file handle if one exists
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Level returns the minimum level that is written.
func (l *Logger) Level() LogLevel {
	return l.level
}

func (l *Logger) printf(level LogLevel, format string, v ...interface{}) {
	if level < l.level {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loggers[level].Output(3, fmt.Sprintf(format, v...))
}

// Debug logs a debug message
func (l *Logger) Debug(format string, v ...interface{}) {
	l.printf(Debug, format, v...)
}

// Info logs an info message
func (l *Logger) Info(format string, v ...interface{}) {
	l.printf(Info, format, v...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, v ...interface{}) {
	l.printf(Warn, format, v...)
}

// Error logs an error message
func (l *Logger) Error(format string, v ...interface{}) {
	l.printf(Error, format, v...)
}

// GetLogger returns the default logger instance. Before Initialize is called
// it returns an INFO level logger writing to stdout.
func GetLogger() *Logger {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		defaultLogger, _ = NewLogger(Config{LogLevel: Info})
	}
	return defaultLogger
}

// ParseLogLevel converts a string level to LogLevel
func ParseLogLevel(level string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return Debug, nil
	case "info":
		return Info, nil
	case "warn", "warning":
		return Warn, nil
	case "error":
		return Error, nil
	default:
		return Info, fmt.Errorf("unknown log level: %s", level)
	}
}
