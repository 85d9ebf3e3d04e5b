package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	// LevelDebug is the debug log level
	LevelDebug LogLevel = iota
	// LevelInfo is the info log level
	LevelInfo
	// LevelWarn is the warning log level
	LevelWarn
	// LevelError is the error log level
	LevelError
)

var (
	levelMu      sync.RWMutex
	currentLevel LogLevel
	levelSet     bool

	std = log.New(os.Stderr, "", log.LstdFlags)
)

// ParseLevel converts the DEBUG and LOG_LEVEL values into a level.
// A truthy debug value wins over level.
func ParseLevel(debug, level string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(debug)) {
	case "1", "true", "yes", "on":
		return LevelDebug
	}

	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// GetLevel returns the current log level, reading the environment on first use.
func GetLevel() LogLevel {
	levelMu.RLock()
	if levelSet {
		l := currentLevel
		levelMu.RUnlock()
		return l
	}
	levelMu.RUnlock()

	levelMu.Lock()
	defer levelMu.Unlock()
	if !levelSet {
		currentLevel = ParseLevel(os.Getenv("DEBUG"), os.Getenv("LOG_LEVEL"))
		levelSet = true
	}
	return currentLevel
}

// SetLevel overrides the level read from the environment.
func SetLevel(l LogLevel) {
	levelMu.Lock()
	currentLevel = l
	levelSet = true
	levelMu.Unlock()
}

// SetOutput redirects all log output.
func SetOutput(w io.Writer) {
	std.SetOutput(w)
}

// IsDebugEnabled returns true if debug logging is enabled
func IsDebugEnabled() bool {
	return GetLevel() <= LevelDebug
}

func emit(level LogLevel, tag, prefix, format string, args ...interface{}) {
	if GetLevel() > level {
		return
	}
	std.Printf("["+tag+"] "+prefix+format, args...)
}

// Debug logs a debug message (only if DEBUG=true or LOG_LEVEL=debug)
func Debug(format string, args ...interface{}) { emit(LevelDebug, "DEBUG", "", format, args...) }

// Info logs an info message
func Info(format string, args ...interface{}) { emit(LevelInfo, "INFO", "", format, args...) }

// Warn logs a warning message
func Warn(format string, args ...interface{}) { emit(LevelWarn, "WARN", "", format, args...) }

// Error logs an error message
func Error(format string, args ...interface{}) { emit(LevelError, "ERROR", "", format, args...) }

// Fatal logs an error message and exits
func Fatal(format string, args ...interface{}) {
	std.Fatalf("[FATAL] "+format, args...)
}

// Printf writes a message regardless of level.
func Printf(format string, args ...interface{}) {
	std.Printf(format, args...)
}

// Logger prefixes every message with a component name.
type Logger struct {
	prefix string
}

// For returns a logger for the named component.
func For(component string) *Logger {
	return &Logger{prefix: component + ": "}
}

// Debug logs at debug level.
func (l *Logger) Debug(format string, args ...interface{}) {
	emit(LevelDebug, "DEBUG", l.prefix, format, args...)
}

// Info logs at info level.
func (l *Logger) Info(format string, args ...interface{}) {
	emit(LevelInfo, "INFO", l.prefix, format, args...)
}

// Warn logs at warn level.
func (l *Logger) Warn(format string, args ...interface{}) {
	emit(LevelWarn, "WARN", l.prefix, format, args...)
}

// Error logs at error level.
func (l *Logger) Error(format string, args ...interface{}) {
	emit(LevelError, "ERROR", l.prefix, format, args...)
}

// String returns the string representation of a log level
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", l)
	}
}
