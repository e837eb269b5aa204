// Package logger provides leveled logging with support for debug, info, warn, and error levels.
// It wraps the standard log package to provide level-based filtering and formatted output.
//
// Row-level anomalies found while reconciling spreadsheets are reported here and never
// returned to the caller, so the logger must be usable before Init is called: an
// uninitialized logger writes warnings and errors to stderr and drops the rest.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// Level represents a logging level
type Level int

const (
	// DebugLevel logs are typically voluminous, and are usually disabled in production.
	DebugLevel Level = iota
	// InfoLevel is the default logging priority.
	InfoLevel
	// WarnLevel logs are more important than Info, but don't need individual human review.
	WarnLevel
	// ErrorLevel logs are high-priority. If a run is healthy, it shouldn't generate any error-level logs.
	ErrorLevel
)

var levelNames = map[Level]string{
	DebugLevel: "DEBUG",
	InfoLevel:  "INFO",
	WarnLevel:  "WARN",
	ErrorLevel: "ERROR",
}

// Logger provides leveled logging
type Logger struct {
	level  Level
	logger *log.Logger
}

var (
	mu            sync.RWMutex
	defaultLogger = &Logger{level: WarnLevel, logger: log.New(os.Stderr, "", log.LstdFlags)}
)

// ParseLevel maps a config string to a Level. Unknown values fall back to InfoLevel.
func ParseLevel(level string) Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Init initializes the default logger with the specified level and format
func Init(level string, format string) {
	flags := log.LstdFlags | log.Lmicroseconds
	if strings.ToLower(format) == "text" {
		flags |= log.Lshortfile
	}

	mu.Lock()
	defer mu.Unlock()
	defaultLogger = &Logger{
		level:  ParseLevel(level),
		logger: log.New(os.Stderr, "", flags),
	}
}

// SetOutput redirects the default logger. Tests use it to capture anomaly reports.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger.logger.SetOutput(w)
}

// Enabled reports whether messages at l would be written.
func Enabled(l Level) bool {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger.level <= l
}

func output(l Level, format string, args ...interface{}) {
	mu.RLock()
	lg := defaultLogger
	mu.RUnlock()
	if lg.level > l {
		return
	}
	msg := fmt.Sprintf("["+levelNames[l]+"] "+format, args...)
	_ = lg.logger.Output(3, msg)
}

// Debug logs a message at DebugLevel
func Debug(format string, args ...interface{}) {
	output(DebugLevel, format, args...)
}

// Info logs a message at InfoLevel
func Info(format string, args ...interface{}) {
	output(InfoLevel, format, args...)
}

// Warn logs a message at WarnLevel
func Warn(format string, args ...interface{}) {
	output(WarnLevel, format, args...)
}

// Error logs a message at ErrorLevel
func Error(format string, args ...interface{}) {
	output(ErrorLevel, format, args...)
}

// Fatal logs a message at ErrorLevel and exits
func Fatal(format string, args ...interface{}) {
	msg := fmt.Sprintf("[FATAL] "+format, args...)
	mu.RLock()
	lg := defaultLogger
	mu.RUnlock()
	_ = lg.logger.Output(2, msg)
	os.Exit(1)
}
