// Package logging provides a logging abstraction layer that decouples the
// pipeline from a specific logging framework. Packages log through the
// Logger interface; the logrus adapter is wired in at startup.
package logging

import "sync"

// Logger defines the interface for structured logging throughout the application.
type Logger interface {
	// Debug logs a debug-level message with optional fields
	Debug(msg string, fields ...Field)

	// Info logs an info-level message with optional fields
	Info(msg string, fields ...Field)

	// Warn logs a warning-level message with optional fields
	Warn(msg string, fields ...Field)

	// Error logs an error-level message with optional fields
	Error(msg string, fields ...Field)

	// WithError returns a new logger with an error field attached
	WithError(err error) Logger

	// WithField returns a new logger with a single field attached
	WithField(key string, value interface{}) Logger

	// Fatal logs a fatal-level message and exits the program
	Fatal(msg string, fields ...Field)
}

// Field represents a key-value pair for structured logging.
type Field struct {
	Key   string
	Value interface{}
}

// Standardized field names used across the pipeline's log output.
const (
	FieldSource   = "source"
	FieldUnit     = "unit"
	FieldProvider = "provider"
	FieldFile     = "file_path"
	FieldCount    = "count"
	FieldReason   = "reason"
)

var (
	mu            sync.RWMutex
	defaultLogger Logger = NewLogrusAdapter("info", "text")
)

// GetLogger returns the process-wide default logger. Components that need
// isolation take a Logger in their constructor instead.
func GetLogger() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

// SetDefault replaces the process-wide default logger.
func SetDefault(l Logger) {
	if l == nil {
		return
	}
	mu.Lock()
	defaultLogger = l
	mu.Unlock()
}
