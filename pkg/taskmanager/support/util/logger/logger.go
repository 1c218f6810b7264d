// Package logger is the level-filtered logger used across the task manager.
// Messages are written through the standard `log` package with a "[LEVEL] " prefix.
package logger

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync/atomic"
)

// LogLevel orders log severities. Smaller values are more verbose.
type LogLevel int32

const (
	// LevelDebug enables detailed diagnostic output such as individual run transitions.
	LevelDebug LogLevel = iota
	// LevelInfo is the default level.
	LevelInfo
	// LevelWarn reports conditions an operator should look at, e.g. a batch disabled during reload.
	LevelWarn
	// LevelError reports failed operations.
	LevelError
	// LevelFatal terminates the process after logging.
	LevelFatal
)

var levelNames = map[LogLevel]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
	LevelFatal: "FATAL",
}

// String returns the upper-case name of the level.
func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LEVEL(%d)", int32(l))
}

// current holds the active level. Fires run on scheduler goroutines, so access is atomic.
var current atomic.Int32

func init() {
	current.Store(int32(LevelInfo))
}

// SetLogLevel sets the global level from its name ("DEBUG", "INFO", "WARN", "ERROR", "FATAL",
// case-insensitive). Unknown names fall back to INFO.
func SetLogLevel(level string) {
	for l, name := range levelNames {
		if strings.EqualFold(name, strings.TrimSpace(level)) {
			current.Store(int32(l))
			return
		}
	}
	fmt.Printf("Unknown log level '%s' specified. Defaulting to INFO level.\n", level)
	current.Store(int32(LevelInfo))
}

// GetLogLevel returns the active level.
func GetLogLevel() LogLevel {
	return LogLevel(current.Load())
}

// SetOutput redirects log output, mainly for tests.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

func enabled(l LogLevel) bool {
	return LogLevel(current.Load()) <= l
}

// Debugf logs at DEBUG level.
func Debugf(format string, v ...interface{}) {
	if enabled(LevelDebug) {
		log.Printf("[DEBUG] "+format, v...)
	}
}

// Infof logs at INFO level.
func Infof(format string, v ...interface{}) {
	if enabled(LevelInfo) {
		log.Printf("[INFO] "+format, v...)
	}
}

// Warnf logs at WARN level.
func Warnf(format string, v ...interface{}) {
	if enabled(LevelWarn) {
		log.Printf("[WARN] "+format, v...)
	}
}

// Errorf logs at ERROR level.
func Errorf(format string, v ...interface{}) {
	if enabled(LevelError) {
		log.Printf("[ERROR] "+format, v...)
	}
}

// Fatalf logs the message and exits the process with status 1.
func Fatalf(format string, v ...interface{}) {
	log.Fatalf("[FATAL] "+format, v...)
}
