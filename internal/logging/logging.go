// Package logging is the leveled logger shared by every import step. Logs
// go to stderr so that stdout stays free for dry-run SQL and JSON results.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents logging verbosity level
type Level int

const (
	// LevelError only logs errors
	LevelError Level = iota
	// LevelWarn logs warnings and errors
	LevelWarn
	// LevelInfo logs info, warnings, and errors (default)
	LevelInfo
	// LevelDebug logs everything including debug messages
	LevelDebug
)

// Logger provides leveled logging
type Logger struct {
	mu     sync.Mutex
	level  Level
	format string
	output io.Writer
	runID  string
}

var defaultLogger = &Logger{
	level:  LevelInfo,
	format: "text",
	output: os.Stderr,
}

// ParseLevel converts a string to a Level
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "error":
		return LevelError, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "info":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	default:
		return LevelInfo, fmt.Errorf("unknown verbosity level: %s (valid: debug, info, warn, error)", s)
	}
}

// String returns the string representation of a level
func (l Level) String() string {
	switch l {
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

// SetLevel sets the global log level
func SetLevel(level Level) {
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	defaultLogger.level = level
}

// SetFormat selects "text" (default) or "json" line output.
func SetFormat(format string) {
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	if format == "json" {
		defaultLogger.format = "json"
		return
	}
	defaultLogger.format = "text"
}

// SetOutput sets the output destination for logging.
// A nil writer restores stderr.
func SetOutput(w io.Writer) {
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	if w == nil {
		w = os.Stderr
	}
	defaultLogger.output = w
}

// SetRunID tags subsequent log lines with an import run id. An empty id
// removes the tag.
func SetRunID(id string) {
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	defaultLogger.runID = id
}

// GetLevel returns the current log level
func GetLevel() Level {
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	return defaultLogger.level
}

// Debug logs a debug message
func Debug(format string, args ...interface{}) {
	defaultLogger.log(LevelDebug, format, args...)
}

// Info logs an info message
func Info(format string, args ...interface{}) {
	defaultLogger.log(LevelInfo, format, args...)
}

// Warn logs a warning message
func Warn(format string, args ...interface{}) {
	defaultLogger.log(LevelWarn, format, args...)
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	defaultLogger.log(LevelError, format, args...)
}

type jsonEntry struct {
	TS    string `json:"ts"`
	Level string `json:"level"`
	RunID string `json:"run_id,omitempty"`
	Msg   string `json:"msg"`
}

func (l *Logger) log(level Level, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level > l.level {
		return
	}

	msg := fmt.Sprintf(format, args...)

	if l.format == "json" {
		entry := jsonEntry{
			TS:    time.Now().UTC().Format(time.RFC3339Nano),
			Level: strings.ToLower(level.String()),
			RunID: l.runID,
			Msg:   strings.TrimSpace(msg),
		}
		data, err := json.Marshal(entry)
		if err != nil {
			return
		}
		fmt.Fprintln(l.output, string(data))
		return
	}

	if strings.HasPrefix(msg, "\n") {
		// Handle leading newlines (preserve blank line formatting)
		msg = strings.TrimPrefix(msg, "\n")
		fmt.Fprint(l.output, "\n")
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	if l.runID != "" {
		fmt.Fprintf(l.output, "%s [%s] [run %s] %s", timestamp, level.String(), l.runID, msg)
		return
	}
	fmt.Fprintf(l.output, "%s [%s] %s", timestamp, level.String(), msg)
}

// IsDebug returns true if debug level is enabled
func IsDebug() bool {
	return GetLevel() >= LevelDebug
}
