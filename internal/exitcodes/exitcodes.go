// Package exitcodes defines standard exit codes for CLI operations.
// The shell wrapper that launches the import (and any CI job around it)
// branches on these values, so they must stay stable.
package exitcodes

import (
	"errors"
	"os"
	"strings"
)

const (
	// Success - migration file generated (or applied) without errors
	Success = 0

	// ConfigError - configuration/YAML parsing or missing required settings (don't retry)
	ConfigError = 1

	// ConnectionError - target database unreachable during precheck (recoverable)
	ConnectionError = 2

	// CredentialError - target database rejected the service role key (don't retry)
	CredentialError = 3

	// GenerateError - assembling or rendering the statement batch failed
	GenerateError = 4

	// Cancelled - user cancelled via SIGINT/SIGTERM (recoverable)
	Cancelled = 5

	// StateError - run history database or state file errors
	StateError = 6

	// IOError - writing the migration file failed (recoverable)
	IOError = 7

	// ApplyError - executing the migration file against a database failed
	ApplyError = 8
)

// ExitError wraps an error with an exit code.
type ExitError struct {
	Err  error
	Code int
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code.
func NewExitError(err error, code int) *ExitError {
	return &ExitError{Err: err, Code: code}
}

// FromError determines the appropriate exit code for an error.
// It examines error messages and types to classify the error.
func FromError(err error) int {
	if err == nil {
		return Success
	}

	// Check if it's already an ExitError
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	// Check for os.PathError first (file not found, permission denied, etc.)
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return IOError
	}

	errStr := strings.ToLower(err.Error())

	if containsAny(errStr, []string{
		"no such file",
		"file not found",
		"permission denied",
		"is a directory",
		"not a directory",
	}) {
		return IOError
	}

	// Credential errors - check before connection errors since
	// "authentication failed" messages often mention the connection too
	if containsAny(errStr, []string{
		"unauthorized",
		"invalid service role key",
		"authentication failed",
		"password authentication",
	}) {
		return CredentialError
	}

	if containsAny(errStr, []string{
		"yaml:",
		"json:",
		"unmarshal",
		"invalid config",
		"is required",
		"invalid value",
		"parsing config",
	}) && !containsAny(errStr, []string{"connection", "connect", "dial"}) {
		return ConfigError
	}

	if containsAny(errStr, []string{
		"cancel",
		"interrupt",
		"context canceled",
		"context deadline",
	}) {
		return Cancelled
	}

	if containsAny(errStr, []string{
		"connection",
		"connect",
		"dial",
		"refused",
		"timeout",
		"unreachable",
		"no such host",
		"network",
	}) {
		return ConnectionError
	}

	if containsAny(errStr, []string{
		"applying migration",
		"executing migration",
	}) {
		return ApplyError
	}

	if containsAny(errStr, []string{
		"state",
		"history",
		"run not found",
	}) {
		return StateError
	}

	// Default to generate error for unknown errors
	return GenerateError
}

// IsRecoverable returns true if the error is recoverable (safe to retry).
func IsRecoverable(code int) bool {
	switch code {
	case ConnectionError, Cancelled, IOError:
		return true
	default:
		return false
	}
}

// Description returns a human-readable description of the exit code.
func Description(code int) string {
	switch code {
	case Success:
		return "success"
	case ConfigError:
		return "configuration error"
	case ConnectionError:
		return "connection error (recoverable)"
	case CredentialError:
		return "credential error"
	case GenerateError:
		return "generate error"
	case Cancelled:
		return "cancelled (recoverable)"
	case StateError:
		return "state error"
	case IOError:
		return "I/O error (recoverable)"
	case ApplyError:
		return "apply error"
	default:
		return "unknown error"
	}
}

func containsAny(s string, substrs []string) bool {
	for _, substr := range substrs {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}
