package exitcodes

import (
	"errors"
	"fmt"
	"os"
	"testing"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil error", nil, Success},
		{"path error", &os.PathError{Op: "open", Path: "/foo", Err: errors.New("no such file")}, IOError},
		{"yaml parse error", errors.New("yaml: unmarshal error"), ConfigError},
		{"missing key", errors.New("invalid config: target.service_role_key is required"), ConfigError},
		{"no such file", errors.New("open config.yaml: no such file or directory"), IOError},
		{"connection refused", errors.New("dial tcp: connection refused"), ConnectionError},
		{"unreachable", errors.New("target database unreachable"), ConnectionError},
		{"unauthorized", errors.New("precheck: unauthorized: invalid service role key"), CredentialError},
		{"pg auth", errors.New("failed to connect: password authentication failed for user"), CredentialError},
		{"apply", errors.New("applying migration 2024_demo.sql: syntax error"), ApplyError},
		{"context canceled", errors.New("fetching threads: context canceled"), Cancelled},
		{"state error", errors.New("opening history database: locked"), StateError},
		{"unknown error", errors.New("something unexpected happened"), GenerateError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromError(tt.err)
			if got != tt.expected {
				t.Errorf("FromError(%v) = %d (%s), want %d (%s)",
					tt.err, got, Description(got), tt.expected, Description(tt.expected))
			}
		})
	}
}

func TestExitError(t *testing.T) {
	inner := errors.New("inner error")
	exitErr := NewExitError(inner, CredentialError)

	if exitErr.Code != CredentialError {
		t.Errorf("expected code %d, got %d", CredentialError, exitErr.Code)
	}

	if exitErr.Error() != "inner error" {
		t.Errorf("expected error message 'inner error', got '%s'", exitErr.Error())
	}

	if errors.Unwrap(exitErr) != inner {
		t.Error("Unwrap should return inner error")
	}

	// Wrapped ExitErrors keep their code
	wrapped := fmt.Errorf("precheck: %w", exitErr)
	if FromError(wrapped) != CredentialError {
		t.Errorf("FromError should extract code from wrapped ExitError")
	}
}

func TestIsRecoverable(t *testing.T) {
	recoverable := []int{ConnectionError, Cancelled, IOError}
	nonRecoverable := []int{Success, ConfigError, CredentialError, GenerateError, StateError, ApplyError}

	for _, code := range recoverable {
		if !IsRecoverable(code) {
			t.Errorf("expected code %d (%s) to be recoverable", code, Description(code))
		}
	}

	for _, code := range nonRecoverable {
		if IsRecoverable(code) {
			t.Errorf("expected code %d (%s) to be non-recoverable", code, Description(code))
		}
	}
}

func TestDescription(t *testing.T) {
	tests := []struct {
		code     int
		expected string
	}{
		{Success, "success"},
		{ConfigError, "configuration error"},
		{ConnectionError, "connection error (recoverable)"},
		{CredentialError, "credential error"},
		{GenerateError, "generate error"},
		{Cancelled, "cancelled (recoverable)"},
		{StateError, "state error"},
		{IOError, "I/O error (recoverable)"},
		{ApplyError, "apply error"},
		{99, "unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			got := Description(tt.code)
			if got != tt.expected {
				t.Errorf("Description(%d) = %q, want %q", tt.code, got, tt.expected)
			}
		})
	}
}
