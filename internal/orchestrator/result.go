package orchestrator

import (
	"time"

	"github.com/johndauphine/demo-import/internal/dataset"
)

// Result is the machine-readable outcome of Run (--output-json).
type Result struct {
	RunID           string         `json:"run_id"`
	Status          string         `json:"status"`
	StartedAt       time.Time      `json:"started_at"`
	CompletedAt     time.Time      `json:"completed_at"`
	DurationSeconds float64        `json:"duration_seconds"`
	DryRun          bool           `json:"dry_run,omitempty"`
	Artifact        string         `json:"artifact,omitempty"`
	Counts          dataset.Counts `json:"counts"`
	FetchFailures   int            `json:"fetch_failures,omitempty"`
	UserID          string         `json:"user_id,omitempty"`
	AccountID       string         `json:"account_id,omitempty"`
	Error           string         `json:"error,omitempty"`
}

// HealthCheckResult is the outcome of Check.
type HealthCheckResult struct {
	Timestamp       string `json:"timestamp"`
	Healthy         bool   `json:"healthy"`
	TargetURL       string `json:"target_url"`
	TargetConnected bool   `json:"target_connected"`
	TargetLatencyMs int64  `json:"target_latency_ms"`
	TargetError     string `json:"target_error,omitempty"`
	SourceURL       string `json:"source_url"`
	SourceConnected bool   `json:"source_connected"`
	SourceLatencyMs int64  `json:"source_latency_ms"`
	SourceError     string `json:"source_error,omitempty"`
}
