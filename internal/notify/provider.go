// Package notify posts import results to Slack.
package notify

import "time"

// Provider defines the notification contract for import events.
type Provider interface {
	// ImportStarted is sent once the precheck passes.
	ImportStarted(runID, target string, threadCount int) error

	// ImportCompleted is sent after the migration file is written.
	ImportCompleted(s Summary) error

	// ImportFailed is sent when a run aborts.
	ImportFailed(runID string, err error, duration time.Duration) error
}

// Summary describes a finished import.
type Summary struct {
	RunID     string
	StartTime time.Time
	Duration  time.Duration
	Threads   int
	Messages  int
	Projects  int
	AgentRuns int
	Artifact  string
}

// Ensure Notifier implements Provider
var _ Provider = (*Notifier)(nil)
