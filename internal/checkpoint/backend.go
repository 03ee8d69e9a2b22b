package checkpoint

import "time"

// Run statuses.
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Backend records import runs. Implementations are SQLite (State) and a
// single YAML file (FileState) for headless environments.
type Backend interface {
	CreateRun(id string, threadCount int, config any) error
	CompleteRun(id string, outcome Outcome) error

	// History
	GetAllRuns() ([]Run, error)
	GetRunByID(runID string) (*Run, error)
	CleanupOldRuns(retentionDays int) (int, error)

	Close() error
}

// Run is one recorded import.
type Run struct {
	ID          string     `yaml:"id"`
	StartedAt   time.Time  `yaml:"started_at"`
	CompletedAt *time.Time `yaml:"completed_at,omitempty"`
	Status      string     `yaml:"status"`
	Error       string     `yaml:"error,omitempty"`
	ThreadCount int        `yaml:"thread_count"`
	Artifact    string     `yaml:"artifact,omitempty"`
	Threads     int        `yaml:"threads"`
	Messages    int        `yaml:"messages"`
	Projects    int        `yaml:"projects"`
	AgentRuns   int        `yaml:"agent_runs"`
	UserID      string     `yaml:"user_id,omitempty"`
	AccountID   string     `yaml:"account_id,omitempty"`
	ConfigHash  string     `yaml:"config_hash,omitempty"`
}

// Outcome is what a finished run reports.
type Outcome struct {
	Status    string
	Error     string
	Artifact  string
	Threads   int
	Messages  int
	Projects  int
	AgentRuns int
	UserID    string
	AccountID string
}

var (
	_ Backend = (*State)(nil)
	_ Backend = (*FileState)(nil)
)
