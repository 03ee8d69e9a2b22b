package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// FileState implements Backend using a single YAML file. It keeps the most
// recent runs only.
type FileState struct {
	path  string
	mu    sync.RWMutex
	state *fileStateData
}

// fileStateData is the YAML structure for the state file.
type fileStateData struct {
	Runs []Run `yaml:"runs"`
}

// NewFileState creates a file-based state manager.
// If the file exists, it loads the existing state.
func NewFileState(path string) (*FileState, error) {
	fs := &FileState{
		path:  path,
		state: &fileStateData{},
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading state file: %w", err)
		}
		if err := yaml.Unmarshal(data, fs.state); err != nil {
			return nil, fmt.Errorf("parsing state file: %w", err)
		}
	}

	return fs, nil
}

// save writes the current state to the YAML file.
func (fs *FileState) save() error {
	data, err := yaml.Marshal(fs.state)
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}
	if dir := filepath.Dir(fs.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating state dir: %w", err)
		}
	}
	if err := os.WriteFile(fs.path, data, 0600); err != nil {
		return fmt.Errorf("writing state file: %w", err)
	}
	return nil
}

// CreateRun appends a running entry and drops the oldest beyond the limit.
func (fs *FileState) CreateRun(id string, threadCount int, config any) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	for _, r := range fs.state.Runs {
		if r.ID == id {
			return fmt.Errorf("run %s already recorded in state file", id)
		}
	}

	_, hash := configDigest(config)
	fs.state.Runs = append(fs.state.Runs, Run{
		ID:          id,
		StartedAt:   time.Now().UTC().Truncate(time.Second),
		Status:      StatusRunning,
		ThreadCount: threadCount,
		ConfigHash:  hash,
	})
	if n := len(fs.state.Runs); n > historyLimit {
		fs.state.Runs = fs.state.Runs[n-historyLimit:]
	}

	return fs.save()
}

// CompleteRun stores the outcome of run id.
func (fs *FileState) CompleteRun(id string, o Outcome) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	r := fs.find(id)
	if r == nil {
		return fmt.Errorf("run not found: %s", id)
	}

	now := time.Now().UTC().Truncate(time.Second)
	r.CompletedAt = &now
	r.Status = o.Status
	r.Error = o.Error
	r.Artifact = o.Artifact
	r.Threads = o.Threads
	r.Messages = o.Messages
	r.Projects = o.Projects
	r.AgentRuns = o.AgentRuns
	r.UserID = o.UserID
	r.AccountID = o.AccountID

	return fs.save()
}

// GetAllRuns returns recorded runs, newest first.
func (fs *FileState) GetAllRuns() ([]Run, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	runs := make([]Run, 0, len(fs.state.Runs))
	for i := len(fs.state.Runs) - 1; i >= 0; i-- {
		runs = append(runs, fs.state.Runs[i])
	}
	return runs, nil
}

// GetRunByID returns a copy of one run, or nil.
func (fs *FileState) GetRunByID(runID string) (*Run, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	if r := fs.find(runID); r != nil {
		cp := *r
		return &cp, nil
	}
	return nil, nil
}

// CleanupOldRuns drops finished runs completed before the retention window.
func (fs *FileState) CleanupOldRuns(retentionDays int) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	kept := fs.state.Runs[:0]
	removed := 0
	for _, r := range fs.state.Runs {
		if r.Status != StatusRunning && r.CompletedAt != nil && r.CompletedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	fs.state.Runs = kept
	if removed == 0 {
		return 0, nil
	}
	return removed, fs.save()
}

// Close is a no-op; every change is written immediately.
func (fs *FileState) Close() error {
	return nil
}

func (fs *FileState) find(id string) *Run {
	for i := range fs.state.Runs {
		if fs.state.Runs[i].ID == id {
			return &fs.state.Runs[i]
		}
	}
	return nil
}
