package checkpoint

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const (
	historyFile     = "history.db"
	sqliteTimestamp = "2006-01-02 15:04:05"
	historyLimit    = 20
)

// State keeps run history in SQLite.
type State struct {
	db *sql.DB
}

// New opens (creating if needed) the history database in dataDir.
func New(dataDir string) (*State, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, historyFile)
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	s := &State{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating history schema: %w", err)
	}

	return s, nil
}

func (s *State) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		completed_at TEXT,
		status TEXT NOT NULL DEFAULT 'running',
		error TEXT,
		thread_count INTEGER NOT NULL DEFAULT 0,
		artifact TEXT,
		threads INTEGER NOT NULL DEFAULT 0,
		messages INTEGER NOT NULL DEFAULT 0,
		projects INTEGER NOT NULL DEFAULT 0,
		agent_runs INTEGER NOT NULL DEFAULT 0,
		user_id TEXT,
		account_id TEXT,
		config_hash TEXT,
		config TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *State) Close() error {
	return s.db.Close()
}

// CreateRun records the start of an import. config is stored as JSON and
// should already be sanitized.
func (s *State) CreateRun(id string, threadCount int, config any) error {
	configJSON, hash := configDigest(config)
	_, err := s.db.Exec(`
		INSERT INTO runs (id, started_at, status, thread_count, config_hash, config)
		VALUES (?, datetime('now'), 'running', ?, ?, ?)
	`, id, threadCount, hash, configJSON)
	if err != nil {
		return fmt.Errorf("recording run start: %w", err)
	}
	return nil
}

// CompleteRun stores the outcome of run id.
func (s *State) CompleteRun(id string, o Outcome) error {
	res, err := s.db.Exec(`
		UPDATE runs SET
			status = ?, completed_at = datetime('now'), error = ?, artifact = ?,
			threads = ?, messages = ?, projects = ?, agent_runs = ?,
			user_id = ?, account_id = ?
		WHERE id = ?
	`, o.Status, o.Error, o.Artifact,
		o.Threads, o.Messages, o.Projects, o.AgentRuns,
		o.UserID, o.AccountID, id)
	if err != nil {
		return fmt.Errorf("recording run outcome: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	return nil
}

const runColumns = `id, started_at, completed_at, status, error, thread_count, artifact,
	threads, messages, projects, agent_runs, user_id, account_id, config_hash`

// GetAllRuns returns the most recent runs, newest first.
func (s *State) GetAllRuns() ([]Run, error) {
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("reading run history: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// GetRunByID returns one run, or nil when it does not exist.
func (s *State) GetRunByID(runID string) (*Run, error) {
	r, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, runID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// CleanupOldRuns deletes finished runs completed more than retentionDays
// ago. Running entries are kept.
func (s *State) CleanupOldRuns(retentionDays int) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Format(sqliteTimestamp)
	res, err := s.db.Exec(`
		DELETE FROM runs
		WHERE status != 'running' AND completed_at IS NOT NULL AND completed_at < ?
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleaning up run history: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var r Run
	var startedAt string
	var completedAt, errMsg, artifact, userID, accountID, hash sql.NullString
	err := row.Scan(&r.ID, &startedAt, &completedAt, &r.Status, &errMsg, &r.ThreadCount, &artifact,
		&r.Threads, &r.Messages, &r.Projects, &r.AgentRuns, &userID, &accountID, &hash)
	if err != nil {
		return nil, err
	}
	r.StartedAt, _ = time.Parse(sqliteTimestamp, startedAt)
	if completedAt.Valid {
		t, _ := time.Parse(sqliteTimestamp, completedAt.String)
		r.CompletedAt = &t
	}
	r.Error = errMsg.String
	r.Artifact = artifact.String
	r.UserID = userID.String
	r.AccountID = accountID.String
	r.ConfigHash = hash.String
	return &r, nil
}

// configDigest returns the JSON form of config and a short hash of it.
func configDigest(config any) (string, string) {
	configJSON, _ := json.Marshal(config)
	sum := sha256.Sum256(configJSON)
	return string(configJSON), hex.EncodeToString(sum[:8])
}
