package checkpoint

import (
	"database/sql"
	"testing"
	"time"
)

func newTestState(t *testing.T) *State {
	t.Helper()
	state, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { state.Close() })
	return state
}

func TestRunLifecycle(t *testing.T) {
	state := newTestState(t)

	if err := state.CreateRun("r1", 12, map[string]string{"output": "dir"}); err != nil {
		t.Fatalf("CreateRun error: %v", err)
	}

	run, err := state.GetRunByID("r1")
	if err != nil {
		t.Fatalf("GetRunByID error: %v", err)
	}
	if run == nil || run.Status != StatusRunning || run.CompletedAt != nil {
		t.Fatalf("run = %+v, want running", run)
	}
	if run.StartedAt.IsZero() {
		t.Error("StartedAt not parsed")
	}

	err = state.CompleteRun("r1", Outcome{
		Status:    StatusSuccess,
		Artifact:  "out.sql",
		Threads:   2,
		Messages:  5,
		Projects:  1,
		AgentRuns: 3,
		UserID:    "user",
		AccountID: "account",
	})
	if err != nil {
		t.Fatalf("CompleteRun error: %v", err)
	}

	run, _ = state.GetRunByID("r1")
	if run.Status != StatusSuccess || run.CompletedAt == nil {
		t.Errorf("status = %q completed = %v", run.Status, run.CompletedAt)
	}
	if run.Artifact != "out.sql" || run.Messages != 5 || run.AgentRuns != 3 || run.UserID != "user" {
		t.Errorf("outcome not stored: %+v", run)
	}
	if run.ThreadCount != 12 || run.ConfigHash == "" {
		t.Errorf("start fields not stored: %+v", run)
	}
}

func TestGetRunByIDMissing(t *testing.T) {
	state := newTestState(t)
	run, err := state.GetRunByID("nope")
	if err != nil {
		t.Fatalf("GetRunByID error: %v", err)
	}
	if run != nil {
		t.Errorf("expected nil run, got %+v", run)
	}
	if err := state.CompleteRun("nope", Outcome{Status: StatusFailed}); err == nil {
		t.Error("expected error completing unknown run")
	}
}

func TestGetAllRunsNewestFirst(t *testing.T) {
	state := newTestState(t)
	for _, id := range []string{"a", "b", "c"} {
		if err := state.CreateRun(id, 1, nil); err != nil {
			t.Fatalf("CreateRun(%s) error: %v", id, err)
		}
	}
	runs, err := state.GetAllRuns()
	if err != nil {
		t.Fatalf("GetAllRuns error: %v", err)
	}
	if len(runs) != 3 || runs[0].ID != "c" || runs[2].ID != "a" {
		t.Errorf("runs = %+v", runs)
	}
}

func TestCleanupOldRuns(t *testing.T) {
	state := newTestState(t)

	for _, runID := range []string{"old-success", "old-failed", "recent-success", "running"} {
		if err := state.CreateRun(runID, 1, map[string]string{"run": runID}); err != nil {
			t.Fatalf("CreateRun(%s) error: %v", runID, err)
		}
	}
	for id, status := range map[string]string{
		"old-success":    StatusSuccess,
		"old-failed":     StatusFailed,
		"recent-success": StatusSuccess,
	} {
		if err := state.CompleteRun(id, Outcome{Status: status}); err != nil {
			t.Fatalf("CompleteRun(%s) error: %v", id, err)
		}
	}

	oldTime := time.Now().UTC().AddDate(0, 0, -31).Format(sqliteTimestamp)
	if _, err := state.db.Exec(`UPDATE runs SET completed_at = ? WHERE id IN (?, ?)`, oldTime, "old-success", "old-failed"); err != nil {
		t.Fatalf("update old completed_at error: %v", err)
	}

	deleted, err := state.CleanupOldRuns(30)
	if err != nil {
		t.Fatalf("CleanupOldRuns error: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("deleted runs = %d, want 2", deleted)
	}
	if got := countRows(t, state.db, `SELECT COUNT(*) FROM runs`); got != 2 {
		t.Fatalf("runs remaining = %d, want 2", got)
	}
	if got := countRows(t, state.db, `SELECT COUNT(*) FROM runs WHERE id = ?`, "running"); got != 1 {
		t.Fatalf("running run missing after cleanup")
	}
}

func countRows(t *testing.T, db *sql.DB, query string, args ...any) int {
	t.Helper()
	var count int
	if err := db.QueryRow(query, args...).Scan(&count); err != nil {
		t.Fatalf("count query error: %v", err)
	}
	return count
}
