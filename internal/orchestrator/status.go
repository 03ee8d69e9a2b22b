package orchestrator

import (
	"fmt"
	"time"

	"github.com/johndauphine/demo-import/internal/checkpoint"
)

const timeLayout = "2006-01-02 15:04:05"

// ShowHistory lists recorded runs, newest first.
func (o *Orchestrator) ShowHistory() error {
	runs, err := o.state.GetAllRuns()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Fprintln(o.out, "No import history")
		return nil
	}

	fmt.Fprintf(o.out, "%-10s %-20s %-10s %-8s %-8s %-8s %-8s %s\n",
		"ID", "Started", "Status", "Threads", "Msgs", "Projects", "Runs", "Migration")
	fmt.Fprintln(o.out, "--------------------------------------------------------------------------------------------")

	for _, r := range runs {
		fmt.Fprintf(o.out, "%-10s %-20s %-10s %-8d %-8d %-8d %-8d %s\n",
			r.ID, r.StartedAt.Format(timeLayout), r.Status,
			r.Threads, r.Messages, r.Projects, r.AgentRuns, artifactLabel(&r))
		if r.Error != "" {
			fmt.Fprintf(o.out, "           Error: %s\n", r.Error)
		}
	}

	fmt.Fprintln(o.out, "\nUse 'history --run <ID>' to view run details")
	return nil
}

// PruneHistory deletes finished runs older than retentionDays.
func (o *Orchestrator) PruneHistory(retentionDays int) error {
	if retentionDays <= 0 {
		return fmt.Errorf("invalid value: prune retention must be positive, got %d", retentionDays)
	}
	n, err := o.state.CleanupOldRuns(retentionDays)
	if err != nil {
		return fmt.Errorf("pruning run history: %w", err)
	}
	fmt.Fprintf(o.out, "Removed %d runs older than %d days\n", n, retentionDays)
	return nil
}

// ShowRunDetails displays one run.
func (o *Orchestrator) ShowRunDetails(runID string) error {
	run, err := o.state.GetRunByID(runID)
	if err != nil {
		return fmt.Errorf("getting run from history: %w", err)
	}
	if run == nil {
		return fmt.Errorf("run not found: %s", runID)
	}

	fmt.Fprintf(o.out, "Run ID:        %s\n", run.ID)
	fmt.Fprintf(o.out, "Status:        %s\n", run.Status)
	if run.Error != "" {
		fmt.Fprintf(o.out, "Error:         %s\n", run.Error)
	}
	fmt.Fprintf(o.out, "Started:       %s\n", run.StartedAt.Format(timeLayout))
	if run.CompletedAt != nil {
		fmt.Fprintf(o.out, "Completed:     %s\n", run.CompletedAt.Format(timeLayout))
		fmt.Fprintf(o.out, "Duration:      %s\n", run.CompletedAt.Sub(run.StartedAt).Round(time.Second))
	}
	fmt.Fprintf(o.out, "Thread IDs:    %d requested\n", run.ThreadCount)
	fmt.Fprintf(o.out, "Imported:      %d threads, %d messages, %d projects, %d agent runs\n",
		run.Threads, run.Messages, run.Projects, run.AgentRuns)
	fmt.Fprintf(o.out, "Migration:     %s\n", artifactLabel(run))
	if run.UserID != "" {
		fmt.Fprintf(o.out, "Demo user:     %s\n", run.UserID)
		fmt.Fprintf(o.out, "Demo account:  %s\n", run.AccountID)
	}
	if run.ConfigHash != "" {
		fmt.Fprintf(o.out, "Config hash:   %s\n", run.ConfigHash)
	}
	return nil
}

func artifactLabel(r *checkpoint.Run) string {
	switch {
	case r.Artifact != "":
		return r.Artifact
	case r.Status == checkpoint.StatusSuccess:
		return "(dry run)"
	default:
		return "-"
	}
}
