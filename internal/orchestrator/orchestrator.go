// Package orchestrator runs an import end to end: precheck, fetch,
// render, write, record.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/johndauphine/demo-import/internal/checkpoint"
	"github.com/johndauphine/demo-import/internal/config"
	"github.com/johndauphine/demo-import/internal/dataset"
	"github.com/johndauphine/demo-import/internal/logging"
	"github.com/johndauphine/demo-import/internal/migration"
	"github.com/johndauphine/demo-import/internal/notify"
	"github.com/johndauphine/demo-import/internal/postgrest"
	"github.com/johndauphine/demo-import/internal/precheck"
	"github.com/johndauphine/demo-import/internal/progress"
	"github.com/johndauphine/demo-import/internal/source"
	"github.com/johndauphine/demo-import/internal/tenant"
)

// Options holds runtime options that are not part of the config file.
type Options struct {
	// StateFile records history in a YAML file instead of SQLite.
	// Overrides state.file from the config.
	StateFile string

	// RunID overrides the generated run id.
	RunID string

	// DryRun renders the migration to Stdout without writing a file.
	DryRun bool

	// ProgressJSON reports fetch progress as JSON lines on stderr.
	ProgressJSON bool

	// Stdout receives dry-run output and history listings. Defaults to os.Stdout.
	Stdout io.Writer
}

// Orchestrator coordinates one import.
type Orchestrator struct {
	config   *config.Config
	opts     Options
	target   *postgrest.Client
	source   *postgrest.Client
	state    checkpoint.Backend
	notifier notify.Provider
	reporter dataset.Reporter
	out      io.Writer

	now         func() time.Time
	newIdentity func() tenant.Identity
}

// New creates an orchestrator. cfg must already be validated.
func New(cfg *config.Config, opts Options) (*Orchestrator, error) {
	stateFile := opts.StateFile
	if stateFile == "" {
		stateFile = cfg.State.File
	}

	var state checkpoint.Backend
	var err error
	if stateFile != "" {
		state, err = checkpoint.NewFileState(stateFile)
	} else {
		state, err = checkpoint.New(cfg.State.DataDir)
	}
	if err != nil {
		return nil, fmt.Errorf("opening run history: %w", err)
	}

	var reporter dataset.Reporter = progress.New()
	if opts.ProgressJSON {
		reporter = progress.NewJSONReporter(os.Stderr, time.Second)
	}

	out := opts.Stdout
	if out == nil {
		out = os.Stdout
	}

	return &Orchestrator{
		config:      cfg,
		opts:        opts,
		target:      postgrest.NewClient(cfg.Target.URL, cfg.Target.ServiceRoleKey).WithTimeout(cfg.HTTP.Timeout),
		source:      postgrest.NewClient(cfg.Source.URL, cfg.Source.APIKey).WithTimeout(cfg.HTTP.Timeout),
		state:       state,
		notifier:    notify.New(&cfg.Slack),
		reporter:    reporter,
		out:         out,
		now:         time.Now,
		newIdentity: tenant.New,
	}, nil
}

// Close releases all resources
func (o *Orchestrator) Close() {
	o.target.CloseIdleConnections()
	o.source.CloseIdleConnections()
	if err := o.state.Close(); err != nil {
		logging.Warn("Closing run history: %v", err)
	}
}

// Run executes a full import. The returned Result is populated even when
// err is non-nil, as far as the run got.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	runID := o.opts.RunID
	if runID == "" {
		runID = uuid.New().String()[:8]
	}
	startTime := o.now()
	result := &Result{
		RunID:     runID,
		Status:    checkpoint.StatusRunning,
		StartedAt: startTime,
		DryRun:    o.opts.DryRun,
	}

	logging.SetRunID(runID)
	defer logging.SetRunID("")
	logging.Info("Starting import run: %s", runID)
	if err := o.state.CreateRun(runID, len(o.config.Source.ThreadIDs), o.config.Sanitized()); err != nil {
		return result, fmt.Errorf("recording run in history: %w", err)
	}

	logging.Info("Testing connection to %s...", o.config.Target.URL)
	if err := precheck.Check(ctx, o.target); err != nil {
		return o.fail(result, fmt.Errorf("precheck: %w", err))
	}
	logging.Info("Connection to target verified")

	if err := o.notifier.ImportStarted(runID, o.config.Target.URL, len(o.config.Source.ThreadIDs)); err != nil {
		logging.Warn("Slack notification failed: %v", err)
	}

	logging.Info("Fetching demo data from %s...", o.config.Source.URL)
	fetcher := source.NewFetcher(o.source)
	ds, err := dataset.Assemble(ctx, fetcher, o.config.Source.ThreadIDs, dataset.WithReporter(o.reporter))
	fetcher.Close()
	if err != nil {
		return o.fail(result, err)
	}

	stats := fetcher.Stats()
	if stats.Failures > 0 {
		logging.Warn("%d of %d fetches failed; their rows are missing from the migration", stats.Failures, stats.Requests)
	}
	result.FetchFailures = stats.Failures
	result.Counts = ds.Counts()
	logging.Info("Fetched: %d threads, %d messages, %d projects, %d agent runs",
		result.Counts.Threads, result.Counts.Messages, result.Counts.Projects, result.Counts.AgentRuns)

	identity := o.newIdentity()
	result.UserID = identity.UserID.String()
	result.AccountID = identity.AccountID.String()

	now := o.now()
	sql := migration.Render(ds, identity, o.owner(), now)

	if o.opts.DryRun {
		if _, err := io.WriteString(o.out, sql); err != nil {
			return o.fail(result, fmt.Errorf("writing dry-run output: %w", err))
		}
	} else {
		path, err := migration.WriteFile(o.config.Output.Dir, o.config.Output.Suffix, now, sql)
		if err != nil {
			return o.fail(result, err)
		}
		result.Artifact = path
		logging.Info("Migration file created: %s", path)
	}

	o.finish(result, "")
	if err := o.notifier.ImportCompleted(notify.Summary{
		RunID:     runID,
		StartTime: startTime,
		Duration:  o.now().Sub(startTime),
		Threads:   result.Counts.Threads,
		Messages:  result.Counts.Messages,
		Projects:  result.Counts.Projects,
		AgentRuns: result.Counts.AgentRuns,
		Artifact:  result.Artifact,
	}); err != nil {
		logging.Warn("Slack notification failed: %v", err)
	}
	return result, nil
}

func (o *Orchestrator) owner() migration.Owner {
	return migration.Owner{
		Email:       o.config.Identity.Email,
		UserName:    o.config.Identity.UserName,
		AccountName: o.config.Identity.AccountName,
		AccountSlug: o.config.Identity.AccountSlug,
	}
}

func (o *Orchestrator) fail(result *Result, err error) (*Result, error) {
	o.finish(result, err.Error())
	if nerr := o.notifier.ImportFailed(result.RunID, err, o.now().Sub(result.StartedAt)); nerr != nil {
		logging.Warn("Slack notification failed: %v", nerr)
	}
	return result, err
}

// finish stamps the result and records it; history errors are only logged
// so they never mask the run's own outcome.
func (o *Orchestrator) finish(result *Result, errMsg string) {
	result.CompletedAt = o.now()
	result.DurationSeconds = result.CompletedAt.Sub(result.StartedAt).Seconds()
	result.Error = errMsg
	result.Status = checkpoint.StatusSuccess
	if errMsg != "" {
		result.Status = checkpoint.StatusFailed
	}

	err := o.state.CompleteRun(result.RunID, checkpoint.Outcome{
		Status:    result.Status,
		Error:     errMsg,
		Artifact:  result.Artifact,
		Threads:   result.Counts.Threads,
		Messages:  result.Counts.Messages,
		Projects:  result.Counts.Projects,
		AgentRuns: result.Counts.AgentRuns,
		UserID:    result.UserID,
		AccountID: result.AccountID,
	})
	if err != nil {
		logging.Warn("Recording run outcome: %v", err)
	}
}
