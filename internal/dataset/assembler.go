package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/johndauphine/demo-import/internal/logging"
	"github.com/johndauphine/demo-import/internal/postgrest"
)

// RowSource reads rows of one remote table. Implementations return an empty
// result on failure; source.Fetcher is the production one.
type RowSource interface {
	Fetch(ctx context.Context, table string, q postgrest.Query) []json.RawMessage
}

// Reporter receives progress for each fetch phase.
type Reporter interface {
	StartPhase(name string, total int)
	Step()
	EndPhase(name string, count int)
}

type nopReporter struct{}

func (nopReporter) StartPhase(string, int) {}
func (nopReporter) Step()                  {}
func (nopReporter) EndPhase(string, int)   {}

// Option configures Assemble.
type Option func(*assembler)

// WithReporter sends phase progress to r.
func WithReporter(r Reporter) Option {
	return func(a *assembler) {
		if r != nil {
			a.report = r
		}
	}
}

type assembler struct {
	src    RowSource
	report Reporter
	ds     *Dataset
}

// Assemble fetches the given threads, their messages, the projects they
// reference and their agent runs, in that order. Individual fetch failures
// only drop the affected rows; the returned error is non-nil only when ctx
// is cancelled.
func Assemble(ctx context.Context, src RowSource, threadIDs []string, opts ...Option) (*Dataset, error) {
	a := &assembler{src: src, report: nopReporter{}, ds: New()}
	for _, opt := range opts {
		opt(a)
	}

	steps := []func(context.Context){
		func(ctx context.Context) { a.fetchThreads(ctx, threadIDs) },
		a.fetchMessages,
		a.fetchProjects,
		a.fetchAgentRuns,
	}
	for _, step := range steps {
		step(ctx)
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("assembling dataset: %w", err)
		}
	}
	return a.ds, nil
}

func (a *assembler) fetchThreads(ctx context.Context, threadIDs []string) {
	a.report.StartPhase(TableThreads, len(threadIDs))
	for _, id := range threadIDs {
		rows := a.src.Fetch(ctx, TableThreads, postgrest.Query{}.Where(postgrest.Eq("thread_id", id)))
		found := false
		for _, t := range decodeRows[Thread](TableThreads, rows, func(t *Thread) string { return t.ThreadID }) {
			a.ds.AddThread(t)
			found = true
		}
		if found {
			logging.Debug("  Thread %s", id)
		} else {
			logging.Warn("Thread %s not found", id)
		}
		a.report.Step()
	}
	a.report.EndPhase(TableThreads, len(a.ds.Threads))
}

func (a *assembler) fetchMessages(ctx context.Context) {
	a.report.StartPhase(TableMessages, len(a.ds.ThreadIDs))
	seen := make(map[string]bool)
	total := 0
	for _, threadID := range a.ds.ThreadIDs {
		rows := a.src.Fetch(ctx, TableMessages, byThread(threadID))
		var msgs []*Message
		for _, m := range decodeRows[Message](TableMessages, rows, func(m *Message) string { return m.MessageID }) {
			if m.ThreadID == "" {
				m.ThreadID = threadID
			}
			if _, ok := a.ds.Threads[m.ThreadID]; !ok {
				logging.Warn("Skipping message %s: thread %s was not fetched", m.MessageID, m.ThreadID)
				continue
			}
			if seen[m.MessageID] {
				continue
			}
			seen[m.MessageID] = true
			msgs = append(msgs, m)
		}
		sortByCreated(msgs, func(m *Message) *string { return m.CreatedAt })
		a.ds.Messages[threadID] = msgs
		total += len(msgs)
		logging.Debug("  %d messages for thread %s", len(msgs), threadID)
		a.report.Step()
	}
	a.report.EndPhase(TableMessages, total)
}

func (a *assembler) fetchProjects(ctx context.Context) {
	var ids []string
	seen := make(map[string]bool)
	for _, threadID := range a.ds.ThreadIDs {
		p := a.ds.Threads[threadID].ProjectID
		if p == nil || *p == "" || seen[*p] {
			continue
		}
		seen[*p] = true
		ids = append(ids, *p)
	}

	a.report.StartPhase(TableProjects, len(ids))
	for _, id := range ids {
		rows := a.src.Fetch(ctx, TableProjects, postgrest.Query{}.Where(postgrest.Eq("project_id", id)))
		for _, p := range decodeRows[Project](TableProjects, rows, func(p *Project) string { return p.ProjectID }) {
			a.ds.AddProject(p)
		}
		a.report.Step()
	}
	a.report.EndPhase(TableProjects, len(a.ds.Projects))
}

func (a *assembler) fetchAgentRuns(ctx context.Context) {
	a.report.StartPhase(TableAgentRuns, len(a.ds.ThreadIDs))
	seen := make(map[string]bool)
	total := 0
	for _, threadID := range a.ds.ThreadIDs {
		rows := a.src.Fetch(ctx, TableAgentRuns, byThread(threadID))
		var runs []*AgentRun
		for _, r := range decodeRows[AgentRun](TableAgentRuns, rows, func(r *AgentRun) string { return r.ID }) {
			if r.ThreadID == "" {
				r.ThreadID = threadID
			}
			if _, ok := a.ds.Threads[r.ThreadID]; !ok {
				logging.Warn("Skipping agent run %s: thread %s was not fetched", r.ID, r.ThreadID)
				continue
			}
			if seen[r.ID] {
				continue
			}
			seen[r.ID] = true
			runs = append(runs, r)
		}
		if len(runs) > 0 {
			sortByCreated(runs, func(r *AgentRun) *string { return r.CreatedAt })
			a.ds.AgentRuns[threadID] = runs
			total += len(runs)
			logging.Debug("  %d agent runs for thread %s", len(runs), threadID)
		}
		a.report.Step()
	}
	a.report.EndPhase(TableAgentRuns, total)
}

func byThread(threadID string) postgrest.Query {
	return postgrest.Query{}.Where(postgrest.Eq("thread_id", threadID)).Order("created_at")
}

// decodeRows decodes rows into T, dropping rows that fail to decode or have
// an empty primary key. A repeated key keeps the last row.
func decodeRows[T any](table string, rows []json.RawMessage, key func(*T) string) []*T {
	out := make([]*T, 0, len(rows))
	index := make(map[string]int, len(rows))
	for i, raw := range rows {
		v := new(T)
		if err := json.Unmarshal(raw, v); err != nil {
			logging.Warn("Skipping %s row %d: %v", table, i, err)
			continue
		}
		k := key(v)
		if k == "" {
			logging.Warn("Skipping %s row %d: missing primary key", table, i)
			continue
		}
		if j, ok := index[k]; ok {
			out[j] = v
			continue
		}
		index[k] = len(out)
		out = append(out, v)
	}
	return out
}

// sortByCreated orders records by created_at when every timestamp parses.
// The remote already orders by created_at; this only guards against a
// server that ignores the order clause.
func sortByCreated[T any](recs []*T, created func(*T) *string) {
	times := make(map[*T]time.Time, len(recs))
	for _, r := range recs {
		s := created(r)
		if s == nil {
			return
		}
		t, err := parseTimestamp(*s)
		if err != nil {
			return
		}
		times[r] = t
	}
	sort.SliceStable(recs, func(i, j int) bool {
		return times[recs[i]].Before(times[recs[j]])
	})
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

func parseTimestamp(s string) (time.Time, error) {
	var err error
	for _, layout := range timestampLayouts {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}
