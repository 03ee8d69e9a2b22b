// Package dataset assembles the demo threads and everything hanging off them
// into one in-memory snapshot.
package dataset

import "encoding/json"

// Remote table names.
const (
	TableThreads   = "threads"
	TableMessages  = "messages"
	TableProjects  = "projects"
	TableAgentRuns = "agent_runs"
)

// Thread is the root of the fetch graph.
type Thread struct {
	ThreadID  string  `json:"thread_id"`
	ProjectID *string `json:"project_id"`
	IsPublic  *bool   `json:"is_public"`
	CreatedAt *string `json:"created_at"`
	UpdatedAt *string `json:"updated_at"`
}

// Message belongs to exactly one thread. Content and Metadata are nil when
// the column was absent and the literal null when it was explicitly null.
type Message struct {
	MessageID    string          `json:"message_id"`
	ThreadID     string          `json:"thread_id"`
	Type         *string         `json:"type"`
	IsLLMMessage *bool           `json:"is_llm_message"`
	Content      json.RawMessage `json:"content"`
	Metadata     json.RawMessage `json:"metadata"`
	CreatedAt    *string         `json:"created_at"`
	UpdatedAt    *string         `json:"updated_at"`
}

// Project is referenced by zero or more threads.
type Project struct {
	ProjectID   string          `json:"project_id"`
	Name        *string         `json:"name"`
	Description *string         `json:"description"`
	Sandbox     json.RawMessage `json:"sandbox"`
	IsPublic    *bool           `json:"is_public"`
	CreatedAt   *string         `json:"created_at"`
	UpdatedAt   *string         `json:"updated_at"`
}

// AgentRun belongs to exactly one thread.
type AgentRun struct {
	ID          string          `json:"id"`
	ThreadID    string          `json:"thread_id"`
	Status      *string         `json:"status"`
	StartedAt   *string         `json:"started_at"`
	CompletedAt *string         `json:"completed_at"`
	Responses   json.RawMessage `json:"responses"`
	Error       *string         `json:"error"`
	CreatedAt   *string         `json:"created_at"`
	UpdatedAt   *string         `json:"updated_at"`
}

// Dataset is the assembled snapshot. Maps are keyed by primary key; the
// ID slices hold emission order.
type Dataset struct {
	ThreadIDs  []string
	Threads    map[string]*Thread
	Messages   map[string][]*Message
	ProjectIDs []string
	Projects   map[string]*Project
	AgentRuns  map[string][]*AgentRun
}

// Counts summarizes a dataset per entity type.
type Counts struct {
	Threads   int `json:"threads" yaml:"threads"`
	Messages  int `json:"messages" yaml:"messages"`
	Projects  int `json:"projects" yaml:"projects"`
	AgentRuns int `json:"agent_runs" yaml:"agent_runs"`
}

// New returns an empty dataset.
func New() *Dataset {
	return &Dataset{
		Threads:   make(map[string]*Thread),
		Messages:  make(map[string][]*Message),
		Projects:  make(map[string]*Project),
		AgentRuns: make(map[string][]*AgentRun),
	}
}

// Counts returns the number of records of each type.
func (d *Dataset) Counts() Counts {
	c := Counts{
		Threads:  len(d.Threads),
		Projects: len(d.Projects),
	}
	for _, msgs := range d.Messages {
		c.Messages += len(msgs)
	}
	for _, runs := range d.AgentRuns {
		c.AgentRuns += len(runs)
	}
	return c
}

// AddThread stores t, keeping the first-seen position when the id repeats.
func (d *Dataset) AddThread(t *Thread) {
	if _, ok := d.Threads[t.ThreadID]; !ok {
		d.ThreadIDs = append(d.ThreadIDs, t.ThreadID)
	}
	d.Threads[t.ThreadID] = t
}

// AddProject stores p, keeping the first-seen position when the id repeats.
func (d *Dataset) AddProject(p *Project) {
	if _, ok := d.Projects[p.ProjectID]; !ok {
		d.ProjectIDs = append(d.ProjectIDs, p.ProjectID)
	}
	d.Projects[p.ProjectID] = p
}
