package progress

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/johndauphine/demo-import/internal/logging"
)

// Update is one JSON progress line for automation.
type Update struct {
	Timestamp string `json:"timestamp"`
	Phase     string `json:"phase"`
	Event     string `json:"event"` // start, step, end
	Done      int    `json:"done"`
	Total     int    `json:"total"`
	Records   int    `json:"records,omitempty"`
}

// JSONReporter writes phase progress as JSON lines (typically to stderr).
// Step updates are throttled; start and end are always written.
type JSONReporter struct {
	writer     io.Writer
	mu         sync.Mutex
	interval   time.Duration
	lastReport time.Time
	phase      string
	done       int
	total      int
}

// NewJSONReporter creates a reporter writing to writer (stderr when nil).
// interval is the minimum gap between step updates.
func NewJSONReporter(writer io.Writer, interval time.Duration) *JSONReporter {
	if writer == nil {
		writer = os.Stderr
	}
	return &JSONReporter{
		writer:   writer,
		interval: interval,
	}
}

// StartPhase emits a start event.
func (r *JSONReporter) StartPhase(name string, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phase, r.done, r.total = name, 0, total
	r.emit(Update{Phase: name, Event: "start", Total: total})
}

// Step emits a throttled step event.
func (r *JSONReporter) Step() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done++
	if r.interval > 0 && time.Since(r.lastReport) < r.interval {
		return
	}
	r.emit(Update{Phase: r.phase, Event: "step", Done: r.done, Total: r.total})
}

// EndPhase emits an end event with the phase's record count.
func (r *JSONReporter) EndPhase(name string, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emit(Update{Phase: name, Event: "end", Done: r.done, Total: r.total, Records: count})
}

func (r *JSONReporter) emit(u Update) {
	now := time.Now()
	u.Timestamp = now.Format(time.RFC3339)
	data, err := json.Marshal(u)
	if err != nil {
		logging.Warn("Failed to marshal progress update: %v", err)
		return
	}
	fmt.Fprintln(r.writer, string(data))
	r.lastReport = now
}
