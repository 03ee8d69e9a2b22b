// Package progress reports the fetch phases of an import.
package progress

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/johndauphine/demo-import/internal/logging"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// Tracker shows a progress bar per fetch phase and logs each phase's
// record count when it ends.
type Tracker struct {
	out        io.Writer
	showBar    bool
	bar        *progressbar.ProgressBar
	phaseStart time.Time
}

// New creates a tracker that draws bars on stderr when it is a terminal.
// Debug logging interleaves per-row lines, so bars are off at that level.
func New() *Tracker {
	return NewWithWriter(os.Stderr, term.IsTerminal(int(os.Stderr.Fd())) && !logging.IsDebug())
}

// NewWithWriter creates a tracker drawing to out; showBar false keeps only
// the log lines.
func NewWithWriter(out io.Writer, showBar bool) *Tracker {
	return &Tracker{
		out:     out,
		showBar: showBar,
	}
}

// StartPhase begins a phase of total fetches.
func (t *Tracker) StartPhase(name string, total int) {
	t.phaseStart = time.Now()
	logging.Info("Fetching %s...", name)
	if !t.showBar || total <= 0 {
		t.bar = nil
		return
	}
	t.bar = progressbar.NewOptions(
		total,
		progressbar.OptionSetWriter(t.out),
		progressbar.OptionSetDescription(fmt.Sprintf("Fetching %s", name)),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionClearOnFinish(),
	)
}

// Step records one finished fetch.
func (t *Tracker) Step() {
	if t.bar != nil {
		_ = t.bar.Add(1)
	}
}

// EndPhase closes the phase and logs how many records it produced.
func (t *Tracker) EndPhase(name string, count int) {
	if t.bar != nil {
		_ = t.bar.Finish()
		t.bar = nil
	}
	logging.Info("  %d %s (%s)", count, name, time.Since(t.phaseStart).Round(time.Millisecond))
}
