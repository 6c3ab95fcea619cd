package filetransfer

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// LastRun is the published outcome of the most recent completed cycle.
type LastRun struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Lines      []string
}

// Text renders the run-log as newline terminated lines.
func (r LastRun) Text() string {
	if len(r.Lines) == 0 {
		return ""
	}

	return strings.Join(r.Lines, "\n") + "\n"
}

// RunLog accumulates one line per processed request during a cycle and publishes
// the result when the cycle ends. It is safe for concurrent use.
type RunLog struct {
	mu        sync.RWMutex
	runID     string
	startedAt time.Time
	lines     []string
	last      LastRun
}

// NewRunLog returns an empty run-log.
func NewRunLog() *RunLog {
	return &RunLog{}
}

// Begin discards the working buffer and starts a new run.
func (l *RunLog) Begin(runID string, startedAt time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.runID = runID
	l.startedAt = startedAt
	l.lines = nil
}

// Append adds a line to the working buffer.
func (l *RunLog) Append(line string) {
	l.mu.Lock()
	l.lines = append(l.lines, line)
	l.mu.Unlock()
}

// Appendf formats and appends a line.
func (l *RunLog) Appendf(format string, args ...any) {
	l.Append(fmt.Sprintf(format, args...))
}

// Publish makes the working buffer the last completed run and returns it.
func (l *RunLog) Publish(finishedAt time.Time) LastRun {
	l.mu.Lock()
	defer l.mu.Unlock()

	lines := make([]string, len(l.lines))
	copy(lines, l.lines)
	l.last = LastRun{
		RunID:      l.runID,
		StartedAt:  l.startedAt,
		FinishedAt: finishedAt,
		Lines:      lines,
	}

	return l.last
}

// Last returns a copy of the last published run.
func (l *RunLog) Last() LastRun {
	l.mu.RLock()
	defer l.mu.RUnlock()

	last := l.last
	last.Lines = append([]string(nil), l.last.Lines...)

	return last
}

// Current returns a copy of the lines appended since the last Begin.
func (l *RunLog) Current() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return append([]string(nil), l.lines...)
}
