package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	EventStart = "start"
	EventDone  = "done"
	EventError = "error"

	phasePipeline = "pipeline"

	runFileLayout = "20060102_150405"
)

// Changelog is the append-only JSONL event stream of one pipeline run. Every
// line carries run_id, ts, phase and event plus any extra fields.
type Changelog struct {
	runID    string
	file     *os.File
	path     string
	out      *logrus.Logger
	now      func() time.Time
	runStart time.Time

	mu          sync.Mutex
	phaseStarts map[string]time.Time
}

// OpenChangelog creates logs/run_YYYYMMDD_HHMMSS_<runID[:8]>.jsonl.
func OpenChangelog(logsDir, runID string, now func() time.Time) (*Changelog, error) {
	if now == nil {
		now = time.Now
	}
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create logs dir: %w", err)
	}

	short := runID
	if len(short) > 8 {
		short = short[:8]
	}
	start := now()
	path := filepath.Join(logsDir, fmt.Sprintf("run_%s_%s.jsonl", start.Format(runFileLayout), short))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open changelog: %w", err)
	}

	out := logrus.New()
	out.SetOutput(f)
	out.SetLevel(logrus.InfoLevel)
	out.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat:   time.RFC3339Nano,
		DisableHTMLEscape: true,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime: "ts",
			logrus.FieldKeyMsg:  "event",
		},
	})

	return &Changelog{
		runID:       runID,
		file:        f,
		path:        path,
		out:         out,
		now:         now,
		runStart:    start,
		phaseStarts: make(map[string]time.Time),
	}, nil
}

func (c *Changelog) Path() string { return c.path }

func (c *Changelog) Close() error { return c.file.Close() }

// Log appends one event.
func (c *Changelog) Log(phase, event string, fields logrus.Fields) {
	entry := c.out.WithTime(c.now()).WithFields(logrus.Fields{
		"run_id": c.runID,
		"phase":  phase,
	})
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Info(event)
}

// PhaseStart records the phase start time and appends a start event.
func (c *Changelog) PhaseStart(phase string, fields logrus.Fields) {
	c.mu.Lock()
	c.phaseStarts[phase] = c.now()
	c.mu.Unlock()
	c.Log(phase, EventStart, fields)
}

// PhaseDone appends a done event with the time elapsed since PhaseStart.
func (c *Changelog) PhaseDone(phase string, fields logrus.Fields) {
	c.Log(phase, EventDone, c.withDuration(phase, fields))
}

func (c *Changelog) PhaseError(phase string, err error, fields logrus.Fields) {
	fields = c.withDuration(phase, fields)
	fields["error"] = err.Error()
	c.Log(phase, EventError, fields)
}

// PipelineStart and PipelineDone bracket the whole run.
func (c *Changelog) PipelineStart(fields logrus.Fields) {
	c.Log(phasePipeline, EventStart, fields)
}

func (c *Changelog) PipelineDone(fields logrus.Fields) {
	out := logrus.Fields{"total_ms": c.now().Sub(c.runStart).Milliseconds()}
	for k, v := range fields {
		out[k] = v
	}
	c.Log(phasePipeline, EventDone, out)
}

func (c *Changelog) PipelineError(err error) {
	c.Log(phasePipeline, EventError, logrus.Fields{"error": err.Error()})
}

func (c *Changelog) withDuration(phase string, fields logrus.Fields) logrus.Fields {
	out := make(logrus.Fields, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}

	c.mu.Lock()
	start, ok := c.phaseStarts[phase]
	delete(c.phaseStarts, phase)
	c.mu.Unlock()

	if ok {
		out["duration_ms"] = c.now().Sub(start).Milliseconds()
	}
	return out
}
