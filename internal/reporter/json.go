package reporter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ppiankov/codexrun/internal/task"
)

// WriteJSONReport writes the run report as JSON to the given path,
// replacing any previous report atomically.
func WriteJSONReport(report *task.RunReport, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename report: %w", err)
	}

	return nil
}

// JSONLReporter appends every checkpoint to a newline-delimited JSON file.
// Write errors are logged, never returned.
type JSONLReporter struct {
	mu  sync.Mutex
	f   *os.File
	enc *json.Encoder
	now func() time.Time
}

// NewJSONLReporter opens (and truncates) path for writing events.
func NewJSONLReporter(path string) (*JSONLReporter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create events dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create events file: %w", err)
	}
	return &JSONLReporter{f: f, enc: json.NewEncoder(f), now: time.Now}, nil
}

// Report implements Sink.
func (r *JSONLReporter) Report(percent int, phase, message string, payload map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev := task.ProgressEvent{Percent: percent, Phase: phase, Message: message, Payload: payload, Time: r.now()}
	if err := r.enc.Encode(ev); err != nil {
		slog.Warn("cannot write progress event", "path", r.f.Name(), "error", err)
	}
}

// Close closes the events file.
func (r *JSONLReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.f.Close()
}
