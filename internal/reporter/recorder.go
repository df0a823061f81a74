package reporter

import (
	"sync"
	"time"

	"github.com/ppiankov/codexrun/internal/task"
)

// Recorder keeps checkpoints in memory.
type Recorder struct {
	mu     sync.Mutex
	events []task.ProgressEvent
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Report implements Sink.
func (r *Recorder) Report(percent int, phase, message string, payload map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, task.ProgressEvent{
		Percent: percent,
		Phase:   phase,
		Message: message,
		Payload: payload,
		Time:    time.Now(),
	})
}

// Events returns a copy of the recorded checkpoints.
func (r *Recorder) Events() []task.ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]task.ProgressEvent, len(r.events))
	copy(out, r.events)
	return out
}

// Percents returns the reported percentages in order.
func (r *Recorder) Percents() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Percent
	}
	return out
}

// Multi fans a checkpoint out to several sinks. Nil entries are skipped.
type Multi []Sink

// Report implements Sink.
func (m Multi) Report(percent int, phase, message string, payload map[string]any) {
	for _, s := range m {
		if s != nil {
			s.Report(percent, phase, message, payload)
		}
	}
}
