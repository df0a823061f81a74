package state

import (
	"log/slog"

	"github.com/ppiankov/codexrun/internal/task"
)

// SkippedTask records why a task was filtered out by state tracking.
type SkippedTask struct {
	ID     string
	Reason string
}

// FilterTasks drops tasks that already finished in an earlier run.
// Completed tasks are always skipped. Failed and interrupted tasks are
// skipped unless retry is true.
func FilterTasks(tasks []task.Config, tracker *Tracker, retry bool) ([]task.Config, []SkippedTask) {
	var filtered []task.Config
	var skipped []SkippedTask

	for _, t := range tasks {
		reason := skipReason(tracker.Get(t.ID), retry)
		if reason == "" {
			filtered = append(filtered, t)
			continue
		}
		skipped = append(skipped, SkippedTask{ID: t.ID, Reason: reason})
		slog.Info("skipping task", "task", t.ID, "reason", reason)
	}

	return filtered, skipped
}

func skipReason(e *TaskEntry, retry bool) string {
	if e == nil {
		return ""
	}
	switch e.Status {
	case StatusCompleted:
		return "completed in previous run"
	case StatusFailed:
		if !retry {
			return "failed (use --retry to re-execute)"
		}
	case StatusInterrupted:
		if !retry {
			return "interrupted (use --retry to re-execute)"
		}
	}
	return ""
}
