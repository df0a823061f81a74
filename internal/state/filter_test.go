package state

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/ppiankov/codexrun/internal/task"
)

var errTests = &task.Error{Kind: task.KindPersistence, Phase: task.PhaseExecute, Err: errors.New("disk full")}

func TestFilterTasks_NoState(t *testing.T) {
	tr := Load(filepath.Join(t.TempDir(), "state.json"))
	tasks := []task.Config{{ID: "t1"}, {ID: "t2"}}

	filtered, skipped := FilterTasks(tasks, tr, false)
	if len(filtered) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(filtered))
	}
	if len(skipped) != 0 {
		t.Fatalf("expected 0 skipped, got %d", len(skipped))
	}
}

func TestFilterTasks_CompletedSkipped(t *testing.T) {
	tr := Load(filepath.Join(t.TempDir(), "state.json"))
	tr.MarkCompleted("t1", nil)

	tasks := []task.Config{{ID: "t1"}, {ID: "t2"}}
	filtered, skipped := FilterTasks(tasks, tr, false)
	if len(filtered) != 1 {
		t.Fatalf("expected 1 task, got %d", len(filtered))
	}
	if filtered[0].ID != "t2" {
		t.Fatalf("expected t2, got %s", filtered[0].ID)
	}
	if len(skipped) != 1 || skipped[0].ID != "t1" {
		t.Fatalf("expected t1 skipped, got %v", skipped)
	}
}

func TestFilterTasks_CompletedAlwaysSkipped(t *testing.T) {
	tr := Load(filepath.Join(t.TempDir(), "state.json"))
	tr.MarkCompleted("t1", nil)

	// even with --retry, completed tasks are skipped
	filtered, skipped := FilterTasks([]task.Config{{ID: "t1"}}, tr, true)
	if len(filtered) != 0 {
		t.Fatal("completed tasks should always be skipped, even with retry")
	}
	if len(skipped) != 1 {
		t.Fatal("expected 1 skipped")
	}
}

func TestFilterTasks_FailedSkippedWithoutRetry(t *testing.T) {
	tr := Load(filepath.Join(t.TempDir(), "state.json"))
	tr.MarkFailed("t1", errTests)

	filtered, skipped := FilterTasks([]task.Config{{ID: "t1"}, {ID: "t2"}}, tr, false)
	if len(filtered) != 1 || filtered[0].ID != "t2" {
		t.Fatalf("expected only t2, got %v", filtered)
	}
	if len(skipped) != 1 {
		t.Fatal("expected t1 skipped")
	}
}

func TestFilterTasks_FailedRetried(t *testing.T) {
	tr := Load(filepath.Join(t.TempDir(), "state.json"))
	tr.MarkFailed("t1", errTests)

	filtered, skipped := FilterTasks([]task.Config{{ID: "t1"}, {ID: "t2"}}, tr, true)
	if len(filtered) != 2 {
		t.Fatalf("expected 2 tasks with retry, got %d", len(filtered))
	}
	if len(skipped) != 0 {
		t.Fatal("expected 0 skipped with retry")
	}
}

func TestFilterTasks_InterruptedRetried(t *testing.T) {
	tr := Load(filepath.Join(t.TempDir(), "state.json"))
	tr.MarkStarted("t1", "", "python")
	tr.RecoverInterrupted()

	tasks := []task.Config{{ID: "t1"}}

	// without retry: skipped
	filtered, skipped := FilterTasks(tasks, tr, false)
	if len(filtered) != 0 {
		t.Fatal("interrupted should be skipped without retry")
	}
	if len(skipped) != 1 {
		t.Fatal("expected 1 skipped")
	}

	// with retry: included
	filtered, skipped = FilterTasks(tasks, tr, true)
	if len(filtered) != 1 {
		t.Fatal("interrupted should be included with retry")
	}
	if len(skipped) != 0 {
		t.Fatal("expected 0 skipped with retry")
	}
}

func TestFilterTasks_InProgressNotSkipped(t *testing.T) {
	tr := Load(filepath.Join(t.TempDir(), "state.json"))
	tr.MarkStarted("t1", "", "python")

	filtered, _ := FilterTasks([]task.Config{{ID: "t1"}}, tr, false)
	if len(filtered) != 1 {
		t.Fatal("in_progress task should not be filtered")
	}
}

func TestFilterTasks_KeepsOrder(t *testing.T) {
	tr := Load(filepath.Join(t.TempDir(), "state.json"))
	tr.MarkCompleted("b", nil)

	filtered, _ := FilterTasks([]task.Config{{ID: "c"}, {ID: "b"}, {ID: "a"}}, tr, false)
	if len(filtered) != 2 || filtered[0].ID != "c" || filtered[1].ID != "a" {
		t.Fatalf("expected [c a], got %v", filtered)
	}
}
