package state

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ppiankov/codexrun/internal/task"
)

func intPtr(n int) *int { return &n }

func strPtr(s string) *string { return &s }

func completion(path string, code int) *task.Completion {
	return &task.Completion{
		FilePath:  path,
		Execution: &task.ExecutionResult{Executed: true, Error: strPtr(""), ExitCode: intPtr(code)},
	}
}

func TestTracker_Empty(t *testing.T) {
	tr := Load(filepath.Join(t.TempDir(), "state.json"))
	if tr.Count() != 0 {
		t.Fatalf("expected 0 entries, got %d", tr.Count())
	}
	if e := tr.Get("nonexistent"); e != nil {
		t.Fatal("expected nil for nonexistent task")
	}
}

func TestTracker_MarkCompleted(t *testing.T) {
	tr := Load(filepath.Join(t.TempDir(), "state.json"))
	tr.MarkStarted("task-1", "run-1", "bash")
	tr.MarkCompleted("task-1", completion("/w/generated_code.sh", 3))

	e := tr.Get("task-1")
	if e == nil {
		t.Fatal("expected entry for task-1")
	}
	if e.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", e.Status)
	}
	if e.Language != "bash" || e.RunID != "run-1" {
		t.Fatalf("expected start fields kept, got %+v", e)
	}
	if e.FilePath != "/w/generated_code.sh" {
		t.Fatalf("expected file path, got %s", e.FilePath)
	}
	if !e.Executed || e.ExitCode == nil || *e.ExitCode != 3 {
		t.Fatalf("expected executed with exit 3, got %+v", e)
	}
}

func TestTracker_MarkCompletedWithTimeout(t *testing.T) {
	tr := Load(filepath.Join(t.TempDir(), "state.json"))
	tr.MarkCompleted("task-1", &task.Completion{
		FilePath: "/w/generated_code.py",
		Execution: &task.ExecutionResult{
			Error: strPtr("Code execution timed out"),
			Fault: task.KindExecutionTimeout,
		},
	})

	e := tr.Get("task-1")
	if e.Status != StatusCompleted {
		t.Fatalf("timed out program should still complete the task, got %s", e.Status)
	}
	if e.ErrorKind != "execution_timeout" || e.Error != "Code execution timed out" {
		t.Fatalf("expected timeout recorded, got %+v", e)
	}
	if e.ExitCode != nil {
		t.Fatalf("expected nil exit code, got %d", *e.ExitCode)
	}
}

func TestTracker_MarkFailed(t *testing.T) {
	tr := Load(filepath.Join(t.TempDir(), "state.json"))
	tr.MarkFailed("task-2", &task.Error{Kind: task.KindGeneration, Phase: task.PhaseExecute, Err: errors.New("empty code")})

	e := tr.Get("task-2")
	if e == nil {
		t.Fatal("expected entry for task-2")
	}
	if e.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", e.Status)
	}
	if e.ErrorKind != "generation" {
		t.Fatalf("expected generation kind, got %s", e.ErrorKind)
	}
	if e.Error != "execute: empty code" {
		t.Fatalf("expected 'execute: empty code', got %s", e.Error)
	}
}

func TestTracker_MarkStarted(t *testing.T) {
	tr := Load(filepath.Join(t.TempDir(), "state.json"))
	tr.MarkStarted("task-3", "run-abc", "python")

	e := tr.Get("task-3")
	if e == nil {
		t.Fatal("expected entry for task-3")
	}
	if e.Status != StatusInProgress {
		t.Fatalf("expected in_progress, got %s", e.Status)
	}
	if e.RunID != "run-abc" {
		t.Fatalf("expected run-abc, got %s", e.RunID)
	}
}

func TestTracker_RecoverInterrupted(t *testing.T) {
	tr := Load(filepath.Join(t.TempDir(), "state.json"))
	tr.MarkStarted("task-1", "", "python")
	tr.MarkStarted("task-2", "", "python")
	tr.MarkCompleted("task-3", completion("/x", 0))

	count := tr.RecoverInterrupted()
	if count != 2 {
		t.Fatalf("expected 2 recovered, got %d", count)
	}

	e1 := tr.Get("task-1")
	if e1.Status != StatusInterrupted {
		t.Fatalf("expected interrupted, got %s", e1.Status)
	}

	// completed should not be affected
	e3 := tr.Get("task-3")
	if e3.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", e3.Status)
	}
}

func TestTracker_PersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	tr := Load(path)
	tr.MarkCompleted("task-1", completion("/w/a.py", 0))
	tr.MarkFailed("task-2", &task.Error{Kind: task.KindSetup, Phase: task.PhasePreExecute, Err: errors.New("mkdir denied")})

	// reload from disk
	tr2 := Load(path)
	if tr2.Count() != 2 {
		t.Fatalf("expected 2 entries after reload, got %d", tr2.Count())
	}

	e1 := tr2.Get("task-1")
	if e1.Status != StatusCompleted || e1.FilePath != "/w/a.py" || e1.ExitCode == nil || *e1.ExitCode != 0 {
		t.Fatalf("unexpected entry: %+v", e1)
	}

	e2 := tr2.Get("task-2")
	if e2.Status != StatusFailed || e2.ErrorKind != "setup" {
		t.Fatalf("unexpected entry: %+v", e2)
	}
}

func TestTracker_MissingFile(t *testing.T) {
	tr := Load(filepath.Join(t.TempDir(), "nonexistent", "state.json"))
	if tr.Count() != 0 {
		t.Fatal("missing file should return empty tracker")
	}
}

func TestTracker_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	_ = os.WriteFile(path, []byte("not json"), 0o644)

	tr := Load(path)
	if tr.Count() != 0 {
		t.Fatal("corrupt file should return empty tracker")
	}
}

func TestTracker_Reset(t *testing.T) {
	tr := Load(filepath.Join(t.TempDir(), "state.json"))
	tr.MarkCompleted("task-1", nil)
	tr.MarkCompleted("task-2", nil)

	tr.Reset("task-1")
	if tr.Get("task-1") != nil {
		t.Fatal("task-1 should be removed after reset")
	}
	if tr.Get("task-2") == nil {
		t.Fatal("task-2 should still exist")
	}
}

func TestTracker_Clear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	tr := Load(path)
	tr.MarkCompleted("task-1", nil)
	tr.Clear()

	if tr.Count() != 0 {
		t.Fatal("expected 0 entries after clear")
	}

	// file should be removed
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("state file should be deleted after clear")
	}
}

func TestTracker_AtomicWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	tr := Load(path)
	tr.MarkCompleted("task-1", nil)

	// verify no .tmp file left behind
	tmp := path + ".tmp"
	if _, err := os.Stat(tmp); !os.IsNotExist(err) {
		t.Fatal("tmp file should not persist after successful write")
	}

	tr2 := Load(path)
	if tr2.Count() != 1 {
		t.Fatalf("expected 1 entry, got %d", tr2.Count())
	}
}

func TestTracker_ConcurrentAccess(t *testing.T) {
	tr := Load(filepath.Join(t.TempDir(), "state.json"))
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := "task-" + string(rune('A'+n%26))
			tr.MarkStarted(id, "run", "python")
			tr.Get(id)
			tr.MarkCompleted(id, completion("/x", 0))
		}(i)
	}
	wg.Wait()

	if tr.Count() == 0 {
		t.Fatal("expected entries after concurrent writes")
	}
}

func TestTracker_SnapshotIsolation(t *testing.T) {
	tr := Load(filepath.Join(t.TempDir(), "state.json"))
	tr.MarkCompleted("task-1", nil)

	e := tr.Get("task-1")
	e.Status = "modified"

	e2 := tr.Get("task-1")
	if e2.Status != StatusCompleted {
		t.Fatal("modifying copy should not affect tracker")
	}
}
