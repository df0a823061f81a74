package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/codexrun/internal/config"
	"github.com/ppiankov/codexrun/internal/task"
)

// FileResult records what happened to one task file.
type FileResult struct {
	File      string       `json:"file"`
	Status    task.Status  `json:"status"`
	Error     string       `json:"error,omitempty"`
	Tasks     []TaskResult `json:"tasks,omitempty"`
	StartedAt time.Time    `json:"started_at"`
	EndedAt   time.Time    `json:"ended_at"`
}

// TaskResult is the per-task summary inside a FileResult.
type TaskResult struct {
	TaskID    string        `json:"task_id"`
	RunID     string        `json:"run_id,omitempty"`
	Status    task.Status   `json:"status"`
	ErrorKind string        `json:"error_kind,omitempty"`
	Error     string        `json:"error,omitempty"`
	FilePath  string        `json:"code_file_path,omitempty"`
	ExitCode  *int          `json:"exit_code,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
}

// ExecFunc runs one task to completion. It is injected by the cli package,
// which owns agent construction.
type ExecFunc func(ctx context.Context, cfg task.Config) *task.RunReport

// Processor handles the lifecycle of a single task file.
type Processor struct {
	dirs   Dirs
	execFn ExecFunc
	logger *slog.Logger
}

// NewProcessor creates a task file processor.
func NewProcessor(dirs Dirs, execFn ExecFunc, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{dirs: dirs, execFn: execFn, logger: logger}
}

// Process moves a task file to processing/, runs its tasks in order and
// writes a FileResult to completed/ or failed/.
func (p *Processor) Process(ctx context.Context, path string) error {
	name := filepath.Base(path)
	stem := stemOf(name)

	p.logger.Info("processing task file", "file", name)

	procPath := filepath.Join(p.dirs.Processing, name)
	if err := moveFile(path, procPath); err != nil {
		return fmt.Errorf("move to processing: %w", err)
	}
	defer func() { _ = os.Remove(procPath) }()

	start := time.Now()
	tasks, err := config.Load(procPath)
	if err != nil {
		p.logger.Error("invalid task file", "file", name, "error", err)
		return p.writeResult(p.dirs.Failed, stem, FileResult{
			File:      name,
			Status:    task.StatusFailed,
			Error:     fmt.Sprintf("invalid task file: %v", err),
			StartedAt: start,
			EndedAt:   time.Now(),
		})
	}

	fr := FileResult{File: name, Status: task.StatusSuccess, StartedAt: start}
	for _, cfg := range tasks {
		if ctx.Err() != nil {
			break
		}
		tr := summarize(cfg.ID, p.execFn(ctx, cfg))
		if tr.Status != task.StatusSuccess {
			fr.Status = task.StatusFailed
		}
		fr.Tasks = append(fr.Tasks, tr)
	}
	if len(fr.Tasks) < len(tasks) {
		fr.Status = task.StatusFailed
		fr.Error = "interrupted: watch stopped before all tasks ran"
	}
	fr.EndedAt = time.Now()

	dir := p.dirs.Completed
	if fr.Status == task.StatusSuccess {
		p.logger.Info("task file completed", "file", name, "tasks", len(fr.Tasks), "duration", fr.EndedAt.Sub(start).Round(time.Millisecond))
	} else {
		dir = p.dirs.Failed
		p.logger.Warn("task file failed", "file", name, "tasks", len(fr.Tasks))
	}
	return p.writeResult(dir, stem, fr)
}

func summarize(id string, r *task.RunReport) TaskResult {
	if r == nil {
		return TaskResult{TaskID: id, Status: task.StatusFailed, Error: "no report"}
	}
	tr := TaskResult{TaskID: id, RunID: r.RunID, Status: r.Status, Duration: r.Duration}
	if r.Error != nil {
		tr.ErrorKind = r.Error.Kind.String()
		tr.Error = r.Error.Error()
	}
	if c := r.Result; c != nil {
		tr.FilePath = c.FilePath
		if c.Execution != nil {
			tr.ExitCode = c.Execution.ExitCode
		}
	}
	return tr
}

// writeResult writes a FileResult to the target directory.
func (p *Processor) writeResult(dir, stem string, fr FileResult) error {
	data, err := json.MarshalIndent(fr, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	path := filepath.Join(dir, stem+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename result: %w", err)
	}
	return nil
}

func stemOf(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// moveFile moves a file from src to dst. Falls back to copy+remove
// when rename fails (cross-device, bind mounts).
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dst, data, 0o600); err != nil {
		return err
	}
	return os.Remove(src)
}
