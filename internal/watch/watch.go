// Package watch runs task files dropped into an inbox directory.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ppiankov/codexrun/internal/config"
	"github.com/ppiankov/codexrun/internal/task"
)

const (
	debounceDefault = 200 * time.Millisecond
	pollDefault     = 5 * time.Second
)

// Config holds watch configuration.
type Config struct {
	InboxDir     string
	StateDir     string
	PollMode     bool          // use polling instead of fsnotify
	PollInterval time.Duration // default 5s
	ExecFn       ExecFunc
	Logger       *slog.Logger
}

// Watcher picks up task files from the inbox and runs them one at a time.
type Watcher struct {
	cfg       Config
	dirs      Dirs
	processor *Processor
	logger    *slog.Logger

	// serializes Process calls from debounce timers
	mu sync.Mutex
}

// New creates a watcher with validated configuration.
func New(cfg Config) (*Watcher, error) {
	if cfg.InboxDir == "" {
		return nil, fmt.Errorf("inbox directory is required")
	}
	if cfg.StateDir == "" {
		return nil, fmt.Errorf("state directory is required")
	}
	if cfg.ExecFn == nil {
		return nil, fmt.Errorf("execution function is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = pollDefault
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	dirs := NewDirs(cfg.InboxDir, cfg.StateDir)
	return &Watcher{
		cfg:       cfg,
		dirs:      dirs,
		processor: NewProcessor(dirs, cfg.ExecFn, cfg.Logger),
		logger:    cfg.Logger,
	}, nil
}

// Dirs returns the directory layout in use.
func (w *Watcher) Dirs() Dirs { return w.dirs }

// Run starts watching. Blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if err := EnsureDirs(w.dirs); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	pidPath := filepath.Join(w.cfg.StateDir, "watch.pid")
	if err := acquirePIDLock(pidPath); err != nil {
		return fmt.Errorf("acquire PID lock: %w", err)
	}
	defer func() { _ = os.Remove(pidPath) }()

	w.logger.Info("watch starting", "inbox", w.cfg.InboxDir, "state", w.cfg.StateDir)

	if err := w.recoverOrphans(); err != nil {
		return fmt.Errorf("recover orphans: %w", err)
	}

	if err := w.scanExisting(ctx); err != nil {
		return fmt.Errorf("scan existing: %w", err)
	}

	if w.cfg.PollMode {
		return w.runPollWatcher(ctx, nil)
	}
	return w.runFSWatcher(ctx)
}

func (w *Watcher) process(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	if _, err := os.Stat(path); err != nil {
		return // already handled
	}
	if err := w.processor.Process(ctx, path); err != nil {
		w.logger.Error("process task file", "file", filepath.Base(path), "error", err)
	}
}

// scanExisting processes task files already in the inbox.
func (w *Watcher) scanExisting(ctx context.Context) error {
	entries, err := os.ReadDir(w.cfg.InboxDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !isTaskFile(e.Name()) {
			continue
		}
		if ctx.Err() != nil {
			return nil
		}
		w.process(ctx, filepath.Join(w.cfg.InboxDir, e.Name()))
	}
	return nil
}

// runFSWatcher watches the inbox using fsnotify. If the watcher cannot be
// created it falls back to polling.
func (w *Watcher) runFSWatcher(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Warn("fsnotify unavailable, polling", "error", err)
		return w.runPollWatcher(ctx, nil)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(w.cfg.InboxDir); err != nil {
		w.logger.Warn("cannot watch inbox, polling", "error", err)
		return w.runPollWatcher(ctx, nil)
	}

	w.logger.Info("watching for task files", "mode", "fsnotify", "dir", w.cfg.InboxDir)

	// files dropped between the initial scan and Add
	if err := w.scanExisting(ctx); err != nil {
		w.logger.Error("rescan inbox", "error", err)
	}

	var mu sync.Mutex
	pending := make(map[string]*time.Timer)

	for {
		select {
		case <-ctx.Done():
			mu.Lock()
			for _, t := range pending {
				t.Stop()
			}
			mu.Unlock()
			w.logger.Info("watch stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// editors and atomic writers often rename into place
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !isTaskFile(filepath.Base(event.Name)) {
				continue
			}

			path := event.Name
			mu.Lock()
			if t, exists := pending[path]; exists {
				t.Stop()
			}
			pending[path] = time.AfterFunc(debounceDefault, func() {
				w.process(ctx, path)
				mu.Lock()
				delete(pending, path)
				mu.Unlock()
			})
			mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

// runPollWatcher watches the inbox by listing it on every tick. tick, when
// non-nil, replaces the ticker channel.
func (w *Watcher) runPollWatcher(ctx context.Context, tick <-chan time.Time) error {
	w.logger.Info("watching for task files", "mode", "poll", "dir", w.cfg.InboxDir, "interval", w.cfg.PollInterval)

	if tick == nil {
		ticker := time.NewTicker(w.cfg.PollInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watch stopped")
			return nil
		case <-tick:
			// processed files leave the inbox, so no seen set is needed
			if err := w.scanExisting(ctx); err != nil {
				w.logger.Error("poll inbox", "error", err)
			}
		}
	}
}

// recoverOrphans turns files left in processing/ into failed results.
func (w *Watcher) recoverOrphans() error {
	entries, err := os.ReadDir(w.dirs.Processing)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, e := range entries {
		if e.IsDir() || !isTaskFile(e.Name()) {
			continue
		}
		w.logger.Warn("recovering orphaned task file", "file", e.Name())

		now := time.Now()
		fr := FileResult{
			File:      e.Name(),
			Status:    task.StatusFailed,
			Error:     "interrupted: task file was processing when watch stopped",
			StartedAt: now,
			EndedAt:   now,
		}
		data, _ := json.MarshalIndent(fr, "", "  ")
		path := filepath.Join(w.dirs.Failed, stemOf(e.Name())+".json")
		_ = os.WriteFile(path, data, 0o600)

		_ = os.Remove(filepath.Join(w.dirs.Processing, e.Name()))
	}
	return nil
}

// isTaskFile returns true for .json/.yml/.yaml files that are not partial writes.
func isTaskFile(name string) bool {
	return config.IsTaskFile(name) && !strings.HasPrefix(name, ".")
}

// acquirePIDLock writes the current PID and checks for stale locks.
func acquirePIDLock(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	if data, err := os.ReadFile(path); err == nil {
		pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
		if err == nil {
			if process, err := os.FindProcess(pid); err == nil {
				if err := process.Signal(syscall.Signal(0)); err == nil {
					return fmt.Errorf("another watch is running (PID %d)", pid)
				}
			}
		}
		_ = os.Remove(path)
	}

	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o600)
}
