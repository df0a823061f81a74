// Package history keeps a SQLite log of every task run.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ppiankov/codexrun/internal/task"
)

const driverName = "sqlite"

// timeLayout is fixed width so started_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// DefaultPath returns the default history database path.
func DefaultPath() string {
	return filepath.Join(".codexrun", "history.db")
}

// Entry is one recorded run.
type Entry struct {
	RunID     string
	TaskID    string
	Language  string
	Status    task.Status
	ErrorKind string
	Error     string
	FilePath  string
	Executed  bool
	ExitCode  *int
	Duration  time.Duration
	StartedAt time.Time
}

// FromReport builds an entry from a finished run report.
func FromReport(r *task.RunReport) Entry {
	e := Entry{
		RunID:     r.RunID,
		TaskID:    r.TaskID,
		Language:  r.Language,
		Status:    r.Status,
		Duration:  r.Duration,
		StartedAt: r.StartedAt,
	}
	if r.Error != nil {
		e.ErrorKind = r.Error.Kind.String()
		e.Error = r.Error.Error()
	}
	if c := r.Result; c != nil {
		e.FilePath = c.FilePath
		if x := c.Execution; x != nil {
			e.Executed = x.Executed
			e.ExitCode = x.ExitCode
			if x.Fault != task.KindNone {
				e.ErrorKind = x.Fault.String()
				e.Error = x.ErrorText()
			}
		}
	}
	return e
}

// Store persists run entries in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the history database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("history path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	// single writer; the CLI never records concurrently
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `PRAGMA journal_mode=WAL;`); err != nil {
		return fmt.Errorf("history pragma: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	task_id TEXT NOT NULL,
	language TEXT NOT NULL,
	status TEXT NOT NULL,
	error_kind TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT '',
	file_path TEXT NOT NULL DEFAULT '',
	executed INTEGER NOT NULL DEFAULT 0,
	exit_code INTEGER,
	duration_ms INTEGER NOT NULL,
	started_at TEXT NOT NULL
);`); err != nil {
		return fmt.Errorf("history schema: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS runs_task ON runs(task_id, started_at);`); err != nil {
		return fmt.Errorf("history index: %w", err)
	}
	return nil
}

// Record inserts an entry. An empty RunID is replaced with a fresh UUID,
// which is returned.
func (s *Store) Record(ctx context.Context, e Entry) (string, error) {
	if e.RunID == "" {
		e.RunID = uuid.NewString()
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = time.Now()
	}

	var exit sql.NullInt64
	if e.ExitCode != nil {
		exit = sql.NullInt64{Int64: int64(*e.ExitCode), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO runs (run_id, task_id, language, status, error_kind, error, file_path, executed, exit_code, duration_ms, started_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		e.RunID, e.TaskID, e.Language, e.Status.String(), e.ErrorKind, e.Error,
		e.FilePath, e.Executed, exit, e.Duration.Milliseconds(),
		e.StartedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return "", fmt.Errorf("record run %s: %w", e.RunID, err)
	}
	return e.RunID, nil
}

// List returns the most recent entries first. An empty taskID lists all
// tasks; limit <= 0 means no limit.
func (s *Store) List(ctx context.Context, taskID string, limit int) ([]Entry, error) {
	query := `SELECT run_id, task_id, language, status, error_kind, error, file_path, executed, exit_code, duration_ms, started_at FROM runs`
	var args []any
	if taskID != "" {
		query += ` WHERE task_id = ?`
		args = append(args, taskID)
	}
	query += ` ORDER BY started_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			status  string
			exit    sql.NullInt64
			millis  int64
			started string
		)
		if err := rows.Scan(&e.RunID, &e.TaskID, &e.Language, &status, &e.ErrorKind, &e.Error,
			&e.FilePath, &e.Executed, &exit, &millis, &started); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if err := e.Status.UnmarshalText([]byte(status)); err != nil {
			return nil, err
		}
		if exit.Valid {
			code := int(exit.Int64)
			e.ExitCode = &code
		}
		e.Duration = time.Duration(millis) * time.Millisecond
		if e.StartedAt, err = time.Parse(timeLayout, started); err != nil {
			return nil, fmt.Errorf("parse started_at %q: %w", started, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close releases database resources.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
