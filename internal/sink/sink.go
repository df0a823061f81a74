// Package sink persists generated code to disk.
package sink

import (
	"fmt"
	"os"
	"path/filepath"
)

// Sink writes content to dir/filename and returns the resulting path.
type Sink interface {
	Write(dir, filename, content string) (string, error)
}

// FileSink writes files atomically (tmp → rename), creating parent
// directories as needed. Existing files are replaced.
type FileSink struct {
	DirMode  os.FileMode
	FileMode os.FileMode
}

// NewFileSink creates a FileSink with 0755 directories and 0644 files.
func NewFileSink() *FileSink {
	return &FileSink{DirMode: 0o755, FileMode: 0o644}
}

// Write stores content and returns the absolute path of the file.
func (s *FileSink) Write(dir, filename, content string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) {
		return "", fmt.Errorf("invalid file name %q", filename)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve dir: %w", err)
	}
	if err := os.MkdirAll(abs, s.DirMode); err != nil {
		return "", fmt.Errorf("create dir: %w", err)
	}

	path := filepath.Join(abs, filename)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), s.FileMode); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("rename file: %w", err)
	}
	return path, nil
}
