package watch

import (
	"os"
	"path/filepath"
)

// Dirs holds the directory layout for watch state.
type Dirs struct {
	Inbox      string // task files are dropped here
	Processing string // files whose tasks are running
	Completed  string // every task in the file succeeded
	Failed     string // at least one task failed, or the file was invalid
}

// NewDirs creates a Dirs from the inbox and state directories.
func NewDirs(inbox, stateDir string) Dirs {
	return Dirs{
		Inbox:      inbox,
		Processing: filepath.Join(stateDir, "processing"),
		Completed:  filepath.Join(stateDir, "completed"),
		Failed:     filepath.Join(stateDir, "failed"),
	}
}

// EnsureDirs creates all watch directories.
func EnsureDirs(d Dirs) error {
	for _, dir := range []string{d.Inbox, d.Processing, d.Completed, d.Failed} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}
