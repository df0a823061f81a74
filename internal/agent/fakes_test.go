package agent

import (
	"context"
	"errors"
	"sync"

	"github.com/ppiankov/codexrun/internal/task"
)

// fakeRunner records calls and returns a preset result.
type fakeRunner struct {
	mu     sync.Mutex
	calls  []runCall
	result *task.ExecutionResult
}

type runCall struct {
	Command string
	Path    string
}

func (f *fakeRunner) Run(_ context.Context, command, path string) *task.ExecutionResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, runCall{Command: command, Path: path})
	if f.result != nil {
		return f.result
	}
	code := 0
	empty := ""
	return &task.ExecutionResult{Executed: true, Output: "ok\n", Error: &empty, ExitCode: &code}
}

func (f *fakeRunner) Calls() []runCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]runCall(nil), f.calls...)
}

// fakeDownloader records downloads and returns Err.
type fakeDownloader struct {
	calls []string
	Err   error
}

func (f *fakeDownloader) Download(_ context.Context, repoURL, branch, dir string) error {
	f.calls = append(f.calls, repoURL+"@"+branch+"->"+dir)
	return f.Err
}

// failingSink always fails to write.
type failingSink struct{}

func (failingSink) Write(string, string, string) (string, error) {
	return "", errors.New("read-only file system")
}
