package runner

import (
	"context"

	"github.com/ppiankov/codexrun/internal/task"
)

// ProcessRunner executes "command path" as a child process and reports
// what happened. It never returns nil.
type ProcessRunner interface {
	Run(ctx context.Context, command, path string) *task.ExecutionResult
}
