package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/ppiankov/codexrun/internal/task"
)

const (
	// DefaultTimeout bounds the wall-clock lifetime of a generated program.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxOutput caps each captured stream.
	DefaultMaxOutput = 1 << 20

	// waitDelay bounds how long Wait blocks on pipes after the child exits
	// or is killed.
	waitDelay = 2 * time.Second

	timeoutMessage = "Code execution timed out"
	truncateMarker = "\n[output truncated]"
)

// Subprocess runs generated files under a hard deadline. The child runs in
// its own process group which is killed when the deadline passes.
type Subprocess struct {
	Timeout   time.Duration
	MaxOutput int
	logger    *slog.Logger
}

// NewSubprocess creates a Subprocess. Zero values select the defaults.
func NewSubprocess(timeout time.Duration, maxOutput int, logger *slog.Logger) *Subprocess {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxOutput <= 0 {
		maxOutput = DefaultMaxOutput
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Subprocess{Timeout: timeout, MaxOutput: maxOutput, logger: logger}
}

// Run executes command with path as its only argument, from path's directory.
func (r *Subprocess) Run(ctx context.Context, command, path string) *task.ExecutionResult {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	stdout := &cappedBuffer{max: r.MaxOutput}
	stderr := &cappedBuffer{max: r.MaxOutput}

	cmd := exec.CommandContext(ctx, command, path)
	cmd.Dir = filepath.Dir(path)
	cmd.Env = ChildEnv()
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay
	setupProcessGroup(cmd)

	r.logger.Debug("spawning generated code", "command", command, "path", path, "timeout", r.Timeout)

	err := cmd.Run()
	// the group may still hold background children of a finished script
	reapProcessGroup(cmd)

	elapsed := time.Since(start)

	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		r.logger.Error("code execution timed out", "path", path, "timeout", r.Timeout)
		return faultResult(task.KindExecutionTimeout, timeoutMessage, elapsed)
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil, errors.As(err, &exitErr), errors.Is(err, exec.ErrWaitDelay):
		code := cmd.ProcessState.ExitCode()
		output, leaked := Redact(stdout.String())
		errText, n := Redact(stderr.String())
		if leaked += n; leaked > 0 {
			r.logger.Warn("credentials redacted from program output", "count", leaked)
		}
		r.logger.Info("code execution completed", "path", path, "exit_code", code, "duration", elapsed.Round(time.Millisecond))
		return &task.ExecutionResult{
			Executed: true,
			Output:   output,
			Error:    &errText,
			ExitCode: &code,
			Duration: elapsed,
		}
	default:
		msg := fmt.Sprintf("Code execution failed: %v", err)
		r.logger.Error("code execution failed", "path", path, "error", err)
		return faultResult(task.KindExecutionFault, msg, elapsed)
	}
}

func faultResult(kind task.ErrorKind, msg string, elapsed time.Duration) *task.ExecutionResult {
	return &task.ExecutionResult{
		Executed: false,
		Error:    &msg,
		Fault:    kind,
		Duration: elapsed,
	}
}

// cappedBuffer keeps the first max bytes written and silently drops the
// rest so the child never sees a short write.
type cappedBuffer struct {
	buf       bytes.Buffer
	max       int
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	room := b.max - b.buf.Len()
	if room <= 0 {
		b.truncated = len(p) > 0 || b.truncated
		return len(p), nil
	}
	if len(p) > room {
		b.buf.Write(p[:room])
		b.truncated = true
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	if b.truncated {
		return b.buf.String() + truncateMarker
	}
	return b.buf.String()
}
