// Package agent drives a code-generation task through its lifecycle:
// initialize, pre-execute, execute. Execute generates code, saves it and
// runs it, reporting progress at fixed checkpoints.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/codexrun/internal/fetch"
	"github.com/ppiankov/codexrun/internal/lang"
	"github.com/ppiankov/codexrun/internal/producer"
	"github.com/ppiankov/codexrun/internal/runner"
	"github.com/ppiankov/codexrun/internal/sink"
	"github.com/ppiankov/codexrun/internal/task"
)

// Name identifies this agent in logs and reports.
const Name = "CodexAgent"

// ErrEmptyCode is returned when the producer yields no code.
var ErrEmptyCode = errors.New("producer returned empty code")

// ProgressSink receives lifecycle checkpoints. Calls are fire-and-forget.
type ProgressSink interface {
	Report(percent int, phase, message string, payload map[string]any)
}

type nopSink struct{}

func (nopSink) Report(int, string, string, map[string]any) {}

// TaskRunner runs one task. It is not safe for concurrent use; independent
// tasks use independent runners.
type TaskRunner struct {
	cfg      task.Config
	language string

	producer   producer.Producer
	sink       sink.Sink
	runner     runner.ProcessRunner
	downloader fetch.Downloader
	progress   ProgressSink
	logger     *slog.Logger
	baseDir    string
}

// Option configures a TaskRunner.
type Option func(*TaskRunner)

// WithProducer sets the code producer. Default: producer.Template.
func WithProducer(p producer.Producer) Option { return func(r *TaskRunner) { r.producer = p } }

// WithSink sets where generated code is written. Default: sink.FileSink.
func WithSink(s sink.Sink) Option { return func(r *TaskRunner) { r.sink = s } }

// WithProcessRunner sets how generated code is executed. Default: runner.Subprocess.
func WithProcessRunner(pr runner.ProcessRunner) Option { return func(r *TaskRunner) { r.runner = pr } }

// WithDownloader sets the source download step. Default: fetch.GitDownloader.
func WithDownloader(d fetch.Downloader) Option { return func(r *TaskRunner) { r.downloader = d } }

// WithProgress sets the progress sink. Default: discard.
func WithProgress(p ProgressSink) Option { return func(r *TaskRunner) { r.progress = p } }

// WithLogger sets the base logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option { return func(r *TaskRunner) { r.logger = l } }

// WithBaseDir sets the parent of derived working directories. Default: ".".
func WithBaseDir(dir string) Option { return func(r *TaskRunner) { r.baseDir = dir } }

// New creates a TaskRunner for cfg. cfg is copied; later changes to the
// caller's value have no effect.
func New(cfg task.Config, opts ...Option) *TaskRunner {
	r := &TaskRunner{
		cfg:      cfg.WithDefaults(),
		language: cfg.Language,
		baseDir:  ".",
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.logger = r.logger.With("agent", Name, "task", cfg.ID)

	if r.producer == nil {
		r.producer = producer.NewTemplate(r.logger)
	}
	if r.sink == nil {
		r.sink = sink.NewFileSink()
	}
	if r.runner == nil {
		r.runner = runner.NewSubprocess(runner.DefaultTimeout, runner.DefaultMaxOutput, r.logger)
	}
	if r.downloader == nil {
		r.downloader = fetch.NewGitDownloader(r.logger)
	}
	if r.progress == nil {
		r.progress = nopSink{}
	}
	return r
}

// Name returns the agent name.
func (r *TaskRunner) Name() string { return Name }

// Config returns the task configuration with defaults applied.
func (r *TaskRunner) Config() task.Config { return r.cfg }

// Language returns the effective language, set by Initialize.
func (r *TaskRunner) Language() string { return r.language }

// WorkDir returns the task's working directory: the configured one, or
// <base>/task_<id>.
func (r *TaskRunner) WorkDir() string {
	if r.cfg.WorkDir != "" {
		return r.cfg.WorkDir
	}
	return filepath.Join(r.baseDir, "task_"+r.cfg.ID)
}

// Run executes initialize, pre-execute and execute in order, stopping at
// the first failed phase.
func (r *TaskRunner) Run(ctx context.Context) task.Outcome {
	if out := r.Initialize(); !out.OK() {
		return out
	}
	if out := r.PreExecute(ctx); !out.OK() {
		return out
	}
	return r.Execute(ctx)
}

// Initialize substitutes defaults for missing configuration. Missing
// values are warnings, never failures.
func (r *TaskRunner) Initialize() (out task.Outcome) {
	defer r.recoverPhase(task.PhaseInitialize, &out, false)

	r.logger.Info("initialize: initializing agent")

	if strings.TrimSpace(r.language) == "" {
		r.logger.Warn("no language specified, using default", "language", task.DefaultLanguage)
		r.language = task.DefaultLanguage
	}
	if r.cfg.Requirements == "" {
		r.logger.Warn("no code requirements specified")
	}

	r.logger.Info("initialize: agent initialized", "language", r.language, "model", r.cfg.Model.Name)
	return task.Succeeded(nil)
}

// PreExecute downloads the source tree when a git url is configured and
// makes sure the working directory exists.
func (r *TaskRunner) PreExecute(ctx context.Context) (out task.Outcome) {
	defer r.recoverPhase(task.PhasePreExecute, &out, false)

	r.logger.Info("pre_execute: starting setup")
	dir := r.WorkDir()

	if r.cfg.GitURL != "" {
		if err := r.downloader.Download(ctx, r.cfg.GitURL, r.cfg.GitBranch, dir); err != nil {
			r.logger.Error("pre_execute failed", "error", err)
			return task.Failed(task.KindSetup, task.PhasePreExecute, fmt.Errorf("download: %w", err))
		}
	}

	if r.cfg.Model.APIKey == "" {
		r.logger.Warn("no API key provided", "model", r.cfg.Model.Name)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		r.logger.Error("pre_execute failed", "error", err)
		return task.Failed(task.KindSetup, task.PhasePreExecute, fmt.Errorf("create working directory: %w", err))
	}
	r.logger.Info("pre_execute: setup completed", "dir", dir)
	return task.Succeeded(nil)
}

// Execute generates, saves and runs code, reporting 10, 50, 70 and 100
// percent on success. Any failure reports a single 0% "failed" checkpoint.
// Files written before a failure are left in place.
func (r *TaskRunner) Execute(ctx context.Context) (out task.Outcome) {
	defer r.recoverPhase(task.PhaseExecute, &out, true)

	r.logger.Info("execute: starting")
	if r.language == "" {
		r.language = task.DefaultLanguage
	}

	r.report(10, task.CheckpointGenerating, fmt.Sprintf("Starting code generation with %s", r.cfg.Model.Name), nil)

	code, err := r.generate(ctx)
	if err != nil {
		return r.abort(task.KindGeneration, err)
	}
	r.report(50, task.CheckpointGenerated, "Code generated successfully", nil)

	path, err := r.sink.Write(r.WorkDir(), lang.Filename(r.language), code)
	if err != nil {
		return r.abort(task.KindPersistence, fmt.Errorf("save code: %w", err))
	}
	r.logger.Info("code saved", "path", path)
	r.report(70, task.CheckpointSaved, fmt.Sprintf("Code saved to %s", path), nil)

	result := r.runGenerated(ctx, path)

	r.report(100, task.CheckpointCompleted, "Codex execution completed", map[string]any{
		"generated_code":   code,
		"code_file_path":   path,
		"execution_result": result,
	})
	r.logger.Info("execute: completed")
	return task.Succeeded(&task.Completion{Code: code, FilePath: path, Execution: result})
}

func (r *TaskRunner) generate(ctx context.Context) (string, error) {
	prompt := producer.BuildPrompt(r.language, r.cfg.Requirements)
	r.logger.Info("generating code", "prompt", producer.Preview(prompt, 100))

	code, err := r.producer.Produce(ctx, r.language, r.cfg.Requirements)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	if strings.TrimSpace(code) == "" {
		return "", ErrEmptyCode
	}
	r.logger.Info("code generated", "bytes", len(code))
	return code, nil
}

// runGenerated runs the saved file for executable languages. Failures stay
// inside the result; they never fail the task.
func (r *TaskRunner) runGenerated(ctx context.Context, path string) *task.ExecutionResult {
	if !lang.Executable(r.language) {
		msg := fmt.Sprintf("Code execution not supported for language: %s", r.language)
		r.logger.Info(msg)
		return &task.ExecutionResult{Output: msg}
	}

	res := r.runner.Run(ctx, lang.Command(r.language), path)
	switch {
	case res.Fault != task.KindNone:
		r.logger.Warn("generated code did not run to completion", "fault", res.Fault, "error", res.ErrorText())
	case res.ExitCode != nil:
		r.logger.Info("generated code finished", "exit_code", *res.ExitCode)
	}
	return res
}

// abort logs the failure, emits the single 0% checkpoint and builds the
// failed outcome.
func (r *TaskRunner) abort(kind task.ErrorKind, err error) task.Outcome {
	msg := fmt.Sprintf("Agent[%s][%s] execute failed: %v", Name, r.cfg.ID, err)
	r.logger.Error("execute failed", "kind", kind, "error", err)
	r.report(0, task.CheckpointFailed, msg, map[string]any{
		"phase":      task.PhaseExecute,
		"error_kind": kind.String(),
	})
	return task.Failed(kind, task.PhaseExecute, err)
}

func (r *TaskRunner) report(percent int, phase, message string, payload map[string]any) {
	r.logger.Debug("progress", "percent", percent, "phase", phase)
	r.progress.Report(percent, phase, message, payload)
}

// recoverPhase turns a panic inside a phase into a failed outcome.
func (r *TaskRunner) recoverPhase(phase string, out *task.Outcome, reportFailure bool) {
	p := recover()
	if p == nil {
		return
	}
	err := fmt.Errorf("panic: %v", p)
	if reportFailure {
		*out = r.abort(task.KindUnhandled, err)
		return
	}
	r.logger.Error(phase+" failed", "error", err)
	*out = task.Failed(task.KindUnhandled, phase, err)
}
