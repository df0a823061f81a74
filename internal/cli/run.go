package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/codexrun/internal/config"
	"github.com/ppiankov/codexrun/internal/history"
	"github.com/ppiankov/codexrun/internal/reporter"
	"github.com/ppiankov/codexrun/internal/runner"
	"github.com/ppiankov/codexrun/internal/state"
	"github.com/ppiankov/codexrun/internal/task"
)

// FailedError is returned when at least one task finished FAILED.
type FailedError struct {
	Failed int
	Total  int
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("%d of %d task(s) failed", e.Failed, e.Total)
}

type runOptions struct {
	taskFile     string
	id           string
	language     string
	requirements string
	workDir      string
	baseDir      string
	gitURL       string
	gitBranch    string
	timeout      time.Duration
	maxOutput    int
	tui          bool
	jsonOut      bool
	noColor      bool
	retry        bool
	noHistory    bool
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate, save and run code for one or more tasks",
		Long: `Run a task given on the command line (--id) or every task in a task file
(--task-file, JSON or YAML). Tasks from a file that completed in an earlier
run are skipped; failed or interrupted ones are retried with --retry.`,
		Example: `  codexrun run --id 42 --language bash --requirements "print disk usage"
  codexrun run --task-file tasks.yaml --tui`,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.LoadSettings(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if !cmd.Flags().Changed("base-dir") && settings.BaseDir != "" {
				opts.baseDir = settings.BaseDir
			}
			if !cmd.Flags().Changed("timeout") && settings.Timeout > 0 {
				opts.timeout = settings.Timeout
			}
			if !cmd.Flags().Changed("max-output") && settings.MaxOutput > 0 {
				opts.maxOutput = settings.MaxOutput
			}
			if !cmd.Flags().Changed("no-color") && settings.NoColor {
				opts.noColor = true
			}

			tasks, err := resolveTasks(cmd, opts)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runTasks(ctx, cmd.OutOrStdout(), tasks, opts, settings)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.taskFile, "task-file", "f", "", "path to a JSON or YAML task file")
	f.StringVar(&opts.id, "id", "", "task id (selects one task when used with --task-file)")
	f.StringVar(&opts.language, "language", "", "target language (default python)")
	f.StringVar(&opts.requirements, "requirements", "", "what the generated code should do")
	f.StringVar(&opts.workDir, "workdir", "", "working directory (default <base-dir>/task_<id>)")
	f.StringVar(&opts.baseDir, "base-dir", ".", "parent directory of derived working directories")
	f.StringVar(&opts.gitURL, "git-url", "", "clone this repository into the working directory first")
	f.StringVar(&opts.gitBranch, "git-branch", "", "branch to clone (default remote HEAD)")
	f.DurationVar(&opts.timeout, "timeout", runner.DefaultTimeout, "wall-clock limit for the generated program")
	f.IntVar(&opts.maxOutput, "max-output", runner.DefaultMaxOutput, "bytes kept per captured output stream")
	f.BoolVar(&opts.tui, "tui", false, "show an interactive progress view (single task only)")
	f.BoolVar(&opts.jsonOut, "json", false, "print run reports as JSON instead of progress lines")
	f.BoolVar(&opts.noColor, "no-color", false, "disable ANSI colors")
	f.BoolVar(&opts.retry, "retry", false, "re-run tasks that failed or were interrupted")
	f.BoolVar(&opts.noHistory, "no-history", false, "do not record runs in the history database")

	return cmd
}

// resolveTasks builds the task list from a task file or from flags, then
// applies flag overrides.
func resolveTasks(cmd *cobra.Command, opts runOptions) ([]task.Config, error) {
	var tasks []task.Config

	if opts.taskFile != "" {
		loaded, err := config.Load(opts.taskFile)
		if err != nil {
			return nil, fmt.Errorf("load tasks: %w", err)
		}
		tasks = loaded
		if opts.id != "" {
			tasks = selectTask(loaded, opts.id)
			if tasks == nil {
				return nil, fmt.Errorf("task %q not found in %s", opts.id, opts.taskFile)
			}
		}
	} else {
		if opts.id == "" {
			return nil, fmt.Errorf("either --task-file or --id is required")
		}
		if err := config.ValidateID(opts.id); err != nil {
			return nil, err
		}
		tasks = []task.Config{{ID: opts.id}}
	}

	if opts.workDir != "" && len(tasks) > 1 {
		return nil, fmt.Errorf("--workdir needs a single task, got %d", len(tasks))
	}
	if opts.tui && len(tasks) > 1 {
		return nil, fmt.Errorf("--tui needs a single task, got %d", len(tasks))
	}

	flags := cmd.Flags()
	for i := range tasks {
		t := &tasks[i]
		if flags.Changed("language") {
			t.Language = opts.language
		}
		if flags.Changed("requirements") {
			t.Requirements = opts.requirements
		}
		if flags.Changed("workdir") {
			t.WorkDir = opts.workDir
		}
		if flags.Changed("git-url") {
			t.GitURL = opts.gitURL
		}
		if flags.Changed("git-branch") {
			t.GitBranch = opts.gitBranch
		}
	}
	return tasks, nil
}

func selectTask(tasks []task.Config, id string) []task.Config {
	for _, t := range tasks {
		if t.ID == id {
			return []task.Config{t}
		}
	}
	return nil
}

func runTasks(ctx context.Context, out io.Writer, tasks []task.Config, opts runOptions, settings *config.Settings) error {
	tracker := state.Load(statePath(settings))
	if n := tracker.RecoverInterrupted(); n > 0 {
		slog.Warn("recovered interrupted tasks from previous run", "count", n)
	}

	// explicit --id runs are never filtered
	if opts.taskFile != "" && opts.id == "" {
		var skipped []state.SkippedTask
		tasks, skipped = state.FilterTasks(tasks, tracker, opts.retry)
		for _, s := range skipped {
			fmt.Fprintf(out, "skip %s: %s\n", s.ID, s.Reason)
		}
		if len(tasks) == 0 {
			fmt.Fprintln(out, "Nothing to run.")
			return nil
		}
	}

	var store *history.Store
	if !opts.noHistory {
		s, err := history.Open(ctx, historyPath(settings))
		if err != nil {
			slog.Warn("history disabled", "error", err)
		} else {
			defer func() { _ = s.Close() }()
			store = s
		}
	}

	for i := range tasks {
		tasks[i] = settings.ApplyTo(tasks[i])
	}

	ex := &executor{
		baseDir:   opts.baseDir,
		runsDir:   runsPath(settings),
		timeout:   opts.timeout,
		maxOutput: opts.maxOutput,
		tracker:   tracker,
		history:   store,
		logger:    slog.Default(),
	}
	return runAll(ctx, out, ex, tasks, opts)
}

// runAll runs tasks sequentially and prints progress or JSON reports.
func runAll(ctx context.Context, out io.Writer, ex *executor, tasks []task.Config, opts runOptions) error {
	text := reporter.NewTextReporter(out, !opts.noColor && isTerminal())
	failed := 0

	for _, cfg := range tasks {
		if ctx.Err() != nil {
			break
		}

		var report *task.RunReport
		switch {
		case opts.tui:
			_, err := reporter.RunTUI(ctx, cfg.ID, displayLanguage(cfg), func(ctx context.Context, sink reporter.Sink) task.Outcome {
				report = ex.execute(ctx, cfg, sink)
				return outcomeOf(report)
			})
			if err != nil {
				return fmt.Errorf("tui: %w", err)
			}
		case opts.jsonOut:
			report = ex.execute(ctx, cfg, nil)
		default:
			text.PrintHeader(cfg.ID, displayLanguage(cfg))
			report = ex.execute(ctx, cfg, text)
		}

		if opts.jsonOut {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return fmt.Errorf("encode report: %w", err)
			}
		} else {
			text.PrintSummary(report)
		}
		if report.Status != task.StatusSuccess {
			failed++
		}
	}

	if failed > 0 {
		return &FailedError{Failed: failed, Total: len(tasks)}
	}
	return nil
}

func displayLanguage(cfg task.Config) string {
	if cfg.Language == "" {
		return task.DefaultLanguage
	}
	return cfg.Language
}

// isTerminal checks if stdout is a terminal.
func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
