package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/codexrun/internal/config"
	"github.com/ppiankov/codexrun/internal/history"
	"github.com/ppiankov/codexrun/internal/runner"
	"github.com/ppiankov/codexrun/internal/state"
	"github.com/ppiankov/codexrun/internal/task"
	"github.com/ppiankov/codexrun/internal/watch"
)

func newWatchCmd() *cobra.Command {
	var (
		inbox     string
		stateDir  string
		baseDir   string
		pollMode  bool
		timeout   time.Duration
		noHistory bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run task files dropped into an inbox directory",
		Long: `Watch picks up JSON or YAML task files from the inbox directory and runs
every task in them, one file at a time.

Each file moves through processing/ and ends as a result in completed/ or
failed/ under the state directory. On restart, files left in processing/
are recorded as failed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.LoadSettings(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if w := settings.Watch; w != nil {
				if !cmd.Flags().Changed("inbox") && w.Inbox != "" {
					inbox = w.Inbox
				}
				if !cmd.Flags().Changed("state-dir") && w.StateDir != "" {
					stateDir = w.StateDir
				}
				if !cmd.Flags().Changed("poll") && w.Poll {
					pollMode = true
				}
			}
			if !cmd.Flags().Changed("base-dir") && settings.BaseDir != "" {
				baseDir = settings.BaseDir
			}
			if !cmd.Flags().Changed("timeout") && settings.Timeout > 0 {
				timeout = settings.Timeout
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			var store *history.Store
			if !noHistory {
				if s, err := history.Open(ctx, historyPath(settings)); err != nil {
					slog.Warn("history disabled", "error", err)
				} else {
					defer func() { _ = s.Close() }()
					store = s
				}
			}

			ex := &executor{
				baseDir:   baseDir,
				runsDir:   runsPath(settings),
				timeout:   timeout,
				maxOutput: settings.MaxOutput,
				tracker:   state.Load(statePath(settings)),
				history:   store,
				logger:    slog.Default(),
			}

			w, err := watch.New(watch.Config{
				InboxDir: inbox,
				StateDir: stateDir,
				PollMode: pollMode,
				ExecFn: func(ctx context.Context, cfg task.Config) *task.RunReport {
					return ex.execute(ctx, settings.ApplyTo(cfg), nil)
				},
			})
			if err != nil {
				return fmt.Errorf("init watch: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (results in %s)\n", inbox, stateDir)
			return w.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&inbox, "inbox", filepath.Join(".codexrun", "inbox"), "directory to watch for task files")
	cmd.Flags().StringVar(&stateDir, "state-dir", filepath.Join(".codexrun", "watch"), "where processing/, completed/ and failed/ live")
	cmd.Flags().StringVar(&baseDir, "base-dir", ".", "parent directory of derived working directories")
	cmd.Flags().BoolVar(&pollMode, "poll", false, "poll the inbox instead of using filesystem events")
	cmd.Flags().DurationVar(&timeout, "timeout", runner.DefaultTimeout, "wall-clock limit for each generated program")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "do not record runs in the history database")

	return cmd
}
