package cli

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/codexrun/internal/config"
	"github.com/ppiankov/codexrun/internal/state"
)

func newStateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Manage persistent task state",
		Long: `Manage the persistent task state that prevents duplicate runs.

Tasks from a task file that completed successfully are skipped on later runs.
Use 'codexrun state list' to see tracked tasks, 'codexrun state reset <id>'
to allow a task to re-execute, or 'codexrun state clear' to reset all state.`,
	}

	cmd.AddCommand(newStateListCmd())
	cmd.AddCommand(newStateResetCmd())
	cmd.AddCommand(newStateClearCmd())

	return cmd
}

func loadTracker() (*state.Tracker, error) {
	settings, err := config.LoadSettings(configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return state.Load(statePath(settings)), nil
}

func newStateListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show all tracked task states",
		RunE: func(cmd *cobra.Command, args []string) error {
			tracker, err := loadTracker()
			if err != nil {
				return err
			}
			entries := tracker.Entries()
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No tracked tasks.")
				return nil
			}

			ids := make([]string, 0, len(entries))
			for id := range entries {
				ids = append(ids, id)
			}
			sort.Strings(ids)

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "TASK\tSTATUS\tLANGUAGE\tEXIT\tFILE\tFINISHED\n")
			for _, id := range ids {
				e := entries[id]
				exit := "-"
				if e.ExitCode != nil {
					exit = fmt.Sprintf("%d", *e.ExitCode)
				}
				finished := ""
				if !e.FinishedAt.IsZero() {
					finished = e.FinishedAt.Format("2006-01-02 15:04")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", id, e.Status, e.Language, exit, e.FilePath, finished)
			}
			return w.Flush()
		},
	}
}

func newStateResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <task-id>",
		Short: "Reset a task to allow re-execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tracker, err := loadTracker()
			if err != nil {
				return err
			}
			entry := tracker.Get(args[0])
			if entry == nil {
				return fmt.Errorf("task %q not found in state", args[0])
			}
			tracker.Reset(args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "Reset %q (was %s)\n", args[0], entry.Status)
			return nil
		},
	}
}

func newStateClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all task state (allows full re-execution)",
		RunE: func(cmd *cobra.Command, args []string) error {
			tracker, err := loadTracker()
			if err != nil {
				return err
			}
			tracker.Clear()
			fmt.Fprintln(cmd.OutOrStdout(), "State cleared.")
			return nil
		},
	}
}
