package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/codexrun/internal/config"
	"github.com/ppiankov/codexrun/internal/history"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded runs",
	}
	cmd.AddCommand(newHistoryListCmd())
	return cmd
}

func newHistoryListCmd() *cobra.Command {
	var (
		taskID string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.LoadSettings(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			store, err := history.Open(cmd.Context(), historyPath(settings))
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			entries, err := store.List(cmd.Context(), taskID, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No recorded runs.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "RUN\tTASK\tLANGUAGE\tSTATUS\tEXIT\tERROR\tDURATION\tSTARTED\n")
			for _, e := range entries {
				exit := "-"
				if e.ExitCode != nil {
					exit = fmt.Sprintf("%d", *e.ExitCode)
				}
				errKind := e.ErrorKind
				if errKind == "" {
					errKind = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					shortID(e.RunID), e.TaskID, e.Language, e.Status, exit, errKind,
					e.Duration.Round(time.Millisecond), e.StartedAt.Local().Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&taskID, "task", "", "only show runs of this task")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to show (0 for all)")

	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
