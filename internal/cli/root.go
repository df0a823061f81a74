package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Version, Commit and BuildDate are set via LDFLAGS at build time.
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

var (
	verbose    bool
	configFile string
)

// NewRootCmd builds the codexrun command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "codexrun",
		Short: "Generate, save and run code for a task",
		Long: `codexrun drives a code-generation task through initialize, pre-execute
and execute. Execute generates code from the task's requirements, saves it
to the task's working directory and runs it under a hard deadline.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: level,
			})))
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVar(&configFile, "config", ".codexrun.yml", "path to config file")

	root.AddCommand(newRunCmd())
	root.AddCommand(newWatchCmd())
	root.AddCommand(newStateCmd())
	root.AddCommand(newHistoryCmd())
	root.AddCommand(newLanguagesCmd())
	root.AddCommand(newVersionCmd())

	return root
}
