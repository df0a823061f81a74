package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/codexrun/internal/lang"
)

func newLanguagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List supported languages and how their code is run",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "LANGUAGE\tFILE\tRUN WITH\n")
			for _, l := range lang.Known() {
				run := "-"
				if lang.Executable(l) {
					run = lang.Command(l)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", l, lang.Filename(l), run)
			}
			fmt.Fprintf(w, "(other)\t%s\t-\n", lang.Filename(""))
			return w.Flush()
		},
	}
}
