package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/halcyon-research/market-cli/internal/extract"
	"github.com/halcyon-research/market-cli/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show extraction run history",
	Long:  "Displays recorded extraction passes, newest first.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := marketPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		journal, err := openJournal(ctx, pool)
		if err != nil {
			return err
		}
		defer journal.Close()

		spec, _ := cmd.Flags().GetString("table")
		limit, _ := cmd.Flags().GetInt("limit")

		passes, err := journal.ListPasses(ctx, store.PassFilter{Spec: spec, Limit: limit})
		if err != nil {
			return err
		}
		if len(passes) == 0 {
			fmt.Println("No runs recorded; run 'market-cli sync' first")
			return nil
		}

		formatPasses(os.Stdout, passes)
		return nil
	},
}

func init() {
	runsCmd.Flags().String("table", "", "restrict to one table spec")
	runsCmd.Flags().Int("limit", 50, "maximum rows to show")
	rootCmd.AddCommand(runsCmd)
}

// formatPasses writes a tabular run history to w.
func formatPasses(out io.Writer, passes []extract.PassResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RUN\tTABLE\tSTARTED\tDURATION\tSEL\tINS\tUPD\tUNCH\tEMPTY\tDEF\tFAIL")
	for _, p := range passes {
		dur := p.FinishedAt.Sub(p.StartedAt).Round(time.Second)
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
			shortID(p.RunID.String()),
			p.Spec,
			p.StartedAt.Format("2006-01-02 15:04"),
			dur,
			p.Selected, p.Inserted, p.Updated, p.Unchanged, p.Empty, p.Deferred, p.Failed,
		)
	}
	_ = w.Flush()
}

func shortID(s string) string {
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
