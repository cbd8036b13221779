package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/halcyon-research/market-cli/internal/report"
	"github.com/halcyon-research/market-cli/internal/watermark"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write the freshness workbook",
	Long:  "Writes an xlsx workbook summarizing per-table freshness and suspended entities.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := marketPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		reg, _, err := buildRegistry()
		if err != nil {
			return err
		}

		var tables []string
		for _, spec := range reg.All() {
			tables = append(tables, spec.Table)
		}

		out, _ := cmd.Flags().GetString("out")
		err = report.WriteFreshnessWorkbook(ctx, watermark.NewStore(pool), out, report.Options{
			Tables:         tables,
			Staleness:      time.Duration(cfg.Extract.StalenessHours) * time.Hour,
			FailureCeiling: cfg.Extract.FailureCeiling,
			AsOf:           time.Now().UTC(),
		})
		if err != nil {
			return err
		}

		fmt.Printf("Workbook written to %s\n", out)
		return nil
	},
}

func init() {
	reportCmd.Flags().String("out", "freshness.xlsx", "output path")
	rootCmd.AddCommand(reportCmd)
}
