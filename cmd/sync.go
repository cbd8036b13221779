package main

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/halcyon-research/market-cli/internal/extract"
	"github.com/halcyon-research/market-cli/internal/migrate"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run incremental extraction passes",
	Long: `Run one extraction pass per target table.

Each pass selects due entities (never processed, or stale past the staleness
threshold), ranks them by tier and gap priority, and fetches under the
upstream rate limit. Responses land verbatim before fingerprint-guarded
upserts touch the business tables.

Use --tables to restrict to specific tables (e.g. balance_sheet,daily_prices).
Use --batch to cap how many entities each pass processes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "sync"))

		// Flag overrides beat config file and env.
		if n, _ := cmd.Flags().GetInt("batch"); n > 0 {
			cfg.Extract.BatchSize = n
		}
		if n, _ := cmd.Flags().GetInt("workers"); n > 0 {
			cfg.Extract.Workers = n
		}
		if n, _ := cmd.Flags().GetInt("staleness-hours"); n > 0 {
			cfg.Extract.StalenessHours = n
		}

		pool, err := marketPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		// Ensure migrations are current.
		if err := migrate.Migrate(ctx, pool); err != nil {
			return eris.Wrap(err, "sync: migrate")
		}

		engine, _, err := buildEngine(pool)
		if err != nil {
			return err
		}

		journal, err := openJournal(ctx, pool)
		if err != nil {
			return err
		}
		defer journal.Close()

		tables := parseTables(cmd)
		log.Info("starting sync", zap.Strings("tables", tables))

		err = engine.RunAll(ctx, tables, func(res *extract.PassResult) {
			if err := journal.RecordPass(ctx, res); err != nil {
				log.Error("record pass failed", zap.String("run_id", res.RunID.String()), zap.Error(err))
			}
			fmt.Printf("%s: selected=%d inserted=%d updated=%d unchanged=%d empty=%d deferred=%d failed=%d\n",
				res.Spec, res.Selected, res.Inserted, res.Updated, res.Unchanged, res.Empty, res.Deferred, res.Failed)
		})
		if err != nil {
			return eris.Wrap(err, "sync")
		}

		fmt.Println("Sync complete")
		return nil
	},
}

func init() {
	syncCmd.Flags().String("tables", "", "comma-separated table names (e.g. balance_sheet,daily_prices)")
	syncCmd.Flags().Int("batch", 0, "cap entities per pass (default from config)")
	syncCmd.Flags().Int("workers", 0, "concurrent entity workers (default from config)")
	syncCmd.Flags().Int("staleness-hours", 0, "staleness threshold in hours (default from config)")
	rootCmd.AddCommand(syncCmd)
}

// parseTables extracts the --tables flag as a trimmed list.
func parseTables(cmd *cobra.Command) []string {
	raw, _ := cmd.Flags().GetString("tables")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
