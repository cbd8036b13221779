package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/halcyon-research/market-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "market-cli",
	Short: "Incremental market data extraction pipeline",
	Long:  "Incrementally extracts fundamentals, prices, and rates from a rate-limited market API into market_data.* Postgres tables, tracking per-entity watermarks.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
