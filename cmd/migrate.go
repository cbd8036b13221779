package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/halcyon-research/market-cli/internal/migrate"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply schema migrations",
	Long:  "Applies any pending market_data schema migrations under an advisory lock.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := marketPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := migrate.Migrate(ctx, pool); err != nil {
			return err
		}

		fmt.Println("Migrations applied")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
