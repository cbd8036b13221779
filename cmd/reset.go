package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/halcyon-research/market-cli/internal/catalog"
	"github.com/halcyon-research/market-cli/internal/watermark"
)

var resetCmd = &cobra.Command{
	Use:   "reset <table> <symbol>",
	Short: "Re-admit a suspended entity",
	Long:  "Clears the consecutive-failure counter for one entity on one table so the scheduler picks it up again.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		specName, symbol := args[0], args[1]

		pool, err := marketPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		reg, _, err := buildRegistry()
		if err != nil {
			return err
		}
		spec, err := reg.Get(specName)
		if err != nil {
			return err
		}

		entity, err := catalog.NewStore(pool).FindBySymbol(ctx, symbol)
		if err != nil {
			return eris.Wrap(err, "reset")
		}
		if entity == nil {
			return eris.Errorf("reset: unknown symbol %q", symbol)
		}

		if err := watermark.NewStore(pool).Reset(ctx, spec.Table, entity.EntityID); err != nil {
			return err
		}

		fmt.Printf("Reset %s on %s\n", symbol, spec.Table)
		return nil
	},
}

var suspendedCmd = &cobra.Command{
	Use:   "suspended <table>",
	Short: "List suspended entities",
	Long:  "Lists entities excluded from scheduling by the failure circuit breaker for one table.",
	Args:  cobra.ExactArgs(1),
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
		spec, err := reg.Get(args[0])
		if err != nil {
			return err
		}

		entities, err := watermark.NewStore(pool).ListSuspended(ctx, spec.Table, cfg.Extract.FailureCeiling)
		if err != nil {
			return err
		}
		if len(entities) == 0 {
			fmt.Println("No suspended entities")
			return nil
		}

		for _, e := range entities {
			last := "never"
			if e.LastSuccessAt != nil {
				last = e.LastSuccessAt.Format("2006-01-02 15:04")
			}
			fmt.Printf("%s\tfailures=%d\tlast_success=%s\n", e.Symbol, e.ConsecutiveFailures, last)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(suspendedCmd)
}
