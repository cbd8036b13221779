package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/halcyon-research/market-cli/internal/catalog"
	"github.com/halcyon-research/market-cli/internal/extract"
	"github.com/halcyon-research/market-cli/internal/fetcher"
	"github.com/halcyon-research/market-cli/internal/migrate"
)

var universeCmd = &cobra.Command{
	Use:   "universe",
	Short: "Refresh the entity catalog",
	Long: `Refreshes the entity catalog from the upstream listing-status feed and
registers the Treasury maturity indicators. Symbols absent from the feed keep
their last known row; delisted symbols arrive as status='delisted'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "universe"))

		pool, err := marketPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := migrate.Migrate(ctx, pool); err != nil {
			return eris.Wrap(err, "universe: migrate")
		}

		client := upstreamClient()
		body, err := client.FetchListing(ctx)
		if err != nil {
			return eris.Wrap(err, "universe")
		}
		defer body.Close() //nolint:errcheck

		rowCh, errCh := fetcher.StreamCSV(ctx, body, fetcher.CSVOptions{
			HasHeader: true,
			TrimSpace: true,
		})

		var entities []catalog.Entity
		var skipped int
		for row := range rowCh {
			e, err := catalog.ParseListingRow(row)
			if err != nil {
				skipped++
				continue
			}
			entities = append(entities, e)
		}
		if err := <-errCh; err != nil {
			return eris.Wrap(err, "universe: read listing")
		}

		cat := catalog.NewStore(pool)
		n, err := cat.UpsertListings(ctx, entities)
		if err != nil {
			return err
		}

		for symbol, maturity := range extract.TreasuryMaturities {
			if _, err := cat.EnsureIndicator(ctx, symbol, "US Treasury "+maturity); err != nil {
				return err
			}
		}

		log.Info("universe refreshed",
			zap.Int64("upserted", n),
			zap.Int("parsed", len(entities)),
			zap.Int("skipped", skipped),
		)
		fmt.Printf("Universe refreshed: %d symbols\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(universeCmd)
}
