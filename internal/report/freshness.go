// Package report renders operator-facing freshness workbooks.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/halcyon-research/market-cli/internal/watermark"
)

// Summarizer provides per-table freshness data for the workbook.
type Summarizer interface {
	Summarize(ctx context.Context, table string, asOf time.Time, staleness time.Duration, ceiling int) (*watermark.Summary, error)
	ListSuspended(ctx context.Context, table string, ceiling int) ([]watermark.SuspendedEntity, error)
}

// Options controls the freshness workbook.
type Options struct {
	Tables         []string
	Staleness      time.Duration
	FailureCeiling int
	AsOf           time.Time
}

// WriteFreshnessWorkbook writes a workbook with one summary sheet across all
// tables and one suspended-entities sheet, to the given path.
func WriteFreshnessWorkbook(ctx context.Context, src Summarizer, path string, opts Options) error {
	f := xlsx.NewFile()

	summary, err := f.AddSheet("Freshness")
	if err != nil {
		return eris.Wrap(err, "report: add freshness sheet")
	}
	header := summary.AddRow()
	for _, h := range []string{"Table", "Never", "Fresh", "Stale", "Suspended"} {
		header.AddCell().SetString(h)
	}

	suspended, err := f.AddSheet("Suspended")
	if err != nil {
		return eris.Wrap(err, "report: add suspended sheet")
	}
	sHeader := suspended.AddRow()
	for _, h := range []string{"Table", "Symbol", "Consecutive Failures", "Last Success"} {
		sHeader.AddCell().SetString(h)
	}

	for _, table := range opts.Tables {
		sum, err := src.Summarize(ctx, table, opts.AsOf, opts.Staleness, opts.FailureCeiling)
		if err != nil {
			return eris.Wrapf(err, "report: summarize %s", table)
		}
		row := summary.AddRow()
		row.AddCell().SetString(sum.Table)
		row.AddCell().SetInt(sum.Never)
		row.AddCell().SetInt(sum.Fresh)
		row.AddCell().SetInt(sum.Stale)
		row.AddCell().SetInt(sum.Suspended)

		entities, err := src.ListSuspended(ctx, table, opts.FailureCeiling)
		if err != nil {
			return eris.Wrapf(err, "report: list suspended %s", table)
		}
		for _, e := range entities {
			r := suspended.AddRow()
			r.AddCell().SetString(table)
			r.AddCell().SetString(e.Symbol)
			r.AddCell().SetInt(e.ConsecutiveFailures)
			if e.LastSuccessAt != nil {
				r.AddCell().SetString(e.LastSuccessAt.UTC().Format(time.RFC3339))
			} else {
				r.AddCell().SetString("never")
			}
		}
	}

	meta := summary.AddRow()
	meta.AddCell().SetString(fmt.Sprintf("Generated %s", opts.AsOf.UTC().Format(time.RFC3339)))

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "report: save workbook %s", path)
	}
	return nil
}
