package catalog

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// listingHeader is the expected column order of the upstream listing-status
// CSV: symbol, name, exchange, assetType, ipoDate, delistingDate, status.
const listingFieldCount = 7

// ParseListingRow converts one listing-status CSV row into an Entity.
func ParseListingRow(row []string) (Entity, error) {
	if len(row) < listingFieldCount {
		return Entity{}, eris.Errorf("catalog: listing row has %d fields, want %d", len(row), listingFieldCount)
	}

	symbol := strings.TrimSpace(row[0])
	if symbol == "" {
		return Entity{}, eris.New("catalog: listing row has empty symbol")
	}

	e := Entity{
		Symbol:    symbol,
		Name:      strings.TrimSpace(row[1]),
		Exchange:  strings.TrimSpace(row[2]),
		AssetType: strings.TrimSpace(row[3]),
		Status:    strings.ToLower(strings.TrimSpace(row[6])),
	}
	e.IPODate = parseListingDate(row[4])
	e.DelistingDate = parseListingDate(row[5])

	if e.AssetType == "" {
		e.AssetType = "Stock"
	}
	if e.Status == "" {
		e.Status = "active"
	}
	return e, nil
}

// parseListingDate parses a YYYY-MM-DD cell, tolerating the feed's "null"
// markers.
func parseListingDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" || s == "None" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	return &t
}
