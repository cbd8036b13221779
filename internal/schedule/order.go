package schedule

import (
	"sort"
	"time"

	"github.com/halcyon-research/market-cli/internal/catalog"
	"github.com/halcyon-research/market-cli/internal/watermark"
)

// Gap priority classes, most urgent first.
const (
	gapNever  = 0 // no successful run on record
	gapPeriod = 1 // succeeded before, but a newer period should exist upstream
	gapStale  = 2 // up to date on periods, only time-stale
)

// Options controls Order.
type Options struct {
	Thresholds catalog.Thresholds
	// CoverageFloor pushes entities scoring below it to the back of the batch.
	CoverageFloor float64
	// ExpectedPeriod is the latest period assumed available upstream; zero
	// disables period-gap detection.
	ExpectedPeriod time.Time
	// BatchSize truncates the result. Zero means no cap.
	BatchSize int
}

// Ranked is a candidate with its derived scheduling attributes, exposed so
// callers can log why an entity sorted where it did.
type Ranked struct {
	watermark.Candidate
	Score       float64
	Tier        catalog.Tier
	GapPriority int
	BelowFloor  bool
}

// Order ranks due candidates deterministically. Entities below the coverage
// floor sort last; within each floor group the order is tier, then gap
// priority (never fetched, period gap, time-stale), then oldest success,
// then symbol. When scores is nil the scheduler degrades to staleness-only
// ordering: every entity gets the neutral score and the floor is ignored.
func Order(candidates []watermark.Candidate, scores map[int64]float64, opts Options) []Ranked {
	degraded := scores == nil

	ranked := make([]Ranked, 0, len(candidates))
	for _, c := range candidates {
		r := Ranked{Candidate: c, Score: catalog.NeutralScore}
		if !degraded {
			if s, ok := scores[c.EntityID]; ok {
				r.Score = s
			}
			r.BelowFloor = r.Score < opts.CoverageFloor
		}
		r.Tier = catalog.ClassifyScore(r.Score, opts.Thresholds)
		r.GapPriority = gapPriority(c, opts.ExpectedPeriod)
		ranked = append(ranked, r)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.BelowFloor != b.BelowFloor {
			return !a.BelowFloor
		}
		if ar, br := a.Tier.Rank(), b.Tier.Rank(); ar != br {
			return ar < br
		}
		if a.GapPriority != b.GapPriority {
			return a.GapPriority < b.GapPriority
		}
		if at, bt := successTime(a.LastSuccessAt), successTime(b.LastSuccessAt); !at.Equal(bt) {
			return at.Before(bt)
		}
		return a.Symbol < b.Symbol
	})

	if opts.BatchSize > 0 && len(ranked) > opts.BatchSize {
		ranked = ranked[:opts.BatchSize]
	}
	return ranked
}

func gapPriority(c watermark.Candidate, expected time.Time) int {
	if c.LastSuccessAt == nil {
		return gapNever
	}
	if !expected.IsZero() && (c.LastPeriod == nil || c.LastPeriod.Before(expected)) {
		return gapPeriod
	}
	return gapStale
}

func successTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
