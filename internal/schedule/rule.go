// Package schedule decides what to fetch next: reporting-period rules that
// model upstream publication lag, and a deterministic priority ordering over
// due entities.
package schedule

import "time"

// PeriodRule reports the latest period end assumed to be available upstream.
// An entity whose stored data already covers that period cannot learn anything
// from a re-fetch and is excluded from scheduling.
type PeriodRule interface {
	// ExpectedPeriod returns the latest available period end at time now.
	// A zero time means no period-based exclusion applies.
	ExpectedPeriod(now time.Time) time.Time
}

// QuarterlyWithLag models quarterly filings that appear a fixed number of days
// after the fiscal quarter ends. With LagDays=45, Q3 data (period end 9/30) is
// only expected from 11/14 on; before that the expected period is Q2.
type QuarterlyWithLag struct {
	LagDays int
}

func (r QuarterlyWithLag) ExpectedPeriod(now time.Time) time.Time {
	qEnd := mostRecentQuarterEnd(now)
	for i := 0; i < 4; i++ {
		if !now.Before(qEnd.AddDate(0, 0, r.LagDays)) {
			return qEnd
		}
		qEnd = mostRecentQuarterEnd(qEnd.AddDate(0, 0, -1))
	}
	return qEnd
}

// DailyLag models series published with a fixed day lag (e.g. adjusted close
// prices available the next day).
type DailyLag struct {
	Days int
}

func (r DailyLag) ExpectedPeriod(now time.Time) time.Time {
	d := now.UTC().AddDate(0, 0, -r.Days)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

// MonthlyWithLag models monthly series available a fixed number of days after
// month end.
type MonthlyWithLag struct {
	LagDays int
}

func (r MonthlyWithLag) ExpectedPeriod(now time.Time) time.Time {
	mEnd := endOfPreviousMonth(now)
	for i := 0; i < 3; i++ {
		if !now.Before(mEnd.AddDate(0, 0, r.LagDays)) {
			return mEnd
		}
		mEnd = endOfPreviousMonth(mEnd)
	}
	return mEnd
}

// None disables period-based exclusion; staleness alone drives scheduling.
type None struct{}

func (None) ExpectedPeriod(time.Time) time.Time { return time.Time{} }

// mostRecentQuarterEnd returns the last day of the most recent completed
// calendar quarter, at midnight UTC.
func mostRecentQuarterEnd(t time.Time) time.Time {
	year := t.Year()
	month := t.Month()

	var qEndMonth time.Month
	var qEndYear int

	switch {
	case month >= time.January && month <= time.March:
		// In Q1 the last completed quarter is Q4 of the previous year.
		qEndMonth = time.December
		qEndYear = year - 1
	case month >= time.April && month <= time.June:
		qEndMonth = time.March
		qEndYear = year
	case month >= time.July && month <= time.September:
		qEndMonth = time.June
		qEndYear = year
	default: // Oct-Dec
		qEndMonth = time.September
		qEndYear = year
	}

	// Day 0 of the following month is the last day of qEndMonth.
	return time.Date(qEndYear, qEndMonth+1, 0, 0, 0, 0, 0, time.UTC)
}

func endOfPreviousMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 0, 0, 0, 0, 0, time.UTC)
}
