// Package report turns raw ledger sums into the figures the dashboard
// consumers need: calendar period bounds, goal progress, vesting status
// and the leaderboard ranking.
package report

import (
	"fmt"
	"sort"
	"time"

	"timbro/internal/core"
)

// Progress describes accumulated hours against a fixed target.
type Progress struct {
	Hours    float64
	Target   float64
	Fraction float64
	OnTrack  bool
}

// Rank is one leaderboard row. Rank numbers are dense positions in the
// sorted order; ties keep their roster order.
type Rank struct {
	Position int
	Person   string
	Hours    float64
}

// VestingEntry is one row of the monthly vesting report.
type VestingEntry struct {
	Person string
	Hours  float64
	Vested bool
}

// WeekBounds returns the half-open week interval [Monday, next Monday)
// containing d. Weeks start on Monday per ISO convention.
func WeekBounds(d core.Date) (core.Date, core.Date) {
	wd := int(d.Weekday())
	if wd == 0 {
		wd = 7 // treat Sunday as 7 (ISO)
	}
	start := d.AddDays(-(wd - 1))
	return start, start.AddDays(7)
}

// MonthBounds returns the half-open month interval
// [first of month, first of next month) containing d.
func MonthBounds(d core.Date) (core.Date, core.Date) {
	start := core.NewDate(d.Year(), int(d.Month()), 1)
	return start, core.Date{Time: start.AddDate(0, 1, 0)}
}

// NewProgress computes goal progress. The fraction is capped at 1.0 and a
// non-positive target yields zero progress rather than a division error.
func NewProgress(hours, target float64) Progress {
	hours = core.FloorZero(hours)
	p := Progress{Hours: hours, Target: target}
	if target > 0 {
		p.Fraction = hours / target
		if p.Fraction > 1.0 {
			p.Fraction = 1.0
		}
		p.OnTrack = hours >= target
	}
	return p
}

// Vested reports whether a month's total crosses the vesting threshold.
// Hitting the threshold exactly counts; there is no partial credit.
func Vested(hours, target float64) bool {
	return core.FloorZero(hours) >= target
}

// Leaderboard ranks the roster by period total descending. The sort is
// stable, so people with equal totals keep their roster order. People with
// no entries appear with zero hours.
func Leaderboard(totals map[string]float64, roster []string) []Rank {
	ranks := make([]Rank, 0, len(roster))
	for _, name := range roster {
		ranks = append(ranks, Rank{Person: name, Hours: core.FloorZero(totals[name])})
	}
	sort.SliceStable(ranks, func(i, j int) bool {
		return ranks[i].Hours > ranks[j].Hours
	})
	for i := range ranks {
		ranks[i].Position = i + 1
	}
	return ranks
}

// Vesting builds the monthly vesting report in roster order, sorted with
// vested people first and by hours descending within each group.
func Vesting(totals map[string]float64, roster []string, target float64) []VestingEntry {
	entries := make([]VestingEntry, 0, len(roster))
	for _, name := range roster {
		hrs := core.FloorZero(totals[name])
		entries = append(entries, VestingEntry{
			Person: name,
			Hours:  hrs,
			Vested: Vested(hrs, target),
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Vested != entries[j].Vested {
			return entries[i].Vested
		}
		return entries[i].Hours > entries[j].Hours
	})
	return entries
}

// FormatHours renders a floored hour total like "12.50 hrs".
func FormatHours(hours float64) string {
	return fmt.Sprintf("%.2f hrs", core.FloorZero(hours))
}

// FormatHMS renders elapsed seconds as HH:MM:SS for the live timer display.
func FormatHMS(seconds float64) string {
	s := int64(seconds)
	if s < 0 {
		s = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s%3600)/60, s%60)
}

// SecondsToHours converts elapsed seconds to fractional hours.
func SecondsToHours(seconds float64) float64 {
	return seconds / float64(time.Hour/time.Second)
}
