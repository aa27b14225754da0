package core

import (
	"sort"
	"time"
)

// MinCoveragePct is the snapshot sufficiency threshold. Requests whose range
// has less coverage than this fail with InsufficientDataError instead of
// returning partial silent results.
const MinCoveragePct = 50.0

// BalancePoint is one point of a balance time series. For rolled-up series
// Date is the period key (Monday of the ISO week, first of the month, or
// January 1st).
type BalancePoint struct {
	Date    time.Time
	Balance float64
}

// DailyNetWorth sums snapshots across accounts into one point per calendar
// date present in the input. Missing days are never invented. The result is
// sorted chronologically.
func DailyNetWorth(snaps []BalanceSnapshot) []BalancePoint {
	if len(snaps) == 0 {
		return nil
	}
	byDate := make(map[time.Time]float64)
	for _, s := range snaps {
		byDate[DateOnly(s.Date)] += s.Balance
	}
	points := make([]BalancePoint, 0, len(byDate))
	for d, b := range byDate {
		points = append(points, BalancePoint{Date: d, Balance: b})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return points
}

// Coverage returns the percentage of calendar days in [start, end] (inclusive)
// that have at least one snapshot, along with the min and max dates actually
// present.
func Coverage(snaps []BalanceSnapshot, start, end time.Time) (pct float64, minDate, maxDate time.Time) {
	expectedDays := int(DateOnly(end).Sub(DateOnly(start)).Hours()/24) + 1
	if expectedDays <= 0 {
		return 0, time.Time{}, time.Time{}
	}

	dates := make(map[time.Time]struct{})
	for _, s := range snaps {
		d := DateOnly(s.Date)
		dates[d] = struct{}{}
		if minDate.IsZero() || d.Before(minDate) {
			minDate = d
		}
		if d.After(maxDate) {
			maxDate = d
		}
	}

	pct = float64(len(dates)) / float64(expectedDays) * 100
	return pct, minDate, maxDate
}

// CheckSufficiency gates a snapshot set against MinCoveragePct for the
// requested range. Below the threshold it returns an InsufficientDataError
// describing the dates actually present.
func CheckSufficiency(snaps []BalanceSnapshot, start, end time.Time) error {
	pct, minDate, maxDate := Coverage(snaps, start, end)
	if pct < MinCoveragePct {
		return &InsufficientDataError{CoveragePct: pct, MinDate: minDate, MaxDate: maxDate}
	}
	return nil
}

// Rollup groups a daily series into the requested granularity. Day is the
// identity transform. For week, month, and year each period emits the balance
// of the chronologically last date in that period: balances are point-in-time
// readings, never summed or averaged across days.
func Rollup(daily []BalancePoint, g Granularity) []BalancePoint {
	if g == GranularityDay || len(daily) == 0 {
		return daily
	}

	type periodValue struct {
		lastDate time.Time
		balance  float64
	}
	periods := make(map[time.Time]periodValue)
	for _, p := range daily {
		key := PeriodKey(p.Date, g)
		cur, ok := periods[key]
		if !ok || p.Date.After(cur.lastDate) {
			periods[key] = periodValue{lastDate: p.Date, balance: p.Balance}
		}
	}

	out := make([]BalancePoint, 0, len(periods))
	for key, v := range periods {
		out = append(out, BalancePoint{Date: key, Balance: v.balance})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// PeriodKey maps a date to the canonical start of its period: the date itself
// for day, Monday of the ISO week, the first of the calendar month, or
// January 1st of the calendar year.
func PeriodKey(d time.Time, g Granularity) time.Time {
	d = DateOnly(d)
	switch g {
	case GranularityWeek:
		weekday := int(d.Weekday())
		if weekday == 0 { // Sunday belongs to the preceding ISO week
			weekday = 7
		}
		return d.AddDate(0, 0, 1-weekday)
	case GranularityMonth:
		return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
	case GranularityYear:
		return time.Date(d.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	default:
		return d
	}
}
