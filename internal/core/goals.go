package core

import (
	"math"
	"sort"
	"time"
)

// GoalProgress computes (current amount, progress percent) for a goal.
//
// Savings goals weight each linked account's balance by its allocation
// percentage. Debt payoff goals measure cumulative reduction since creation:
// |starting balance| − |current balance|, where the starting balance was
// captured once at attach time and is never recomputed. Percent is clamped to
// [0,100]; a non-positive target yields 0 without dividing. Both outputs are
// rounded at the boundary.
func GoalProgress(goal Goal, accounts []GoalAccount) (currentAmount, progressPercent float64) {
	var current float64
	switch goal.Type {
	case GoalDebtPayment:
		for _, ga := range accounts {
			starting := ga.CurrentBalance
			if ga.StartingBalance != nil {
				starting = *ga.StartingBalance
			}
			current += math.Abs(starting) - math.Abs(ga.CurrentBalance)
		}
	default: // savings
		for _, ga := range accounts {
			current += ga.CurrentBalance * (ga.AllocationPercentage / 100)
		}
	}

	if goal.TargetAmount <= 0 {
		return Round2(current), 0
	}
	return Round2(current), Round2(Clamp(current/goal.TargetAmount*100, 0, 100))
}

// GoalSeries applies the goal's progress formula to per-account balance
// roll-ups, producing a series usable for charting. rollups maps account id
// to that account's series at the requested granularity. For a
// period where an account has no point yet, the account's most recent earlier
// balance is carried; an account with no earlier point contributes nothing.
func GoalSeries(goal Goal, accounts []GoalAccount, rollups map[string][]BalancePoint) []BalancePoint {
	periodSet := make(map[time.Time]struct{})
	for _, series := range rollups {
		for _, p := range series {
			periodSet[p.Date] = struct{}{}
		}
	}
	if len(periodSet) == 0 {
		return nil
	}
	periods := make([]time.Time, 0, len(periodSet))
	for d := range periodSet {
		periods = append(periods, d)
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].Before(periods[j]) })

	out := make([]BalancePoint, 0, len(periods))
	for _, period := range periods {
		var amount float64
		for _, ga := range accounts {
			balance, ok := balanceAt(rollups[ga.AccountID], period)
			if !ok {
				continue
			}
			switch goal.Type {
			case GoalDebtPayment:
				starting := balance
				if ga.StartingBalance != nil {
					starting = *ga.StartingBalance
				}
				amount += math.Abs(starting) - math.Abs(balance)
			default:
				amount += balance * (ga.AllocationPercentage / 100)
			}
		}
		out = append(out, BalancePoint{Date: period, Balance: Round2(amount)})
	}
	return out
}

// balanceAt returns the balance of the latest point at or before period.
// series must be sorted chronologically, which Rollup guarantees.
func balanceAt(series []BalancePoint, period time.Time) (float64, bool) {
	var (
		balance float64
		found   bool
	)
	for _, p := range series {
		if p.Date.After(period) {
			break
		}
		balance = p.Balance
		found = true
	}
	return balance, found
}
