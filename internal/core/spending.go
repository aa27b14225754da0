package core

import "time"

// Spending holds expense totals aggregated over a date range. Amounts are
// absolute values of negative transactions; income never appears here.
//
// A transaction carrying both a category and a subcategory contributes to
// both maps, so the category bucket includes subcategory-tagged spend.
// Consumers must reconcile the overlap themselves (BuildBudgetSummary reads
// the subcategory bucket only for subcategory-scoped line items).
type Spending struct {
	Total         float64
	ByCategory    map[string]float64
	BySubcategory map[string]float64
	Uncategorized float64
}

// AggregateSpending sums the user's expenses over the half-open interval
// [start, end). The upper bound is exclusive so the first instant of the next
// period is never double-counted. An empty accountFilter means all accounts.
// Empty input yields zeroed results, never an error.
func AggregateSpending(txns []Transaction, start, end time.Time, accountFilter []string) Spending {
	sp := Spending{
		ByCategory:    make(map[string]float64),
		BySubcategory: make(map[string]float64),
	}

	var accounts map[string]struct{}
	if len(accountFilter) > 0 {
		accounts = make(map[string]struct{}, len(accountFilter))
		for _, id := range accountFilter {
			accounts[id] = struct{}{}
		}
	}

	for _, t := range txns {
		if !t.IsExpense() {
			continue
		}
		if t.Posted.Before(start) || !t.Posted.Before(end) {
			continue
		}
		if accounts != nil {
			if _, ok := accounts[t.AccountID]; !ok {
				continue
			}
		}

		amount := -t.Amount
		sp.Total += amount

		if t.CategoryID == "" {
			sp.Uncategorized += amount
			continue
		}
		sp.ByCategory[t.CategoryID] += amount
		if t.SubcategoryID != "" {
			sp.BySubcategory[t.SubcategoryID] += amount
		}
	}

	return sp
}
