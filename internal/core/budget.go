package core

import "sort"

type (
	// SummaryLineItem is one budget line item with actuals attached.
	// Remaining has no floor: a negative value signals overspend.
	SummaryLineItem struct {
		ID            string
		BudgetID      string
		CategoryID    string
		SubcategoryID string
		Amount        float64
		Spent         float64
		Remaining     float64
	}

	// UnbudgetedCategory is a category with positive spend but no line item.
	UnbudgetedCategory struct {
		CategoryID string
		Spent      float64
	}

	// BudgetSummary is the month view of a resolved budget. HasOverride
	// reports how the budget was resolved and is filled in by the caller.
	BudgetSummary struct {
		BudgetID             string
		BudgetName           string
		Month                string // "YYYY-MM"
		HasOverride          bool
		TotalBudgeted        float64
		TotalSpent           float64
		LineItems            []SummaryLineItem
		UnbudgetedCategories []UnbudgetedCategory
		SubcategorySpending  map[string]float64
		Uncategorized        float64
	}
)

// BuildBudgetSummary merges a resolved budget's line items with aggregated
// spending. Subcategory-scoped items read the subcategory bucket; category
// items read the category bucket and mark it covered. Categories with spend
// but no line item become unbudgeted entries. Total spent counts line items,
// unbudgeted categories, and uncategorized spend. Monetary outputs are
// rounded here, at the boundary.
func BuildBudgetSummary(budget Budget, items []LineItem, month string, sp Spending) BudgetSummary {
	summary := BudgetSummary{
		BudgetID:            budget.ID,
		BudgetName:          budget.Name,
		Month:               month,
		SubcategorySpending: make(map[string]float64, len(sp.BySubcategory)),
		Uncategorized:       Round2(sp.Uncategorized),
	}

	covered := make(map[string]struct{})
	var totalBudgeted, totalSpent float64

	for _, item := range items {
		var spent float64
		if item.SubcategoryID != "" {
			spent = sp.BySubcategory[item.SubcategoryID]
		} else {
			spent = sp.ByCategory[item.CategoryID]
			covered[item.CategoryID] = struct{}{}
		}
		spent = Round2(spent)
		summary.LineItems = append(summary.LineItems, SummaryLineItem{
			ID:            item.ID,
			BudgetID:      budget.ID,
			CategoryID:    item.CategoryID,
			SubcategoryID: item.SubcategoryID,
			Amount:        item.Amount,
			Spent:         spent,
			Remaining:     Round2(item.Amount - spent),
		})
		totalBudgeted += item.Amount
		totalSpent += spent
	}

	for catID, spent := range sp.ByCategory {
		if _, ok := covered[catID]; ok || spent <= 0 {
			continue
		}
		spent = Round2(spent)
		summary.UnbudgetedCategories = append(summary.UnbudgetedCategories, UnbudgetedCategory{
			CategoryID: catID,
			Spent:      spent,
		})
		totalSpent += spent
	}
	sort.Slice(summary.UnbudgetedCategories, func(i, j int) bool {
		return summary.UnbudgetedCategories[i].CategoryID < summary.UnbudgetedCategories[j].CategoryID
	})

	for subID, spent := range sp.BySubcategory {
		summary.SubcategorySpending[subID] = Round2(spent)
	}

	summary.TotalBudgeted = Round2(totalBudgeted)
	summary.TotalSpent = Round2(totalSpent + sp.Uncategorized)
	return summary
}
