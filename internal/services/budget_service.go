// Package services orchestrates the stores, the pure aggregation code, and
// the external collaborators.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ngacho/cashstate/internal/cache"
	"github.com/ngacho/cashstate/internal/core"
	"github.com/ngacho/cashstate/internal/log"
	"github.com/ngacho/cashstate/internal/store"
)

// BudgetService resolves which budget applies to a month and builds month
// summaries. Summaries are cached per (budget, month); mutating a budget
// bumps its generation so stale entries are never read again and age out of
// the LRU on their own.
type BudgetService struct {
	budgets      store.BudgetStore
	transactions store.TransactionStore
	summaries    cache.Cache[core.BudgetSummary]

	mu          sync.Mutex
	generations map[string]uint64
}

func NewBudgetService(budgets store.BudgetStore, transactions store.TransactionStore, summaries cache.Cache[core.BudgetSummary]) *BudgetService {
	return &BudgetService{
		budgets:      budgets,
		transactions: transactions,
		summaries:    summaries,
		generations:  make(map[string]uint64),
	}
}

func (s *BudgetService) generation(budgetID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[budgetID]
}

func (s *BudgetService) invalidateBudget(budgetID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[budgetID]++
}

// Resolve returns the budget in effect for (user, month): the month's
// override if one exists, otherwise the user's default budget, otherwise
// core.ErrNotFound. The bool reports whether an override decided it.
func (s *BudgetService) Resolve(ctx context.Context, userID string, year, month int) (core.Budget, bool, error) {
	monthStart, err := core.MonthStart(year, month)
	if err != nil {
		return core.Budget{}, false, err
	}

	override, err := s.budgets.MonthOverride(ctx, userID, monthStart)
	if err == nil {
		b, err := s.budgets.Budget(ctx, override.BudgetID)
		if err != nil {
			return core.Budget{}, false, fmt.Errorf("resolve override budget: %w", err)
		}
		return b, true, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return core.Budget{}, false, fmt.Errorf("look up month override: %w", err)
	}

	b, err := s.budgets.DefaultBudget(ctx, userID)
	if err != nil {
		return core.Budget{}, false, fmt.Errorf("no budget for %04d-%02d: %w", year, month, err)
	}
	return b, false, nil
}

// SetOverride pins budgetID as the budget for (user, month), replacing any
// existing override for that month.
func (s *BudgetService) SetOverride(ctx context.Context, userID, budgetID string, year, month int) (core.MonthOverride, error) {
	monthStart, err := core.MonthStart(year, month)
	if err != nil {
		return core.MonthOverride{}, err
	}
	b, err := s.budgets.Budget(ctx, budgetID)
	if err != nil {
		return core.MonthOverride{}, err
	}
	if b.UserID != userID {
		return core.MonthOverride{}, fmt.Errorf("budget %s does not belong to user %s: %w", budgetID, userID, core.ErrNotFound)
	}

	o, err := s.budgets.SetMonthOverride(ctx, core.MonthOverride{
		UserID:   userID,
		BudgetID: budgetID,
		Month:    monthStart,
	})
	if err != nil {
		return core.MonthOverride{}, fmt.Errorf("set month override: %w", err)
	}
	return o, nil
}

// Summary builds the month's budget summary for the resolved budget:
// budgeted vs. spent per line item, unbudgeted categories, uncategorized
// spending.
func (s *BudgetService) Summary(ctx context.Context, userID string, year, month int) (core.BudgetSummary, error) {
	budget, hasOverride, err := s.Resolve(ctx, userID, year, month)
	if err != nil {
		return core.BudgetSummary{}, err
	}

	monthStart, err := core.MonthStart(year, month)
	if err != nil {
		return core.BudgetSummary{}, err
	}
	key := summaryKey(budget.ID, s.generation(budget.ID), monthStart)
	if cached, ok := s.summaries.Get(key); ok {
		// The same budget can be the default one month and an override the
		// next, so the flag is applied outside the cached value.
		cached.HasOverride = hasOverride
		return cached, nil
	}

	items, err := s.budgets.LineItems(ctx, budget.ID)
	if err != nil {
		return core.BudgetSummary{}, fmt.Errorf("load line items: %w", err)
	}
	accountIDs, err := s.budgets.BudgetAccountIDs(ctx, budget.ID)
	if err != nil {
		return core.BudgetSummary{}, fmt.Errorf("load budget accounts: %w", err)
	}

	txns, err := s.transactions.TransactionsInRange(ctx, userID, monthStart, core.MonthEnd(monthStart), accountIDs)
	if err != nil {
		return core.BudgetSummary{}, fmt.Errorf("load transactions: %w", err)
	}

	sp := core.AggregateSpending(txns, monthStart, core.MonthEnd(monthStart), accountIDs)
	summary := core.BuildBudgetSummary(budget, items, monthStart.Format("2006-01"), sp)
	summary.HasOverride = hasOverride

	s.summaries.Set(key, summary)
	slog.DebugContext(ctx, "Budget summary built",
		log.FieldComponent, log.ComponentBudget,
		log.FieldUserID, userID,
		log.FieldBudgetID, budget.ID,
		log.FieldMonth, summary.Month,
		"line_items", len(summary.LineItems))
	return summary, nil
}

// AddLineItem creates a line item and invalidates the budget's cached
// summaries.
func (s *BudgetService) AddLineItem(ctx context.Context, item core.LineItem) (core.LineItem, error) {
	if item.CategoryID == "" {
		return core.LineItem{}, fmt.Errorf("%w: line item has no category", core.ErrInvalidInput)
	}
	if item.Amount < 0 {
		return core.LineItem{}, fmt.Errorf("%w: line item amount is negative", core.ErrInvalidInput)
	}
	created, err := s.budgets.CreateLineItem(ctx, item)
	if err != nil {
		return core.LineItem{}, err
	}
	s.invalidateBudget(item.BudgetID)
	return created, nil
}

func (s *BudgetService) UpdateLineItemAmount(ctx context.Context, budgetID, itemID string, amount float64) error {
	if amount < 0 {
		return fmt.Errorf("%w: line item amount is negative", core.ErrInvalidInput)
	}
	if err := s.budgets.UpdateLineItemAmount(ctx, itemID, amount); err != nil {
		return err
	}
	s.invalidateBudget(budgetID)
	return nil
}

func (s *BudgetService) RemoveLineItem(ctx context.Context, budgetID, itemID string) error {
	if err := s.budgets.DeleteLineItem(ctx, itemID); err != nil {
		return err
	}
	s.invalidateBudget(budgetID)
	return nil
}

func summaryKey(budgetID string, generation uint64, month time.Time) string {
	return fmt.Sprintf("%s|%d|%s", budgetID, generation, month.Format("2006-01"))
}
