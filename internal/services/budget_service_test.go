package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ngacho/cashstate/internal/cache"
	"github.com/ngacho/cashstate/internal/core"
	"github.com/ngacho/cashstate/internal/store/memory"
)

func newBudgetService(s *memory.Store) *BudgetService {
	return NewBudgetService(s, s, cache.NewLRU[core.BudgetSummary](16, time.Minute))
}

func TestResolveOverrideBeatsDefault(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	svc := newBudgetService(s)

	def, _ := s.CreateBudget(ctx, core.Budget{UserID: "u1", Name: "Everyday", IsDefault: true})
	lean, _ := s.CreateBudget(ctx, core.Budget{UserID: "u1", Name: "Lean"})

	if _, err := svc.SetOverride(ctx, "u1", lean.ID, 2025, 3); err != nil {
		t.Fatalf("SetOverride: %v", err)
	}

	got, hasOverride, err := svc.Resolve(ctx, "u1", 2025, 3)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.ID != lean.ID {
		t.Errorf("resolved %s, want override %s", got.ID, lean.ID)
	}
	if !hasOverride {
		t.Error("hasOverride = false for an overridden month")
	}

	// A month without an override falls back to the default.
	got, hasOverride, err = svc.Resolve(ctx, "u1", 2025, 4)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.ID != def.ID {
		t.Errorf("resolved %s, want default %s", got.ID, def.ID)
	}
	if hasOverride {
		t.Error("hasOverride = true for a default month")
	}
}

func TestResolveNoBudget(t *testing.T) {
	svc := newBudgetService(memory.New())
	_, _, err := svc.Resolve(context.Background(), "u1", 2025, 3)
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestResolveInvalidMonth(t *testing.T) {
	svc := newBudgetService(memory.New())
	_, _, err := svc.Resolve(context.Background(), "u1", 2025, 13)
	if !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}

func TestSetOverrideForeignBudget(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	svc := newBudgetService(s)

	other, _ := s.CreateBudget(ctx, core.Budget{UserID: "u2", Name: "Theirs"})
	_, err := svc.SetOverride(ctx, "u1", other.ID, 2025, 3)
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestSummaryBudgetedVsSpent(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	svc := newBudgetService(s)

	b, _ := s.CreateBudget(ctx, core.Budget{UserID: "u1", Name: "Everyday", IsDefault: true})
	if _, err := s.CreateLineItem(ctx, core.LineItem{BudgetID: b.ID, CategoryID: "cat-food", Amount: 500}); err != nil {
		t.Fatalf("CreateLineItem: %v", err)
	}

	march := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	err := s.InsertTransactions(ctx, []core.Transaction{
		{ID: "t1", UserID: "u1", AccountID: "a1", Posted: march, Amount: -320, CategoryID: "cat-food"},
		{ID: "t2", UserID: "u1", AccountID: "a1", Posted: march, Amount: -75, CategoryID: "cat-fun"},
		{ID: "t3", UserID: "u1", AccountID: "a1", Posted: march, Amount: -10},
		// April spend must not leak into the March summary.
		{ID: "t4", UserID: "u1", AccountID: "a1", Posted: march.AddDate(0, 1, 0), Amount: -999, CategoryID: "cat-food"},
	})
	if err != nil {
		t.Fatalf("InsertTransactions: %v", err)
	}

	summary, err := svc.Summary(ctx, "u1", 2025, 3)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if summary.Month != "2025-03" {
		t.Errorf("Month = %s, want 2025-03", summary.Month)
	}
	if len(summary.LineItems) != 1 {
		t.Fatalf("got %d line items, want 1", len(summary.LineItems))
	}
	item := summary.LineItems[0]
	if item.Spent != 320 || item.Remaining != 180 {
		t.Errorf("line item spent/remaining = %v/%v, want 320/180", item.Spent, item.Remaining)
	}
	if len(summary.UnbudgetedCategories) != 1 || summary.UnbudgetedCategories[0].Spent != 75 {
		t.Errorf("unexpected unbudgeted categories: %+v", summary.UnbudgetedCategories)
	}
	if summary.Uncategorized != 10 {
		t.Errorf("Uncategorized = %v, want 10", summary.Uncategorized)
	}
	if summary.TotalSpent != 405 {
		t.Errorf("TotalSpent = %v, want 405", summary.TotalSpent)
	}
}

func TestSummaryCachedUntilLineItemChanges(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	svc := newBudgetService(s)

	b, _ := s.CreateBudget(ctx, core.Budget{UserID: "u1", Name: "Everyday", IsDefault: true})
	item, _ := s.CreateLineItem(ctx, core.LineItem{BudgetID: b.ID, CategoryID: "cat-food", Amount: 500})

	first, err := svc.Summary(ctx, "u1", 2025, 3)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if first.TotalBudgeted != 500 {
		t.Fatalf("TotalBudgeted = %v, want 500", first.TotalBudgeted)
	}

	// Mutating through the service invalidates; the next read sees the new
	// amount.
	if err := svc.UpdateLineItemAmount(ctx, b.ID, item.ID, 600); err != nil {
		t.Fatalf("UpdateLineItemAmount: %v", err)
	}
	second, err := svc.Summary(ctx, "u1", 2025, 3)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if second.TotalBudgeted != 600 {
		t.Errorf("TotalBudgeted after update = %v, want 600", second.TotalBudgeted)
	}
}

func TestSummaryReportsOverride(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	svc := newBudgetService(s)

	def, _ := s.CreateBudget(ctx, core.Budget{UserID: "u1", Name: "Everyday", IsDefault: true})
	lean, _ := s.CreateBudget(ctx, core.Budget{UserID: "u1", Name: "Lean"})
	if _, err := svc.SetOverride(ctx, "u1", lean.ID, 2025, 3); err != nil {
		t.Fatalf("SetOverride: %v", err)
	}

	overridden, err := svc.Summary(ctx, "u1", 2025, 3)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if overridden.BudgetID != lean.ID || !overridden.HasOverride {
		t.Errorf("March summary = %s hasOverride=%v, want %s with override", overridden.BudgetID, overridden.HasOverride, lean.ID)
	}

	fallback, err := svc.Summary(ctx, "u1", 2025, 4)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if fallback.BudgetID != def.ID || fallback.HasOverride {
		t.Errorf("April summary = %s hasOverride=%v, want default %s", fallback.BudgetID, fallback.HasOverride, def.ID)
	}

	// Pinning the default budget itself changes only the flag; the cached
	// summary for (budget, month) is otherwise reused.
	if _, err := svc.SetOverride(ctx, "u1", def.ID, 2025, 4); err != nil {
		t.Fatalf("SetOverride: %v", err)
	}
	pinned, err := svc.Summary(ctx, "u1", 2025, 4)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if pinned.BudgetID != def.ID || !pinned.HasOverride {
		t.Errorf("pinned summary = %s hasOverride=%v, want %s with override", pinned.BudgetID, pinned.HasOverride, def.ID)
	}
}

func TestAddLineItemValidation(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	svc := newBudgetService(s)
	b, _ := s.CreateBudget(ctx, core.Budget{UserID: "u1", Name: "Everyday"})

	if _, err := svc.AddLineItem(ctx, core.LineItem{BudgetID: b.ID, Amount: 100}); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("no category error = %v, want ErrInvalidInput", err)
	}
	if _, err := svc.AddLineItem(ctx, core.LineItem{BudgetID: b.ID, CategoryID: "c", Amount: -1}); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("negative amount error = %v, want ErrInvalidInput", err)
	}

	if _, err := svc.AddLineItem(ctx, core.LineItem{BudgetID: b.ID, CategoryID: "c", Amount: 100}); err != nil {
		t.Fatalf("AddLineItem: %v", err)
	}
	if _, err := svc.AddLineItem(ctx, core.LineItem{BudgetID: b.ID, CategoryID: "c", Amount: 200}); !errors.Is(err, core.ErrConflict) {
		t.Errorf("duplicate error = %v, want ErrConflict", err)
	}
}

func TestSummaryScopedToBudgetAccounts(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	svc := newBudgetService(s)

	b, _ := s.CreateBudget(ctx, core.Budget{UserID: "u1", Name: "Household", IsDefault: true})
	_, _ = s.CreateLineItem(ctx, core.LineItem{BudgetID: b.ID, CategoryID: "cat-food", Amount: 500})
	s.LinkBudgetAccount(b.ID, "a1")

	march := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	_ = s.InsertTransactions(ctx, []core.Transaction{
		{ID: "t1", UserID: "u1", AccountID: "a1", Posted: march, Amount: -100, CategoryID: "cat-food"},
		{ID: "t2", UserID: "u1", AccountID: "a2", Posted: march, Amount: -50, CategoryID: "cat-food"},
	})

	summary, err := svc.Summary(ctx, "u1", 2025, 3)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if summary.LineItems[0].Spent != 100 {
		t.Errorf("Spent = %v, want 100 (a2 excluded)", summary.LineItems[0].Spent)
	}
}
