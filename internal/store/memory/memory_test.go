package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ngacho/cashstate/internal/core"
)

func TestCreateBudgetClearsPriorDefault(t *testing.T) {
	s := New()
	ctx := context.Background()

	first, err := s.CreateBudget(ctx, core.Budget{UserID: "u1", Name: "Everyday", IsDefault: true})
	if err != nil {
		t.Fatalf("CreateBudget: %v", err)
	}
	second, err := s.CreateBudget(ctx, core.Budget{UserID: "u1", Name: "Lean", IsDefault: true})
	if err != nil {
		t.Fatalf("CreateBudget: %v", err)
	}

	def, err := s.DefaultBudget(ctx, "u1")
	if err != nil {
		t.Fatalf("DefaultBudget: %v", err)
	}
	if def.ID != second.ID {
		t.Errorf("default = %s, want %s", def.ID, second.ID)
	}

	got, err := s.Budget(ctx, first.ID)
	if err != nil {
		t.Fatalf("Budget: %v", err)
	}
	if got.IsDefault {
		t.Error("first budget still flagged default")
	}
}

func TestSetDefaultBudget(t *testing.T) {
	s := New()
	ctx := context.Background()

	a, _ := s.CreateBudget(ctx, core.Budget{UserID: "u1", Name: "A", IsDefault: true})
	b, _ := s.CreateBudget(ctx, core.Budget{UserID: "u1", Name: "B"})

	if err := s.SetDefaultBudget(ctx, "u1", b.ID); err != nil {
		t.Fatalf("SetDefaultBudget: %v", err)
	}

	def, err := s.DefaultBudget(ctx, "u1")
	if err != nil {
		t.Fatalf("DefaultBudget: %v", err)
	}
	if def.ID != b.ID {
		t.Errorf("default = %s, want %s", def.ID, b.ID)
	}
	prev, _ := s.Budget(ctx, a.ID)
	if prev.IsDefault {
		t.Error("previous default not cleared")
	}

	if err := s.SetDefaultBudget(ctx, "u1", "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("SetDefaultBudget(missing) error = %v, want ErrNotFound", err)
	}
}

func TestCreateLineItemDuplicateConflict(t *testing.T) {
	s := New()
	ctx := context.Background()

	b, _ := s.CreateBudget(ctx, core.Budget{UserID: "u1", Name: "Everyday"})

	if _, err := s.CreateLineItem(ctx, core.LineItem{BudgetID: b.ID, CategoryID: "cat-food", Amount: 500}); err != nil {
		t.Fatalf("CreateLineItem: %v", err)
	}
	_, err := s.CreateLineItem(ctx, core.LineItem{BudgetID: b.ID, CategoryID: "cat-food", Amount: 300})
	if !errors.Is(err, core.ErrConflict) {
		t.Errorf("duplicate category item error = %v, want ErrConflict", err)
	}

	// Subcategory-level item beside the category-level one is allowed.
	if _, err := s.CreateLineItem(ctx, core.LineItem{BudgetID: b.ID, CategoryID: "cat-food", SubcategoryID: "sub-rest", Amount: 100}); err != nil {
		t.Fatalf("subcategory item: %v", err)
	}
	_, err = s.CreateLineItem(ctx, core.LineItem{BudgetID: b.ID, CategoryID: "cat-food", SubcategoryID: "sub-rest", Amount: 50})
	if !errors.Is(err, core.ErrConflict) {
		t.Errorf("duplicate subcategory item error = %v, want ErrConflict", err)
	}
}

func TestMonthOverrideUpsert(t *testing.T) {
	s := New()
	ctx := context.Background()
	month := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	first, err := s.SetMonthOverride(ctx, core.MonthOverride{UserID: "u1", BudgetID: "b1", Month: month})
	if err != nil {
		t.Fatalf("SetMonthOverride: %v", err)
	}
	second, err := s.SetMonthOverride(ctx, core.MonthOverride{UserID: "u1", BudgetID: "b2", Month: month})
	if err != nil {
		t.Fatalf("SetMonthOverride: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("upsert minted a new id: %s != %s", second.ID, first.ID)
	}

	got, err := s.MonthOverride(ctx, "u1", month)
	if err != nil {
		t.Fatalf("MonthOverride: %v", err)
	}
	if got.BudgetID != "b2" {
		t.Errorf("BudgetID = %s, want b2", got.BudgetID)
	}

	other := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	if _, err := s.MonthOverride(ctx, "u1", other); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("missing month error = %v, want ErrNotFound", err)
	}
}

func TestUpsertSnapshotIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.PutAccount(core.Account{ID: "a1", UserID: "u1", Name: "Checking"})
	day := time.Date(2025, 3, 10, 15, 4, 5, 0, time.UTC)

	if err := s.UpsertSnapshot(ctx, "a1", day, 100); err != nil {
		t.Fatalf("UpsertSnapshot: %v", err)
	}
	// Same calendar day, different clock time: overwrite, not append.
	if err := s.UpsertSnapshot(ctx, "a1", day.Add(3*time.Hour), 120); err != nil {
		t.Fatalf("UpsertSnapshot: %v", err)
	}

	snaps, err := s.SnapshotsInRange(ctx, "u1", day.AddDate(0, 0, -1), day.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("SnapshotsInRange: %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("got %d snapshots, want 1", len(snaps))
	}
	if snaps[0].Balance != 120 {
		t.Errorf("Balance = %v, want 120", snaps[0].Balance)
	}
	if !snaps[0].Date.Equal(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Date not normalized to midnight: %v", snaps[0].Date)
	}
}

func TestTransactionsInRangeHalfOpen(t *testing.T) {
	s := New()
	ctx := context.Background()
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	err := s.InsertTransactions(ctx, []core.Transaction{
		{ID: "t1", UserID: "u1", AccountID: "a1", Posted: start, Amount: -10},
		{ID: "t2", UserID: "u1", AccountID: "a1", Posted: end.Add(-time.Second), Amount: -20},
		{ID: "t3", UserID: "u1", AccountID: "a1", Posted: end, Amount: -30},
		{ID: "t4", UserID: "u2", AccountID: "a2", Posted: start, Amount: -40},
	})
	if err != nil {
		t.Fatalf("InsertTransactions: %v", err)
	}

	got, err := s.TransactionsInRange(ctx, "u1", start, end, nil)
	if err != nil {
		t.Fatalf("TransactionsInRange: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d transactions, want 2", len(got))
	}
	if got[0].ID != "t1" || got[1].ID != "t2" {
		t.Errorf("order = %s,%s, want t1,t2", got[0].ID, got[1].ID)
	}
}

func TestUpdateCategorization(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.InsertTransactions(ctx, []core.Transaction{
		{ID: "t1", UserID: "u1", Posted: time.Now(), Amount: -5},
	})

	got, err := s.UpdateCategorization(ctx, "t1", "cat-food", "sub-rest", core.SourceRule)
	if err != nil {
		t.Fatalf("UpdateCategorization: %v", err)
	}
	if got.CategoryID != "cat-food" || got.SubcategoryID != "sub-rest" || got.Source != core.SourceRule {
		t.Errorf("unexpected transaction after update: %+v", got)
	}

	if _, err := s.UpdateCategorization(ctx, "missing", "c", "", core.SourceManual); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("missing transaction error = %v, want ErrNotFound", err)
	}
}

func TestTotalAllocationForAccount(t *testing.T) {
	s := New()
	ctx := context.Background()

	savings, _ := s.CreateGoal(ctx, core.Goal{UserID: "u1", Name: "House", Type: core.GoalSavings, TargetAmount: 1000})
	other, _ := s.CreateGoal(ctx, core.Goal{UserID: "u1", Name: "Trip", Type: core.GoalSavings, TargetAmount: 500})
	debt, _ := s.CreateGoal(ctx, core.Goal{UserID: "u1", Name: "Card", Type: core.GoalDebtPayment, TargetAmount: 800})

	_, _ = s.CreateGoalAccount(ctx, core.GoalAccount{GoalID: savings.ID, AccountID: "a1", AllocationPercentage: 40})
	_, _ = s.CreateGoalAccount(ctx, core.GoalAccount{GoalID: other.ID, AccountID: "a1", AllocationPercentage: 30})
	_, _ = s.CreateGoalAccount(ctx, core.GoalAccount{GoalID: debt.ID, AccountID: "a1", AllocationPercentage: 100})

	total, err := s.TotalAllocationForAccount(ctx, "a1", "")
	if err != nil {
		t.Fatalf("TotalAllocationForAccount: %v", err)
	}
	if total != 70 {
		t.Errorf("total = %v, want 70 (debt goals excluded)", total)
	}

	total, err = s.TotalAllocationForAccount(ctx, "a1", savings.ID)
	if err != nil {
		t.Fatalf("TotalAllocationForAccount: %v", err)
	}
	if total != 30 {
		t.Errorf("total excluding goal = %v, want 30", total)
	}
}

func TestRulesForUserOrder(t *testing.T) {
	s := New()
	ctx := context.Background()

	older := core.Rule{UserID: "u1", MatchField: core.MatchPayee, MatchValue: "coffee", CategoryID: "c1",
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	newer := core.Rule{UserID: "u1", MatchField: core.MatchPayee, MatchValue: "coffee shop", CategoryID: "c2",
		CreatedAt: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)}
	if _, err := s.CreateRule(ctx, older); err != nil {
		t.Fatalf("CreateRule: %v", err)
	}
	if _, err := s.CreateRule(ctx, newer); err != nil {
		t.Fatalf("CreateRule: %v", err)
	}

	rules, err := s.RulesForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("RulesForUser: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("got %d rules, want 2", len(rules))
	}
	if rules[0].CategoryID != "c2" {
		t.Errorf("first rule category = %s, want c2 (newest first)", rules[0].CategoryID)
	}
}

func TestCreateRuleValidates(t *testing.T) {
	s := New()
	_, err := s.CreateRule(context.Background(), core.Rule{UserID: "u1", MatchField: "amount", MatchValue: "x", CategoryID: "c1"})
	if !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}
