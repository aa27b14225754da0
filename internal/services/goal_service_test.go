package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ngacho/cashstate/internal/core"
	"github.com/ngacho/cashstate/internal/store/memory"
)

func TestCreateSavingsGoalAndProgress(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	svc := NewGoalService(s, s, s)

	s.PutAccount(core.Account{ID: "a1", UserID: "u1", Balance: 10000})

	g, err := svc.CreateGoal(ctx, core.Goal{
		UserID:       "u1",
		Name:         "House deposit",
		Type:         core.GoalSavings,
		TargetAmount: 10000,
	}, []AttachAccount{{AccountID: "a1", AllocationPercentage: 40}})
	if err != nil {
		t.Fatalf("CreateGoal: %v", err)
	}

	_, current, percent, err := svc.Progress(ctx, g.ID)
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if current != 4000 {
		t.Errorf("current = %v, want 4000", current)
	}
	if percent != 40 {
		t.Errorf("percent = %v, want 40", percent)
	}
}

func TestCreateGoalOverAllocationConflict(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	svc := NewGoalService(s, s, s)

	s.PutAccount(core.Account{ID: "a1", UserID: "u1", Balance: 5000})

	_, err := svc.CreateGoal(ctx, core.Goal{UserID: "u1", Name: "First", Type: core.GoalSavings, TargetAmount: 1000},
		[]AttachAccount{{AccountID: "a1", AllocationPercentage: 70}})
	if err != nil {
		t.Fatalf("CreateGoal: %v", err)
	}

	_, err = svc.CreateGoal(ctx, core.Goal{UserID: "u1", Name: "Second", Type: core.GoalSavings, TargetAmount: 1000},
		[]AttachAccount{{AccountID: "a1", AllocationPercentage: 40}})
	if !errors.Is(err, core.ErrConflict) {
		t.Fatalf("over-allocation error = %v, want ErrConflict", err)
	}

	// The failed goal must not survive as a half-linked orphan.
	goals, _ := s.GoalsForUser(ctx, "u1")
	if len(goals) != 1 {
		t.Errorf("got %d goals after failed create, want 1", len(goals))
	}
}

func TestCreateSavingsGoalRejectsNegativeBalance(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	svc := NewGoalService(s, s, s)

	s.PutAccount(core.Account{ID: "card", UserID: "u1", Balance: -500})

	_, err := svc.CreateGoal(ctx, core.Goal{UserID: "u1", Name: "Trip", Type: core.GoalSavings, TargetAmount: 1000},
		[]AttachAccount{{AccountID: "card", AllocationPercentage: 50}})
	if !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("polarity error = %v, want ErrInvalidInput", err)
	}

	goals, _ := s.GoalsForUser(ctx, "u1")
	if len(goals) != 0 {
		t.Errorf("got %d goals after failed create, want 0", len(goals))
	}
}

func TestCreateDebtGoalPolarityAndProgress(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	svc := NewGoalService(s, s, s)

	s.PutAccount(core.Account{ID: "card", UserID: "u1", Balance: -8000})
	s.PutAccount(core.Account{ID: "checking", UserID: "u1", Balance: 2000})
	s.PutAccount(core.Account{ID: "paid-off", UserID: "u1", Balance: 0})

	// A positive-balance account cannot back a debt goal.
	_, err := svc.CreateGoal(ctx, core.Goal{UserID: "u1", Name: "Pay off card", Type: core.GoalDebtPayment, TargetAmount: 8000},
		[]AttachAccount{{AccountID: "checking"}})
	if !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("polarity error = %v, want ErrInvalidInput", err)
	}

	// A balance of exactly zero is fine: the debt may already be cleared.
	if _, err := svc.CreateGoal(ctx, core.Goal{UserID: "u1", Name: "Old loan", Type: core.GoalDebtPayment, TargetAmount: 100},
		[]AttachAccount{{AccountID: "paid-off"}}); err != nil {
		t.Fatalf("zero-balance debt attach: %v", err)
	}

	g, err := svc.CreateGoal(ctx, core.Goal{UserID: "u1", Name: "Pay off card", Type: core.GoalDebtPayment, TargetAmount: 8000},
		[]AttachAccount{{AccountID: "card"}})
	if err != nil {
		t.Fatalf("CreateGoal: %v", err)
	}

	// Debt shrank from 8000 to 6500: 1500 paid off.
	s.PutAccount(core.Account{ID: "card", UserID: "u1", Balance: -6500})

	_, current, percent, err := svc.Progress(ctx, g.ID)
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if current != 1500 {
		t.Errorf("current = %v, want 1500", current)
	}
	if percent != 18.75 {
		t.Errorf("percent = %v, want 18.75", percent)
	}
}

func TestCreateGoalValidation(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	svc := NewGoalService(s, s, s)
	s.PutAccount(core.Account{ID: "a1", UserID: "u1", Balance: 100})

	tests := []struct {
		name   string
		goal   core.Goal
		attach []AttachAccount
	}{
		{"empty name", core.Goal{UserID: "u1", Type: core.GoalSavings, TargetAmount: 100},
			[]AttachAccount{{AccountID: "a1", AllocationPercentage: 10}}},
		{"zero target", core.Goal{UserID: "u1", Name: "G", Type: core.GoalSavings},
			[]AttachAccount{{AccountID: "a1", AllocationPercentage: 10}}},
		{"no accounts", core.Goal{UserID: "u1", Name: "G", Type: core.GoalSavings, TargetAmount: 100}, nil},
		{"zero allocation", core.Goal{UserID: "u1", Name: "G", Type: core.GoalSavings, TargetAmount: 100},
			[]AttachAccount{{AccountID: "a1"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.CreateGoal(ctx, tt.goal, tt.attach); !errors.Is(err, core.ErrInvalidInput) {
				t.Errorf("error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestCreateGoalForeignAccount(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	svc := NewGoalService(s, s, s)
	s.PutAccount(core.Account{ID: "a1", UserID: "someone-else", Balance: 100})

	_, err := svc.CreateGoal(ctx, core.Goal{UserID: "u1", Name: "G", Type: core.GoalSavings, TargetAmount: 100},
		[]AttachAccount{{AccountID: "a1", AllocationPercentage: 10}})
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestProgressSeriesFromSnapshots(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	svc := NewGoalService(s, s, s)

	s.PutAccount(core.Account{ID: "a1", UserID: "u1", Balance: 600})
	g, err := svc.CreateGoal(ctx, core.Goal{UserID: "u1", Name: "Trip", Type: core.GoalSavings, TargetAmount: 1000},
		[]AttachAccount{{AccountID: "a1", AllocationPercentage: 50}})
	if err != nil {
		t.Fatalf("CreateGoal: %v", err)
	}

	for d := 1; d <= 3; d++ {
		_ = s.UpsertSnapshot(ctx, "a1", day(2025, 3, d), float64(d*200))
	}

	series, err := svc.ProgressSeries(ctx, g.ID, day(2025, 3, 1), day(2025, 3, 3), core.GranularityDay)
	if err != nil {
		t.Fatalf("ProgressSeries: %v", err)
	}
	if len(series) != 3 {
		t.Fatalf("got %d points, want 3", len(series))
	}
	// 50% of the snapshotted balance each day.
	want := []float64{100, 200, 300}
	for i, p := range series {
		if p.Balance != want[i] {
			t.Errorf("point %d = %v, want %v", i, p.Balance, want[i])
		}
	}
}

func TestCompleteGoal(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	svc := NewGoalService(s, s, s)
	s.PutAccount(core.Account{ID: "a1", UserID: "u1", Balance: 100})

	g, err := svc.CreateGoal(ctx, core.Goal{UserID: "u1", Name: "Done soon", Type: core.GoalSavings, TargetAmount: 50},
		[]AttachAccount{{AccountID: "a1", AllocationPercentage: 100}})
	if err != nil {
		t.Fatalf("CreateGoal: %v", err)
	}

	done, err := svc.Complete(ctx, g.ID)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !done.IsCompleted {
		t.Error("goal not marked completed")
	}
	if !done.UpdatedAt.After(time.Time{}) {
		t.Error("UpdatedAt not set")
	}
}
