package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ngacho/cashstate/internal/core"
	"github.com/ngacho/cashstate/internal/log"
	"github.com/ngacho/cashstate/internal/store"
)

// AttachAccount describes one account to link to a goal at creation time.
type AttachAccount struct {
	AccountID            string
	AllocationPercentage float64
}

// GoalService manages savings and debt-payment goals and computes progress
// from account balances and snapshot history.
type GoalService struct {
	goals     store.GoalStore
	accounts  store.AccountStore
	snapshots store.SnapshotStore
}

func NewGoalService(goals store.GoalStore, accounts store.AccountStore, snapshots store.SnapshotStore) *GoalService {
	return &GoalService{goals: goals, accounts: accounts, snapshots: snapshots}
}

// CreateGoal validates and stores a goal with its account links. If any link
// fails validation or storage, the goal and all links created so far are
// rolled back.
func (s *GoalService) CreateGoal(ctx context.Context, g core.Goal, attach []AttachAccount) (core.Goal, error) {
	if err := g.Validate(); err != nil {
		return core.Goal{}, err
	}
	if len(attach) == 0 {
		return core.Goal{}, fmt.Errorf("%w: goal needs at least one account", core.ErrInvalidInput)
	}

	created, err := s.goals.CreateGoal(ctx, g)
	if err != nil {
		return core.Goal{}, fmt.Errorf("create goal: %w", err)
	}

	for _, a := range attach {
		if err := s.attachAccount(ctx, created, a); err != nil {
			// Unwind: a half-linked goal is worse than no goal.
			if delErr := s.goals.DeleteGoalAccounts(ctx, created.ID); delErr != nil {
				slog.ErrorContext(ctx, "Rollback failed deleting goal accounts",
					log.FieldGoalID, created.ID, log.FieldError, delErr)
			}
			if delErr := s.goals.DeleteGoal(ctx, created.ID); delErr != nil {
				slog.ErrorContext(ctx, "Rollback failed deleting goal",
					log.FieldGoalID, created.ID, log.FieldError, delErr)
			}
			return core.Goal{}, err
		}
	}

	slog.InfoContext(ctx, "Goal created",
		log.FieldComponent, log.ComponentGoal,
		log.FieldGoalID, created.ID,
		log.FieldUserID, created.UserID,
		"type", string(created.Type),
		"accounts", len(attach))
	return created, nil
}

func (s *GoalService) attachAccount(ctx context.Context, g core.Goal, a AttachAccount) error {
	account, err := s.accounts.Account(ctx, a.AccountID)
	if err != nil {
		return err
	}
	if account.UserID != g.UserID {
		return fmt.Errorf("account %s does not belong to user %s: %w", a.AccountID, g.UserID, core.ErrNotFound)
	}

	ga := core.GoalAccount{
		GoalID:               g.ID,
		AccountID:            a.AccountID,
		AllocationPercentage: a.AllocationPercentage,
	}

	switch g.Type {
	case core.GoalSavings:
		if account.Balance < 0 {
			return fmt.Errorf("%w: savings goal needs a non-negative-balance account, %s has %.2f",
				core.ErrInvalidInput, a.AccountID, account.Balance)
		}
		if a.AllocationPercentage <= 0 || a.AllocationPercentage > 100 {
			return fmt.Errorf("%w: allocation %.1f%% out of range (0,100]", core.ErrInvalidInput, a.AllocationPercentage)
		}
		existing, err := s.goals.TotalAllocationForAccount(ctx, a.AccountID, g.ID)
		if err != nil {
			return fmt.Errorf("sum allocations: %w", err)
		}
		if existing+a.AllocationPercentage > 100 {
			return fmt.Errorf("account %s is over-allocated: %.1f%% + %.1f%% exceeds 100%%: %w",
				a.AccountID, existing, a.AllocationPercentage, core.ErrConflict)
		}
	case core.GoalDebtPayment:
		if account.Balance > 0 {
			return fmt.Errorf("%w: debt goal needs a non-positive-balance account, %s has %.2f",
				core.ErrInvalidInput, a.AccountID, account.Balance)
		}
		// Debt accounts always attach whole: the goal tracks the full payoff.
		ga.AllocationPercentage = 100
		starting := account.Balance
		ga.StartingBalance = &starting
	}

	if _, err := s.goals.CreateGoalAccount(ctx, ga); err != nil {
		return fmt.Errorf("attach account %s: %w", a.AccountID, err)
	}
	return nil
}

// Progress returns the goal's current amount and percent toward target.
func (s *GoalService) Progress(ctx context.Context, goalID string) (core.Goal, float64, float64, error) {
	g, err := s.goals.Goal(ctx, goalID)
	if err != nil {
		return core.Goal{}, 0, 0, err
	}
	accounts, err := s.goals.GoalAccounts(ctx, goalID)
	if err != nil {
		return core.Goal{}, 0, 0, fmt.Errorf("load goal accounts: %w", err)
	}
	current, percent := core.GoalProgress(g, accounts)
	return g, current, percent, nil
}

// Complete marks the goal done.
func (s *GoalService) Complete(ctx context.Context, goalID string) (core.Goal, error) {
	g, err := s.goals.Goal(ctx, goalID)
	if err != nil {
		return core.Goal{}, err
	}
	g.IsCompleted = true
	return s.goals.UpdateGoal(ctx, g)
}

// ProgressSeries returns the goal's amount over [start, end] at the given
// granularity, computed from each linked account's snapshot history.
func (s *GoalService) ProgressSeries(ctx context.Context, goalID string, start, end time.Time, g core.Granularity) ([]core.BalancePoint, error) {
	if !g.Valid() {
		return nil, fmt.Errorf("%w: unknown granularity %q", core.ErrInvalidInput, g)
	}

	goal, err := s.goals.Goal(ctx, goalID)
	if err != nil {
		return nil, err
	}
	accounts, err := s.goals.GoalAccounts(ctx, goalID)
	if err != nil {
		return nil, fmt.Errorf("load goal accounts: %w", err)
	}

	rollups := make(map[string][]core.BalancePoint, len(accounts))
	for _, ga := range accounts {
		snaps, err := s.snapshots.AccountSnapshotsInRange(ctx, ga.AccountID, start, end)
		if err != nil {
			return nil, fmt.Errorf("load snapshots for account %s: %w", ga.AccountID, err)
		}
		rollups[ga.AccountID] = core.Rollup(core.DailyNetWorth(snaps), g)
	}

	return core.GoalSeries(goal, accounts, rollups), nil
}
