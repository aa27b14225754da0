// Package store declares the persistence ports the engine depends on.
// Adapters live in the sqlite and memory subpackages.
package store

import (
	"context"
	"time"

	"github.com/ngacho/cashstate/internal/core"
)

type (
	// TransactionStore reads ledger transactions and writes categorization
	// fields. Transactions are otherwise immutable.
	TransactionStore interface {
		// TransactionsInRange returns the user's transactions with
		// start <= posted < end. An empty accountFilter means all accounts.
		TransactionsInRange(ctx context.Context, userID string, start, end time.Time, accountFilter []string) ([]core.Transaction, error)

		Transaction(ctx context.Context, id string) (core.Transaction, error)

		// RecentTransactions returns up to limit transactions, newest first.
		// When uncategorizedOnly is set, only transactions with no category
		// are returned.
		RecentTransactions(ctx context.Context, userID string, limit int, uncategorizedOnly bool) ([]core.Transaction, error)

		// UpdateCategorization sets the categorization fields atomically for
		// one transaction and returns the updated row, or core.ErrNotFound.
		UpdateCategorization(ctx context.Context, transactionID, categoryID, subcategoryID string, source core.CategorizationSource) (core.Transaction, error)

		InsertTransactions(ctx context.Context, txns []core.Transaction) error
	}

	// BudgetStore persists budgets, line items, and month overrides. The
	// default-uniqueness and line-item-uniqueness invariants are enforced
	// here, at the storage boundary.
	BudgetStore interface {
		Budget(ctx context.Context, id string) (core.Budget, error)
		BudgetsForUser(ctx context.Context, userID string) ([]core.Budget, error)

		// DefaultBudget returns the user's default budget or core.ErrNotFound.
		DefaultBudget(ctx context.Context, userID string) (core.Budget, error)

		// CreateBudget stores a budget. When IsDefault is set, any prior
		// default for the user is cleared in the same transaction.
		CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error)

		// SetDefaultBudget marks budgetID as the user's default, clearing the
		// previous one (clear-then-set).
		SetDefaultBudget(ctx context.Context, userID, budgetID string) error

		DeleteBudget(ctx context.Context, id string) error

		LineItems(ctx context.Context, budgetID string) ([]core.LineItem, error)

		// CreateLineItem rejects a duplicate (budget, category) or
		// (budget, subcategory) pair with core.ErrConflict.
		CreateLineItem(ctx context.Context, item core.LineItem) (core.LineItem, error)
		UpdateLineItemAmount(ctx context.Context, itemID string, amount float64) error
		DeleteLineItem(ctx context.Context, itemID string) error

		// MonthOverride returns the override for (user, month) or
		// core.ErrNotFound. month must be the first day of the month.
		MonthOverride(ctx context.Context, userID string, month time.Time) (core.MonthOverride, error)

		// SetMonthOverride upserts the override for (user, month).
		SetMonthOverride(ctx context.Context, o core.MonthOverride) (core.MonthOverride, error)
		DeleteMonthOverride(ctx context.Context, id string) error

		// BudgetAccountIDs lists the account ids linked to a budget; an empty
		// result means the budget covers all accounts.
		BudgetAccountIDs(ctx context.Context, budgetID string) ([]string, error)
	}

	// SnapshotStore persists daily balance snapshots. Upsert semantics per
	// (account, date): re-snapshotting the same day overwrites, so a daily
	// re-run is always safe.
	SnapshotStore interface {
		UpsertSnapshot(ctx context.Context, accountID string, day time.Time, balance float64) error

		// SnapshotsInRange returns all snapshots for the user's accounts with
		// start <= date <= end (inclusive, calendar days).
		SnapshotsInRange(ctx context.Context, userID string, start, end time.Time) ([]core.BalanceSnapshot, error)

		// AccountSnapshotsInRange is the single-account variant.
		AccountSnapshotsInRange(ctx context.Context, accountID string, start, end time.Time) ([]core.BalanceSnapshot, error)
	}

	AccountStore interface {
		Account(ctx context.Context, id string) (core.Account, error)
		AccountsForUser(ctx context.Context, userID string) ([]core.Account, error)

		// UserIDs lists all users with at least one account, for the daily
		// snapshot sweep.
		UserIDs(ctx context.Context) ([]string, error)
	}

	GoalStore interface {
		Goal(ctx context.Context, id string) (core.Goal, error)
		GoalsForUser(ctx context.Context, userID string) ([]core.Goal, error)
		CreateGoal(ctx context.Context, g core.Goal) (core.Goal, error)
		UpdateGoal(ctx context.Context, g core.Goal) (core.Goal, error)
		DeleteGoal(ctx context.Context, id string) error

		GoalAccounts(ctx context.Context, goalID string) ([]core.GoalAccount, error)
		CreateGoalAccount(ctx context.Context, ga core.GoalAccount) (core.GoalAccount, error)
		DeleteGoalAccounts(ctx context.Context, goalID string) error

		// TotalAllocationForAccount sums the allocation percentages of all
		// savings goals referencing the account, excluding excludeGoalID when
		// non-empty (used when editing a goal's own allocations).
		TotalAllocationForAccount(ctx context.Context, accountID, excludeGoalID string) (float64, error)
	}

	CategoryStore interface {
		CategoriesForUser(ctx context.Context, userID string) ([]core.Category, error)
		Subcategories(ctx context.Context) ([]core.Subcategory, error)
	}

	// RuleStore lists categorization rules in evaluation order:
	// most-recently-created first. The pipeline applies them in the order
	// the store returns them.
	RuleStore interface {
		RulesForUser(ctx context.Context, userID string) ([]core.Rule, error)
		CreateRule(ctx context.Context, r core.Rule) (core.Rule, error)
		DeleteRule(ctx context.Context, id string) error
	}
)
