package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	SourceRule          CategorizationSource = "rule"
	SourceAI            CategorizationSource = "ai"
	SourceManual        CategorizationSource = "manual"
	SourceUncategorized CategorizationSource = "uncategorized"
)

const (
	MatchPayee       MatchField = "payee"
	MatchDescription MatchField = "description"
	MatchMemo        MatchField = "memo"
)

const (
	GoalSavings     GoalType = "savings"
	GoalDebtPayment GoalType = "debt_payment"
)

const (
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
	GranularityYear  Granularity = "year"
)

type (
	// CategorizationSource records the provenance of a transaction's category
	// assignment.
	CategorizationSource string

	// MatchField names the transaction field a categorization rule inspects.
	MatchField string

	GoalType string

	// Granularity is the roll-up resolution applied to a balance time series.
	Granularity string

	// Transaction is one signed-amount ledger entry. Expenses are negative.
	// Immutable except for the categorization fields.
	Transaction struct {
		ID            string
		UserID        string
		AccountID     string
		Posted        time.Time
		Amount        float64
		Currency      string
		Description   string
		Payee         string
		Memo          string
		CategoryID    string // empty = uncategorized
		SubcategoryID string
		Source        CategorizationSource
	}

	Category struct {
		ID       string
		UserID   string // empty for system-seeded categories
		Name     string
		Emoji    string
		IsSystem bool
	}

	// Subcategory belongs to exactly one category.
	Subcategory struct {
		ID         string
		CategoryID string
		Name       string
	}

	Account struct {
		ID      string
		UserID  string
		Name    string
		Balance float64
	}

	// Budget is a named collection of line items. At most one budget per user
	// carries IsDefault; the store enforces this by clearing the prior default
	// on write.
	Budget struct {
		ID        string
		UserID    string
		Name      string
		IsDefault bool
		Emoji     string
		Color     string
		CreatedAt time.Time
	}

	// LineItem is one budgeted amount scoped to either a category or a
	// specific subcategory. SubcategoryID empty means category-level.
	LineItem struct {
		ID            string
		BudgetID      string
		CategoryID    string
		SubcategoryID string
		Amount        float64
	}

	// MonthOverride maps (user, month) to a budget that replaces the default
	// for that month only. Month is normalized to the first day, UTC.
	MonthOverride struct {
		ID        string
		UserID    string
		BudgetID  string
		Month     time.Time
		CreatedAt time.Time
	}

	// BalanceSnapshot is one account's balance on one calendar day.
	BalanceSnapshot struct {
		AccountID string
		Date      time.Time
		Balance   float64
	}

	Goal struct {
		ID           string
		UserID       string
		Name         string
		Description  string
		Type         GoalType
		TargetAmount float64
		TargetDate   *time.Time
		IsCompleted  bool
		CreatedAt    time.Time
		UpdatedAt    time.Time
	}

	// GoalAccount links a goal to an account. AllocationPercentage is the
	// share of the account balance attributed to the goal; debt goals are
	// always recorded at 100 and capture StartingBalance at attach time.
	GoalAccount struct {
		ID                   string
		GoalID               string
		AccountID            string
		AllocationPercentage float64
		StartingBalance      *float64
		CurrentBalance       float64
	}

	// Rule is a user categorization rule: a case-insensitive substring match
	// on one transaction field.
	Rule struct {
		ID            string
		UserID        string
		MatchField    MatchField
		MatchValue    string
		CategoryID    string
		SubcategoryID string
		CreatedAt     time.Time
	}
)

// Field returns the transaction field value named by f, or "" for an unknown
// field.
func (t Transaction) Field(f MatchField) string {
	switch f {
	case MatchPayee:
		return t.Payee
	case MatchDescription:
		return t.Description
	case MatchMemo:
		return t.Memo
	default:
		return ""
	}
}

// IsExpense reports whether the transaction counts toward spending totals.
func (t Transaction) IsExpense() bool {
	return t.Amount < 0
}

func (f MatchField) Valid() bool {
	switch f {
	case MatchPayee, MatchDescription, MatchMemo:
		return true
	default:
		return false
	}
}

func (g GoalType) Valid() bool {
	return g == GoalSavings || g == GoalDebtPayment
}

func (g Granularity) Valid() bool {
	switch g {
	case GranularityDay, GranularityWeek, GranularityMonth, GranularityYear:
		return true
	default:
		return false
	}
}

func (g Goal) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return fmt.Errorf("%w: goal name is empty", ErrInvalidInput)
	}
	if !g.Type.Valid() {
		return fmt.Errorf("%w: unknown goal type %q", ErrInvalidInput, g.Type)
	}
	if g.TargetAmount <= 0 {
		return fmt.Errorf("%w: target amount must be positive, got %.2f", ErrInvalidInput, g.TargetAmount)
	}
	return nil
}

func (r Rule) Validate() error {
	if !r.MatchField.Valid() {
		return fmt.Errorf("%w: match field must be one of payee, description, memo", ErrInvalidInput)
	}
	if strings.TrimSpace(r.MatchValue) == "" {
		return fmt.Errorf("%w: match value is empty", ErrInvalidInput)
	}
	if r.CategoryID == "" {
		return fmt.Errorf("%w: rule has no target category", ErrInvalidInput)
	}
	return nil
}

// MonthStart normalizes (year, month) to the canonical period key: the first
// day of the month at midnight UTC.
func MonthStart(year, month int) (time.Time, error) {
	if month < 1 || month > 12 {
		return time.Time{}, fmt.Errorf("%w: month %d out of range [1,12]", ErrInvalidInput, month)
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), nil
}

// MonthEnd returns the exclusive upper bound of the month starting at
// monthStart: the first day of the following month. December rolls over to
// January of the next year.
func MonthEnd(monthStart time.Time) time.Time {
	return monthStart.AddDate(0, 1, 0)
}

// DateOnly truncates t to midnight UTC so snapshots on the same calendar day
// compare equal regardless of clock time.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
