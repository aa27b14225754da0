// Package sqlite is the durable store adapter, backed by modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ngacho/cashstate/internal/core"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// isUniqueViolation reports whether err is a sqlite unique-constraint failure.
// modernc.org/sqlite exposes no typed error for this, so we match the message.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// --- TransactionStore ---

const transactionColumns = `id, user_id, account_id, posted, amount, currency,
	description, payee, memo, category_id, subcategory_id, source`

func scanTransaction(row interface{ Scan(...any) error }) (core.Transaction, error) {
	var t core.Transaction
	var source string
	err := row.Scan(&t.ID, &t.UserID, &t.AccountID, &t.Posted, &t.Amount, &t.Currency,
		&t.Description, &t.Payee, &t.Memo, &t.CategoryID, &t.SubcategoryID, &source)
	t.Source = core.CategorizationSource(source)
	return t, err
}

func (r *Repository) TransactionsInRange(ctx context.Context, userID string, start, end time.Time, accountFilter []string) ([]core.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE user_id = ? AND posted >= ? AND posted < ?`
	args := []any{userID, start, end}
	if len(accountFilter) > 0 {
		query += ` AND account_id IN (?` + strings.Repeat(",?", len(accountFilter)-1) + `)`
		for _, id := range accountFilter {
			args = append(args, id)
		}
	}
	query += ` ORDER BY posted`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repository) Transaction(ctx context.Context, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

func (r *Repository) RecentTransactions(ctx context.Context, userID string, limit int, uncategorizedOnly bool) ([]core.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = ?`
	args := []any{userID}
	if uncategorizedOnly {
		query += ` AND category_id = ''`
	}
	query += ` ORDER BY posted DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repository) UpdateCategorization(ctx context.Context, transactionID, categoryID, subcategoryID string, source core.CategorizationSource) (core.Transaction, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE transactions
		SET category_id = ?, subcategory_id = ?, source = ?
		WHERE id = ?`, categoryID, subcategoryID, string(source), transactionID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update categorization: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", transactionID, core.ErrNotFound)
	}
	return r.Transaction(ctx, transactionID)
}

func (r *Repository) InsertTransactions(ctx context.Context, txns []core.Transaction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range txns {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		if t.Source == "" {
			t.Source = core.SourceUncategorized
		}
		if _, err := stmt.ExecContext(ctx, t.ID, t.UserID, t.AccountID, t.Posted, t.Amount,
			t.Currency, t.Description, t.Payee, t.Memo, t.CategoryID, t.SubcategoryID, string(t.Source)); err != nil {
			return fmt.Errorf("insert transaction %s: %w", t.ID, err)
		}
	}
	return tx.Commit()
}

// --- BudgetStore ---

const budgetColumns = `id, user_id, name, is_default, emoji, color, created_at`

func scanBudget(row interface{ Scan(...any) error }) (core.Budget, error) {
	var b core.Budget
	err := row.Scan(&b.ID, &b.UserID, &b.Name, &b.IsDefault, &b.Emoji, &b.Color, &b.CreatedAt)
	return b, err
}

func (r *Repository) Budget(ctx context.Context, id string) (core.Budget, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE id = ?`, id)
	b, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, fmt.Errorf("budget %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget: %w", err)
	}
	return b, nil
}

func (r *Repository) BudgetsForUser(ctx context.Context, userID string) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+budgetColumns+` FROM budgets
		WHERE user_id = ? ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("query budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *Repository) DefaultBudget(ctx context.Context, userID string) (core.Budget, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+budgetColumns+` FROM budgets
		WHERE user_id = ? AND is_default = 1`, userID)
	b, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, fmt.Errorf("default budget for user %s: %w", userID, core.ErrNotFound)
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("get default budget: %w", err)
	}
	return b, nil
}

func (r *Repository) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Budget{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if b.IsDefault {
		if _, err := tx.ExecContext(ctx, `UPDATE budgets SET is_default = 0 WHERE user_id = ?`, b.UserID); err != nil {
			return core.Budget{}, fmt.Errorf("clear prior default: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO budgets (`+budgetColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.UserID, b.Name, b.IsDefault, b.Emoji, b.Color, b.CreatedAt); err != nil {
		return core.Budget{}, fmt.Errorf("insert budget: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return core.Budget{}, fmt.Errorf("commit: %w", err)
	}
	return b, nil
}

func (r *Repository) SetDefaultBudget(ctx context.Context, userID, budgetID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// Clear-then-set inside one transaction keeps at most one default visible.
	if _, err := tx.ExecContext(ctx, `UPDATE budgets SET is_default = 0 WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear prior default: %w", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE budgets SET is_default = 1
		WHERE id = ? AND user_id = ?`, budgetID, userID)
	if err != nil {
		return fmt.Errorf("set default: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("budget %s: %w", budgetID, core.ErrNotFound)
	}
	return tx.Commit()
}

func (r *Repository) DeleteBudget(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("budget %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (r *Repository) LineItems(ctx context.Context, budgetID string) ([]core.LineItem, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, budget_id, category_id, subcategory_id, amount
		FROM budget_line_items WHERE budget_id = ? ORDER BY id`, budgetID)
	if err != nil {
		return nil, fmt.Errorf("query line items: %w", err)
	}
	defer rows.Close()

	var out []core.LineItem
	for rows.Next() {
		var item core.LineItem
		if err := rows.Scan(&item.ID, &item.BudgetID, &item.CategoryID, &item.SubcategoryID, &item.Amount); err != nil {
			return nil, fmt.Errorf("scan line item: %w", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *Repository) CreateLineItem(ctx context.Context, item core.LineItem) (core.LineItem, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO budget_line_items
		(id, budget_id, category_id, subcategory_id, amount)
		VALUES (?, ?, ?, ?, ?)`,
		item.ID, item.BudgetID, item.CategoryID, item.SubcategoryID, item.Amount)
	if isUniqueViolation(err) {
		return core.LineItem{}, fmt.Errorf("line item for category %s: %w", item.CategoryID, core.ErrConflict)
	}
	if err != nil {
		return core.LineItem{}, fmt.Errorf("insert line item: %w", err)
	}
	return item, nil
}

func (r *Repository) UpdateLineItemAmount(ctx context.Context, itemID string, amount float64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE budget_line_items SET amount = ? WHERE id = ?`, amount, itemID)
	if err != nil {
		return fmt.Errorf("update line item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("line item %s: %w", itemID, core.ErrNotFound)
	}
	return nil
}

func (r *Repository) DeleteLineItem(ctx context.Context, itemID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM budget_line_items WHERE id = ?`, itemID)
	if err != nil {
		return fmt.Errorf("delete line item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("line item %s: %w", itemID, core.ErrNotFound)
	}
	return nil
}

func (r *Repository) MonthOverride(ctx context.Context, userID string, month time.Time) (core.MonthOverride, error) {
	month = core.DateOnly(month)
	var o core.MonthOverride
	err := r.db.QueryRowContext(ctx, `SELECT id, user_id, budget_id, month, created_at
		FROM budget_month_overrides WHERE user_id = ? AND month = ?`, userID, month).
		Scan(&o.ID, &o.UserID, &o.BudgetID, &o.Month, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.MonthOverride{}, fmt.Errorf("override for %s: %w", month.Format("2006-01"), core.ErrNotFound)
	}
	if err != nil {
		return core.MonthOverride{}, fmt.Errorf("get month override: %w", err)
	}
	o.Month = core.DateOnly(o.Month)
	return o, nil
}

func (r *Repository) SetMonthOverride(ctx context.Context, o core.MonthOverride) (core.MonthOverride, error) {
	o.Month = core.DateOnly(o.Month)
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO budget_month_overrides
		(id, user_id, budget_id, month, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, month) DO UPDATE SET budget_id = excluded.budget_id`,
		o.ID, o.UserID, o.BudgetID, o.Month, o.CreatedAt)
	if err != nil {
		return core.MonthOverride{}, fmt.Errorf("upsert month override: %w", err)
	}
	return r.MonthOverride(ctx, o.UserID, o.Month)
}

func (r *Repository) DeleteMonthOverride(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM budget_month_overrides WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete month override: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("override %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (r *Repository) BudgetAccountIDs(ctx context.Context, budgetID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT account_id FROM budget_accounts
		WHERE budget_id = ? ORDER BY account_id`, budgetID)
	if err != nil {
		return nil, fmt.Errorf("query budget accounts: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan budget account: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// --- SnapshotStore ---

func (r *Repository) UpsertSnapshot(ctx context.Context, accountID string, day time.Time, balance float64) error {
	day = core.DateOnly(day)
	_, err := r.db.ExecContext(ctx, `INSERT INTO balance_snapshots (account_id, date, balance)
		VALUES (?, ?, ?)
		ON CONFLICT (account_id, date) DO UPDATE SET balance = excluded.balance`,
		accountID, day, balance)
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

func (r *Repository) SnapshotsInRange(ctx context.Context, userID string, start, end time.Time) ([]core.BalanceSnapshot, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT s.account_id, s.date, s.balance
		FROM balance_snapshots s
		JOIN accounts a ON a.id = s.account_id
		WHERE a.user_id = ? AND s.date >= ? AND s.date <= ?
		ORDER BY s.date`, userID, core.DateOnly(start), core.DateOnly(end))
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()
	return scanSnapshots(rows)
}

func (r *Repository) AccountSnapshotsInRange(ctx context.Context, accountID string, start, end time.Time) ([]core.BalanceSnapshot, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT account_id, date, balance
		FROM balance_snapshots
		WHERE account_id = ? AND date >= ? AND date <= ?
		ORDER BY date`, accountID, core.DateOnly(start), core.DateOnly(end))
	if err != nil {
		return nil, fmt.Errorf("query account snapshots: %w", err)
	}
	defer rows.Close()
	return scanSnapshots(rows)
}

func scanSnapshots(rows *sql.Rows) ([]core.BalanceSnapshot, error) {
	var out []core.BalanceSnapshot
	for rows.Next() {
		var s core.BalanceSnapshot
		if err := rows.Scan(&s.AccountID, &s.Date, &s.Balance); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		s.Date = core.DateOnly(s.Date)
		out = append(out, s)
	}
	return out, rows.Err()
}

// --- AccountStore ---

func (r *Repository) Account(ctx context.Context, id string) (core.Account, error) {
	var a core.Account
	err := r.db.QueryRowContext(ctx, `SELECT id, user_id, name, balance FROM accounts WHERE id = ?`, id).
		Scan(&a.ID, &a.UserID, &a.Name, &a.Balance)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, fmt.Errorf("account %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

func (r *Repository) AccountsForUser(ctx context.Context, userID string) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, user_id, name, balance FROM accounts
		WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var out []core.Account
	for rows.Next() {
		var a core.Account
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &a.Balance); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *Repository) UserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM accounts ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("query user ids: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// --- GoalStore ---

const goalColumns = `id, user_id, name, description, type, target_amount,
	target_date, is_completed, created_at, updated_at`

func scanGoal(row interface{ Scan(...any) error }) (core.Goal, error) {
	var g core.Goal
	var typ string
	var targetDate sql.NullTime
	err := row.Scan(&g.ID, &g.UserID, &g.Name, &g.Description, &typ, &g.TargetAmount,
		&targetDate, &g.IsCompleted, &g.CreatedAt, &g.UpdatedAt)
	g.Type = core.GoalType(typ)
	if targetDate.Valid {
		d := targetDate.Time
		g.TargetDate = &d
	}
	return g, err
}

func (r *Repository) Goal(ctx context.Context, id string) (core.Goal, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM goals WHERE id = ?`, id)
	g, err := scanGoal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Goal{}, fmt.Errorf("goal %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Goal{}, fmt.Errorf("get goal: %w", err)
	}
	return g, nil
}

func (r *Repository) GoalsForUser(ctx context.Context, userID string) ([]core.Goal, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+goalColumns+` FROM goals
		WHERE user_id = ? ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("query goals: %w", err)
	}
	defer rows.Close()

	var out []core.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *Repository) CreateGoal(ctx context.Context, g core.Goal) (core.Goal, error) {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	}
	g.UpdatedAt = now

	var targetDate any
	if g.TargetDate != nil {
		targetDate = *g.TargetDate
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO goals (`+goalColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.UserID, g.Name, g.Description, string(g.Type), g.TargetAmount,
		targetDate, g.IsCompleted, g.CreatedAt, g.UpdatedAt)
	if err != nil {
		return core.Goal{}, fmt.Errorf("insert goal: %w", err)
	}
	return g, nil
}

func (r *Repository) UpdateGoal(ctx context.Context, g core.Goal) (core.Goal, error) {
	g.UpdatedAt = time.Now().UTC()
	var targetDate any
	if g.TargetDate != nil {
		targetDate = *g.TargetDate
	}
	res, err := r.db.ExecContext(ctx, `UPDATE goals
		SET name = ?, description = ?, type = ?, target_amount = ?, target_date = ?,
		    is_completed = ?, updated_at = ?
		WHERE id = ?`,
		g.Name, g.Description, string(g.Type), g.TargetAmount, targetDate,
		g.IsCompleted, g.UpdatedAt, g.ID)
	if err != nil {
		return core.Goal{}, fmt.Errorf("update goal: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Goal{}, fmt.Errorf("goal %s: %w", g.ID, core.ErrNotFound)
	}
	return g, nil
}

func (r *Repository) DeleteGoal(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM goals WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("goal %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (r *Repository) GoalAccounts(ctx context.Context, goalID string) ([]core.GoalAccount, error) {
	// Current balance comes from the live account row, not a stored copy.
	rows, err := r.db.QueryContext(ctx, `SELECT ga.id, ga.goal_id, ga.account_id,
		ga.allocation_percentage, ga.starting_balance, a.balance
		FROM goal_accounts ga
		JOIN accounts a ON a.id = ga.account_id
		WHERE ga.goal_id = ? ORDER BY ga.account_id`, goalID)
	if err != nil {
		return nil, fmt.Errorf("query goal accounts: %w", err)
	}
	defer rows.Close()

	var out []core.GoalAccount
	for rows.Next() {
		var ga core.GoalAccount
		var starting sql.NullFloat64
		if err := rows.Scan(&ga.ID, &ga.GoalID, &ga.AccountID, &ga.AllocationPercentage,
			&starting, &ga.CurrentBalance); err != nil {
			return nil, fmt.Errorf("scan goal account: %w", err)
		}
		if starting.Valid {
			v := starting.Float64
			ga.StartingBalance = &v
		}
		out = append(out, ga)
	}
	return out, rows.Err()
}

func (r *Repository) CreateGoalAccount(ctx context.Context, ga core.GoalAccount) (core.GoalAccount, error) {
	if ga.ID == "" {
		ga.ID = uuid.NewString()
	}
	var starting any
	if ga.StartingBalance != nil {
		starting = *ga.StartingBalance
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO goal_accounts
		(id, goal_id, account_id, allocation_percentage, starting_balance)
		VALUES (?, ?, ?, ?, ?)`,
		ga.ID, ga.GoalID, ga.AccountID, ga.AllocationPercentage, starting)
	if err != nil {
		return core.GoalAccount{}, fmt.Errorf("insert goal account: %w", err)
	}
	return ga, nil
}

func (r *Repository) DeleteGoalAccounts(ctx context.Context, goalID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM goal_accounts WHERE goal_id = ?`, goalID); err != nil {
		return fmt.Errorf("delete goal accounts: %w", err)
	}
	return nil
}

func (r *Repository) TotalAllocationForAccount(ctx context.Context, accountID, excludeGoalID string) (float64, error) {
	var total float64
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(ga.allocation_percentage), 0)
		FROM goal_accounts ga
		JOIN goals g ON g.id = ga.goal_id
		WHERE ga.account_id = ? AND g.type = 'savings' AND ga.goal_id != ?`,
		accountID, excludeGoalID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum allocations: %w", err)
	}
	return total, nil
}

// --- CategoryStore ---

func (r *Repository) CategoriesForUser(ctx context.Context, userID string) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, user_id, name, emoji, is_system
		FROM categories WHERE is_system = 1 OR user_id = ? ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Emoji, &c.IsSystem); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) Subcategories(ctx context.Context) ([]core.Subcategory, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, category_id, name FROM subcategories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query subcategories: %w", err)
	}
	defer rows.Close()

	var out []core.Subcategory
	for rows.Next() {
		var s core.Subcategory
		if err := rows.Scan(&s.ID, &s.CategoryID, &s.Name); err != nil {
			return nil, fmt.Errorf("scan subcategory: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// --- RuleStore ---

func (r *Repository) RulesForUser(ctx context.Context, userID string) ([]core.Rule, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, user_id, match_field, match_value,
		category_id, subcategory_id, created_at
		FROM categorization_rules WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	var out []core.Rule
	for rows.Next() {
		var rule core.Rule
		var field string
		if err := rows.Scan(&rule.ID, &rule.UserID, &field, &rule.MatchValue,
			&rule.CategoryID, &rule.SubcategoryID, &rule.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rule.MatchField = core.MatchField(field)
		out = append(out, rule)
	}
	return out, rows.Err()
}

func (r *Repository) CreateRule(ctx context.Context, rule core.Rule) (core.Rule, error) {
	if err := rule.Validate(); err != nil {
		return core.Rule{}, err
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO categorization_rules
		(id, user_id, match_field, match_value, category_id, subcategory_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rule.ID, rule.UserID, string(rule.MatchField), rule.MatchValue,
		rule.CategoryID, rule.SubcategoryID, rule.CreatedAt)
	if err != nil {
		return core.Rule{}, fmt.Errorf("insert rule: %w", err)
	}
	return rule, nil
}

func (r *Repository) DeleteRule(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categorization_rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("rule %s: %w", id, core.ErrNotFound)
	}
	return nil
}
