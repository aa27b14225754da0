// Package memory is an in-process store implementing every port. It backs
// the memory data backend and doubles as the test fixture for the services.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ngacho/cashstate/internal/core"
)

// Store holds everything behind one mutex. Contention is irrelevant at the
// scale this backend is meant for.
type Store struct {
	mu sync.Mutex

	transactions map[string]core.Transaction
	budgets      map[string]core.Budget
	lineItems    map[string]core.LineItem
	overrides    map[string]core.MonthOverride
	budgetAccts  map[string][]string // budget id -> account ids
	snapshots    map[string]core.BalanceSnapshot
	accounts     map[string]core.Account
	goals        map[string]core.Goal
	goalAccounts map[string]core.GoalAccount
	rules        map[string]core.Rule
	categories   map[string]core.Category
	subcats      map[string]core.Subcategory
}

func New() *Store {
	return &Store{
		transactions: make(map[string]core.Transaction),
		budgets:      make(map[string]core.Budget),
		lineItems:    make(map[string]core.LineItem),
		overrides:    make(map[string]core.MonthOverride),
		budgetAccts:  make(map[string][]string),
		snapshots:    make(map[string]core.BalanceSnapshot),
		accounts:     make(map[string]core.Account),
		goals:        make(map[string]core.Goal),
		goalAccounts: make(map[string]core.GoalAccount),
		rules:        make(map[string]core.Rule),
		categories:   make(map[string]core.Category),
		subcats:      make(map[string]core.Subcategory),
	}
}

// --- TransactionStore ---

func (s *Store) TransactionsInRange(_ context.Context, userID string, start, end time.Time, accountFilter []string) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var filter map[string]struct{}
	if len(accountFilter) > 0 {
		filter = make(map[string]struct{}, len(accountFilter))
		for _, id := range accountFilter {
			filter[id] = struct{}{}
		}
	}

	var out []core.Transaction
	for _, t := range s.transactions {
		if t.UserID != userID {
			continue
		}
		if t.Posted.Before(start) || !t.Posted.Before(end) {
			continue
		}
		if filter != nil {
			if _, ok := filter[t.AccountID]; !ok {
				continue
			}
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Posted.Before(out[j].Posted) })
	return out, nil
}

func (s *Store) Transaction(_ context.Context, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transactions[id]
	if !ok {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	return t, nil
}

func (s *Store) RecentTransactions(_ context.Context, userID string, limit int, uncategorizedOnly bool) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.Transaction
	for _, t := range s.transactions {
		if t.UserID != userID {
			continue
		}
		if uncategorizedOnly && t.CategoryID != "" {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Posted.After(out[j].Posted) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) UpdateCategorization(_ context.Context, transactionID, categoryID, subcategoryID string, source core.CategorizationSource) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.transactions[transactionID]
	if !ok {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", transactionID, core.ErrNotFound)
	}
	t.CategoryID = categoryID
	t.SubcategoryID = subcategoryID
	t.Source = source
	s.transactions[transactionID] = t
	return t, nil
}

func (s *Store) InsertTransactions(_ context.Context, txns []core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range txns {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		if t.Source == "" {
			t.Source = core.SourceUncategorized
		}
		s.transactions[t.ID] = t
	}
	return nil
}

// --- BudgetStore ---

func (s *Store) Budget(_ context.Context, id string) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[id]
	if !ok {
		return core.Budget{}, fmt.Errorf("budget %s: %w", id, core.ErrNotFound)
	}
	return b, nil
}

func (s *Store) BudgetsForUser(_ context.Context, userID string) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Budget
	for _, b := range s.budgets {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) DefaultBudget(_ context.Context, userID string) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.budgets {
		if b.UserID == userID && b.IsDefault {
			return b, nil
		}
	}
	return core.Budget{}, fmt.Errorf("default budget for user %s: %w", userID, core.ErrNotFound)
}

func (s *Store) CreateBudget(_ context.Context, b core.Budget) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	if b.IsDefault {
		s.clearDefaultLocked(b.UserID)
	}
	s.budgets[b.ID] = b
	return b, nil
}

func (s *Store) SetDefaultBudget(_ context.Context, userID, budgetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[budgetID]
	if !ok || b.UserID != userID {
		return fmt.Errorf("budget %s: %w", budgetID, core.ErrNotFound)
	}
	s.clearDefaultLocked(userID)
	b.IsDefault = true
	s.budgets[budgetID] = b
	return nil
}

// clearDefaultLocked clears the prior default so at most one budget per user
// carries the flag. Caller holds the mutex.
func (s *Store) clearDefaultLocked(userID string) {
	for id, b := range s.budgets {
		if b.UserID == userID && b.IsDefault {
			b.IsDefault = false
			s.budgets[id] = b
		}
	}
}

func (s *Store) DeleteBudget(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.budgets[id]; !ok {
		return fmt.Errorf("budget %s: %w", id, core.ErrNotFound)
	}
	delete(s.budgets, id)
	for itemID, item := range s.lineItems {
		if item.BudgetID == id {
			delete(s.lineItems, itemID)
		}
	}
	for oID, o := range s.overrides {
		if o.BudgetID == id {
			delete(s.overrides, oID)
		}
	}
	delete(s.budgetAccts, id)
	return nil
}

func (s *Store) LineItems(_ context.Context, budgetID string) ([]core.LineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.LineItem
	for _, item := range s.lineItems {
		if item.BudgetID == budgetID {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CreateLineItem(_ context.Context, item core.LineItem) (core.LineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.lineItems {
		if existing.BudgetID != item.BudgetID {
			continue
		}
		// Duplicates are rejected, never silently merged.
		if item.SubcategoryID != "" && existing.SubcategoryID == item.SubcategoryID {
			return core.LineItem{}, fmt.Errorf("line item for subcategory %s: %w", item.SubcategoryID, core.ErrConflict)
		}
		if item.SubcategoryID == "" && existing.SubcategoryID == "" && existing.CategoryID == item.CategoryID {
			return core.LineItem{}, fmt.Errorf("line item for category %s: %w", item.CategoryID, core.ErrConflict)
		}
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	s.lineItems[item.ID] = item
	return item, nil
}

func (s *Store) UpdateLineItemAmount(_ context.Context, itemID string, amount float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.lineItems[itemID]
	if !ok {
		return fmt.Errorf("line item %s: %w", itemID, core.ErrNotFound)
	}
	item.Amount = amount
	s.lineItems[itemID] = item
	return nil
}

func (s *Store) DeleteLineItem(_ context.Context, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lineItems[itemID]; !ok {
		return fmt.Errorf("line item %s: %w", itemID, core.ErrNotFound)
	}
	delete(s.lineItems, itemID)
	return nil
}

func (s *Store) MonthOverride(_ context.Context, userID string, month time.Time) (core.MonthOverride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	month = core.DateOnly(month)
	for _, o := range s.overrides {
		if o.UserID == userID && o.Month.Equal(month) {
			return o, nil
		}
	}
	return core.MonthOverride{}, fmt.Errorf("override for %s: %w", month.Format("2006-01"), core.ErrNotFound)
}

func (s *Store) SetMonthOverride(_ context.Context, o core.MonthOverride) (core.MonthOverride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o.Month = core.DateOnly(o.Month)
	// At most one override per (user, month): replace in place.
	for id, existing := range s.overrides {
		if existing.UserID == o.UserID && existing.Month.Equal(o.Month) {
			o.ID = id
			o.CreatedAt = existing.CreatedAt
			s.overrides[id] = o
			return o, nil
		}
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	s.overrides[o.ID] = o
	return o, nil
}

func (s *Store) DeleteMonthOverride(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.overrides[id]; !ok {
		return fmt.Errorf("override %s: %w", id, core.ErrNotFound)
	}
	delete(s.overrides, id)
	return nil
}

func (s *Store) BudgetAccountIDs(_ context.Context, budgetID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.budgetAccts[budgetID]...), nil
}

// LinkBudgetAccount scopes a budget to an account. Not part of a port; used
// by fixtures and the backend seeding path.
func (s *Store) LinkBudgetAccount(budgetID, accountID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budgetAccts[budgetID] = append(s.budgetAccts[budgetID], accountID)
}

// --- SnapshotStore ---

func snapshotKey(accountID string, day time.Time) string {
	return accountID + "|" + day.Format("2006-01-02")
}

func (s *Store) UpsertSnapshot(_ context.Context, accountID string, day time.Time, balance float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	day = core.DateOnly(day)
	s.snapshots[snapshotKey(accountID, day)] = core.BalanceSnapshot{
		AccountID: accountID,
		Date:      day,
		Balance:   balance,
	}
	return nil
}

func (s *Store) SnapshotsInRange(_ context.Context, userID string, start, end time.Time) ([]core.BalanceSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	owned := make(map[string]struct{})
	for id, a := range s.accounts {
		if a.UserID == userID {
			owned[id] = struct{}{}
		}
	}

	var out []core.BalanceSnapshot
	for _, snap := range s.snapshots {
		if _, ok := owned[snap.AccountID]; !ok {
			continue
		}
		if snap.Date.Before(core.DateOnly(start)) || snap.Date.After(core.DateOnly(end)) {
			continue
		}
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) AccountSnapshotsInRange(_ context.Context, accountID string, start, end time.Time) ([]core.BalanceSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.BalanceSnapshot
	for _, snap := range s.snapshots {
		if snap.AccountID != accountID {
			continue
		}
		if snap.Date.Before(core.DateOnly(start)) || snap.Date.After(core.DateOnly(end)) {
			continue
		}
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// --- AccountStore ---

func (s *Store) Account(_ context.Context, id string) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return core.Account{}, fmt.Errorf("account %s: %w", id, core.ErrNotFound)
	}
	return a, nil
}

func (s *Store) AccountsForUser(_ context.Context, userID string) ([]core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Account
	for _, a := range s.accounts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UserIDs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{})
	var out []string
	for _, a := range s.accounts {
		if _, ok := seen[a.UserID]; ok {
			continue
		}
		seen[a.UserID] = struct{}{}
		out = append(out, a.UserID)
	}
	sort.Strings(out)
	return out, nil
}

// PutAccount inserts or replaces an account. Fixture helper.
func (s *Store) PutAccount(a core.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	s.accounts[a.ID] = a
}

// --- GoalStore ---

func (s *Store) Goal(_ context.Context, id string) (core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[id]
	if !ok {
		return core.Goal{}, fmt.Errorf("goal %s: %w", id, core.ErrNotFound)
	}
	return g, nil
}

func (s *Store) GoalsForUser(_ context.Context, userID string) ([]core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Goal
	for _, g := range s.goals {
		if g.UserID == userID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) CreateGoal(_ context.Context, g core.Goal) (core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	}
	g.UpdatedAt = now
	s.goals[g.ID] = g
	return g, nil
}

func (s *Store) UpdateGoal(_ context.Context, g core.Goal) (core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.goals[g.ID]; !ok {
		return core.Goal{}, fmt.Errorf("goal %s: %w", g.ID, core.ErrNotFound)
	}
	g.UpdatedAt = time.Now().UTC()
	s.goals[g.ID] = g
	return g, nil
}

func (s *Store) DeleteGoal(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.goals[id]; !ok {
		return fmt.Errorf("goal %s: %w", id, core.ErrNotFound)
	}
	delete(s.goals, id)
	for gaID, ga := range s.goalAccounts {
		if ga.GoalID == id {
			delete(s.goalAccounts, gaID)
		}
	}
	return nil
}

func (s *Store) GoalAccounts(_ context.Context, goalID string) ([]core.GoalAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.GoalAccount
	for _, ga := range s.goalAccounts {
		if ga.GoalID != goalID {
			continue
		}
		// Current balance is a live read from the account, not a stored copy.
		if a, ok := s.accounts[ga.AccountID]; ok {
			ga.CurrentBalance = a.Balance
		}
		out = append(out, ga)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out, nil
}

func (s *Store) CreateGoalAccount(_ context.Context, ga core.GoalAccount) (core.GoalAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ga.ID == "" {
		ga.ID = uuid.NewString()
	}
	s.goalAccounts[ga.ID] = ga
	return ga, nil
}

func (s *Store) DeleteGoalAccounts(_ context.Context, goalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ga := range s.goalAccounts {
		if ga.GoalID == goalID {
			delete(s.goalAccounts, id)
		}
	}
	return nil
}

func (s *Store) TotalAllocationForAccount(_ context.Context, accountID, excludeGoalID string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total float64
	for _, ga := range s.goalAccounts {
		if ga.AccountID != accountID {
			continue
		}
		if excludeGoalID != "" && ga.GoalID == excludeGoalID {
			continue
		}
		// Only savings goals count toward the cap.
		if g, ok := s.goals[ga.GoalID]; ok && g.Type == core.GoalSavings {
			total += ga.AllocationPercentage
		}
	}
	return total, nil
}

// --- CategoryStore ---

func (s *Store) CategoriesForUser(_ context.Context, userID string) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Category
	for _, c := range s.categories {
		if c.IsSystem || c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) Subcategories(_ context.Context) ([]core.Subcategory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Subcategory
	for _, sc := range s.subcats {
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// PutCategory and PutSubcategory are fixture helpers.
func (s *Store) PutCategory(c core.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	s.categories[c.ID] = c
}

func (s *Store) PutSubcategory(sc core.Subcategory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sc.ID == "" {
		sc.ID = uuid.NewString()
	}
	s.subcats[sc.ID] = sc
}

// --- RuleStore ---

func (s *Store) RulesForUser(_ context.Context, userID string) ([]core.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Rule
	for _, r := range s.rules {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	// Most-recently-created first: the store owns evaluation order.
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) CreateRule(_ context.Context, r core.Rule) (core.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := r.Validate(); err != nil {
		return core.Rule{}, err
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	s.rules[r.ID] = r
	return r, nil
}

func (s *Store) DeleteRule(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[id]; !ok {
		return fmt.Errorf("rule %s: %w", id, core.ErrNotFound)
	}
	delete(s.rules, id)
	return nil
}
