// Package backend selects and wires a storage backend from configuration.
package backend

import (
	"fmt"

	"github.com/ngacho/cashstate/internal/config"
	"github.com/ngacho/cashstate/internal/store"
	"github.com/ngacho/cashstate/internal/store/memory"
	"github.com/ngacho/cashstate/internal/store/sqlite"
)

type Type string

const (
	Memory Type = "memory"
	SQLite Type = "sqlite"
)

func (t Type) IsValid() bool {
	return t == Memory || t == SQLite
}

// Stores bundles every port served by one backend.
type Stores struct {
	Transactions store.TransactionStore
	Budgets      store.BudgetStore
	Snapshots    store.SnapshotStore
	Accounts     store.AccountStore
	Goals        store.GoalStore
	Categories   store.CategoryStore
	Rules        store.RuleStore
}

// CleanupFunc releases backend resources. Always safe to call once.
type CleanupFunc func() error

// New builds the stores for the configured backend.
func New(cfg *config.Config) (*Stores, CleanupFunc, error) {
	switch Type(cfg.DataBackend) {
	case Memory:
		s := memory.New()
		return &Stores{
			Transactions: s,
			Budgets:      s,
			Snapshots:    s,
			Accounts:     s,
			Goals:        s,
			Categories:   s,
			Rules:        s,
		}, func() error { return nil }, nil

	case SQLite:
		repo, err := sqlite.NewRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("create sqlite backend: %w", err)
		}
		return &Stores{
			Transactions: repo,
			Budgets:      repo,
			Snapshots:    repo,
			Accounts:     repo,
			Goals:        repo,
			Categories:   repo,
			Rules:        repo,
		}, repo.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown backend type %q", cfg.DataBackend)
	}
}
