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

// SnapshotService records daily balances and serves rolled-up balance series.
type SnapshotService struct {
	snapshots store.SnapshotStore
	accounts  store.AccountStore
}

func NewSnapshotService(snapshots store.SnapshotStore, accounts store.AccountStore) *SnapshotService {
	return &SnapshotService{snapshots: snapshots, accounts: accounts}
}

// StoreDailyBalances snapshots every account of the user for the given day.
// Re-running for the same day overwrites, so the sweep is idempotent.
func (s *SnapshotService) StoreDailyBalances(ctx context.Context, userID string, day time.Time) (int, error) {
	accounts, err := s.accounts.AccountsForUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("load accounts: %w", err)
	}

	for _, a := range accounts {
		if err := s.snapshots.UpsertSnapshot(ctx, a.ID, day, a.Balance); err != nil {
			return 0, fmt.Errorf("snapshot account %s: %w", a.ID, err)
		}
	}

	slog.InfoContext(ctx, "Daily balances stored",
		log.FieldComponent, log.ComponentSnapshot,
		log.FieldUserID, userID,
		"day", core.DateOnly(day).Format("2006-01-02"),
		"accounts", len(accounts))
	return len(accounts), nil
}

// NetWorthSeries returns the user's net worth over [start, end] at the given
// granularity. Ranges with less than half their days snapshotted fail with
// core.InsufficientDataError.
func (s *SnapshotService) NetWorthSeries(ctx context.Context, userID string, start, end time.Time, g core.Granularity) ([]core.BalancePoint, error) {
	if !g.Valid() {
		return nil, fmt.Errorf("%w: unknown granularity %q", core.ErrInvalidInput, g)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end before start", core.ErrInvalidInput)
	}

	snaps, err := s.snapshots.SnapshotsInRange(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("load snapshots: %w", err)
	}
	if err := core.CheckSufficiency(snaps, start, end); err != nil {
		return nil, err
	}

	return core.Rollup(core.DailyNetWorth(snaps), g), nil
}

// AccountSeries is the single-account variant of NetWorthSeries.
func (s *SnapshotService) AccountSeries(ctx context.Context, accountID string, start, end time.Time, g core.Granularity) ([]core.BalancePoint, error) {
	if !g.Valid() {
		return nil, fmt.Errorf("%w: unknown granularity %q", core.ErrInvalidInput, g)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end before start", core.ErrInvalidInput)
	}

	snaps, err := s.snapshots.AccountSnapshotsInRange(ctx, accountID, start, end)
	if err != nil {
		return nil, fmt.Errorf("load account snapshots: %w", err)
	}
	if err := core.CheckSufficiency(snaps, start, end); err != nil {
		return nil, err
	}

	return core.Rollup(core.DailyNetWorth(snaps), g), nil
}
