package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ngacho/cashstate/internal/core"
	"github.com/ngacho/cashstate/internal/store/memory"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestStoreDailyBalancesIdempotent(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	svc := NewSnapshotService(s, s)

	s.PutAccount(core.Account{ID: "a1", UserID: "u1", Name: "Checking", Balance: 1000})
	s.PutAccount(core.Account{ID: "a2", UserID: "u1", Name: "Savings", Balance: 5000})

	n, err := svc.StoreDailyBalances(ctx, "u1", day(2025, 3, 10))
	if err != nil {
		t.Fatalf("StoreDailyBalances: %v", err)
	}
	if n != 2 {
		t.Errorf("snapshotted %d accounts, want 2", n)
	}

	// Balance moved during the day; the re-run overwrites.
	s.PutAccount(core.Account{ID: "a1", UserID: "u1", Name: "Checking", Balance: 900})
	if _, err := svc.StoreDailyBalances(ctx, "u1", day(2025, 3, 10)); err != nil {
		t.Fatalf("StoreDailyBalances rerun: %v", err)
	}

	snaps, err := s.SnapshotsInRange(ctx, "u1", day(2025, 3, 10), day(2025, 3, 10))
	if err != nil {
		t.Fatalf("SnapshotsInRange: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("got %d snapshots, want 2", len(snaps))
	}
	for _, snap := range snaps {
		if snap.AccountID == "a1" && snap.Balance != 900 {
			t.Errorf("a1 balance = %v, want 900", snap.Balance)
		}
	}
}

func TestNetWorthSeriesSumsAccounts(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	svc := NewSnapshotService(s, s)

	s.PutAccount(core.Account{ID: "a1", UserID: "u1"})
	s.PutAccount(core.Account{ID: "a2", UserID: "u1"})
	for d := 1; d <= 4; d++ {
		_ = s.UpsertSnapshot(ctx, "a1", day(2025, 3, d), 1000)
		_ = s.UpsertSnapshot(ctx, "a2", day(2025, 3, d), float64(d*100))
	}

	series, err := svc.NetWorthSeries(ctx, "u1", day(2025, 3, 1), day(2025, 3, 4), core.GranularityDay)
	if err != nil {
		t.Fatalf("NetWorthSeries: %v", err)
	}
	if len(series) != 4 {
		t.Fatalf("got %d points, want 4", len(series))
	}
	if series[0].Balance != 1100 || series[3].Balance != 1400 {
		t.Errorf("series = %+v", series)
	}
}

func TestNetWorthSeriesInsufficientCoverage(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	svc := NewSnapshotService(s, s)

	s.PutAccount(core.Account{ID: "a1", UserID: "u1"})
	// 2 snapshotted days over a 10-day window: 20% coverage.
	_ = s.UpsertSnapshot(ctx, "a1", day(2025, 3, 2), 100)
	_ = s.UpsertSnapshot(ctx, "a1", day(2025, 3, 5), 120)

	_, err := svc.NetWorthSeries(ctx, "u1", day(2025, 3, 1), day(2025, 3, 10), core.GranularityDay)
	var insufficient *core.InsufficientDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("error = %v, want InsufficientDataError", err)
	}
	if insufficient.CoveragePct != 20 {
		t.Errorf("CoveragePct = %v, want 20", insufficient.CoveragePct)
	}
	if !insufficient.MinDate.Equal(day(2025, 3, 2)) || !insufficient.MaxDate.Equal(day(2025, 3, 5)) {
		t.Errorf("bounds = %v..%v, want 03-02..03-05", insufficient.MinDate, insufficient.MaxDate)
	}
}

func TestNetWorthSeriesWeeklyTakesLastBalance(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	svc := NewSnapshotService(s, s)

	s.PutAccount(core.Account{ID: "a1", UserID: "u1"})
	// 2025-03-03 is a Monday. Full week of snapshots, rising daily.
	for d := 3; d <= 9; d++ {
		_ = s.UpsertSnapshot(ctx, "a1", day(2025, 3, d), float64(d*10))
	}

	series, err := svc.NetWorthSeries(ctx, "u1", day(2025, 3, 3), day(2025, 3, 9), core.GranularityWeek)
	if err != nil {
		t.Fatalf("NetWorthSeries: %v", err)
	}
	if len(series) != 1 {
		t.Fatalf("got %d points, want 1", len(series))
	}
	if !series[0].Date.Equal(day(2025, 3, 3)) {
		t.Errorf("period key = %v, want Monday 2025-03-03", series[0].Date)
	}
	if series[0].Balance != 90 {
		t.Errorf("Balance = %v, want 90 (Sunday's snapshot)", series[0].Balance)
	}
}

func TestSeriesInvalidArguments(t *testing.T) {
	s := memory.New()
	svc := NewSnapshotService(s, s)
	ctx := context.Background()

	if _, err := svc.NetWorthSeries(ctx, "u1", day(2025, 3, 1), day(2025, 3, 9), "hour"); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("bad granularity error = %v, want ErrInvalidInput", err)
	}
	if _, err := svc.NetWorthSeries(ctx, "u1", day(2025, 3, 9), day(2025, 3, 1), core.GranularityDay); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("inverted range error = %v, want ErrInvalidInput", err)
	}
}

func TestAccountSeries(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	svc := NewSnapshotService(s, s)

	s.PutAccount(core.Account{ID: "a1", UserID: "u1"})
	s.PutAccount(core.Account{ID: "a2", UserID: "u1"})
	for d := 1; d <= 4; d++ {
		_ = s.UpsertSnapshot(ctx, "a1", day(2025, 3, d), 100)
		_ = s.UpsertSnapshot(ctx, "a2", day(2025, 3, d), 999)
	}

	series, err := svc.AccountSeries(ctx, "a1", day(2025, 3, 1), day(2025, 3, 4), core.GranularityDay)
	if err != nil {
		t.Fatalf("AccountSeries: %v", err)
	}
	for _, p := range series {
		if p.Balance != 100 {
			t.Errorf("point %v includes other accounts: %v", p.Date, p.Balance)
		}
	}
}
