// Package worker runs the background jobs: the daily balance sweep and
// queued categorization passes.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ngacho/cashstate/internal/amqp"
	"github.com/ngacho/cashstate/internal/core"
	"github.com/ngacho/cashstate/internal/log"
	"github.com/ngacho/cashstate/internal/services"
	"github.com/ngacho/cashstate/internal/store"
)

// Worker processes queued jobs and drives the daily snapshot sweep.
type Worker struct {
	accounts   store.AccountStore
	snapshots  *services.SnapshotService
	categorize *services.CategorizationService

	snapshotHour int // hour of day (UTC) for the sweep
	concurrency  int
}

func New(accounts store.AccountStore, snapshots *services.SnapshotService, categorize *services.CategorizationService, snapshotHour, concurrency int) *Worker {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Worker{
		accounts:     accounts,
		snapshots:    snapshots,
		categorize:   categorize,
		snapshotHour: snapshotHour,
		concurrency:  concurrency,
	}
}

// HandleJob dispatches one queued job.
func (w *Worker) HandleJob(ctx context.Context, job *amqp.Job) error {
	switch job.Kind {
	case amqp.KindSnapshot:
		day, err := time.Parse("2006-01-02", job.Snapshot.Date)
		if err != nil {
			return fmt.Errorf("parse snapshot date: %w", err)
		}
		_, err = w.snapshots.StoreDailyBalances(ctx, job.Snapshot.UserID, day)
		return err
	case amqp.KindCategorize:
		_, err := w.categorize.Categorize(ctx, job.Categorize.UserID, job.Categorize.TransactionIDs, job.Categorize.Force)
		return err
	default:
		return fmt.Errorf("unknown job kind %q", job.Kind)
	}
}

// SnapshotAllUsers sweeps every user's accounts for the given day, a few
// users at a time. One user failing does not stop the others; the first
// error is reported after the sweep.
func (w *Worker) SnapshotAllUsers(ctx context.Context, day time.Time) error {
	userIDs, err := w.accounts.UserIDs(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)

	var failed atomic.Int64
	for _, userID := range userIDs {
		userID := userID
		g.Go(func() error {
			if _, err := w.snapshots.StoreDailyBalances(ctx, userID, day); err != nil {
				slog.ErrorContext(ctx, "Snapshot sweep failed for user",
					log.FieldComponent, log.ComponentWorker,
					log.FieldUserID, userID, log.FieldError, err)
				failed.Add(1)
				return nil // keep sweeping
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Snapshot sweep finished",
		log.FieldComponent, log.ComponentWorker,
		"day", core.DateOnly(day).Format("2006-01-02"),
		"users", len(userIDs),
		"failed", failed.Load())
	if n := failed.Load(); n > 0 {
		return fmt.Errorf("snapshot sweep: %d of %d users failed", n, len(userIDs))
	}
	return nil
}

// RunDailySweep blocks, snapshotting all users once per day at the
// configured hour, until ctx is cancelled.
func (w *Worker) RunDailySweep(ctx context.Context) error {
	for {
		next := nextRun(time.Now().UTC(), w.snapshotHour)
		slog.InfoContext(ctx, "Next snapshot sweep scheduled", "at", next.Format(time.RFC3339))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Until(next)):
		}

		if err := w.SnapshotAllUsers(ctx, next); err != nil {
			slog.ErrorContext(ctx, "Snapshot sweep error", log.FieldError, err)
		}
	}
}

func nextRun(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
