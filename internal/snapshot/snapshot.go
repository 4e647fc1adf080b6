// Package snapshot records end-of-day balance snapshots for every known
// profile so balance history survives restarts.
package snapshot

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"

	"github.com/stonkbot/ledger-engine/internal/metrics"
	"github.com/stonkbot/ledger-engine/internal/model"
	"github.com/stonkbot/ledger-engine/internal/portfolio"
	"github.com/stonkbot/ledger-engine/internal/store"
)

// DefaultSchedule fires shortly after the US market close, weekdays.
const DefaultSchedule = "5 16 * * 1-5"

// Recorder walks every stored profile on a cron schedule and appends a
// dated balance snapshot.
type Recorder struct {
	store     store.Store
	portfolio *portfolio.Service
	cron      *cron.Cron
	schedule  string
}

func NewRecorder(st store.Store, svc *portfolio.Service, schedule string) *Recorder {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &Recorder{
		store:     st,
		portfolio: svc,
		cron:      cron.New(),
		schedule:  schedule,
	}
}

// Start registers the cron job and begins the scheduler.
func (r *Recorder) Start() error {
	_, err := r.cron.AddFunc(r.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		r.RunOnce(ctx)
	})
	if err != nil {
		return err
	}
	r.cron.Start()
	slog.Info("snapshot recorder started", "schedule", r.schedule)
	return nil
}

// Stop halts the scheduler, waiting for a running job to finish.
func (r *Recorder) Stop() {
	<-r.cron.Stop().Done()
}

// RunOnce snapshots every known user immediately. Per-user failures are
// logged and skipped so one bad profile cannot starve the rest.
func (r *Recorder) RunOnce(ctx context.Context) {
	userIDs, err := r.store.ListUserIDs(ctx)
	if err != nil {
		slog.Error("snapshot run failed to list users", "error", err)
		metrics.SnapshotRuns.WithLabelValues("error").Inc()
		return
	}

	var failed int
	for _, userID := range userIDs {
		if err := r.snapshotUser(ctx, userID); err != nil {
			slog.Error("snapshot failed", "user", userID, "error", err)
			failed++
		}
	}

	outcome := "ok"
	if failed > 0 {
		outcome = "partial"
	}
	metrics.SnapshotRuns.WithLabelValues(outcome).Inc()
	slog.Info("snapshot run complete", "users", len(userIDs), "failed", failed)
}

func (r *Recorder) snapshotUser(ctx context.Context, userID string) error {
	ov, err := r.portfolio.GetOverview(ctx, userID)
	if err != nil {
		return err
	}

	previous, err := r.store.GetSnapshots(ctx, userID)
	if err != nil {
		return err
	}

	change := decimal.Zero
	if n := len(previous); n > 0 {
		change = ov.Balance.Sub(previous[n-1].Balance)
	}

	return r.store.AppendSnapshot(ctx, userID, model.Snapshot{
		Date:    time.Now().UTC().Truncate(24 * time.Hour),
		Balance: ov.Balance,
		Change:  change,
	})
}
