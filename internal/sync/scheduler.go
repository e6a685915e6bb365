package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/civitaslabs/fedwatch/internal/storage"
)

// Scheduler enqueues the recurring daily sync, plus a one-time backfill when
// the store is empty. Actual execution happens in the worker; the scheduler
// only writes queue rows.
type Scheduler struct {
	store    *storage.Store
	interval time.Duration
	logger   *slog.Logger
}

// NewScheduler creates a scheduler. If interval is <= 0, it defaults to 24h.
func NewScheduler(store *storage.Store, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{store: store, interval: interval, logger: logger}
}

// Run enqueues an initial backfill if needed, then a daily sync on every tick
// until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.enqueueInitial(); err != nil {
		s.logger.Error("enqueuing initial sync", "error", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			id, err := Enqueue(s.store, Request{Type: JobDailySync})
			if err != nil {
				s.logger.Error("enqueuing daily sync", "error", err)
				continue
			}
			s.logger.Info("daily sync enqueued", "job_id", id)
		}
	}
}

// enqueueInitial queues a backfill sync when no documents are stored yet.
func (s *Scheduler) enqueueInitial() error {
	count, err := s.store.CountDocuments()
	if err != nil {
		return fmt.Errorf("counting documents: %w", err)
	}
	if count > 0 {
		return nil
	}

	id, err := Enqueue(s.store, Request{Type: JobInitialSync, DaysBack: initialDaysBack})
	if err != nil {
		return err
	}
	s.logger.Info("initial backfill enqueued", "job_id", id, "days_back", initialDaysBack)
	return nil
}
