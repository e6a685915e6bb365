package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/civitaslabs/fedwatch/internal/storage"
)

// Runner executes one sync request. Satisfied by *Orchestrator.
type Runner interface {
	Run(ctx context.Context, req Request) (Summary, error)
}

// jobTypes lists the queue job types the worker consumes.
var jobTypes = []string{JobDailySync, JobManualSync, JobInitialSync}

// Worker drains sync jobs from the SQLite queue and hands them to the runner.
type Worker struct {
	store  *storage.Store
	runner Runner
	poll   time.Duration
	logger *slog.Logger
}

// NewWorker creates a worker. If pollInterval is <= 0, it defaults to 1s.
func NewWorker(store *storage.Store, runner Runner, pollInterval time.Duration, logger *slog.Logger) *Worker {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{store: store, runner: runner, poll: pollInterval, logger: logger}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single sync job. Returns true if a job was
// processed, regardless of success or failure.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob(jobTypes)
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.processJob(ctx, job); err != nil {
		w.logger.Warn("sync job failed", "job_id", job.ID, "type", job.Type, "error", err)
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) error {
	var req Request
	if job.PayloadJSON != "" {
		if err := json.Unmarshal([]byte(job.PayloadJSON), &req); err != nil {
			return fmt.Errorf("parsing payload: %w", err)
		}
	}
	if req.Type == "" {
		req.Type = job.Type
	}
	if req.Type == JobInitialSync && req.DaysBack <= 0 {
		req.DaysBack = initialDaysBack
	}

	_, err := w.runner.Run(ctx, req)
	return err
}
