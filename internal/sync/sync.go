// Package sync runs the ingestion pipeline: fetch documents from the Federal
// Register, dedupe against storage, persist, index, create sub-records, and
// fan notifications out to users. Runs are queue-driven; one orchestrator
// invocation per claimed job.
package sync

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/civitaslabs/fedwatch/internal/domain"
	"github.com/civitaslabs/fedwatch/internal/storage"
)

// Queue job types consumed by the worker.
const (
	JobDailySync   = "daily_sync"
	JobManualSync  = "manual_sync"
	JobInitialSync = "initial_sync"
)

// initialDaysBack is the backfill window for the first sync against an empty
// store.
const initialDaysBack = 30

// Request is the payload of one queued sync job. Zero-value fields fall back
// to defaults when the orchestrator runs it.
type Request struct {
	Type          string                `json:"type"`
	Timestamp     time.Time             `json:"timestamp"`
	DocumentTypes []domain.DocumentType `json:"document_types,omitempty"`
	DaysBack      int                   `json:"days_back,omitempty"`
	AgencySlug    string                `json:"agency_slug,omitempty"`
}

// Enqueue queues a sync request as a job and returns the job id.
func Enqueue(store *storage.Store, req Request) (string, error) {
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now().UTC()
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encoding sync request: %w", err)
	}

	id := uuid.New().String()
	if err := store.EnqueueJob(storage.Job{
		ID:          id,
		Type:        req.Type,
		PayloadJSON: string(payload),
	}); err != nil {
		return "", fmt.Errorf("enqueuing %s job: %w", req.Type, err)
	}
	return id, nil
}

// daysUntil counts whole days from now until t, rounding partial days up.
func daysUntil(now, t time.Time) int {
	return int(math.Ceil(t.Sub(now).Hours() / 24))
}

// opportunityState derives the countdown and status for a comment window.
// A window closing today is still open; CloseExpiredOpportunities sweeps it
// once the date has passed.
func opportunityState(now, closesOn time.Time) (int, string) {
	days := daysUntil(now, closesOn)
	if days < 0 {
		return 0, storage.OpportunityClosed
	}
	return days, storage.OpportunityOpen
}
