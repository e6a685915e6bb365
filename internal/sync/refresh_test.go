package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/civitaslabs/fedwatch/internal/domain"
	"github.com/civitaslabs/fedwatch/internal/storage"
)

func seedOpportunity(t *testing.T, store *storage.Store, documentNumber string, closesOn time.Time, days int) {
	t.Helper()
	if err := store.InsertCommentOpportunity(storage.CommentOpportunity{
		DocumentNumber: documentNumber,
		ClosesOn:       closesOn,
		DaysRemaining:  days,
		Status:         storage.OpportunityOpen,
		CommentURL:     "https://www.regulations.gov/commenton/" + documentNumber,
	}); err != nil {
		t.Fatalf("seeding opportunity: %v", err)
	}
}

func TestRefreshUpdatesCountdownAndSweepsExpired(t *testing.T) {
	store := newTestStore(t)

	seedOpportunity(t, store, "2026-11111", dayOffset(10), 10)
	seedOpportunity(t, store, "2026-22222", dayOffset(-5), 3) // stale, registry stopped reporting it

	closes := dayOffset(3)
	unknownCloses := dayOffset(8)
	source := &fakeSource{
		open: func(_ context.Context, withinDays, limit int) ([]domain.FederalDocument, error) {
			if withinDays != refreshWindowDays {
				t.Errorf("withinDays = %d, want %d", withinDays, refreshWindowDays)
			}
			return []domain.FederalDocument{
				{DocumentNumber: "2026-11111", CommentsCloseOn: &closes},
				// never ingested locally, must be skipped
				{DocumentNumber: "2026-99999", CommentsCloseOn: &unknownCloses},
			}, nil
		},
	}

	r := NewRefresher(source, store, nil)
	r.now = func() time.Time { return testNow }

	touched, err := r.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if touched != 2 {
		t.Errorf("touched = %d, want 2 (one refreshed, one swept)", touched)
	}

	opp, err := store.GetCommentOpportunity("2026-11111")
	if err != nil {
		t.Fatalf("loading opportunity: %v", err)
	}
	if opp.DaysRemaining != 3 || opp.Status != storage.OpportunityOpen {
		t.Errorf("opportunity = %d days %s, want 3 open", opp.DaysRemaining, opp.Status)
	}

	stale, err := store.GetCommentOpportunity("2026-22222")
	if err != nil {
		t.Fatalf("loading stale opportunity: %v", err)
	}
	if stale.Status != storage.OpportunityClosed || stale.DaysRemaining != 0 {
		t.Errorf("stale opportunity = %d days %s, want 0 closed", stale.DaysRemaining, stale.Status)
	}
}

func TestRefreshFetchFailureStillSweeps(t *testing.T) {
	store := newTestStore(t)
	seedOpportunity(t, store, "2026-33333", dayOffset(-2), 1)

	source := &fakeSource{
		open: func(_ context.Context, _, _ int) ([]domain.FederalDocument, error) {
			return nil, errors.New("registry down")
		},
	}

	r := NewRefresher(source, store, nil)
	r.now = func() time.Time { return testNow }

	touched, err := r.Refresh(context.Background())
	if err == nil {
		t.Fatal("expected fetch error to surface")
	}
	if touched != 1 {
		t.Errorf("touched = %d, want 1 swept row despite fetch failure", touched)
	}

	opp, err := store.GetCommentOpportunity("2026-33333")
	if err != nil {
		t.Fatalf("loading opportunity: %v", err)
	}
	if opp.Status != storage.OpportunityClosed {
		t.Errorf("status = %s, want closed", opp.Status)
	}
}
