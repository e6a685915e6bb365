package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/civitaslabs/fedwatch/internal/domain"
	"github.com/civitaslabs/fedwatch/internal/registry"
	"github.com/civitaslabs/fedwatch/internal/relevance"
	"github.com/civitaslabs/fedwatch/internal/storage"
)

type fakeSource struct {
	search func(ctx context.Context, q registry.SearchQuery) (registry.SearchResult, error)
	open   func(ctx context.Context, withinDays, limit int) ([]domain.FederalDocument, error)
}

func (f *fakeSource) Search(ctx context.Context, q registry.SearchQuery) (registry.SearchResult, error) {
	if f.search == nil {
		return registry.SearchResult{}, nil
	}
	return f.search(ctx, q)
}

func (f *fakeSource) OpenForComment(ctx context.Context, withinDays, limit int) ([]domain.FederalDocument, error) {
	if f.open == nil {
		return nil, nil
	}
	return f.open(ctx, withinDays, limit)
}

type fakeIndexer struct {
	indexed []string
	err     error
}

func (f *fakeIndexer) EmbedDocument(_ context.Context, doc domain.FederalDocument) error {
	if f.err != nil {
		return f.err
	}
	f.indexed = append(f.indexed, doc.DocumentNumber)
	return nil
}

func newTestOrchestrator(store *storage.Store, source *fakeSource, idx DocumentIndexer) *Orchestrator {
	taxonomy := relevance.DefaultTaxonomy()
	scorer := relevance.NewScorerAt(taxonomy, func() time.Time { return testNow })
	notifier := NewNotifier(store, scorer, taxonomy, relevance.DefaultWeights(), nil)
	refresher := NewRefresher(source, store, nil)
	refresher.now = func() time.Time { return testNow }

	o := NewOrchestrator(source, store, notifier, refresher, idx, nil)
	o.now = func() time.Time { return testNow }
	return o
}

func saveFollower(t *testing.T, store *storage.Store) {
	t.Helper()
	if err := store.SaveUser(storage.User{ID: "u-follower", Email: "f@example.com"}); err != nil {
		t.Fatalf("saving user: %v", err)
	}
	if err := store.SaveAgencyFollow(storage.AgencyFollow{
		UserID: "u-follower", AgencyID: 145,
		AgencySlug: "environmental-protection-agency", Enabled: true,
	}); err != nil {
		t.Fatalf("saving follow: %v", err)
	}
}

func TestRunStoresIndexesAndNotifies(t *testing.T) {
	store := newTestStore(t)
	saveFollower(t, store)

	doc := epaRuleDoc()
	var gotQueries []registry.SearchQuery
	source := &fakeSource{
		search: func(_ context.Context, q registry.SearchQuery) (registry.SearchResult, error) {
			gotQueries = append(gotQueries, q)
			if q.Type == domain.TypeRule {
				return registry.SearchResult{Count: 1, Documents: []domain.FederalDocument{doc}}, nil
			}
			return registry.SearchResult{}, nil
		},
	}
	idx := &fakeIndexer{}
	o := newTestOrchestrator(store, source, idx)

	summary, err := o.Run(context.Background(), Request{Type: JobManualSync})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(gotQueries) != len(domain.DefaultDocumentTypes()) {
		t.Errorf("queries = %d, want one per default type", len(gotQueries))
	}
	wantSince := testNow.AddDate(0, 0, -1)
	if !gotQueries[0].PublishedSince.Equal(wantSince) {
		t.Errorf("since = %v, want %v", gotQueries[0].PublishedSince, wantSince)
	}

	if summary.DocumentsFetched != 1 || summary.DocumentsStored != 1 {
		t.Errorf("fetched=%d stored=%d, want 1/1", summary.DocumentsFetched, summary.DocumentsStored)
	}
	if summary.NotificationsCreated != 1 {
		t.Errorf("notifications = %d, want 1", summary.NotificationsCreated)
	}

	if _, err := store.GetDocument(doc.DocumentNumber); err != nil {
		t.Errorf("document not stored: %v", err)
	}
	if len(idx.indexed) != 1 || idx.indexed[0] != doc.DocumentNumber {
		t.Errorf("indexed = %v", idx.indexed)
	}

	opp, err := store.GetCommentOpportunity(doc.DocumentNumber)
	if err != nil {
		t.Fatalf("comment opportunity missing: %v", err)
	}
	if opp.DaysRemaining != 20 || opp.Status != storage.OpportunityOpen {
		t.Errorf("opportunity = %d days %s, want 20 open", opp.DaysRemaining, opp.Status)
	}

	pending, err := store.ListUnnotifiedDocuments(10)
	if err != nil {
		t.Fatalf("listing unnotified: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("unnotified documents left: %d", len(pending))
	}

	log, err := store.GetSyncLog(summary.SyncLogID)
	if err != nil {
		t.Fatalf("sync log missing: %v", err)
	}
	if log.Status != storage.SyncCompleted {
		t.Errorf("sync log status = %s", log.Status)
	}
	if log.DocumentsStored != 1 || log.NotificationsCreated != 1 {
		t.Errorf("sync log counts = %+v", log)
	}
}

func TestRunSecondPassIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	saveFollower(t, store)

	doc := epaRuleDoc()
	source := &fakeSource{
		search: func(_ context.Context, q registry.SearchQuery) (registry.SearchResult, error) {
			if q.Type == domain.TypeRule {
				return registry.SearchResult{Count: 1, Documents: []domain.FederalDocument{doc}}, nil
			}
			return registry.SearchResult{}, nil
		},
	}
	o := newTestOrchestrator(store, source, nil)

	if _, err := o.Run(context.Background(), Request{Type: JobDailySync}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	summary, err := o.Run(context.Background(), Request{Type: JobDailySync})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if summary.DocumentsFetched != 1 {
		t.Errorf("fetched = %d, want 1", summary.DocumentsFetched)
	}
	if summary.DocumentsStored != 0 {
		t.Errorf("stored = %d, want 0 on rerun", summary.DocumentsStored)
	}
	if summary.NotificationsCreated != 0 {
		t.Errorf("notifications = %d, want 0 on rerun", summary.NotificationsCreated)
	}

	count, err := store.CountNotifications()
	if err != nil {
		t.Fatalf("counting: %v", err)
	}
	if count != 1 {
		t.Errorf("notification count = %d, want 1", count)
	}
}

func TestRunCreatesExecutiveOrderRecord(t *testing.T) {
	store := newTestStore(t)

	doc := executiveOrderDoc()
	source := &fakeSource{
		search: func(_ context.Context, q registry.SearchQuery) (registry.SearchResult, error) {
			if q.Type == domain.TypePresidential {
				return registry.SearchResult{Count: 1, Documents: []domain.FederalDocument{doc}}, nil
			}
			return registry.SearchResult{}, nil
		},
	}
	o := newTestOrchestrator(store, source, nil)

	if _, err := o.Run(context.Background(), Request{Type: JobDailySync}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	eo, err := store.GetExecutiveOrder(doc.DocumentNumber)
	if err != nil {
		t.Fatalf("executive order missing: %v", err)
	}
	if eo.OrderNumber != "14250" {
		t.Errorf("order number = %s", eo.OrderNumber)
	}
	if eo.SignedOn == nil || !eo.SignedOn.Equal(doc.PublicationDate.Truncate(24*time.Hour)) {
		t.Errorf("signed on = %v", eo.SignedOn)
	}
}

func TestRunSkipsOpportunityWithoutCommentURL(t *testing.T) {
	store := newTestStore(t)

	closes := dayOffset(15)
	doc := domain.FederalDocument{
		DocumentNumber:  "2026-10009",
		Type:            domain.TypeProposedRule,
		Title:           "Recordkeeping Requirements for Grain Inspections",
		PublicationDate: dayOffset(-1),
		Agencies:        []domain.Agency{{ID: 12, Name: "Agricultural Marketing Service", Slug: "agricultural-marketing-service"}},
		CommentsCloseOn: &closes,
		// No CommentURL: the window is announced but there is nowhere to
		// submit, so no opportunity record should be tracked.
	}
	source := &fakeSource{
		search: func(_ context.Context, q registry.SearchQuery) (registry.SearchResult, error) {
			if q.Type == domain.TypeProposedRule {
				return registry.SearchResult{Count: 1, Documents: []domain.FederalDocument{doc}}, nil
			}
			return registry.SearchResult{}, nil
		},
	}
	o := newTestOrchestrator(store, source, nil)

	if _, err := o.Run(context.Background(), Request{Type: JobDailySync}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, err := store.GetDocument(doc.DocumentNumber); err != nil {
		t.Fatalf("document not stored: %v", err)
	}
	if _, err := store.GetCommentOpportunity(doc.DocumentNumber); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetCommentOpportunity err = %v, want ErrNotFound", err)
	}
}

func TestRunPartialFetchFailureDegrades(t *testing.T) {
	store := newTestStore(t)

	source := &fakeSource{
		search: func(_ context.Context, q registry.SearchQuery) (registry.SearchResult, error) {
			if q.Type == domain.TypeRule {
				return registry.SearchResult{}, errors.New("upstream timeout")
			}
			return registry.SearchResult{}, nil
		},
	}
	o := newTestOrchestrator(store, source, nil)

	summary, err := o.Run(context.Background(), Request{Type: JobDailySync})
	if err != nil {
		t.Fatalf("a single failing type must not fail the run: %v", err)
	}

	log, err := store.GetSyncLog(summary.SyncLogID)
	if err != nil {
		t.Fatalf("sync log missing: %v", err)
	}
	if log.Status != storage.SyncCompleted {
		t.Errorf("status = %s, want completed", log.Status)
	}
}

func TestRunAllFetchFailuresFailRun(t *testing.T) {
	store := newTestStore(t)

	source := &fakeSource{
		search: func(_ context.Context, q registry.SearchQuery) (registry.SearchResult, error) {
			return registry.SearchResult{}, errors.New("registry down")
		},
	}
	o := newTestOrchestrator(store, source, nil)

	summary, err := o.Run(context.Background(), Request{Type: JobDailySync})
	if err == nil {
		t.Fatal("expected run-level failure when every type fails")
	}

	log, err := store.GetSyncLog(summary.SyncLogID)
	if err != nil {
		t.Fatalf("sync log missing: %v", err)
	}
	if log.Status != storage.SyncFailed {
		t.Errorf("status = %s, want failed", log.Status)
	}
	if log.Error == "" {
		t.Error("failed run recorded no error message")
	}
}

func TestRunResumesUnnotifiedDocuments(t *testing.T) {
	store := newTestStore(t)
	saveFollower(t, store)

	// Stored by an earlier run that crashed before fan-out.
	if err := store.InsertDocument(epaRuleDoc()); err != nil {
		t.Fatalf("seeding document: %v", err)
	}

	o := newTestOrchestrator(store, &fakeSource{}, nil)
	summary, err := o.Run(context.Background(), Request{Type: JobDailySync})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.DocumentsStored != 0 {
		t.Errorf("stored = %d, want 0", summary.DocumentsStored)
	}
	if summary.NotificationsCreated != 1 {
		t.Errorf("notifications = %d, want 1 from resumed fan-out", summary.NotificationsCreated)
	}

	pending, err := store.ListUnnotifiedDocuments(10)
	if err != nil {
		t.Fatalf("listing unnotified: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("document still unnotified after resume")
	}
}
