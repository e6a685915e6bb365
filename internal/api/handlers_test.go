package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/civitaslabs/fedwatch/internal/domain"
	"github.com/civitaslabs/fedwatch/internal/relevance"
	"github.com/civitaslabs/fedwatch/internal/storage"
)

const testToken = "test-token"

var testNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

func newTestHandler(t *testing.T) (http.Handler, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	taxonomy := relevance.DefaultTaxonomy()
	handler := NewHandler(AppDeps{
		Store:    store,
		Scorer:   relevance.NewScorerAt(taxonomy, func() time.Time { return testNow }),
		Taxonomy: taxonomy,
		Weights:  relevance.DefaultWeights(),
		Token:    testToken,
	})
	return handler, store
}

func doRequest(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}

func seedDocument(t *testing.T, store *storage.Store, doc domain.FederalDocument) {
	t.Helper()
	if err := store.InsertDocument(doc); err != nil {
		t.Fatalf("seeding document: %v", err)
	}
}

func epaDoc() domain.FederalDocument {
	return domain.FederalDocument{
		DocumentNumber:  "2026-20001",
		Type:            domain.TypeRule,
		Title:           "Greenhouse Gas Emissions Standards",
		PublicationDate: testNow.AddDate(0, 0, -2),
		Agencies: []domain.Agency{
			{ID: 145, Name: "Environmental Protection Agency", Slug: "environmental-protection-agency"},
		},
		Significant: true,
	}
}

func TestHealthIsPublic(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestBearerAuthRequired(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/documents", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/documents", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token: status = %d, want 401", rec.Code)
	}
}

func TestTriggerSyncEnqueuesJob(t *testing.T) {
	handler, store := newTestHandler(t)

	rec := doRequest(t, handler, http.MethodPost, "/sync", SyncRequest{
		DocumentTypes: []string{"RULE"},
		DaysBack:      3,
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp map[string]string
	decodeBody(t, rec, &resp)
	if resp["status"] != "queued" || resp["job_id"] == "" {
		t.Errorf("response = %v", resp)
	}

	job, err := store.ClaimNextJob([]string{"manual_sync"})
	if err != nil {
		t.Fatalf("claiming: %v", err)
	}
	if job == nil {
		t.Fatal("no job enqueued")
	}
}

func TestTriggerSyncRejectsUnknownType(t *testing.T) {
	handler, _ := newTestHandler(t)

	rec := doRequest(t, handler, http.MethodPost, "/sync", SyncRequest{
		DocumentTypes: []string{"TWEET"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGetDocumentDetail(t *testing.T) {
	handler, store := newTestHandler(t)

	doc := epaDoc()
	seedDocument(t, store, doc)
	closes := testNow.AddDate(0, 0, 14)
	if err := store.InsertCommentOpportunity(storage.CommentOpportunity{
		DocumentNumber: doc.DocumentNumber,
		ClosesOn:       closes,
		DaysRemaining:  14,
		Status:         storage.OpportunityOpen,
	}); err != nil {
		t.Fatalf("seeding opportunity: %v", err)
	}

	rec := doRequest(t, handler, http.MethodGet, "/documents/"+doc.DocumentNumber, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var detail DocumentDetail
	decodeBody(t, rec, &detail)
	if detail.Document.DocumentNumber != doc.DocumentNumber {
		t.Errorf("document = %+v", detail.Document)
	}
	if detail.CommentOpportunity == nil || detail.CommentOpportunity.DaysRemaining != 14 {
		t.Errorf("comment opportunity = %+v", detail.CommentOpportunity)
	}
	if detail.ExecutiveOrder != nil {
		t.Error("unexpected executive order sub-record")
	}

	rec = doRequest(t, handler, http.MethodGet, "/documents/2026-99999", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing document: status = %d, want 404", rec.Code)
	}
}

func TestListDocumentsFilterByType(t *testing.T) {
	handler, store := newTestHandler(t)

	seedDocument(t, store, epaDoc())
	seedDocument(t, store, domain.FederalDocument{
		DocumentNumber:  "2026-20002",
		Type:            domain.TypeNotice,
		Title:           "Meeting Notice",
		PublicationDate: testNow.AddDate(0, 0, -1),
		Agencies:        []domain.Agency{{ID: 1, Name: "GSA", Slug: "general-services-administration"}},
	})

	rec := doRequest(t, handler, http.MethodGet, "/documents?type=NOTICE", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var docs []domain.FederalDocument
	decodeBody(t, rec, &docs)
	if len(docs) != 1 || docs[0].Type != domain.TypeNotice {
		t.Errorf("docs = %+v", docs)
	}

	rec = doRequest(t, handler, http.MethodGet, "/documents?type=bogus", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bogus type: status = %d, want 400", rec.Code)
	}
}

func TestPutUserAndFeed(t *testing.T) {
	handler, store := newTestHandler(t)

	seedDocument(t, store, epaDoc())
	seedDocument(t, store, domain.FederalDocument{
		DocumentNumber:  "2026-20003",
		Type:            domain.TypeNotice,
		Title:           "Routine Filing Procedures",
		PublicationDate: testNow.AddDate(0, 0, -40),
		Agencies:        []domain.Agency{{ID: 1, Name: "GSA", Slug: "general-services-administration"}},
	})

	body := map[string]any{
		"email":            "c@example.com",
		"policy_interests": []string{"climate"},
	}
	rec := doRequest(t, handler, http.MethodPut, "/users/u-climate", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("put user: status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, handler, http.MethodGet, "/users/u-climate/feed?min_score=25", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("feed: status = %d, body %s", rec.Code, rec.Body.String())
	}

	var ranked []relevance.RankedDocument
	decodeBody(t, rec, &ranked)
	if len(ranked) != 1 {
		t.Fatalf("ranked = %d entries, want 1 above threshold", len(ranked))
	}
	if ranked[0].Document.DocumentNumber != "2026-20001" {
		t.Errorf("top document = %s", ranked[0].Document.DocumentNumber)
	}
	if ranked[0].Score.AgencyScore != 100 {
		t.Errorf("agency score = %v, want 100 via interest-derived slug", ranked[0].Score.AgencyScore)
	}

	rec = doRequest(t, handler, http.MethodGet, "/users/nobody/feed", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown user: status = %d, want 404", rec.Code)
	}
}

func TestListNotificationsEmptyArray(t *testing.T) {
	handler, store := newTestHandler(t)

	if err := store.SaveUser(storage.User{ID: "u1", Email: "u1@example.com"}); err != nil {
		t.Fatalf("saving user: %v", err)
	}

	rec := doRequest(t, handler, http.MethodGet, "/users/u1/notifications", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Body.String(); got == "null\n" {
		t.Error("expected empty array, got null")
	}

	rec = doRequest(t, handler, http.MethodGet, "/users/nobody/notifications", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown user: status = %d, want 404", rec.Code)
	}
}
