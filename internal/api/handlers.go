// Package api exposes the HTTP surface: read access to documents,
// notifications, and comment opportunities, a manual sync trigger, and a
// per-user relevance feed. Everything except /health sits behind bearer auth.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/civitaslabs/fedwatch/internal/domain"
	"github.com/civitaslabs/fedwatch/internal/relevance"
	"github.com/civitaslabs/fedwatch/internal/storage"
	fwsync "github.com/civitaslabs/fedwatch/internal/sync"
)

const maxRequestBodySize = 1 << 20 // 1MB

// feedCandidates bounds how many recent documents the feed ranks per request.
const feedCandidates = 200

// AppDeps wires the handler's dependencies.
type AppDeps struct {
	Store    *storage.Store
	Scorer   *relevance.Scorer
	Taxonomy relevance.Taxonomy
	Weights  relevance.Weights
	Token    string
}

// NewHandler builds the API router.
func NewHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth(deps))

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/sync", handleTriggerSync(deps))
		r.Get("/syncs", handleListSyncs(deps))
		r.Get("/documents", handleListDocuments(deps))
		r.Get("/documents/{documentNumber}", handleGetDocument(deps))
		r.Get("/opportunities", handleListOpportunities(deps))
		r.Put("/users/{id}", handlePutUser(deps))
		r.Get("/users/{id}/notifications", handleListNotifications(deps))
		r.Get("/users/{id}/feed", handleUserFeed(deps))
	})

	return r
}

func handleHealth(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := deps.Store.CountDocuments(); err != nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "storage unavailable: %v", err)
			return
		}
		writeJSON(w, map[string]string{"status": "ok"})
	}
}

// SyncRequest is the optional body of POST /sync.
type SyncRequest struct {
	DocumentTypes []string `json:"document_types,omitempty"`
	DaysBack      int      `json:"days_back,omitempty"`
	AgencySlug    string   `json:"agency_slug,omitempty"`
}

func handleTriggerSync(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		// an empty body means "sync everything with defaults"
		var req SyncRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		types, err := parseDocumentTypes(req.DocumentTypes)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		jobID, err := fwsync.Enqueue(deps.Store, fwsync.Request{
			Type:          fwsync.JobManualSync,
			DocumentTypes: types,
			DaysBack:      req.DaysBack,
			AgencySlug:    req.AgencySlug,
		})
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to enqueue sync: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"job_id": jobID, "status": "queued"})
	}
}

func handleListSyncs(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)

		logs, err := deps.Store.ListRecentSyncLogs(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list syncs: %v", err)
			return
		}
		if logs == nil {
			logs = []storage.SyncLog{}
		}
		writeJSON(w, logs)
	}
}

func handleListDocuments(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)

		var docType domain.DocumentType
		if raw := r.URL.Query().Get("type"); raw != "" {
			parsed, err := parseDocumentTypes([]string{raw})
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
				return
			}
			docType = parsed[0]
		}

		docs, err := deps.Store.ListRecentDocuments(docType, limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list documents: %v", err)
			return
		}
		if docs == nil {
			docs = []domain.FederalDocument{}
		}
		writeJSON(w, docs)
	}
}

// DocumentDetail is the composite returned by GET /documents/{n}: the
// document plus whichever sub-records exist for it.
type DocumentDetail struct {
	Document           domain.FederalDocument      `json:"document"`
	ExecutiveOrder     *storage.ExecutiveOrder     `json:"executive_order,omitempty"`
	CommentOpportunity *storage.CommentOpportunity `json:"comment_opportunity,omitempty"`
}

func handleGetDocument(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		number := chi.URLParam(r, "documentNumber")

		doc, err := deps.Store.GetDocument(number)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "document not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get document: %v", err)
			return
		}

		detail := DocumentDetail{Document: doc}
		if eo, err := deps.Store.GetExecutiveOrder(number); err == nil {
			detail.ExecutiveOrder = &eo
		}
		if opp, err := deps.Store.GetCommentOpportunity(number); err == nil {
			detail.CommentOpportunity = &opp
		}
		writeJSON(w, detail)
	}
}

func handleListOpportunities(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)

		opps, err := deps.Store.ListOpenOpportunities(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list opportunities: %v", err)
			return
		}
		if opps == nil {
			opps = []storage.CommentOpportunity{}
		}
		writeJSON(w, opps)
	}
}

// PutUserRequest upserts a user and their agency follows.
type PutUserRequest struct {
	Email           string   `json:"email"`
	State           string   `json:"state,omitempty"`
	PolicyInterests []string `json:"policy_interests,omitempty"`
	Follows         []struct {
		AgencyID   int64  `json:"agency_id"`
		AgencySlug string `json:"agency_slug,omitempty"`
		Enabled    *bool  `json:"enabled,omitempty"`
	} `json:"follows,omitempty"`
}

func handlePutUser(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req PutUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Email == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "email is required")
			return
		}

		if err := deps.Store.SaveUser(storage.User{
			ID:              id,
			Email:           req.Email,
			State:           req.State,
			PolicyInterests: req.PolicyInterests,
		}); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save user: %v", err)
			return
		}

		for _, f := range req.Follows {
			enabled := true
			if f.Enabled != nil {
				enabled = *f.Enabled
			}
			if err := deps.Store.SaveAgencyFollow(storage.AgencyFollow{
				UserID:     id,
				AgencyID:   f.AgencyID,
				AgencySlug: f.AgencySlug,
				Enabled:    enabled,
			}); err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to save follow: %v", err)
				return
			}
		}

		writeJSON(w, map[string]string{"status": "updated"})
	}
}

func handleListNotifications(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		limit := parseIntParam(r, "limit", 20, 100)

		if _, err := deps.Store.GetUser(id); errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "user not found")
			return
		} else if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load user: %v", err)
			return
		}

		notifications, err := deps.Store.ListNotifications(id, limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list notifications: %v", err)
			return
		}
		if notifications == nil {
			notifications = []storage.Notification{}
		}
		writeJSON(w, notifications)
	}
}

func handleUserFeed(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		limit := parseIntParam(r, "limit", 20, 100)
		minScore := parseIntParam(r, "min_score", 0, 100)

		prefs, err := deps.Store.GetUserPreferences(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "user not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load preferences: %v", err)
			return
		}

		docs, err := deps.Store.ListRecentDocuments("", feedCandidates)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list documents: %v", err)
			return
		}

		profile := relevance.NewProfile(deps.Taxonomy, prefs.PolicyInterests,
			prefs.FollowedAgencyIDs, prefs.FollowedAgencySlugs, prefs.State)
		ranked := deps.Scorer.Rank(docs, profile, relevance.RankOptions{
			Weights:  &deps.Weights,
			MinScore: minScore,
			Limit:    limit,
		})
		if ranked == nil {
			ranked = []relevance.RankedDocument{}
		}
		writeJSON(w, ranked)
	}
}

func parseDocumentTypes(raw []string) ([]domain.DocumentType, error) {
	known := map[domain.DocumentType]struct{}{}
	for _, t := range domain.DefaultDocumentTypes() {
		known[t] = struct{}{}
	}

	types := make([]domain.DocumentType, 0, len(raw))
	for _, s := range raw {
		t := domain.DocumentType(s)
		if _, ok := known[t]; !ok {
			return nil, fmt.Errorf("unknown document type %q", s)
		}
		types = append(types, t)
	}
	return types, nil
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
