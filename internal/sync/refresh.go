package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/civitaslabs/fedwatch/internal/domain"
	"github.com/civitaslabs/fedwatch/internal/storage"
)

const (
	refreshWindowDays = 90
	refreshFetchLimit = 100
)

// CommentSource supplies documents whose comment window closes soon.
type CommentSource interface {
	OpenForComment(ctx context.Context, withinDays, limit int) ([]domain.FederalDocument, error)
}

// Refresher keeps comment-opportunity countdowns current. Each pass refreshes
// windows the registry still reports and sweeps expired ones the registry has
// stopped mentioning.
type Refresher struct {
	source CommentSource
	store  *storage.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewRefresher builds a refresher using the wall clock.
func NewRefresher(source CommentSource, store *storage.Store, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{source: source, store: store, logger: logger, now: time.Now}
}

// Refresh recomputes countdowns for open comment windows and returns the
// number of rows touched (refreshed plus swept). Documents never ingested
// locally are skipped. A registry fetch failure does not stop the expiry
// sweep; the error is returned alongside the sweep count.
func (r *Refresher) Refresh(ctx context.Context) (int, error) {
	now := r.now().UTC()

	docs, err := r.source.OpenForComment(ctx, refreshWindowDays, refreshFetchLimit)
	if err != nil {
		closed, sweepErr := r.store.CloseExpiredOpportunities(now)
		if sweepErr != nil {
			return 0, fmt.Errorf("sweeping expired opportunities after fetch failure: %w", sweepErr)
		}
		return closed, fmt.Errorf("fetching open comment windows: %w", err)
	}

	refreshed := 0
	for _, doc := range docs {
		if doc.CommentsCloseOn == nil {
			continue
		}
		days, status := opportunityState(now, *doc.CommentsCloseOn)
		err := r.store.UpdateCommentOpportunity(doc.DocumentNumber, days, status)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			r.logger.Warn("opportunity refresh failed",
				"document", doc.DocumentNumber, "error", err)
			continue
		}
		refreshed++
	}

	closed, err := r.store.CloseExpiredOpportunities(now)
	if err != nil {
		return refreshed, fmt.Errorf("sweeping expired opportunities: %w", err)
	}
	return refreshed + closed, nil
}
