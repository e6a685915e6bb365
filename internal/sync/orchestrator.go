package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/civitaslabs/fedwatch/internal/domain"
	"github.com/civitaslabs/fedwatch/internal/registry"
	"github.com/civitaslabs/fedwatch/internal/storage"
)

const (
	defaultDaysBack = 1

	// resumeBatch bounds how many leftover unnotified documents one run
	// picks up before fetching.
	resumeBatch = 200
)

// DocumentSource fetches documents from the Federal Register.
type DocumentSource interface {
	Search(ctx context.Context, q registry.SearchQuery) (registry.SearchResult, error)
}

// DocumentIndexer pushes stored documents to the search index.
type DocumentIndexer interface {
	EmbedDocument(ctx context.Context, doc domain.FederalDocument) error
}

// Summary reports what one run did, keyed by its sync-log id.
type Summary struct {
	SyncLogID string
	storage.SyncCounts
}

// Orchestrator executes one full sync pass: resume leftover fan-out, fetch
// per document type, dedupe, persist, index, create sub-records, notify, then
// refresh comment opportunities. Every run is recorded in sync_logs.
type Orchestrator struct {
	source    DocumentSource
	store     *storage.Store
	indexer   DocumentIndexer
	notifier  *Notifier
	refresher *Refresher
	logger    *slog.Logger
	now       func() time.Time
}

// NewOrchestrator wires an orchestrator. The indexer may be nil, in which
// case indexing is skipped; everything else is required.
func NewOrchestrator(source DocumentSource, store *storage.Store, notifier *Notifier, refresher *Refresher, indexer DocumentIndexer, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		source:    source,
		store:     store,
		indexer:   indexer,
		notifier:  notifier,
		refresher: refresher,
		logger:    logger,
		now:       time.Now,
	}
}

// Run executes the request. A single document type failing to fetch degrades
// the run; all types failing fails it. Per-document errors never abort the
// batch.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Summary, error) {
	started := o.now().UTC()
	syncType := req.Type
	if syncType == "" {
		syncType = JobManualSync
	}

	logID := uuid.New().String()
	if err := o.store.CreateSyncLog(logID, syncType, started); err != nil {
		return Summary{}, fmt.Errorf("creating sync log: %w", err)
	}
	summary := Summary{SyncLogID: logID}

	o.resumePending(&summary.SyncCounts)

	types := req.DocumentTypes
	if len(types) == 0 {
		types = domain.DefaultDocumentTypes()
	}
	daysBack := req.DaysBack
	if daysBack <= 0 {
		daysBack = defaultDaysBack
	}
	since := started.AddDate(0, 0, -daysBack)

	var fetchErrs []error
	for _, docType := range types {
		result, err := o.source.Search(ctx, registry.SearchQuery{
			Type:           docType,
			PublishedSince: since,
			PublishedUntil: started,
			AgencySlug:     req.AgencySlug,
		})
		if err != nil {
			o.logger.Warn("document fetch failed", "type", string(docType), "error", err)
			fetchErrs = append(fetchErrs, fmt.Errorf("%s: %w", docType, err))
			continue
		}

		summary.DocumentsFetched += len(result.Documents)
		for _, doc := range result.Documents {
			stored, err := o.ingest(ctx, doc)
			if err != nil {
				o.logger.Error("document ingest failed",
					"document", doc.DocumentNumber, "error", err)
				continue
			}
			if !stored {
				continue
			}
			summary.DocumentsStored++
			o.fanOut(doc, &summary.SyncCounts)
		}
	}

	if len(fetchErrs) == len(types) {
		runErr := fmt.Errorf("all document types failed to fetch: %w", errors.Join(fetchErrs...))
		if err := o.store.FailSyncLog(logID, summary.SyncCounts, runErr.Error()); err != nil {
			o.logger.Error("finalizing failed sync log", "sync_id", logID, "error", err)
		}
		return summary, runErr
	}

	refreshed, err := o.refresher.Refresh(ctx)
	summary.OpportunitiesRefreshed = refreshed
	if err != nil {
		o.logger.Warn("comment opportunity refresh incomplete", "error", err)
	}

	if err := o.store.CompleteSyncLog(logID, summary.SyncCounts); err != nil {
		return summary, fmt.Errorf("finalizing sync log: %w", err)
	}

	o.logger.Info("sync completed",
		"sync_id", logID,
		"type", syncType,
		"fetched", summary.DocumentsFetched,
		"stored", summary.DocumentsStored,
		"notifications", summary.NotificationsCreated,
		"opportunities", summary.OpportunitiesRefreshed,
	)
	return summary, nil
}

// resumePending retries notification fan-out for documents a previous run
// stored but never finished notifying.
func (o *Orchestrator) resumePending(counts *storage.SyncCounts) {
	pending, err := o.store.ListUnnotifiedDocuments(resumeBatch)
	if err != nil {
		o.logger.Error("listing unnotified documents", "error", err)
		return
	}
	for _, doc := range pending {
		o.fanOut(doc, counts)
	}
}

// ingest persists one fetched document. Returns false when the document was
// already stored; only a true return advances the pipeline to fan-out.
func (o *Orchestrator) ingest(ctx context.Context, doc domain.FederalDocument) (bool, error) {
	exists, err := o.store.DocumentExists(doc.DocumentNumber)
	if err != nil {
		return false, fmt.Errorf("checking document: %w", err)
	}
	if exists {
		return false, nil
	}

	if err := o.store.InsertDocument(doc); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			// concurrent run inserted it between the check and our write
			return false, nil
		}
		return false, fmt.Errorf("storing document: %w", err)
	}

	if o.indexer != nil {
		if err := o.indexer.EmbedDocument(ctx, doc); err != nil {
			o.logger.Warn("search indexing failed",
				"document", doc.DocumentNumber, "error", err)
		}
	}

	o.createSubRecords(doc)
	return true, nil
}

// createSubRecords derives the executive-order and comment-opportunity rows
// for a newly stored document. Sub-record failures are logged, not fatal: the
// document itself is already persisted.
func (o *Orchestrator) createSubRecords(doc domain.FederalDocument) {
	if doc.Type == domain.TypePresidential && doc.ExecutiveOrderNumber != "" {
		eo := storage.ExecutiveOrder{
			DocumentNumber: doc.DocumentNumber,
			OrderNumber:    doc.ExecutiveOrderNumber,
			Title:          doc.Title,
		}
		if !doc.PublicationDate.IsZero() {
			signed := doc.PublicationDate
			eo.SignedOn = &signed
		}
		if err := o.store.InsertExecutiveOrder(eo); err != nil && !errors.Is(err, storage.ErrDuplicate) {
			o.logger.Error("creating executive order record",
				"document", doc.DocumentNumber, "error", err)
		}
	}

	// A tracked opportunity needs both a close date and a place to submit
	// comments; documents announcing a window without a URL are skipped.
	if doc.CommentsCloseOn != nil && doc.CommentURL != "" {
		days, status := opportunityState(o.now().UTC(), *doc.CommentsCloseOn)
		opp := storage.CommentOpportunity{
			DocumentNumber: doc.DocumentNumber,
			ClosesOn:       *doc.CommentsCloseOn,
			DaysRemaining:  days,
			Status:         status,
			CommentURL:     doc.CommentURL,
		}
		if err := o.store.InsertCommentOpportunity(opp); err != nil && !errors.Is(err, storage.ErrDuplicate) {
			o.logger.Error("creating comment opportunity",
				"document", doc.DocumentNumber, "error", err)
		}
	}
}

// fanOut emits notifications for one document and marks it notified only
// when the whole fan-out succeeded.
func (o *Orchestrator) fanOut(doc domain.FederalDocument, counts *storage.SyncCounts) {
	created, err := o.notifier.EmitForDocument(doc)
	counts.NotificationsCreated += created
	if err != nil {
		// leave notified unset so the next run retries the remainder
		o.logger.Error("notification fan-out incomplete",
			"document", doc.DocumentNumber, "error", err)
		return
	}
	if err := o.store.MarkDocumentNotified(doc.DocumentNumber); err != nil {
		o.logger.Error("marking document notified",
			"document", doc.DocumentNumber, "error", err)
	}
}
