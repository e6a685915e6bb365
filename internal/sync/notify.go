package sync

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/civitaslabs/fedwatch/internal/domain"
	"github.com/civitaslabs/fedwatch/internal/relevance"
	"github.com/civitaslabs/fedwatch/internal/storage"
)

const (
	// notifyThreshold is the minimum total score that produces a
	// notification through the scored path.
	notifyThreshold = 25

	// significantFloor keeps barely-relevant significant documents from
	// being upgraded to significant_action.
	significantFloor = 20

	// deadlineUrgency is the urgency sub-score at which a document with a
	// comment window classifies as comment_deadline.
	deadlineUrgency = 80

	highPriorityAt   = 80
	lowPriorityBelow = 40

	// broadcastCap bounds the significant-document broadcast fan-out.
	broadcastCap = 50
)

// Notifier scores a document against every user profile and writes the
// resulting notifications. Emission is idempotent on (user, document, type).
type Notifier struct {
	store    *storage.Store
	scorer   *relevance.Scorer
	taxonomy relevance.Taxonomy
	weights  relevance.Weights
	logger   *slog.Logger
}

// NewNotifier builds a notifier. A nil logger falls back to slog.Default.
func NewNotifier(store *storage.Store, scorer *relevance.Scorer, taxonomy relevance.Taxonomy, weights relevance.Weights, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		store:    store,
		scorer:   scorer,
		taxonomy: taxonomy,
		weights:  weights,
		logger:   logger,
	}
}

// EmitForDocument fans one document out to all users and returns the number
// of notifications created. Per-user failures do not stop the loop but are
// reported as an error so the caller leaves the document unnotified and a
// later run retries the remainder.
func (n *Notifier) EmitForDocument(doc domain.FederalDocument) (int, error) {
	prefs, err := n.store.ListUserPreferences()
	if err != nil {
		return 0, fmt.Errorf("loading user preferences: %w", err)
	}

	created := 0
	failures := 0
	for _, p := range prefs {
		score := n.scorer.Score(doc, n.buildProfile(p), n.weights)
		if score.Total < notifyThreshold {
			continue
		}
		ok, err := n.emit(p.UserID, doc, classify(doc, score), score)
		if err != nil {
			failures++
			n.logger.Error("notification emit failed",
				"user_id", p.UserID, "document", doc.DocumentNumber, "error", err)
			continue
		}
		if ok {
			created++
		}
	}

	if doc.Type == domain.TypePresidential && doc.Significant {
		c, err := n.broadcast(doc, prefs)
		created += c
		if err != nil {
			failures++
			n.logger.Error("broadcast failed", "document", doc.DocumentNumber, "error", err)
		}
	}

	if failures > 0 {
		return created, fmt.Errorf("%d of %d users failed for document %s", failures, len(prefs), doc.DocumentNumber)
	}
	return created, nil
}

func (n *Notifier) buildProfile(p storage.UserPreferences) relevance.Profile {
	return relevance.NewProfile(n.taxonomy, p.PolicyInterests, p.FollowedAgencyIDs, p.FollowedAgencySlugs, p.State)
}

// emit writes one notification unless the (user, document, type) triple was
// already emitted. Returns whether a row was created.
func (n *Notifier) emit(userID string, doc domain.FederalDocument, notifType string, score relevance.Score) (bool, error) {
	exists, err := n.store.NotificationExists(userID, doc.DocumentNumber, notifType)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	scoreJSON, err := json.Marshal(score)
	if err != nil {
		return false, fmt.Errorf("encoding score: %w", err)
	}

	err = n.store.InsertNotification(storage.Notification{
		ID:             uuid.New().String(),
		UserID:         userID,
		DocumentNumber: doc.DocumentNumber,
		Type:           notifType,
		Title:          notificationTitle(doc, notifType),
		Message:        notificationMessage(doc, score),
		Priority:       priorityFor(doc, score.Total),
		ScoreJSON:      string(scoreJSON),
	})
	if errors.Is(err, storage.ErrDuplicate) {
		// a concurrent run won the race, nothing lost
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// broadcast delivers a significant presidential document to users the scored
// path skipped, capped so one executive order cannot flood the table.
func (n *Notifier) broadcast(doc domain.FederalDocument, prefs []storage.UserPreferences) (int, error) {
	already, err := n.store.NotifiedUserIDs(doc.DocumentNumber)
	if err != nil {
		return 0, fmt.Errorf("loading notified users: %w", err)
	}

	created := 0
	for _, p := range prefs {
		if created >= broadcastCap {
			break
		}
		if _, ok := already[p.UserID]; ok {
			continue
		}
		score := n.scorer.Score(doc, n.buildProfile(p), n.weights)
		ok, err := n.emit(p.UserID, doc, storage.NotifySignificantAction, score)
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}
	return created, nil
}

// classify picks the notification type, most specific first: a direct agency
// follow beats the significance flag, which beats an imminent deadline.
func classify(doc domain.FederalDocument, score relevance.Score) string {
	switch {
	case score.AgencyScore >= 100:
		return storage.NotifyAgencyUpdate
	case doc.Significant && score.Total >= significantFloor:
		return storage.NotifySignificantAction
	case score.UrgencyScore >= deadlineUrgency && doc.CommentsCloseOn != nil:
		return storage.NotifyCommentDeadline
	default:
		return storage.NotifyInterestMatch
	}
}

func priorityFor(doc domain.FederalDocument, total int) string {
	switch {
	case total >= highPriorityAt || doc.Significant:
		return storage.PriorityHigh
	case total < lowPriorityBelow:
		return storage.PriorityLow
	default:
		return storage.PriorityNormal
	}
}

func notificationTitle(doc domain.FederalDocument, notifType string) string {
	switch notifType {
	case storage.NotifyAgencyUpdate:
		return fmt.Sprintf("New %s from %s", typeLabel(doc.Type), primaryAgency(doc))
	case storage.NotifySignificantAction:
		return "Significant regulatory action: " + truncate(doc.Title, 80)
	case storage.NotifyCommentDeadline:
		return "Comment period closing: " + truncate(doc.Title, 80)
	default:
		return fmt.Sprintf("New %s matches your interests", typeLabel(doc.Type))
	}
}

func notificationMessage(doc domain.FederalDocument, score relevance.Score) string {
	msg := truncate(doc.Title, 120)
	if score.Reason != "" {
		msg += " (" + score.Reason + ")"
	}
	return msg
}

func typeLabel(t domain.DocumentType) string {
	switch t {
	case domain.TypeRule:
		return "final rule"
	case domain.TypeProposedRule:
		return "proposed rule"
	case domain.TypeNotice:
		return "notice"
	case domain.TypePresidential:
		return "presidential document"
	default:
		return "document"
	}
}

func primaryAgency(doc domain.FederalDocument) string {
	for _, a := range doc.Agencies {
		if a.Name != "" {
			return a.Name
		}
	}
	return "the Federal Register"
}

func truncate(s string, max int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= max {
		return string(r)
	}
	return strings.TrimSpace(string(r[:max-1])) + "…"
}
