package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Comment-opportunity statuses.
const (
	OpportunityOpen   = "open"
	OpportunityClosed = "closed"
)

// CommentOpportunity tracks a time-bound public-comment window attached to a
// stored document. DaysRemaining and Status are recomputed on every sync
// pass; rows are never hard-deleted.
type CommentOpportunity struct {
	DocumentNumber string
	OpensOn        *time.Time
	ClosesOn       time.Time
	DaysRemaining  int
	Status         string
	CommentURL     string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ExecutiveOrder is the immutable sub-record created for presidential
// documents that carry an order number.
type ExecutiveOrder struct {
	DocumentNumber string
	OrderNumber    string
	Title          string
	SignedOn       *time.Time
	CreatedAt      time.Time
}

// Notification types, in classification priority order.
const (
	NotifyAgencyUpdate      = "agency_update"
	NotifySignificantAction = "significant_action"
	NotifyCommentDeadline   = "comment_deadline"
	NotifyInterestMatch     = "interest_match"
)

// Notification priorities.
const (
	PriorityHigh   = "high"
	PriorityNormal = "normal"
	PriorityLow    = "low"
)

// Notification is a terminal record: written once per (user, document, type),
// never mutated. ScoreJSON embeds the relevance breakdown for auditability.
type Notification struct {
	ID             string
	UserID         string
	DocumentNumber string
	Type           string
	Title          string
	Message        string
	Priority       string
	ScoreJSON      string
	CreatedAt      time.Time
}

// Sync-log statuses.
const (
	SyncRunning   = "running"
	SyncCompleted = "completed"
	SyncFailed    = "failed"
)

// SyncLog is the audit row for one orchestrator invocation. Created at run
// start, finalized exactly once at run end.
type SyncLog struct {
	ID                     string
	SyncType               string
	Status                 string
	DocumentsFetched       int
	DocumentsStored        int
	NotificationsCreated   int
	OpportunitiesRefreshed int
	Error                  string
	StartedAt              time.Time
	CompletedAt            *time.Time
}

// User is a product user whose preferences drive notification fan-out.
type User struct {
	ID              string
	Email           string
	State           string
	PolicyInterests []string
	CreatedAt       time.Time
}

// AgencyFollow is a user's subscription to one agency's regulatory output.
type AgencyFollow struct {
	UserID     string
	AgencyID   int64
	AgencySlug string
	Enabled    bool
}

// UserPreferences is the aggregate row the notification fan-out consumes:
// one entry per user with parsed interests and enabled follow ids, loaded in
// a single query.
type UserPreferences struct {
	UserID              string
	State               string
	PolicyInterests     []string
	FollowedAgencyIDs   []int64
	FollowedAgencySlugs []string
}

// Job statuses for the work queue.
const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// Job is one unit of queued work (a sync invocation).
type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
