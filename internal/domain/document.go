package domain

import "time"

// DocumentType enumerates the Federal Register document categories we ingest.
type DocumentType string

const (
	TypeRule         DocumentType = "RULE"
	TypeProposedRule DocumentType = "PRORULE"
	TypeNotice       DocumentType = "NOTICE"
	TypePresidential DocumentType = "PRESDOCU"
)

// DefaultDocumentTypes is the set synced when a job does not name its own.
func DefaultDocumentTypes() []DocumentType {
	return []DocumentType{TypeRule, TypeProposedRule, TypeNotice, TypePresidential}
}

// Agency identifies a federal agency attached to a document. ParentID is set
// for sub-agencies (e.g. FDA under HHS) and drives partial-credit matching.
type Agency struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	ParentID *int64 `json:"parent_id,omitempty"`
}

// FederalDocument is the canonical, normalized shape of a regulatory
// publication. The registry client maps raw API rows into this once at the
// ingestion boundary; everything downstream (scorer, ranker, storage) only
// ever sees this shape.
type FederalDocument struct {
	DocumentNumber  string       `json:"document_number"`
	Type            DocumentType `json:"type"`
	Title           string       `json:"title"`
	Abstract        string       `json:"abstract,omitempty"`
	Action          string       `json:"action,omitempty"`
	PublicationDate time.Time    `json:"publication_date"`
	Agencies        []Agency     `json:"agencies"`
	Topics          []string     `json:"topics"`
	Significant     bool         `json:"significant"`
	CommentsCloseOn *time.Time   `json:"comments_close_on,omitempty"`
	CommentURL      string       `json:"comment_url,omitempty"`
	HTMLURL         string       `json:"html_url,omitempty"`
	PDFURL          string       `json:"pdf_url,omitempty"`

	// ExecutiveOrderNumber is only present on PRESDOCU documents that carry
	// an order number; it triggers creation of the ExecutiveOrder sub-record.
	ExecutiveOrderNumber string `json:"executive_order_number,omitempty"`
}

// OpenForComment reports whether the document still has a comment window
// open as of now.
func (d FederalDocument) OpenForComment(now time.Time) bool {
	return d.CommentsCloseOn != nil && d.CommentsCloseOn.After(now)
}
