package registry

import (
	"strings"
	"time"

	"github.com/civitaslabs/fedwatch/internal/domain"
)

// rawSearchResponse mirrors the registry's search payload.
type rawSearchResponse struct {
	Count   int           `json:"count"`
	Results []rawDocument `json:"results"`
}

// rawDocument is the registry's wire shape. Fields are loosely typed the way
// the API actually delivers them: nullable ids, human-readable type labels,
// absent booleans.
type rawDocument struct {
	DocumentNumber       string      `json:"document_number"`
	Type                 string      `json:"type"`
	Title                string      `json:"title"`
	Abstract             string      `json:"abstract"`
	Action               string      `json:"action"`
	PublicationDate      string      `json:"publication_date"`
	Agencies             []rawAgency `json:"agencies"`
	Topics               []string    `json:"topics"`
	Significant          bool        `json:"significant"`
	CommentsCloseOn      string      `json:"comments_close_on"`
	CommentURL           string      `json:"comment_url"`
	HTMLURL              string      `json:"html_url"`
	PDFURL               string      `json:"pdf_url"`
	ExecutiveOrderNumber string      `json:"executive_order_number"`
}

type rawAgency struct {
	ID       *int64 `json:"id"`
	Name     string `json:"name"`
	RawName  string `json:"raw_name"`
	Slug     string `json:"slug"`
	ParentID *int64 `json:"parent_id"`
}

const dateLayout = "2006-01-02"

// normalizeAll maps raw rows to canonical documents, dropping rows without a
// document number (the registry occasionally emits placeholder entries).
func normalizeAll(raws []rawDocument) []domain.FederalDocument {
	docs := make([]domain.FederalDocument, 0, len(raws))
	for _, raw := range raws {
		if raw.DocumentNumber == "" {
			continue
		}
		docs = append(docs, normalize(raw))
	}
	return docs
}

func normalize(raw rawDocument) domain.FederalDocument {
	doc := domain.FederalDocument{
		DocumentNumber:       raw.DocumentNumber,
		Type:                 normalizeType(raw.Type),
		Title:                strings.TrimSpace(raw.Title),
		Abstract:             strings.TrimSpace(raw.Abstract),
		Action:               strings.TrimSpace(raw.Action),
		Topics:               raw.Topics,
		Significant:          raw.Significant,
		CommentURL:           raw.CommentURL,
		HTMLURL:              raw.HTMLURL,
		PDFURL:               raw.PDFURL,
		ExecutiveOrderNumber: raw.ExecutiveOrderNumber,
	}

	if t, err := time.Parse(dateLayout, raw.PublicationDate); err == nil {
		doc.PublicationDate = t
	}
	if raw.CommentsCloseOn != "" {
		if t, err := time.Parse(dateLayout, raw.CommentsCloseOn); err == nil {
			doc.CommentsCloseOn = &t
		}
	}

	doc.Agencies = make([]domain.Agency, 0, len(raw.Agencies))
	for _, a := range raw.Agencies {
		name := a.Name
		if name == "" {
			name = a.RawName
		}
		agency := domain.Agency{Name: name, Slug: a.Slug, ParentID: a.ParentID}
		if a.ID != nil {
			agency.ID = *a.ID
		}
		doc.Agencies = append(doc.Agencies, agency)
	}

	return doc
}

// normalizeType accepts both the API's human-readable labels and the coded
// values used in search conditions.
func normalizeType(t string) domain.DocumentType {
	switch strings.ToUpper(strings.TrimSpace(t)) {
	case "RULE":
		return domain.TypeRule
	case "PRORULE", "PROPOSED RULE":
		return domain.TypeProposedRule
	case "NOTICE":
		return domain.TypeNotice
	case "PRESDOCU", "PRESIDENTIAL DOCUMENT":
		return domain.TypePresidential
	default:
		return domain.DocumentType(strings.ToUpper(strings.TrimSpace(t)))
	}
}
