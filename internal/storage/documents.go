package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/civitaslabs/fedwatch/internal/domain"
)

// ErrDuplicate is returned when an insert collides with an existing natural
// key. Concurrent syncs racing on the same document treat this as benign.
var ErrDuplicate = errors.New("duplicate record")

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// InsertDocument stores a canonical document. Returns ErrDuplicate if the
// documentNumber is already present.
func (s *Store) InsertDocument(doc domain.FederalDocument) error {
	agencies, err := json.Marshal(doc.Agencies)
	if err != nil {
		return fmt.Errorf("encoding agencies: %w", err)
	}
	topics, err := json.Marshal(doc.Topics)
	if err != nil {
		return fmt.Errorf("encoding topics: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO documents (document_number, doc_type, title, abstract, action,
			publication_date, agencies, topics, significant, comments_close_on,
			comment_url, html_url, pdf_url, executive_order_number, notified, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		doc.DocumentNumber, string(doc.Type), doc.Title, doc.Abstract, doc.Action,
		formatDate(doc.PublicationDate), string(agencies), string(topics),
		boolToInt(doc.Significant), formatDatePtr(doc.CommentsCloseOn),
		doc.CommentURL, doc.HTMLURL, doc.PDFURL, doc.ExecutiveOrderNumber,
		formatTime(time.Now()),
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// DocumentExists reports whether a document with the given number is stored.
func (s *Store) DocumentExists(documentNumber string) (bool, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM documents WHERE document_number = ?", documentNumber).Scan(&count)
	return count > 0, err
}

// GetDocument returns one stored document by its natural key.
func (s *Store) GetDocument(documentNumber string) (domain.FederalDocument, error) {
	row := s.db.QueryRow(documentSelect+" WHERE document_number = ?", documentNumber)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return domain.FederalDocument{}, ErrNotFound
	}
	return doc, err
}

// ListRecentDocuments returns the most recently published documents,
// optionally filtered by type.
func (s *Store) ListRecentDocuments(docType domain.DocumentType, limit int) ([]domain.FederalDocument, error) {
	query := documentSelect
	args := []any{}
	if docType != "" {
		query += " WHERE doc_type = ?"
		args = append(args, string(docType))
	}
	query += " ORDER BY publication_date DESC, document_number DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []domain.FederalDocument
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// ListUnnotifiedDocuments returns stored documents whose notification
// fan-out has not completed, oldest first. Lets a later run resume fan-out
// that crashed mid-loop.
func (s *Store) ListUnnotifiedDocuments(limit int) ([]domain.FederalDocument, error) {
	rows, err := s.db.Query(documentSelect+" WHERE notified = 0 ORDER BY created_at ASC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []domain.FederalDocument
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// MarkDocumentNotified records that fan-out completed for a document.
func (s *Store) MarkDocumentNotified(documentNumber string) error {
	res, err := s.db.Exec("UPDATE documents SET notified = 1 WHERE document_number = ?", documentNumber)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountDocuments returns the total number of stored documents.
func (s *Store) CountDocuments() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM documents").Scan(&count)
	return count, err
}

const documentSelect = `
	SELECT document_number, doc_type, title, abstract, action, publication_date,
		agencies, topics, significant, comments_close_on, comment_url, html_url,
		pdf_url, executive_order_number
	FROM documents`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (domain.FederalDocument, error) {
	var (
		doc         domain.FederalDocument
		docType     string
		pubDate     string
		agencies    string
		topics      string
		significant int
		commentsOn  sql.NullString
	)
	err := row.Scan(&doc.DocumentNumber, &docType, &doc.Title, &doc.Abstract,
		&doc.Action, &pubDate, &agencies, &topics, &significant, &commentsOn,
		&doc.CommentURL, &doc.HTMLURL, &doc.PDFURL, &doc.ExecutiveOrderNumber)
	if err != nil {
		return domain.FederalDocument{}, err
	}

	doc.Type = domain.DocumentType(docType)
	doc.Significant = significant != 0
	if doc.PublicationDate, err = parseDate(pubDate); err != nil {
		return domain.FederalDocument{}, fmt.Errorf("parsing publication_date: %w", err)
	}
	if doc.CommentsCloseOn, err = parseDatePtr(commentsOn); err != nil {
		return domain.FederalDocument{}, fmt.Errorf("parsing comments_close_on: %w", err)
	}
	if err := json.Unmarshal([]byte(agencies), &doc.Agencies); err != nil {
		return domain.FederalDocument{}, fmt.Errorf("decoding agencies: %w", err)
	}
	if err := json.Unmarshal([]byte(topics), &doc.Topics); err != nil {
		return domain.FederalDocument{}, fmt.Errorf("decoding topics: %w", err)
	}
	return doc, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
