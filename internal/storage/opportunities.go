package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// InsertCommentOpportunity creates the comment-window sub-record for a newly
// ingested document. Returns ErrDuplicate if one already exists.
func (s *Store) InsertCommentOpportunity(opp CommentOpportunity) error {
	now := formatTime(time.Now())
	status := opp.Status
	if status == "" {
		status = OpportunityOpen
	}
	_, err := s.db.Exec(`
		INSERT INTO comment_opportunities (document_number, opens_on, closes_on,
			days_remaining, status, comment_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		opp.DocumentNumber, formatDatePtr(opp.OpensOn), formatDate(opp.ClosesOn),
		opp.DaysRemaining, status, opp.CommentURL, now, now,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// GetCommentOpportunity returns the comment window for a document.
func (s *Store) GetCommentOpportunity(documentNumber string) (CommentOpportunity, error) {
	var (
		opp      CommentOpportunity
		opensOn  sql.NullString
		closesOn string
		created  string
		updated  string
	)
	err := s.db.QueryRow(`
		SELECT document_number, opens_on, closes_on, days_remaining, status,
			comment_url, created_at, updated_at
		FROM comment_opportunities WHERE document_number = ?`, documentNumber,
	).Scan(&opp.DocumentNumber, &opensOn, &closesOn, &opp.DaysRemaining,
		&opp.Status, &opp.CommentURL, &created, &updated)
	if err == sql.ErrNoRows {
		return CommentOpportunity{}, ErrNotFound
	}
	if err != nil {
		return CommentOpportunity{}, err
	}

	if opp.OpensOn, err = parseDatePtr(opensOn); err != nil {
		return CommentOpportunity{}, fmt.Errorf("parsing opens_on: %w", err)
	}
	if opp.ClosesOn, err = parseDate(closesOn); err != nil {
		return CommentOpportunity{}, fmt.Errorf("parsing closes_on: %w", err)
	}
	if opp.CreatedAt, err = parseTime(created); err != nil {
		return CommentOpportunity{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if opp.UpdatedAt, err = parseTime(updated); err != nil {
		return CommentOpportunity{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return opp, nil
}

// UpdateCommentOpportunity refreshes the countdown and status by natural
// key. Returns ErrNotFound when no opportunity exists for the document.
func (s *Store) UpdateCommentOpportunity(documentNumber string, daysRemaining int, status string) error {
	res, err := s.db.Exec(`
		UPDATE comment_opportunities
		SET days_remaining = ?, status = ?, updated_at = ?
		WHERE document_number = ?`,
		daysRemaining, status, formatTime(time.Now()), documentNumber,
	)
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

// CloseExpiredOpportunities marks every still-open opportunity whose close
// date has passed as closed, independent of whether the registry mentioned
// it. Returns the number of rows closed.
func (s *Store) CloseExpiredOpportunities(now time.Time) (int, error) {
	res, err := s.db.Exec(`
		UPDATE comment_opportunities
		SET status = ?, days_remaining = 0, updated_at = ?
		WHERE status = ? AND closes_on < ?`,
		OpportunityClosed, formatTime(now), OpportunityOpen, formatDate(now),
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// ListOpenOpportunities returns open comment windows ordered by close date.
func (s *Store) ListOpenOpportunities(limit int) ([]CommentOpportunity, error) {
	rows, err := s.db.Query(`
		SELECT document_number, opens_on, closes_on, days_remaining, status,
			comment_url, created_at, updated_at
		FROM comment_opportunities
		WHERE status = ? ORDER BY closes_on ASC LIMIT ?`,
		OpportunityOpen, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var opps []CommentOpportunity
	for rows.Next() {
		var (
			opp      CommentOpportunity
			opensOn  sql.NullString
			closesOn string
			created  string
			updated  string
		)
		if err := rows.Scan(&opp.DocumentNumber, &opensOn, &closesOn,
			&opp.DaysRemaining, &opp.Status, &opp.CommentURL, &created, &updated); err != nil {
			return nil, err
		}
		if opp.OpensOn, err = parseDatePtr(opensOn); err != nil {
			return nil, fmt.Errorf("parsing opens_on: %w", err)
		}
		if opp.ClosesOn, err = parseDate(closesOn); err != nil {
			return nil, fmt.Errorf("parsing closes_on: %w", err)
		}
		if opp.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		if opp.UpdatedAt, err = parseTime(updated); err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		opps = append(opps, opp)
	}
	return opps, rows.Err()
}

// InsertExecutiveOrder creates the immutable executive-order sub-record.
// Returns ErrDuplicate if one already exists for the document.
func (s *Store) InsertExecutiveOrder(eo ExecutiveOrder) error {
	_, err := s.db.Exec(`
		INSERT INTO executive_orders (document_number, order_number, title, signed_on, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		eo.DocumentNumber, eo.OrderNumber, eo.Title, formatDatePtr(eo.SignedOn),
		formatTime(time.Now()),
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// GetExecutiveOrder returns the executive-order sub-record for a document.
func (s *Store) GetExecutiveOrder(documentNumber string) (ExecutiveOrder, error) {
	var (
		eo       ExecutiveOrder
		signedOn sql.NullString
		created  string
	)
	err := s.db.QueryRow(`
		SELECT document_number, order_number, title, signed_on, created_at
		FROM executive_orders WHERE document_number = ?`, documentNumber,
	).Scan(&eo.DocumentNumber, &eo.OrderNumber, &eo.Title, &signedOn, &created)
	if err == sql.ErrNoRows {
		return ExecutiveOrder{}, ErrNotFound
	}
	if err != nil {
		return ExecutiveOrder{}, err
	}
	if eo.SignedOn, err = parseDatePtr(signedOn); err != nil {
		return ExecutiveOrder{}, fmt.Errorf("parsing signed_on: %w", err)
	}
	if eo.CreatedAt, err = parseTime(created); err != nil {
		return ExecutiveOrder{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return eo, nil
}
