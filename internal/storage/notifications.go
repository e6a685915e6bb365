package storage

import (
	"time"
)

// NotificationExists reports whether a notification was already emitted for
// this (user, document, type) triple. The pre-insert check keeps emission
// idempotent across retried runs without leaning on constraint errors.
func (s *Store) NotificationExists(userID, documentNumber, notificationType string) (bool, error) {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM notifications
		WHERE user_id = ? AND document_number = ? AND notification_type = ?`,
		userID, documentNumber, notificationType,
	).Scan(&count)
	return count > 0, err
}

// InsertNotification writes a notification record. The unique constraint on
// (user, document, type) backstops concurrent emitters; collisions surface
// as ErrDuplicate and are treated as benign by callers.
func (s *Store) InsertNotification(n Notification) error {
	createdAt := n.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	scoreJSON := n.ScoreJSON
	if scoreJSON == "" {
		scoreJSON = "{}"
	}
	_, err := s.db.Exec(`
		INSERT INTO notifications (id, user_id, document_number, notification_type,
			title, message, priority, score_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.DocumentNumber, n.Type, n.Title, n.Message,
		n.Priority, scoreJSON, formatTime(createdAt),
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// ListNotifications returns a user's notifications, newest first.
func (s *Store) ListNotifications(userID string, limit int) ([]Notification, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, document_number, notification_type, title, message,
			priority, score_json, created_at
		FROM notifications WHERE user_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []Notification
	for rows.Next() {
		var (
			n       Notification
			created string
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.DocumentNumber, &n.Type,
			&n.Title, &n.Message, &n.Priority, &n.ScoreJSON, &created); err != nil {
			return nil, err
		}
		if n.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// NotifiedUserIDs returns the set of users who already received any
// notification for the given document. Used by the significant-document
// broadcast path to skip them.
func (s *Store) NotifiedUserIDs(documentNumber string) (map[string]struct{}, error) {
	rows, err := s.db.Query(
		"SELECT DISTINCT user_id FROM notifications WHERE document_number = ?",
		documentNumber,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		users[id] = struct{}{}
	}
	return users, rows.Err()
}

// CountNotifications returns the total notification count, used by status
// reporting.
func (s *Store) CountNotifications() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM notifications").Scan(&count)
	return count, err
}
