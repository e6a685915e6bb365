package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// CreateSyncLog writes the audit row for a starting run (status=running).
func (s *Store) CreateSyncLog(id, syncType string, startedAt time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO sync_logs (id, sync_type, status, started_at)
		VALUES (?, ?, ?, ?)`,
		id, syncType, SyncRunning, formatTime(startedAt),
	)
	return err
}

// SyncCounts carries the aggregate counters written at run end.
type SyncCounts struct {
	DocumentsFetched       int
	DocumentsStored        int
	NotificationsCreated   int
	OpportunitiesRefreshed int
}

// CompleteSyncLog finalizes a run as completed with its counters.
func (s *Store) CompleteSyncLog(id string, counts SyncCounts) error {
	return s.finishSyncLog(id, SyncCompleted, counts, "")
}

// FailSyncLog finalizes a run as failed with the captured error message.
func (s *Store) FailSyncLog(id string, counts SyncCounts, errMsg string) error {
	return s.finishSyncLog(id, SyncFailed, counts, errMsg)
}

func (s *Store) finishSyncLog(id, status string, counts SyncCounts, errMsg string) error {
	res, err := s.db.Exec(`
		UPDATE sync_logs
		SET status = ?, documents_fetched = ?, documents_stored = ?,
			notifications_created = ?, opportunities_refreshed = ?,
			error = ?, completed_at = ?
		WHERE id = ?`,
		status, counts.DocumentsFetched, counts.DocumentsStored,
		counts.NotificationsCreated, counts.OpportunitiesRefreshed,
		errMsg, formatTime(time.Now()), id,
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

// GetSyncLog returns one sync log by id.
func (s *Store) GetSyncLog(id string) (SyncLog, error) {
	row := s.db.QueryRow(syncLogSelect+" WHERE id = ?", id)
	log, err := scanSyncLog(row)
	if err == sql.ErrNoRows {
		return SyncLog{}, ErrNotFound
	}
	return log, err
}

// ListRecentSyncLogs returns the latest runs, newest first.
func (s *Store) ListRecentSyncLogs(limit int) ([]SyncLog, error) {
	rows, err := s.db.Query(syncLogSelect+" ORDER BY started_at DESC, id DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []SyncLog
	for rows.Next() {
		log, err := scanSyncLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

const syncLogSelect = `
	SELECT id, sync_type, status, documents_fetched, documents_stored,
		notifications_created, opportunities_refreshed, error, started_at, completed_at
	FROM sync_logs`

func scanSyncLog(row rowScanner) (SyncLog, error) {
	var (
		log       SyncLog
		started   string
		completed sql.NullString
	)
	err := row.Scan(&log.ID, &log.SyncType, &log.Status, &log.DocumentsFetched,
		&log.DocumentsStored, &log.NotificationsCreated, &log.OpportunitiesRefreshed,
		&log.Error, &started, &completed)
	if err != nil {
		return SyncLog{}, err
	}
	if log.StartedAt, err = parseTime(started); err != nil {
		return SyncLog{}, fmt.Errorf("parsing started_at: %w", err)
	}
	if completed.Valid && completed.String != "" {
		t, err := parseTime(completed.String)
		if err != nil {
			return SyncLog{}, fmt.Errorf("parsing completed_at: %w", err)
		}
		log.CompletedAt = &t
	}
	return log, nil
}
