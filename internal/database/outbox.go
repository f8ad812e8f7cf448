package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"venuebook/internal/models"
)

const outboxColumns = `id, event_type, booking_id, payload, status, retry_count, last_error, next_retry_at, created_at, updated_at`

func (s *store) CreateOutboxMessage(ctx context.Context, msg *models.OutboxMessage) error {
	query := `INSERT INTO outbox (event_type, booking_id, payload, status, retry_count, last_error, created_at, updated_at)
              VALUES (?, ?, ?, ?, 0, '', ?, ?)`
	now := time.Now()
	if msg.Status == "" {
		msg.Status = models.OutboxPending
	}
	result, err := s.q.ExecContext(ctx, query, msg.EventType, msg.BookingID, msg.Payload, msg.Status, now, now)
	if err != nil {
		return fmt.Errorf("failed to create outbox message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	msg.ID = id
	msg.CreatedAt = now
	msg.UpdatedAt = now
	return nil
}

func scanOutbox(rows *sql.Rows) ([]models.OutboxMessage, error) {
	var msgs []models.OutboxMessage
	for rows.Next() {
		var m models.OutboxMessage
		var next sql.NullTime
		err := rows.Scan(
			&m.ID, &m.EventType, &m.BookingID, &m.Payload, &m.Status,
			&m.RetryCount, &m.LastError, &next, &m.CreatedAt, &m.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox message: %w", err)
		}
		if next.Valid {
			m.NextRetryAt = next.Time
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (db *DB) GetPendingOutbox(ctx context.Context, limit int) ([]models.OutboxMessage, error) {
	query := `SELECT ` + outboxColumns + ` FROM outbox
              WHERE status IN (?, ?) AND (next_retry_at IS NULL OR next_retry_at <= ?)
              ORDER BY id ASC LIMIT ?`
	rows, err := db.QueryContext(ctx, query, models.OutboxPending, models.OutboxRetry, time.Now(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending outbox: %w", err)
	}
	defer rows.Close()
	return scanOutbox(rows)
}

func (db *DB) UpdateOutboxStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	var query string
	var args []interface{}
	now := time.Now()

	switch status {
	case models.OutboxRetry:
		query = `UPDATE outbox SET status = ?, last_error = ?, next_retry_at = ?, retry_count = retry_count + 1, updated_at = ? WHERE id = ?`
		args = []interface{}{status, errMsg, nextRetryAt, now, id}
	case models.OutboxCompleted, models.OutboxFailed:
		query = `UPDATE outbox SET status = ?, last_error = ?, next_retry_at = NULL, processed_at = ?, updated_at = ? WHERE id = ?`
		args = []interface{}{status, errMsg, now, now, id}
	default:
		query = `UPDATE outbox SET status = ?, last_error = ?, next_retry_at = ?, updated_at = ? WHERE id = ?`
		args = []interface{}{status, errMsg, nextRetryAt, now, id}
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update outbox status: %w", err)
	}
	return nil
}

func (db *DB) GetFailedOutbox(ctx context.Context) ([]models.OutboxMessage, error) {
	query := `SELECT ` + outboxColumns + ` FROM outbox WHERE status = ? ORDER BY id DESC`
	rows, err := db.QueryContext(ctx, query, models.OutboxFailed)
	if err != nil {
		return nil, fmt.Errorf("failed to get failed outbox: %w", err)
	}
	defer rows.Close()
	return scanOutbox(rows)
}
