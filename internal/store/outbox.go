package store

import (
	"context"
	"database/sql"
	"fmt"
)

// OutboxItem is an audit payload waiting for redelivery.
type OutboxItem struct {
	ID        int64
	Payload   string
	Attempts  int
	LastError string
}

// ParkAudit stores an undeliverable audit payload.
func (s *Store) ParkAudit(ctx context.Context, payload, lastErr string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_outbox (payload, attempts, last_error, parked_at) VALUES (?, 1, ?, ?)`,
		payload, lastErr, s.now().UTC().Format(timeFormat))
	if err != nil {
		return classify("park audit", fmt.Errorf("parking audit record: %w", err))
	}
	return nil
}

// PendingAudit returns up to limit parked payloads, oldest first.
func (s *Store) PendingAudit(ctx context.Context, limit int) ([]OutboxItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, payload, attempts, last_error FROM audit_outbox ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, classify("pending audit", fmt.Errorf("querying audit outbox: %w", err))
	}
	defer rows.Close()

	var out []OutboxItem
	for rows.Next() {
		var it OutboxItem
		if err := rows.Scan(&it.ID, &it.Payload, &it.Attempts, &it.LastError); err != nil {
			return nil, fmt.Errorf("scanning outbox item: %w", err)
		}
		out = append(out, it)
	}
	return out, classify("pending audit", rows.Err())
}

// AckAudit removes a delivered payload.
func (s *Store) AckAudit(ctx context.Context, itemID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM audit_outbox WHERE id = ?`, itemID); err != nil {
		return classify("ack audit", fmt.Errorf("deleting outbox item %d: %w", itemID, err))
	}
	return nil
}

// RetryAudit records another failed delivery attempt.
func (s *Store) RetryAudit(ctx context.Context, itemID int64, lastErr string) error {
	return s.Transaction(ctx, "retry audit", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE audit_outbox SET attempts = attempts + 1, last_error = ? WHERE id = ?`,
			lastErr, itemID); err != nil {
			return fmt.Errorf("updating outbox item %d: %w", itemID, err)
		}
		return nil
	})
}
