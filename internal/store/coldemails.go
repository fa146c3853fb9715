package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/ksuid"
)

// Cold email statuses.
const (
	ColdEmailBlocked = "blocked"
	ColdEmailAllowed = "allowed"
)

// ColdEmail records the blocker's verdict on a sender.
type ColdEmail struct {
	ID        string
	AccountID string
	Sender    string
	Status    string
	Reason    string
	MessageID string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UpsertColdEmail records or updates a cold email verdict for a sender.
func (s *Store) UpsertColdEmail(ctx context.Context, c ColdEmail) error {
	if c.AccountID == "" || c.Sender == "" || c.Status == "" {
		return fmt.Errorf("cold email account, sender and status are required")
	}
	c.Sender = strings.ToLower(c.Sender)
	now := nowMilli()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cold_emails (id, account_id, sender, status, reason, message_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (account_id, sender) DO UPDATE SET
			status = excluded.status,
			reason = excluded.reason,
			message_id = excluded.message_id,
			updated_at = excluded.updated_at`,
		ksuid.New().String(), c.AccountID, c.Sender, c.Status, c.Reason, c.MessageID, now, now)
	if err != nil {
		return fmt.Errorf("upsert cold email: %w", err)
	}
	return nil
}

// GetColdEmail looks up the verdict for a sender, if any.
func (s *Store) GetColdEmail(ctx context.Context, accountID, sender string) (ColdEmail, error) {
	var c ColdEmail
	var created, updated int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, account_id, sender, status, reason, message_id, created_at, updated_at
		FROM cold_emails WHERE account_id = ? AND sender = ?`,
		accountID, strings.ToLower(sender)).
		Scan(&c.ID, &c.AccountID, &c.Sender, &c.Status, &c.Reason, &c.MessageID, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return ColdEmail{}, ErrNotFound
	}
	if err != nil {
		return ColdEmail{}, fmt.Errorf("get cold email: %w", err)
	}
	c.CreatedAt = fromMilli(created)
	c.UpdatedAt = fromMilli(updated)
	return c, nil
}

// ListColdEmails returns recorded cold email verdicts, optionally
// filtered by status.
func (s *Store) ListColdEmails(ctx context.Context, accountID, status string) ([]ColdEmail, error) {
	query := `
		SELECT id, account_id, sender, status, reason, message_id, created_at, updated_at
		FROM cold_emails WHERE account_id = ?`
	args := []any{accountID}
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	query += " ORDER BY updated_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cold emails: %w", err)
	}
	defer rows.Close()

	var entries []ColdEmail
	for rows.Next() {
		var c ColdEmail
		var created, updated int64
		if err := rows.Scan(&c.ID, &c.AccountID, &c.Sender, &c.Status, &c.Reason, &c.MessageID, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan cold email: %w", err)
		}
		c.CreatedAt = fromMilli(created)
		c.UpdatedAt = fromMilli(updated)
		entries = append(entries, c)
	}
	return entries, rows.Err()
}
