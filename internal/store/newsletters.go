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

// Newsletter statuses.
const (
	NewsletterApproved     = "approved"
	NewsletterUnsubscribed = "unsubscribed"
	NewsletterAutoArchived = "auto_archived"
)

// Newsletter tracks the user's decision about a newsletter sender.
type Newsletter struct {
	ID              string
	AccountID       string
	Sender          string
	Status          string
	UnsubscribeLink string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// UpsertNewsletter records or updates the status for a newsletter sender.
func (s *Store) UpsertNewsletter(ctx context.Context, n Newsletter) error {
	if n.AccountID == "" || n.Sender == "" || n.Status == "" {
		return fmt.Errorf("newsletter account, sender and status are required")
	}
	n.Sender = strings.ToLower(n.Sender)
	now := nowMilli()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO newsletters (id, account_id, sender, status, unsubscribe_link, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (account_id, sender) DO UPDATE SET
			status = excluded.status,
			unsubscribe_link = CASE WHEN excluded.unsubscribe_link != '' THEN excluded.unsubscribe_link ELSE newsletters.unsubscribe_link END,
			updated_at = excluded.updated_at`,
		ksuid.New().String(), n.AccountID, n.Sender, n.Status, n.UnsubscribeLink, now, now)
	if err != nil {
		return fmt.Errorf("upsert newsletter: %w", err)
	}
	return nil
}

// GetNewsletter looks up the newsletter record for a sender.
func (s *Store) GetNewsletter(ctx context.Context, accountID, sender string) (Newsletter, error) {
	var n Newsletter
	var created, updated int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, account_id, sender, status, unsubscribe_link, created_at, updated_at
		FROM newsletters WHERE account_id = ? AND sender = ?`,
		accountID, strings.ToLower(sender)).
		Scan(&n.ID, &n.AccountID, &n.Sender, &n.Status, &n.UnsubscribeLink, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Newsletter{}, ErrNotFound
	}
	if err != nil {
		return Newsletter{}, fmt.Errorf("get newsletter: %w", err)
	}
	n.CreatedAt = fromMilli(created)
	n.UpdatedAt = fromMilli(updated)
	return n, nil
}

// ListNewsletters returns newsletter records for an account.
func (s *Store) ListNewsletters(ctx context.Context, accountID string) ([]Newsletter, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, sender, status, unsubscribe_link, created_at, updated_at
		FROM newsletters WHERE account_id = ? ORDER BY sender`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list newsletters: %w", err)
	}
	defer rows.Close()

	var newsletters []Newsletter
	for rows.Next() {
		var n Newsletter
		var created, updated int64
		if err := rows.Scan(&n.ID, &n.AccountID, &n.Sender, &n.Status, &n.UnsubscribeLink, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan newsletter: %w", err)
		}
		n.CreatedAt = fromMilli(created)
		n.UpdatedAt = fromMilli(updated)
		newsletters = append(newsletters, n)
	}
	return newsletters, rows.Err()
}
