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

// Category sources.
const (
	CategorySourceLLM    = "llm"
	CategorySourceManual = "manual"
)

// SenderCategory maps a sender address to a category for an account.
type SenderCategory struct {
	ID        string
	AccountID string
	Sender    string
	Category  string
	Source    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UpsertSenderCategory inserts or replaces the category for a sender.
// Manual assignments are never overwritten by LLM ones.
func (s *Store) UpsertSenderCategory(ctx context.Context, c SenderCategory) error {
	if c.AccountID == "" || c.Sender == "" || c.Category == "" {
		return fmt.Errorf("category account, sender and category are required")
	}
	if c.Source == "" {
		c.Source = CategorySourceLLM
	}
	c.Sender = strings.ToLower(c.Sender)
	now := nowMilli()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sender_categories (id, account_id, sender, category, source, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (account_id, sender) DO UPDATE SET
			category = excluded.category,
			source = excluded.source,
			updated_at = excluded.updated_at
		WHERE sender_categories.source != 'manual' OR excluded.source = 'manual'`,
		ksuid.New().String(), c.AccountID, c.Sender, c.Category, c.Source, now, now)
	if err != nil {
		return fmt.Errorf("upsert sender category: %w", err)
	}
	return nil
}

// GetSenderCategory looks up the category for a sender address.
func (s *Store) GetSenderCategory(ctx context.Context, accountID, sender string) (SenderCategory, error) {
	var c SenderCategory
	var created, updated int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, account_id, sender, category, source, created_at, updated_at
		FROM sender_categories WHERE account_id = ? AND sender = ?`,
		accountID, strings.ToLower(sender)).
		Scan(&c.ID, &c.AccountID, &c.Sender, &c.Category, &c.Source, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return SenderCategory{}, ErrNotFound
	}
	if err != nil {
		return SenderCategory{}, fmt.Errorf("get sender category: %w", err)
	}
	c.CreatedAt = fromMilli(created)
	c.UpdatedAt = fromMilli(updated)
	return c, nil
}

// ListSenderCategories returns all categorized senders for an account.
func (s *Store) ListSenderCategories(ctx context.Context, accountID string) ([]SenderCategory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, sender, category, source, created_at, updated_at
		FROM sender_categories WHERE account_id = ? ORDER BY sender`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list sender categories: %w", err)
	}
	defer rows.Close()

	var categories []SenderCategory
	for rows.Next() {
		var c SenderCategory
		var created, updated int64
		if err := rows.Scan(&c.ID, &c.AccountID, &c.Sender, &c.Category, &c.Source, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan sender category: %w", err)
		}
		c.CreatedAt = fromMilli(created)
		c.UpdatedAt = fromMilli(updated)
		categories = append(categories, c)
	}
	return categories, rows.Err()
}
