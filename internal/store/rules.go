package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/ksuid"
)

// Rule is the persisted form of an automation rule. Conditions and
// Actions are JSON documents owned by the rules package; the store
// treats them as opaque.
type Rule struct {
	ID          string
	AccountID   string
	Name        string
	Conditions  string // JSON
	Conjunction string // "AND" or "OR"
	Actions     string // JSON
	Enabled     bool
	Automate    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateRule inserts a rule and returns it with its generated ID.
func (s *Store) CreateRule(ctx context.Context, r Rule) (Rule, error) {
	if r.AccountID == "" || r.Name == "" {
		return Rule{}, fmt.Errorf("rule account id and name are required")
	}
	if r.Conjunction == "" {
		r.Conjunction = "AND"
	}
	r.ID = ksuid.New().String()
	now := nowMilli()
	r.CreatedAt = fromMilli(now)
	r.UpdatedAt = fromMilli(now)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rules (id, account_id, name, conditions, conjunction, actions, enabled, automate, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.AccountID, r.Name, r.Conditions, r.Conjunction, r.Actions, r.Enabled, r.Automate, now, now)
	if err != nil {
		return Rule{}, fmt.Errorf("insert rule: %w", err)
	}
	return r, nil
}

// UpdateRule replaces the mutable fields of a rule.
func (s *Store) UpdateRule(ctx context.Context, r Rule) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE rules SET name = ?, conditions = ?, conjunction = ?, actions = ?, enabled = ?, automate = ?, updated_at = ?
		WHERE id = ? AND account_id = ?`,
		r.Name, r.Conditions, r.Conjunction, r.Actions, r.Enabled, r.Automate, nowMilli(), r.ID, r.AccountID)
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	return requireAffected(res)
}

// GetRule retrieves a rule scoped to an account.
func (s *Store) GetRule(ctx context.Context, accountID, id string) (Rule, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, account_id, name, conditions, conjunction, actions, enabled, automate, created_at, updated_at
		FROM rules WHERE id = ? AND account_id = ?`, id, accountID)
	return scanRule(row)
}

// ListRules returns all rules for an account, enabled or not.
func (s *Store) ListRules(ctx context.Context, accountID string) ([]Rule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, name, conditions, conjunction, actions, enabled, automate, created_at, updated_at
		FROM rules WHERE account_id = ? ORDER BY created_at`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// DeleteRule removes a rule scoped to an account.
func (s *Store) DeleteRule(ctx context.Context, accountID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM rules WHERE id = ? AND account_id = ?`, id, accountID)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	return requireAffected(res)
}

func scanRule(row rowScanner) (Rule, error) {
	var r Rule
	var created, updated int64
	err := row.Scan(&r.ID, &r.AccountID, &r.Name, &r.Conditions, &r.Conjunction, &r.Actions, &r.Enabled, &r.Automate, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Rule{}, ErrNotFound
	}
	if err != nil {
		return Rule{}, fmt.Errorf("scan rule: %w", err)
	}
	r.CreatedAt = fromMilli(created)
	r.UpdatedAt = fromMilli(updated)
	return r, nil
}
