package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/ksuid"
)

// Execution statuses for rule runs.
const (
	ExecutionPending  = "pending"  // matched but rule is not automated; awaiting confirmation
	ExecutionApplied  = "applied"  // actions were executed
	ExecutionRejected = "rejected" // pending execution rejected by the user
	ExecutionError    = "error"    // actions failed partway
)

// ExecutedRule records a single rule run against a message.
type ExecutedRule struct {
	ID        string
	AccountID string
	RuleID    string
	MessageID string
	ThreadID  string
	Status    string
	Actions   string // JSON of the actions applied (or planned, when pending)
	CreatedAt time.Time
}

// RecordExecution inserts an execution audit row. Duplicate
// (rule, message) pairs are ignored so reprocessing is idempotent.
func (s *Store) RecordExecution(ctx context.Context, e ExecutedRule) (ExecutedRule, error) {
	if e.AccountID == "" || e.RuleID == "" || e.MessageID == "" {
		return ExecutedRule{}, fmt.Errorf("execution account, rule and message ids are required")
	}
	if e.Actions == "" {
		e.Actions = "[]"
	}
	e.ID = ksuid.New().String()
	now := nowMilli()
	e.CreatedAt = fromMilli(now)

	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO executed_rules (id, account_id, rule_id, message_id, thread_id, status, actions, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.AccountID, e.RuleID, e.MessageID, e.ThreadID, e.Status, e.Actions, now)
	if err != nil {
		return ExecutedRule{}, fmt.Errorf("insert execution: %w", err)
	}
	return e, nil
}

// HasExecution reports whether a rule already ran against a message.
func (s *Store) HasExecution(ctx context.Context, accountID, ruleID, messageID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM executed_rules WHERE account_id = ? AND rule_id = ? AND message_id = ?`,
		accountID, ruleID, messageID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check execution: %w", err)
	}
	return n > 0, nil
}

// UpdateExecutionStatus transitions an execution row (e.g. pending -> applied).
func (s *Store) UpdateExecutionStatus(ctx context.Context, accountID, id, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE executed_rules SET status = ? WHERE id = ? AND account_id = ?`,
		status, id, accountID)
	if err != nil {
		return fmt.Errorf("update execution status: %w", err)
	}
	return requireAffected(res)
}

// ListExecutions returns the most recent executions for an account.
func (s *Store) ListExecutions(ctx context.Context, accountID string, limit int) ([]ExecutedRule, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, rule_id, message_id, thread_id, status, actions, created_at
		FROM executed_rules WHERE account_id = ? ORDER BY created_at DESC LIMIT ?`,
		accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var executions []ExecutedRule
	for rows.Next() {
		var e ExecutedRule
		var created int64
		if err := rows.Scan(&e.ID, &e.AccountID, &e.RuleID, &e.MessageID, &e.ThreadID, &e.Status, &e.Actions, &created); err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		e.CreatedAt = fromMilli(created)
		executions = append(executions, e)
	}
	return executions, rows.Err()
}

// GetExecution retrieves one execution row scoped to an account.
func (s *Store) GetExecution(ctx context.Context, accountID, id string) (ExecutedRule, error) {
	var e ExecutedRule
	var created int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, account_id, rule_id, message_id, thread_id, status, actions, created_at
		FROM executed_rules WHERE id = ? AND account_id = ?`, id, accountID).
		Scan(&e.ID, &e.AccountID, &e.RuleID, &e.MessageID, &e.ThreadID, &e.Status, &e.Actions, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return ExecutedRule{}, ErrNotFound
	}
	if err != nil {
		return ExecutedRule{}, fmt.Errorf("get execution: %w", err)
	}
	e.CreatedAt = fromMilli(created)
	return e, nil
}
