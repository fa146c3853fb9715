package store

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/ksuid"
)

// Reply tracker types.
const (
	TrackerNeedsReply    = "needs_reply"
	TrackerAwaitingReply = "awaiting_reply"
)

// ReplyTracker marks a thread as needing a reply from the user or
// awaiting a reply from the other party.
type ReplyTracker struct {
	ID        string
	AccountID string
	ThreadID  string
	Type      string
	Resolved  bool
	DueAt     time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UpsertReplyTracker creates or reopens a tracker for a thread.
func (s *Store) UpsertReplyTracker(ctx context.Context, t ReplyTracker) error {
	if t.AccountID == "" || t.ThreadID == "" || t.Type == "" {
		return fmt.Errorf("tracker account, thread and type are required")
	}
	now := nowMilli()
	var due int64
	if !t.DueAt.IsZero() {
		due = t.DueAt.UTC().UnixMilli()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reply_trackers (id, account_id, thread_id, type, resolved, due_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?, ?)
		ON CONFLICT (account_id, thread_id, type) DO UPDATE SET
			resolved = 0,
			due_at = excluded.due_at,
			updated_at = excluded.updated_at`,
		ksuid.New().String(), t.AccountID, t.ThreadID, t.Type, due, now, now)
	if err != nil {
		return fmt.Errorf("upsert reply tracker: %w", err)
	}
	return nil
}

// ResolveReplyTracker marks a tracker resolved by its ID.
func (s *Store) ResolveReplyTracker(ctx context.Context, accountID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reply_trackers SET resolved = 1, updated_at = ? WHERE id = ? AND account_id = ?`,
		nowMilli(), id, accountID)
	if err != nil {
		return fmt.Errorf("resolve reply tracker: %w", err)
	}
	return requireAffected(res)
}

// ResolveThreadTrackers resolves every open tracker on a thread; used
// when the watcher detects activity that answers the thread.
func (s *Store) ResolveThreadTrackers(ctx context.Context, accountID, threadID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE reply_trackers SET resolved = 1, updated_at = ? WHERE account_id = ? AND thread_id = ? AND resolved = 0`,
		nowMilli(), accountID, threadID)
	if err != nil {
		return fmt.Errorf("resolve thread trackers: %w", err)
	}
	return nil
}

// ListOpenReplyTrackers returns unresolved trackers, optionally
// filtered by type.
func (s *Store) ListOpenReplyTrackers(ctx context.Context, accountID, trackerType string) ([]ReplyTracker, error) {
	query := `
		SELECT id, account_id, thread_id, type, resolved, due_at, created_at, updated_at
		FROM reply_trackers WHERE account_id = ? AND resolved = 0`
	args := []any{accountID}
	if trackerType != "" {
		query += " AND type = ?"
		args = append(args, trackerType)
	}
	query += " ORDER BY created_at"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reply trackers: %w", err)
	}
	defer rows.Close()

	var trackers []ReplyTracker
	for rows.Next() {
		var t ReplyTracker
		var due, created, updated int64
		if err := rows.Scan(&t.ID, &t.AccountID, &t.ThreadID, &t.Type, &t.Resolved, &due, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan reply tracker: %w", err)
		}
		if due > 0 {
			t.DueAt = fromMilli(due)
		}
		t.CreatedAt = fromMilli(created)
		t.UpdatedAt = fromMilli(updated)
		trackers = append(trackers, t)
	}
	return trackers, rows.Err()
}
