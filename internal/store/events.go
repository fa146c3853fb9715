package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/ksuid"
)

// Tracked event statuses.
const (
	EventSuggested = "suggested" // candidate extracted, awaiting confirmation
	EventCreated   = "created"   // calendar event created
	EventDismissed = "dismissed" // user rejected the suggestion
)

// TrackedEvent links an email message to a calendar event suggestion
// and, once confirmed, to the created calendar event.
type TrackedEvent struct {
	ID              string
	AccountID       string
	MessageID       string
	ThreadID        string
	CalendarEventID string
	Suggestion      string // JSON candidate + alternative slots
	Status          string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// UpsertTrackedEvent stores the suggestion for a message. Reprocessing
// the same message refreshes the suggestion unless the event was
// already created.
func (s *Store) UpsertTrackedEvent(ctx context.Context, e TrackedEvent) error {
	if e.AccountID == "" || e.MessageID == "" || e.Status == "" {
		return fmt.Errorf("event account, message and status are required")
	}
	if e.Suggestion == "" {
		e.Suggestion = "{}"
	}
	now := nowMilli()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tracked_events (id, account_id, message_id, thread_id, calendar_event_id, suggestion, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (account_id, message_id) DO UPDATE SET
			thread_id = excluded.thread_id,
			suggestion = excluded.suggestion,
			status = excluded.status,
			updated_at = excluded.updated_at
		WHERE tracked_events.status != 'created'`,
		ksuid.New().String(), e.AccountID, e.MessageID, e.ThreadID, e.CalendarEventID, e.Suggestion, e.Status, now, now)
	if err != nil {
		return fmt.Errorf("upsert tracked event: %w", err)
	}
	return nil
}

// GetTrackedEvent retrieves a tracked event by ID scoped to an account.
func (s *Store) GetTrackedEvent(ctx context.Context, accountID, id string) (TrackedEvent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, account_id, message_id, thread_id, calendar_event_id, suggestion, status, created_at, updated_at
		FROM tracked_events WHERE id = ? AND account_id = ?`, id, accountID)
	return scanTrackedEvent(row)
}

// GetTrackedEventByMessage retrieves a tracked event by source message.
func (s *Store) GetTrackedEventByMessage(ctx context.Context, accountID, messageID string) (TrackedEvent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, account_id, message_id, thread_id, calendar_event_id, suggestion, status, created_at, updated_at
		FROM tracked_events WHERE account_id = ? AND message_id = ?`, accountID, messageID)
	return scanTrackedEvent(row)
}

// ListTrackedEvents returns tracked events, optionally filtered by status.
func (s *Store) ListTrackedEvents(ctx context.Context, accountID, status string) ([]TrackedEvent, error) {
	query := `
		SELECT id, account_id, message_id, thread_id, calendar_event_id, suggestion, status, created_at, updated_at
		FROM tracked_events WHERE account_id = ?`
	args := []any{accountID}
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tracked events: %w", err)
	}
	defer rows.Close()

	var events []TrackedEvent
	for rows.Next() {
		e, err := scanTrackedEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// MarkEventCreated records the created calendar event ID for a suggestion.
func (s *Store) MarkEventCreated(ctx context.Context, accountID, id, calendarEventID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tracked_events SET calendar_event_id = ?, status = ?, updated_at = ?
		WHERE id = ? AND account_id = ?`,
		calendarEventID, EventCreated, nowMilli(), id, accountID)
	if err != nil {
		return fmt.Errorf("mark event created: %w", err)
	}
	return requireAffected(res)
}

func scanTrackedEvent(row rowScanner) (TrackedEvent, error) {
	var e TrackedEvent
	var created, updated int64
	err := row.Scan(&e.ID, &e.AccountID, &e.MessageID, &e.ThreadID, &e.CalendarEventID, &e.Suggestion, &e.Status, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return TrackedEvent{}, ErrNotFound
	}
	if err != nil {
		return TrackedEvent{}, fmt.Errorf("scan tracked event: %w", err)
	}
	e.CreatedAt = fromMilli(created)
	e.UpdatedAt = fromMilli(updated)
	return e, nil
}
