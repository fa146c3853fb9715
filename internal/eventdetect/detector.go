package eventdetect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/inboxzero/inboxzero/internal/calendar"
	"github.com/inboxzero/inboxzero/internal/gmail"
	"github.com/inboxzero/inboxzero/internal/llm"
	"github.com/inboxzero/inboxzero/internal/logging"
	"github.com/inboxzero/inboxzero/internal/schedule"
	"github.com/inboxzero/inboxzero/internal/store"
)

// ErrAlreadyCreated is returned when confirming or dismissing a
// suggestion whose calendar event already exists.
var ErrAlreadyCreated = errors.New("event already created")

// Extractor is the slice of the LLM client the detector needs.
type Extractor interface {
	ExtractEventCandidate(ctx context.Context, email llm.EmailSummary, now time.Time, timezone string) (*llm.EventCandidate, error)
}

// Scheduler is the slice of the Calendar client the detector needs.
type Scheduler interface {
	PrimaryCalendar(ctx context.Context) (*calendar.CalendarInfo, error)
	BusyRanges(ctx context.Context, timeMin, timeMax time.Time, calendarIDs []string) ([]schedule.TimeRange, error)
	CreateEvent(ctx context.Context, calendarID string, input calendar.EventInput) (*calendar.EventSummary, error)
}

// Suggestion is the stored payload of a tracked event: the extracted
// candidate, its resolved window, any conflicting busy ranges and the
// scored alternative slots offered when the window is taken.
type Suggestion struct {
	Candidate    llm.EventCandidate   `json:"candidate"`
	Start        time.Time            `json:"start"`
	End          time.Time            `json:"end"`
	Conflicts    []schedule.TimeRange `json:"conflicts,omitempty"`
	Alternatives []schedule.Slot      `json:"alternatives,omitempty"`
}

// Detector extracts event candidates from messages and manages their
// lifecycle from suggestion to created calendar event.
type Detector struct {
	store     *store.Store
	extractor Extractor
	logger    *slog.Logger
	opts      schedule.Options
	now       func() time.Time
}

// New creates a detector with default slot-suggestion options.
func New(s *store.Store, extractor Extractor, logger *slog.Logger) *Detector {
	return &Detector{
		store:     s,
		extractor: extractor,
		logger:    logger,
		opts:      schedule.DefaultOptions(),
		now:       time.Now,
	}
}

// ProcessMessage runs event extraction on one message. When the model
// finds an event proposal, the proposed window is checked against the
// account's busy ranges; on conflict, alternative slots are attached.
// The suggestion is persisted and returned. Messages without an event,
// and messages already tracked, return nil; a re-delivered message
// must not overwrite a confirmed or dismissed suggestion.
func (d *Detector) ProcessMessage(ctx context.Context, accountID string, cal Scheduler, msg *gmail.ParsedMessage) (*Suggestion, error) {
	if msg.Sent() {
		return nil, nil
	}

	_, err := d.store.GetTrackedEventByMessage(ctx, accountID, msg.ID)
	if err == nil {
		return nil, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	timezone := "UTC"
	location := time.UTC
	if primary, err := cal.PrimaryCalendar(ctx); err == nil && primary.TimeZone != "" {
		if loc, err := time.LoadLocation(primary.TimeZone); err == nil {
			timezone = primary.TimeZone
			location = loc
		}
	}

	candidate, err := d.extractor.ExtractEventCandidate(ctx, llm.EmailSummary{
		From:    msg.From,
		To:      msg.To,
		Subject: msg.Subject,
		Body:    msg.Body(),
		Date:    msg.Date,
	}, d.now(), timezone)
	if err != nil {
		return nil, fmt.Errorf("extract event candidate: %w", err)
	}
	if !candidate.HasEvent {
		return nil, nil
	}

	start, end, err := candidate.ParseTimes()
	if err != nil {
		// The model claimed an event but returned an unusable time.
		// Not worth failing the whole message over.
		d.logger.Warn("unusable event candidate time",
			logging.Message(msg.ID),
			logging.Err(err),
		)
		return nil, nil
	}

	opts := d.opts
	opts.Location = location
	proposed := schedule.TimeRange{Start: start, End: end}

	busy, err := cal.BusyRanges(ctx, start.AddDate(0, 0, -1), start.AddDate(0, 0, opts.HorizonDays), nil)
	if err != nil {
		return nil, fmt.Errorf("query busy ranges: %w", err)
	}

	suggestion := Suggestion{Candidate: *candidate, Start: start, End: end}
	if conflicts := schedule.Conflicts(busy, proposed); len(conflicts) > 0 {
		suggestion.Conflicts = conflicts
		suggestion.Alternatives = schedule.SuggestTimes(proposed, busy, opts)
	}

	payload, err := json.Marshal(suggestion)
	if err != nil {
		return nil, fmt.Errorf("encode event suggestion: %w", err)
	}

	if err := d.store.UpsertTrackedEvent(ctx, store.TrackedEvent{
		AccountID:  accountID,
		MessageID:  msg.ID,
		ThreadID:   msg.ThreadID,
		Suggestion: string(payload),
		Status:     store.EventSuggested,
	}); err != nil {
		return nil, err
	}

	d.logger.Info("event suggested",
		logging.Message(msg.ID),
		logging.Thread(msg.ThreadID),
		slog.String("summary", candidate.Summary),
		slog.Int("conflicts", len(suggestion.Conflicts)),
	)
	return &suggestion, nil
}

// SuggestAlternatives recomputes the scored alternative slots for a
// tracked event against current busy data, regardless of whether the
// proposed window conflicts.
func (d *Detector) SuggestAlternatives(ctx context.Context, accountID, id string, cal Scheduler) ([]schedule.Slot, error) {
	event, err := d.store.GetTrackedEvent(ctx, accountID, id)
	if err != nil {
		return nil, err
	}

	suggestion, err := ParseSuggestion(event.Suggestion)
	if err != nil {
		return nil, err
	}

	opts := d.opts
	if primary, err := cal.PrimaryCalendar(ctx); err == nil && primary.TimeZone != "" {
		if loc, err := time.LoadLocation(primary.TimeZone); err == nil {
			opts.Location = loc
		}
	}

	proposed := schedule.TimeRange{Start: suggestion.Start, End: suggestion.End}
	busy, err := cal.BusyRanges(ctx, suggestion.Start.AddDate(0, 0, -1), suggestion.Start.AddDate(0, 0, opts.HorizonDays), nil)
	if err != nil {
		return nil, fmt.Errorf("query busy ranges: %w", err)
	}
	return schedule.SuggestTimes(proposed, busy, opts), nil
}

// Confirm creates the calendar event for a suggestion and records the
// created event's ID. A zero start keeps the suggested window; passing
// a start and end books one of the alternatives instead.
func (d *Detector) Confirm(ctx context.Context, accountID, id string, cal Scheduler, start, end time.Time) (*calendar.EventSummary, error) {
	event, err := d.store.GetTrackedEvent(ctx, accountID, id)
	if err != nil {
		return nil, err
	}
	if event.Status == store.EventCreated {
		return nil, fmt.Errorf("event %s: %w", id, ErrAlreadyCreated)
	}

	suggestion, err := ParseSuggestion(event.Suggestion)
	if err != nil {
		return nil, err
	}
	if start.IsZero() {
		start, end = suggestion.Start, suggestion.End
	}
	if !end.After(start) {
		return nil, fmt.Errorf("event end must be after start")
	}

	calendarID := "primary"
	timezone := ""
	if primary, err := cal.PrimaryCalendar(ctx); err == nil {
		calendarID = primary.ID
		timezone = primary.TimeZone
	}

	created, err := cal.CreateEvent(ctx, calendarID, calendar.EventInput{
		Summary:     suggestion.Candidate.Summary,
		Description: suggestion.Candidate.Description,
		Location:    suggestion.Candidate.Location,
		Start:       start,
		End:         end,
		TimeZone:    timezone,
		Attendees:   suggestion.Candidate.Attendees,
	})
	if err != nil {
		return nil, fmt.Errorf("create calendar event: %w", err)
	}

	if err := d.store.MarkEventCreated(ctx, accountID, id, created.ID); err != nil {
		return nil, err
	}

	d.logger.Info("event created",
		logging.Message(event.MessageID),
		slog.String("calendar_event_id", created.ID),
	)
	return created, nil
}

// Dismiss marks a suggestion rejected. Created events cannot be
// dismissed.
func (d *Detector) Dismiss(ctx context.Context, accountID, id string) error {
	event, err := d.store.GetTrackedEvent(ctx, accountID, id)
	if err != nil {
		return err
	}
	if event.Status == store.EventCreated {
		return fmt.Errorf("event %s: %w", id, ErrAlreadyCreated)
	}
	event.Status = store.EventDismissed
	return d.store.UpsertTrackedEvent(ctx, event)
}

// List returns tracked events, optionally filtered by status.
func (d *Detector) List(ctx context.Context, accountID, status string) ([]store.TrackedEvent, error) {
	return d.store.ListTrackedEvents(ctx, accountID, status)
}

// ParseSuggestion decodes a tracked event's stored suggestion payload.
func ParseSuggestion(raw string) (Suggestion, error) {
	var s Suggestion
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return Suggestion{}, fmt.Errorf("decode event suggestion: %w", err)
	}
	return s, nil
}
