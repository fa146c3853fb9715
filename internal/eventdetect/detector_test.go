package eventdetect

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inboxzero/inboxzero/internal/calendar"
	"github.com/inboxzero/inboxzero/internal/gmail"
	"github.com/inboxzero/inboxzero/internal/llm"
	"github.com/inboxzero/inboxzero/internal/schedule"
	"github.com/inboxzero/inboxzero/internal/store"
)

type fakeExtractor struct {
	candidate *llm.EventCandidate
	calls     int
}

func (f *fakeExtractor) ExtractEventCandidate(ctx context.Context, email llm.EmailSummary, now time.Time, timezone string) (*llm.EventCandidate, error) {
	f.calls++
	if f.candidate == nil {
		return &llm.EventCandidate{}, nil
	}
	return f.candidate, nil
}

type fakeCalendar struct {
	busy    []schedule.TimeRange
	created []calendar.EventInput
}

func (f *fakeCalendar) PrimaryCalendar(ctx context.Context) (*calendar.CalendarInfo, error) {
	return &calendar.CalendarInfo{ID: "primary", Summary: "jane@example.com", TimeZone: "UTC", Primary: true}, nil
}

func (f *fakeCalendar) BusyRanges(ctx context.Context, timeMin, timeMax time.Time, calendarIDs []string) ([]schedule.TimeRange, error) {
	return f.busy, nil
}

func (f *fakeCalendar) CreateEvent(ctx context.Context, calendarID string, input calendar.EventInput) (*calendar.EventSummary, error) {
	f.created = append(f.created, input)
	return &calendar.EventSummary{
		ID:      "cal-ev-1",
		Summary: input.Summary,
		Start:   input.Start,
		End:     input.End,
	}, nil
}

func newTestDetector(t *testing.T, extractor Extractor) (*Detector, *store.Store, string) {
	t.Helper()
	ctx := context.Background()

	s, err := store.OpenInMemory(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	account, err := s.CreateAccount(ctx, store.Account{Email: "jane@example.com"})
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	detector := New(s, extractor, logger)
	detector.now = func() time.Time {
		return time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC)
	}
	return detector, s, account.ID
}

func proposalMessage() *gmail.ParsedMessage {
	return &gmail.ParsedMessage{
		ID:        "m1",
		ThreadID:  "t1",
		From:      "Sam Lee <sam@example.com>",
		FromEmail: "sam@example.com",
		To:        "jane@example.com",
		Subject:   "Coffee Tuesday?",
		TextBody:  "Can we meet Tuesday at 10am for an hour?",
		LabelIDs:  []string{"INBOX"},
	}
}

func meetingCandidate() *llm.EventCandidate {
	return &llm.EventCandidate{
		HasEvent:        true,
		Summary:         "Coffee with Sam",
		Location:        "Blue Bottle",
		StartTime:       "2026-03-03T10:00:00Z",
		DurationMinutes: 60,
		Attendees:       []string{"sam@example.com"},
	}
}

func TestProcessMessageNoEvent(t *testing.T) {
	detector, _, accountID := newTestDetector(t, &fakeExtractor{})

	suggestion, err := detector.ProcessMessage(context.Background(), accountID, &fakeCalendar{}, proposalMessage())
	require.NoError(t, err)
	assert.Nil(t, suggestion)

	events, err := detector.List(context.Background(), accountID, "")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestProcessMessageFreeWindow(t *testing.T) {
	detector, s, accountID := newTestDetector(t, &fakeExtractor{candidate: meetingCandidate()})
	ctx := context.Background()

	suggestion, err := detector.ProcessMessage(ctx, accountID, &fakeCalendar{}, proposalMessage())
	require.NoError(t, err)
	require.NotNil(t, suggestion)

	assert.Equal(t, "Coffee with Sam", suggestion.Candidate.Summary)
	assert.Equal(t, time.Date(2026, time.March, 3, 10, 0, 0, 0, time.UTC), suggestion.Start)
	assert.Equal(t, time.Date(2026, time.March, 3, 11, 0, 0, 0, time.UTC), suggestion.End)
	assert.Empty(t, suggestion.Conflicts)
	assert.Empty(t, suggestion.Alternatives)

	event, err := s.GetTrackedEventByMessage(ctx, accountID, "m1")
	require.NoError(t, err)
	assert.Equal(t, store.EventSuggested, event.Status)

	stored, err := ParseSuggestion(event.Suggestion)
	require.NoError(t, err)
	assert.Equal(t, suggestion.Start, stored.Start)
}

func TestProcessMessageConflictAttachesAlternatives(t *testing.T) {
	busy := []schedule.TimeRange{{
		Start: time.Date(2026, time.March, 3, 9, 30, 0, 0, time.UTC),
		End:   time.Date(2026, time.March, 3, 10, 30, 0, 0, time.UTC),
	}}
	detector, _, accountID := newTestDetector(t, &fakeExtractor{candidate: meetingCandidate()})

	suggestion, err := detector.ProcessMessage(context.Background(), accountID, &fakeCalendar{busy: busy}, proposalMessage())
	require.NoError(t, err)
	require.NotNil(t, suggestion)

	require.Len(t, suggestion.Conflicts, 1)
	require.NotEmpty(t, suggestion.Alternatives)
	for _, slot := range suggestion.Alternatives {
		candidate := schedule.TimeRange{Start: slot.Start, End: slot.End}
		assert.False(t, candidate.Overlaps(busy[0]), "alternative %v overlaps busy range", slot.Start)
		assert.Equal(t, time.Hour, candidate.Duration())
	}
	// Best first.
	for i := 1; i < len(suggestion.Alternatives); i++ {
		assert.GreaterOrEqual(t, suggestion.Alternatives[i-1].Score, suggestion.Alternatives[i].Score)
	}
}

func TestProcessMessageSkipsSent(t *testing.T) {
	extractor := &fakeExtractor{candidate: meetingCandidate()}
	detector, _, accountID := newTestDetector(t, extractor)

	msg := proposalMessage()
	msg.LabelIDs = []string{"SENT"}

	suggestion, err := detector.ProcessMessage(context.Background(), accountID, &fakeCalendar{}, msg)
	require.NoError(t, err)
	assert.Nil(t, suggestion)
	assert.Zero(t, extractor.calls)
}

func TestProcessMessageUnusableTime(t *testing.T) {
	candidate := meetingCandidate()
	candidate.StartTime = "sometime next week"
	detector, _, accountID := newTestDetector(t, &fakeExtractor{candidate: candidate})

	suggestion, err := detector.ProcessMessage(context.Background(), accountID, &fakeCalendar{}, proposalMessage())
	require.NoError(t, err)
	assert.Nil(t, suggestion)

	events, err := detector.List(context.Background(), accountID, "")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestConfirmCreatesEvent(t *testing.T) {
	extractor := &fakeExtractor{candidate: meetingCandidate()}
	detector, s, accountID := newTestDetector(t, extractor)
	cal := &fakeCalendar{}
	ctx := context.Background()

	_, err := detector.ProcessMessage(ctx, accountID, cal, proposalMessage())
	require.NoError(t, err)

	tracked, err := s.GetTrackedEventByMessage(ctx, accountID, "m1")
	require.NoError(t, err)

	created, err := detector.Confirm(ctx, accountID, tracked.ID, cal, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "cal-ev-1", created.ID)

	require.Len(t, cal.created, 1)
	input := cal.created[0]
	assert.Equal(t, "Coffee with Sam", input.Summary)
	assert.Equal(t, "Blue Bottle", input.Location)
	assert.Equal(t, []string{"sam@example.com"}, input.Attendees)
	assert.Equal(t, time.Date(2026, time.March, 3, 10, 0, 0, 0, time.UTC), input.Start)

	tracked, err = s.GetTrackedEvent(ctx, accountID, tracked.ID)
	require.NoError(t, err)
	assert.Equal(t, store.EventCreated, tracked.Status)
	assert.Equal(t, "cal-ev-1", tracked.CalendarEventID)

	// Reprocessing the same message must not re-suggest a created event.
	suggestion, err := detector.ProcessMessage(ctx, accountID, cal, proposalMessage())
	require.NoError(t, err)
	assert.Nil(t, suggestion)
	assert.Equal(t, 1, extractor.calls)
}

func TestConfirmWithAlternativeSlot(t *testing.T) {
	detector, s, accountID := newTestDetector(t, &fakeExtractor{candidate: meetingCandidate()})
	cal := &fakeCalendar{}
	ctx := context.Background()

	_, err := detector.ProcessMessage(ctx, accountID, cal, proposalMessage())
	require.NoError(t, err)

	tracked, err := s.GetTrackedEventByMessage(ctx, accountID, "m1")
	require.NoError(t, err)

	altStart := time.Date(2026, time.March, 3, 14, 0, 0, 0, time.UTC)
	_, err = detector.Confirm(ctx, accountID, tracked.ID, cal, altStart, altStart.Add(time.Hour))
	require.NoError(t, err)

	require.Len(t, cal.created, 1)
	assert.Equal(t, altStart, cal.created[0].Start)
}

func TestConfirmTwiceFails(t *testing.T) {
	detector, s, accountID := newTestDetector(t, &fakeExtractor{candidate: meetingCandidate()})
	cal := &fakeCalendar{}
	ctx := context.Background()

	_, err := detector.ProcessMessage(ctx, accountID, cal, proposalMessage())
	require.NoError(t, err)

	tracked, err := s.GetTrackedEventByMessage(ctx, accountID, "m1")
	require.NoError(t, err)

	_, err = detector.Confirm(ctx, accountID, tracked.ID, cal, time.Time{}, time.Time{})
	require.NoError(t, err)

	_, err = detector.Confirm(ctx, accountID, tracked.ID, cal, time.Time{}, time.Time{})
	assert.ErrorIs(t, err, ErrAlreadyCreated)
}

func TestDismiss(t *testing.T) {
	detector, s, accountID := newTestDetector(t, &fakeExtractor{candidate: meetingCandidate()})
	ctx := context.Background()

	_, err := detector.ProcessMessage(ctx, accountID, &fakeCalendar{}, proposalMessage())
	require.NoError(t, err)

	tracked, err := s.GetTrackedEventByMessage(ctx, accountID, "m1")
	require.NoError(t, err)

	require.NoError(t, detector.Dismiss(ctx, accountID, tracked.ID))

	tracked, err = s.GetTrackedEvent(ctx, accountID, tracked.ID)
	require.NoError(t, err)
	assert.Equal(t, store.EventDismissed, tracked.Status)
}

func TestProcessMessageKeepsDismissedSuggestion(t *testing.T) {
	extractor := &fakeExtractor{candidate: meetingCandidate()}
	detector, s, accountID := newTestDetector(t, extractor)
	ctx := context.Background()

	_, err := detector.ProcessMessage(ctx, accountID, &fakeCalendar{}, proposalMessage())
	require.NoError(t, err)

	tracked, err := s.GetTrackedEventByMessage(ctx, accountID, "m1")
	require.NoError(t, err)
	require.NoError(t, detector.Dismiss(ctx, accountID, tracked.ID))

	// The history fallback can deliver a message twice; a dismissed
	// suggestion must stay dismissed.
	suggestion, err := detector.ProcessMessage(ctx, accountID, &fakeCalendar{}, proposalMessage())
	require.NoError(t, err)
	assert.Nil(t, suggestion)
	assert.Equal(t, 1, extractor.calls)

	tracked, err = s.GetTrackedEvent(ctx, accountID, tracked.ID)
	require.NoError(t, err)
	assert.Equal(t, store.EventDismissed, tracked.Status)
}

func TestSuggestAlternatives(t *testing.T) {
	busy := []schedule.TimeRange{{
		Start: time.Date(2026, time.March, 3, 9, 0, 0, 0, time.UTC),
		End:   time.Date(2026, time.March, 3, 12, 0, 0, 0, time.UTC),
	}}
	detector, s, accountID := newTestDetector(t, &fakeExtractor{candidate: meetingCandidate()})
	ctx := context.Background()

	_, err := detector.ProcessMessage(ctx, accountID, &fakeCalendar{busy: busy}, proposalMessage())
	require.NoError(t, err)

	tracked, err := s.GetTrackedEventByMessage(ctx, accountID, "m1")
	require.NoError(t, err)

	slots, err := detector.SuggestAlternatives(ctx, accountID, tracked.ID, &fakeCalendar{busy: busy})
	require.NoError(t, err)
	require.NotEmpty(t, slots)
	for _, slot := range slots {
		assert.False(t, (schedule.TimeRange{Start: slot.Start, End: slot.End}).Overlaps(busy[0]))
	}
}
