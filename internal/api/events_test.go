package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inboxzero/inboxzero/internal/calendar"
	"github.com/inboxzero/inboxzero/internal/eventdetect"
	"github.com/inboxzero/inboxzero/internal/llm"
	"github.com/inboxzero/inboxzero/internal/schedule"
	"github.com/inboxzero/inboxzero/internal/store"
)

// seedTrackedEvent stores a suggestion and returns its generated ID.
func seedTrackedEvent(t *testing.T, fx *fixture, start, end time.Time) string {
	t.Helper()
	ctx := context.Background()

	payload, err := json.Marshal(eventdetect.Suggestion{
		Candidate: llm.EventCandidate{HasEvent: true, Summary: "Coffee with Sam"},
		Start:     start,
		End:       end,
	})
	require.NoError(t, err)

	require.NoError(t, fx.store.UpsertTrackedEvent(ctx, store.TrackedEvent{
		AccountID:  fx.account.ID,
		MessageID:  "m1",
		ThreadID:   "t1",
		Suggestion: string(payload),
		Status:     store.EventSuggested,
	}))

	events, err := fx.store.ListTrackedEvents(ctx, fx.account.ID, "")
	require.NoError(t, err)
	require.Len(t, events, 1)
	return events[0].ID
}

func TestListEvents(t *testing.T) {
	fx := newFixture(t)
	start := time.Date(2026, 9, 9, 10, 0, 0, 0, time.UTC)
	seedTrackedEvent(t, fx, start, start.Add(time.Hour))

	rec := fx.do(t, http.MethodGet, "/api/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]trackedEventResponse](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, store.EventSuggested, list[0].Status)
	assert.Equal(t, "Coffee with Sam", list[0].Suggestion.Candidate.Summary)
	assert.True(t, list[0].Suggestion.Start.Equal(start))
}

func TestConfirmEvent(t *testing.T) {
	fx := newFixture(t)
	start := time.Date(2026, 9, 9, 10, 0, 0, 0, time.UTC)
	id := seedTrackedEvent(t, fx, start, start.Add(time.Hour))

	rec := fx.do(t, http.MethodPost, "/api/events/"+id+"/confirm", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decodeBody[calendar.EventSummary](t, rec)
	assert.Equal(t, "cal-ev-1", created.ID)

	require.Len(t, fx.clients.cal.created, 1)
	assert.Equal(t, "Coffee with Sam", fx.clients.cal.created[0].Summary)
	assert.True(t, fx.clients.cal.created[0].Start.Equal(start))

	event, err := fx.store.GetTrackedEvent(context.Background(), fx.account.ID, id)
	require.NoError(t, err)
	assert.Equal(t, store.EventCreated, event.Status)
	assert.Equal(t, "cal-ev-1", event.CalendarEventID)

	// Confirming again conflicts.
	rec = fx.do(t, http.MethodPost, "/api/events/"+id+"/confirm", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestConfirmEventAlternativeSlot(t *testing.T) {
	fx := newFixture(t)
	start := time.Date(2026, 9, 9, 10, 0, 0, 0, time.UTC)
	id := seedTrackedEvent(t, fx, start, start.Add(time.Hour))

	alt := start.Add(4 * time.Hour)
	rec := fx.do(t, http.MethodPost, "/api/events/"+id+"/confirm",
		confirmEventRequest{Start: alt, End: alt.Add(time.Hour)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Len(t, fx.clients.cal.created, 1)
	assert.True(t, fx.clients.cal.created[0].Start.Equal(alt))
}

func TestDismissEvent(t *testing.T) {
	fx := newFixture(t)
	start := time.Date(2026, 9, 9, 10, 0, 0, 0, time.UTC)
	id := seedTrackedEvent(t, fx, start, start.Add(time.Hour))

	rec := fx.do(t, http.MethodPost, "/api/events/"+id+"/dismiss", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	event, err := fx.store.GetTrackedEvent(context.Background(), fx.account.ID, id)
	require.NoError(t, err)
	assert.Equal(t, store.EventDismissed, event.Status)

	rec = fx.do(t, http.MethodPost, "/api/events/unknown-id/dismiss", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSuggestTimes(t *testing.T) {
	fx := newFixture(t)

	// Wednesday 10:00-11:00 UTC, with a meeting already sitting on it.
	start := time.Date(2026, 9, 9, 10, 0, 0, 0, time.UTC)
	fx.clients.cal.busy = []schedule.TimeRange{
		{Start: start.Add(-30 * time.Minute), End: start.Add(30 * time.Minute)},
	}

	rec := fx.do(t, http.MethodPost, "/api/events/suggest-times",
		suggestTimesRequest{Start: start, End: start.Add(time.Hour)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeBody[suggestTimesResponse](t, rec)
	require.Len(t, resp.Conflicts, 1)
	require.NotEmpty(t, resp.Suggestions)
	for _, slot := range resp.Suggestions {
		assert.False(t, schedule.TimeRange{Start: slot.Start, End: slot.End}.
			Overlaps(fx.clients.cal.busy[0]))
	}
}

func TestSuggestTimesRejectsBadWindow(t *testing.T) {
	fx := newFixture(t)

	start := time.Date(2026, 9, 9, 10, 0, 0, 0, time.UTC)
	rec := fx.do(t, http.MethodPost, "/api/events/suggest-times",
		suggestTimesRequest{Start: start, End: start.Add(-time.Hour)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReplyTrackers(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.store.UpsertReplyTracker(ctx, store.ReplyTracker{
		AccountID: fx.account.ID,
		ThreadID:  "t1",
		Type:      store.TrackerNeedsReply,
	}))
	require.NoError(t, fx.store.UpsertReplyTracker(ctx, store.ReplyTracker{
		AccountID: fx.account.ID,
		ThreadID:  "t2",
		Type:      store.TrackerAwaitingReply,
	}))

	rec := fx.do(t, http.MethodGet, "/api/reply-tracker", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]replyTrackerResponse](t, rec)
	require.Len(t, list, 2)

	rec = fx.do(t, http.MethodGet, "/api/reply-tracker?type="+store.TrackerNeedsReply, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	filtered := decodeBody[[]replyTrackerResponse](t, rec)
	require.Len(t, filtered, 1)
	assert.Equal(t, "t1", filtered[0].ThreadID)

	rec = fx.do(t, http.MethodPost, "/api/reply-tracker/"+filtered[0].ID+"/resolve", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	open, err := fx.store.ListOpenReplyTrackers(ctx, fx.account.ID, "")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "t2", open[0].ThreadID)

	rec = fx.do(t, http.MethodPost, "/api/reply-tracker/unknown-id/resolve", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
