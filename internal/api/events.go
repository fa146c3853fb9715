package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/inboxzero/inboxzero/internal/eventdetect"
	"github.com/inboxzero/inboxzero/internal/logging"
	"github.com/inboxzero/inboxzero/internal/schedule"
)

type replyTrackerResponse struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"thread_id"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *Handler) listReplyTrackers(w http.ResponseWriter, r *http.Request) {
	account := accountFrom(r)

	list, err := h.pipeline.Tracker().Open(r.Context(), account.ID, r.URL.Query().Get("type"))
	if err != nil {
		h.serveErr(w, "list reply trackers", err)
		return
	}

	out := make([]replyTrackerResponse, 0, len(list))
	for _, t := range list {
		out = append(out, replyTrackerResponse{
			ID:        t.ID,
			ThreadID:  t.ThreadID,
			Type:      t.Type,
			CreatedAt: t.CreatedAt,
		})
	}
	respond(w, http.StatusOK, out)
}

func (h *Handler) resolveReplyTracker(w http.ResponseWriter, r *http.Request) {
	account := accountFrom(r)

	id := r.PathValue("id")
	if err := h.pipeline.Tracker().Resolve(r.Context(), account.ID, id); err != nil {
		h.serveErr(w, "resolve reply tracker", err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"id": id, "status": "resolved"})
}

type trackedEventResponse struct {
	ID              string                 `json:"id"`
	MessageID       string                 `json:"message_id"`
	ThreadID        string                 `json:"thread_id"`
	Status          string                 `json:"status"`
	CalendarEventID string                 `json:"calendar_event_id,omitempty"`
	Suggestion      eventdetect.Suggestion `json:"suggestion"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	account := accountFrom(r)

	list, err := h.pipeline.Events().List(r.Context(), account.ID, r.URL.Query().Get("status"))
	if err != nil {
		h.serveErr(w, "list events", err)
		return
	}

	out := make([]trackedEventResponse, 0, len(list))
	for _, e := range list {
		suggestion, err := eventdetect.ParseSuggestion(e.Suggestion)
		if err != nil {
			h.logger.Error("decode event suggestion", logging.Err(err))
			continue
		}
		out = append(out, trackedEventResponse{
			ID:              e.ID,
			MessageID:       e.MessageID,
			ThreadID:        e.ThreadID,
			Status:          e.Status,
			CalendarEventID: e.CalendarEventID,
			Suggestion:      suggestion,
			UpdatedAt:       e.UpdatedAt,
		})
	}
	respond(w, http.StatusOK, out)
}

type suggestTimesRequest struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type suggestTimesResponse struct {
	Conflicts   []schedule.TimeRange `json:"conflicts"`
	Suggestions []schedule.Slot      `json:"suggestions"`
}

// suggestTimes checks a proposed window against the account's calendar
// and returns conflicting busy ranges plus scored alternative slots.
func (h *Handler) suggestTimes(w http.ResponseWriter, r *http.Request) {
	account := accountFrom(r)

	var req suggestTimesRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	if req.Start.IsZero() || !req.End.After(req.Start) {
		respondError(w, http.StatusBadRequest, "start must precede end")
		return
	}

	cal, err := h.clients.Calendar(r.Context(), account)
	if err != nil {
		h.serveErr(w, "build calendar", err)
		return
	}

	opts := schedule.DefaultOptions()
	if primary, err := cal.PrimaryCalendar(r.Context()); err == nil && primary.TimeZone != "" {
		if loc, err := time.LoadLocation(primary.TimeZone); err == nil {
			opts.Location = loc
		}
	}

	proposed := schedule.TimeRange{Start: req.Start, End: req.End}
	busy, err := cal.BusyRanges(r.Context(), req.Start.AddDate(0, 0, -1), req.Start.AddDate(0, 0, opts.HorizonDays), nil)
	if err != nil {
		h.serveErr(w, "query busy ranges", err)
		return
	}

	resp := suggestTimesResponse{
		Conflicts:   schedule.Conflicts(busy, proposed),
		Suggestions: schedule.SuggestTimes(proposed, busy, opts),
	}
	respond(w, http.StatusOK, resp)
}

type confirmEventRequest struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// confirmEvent books a suggested event on the account's calendar. An
// empty body keeps the suggested window; a start and end books an
// alternative slot.
func (h *Handler) confirmEvent(w http.ResponseWriter, r *http.Request) {
	account := accountFrom(r)

	var req confirmEventRequest
	if err := decode(r, &req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	cal, err := h.clients.Calendar(r.Context(), account)
	if err != nil {
		h.serveErr(w, "build calendar", err)
		return
	}

	created, err := h.pipeline.Events().Confirm(r.Context(), account.ID, r.PathValue("id"), cal, req.Start, req.End)
	if err != nil {
		if errors.Is(err, eventdetect.ErrAlreadyCreated) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		h.serveErr(w, "confirm event", err)
		return
	}
	h.metrics.RecordEventSuggestion(r.Context(), "created")
	respond(w, http.StatusOK, created)
}

func (h *Handler) dismissEvent(w http.ResponseWriter, r *http.Request) {
	account := accountFrom(r)

	id := r.PathValue("id")
	if err := h.pipeline.Events().Dismiss(r.Context(), account.ID, id); err != nil {
		if errors.Is(err, eventdetect.ErrAlreadyCreated) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		h.serveErr(w, "dismiss event", err)
		return
	}
	h.metrics.RecordEventSuggestion(r.Context(), "dismissed")
	respond(w, http.StatusOK, map[string]string{"id": id, "status": "dismissed"})
}
