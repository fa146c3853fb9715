package calendar

import (
	"context"
	"fmt"
	"net/http"
	"time"

	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/inboxzero/inboxzero/internal/instrumentation"
	"github.com/inboxzero/inboxzero/internal/schedule"
)

// Client wraps the Google Calendar service for a single account.
type Client struct {
	svc     *calendar.Service
	account string
	metrics *instrumentation.Metrics
}

// New creates a Calendar client for an account. The HTTP client must
// carry OAuth2 credentials for that account.
func New(ctx context.Context, httpClient *http.Client, account string) (*Client, error) {
	svc, err := calendar.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create Calendar service: %w", err)
	}
	return &Client{svc: svc, account: account, metrics: &instrumentation.Metrics{}}, nil
}

// WithMetrics sets the recorder for Google API operation metrics.
// Returns the client for chaining at construction.
func (c *Client) WithMetrics(m *instrumentation.Metrics) *Client {
	if m != nil {
		c.metrics = m
	}
	return c
}

// record reports one mutating Calendar API call to the metrics recorder.
func (c *Client) record(ctx context.Context, operation string, start time.Time, err error) {
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	c.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceCalendar, operation, status, time.Since(start))
}

// Account returns the account email this client is associated with.
func (c *Client) Account() string {
	return c.account
}

// ListEvents lists events in a calendar within a time range, expanded
// to single instances and ordered by start time.
func (c *Client) ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]EventSummary, error) {
	events, err := c.svc.Events.List(calendarID).
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	var summaries []EventSummary
	for _, event := range events.Items {
		summaries = append(summaries, toEventSummary(event))
	}
	return summaries, nil
}

// GetEvent retrieves a specific event by ID.
func (c *Client) GetEvent(ctx context.Context, calendarID, eventID string) (*EventSummary, error) {
	event, err := c.svc.Events.Get(calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	summary := toEventSummary(event)
	return &summary, nil
}

// CreateEvent creates a new calendar event.
func (c *Client) CreateEvent(ctx context.Context, calendarID string, input EventInput) (*EventSummary, error) {
	if input.TimeZone == "" {
		input.TimeZone = "UTC"
	}

	event := &calendar.Event{
		Summary:     input.Summary,
		Description: input.Description,
		Location:    input.Location,
		Start: &calendar.EventDateTime{
			DateTime: input.Start.Format(time.RFC3339),
			TimeZone: input.TimeZone,
		},
		End: &calendar.EventDateTime{
			DateTime: input.End.Format(time.RFC3339),
			TimeZone: input.TimeZone,
		},
	}

	for _, email := range input.Attendees {
		event.Attendees = append(event.Attendees, &calendar.EventAttendee{Email: email})
	}

	call := c.svc.Events.Insert(calendarID, event)
	if input.AddMeetLink {
		call = call.ConferenceDataVersion(1)
		event.ConferenceData = &calendar.ConferenceData{
			CreateRequest: &calendar.CreateConferenceRequest{
				RequestId: fmt.Sprintf("meet-%d", time.Now().UnixNano()),
			},
		}
	}

	start := time.Now()
	created, err := call.Context(ctx).Do()
	c.record(ctx, "create_event", start, err)
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}

	summary := toEventSummary(created)
	return &summary, nil
}

// DeleteEvent deletes a calendar event.
func (c *Client) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	start := time.Now()
	err := c.svc.Events.Delete(calendarID, eventID).Context(ctx).Do()
	c.record(ctx, "delete_event", start, err)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

// ListCalendars lists all calendars accessible to the account.
func (c *Client) ListCalendars(ctx context.Context) ([]CalendarInfo, error) {
	list, err := c.svc.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list calendars: %w", err)
	}

	var calendars []CalendarInfo
	for _, entry := range list.Items {
		calendars = append(calendars, toCalendarInfo(entry))
	}
	return calendars, nil
}

// PrimaryCalendar retrieves the account's primary calendar, which
// carries the account's timezone.
func (c *Client) PrimaryCalendar(ctx context.Context) (*CalendarInfo, error) {
	entry, err := c.svc.CalendarList.Get("primary").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get primary calendar: %w", err)
	}
	info := toCalendarInfo(entry)
	return &info, nil
}

// BusyRanges queries free/busy for the given calendars and returns all
// busy periods, unmerged. Callers merge with schedule.MergeBusy.
func (c *Client) BusyRanges(ctx context.Context, timeMin, timeMax time.Time, calendarIDs []string) ([]schedule.TimeRange, error) {
	if len(calendarIDs) == 0 {
		calendarIDs = []string{"primary"}
	}

	items := make([]*calendar.FreeBusyRequestItem, len(calendarIDs))
	for i, id := range calendarIDs {
		items[i] = &calendar.FreeBusyRequestItem{Id: id}
	}

	result, err := c.svc.Freebusy.Query(&calendar.FreeBusyRequest{
		TimeMin: timeMin.Format(time.RFC3339),
		TimeMax: timeMax.Format(time.RFC3339),
		Items:   items,
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("query freebusy: %w", err)
	}

	var busy []schedule.TimeRange
	for _, cal := range result.Calendars {
		busy = append(busy, parseBusyPeriods(cal.Busy)...)
	}
	return busy, nil
}
