// Package gcal implements the calendar collaborator against the Google
// Calendar API. Authentication, transport, and the Google event schema
// stay inside this package; the rest of the system only sees
// calendar.API.
package gcal

import (
	"context"
	"fmt"
	"time"

	calendarapi "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"week-planner/internal/calendar"
)

const maxResultsPerList = 400

// WriteError is a failed create/update/delete against the store.
type WriteError struct {
	CalendarID string
	Op         string
	Err        error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("gcal %s on %s: %v", e.Op, e.CalendarID, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Client wraps the Google Calendar service. It implements
// calendar.API.
type Client struct {
	svc *calendarapi.Service
	loc *time.Location
}

// NewClient builds a Client from a credential source. loc is used to
// anchor all-day events, which Google returns as bare dates.
func NewClient(ctx context.Context, creds Credentials, loc *time.Location) (*Client, error) {
	ts, err := creds.TokenSource(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcal credentials: %w", err)
	}
	svc, err := calendarapi.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("gcal service: %w", err)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Client{svc: svc, loc: loc}, nil
}

// ListEvents fetches all events overlapping the window, expanded to
// single instances and ordered by start time.
func (c *Client) ListEvents(ctx context.Context, calendarID string, windowStart, windowEnd time.Time) ([]calendar.RawEvent, error) {
	call := c.svc.Events.List(calendarID).
		TimeMin(windowStart.Format(time.RFC3339)).
		TimeMax(windowEnd.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(maxResultsPerList).
		Context(ctx)

	resp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("list events on %s: %w", calendarID, err)
	}
	return c.convertEvents(resp.Items)
}

// FindByMetadata lists events in the window whose private extended
// properties contain key=value. This is how idempotent commits locate
// their prior writes.
func (c *Client) FindByMetadata(ctx context.Context, calendarID, key, value string, windowStart, windowEnd time.Time) ([]calendar.RawEvent, error) {
	call := c.svc.Events.List(calendarID).
		PrivateExtendedProperty(key + "=" + value).
		TimeMin(windowStart.Format(time.RFC3339)).
		TimeMax(windowEnd.Format(time.RFC3339)).
		SingleEvents(true).
		MaxResults(maxResultsPerList).
		Context(ctx)

	resp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("find by %s on %s: %w", key, calendarID, err)
	}
	return c.convertEvents(resp.Items)
}

// CreateEvent inserts a new event and returns its external ID.
func (c *Client) CreateEvent(ctx context.Context, calendarID string, draft calendar.EventDraft) (string, error) {
	created, err := c.svc.Events.Insert(calendarID, toGoogleEvent(draft)).Context(ctx).Do()
	if err != nil {
		return "", &WriteError{CalendarID: calendarID, Op: "insert", Err: err}
	}
	return created.Id, nil
}

// UpdateEvent patches an existing event with the draft's fields.
func (c *Client) UpdateEvent(ctx context.Context, calendarID, eventID string, draft calendar.EventDraft) error {
	if _, err := c.svc.Events.Patch(calendarID, eventID, toGoogleEvent(draft)).Context(ctx).Do(); err != nil {
		return &WriteError{CalendarID: calendarID, Op: "patch", Err: err}
	}
	return nil
}

// DeleteEvent removes an event.
func (c *Client) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	if err := c.svc.Events.Delete(calendarID, eventID).Context(ctx).Do(); err != nil {
		return &WriteError{CalendarID: calendarID, Op: "delete", Err: err}
	}
	return nil
}

func (c *Client) convertEvents(items []*calendarapi.Event) ([]calendar.RawEvent, error) {
	out := make([]calendar.RawEvent, 0, len(items))
	for _, item := range items {
		ev, ok := c.convertEvent(item)
		if !ok {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// convertEvent maps a Google event onto RawEvent. Events whose times
// cannot be parsed are dropped rather than poisoning the timeline.
func (c *Client) convertEvent(item *calendarapi.Event) (calendar.RawEvent, bool) {
	start, ok := c.parseEventTime(item.Start)
	if !ok {
		return calendar.RawEvent{}, false
	}
	end, ok := c.parseEventTime(item.End)
	if !ok {
		return calendar.RawEvent{}, false
	}

	ev := calendar.RawEvent{
		ID:           item.Id,
		Title:        item.Summary,
		Description:  item.Description,
		Start:        start,
		End:          end,
		Transparency: item.Transparency,
	}
	if item.ExtendedProperties != nil && len(item.ExtendedProperties.Private) > 0 {
		ev.Metadata = item.ExtendedProperties.Private
	}
	return ev, true
}

// parseEventTime handles both timed events (RFC3339 DateTime) and
// all-day events (bare Date, anchored to midnight in the client's
// timezone).
func (c *Client) parseEventTime(edt *calendarapi.EventDateTime) (time.Time, bool) {
	if edt == nil {
		return time.Time{}, false
	}
	if edt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, edt.DateTime)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	if edt.Date != "" {
		t, err := time.ParseInLocation("2006-01-02", edt.Date, c.loc)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}

func toGoogleEvent(draft calendar.EventDraft) *calendarapi.Event {
	ev := &calendarapi.Event{
		Summary:     draft.Title,
		Description: draft.Description,
		Start:       &calendarapi.EventDateTime{DateTime: draft.Start.Format(time.RFC3339)},
		End:         &calendarapi.EventDateTime{DateTime: draft.End.Format(time.RFC3339)},
	}
	if draft.Transparent {
		ev.Transparency = "transparent"
	}
	if len(draft.Metadata) > 0 {
		ev.ExtendedProperties = &calendarapi.EventExtendedProperties{Private: draft.Metadata}
	}
	return ev
}
