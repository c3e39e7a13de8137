package calendar

import (
	"context"
	"fmt"
	"time"

	"week-planner/internal/interval"
)

// Category classifies a block of time. The set is closed; anything else
// is rejected at parse time rather than carried along as a free-form
// string.
type Category string

const (
	CategoryWork    Category = "work"
	CategoryFamily  Category = "family"
	CategoryFood    Category = "food"
	CategoryChores  Category = "chores"
	CategoryHobbies Category = "hobbies"
	CategoryNotes   Category = "notes"
	CategoryPrimary Category = "primary"
)

// Categories lists every valid category.
var Categories = []Category{
	CategoryWork, CategoryFamily, CategoryFood, CategoryChores,
	CategoryHobbies, CategoryNotes, CategoryPrimary,
}

// ParseCategory validates a category string.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// BusyBlock is one normalized occupied span on the merged timeline.
// Transparent blocks are retained for display but never count as busy
// for collision purposes.
type BusyBlock struct {
	Interval    interval.Interval
	Category    Category
	Transparent bool
	CalendarID  string
	EventID     string
	Summary     string
	// Person scopes exclusivity. Empty means the block applies to
	// everyone. Populated from the event's "person" metadata.
	Person string
}

// Blocking reports whether the block participates in collision checks.
func (b BusyBlock) Blocking() bool {
	return !b.Transparent
}

// RawEvent is an event as fetched from the external store, before
// normalization into a BusyBlock.
type RawEvent struct {
	ID           string
	Title        string
	Description  string
	Start        time.Time
	End          time.Time
	Transparency string // "opaque" (default) or "transparent"
	Metadata     map[string]string
}

// EventDraft is the payload for creating or updating an external event.
type EventDraft struct {
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	// Transparent marks the event as non-blocking (free) in the store.
	Transparent bool
	// Metadata is stored as private extended properties on the event
	// and round-trips through RawEvent.Metadata.
	Metadata map[string]string
}

// API is the calendar store collaborator. Implementations own
// authentication and transport entirely.
type API interface {
	ListEvents(ctx context.Context, calendarID string, windowStart, windowEnd time.Time) ([]RawEvent, error)
	CreateEvent(ctx context.Context, calendarID string, draft EventDraft) (string, error)
	UpdateEvent(ctx context.Context, calendarID, eventID string, draft EventDraft) error
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
	// FindByMetadata returns the IDs of events in the window whose
	// private metadata contains the given key/value pair.
	FindByMetadata(ctx context.Context, calendarID, key, value string, windowStart, windowEnd time.Time) ([]RawEvent, error)
}

// FetchError records a failed list call for a single calendar.
type FetchError struct {
	CalendarID string
	Category   Category
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch calendar %s (%s): %v", e.CalendarID, e.Category, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
