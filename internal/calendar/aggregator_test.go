package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"week-planner/internal/interval"
)

type fakeAPI struct {
	events map[string][]RawEvent
	errs   map[string]error
}

func (f *fakeAPI) ListEvents(ctx context.Context, calendarID string, start, end time.Time) ([]RawEvent, error) {
	if err := f.errs[calendarID]; err != nil {
		return nil, err
	}
	return f.events[calendarID], nil
}

func (f *fakeAPI) CreateEvent(ctx context.Context, calendarID string, draft EventDraft) (string, error) {
	return "", errors.New("not implemented")
}

func (f *fakeAPI) UpdateEvent(ctx context.Context, calendarID, eventID string, draft EventDraft) error {
	return errors.New("not implemented")
}

func (f *fakeAPI) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	return errors.New("not implemented")
}

func (f *fakeAPI) FindByMetadata(ctx context.Context, calendarID, key, value string, start, end time.Time) ([]RawEvent, error) {
	return nil, nil
}

func at(h, m int) time.Time {
	return time.Date(2026, 9, 7, h, m, 0, 0, time.UTC)
}

func testWindow(t *testing.T) interval.Interval {
	t.Helper()
	iv, err := interval.New(at(0, 0), at(0, 0).AddDate(0, 0, 7))
	if err != nil {
		t.Fatal(err)
	}
	return iv
}

func TestBusyBlocksMergesAndSorts(t *testing.T) {
	api := &fakeAPI{events: map[string][]RawEvent{
		"cal-work": {
			{ID: "w1", Title: "standup", Start: at(14, 0), End: at(14, 30)},
			{ID: "w2", Title: "review", Start: at(9, 0), End: at(10, 0)},
		},
		"cal-family": {
			{ID: "f1", Title: "pickup", Start: at(12, 0), End: at(12, 30)},
		},
	}}
	agg := NewAggregator(api, map[Category]string{
		CategoryWork:   "cal-work",
		CategoryFamily: "cal-family",
	})

	blocks, failures, err := agg.BusyBlocks(context.Background(), testWindow(t), false)
	if err != nil {
		t.Fatal(err)
	}
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}
	if len(blocks) != 3 {
		t.Fatalf("got %d blocks, want 3", len(blocks))
	}
	wantOrder := []string{"w2", "f1", "w1"}
	for i, id := range wantOrder {
		if blocks[i].EventID != id {
			t.Errorf("block %d = %s, want %s", i, blocks[i].EventID, id)
		}
	}
	if blocks[0].Category != CategoryWork {
		t.Errorf("block 0 category = %s, want work", blocks[0].Category)
	}
}

func TestBusyBlocksDropsInvalidAndOutOfWindow(t *testing.T) {
	api := &fakeAPI{events: map[string][]RawEvent{
		"cal": {
			{ID: "ok", Title: "keep", Start: at(9, 0), End: at(10, 0)},
			{ID: "inverted", Start: at(11, 0), End: at(10, 0)},
			{ID: "zero", Start: at(12, 0), End: at(12, 0)},
			{ID: "past", Start: at(9, 0).AddDate(0, 0, -30), End: at(10, 0).AddDate(0, 0, -30)},
		},
	}}
	agg := NewAggregator(api, map[Category]string{CategoryPrimary: "cal"})

	blocks, _, err := agg.BusyBlocks(context.Background(), testWindow(t), false)
	if err != nil {
		t.Fatal(err)
	}
	if len(blocks) != 1 || blocks[0].EventID != "ok" {
		t.Errorf("blocks = %v, want just the valid in-window event", blocks)
	}
}

func TestBusyBlocksReadsMetadata(t *testing.T) {
	api := &fakeAPI{events: map[string][]RawEvent{
		"cal": {
			{
				ID: "e1", Title: "lunch", Start: at(12, 0), End: at(12, 45),
				Metadata: map[string]string{"category": "food", "person": "alex"},
			},
			{
				ID: "e2", Title: "home office", Start: at(9, 0), End: at(17, 0),
				Transparency: "transparent",
			},
			{
				ID: "e3", Title: "typo", Start: at(18, 0), End: at(19, 0),
				Metadata: map[string]string{"category": "foood"},
			},
		},
	}}
	agg := NewAggregator(api, map[Category]string{CategoryPrimary: "cal"})

	blocks, _, err := agg.BusyBlocks(context.Background(), testWindow(t), false)
	if err != nil {
		t.Fatal(err)
	}
	byID := map[string]BusyBlock{}
	for _, b := range blocks {
		byID[b.EventID] = b
	}

	if b := byID["e1"]; b.Category != CategoryFood || b.Person != "alex" {
		t.Errorf("e1 = %+v, want category food person alex", b)
	}
	if b := byID["e2"]; !b.Transparent || b.Blocking() {
		t.Errorf("e2 should be transparent and non-blocking, got %+v", b)
	}
	// Unparseable category override falls back to the calendar's own.
	if b := byID["e3"]; b.Category != CategoryPrimary {
		t.Errorf("e3 category = %s, want primary", b.Category)
	}
}

func TestBusyBlocksDegradedFetch(t *testing.T) {
	api := &fakeAPI{
		events: map[string][]RawEvent{
			"cal-ok": {{ID: "e1", Title: "kept", Start: at(9, 0), End: at(10, 0)}},
		},
		errs: map[string]error{"cal-broken": errors.New("backend unavailable")},
	}
	agg := NewAggregator(api, map[Category]string{
		CategoryWork:   "cal-ok",
		CategoryChores: "cal-broken",
	})

	// Strict mode: a failure is an error.
	blocks, failures, err := agg.BusyBlocks(context.Background(), testWindow(t), false)
	if err == nil {
		t.Error("expected error when a calendar fails and partial data is not allowed")
	}
	if len(failures) != 1 {
		t.Fatalf("got %d failures, want 1", len(failures))
	}
	if failures[0].CalendarID != "cal-broken" || failures[0].Category != CategoryChores {
		t.Errorf("failure = %+v", failures[0])
	}
	if !errors.Is(failures[0], api.errs["cal-broken"]) {
		t.Error("FetchError should unwrap to the underlying error")
	}

	// Partial mode: same failures, but usable blocks and no error.
	blocks, failures, err = agg.BusyBlocks(context.Background(), testWindow(t), true)
	if err != nil {
		t.Fatalf("allowPartial: %v", err)
	}
	if len(failures) != 1 {
		t.Errorf("allowPartial: got %d failures, want 1", len(failures))
	}
	if len(blocks) != 1 || blocks[0].EventID != "e1" {
		t.Errorf("allowPartial: blocks = %v", blocks)
	}
}

func TestBlockingIntervals(t *testing.T) {
	blocks := []BusyBlock{
		{Interval: interval.Interval{Start: at(9, 0), End: at(10, 0)}},
		{Interval: interval.Interval{Start: at(11, 0), End: at(12, 0)}, Transparent: true},
	}
	got := BlockingIntervals(blocks)
	if len(got) != 1 || !got[0].Start.Equal(at(9, 0)) {
		t.Errorf("BlockingIntervals = %v, want the opaque block only", got)
	}
}
