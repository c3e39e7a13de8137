package commit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"week-planner/internal/calendar"
	"week-planner/internal/interval"
	"week-planner/internal/planner"
)

// fakeStore keeps events in memory and can be scripted to fail specific
// creates.
type fakeStore struct {
	nextID     int
	events     map[string]calendar.RawEvent // external ID -> event
	failCreate map[string]error             // draft title -> error
	creates    int
	updates    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{events: map[string]calendar.RawEvent{}, failCreate: map[string]error{}}
}

func (f *fakeStore) ListEvents(ctx context.Context, calendarID string, start, end time.Time) ([]calendar.RawEvent, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeStore) CreateEvent(ctx context.Context, calendarID string, draft calendar.EventDraft) (string, error) {
	if err := f.failCreate[draft.Title]; err != nil {
		return "", err
	}
	f.creates++
	f.nextID++
	id := fmt.Sprintf("ev-%d", f.nextID)
	f.events[id] = calendar.RawEvent{
		ID:       id,
		Title:    draft.Title,
		Start:    draft.Start,
		End:      draft.End,
		Metadata: draft.Metadata,
	}
	return id, nil
}

func (f *fakeStore) UpdateEvent(ctx context.Context, calendarID, eventID string, draft calendar.EventDraft) error {
	if _, ok := f.events[eventID]; !ok {
		return fmt.Errorf("no event %s", eventID)
	}
	f.updates++
	f.events[eventID] = calendar.RawEvent{
		ID:       eventID,
		Title:    draft.Title,
		Start:    draft.Start,
		End:      draft.End,
		Metadata: draft.Metadata,
	}
	return nil
}

func (f *fakeStore) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	delete(f.events, eventID)
	return nil
}

func (f *fakeStore) FindByMetadata(ctx context.Context, calendarID, key, value string, start, end time.Time) ([]calendar.RawEvent, error) {
	var out []calendar.RawEvent
	for _, ev := range f.events {
		if ev.Metadata[key] == value {
			out = append(out, ev)
		}
	}
	return out, nil
}

func routeAll(calendar.Category) string { return "cal-primary" }

func slotAt(h int) interval.Interval {
	start := time.Date(2026, 9, 7, h, 0, 0, 0, time.UTC)
	return interval.Interval{Start: start, End: start.Add(time.Hour)}
}

func placedAssignment(name string, cat calendar.Category, slot interval.Interval) planner.Assignment {
	return planner.Assignment{
		Demand: planner.Demand{Name: name, Category: cat, Duration: slot.Duration()},
		Slot:   slot,
		Status: planner.StatusPlaced,
	}
}

func testPlan(assignments ...planner.Assignment) *planner.Plan {
	start := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	return &planner.Plan{
		ID:          "plan-2026-09-07",
		Week:        interval.Interval{Start: start, End: start.AddDate(0, 0, 7)},
		Timezone:    "UTC",
		Assignments: assignments,
	}
}

func TestPushCreatesEvents(t *testing.T) {
	store := newFakeStore()
	coord := NewCoordinator(store, routeAll)
	plan := testPlan(
		placedAssignment("Lunch", calendar.CategoryFood, slotAt(12)),
		placedAssignment("Laundry", calendar.CategoryChores, slotAt(15)),
	)

	results := coord.Push(context.Background(), plan)
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	for _, r := range results {
		if r.Outcome != OutcomeCreated {
			t.Errorf("%s: outcome = %s, want created (%s)", r.Assignment.Demand.Name, r.Outcome, r.Err)
		}
		if r.ExternalID == "" {
			t.Errorf("%s: missing external ID", r.Assignment.Demand.Name)
		}
	}
	if store.creates != 2 {
		t.Errorf("creates = %d, want 2", store.creates)
	}

	ev := store.events[results[0].ExternalID]
	if ev.Metadata[MetadataKey] != results[0].Key {
		t.Error("created event should carry the idempotency key")
	}
	if ev.Metadata["planId"] != plan.ID || ev.Metadata["source"] != "week-planner" {
		t.Errorf("metadata = %v", ev.Metadata)
	}
}

func TestPushIsIdempotent(t *testing.T) {
	store := newFakeStore()
	coord := NewCoordinator(store, routeAll)
	plan := testPlan(placedAssignment("Lunch", calendar.CategoryFood, slotAt(12)))

	first := coord.Push(context.Background(), plan)
	second := coord.Push(context.Background(), plan)

	if first[0].Outcome != OutcomeCreated {
		t.Fatalf("first push = %s", first[0].Outcome)
	}
	if second[0].Outcome != OutcomeSkipped {
		t.Errorf("second push = %s, want skipped", second[0].Outcome)
	}
	if second[0].ExternalID != first[0].ExternalID {
		t.Error("skip should report the existing event")
	}
	if store.creates != 1 || len(store.events) != 1 {
		t.Errorf("store has %d events after both pushes, want 1", len(store.events))
	}
}

func TestPushUpdatesMovedAssignment(t *testing.T) {
	store := newFakeStore()
	coord := NewCoordinator(store, routeAll)
	plan := testPlan(placedAssignment("Lunch", calendar.CategoryFood, slotAt(12)))
	coord.Push(context.Background(), plan)

	// Simulate an earlier write of the same key at a different time, as
	// after a manual calendar edit.
	for id, ev := range store.events {
		ev.Start = ev.Start.Add(30 * time.Minute)
		store.events[id] = ev
	}

	results := coord.Push(context.Background(), plan)
	if results[0].Outcome != OutcomeUpdated {
		t.Fatalf("outcome = %s, want updated", results[0].Outcome)
	}
	if store.updates != 1 {
		t.Errorf("updates = %d, want 1", store.updates)
	}
	ev := store.events[results[0].ExternalID]
	if !ev.Start.Equal(slotAt(12).Start) {
		t.Errorf("event start = %s, not restored to the planned slot", ev.Start)
	}
}

func TestPushContinuesPastFailures(t *testing.T) {
	store := newFakeStore()
	store.failCreate["Laundry"] = errors.New("quota exhausted")
	coord := NewCoordinator(store, routeAll)
	plan := testPlan(
		placedAssignment("Lunch", calendar.CategoryFood, slotAt(12)),
		placedAssignment("Laundry", calendar.CategoryChores, slotAt(15)),
		placedAssignment("Guitar", calendar.CategoryHobbies, slotAt(18)),
	)

	results := coord.Push(context.Background(), plan)
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	want := []Outcome{OutcomeCreated, OutcomeFailed, OutcomeCreated}
	for i, w := range want {
		if results[i].Outcome != w {
			t.Errorf("result %d = %s, want %s", i, results[i].Outcome, w)
		}
	}
	if !strings.Contains(results[1].Err, "quota exhausted") {
		t.Errorf("failure err = %q", results[1].Err)
	}
}

func TestPushCancellation(t *testing.T) {
	store := newFakeStore()
	coord := NewCoordinator(store, routeAll)
	plan := testPlan(
		placedAssignment("Lunch", calendar.CategoryFood, slotAt(12)),
		placedAssignment("Laundry", calendar.CategoryChores, slotAt(15)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := coord.Push(ctx, plan)
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2: every assignment gets a result even when cancelled", len(results))
	}
	for _, r := range results {
		if r.Outcome != OutcomeFailed {
			t.Errorf("%s: outcome = %s, want failed", r.Assignment.Demand.Name, r.Outcome)
		}
	}
	if store.creates != 0 {
		t.Errorf("creates = %d after cancellation, want 0", store.creates)
	}
}

func TestKeyStability(t *testing.T) {
	a := placedAssignment("Lunch", calendar.CategoryFood, slotAt(12))
	if Key("plan-2026-09-07", a) != Key("plan-2026-09-07", a) {
		t.Error("key must be stable across calls")
	}
	if len(Key("plan-2026-09-07", a)) != 20 {
		t.Errorf("key length = %d", len(Key("plan-2026-09-07", a)))
	}

	moved := a
	moved.Slot = slotAt(13)
	if Key("plan-2026-09-07", a) == Key("plan-2026-09-07", moved) {
		t.Error("moving an assignment must change its key")
	}
	if Key("plan-2026-09-07", a) == Key("plan-2026-09-14", a) {
		t.Error("a different plan must produce a different key")
	}
}

func TestSummarize(t *testing.T) {
	counts := Summarize([]Result{
		{Outcome: OutcomeCreated},
		{Outcome: OutcomeCreated},
		{Outcome: OutcomeSkipped},
		{Outcome: OutcomeFailed},
	})
	if counts[OutcomeCreated] != 2 || counts[OutcomeSkipped] != 1 || counts[OutcomeFailed] != 1 {
		t.Errorf("counts = %v", counts)
	}
}
