package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"week-planner/internal/calendar"
	"week-planner/internal/commit"
	"week-planner/internal/config"
	"week-planner/internal/planner"
)

type fakeCalendar struct {
	nextID  int
	busy    map[string][]calendar.RawEvent
	created map[string]calendar.RawEvent
	listErr error
}

func newFakeCalendar() *fakeCalendar {
	return &fakeCalendar{
		busy:    map[string][]calendar.RawEvent{},
		created: map[string]calendar.RawEvent{},
	}
}

func (f *fakeCalendar) ListEvents(ctx context.Context, calendarID string, start, end time.Time) ([]calendar.RawEvent, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.busy[calendarID], nil
}

func (f *fakeCalendar) CreateEvent(ctx context.Context, calendarID string, draft calendar.EventDraft) (string, error) {
	f.nextID++
	id := fmt.Sprintf("ev-%d", f.nextID)
	f.created[id] = calendar.RawEvent{
		ID: id, Title: draft.Title, Start: draft.Start, End: draft.End, Metadata: draft.Metadata,
	}
	return id, nil
}

func (f *fakeCalendar) UpdateEvent(ctx context.Context, calendarID, eventID string, draft calendar.EventDraft) error {
	ev, ok := f.created[eventID]
	if !ok {
		return fmt.Errorf("no event %s", eventID)
	}
	ev.Start, ev.End, ev.Title = draft.Start, draft.End, draft.Title
	f.created[eventID] = ev
	return nil
}

func (f *fakeCalendar) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	delete(f.created, eventID)
	return nil
}

func (f *fakeCalendar) FindByMetadata(ctx context.Context, calendarID, key, value string, start, end time.Time) ([]calendar.RawEvent, error) {
	var out []calendar.RawEvent
	for _, ev := range f.created {
		if ev.Metadata[key] == value {
			out = append(out, ev)
		}
	}
	return out, nil
}

func testBlueprint() *config.Blueprint {
	bp := &config.Blueprint{
		Timezone:    "UTC",
		CalendarMap: map[string]string{"primary": "cal-primary"},
		WorkHours: map[string]config.TimeRange{
			"mon": {Start: "09:00", End: "17:30"},
		},
		Meals: []config.Meal{
			{Name: "Lunch", WindowStart: "11:30", WindowEnd: "13:30", DurationMinutes: 45},
		},
		Tasks: []config.Task{
			{Name: "Taxes", DurationMinutes: 60},
		},
	}
	bp.Normalize()
	return bp
}

func mondayStart() time.Time {
	return time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
}

func TestPlanThenCommit(t *testing.T) {
	store := newFakeCalendar()
	store.busy["cal-primary"] = []calendar.RawEvent{
		{ID: "b1", Title: "dentist", Start: mondayStart().Add(10 * time.Hour), End: mondayStart().Add(11 * time.Hour)},
	}
	a := NewApp(testBlueprint(), store, nil, nil)
	ctx := context.Background()

	plan, err := a.Plan(ctx, mondayStart(), false)
	if err != nil {
		t.Fatal(err)
	}
	if plan.ID != "plan-2026-09-07" {
		t.Errorf("plan ID = %s", plan.ID)
	}
	// One work block, seven lunches, one task.
	if got := len(plan.Placed()); got != 9 {
		t.Fatalf("placed = %d, want 9 (unresolved: %v)", got, plan.Unresolved)
	}

	results, err := a.Commit(ctx, plan)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != len(plan.Placed()) {
		t.Fatalf("results = %d, want one per placed assignment", len(results))
	}
	for _, r := range results {
		if r.Outcome != commit.OutcomeCreated {
			t.Errorf("%s: outcome = %s (%s)", r.Assignment.Demand.Name, r.Outcome, r.Err)
		}
	}

	// Committing the same plan again must not create duplicates.
	results, err = a.Commit(ctx, plan)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results {
		if r.Outcome != commit.OutcomeSkipped {
			t.Errorf("%s: re-commit outcome = %s, want skipped", r.Assignment.Demand.Name, r.Outcome)
		}
	}
	if len(store.created) != 9 {
		t.Errorf("store has %d events, want 9", len(store.created))
	}
}

func TestPlanAbortsOnFetchFailure(t *testing.T) {
	store := newFakeCalendar()
	store.listErr = errors.New("backend unavailable")
	a := NewApp(testBlueprint(), store, nil, nil)

	if _, err := a.Plan(context.Background(), mondayStart(), false); err == nil {
		t.Error("expected error when busy data cannot be fetched")
	}
}

func TestPlanAllowPartial(t *testing.T) {
	store := newFakeCalendar()
	store.listErr = errors.New("backend unavailable")
	a := NewApp(testBlueprint(), store, nil, nil)

	plan, err := a.Plan(context.Background(), mondayStart(), true)
	if err != nil {
		t.Fatalf("allowPartial should tolerate fetch failures: %v", err)
	}
	if len(plan.Placed()) == 0 {
		t.Error("plan should still place demands without busy data")
	}
}

func TestPlanIsDryRun(t *testing.T) {
	store := newFakeCalendar()
	a := NewApp(testBlueprint(), store, nil, nil)

	if _, err := a.Plan(context.Background(), mondayStart(), false); err != nil {
		t.Fatal(err)
	}
	if len(store.created) != 0 {
		t.Errorf("planning wrote %d events; only commit may write", len(store.created))
	}
}

func TestSyncFollowUpsUnconfigured(t *testing.T) {
	a := NewApp(testBlueprint(), newFakeCalendar(), nil, nil)
	if _, err := a.SyncFollowUps(context.Background(), &planner.Plan{}); err == nil {
		t.Error("expected error when the tasks client is missing")
	}
}

func TestRecentRunsUnconfigured(t *testing.T) {
	a := NewApp(testBlueprint(), newFakeCalendar(), nil, nil)
	if _, err := a.RecentRuns(context.Background(), 5); err == nil {
		t.Error("expected error when the history store is missing")
	}
}
