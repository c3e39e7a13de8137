package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"week-planner/internal/calendar"
	"week-planner/internal/commit"
	"week-planner/internal/interval"
	"week-planner/internal/planner"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func samplePlan() *planner.Plan {
	start := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	slot := interval.Interval{Start: start.Add(12 * time.Hour), End: start.Add(13 * time.Hour)}
	return &planner.Plan{
		ID:       "plan-2026-09-07",
		Week:     interval.Interval{Start: start, End: start.AddDate(0, 0, 7)},
		Timezone: "UTC",
		Assignments: []planner.Assignment{{
			Demand: planner.Demand{Name: "Lunch", Category: calendar.CategoryFood, Duration: time.Hour},
			Slot:   slot,
			Status: planner.StatusPlaced,
		}},
		Unresolved: []planner.Assignment{{
			Demand: planner.Demand{Name: "Taxes", Category: calendar.CategoryChores, Duration: time.Hour},
			Status: planner.StatusUnresolved,
			Reason: "no free slot",
		}},
	}
}

func TestRecordAndListRuns(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	plan := samplePlan()

	runID, err := store.RecordRun(ctx, plan, false)
	if err != nil {
		t.Fatal(err)
	}
	if runID == "" {
		t.Fatal("empty run ID")
	}
	if _, err := store.RecordRun(ctx, plan, true); err != nil {
		t.Fatal(err)
	}

	runs, err := store.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(runs))
	}
	r := runs[0]
	if r.PlanID != plan.ID {
		t.Errorf("plan ID = %s", r.PlanID)
	}
	if r.Placed != 1 || r.Unresolved != 1 {
		t.Errorf("counts = %d placed / %d unresolved", r.Placed, r.Unresolved)
	}
	if !r.WeekStart.Equal(plan.Week.Start) {
		t.Errorf("week start = %s, want %s", r.WeekStart, plan.Week.Start)
	}
}

func TestRecentRunsLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := store.RecordRun(ctx, samplePlan(), false); err != nil {
			t.Fatal(err)
		}
	}
	runs, err := store.RecentRuns(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 3 {
		t.Errorf("runs = %d, want 3", len(runs))
	}
}

func TestRecordResults(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	plan := samplePlan()

	runID, err := store.RecordRun(ctx, plan, true)
	if err != nil {
		t.Fatal(err)
	}
	results := []commit.Result{
		{
			Assignment: plan.Assignments[0],
			CalendarID: "cal-primary",
			Key:        "abc123",
			Outcome:    commit.OutcomeCreated,
			ExternalID: "ev-1",
		},
		{
			Assignment: plan.Assignments[0],
			CalendarID: "cal-primary",
			Key:        "def456",
			Outcome:    commit.OutcomeFailed,
			Err:        "quota exhausted",
		},
	}
	if err := store.RecordResults(ctx, runID, results); err != nil {
		t.Fatal(err)
	}
}

func TestCleanup(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if _, err := store.RecordRun(ctx, samplePlan(), false); err != nil {
		t.Fatal(err)
	}

	// A generous retention keeps everything.
	removed, err := store.Cleanup(ctx, 30)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 0 {
		t.Errorf("removed %d fresh runs", removed)
	}

	// Zero retention removes runs recorded before now.
	removed, err = store.Cleanup(ctx, -1)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	runs, err := store.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 0 {
		t.Errorf("runs after cleanup = %d", len(runs))
	}
}
