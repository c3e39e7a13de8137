package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"week-planner/internal/calendar"
	"week-planner/internal/commit"
	"week-planner/internal/config"
	"week-planner/internal/history"
	"week-planner/internal/interval"
	"week-planner/internal/planner"
	"week-planner/internal/tasks"
)

// App wires the planning pipeline together. The blueprint is explicit
// state on the App, never a package global, so several Apps with
// different blueprints can run in one process.
type App struct {
	bp    *config.Blueprint
	agg   *calendar.Aggregator
	plnr  *planner.Planner
	coord *commit.Coordinator
	hist  *history.Store
	tasks *tasks.Client
}

// NewApp creates and initializes an App. hist and taskClient may be
// nil; the corresponding features are then disabled.
func NewApp(bp *config.Blueprint, api calendar.API, hist *history.Store, taskClient *tasks.Client) *App {
	return &App{
		bp:    bp,
		agg:   calendar.NewAggregator(api, bp.CategoryMap()),
		plnr:  planner.New(bp),
		coord: commit.NewCoordinator(api, bp.CalendarFor),
		hist:  hist,
		tasks: taskClient,
	}
}

// WeekWindow converts a Monday into the full week window in the
// blueprint timezone.
func (a *App) WeekWindow(weekStart time.Time) interval.Interval {
	loc := a.bp.Location()
	start := time.Date(weekStart.Year(), weekStart.Month(), weekStart.Day(), 0, 0, 0, 0, loc)
	return interval.Interval{Start: start, End: start.AddDate(0, 0, 7)}
}

// Plan runs a dry-run planning pass for the week starting at weekStart.
// allowPartial accepts busy data from a degraded aggregation; by
// default any calendar fetch failure aborts, since planning against
// incomplete busy data risks double-booking.
func (a *App) Plan(ctx context.Context, weekStart time.Time, allowPartial bool) (*planner.Plan, error) {
	window := a.WeekWindow(weekStart)

	demands, err := planner.BuildDemands(a.bp, weekStart)
	if err != nil {
		return nil, fmt.Errorf("expand blueprint: %w", err)
	}

	busy, failures, err := a.agg.BusyBlocks(ctx, window, allowPartial)
	if err != nil {
		return nil, err
	}
	for _, f := range failures {
		log.Printf("warning: proceeding without calendar %s: %v", f.CalendarID, f.Err)
	}

	plan := a.plnr.Place(window, busy, demands)
	log.Printf("planned week %s: %d placed, %d unresolved, %d demands total",
		window.Start.Format("2006-01-02"), len(plan.Placed()), len(plan.Unresolved), len(demands))

	if a.hist != nil {
		if _, err := a.hist.RecordRun(ctx, plan, false); err != nil {
			log.Printf("warning: failed to record run: %v", err)
		}
	}
	return plan, nil
}

// Commit pushes a plan's placed assignments to the external calendar.
// The returned results are complete even when individual writes fail or
// the context is cancelled midway.
func (a *App) Commit(ctx context.Context, plan *planner.Plan) ([]commit.Result, error) {
	results := a.coord.Push(ctx, plan)
	commit.Summarize(results)

	if a.hist != nil {
		runID, err := a.hist.RecordRun(ctx, plan, true)
		if err != nil {
			log.Printf("warning: failed to record commit run: %v", err)
		} else if err := a.hist.RecordResults(ctx, runID, results); err != nil {
			log.Printf("warning: failed to record commit results: %v", err)
		}
	}
	return results, nil
}

// ListBusy returns the merged busy timeline for a window, read-only.
func (a *App) ListBusy(ctx context.Context, window interval.Interval) ([]calendar.BusyBlock, error) {
	busy, _, err := a.agg.BusyBlocks(ctx, window, false)
	if err != nil {
		return nil, err
	}
	return busy, nil
}

// SyncFollowUps pushes the plan's unresolved demands to the configured
// Google Tasks list.
func (a *App) SyncFollowUps(ctx context.Context, plan *planner.Plan) (int, error) {
	if a.tasks == nil {
		return 0, fmt.Errorf("tasks client is not configured")
	}
	return a.tasks.PushUnresolved(ctx, a.bp.TasklistTitle, plan)
}

// RecentRuns exposes the run history, newest first.
func (a *App) RecentRuns(ctx context.Context, limit int) ([]history.RunSummary, error) {
	if a.hist == nil {
		return nil, fmt.Errorf("history store is not configured")
	}
	return a.hist.RecentRuns(ctx, limit)
}
