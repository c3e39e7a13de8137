// Package history is a write-only audit trail of planning and commit
// runs. The planner never reads it: every run rebuilds busy state fresh
// from the live calendars.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"week-planner/internal/commit"
	"week-planner/internal/planner"
)

// Store persists run records to SQLite.
type Store struct {
	db *sql.DB
}

// Open initializes the store at dbPath, creating it on first use.
func Open(dbPath string) (*Store, error) {
	db, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// RunSummary is one row of the run log.
type RunSummary struct {
	ID         string
	PlanID     string
	WeekStart  time.Time
	CreatedAt  time.Time
	Pushed     bool
	Placed     int
	Unresolved int
}

// RecordRun saves a snapshot of a plan and returns the run ID.
func (s *Store) RecordRun(ctx context.Context, plan *planner.Plan, pushed bool) (string, error) {
	planJSON, err := json.Marshal(plan)
	if err != nil {
		return "", fmt.Errorf("marshal plan %s: %w", plan.ID, err)
	}

	runID := uuid.NewString()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO plan_runs (id, plan_id, week_start, created_at, pushed, placed, unresolved, plan_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, plan.ID, plan.Week.Start.UTC(), time.Now().UTC(), pushed,
		len(plan.Placed()), len(plan.Unresolved), planJSON)
	if err != nil {
		return "", fmt.Errorf("record run for %s: %w", plan.ID, err)
	}
	return runID, nil
}

// RecordResults appends the commit audit rows for a run.
func (s *Store) RecordResults(ctx context.Context, runID string, results []commit.Result) error {
	for _, r := range results {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO commit_results (run_id, demand, category, start_at, end_at, idempotency_key, outcome, external_id, error, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, r.Assignment.Demand.Name, string(r.Assignment.Demand.Category),
			r.Assignment.Slot.Start.UTC(), r.Assignment.Slot.End.UTC(),
			r.Key, string(r.Outcome), r.ExternalID, r.Err, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("record result for %q: %w", r.Assignment.Demand.Name, err)
		}
	}
	return nil
}

// RecentRuns lists the N most recent runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, plan_id, week_start, created_at, pushed, placed, unresolved
		 FROM plan_runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.PlanID, &r.WeekStart, &r.CreatedAt, &r.Pushed, &r.Placed, &r.Unresolved); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Cleanup removes runs (and their commit rows) older than the given
// number of days, returning how many runs were removed.
func (s *Store) Cleanup(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM commit_results WHERE run_id IN (SELECT id FROM plan_runs WHERE created_at < ?)`, cutoff); err != nil {
		return 0, fmt.Errorf("cleanup commit results: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM plan_runs WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup runs: %w", err)
	}
	return res.RowsAffected()
}
