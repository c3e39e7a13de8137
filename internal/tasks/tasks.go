// Package tasks pushes follow-ups for unresolved demands to Google
// Tasks, so a human can resolve what the planner could not.
package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	tasksapi "google.golang.org/api/tasks/v1"
	"google.golang.org/api/option"

	"golang.org/x/oauth2"

	"week-planner/internal/planner"
)

// Client wraps the Google Tasks service.
type Client struct {
	svc *tasksapi.Service
}

// NewClient builds a Client from a token source. The source must carry
// the tasks scope.
func NewClient(ctx context.Context, ts oauth2.TokenSource) (*Client, error) {
	svc, err := tasksapi.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("tasks service: %w", err)
	}
	return &Client{svc: svc}, nil
}

// EnsureTasklist returns the ID of the task list with the given title,
// creating it when absent.
func (c *Client) EnsureTasklist(ctx context.Context, title string) (string, error) {
	resp, err := c.svc.Tasklists.List().MaxResults(100).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("list tasklists: %w", err)
	}
	for _, tl := range resp.Items {
		if tl.Title == title {
			return tl.Id, nil
		}
	}
	created, err := c.svc.Tasklists.Insert(&tasksapi.TaskList{Title: title}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("create tasklist %q: %w", title, err)
	}
	return created.Id, nil
}

// AddTask inserts a task with optional notes and due time.
func (c *Client) AddTask(ctx context.Context, tasklistID, title, notes string, due time.Time) error {
	task := &tasksapi.Task{Title: title, Notes: notes}
	if !due.IsZero() {
		task.Due = due.UTC().Format(time.RFC3339)
	}
	if _, err := c.svc.Tasks.Insert(tasklistID, task).Context(ctx).Do(); err != nil {
		return fmt.Errorf("insert task %q: %w", title, err)
	}
	return nil
}

// PushUnresolved creates one follow-up task per unresolved demand in
// the plan, due at the end of the demand's window. Failures are logged
// and counted, not fatal; the remaining demands still get their tasks.
func (c *Client) PushUnresolved(ctx context.Context, tasklistTitle string, plan *planner.Plan) (int, error) {
	if len(plan.Unresolved) == 0 {
		return 0, nil
	}
	listID, err := c.EnsureTasklist(ctx, tasklistTitle)
	if err != nil {
		return 0, err
	}

	pushed := 0
	for _, a := range plan.Unresolved {
		title := fmt.Sprintf("Reschedule: %s (%s)", a.Demand.Name, a.Demand.Category)
		notes := fmt.Sprintf("%s could not be placed in %s: %s", plan.ID, a.Demand.Window, a.Reason)
		if err := c.AddTask(ctx, listID, title, notes, a.Demand.Window.End); err != nil {
			log.Printf("follow-up for %q failed: %v", a.Demand.Name, err)
			continue
		}
		pushed++
	}
	return pushed, nil
}
