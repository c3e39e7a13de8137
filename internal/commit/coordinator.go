package commit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"

	"week-planner/internal/calendar"
	"week-planner/internal/planner"
)

// MetadataKey is the private-metadata key under which the idempotency
// key is stored on created events, and by which re-runs find them.
const MetadataKey = "schedKey"

// Outcome classifies one attempted write.
type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// Result is the audit record for one planned assignment's write.
type Result struct {
	Assignment planner.Assignment
	CalendarID string
	Key        string
	Outcome    Outcome
	ExternalID string
	Err        string
}

// Router resolves the target calendar for a category. Satisfied by
// config.Blueprint.CalendarFor.
type Router func(calendar.Category) string

// Coordinator pushes a finalized plan to the external calendar. Writes
// are idempotent per assignment: the same plan can be committed twice
// without duplicating events.
type Coordinator struct {
	api    calendar.API
	router Router
}

// NewCoordinator creates a Coordinator over the external store.
func NewCoordinator(api calendar.API, router Router) *Coordinator {
	return &Coordinator{api: api, router: router}
}

// Key computes the stable idempotency key for an assignment within a
// plan. It covers the demand identity and the assigned interval, so a
// re-plan that moves an assignment produces a different key.
func Key(planID string, a planner.Assignment) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%d|%d",
		planID, a.Demand.Name, a.Demand.Category, a.Demand.Person,
		a.Slot.Start.Unix(), a.Slot.End.Unix())
	return hex.EncodeToString(h.Sum(nil))[:20]
}

// Push writes every placed assignment in plan order. Each failure is
// recorded and processing continues; the batch never aborts on a single
// write error. Cancellation stops new writes but already-issued results
// are returned so the caller knows exactly what was written.
func (c *Coordinator) Push(ctx context.Context, plan *planner.Plan) []Result {
	var results []Result
	for _, a := range plan.Placed() {
		if err := ctx.Err(); err != nil {
			results = append(results, Result{
				Assignment: a,
				Key:        Key(plan.ID, a),
				Outcome:    OutcomeFailed,
				Err:        fmt.Sprintf("commit cancelled: %v", err),
			})
			continue
		}
		results = append(results, c.pushOne(ctx, plan, a))
	}
	return results
}

func (c *Coordinator) pushOne(ctx context.Context, plan *planner.Plan, a planner.Assignment) Result {
	res := Result{
		Assignment: a,
		CalendarID: c.router(a.Demand.Category),
		Key:        Key(plan.ID, a),
	}

	existing, err := c.api.FindByMetadata(ctx, res.CalendarID, MetadataKey, res.Key, plan.Week.Start, plan.Week.End)
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Err = fmt.Sprintf("lookup: %v", err)
		return res
	}

	draft := draftFor(plan, a, res.Key)

	if len(existing) > 0 {
		prior := existing[0]
		res.ExternalID = prior.ID
		if prior.Start.Equal(a.Slot.Start) && prior.End.Equal(a.Slot.End) && prior.Title == draft.Title {
			res.Outcome = OutcomeSkipped
			return res
		}
		if err := c.api.UpdateEvent(ctx, res.CalendarID, prior.ID, draft); err != nil {
			res.Outcome = OutcomeFailed
			res.Err = fmt.Sprintf("update: %v", err)
			return res
		}
		res.Outcome = OutcomeUpdated
		return res
	}

	id, err := c.api.CreateEvent(ctx, res.CalendarID, draft)
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Err = fmt.Sprintf("create: %v", err)
		return res
	}
	res.ExternalID = id
	res.Outcome = OutcomeCreated
	return res
}

func draftFor(plan *planner.Plan, a planner.Assignment, key string) calendar.EventDraft {
	meta := map[string]string{
		MetadataKey: key,
		"planId":    plan.ID,
		"category":  string(a.Demand.Category),
		"source":    "week-planner",
	}
	if a.Demand.Person != "" {
		meta["person"] = a.Demand.Person
	}
	return calendar.EventDraft{
		Title:       a.Demand.Name,
		Description: fmt.Sprintf("Planned by %s", plan.ID),
		Start:       a.Slot.Start,
		End:         a.Slot.End,
		Transparent: a.Demand.Transparent,
		Metadata:    meta,
	}
}

// Summarize logs a one-line outcome count and returns the tally.
func Summarize(results []Result) map[Outcome]int {
	counts := make(map[Outcome]int)
	for _, r := range results {
		counts[r.Outcome]++
	}
	log.Printf("commit finished: %d created, %d updated, %d skipped, %d failed",
		counts[OutcomeCreated], counts[OutcomeUpdated], counts[OutcomeSkipped], counts[OutcomeFailed])
	return counts
}
