// Package export serializes a plan for preview in ordinary calendar
// applications, without touching the external store.
package export

import (
	"fmt"
	"os"

	ics "github.com/arran4/golang-ical"

	"week-planner/internal/commit"
	"week-planner/internal/planner"
)

// PlanToICS renders the placed assignments of a plan as an iCalendar
// document. Event UIDs reuse the commit idempotency keys, so a preview
// and a later push refer to the same identities.
func PlanToICS(plan *planner.Plan) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//week-planner//EN")

	for _, a := range plan.Placed() {
		ev := cal.AddEvent(commit.Key(plan.ID, a) + "@week-planner")
		ev.SetSummary(a.Demand.Name)
		ev.SetStartAt(a.Slot.Start)
		ev.SetEndAt(a.Slot.End)
		ev.SetDescription(fmt.Sprintf("category=%s plan=%s", a.Demand.Category, plan.ID))
		if a.Demand.Transparent {
			ev.SetTimeTransparency(ics.TransparencyTransparent)
		}
	}
	return cal.Serialize()
}

// WriteICS writes the rendered plan to a file.
func WriteICS(plan *planner.Plan, path string) error {
	if err := os.WriteFile(path, []byte(PlanToICS(plan)), 0644); err != nil {
		return fmt.Errorf("write ics %s: %w", path, err)
	}
	return nil
}
