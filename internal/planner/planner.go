package planner

import (
	"fmt"
	"sort"
	"time"

	"week-planner/internal/calendar"
	"week-planner/internal/config"
	"week-planner/internal/interval"
	"week-planner/internal/slots"
	"week-planner/internal/week"
)

// Status is the terminal state of a demand after placement.
type Status string

const (
	StatusPlaced     Status = "placed"
	StatusUnresolved Status = "unresolved"
	StatusSkipped    Status = "skipped"
)

// Assignment is a demand with its placement outcome. For placed
// assignments Slot holds the chosen interval; for the others Reason
// explains what happened.
type Assignment struct {
	Demand Demand
	Slot   interval.Interval
	Status Status
	Reason string
}

// Plan is the dry-run artifact of one planning run: placed and skipped
// assignments in processing order, plus the demands that could not be
// resolved. An unresolved demand is an outcome, not an error; the plan
// is always the best achievable one.
type Plan struct {
	ID          string
	Week        interval.Interval
	Timezone    string
	Assignments []Assignment
	Unresolved  []Assignment
}

// Placed returns the placed assignments in processing order.
func (p *Plan) Placed() []Assignment {
	var out []Assignment
	for _, a := range p.Assignments {
		if a.Status == StatusPlaced {
			out = append(out, a)
		}
	}
	return out
}

// DayKeyOf returns the blueprint weekday key for an assignment's start
// in the plan timezone.
func (p *Plan) DayKeyOf(a Assignment) string {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return week.DayKey(a.Slot.Start.In(loc))
}

// Planner assigns demands to free slots deterministically: the same
// blueprint, week, and busy snapshot always produce the same plan.
type Planner struct {
	buffer time.Duration
	base   slots.Options
	rank   map[calendar.Category]int
	loc    *time.Location
}

// New builds a Planner from blueprint defaults.
func New(bp *config.Blueprint) *Planner {
	rank := make(map[calendar.Category]int, len(bp.CategoryPriority))
	for i, cat := range bp.CategoryPriority {
		rank[calendar.Category(cat)] = i
	}
	return &Planner{
		buffer: bp.Buffer(),
		base: slots.Options{
			Buffer:   bp.Buffer(),
			Earliest: bp.Earliest(),
			Latest:   bp.Latest(),
			MaxBlock: bp.MaxBlock(),
			Location: bp.Location(),
		},
		rank: rank,
		loc:  bp.Location(),
	}
}

// Place assigns every demand for the week. Fixed-time demands go first,
// by direct collision check; flexible demands follow in category
// priority order, each taking the earliest candidate slot that fits.
// Blueprint insertion order breaks all ties. A failed demand never
// aborts the remaining ones.
func (p *Planner) Place(weekWindow interval.Interval, busy []calendar.BusyBlock, demands []Demand) *Plan {
	plan := &Plan{
		ID:       "plan-" + weekWindow.Start.In(p.loc).Format("2006-01-02"),
		Week:     weekWindow,
		Timezone: p.loc.String(),
	}

	ordered := make([]Demand, len(demands))
	copy(ordered, demands)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if (a.Fixed != nil) != (b.Fixed != nil) {
			return a.Fixed != nil
		}
		if a.Fixed != nil {
			if !a.Fixed.Start.Equal(b.Fixed.Start) {
				return a.Fixed.Start.Before(b.Fixed.Start)
			}
			return a.order < b.order
		}
		if ra, rb := p.rankOf(a.Category), p.rankOf(b.Category); ra != rb {
			return ra < rb
		}
		return a.order < b.order
	})

	// occupied grows as placements land, so the derived plan never
	// double-books against itself.
	occupied := make([]calendar.BusyBlock, 0, len(busy)+len(ordered))
	occupied = append(occupied, busy...)

	repeats := make(map[string]int)

	for _, d := range ordered {
		var a Assignment
		if d.Fixed != nil {
			a = p.placeFixed(d, occupied)
		} else {
			a = p.placeFlexible(d, occupied, repeats)
		}

		switch a.Status {
		case StatusPlaced:
			plan.Assignments = append(plan.Assignments, a)
			if !d.Transparent {
				occupied = append(occupied, placedBlock(a))
			}
			if d.RepeatKey != "" {
				repeats[d.RepeatKey]++
			}
		case StatusSkipped:
			plan.Assignments = append(plan.Assignments, a)
		case StatusUnresolved:
			plan.Unresolved = append(plan.Unresolved, a)
		}
	}

	return plan
}

func (p *Planner) rankOf(cat calendar.Category) int {
	if r, ok := p.rank[cat]; ok {
		return r
	}
	return len(p.rank)
}

// placeFixed checks a pinned interval directly against the occupied
// timeline. Transparent demands are informational and always land.
func (p *Planner) placeFixed(d Demand, occupied []calendar.BusyBlock) Assignment {
	a := Assignment{Demand: d, Slot: *d.Fixed}
	if d.Transparent {
		a.Status = StatusPlaced
		return a
	}
	for _, b := range occupied {
		if !b.Blocking() || !personsCollide(d.Person, b.Person) {
			continue
		}
		if d.Fixed.Overlaps(b.Interval.WithBuffer(p.buffer)) {
			a.Status = StatusUnresolved
			a.Reason = fmt.Sprintf("collides with %q (%s)", b.Summary, b.Interval)
			return a
		}
	}
	a.Status = StatusPlaced
	return a
}

// placeFlexible takes the earliest candidate slot satisfying the
// demand's own bounds, after the repeat-avoidance check.
func (p *Planner) placeFlexible(d Demand, occupied []calendar.BusyBlock, repeats map[string]int) Assignment {
	a := Assignment{Demand: d}

	if d.MaxRepeats > 0 && repeats[d.RepeatKey] >= d.MaxRepeats {
		a.Status = StatusSkipped
		a.Reason = fmt.Sprintf("repeat limit reached (%d this week)", d.MaxRepeats)
		return a
	}

	visible := make([]calendar.BusyBlock, 0, len(occupied))
	for _, b := range occupied {
		if personsCollide(d.Person, b.Person) {
			visible = append(visible, b)
		}
	}

	candidates := slots.Find(d.Window, visible, d.Duration, p.optsFor(d))
	if len(candidates) == 0 {
		a.Status = StatusUnresolved
		a.Reason = fmt.Sprintf("no free slot of %s in window %s", d.Duration, d.Window)
		return a
	}

	c := candidates[0]
	a.Slot = interval.Interval{Start: c.Interval.Start, End: c.Interval.Start.Add(d.Duration)}
	a.Status = StatusPlaced
	return a
}

func (p *Planner) optsFor(d Demand) slots.Options {
	opts := p.base
	if !d.Earliest.IsZero() {
		opts.Earliest = d.Earliest
	}
	if !d.Latest.IsZero() {
		opts.Latest = d.Latest
	}
	return opts
}

// placedBlock turns a placed assignment into a synthetic busy block so
// later demands see it on the timeline.
func placedBlock(a Assignment) calendar.BusyBlock {
	return calendar.BusyBlock{
		Interval:   a.Slot,
		Category:   a.Demand.Category,
		CalendarID: "plan",
		Summary:    a.Demand.Name,
		Person:     a.Demand.Person,
	}
}

// personsCollide reports whether two person scopes can refer to the
// same person. An unset scope collides with everything; ground-truth
// calendar blocks carry no person unless their event metadata says so.
func personsCollide(a, b string) bool {
	return a == "" || b == "" || a == b
}
