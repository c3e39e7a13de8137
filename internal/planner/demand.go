package planner

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"week-planner/internal/calendar"
	"week-planner/internal/config"
	"week-planner/internal/interval"
	"week-planner/internal/week"
)

// Demand is a single request to place a block of time. Demands are
// built from the blueprint for one target week and consumed exactly
// once by the placement planner.
type Demand struct {
	Name     string
	Category calendar.Category
	Duration time.Duration

	// Fixed, when set, pins the demand to an exact interval. Fixed
	// demands are placed by direct collision check, not via the slot
	// finder.
	Fixed *interval.Interval

	// Window bounds where a flexible demand may land (one day for
	// meals and hobbies, the whole week for tasks).
	Window interval.Interval

	// Earliest and Latest narrow the per-day placement range below the
	// blueprint defaults. Zero values mean "use the defaults".
	Earliest week.Clock
	Latest   week.Clock

	// RepeatKey and MaxRepeats express repeat avoidance: once
	// MaxRepeats assignments sharing RepeatKey are placed in the week,
	// further demands with the same key are skipped by policy.
	// MaxRepeats zero means unlimited.
	RepeatKey  string
	MaxRepeats int

	// Person associates the demand with a person. Two blocking
	// placements collide only when their person scopes can refer to
	// the same person (equal, or either side unset).
	Person string

	// Transparent demands are informational containers (the work-hours
	// block): they are always placed, never collide, and never block
	// other placements. They commit as transparent events.
	Transparent bool

	// order is the insertion index in the blueprint; the deterministic
	// tie-breaker throughout.
	order int
}

// BuildDemands expands the blueprint into the demand list for the week
// starting at weekStart (a Monday in the blueprint timezone).
func BuildDemands(bp *config.Blueprint, weekStart time.Time) ([]Demand, error) {
	loc := bp.Location()
	weekStart = time.Date(weekStart.Year(), weekStart.Month(), weekStart.Day(), 0, 0, 0, 0, loc)
	weekWindow := interval.Interval{Start: weekStart, End: weekStart.AddDate(0, 0, 7)}

	var demands []Demand
	add := func(d Demand) {
		d.order = len(demands)
		demands = append(demands, d)
	}

	for offset := 0; offset < 7; offset++ {
		day := weekStart.AddDate(0, 0, offset)
		dayKey := week.DayKey(day)

		if tr := bp.WorkHoursFor(day); tr != nil {
			fixed, err := rangeOn(day, *tr, loc)
			if err != nil {
				return nil, fmt.Errorf("work hours for %s: %w", dayKey, err)
			}
			add(Demand{
				Name:        "Work block",
				Category:    calendar.CategoryWork,
				Duration:    fixed.Duration(),
				Fixed:       &fixed,
				Window:      dayWindow(day),
				Transparent: true,
			})
		}

		for _, m := range bp.Meals {
			d, err := mealDemand(m, day, loc)
			if err != nil {
				return nil, fmt.Errorf("meal %q on %s: %w", m.Name, dayKey, err)
			}
			add(d)
		}

		for _, hw := range bp.HobbyWindows {
			if hw.Day != dayKey {
				continue
			}
			earliest, _ := week.ParseClock(hw.Start)
			latest, _ := week.ParseClock(hw.End)
			add(Demand{
				Name:     hw.Name,
				Category: calendar.CategoryHobbies,
				Duration: time.Duration(hw.DurationMinutes) * time.Minute,
				Window:   dayWindow(day),
				Earliest: earliest,
				Latest:   latest,
				Person:   hw.Person,
			})
		}
	}

	for _, fe := range bp.FixedEvents {
		days, err := fixedEventDays(fe, weekWindow, loc)
		if err != nil {
			return nil, fmt.Errorf("fixed event %q: %w", fe.Name, err)
		}
		cat, _ := calendar.ParseCategory(fe.Category)
		for _, day := range days {
			fixed, err := rangeOn(day, config.TimeRange{Start: fe.Start, End: fe.End}, loc)
			if err != nil {
				return nil, fmt.Errorf("fixed event %q: %w", fe.Name, err)
			}
			add(Demand{
				Name:     fe.Name,
				Category: cat,
				Duration: fixed.Duration(),
				Fixed:    &fixed,
				Window:   dayWindow(day),
				Person:   fe.Person,
			})
		}
	}

	for _, task := range bp.Tasks {
		cat, _ := calendar.ParseCategory(task.Category)
		d := Demand{
			Name:     task.Name,
			Category: cat,
			Duration: time.Duration(task.DurationMinutes) * time.Minute,
			Window:   weekWindow,
			Person:   task.Person,
		}
		if task.Earliest != "" {
			d.Earliest, _ = week.ParseClock(task.Earliest)
		}
		if task.Latest != "" {
			d.Latest, _ = week.ParseClock(task.Latest)
		}
		add(d)
	}

	return demands, nil
}

func mealDemand(m config.Meal, day time.Time, loc *time.Location) (Demand, error) {
	cat, _ := calendar.ParseCategory(m.Category)
	d := Demand{
		Name:       m.Name,
		Category:   cat,
		Window:     dayWindow(day),
		RepeatKey:  m.Name,
		MaxRepeats: m.MaxRepeats,
		Person:     m.Person,
	}
	if m.Start != "" {
		fixed, err := rangeOn(day, config.TimeRange{Start: m.Start, End: m.End}, loc)
		if err != nil {
			return Demand{}, err
		}
		d.Fixed = &fixed
		d.Duration = fixed.Duration()
		return d, nil
	}
	d.Duration = time.Duration(m.DurationMinutes) * time.Minute
	d.Earliest, _ = week.ParseClock(m.WindowStart)
	d.Latest, _ = week.ParseClock(m.WindowEnd)
	return d, nil
}

// fixedEventDays resolves which days of the week a fixed event occurs
// on, either from its weekday key or by expanding its recurrence rule
// across the week window.
func fixedEventDays(fe config.FixedEvent, weekWindow interval.Interval, loc *time.Location) ([]time.Time, error) {
	if fe.Day != "" {
		for offset := 0; offset < 7; offset++ {
			day := weekWindow.Start.AddDate(0, 0, offset)
			if week.DayKey(day) == fe.Day {
				return []time.Time{day}, nil
			}
		}
		return nil, nil
	}

	r, err := rrule.StrToRRule(fe.RRule)
	if err != nil {
		return nil, fmt.Errorf("parse rrule %q: %w", fe.RRule, err)
	}
	// Anchor the rule well before the window so weekly/monthly rules
	// have occurrences to enumerate inside it.
	r.DTStart(weekWindow.Start.AddDate(-1, 0, 0))

	var days []time.Time
	for _, occ := range r.Between(weekWindow.Start, weekWindow.End, true) {
		occ = occ.In(loc)
		if !occ.Before(weekWindow.End) {
			continue
		}
		days = append(days, time.Date(occ.Year(), occ.Month(), occ.Day(), 0, 0, 0, 0, loc))
	}
	return days, nil
}

func rangeOn(day time.Time, tr config.TimeRange, loc *time.Location) (interval.Interval, error) {
	start, err := week.ParseClock(tr.Start)
	if err != nil {
		return interval.Interval{}, err
	}
	end, err := week.ParseClock(tr.End)
	if err != nil {
		return interval.Interval{}, err
	}
	return interval.New(start.On(day, loc), end.On(day, loc))
}

func dayWindow(day time.Time) interval.Interval {
	return interval.Interval{Start: day, End: day.AddDate(0, 0, 1)}
}
