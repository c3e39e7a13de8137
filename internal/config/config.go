package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"week-planner/internal/calendar"
	"week-planner/internal/week"
)

// Error is a blueprint validation failure. It is fatal: planning never
// starts from a blueprint that failed validation, since acting on bad
// configuration risks incorrect calendar writes.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("blueprint: %s: %s", e.Field, e.Reason)
}

// TimeRange is a wall-clock range within one day.
type TimeRange struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// Meal declares one meal per day. A meal with start/end is a fixed-time
// preference; a meal with window_start/window_end and duration_minutes
// floats within that window.
type Meal struct {
	Name            string `yaml:"name"`
	Start           string `yaml:"start,omitempty"`
	End             string `yaml:"end,omitempty"`
	WindowStart     string `yaml:"window_start,omitempty"`
	WindowEnd       string `yaml:"window_end,omitempty"`
	DurationMinutes int    `yaml:"duration_minutes,omitempty"`
	Category        string `yaml:"category,omitempty"`
	MaxRepeats      int    `yaml:"max_repeats,omitempty"`
	Person          string `yaml:"person,omitempty"`
}

// FixedEvent is a recurring appointment pinned to exact times. Either
// Day names a weekday ("mon".."sun") or RRule carries an iCalendar
// recurrence rule expanded per target week.
type FixedEvent struct {
	Name     string `yaml:"name"`
	Day      string `yaml:"day,omitempty"`
	RRule    string `yaml:"rrule,omitempty"`
	Start    string `yaml:"start"`
	End      string `yaml:"end"`
	Category string `yaml:"category,omitempty"`
	Person   string `yaml:"person,omitempty"`
}

// HobbyWindow opens a window on one weekday in which a hobby session of
// the given duration should be placed.
type HobbyWindow struct {
	Name            string `yaml:"name"`
	Day             string `yaml:"day"`
	Start           string `yaml:"start"`
	End             string `yaml:"end"`
	DurationMinutes int    `yaml:"duration_minutes"`
	Person          string `yaml:"person,omitempty"`
}

// Task is a one-off request placed anywhere in the week.
type Task struct {
	Name            string `yaml:"name"`
	DurationMinutes int    `yaml:"duration_minutes"`
	Category        string `yaml:"category,omitempty"`
	Earliest        string `yaml:"earliest,omitempty"`
	Latest          string `yaml:"latest,omitempty"`
	Person          string `yaml:"person,omitempty"`
}

// DayOverride replaces blueprint defaults for one weekday or date.
type DayOverride struct {
	WorkHours *TimeRange `yaml:"work_hours,omitempty"`
	// Off suppresses the work block entirely for that day.
	Off bool `yaml:"off,omitempty"`
}

// Overrides adjusts per-weekday and per-date behavior. Per-date wins
// over per-day.
type Overrides struct {
	PerDay  map[string]DayOverride `yaml:"per_day,omitempty"`
	PerDate map[string]DayOverride `yaml:"per_date,omitempty"`
}

// Blueprint is the declarative weekly schedule the planner consumes.
// It is passed explicitly into every operation, never held as process
// globals, so runs with different blueprints can coexist.
type Blueprint struct {
	Timezone string `yaml:"timezone"`

	// CalendarMap routes categories to external calendar IDs.
	CalendarMap map[string]string `yaml:"calendar_map"`

	BufferMinutes   int    `yaml:"buffer_minutes"`
	MaxBlockMinutes int    `yaml:"max_block_minutes"`
	EarliestTime    string `yaml:"earliest_time"`
	LatestTime      string `yaml:"latest_time"`

	// CategoryPriority orders flexible demand categories; earlier wins.
	CategoryPriority []string `yaml:"category_priority,omitempty"`

	WorkHours    map[string]TimeRange `yaml:"work_hours,omitempty"`
	Meals        []Meal               `yaml:"meals,omitempty"`
	FixedEvents  []FixedEvent         `yaml:"fixed_events,omitempty"`
	HobbyWindows []HobbyWindow        `yaml:"hobby_windows,omitempty"`
	Tasks        []Task               `yaml:"tasks,omitempty"`
	Overrides    Overrides            `yaml:"overrides,omitempty"`

	// TasklistTitle names the Google Tasks list that receives
	// follow-up tasks for unresolved demands.
	TasklistTitle string `yaml:"tasklist_title,omitempty"`
}

// Load reads and validates a blueprint YAML file.
func Load(path string) (*Blueprint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read blueprint %s: %w", path, err)
	}
	var bp Blueprint
	if err := yaml.Unmarshal(data, &bp); err != nil {
		return nil, fmt.Errorf("parse blueprint %s: %w", path, err)
	}
	bp.Normalize()
	if err := bp.Validate(); err != nil {
		return nil, err
	}
	return &bp, nil
}

// Normalize fills in defaults for missing fields so partially-filled
// blueprints behave sensibly.
func (bp *Blueprint) Normalize() {
	if bp.Timezone == "" {
		bp.Timezone = "UTC"
	}
	if bp.BufferMinutes <= 0 {
		bp.BufferMinutes = 10
	}
	if bp.MaxBlockMinutes <= 0 {
		bp.MaxBlockMinutes = 120
	}
	if bp.EarliestTime == "" {
		bp.EarliestTime = "08:00"
	}
	if bp.LatestTime == "" {
		bp.LatestTime = "20:00"
	}
	if len(bp.CategoryPriority) == 0 {
		bp.CategoryPriority = []string{
			string(calendar.CategoryFood),
			string(calendar.CategoryHobbies),
			string(calendar.CategoryChores),
		}
	}
	if bp.TasklistTitle == "" {
		bp.TasklistTitle = "Weekly plan follow-ups"
	}
	for i := range bp.Meals {
		if bp.Meals[i].Category == "" {
			bp.Meals[i].Category = string(calendar.CategoryFood)
		}
	}
	for i := range bp.FixedEvents {
		if bp.FixedEvents[i].Category == "" {
			bp.FixedEvents[i].Category = string(calendar.CategoryPrimary)
		}
	}
	for i := range bp.Tasks {
		if bp.Tasks[i].Category == "" {
			bp.Tasks[i].Category = string(calendar.CategoryChores)
		}
	}
}

// Validate checks the blueprint for mistakes that would make planning
// unsafe. It returns a *Error describing the first problem found.
func (bp *Blueprint) Validate() error {
	if _, err := time.LoadLocation(bp.Timezone); err != nil {
		return &Error{Field: "timezone", Reason: err.Error()}
	}
	if len(bp.CalendarMap) == 0 {
		return &Error{Field: "calendar_map", Reason: "at least one calendar mapping is required"}
	}
	if _, ok := bp.CalendarMap[string(calendar.CategoryPrimary)]; !ok {
		return &Error{Field: "calendar_map", Reason: "a \"primary\" calendar mapping is required"}
	}
	for key := range bp.CalendarMap {
		if _, err := calendar.ParseCategory(key); err != nil {
			return &Error{Field: "calendar_map", Reason: err.Error()}
		}
	}

	earliest, err := week.ParseClock(bp.EarliestTime)
	if err != nil {
		return &Error{Field: "earliest_time", Reason: err.Error()}
	}
	latest, err := week.ParseClock(bp.LatestTime)
	if err != nil {
		return &Error{Field: "latest_time", Reason: err.Error()}
	}
	if !earliest.Before(latest) {
		return &Error{Field: "earliest_time", Reason: "must be before latest_time"}
	}

	for _, cat := range bp.CategoryPriority {
		if _, err := calendar.ParseCategory(cat); err != nil {
			return &Error{Field: "category_priority", Reason: err.Error()}
		}
	}

	for day, tr := range bp.WorkHours {
		if !validDayKey(day) {
			return &Error{Field: "work_hours", Reason: fmt.Sprintf("unknown day %q", day)}
		}
		if err := validateRange(tr); err != nil {
			return &Error{Field: "work_hours." + day, Reason: err.Error()}
		}
	}

	for i, m := range bp.Meals {
		field := fmt.Sprintf("meals[%d]", i)
		if m.Name == "" {
			return &Error{Field: field, Reason: "name is required"}
		}
		if _, err := calendar.ParseCategory(m.Category); err != nil {
			return &Error{Field: field, Reason: err.Error()}
		}
		fixed := m.Start != "" || m.End != ""
		floating := m.WindowStart != "" || m.WindowEnd != ""
		switch {
		case fixed && floating:
			return &Error{Field: field, Reason: "use either start/end or window_start/window_end, not both"}
		case fixed:
			if err := validateRange(TimeRange{Start: m.Start, End: m.End}); err != nil {
				return &Error{Field: field, Reason: err.Error()}
			}
		case floating:
			if err := validateRange(TimeRange{Start: m.WindowStart, End: m.WindowEnd}); err != nil {
				return &Error{Field: field, Reason: err.Error()}
			}
			if m.DurationMinutes <= 0 {
				return &Error{Field: field, Reason: "duration_minutes is required for a floating meal"}
			}
		default:
			return &Error{Field: field, Reason: "either start/end or window_start/window_end is required"}
		}
		if m.MaxRepeats < 0 {
			return &Error{Field: field, Reason: "max_repeats must not be negative"}
		}
	}

	for i, fe := range bp.FixedEvents {
		field := fmt.Sprintf("fixed_events[%d]", i)
		if fe.Name == "" {
			return &Error{Field: field, Reason: "name is required"}
		}
		if fe.Day == "" && fe.RRule == "" {
			return &Error{Field: field, Reason: "either day or rrule is required"}
		}
		if fe.Day != "" && !validDayKey(fe.Day) {
			return &Error{Field: field, Reason: fmt.Sprintf("unknown day %q", fe.Day)}
		}
		if err := validateRange(TimeRange{Start: fe.Start, End: fe.End}); err != nil {
			return &Error{Field: field, Reason: err.Error()}
		}
		if _, err := calendar.ParseCategory(fe.Category); err != nil {
			return &Error{Field: field, Reason: err.Error()}
		}
	}

	for i, hw := range bp.HobbyWindows {
		field := fmt.Sprintf("hobby_windows[%d]", i)
		if hw.Name == "" {
			return &Error{Field: field, Reason: "name is required"}
		}
		if !validDayKey(hw.Day) {
			return &Error{Field: field, Reason: fmt.Sprintf("unknown day %q", hw.Day)}
		}
		if err := validateRange(TimeRange{Start: hw.Start, End: hw.End}); err != nil {
			return &Error{Field: field, Reason: err.Error()}
		}
		if hw.DurationMinutes <= 0 {
			return &Error{Field: field, Reason: "duration_minutes is required"}
		}
	}

	for i, task := range bp.Tasks {
		field := fmt.Sprintf("tasks[%d]", i)
		if task.Name == "" {
			return &Error{Field: field, Reason: "name is required"}
		}
		if task.DurationMinutes <= 0 {
			return &Error{Field: field, Reason: "duration_minutes is required"}
		}
		if _, err := calendar.ParseCategory(task.Category); err != nil {
			return &Error{Field: field, Reason: err.Error()}
		}
		for name, s := range map[string]string{"earliest": task.Earliest, "latest": task.Latest} {
			if s == "" {
				continue
			}
			if _, err := week.ParseClock(s); err != nil {
				return &Error{Field: field + "." + name, Reason: err.Error()}
			}
		}
	}

	for day := range bp.Overrides.PerDay {
		if !validDayKey(day) {
			return &Error{Field: "overrides.per_day", Reason: fmt.Sprintf("unknown day %q", day)}
		}
	}
	for date := range bp.Overrides.PerDate {
		if _, err := time.Parse("2006-01-02", date); err != nil {
			return &Error{Field: "overrides.per_date", Reason: fmt.Sprintf("invalid date %q", date)}
		}
	}

	return nil
}

func validateRange(tr TimeRange) error {
	start, err := week.ParseClock(tr.Start)
	if err != nil {
		return err
	}
	end, err := week.ParseClock(tr.End)
	if err != nil {
		return err
	}
	if !start.Before(end) {
		return fmt.Errorf("start %s is not before end %s", tr.Start, tr.End)
	}
	return nil
}

func validDayKey(day string) bool {
	for _, k := range week.DayKeys {
		if k == day {
			return true
		}
	}
	return false
}

// Location resolves the blueprint timezone. Validate has already
// checked that it loads.
func (bp *Blueprint) Location() *time.Location {
	loc, err := time.LoadLocation(bp.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Buffer returns the collision buffer as a duration.
func (bp *Blueprint) Buffer() time.Duration {
	return time.Duration(bp.BufferMinutes) * time.Minute
}

// MaxBlock returns the maximum candidate slot length.
func (bp *Blueprint) MaxBlock() time.Duration {
	return time.Duration(bp.MaxBlockMinutes) * time.Minute
}

// Earliest returns the daily earliest placement time.
func (bp *Blueprint) Earliest() week.Clock {
	c, _ := week.ParseClock(bp.EarliestTime)
	return c
}

// Latest returns the daily latest placement time.
func (bp *Blueprint) Latest() week.Clock {
	c, _ := week.ParseClock(bp.LatestTime)
	return c
}

// CategoryMap converts the routing map to typed categories.
func (bp *Blueprint) CategoryMap() map[calendar.Category]string {
	out := make(map[calendar.Category]string, len(bp.CalendarMap))
	for key, id := range bp.CalendarMap {
		if cat, err := calendar.ParseCategory(key); err == nil {
			out[cat] = id
		}
	}
	return out
}

// CalendarFor resolves the calendar ID for a category, falling back to
// the primary calendar when the category has no mapping of its own.
func (bp *Blueprint) CalendarFor(cat calendar.Category) string {
	if id, ok := bp.CalendarMap[string(cat)]; ok {
		return id
	}
	return bp.CalendarMap[string(calendar.CategoryPrimary)]
}

// WorkHoursFor resolves the work-hours range for a date, applying
// per-date then per-day overrides. A nil result means no work block.
func (bp *Blueprint) WorkHoursFor(date time.Time) *TimeRange {
	dayKey := week.DayKey(date)

	if ov, ok := bp.Overrides.PerDate[date.Format("2006-01-02")]; ok {
		if ov.Off {
			return nil
		}
		if ov.WorkHours != nil {
			return ov.WorkHours
		}
	}
	if ov, ok := bp.Overrides.PerDay[dayKey]; ok {
		if ov.Off {
			return nil
		}
		if ov.WorkHours != nil {
			return ov.WorkHours
		}
	}
	if tr, ok := bp.WorkHours[dayKey]; ok {
		return &tr
	}
	return nil
}
