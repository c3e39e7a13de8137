package week

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DayKeys lists the short weekday keys used throughout the blueprint,
// Monday first.
var DayKeys = []string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}

// DayKey returns the blueprint key ("mon".."sun") for a date.
func DayKey(d time.Time) string {
	// time.Weekday is Sunday-based.
	idx := (int(d.Weekday()) + 6) % 7
	return DayKeys[idx]
}

// ParseISOWeek parses an ISO week string like "2025-W48" and returns the
// Monday of that week.
func ParseISOWeek(s string) (time.Time, error) {
	parts := strings.SplitN(s, "-W", 2)
	if len(parts) != 2 {
		return time.Time{}, fmt.Errorf("invalid ISO week %q (use YYYY-Www)", s)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid ISO week %q: %w", s, err)
	}
	num, err := strconv.Atoi(parts[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid ISO week %q: %w", s, err)
	}
	if num < 1 || num > 53 {
		return time.Time{}, fmt.Errorf("invalid ISO week %q: week number out of range", s)
	}

	// January 4th is always in ISO week 1.
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	week1Monday := jan4.AddDate(0, 0, -((int(jan4.Weekday())+6)%7))
	monday := week1Monday.AddDate(0, 0, (num-1)*7)

	if y, w := monday.ISOWeek(); y != year || w != num {
		return time.Time{}, fmt.Errorf("invalid ISO week %q: year has no week %d", s, num)
	}
	return monday, nil
}

// NextMonday returns the Monday of the week after the one containing now.
func NextMonday(now time.Time) time.Time {
	monday := now.AddDate(0, 0, -((int(now.Weekday())+6)%7))
	monday = time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, now.Location())
	return monday.AddDate(0, 0, 7)
}

// Clock is a wall-clock time of day ("08:00") without a date attached.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM".
func ParseClock(s string) (Clock, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return Clock{}, fmt.Errorf("invalid time %q (use HH:MM)", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return Clock{}, fmt.Errorf("invalid time %q: %w", s, err)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return Clock{}, fmt.Errorf("invalid time %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return Clock{}, fmt.Errorf("invalid time %q: out of range", s)
	}
	return Clock{Hour: h, Minute: m}, nil
}

// MustClock parses "HH:MM" and panics on failure. For defaults and tests.
func MustClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

// On anchors the clock time to the given date in loc.
func (c Clock) On(date time.Time, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), c.Hour, c.Minute, 0, 0, loc)
}

// Before reports whether c is earlier in the day than other.
func (c Clock) Before(other Clock) bool {
	if c.Hour != other.Hour {
		return c.Hour < other.Hour
	}
	return c.Minute < other.Minute
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// IsZero reports whether c is the zero Clock (midnight), which the
// blueprint treats as "unset".
func (c Clock) IsZero() bool {
	return c.Hour == 0 && c.Minute == 0
}
