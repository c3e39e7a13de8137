package interval

import (
	"fmt"
	"sort"
	"time"
)

// Interval is a half-open time span [Start, End). Both endpoints carry
// their own location; comparisons use absolute time.
type Interval struct {
	Start time.Time
	End   time.Time
}

// New validates and constructs an Interval. Start must be strictly
// before End and both endpoints must be set.
func New(start, end time.Time) (Interval, error) {
	if start.IsZero() || end.IsZero() {
		return Interval{}, fmt.Errorf("interval endpoints must be set")
	}
	if !start.Before(end) {
		return Interval{}, fmt.Errorf("interval start %s is not before end %s",
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return Interval{Start: start, End: end}, nil
}

// Duration returns End - Start.
func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// Overlaps reports whether iv and other share any instant. Touching
// endpoints do not overlap (half-open semantics).
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Contains reports whether other lies entirely within iv.
func (iv Interval) Contains(other Interval) bool {
	return !other.Start.Before(iv.Start) && !other.End.After(iv.End)
}

// WithBuffer expands both ends by buffer. Used for collision testing
// only; the stored interval is never widened.
func (iv Interval) WithBuffer(buffer time.Duration) Interval {
	if buffer <= 0 {
		return iv
	}
	return Interval{Start: iv.Start.Add(-buffer), End: iv.End.Add(buffer)}
}

// Clip intersects iv with bound. The second return is false when the
// intersection is empty.
func (iv Interval) Clip(bound Interval) (Interval, bool) {
	start, end := iv.Start, iv.End
	if start.Before(bound.Start) {
		start = bound.Start
	}
	if end.After(bound.End) {
		end = bound.End
	}
	if !start.Before(end) {
		return Interval{}, false
	}
	return Interval{Start: start, End: end}, true
}

func (iv Interval) String() string {
	return iv.Start.Format(time.RFC3339) + " -> " + iv.End.Format(time.RFC3339)
}

// Subtract returns the free complement of busy within window, in
// chronological order. The busy list is sorted first (stable, so equal
// starts keep their original order); later stages rely on the
// leftmost-first ordering of the result.
func Subtract(window Interval, busy []Interval) []Interval {
	if len(busy) == 0 {
		return []Interval{window}
	}

	sorted := make([]Interval, len(busy))
	copy(sorted, busy)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	var free []Interval
	cursor := window.Start
	for _, b := range sorted {
		clipped, ok := b.Clip(window)
		if !ok {
			continue
		}
		if cursor.Before(clipped.Start) {
			free = append(free, Interval{Start: cursor, End: clipped.Start})
		}
		if clipped.End.After(cursor) {
			cursor = clipped.End
		}
	}
	if cursor.Before(window.End) {
		free = append(free, Interval{Start: cursor, End: window.End})
	}
	return free
}

// Merge coalesces overlapping or touching intervals into a minimal
// sorted set.
func Merge(ivs []Interval) []Interval {
	if len(ivs) == 0 {
		return nil
	}
	sorted := make([]Interval, len(ivs))
	copy(sorted, ivs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	out := []Interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &out[len(out)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}
