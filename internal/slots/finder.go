package slots

import (
	"time"

	"week-planner/internal/calendar"
	"week-planner/internal/interval"
	"week-planner/internal/week"
)

// Defaults applied by Options.normalize when a field is unset.
const (
	DefaultBuffer   = 10 * time.Minute
	DefaultMaxBlock = 2 * time.Hour
)

// Options bound where and how candidate slots are carved out of free
// time.
type Options struct {
	// Buffer expands each blocking busy block on both sides before the
	// free complement is computed.
	Buffer time.Duration
	// Earliest and Latest clip each day of the window to the local
	// wall-clock range in which slots may start and end.
	Earliest week.Clock
	Latest   week.Clock
	// MaxBlock caps the length of a single candidate slot. A free span
	// longer than MaxBlock is not discarded: it yields one candidate
	// per duration-sized placement site from its start.
	MaxBlock time.Duration
	// Location is the timezone in which Earliest/Latest are anchored.
	Location *time.Location
}

func (o Options) normalize() Options {
	if o.Buffer <= 0 {
		o.Buffer = DefaultBuffer
	}
	if o.MaxBlock <= 0 {
		o.MaxBlock = DefaultMaxBlock
	}
	if o.Earliest.IsZero() {
		o.Earliest = week.Clock{Hour: 8}
	}
	if o.Latest.IsZero() {
		o.Latest = week.Clock{Hour: 20}
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	return o
}

// Candidate is a placeable free slot, annotated with the blocking
// blocks bordering it so buffer handling can be verified downstream.
type Candidate struct {
	Interval interval.Interval
	// Before and After are the nearest blocking blocks on either side
	// of the free span this candidate was carved from, when one exists.
	Before *calendar.BusyBlock
	After  *calendar.BusyBlock
}

// Find returns every candidate slot of at least duration within window,
// in chronological order. That ordering is a contract: the placement
// planner's greedy assignment depends on it.
//
// Blocking blocks are expanded by the buffer, the window is clipped to
// [Earliest, Latest] per day, and the free complement is computed via
// interval.Subtract. Free spans longer than MaxBlock yield successive
// candidates of at most MaxBlock, stepped by duration from the span
// start, so a long free morning still admits several placements rather
// than one oversized slot.
func Find(window interval.Interval, busy []calendar.BusyBlock, duration time.Duration, opts Options) []Candidate {
	opts = opts.normalize()
	if duration <= 0 {
		return nil
	}

	blocking := blockingSorted(busy)
	buffered := make([]interval.Interval, len(blocking))
	for i, b := range blocking {
		buffered[i] = b.Interval.WithBuffer(opts.Buffer)
	}

	var out []Candidate
	for _, day := range dayWindows(window, opts) {
		for _, free := range interval.Subtract(day, buffered) {
			if free.Duration() < duration {
				continue
			}
			before, after := borders(free, blocking)
			for _, iv := range split(free, duration, opts.MaxBlock) {
				out = append(out, Candidate{Interval: iv, Before: before, After: after})
			}
		}
	}
	return out
}

// dayWindows clips window to the per-day [Earliest, Latest] range,
// returning one bounding window per day in chronological order.
func dayWindows(window interval.Interval, opts Options) []interval.Interval {
	var out []interval.Interval
	day := window.Start.In(opts.Location)
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, opts.Location)
	for day.Before(window.End) {
		bounds := interval.Interval{
			Start: opts.Earliest.On(day, opts.Location),
			End:   opts.Latest.On(day, opts.Location),
		}
		if clipped, ok := bounds.Clip(window); ok {
			out = append(out, clipped)
		}
		day = day.AddDate(0, 0, 1)
	}
	return out
}

// split carves a free span into candidate intervals. Spans up to max
// long yield themselves; longer spans yield one interval of at most max
// per duration-sized step from the start, discarding a final remainder
// shorter than duration.
func split(free interval.Interval, duration, max time.Duration) []interval.Interval {
	if free.Duration() <= max {
		return []interval.Interval{free}
	}
	var out []interval.Interval
	for start := free.Start; free.End.Sub(start) >= duration; start = start.Add(duration) {
		end := start.Add(max)
		if end.After(free.End) {
			end = free.End
		}
		out = append(out, interval.Interval{Start: start, End: end})
	}
	return out
}

func blockingSorted(busy []calendar.BusyBlock) []calendar.BusyBlock {
	var out []calendar.BusyBlock
	for _, b := range busy {
		if b.Blocking() {
			out = append(out, b)
		}
	}
	return out
}

// borders finds the blocking blocks immediately before and after a free
// span, if any.
func borders(free interval.Interval, blocking []calendar.BusyBlock) (before, after *calendar.BusyBlock) {
	for i := range blocking {
		b := &blocking[i]
		if !b.Interval.End.After(free.Start) {
			if before == nil || b.Interval.End.After(before.Interval.End) {
				before = b
			}
		}
		if !b.Interval.Start.Before(free.End) {
			if after == nil || b.Interval.Start.Before(after.Interval.Start) {
				after = b
			}
		}
	}
	return before, after
}
