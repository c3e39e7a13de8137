package calendar

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"week-planner/internal/interval"
)

// Aggregator merges events from every mapped calendar into a single
// busy timeline for a window. Blocks are rebuilt fresh on every call;
// nothing is cached, since stale busy data defeats collision avoidance.
type Aggregator struct {
	api         API
	calendarMap map[Category]string
}

// NewAggregator creates an Aggregator over the category -> calendar-id
// routing map.
func NewAggregator(api API, calendarMap map[Category]string) *Aggregator {
	return &Aggregator{api: api, calendarMap: calendarMap}
}

// BusyBlocks fetches all events overlapping window from every mapped
// calendar and returns them merged and time-sorted. Fetches fan out
// concurrently; the sort afterwards makes arrival order irrelevant.
//
// When one or more calendars fail, the failures are returned as
// FetchErrors. Unless allowPartial is set, any failure also yields a
// non-nil error and the caller must not act on the (incomplete) blocks,
// since planning against partial busy data risks double-booking.
func (a *Aggregator) BusyBlocks(ctx context.Context, window interval.Interval, allowPartial bool) ([]BusyBlock, []*FetchError, error) {
	type fetchResult struct {
		blocks []BusyBlock
		err    *FetchError
	}

	// Deterministic iteration order for the fan-out and for tie-breaks
	// between blocks with equal starts.
	cats := make([]Category, 0, len(a.calendarMap))
	for cat := range a.calendarMap {
		cats = append(cats, cat)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })

	results := make([]fetchResult, len(cats))
	var wg sync.WaitGroup
	for i, cat := range cats {
		wg.Add(1)
		go func(i int, cat Category, calID string) {
			defer wg.Done()
			events, err := a.api.ListEvents(ctx, calID, window.Start, window.End)
			if err != nil {
				results[i].err = &FetchError{CalendarID: calID, Category: cat, Err: err}
				return
			}
			results[i].blocks = normalize(events, cat, calID, window)
		}(i, cat, a.calendarMap[cat])
	}
	wg.Wait()

	var blocks []BusyBlock
	var failures []*FetchError
	for _, r := range results {
		if r.err != nil {
			failures = append(failures, r.err)
			continue
		}
		blocks = append(blocks, r.blocks...)
	}

	sort.SliceStable(blocks, func(i, j int) bool {
		if !blocks[i].Interval.Start.Equal(blocks[j].Interval.Start) {
			return blocks[i].Interval.Start.Before(blocks[j].Interval.Start)
		}
		return blocks[i].CalendarID < blocks[j].CalendarID
	})

	if len(failures) > 0 && !allowPartial {
		return blocks, failures, fmt.Errorf("aggregation degraded: %d of %d calendars failed (first: %v)",
			len(failures), len(cats), failures[0])
	}
	return blocks, failures, nil
}

// normalize turns raw events into BusyBlocks, dropping anything that
// does not overlap the window or has no usable interval.
func normalize(events []RawEvent, cat Category, calID string, window interval.Interval) []BusyBlock {
	var out []BusyBlock
	for _, ev := range events {
		iv, err := interval.New(ev.Start, ev.End)
		if err != nil {
			// Zero-length and inverted events exist in the wild;
			// they occupy no time.
			continue
		}
		if !iv.Overlaps(window) {
			continue
		}
		blockCat := cat
		if meta, ok := ev.Metadata["category"]; ok {
			if parsed, err := ParseCategory(meta); err == nil {
				blockCat = parsed
			}
		}
		out = append(out, BusyBlock{
			Interval:    iv,
			Category:    blockCat,
			Transparent: ev.Transparency == "transparent",
			CalendarID:  calID,
			EventID:     ev.ID,
			Summary:     ev.Title,
			Person:      ev.Metadata["person"],
		})
	}
	return out
}

// BlockingIntervals extracts the intervals of blocking blocks only.
func BlockingIntervals(blocks []BusyBlock) []interval.Interval {
	var out []interval.Interval
	for _, b := range blocks {
		if b.Blocking() {
			out = append(out, b.Interval)
		}
	}
	return out
}
