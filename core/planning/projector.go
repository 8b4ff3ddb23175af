// Package planning derives views of a teacher's schedule: the next upcoming session,
// calendar windows, recurring-session previews and iCalendar exports.
package planning

import (
	"sort"
	"time"
)

// NextUpcoming returns the event with the earliest start strictly after `now`.
//
// Events whose start is missing or cannot be parsed are skipped. Naive timestamps are read
// in now's location. On equal starts the event that comes first in `events` wins.
// ok is false when no event qualifies. `events` is not modified.
func NextUpcoming(events []Event, now time.Time) (next Event, ok bool) {
	var nextStart time.Time
	for _, ev := range events {
		start, err := ev.StartTime(now.Location())
		if err != nil || !start.After(now) {
			continue
		}
		if !ok || start.Before(nextStart) {
			next, nextStart, ok = ev, start, true
		}
	}
	return next, ok
}

// Upcoming returns the events starting strictly after `now`, earliest first, ties in input order.
func Upcoming(events []Event, now time.Time) []Event {
	type timed struct {
		ev    Event
		start time.Time
	}
	kept := make([]timed, 0, len(events))
	for _, ev := range events {
		if start, err := ev.StartTime(now.Location()); err == nil && start.After(now) {
			kept = append(kept, timed{ev, start})
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].start.Before(kept[j].start) })
	out := make([]Event, len(kept))
	for i := range kept {
		out[i] = kept[i].ev
	}
	return out
}
