package planning

import (
	"time"

	"github.com/pkg/errors"

	"github.com/maraakiz/portal/core"
)

type View string

const (
	ViewDay   View = "day"
	ViewWeek  View = "week"
	ViewMonth View = "month"
	ViewYear  View = "year"

	dateLayout = "2006-01-02"
)

var ErrUnknownView = errors.New("view must be one of day, week, month or year")

func ParseView(s string) (View, error) {
	switch v := View(core.CleanString(s, true /* lower */)); v {
	case ViewDay, ViewWeek, ViewMonth, ViewYear:
		return v, nil
	case "":
		return ViewWeek, nil
	default:
		return "", ErrUnknownView
	}
}

// ViewRange returns the half-open window [from, to) a calendar view shows around `ref`,
// in ref's location. Month views are widened to whole weeks.
func ViewRange(view View, ref time.Time, weekStart time.Weekday) (from, to time.Time) {
	day := startOfDay(ref)
	switch view {
	case ViewDay:
		return day, day.AddDate(0, 0, 1)
	case ViewMonth:
		first := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, ref.Location())
		next := first.AddDate(0, 1, 0)
		from = startOfWeek(first, weekStart)
		to = startOfWeek(next.AddDate(0, 0, -1), weekStart).AddDate(0, 0, 7)
		return from, to
	case ViewYear:
		first := time.Date(ref.Year(), time.January, 1, 0, 0, 0, 0, ref.Location())
		return first, first.AddDate(1, 0, 0)
	default:
		from = startOfWeek(day, weekStart)
		return from, from.AddDate(0, 0, 7)
	}
}

// DateParams renders a ViewRange window as the inclusive `start_date`/`end_date` query pairs
// the calendar resource expects.
func DateParams(from, to time.Time) []core.QueryPair {
	return []core.QueryPair{
		{Key: "start_date", Value: from.Format(dateLayout)},
		{Key: "end_date", Value: to.AddDate(0, 0, -1).Format(dateLayout)},
	}
}

// ParseDate parses a "YYYY-MM-DD" date in `loc`.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(dateLayout, core.CleanString(s), loc)
	return t, errors.Wrap(err, "parsing date")
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func startOfWeek(t time.Time, weekStart time.Weekday) time.Time {
	offset := (int(t.Weekday()) - int(weekStart) + 7) % 7
	return startOfDay(t).AddDate(0, 0, -offset)
}
