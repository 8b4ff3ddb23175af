package planning

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/teambition/rrule-go"

	"github.com/maraakiz/portal/core"
)

const (
	clockLayout = "15:04"

	// MaxRecurrenceSpan bounds how far a recurring course may run.
	MaxRecurrenceSpan = 366 * 24 * time.Hour
)

var rruleWeekdays = [...]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

type (
	// Slot is the time of day a recurring course takes place, "HH:MM".
	Slot struct {
		Start string `json:"debut" validate:"required"`
		End   string `json:"fin" validate:"required"`
	}

	// RecurrenceRequest is the recurring-course form: the schedule is keyed by day number,
	// 0 being Monday.
	RecurrenceRequest struct {
		Title     string          `json:"titre" validate:"required,max=255"`
		Subject   string          `json:"matiere"`
		Schedule  map[string]Slot `json:"recurrence_schedule" validate:"required,min=1,dive"`
		StartDate string          `json:"recurrence_start_date" validate:"required"`
		EndDate   string          `json:"recurrence_end_date" validate:"required"`
	}

	RecurrencePlan struct {
		Title    string
		Subject  string
		Schedule map[time.Weekday]Slot
		From     time.Time // first day, midnight
		Until    time.Time // last day, midnight
	}

	Occurrence struct {
		Title   string    `json:"title"`
		Subject string    `json:"matiere,omitempty"`
		Start   time.Time `json:"start"`
		End     time.Time `json:"end"`
	}
)

// Plan checks the request and converts it to a RecurrencePlan with dates in `loc`.
func (req RecurrenceRequest) Plan(loc *time.Location) (RecurrencePlan, error) {
	var flds []core.FieldError
	addErr := func(field, msg string) { flds = append(flds, core.FieldError{Field: field, Error: msg}) }

	plan := RecurrencePlan{
		Title:    core.CleanString(req.Title),
		Subject:  core.CleanString(req.Subject, true /* lower */),
		Schedule: make(map[time.Weekday]Slot, len(req.Schedule)),
	}

	keys := make([]string, 0, len(req.Schedule))
	for key := range req.Schedule {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	dayKeys := make(map[int]string, len(keys))
	for _, key := range keys {
		slot := req.Schedule[key]
		day, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil || day < 0 || day > 6 {
			addErr("recurrence_schedule", fmt.Sprintf("%q is not a day number between 0 (monday) and 6 (sunday)", key))
			continue
		}
		if prev, dup := dayKeys[day]; dup {
			addErr("recurrence_schedule", fmt.Sprintf("%q and %q both name day %d", prev, key, day))
			continue
		}
		dayKeys[day] = key
		start, err1 := time.Parse(clockLayout, slot.Start)
		end, err2 := time.Parse(clockLayout, slot.End)
		if err1 != nil || err2 != nil {
			addErr("recurrence_schedule", fmt.Sprintf("day %d: times must be formatted HH:MM", day))
			continue
		}
		if !end.After(start) {
			addErr("recurrence_schedule", fmt.Sprintf("day %d: end must be after start", day))
			continue
		}
		plan.Schedule[time.Weekday((day+1)%7)] = slot
	}

	var err error
	if plan.From, err = ParseDate(req.StartDate, loc); err != nil {
		addErr("recurrence_start_date", "date must be formatted YYYY-MM-DD")
	}
	if plan.Until, err = ParseDate(req.EndDate, loc); err != nil {
		addErr("recurrence_end_date", "date must be formatted YYYY-MM-DD")
	}
	if len(flds) == 0 {
		switch {
		case plan.Until.Before(plan.From):
			addErr("recurrence_end_date", "end date must not be before start date")
		case plan.Until.Sub(plan.From) > MaxRecurrenceSpan:
			addErr("recurrence_end_date", "a recurring course cannot span more than a year")
		case len(plan.Schedule) == 0:
			addErr("recurrence_schedule", "at least one day is required")
		}
	}

	if len(flds) > 0 {
		sort.SliceStable(flds, func(i, j int) bool { return flds[i].Field < flds[j].Field })
		return RecurrencePlan{}, core.NewValidationError(nil, flds...)
	}
	return plan, nil
}

// Expand lists the plan's sessions in chronological order.
func (plan RecurrencePlan) Expand() ([]Occurrence, error) {
	loc := plan.From.Location()
	until := plan.Until.AddDate(0, 0, 1).Add(-time.Second)

	// one rule per weekday: each day has its own time of day
	var starts []time.Time
	durations := make(map[time.Weekday]time.Duration, len(plan.Schedule))
	for wd, slot := range plan.Schedule {
		start, err := time.Parse(clockLayout, slot.Start)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing %s start", wd)
		}
		end, err := time.Parse(clockLayout, slot.End)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing %s end", wd)
		}
		durations[wd] = end.Sub(start)

		dtstart := time.Date(plan.From.Year(), plan.From.Month(), plan.From.Day(), start.Hour(), start.Minute(), 0, 0, loc)
		r, err := rrule.NewRRule(rrule.ROption{
			Freq:      rrule.WEEKLY,
			Byweekday: []rrule.Weekday{rruleWeekdays[wd]},
			Dtstart:   dtstart,
			Until:     until,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "building %s rule", wd)
		}
		starts = append(starts, r.All()...)
	}

	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })

	occs := make([]Occurrence, 0, len(starts))
	for _, start := range starts {
		start = start.In(loc)
		occs = append(occs, Occurrence{
			Title:   plan.Title,
			Subject: plan.Subject,
			Start:   start,
			End:     start.Add(durations[start.Weekday()]),
		})
	}
	return occs, nil
}
