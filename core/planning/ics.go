package planning

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
)

type ICSOptions struct {
	ProductID string
	Name      string
	Location  *time.Location // for naive timestamps
	Now       time.Time      // DTSTAMP
}

// ExportICS renders the events as an iCalendar document.
// Events without a valid start are left out; missing ends default to start + duration.
func ExportICS(events []Event, opts ICSOptions) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	if opts.ProductID != "" {
		cal.SetProductId(opts.ProductID)
	}
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}

	for _, ev := range events {
		start, err := ev.StartTime(opts.Location)
		if err != nil {
			continue
		}
		end, err := ev.EndTime(opts.Location)
		if err != nil || !end.After(start) {
			end = start.Add(DefaultDuration)
		}

		vev := cal.AddEvent(fmt.Sprintf("planning-%d@maraakiz", ev.ID))
		vev.SetDtStampTime(opts.Now)
		vev.SetStartAt(start)
		vev.SetEndAt(end)
		vev.SetSummary(eventSummary(ev))
		if ev.Description.Valid && ev.Description.String != "" {
			vev.SetDescription(ev.Description.String)
		}
		if ev.VisioLink.Valid && ev.VisioLink.String != "" {
			vev.SetURL(ev.VisioLink.String)
		}
	}
	return cal.Serialize()
}

func eventSummary(ev Event) string {
	switch {
	case ev.Title != "":
		return ev.Title
	case ev.IsAvailableSlot:
		return "Créneau disponible"
	case ev.Subject.Valid && ev.Subject.String != "":
		return "Cours de " + ev.Subject.String
	default:
		return "Cours"
	}
}
