package planning

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
)

const DefaultDuration = 60 * time.Minute

var (
	ErrEmptyTimestamp = errors.New("empty timestamp")

	// naive layouts are read in the caller's location; the upstream stores UTC-less datetimes
	naiveLayouts = []string{
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02T15:04",
		"2006-01-02 15:04",
	}
)

// Event is one calendar slot of a teacher's planning, as received from the upstream API.
// Start and End are kept verbatim so that a malformed record survives decoding and is
// only excluded where times are needed.
type Event struct {
	ID              int         `json:"id"`
	Title           string      `json:"title"`
	Description     null.String `json:"description"`
	Subject         null.String `json:"matiere,omitempty"`
	Start           string      `json:"start"`
	End             string      `json:"end"`
	DurationMinutes null.Int    `json:"duration_minutes,omitempty"`
	DayLabel        string      `json:"jour,omitempty"`
	SlotType        string      `json:"type_creneau,omitempty"`
	StudentID       null.Int    `json:"eleve_id"`
	VisioLink       null.String `json:"lien_visio,omitempty"`
	IsAvailableSlot bool        `json:"is_available_slot"`
	IsRecurrent     bool        `json:"is_recurrent,omitempty"`
	Status          string      `json:"statut,omitempty"`
}

// UnmarshalJSON accepts both `start`/`end` and the planning resource's `start_at`/`end_at` keys.
// A timestamp that is not a JSON string is kept as its raw text, which ParseTime rejects.
func (ev *Event) UnmarshalJSON(data []byte) error {
	type event Event
	aux := struct {
		*event
		Start   json.RawMessage `json:"start"`
		End     json.RawMessage `json:"end"`
		StartAt json.RawMessage `json:"start_at"`
		EndAt   json.RawMessage `json:"end_at"`
	}{event: (*event)(ev)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if ev.Start = rawText(aux.Start); ev.Start == "" {
		ev.Start = rawText(aux.StartAt)
	}
	if ev.End = rawText(aux.End); ev.End == "" {
		ev.End = rawText(aux.EndAt)
	}
	return nil
}

func rawText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// RejectedEvent is a planning entry that could not be decoded.
type RejectedEvent struct {
	Index int
	Err   error
}

func (r RejectedEvent) Error() string {
	return fmt.Sprintf("planning #%d: %v", r.Index, r.Err)
}

// DecodeEvents reads a JSON array of events one entry at a time. Entries that fail to
// decode are returned in `rejected`; only a malformed array fails the whole call.
func DecodeEvents(data []byte) (events []Event, rejected []RejectedEvent, err error) {
	events = []Event{}
	if len(data) == 0 || string(data) == "null" {
		return events, nil, nil
	}
	var raws []json.RawMessage
	if err = json.Unmarshal(data, &raws); err != nil {
		return nil, nil, errors.Wrap(err, "decoding planning")
	}
	for i, raw := range raws {
		var ev Event
		if dErr := json.Unmarshal(raw, &ev); dErr != nil {
			rejected = append(rejected, RejectedEvent{Index: i, Err: dErr})
			continue
		}
		events = append(events, ev)
	}
	return events, rejected, nil
}

// StartTime parses Start; naive timestamps are read in `loc`.
func (ev Event) StartTime(loc *time.Location) (time.Time, error) {
	return ParseTime(ev.Start, loc)
}

// EndTime parses End, falling back to Start + DurationMinutes (default 60 minutes).
func (ev Event) EndTime(loc *time.Location) (time.Time, error) {
	if end, err := ParseTime(ev.End, loc); err == nil {
		return end, nil
	}
	start, err := ev.StartTime(loc)
	if err != nil {
		return time.Time{}, err
	}
	dur := DefaultDuration
	if ev.DurationMinutes.Valid && ev.DurationMinutes.Int > 0 {
		dur = time.Duration(ev.DurationMinutes.Int) * time.Minute
	}
	return start.Add(dur), nil
}

// ParseTime parses an RFC 3339 timestamp, or a naive "YYYY-MM-DDTHH:MM[:SS[.frac]]" one in `loc` (UTC if nil).
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrEmptyTimestamp
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Errorf("unrecognized timestamp %q", s)
}
