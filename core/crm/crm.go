// Package crm assembles the teacher dashboard: students, unread messages, the next
// session, the subscription, and the calendar windows of the planning.
package crm

import (
	"encoding/json"
	"strconv"

	"github.com/volatiletech/null/v8"

	"github.com/maraakiz/portal/core/planning"
)

// upstream resources
const (
	StatsStudentsPath = "/stats/eleves/"
	StatsMessagesPath = "/stats/messages/"
	StatsPlanningPath = "/stats/planning/"
	SubscriptionPath  = "/abonnements/"
	PlanningPath      = "/plannings"
	CalendarPath      = "/calendrier/cours"
)

// Stat sources, as reported in Dashboard.Degraded.
const (
	SourceStudents     = "eleves"
	SourceMessages     = "messages"
	SourceStats        = "planning_stats"
	SourceSubscription = "abonnement"
	SourcePlanning     = "planning"
)

// Origin of Dashboard.Next.
const (
	NextFromStats    = "stats"
	NextFromPlanning = "planning"
)

// stat is a statistics document. Its keys vary between upstream versions.
type stat map[string]json.RawMessage

// count returns the first of `keys` holding a number, 0 if none does.
func (s stat) count(keys ...string) int {
	for _, key := range keys {
		raw, ok := s[key]
		if !ok {
			continue
		}
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			continue
		}
		if i, err := strconv.Atoi(n.String()); err == nil {
			return i
		}
		if f, err := n.Float64(); err == nil {
			return int(f)
		}
	}
	return 0
}

// event returns the first of `keys` holding an event object.
func (s stat) event(keys ...string) (planning.Event, bool) {
	for _, key := range keys {
		raw, ok := s[key]
		if !ok || string(raw) == "null" {
			continue
		}
		var ev planning.Event
		if err := json.Unmarshal(raw, &ev); err == nil && ev.Start != "" {
			return ev, true
		}
	}
	return planning.Event{}, false
}

type Subscription struct {
	ID        int         `json:"id"`
	PlanName  string      `json:"plan_name"`
	StartDate null.String `json:"start_date"`
	EndDate   null.String `json:"end_date"`
	Active    bool        `json:"active"`
}

// UnmarshalJSON reads the active flag from any of `active`, `actif` or `is_active`.
func (sub *Subscription) UnmarshalJSON(data []byte) error {
	type subscription Subscription
	aux := struct {
		*subscription
		Actif    bool `json:"actif"`
		IsActive bool `json:"is_active"`
	}{subscription: (*subscription)(sub)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	sub.Active = sub.Active || aux.Actif || aux.IsActive
	return nil
}

type Dashboard struct {
	MerkezID       int              `json:"merkez_id"`
	Students       int              `json:"eleves"`
	UnreadMessages int              `json:"messages_non_lus"`
	Next           *planning.Event  `json:"prochain_cours"`
	NextFrom       string           `json:"prochain_source,omitempty"`
	Subscription   *Subscription    `json:"abonnement"`
	Planning       []planning.Event `json:"planning"`
	Degraded       []string         `json:"degraded,omitempty"` // sources that could not be read
}

// SubscriptionActive reports whether the merkez has an active subscription.
func (d Dashboard) SubscriptionActive() bool {
	return d.Subscription != nil && d.Subscription.Active
}
