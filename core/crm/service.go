package crm

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/maraakiz/portal/core"
	"github.com/maraakiz/portal/core/planning"
)

type Service struct {
	fetcher   core.Fetcher
	logger    core.Logger
	loc       *time.Location
	weekStart time.Weekday
}

func NewService(fetcher core.Fetcher, logger core.Logger, conf core.PlanningConfig) *Service {
	loc := conf.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Service{fetcher: fetcher, logger: logger, loc: loc, weekStart: conf.WeekStart}
}

// Dashboard reads the merkez statistics, subscription and planning concurrently.
//
// A source that fails is reported in Degraded and leaves its figures at zero; only a
// refused session or a cancelled context fails the whole call. The next session is the
// one the statistics announce, or else the earliest planning event after `now`.
func (svc *Service) Dashboard(ctx context.Context, sess core.Session, merkezID int, now time.Time) (Dashboard, error) {
	id := strconv.Itoa(merkezID)
	dash := Dashboard{MerkezID: merkezID, Planning: []planning.Event{}}

	var (
		students, messages, stats stat
		sub                       *Subscription
		events                    json.RawMessage
		mu                        sync.Mutex
	)

	g, gctx := errgroup.WithContext(ctx)
	fetch := func(source, path string, out interface{}) {
		g.Go(func() error {
			err := svc.fetcher.Fetch(gctx, sess, path, nil, out)
			if err == nil {
				return nil
			}
			if core.IsAuthFailure(err) || gctx.Err() != nil {
				return err
			}
			svc.logger.Warn("crm: "+source+" unavailable", err, sess)
			mu.Lock()
			dash.Degraded = append(dash.Degraded, source)
			mu.Unlock()
			return nil
		})
	}
	fetch(SourceStudents, StatsStudentsPath+id, &students)
	fetch(SourceMessages, StatsMessagesPath+id, &messages)
	fetch(SourceStats, StatsPlanningPath+id, &stats)
	fetch(SourceSubscription, SubscriptionPath+id, &sub)
	fetch(SourcePlanning, PlanningPath, &events)

	if err := g.Wait(); err != nil {
		return Dashboard{}, errors.Wrap(err, "crm dashboard")
	}
	sortSources(dash.Degraded)

	// a failed decode may leave partial values behind
	for _, source := range dash.Degraded {
		switch source {
		case SourceStudents:
			students = nil
		case SourceMessages:
			messages = nil
		case SourceStats:
			stats = nil
		case SourceSubscription:
			sub = nil
		case SourcePlanning:
			events = nil
		}
	}
	if events != nil {
		list, err := svc.decodeEvents(events, sess)
		if err != nil {
			svc.logger.Warn("crm: "+SourcePlanning+" unavailable", err, sess)
			dash.Degraded = append(dash.Degraded, SourcePlanning)
			sortSources(dash.Degraded)
		} else {
			dash.Planning = list
		}
	}

	dash.Students = students.count("total_eleves", "total", "count")
	dash.UnreadMessages = messages.count("total_non_lus", "unread", "count_non_lus")
	dash.Subscription = sub

	if next, ok := stats.event("prochain", "next"); ok {
		dash.Next, dash.NextFrom = &next, NextFromStats
	} else if next, ok := planning.NextUpcoming(dash.Planning, now.In(svc.loc)); ok {
		dash.Next, dash.NextFrom = &next, NextFromPlanning
	}
	return dash, nil
}

// Planning returns the caller's planning events as the upstream lists them.
func (svc *Service) Planning(ctx context.Context, sess core.Session) ([]planning.Event, error) {
	var raw json.RawMessage
	if err := svc.fetcher.Fetch(ctx, sess, PlanningPath, nil, &raw); err != nil {
		return nil, errors.Wrap(err, "crm planning")
	}
	events, err := svc.decodeEvents(raw, sess)
	if err != nil {
		return nil, errors.Wrap(err, "crm planning")
	}
	return events, nil
}

// decodeEvents decodes a planning list; entries that cannot be decoded are logged and left out.
func (svc *Service) decodeEvents(raw json.RawMessage, sess core.Session) ([]planning.Event, error) {
	events, rejected, err := planning.DecodeEvents(raw)
	if err != nil {
		return nil, err
	}
	for _, rej := range rejected {
		svc.logger.Warn("planning record rejected", rej, sess)
	}
	return events, nil
}

// NextSession returns the caller's next session after `now`, computed from the planning.
func (svc *Service) NextSession(ctx context.Context, sess core.Session, now time.Time) (planning.Event, bool, error) {
	events, err := svc.Planning(ctx, sess)
	if err != nil {
		return planning.Event{}, false, err
	}
	next, ok := planning.NextUpcoming(events, now.In(svc.loc))
	return next, ok, nil
}

// CalendarPage is the planning of one calendar window.
type CalendarPage struct {
	View   planning.View    `json:"view"`
	From   time.Time        `json:"from"`
	To     time.Time        `json:"to"` // exclusive
	Events []planning.Event `json:"events"`
}

// Calendar fetches the courses of the `view` window around `ref`.
func (svc *Service) Calendar(ctx context.Context, sess core.Session, view planning.View, ref time.Time) (CalendarPage, error) {
	from, to := planning.ViewRange(view, ref.In(svc.loc), svc.weekStart)

	var raw json.RawMessage
	if err := svc.fetcher.Fetch(ctx, sess, CalendarPath, planning.DateParams(from, to), &raw); err != nil {
		return CalendarPage{}, errors.Wrapf(err, "crm calendar (%s)", view)
	}
	events, err := svc.decodeEvents(raw, sess)
	if err != nil {
		return CalendarPage{}, errors.Wrapf(err, "crm calendar (%s)", view)
	}
	return CalendarPage{View: view, From: from, To: to, Events: events}, nil
}

// Location is the zone naive planning timestamps are read in.
func (svc *Service) Location() *time.Location {
	return svc.loc
}

var sourceOrder = map[string]int{SourceStudents: 0, SourceMessages: 1, SourceStats: 2, SourceSubscription: 3, SourcePlanning: 4}

func sortSources(sources []string) {
	sort.Slice(sources, func(i, j int) bool { return sourceOrder[sources[i]] < sourceOrder[sources[j]] })
}
