package crm

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maraakiz/portal/core"
	"github.com/maraakiz/portal/core/planning"
	"github.com/maraakiz/portal/services/apiclient"
	"github.com/maraakiz/portal/tests"
)

func setup(t *testing.T) (*Service, *testutil.Upstream, *testutil.Logger) {
	upstream := testutil.NewUpstream(t)
	client, err := apiclient.New(apiclient.Options{BaseURL: upstream.BaseURL(), Timeout: 5 * time.Second})
	require.NoError(t, err)
	logger := &testutil.Logger{}
	svc := NewService(client, logger, core.PlanningConfig{Location: time.UTC, WeekStart: time.Monday})
	return svc, upstream, logger
}

func TestStat_Count(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want int
	}{
		{name: "first key", doc: `{"total_eleves": 12, "total": 3}`, want: 12},
		{name: "fallback key", doc: `{"total": 7}`, want: 7},
		{name: "last key", doc: `{"count": 2}`, want: 2},
		{name: "float", doc: `{"total": 4.0}`, want: 4},
		{name: "not a number", doc: `{"total_eleves": "beaucoup", "count": 5}`, want: 5},
		{name: "missing", doc: `{}`, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s stat
			require.NoError(t, json.Unmarshal([]byte(tt.doc), &s))
			if got := s.count("total_eleves", "total", "count"); got != tt.want {
				t.Errorf("count() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSubscription_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		doc  string
		want bool
	}{
		{doc: `{"active": true}`, want: true},
		{doc: `{"actif": true}`, want: true},
		{doc: `{"is_active": true}`, want: true},
		{doc: `{"is_active": false}`, want: false},
		{doc: `{}`, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.doc, func(t *testing.T) {
			var sub Subscription
			require.NoError(t, json.Unmarshal([]byte(tt.doc), &sub))
			assert.Equal(t, tt.want, sub.Active)
		})
	}
}

func TestService_Dashboard(t *testing.T) {
	svc, upstream, _ := setup(t)
	sess := upstream.Session(t)

	dash, err := svc.Dashboard(context.Background(), sess, testutil.MerkezID, testutil.Now)
	require.NoError(t, err)
	assert.Equal(t, 12, dash.Students)
	assert.Equal(t, 3, dash.UnreadMessages)
	assert.True(t, dash.SubscriptionActive())
	assert.Equal(t, "6e_mois", dash.Subscription.PlanName)
	assert.Len(t, dash.Planning, 4)
	assert.Empty(t, dash.Degraded)

	// no "prochain" in the stats: computed from the planning
	require.NotNil(t, dash.Next)
	assert.Equal(t, 12, dash.Next.ID)
	assert.Equal(t, NextFromPlanning, dash.NextFrom)
}

func TestService_Dashboard_PrefersUpstreamNext(t *testing.T) {
	svc, upstream, _ := setup(t)
	upstream.Update(func() {
		upstream.StatsPlanning[testutil.MerkezID] = `{"total": 4, "prochain": {"id": 11, "title": "Hifz Yassine", "start": "2026-10-21T18:00:00"}}`
	})

	dash, err := svc.Dashboard(context.Background(), upstream.Session(t), testutil.MerkezID, testutil.Now)
	require.NoError(t, err)
	require.NotNil(t, dash.Next)
	assert.Equal(t, 11, dash.Next.ID)
	assert.Equal(t, NextFromStats, dash.NextFrom)
}

func TestService_Dashboard_Degraded(t *testing.T) {
	svc, upstream, logger := setup(t)
	upstream.Fail(StatsMessagesPath+"1", http.StatusInternalServerError)
	upstream.Fail(SubscriptionPath+"1", http.StatusNotFound)
	upstream.Fail(PlanningPath, http.StatusBadGateway)

	dash, err := svc.Dashboard(context.Background(), upstream.Session(t), testutil.MerkezID, testutil.Now)
	require.NoError(t, err)
	assert.Equal(t, []string{SourceMessages, SourceSubscription, SourcePlanning}, dash.Degraded)
	assert.Equal(t, 12, dash.Students)
	assert.Zero(t, dash.UnreadMessages)
	assert.Nil(t, dash.Subscription)
	assert.False(t, dash.SubscriptionActive())
	assert.NotNil(t, dash.Planning)
	assert.Empty(t, dash.Planning)
	assert.Nil(t, dash.Next)
	assert.Len(t, logger.Messages("warn"), 3)
}

func TestService_MalformedPlanningRecords(t *testing.T) {
	svc, upstream, logger := setup(t)
	upstream.Update(func() {
		upstream.Planning = `[{"id": 1, "title": "x", "start": 12345}, {"id": 2, "title": "y", "start": "2030-01-01T10:00:00Z"}, {"id": "trois"}]`
	})
	sess := upstream.Session(t)
	ctx := context.Background()

	dash, err := svc.Dashboard(ctx, sess, testutil.MerkezID, testutil.Now)
	require.NoError(t, err)
	assert.Empty(t, dash.Degraded)
	require.Len(t, dash.Planning, 2)
	assert.Equal(t, "12345", dash.Planning[0].Start)
	require.NotNil(t, dash.Next)
	assert.Equal(t, 2, dash.Next.ID)
	assert.Equal(t, NextFromPlanning, dash.NextFrom)

	next, ok, err := svc.NextSession(ctx, sess, testutil.Now)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, next.ID)

	page, err := svc.Calendar(ctx, sess, planning.ViewWeek, testutil.Now)
	require.NoError(t, err)
	assert.Len(t, page.Events, 2)

	assert.Len(t, logger.Messages("warn"), 3)
}

func TestService_Dashboard_PlanningNotAList(t *testing.T) {
	svc, upstream, logger := setup(t)
	upstream.Update(func() {
		upstream.Planning = `{"detail": "maintenance"}`
	})

	dash, err := svc.Dashboard(context.Background(), upstream.Session(t), testutil.MerkezID, testutil.Now)
	require.NoError(t, err)
	assert.Equal(t, []string{SourcePlanning}, dash.Degraded)
	assert.NotNil(t, dash.Planning)
	assert.Empty(t, dash.Planning)
	assert.Len(t, logger.Messages("warn"), 1)

	_, err = svc.Planning(context.Background(), upstream.Session(t))
	assert.Error(t, err)
}

func TestService_Dashboard_AuthFailure(t *testing.T) {
	svc, _, _ := setup(t)

	_, err := svc.Dashboard(context.Background(), core.Anonymous, testutil.MerkezID, testutil.Now)
	require.Error(t, err)
	assert.True(t, core.IsAuthFailure(err), "error = %v", err)
	hErr, ok := apiclient.AsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, hErr.Status)
}

func TestService_NextSession(t *testing.T) {
	svc, upstream, _ := setup(t)
	sess := upstream.Session(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		now    time.Time
		wantID int
		wantOk bool
	}{
		{name: "before everything", now: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), wantID: 10, wantOk: true},
		{name: "monday morning", now: testutil.Now, wantID: 12, wantOk: true},
		{name: "after tuesday class", now: time.Date(2026, 10, 20, 17, 0, 0, 0, time.UTC), wantID: 11, wantOk: true},
		{name: "after everything", now: time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, ok, err := svc.NextSession(ctx, sess, tt.now)
			require.NoError(t, err)
			if ok != tt.wantOk {
				t.Fatalf("NextSession() ok = %v, want %v", ok, tt.wantOk)
			}
			if ok && next.ID != tt.wantID {
				t.Errorf("NextSession() = %d, want %d", next.ID, tt.wantID)
			}
		})
	}
}

func TestService_NextSession_NaiveTimesInPlanningZone(t *testing.T) {
	upstream := testutil.NewUpstream(t)
	client, err := apiclient.New(apiclient.Options{BaseURL: upstream.BaseURL()})
	require.NoError(t, err)
	paris := time.FixedZone("CEST", 2*60*60)
	svc := NewService(client, &testutil.Logger{}, core.PlanningConfig{Location: paris})

	// 15:30 UTC is 17:30 in Paris: the 17:00 class of the 20th has started
	next, ok, err := svc.NextSession(context.Background(), upstream.Session(t), time.Date(2026, 10, 20, 15, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 11, next.ID)
}

func TestService_Calendar(t *testing.T) {
	svc, upstream, _ := setup(t)

	page, err := svc.Calendar(context.Background(), upstream.Session(t), planning.ViewMonth, testutil.Now)
	require.NoError(t, err)
	assert.Equal(t, planning.ViewMonth, page.View)
	assert.Equal(t, time.Date(2026, 9, 28, 0, 0, 0, 0, time.UTC), page.From)
	assert.Equal(t, time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC), page.To)
	assert.Len(t, page.Events, 4)

	reqs := upstream.Requests()
	assert.Equal(t, "GET /api/calendrier/cours?start_date=2026-09-28&end_date=2026-11-01", reqs[len(reqs)-1])
}
