package tests

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/maraakiz/portal/apps/api/echo"
	"github.com/maraakiz/portal/core/crm"
	"github.com/maraakiz/portal/core/planning"
	"github.com/maraakiz/portal/tests"
)

func Test_crmApi_auth(t *testing.T) {
	app, _ := setup(t)

	tests := []httpTest{
		{
			name:     "anonymous",
			path:     "/v1/crm/dashboard?merkez=1",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errUnauthorized),
		},
		{
			name:     "expired",
			path:     "/v1/crm/planning/next",
			token:    foreignToken(t, time.Now().Add(-time.Hour)),
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, httpErr{Error: "session expired"}),
		},
		{
			name:     "refused by the upstream",
			path:     "/v1/crm/planning/next",
			token:    foreignToken(t, time.Now().Add(time.Hour)),
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, httpErr{Error: "HTTP 401 on /plannings"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_crmApi_dashboard(t *testing.T) {
	app, upstream := setup(t)
	token := upstream.Token(t, testutil.TeacherEmail)

	t.Run("all sources up", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/crm/dashboard?merkez=1", token)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var dash crm.Dashboard
		unmarchall(t, rec, &dash)
		assert.Equal(t, 1, dash.MerkezID)
		assert.Equal(t, 12, dash.Students)
		assert.Equal(t, 3, dash.UnreadMessages)
		assert.True(t, dash.SubscriptionActive())
		require.NotNil(t, dash.Next)
		assert.Equal(t, 12, dash.Next.ID)
		assert.Empty(t, dash.Degraded)
	})

	t.Run("degraded", func(t *testing.T) {
		upstream.Fail(crm.StatsStudentsPath+"1", http.StatusInternalServerError)

		req, rec := newAuthRequest(http.MethodGet, "/v1/crm/dashboard?merkez=1", token)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var dash crm.Dashboard
		unmarchall(t, rec, &dash)
		assert.Zero(t, dash.Students)
		assert.Equal(t, 3, dash.UnreadMessages)
		assert.Equal(t, []string{crm.SourceStudents}, dash.Degraded)
	})

	tests := []httpTest{
		{
			name:     "missing merkez",
			path:     "/v1/crm/dashboard",
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"merkez": "must be a merkez id"}),
		},
		{
			name:     "invalid merkez",
			path:     "/v1/crm/dashboard?merkez=-3",
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"merkez": "must be a merkez id"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_crmApi_nextSession(t *testing.T) {
	app, upstream := setup(t)
	token := upstream.Token(t, testutil.TeacherEmail)

	req, rec := newAuthRequest(http.MethodGet, "/v1/crm/planning/next", token)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp NextSessionResponse
	unmarchall(t, rec, &resp)
	assert.True(t, resp.Found)
	require.NotNil(t, resp.Next)
	assert.Equal(t, 12, resp.Next.ID)
	assert.Equal(t, "2026-10-20T17:00:00", resp.Next.Start)

	// nothing left once every session is past
	upstream.Update(func() {
		upstream.Planning = `[{"id": 10, "title": "Tajwid - groupe", "start_at": "2026-10-19T08:00:00"}]`
	})
	req, rec = newAuthRequest(http.MethodGet, "/v1/crm/planning/next", token)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: []byte(`{"found": false, "prochain_cours": null}`)}, rec)
}

func Test_crmApi_calendar(t *testing.T) {
	app, upstream := setup(t)
	token := upstream.Token(t, testutil.TeacherEmail)

	tests := []struct {
		name     string
		query    string
		wantView planning.View
		wantFrom time.Time
		wantTo   time.Time
		wantReq  string
	}{
		{
			name:     "defaults to this week",
			wantView: planning.ViewWeek,
			wantFrom: time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC),
			wantTo:   time.Date(2026, 10, 26, 0, 0, 0, 0, time.UTC),
			wantReq:  "start_date=2026-10-19&end_date=2026-10-25",
		},
		{
			name:     "month of a date",
			query:    "?view=month&date=2026-11-15",
			wantView: planning.ViewMonth,
			wantFrom: time.Date(2026, 10, 26, 0, 0, 0, 0, time.UTC),
			wantTo:   time.Date(2026, 12, 7, 0, 0, 0, 0, time.UTC),
			wantReq:  "start_date=2026-10-26&end_date=2026-12-06",
		},
		{
			name:     "day",
			query:    "?view=DAY&date=2026-10-21",
			wantView: planning.ViewDay,
			wantFrom: time.Date(2026, 10, 21, 0, 0, 0, 0, time.UTC),
			wantTo:   time.Date(2026, 10, 22, 0, 0, 0, 0, time.UTC),
			wantReq:  "start_date=2026-10-21&end_date=2026-10-21",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/v1/crm/calendar"+tt.query, token)
			app.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var page crm.CalendarPage
			unmarchall(t, rec, &page)
			assert.Equal(t, tt.wantView, page.View)
			assert.True(t, tt.wantFrom.Equal(page.From), "from = %v, want %v", page.From, tt.wantFrom)
			assert.True(t, tt.wantTo.Equal(page.To), "to = %v, want %v", page.To, tt.wantTo)
			assert.Len(t, page.Events, 4)

			reqs := upstream.Requests()
			assert.Equal(t, "GET /api/calendrier/cours?"+tt.wantReq, reqs[len(reqs)-1])
		})
	}

	errTests := []httpTest{
		{
			name:     "unknown view",
			path:     "/v1/crm/calendar?view=decade",
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"view": planning.ErrUnknownView.Error()}),
		},
		{
			name:     "bad date",
			path:     "/v1/crm/calendar?view=week&date=19/10/2026",
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"date": "date must be formatted YYYY-MM-DD"}),
		},
	}
	for _, tt := range errTests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_crmApi_exportICS(t *testing.T) {
	app, upstream := setup(t)

	req, rec := newAuthRequest(http.MethodGet, "/v1/crm/planning.ics", upstream.Token(t, testutil.TeacherEmail))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/calendar; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "planning.ics")

	doc := rec.Body.String()
	assert.True(t, strings.HasPrefix(doc, "BEGIN:VCALENDAR"))
	assert.Contains(t, doc, "PRODID:-//Maraakiz//Planning//FR")
	assert.Equal(t, 3, strings.Count(doc, "BEGIN:VEVENT"))
	assert.Contains(t, doc, "UID:planning-12@maraakiz")
	assert.NotContains(t, doc, "UID:planning-13@maraakiz")
}

func Test_crmApi_previewRecurrence(t *testing.T) {
	app, upstream := setup(t)
	token := upstream.Token(t, testutil.TeacherEmail)
	path := "/v1/crm/planning/preview"

	t.Run("two weeks of monday and wednesday", func(t *testing.T) {
		body := []byte(`{
			"titre": " Hifz ",
			"matiere": "Coran",
			"recurrence_schedule": {"0": {"debut": "18:00", "fin": "19:00"}, "2": {"debut": "17:00", "fin": "18:30"}},
			"recurrence_start_date": "2026-10-19",
			"recurrence_end_date": "2026-11-01"
		}`)
		req, rec := newAuthRequest(http.MethodPost, path, token, body)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp RecurrencePreviewResponse
		unmarchall(t, rec, &resp)
		require.Equal(t, 4, resp.Count)
		wantStarts := []time.Time{
			time.Date(2026, 10, 19, 18, 0, 0, 0, time.UTC),
			time.Date(2026, 10, 21, 17, 0, 0, 0, time.UTC),
			time.Date(2026, 10, 26, 18, 0, 0, 0, time.UTC),
			time.Date(2026, 10, 28, 17, 0, 0, 0, time.UTC),
		}
		for i, occ := range resp.Occurrences {
			assert.True(t, wantStarts[i].Equal(occ.Start), "occurrence %d starts %v, want %v", i, occ.Start, wantStarts[i])
			assert.Equal(t, "Hifz", occ.Title)
			assert.Equal(t, "coran", occ.Subject)
		}
		assert.Equal(t, 90*time.Minute, resp.Occurrences[1].End.Sub(resp.Occurrences[1].Start))
	})

	tests := []httpTest{
		{
			name:     "empty form",
			body:     []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"titre":                 "this field is required",
				"recurrence_schedule":   "this field is required",
				"recurrence_start_date": "this field is required",
				"recurrence_end_date":   "this field is required",
			}),
		},
		{
			name: "end before start",
			body: []byte(`{
				"titre": "Hifz",
				"recurrence_schedule": {"0": {"debut": "18:00", "fin": "19:00"}},
				"recurrence_start_date": "2026-10-19",
				"recurrence_end_date": "2026-10-01"
			}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"recurrence_end_date": "end date must not be before start date"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, path, token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
