package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/gommon/color"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maraakiz/portal/core"
	"github.com/maraakiz/portal/core/crm"
	"github.com/maraakiz/portal/core/facet"
	"github.com/maraakiz/portal/core/listing"
	"github.com/maraakiz/portal/core/payment"
	"github.com/maraakiz/portal/services/apiclient"
	"github.com/maraakiz/portal/tests"
)

func setup(t *testing.T) (*commandLine, *bytes.Buffer, *testutil.Upstream) {
	upstream := testutil.NewUpstream(t)
	client, err := apiclient.New(apiclient.Options{BaseURL: upstream.BaseURL(), Timeout: 5 * time.Second})
	require.NoError(t, err)
	catalog, err := facet.LoadCatalog()
	require.NoError(t, err)

	conf := &core.Config{
		AppName:  "Maraakiz",
		TestMode: true,
		Planning: core.PlanningConfig{Location: time.UTC, WeekStart: time.Monday, ICSProductID: "-//Maraakiz//Planning//FR"},
	}
	logger := &testutil.Logger{}
	out := new(bytes.Buffer)
	clr := color.New()
	clr.Disable()

	// start CLI
	return &commandLine{
		out:        out,
		clr:        clr,
		conf:       conf,
		auth:       client,
		catalog:    catalog,
		listingSvc: listing.NewService(client, testutil.NewDecoder(), logger),
		crmSvc:     crm.NewService(client, logger, conf.Planning),
		paymentSvc: payment.NewService(client, logger),
		now:        func() time.Time { return testutil.Now },
	}, out, upstream
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func runCliTests(t *testing.T, cli *commandLine, out *bytes.Buffer, tests []cliTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			args := append([]string{"maraakiz"}, tt.args...)
			err := cli.run(args)

			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, errors.Cause(err))
			case tt.wantErrStr != "":
				if assert.Error(t, err) {
					assert.Equal(t, tt.wantErrStr, err.Error())
				}
			default:
				require.NoError(t, err)
			}
			if want, ok := tt.extra.([]string); ok {
				for _, s := range want {
					assert.Contains(t, out.String(), s)
				}
			}
		})
	}
}

func expiredToken(t *testing.T) string {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": testutil.TeacherEmail,
		"exp": time.Now().Add(-time.Hour).Unix(),
	}).SignedString([]byte("not-the-upstream-secret"))
	require.NoError(t, err)
	return token
}

func Test_commandLine_usage(t *testing.T) {
	cli, out, _ := setup(t)

	tests := []cliTest{
		{name: "no command", args: nil, wantErr: errHelp, extra: []string{"Usage:"}},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp, extra: []string{"Usage:"}},
		{name: "help flag", args: []string{"browse", "-h"}, wantErr: errHelp, extra: []string{"-facet"}},
		{name: "unknown flag", args: []string{"show", "-name", "karim"}, wantErrStr: "flag provided but not defined: -name"},
	}
	runCliTests(t, cli, out, tests)
}

func Test_commandLine_facets(t *testing.T) {
	cli, out, upstream := setup(t)

	runCliTests(t, cli, out, []cliTest{
		{name: "catalog", args: []string{"facets"}, extra: []string{"Matière (matiere)", "matiere=coran", "format=en-ligne"}},
	})
	assert.Empty(t, upstream.Requests())
}

func Test_commandLine_browse(t *testing.T) {
	cli, out, _ := setup(t)

	tests := []cliTest{
		{
			name:  "everything",
			args:  []string{"browse"},
			extra: []string{"1 invalid record(s) left out", "3 merkez", "#1", "Ustadh Karim", "15-25 €", "Oustadha Maryam", "20 €"},
		},
		{
			name:  "one facet",
			args:  []string{"browse", "-facet", "matiere=coran"},
			extra: []string{"2 merkez", "Ustadh Karim", "Oustadha Maryam"},
		},
		{
			name:  "alternatives and combination",
			args:  []string{"browse", "-facet", "matiere=arabe", "-facet", "matiere=coran", "-facet", "public=femme"},
			extra: []string{"2 merkez", "Institut An-Nour", "Oustadha Maryam"},
		},
		{
			name:  "selecting twice clears",
			args:  []string{"browse", "-facet", "matiere=coran", "-facet", "matiere=coran"},
			extra: []string{"3 merkez"},
		},
		{
			name:  "unknown option",
			args:  []string{"browse", "-facet", "format=en_ligne"},
			extra: []string{`format=en_ligne: unknown option, did you mean "en-ligne"?`, "0 merkez"},
		},
		{
			name:  "unknown facet",
			args:  []string{"browse", "-facet", "couleur=vert"},
			extra: []string{"couleur: unknown facet"},
		},
		{
			name:       "malformed facet",
			args:       []string{"browse", "-facet", "matiere"},
			wantErrStr: `invalid value "matiere" for flag -facet: "matiere": expected KEY=VALUE`,
		},
	}
	runCliTests(t, cli, out, tests)

	t.Run("upstream down", func(t *testing.T) {
		out.Reset()
		cli.listingSvc = listing.NewService(downClient(t), testutil.NewDecoder(), &testutil.Logger{})
		err := cli.run([]string{"maraakiz", "browse", "-facet", "matiere=coran"})
		require.Error(t, err)
		assert.NotContains(t, out.String(), " merkez\n")
	})
}

// downClient points at an upstream that is already closed.
func downClient(t *testing.T) *apiclient.Client {
	upstream := testutil.NewUpstream(t)
	upstream.Close()
	client, err := apiclient.New(apiclient.Options{BaseURL: upstream.BaseURL(), Timeout: time.Second})
	require.NoError(t, err)
	return client
}

func Test_commandLine_show(t *testing.T) {
	cli, out, _ := setup(t)

	tests := []cliTest{
		{name: "no id", args: []string{"show"}, wantErr: errHelp},
		{name: "found", args: []string{"show", "-id", "2"}, extra: []string{"#2", "Institut An-Nour", "institut", "Matière", "arabe, sciences", "30-60 €"}},
		{name: "unknown", args: []string{"show", "-id", "99"}, wantErrStr: "getting merkez 99: HTTP 404 on /public/merkez/99"},
	}
	runCliTests(t, cli, out, tests)

	t.Run("invalid record", func(t *testing.T) {
		err := cli.run([]string{"maraakiz", "show", "-id", "4"})
		var verr *core.ValidationError
		assert.True(t, errors.As(err, &verr), "got %v", err)
	})
}

func Test_commandLine_login(t *testing.T) {
	cli, out, _ := setup(t)

	var password string
	readPasswordFunc = func(int) ([]byte, error) { return []byte(password), nil }

	tests := []struct {
		cliTest
		password string
	}{
		{cliTest: cliTest{name: "no email", args: []string{"login"}, wantErr: errHelp}, password: testutil.TeacherPassword},
		{cliTest: cliTest{name: "empty password", args: []string{"login", "-email", testutil.TeacherEmail}, wantErr: errHelp}},
		{cliTest: cliTest{name: "wrong password", args: []string{"login", "-email", testutil.TeacherEmail}, wantErr: apiclient.ErrLoginFailed}, password: "nope"},
		{cliTest: cliTest{name: "valid credentials", args: []string{"login", "-email", " PROF@maraakiz.fr"}, extra: []string{"Enter password:"}}, password: testutil.TeacherPassword},
	}
	for _, tt := range tests {
		password = tt.password
		runCliTests(t, cli, out, []cliTest{tt.cliTest})
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	sess, err := core.NewSession(lines[len(lines)-1])
	require.NoError(t, err)
	assert.Equal(t, testutil.TeacherEmail, sess.Subject)
	assert.Equal(t, testutil.TeacherID, sess.UserID)
}

func Test_commandLine_next(t *testing.T) {
	cli, out, upstream := setup(t)
	token := upstream.Token(t, testutil.TeacherEmail)

	tests := []cliTest{
		{name: "no token", args: []string{"next"}, wantErr: errHelp},
		{name: "malformed token", args: []string{"next", "-token", "abc"}, wantErr: core.ErrInvalidSessionToken},
		{name: "expired token", args: []string{"next", "-token", expiredToken(t)}, wantErr: core.ErrSessionExpired},
		{
			name:  "from the planning",
			args:  []string{"next", "-token", token},
			extra: []string{"#12 Arabe débutant", "Tue 20/10/2026 17:00 (planning)"},
		},
		{
			name:  "from the dashboard",
			args:  []string{"next", "-token", token, "-merkez", "1"},
			extra: []string{"#12 Arabe débutant", "(planning)"},
		},
	}
	runCliTests(t, cli, out, tests)

	upstream.Fail(crm.StatsMessagesPath+"1", 500)
	upstream.Update(func() {
		upstream.StatsPlanning[testutil.MerkezID] = `{"total": 4, "prochain": {"id": 11, "title": "Hifz Yassine", "start_at": "2026-10-21T18:00:00"}}`
	})
	runCliTests(t, cli, out, []cliTest{
		{
			name:  "degraded dashboard",
			args:  []string{"next", "-token", token, "-merkez", "1"},
			extra: []string{"messages: unavailable", "#11 Hifz Yassine", "Wed 21/10/2026 18:00 (stats)"},
		},
	})

	upstream.Update(func() {
		upstream.Planning = `[{"id": 10, "title": "Tajwid - groupe", "start_at": "2026-10-19T08:00:00"}]`
	})
	runCliTests(t, cli, out, []cliTest{
		{name: "nothing left", args: []string{"next", "-token", token}, extra: []string{"no upcoming session"}},
	})
}

func Test_commandLine_ics(t *testing.T) {
	cli, out, upstream := setup(t)

	runCliTests(t, cli, out, []cliTest{
		{name: "no token", args: []string{"ics"}, wantErr: errHelp},
		{
			name:  "planning",
			args:  []string{"ics", "-token", upstream.Token(t, testutil.TeacherEmail)},
			extra: []string{"BEGIN:VCALENDAR", "PRODID:-//Maraakiz//Planning//FR", "UID:planning-12@maraakiz"},
		},
	})
	assert.Equal(t, 3, strings.Count(out.String(), "BEGIN:VEVENT"))
}

func Test_commandLine_pay(t *testing.T) {
	cli, out, upstream := setup(t)

	tests := []cliTest{
		{name: "no link", args: []string{"pay"}, wantErr: errHelp},
		{name: "malformed link", args: []string{"pay", "-link", "abc"}, wantErr: payment.ErrInvalidToken},
		{name: "unknown method", args: []string{"pay", "-link", testutil.UnpaidToken, "-method", "bitcoin"}, wantErr: payment.ErrUnknownMethod},
		{name: "already paid", args: []string{"pay", "-link", testutil.PaidToken, "-method", "carte"}, wantErr: payment.ErrAlreadyPaid},
		{
			name:  "unpaid",
			args:  []string{"pay", "-link", testutil.UnpaidToken},
			extra: []string{"Yassine B. - Ustadh Karim (octobre 2026)", "reste 40.00 €", "statut partiel"},
		},
		{
			name:  "confirm",
			args:  []string{"pay", "-link", testutil.UnpaidToken, "-method", "Espèces"},
			extra: []string{"reste 0.00 €", "statut paye (especes)"},
		},
	}
	runCliTests(t, cli, out, tests)

	reqs := upstream.Requests()
	assert.Contains(t, reqs, "POST /api/paiements/pay/"+testutil.UnpaidToken+"/confirm")
}
