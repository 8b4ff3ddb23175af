package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/go-playground/validator/v10"
	ut "github.com/go-playground/universal-translator"
	"github.com/labstack/echo/v4"

	"github.com/maraakiz/portal/core"
	"github.com/maraakiz/portal/core/facet"
	"github.com/maraakiz/portal/core/merkez"
)

// Now is the reference time of the fixtures: a Monday morning.
var Now = time.Date(2026, time.October, 19, 9, 30, 0, 0, time.UTC)

// Fixture accounts
const (
	TeacherEmail    = "prof@maraakiz.fr"
	TeacherPassword = "s3cret!Pass"
	TeacherID       = 5
	MerkezID        = 1

	UnpaidToken = "tok_unpaid_0001"
	PaidToken   = "tok_paid_00002"
)

// NewValidator returns a validator with every validation of the portal registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	merkez.InitValidators(validate, translator)
	return validate, translator
}

// NewDecoder returns a merkez decoder backed by NewValidator.
func NewDecoder() *merkez.Decoder {
	return merkez.NewDecoder(NewValidator())
}

type account struct {
	password string
	userID   int
}

// Upstream is a fake Maraakiz API serving in-memory fixtures under /api.
// Bodies are kept as raw JSON so tests can serve records the portal has to reject.
type Upstream struct {
	*httptest.Server

	mu            sync.Mutex
	secret        []byte
	accounts      map[string]account
	Merkez        []string
	StatsStudents map[int]string
	StatsMessages map[int]string
	StatsPlanning map[int]string
	Subscriptions map[int]string
	Planning      string
	Payments      map[string]map[string]interface{}
	failures      map[string]int
	delays        map[string]time.Duration
	requests      []string
}

// NewUpstream starts a fake upstream with the default fixtures. It is closed with the test.
func NewUpstream(t *testing.T) *Upstream {
	u := &Upstream{
		secret:   []byte("upstream-secret"),
		accounts: map[string]account{TeacherEmail: {password: TeacherPassword, userID: TeacherID}},
		Merkez: []string{
			`{"id": 1, "type": "professeur", "nom": "Ustadh Karim", "matieres": ["coran", "tajwid"], "formats": ["en-ligne"], "niveaux": ["debutant", "intermediaire"], "langues": ["francais", "arabe"], "publicCible": ["homme", "garcon"], "prixMin": 15, "prixMax": 25, "verifie": true}`,
			`{"id": 2, "type": "institut", "nom": "Institut An-Nour", "matieres": ["arabe", "sciences"], "formats": ["presentiel", "en-ligne"], "types_classe": ["groupes"], "niveaux": ["debutant"], "langues": ["francais"], "publicCible": ["femme", "fille"], "prixMin": 30, "prixMax": 60, "nombreProfesseurs": 6}`,
			`{"id": 3, "type": "professeur", "nom": "Oustadha Maryam", "matieres": ["coran"], "formats": ["en-differe"], "niveaux": ["avance"], "langues": ["arabe"], "publicCible": ["femme"], "prixMin": 20, "prixMax": 20}`,
			`{"id": 4, "type": "professeur", "nom": "Astro", "matieres": ["astrologie"], "formats": ["en-ligne"]}`,
		},
		StatsStudents: map[int]string{MerkezID: `{"total_eleves": 12}`},
		StatsMessages: map[int]string{MerkezID: `{"unread": 3}`},
		StatsPlanning: map[int]string{MerkezID: `{"total": 4}`},
		Subscriptions: map[int]string{MerkezID: `{"id": 1, "plan_name": "6e_mois", "start_date": "2026-05-01", "is_active": true}`},
		Planning: `[
			{"id": 10, "title": "Tajwid - groupe", "start_at": "2026-10-19T08:00:00", "end_at": "2026-10-19T09:00:00"},
			{"id": 11, "title": "Hifz Yassine", "start_at": "2026-10-21T18:00:00", "end_at": "2026-10-21T19:00:00", "eleve_id": 7},
			{"id": 12, "title": "Arabe débutant", "start_at": "2026-10-20T17:00:00", "duration_minutes": 90},
			{"id": 13, "title": "Créneau libre", "start_at": "bientôt", "is_available_slot": true}
		]`,
		Payments: map[string]map[string]interface{}{
			UnpaidToken: {
				"id": 31, "eleve_nom": "Yassine B.", "merkez_nom": "Ustadh Karim", "mois": 10, "annee": 2026,
				"montant_du": 60.0, "montant_paye": 20.0, "montant_restant": 40.0, "date_echeance": "2026-10-31", "statut": "partiel",
			},
			PaidToken: {
				"id": 32, "eleve_nom": "Sara K.", "merkez_nom": "Ustadh Karim", "mois": 9, "annee": 2026,
				"montant_du": 60.0, "montant_paye": 60.0, "montant_restant": 0.0, "date_echeance": "2026-09-30", "statut": "paye",
				"methode_paiement": "virement",
			},
		},
		failures: make(map[string]int),
		delays:   make(map[string]time.Duration),
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = func(err error, ctx echo.Context) {
		code := http.StatusInternalServerError
		detail := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			detail = fmt.Sprint(he.Message)
		}
		_ = ctx.JSON(code, echo.Map{"detail": detail})
	}
	e.Use(u.record, u.inject)

	api := e.Group("/api")
	api.POST("/auth/login", u.login)
	api.GET("/public/merkez", u.listMerkez)
	api.GET("/public/merkez/:id", u.getMerkez)
	api.GET("/paiements/pay/:token", u.getPayment)
	api.POST("/paiements/pay/:token/confirm", u.confirmPayment)

	api.GET("/stats/eleves/:id", u.byMerkez(func() map[int]string { return u.StatsStudents }), u.auth)
	api.GET("/stats/messages/:id", u.byMerkez(func() map[int]string { return u.StatsMessages }), u.auth)
	api.GET("/stats/planning/:id", u.byMerkez(func() map[int]string { return u.StatsPlanning }), u.auth)
	api.GET("/abonnements/:id", u.byMerkez(func() map[int]string { return u.Subscriptions }), u.auth)
	api.GET("/plannings", u.planning, u.auth)
	api.GET("/calendrier/cours", u.planning, u.auth)

	u.Server = httptest.NewServer(e)
	t.Cleanup(u.Server.Close)
	return u
}

// BaseURL is the API root to configure clients with.
func (u *Upstream) BaseURL() string {
	return u.Server.URL + "/api"
}

// Token signs an access token for `email`, valid for an hour.
func (u *Upstream) Token(t *testing.T, email string) string {
	acc, ok := u.accounts[email]
	if !ok {
		t.Fatalf("Token() unknown account %q", email)
	}
	claims := jwt.MapClaims{"sub": email, "uid": acc.userID, "admin": false, "exp": time.Now().Add(time.Hour).Unix()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(u.secret)
	if err != nil {
		t.Fatalf("Token() failed: %v", err)
	}
	return token
}

// Session returns the Session of the fixture teacher.
func (u *Upstream) Session(t *testing.T) core.Session {
	sess, err := core.NewSession(u.Token(t, TeacherEmail))
	if err != nil {
		t.Fatalf("Session() failed: %v", err)
	}
	return sess
}

// Fail makes every request to `path` (without the /api prefix) answer `status`.
func (u *Upstream) Fail(path string, status int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.failures["/api"+path] = status
}

// Update runs fn with the fixtures locked, for tests that change them while the server runs.
func (u *Upstream) Update(fn func()) {
	u.mu.Lock()
	defer u.mu.Unlock()
	fn()
}

// Delay holds every request whose query string equals `rawQuery` for `d`.
func (u *Upstream) Delay(rawQuery string, d time.Duration) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.delays[rawQuery] = d
}

// Requests returns the received requests as "METHOD /path?query", oldest first.
func (u *Upstream) Requests() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.requests...)
}

func (u *Upstream) record(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		req := ctx.Request()
		u.mu.Lock()
		u.requests = append(u.requests, req.Method+" "+req.URL.RequestURI())
		u.mu.Unlock()
		return next(ctx)
	}
}

func (u *Upstream) inject(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		req := ctx.Request()
		u.mu.Lock()
		status, fail := u.failures[req.URL.Path]
		delay := u.delays[req.URL.RawQuery]
		u.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-req.Context().Done():
				return req.Context().Err()
			}
		}
		if fail {
			return echo.NewHTTPError(status, http.StatusText(status))
		}
		return next(ctx)
	}
}

func (u *Upstream) auth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		header := ctx.Request().Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			return echo.NewHTTPError(http.StatusUnauthorized, "Not authenticated")
		}
		_, err := jwt.Parse(strings.TrimPrefix(header, "Bearer "), func(*jwt.Token) (interface{}, error) {
			return u.secret, nil
		})
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "Could not validate credentials")
		}
		return next(ctx)
	}
}

func (u *Upstream) login(ctx echo.Context) error {
	email, pwd := ctx.FormValue("username"), ctx.FormValue("password")
	acc, ok := u.accounts[email]
	if !ok || acc.password != pwd {
		return echo.NewHTTPError(http.StatusUnauthorized, "Incorrect email or password")
	}
	claims := jwt.MapClaims{"sub": email, "uid": acc.userID, "admin": false, "exp": time.Now().Add(time.Hour).Unix()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(u.secret)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"access_token": token, "token_type": "bearer"})
}

func (u *Upstream) listMerkez(ctx echo.Context) error {
	sel := facet.FromQuery(ctx.QueryParams(), "skip", "limit").State()

	u.mu.Lock()
	fixtures := append([]string(nil), u.Merkez...)
	u.mu.Unlock()

	out := make([]json.RawMessage, 0, len(fixtures))
	for _, raw := range fixtures {
		var m merkez.Merkez
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return err
		}
		if m.Matches(sel) {
			out = append(out, json.RawMessage(raw))
		}
	}
	return ctx.JSON(http.StatusOK, out)
}

func (u *Upstream) getMerkez(ctx echo.Context) error {
	id, _ := strconv.Atoi(ctx.Param("id"))

	u.mu.Lock()
	defer u.mu.Unlock()
	for _, raw := range u.Merkez {
		var m struct {
			ID int `json:"id"`
		}
		if err := json.Unmarshal([]byte(raw), &m); err == nil && m.ID == id {
			return ctx.JSONBlob(http.StatusOK, []byte(raw))
		}
	}
	return echo.NewHTTPError(http.StatusNotFound, "Merkez not found")
}

func (u *Upstream) byMerkez(docs func() map[int]string) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		id, _ := strconv.Atoi(ctx.Param("id"))

		u.mu.Lock()
		doc, ok := docs()[id]
		u.mu.Unlock()
		if !ok {
			return echo.NewHTTPError(http.StatusNotFound, "Not found")
		}
		return ctx.JSONBlob(http.StatusOK, []byte(doc))
	}
}

func (u *Upstream) planning(ctx echo.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return ctx.JSONBlob(http.StatusOK, []byte(u.Planning))
}

func (u *Upstream) getPayment(ctx echo.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	p, ok := u.Payments[ctx.Param("token")]
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "Lien de paiement invalide")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (u *Upstream) confirmPayment(ctx echo.Context) error {
	var body struct {
		Method string `json:"methode_paiement"`
	}
	if err := ctx.Bind(&body); err != nil {
		return err
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	p, ok := u.Payments[ctx.Param("token")]
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "Lien de paiement invalide")
	}
	p["statut"] = "paye"
	p["methode_paiement"] = body.Method
	p["montant_paye"] = p["montant_du"]
	p["montant_restant"] = 0.0
	return ctx.JSON(http.StatusOK, echo.Map{"message": "Paiement confirmé"})
}

// Logger records log entries.
type Logger struct {
	mu      sync.Mutex
	Entries []LogEntry
}

type LogEntry struct {
	Level string
	Msg   string
	Args  []interface{}
}

var _ core.Logger = (*Logger)(nil)

func (l *Logger) log(level, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Entries = append(l.Entries, LogEntry{Level: level, Msg: msg, Args: args})
}

// Messages returns the recorded messages of `level`.
func (l *Logger) Messages(level string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var msgs []string
	for _, e := range l.Entries {
		if e.Level == level {
			msgs = append(msgs, e.Msg)
		}
	}
	return msgs
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log("debug", msg, args) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log("info", msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log("warn", msg, args) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log("error", msg, args) }
func (l *Logger) Fatal(msg string, args ...interface{}) { l.log("fatal", msg, args) }
