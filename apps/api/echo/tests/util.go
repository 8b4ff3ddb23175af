package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"

	. "github.com/maraakiz/portal/apps/api/echo"
	"github.com/maraakiz/portal/core"
	"github.com/maraakiz/portal/core/crm"
	"github.com/maraakiz/portal/core/facet"
	"github.com/maraakiz/portal/core/listing"
	"github.com/maraakiz/portal/core/merkez"
	"github.com/maraakiz/portal/core/payment"
	"github.com/maraakiz/portal/services/apiclient"
	"github.com/maraakiz/portal/tests"
)

var (
	errMissingToken = httpErr{Error: "missing or malformed token"}
	errUnauthorized = httpErr{Error: "user not authenticated"}
)

func setup(t *testing.T) (*Server, *testutil.Upstream) {
	upstream := testutil.NewUpstream(t)

	conf := &core.Config{
		Env:      "TEST",
		AppName:  "Maraakiz",
		TestMode: true,
		Server:   core.ServerConfig{AllowedOrigins: []string{"http://localhost:5173"}},
		Upstream: core.UpstreamConfig{BaseURL: upstream.BaseURL(), Timeout: 5 * time.Second},
		Planning: core.PlanningConfig{Location: time.UTC, WeekStart: time.Monday, ICSProductID: "-//Maraakiz//Planning//FR"},
	}
	client, err := apiclient.NewFromConfig(conf)
	if err != nil {
		t.Fatalf("apiclient.NewFromConfig() failed: %v", err)
	}
	catalog, err := facet.LoadCatalog()
	if err != nil {
		t.Fatalf("facet.LoadCatalog() failed: %v", err)
	}

	logger := &testutil.Logger{}
	validate, translator := testutil.NewValidator()

	// set up server
	return NewServer(
		ServerDeps{
			Conf:       conf,
			Logger:     logger,
			Validate:   validate,
			Translator: translator,
			Catalog:    catalog,
			Auth:       client,
			ListingSvc: listing.NewService(client, merkez.NewDecoder(validate, translator), logger),
			CRMSvc:     crm.NewService(client, logger, conf.Planning),
			PaymentSvc: payment.NewService(client, logger),
			Now:        func() time.Time { return testutil.Now },
		},
	), upstream
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// foreignToken is a well-formed token the upstream did not sign.
func foreignToken(t *testing.T, exp time.Time) string {
	claims := jwt.MapClaims{"sub": testutil.TeacherEmail, "uid": testutil.TeacherID, "exp": exp.Unix()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("not-the-upstream-secret"))
	if err != nil {
		t.Fatalf("foreignToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func unmarchall(t *testing.T, rec *httptest.ResponseRecorder, obj interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), obj); err != nil {
		t.Fatalf("unmarchall(%s) failed: %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
