// Package apiclient talks to the Maraakiz REST API over HTTP.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/maraakiz/portal/core"
)

const (
	RequestIDHeader = "X-Request-ID"

	loginPath    = "/auth/login"
	maxErrorBody = 64 << 10
)

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	RateLimit  float64 // requests per second, 0 disables pacing
	Burst      int
	HTTPClient *http.Client     // defaults to a client with Timeout
	Now        func() time.Time // defaults to time.Now
}

// Client implements core.Client against the upstream API.
// Every request is paced by a shared limiter and tagged with a fresh request id.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	now     func() time.Time
}

var _ core.Client = (*Client)(nil)

func New(opts Options) (*Client, error) {
	u, err := url.Parse(opts.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("invalid upstream base url %q", opts.BaseURL)
	}

	c := &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    opts.HTTPClient,
		now:     opts.Now,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: opts.Timeout}
	}
	if c.now == nil {
		c.now = time.Now
	}
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return c, nil
}

// NewFromConfig builds a Client from the upstream section of the configuration.
func NewFromConfig(conf *core.Config) (*Client, error) {
	return New(Options{
		BaseURL:   conf.Upstream.BaseURL,
		Timeout:   conf.Upstream.Timeout,
		RateLimit: conf.Upstream.RateLimit,
		Burst:     conf.Upstream.Burst,
	})
}

func (c *Client) Fetch(ctx context.Context, sess core.Session, path string, pairs []core.QueryPair, out interface{}) error {
	target := path
	if q := core.EncodeQuery(pairs); q != "" {
		target += "?" + q
	}
	return c.do(ctx, sess, http.MethodGet, target, nil, "", out)
}

func (c *Client) Post(ctx context.Context, sess core.Session, path string, body, out interface{}) error {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrapf(err, "encoding body of POST %s", path)
		}
		rdr = bytes.NewReader(data)
	}
	return c.do(ctx, sess, http.MethodPost, path, rdr, "application/json", out)
}

// Login exchanges credentials for an access token (OAuth2 password form) and returns its Session.
func (c *Client) Login(ctx context.Context, email, password string) (core.Session, error) {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)

	var tok struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	err := c.do(ctx, core.Anonymous, http.MethodPost, loginPath, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", &tok)
	if err != nil {
		if hErr, ok := AsHTTPError(err); ok && (hErr.Status == http.StatusUnauthorized || hErr.Status == http.StatusBadRequest) {
			return core.Anonymous, ErrLoginFailed
		}
		return core.Anonymous, err
	}
	return core.NewSession(tok.AccessToken)
}

func (c *Client) do(ctx context.Context, sess core.Session, method, target string, body io.Reader, contentType string, out interface{}) error {
	path := target
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}

	if sess.Expired(c.now()) {
		return errors.Wrapf(core.ErrSessionExpired, "%s %s", method, path)
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return errors.Wrapf(err, "%s %s", method, path)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+target, body)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, uuid.New().String())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if !sess.IsAnonymous() {
		req.Header.Set("Authorization", "Bearer "+sess.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	//goland:noinspection GoUnhandledErrorResult
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := ioutil.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &HTTPError{Status: resp.StatusCode, Method: method, Path: path, Detail: readDetail(data)}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(ioutil.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decoding %s %s", method, path)
	}
	return nil
}
