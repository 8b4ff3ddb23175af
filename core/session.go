package core

import (
	"strconv"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"
)

var (
	ErrInvalidSessionToken = errors.New("invalid session token")
	ErrSessionExpired      = errors.New("session expired")
)

// IsAuthFailure reports whether a fetch failed because the Session was refused or has expired.
// Fetch errors signal a refusal by implementing `AuthFailure() bool`.
func IsAuthFailure(err error) bool {
	if errors.Cause(err) == ErrSessionExpired {
		return true
	}
	var af interface{ AuthFailure() bool }
	return errors.As(err, &af) && af.AuthFailure()
}

// Session identifies the caller towards the upstream API.
// It is built once per request (or CLI invocation) and passed explicitly to every fetch.
type Session struct {
	Token     string    `json:"-"`
	Subject   string    `json:"subject,omitempty"` // upstream uses the account email as `sub`
	UserID    int       `json:"user_id,omitempty"`
	Admin     bool      `json:"admin,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Anonymous is the zero Session used for public endpoints.
var Anonymous = Session{}

// NewSession reads the claims of an upstream access token.
// The signature is NOT verified here: the upstream does that on every call,
// we only need the claims to label logs and to skip calls with expired tokens.
func NewSession(token string) (Session, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return Anonymous, ErrInvalidSessionToken
	}

	claims := jwt.MapClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
		return Anonymous, errors.Wrap(ErrInvalidSessionToken, err.Error())
	}

	sess := Session{Token: token}
	if sub, ok := claims["sub"].(string); ok {
		sess.Subject = sub
	}
	for _, key := range []string{"uid", "user_id"} {
		switch uid := claims[key].(type) {
		case float64:
			sess.UserID = int(uid)
		case string:
			sess.UserID, _ = strconv.Atoi(uid)
		}
		if sess.UserID != 0 {
			break
		}
	}
	sess.Admin, _ = claims["admin"].(bool)
	if exp, ok := claims["exp"].(float64); ok {
		sess.ExpiresAt = time.Unix(int64(exp), 0).UTC()
	}
	return sess, nil
}

func (s Session) IsAnonymous() bool {
	return s.Token == ""
}

// Expired reports whether the token carries an expiry that is not after `now`.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}
