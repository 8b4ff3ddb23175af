package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

var ErrLoginFailed = errors.New("incorrect email or password")

// HTTPError is a non-2xx answer of the upstream API.
type HTTPError struct {
	Status int
	Method string
	Path   string
	Detail string // upstream `detail` message, if any
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d on %s", e.Status, e.Path)
}

func (e *HTTPError) NotFound() bool {
	return e.Status == http.StatusNotFound
}

// AuthFailure reports whether the upstream refused the caller's session.
func (e *HTTPError) AuthFailure() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// AsHTTPError returns the upstream error wrapped in `err`, if any.
func AsHTTPError(err error) (*HTTPError, bool) {
	var hErr *HTTPError
	if errors.As(err, &hErr) {
		return hErr, true
	}
	return nil, false
}

// readDetail extracts the `detail` field of an error body.
// Validation errors carry a list of details: the first message is kept.
func readDetail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return ""
	}

	var msg string
	if err := json.Unmarshal(payload.Detail, &msg); err == nil {
		return msg
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(payload.Detail, &items); err == nil && len(items) > 0 {
		return items[0].Msg
	}
	return ""
}
