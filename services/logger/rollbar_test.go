package logsvc

import (
	"bytes"
	"log"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/maraakiz/portal/core"
)

func newTestLogger(buf *bytes.Buffer) *RollbarLogger {
	l := NewRollbarLogger(log.New(buf, "", 0), &core.Config{Env: "TEST", Build: "test"})
	l.Enable(false)
	return l
}

func TestRollbarLogger_prepare(t *testing.T) {
	l := newTestLogger(&bytes.Buffer{})
	err := errors.New("boom")
	extra := map[string]interface{}{"merkez_id": 1}
	sess := core.Session{Token: "t", UserID: 5, Subject: "prof@maraakiz.fr"}

	got := l.prepare("crm: eleves unavailable", []interface{}{err, sess, extra})
	assert.Equal(t, []interface{}{"crm: eleves unavailable", err, extra}, got)

	got = l.prepare("anonymous", []interface{}{core.Anonymous})
	assert.Equal(t, []interface{}{"anonymous"}, got)
}

func TestRollbarLogger_print(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf)

	l.Warn("merkez record rejected", errors.New("bad record"), core.Session{Token: "t"}, map[string]interface{}{"id": 4})
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "merkez record rejected\nbad record\n"), out)
	assert.Contains(t, out, "rollbar_test.go", "errors print their stack")
	assert.True(t, strings.HasSuffix(out, "\nmap[id:4]\n"), out)
	assert.NotContains(t, out, "Token")
}
