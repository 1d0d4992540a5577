package logger

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriterLogger_FormatsCategoryAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf)

	l.Info("cart", "line added")
	l.Warn("scan", "already used")

	out := buf.String()
	assert.Contains(t, out, "INFO  [CART      ] line added")
	assert.Contains(t, out, "WARN  [SCAN      ] already used")
	assert.Contains(t, out, "logger_test.go")
}

func TestWriterLogger_RespectsMinLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf)
	l.minLevel = WARN

	l.Debug("APP", "hidden")
	l.Info("APP", "hidden too")
	l.Error("APP", "shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestFatal_UsesExitHook(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf)
	code := -1
	l.exit = func(c int) { code = c }

	l.Fatal("CONFIG", "missing dsn")

	assert.Equal(t, 1, code)
	assert.Contains(t, buf.String(), "FATAL")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel(" warning "))
	assert.Equal(t, ERROR, ParseLevel("ERROR"))
	assert.Equal(t, INFO, ParseLevel(""))
	assert.Equal(t, INFO, ParseLevel("verbose"))
}

func TestMiddleware_LogsStatus(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf)

	h := Middleware(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/cart", nil))

	assert.Contains(t, buf.String(), "GET /api/cart - 418")
}
