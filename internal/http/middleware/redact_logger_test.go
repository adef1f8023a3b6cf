package middleware

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func withCapturedLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	log.Logger = zerolog.New(&buf) // plain JSON lines
	return &buf
}

func TestRedactingLogger_InfoAndRedactions(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	buf := withCapturedLogger(t)

	r.Use(func(c *gin.Context) {
		c.Header("X-Request-ID", "rid-resp")
		c.Next()
	})
	r.Use(RedactingLogger(RedactOptions{MaskHeaders: []string{"X-Widget-Key"}, MaskQuery: []string{"key"}}))
	r.GET("/widget/:part", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	q := "key=wk_live_supersecret&email=a.b+tag@example.com&phone=+49-555-123-4567&id=123e4567-e89b-12d3-a456-426614174000"
	req := httptest.NewRequest(http.MethodGet, "/widget/config?"+q, nil)
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("Cookie", "sid=topsecret")
	req.Header.Set("X-Widget-Key", "wk_live_supersecret")
	req.Header.Set("X-Custom", "email a@b.com id=123e4567-e89b-12d3-a456-426614174000 phone 555-123-4567")
	req.Header.Set("X-Request-ID", "rid-req")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	logs := buf.String()
	if !strings.Contains(logs, `"level":"info"`) || !strings.Contains(logs, `"path":"/widget/:part"`) {
		t.Fatalf("expected info log with route path, got: %s", logs)
	}
	if !strings.Contains(logs, `"request_id":"rid-resp"`) {
		t.Fatalf("expected request_id from response header, got: %s", logs)
	}
	if strings.Contains(logs, "supersecret") {
		t.Fatalf("widget key leaked: %s", logs)
	}
	if !strings.Contains(logs, `key=[REDACTED]`) {
		t.Fatalf("expected masked key param, got: %s", logs)
	}
	if !strings.Contains(logs, `[REDACTED:email]`) || !strings.Contains(logs, `[REDACTED:phone]`) || !strings.Contains(logs, `[REDACTED:id]`) {
		t.Fatalf("expected query redactions, got: %s", logs)
	}
	for _, h := range []string{"Authorization", "Cookie", "X-Widget-Key"} {
		if !strings.Contains(logs, `"`+h+`":"[REDACTED]"`) {
			t.Fatalf("%s must be masked: %s", h, logs)
		}
	}
	if !strings.Contains(logs, `"X-Custom":"email [REDACTED:email] id=[REDACTED:id] phone [REDACTED:phone]"`) {
		t.Fatalf("expected redacted X-Custom header, got: %s", logs)
	}
}

func TestRedactingLogger_LevelsAndScopedLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	buf := withCapturedLogger(t)

	r.Use(RedactingLogger(RedactOptions{}))
	r.GET("/warn", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/error", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })
	r.GET("/attached", func(c *gin.Context) {
		LoggerFrom(c).Info().Str("widget_id", "w-1").Msg("scoped")
		_ = c.Error(errors.New("store down"))
		c.Status(http.StatusOK)
	})

	for _, p := range []struct{ path, rid string }{{"/warn", "rid-warn"}, {"/error", "rid-err"}, {"/attached", "rid-att"}} {
		req := httptest.NewRequest(http.MethodGet, p.path, nil)
		req.Header.Set("X-Request-ID", p.rid)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	logs := buf.String()
	if !strings.Contains(logs, `"level":"warn"`) || !strings.Contains(logs, `"request_id":"rid-warn"`) {
		t.Fatalf("warn log missing or request_id fallback broken: %s", logs)
	}
	if !strings.Contains(logs, `"level":"error"`) || !strings.Contains(logs, `"request_id":"rid-err"`) {
		t.Fatalf("error log missing: %s", logs)
	}
	if !strings.Contains(logs, `"errors":"Error #01: store down\n"`) {
		t.Fatalf("context errors should escalate and be logged: %s", logs)
	}
	scoped := false
	for _, line := range strings.Split(logs, "\n") {
		if strings.Contains(line, `"message":"scoped"`) && strings.Contains(line, `"request_id":"rid-att"`) && strings.Contains(line, `"widget_id":"w-1"`) {
			scoped = true
		}
	}
	if !scoped {
		t.Fatalf("request-scoped logger missing fields: %s", logs)
	}
}

func TestMaskQuery(t *testing.T) {
	names := map[string]struct{}{"key": {}}
	cases := map[string]string{
		"":                       "",
		"key=abc":                "key=[REDACTED]",
		"a=1&KEY=abc&b=2":        "a=1&KEY=[REDACTED]&b=2",
		"keyword=abc&key":        "keyword=abc&key",
		"monkey=1&key=x%20y&c=3": "monkey=1&key=[REDACTED]&c=3",
	}
	for in, want := range cases {
		if got := maskQuery(in, names); got != want {
			t.Fatalf("maskQuery(%q) = %q; want %q", in, got, want)
		}
	}
}
