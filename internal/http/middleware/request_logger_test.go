package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/dental-concierge/pkg/logging"
)

type recordingHTTPObserver struct {
	method, route string
	status        int
	calls         int
}

func (o *recordingHTTPObserver) ObserveHTTPRequest(method, route string, status int, _ time.Duration) {
	o.method, o.route, o.status = method, route, status
	o.calls++
}

func TestRequestLoggerRecordsRoutePattern(t *testing.T) {
	var buf bytes.Buffer
	obs := &recordingHTTPObserver{}
	r := chi.NewRouter()
	r.Use(RequestLogger(logging.NewWithWriter("info", &buf), obs))
	r.Get("/v1/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "session not found", http.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/abc", nil)
	req.Header.Set("X-Request-ID", "req-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if obs.calls != 1 || obs.route != "/v1/sessions/{id}" || obs.status != http.StatusNotFound || obs.method != http.MethodGet {
		t.Fatalf("unexpected observation %#v", obs)
	}
	if rec.Header().Get("X-Request-ID") != "req-1" {
		t.Fatalf("expected request id to be echoed")
	}
	out := buf.String()
	if !strings.Contains(out, `"request_id":"req-1"`) || !strings.Contains(out, `"status":404`) {
		t.Fatalf("unexpected log output %s", out)
	}
}

func TestRequestLoggerDefaultsStatusAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	handler := RequestLogger(logging.NewWithWriter("info", &buf), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected generated request id")
	}
	if !strings.Contains(buf.String(), `"status":200`) || !strings.Contains(buf.String(), `"route":"/health"`) {
		t.Fatalf("unexpected log output %s", buf.String())
	}
}
