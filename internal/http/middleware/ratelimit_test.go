package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiterPerIP(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	fixed := time.Date(2025, 1, 5, 8, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return fixed }

	if !rl.Allow("10.0.0.1") || !rl.Allow("10.0.0.1") {
		t.Fatalf("expected burst of 2 to be allowed")
	}
	if rl.Allow("10.0.0.1") {
		t.Fatalf("expected third request to be limited")
	}
	if !rl.Allow("10.0.0.2") {
		t.Fatalf("expected other IP to have its own bucket")
	}

	fixed = fixed.Add(time.Second)
	if !rl.Allow("10.0.0.1") {
		t.Fatalf("expected a token to refill after one second")
	}
}

func TestRateLimiterSweep(t *testing.T) {
	rl := NewRateLimiter(5, 5)
	start := time.Date(2025, 1, 5, 8, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return start }
	rl.Allow("10.0.0.1")
	rl.now = func() time.Time { return start.Add(8 * time.Minute) }
	rl.Allow("10.0.0.2")

	if removed := rl.Sweep(start.Add(12*time.Minute), limiterIdleTTL); removed != 1 {
		t.Fatalf("expected 1 limiter swept, got %d", removed)
	}
	if rl.Len() != 1 {
		t.Fatalf("expected 1 limiter left, got %d", rl.Len())
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	handler := RateLimit(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(remote string) int {
		req := httptest.NewRequest(http.MethodPost, "/v1/sessions", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := send("192.0.2.1:1234"); code != http.StatusOK {
		t.Fatalf("expected first request allowed, got %d", code)
	}
	if code := send("192.0.2.1:5678"); code != http.StatusTooManyRequests {
		t.Fatalf("expected same IP on another port to be limited, got %d", code)
	}
	if code := send("192.0.2.9"); code != http.StatusOK {
		t.Fatalf("expected bare IP from RealIP to be allowed, got %d", code)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	for _, rl := range []*RateLimiter{nil, NewRateLimiter(0, 1)} {
		handler := RateLimit(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		for i := 0; i < 5; i++ {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("expected disabled limiter to pass request %d, got %d", i, rec.Code)
			}
		}
	}
}
