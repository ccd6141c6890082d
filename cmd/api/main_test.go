package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	appconfig "github.com/wolfman30/dental-concierge/internal/config"
	"github.com/wolfman30/dental-concierge/pkg/logging"
)

func TestSetupMetricsExposesMetrics(t *testing.T) {
	handler, m, reg := setupMetrics()
	if handler == nil || m == nil || reg == nil {
		t.Fatalf("expected non-nil handler, metrics and registry")
	}

	m.ObserveReply("BOOK_APPOINTMENT", "booking.confirmed", "builtin")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "dental_conversation_replies_total") {
		t.Fatalf("expected reply counter to be exported")
	}
	if !strings.Contains(rr.Body.String(), "go_goroutines") {
		t.Fatalf("expected runtime collectors to be registered")
	}
}

func memoryConfig() *appconfig.Config {
	return &appconfig.Config{
		LLMProvider:        "rules",
		ClinicTimezone:     "UTC",
		ClinicOpenTime:     "09:00",
		ClinicCloseTime:    "21:00",
		ClinicClosedDays:   []string{"friday"},
		BookingTimeout:     5 * time.Second,
		RateLimitRPS:       50,
		RateLimitBurst:     50,
		SessionIdleTimeout: time.Minute,
		AgentName:          "Lina",
	}
}

func TestBuildApplicationInMemory(t *testing.T) {
	app, err := buildApplication(context.Background(), memoryConfig(), logging.New("error"))
	if err != nil {
		t.Fatalf("buildApplication: %v", err)
	}
	defer app.Close()

	rr := httptest.NewRecorder()
	app.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected healthy service, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	app.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/sessions", strings.NewReader(`{"locale":"ar"}`)))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected session to open, got %d: %s", rr.Code, rr.Body.String())
	}
	var opened struct {
		SessionID string `json:"sessionId"`
		Language  string `json:"language"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&opened); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if opened.Language != "ar" || app.Manager.Len() != 1 {
		t.Fatalf("unexpected session %#v (len %d)", opened, app.Manager.Len())
	}

	rr = httptest.NewRecorder()
	app.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/doctors", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Abdoun") {
		t.Fatalf("expected seeded roster, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	app.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/stats", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected admin routes to be disabled without a secret, got %d", rr.Code)
	}
}

func TestBuildApplicationRejectsBadSchedule(t *testing.T) {
	cfg := memoryConfig()
	cfg.ClinicOpenTime = "25:00"
	if _, err := buildApplication(context.Background(), cfg, logging.New("error")); err == nil {
		t.Fatalf("expected invalid clinic hours to fail")
	}
}

func TestBuildApplicationUnknownProvider(t *testing.T) {
	cfg := memoryConfig()
	cfg.LLMProvider = "llama"
	if _, err := buildApplication(context.Background(), cfg, logging.New("error")); err == nil {
		t.Fatalf("expected unsupported provider to fail")
	}
}
