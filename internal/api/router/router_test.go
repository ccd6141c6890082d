package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/dental-concierge/internal/bookings"
	"github.com/wolfman30/dental-concierge/internal/clinic"
	"github.com/wolfman30/dental-concierge/internal/content"
	"github.com/wolfman30/dental-concierge/internal/conversation"
	httpmiddleware "github.com/wolfman30/dental-concierge/internal/http/middleware"
	"github.com/wolfman30/dental-concierge/internal/language"
	"github.com/wolfman30/dental-concierge/internal/observability/metrics"
	"github.com/wolfman30/dental-concierge/internal/reply"
	"github.com/wolfman30/dental-concierge/pkg/logging"
)

const testSecret = "router-secret"

func newTestRouter(t *testing.T, checks map[string]HealthCheck) http.Handler {
	t.Helper()

	logger := logging.New("error")
	reg := prometheus.NewRegistry()
	m := metrics.NewConversationMetrics(reg)

	repo := bookings.NewInMemoryRepository()
	roster := []bookings.Doctor{{
		Name:   "Sara Haddad",
		Branch: "Abdoun",
		Window: clinic.Window{Days: []time.Weekday{time.Sunday, time.Monday}, Open: "09:00", Close: "17:00"},
	}}
	if err := bookings.Seed(context.Background(), repo, roster); err != nil {
		t.Fatalf("seed: %v", err)
	}
	svc := bookings.NewService(repo, clinic.DefaultSchedule(), logger, bookings.WithOutcomeObserver(m))

	store := content.NewStaticStore()
	resolver := reply.NewResolver(store, logger)
	manager := conversation.NewManager(func(id string, locale language.Locale) *conversation.Orchestrator {
		return conversation.NewOrchestrator(id, conversation.NewRuleExtractor("Abdoun"), svc, resolver, logger,
			conversation.WithLocale(locale),
			conversation.WithObserver(m),
		)
	}, logger, conversation.WithSessionObserver(m))
	t.Cleanup(manager.Close)

	return New(&Config{
		Logger:              logger,
		ConversationHandler: conversation.NewHandler(manager, logger),
		BookingsHandler:     bookings.NewHandler(svc, logger),
		ContentHandler:      content.NewHandler(store, logger),
		HTTPObserver:        m,
		MetricsHandler:      promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Gatherer:            reg,
		HealthChecks:        checks,
		AdminAuthSecret:     testSecret,
		RateLimiter:         httpmiddleware.NewRateLimiter(100, 100),
	})
}

func adminToken(t *testing.T) string {
	t.Helper()
	claims := httpmiddleware.AdminClaims{
		Role: httpmiddleware.AdminRole,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "ops",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func serve(h http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRouterHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, map[string]HealthCheck{
		"postgres": func(context.Context) error { return nil },
	})

	rr := serve(router, http.MethodGet, "/health", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %v", resp["status"])
	}
}

func TestRouterHealthDegraded(t *testing.T) {
	router := newTestRouter(t, map[string]HealthCheck{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})

	rr := serve(router, http.MethodGet, "/health", "", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "connection refused") {
		t.Fatalf("expected failing check in body, got %s", rr.Body.String())
	}
}

func TestRouterConversationFlowAndMetrics(t *testing.T) {
	router := newTestRouter(t, nil)

	rr := serve(router, http.MethodPost, "/v1/sessions", `{"locale":"en"}`, "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rr.Code, rr.Body.String())
	}
	var opened struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&opened); err != nil || opened.SessionID == "" {
		t.Fatalf("failed to decode session: %v", err)
	}

	rr = serve(router, http.MethodPost, "/v1/sessions/"+opened.SessionID+"/messages", `{"text":"I want to cancel my appointment"}`, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	var turn conversation.TurnResult
	if err := json.NewDecoder(rr.Body).Decode(&turn); err != nil {
		t.Fatalf("failed to decode turn: %v", err)
	}
	if turn.Intent != conversation.IntentCancelAppointment || !strings.Contains(turn.Reply, "booking ID") {
		t.Fatalf("unexpected turn %#v", turn)
	}

	rr = serve(router, http.MethodGet, "/metrics", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected metrics status 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	for _, name := range []string{"dental_conversation_active_sessions", "dental_conversation_replies_total", "dental_http_request_duration_seconds"} {
		if !strings.Contains(body, name) {
			t.Fatalf("expected %s to be exported", name)
		}
	}
}

func TestRouterDoctorsEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	rr := serve(router, http.MethodGet, "/v1/doctors?branch=Abdoun", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var resp struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil || resp.Count != 1 {
		t.Fatalf("expected one doctor, got %d (%v)", resp.Count, err)
	}
}

func TestRouterAdminContentRequiresToken(t *testing.T) {
	router := newTestRouter(t, nil)

	rr := serve(router, http.MethodPut, "/admin/content/greeting.initial/en", `{"body":"Welcome to Smile Clinic!"}`, "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rr.Code)
	}

	token := adminToken(t)
	rr = serve(router, http.MethodPut, "/admin/content/greeting.initial/en", `{"body":"Welcome to Smile Clinic!"}`, token)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}

	// The upserted template now drives the greeting.
	rr = serve(router, http.MethodPost, "/v1/sessions", "", "")
	var opened struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&opened); err != nil {
		t.Fatalf("failed to decode session: %v", err)
	}
	rr = serve(router, http.MethodPost, "/v1/sessions/"+opened.SessionID+"/messages", `{"text":"hello"}`, "")
	var turn conversation.TurnResult
	if err := json.NewDecoder(rr.Body).Decode(&turn); err != nil {
		t.Fatalf("failed to decode turn: %v", err)
	}
	if turn.Reply != "Welcome to Smile Clinic!" {
		t.Fatalf("expected stored greeting, got %q", turn.Reply)
	}

	rr = serve(router, http.MethodGet, "/admin/stats", "", token)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected stats status 200, got %d", rr.Code)
	}
	var summary metrics.Summary
	if err := json.NewDecoder(rr.Body).Decode(&summary); err != nil {
		t.Fatalf("failed to decode summary: %v", err)
	}
	if summary.ActiveSessions != 1 {
		t.Fatalf("expected one active session, got %v", summary.ActiveSessions)
	}
}

func TestRouterUnknownRoute(t *testing.T) {
	router := newTestRouter(t, nil)
	rr := serve(router, http.MethodPost, "/webhooks/sms/inbound", "{}", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}
