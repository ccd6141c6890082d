package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/dental-concierge/internal/bookings"
	"github.com/wolfman30/dental-concierge/internal/content"
	"github.com/wolfman30/dental-concierge/internal/conversation"
	httpmiddleware "github.com/wolfman30/dental-concierge/internal/http/middleware"
	"github.com/wolfman30/dental-concierge/internal/observability/metrics"
	"github.com/wolfman30/dental-concierge/internal/webchat"
	"github.com/wolfman30/dental-concierge/pkg/logging"
)

const healthTimeout = 2 * time.Second

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	ConversationHandler *conversation.Handler
	BookingsHandler     *bookings.Handler
	ContentHandler      *content.Handler
	WebchatHandler      *webchat.Handler

	HTTPObserver   httpmiddleware.HTTPObserver
	MetricsHandler http.Handler
	Gatherer       prometheus.Gatherer
	HealthChecks   map[string]HealthCheck

	AdminAuthSecret    string
	CORSAllowedOrigins []string
	RateLimiter        *httpmiddleware.RateLimiter
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(httpmiddleware.RequestLogger(cfg.Logger, cfg.HTTPObserver))

	r.Group(func(public chi.Router) {
		public.Get("/health", healthHandler(cfg.HealthChecks))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(httpmiddleware.RateLimit(cfg.RateLimiter))
		if cfg.ConversationHandler != nil {
			cfg.ConversationHandler.Routes(v1)
		}
		if cfg.WebchatHandler != nil {
			v1.Get("/sessions/{id}/ws", cfg.WebchatHandler.HandleWebSocket)
		}
		if cfg.BookingsHandler != nil {
			cfg.BookingsHandler.Routes(v1)
		}
	})

	if cfg.AdminAuthSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			if cfg.ContentHandler != nil {
				admin.Get("/content/{slug}", cfg.ContentHandler.ListLocales)
				admin.Get("/content/{slug}/{locale}", cfg.ContentHandler.GetTemplate)
				admin.Put("/content/{slug}/{locale}", cfg.ContentHandler.UpsertTemplate)
			}
			admin.Get("/stats", statsHandler(cfg.Gatherer, cfg.Logger))
		})
	}

	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		status := http.StatusOK
		resp := map[string]any{"status": "ok"}
		failures := map[string]string{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				failures[name] = err.Error()
			}
		}
		if len(failures) > 0 {
			status = http.StatusServiceUnavailable
			resp["status"] = "degraded"
			resp["checks"] = failures
		}
		writeJSON(w, status, resp)
	}
}

func statsHandler(gatherer prometheus.Gatherer, logger *logging.Logger) http.HandlerFunc {
	if logger == nil {
		logger = logging.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := metrics.Summarize(gatherer)
		if err != nil {
			logger.Error("failed to gather metrics", "error", err)
			http.Error(w, "failed to gather metrics", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
