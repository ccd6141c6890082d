package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/dental-concierge/cmd/mainconfig"
	"github.com/wolfman30/dental-concierge/internal/api/router"
	"github.com/wolfman30/dental-concierge/internal/app/bootstrap"
	"github.com/wolfman30/dental-concierge/internal/bookings"
	appconfig "github.com/wolfman30/dental-concierge/internal/config"
	"github.com/wolfman30/dental-concierge/internal/content"
	"github.com/wolfman30/dental-concierge/internal/conversation"
	httpmiddleware "github.com/wolfman30/dental-concierge/internal/http/middleware"
	"github.com/wolfman30/dental-concierge/internal/observability/metrics"
	"github.com/wolfman30/dental-concierge/internal/reply"
	"github.com/wolfman30/dental-concierge/internal/webchat"
	"github.com/wolfman30/dental-concierge/pkg/logging"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting dental-concierge API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"llm_provider", cfg.LLMProvider,
	)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build application", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      app.Handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Hijacked websocket connections are not tracked by Shutdown.
	app.Webchat.CloseAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// application is the wired HTTP surface plus everything that must be
// released on shutdown.
type application struct {
	Handler  http.Handler
	Manager  *conversation.Manager
	Webchat  *webchat.Handler
	closers  []func()
	stopRate chan struct{}
}

func (a *application) Close() {
	if a.stopRate != nil {
		close(a.stopRate)
		a.stopRate = nil
	}
	a.Manager.Close()
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func setupMetrics() (http.Handler, *metrics.ConversationMetrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewConversationMetrics(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), m, reg
}

func buildApplication(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*application, error) {
	app := &application{}
	fail := func(err error) (*application, error) {
		for i := len(app.closers) - 1; i >= 0; i-- {
			app.closers[i]()
		}
		return nil, err
	}

	metricsHandler, convMetrics, registry := setupMetrics()
	checks := map[string]router.HealthCheck{}

	schedule, err := bootstrap.BuildSchedule(cfg)
	if err != nil {
		return fail(err)
	}

	// Bookings: Postgres when DATABASE_URL is set, otherwise in memory.
	var repo bootstrap.SeedableRepository
	pool, err := bootstrap.ConnectPostgresPool(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fail(err)
	}
	if pool != nil {
		app.closers = append(app.closers, pool.Close)
		checks["postgres"] = pool.Ping
		repo = bookings.NewPostgresRepository(pool)
	} else {
		logger.Warn("DATABASE_URL not set; bookings are kept in memory")
		repo = bookings.NewInMemoryRepository()
	}
	if _, err := bootstrap.SeedDoctors(ctx, cfg, repo, logger); err != nil {
		return fail(err)
	}
	bookingService := bookings.NewService(repo, schedule, logger, bookings.WithOutcomeObserver(convMetrics))

	// Content: Postgres behind an optional Redis cache.
	db, err := bootstrap.OpenContentDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return fail(err)
	}
	if db != nil {
		app.closers = append(app.closers, func() { _ = db.Close() })
	}
	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		app.closers = append(app.closers, func() { _ = redisClient.Close() })
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	stack, err := bootstrap.BuildContentStack(ctx, cfg, db, redisClient, logger)
	if err != nil {
		return fail(err)
	}
	resolver := reply.NewResolver(stack.Store, logger, reply.WithProfileSource(stack.Profiles))

	extractor, closeExtractor, err := bootstrap.BuildExtractor(ctx, cfg, mainconfig.LoadAWSConfig, logger)
	if err != nil {
		return fail(err)
	}
	app.closers = append(app.closers, func() {
		if err := closeExtractor(); err != nil {
			logger.Warn("failed to close llm client", "error", err)
		}
	})

	factory := bootstrap.OrchestratorFactory(cfg, extractor, bookingService, resolver, convMetrics, logger)
	app.Manager = conversation.NewManager(factory, logger,
		conversation.WithIdleTimeout(cfg.SessionIdleTimeout),
		conversation.WithSessionObserver(convMetrics),
	)
	app.Webchat = webchat.NewHandler(app.Manager, cfg.CORSAllowedOrigins, logger)

	limiter := httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	app.stopRate = make(chan struct{})
	go limiter.Run(app.stopRate)

	if cfg.AdminJWTSecret == "" {
		logger.Warn("ADMIN_JWT_SECRET not set; admin routes are disabled")
	}

	app.Handler = router.New(&router.Config{
		Logger:              logger,
		ConversationHandler: conversation.NewHandler(app.Manager, logger),
		BookingsHandler:     bookings.NewHandler(bookingService, logger),
		ContentHandler:      content.NewHandler(stack.Store, logger),
		WebchatHandler:      app.Webchat,
		HTTPObserver:        convMetrics,
		MetricsHandler:      metricsHandler,
		Gatherer:            registry,
		HealthChecks:        checks,
		AdminAuthSecret:     cfg.AdminJWTSecret,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		RateLimiter:         limiter,
	})
	return app, nil
}
