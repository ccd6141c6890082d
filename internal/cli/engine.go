package cli

import (
	"context"

	"github.com/wolfman30/dental-concierge/cmd/mainconfig"
	"github.com/wolfman30/dental-concierge/internal/app/bootstrap"
	"github.com/wolfman30/dental-concierge/internal/bookings"
	appconfig "github.com/wolfman30/dental-concierge/internal/config"
	"github.com/wolfman30/dental-concierge/internal/conversation"
	"github.com/wolfman30/dental-concierge/internal/reply"
	"github.com/wolfman30/dental-concierge/pkg/logging"
)

// engine is the in-process wiring shared by the subcommands.
type engine struct {
	repo    bootstrap.SeedableRepository
	service *bookings.Service
	manager *conversation.Manager
	closers []func()
}

func (e *engine) Close() {
	if e.manager != nil {
		e.manager.Close()
	}
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// openBookings connects the booking repository, seeding the roster when the
// store is empty.
func openBookings(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*engine, error) {
	e := &engine{}
	schedule, err := bootstrap.BuildSchedule(cfg)
	if err != nil {
		return nil, err
	}
	pool, err := bootstrap.ConnectPostgresPool(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, err
	}
	if pool != nil {
		e.closers = append(e.closers, pool.Close)
		e.repo = bookings.NewPostgresRepository(pool)
	} else {
		e.repo = bookings.NewInMemoryRepository()
	}
	if _, err := bootstrap.SeedDoctors(ctx, cfg, e.repo, logger); err != nil {
		e.Close()
		return nil, err
	}
	e.service = bookings.NewService(e.repo, schedule, logger)
	return e, nil
}

// openEngine adds content, the extractor and a session manager on top of
// the booking layer.
func openEngine(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*engine, error) {
	e, err := openBookings(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	fail := func(err error) (*engine, error) {
		e.Close()
		return nil, err
	}

	db, err := bootstrap.OpenContentDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return fail(err)
	}
	if db != nil {
		e.closers = append(e.closers, func() { _ = db.Close() })
	}
	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		e.closers = append(e.closers, func() { _ = redisClient.Close() })
	}
	stack, err := bootstrap.BuildContentStack(ctx, cfg, db, redisClient, logger)
	if err != nil {
		return fail(err)
	}

	extractor, closeExtractor, err := bootstrap.BuildExtractor(ctx, cfg, mainconfig.LoadAWSConfig, logger)
	if err != nil {
		return fail(err)
	}
	e.closers = append(e.closers, func() { _ = closeExtractor() })

	resolver := reply.NewResolver(stack.Store, logger, reply.WithProfileSource(stack.Profiles))
	e.manager = conversation.NewManager(
		bootstrap.OrchestratorFactory(cfg, extractor, e.service, resolver, nil, logger),
		logger,
	)
	return e, nil
}
