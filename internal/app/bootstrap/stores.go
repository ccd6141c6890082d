package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/dental-concierge/internal/bookings"
	appconfig "github.com/wolfman30/dental-concierge/internal/config"
	"github.com/wolfman30/dental-concierge/internal/content"
	"github.com/wolfman30/dental-concierge/pkg/logging"
)

// SeedableRepository is a booking repository that can also store doctors.
type SeedableRepository interface {
	bookings.Repository
	bookings.DoctorWriter
}

// SeedDoctors loads the roster from SEED_FILE, or the built-in roster, and
// writes it through repo when repo has no doctors yet.
func SeedDoctors(ctx context.Context, cfg *appconfig.Config, repo SeedableRepository, logger *logging.Logger) (int, error) {
	if logger == nil {
		logger = logging.Default()
	}
	existing, err := repo.ListDoctors(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("bootstrap: list doctors: %w", err)
	}
	if len(existing) > 0 {
		logger.Debug("doctor roster already present", "count", len(existing))
		return 0, nil
	}

	var roster []bookings.Doctor
	if cfg != nil && strings.TrimSpace(cfg.SeedFile) != "" {
		roster, err = bookings.LoadRoster(cfg.SeedFile)
	} else {
		roster, err = bookings.DefaultRoster()
	}
	if err != nil {
		return 0, err
	}
	if err := bookings.Seed(ctx, repo, roster); err != nil {
		return 0, err
	}
	logger.Info("seeded doctor roster", "count", len(roster))
	return len(roster), nil
}

// ContentStack is the template store chain plus its write side.
type ContentStack struct {
	Store    content.Store
	Writer   content.Writer
	Profiles content.ProfileSource
}

// BuildContentStack layers the Redis cache over Postgres when both are
// configured and falls back to the in-memory store otherwise. Seed templates
// from SEED_FILE are applied through the writer.
func BuildContentStack(ctx context.Context, cfg *appconfig.Config, db *sql.DB, redisClient *redis.Client, logger *logging.Logger) (ContentStack, error) {
	if cfg == nil {
		return ContentStack{}, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	var (
		stack   ContentStack
		backing interface {
			content.Store
			content.Writer
		}
	)
	if db != nil {
		pg := content.NewPostgresStore(db)
		backing = pg
		stack.Profiles = pg
	} else {
		backing = content.NewStaticStore()
	}
	stack.Store, stack.Writer = backing, backing

	if redisClient != nil {
		cache := content.NewRedisCache(backing, redisClient, cfg.ContentCacheTTL, logger)
		stack.Store, stack.Writer = cache, cache
	}

	var seeded *content.AgentProfile
	if strings.TrimSpace(cfg.SeedFile) != "" {
		seed, err := content.LoadSeedFile(cfg.SeedFile)
		if err != nil {
			return ContentStack{}, err
		}
		if err := seed.Apply(ctx, stack.Writer); err != nil {
			return ContentStack{}, err
		}
		seeded = seed.Agent
	}

	if stack.Profiles == nil {
		stack.Profiles = staticProfile(cfg, seeded)
	}
	return stack, nil
}

func staticProfile(cfg *appconfig.Config, seeded *content.AgentProfile) content.ProfileSource {
	profile := content.AgentProfile{}
	if seeded != nil {
		profile = *seeded
	}
	if cfg.AgentName != "" {
		profile.Name = cfg.AgentName
	}
	if cfg.AgentGreetingAR != "" {
		profile.GreetingAR = cfg.AgentGreetingAR
	}
	if cfg.AgentGreetingEN != "" {
		profile.GreetingEN = cfg.AgentGreetingEN
	}
	return content.StaticProfile(profile)
}
