package main

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/wolfman30/dental-concierge/internal/config"
	appmigrations "github.com/wolfman30/dental-concierge/migrations"
	"github.com/wolfman30/dental-concierge/pkg/logging"
)

// migrationsTable keeps the clinic schema history apart from other tools
// sharing the database.
const migrationsTable = "dental_schema_migrations"

// command is one parsed invocation: up, down <n>, version or force <v>.
type command struct {
	name string
	n    int
}

func parseCommand(args []string) (command, error) {
	if len(args) == 0 {
		return command{name: "up"}, nil
	}
	name := strings.ToLower(args[0])
	switch name {
	case "up", "version":
		if len(args) > 1 {
			return command{}, fmt.Errorf("migrate: %s takes no arguments", name)
		}
		return command{name: name}, nil
	case "down", "force":
		if len(args) != 2 {
			return command{}, fmt.Errorf("migrate: usage: %s <number>", name)
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return command{}, fmt.Errorf("migrate: invalid %s argument %q: %w", name, args[1], err)
		}
		if name == "down" && n <= 0 {
			return command{}, fmt.Errorf("migrate: down needs a positive step count")
		}
		return command{name: name, n: n}, nil
	default:
		return command{}, fmt.Errorf("migrate: unknown command %q (want up, down, version or force)", args[0])
	}
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	if err := run(cfg.DatabaseURL, os.Args[1:], logger); err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}
}

func run(databaseURL string, args []string, logger *logging.Logger) error {
	cmd, err := parseCommand(args)
	if err != nil {
		return err
	}
	if strings.TrimSpace(databaseURL) == "" {
		return errors.New("migrate: DATABASE_URL is required for the bookings and content schema")
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("migrate: open clinic database: %w", err)
	}
	defer func() { _ = db.Close() }()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("migrate: ping clinic database: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: migrationsTable})
	if err != nil {
		return fmt.Errorf("migrate: postgres driver: %w", err)
	}
	srcDriver, err := iofs.New(appmigrations.FS, ".")
	if err != nil {
		return fmt.Errorf("migrate: embedded schema: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", srcDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("migrate: create migrator: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	switch cmd.name {
	case "force":
		if err := m.Force(cmd.n); err != nil {
			return fmt.Errorf("migrate: force schema version %d: %w", cmd.n, err)
		}
		logger.Info("schema version forced", "version", cmd.n)
		return nil
	case "down":
		if err := m.Steps(-cmd.n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrate: roll back %d step(s): %w", cmd.n, err)
		}
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrate: apply clinic schema: %w", err)
		}
	}

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		logger.Info("clinic schema is empty", "command", cmd.name)
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrate: read schema version: %w", err)
	}
	logger.Info("clinic schema ready", "command", cmd.name, "version", version, "dirty", dirty)
	return nil
}
