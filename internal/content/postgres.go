package content

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/wolfman30/dental-concierge/internal/language"
)

const undefinedTable = "42P01"

// PostgresStore reads templates from clinic_content and the agent profile
// from agent_profiles.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps a database/sql handle opened with the "postgres"
// driver.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	if db == nil {
		panic("content: db required")
	}
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Lookup(ctx context.Context, slug string, locale language.Locale) (string, error) {
	slug = NormalizeSlug(slug)
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM clinic_content WHERE slug = $1 AND locale = $2`,
		slug, string(locale)).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) || isUndefinedTable(err) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("content: lookup %s/%s: %w", slug, locale, err)
	}
	return body, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, slug string, locale language.Locale, body string) error {
	slug = NormalizeSlug(slug)
	if !validKey(slug, locale) {
		return fmt.Errorf("%w: %q/%q", ErrInvalidKey, slug, locale)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clinic_content (slug, locale, body, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (slug, locale) DO UPDATE SET body = EXCLUDED.body, updated_at = now()`,
		slug, string(locale), body)
	if err != nil {
		return fmt.Errorf("content: upsert %s/%s: %w", slug, locale, err)
	}
	return nil
}

// Locales lists the locales a slug has templates for.
func (s *PostgresStore) Locales(ctx context.Context, slug string) ([]string, error) {
	slug = NormalizeSlug(slug)
	var locales []string
	err := s.db.QueryRowContext(ctx,
		`SELECT coalesce(array_agg(locale ORDER BY locale), '{}') FROM clinic_content WHERE slug = $1`,
		slug).Scan(pq.Array(&locales))
	if err != nil {
		return nil, fmt.Errorf("content: locales %s: %w", slug, err)
	}
	return locales, nil
}

// AgentProfile returns the most recently updated profile.
func (s *PostgresStore) AgentProfile(ctx context.Context) (AgentProfile, error) {
	var p AgentProfile
	err := s.db.QueryRowContext(ctx, `
		SELECT name, greeting_ar, greeting_en
		FROM agent_profiles
		ORDER BY updated_at DESC
		LIMIT 1`).Scan(&p.Name, &p.GreetingAR, &p.GreetingEN)
	if errors.Is(err, sql.ErrNoRows) || isUndefinedTable(err) {
		return AgentProfile{}, ErrNotFound
	}
	if err != nil {
		return AgentProfile{}, fmt.Errorf("content: agent profile: %w", err)
	}
	return p, nil
}

func isUndefinedTable(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == undefinedTable
}
