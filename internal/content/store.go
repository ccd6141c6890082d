// Package content stores the localized reply templates and the agent
// profile used to greet callers.
package content

import (
	"context"
	"errors"
	"strings"

	"github.com/wolfman30/dental-concierge/internal/language"
)

// ErrNotFound means no template exists for the slug and locale. It is an
// expected outcome that drives the reply fallback chain.
var ErrNotFound = errors.New("content: template not found")

// ErrInvalidKey is returned when a slug or locale is malformed.
var ErrInvalidKey = errors.New("content: invalid slug or locale")

// Store looks up template text by slug and locale.
type Store interface {
	Lookup(ctx context.Context, slug string, locale language.Locale) (string, error)
}

// Writer upserts template text.
type Writer interface {
	Upsert(ctx context.Context, slug string, locale language.Locale, body string) error
}

// AgentProfile describes the virtual receptionist.
type AgentProfile struct {
	Name       string `json:"name" yaml:"name"`
	GreetingAR string `json:"greeting_ar" yaml:"greeting_ar"`
	GreetingEN string `json:"greeting_en" yaml:"greeting_en"`
}

// Greeting returns the greeting for l, or "" when none is configured.
func (p AgentProfile) Greeting(l language.Locale) string {
	if l == language.Arabic {
		return strings.TrimSpace(p.GreetingAR)
	}
	return strings.TrimSpace(p.GreetingEN)
}

// ProfileSource loads the active agent profile.
type ProfileSource interface {
	AgentProfile(ctx context.Context) (AgentProfile, error)
}

// StaticProfile serves a fixed profile, usually built from configuration.
type StaticProfile AgentProfile

func (p StaticProfile) AgentProfile(context.Context) (AgentProfile, error) {
	return AgentProfile(p), nil
}

// NormalizeSlug folds a slug to the stored form: trimmed and lower-case.
func NormalizeSlug(slug string) string {
	return strings.ToLower(strings.TrimSpace(slug))
}

func validKey(slug string, locale language.Locale) bool {
	slug = strings.TrimSpace(slug)
	if slug == "" || len(slug) > 128 || !locale.Valid() {
		return false
	}
	for _, r := range slug {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}
