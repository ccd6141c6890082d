package reply

import (
	"context"
	"errors"
	"strings"

	"github.com/wolfman30/dental-concierge/internal/content"
	"github.com/wolfman30/dental-concierge/internal/language"
	"github.com/wolfman30/dental-concierge/pkg/logging"
)

// Source records where a resolved reply came from.
type Source string

const (
	SourceStore       Source = "store"
	SourceOtherLocale Source = "store_other_locale"
	SourceAgent       Source = "agent_profile"
	SourceBuiltin     Source = "builtin"
	SourceFallback    Source = "fallback"
)

// Resolved is a rendered reply plus its provenance.
type Resolved struct {
	Rendered
	Slug   Slug
	Locale language.Locale
	Source Source
}

// Resolver looks templates up through the fallback chain: content store in
// the requested locale, the store in the other locale, the agent profile
// greeting (greeting slug only), then the built-in catalog.
type Resolver struct {
	store    content.Store
	profiles content.ProfileSource
	logger   *logging.Logger
}

// ResolverOption customizes a Resolver.
type ResolverOption func(*Resolver)

// WithProfileSource enables the agent-profile greeting fallback.
func WithProfileSource(p content.ProfileSource) ResolverOption {
	return func(r *Resolver) {
		r.profiles = p
	}
}

// NewResolver builds a resolver. A nil store means built-in templates only.
func NewResolver(store content.Store, logger *logging.Logger, opts ...ResolverOption) *Resolver {
	if logger == nil {
		logger = logging.Default()
	}
	r := &Resolver{store: store, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve renders slug for locale. It never returns empty text: when no
// template yields output the built-in unknown reply is used.
func (r *Resolver) Resolve(ctx context.Context, slug Slug, locale language.Locale, values Values) Resolved {
	if !locale.Valid() {
		locale = language.English
	}
	if values == nil {
		values = Values{}
	}

	for _, l := range []language.Locale{locale, locale.Other()} {
		tmpl, ok := r.lookup(ctx, slug, l)
		if !ok {
			continue
		}
		out := Render(tmpl, values)
		if out.Text == "" {
			continue
		}
		if len(out.Missing) > 0 {
			r.logger.Debug("template rendered with missing placeholders", "slug", slug, "locale", l, "missing", out.Missing)
		}
		src := SourceStore
		if l != locale {
			src = SourceOtherLocale
		}
		return Resolved{Rendered: out, Slug: slug, Locale: l, Source: src}
	}

	if slug == SlugGreeting && r.profiles != nil {
		if text, l, ok := r.agentGreeting(ctx, locale); ok {
			return Resolved{Rendered: Render(text, values), Slug: slug, Locale: l, Source: SourceAgent}
		}
	}

	if tmpl, ok := Builtin(slug, locale, values); ok {
		if out := Render(tmpl, values); out.Text != "" {
			return Resolved{Rendered: out, Slug: slug, Locale: locale, Source: SourceBuiltin}
		}
	}

	tmpl, _ := Builtin(SlugUnknown, locale, values)
	return Resolved{Rendered: Render(tmpl, values), Slug: SlugUnknown, Locale: locale, Source: SourceFallback}
}

func (r *Resolver) lookup(ctx context.Context, slug Slug, locale language.Locale) (string, bool) {
	if r.store == nil {
		return "", false
	}
	tmpl, err := r.store.Lookup(ctx, string(slug), locale)
	if err != nil {
		if !errors.Is(err, content.ErrNotFound) {
			r.logger.Warn("template lookup failed", "slug", slug, "locale", locale, "error", err)
		}
		return "", false
	}
	return tmpl, strings.TrimSpace(tmpl) != ""
}

func (r *Resolver) agentGreeting(ctx context.Context, locale language.Locale) (string, language.Locale, bool) {
	profile, err := r.profiles.AgentProfile(ctx)
	if err != nil {
		if !errors.Is(err, content.ErrNotFound) {
			r.logger.Warn("agent profile lookup failed", "error", err)
		}
		return "", "", false
	}
	for _, l := range []language.Locale{locale, locale.Other()} {
		if g := profile.Greeting(l); g != "" {
			return g, l, true
		}
	}
	return "", "", false
}
