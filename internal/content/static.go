package content

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/wolfman30/dental-concierge/internal/language"
)

// StaticStore keeps templates in memory. It backs tests, the CLI and
// deployments without a database.
type StaticStore struct {
	mu        sync.RWMutex
	templates map[string]map[language.Locale]string
}

// NewStaticStore creates an empty store.
func NewStaticStore() *StaticStore {
	return &StaticStore{templates: make(map[string]map[language.Locale]string)}
}

func (s *StaticStore) Lookup(_ context.Context, slug string, locale language.Locale) (string, error) {
	slug = NormalizeSlug(slug)
	s.mu.RLock()
	defer s.mu.RUnlock()
	body, ok := s.templates[slug][locale]
	if !ok || strings.TrimSpace(body) == "" {
		return "", ErrNotFound
	}
	return body, nil
}

func (s *StaticStore) Upsert(_ context.Context, slug string, locale language.Locale, body string) error {
	slug = NormalizeSlug(slug)
	if !validKey(slug, locale) {
		return fmt.Errorf("%w: %q/%q", ErrInvalidKey, slug, locale)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.templates[slug] == nil {
		s.templates[slug] = make(map[language.Locale]string)
	}
	s.templates[slug][locale] = body
	return nil
}

// Locales lists the locales stored for slug, sorted.
func (s *StaticStore) Locales(_ context.Context, slug string) ([]string, error) {
	slug = NormalizeSlug(slug)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.templates[slug]))
	for l := range s.templates[slug] {
		out = append(out, string(l))
	}
	sort.Strings(out)
	return out, nil
}

// Seed mirrors the layout of a seed file:
//
//	templates:
//	  greeting.initial:
//	    ar: "..."
//	    en: "..."
//	agent:
//	  name: Lina
type Seed struct {
	Templates map[string]map[string]string `yaml:"templates"`
	Agent     *AgentProfile                `yaml:"agent"`
}

// ParseSeed decodes the templates and agent sections of a seed file. Other
// top-level keys are ignored so doctors can live in the same file.
func ParseSeed(r io.Reader) (Seed, error) {
	var seed Seed
	if err := yaml.NewDecoder(r).Decode(&seed); err != nil && err != io.EOF {
		return Seed{}, fmt.Errorf("content: decode seed: %w", err)
	}
	return seed, nil
}

// LoadSeedFile reads a seed file from disk.
func LoadSeedFile(path string) (Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return Seed{}, fmt.Errorf("content: open seed: %w", err)
	}
	defer f.Close()
	return ParseSeed(f)
}

// Apply writes every seeded template through w.
func (s Seed) Apply(ctx context.Context, w Writer) error {
	for slug, locales := range s.Templates {
		for tag, body := range locales {
			locale := language.Locale(strings.ToLower(strings.TrimSpace(tag)))
			if err := w.Upsert(ctx, slug, locale, body); err != nil {
				return fmt.Errorf("content: seed %s/%s: %w", slug, tag, err)
			}
		}
	}
	return nil
}
