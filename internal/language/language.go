// Package language holds the lexical locale helpers shared by the
// conversation engine and reply rendering.
package language

import (
	"strings"
	"unicode"
)

// Locale is a supported reply language.
type Locale string

const (
	Arabic  Locale = "ar"
	English Locale = "en"
)

// Parse maps a free-form locale tag ("ar-JO", "EN", "") onto a supported
// locale. Anything that is not Arabic is treated as English.
func Parse(tag string) Locale {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if strings.HasPrefix(tag, "ar") {
		return Arabic
	}
	return English
}

// Detect marks text as Arabic when it contains at least one Arabic letter.
// Mixed-script input is therefore Arabic; dialects are not distinguished.
func Detect(text string) Locale {
	for _, r := range text {
		if unicode.Is(unicode.Arabic, r) && unicode.IsLetter(r) {
			return Arabic
		}
	}
	return English
}

// Other returns the fallback locale for l.
func (l Locale) Other() Locale {
	if l == Arabic {
		return English
	}
	return Arabic
}

// Valid reports whether l is one of the supported locales.
func (l Locale) Valid() bool {
	return l == Arabic || l == English
}

// Separator is the list separator used when joining labels in l.
func (l Locale) Separator() string {
	if l == Arabic {
		return "، "
	}
	return ", "
}

// Join joins items with the locale's list separator, skipping blanks.
func Join(l Locale, items []string) string {
	kept := make([]string, 0, len(items))
	for _, item := range items {
		if s := strings.TrimSpace(item); s != "" {
			kept = append(kept, s)
		}
	}
	return strings.Join(kept, l.Separator())
}

// NormalizeDigits rewrites Arabic-Indic and Extended Arabic-Indic digits to
// ASCII so dates, times and phone numbers parse the same in both scripts.
func NormalizeDigits(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '٠' && r <= '٩':
			return '0' + (r - '٠')
		case r >= '۰' && r <= '۹':
			return '0' + (r - '۰')
		}
		return r
	}, s)
}
