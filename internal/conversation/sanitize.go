package conversation

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/wolfman30/dental-concierge/internal/language"
)

// MaxTurnLength caps stored turn text, in runes.
const MaxTurnLength = 2000

// Sanitize prepares user text for storage: NFC-normalized, without control
// characters other than newline and tab, trimmed and length-capped.
func Sanitize(text string) string {
	text = norm.NFC.String(text)
	text = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, text)
	text = strings.TrimSpace(text)
	if runes := []rune(text); len(runes) > MaxTurnLength {
		text = strings.TrimSpace(string(runes[:MaxTurnLength]))
	}
	return text
}

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	cardPattern  = regexp.MustCompile(`\b(?:\d[ -]?){12,18}\d\b`)
	phonePattern = regexp.MustCompile(`\+?\d[\d\s\-()]{6,}\d`)
)

// Redact masks e-mail addresses, card-like digit runs and phone numbers so
// turn text can be logged.
func Redact(text string) string {
	text = language.NormalizeDigits(text)
	text = emailPattern.ReplaceAllString(text, "[email]")
	text = cardPattern.ReplaceAllString(text, "[card]")
	text = phonePattern.ReplaceAllString(text, "[phone]")
	return text
}
