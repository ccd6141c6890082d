package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/dental-concierge/internal/language"
)

var (
	ErrInvalidDate = errors.New("rules: unrecognized appointment date")
	ErrInvalidTime = errors.New("rules: unrecognized appointment time")
)

var clockPattern = regexp.MustCompile(`(\d{1,2})(?::(\d{2}))?`)

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"2 January 2006",
	"2 Jan 2006",
}

var dateTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

var relativeDays = map[string]int{
	"today":    0,
	"اليوم":    0,
	"tomorrow": 1,
	"غدا":      1,
	"غداً":     1,
	"بكرا":     1,
	"بكرة":     1,
}

// ResolveAppointment combines a captured date and clock string into an
// instant in loc. now anchors relative dates such as "tomorrow". When date
// already carries a time of day, clock may be empty.
func ResolveAppointment(date, clock string, loc *time.Location, now time.Time) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	date = strings.TrimSpace(language.NormalizeDigits(date))
	clock = strings.TrimSpace(language.NormalizeDigits(clock))

	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, date, loc); err == nil {
			if clock == "" {
				return t, nil
			}
			date = t.Format("2006-01-02")
			break
		}
	}

	day, err := parseDate(date, loc, now)
	if err != nil {
		return time.Time{}, err
	}
	hour, minute, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc), nil
}

// ParseClock reads "10", "10:30", "3pm", "3:30 p.m.", "4 مساء" and similar,
// returning a 24-hour hour and minute.
func ParseClock(clock string) (int, int, error) {
	clock = strings.ToLower(strings.TrimSpace(language.NormalizeDigits(clock)))
	loc := clockPattern.FindStringSubmatchIndex(clock)
	if loc == nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTime, clock)
	}
	hour, _ := strconv.Atoi(clock[loc[2]:loc[3]])
	minute := 0
	if loc[4] >= 0 {
		minute, _ = strconv.Atoi(clock[loc[4]:loc[5]])
	}

	switch meridiem(strings.TrimSpace(clock[loc[1]:])) {
	case "pm":
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	if hour > 23 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTime, clock)
	}
	return hour, minute, nil
}

func meridiem(rest string) string {
	switch {
	case strings.HasPrefix(rest, "pm"), strings.HasPrefix(rest, "p.m"),
		strings.HasPrefix(rest, "م"), strings.HasPrefix(rest, "بعد الظهر"):
		return "pm"
	case strings.HasPrefix(rest, "am"), strings.HasPrefix(rest, "a.m"),
		strings.HasPrefix(rest, "ص"):
		return "am"
	}
	return ""
}

func parseDate(date string, loc *time.Location, now time.Time) (time.Time, error) {
	if offset, ok := relativeDays[strings.ToLower(date)]; ok {
		local := now.In(loc)
		return time.Date(local.Year(), local.Month(), local.Day()+offset, 0, 0, 0, 0, loc), nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, date, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
}
