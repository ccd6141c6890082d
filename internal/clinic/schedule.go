// Package clinic models clinic opening hours and doctor working windows.
package clinic

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultTimezone is used when no clinic timezone is configured.
const DefaultTimezone = "Asia/Amman"

var (
	ErrInvalidClock   = errors.New("clinic: invalid clock value")
	ErrInvalidWindow  = errors.New("clinic: window closes before it opens")
	ErrInvalidWeekday = errors.New("clinic: unknown weekday")
)

// Window is a weekly working window: the days it applies to and an
// [Open, Close) interval in "15:04" local clock format.
type Window struct {
	Days  []time.Weekday `json:"days"`
	Open  string         `json:"open"`
	Close string         `json:"close"`
}

// Validate checks the clock strings and interval ordering.
func (w Window) Validate() error {
	openMin, err := clockMinutes(w.Open)
	if err != nil {
		return err
	}
	closeMin, err := clockMinutes(w.Close)
	if err != nil {
		return err
	}
	if closeMin <= openMin {
		return fmt.Errorf("%w: %s-%s", ErrInvalidWindow, w.Open, w.Close)
	}
	return nil
}

// CoversDay reports whether the window applies on day.
func (w Window) CoversDay(day time.Weekday) bool {
	for _, d := range w.Days {
		if d == day {
			return true
		}
	}
	return false
}

// CoversClock reports whether the wall-clock part of t falls inside
// [Open, Close). A malformed window covers nothing.
func (w Window) CoversClock(t time.Time) bool {
	openMin, err := clockMinutes(w.Open)
	if err != nil {
		return false
	}
	closeMin, err := clockMinutes(w.Close)
	if err != nil {
		return false
	}
	current := t.Hour()*60 + t.Minute()
	return current >= openMin && current < closeMin
}

// Schedule is the clinic-wide opening schedule in the clinic's timezone.
type Schedule struct {
	Location *time.Location
	Window   Window
}

// NewSchedule builds a schedule that is open every day except closed, from
// open to close local time.
func NewSchedule(timezone, open, close string, closed []time.Weekday) (Schedule, error) {
	if strings.TrimSpace(timezone) == "" {
		timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return Schedule{}, fmt.Errorf("clinic: load timezone %q: %w", timezone, err)
	}
	days := make([]time.Weekday, 0, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		if !containsDay(closed, d) {
			days = append(days, d)
		}
	}
	w := Window{Days: days, Open: open, Close: close}
	if err := w.Validate(); err != nil {
		return Schedule{}, err
	}
	return Schedule{Location: loc, Window: w}, nil
}

// DefaultSchedule is Sunday to Thursday, 09:00 to 21:00. It falls back to
// UTC when the default zone is unavailable on the host.
func DefaultSchedule() Schedule {
	s, err := NewSchedule(DefaultTimezone, "09:00", "21:00", []time.Weekday{time.Friday, time.Saturday})
	if err != nil {
		s, _ = NewSchedule("UTC", "09:00", "21:00", []time.Weekday{time.Friday, time.Saturday})
	}
	return s
}

// Local converts t into the clinic timezone.
func (s Schedule) Local(t time.Time) time.Time {
	if s.Location == nil {
		return t
	}
	return t.In(s.Location)
}

// IsOpenDay reports whether the clinic opens on the local weekday of t.
func (s Schedule) IsOpenDay(t time.Time) bool {
	return s.Window.CoversDay(s.Local(t).Weekday())
}

// IsOpenAt reports whether the clinic is open at t.
func (s Schedule) IsOpenAt(t time.Time) bool {
	local := s.Local(t)
	return s.Window.CoversDay(local.Weekday()) && s.Window.CoversClock(local)
}

// ParseWeekday accepts English day names and three-letter abbreviations.
func ParseWeekday(name string) (time.Weekday, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if n == full || n == full[:3] {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("%w: %q", ErrInvalidWeekday, name)
}

// ParseWeekdays parses a comma-separated list such as "friday,saturday".
func ParseWeekdays(csv string) ([]time.Weekday, error) {
	var days []time.Weekday
	for _, part := range strings.Split(csv, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		d, err := ParseWeekday(part)
		if err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	return days, nil
}

func clockMinutes(value string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, value)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func containsDay(days []time.Weekday, day time.Weekday) bool {
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}
