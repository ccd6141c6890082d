package rules

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/wolfman30/dental-concierge/internal/clinic"
	"github.com/wolfman30/dental-concierge/internal/language"
)

func utcSchedule(t *testing.T) clinic.Schedule {
	t.Helper()
	s, err := clinic.NewSchedule("UTC", "09:00", "21:00", []time.Weekday{time.Friday, time.Saturday})
	if err != nil {
		t.Fatalf("NewSchedule: %v", err)
	}
	return s
}

func sundayToThursday(open, close string) clinic.Window {
	return clinic.Window{
		Days:  []time.Weekday{time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday},
		Open:  open,
		Close: close,
	}
}

func TestMissingPreservesOrder(t *testing.T) {
	values := map[Field]string{
		FieldServiceType: "cleaning",
		FieldDoctorName:  "  ",
	}
	missing := Missing(BookingFields, func(f Field) string { return values[f] })
	want := []Field{
		FieldDoctorName,
		FieldClinicBranch,
		FieldAppointmentDate,
		FieldAppointmentTime,
		FieldCustomerName,
		FieldPhoneNumber,
	}
	if !reflect.DeepEqual(missing, want) {
		t.Fatalf("unexpected missing fields %v", missing)
	}
}

func TestMissingCancelNeedsOnlyBookingID(t *testing.T) {
	missing := Missing(CancelFields, func(Field) string { return "" })
	labels := Labels(missing, language.English)
	if len(labels) != 1 || labels[0] != "booking ID" {
		t.Fatalf("unexpected labels %v", labels)
	}
	if got := FieldBookingID.Label(language.Arabic); got != "رقم الحجز" {
		t.Fatalf("unexpected arabic label %q", got)
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in           string
		hour, minute int
	}{
		{"10", 10, 0},
		{"10:30", 10, 30},
		{"3pm", 15, 0},
		{"3:30 PM", 15, 30},
		{"12 am", 0, 0},
		{"12pm", 12, 0},
		{"٤ مساء", 16, 0},
		{"9 صباحا", 9, 0},
		{"at 11:15", 11, 15},
	}
	for _, tt := range tests {
		h, m, err := ParseClock(tt.in)
		if err != nil {
			t.Fatalf("ParseClock(%q): %v", tt.in, err)
		}
		if h != tt.hour || m != tt.minute {
			t.Fatalf("ParseClock(%q) = %d:%d, want %d:%d", tt.in, h, m, tt.hour, tt.minute)
		}
	}
	if _, _, err := ParseClock("noon-ish"); !errors.Is(err, ErrInvalidTime) {
		t.Fatalf("expected ErrInvalidTime, got %v", err)
	}
	if _, _, err := ParseClock("25:00"); !errors.Is(err, ErrInvalidTime) {
		t.Fatalf("expected out-of-range hour to fail, got %v", err)
	}
}

func TestResolveAppointment(t *testing.T) {
	now := time.Date(2025, 1, 5, 8, 0, 0, 0, time.UTC)

	got, err := ResolveAppointment("2025-01-07", "4:15 pm", time.UTC, now)
	if err != nil {
		t.Fatalf("ResolveAppointment: %v", err)
	}
	if want := time.Date(2025, 1, 7, 16, 15, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("got %s, want %s", got, want)
	}

	got, err = ResolveAppointment("tomorrow", "10", time.UTC, now)
	if err != nil {
		t.Fatalf("ResolveAppointment tomorrow: %v", err)
	}
	if want := time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("got %s, want %s", got, want)
	}

	got, err = ResolveAppointment("2025-01-07T11:30:00", "", time.UTC, now)
	if err != nil {
		t.Fatalf("ResolveAppointment datetime: %v", err)
	}
	if got.Hour() != 11 || got.Minute() != 30 {
		t.Fatalf("unexpected datetime %s", got)
	}

	if _, err := ResolveAppointment("next blue moon", "10", time.UTC, now); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestEvaluateDoctorDayBeforeClinicHours(t *testing.T) {
	// 2025-01-03 is a Friday: the doctor does not work and the clinic is closed.
	at := time.Date(2025, 1, 3, 10, 0, 0, 0, time.UTC)
	got := Evaluate(Candidate{
		At:       at,
		Schedule: utcSchedule(t),
		Doctor:   sundayToThursday("09:00", "17:00"),
	})
	if got != ReasonDoctorNotAvailableDay {
		t.Fatalf("expected %s, got %s", ReasonDoctorNotAvailableDay, got)
	}
}

func TestEvaluateHoursReportedBeforeConflict(t *testing.T) {
	at := time.Date(2025, 1, 5, 22, 0, 0, 0, time.UTC)
	got := Evaluate(Candidate{
		At:       at,
		Schedule: utcSchedule(t),
		Doctor:   sundayToThursday("09:00", "23:00"),
		Booked:   []Slot{{AppointmentID: "a1", StartsAt: at, Active: true}},
	})
	if got != ReasonOutsideWorkingHours {
		t.Fatalf("expected %s, got %s", ReasonOutsideWorkingHours, got)
	}
}

func TestEvaluateDoctorWindowNarrowerThanClinic(t *testing.T) {
	at := time.Date(2025, 1, 5, 18, 0, 0, 0, time.UTC)
	got := Evaluate(Candidate{
		At:       at,
		Schedule: utcSchedule(t),
		Doctor:   sundayToThursday("09:00", "17:00"),
	})
	if got != ReasonOutsideWorkingHours {
		t.Fatalf("expected %s, got %s", ReasonOutsideWorkingHours, got)
	}
}

func TestCheckSlotConflict(t *testing.T) {
	at := time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC)
	booked := []Slot{
		{AppointmentID: "cancelled", StartsAt: at, Active: false},
		{AppointmentID: "self", StartsAt: at, Active: true},
	}
	if got := CheckSlotConflict(booked, at, "self"); got != ReasonNone {
		t.Fatalf("expected own and inactive rows to be ignored, got %s", got)
	}
	if got := CheckSlotConflict(booked, at, ""); got != ReasonAlreadyBooked {
		t.Fatalf("expected conflict, got %s", got)
	}
	if got := CheckSlotConflict(booked, at.Add(30*time.Minute), ""); got != ReasonNone {
		t.Fatalf("expected different instant to pass, got %s", got)
	}
}

func TestEvaluateAccepts(t *testing.T) {
	at := time.Date(2025, 1, 5, 9, 0, 0, 0, time.UTC)
	got := Evaluate(Candidate{
		At:       at,
		Schedule: utcSchedule(t),
		Doctor:   sundayToThursday("09:00", "17:00"),
	})
	if !got.OK() {
		t.Fatalf("expected slot to be accepted, got %s", got)
	}
}

func TestReasonHelpers(t *testing.T) {
	if !ReasonAlreadyBooked.SuggestsAlternatives() || !ReasonDoctorNotAvailableDay.SuggestsAlternatives() {
		t.Fatalf("expected alternatives for booked/not-available-day")
	}
	if ReasonOutsideWorkingHours.SuggestsAlternatives() {
		t.Fatalf("outside hours should not suggest alternatives")
	}
	if !ReasonOTPMismatch.Verification() || ReasonBookingNotFound.Verification() {
		t.Fatalf("unexpected verification classification")
	}
}
