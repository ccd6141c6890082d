package rules

import (
	"time"

	"github.com/wolfman30/dental-concierge/internal/clinic"
)

// Slot is an existing appointment occupying a doctor's calendar.
type Slot struct {
	AppointmentID string
	StartsAt      time.Time
	Active        bool
}

// Candidate is a proposed appointment time for one doctor.
type Candidate struct {
	At        time.Time
	Schedule  clinic.Schedule
	Doctor    clinic.Window
	Booked    []Slot
	ExcludeID string
}

// CheckClinicHours rejects closed weekdays and times outside the clinic's
// [open, close) interval.
func CheckClinicHours(s clinic.Schedule, at time.Time) Reason {
	if !s.IsOpenAt(at) {
		return ReasonOutsideWorkingHours
	}
	return ReasonNone
}

// CheckDoctorDay rejects weekdays the doctor does not work. at must already
// be in clinic local time.
func CheckDoctorDay(w clinic.Window, at time.Time) Reason {
	if !w.CoversDay(at.Weekday()) {
		return ReasonDoctorNotAvailableDay
	}
	return ReasonNone
}

// CheckDoctorHours rejects times outside the doctor's own window. at must
// already be in clinic local time.
func CheckDoctorHours(w clinic.Window, at time.Time) Reason {
	if !w.CoversClock(at) {
		return ReasonOutsideWorkingHours
	}
	return ReasonNone
}

// CheckSlotConflict rejects at when another active appointment starts at the
// same instant. excludeID skips the appointment being rescheduled.
func CheckSlotConflict(booked []Slot, at time.Time, excludeID string) Reason {
	for _, slot := range booked {
		if !slot.Active || (excludeID != "" && slot.AppointmentID == excludeID) {
			continue
		}
		if slot.StartsAt.Equal(at) {
			return ReasonAlreadyBooked
		}
	}
	return ReasonNone
}

// Evaluate runs the availability checks in a fixed order and returns the
// first violation: doctor day, clinic hours, doctor hours, slot conflict.
func Evaluate(c Candidate) Reason {
	local := c.Schedule.Local(c.At)
	if r := CheckDoctorDay(c.Doctor, local); !r.OK() {
		return r
	}
	if r := CheckClinicHours(c.Schedule, c.At); !r.OK() {
		return r
	}
	if r := CheckDoctorHours(c.Doctor, local); !r.OK() {
		return r
	}
	return CheckSlotConflict(c.Booked, c.At, c.ExcludeID)
}
