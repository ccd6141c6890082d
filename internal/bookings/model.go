package bookings

import (
	"strings"
	"time"

	"github.com/wolfman30/dental-concierge/internal/clinic"
	"github.com/wolfman30/dental-concierge/internal/language"
	"github.com/wolfman30/dental-concierge/internal/rules"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// Active reports whether the appointment still occupies its slot.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

// Doctor is a practitioner working at one clinic branch.
type Doctor struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Branch string        `json:"branch"`
	Window clinic.Window `json:"window"`
}

// Appointment is a persisted booking.
type Appointment struct {
	ID           string     `json:"id"`
	DoctorID     string     `json:"doctor_id"`
	DoctorName   string     `json:"doctor_name"`
	ClinicBranch string     `json:"clinic_branch"`
	PatientName  string     `json:"patient_name"`
	PatientPhone string     `json:"patient_phone"`
	ServiceType  string     `json:"service_type"`
	Notes        string     `json:"notes,omitempty"`
	OTP          string     `json:"-"`
	StartsAt     time.Time  `json:"starts_at"`
	Status       Status     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
}

func (a Appointment) slot() rules.Slot {
	return rules.Slot{AppointmentID: a.ID, StartsAt: a.StartsAt, Active: a.Status.Active()}
}

// Request carries the captured fields for a new booking. Date and time are
// the raw strings gathered in conversation.
type Request struct {
	DoctorName      string `json:"doctor_name" validate:"required"`
	ClinicBranch    string `json:"clinic_branch" validate:"required"`
	PatientName     string `json:"patient_name" validate:"required"`
	PatientPhone    string `json:"patient_phone" validate:"required"`
	ServiceType     string `json:"service_type" validate:"required"`
	AppointmentDate string `json:"appointment_date" validate:"required"`
	AppointmentTime string `json:"appointment_time" validate:"required"`
	Notes           string `json:"notes,omitempty"`
	OTP             string `json:"otp,omitempty"`
}

// Changes describes an update. Blank fields keep their current value.
type Changes struct {
	DoctorName      string `json:"doctor_name,omitempty"`
	ClinicBranch    string `json:"clinic_branch,omitempty"`
	PatientName     string `json:"patient_name,omitempty"`
	PatientPhone    string `json:"patient_phone,omitempty"`
	ServiceType     string `json:"service_type,omitempty"`
	AppointmentDate string `json:"appointment_date,omitempty"`
	AppointmentTime string `json:"appointment_time,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

// CancelRequest identifies the booking to cancel. The optional patient
// fields and OTP are checked against the stored booking when supplied.
type CancelRequest struct {
	ID           string `json:"id"`
	PatientName  string `json:"patient_name,omitempty"`
	PatientPhone string `json:"patient_phone,omitempty"`
	OTP          string `json:"otp,omitempty"`
}

// Result is the outcome of a booking operation. Failures always carry a
// reason code.
type Result struct {
	Success     bool         `json:"success"`
	Reason      rules.Reason `json:"reason,omitempty"`
	Appointment *Appointment `json:"booking,omitempty"`
}

func succeeded(a *Appointment) Result {
	return Result{Success: true, Appointment: a}
}

func failed(reason rules.Reason) Result {
	return Result{Success: false, Reason: reason}
}

var doctorTitles = []string{"dr.", "dr ", "doctor ", "الدكتورة ", "الدكتور ", "دكتورة ", "دكتور ", "د. ", "د."}

// StripDoctorTitle removes a leading honorific such as "Dr." or "الدكتور"
// and collapses whitespace, preserving case.
func StripDoctorTitle(name string) string {
	n := strings.Join(strings.Fields(name), " ")
	lower := strings.ToLower(n)
	for _, title := range doctorTitles {
		if strings.HasPrefix(lower, title) {
			return strings.TrimSpace(n[len(title):])
		}
	}
	return n
}

// NormalizeDoctorName lower-cases a doctor name and strips honorifics so
// "Dr. Sara Haddad" and "sara haddad" resolve to the same practitioner.
func NormalizeDoctorName(name string) string {
	return strings.ToLower(StripDoctorTitle(name))
}

func sameBranch(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func phoneDigits(phone string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, language.NormalizeDigits(phone))
}

// samePhone compares digit strings, tolerating a country-code prefix on one
// side.
func samePhone(a, b string) bool {
	da, db := phoneDigits(a), phoneDigits(b)
	if da == "" || db == "" {
		return false
	}
	if da == db {
		return true
	}
	if len(da) < 7 || len(db) < 7 {
		return false
	}
	da = strings.TrimLeft(da, "0")
	db = strings.TrimLeft(db, "0")
	return strings.HasSuffix(da, db) || strings.HasSuffix(db, da)
}
