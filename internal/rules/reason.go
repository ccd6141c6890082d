// Package rules holds the side-effect-free business checks that gate every
// booking mutation: field completeness, clinic hours, doctor availability
// and slot conflicts.
package rules

// Reason is a machine-readable failure category. Callers branch on the
// code, never on message text.
type Reason string

const (
	ReasonNone                  Reason = ""
	ReasonDoctorNotFound        Reason = "DOCTOR_NOT_FOUND"
	ReasonDoctorNotAvailableDay Reason = "DOCTOR_NOT_AVAILABLE_DAY"
	ReasonOutsideWorkingHours   Reason = "OUTSIDE_WORKING_HOURS"
	ReasonAlreadyBooked         Reason = "ALREADY_BOOKED"
	ReasonBookingNotFound       Reason = "BOOKING_NOT_FOUND"
	ReasonDoctorDataIncomplete  Reason = "DOCTOR_DATA_INCOMPLETE"
	ReasonInvalidDateTime       Reason = "INVALID_DATETIME"
	ReasonNameMismatch          Reason = "NAME_MISMATCH"
	ReasonPhoneMismatch         Reason = "PHONE_MISMATCH"
	ReasonOTPMismatch           Reason = "OTP_MISMATCH"
	ReasonInternal              Reason = "INTERNAL_ERROR"
)

// OK reports whether r denotes "no violation".
func (r Reason) OK() bool {
	return r == ReasonNone
}

// SuggestsAlternatives reports whether offering other doctors for the same
// date makes sense after this failure.
func (r Reason) SuggestsAlternatives() bool {
	return r == ReasonAlreadyBooked || r == ReasonDoctorNotAvailableDay
}

// Verification reports whether r is an identity check failure on cancel.
func (r Reason) Verification() bool {
	return r == ReasonNameMismatch || r == ReasonPhoneMismatch || r == ReasonOTPMismatch
}
