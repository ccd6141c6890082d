package bookings

import "errors"

var (
	// ErrDoctorNotFound is returned when no doctor matches a name and branch.
	ErrDoctorNotFound = errors.New("bookings: doctor not found")

	// ErrBookingNotFound is returned when an appointment id does not exist.
	ErrBookingNotFound = errors.New("bookings: booking not found")

	// ErrSlotTaken is returned when another active appointment already holds
	// the doctor's slot at write time.
	ErrSlotTaken = errors.New("bookings: slot already taken")
)
