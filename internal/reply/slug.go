package reply

import "github.com/wolfman30/dental-concierge/internal/rules"

// Slug identifies a reply template.
type Slug string

const (
	SlugGreeting           Slug = "greeting.initial"
	SlugMissingFields      Slug = "booking.missing_fields"
	SlugBookingConfirmed   Slug = "booking.confirmed"
	SlugBookingCancelled   Slug = "booking.cancelled"
	SlugBookingRescheduled Slug = "booking.rescheduled"
	SlugBookingReminder    Slug = "booking.reminder"
	SlugInquiry            Slug = "inquiry.general"
	SlugFollowUp           Slug = "follow_up.general"
	SlugOrthodontics       Slug = "service.orthodontics"
	SlugUnknown            Slug = "fallback.unknown"
	SlugAlternatives       Slug = "booking.alternatives"

	SlugFailureDoctorNotFound Slug = "booking.failure_doctor_not_found"
	SlugFailureNotAvailable   Slug = "booking.failure_not_available_day"
	SlugFailureOutsideHours   Slug = "booking.failure_outside_hours"
	SlugFailureAlreadyBooked  Slug = "booking.failure_already_booked"
	SlugFailureVerification   Slug = "booking.failure_verification"
	SlugFailureGeneral        Slug = "booking.failure_general"
)

// FailureSlug maps a rejection reason to its reply template.
func FailureSlug(reason rules.Reason) Slug {
	switch {
	case reason == rules.ReasonDoctorNotFound:
		return SlugFailureDoctorNotFound
	case reason == rules.ReasonDoctorNotAvailableDay:
		return SlugFailureNotAvailable
	case reason == rules.ReasonOutsideWorkingHours:
		return SlugFailureOutsideHours
	case reason == rules.ReasonAlreadyBooked:
		return SlugFailureAlreadyBooked
	case reason.Verification():
		return SlugFailureVerification
	default:
		return SlugFailureGeneral
	}
}
