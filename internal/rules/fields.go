package rules

import (
	"strings"

	"github.com/wolfman30/dental-concierge/internal/language"
)

// Field names a conversation entity that a booking operation can require.
type Field string

const (
	FieldDoctorName      Field = "doctorName"
	FieldClinicBranch    Field = "clinicBranch"
	FieldAppointmentDate Field = "appointmentDate"
	FieldAppointmentTime Field = "appointmentTime"
	FieldCustomerName    Field = "customerName"
	FieldPhoneNumber     Field = "phoneNumber"
	FieldServiceType     Field = "serviceType"
	FieldBookingID       Field = "bookingId"
)

var fieldLabels = map[Field][2]string{
	FieldDoctorName:      {"اسم الطبيب", "doctor's name"},
	FieldClinicBranch:    {"فرع العيادة", "clinic branch"},
	FieldAppointmentDate: {"تاريخ الموعد", "appointment date"},
	FieldAppointmentTime: {"وقت الموعد", "appointment time"},
	FieldCustomerName:    {"اسم المريض", "patient name"},
	FieldPhoneNumber:     {"رقم الجوال", "phone number"},
	FieldServiceType:     {"نوع الخدمة", "service type"},
	FieldBookingID:       {"رقم الحجز", "booking ID"},
}

// Required field sets, in the order labels are presented to the caller.
var (
	BookingFields = []Field{
		FieldDoctorName,
		FieldClinicBranch,
		FieldAppointmentDate,
		FieldAppointmentTime,
		FieldCustomerName,
		FieldPhoneNumber,
		FieldServiceType,
	}
	RescheduleFields = []Field{FieldBookingID, FieldAppointmentDate, FieldAppointmentTime}
	CancelFields     = []Field{FieldBookingID}
)

// Label returns the human label for f in locale l.
func (f Field) Label(l language.Locale) string {
	labels, ok := fieldLabels[f]
	if !ok {
		return string(f)
	}
	if l == language.Arabic {
		return labels[0]
	}
	return labels[1]
}

// Missing returns the required fields whose value is blank, preserving the
// order of required. An empty result means the operation may proceed.
func Missing(required []Field, value func(Field) string) []Field {
	var missing []Field
	for _, f := range required {
		if strings.TrimSpace(value(f)) == "" {
			missing = append(missing, f)
		}
	}
	return missing
}

// Labels localizes fields.
func Labels(fields []Field, l language.Locale) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, f.Label(l))
	}
	return out
}
