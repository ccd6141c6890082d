// Package reply turns a slug, a locale and a set of placeholder values into
// the assistant's localized text.
package reply

import (
	"regexp"
	"strings"
)

// Placeholder names a value a template may reference as {{ name }}.
type Placeholder string

const (
	DoctorName      Placeholder = "doctor_name"
	ClinicBranch    Placeholder = "clinic_branch"
	AppointmentDate Placeholder = "appointment_date"
	AppointmentTime Placeholder = "appointment_time"
	ServiceType     Placeholder = "service_type"
	PatientName     Placeholder = "patient_name"
	PatientPhone    Placeholder = "patient_phone"
	Notes           Placeholder = "notes"
	BookingID       Placeholder = "booking_id"
	MissingFields   Placeholder = "missing_fields"
	Reason          Placeholder = "reason"
	AgentName       Placeholder = "agent_name"
	DoctorNames     Placeholder = "doctor_names"
)

var knownPlaceholders = map[Placeholder]struct{}{
	DoctorName: {}, ClinicBranch: {}, AppointmentDate: {}, AppointmentTime: {},
	ServiceType: {}, PatientName: {}, PatientPhone: {}, Notes: {}, BookingID: {},
	MissingFields: {}, Reason: {}, AgentName: {}, DoctorNames: {},
}

// Known reports whether p belongs to the closed placeholder set.
func (p Placeholder) Known() bool {
	_, ok := knownPlaceholders[p]
	return ok
}

// Values maps placeholders to their substitution text.
type Values map[Placeholder]string

// Has reports whether every listed placeholder has a non-blank value.
func (v Values) Has(ps ...Placeholder) bool {
	for _, p := range ps {
		if strings.TrimSpace(v[p]) == "" {
			return false
		}
	}
	return true
}

// Rendered is the output of Render. Missing lists the placeholders that
// were unknown or had no value; they render as "".
type Rendered struct {
	Text    string
	Missing []string
}

var placeholderPattern = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)

// Render substitutes {{ name }} placeholders in tmpl.
func Render(tmpl string, values Values) Rendered {
	var missing []string
	seen := make(map[string]bool)
	text := placeholderPattern.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := placeholderPattern.FindStringSubmatch(m)[1]
		p := Placeholder(name)
		if v, ok := values[p]; ok && p.Known() && v != "" {
			return v
		}
		if !seen[name] {
			seen[name] = true
			missing = append(missing, name)
		}
		return ""
	})
	return Rendered{Text: strings.TrimSpace(collapseSpaces(text)), Missing: missing}
}

func collapseSpaces(s string) string {
	if !strings.Contains(s, "  ") {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	return strings.Join(lines, "\n")
}
