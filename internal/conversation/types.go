// Package conversation runs a patient chat session: it records turns,
// extracts intent and entities, drives booking mutations and picks the
// localized reply for each turn.
package conversation

import (
	"maps"
	"regexp"
	"strings"
	"time"

	"github.com/wolfman30/dental-concierge/internal/language"
	"github.com/wolfman30/dental-concierge/internal/rules"
)

// Intent is the classified purpose of the conversation.
type Intent string

const (
	IntentBookAppointment       Intent = "BOOK_APPOINTMENT"
	IntentCancelAppointment     Intent = "CANCEL_APPOINTMENT"
	IntentRescheduleAppointment Intent = "RESCHEDULE_APPOINTMENT"
	IntentInquiry               Intent = "INQUIRY"
	IntentUnknown               Intent = "UNKNOWN"
	IntentFollowUp              Intent = "FOLLOW_UP"
	IntentOrthodonticsInquiry   Intent = "ORTHODONTICS_INQUIRY"
	IntentReminderCall          Intent = "REMINDER_CALL"
)

var knownIntents = map[Intent]struct{}{
	IntentBookAppointment:       {},
	IntentCancelAppointment:     {},
	IntentRescheduleAppointment: {},
	IntentInquiry:               {},
	IntentUnknown:               {},
	IntentFollowUp:              {},
	IntentOrthodonticsInquiry:   {},
	IntentReminderCall:          {},
}

var intentSeparators = regexp.MustCompile(`[\s-]+`)

// NormalizeIntent maps a raw label such as "book appointment" onto the
// closed intent set. ok is false for anything outside it.
func NormalizeIntent(raw string) (Intent, bool) {
	label := strings.ToUpper(strings.TrimSpace(raw))
	if label == "" {
		return "", false
	}
	label = intentSeparators.ReplaceAllString(label, "_")
	intent := Intent(label)
	if _, ok := knownIntents[intent]; !ok {
		return "", false
	}
	return intent, true
}

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is one immutable utterance in a session.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Intent    Intent    `json:"intent,omitempty"`
	Entities  *Entities `json:"entities,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Entities holds the structured facts captured so far. A field that has
// been set is only ever replaced by another non-empty value.
type Entities struct {
	CustomerName    string            `json:"customerName,omitempty"`
	PhoneNumber     string            `json:"phoneNumber,omitempty"`
	Email           string            `json:"email,omitempty"`
	Service         string            `json:"service,omitempty"`
	ServiceType     string            `json:"serviceType,omitempty"`
	AppointmentDate string            `json:"appointmentDate,omitempty"`
	AppointmentTime string            `json:"appointmentTime,omitempty"`
	Notes           string            `json:"notes,omitempty"`
	BookingID       string            `json:"bookingId,omitempty"`
	DoctorName      string            `json:"doctorName,omitempty"`
	ClinicBranch    string            `json:"clinicBranch,omitempty"`
	OTP             string            `json:"otp,omitempty"`
	Extra           map[string]string `json:"extra,omitempty"`
}

type entityField struct {
	key string
	ptr func(*Entities) *string
}

// entityFields lists the typed fields with their canonical keys. The order
// is the order keys are presented to the language model.
var entityFields = []entityField{
	{"customer_name", func(e *Entities) *string { return &e.CustomerName }},
	{"phone_number", func(e *Entities) *string { return &e.PhoneNumber }},
	{"email", func(e *Entities) *string { return &e.Email }},
	{"service", func(e *Entities) *string { return &e.Service }},
	{"service_type", func(e *Entities) *string { return &e.ServiceType }},
	{"appointment_date", func(e *Entities) *string { return &e.AppointmentDate }},
	{"appointment_time", func(e *Entities) *string { return &e.AppointmentTime }},
	{"notes", func(e *Entities) *string { return &e.Notes }},
	{"booking_id", func(e *Entities) *string { return &e.BookingID }},
	{"doctor_name", func(e *Entities) *string { return &e.DoctorName }},
	{"clinic_branch", func(e *Entities) *string { return &e.ClinicBranch }},
	{"otp", func(e *Entities) *string { return &e.OTP }},
}

// fieldByKey indexes entityFields by squashed key so "customerName",
// "customer_name" and "CustomerName" all resolve to the same field.
var fieldByKey = func() map[string]entityField {
	out := make(map[string]entityField, len(entityFields)+2)
	for _, f := range entityFields {
		out[squashKey(f.key)] = f
	}
	// aliases seen in model output
	out["provider"] = out["doctorname"]
	out["phone"] = out["phonenumber"]
	return out
}()

func squashKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(key)
}

// EntityKeys returns the canonical snake_case keys of the typed fields.
func EntityKeys() []string {
	keys := make([]string, 0, len(entityFields))
	for _, f := range entityFields {
		keys = append(keys, f.key)
	}
	return keys
}

// Get returns the value stored under key, consulting Extra for keys that
// are not typed fields.
func (e Entities) Get(key string) string {
	if f, ok := fieldByKey[squashKey(key)]; ok {
		return *f.ptr(&e)
	}
	return e.Extra[key]
}

// Set stores a trimmed value under key. Blank values are ignored so a
// known field is never cleared.
func (e *Entities) Set(key, value string) {
	value = strings.TrimSpace(value)
	if value == "" || strings.TrimSpace(key) == "" {
		return
	}
	if f, ok := fieldByKey[squashKey(key)]; ok {
		*f.ptr(e) = value
		return
	}
	if e.Extra == nil {
		e.Extra = make(map[string]string)
	}
	e.Extra[strings.TrimSpace(key)] = value
}

// Merge overlays the non-empty values of other onto e.
func (e *Entities) Merge(other Entities) {
	for _, f := range entityFields {
		e.Set(f.key, *f.ptr(&other))
	}
	for k, v := range other.Extra {
		e.Set(k, v)
	}
}

// Value returns the entity backing a required rules field.
func (e Entities) Value(f rules.Field) string {
	switch f {
	case rules.FieldDoctorName:
		return e.DoctorName
	case rules.FieldClinicBranch:
		return e.ClinicBranch
	case rules.FieldAppointmentDate:
		return e.AppointmentDate
	case rules.FieldAppointmentTime:
		return e.AppointmentTime
	case rules.FieldCustomerName:
		return e.CustomerName
	case rules.FieldPhoneNumber:
		return e.PhoneNumber
	case rules.FieldServiceType:
		return e.ServiceType
	case rules.FieldBookingID:
		return e.BookingID
	}
	return ""
}

// IsZero reports whether nothing has been captured.
func (e Entities) IsZero() bool {
	for _, f := range entityFields {
		if *f.ptr(&e) != "" {
			return false
		}
	}
	return len(e.Extra) == 0
}

// Clone returns a deep copy.
func (e Entities) Clone() Entities {
	e.Extra = maps.Clone(e.Extra)
	return e
}

// reconcileService copies service into serviceType and back when only one
// of the synonyms was captured.
func (e *Entities) reconcileService() {
	switch {
	case e.ServiceType == "" && e.Service != "":
		e.ServiceType = e.Service
	case e.Service == "" && e.ServiceType != "":
		e.Service = e.ServiceType
	}
}

// ChatMessage is the provider-neutral message shape handed to extractors.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// State is the in-memory record of one session.
type State struct {
	SessionID     string          `json:"sessionId"`
	Turns         []Turn          `json:"turns"`
	CurrentIntent Intent          `json:"currentIntent"`
	Entities      Entities        `json:"entities"`
	Language      language.Locale `json:"language"`
	OpenedAt      time.Time       `json:"openedAt"`
}

// Snapshot returns a deep copy safe to hand outside the session lock.
func (s State) Snapshot() State {
	out := s
	out.Entities = s.Entities.Clone()
	out.Turns = make([]Turn, len(s.Turns))
	for i, t := range s.Turns {
		if t.Entities != nil {
			cp := t.Entities.Clone()
			t.Entities = &cp
		}
		out.Turns[i] = t
	}
	return out
}

// History converts turns to chat messages, oldest first.
func (s State) History() []ChatMessage {
	out := make([]ChatMessage, 0, len(s.Turns))
	for _, t := range s.Turns {
		out = append(out, ChatMessage{Role: t.Role, Content: t.Text})
	}
	return out
}

func (s State) assistantReplied() bool {
	for _, t := range s.Turns {
		if t.Role == RoleAssistant {
			return true
		}
	}
	return false
}

func (s State) lastUserTurn() (int, bool) {
	for i := len(s.Turns) - 1; i >= 0; i-- {
		if s.Turns[i].Role == RoleUser {
			return i, true
		}
	}
	return -1, false
}
