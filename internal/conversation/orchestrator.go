package conversation

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/dental-concierge/internal/bookings"
	"github.com/wolfman30/dental-concierge/internal/clinic"
	"github.com/wolfman30/dental-concierge/internal/language"
	"github.com/wolfman30/dental-concierge/internal/reply"
	"github.com/wolfman30/dental-concierge/internal/rules"
	"github.com/wolfman30/dental-concierge/pkg/logging"
)

var (
	ErrEmptyMessage  = errors.New("conversation: message is empty")
	ErrSessionClosed = errors.New("conversation: session closed")
)

// DefaultBookingTimeout bounds a single booking mutation.
const DefaultBookingTimeout = 10 * time.Second

// BookingService is the booking layer the orchestrator drives.
type BookingService interface {
	Create(ctx context.Context, req bookings.Request) (bookings.Result, error)
	Update(ctx context.Context, id string, changes bookings.Changes) (bookings.Result, error)
	Cancel(ctx context.Context, req bookings.CancelRequest) (bookings.Result, error)
	AvailableDoctors(ctx context.Context, q bookings.AvailabilityQuery) ([]bookings.Doctor, error)
	Schedule() clinic.Schedule
}

// ReplyResolver renders a slug for a locale.
type ReplyResolver interface {
	Resolve(ctx context.Context, slug reply.Slug, locale language.Locale, values reply.Values) reply.Resolved
}

// Observer receives per-turn outcomes. Implementations must be safe for
// concurrent use.
type Observer interface {
	ObserveExtraction(outcome string, elapsed time.Duration)
	ObserveReply(intent, slug, source string)
}

var (
	greetingPatterns = map[language.Locale]*regexp.Regexp{
		language.English: regexp.MustCompile(`(?i)^(hi|hello|hey|hiya|greetings|good\s+(morning|afternoon|evening))(\s+there)?[\s!.,?]*$`),
		language.Arabic:  regexp.MustCompile(`^(مرحبا|مرحباً|مرحبًا|اهلا|أهلا|أهلاً|اهلاً|هلا|هاي|سلام|السلام عليكم|صباح الخير|مساء الخير)[\s!.,،؟?]*$`),
	}
	followUpPattern = regexp.MustCompile(`(?i)متابعة|متابعه|بعد العلاج|hygiene|follow[- ]?up|check`)
)

// IsGreeting reports whether text is nothing but a greeting in its
// detected language.
func IsGreeting(text string) bool {
	text = strings.TrimSpace(text)
	p, ok := greetingPatterns[language.Detect(text)]
	return ok && p.MatchString(text)
}

// Orchestrator owns one session's state. All methods are safe for
// concurrent use and run strictly one at a time.
type Orchestrator struct {
	mu     sync.Mutex
	state  State
	closed bool

	// sessionCtx is cancelled by Close so in-flight calls stop early.
	sessionCtx    context.Context
	sessionCancel context.CancelFunc

	extractor      Extractor
	bookings       BookingService
	replies        ReplyResolver
	logger         *logging.Logger
	observer       Observer
	now            func() time.Time
	bookingTimeout time.Duration
	agentName      string

	// slots remembers the date and time each booking was last confirmed for
	// in this session, keyed by booking id.
	slots map[string][2]string
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

func WithBookingTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.bookingTimeout = d
		}
	}
}

func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		o.observer = obs
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLocale sets the reply language used before the first user turn.
func WithLocale(l language.Locale) Option {
	return func(o *Orchestrator) {
		if l.Valid() {
			o.state.Language = l
		}
	}
}

// WithAgentName fills the {{agent_name}} placeholder.
func WithAgentName(name string) Option {
	return func(o *Orchestrator) {
		o.agentName = strings.TrimSpace(name)
	}
}

// NewOrchestrator opens a session. An empty sessionID gets a fresh uuid.
func NewOrchestrator(sessionID string, extractor Extractor, bookingSvc BookingService, replies ReplyResolver, logger *logging.Logger, opts ...Option) *Orchestrator {
	if extractor == nil {
		panic("conversation: extractor required")
	}
	if bookingSvc == nil {
		panic("conversation: booking service required")
	}
	if replies == nil {
		panic("conversation: reply resolver required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	o := &Orchestrator{
		extractor:      extractor,
		bookings:       bookingSvc,
		replies:        replies,
		now:            time.Now,
		bookingTimeout: DefaultBookingTimeout,
		slots:          make(map[string][2]string),
		state: State{
			SessionID:     sessionID,
			CurrentIntent: IntentUnknown,
			Language:      language.English,
		},
	}
	for _, opt := range opts {
		opt(o)
	}
	o.state.OpenedAt = o.now().UTC()
	o.logger = logger.With("session_id", sessionID)
	o.sessionCtx, o.sessionCancel = context.WithCancel(context.Background())
	return o
}

// SessionID returns the immutable session identifier.
func (o *Orchestrator) SessionID() string {
	return o.state.SessionID
}

// State returns a deep copy of the session state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Snapshot()
}

// Close discards the session; later ingests fail with ErrSessionClosed.
// An extraction or booking call already running is cancelled and its
// result is dropped.
func (o *Orchestrator) Close() {
	o.sessionCancel()
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
}

// IngestUserMessage records a user turn and updates intent and entities.
// Extraction failures leave state unchanged and are not returned.
func (o *Orchestrator) IngestUserMessage(ctx context.Context, text string) error {
	ctx, cancel := o.turnContext(ctx)
	defer cancel()
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ingest(ctx, text)
}

// GenerateAssistantReply produces exactly one non-empty reply for the
// current state and records it as an assistant turn.
func (o *Orchestrator) GenerateAssistantReply(ctx context.Context) string {
	ctx, cancel := o.turnContext(ctx)
	defer cancel()
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.generate(ctx)
}

// Turn ingests text and replies under a single lock.
func (o *Orchestrator) Turn(ctx context.Context, text string) (string, State, error) {
	ctx, cancel := o.turnContext(ctx)
	defer cancel()
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.ingest(ctx, text); err != nil {
		return "", State{}, err
	}
	answer := o.generate(ctx)
	if o.isClosed() {
		return "", State{}, ErrSessionClosed
	}
	return answer, o.state.Snapshot(), nil
}

// turnContext is done when either ctx or the session is.
func (o *Orchestrator) turnContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(o.sessionCtx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (o *Orchestrator) isClosed() bool {
	return o.closed || o.sessionCtx.Err() != nil
}

func (o *Orchestrator) ingest(ctx context.Context, text string) error {
	if o.isClosed() {
		return ErrSessionClosed
	}
	clean := Sanitize(text)
	if clean == "" {
		return ErrEmptyMessage
	}

	o.state.Language = language.Detect(clean)
	o.state.Turns = append(o.state.Turns, Turn{
		ID:        uuid.New().String(),
		Role:      RoleUser,
		Text:      clean,
		Timestamp: o.now().UTC(),
	})
	idx := len(o.state.Turns) - 1

	if !o.state.assistantReplied() && IsGreeting(clean) {
		o.logger.Debug("greeting received, skipping extraction")
		o.state.Turns[idx].Intent = o.state.CurrentIntent
		return nil
	}

	started := o.now()
	ext, err := o.extractor.Extract(ctx, o.state.History())
	if o.isClosed() {
		o.logger.Debug("session closed during extraction, result dropped")
		return ErrSessionClosed
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		o.logger.Warn("entity extraction failed", "error", err, "text", Redact(clean))
		o.observeExtraction("error", started)
		o.state.Turns[idx].Intent = o.state.CurrentIntent
		return nil
	}
	o.observeExtraction("ok", started)

	captured := ext.Entities.Clone()
	captured.reconcileService()
	o.state.Entities.Merge(captured)
	if ext.Intent != "" {
		o.state.CurrentIntent = ext.Intent
	}

	o.state.Turns[idx].Intent = o.state.CurrentIntent
	o.state.Turns[idx].Entities = &captured
	o.logger.Debug("turn analysed", "intent", o.state.CurrentIntent, "entity_count", countEntities(captured))
	return nil
}

// outcome is the reply decision for one turn.
type outcome struct {
	slug   reply.Slug
	values reply.Values
	suffix string
}

func (o *Orchestrator) generate(ctx context.Context) string {
	locale := o.state.Language
	out := o.decide(ctx, locale)

	resolved := o.replies.Resolve(ctx, out.slug, locale, out.values)
	text := resolved.Text
	if out.suffix != "" {
		text = strings.TrimSpace(text + " " + out.suffix)
	}
	if strings.TrimSpace(text) == "" {
		text, _ = reply.Builtin(reply.SlugUnknown, locale, nil)
	}
	if len(resolved.Missing) > 0 {
		o.logger.Debug("template placeholders unresolved", "slug", out.slug, "missing", resolved.Missing)
	}
	if o.observer != nil {
		o.observer.ObserveReply(string(o.state.CurrentIntent), string(resolved.Slug), string(resolved.Source))
	}

	if o.isClosed() {
		return text
	}
	snapshot := o.state.Entities.Clone()
	o.state.Turns = append(o.state.Turns, Turn{
		ID:        uuid.New().String(),
		Role:      RoleAssistant,
		Text:      text,
		Intent:    o.state.CurrentIntent,
		Entities:  &snapshot,
		Timestamp: o.now().UTC(),
	})
	return text
}

func (o *Orchestrator) decide(ctx context.Context, locale language.Locale) outcome {
	if !o.state.assistantReplied() {
		if i, ok := o.state.lastUserTurn(); ok && IsGreeting(o.state.Turns[i].Text) {
			return outcome{slug: reply.SlugGreeting, values: o.values()}
		}
	}

	switch o.state.CurrentIntent {
	case IntentBookAppointment:
		return o.book(ctx, locale)
	case IntentRescheduleAppointment:
		return o.reschedule(ctx, locale)
	case IntentCancelAppointment:
		return o.cancel(ctx, locale)
	case IntentInquiry:
		return outcome{slug: reply.SlugInquiry, values: o.values()}
	case IntentFollowUp:
		return outcome{slug: reply.SlugFollowUp, values: o.values()}
	case IntentOrthodonticsInquiry:
		return outcome{slug: reply.SlugOrthodontics, values: o.values()}
	case IntentReminderCall:
		return outcome{slug: reply.SlugBookingReminder, values: o.values()}
	default:
		if o.state.CurrentIntent == IntentUnknown && o.followUpRequested() {
			return outcome{slug: reply.SlugFollowUp, values: o.values()}
		}
		return outcome{slug: reply.SlugUnknown, values: o.values()}
	}
}

// followUpRequested reports a doctor named alongside follow-up wording in
// the latest user turn or the notes.
func (o *Orchestrator) followUpRequested() bool {
	if o.state.Entities.DoctorName == "" {
		return false
	}
	if i, ok := o.state.lastUserTurn(); ok && followUpPattern.MatchString(o.state.Turns[i].Text) {
		return true
	}
	return followUpPattern.MatchString(o.state.Entities.Notes)
}

func (o *Orchestrator) book(ctx context.Context, locale language.Locale) outcome {
	ents := o.state.Entities
	if missing := rules.Missing(rules.BookingFields, ents.Value); len(missing) > 0 {
		return o.missing(missing, locale)
	}
	if id := ents.BookingID; id != "" && o.slots[id] == [2]string{ents.AppointmentDate, ents.AppointmentTime} {
		return outcome{slug: reply.SlugBookingConfirmed, values: o.values()}
	}

	bctx, cancel := context.WithTimeout(ctx, o.bookingTimeout)
	defer cancel()
	result, err := o.bookings.Create(bctx, bookings.Request{
		DoctorName:      ents.DoctorName,
		ClinicBranch:    ents.ClinicBranch,
		PatientName:     ents.CustomerName,
		PatientPhone:    ents.PhoneNumber,
		ServiceType:     ents.ServiceType,
		AppointmentDate: ents.AppointmentDate,
		AppointmentTime: ents.AppointmentTime,
		Notes:           ents.Notes,
		OTP:             ents.OTP,
	})
	if err != nil || bctx.Err() != nil {
		o.logger.Error("booking create failed", "error", errors.Join(err, bctx.Err()))
		return outcome{slug: reply.SlugFailureGeneral, values: o.values()}
	}
	if !result.Success {
		return o.failure(ctx, result.Reason, locale)
	}
	if result.Appointment == nil {
		o.logger.Error("booking create returned no appointment")
		return outcome{slug: reply.SlugFailureGeneral, values: o.values()}
	}

	o.state.Entities.Set("booking_id", result.Appointment.ID)
	o.slots[result.Appointment.ID] = [2]string{ents.AppointmentDate, ents.AppointmentTime}
	o.logger.Info("booking created in conversation", "booking_id", result.Appointment.ID)
	return outcome{slug: reply.SlugBookingConfirmed, values: o.appointmentValues(result.Appointment)}
}

func (o *Orchestrator) reschedule(ctx context.Context, locale language.Locale) outcome {
	ents := o.state.Entities
	missing := rules.Missing(rules.RescheduleFields, ents.Value)
	if len(missing) == 0 && o.slots[ents.BookingID] == [2]string{ents.AppointmentDate, ents.AppointmentTime} {
		// Nothing new to move the booking to yet.
		missing = []rules.Field{rules.FieldAppointmentDate, rules.FieldAppointmentTime}
	}
	if len(missing) > 0 {
		return o.missing(missing, locale)
	}

	bctx, cancel := context.WithTimeout(ctx, o.bookingTimeout)
	defer cancel()
	result, err := o.bookings.Update(bctx, ents.BookingID, bookings.Changes{
		DoctorName:      ents.DoctorName,
		ClinicBranch:    ents.ClinicBranch,
		AppointmentDate: ents.AppointmentDate,
		AppointmentTime: ents.AppointmentTime,
	})
	if err != nil || bctx.Err() != nil {
		o.logger.Error("booking update failed", "error", errors.Join(err, bctx.Err()), "booking_id", ents.BookingID)
		return outcome{slug: reply.SlugFailureGeneral, values: o.values()}
	}
	if !result.Success {
		return o.failure(ctx, result.Reason, locale)
	}

	o.slots[ents.BookingID] = [2]string{ents.AppointmentDate, ents.AppointmentTime}
	return outcome{slug: reply.SlugBookingRescheduled, values: o.appointmentValues(result.Appointment)}
}

func (o *Orchestrator) cancel(ctx context.Context, locale language.Locale) outcome {
	ents := o.state.Entities
	if missing := rules.Missing(rules.CancelFields, ents.Value); len(missing) > 0 {
		return o.missing(missing, locale)
	}

	bctx, cancel := context.WithTimeout(ctx, o.bookingTimeout)
	defer cancel()
	result, err := o.bookings.Cancel(bctx, bookings.CancelRequest{
		ID:           ents.BookingID,
		PatientName:  ents.CustomerName,
		PatientPhone: ents.PhoneNumber,
		OTP:          ents.OTP,
	})
	if err != nil || bctx.Err() != nil {
		o.logger.Error("booking cancel failed", "error", errors.Join(err, bctx.Err()), "booking_id", ents.BookingID)
		return outcome{slug: reply.SlugFailureGeneral, values: o.values()}
	}
	if !result.Success {
		return o.failure(ctx, result.Reason, locale)
	}
	delete(o.slots, ents.BookingID)
	return outcome{slug: reply.SlugBookingCancelled, values: o.appointmentValues(result.Appointment)}
}

func (o *Orchestrator) missing(fields []rules.Field, locale language.Locale) outcome {
	values := o.values()
	values[reply.MissingFields] = language.Join(locale, rules.Labels(fields, locale))
	return outcome{slug: reply.SlugMissingFields, values: values}
}

func (o *Orchestrator) failure(ctx context.Context, reason rules.Reason, locale language.Locale) outcome {
	values := o.values()
	values[reply.Reason] = string(reason)
	out := outcome{slug: reply.FailureSlug(reason), values: values}
	if reason.SuggestsAlternatives() {
		out.suffix = o.alternatives(ctx, reason, locale)
	}
	return out
}

// alternatives lists other doctors free on the requested date. Any failure
// drops the suggestion.
func (o *Orchestrator) alternatives(ctx context.Context, reason rules.Reason, locale language.Locale) string {
	ents := o.state.Entities
	q := bookings.AvailabilityQuery{Branch: ents.ClinicBranch, Date: ents.AppointmentDate}
	if reason == rules.ReasonAlreadyBooked {
		q.Time = ents.AppointmentTime
	}

	bctx, cancel := context.WithTimeout(ctx, o.bookingTimeout)
	defer cancel()
	doctors, err := o.bookings.AvailableDoctors(bctx, q)
	if err != nil {
		o.logger.Debug("alternative doctors unavailable", "error", err)
		return ""
	}

	requested := bookings.NormalizeDoctorName(ents.DoctorName)
	var names []string
	for _, d := range doctors {
		if bookings.NormalizeDoctorName(d.Name) == requested {
			continue
		}
		names = append(names, bookings.StripDoctorTitle(d.Name))
	}
	if len(names) == 0 {
		return ""
	}

	values := o.values()
	values[reply.DoctorNames] = language.Join(locale, names)
	resolved := o.replies.Resolve(ctx, reply.SlugAlternatives, locale, values)
	if resolved.Source == reply.SourceFallback {
		return ""
	}
	return resolved.Text
}

func (o *Orchestrator) values() reply.Values {
	ents := o.state.Entities
	return reply.Values{
		reply.DoctorName:      bookings.StripDoctorTitle(ents.DoctorName),
		reply.ClinicBranch:    ents.ClinicBranch,
		reply.AppointmentDate: ents.AppointmentDate,
		reply.AppointmentTime: ents.AppointmentTime,
		reply.ServiceType:     ents.ServiceType,
		reply.PatientName:     ents.CustomerName,
		reply.PatientPhone:    ents.PhoneNumber,
		reply.Notes:           ents.Notes,
		reply.BookingID:       ents.BookingID,
		reply.AgentName:       o.agentName,
	}
}

func (o *Orchestrator) appointmentValues(appt *bookings.Appointment) reply.Values {
	values := o.values()
	if appt == nil {
		return values
	}
	local := o.bookings.Schedule().Local(appt.StartsAt)
	values[reply.DoctorName] = bookings.StripDoctorTitle(appt.DoctorName)
	values[reply.ClinicBranch] = appt.ClinicBranch
	values[reply.AppointmentDate] = local.Format("2006-01-02")
	values[reply.AppointmentTime] = local.Format("15:04")
	values[reply.BookingID] = appt.ID
	if appt.ServiceType != "" {
		values[reply.ServiceType] = appt.ServiceType
	}
	return values
}

func (o *Orchestrator) observeExtraction(result string, started time.Time) {
	if o.observer != nil {
		o.observer.ObserveExtraction(result, o.now().Sub(started))
	}
}

func countEntities(e Entities) int {
	n := len(e.Extra)
	for _, f := range entityFields {
		if *f.ptr(&e) != "" {
			n++
		}
	}
	return n
}
