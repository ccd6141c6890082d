package bookings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/dental-concierge/internal/clinic"
	"github.com/wolfman30/dental-concierge/internal/rules"
	"github.com/wolfman30/dental-concierge/pkg/logging"
)

var bookingsTracer = otel.Tracer("dental.internal.bookings")

// OutcomeObserver records booking outcomes, typically as metrics.
type OutcomeObserver interface {
	ObserveBooking(operation string, reason rules.Reason)
}

// Service applies business rules around the repository: doctor resolution,
// availability checks in a fixed order, and cancellation verification.
type Service struct {
	repo     Repository
	schedule clinic.Schedule
	logger   *logging.Logger
	observer OutcomeObserver
	now      func() time.Time
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithClock overrides the time source used for relative dates and cancel
// timestamps.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithOutcomeObserver attaches a metrics sink.
func WithOutcomeObserver(o OutcomeObserver) ServiceOption {
	return func(s *Service) {
		s.observer = o
	}
}

// NewService constructs a bookings service.
func NewService(repo Repository, schedule clinic.Schedule, logger *logging.Logger, opts ...ServiceOption) *Service {
	if repo == nil {
		panic("bookings: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if schedule.Location == nil {
		schedule = clinic.DefaultSchedule()
	}
	s := &Service{
		repo:     repo,
		schedule: schedule,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule returns the clinic schedule the service validates against.
func (s *Service) Schedule() clinic.Schedule {
	return s.schedule
}

// Create books a new appointment. Rule violations come back as a failed
// Result; only unexpected repository failures return an error.
func (s *Service) Create(ctx context.Context, req Request) (Result, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.create")
	defer span.End()
	span.SetAttributes(
		attribute.String("dental.doctor", req.DoctorName),
		attribute.String("dental.branch", req.ClinicBranch),
	)

	doctor, err := s.repo.FindDoctor(ctx, req.DoctorName, req.ClinicBranch)
	if errors.Is(err, ErrDoctorNotFound) {
		return s.reject("create", rules.ReasonDoctorNotFound), nil
	}
	if err != nil {
		return s.internal(span, "create", err)
	}

	at, err := rules.ResolveAppointment(req.AppointmentDate, req.AppointmentTime, s.schedule.Location, s.now())
	if err != nil {
		return s.reject("create", rules.ReasonInvalidDateTime), nil
	}

	reason, err := s.evaluate(ctx, doctor, at, "")
	if err != nil {
		return s.internal(span, "create", err)
	}
	if !reason.OK() {
		return s.reject("create", reason), nil
	}

	appt := &Appointment{
		DoctorID:     doctor.ID,
		DoctorName:   doctor.Name,
		ClinicBranch: doctor.Branch,
		PatientName:  strings.TrimSpace(req.PatientName),
		PatientPhone: strings.TrimSpace(req.PatientPhone),
		ServiceType:  strings.TrimSpace(req.ServiceType),
		Notes:        strings.TrimSpace(req.Notes),
		OTP:          strings.TrimSpace(req.OTP),
		StartsAt:     at,
		Status:       StatusConfirmed,
	}
	if err := s.repo.CreateAppointment(ctx, appt); err != nil {
		if errors.Is(err, ErrSlotTaken) {
			return s.reject("create", rules.ReasonAlreadyBooked), nil
		}
		return s.internal(span, "create", err)
	}

	span.SetAttributes(attribute.String("dental.booking_id", appt.ID))
	s.logger.Info("booking confirmed", "booking_id", appt.ID, "doctor_id", doctor.ID, "starts_at", appt.StartsAt)
	s.observe("create", rules.ReasonNone)
	return succeeded(appt), nil
}

// Update reschedules or edits an existing appointment. Changing the doctor
// requires both the doctor name and branch.
func (s *Service) Update(ctx context.Context, id string, changes Changes) (Result, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.update")
	defer span.End()
	span.SetAttributes(attribute.String("dental.booking_id", id))

	existing, err := s.repo.FindAppointment(ctx, strings.TrimSpace(id))
	if errors.Is(err, ErrBookingNotFound) {
		return s.reject("update", rules.ReasonBookingNotFound), nil
	}
	if err != nil {
		return s.internal(span, "update", err)
	}
	if existing.Status == StatusCancelled {
		return s.reject("update", rules.ReasonBookingNotFound), nil
	}

	var doctor *Doctor
	if doctorChanged(existing, changes) {
		if strings.TrimSpace(changes.DoctorName) == "" || strings.TrimSpace(changes.ClinicBranch) == "" {
			return s.reject("update", rules.ReasonDoctorDataIncomplete), nil
		}
		doctor, err = s.repo.FindDoctor(ctx, changes.DoctorName, changes.ClinicBranch)
	} else {
		doctor, err = s.repo.FindDoctor(ctx, existing.DoctorName, existing.ClinicBranch)
	}
	if errors.Is(err, ErrDoctorNotFound) {
		return s.reject("update", rules.ReasonDoctorNotFound), nil
	}
	if err != nil {
		return s.internal(span, "update", err)
	}

	local := s.schedule.Local(existing.StartsAt)
	date := firstNonEmpty(changes.AppointmentDate, local.Format("2006-01-02"))
	clock := firstNonEmpty(changes.AppointmentTime, local.Format("15:04"))
	at, err := rules.ResolveAppointment(date, clock, s.schedule.Location, s.now())
	if err != nil {
		return s.reject("update", rules.ReasonInvalidDateTime), nil
	}

	reason, err := s.evaluate(ctx, doctor, at, existing.ID)
	if err != nil {
		return s.internal(span, "update", err)
	}
	if !reason.OK() {
		return s.reject("update", reason), nil
	}

	updated := *existing
	updated.DoctorID = doctor.ID
	updated.DoctorName = doctor.Name
	updated.ClinicBranch = doctor.Branch
	updated.PatientName = firstNonEmpty(changes.PatientName, existing.PatientName)
	updated.PatientPhone = firstNonEmpty(changes.PatientPhone, existing.PatientPhone)
	updated.ServiceType = firstNonEmpty(changes.ServiceType, existing.ServiceType)
	updated.Notes = firstNonEmpty(changes.Notes, existing.Notes)
	updated.StartsAt = at
	updated.Status = StatusConfirmed

	if err := s.repo.UpdateAppointment(ctx, &updated); err != nil {
		switch {
		case errors.Is(err, ErrSlotTaken):
			return s.reject("update", rules.ReasonAlreadyBooked), nil
		case errors.Is(err, ErrBookingNotFound):
			return s.reject("update", rules.ReasonBookingNotFound), nil
		}
		return s.internal(span, "update", err)
	}

	s.logger.Info("booking rescheduled", "booking_id", updated.ID, "doctor_id", updated.DoctorID, "starts_at", updated.StartsAt)
	s.observe("update", rules.ReasonNone)
	return succeeded(&updated), nil
}

// Cancel marks a booking cancelled. Cancelling twice reports success both
// times; the existence check always runs first.
func (s *Service) Cancel(ctx context.Context, req CancelRequest) (Result, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.cancel")
	defer span.End()
	span.SetAttributes(attribute.String("dental.booking_id", req.ID))

	existing, err := s.repo.FindAppointment(ctx, strings.TrimSpace(req.ID))
	if errors.Is(err, ErrBookingNotFound) {
		return s.reject("cancel", rules.ReasonBookingNotFound), nil
	}
	if err != nil {
		return s.internal(span, "cancel", err)
	}
	if reason := verifyCancel(existing, req); !reason.OK() {
		s.logger.Warn("booking cancel verification failed", "booking_id", existing.ID, "reason", reason)
		return s.reject("cancel", reason), nil
	}
	if existing.Status == StatusCancelled {
		s.observe("cancel", rules.ReasonNone)
		return succeeded(existing), nil
	}

	cancelled, err := s.repo.CancelAppointment(ctx, existing.ID, s.now())
	if errors.Is(err, ErrBookingNotFound) {
		return s.reject("cancel", rules.ReasonBookingNotFound), nil
	}
	if err != nil {
		return s.internal(span, "cancel", err)
	}

	s.logger.Info("booking cancelled", "booking_id", cancelled.ID)
	s.observe("cancel", rules.ReasonNone)
	return succeeded(cancelled), nil
}

// AvailabilityQuery narrows AvailableDoctors. Time is optional; without it
// only the doctor's working day is considered.
type AvailabilityQuery struct {
	Branch string
	Date   string
	Time   string
}

// AvailableDoctors lists doctors at the branch who work on the requested
// date and, when a time is given, are free and on shift at that time.
func (s *Service) AvailableDoctors(ctx context.Context, q AvailabilityQuery) ([]Doctor, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.available_doctors")
	defer span.End()

	clock := strings.TrimSpace(q.Time)
	withTime := clock != ""
	if !withTime {
		clock = "00:00"
	}
	at, err := rules.ResolveAppointment(q.Date, clock, s.schedule.Location, s.now())
	if err != nil {
		return nil, fmt.Errorf("bookings: available doctors: %w", err)
	}

	doctors, err := s.repo.ListDoctors(ctx, q.Branch)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	local := s.schedule.Local(at)
	var out []Doctor
	for _, d := range doctors {
		if !withTime {
			if s.schedule.IsOpenDay(at) && d.Window.CoversDay(local.Weekday()) {
				out = append(out, d)
			}
			continue
		}
		reason, err := s.evaluate(ctx, &d, at, "")
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		if reason.OK() {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *Service) evaluate(ctx context.Context, doctor *Doctor, at time.Time, excludeID string) (rules.Reason, error) {
	local := s.schedule.Local(at)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
	booked, err := s.repo.ListActiveAppointments(ctx, doctor.ID, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return rules.ReasonNone, err
	}
	slots := make([]rules.Slot, 0, len(booked))
	for _, appt := range booked {
		slots = append(slots, appt.slot())
	}
	return rules.Evaluate(rules.Candidate{
		At:        at,
		Schedule:  s.schedule,
		Doctor:    doctor.Window,
		Booked:    slots,
		ExcludeID: excludeID,
	}), nil
}

func (s *Service) reject(operation string, reason rules.Reason) Result {
	s.logger.Debug("booking rejected", "operation", operation, "reason", reason)
	s.observe(operation, reason)
	return failed(reason)
}

func (s *Service) internal(span trace.Span, operation string, err error) (Result, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.logger.Error("booking operation failed", "operation", operation, "error", err)
	s.observe(operation, rules.ReasonInternal)
	return failed(rules.ReasonInternal), fmt.Errorf("bookings: %s: %w", operation, err)
}

func (s *Service) observe(operation string, reason rules.Reason) {
	if s.observer != nil {
		s.observer.ObserveBooking(operation, reason)
	}
}

func doctorChanged(existing *Appointment, changes Changes) bool {
	name := strings.TrimSpace(changes.DoctorName)
	branch := strings.TrimSpace(changes.ClinicBranch)
	if name == "" && branch == "" {
		return false
	}
	if name != "" && NormalizeDoctorName(name) != NormalizeDoctorName(existing.DoctorName) {
		return true
	}
	return branch != "" && !sameBranch(branch, existing.ClinicBranch)
}

func verifyCancel(existing *Appointment, req CancelRequest) rules.Reason {
	if name := strings.TrimSpace(req.PatientName); name != "" && existing.PatientName != "" {
		if !strings.EqualFold(strings.Join(strings.Fields(name), " "), strings.Join(strings.Fields(existing.PatientName), " ")) {
			return rules.ReasonNameMismatch
		}
	}
	if phone := strings.TrimSpace(req.PatientPhone); phone != "" && existing.PatientPhone != "" {
		if !samePhone(phone, existing.PatientPhone) {
			return rules.ReasonPhoneMismatch
		}
	}
	if otp := strings.TrimSpace(req.OTP); otp != "" && existing.OTP != "" && otp != existing.OTP {
		return rules.ReasonOTPMismatch
	}
	return rules.ReasonNone
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
