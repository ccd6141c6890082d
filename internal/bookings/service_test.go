package bookings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wolfman30/dental-concierge/internal/clinic"
	"github.com/wolfman30/dental-concierge/internal/rules"
	"github.com/wolfman30/dental-concierge/pkg/logging"
)

// 2025-01-05 is a Sunday.
var testNow = time.Date(2025, 1, 5, 7, 0, 0, 0, time.UTC)

type recordingObserver struct {
	outcomes []string
}

func (r *recordingObserver) ObserveBooking(operation string, reason rules.Reason) {
	r.outcomes = append(r.outcomes, operation+":"+string(reason))
}

func newTestService(t *testing.T) (*Service, *InMemoryRepository) {
	t.Helper()
	schedule, err := clinic.NewSchedule("UTC", "09:00", "21:00", []time.Weekday{time.Friday, time.Saturday})
	if err != nil {
		t.Fatalf("NewSchedule: %v", err)
	}
	repo := NewInMemoryRepository()
	doctors := []Doctor{
		{Name: "Dr. Sara Haddad", Branch: "Abdoun", Window: clinic.Window{
			Days: []time.Weekday{time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday},
			Open: "09:00", Close: "17:00",
		}},
		{Name: "Dr. Omar Khalil", Branch: "Abdoun", Window: clinic.Window{
			Days: []time.Weekday{time.Sunday, time.Tuesday},
			Open: "09:00", Close: "21:00",
		}},
		{Name: "Dr. Rania Aziz", Branch: "Abdoun", Window: clinic.Window{
			Days: []time.Weekday{time.Monday},
			Open: "09:00", Close: "15:00",
		}},
	}
	if err := Seed(context.Background(), repo, doctors); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	svc := NewService(repo, schedule, logging.Default(), WithClock(func() time.Time { return testNow }))
	return svc, repo
}

func baseRequest() Request {
	return Request{
		DoctorName:      "Sara Haddad",
		ClinicBranch:    "abdoun",
		PatientName:     "Ahmad Ali",
		PatientPhone:    "0791234567",
		ServiceType:     "cleaning",
		AppointmentDate: "2025-01-05",
		AppointmentTime: "10:00",
		OTP:             "4242",
	}
}

func TestCreateBooksValidSlot(t *testing.T) {
	svc, _ := newTestService(t)
	res, err := svc.Create(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !res.Success || res.Appointment == nil {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.Appointment.DoctorName != "Dr. Sara Haddad" || res.Appointment.ClinicBranch != "Abdoun" {
		t.Fatalf("expected canonical doctor fields, got %+v", res.Appointment)
	}
	if res.Appointment.Status != StatusConfirmed {
		t.Fatalf("expected confirmed status, got %s", res.Appointment.Status)
	}
	if want := time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC); !res.Appointment.StartsAt.Equal(want) {
		t.Fatalf("starts_at = %s, want %s", res.Appointment.StartsAt, want)
	}
}

func TestCreateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Request)
		want   rules.Reason
	}{
		{"unknown doctor", func(r *Request) { r.DoctorName = "Dr. Nobody" }, rules.ReasonDoctorNotFound},
		{"wrong branch", func(r *Request) { r.ClinicBranch = "Sweifieh" }, rules.ReasonDoctorNotFound},
		{"friday", func(r *Request) { r.AppointmentDate = "2025-01-03" }, rules.ReasonDoctorNotAvailableDay},
		{"before opening", func(r *Request) { r.AppointmentTime = "08:00" }, rules.ReasonOutsideWorkingHours},
		{"after doctor shift", func(r *Request) { r.AppointmentTime = "6pm" }, rules.ReasonOutsideWorkingHours},
		{"garbage date", func(r *Request) { r.AppointmentDate = "someday" }, rules.ReasonInvalidDateTime},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t)
			req := baseRequest()
			tt.mutate(&req)
			res, err := svc.Create(context.Background(), req)
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			if res.Success || res.Reason != tt.want {
				t.Fatalf("expected %s, got %+v", tt.want, res)
			}
		})
	}
}

func TestCreateRejectsDoubleBooking(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	if res, _ := svc.Create(ctx, baseRequest()); !res.Success {
		t.Fatalf("first booking failed: %+v", res)
	}
	req := baseRequest()
	req.PatientName = "Someone Else"
	res, err := svc.Create(ctx, req)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if res.Reason != rules.ReasonAlreadyBooked {
		t.Fatalf("expected ALREADY_BOOKED, got %+v", res)
	}

	req.DoctorName = "Omar Khalil"
	if res, _ := svc.Create(ctx, req); !res.Success {
		t.Fatalf("other doctor should be free, got %+v", res)
	}
}

func TestUpdateRescheduleKeepsOwnSlot(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	created, _ := svc.Create(ctx, baseRequest())
	id := created.Appointment.ID

	res, err := svc.Update(ctx, id, Changes{AppointmentTime: "10:00"})
	if err != nil || !res.Success {
		t.Fatalf("expected same-slot update to succeed, got %+v err=%v", res, err)
	}

	res, err = svc.Update(ctx, id, Changes{AppointmentTime: "11:30"})
	if err != nil || !res.Success {
		t.Fatalf("expected reschedule to succeed, got %+v err=%v", res, err)
	}
	if res.Appointment.StartsAt.Hour() != 11 || res.Appointment.StartsAt.Minute() != 30 {
		t.Fatalf("unexpected new time %s", res.Appointment.StartsAt)
	}
	if res.Appointment.StartsAt.Day() != 5 {
		t.Fatalf("blank date should keep the existing day, got %s", res.Appointment.StartsAt)
	}
}

func TestUpdateDoctorChangeNeedsBranch(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	created, _ := svc.Create(ctx, baseRequest())

	res, err := svc.Update(ctx, created.Appointment.ID, Changes{DoctorName: "Omar Khalil"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if res.Reason != rules.ReasonDoctorDataIncomplete {
		t.Fatalf("expected DOCTOR_DATA_INCOMPLETE, got %+v", res)
	}

	res, err = svc.Update(ctx, created.Appointment.ID, Changes{DoctorName: "Omar Khalil", ClinicBranch: "Abdoun"})
	if err != nil || !res.Success {
		t.Fatalf("expected doctor change to succeed, got %+v err=%v", res, err)
	}
	if res.Appointment.DoctorName != "Dr. Omar Khalil" {
		t.Fatalf("doctor not switched: %+v", res.Appointment)
	}
}

func TestUpdateUnknownBooking(t *testing.T) {
	svc, _ := newTestService(t)
	res, err := svc.Update(context.Background(), "missing", Changes{AppointmentTime: "11:00"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if res.Reason != rules.ReasonBookingNotFound {
		t.Fatalf("expected BOOKING_NOT_FOUND, got %+v", res)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	created, _ := svc.Create(ctx, baseRequest())
	id := created.Appointment.ID

	for i := 0; i < 2; i++ {
		res, err := svc.Cancel(ctx, CancelRequest{ID: id})
		if err != nil || !res.Success {
			t.Fatalf("cancel #%d: %+v err=%v", i+1, res, err)
		}
		if res.Appointment.Status != StatusCancelled || res.Appointment.CancelledAt == nil {
			t.Fatalf("cancel #%d: expected cancelled booking, got %+v", i+1, res.Appointment)
		}
	}

	stored, err := repo.FindAppointment(ctx, id)
	if err != nil {
		t.Fatalf("FindAppointment: %v", err)
	}
	if !stored.CancelledAt.Equal(testNow) {
		t.Fatalf("cancelled_at = %v, want %v", stored.CancelledAt, testNow)
	}

	// The freed slot can be booked again.
	if res, _ := svc.Create(ctx, baseRequest()); !res.Success {
		t.Fatalf("expected slot to be free after cancel, got %+v", res)
	}
}

func TestCancelVerification(t *testing.T) {
	tests := []struct {
		name string
		req  CancelRequest
		want rules.Reason
	}{
		{"name mismatch", CancelRequest{PatientName: "Omar"}, rules.ReasonNameMismatch},
		{"phone mismatch", CancelRequest{PatientPhone: "0790000000"}, rules.ReasonPhoneMismatch},
		{"otp mismatch", CancelRequest{OTP: "1111"}, rules.ReasonOTPMismatch},
		{"matching details", CancelRequest{PatientName: "ahmad  ali", PatientPhone: "+962 79 123 4567", OTP: "4242"}, rules.ReasonNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t)
			ctx := context.Background()
			created, _ := svc.Create(ctx, baseRequest())
			tt.req.ID = created.Appointment.ID

			res, err := svc.Cancel(ctx, tt.req)
			if err != nil {
				t.Fatalf("Cancel: %v", err)
			}
			if res.Reason != tt.want {
				t.Fatalf("expected reason %q, got %+v", tt.want, res)
			}
			if tt.want.OK() != res.Success {
				t.Fatalf("success flag disagrees with reason: %+v", res)
			}
		})
	}
}

func TestCancelUnknownBookingChecksExistenceFirst(t *testing.T) {
	svc, _ := newTestService(t)
	res, err := svc.Cancel(context.Background(), CancelRequest{ID: "nope", OTP: "0000"})
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if res.Reason != rules.ReasonBookingNotFound {
		t.Fatalf("expected BOOKING_NOT_FOUND, got %+v", res)
	}
}

func TestAvailableDoctors(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	if res, _ := svc.Create(ctx, baseRequest()); !res.Success {
		t.Fatalf("seed booking failed: %+v", res)
	}

	doctors, err := svc.AvailableDoctors(ctx, AvailabilityQuery{Branch: "Abdoun", Date: "2025-01-05", Time: "10:00"})
	if err != nil {
		t.Fatalf("AvailableDoctors: %v", err)
	}
	if len(doctors) != 1 || doctors[0].Name != "Dr. Omar Khalil" {
		t.Fatalf("expected only Dr. Omar Khalil, got %+v", doctors)
	}

	doctors, err = svc.AvailableDoctors(ctx, AvailabilityQuery{Branch: "Abdoun", Date: "2025-01-06"})
	if err != nil {
		t.Fatalf("AvailableDoctors: %v", err)
	}
	if len(doctors) != 2 {
		t.Fatalf("expected two Monday doctors, got %+v", doctors)
	}

	doctors, err = svc.AvailableDoctors(ctx, AvailabilityQuery{Branch: "Abdoun", Date: "2025-01-03"})
	if err != nil {
		t.Fatalf("AvailableDoctors: %v", err)
	}
	if len(doctors) != 0 {
		t.Fatalf("expected nobody on a closed day, got %+v", doctors)
	}

	if _, err := svc.AvailableDoctors(ctx, AvailabilityQuery{Date: "whenever"}); !errors.Is(err, rules.ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

type failingRepo struct {
	*InMemoryRepository
}

func (f failingRepo) FindDoctor(ctx context.Context, name, branch string) (*Doctor, error) {
	return nil, errors.New("connection reset")
}

func TestCreateInternalErrorIsReported(t *testing.T) {
	obs := &recordingObserver{}
	svc := NewService(failingRepo{NewInMemoryRepository()}, clinic.DefaultSchedule(), logging.Default(), WithOutcomeObserver(obs))
	res, err := svc.Create(context.Background(), baseRequest())
	if err == nil {
		t.Fatalf("expected error to be returned")
	}
	if res.Success || res.Reason != rules.ReasonInternal {
		t.Fatalf("expected INTERNAL_ERROR result, got %+v", res)
	}
	if len(obs.outcomes) != 1 || obs.outcomes[0] != "create:INTERNAL_ERROR" {
		t.Fatalf("unexpected observed outcomes %v", obs.outcomes)
	}
}

func TestNewServicePanicsWithoutRepo(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	NewService(nil, clinic.DefaultSchedule(), nil)
}
