package bookings

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository persists doctors and appointments. Expected absence is reported
// with ErrDoctorNotFound or ErrBookingNotFound; CreateAppointment and
// UpdateAppointment re-check the doctor's slot atomically with the write and
// return ErrSlotTaken when another active appointment holds it.
type Repository interface {
	FindDoctor(ctx context.Context, name, branch string) (*Doctor, error)
	ListDoctors(ctx context.Context, branch string) ([]Doctor, error)
	FindAppointment(ctx context.Context, id string) (*Appointment, error)
	ListActiveAppointments(ctx context.Context, doctorID string, from, to time.Time) ([]Appointment, error)
	CreateAppointment(ctx context.Context, appt *Appointment) error
	UpdateAppointment(ctx context.Context, appt *Appointment) error
	CancelAppointment(ctx context.Context, id string, at time.Time) (*Appointment, error)
}

// DoctorWriter stores practitioner records, used when seeding.
type DoctorWriter interface {
	SaveDoctor(ctx context.Context, d *Doctor) error
}

// InMemoryRepository keeps doctors and appointments in process memory. A
// single mutex spans every check-then-write sequence.
type InMemoryRepository struct {
	mu           sync.RWMutex
	doctors      map[string]Doctor
	appointments map[string]*Appointment
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		doctors:      make(map[string]Doctor),
		appointments: make(map[string]*Appointment),
	}
}

// SaveDoctor inserts or replaces a doctor, assigning an id when missing.
func (r *InMemoryRepository) SaveDoctor(ctx context.Context, d *Doctor) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	r.mu.Lock()
	r.doctors[d.ID] = *d
	r.mu.Unlock()
	return nil
}

func (r *InMemoryRepository) FindDoctor(ctx context.Context, name, branch string) (*Doctor, error) {
	key := NormalizeDoctorName(name)
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, d := range r.sortedDoctors() {
		if NormalizeDoctorName(d.Name) != key {
			continue
		}
		if branch != "" && !sameBranch(d.Branch, branch) {
			continue
		}
		found := d
		return &found, nil
	}
	return nil, ErrDoctorNotFound
}

func (r *InMemoryRepository) ListDoctors(ctx context.Context, branch string) ([]Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Doctor
	for _, d := range r.sortedDoctors() {
		if branch == "" || sameBranch(d.Branch, branch) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *InMemoryRepository) FindAppointment(ctx context.Context, id string) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	appt, ok := r.appointments[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	cp := *appt
	return &cp, nil
}

func (r *InMemoryRepository) ListActiveAppointments(ctx context.Context, doctorID string, from, to time.Time) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Appointment
	for _, appt := range r.appointments {
		if appt.DoctorID != doctorID || !appt.Status.Active() {
			continue
		}
		if appt.StartsAt.Before(from) || !appt.StartsAt.Before(to) {
			continue
		}
		out = append(out, *appt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

func (r *InMemoryRepository) CreateAppointment(ctx context.Context, appt *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.doctors[appt.DoctorID]; !ok {
		return ErrDoctorNotFound
	}
	if r.slotTakenLocked(appt.DoctorID, appt.StartsAt, "") {
		return ErrSlotTaken
	}
	now := time.Now().UTC()
	appt.ID = uuid.New().String()
	appt.CreatedAt = now
	appt.UpdatedAt = now
	cp := *appt
	r.appointments[appt.ID] = &cp
	return nil
}

func (r *InMemoryRepository) UpdateAppointment(ctx context.Context, appt *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.appointments[appt.ID]
	if !ok {
		return ErrBookingNotFound
	}
	if _, ok := r.doctors[appt.DoctorID]; !ok {
		return ErrDoctorNotFound
	}
	if appt.Status.Active() && r.slotTakenLocked(appt.DoctorID, appt.StartsAt, appt.ID) {
		return ErrSlotTaken
	}
	appt.CreatedAt = existing.CreatedAt
	appt.UpdatedAt = time.Now().UTC()
	cp := *appt
	r.appointments[appt.ID] = &cp
	return nil
}

func (r *InMemoryRepository) CancelAppointment(ctx context.Context, id string, at time.Time) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	appt, ok := r.appointments[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	if appt.Status != StatusCancelled {
		cancelledAt := at
		appt.Status = StatusCancelled
		appt.CancelledAt = &cancelledAt
		appt.UpdatedAt = at
	}
	cp := *appt
	return &cp, nil
}

func (r *InMemoryRepository) slotTakenLocked(doctorID string, at time.Time, excludeID string) bool {
	for _, appt := range r.appointments {
		if appt.ID == excludeID || appt.DoctorID != doctorID || !appt.Status.Active() {
			continue
		}
		if appt.StartsAt.Equal(at) {
			return true
		}
	}
	return false
}

// sortedDoctors must be called with r.mu held.
func (r *InMemoryRepository) sortedDoctors() []Doctor {
	out := make([]Doctor, 0, len(r.doctors))
	for _, d := range r.doctors {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].Branch < out[j].Branch
		}
		return out[i].Name < out[j].Name
	})
	return out
}
