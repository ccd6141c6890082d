package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// PgxPool is the subset of *pgxpool.Pool the repository needs.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores doctors and appointments in Postgres. Writes lock
// the doctor row for the duration of the conflict check and the write; the
// partial unique index on active slots backs this up.
type PostgresRepository struct {
	pool PgxPool
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool PgxPool) *PostgresRepository {
	if pool == nil {
		panic("bookings: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

const doctorColumns = `id, name, branch, working_days, opens_at, closes_at`

const appointmentColumns = `
	a.id, a.doctor_id, d.name, d.branch, a.patient_name, a.patient_phone,
	a.service_type, a.notes, a.otp, a.starts_at, a.status,
	a.created_at, a.updated_at, a.cancelled_at`

const uniqueViolation = "23505"

// SaveDoctor upserts a doctor row.
func (r *PostgresRepository) SaveDoctor(ctx context.Context, d *Doctor) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	query := `
		INSERT INTO doctors (id, name, name_key, branch, working_days, opens_at, closes_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			name_key = EXCLUDED.name_key,
			branch = EXCLUDED.branch,
			working_days = EXCLUDED.working_days,
			opens_at = EXCLUDED.opens_at,
			closes_at = EXCLUDED.closes_at
	`
	if _, err := r.pool.Exec(ctx, query,
		d.ID,
		d.Name,
		NormalizeDoctorName(d.Name),
		d.Branch,
		toPGWeekdays(d.Window.Days),
		d.Window.Open,
		d.Window.Close,
	); err != nil {
		return fmt.Errorf("bookings: save doctor: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindDoctor(ctx context.Context, name, branch string) (*Doctor, error) {
	query := `
		SELECT ` + doctorColumns + `
		FROM doctors
		WHERE name_key = $1 AND ($2 = '' OR lower(branch) = lower($2))
		ORDER BY name, branch
		LIMIT 1
	`
	d, err := scanDoctor(r.pool.QueryRow(ctx, query, NormalizeDoctorName(name), branch))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDoctorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("bookings: find doctor: %w", err)
	}
	return d, nil
}

func (r *PostgresRepository) ListDoctors(ctx context.Context, branch string) ([]Doctor, error) {
	query := `
		SELECT ` + doctorColumns + `
		FROM doctors
		WHERE $1 = '' OR lower(branch) = lower($1)
		ORDER BY name, branch
	`
	rows, err := r.pool.Query(ctx, query, branch)
	if err != nil {
		return nil, fmt.Errorf("bookings: list doctors: %w", err)
	}
	defer rows.Close()

	var out []Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, fmt.Errorf("bookings: scan doctor: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) FindAppointment(ctx context.Context, id string) (*Appointment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrBookingNotFound
	}
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments a
		JOIN doctors d ON d.id = a.doctor_id
		WHERE a.id = $1
	`
	appt, err := scanAppointment(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("bookings: find appointment: %w", err)
	}
	return appt, nil
}

func (r *PostgresRepository) ListActiveAppointments(ctx context.Context, doctorID string, from, to time.Time) ([]Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments a
		JOIN doctors d ON d.id = a.doctor_id
		WHERE a.doctor_id = $1
		  AND a.starts_at >= $2 AND a.starts_at < $3
		  AND a.status IN ('pending', 'confirmed')
		ORDER BY a.starts_at
	`
	rows, err := r.pool.Query(ctx, query, doctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("bookings: list active appointments: %w", err)
	}
	defer rows.Close()

	var out []Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("bookings: scan appointment: %w", err)
		}
		out = append(out, *appt)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) CreateAppointment(ctx context.Context, appt *Appointment) error {
	id := uuid.New().String()
	err := r.withSlotLock(ctx, appt.DoctorID, appt.StartsAt, id, func(tx pgx.Tx) error {
		query := `
			INSERT INTO appointments (id, doctor_id, patient_name, patient_phone, service_type, notes, otp, starts_at, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING created_at, updated_at
		`
		return tx.QueryRow(ctx, query,
			id,
			appt.DoctorID,
			appt.PatientName,
			appt.PatientPhone,
			appt.ServiceType,
			appt.Notes,
			appt.OTP,
			appt.StartsAt,
			string(appt.Status),
		).Scan(&appt.CreatedAt, &appt.UpdatedAt)
	})
	if err != nil {
		return err
	}
	appt.ID = id
	return nil
}

func (r *PostgresRepository) UpdateAppointment(ctx context.Context, appt *Appointment) error {
	if _, err := uuid.Parse(appt.ID); err != nil {
		return ErrBookingNotFound
	}
	return r.withSlotLock(ctx, appt.DoctorID, appt.StartsAt, appt.ID, func(tx pgx.Tx) error {
		query := `
			UPDATE appointments
			SET doctor_id = $2, patient_name = $3, patient_phone = $4, service_type = $5,
			    notes = $6, starts_at = $7, status = $8, updated_at = now()
			WHERE id = $1
			RETURNING updated_at
		`
		err := tx.QueryRow(ctx, query,
			appt.ID,
			appt.DoctorID,
			appt.PatientName,
			appt.PatientPhone,
			appt.ServiceType,
			appt.Notes,
			appt.StartsAt,
			string(appt.Status),
		).Scan(&appt.UpdatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrBookingNotFound
		}
		return err
	})
}

func (r *PostgresRepository) CancelAppointment(ctx context.Context, id string, at time.Time) (*Appointment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrBookingNotFound
	}
	query := `
		UPDATE appointments
		SET status = 'cancelled', cancelled_at = COALESCE(cancelled_at, $2), updated_at = $2
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		return nil, fmt.Errorf("bookings: cancel appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrBookingNotFound
	}
	return r.FindAppointment(ctx, id)
}

// withSlotLock runs write inside a transaction after locking the doctor row
// and confirming no other active appointment holds the slot.
func (r *PostgresRepository) withSlotLock(ctx context.Context, doctorID string, at time.Time, excludeID string, write func(pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("bookings: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var locked string
	err = tx.QueryRow(ctx, `SELECT id FROM doctors WHERE id = $1 FOR UPDATE`, doctorID).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrDoctorNotFound
	}
	if err != nil {
		return fmt.Errorf("bookings: lock doctor: %w", err)
	}

	var taken int
	err = tx.QueryRow(ctx, `
		SELECT 1 FROM appointments
		WHERE doctor_id = $1 AND starts_at = $2 AND id <> $3
		  AND status IN ('pending', 'confirmed')
		LIMIT 1
	`, doctorID, at, excludeID).Scan(&taken)
	switch {
	case err == nil:
		return ErrSlotTaken
	case !errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("bookings: check slot: %w", err)
	}

	if err := write(tx); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrSlotTaken
		}
		if errors.Is(err, ErrBookingNotFound) {
			return err
		}
		return fmt.Errorf("bookings: write appointment: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("bookings: commit: %w", err)
	}
	return nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var (
		d    Doctor
		days []int16
	)
	if err := row.Scan(&d.ID, &d.Name, &d.Branch, &days, &d.Window.Open, &d.Window.Close); err != nil {
		return nil, err
	}
	d.Window.Days = fromPGWeekdays(days)
	return &d, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a           Appointment
		status      string
		cancelledAt pgtype.Timestamptz
	)
	if err := row.Scan(
		&a.ID,
		&a.DoctorID,
		&a.DoctorName,
		&a.ClinicBranch,
		&a.PatientName,
		&a.PatientPhone,
		&a.ServiceType,
		&a.Notes,
		&a.OTP,
		&a.StartsAt,
		&status,
		&a.CreatedAt,
		&a.UpdatedAt,
		&cancelledAt,
	); err != nil {
		return nil, err
	}
	a.Status = Status(status)
	a.CancelledAt = fromPGNullableTime(cancelledAt)
	return &a, nil
}

func toPGWeekdays(days []time.Weekday) []int16 {
	out := make([]int16, 0, len(days))
	for _, d := range days {
		out = append(out, int16(d))
	}
	return out
}

func fromPGWeekdays(days []int16) []time.Weekday {
	out := make([]time.Weekday, 0, len(days))
	for _, d := range days {
		out = append(out, time.Weekday(d))
	}
	return out
}

func fromPGNullableTime(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

var (
	_ Repository = (*PostgresRepository)(nil)
	_ Repository = (*InMemoryRepository)(nil)
)
