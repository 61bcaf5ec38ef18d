package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores appointments in the relational database. The
// partial unique index uq_active_slot on (dentist_id, appointment_date,
// time_slot) among active statuses is the authoritative double-booking
// guard; a constraint violation surfaces as ErrSlotTaken.
type PostgresRepository struct {
	pool pgxQuerier
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

// NewPostgresRepositoryWithQuerier allows injecting a mock for tests.
func NewPostgresRepositoryWithQuerier(q pgxQuerier) *PostgresRepository {
	return &PostgresRepository{pool: q}
}

const apptColumns = `id, patient_id, dentist_id, appointment_date, time_slot, duration,
	appointment_type, condition_description, patient_age, condition_duration,
	severity, notes, status, video_chat_link, meeting_password, created_at, updated_at`

func (r *PostgresRepository) Create(ctx context.Context, appt *Appointment) error {
	query := `
		INSERT INTO appointments (
			id, patient_id, dentist_id, appointment_date, time_slot, duration,
			appointment_type, condition_description, patient_age, condition_duration,
			severity, notes, status, video_chat_link, meeting_password
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		appt.ID,
		appt.PatientID,
		appt.DentistID,
		appt.AppointmentDate,
		appt.TimeSlot,
		appt.Duration,
		appt.AppointmentType,
		appt.ConditionDescription,
		appt.PatientAge,
		appt.ConditionDuration,
		appt.Severity,
		appt.Notes,
		string(appt.Status),
		appt.VideoChatLink,
		appt.MeetingPassword,
	).Scan(&appt.CreatedAt, &appt.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlotTaken
		}
		return fmt.Errorf("appointments: insert failed: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Appointment, error) {
	query := `SELECT ` + apptColumns + ` FROM appointments WHERE id = $1`
	return scanAppointment(r.pool.QueryRow(ctx, query, id))
}

func (r *PostgresRepository) Update(ctx context.Context, appt *Appointment) error {
	query := `
		UPDATE appointments
		SET status = $2, notes = $3, video_chat_link = $4, meeting_password = $5,
			updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		appt.ID,
		string(appt.Status),
		appt.Notes,
		appt.VideoChatLink,
		appt.MeetingPassword,
	).Scan(&appt.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAppointmentNotFound
		}
		return fmt.Errorf("appointments: update failed: %w", err)
	}
	return nil
}

func (r *PostgresRepository) BookedSlots(ctx context.Context, dentistID string, date time.Time) ([]string, error) {
	query := `
		SELECT time_slot FROM appointments
		WHERE dentist_id = $1 AND appointment_date = $2 AND status IN ('SCHEDULED', 'CONFIRMED')
		ORDER BY time_slot
	`
	rows, err := r.pool.Query(ctx, query, dentistID, date)
	if err != nil {
		return nil, fmt.Errorf("appointments: booked slots failed: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var slot string
		if err := rows.Scan(&slot); err != nil {
			return nil, fmt.Errorf("appointments: scan slot failed: %w", err)
		}
		out = append(out, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: slot rows failed: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) HasActiveAt(ctx context.Context, dentistID string, date time.Time, slot string) (bool, error) {
	query := `
		SELECT 1 FROM appointments
		WHERE dentist_id = $1 AND appointment_date = $2 AND time_slot = $3
			AND status IN ('SCHEDULED', 'CONFIRMED')
		LIMIT 1
	`
	var exists int
	if err := r.pool.QueryRow(ctx, query, dentistID, date, slot).Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("appointments: active check failed: %w", err)
	}
	return true, nil
}

func (r *PostgresRepository) ActiveCountsByDentist(ctx context.Context) (map[string]int, error) {
	query := `
		SELECT dentist_id, COUNT(*) FROM appointments
		WHERE status IN ('SCHEDULED', 'CONFIRMED')
		GROUP BY dentist_id
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("appointments: active counts failed: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var dentistID string
		var count int
		if err := rows.Scan(&dentistID, &count); err != nil {
			return nil, fmt.Errorf("appointments: scan count failed: %w", err)
		}
		counts[dentistID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: count rows failed: %w", err)
	}
	return counts, nil
}

func (r *PostgresRepository) ListByPatient(ctx context.Context, patientID string) ([]*Appointment, error) {
	query := `SELECT ` + apptColumns + ` FROM appointments WHERE patient_id = $1 ORDER BY appointment_date, time_slot`
	return r.list(ctx, query, patientID)
}

func (r *PostgresRepository) ListByDentist(ctx context.Context, dentistID string) ([]*Appointment, error) {
	query := `SELECT ` + apptColumns + ` FROM appointments WHERE dentist_id = $1 ORDER BY appointment_date, time_slot`
	return r.list(ctx, query, dentistID)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*Appointment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("appointments: list failed: %w", err)
	}
	defer rows.Close()

	var out []*Appointment
	for rows.Next() {
		appt, err := scanAppointmentRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, appt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: list rows failed: %w", err)
	}
	return out, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	appt, err := scanAppointmentRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return appt, nil
}

func scanAppointmentRow(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var status string
	if err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DentistID,
		&a.AppointmentDate,
		&a.TimeSlot,
		&a.Duration,
		&a.AppointmentType,
		&a.ConditionDescription,
		&a.PatientAge,
		&a.ConditionDuration,
		&a.Severity,
		&a.Notes,
		&status,
		&a.VideoChatLink,
		&a.MeetingPassword,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("appointments: scan failed: %w", err)
	}
	a.Status = Status(status)
	return &a, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
