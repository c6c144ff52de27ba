package appointments

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/draly94/SW/internal/schedule"
)

const (
	pgExclusionViolation  = "23P01"
	pgForeignKeyViolation = "23503"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists appointments in Postgres.
type Store struct {
	db DB
}

// NewStore creates an appointment store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// mapWriteError turns constraint violations into package errors.
func mapWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgExclusionViolation:
			return ErrSlotConflict
		case pgForeignKeyViolation:
			return fmt.Errorf("%w: unknown patient or branch", ErrInvalid)
		}
	}
	return fmt.Errorf("appointments: %s: %w", op, err)
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Create inserts a. ID, Status and CreatedAt are filled in. The patient and,
// when set, the provider must belong to a's branch; otherwise nothing is
// written and ErrInvalid is returned.
func (s *Store) Create(ctx context.Context, a *Appointment) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Status == "" {
		a.Status = StatusScheduled
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO appointments (
			id, branch_id, patient_id, user_id, clinic_number,
			appointment_date, appointment_time, duration_minutes,
			appointment_range, notes, status, created_by
		)
		SELECT $1::uuid, $2::uuid, $3::uuid, $4::uuid, $5::int,
			$6::date, $7::time, $8::int, $9::tstzrange, $10::text, $11::text, $12::uuid
		WHERE EXISTS (SELECT 1 FROM patients p WHERE p.id = $3::uuid AND p.branch_id = $2::uuid)
		  AND ($4::uuid IS NULL OR EXISTS (
			SELECT 1 FROM user_branches ub WHERE ub.user_id = $4::uuid AND ub.branch_id = $2::uuid))
		RETURNING created_at`,
		a.ID, a.BranchID, a.PatientID, nullIfEmpty(a.ProviderID), a.ClinicNumber,
		a.Date, a.Time, a.DurationMinutes, a.Range, a.Notes, a.Status, nullIfEmpty(a.CreatedBy),
	).Scan(&a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: patient or provider is not part of this branch", ErrInvalid)
	}
	if err != nil {
		return mapWriteError("create", err)
	}
	return nil
}

const appointmentColumns = `
	a.id::text, a.branch_id::text, a.patient_id::text, COALESCE(a.user_id::text, ''),
	a.clinic_number, a.appointment_date::text, a.appointment_time::text,
	a.duration_minutes, a.notes, a.status, COALESCE(a.created_by::text, ''), a.created_at`

func scanAppointment(row pgx.Row, extra ...any) (*Appointment, error) {
	var a Appointment
	dest := []any{
		&a.ID, &a.BranchID, &a.PatientID, &a.ProviderID,
		&a.ClinicNumber, &a.Date, &a.Time,
		&a.DurationMinutes, &a.Notes, &a.Status, &a.CreatedBy, &a.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if t, err := schedule.NormalizeClock(a.Time); err == nil {
		a.Time = t
	}
	return &a, nil
}

// Update moves or edits an appointment of the branch.
func (s *Store) Update(ctx context.Context, branchID, id string, in UpdateInput) (*Appointment, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE appointments a
		SET appointment_date = $1::date,
		    appointment_time = $2::time,
		    duration_minutes = $3,
		    appointment_range = $4::tstzrange,
		    notes = $5
		WHERE a.id = $6 AND a.branch_id = $7
		RETURNING `+appointmentColumns,
		in.Date, in.Time, in.DurationMinutes, in.Range, in.Notes, id, branchID)
	a, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, mapWriteError("update", err)
	}
	return a, nil
}

// ListDay returns the appointments of one clinic room on a date, with patient
// and provider names.
func (s *Store) ListDay(ctx context.Context, branchID, date string, clinicNumber int) ([]Appointment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+appointmentColumns+`, COALESCE(p.name, ''), COALESCE(pr.name, '')
		FROM appointments a
		LEFT JOIN patients p ON p.id = a.patient_id
		LEFT JOIN profiles pr ON pr.user_id = a.user_id
		WHERE a.branch_id = $1 AND a.appointment_date = $2::date AND a.clinic_number = $3
		ORDER BY a.appointment_time ASC`, branchID, date, clinicNumber)
	if err != nil {
		return nil, fmt.Errorf("appointments: list day: %w", err)
	}
	return collect(rows)
}

// ListForPatient returns a patient's appointments, newest date first.
func (s *Store) ListForPatient(ctx context.Context, branchID, patientID string) ([]Appointment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+appointmentColumns+`, COALESCE(p.name, ''), COALESCE(pr.name, '')
		FROM appointments a
		LEFT JOIN patients p ON p.id = a.patient_id
		LEFT JOIN profiles pr ON pr.user_id = a.user_id
		WHERE a.branch_id = $1 AND a.patient_id = $2
		ORDER BY a.appointment_date DESC, a.appointment_time DESC`, branchID, patientID)
	if err != nil {
		return nil, fmt.Errorf("appointments: list for patient: %w", err)
	}
	return collect(rows)
}

func collect(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()
	out := []Appointment{}
	for rows.Next() {
		var patientName, providerName string
		a, err := scanAppointment(rows, &patientName, &providerName)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan: %w", err)
		}
		a.PatientName = patientName
		a.ProviderName = providerName
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: rows: %w", err)
	}
	return out, nil
}
