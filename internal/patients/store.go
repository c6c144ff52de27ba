package patients

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists patients in Postgres.
type Store struct {
	db DB
}

// NewStore creates a patient store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

const patientColumns = `id::text, branch_id::text, name, COALESCE(dob::text, ''),
	phone, address, gov_id, created_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	if err := row.Scan(&p.ID, &p.BranchID, &p.Name, &p.DOB, &p.Phone, &p.Address, &p.GovID, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func nullDate(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Create inserts a patient in branchID.
func (s *Store) Create(ctx context.Context, branchID string, in Input) (*Patient, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO patients (id, branch_id, name, dob, phone, address, gov_id)
		VALUES ($1, $2, $3, $4::date, $5, $6, $7)
		RETURNING `+patientColumns,
		uuid.New().String(), branchID, in.Name, nullDate(in.DOB), in.Phone, in.Address, in.GovID)
	p, err := scanPatient(row)
	if err != nil {
		return nil, fmt.Errorf("patients: create: %w", err)
	}
	return p, nil
}

// Latest returns the newest patients of a branch.
func (s *Store) Latest(ctx context.Context, branchID string, limit int) ([]Patient, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+patientColumns+`
		FROM patients
		WHERE branch_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, branchID, limit)
	if err != nil {
		return nil, fmt.Errorf("patients: latest: %w", err)
	}
	return collect(rows)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchByName returns patients whose name starts with prefix, ignoring case.
func (s *Store) SearchByName(ctx context.Context, branchID, prefix string, limit int) ([]Patient, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+patientColumns+`
		FROM patients
		WHERE branch_id = $1 AND name ILIKE $2
		ORDER BY name ASC
		LIMIT $3`, branchID, likeEscaper.Replace(prefix)+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("patients: search: %w", err)
	}
	return collect(rows)
}

// Get loads a patient of the branch.
func (s *Store) Get(ctx context.Context, branchID, id string) (*Patient, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+patientColumns+`
		FROM patients
		WHERE id = $1 AND branch_id = $2`, id, branchID)
	p, err := scanPatient(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("patients: get: %w", err)
	}
	return p, nil
}

// Update replaces the editable fields of a patient.
func (s *Store) Update(ctx context.Context, branchID, id string, in Input) (*Patient, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE patients
		SET name = $1, dob = $2::date, phone = $3, address = $4, gov_id = $5
		WHERE id = $6 AND branch_id = $7
		RETURNING `+patientColumns,
		in.Name, nullDate(in.DOB), in.Phone, in.Address, in.GovID, id, branchID)
	p, err := scanPatient(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("patients: update: %w", err)
	}
	return p, nil
}

func collect(rows pgx.Rows) ([]Patient, error) {
	defer rows.Close()
	out := []Patient{}
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, fmt.Errorf("patients: scan: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("patients: rows: %w", err)
	}
	return out, nil
}
