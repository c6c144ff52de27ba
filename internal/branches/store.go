// Package branches lists the branches a user belongs to and manages the
// per-branch inventory and pricing catalogs.
package branches

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DefaultOrgName labels branches whose organization has no name.
const DefaultOrgName = "App Console"

// ErrNotFound is returned when a branch does not exist.
var ErrNotFound = errors.New("branches: not found")

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Branch is a physical location of an organization.
type Branch struct {
	ID          string    `json:"id"`
	OrgID       string    `json:"org_id,omitempty"`
	OrgName     string    `json:"org_name"`
	Name        string    `json:"name"`
	Label       string    `json:"label"`
	ClinicCount int       `json:"clinic_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store reads org_branches.
type Store struct {
	db DB
}

// NewStore creates a branch store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// ListForUser returns the branches userID is linked to, oldest first. When
// they span more than one organization, labels carry the organization name.
func (s *Store) ListForUser(ctx context.Context, userID string) ([]Branch, error) {
	rows, err := s.db.Query(ctx, `
		SELECT b.branch_id::text, COALESCE(b.org_id::text, ''), COALESCE(o.name, ''),
		       b.branch_name, b.clinic_count, b.created_at
		FROM user_branches ub
		JOIN org_branches b ON b.branch_id = ub.branch_id
		LEFT JOIN organizations o ON o.id = b.org_id
		WHERE ub.user_id = $1
		ORDER BY b.created_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("branches: list for user: %w", err)
	}
	defer rows.Close()

	out := []Branch{}
	for rows.Next() {
		var b Branch
		if err := rows.Scan(&b.ID, &b.OrgID, &b.OrgName, &b.Name, &b.ClinicCount, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("branches: scan branch: %w", err)
		}
		if b.OrgName == "" {
			b.OrgName = DefaultOrgName
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("branches: list for user: %w", err)
	}
	applyLabels(out)
	return out, nil
}

func applyLabels(list []Branch) {
	orgs := map[string]struct{}{}
	for _, b := range list {
		orgs[b.OrgName] = struct{}{}
	}
	for i := range list {
		if len(orgs) > 1 {
			list[i].Label = list[i].OrgName + " - " + list[i].Name
		} else {
			list[i].Label = list[i].Name
		}
	}
}

// Get loads a single branch.
func (s *Store) Get(ctx context.Context, branchID string) (*Branch, error) {
	var b Branch
	err := s.db.QueryRow(ctx, `
		SELECT b.branch_id::text, COALESCE(b.org_id::text, ''), COALESCE(o.name, ''),
		       b.branch_name, b.clinic_count, b.created_at
		FROM org_branches b
		LEFT JOIN organizations o ON o.id = b.org_id
		WHERE b.branch_id = $1`, branchID).
		Scan(&b.ID, &b.OrgID, &b.OrgName, &b.Name, &b.ClinicCount, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("branches: get: %w", err)
	}
	if b.OrgName == "" {
		b.OrgName = DefaultOrgName
	}
	b.Label = b.Name
	return &b, nil
}

// LoadCatalog reads the raw catalog document of kind for a branch.
func (s *Store) LoadCatalog(ctx context.Context, branchID string, kind Kind) (Catalog, error) {
	var raw []byte
	query := fmt.Sprintf(`SELECT COALESCE(%s, '{}'::jsonb) FROM org_branches WHERE branch_id = $1`, kind.column())
	if err := s.db.QueryRow(ctx, query, branchID).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Catalog{}, ErrNotFound
		}
		return Catalog{}, fmt.Errorf("branches: load %s config: %w", kind, err)
	}
	return DecodeCatalog(raw)
}

// StoreCatalog replaces the catalog document of kind for a branch.
func (s *Store) StoreCatalog(ctx context.Context, branchID string, kind Kind, c Catalog) error {
	query := fmt.Sprintf(`UPDATE org_branches SET %s = $1 WHERE branch_id = $2`, kind.column())
	tag, err := s.db.Exec(ctx, query, c, branchID)
	if err != nil {
		return fmt.Errorf("branches: save %s config: %w", kind, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ClinicCount returns the number of treatment rooms of a branch.
func (s *Store) ClinicCount(ctx context.Context, branchID string) (int, error) {
	b, err := s.Get(ctx, branchID)
	if err != nil {
		return 0, err
	}
	return b.ClinicCount, nil
}
