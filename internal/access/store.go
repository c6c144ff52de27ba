package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotMember is returned when the user has no link to the branch.
var ErrNotMember = errors.New("access: not a member of branch")

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store reads memberships from user_branches.
type Store struct {
	db DB
}

// NewStore creates a membership store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// FlagColumns is the SELECT list fragment for the permission columns.
func FlagColumns() string {
	return strings.Join(FlagNames(), ", ")
}

// Get loads the membership of userID in branchID.
func (s *Store) Get(ctx context.Context, userID, branchID string) (*Membership, error) {
	query := `
		SELECT role, access_expires_at, ` + FlagColumns() + `
		FROM user_branches
		WHERE user_id = $1 AND branch_id = $2`

	m := &Membership{UserID: userID, BranchID: branchID}
	var expires *time.Time
	values := make([]bool, len(FlagNames()))
	dest := []any{&m.Role, &expires}
	for i := range values {
		dest = append(dest, &values[i])
	}

	if err := s.db.QueryRow(ctx, query, userID, branchID).Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotMember
		}
		return nil, fmt.Errorf("access: get membership: %w", err)
	}
	m.AccessExpiresAt = expires
	m.Flags = make(Flags, len(values))
	for i, name := range FlagNames() {
		m.Flags[name] = values[i]
	}
	return m, nil
}

// SetFlag updates a single permission column. The column name is checked
// against the known flags before it reaches SQL.
func (s *Store) SetFlag(ctx context.Context, userID, branchID, flag string, value bool) error {
	if !ValidFlag(flag) {
		return fmt.Errorf("%w: %q", ErrUnknownFlag, flag)
	}
	query := fmt.Sprintf(`UPDATE user_branches SET %s = $1 WHERE user_id = $2 AND branch_id = $3`, flag)
	tag, err := s.db.Exec(ctx, query, value, userID, branchID)
	if err != nil {
		return fmt.Errorf("access: set %s: %w", flag, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotMember
	}
	return nil
}
