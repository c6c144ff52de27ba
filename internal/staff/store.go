package staff

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/draly94/SW/internal/access"
	"github.com/draly94/SW/internal/events"
	"github.com/draly94/SW/pkg/logging"
)

// DB abstracts the pgx pool for testing; pgxmock satisfies it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store reads memberships and manages invitations.
type Store struct {
	db     DB
	logger *logging.Logger
}

func NewStore(db DB, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{db: db, logger: logger}
}

// Members lists active members of a branch. An empty role lists all.
func (s *Store) Members(ctx context.Context, branchID, role string) ([]Member, error) {
	query := `
		SELECT ub.user_id::text, ub.role, COALESCE(pr.name, ''), COALESCE(pr.email, '')
		FROM user_branches ub
		LEFT JOIN profiles pr ON pr.user_id = ub.user_id
		WHERE ub.branch_id = $1 AND ($2 = '' OR ub.role = $2)
		ORDER BY ub.created_at ASC`
	rows, err := s.db.Query(ctx, query, branchID, role)
	if err != nil {
		return nil, fmt.Errorf("staff: list members: %w", err)
	}
	defer rows.Close()

	var out []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.UserID, &m.Role, &m.Name, &m.Email); err != nil {
			return nil, fmt.Errorf("staff: scan member: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Invitations lists pending invitations of a branch. An empty role lists all.
func (s *Store) Invitations(ctx context.Context, branchID, role string) ([]Invitation, error) {
	query := `
		SELECT id::text, email, role, name, phone, created_at
		FROM invitations
		WHERE branch_id = $1 AND ($2 = '' OR role = $2)
		ORDER BY created_at DESC`
	rows, err := s.db.Query(ctx, query, branchID, role)
	if err != nil {
		return nil, fmt.Errorf("staff: list invitations: %w", err)
	}
	defer rows.Close()

	var out []Invitation
	for rows.Next() {
		inv := Invitation{BranchID: branchID}
		if err := rows.Scan(&inv.ID, &inv.Email, &inv.Role, &inv.Name, &inv.Phone, &inv.CreatedAt); err != nil {
			return nil, fmt.Errorf("staff: scan invitation: %w", err)
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// Invite inserts the invitation and queues its email in one transaction.
func (s *Store) Invite(ctx context.Context, branchID, branchName string, in InviteInput) (*Invitation, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("staff: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	inv := &Invitation{BranchID: branchID, Email: in.Email, Role: in.Role, Name: in.Name, Phone: in.Phone}
	query := `
		INSERT INTO invitations (branch_id, email, role, name, phone)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id::text, created_at`
	if err := tx.QueryRow(ctx, query, branchID, in.Email, in.Role, in.Name, in.Phone).Scan(&inv.ID, &inv.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("staff: insert invitation: %w", err)
	}

	if _, err := events.InsertWith(ctx, tx, branchID, events.TypeInvitationEmail, inv.emailPayload(branchName, false)); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("staff: commit invitation: %w", err)
	}
	return inv, nil
}

// Resend refreshes created_at of the branch's invitation for email and
// queues the email again.
func (s *Store) Resend(ctx context.Context, branchID, branchName, email string) (*Invitation, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("staff: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	inv := &Invitation{BranchID: branchID, Email: email}
	query := `
		UPDATE invitations
		SET created_at = now()
		WHERE branch_id = $1 AND email = $2
		RETURNING id::text, role, name, phone, created_at`
	if err := tx.QueryRow(ctx, query, branchID, email).Scan(&inv.ID, &inv.Role, &inv.Name, &inv.Phone, &inv.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("staff: refresh invitation: %w", err)
	}

	if _, err := events.InsertWith(ctx, tx, branchID, events.TypeInvitationEmail, inv.emailPayload(branchName, true)); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("staff: commit resend: %w", err)
	}
	return inv, nil
}

// Claim converts every invitation addressed to email into a membership of
// userID, then deletes the invitations. It returns the claimed branch ids.
func (s *Store) Claim(ctx context.Context, userID, email string) ([]string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if userID == "" || email == "" {
		return nil, nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("staff: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT branch_id::text, role, name, phone
		FROM invitations
		WHERE email = $1
		FOR UPDATE`, email)
	if err != nil {
		return nil, fmt.Errorf("staff: load invitations: %w", err)
	}
	var pending []Invitation
	for rows.Next() {
		var inv Invitation
		if err := rows.Scan(&inv.BranchID, &inv.Role, &inv.Name, &inv.Phone); err != nil {
			rows.Close()
			return nil, fmt.Errorf("staff: scan invitation: %w", err)
		}
		pending = append(pending, inv)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("staff: load invitations: %w", err)
	}
	if len(pending) == 0 {
		return nil, nil
	}

	names := access.FlagNames()
	placeholders := make([]string, len(names))
	for i := range names {
		placeholders[i] = fmt.Sprintf("$%d", i+4)
	}
	insertMember := `
		INSERT INTO user_branches (user_id, branch_id, role, ` + access.FlagColumns() + `)
		VALUES ($1, $2, $3, ` + strings.Join(placeholders, ", ") + `)
		ON CONFLICT (user_id, branch_id) DO NOTHING`

	claimed := make([]string, 0, len(pending))
	for _, inv := range pending {
		flags, err := access.DefaultFlags(inv.Role)
		if err != nil {
			s.logger.Warn("skipping invitation with unknown role", "branch_id", inv.BranchID, "role", inv.Role)
			continue
		}
		args := []any{userID, inv.BranchID, inv.Role}
		for _, name := range names {
			args = append(args, flags[name])
		}
		if _, err := tx.Exec(ctx, insertMember, args...); err != nil {
			return nil, fmt.Errorf("staff: insert membership: %w", err)
		}
		claimed = append(claimed, inv.BranchID)
	}

	first := pending[0]
	if _, err := tx.Exec(ctx, `
		INSERT INTO profiles (user_id, name, email, phone)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO NOTHING`, userID, first.Name, email, first.Phone); err != nil {
		return nil, fmt.Errorf("staff: seed profile: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM invitations WHERE email = $1`, email); err != nil {
		return nil, fmt.Errorf("staff: delete invitations: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("staff: commit claim: %w", err)
	}
	return claimed, nil
}

func (inv *Invitation) emailPayload(branchName string, resend bool) events.InvitationEmail {
	return events.InvitationEmail{
		Email:      inv.Email,
		Name:       inv.Name,
		Role:       inv.Role,
		BranchName: branchName,
		Resend:     resend,
	}
}
