package staff

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/draly94/SW/internal/access"
	"github.com/draly94/SW/internal/branches"
	"github.com/draly94/SW/pkg/logging"
)

// Repository is the persistence surface of the service; *Store satisfies it.
type Repository interface {
	Members(ctx context.Context, branchID, role string) ([]Member, error)
	Invitations(ctx context.Context, branchID, role string) ([]Invitation, error)
	Invite(ctx context.Context, branchID, branchName string, in InviteInput) (*Invitation, error)
	Resend(ctx context.Context, branchID, branchName, email string) (*Invitation, error)
	Claim(ctx context.Context, userID, email string) ([]string, error)
}

// Memberships reads and writes permission flags; *access.Store satisfies it.
type Memberships interface {
	Get(ctx context.Context, userID, branchID string) (*access.Membership, error)
	SetFlag(ctx context.Context, userID, branchID, flag string, value bool) error
}

// BranchGetter resolves the branch name used in invitation emails.
type BranchGetter interface {
	Get(ctx context.Context, branchID string) (*branches.Branch, error)
}

// Auditor records staff changes; *compliance.AuditService satisfies it.
type Auditor interface {
	LogPermissionChanged(ctx context.Context, branchID, actorID, userID, flag string, value bool) error
	LogInvitationSent(ctx context.Context, branchID, actorID, email, role string, resend bool) error
}

type Service struct {
	repo     Repository
	members  Memberships
	branches BranchGetter
	audit    Auditor
	logger   *logging.Logger
}

// NewService wires the staff service. branches and audit may be nil.
func NewService(repo Repository, members Memberships, branchGetter BranchGetter, audit Auditor, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, members: members, branches: branchGetter, audit: audit, logger: logger}
}

// List merges active members with pending invitations, optionally filtered
// by role.
func (s *Service) List(ctx context.Context, branchID, role string) ([]Entry, error) {
	role = strings.ToLower(strings.TrimSpace(role))
	if role == RoleAll {
		role = ""
	}
	if role != "" && !access.ValidRole(role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalid, role)
	}

	members, err := s.repo.Members(ctx, branchID, role)
	if err != nil {
		return nil, err
	}
	invites, err := s.repo.Invitations(ctx, branchID, role)
	if err != nil {
		return nil, err
	}

	out := make([]Entry, 0, len(members)+len(invites))
	for _, m := range members {
		out = append(out, memberEntry(m))
	}
	for _, inv := range invites {
		out = append(out, invitationEntry(inv))
	}
	return out, nil
}

// Providers lists the dentists of a branch for the booking form.
func (s *Service) Providers(ctx context.Context, branchID string) ([]Provider, error) {
	members, err := s.repo.Members(ctx, branchID, access.RoleDentist)
	if err != nil {
		return nil, err
	}
	out := make([]Provider, 0, len(members))
	for _, m := range members {
		e := memberEntry(m)
		out = append(out, Provider{UserID: m.UserID, Name: e.Name})
	}
	return out, nil
}

// Invite records an invitation and queues the sign-in email.
func (s *Service) Invite(ctx context.Context, branchID, actorID string, in InviteInput) (*Invitation, error) {
	in = in.normalized()
	if err := in.validate(); err != nil {
		return nil, err
	}
	inv, err := s.repo.Invite(ctx, branchID, s.branchName(ctx, branchID), in)
	if err != nil {
		return nil, err
	}
	s.logger.Info("invitation created", "branch_id", branchID, "role", inv.Role)
	s.auditInvitation(ctx, branchID, actorID, inv, false)
	return inv, nil
}

// Resend refreshes an invitation and queues its email again.
func (s *Service) Resend(ctx context.Context, branchID, actorID, email string) (*Invitation, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalid)
	}
	inv, err := s.repo.Resend(ctx, branchID, s.branchName(ctx, branchID), email)
	if err != nil {
		return nil, err
	}
	s.auditInvitation(ctx, branchID, actorID, inv, true)
	return inv, nil
}

// Claim turns the caller's invitations into memberships.
func (s *Service) Claim(ctx context.Context, userID, email string) ([]string, error) {
	claimed, err := s.repo.Claim(ctx, userID, email)
	if err != nil {
		return nil, err
	}
	if len(claimed) > 0 {
		s.logger.Info("invitations claimed", "user_id", userID, "branches", len(claimed))
	}
	return claimed, nil
}

// Permissions returns a member's flags in the branch.
func (s *Service) Permissions(ctx context.Context, branchID, userID string) (*access.Membership, error) {
	m, err := s.members.Get(ctx, userID, branchID)
	if err != nil {
		return nil, err
	}
	m.Flags = m.Flags.Complete()
	return m, nil
}

// SetPermission toggles one flag of a member and audits the change.
func (s *Service) SetPermission(ctx context.Context, branchID, actorID, userID, flag string, value bool) error {
	if !access.ValidFlag(flag) {
		return fmt.Errorf("%w: unknown permission %q", ErrInvalid, flag)
	}
	if err := s.members.SetFlag(ctx, userID, branchID, flag, value); err != nil {
		return err
	}
	s.logger.Info("permission changed", "branch_id", branchID, "user_id", userID, "flag", flag, "value", value)
	if s.audit != nil {
		if err := s.audit.LogPermissionChanged(ctx, branchID, actorID, userID, flag, value); err != nil {
			s.logger.Warn("failed to audit permission change", "branch_id", branchID, "error", err)
		}
	}
	return nil
}

func (s *Service) branchName(ctx context.Context, branchID string) string {
	if s.branches == nil {
		return ""
	}
	b, err := s.branches.Get(ctx, branchID)
	if err != nil {
		if !errors.Is(err, branches.ErrNotFound) {
			s.logger.Warn("failed to resolve branch name for invitation", "branch_id", branchID, "error", err)
		}
		return ""
	}
	return b.Name
}

func (s *Service) auditInvitation(ctx context.Context, branchID, actorID string, inv *Invitation, resend bool) {
	if s.audit == nil {
		return
	}
	if err := s.audit.LogInvitationSent(ctx, branchID, actorID, inv.Email, inv.Role, resend); err != nil {
		s.logger.Warn("failed to audit invitation", "branch_id", branchID, "error", err)
	}
}
