// Package staff manages branch members, their invitations and their
// permission flags.
package staff

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/draly94/SW/internal/access"
)

// Display fallbacks for incomplete rows.
const (
	FallbackInviteName = "Invited User"
	FallbackMemberName = "Unknown User"
	FallbackEmail      = "No email"
)

// RoleAll disables the role filter.
const RoleAll = "all"

var (
	ErrInvalid   = errors.New("staff: invalid input")
	ErrNotFound  = errors.New("staff: invitation not found")
	ErrDuplicate = errors.New("staff: invitation already exists")
)

// Member is an active user of a branch.
type Member struct {
	UserID string
	Role   string
	Name   string
	Email  string
}

// Invitation is a pending membership keyed by email.
type Invitation struct {
	ID        string    `json:"id"`
	BranchID  string    `json:"branch_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

// Entry is one row of the staff list.
type Entry struct {
	UserID  string `json:"user_id,omitempty"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Role    string `json:"role"`
	Pending bool   `json:"pending"`
}

// Provider is a member who can be booked for appointments.
type Provider struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

// InviteInput is the body of an invitation request.
type InviteInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Role  string `json:"role"`
}

func (in InviteInput) normalized() InviteInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	in.Role = strings.ToLower(strings.TrimSpace(in.Role))
	return in
}

func (in InviteInput) validate() error {
	if in.Name == "" || in.Email == "" {
		return fmt.Errorf("%w: name and email are required", ErrInvalid)
	}
	if !strings.Contains(in.Email, "@") {
		return fmt.Errorf("%w: email is malformed", ErrInvalid)
	}
	if !access.ValidRole(in.Role) {
		return fmt.Errorf("%w: unknown role %q", ErrInvalid, in.Role)
	}
	return nil
}

func memberEntry(m Member) Entry {
	e := Entry{UserID: m.UserID, Name: m.Name, Email: m.Email, Role: m.Role}
	if e.Name == "" {
		e.Name = FallbackMemberName
	}
	if e.Email == "" {
		e.Email = FallbackEmail
	}
	return e
}

func invitationEntry(inv Invitation) Entry {
	e := Entry{Name: inv.Name, Email: inv.Email, Role: inv.Role, Pending: true}
	if e.Name == "" {
		e.Name = FallbackInviteName
	}
	return e
}
