// Package access models branch memberships and their CRUD permission flags.
package access

import (
	"errors"
	"fmt"
	"time"
)

// Resource is a permission area.
type Resource string

// Action is one of the CRUD letters.
type Action string

const (
	Patients     Resource = "pat"
	Appointments Resource = "apt"
	Staff        Resource = "staff"
	Inventory    Resource = "inv"

	Read   Action = "r"
	Create Action = "c"
	Update Action = "u"
	Delete Action = "d"
)

// Roles a member can hold in a branch.
const (
	RoleAdmin        = "admin"
	RoleDentist      = "dentist"
	RoleNurse        = "nurse"
	RoleReceptionist = "receptionist"
	RoleJanitor      = "janitor"
)

var (
	ErrUnknownFlag = errors.New("access: unknown permission flag")
	ErrUnknownRole = errors.New("access: unknown role")
)

var (
	resources = []Resource{Patients, Appointments, Staff, Inventory}
	actions   = []Action{Read, Create, Update, Delete}
	roles     = []string{RoleAdmin, RoleDentist, RoleNurse, RoleReceptionist, RoleJanitor}
)

// Flags mirrors the sixteen {pat,apt,staff,inv}_{r,c,u,d} columns.
type Flags map[string]bool

// FlagName builds the column name for a resource/action pair.
func FlagName(resource Resource, action Action) string {
	return fmt.Sprintf("%s_%s", resource, action)
}

// FlagNames lists all permission columns in a stable order.
func FlagNames() []string {
	names := make([]string, 0, len(resources)*len(actions))
	for _, res := range resources {
		for _, act := range actions {
			names = append(names, FlagName(res, act))
		}
	}
	return names
}

// ValidFlag reports whether name is one of the permission columns.
func ValidFlag(name string) bool {
	for _, n := range FlagNames() {
		if n == name {
			return true
		}
	}
	return false
}

// ValidRole reports whether role is assignable.
func ValidRole(role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// Roles lists assignable roles.
func Roles() []string {
	return append([]string(nil), roles...)
}

// Can reports whether the flag for resource/action is set.
func (f Flags) Can(resource Resource, action Action) bool {
	return f[FlagName(resource, action)]
}

// Complete returns a copy with every column present.
func (f Flags) Complete() Flags {
	out := make(Flags, 16)
	for _, n := range FlagNames() {
		out[n] = f[n]
	}
	return out
}

// DefaultFlags are the permissions granted when an invitation is claimed.
// Admins get everything; other roles start with what their work needs and
// are widened by an admin afterwards.
func DefaultFlags(role string) (Flags, error) {
	f := Flags{}
	grant := func(res Resource, acts ...Action) {
		for _, a := range acts {
			f[FlagName(res, a)] = true
		}
	}
	switch role {
	case RoleAdmin:
		for _, res := range resources {
			grant(res, actions...)
		}
	case RoleDentist:
		grant(Patients, Read, Create, Update)
		grant(Appointments, Read, Create, Update)
	case RoleNurse:
		grant(Patients, Read)
		grant(Appointments, Read)
		grant(Inventory, Read, Update)
	case RoleReceptionist:
		grant(Patients, Read, Create, Update)
		grant(Appointments, Read, Create, Update, Delete)
		grant(Staff, Read)
	case RoleJanitor:
		grant(Inventory, Read)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	return f.Complete(), nil
}

// Membership links a user to a branch.
type Membership struct {
	UserID          string     `json:"user_id"`
	BranchID        string     `json:"branch_id"`
	Role            string     `json:"role"`
	AccessExpiresAt *time.Time `json:"access_expires_at,omitempty"`
	Flags           Flags      `json:"flags"`
}

// Expired reports whether access lapsed before now.
func (m *Membership) Expired(now time.Time) bool {
	return m.AccessExpiresAt != nil && m.AccessExpiresAt.Before(now)
}

// CanAt is Can evaluated at a fixed instant.
func (m *Membership) CanAt(resource Resource, action Action, now time.Time) bool {
	if m == nil || m.Expired(now) {
		return false
	}
	return m.Flags.Can(resource, action)
}

// Can reports whether the member may perform action on resource now.
func (m *Membership) Can(resource Resource, action Action) bool {
	return m.CanAt(resource, action, time.Now())
}
