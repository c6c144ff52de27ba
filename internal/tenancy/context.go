// Package tenancy carries the caller identity and the selected branch through
// request contexts.
package tenancy

import (
	"context"
	"strings"
)

type ctxKey string

const (
	identityKey ctxKey = "clinic.identity"
	branchKey   ctxKey = "clinic.branch_id"
)

// Identity is the authenticated caller as asserted by the identity token.
type Identity struct {
	UserID string
	Email  string
}

// WithIdentity stores the caller identity in context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	id.Email = strings.ToLower(strings.TrimSpace(id.Email))
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext extracts the caller identity if present.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok && id.UserID != ""
}

// WithBranchID stores the selected branch id in context.
func WithBranchID(ctx context.Context, branchID string) context.Context {
	return context.WithValue(ctx, branchKey, branchID)
}

// BranchIDFromContext extracts the branch id if present.
func BranchIDFromContext(ctx context.Context) (string, bool) {
	val := ctx.Value(branchKey)
	if val == nil {
		return "", false
	}
	branchID, ok := val.(string)
	return branchID, ok && branchID != ""
}
