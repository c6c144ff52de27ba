package access

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/draly94/SW/internal/http/httpjson"
	"github.com/draly94/SW/internal/tenancy"
	"github.com/draly94/SW/pkg/logging"
)

type ctxKey string

const membershipKey ctxKey = "clinic.membership"

// MembershipGetter loads a membership; *Store satisfies it.
type MembershipGetter interface {
	Get(ctx context.Context, userID, branchID string) (*Membership, error)
}

// WithMembership stores m in context.
func WithMembership(ctx context.Context, m *Membership) context.Context {
	return context.WithValue(ctx, membershipKey, m)
}

// MembershipFromContext returns the caller's membership for the request branch.
func MembershipFromContext(ctx context.Context) (*Membership, bool) {
	m, ok := ctx.Value(membershipKey).(*Membership)
	return m, ok && m != nil
}

// RequireMember loads the caller's membership for the branch in context and
// rejects callers that are not linked to it.
func RequireMember(store MembershipGetter, logger *logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := tenancy.IdentityFromContext(r.Context())
			if !ok {
				http.Error(w, `{"error":"unauthenticated"}`, http.StatusUnauthorized)
				return
			}
			branchID, ok := tenancy.BranchIDFromContext(r.Context())
			if !ok {
				http.Error(w, `{"error":"missing branch"}`, http.StatusBadRequest)
				return
			}
			m, err := store.Get(r.Context(), id.UserID, branchID)
			if err != nil {
				if errors.Is(err, ErrNotMember) {
					http.Error(w, `{"error":"unauthorized"}`, http.StatusForbidden)
					return
				}
				logger.Error("failed to load membership", "error", err, "user_id", id.UserID, "branch_id", branchID)
				http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithMembership(r.Context(), m)))
		})
	}
}

// Require rejects requests whose membership lacks resource/action.
func Require(resource Resource, action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m, ok := MembershipFromContext(r.Context())
			if !ok || !m.Can(resource, action) {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Current writes the caller's membership for the request branch together
// with the navigation it unlocks.
// GET /api/branches/{branchID}/permissions
func Current(w http.ResponseWriter, r *http.Request) {
	m, ok := MembershipFromContext(r.Context())
	if !ok {
		httpjson.Error(w, http.StatusForbidden, "unauthorized")
		return
	}
	now := time.Now()
	httpjson.Write(w, http.StatusOK, map[string]any{
		"membership":   m,
		"expired":      m.Expired(now),
		"navigation":   Navigation(m, now),
		"create_views": CreateViews(m, now),
	})
}
