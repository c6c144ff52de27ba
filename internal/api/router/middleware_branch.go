package router

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/draly94/SW/internal/http/httpjson"
	"github.com/draly94/SW/internal/tenancy"
)

// branchScope copies the {branchID} path segment into the request context.
// Ids that are not UUIDs can never name a branch and get a 404.
func branchScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		branchID := strings.TrimSpace(chi.URLParam(r, "branchID"))
		if branchID == "" {
			httpjson.Error(w, http.StatusBadRequest, "missing branch")
			return
		}
		if _, err := uuid.Parse(branchID); err != nil {
			httpjson.Error(w, http.StatusNotFound, "branch not found")
			return
		}
		next.ServeHTTP(w, r.WithContext(tenancy.WithBranchID(r.Context(), branchID)))
	})
}

// pathIDs answers 404 when any {...ID} path parameter is not a UUID. It must
// sit on leaf routes, where chi has resolved every parameter.
func pathIDs(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			for i, key := range rctx.URLParams.Keys {
				if !strings.HasSuffix(key, "ID") {
					continue
				}
				if _, err := uuid.Parse(rctx.URLParams.Values[i]); err != nil {
					httpjson.Error(w, http.StatusNotFound, "not found")
					return
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}
