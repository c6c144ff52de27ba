package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/draly94/SW/internal/tenancy"
)

func withBranchParam(r *http.Request, branchID string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("branchID", branchID)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestBranchScopePassesThrough(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		branchID, ok := tenancy.BranchIDFromContext(r.Context())
		if !ok || branchID != ownBranch {
			t.Fatalf("expected branch id propagated, got %s / %v", branchID, ok)
		}
		w.WriteHeader(http.StatusTeapot)
	})

	req := withBranchParam(httptest.NewRequest(http.MethodGet, "/api/branches/"+ownBranch+"/overview", nil), ownBranch)
	rr := httptest.NewRecorder()
	branchScope(next).ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected downstream status, got %d", rr.Code)
	}
}

func TestBranchScopeMissingParam(t *testing.T) {
	handler := branchScope(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not run")
	}))
	req := withBranchParam(httptest.NewRequest(http.MethodGet, "/test", nil), " ")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing branch, got %d", rr.Code)
	}
}

func TestBranchScopeRejectsMalformedID(t *testing.T) {
	handler := branchScope(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not run")
	}))
	for _, id := range []string{"b1", "not-a-uuid", "6f1c2b9e-4a1d-4c3e-9f7a"} {
		req := withBranchParam(httptest.NewRequest(http.MethodGet, "/test", nil), id)
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusNotFound {
			t.Fatalf("%q: expected 404, got %d", id, rr.Code)
		}
		if !strings.Contains(rr.Body.String(), "branch not found") {
			t.Fatalf("%q: unexpected body %s", id, rr.Body.String())
		}
	}
}

func TestPathIDsRejectsMalformedParams(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]string
		status int
	}{
		{"valid ids", map[string]string{"branchID": ownBranch, "patientID": otherUser}, http.StatusTeapot},
		{"bad patient id", map[string]string{"branchID": ownBranch, "patientID": "p1"}, http.StatusNotFound},
		{"non id params ignored", map[string]string{"kind": "general"}, http.StatusTeapot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rctx := chi.NewRouteContext()
			for k, v := range tt.params {
				rctx.URLParams.Add(k, v)
			}
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
			rr := httptest.NewRecorder()

			pathIDs(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusTeapot)
			})).ServeHTTP(rr, req)

			if rr.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rr.Code)
			}
		})
	}
}
