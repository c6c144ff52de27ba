package branches

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/draly94/SW/internal/http/httpjson"
	"github.com/draly94/SW/internal/schedule"
	"github.com/draly94/SW/internal/tenancy"
	"github.com/draly94/SW/pkg/logging"
)

// BranchGetter loads a single branch.
type BranchGetter interface {
	Get(ctx context.Context, branchID string) (*Branch, error)
}

// Handler serves branch settings and the clinic list.
type Handler struct {
	branches BranchGetter
	configs  *ConfigService
	logger   *logging.Logger
}

// NewHandler creates the branch settings handler.
func NewHandler(branches BranchGetter, configs *ConfigService, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{branches: branches, configs: configs, logger: logger}
}

// Clinics returns the clinic numbers of the branch.
// GET /api/branches/{branchID}/clinics
func (h *Handler) Clinics(w http.ResponseWriter, r *http.Request) {
	branchID, _ := tenancy.BranchIDFromContext(r.Context())
	b, err := h.branches.Get(r.Context(), branchID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpjson.Error(w, http.StatusNotFound, "branch not found")
			return
		}
		h.logger.Error("failed to load branch", "branch_id", branchID, "error", err)
		httpjson.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{
		"clinic_count": b.ClinicCount,
		"clinics":      schedule.ClinicNumbers(b.ClinicCount),
	})
}

// GetConfig returns the inventory or pricing catalog.
// GET /api/branches/{branchID}/settings/{kind}
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	kind, err := ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		httpjson.Error(w, http.StatusNotFound, "unknown settings kind")
		return
	}
	branchID, _ := tenancy.BranchIDFromContext(r.Context())
	cat, err := h.configs.GetConfig(r.Context(), branchID, kind)
	if err != nil {
		h.writeError(w, branchID, kind, err)
		return
	}
	httpjson.Write(w, http.StatusOK, cat)
}

// SaveConfig replaces the inventory or pricing catalog.
// PUT /api/branches/{branchID}/settings/{kind}
func (h *Handler) SaveConfig(w http.ResponseWriter, r *http.Request) {
	kind, err := ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		httpjson.Error(w, http.StatusNotFound, "unknown settings kind")
		return
	}
	var cat Catalog
	if err := httpjson.Decode(r, &cat); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	cat.normalize()
	branchID, _ := tenancy.BranchIDFromContext(r.Context())
	saved, err := h.configs.SaveConfig(r.Context(), branchID, kind, cat)
	if err != nil {
		h.writeError(w, branchID, kind, err)
		return
	}
	h.logger.Info("branch config saved", "branch_id", branchID, "kind", kind, "categories", len(saved.Categories))
	httpjson.Write(w, http.StatusOK, saved)
}

func (h *Handler) writeError(w http.ResponseWriter, branchID string, kind Kind, err error) {
	if errors.Is(err, ErrNotFound) {
		httpjson.Error(w, http.StatusNotFound, "branch not found")
		return
	}
	h.logger.Error("branch config failed", "branch_id", branchID, "kind", kind, "error", err)
	httpjson.Error(w, http.StatusInternalServerError, "internal server error")
}
