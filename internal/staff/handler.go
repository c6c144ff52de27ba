package staff

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/draly94/SW/internal/access"
	"github.com/draly94/SW/internal/http/httpjson"
	"github.com/draly94/SW/internal/tenancy"
	"github.com/draly94/SW/pkg/logging"
)

type Handler struct {
	service *Service
	logger  *logging.Logger
}

func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// List returns members and pending invitations.
// GET /api/branches/{branchID}/staff?role=
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	branchID, _ := tenancy.BranchIDFromContext(r.Context())
	entries, err := h.service.List(r.Context(), branchID, r.URL.Query().Get("role"))
	if err != nil {
		h.writeError(w, branchID, err)
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{"staff": entries})
}

// Providers returns the dentists of the branch.
// GET /api/branches/{branchID}/providers
func (h *Handler) Providers(w http.ResponseWriter, r *http.Request) {
	branchID, _ := tenancy.BranchIDFromContext(r.Context())
	list, err := h.service.Providers(r.Context(), branchID)
	if err != nil {
		h.writeError(w, branchID, err)
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{"providers": list})
}

// Invite creates an invitation.
// POST /api/branches/{branchID}/staff/invitations
func (h *Handler) Invite(w http.ResponseWriter, r *http.Request) {
	var in InviteInput
	if err := httpjson.Decode(r, &in); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	branchID, _ := tenancy.BranchIDFromContext(r.Context())
	id, _ := tenancy.IdentityFromContext(r.Context())

	inv, err := h.service.Invite(r.Context(), branchID, id.UserID, in)
	if err != nil {
		h.writeError(w, branchID, err)
		return
	}
	httpjson.Write(w, http.StatusCreated, inv)
}

type resendRequest struct {
	Email string `json:"email"`
}

// Resend queues the invitation email again.
// POST /api/branches/{branchID}/staff/invitations/resend
func (h *Handler) Resend(w http.ResponseWriter, r *http.Request) {
	var req resendRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	branchID, _ := tenancy.BranchIDFromContext(r.Context())
	id, _ := tenancy.IdentityFromContext(r.Context())

	inv, err := h.service.Resend(r.Context(), branchID, id.UserID, req.Email)
	if err != nil {
		h.writeError(w, branchID, err)
		return
	}
	httpjson.Write(w, http.StatusOK, inv)
}

// Permissions returns a member's flags.
// GET /api/branches/{branchID}/staff/{userID}/permissions
func (h *Handler) Permissions(w http.ResponseWriter, r *http.Request) {
	branchID, _ := tenancy.BranchIDFromContext(r.Context())
	m, err := h.service.Permissions(r.Context(), branchID, chi.URLParam(r, "userID"))
	if err != nil {
		h.writeError(w, branchID, err)
		return
	}
	httpjson.Write(w, http.StatusOK, m)
}

type permissionRequest struct {
	Flag  string `json:"flag"`
	Value *bool  `json:"value"`
}

// SetPermission toggles one flag.
// PUT /api/branches/{branchID}/staff/{userID}/permissions
func (h *Handler) SetPermission(w http.ResponseWriter, r *http.Request) {
	var req permissionRequest
	if err := httpjson.Decode(r, &req); err != nil || req.Value == nil {
		httpjson.Error(w, http.StatusBadRequest, "flag and value are required")
		return
	}
	branchID, _ := tenancy.BranchIDFromContext(r.Context())
	id, _ := tenancy.IdentityFromContext(r.Context())
	userID := chi.URLParam(r, "userID")

	if err := h.service.SetPermission(r.Context(), branchID, id.UserID, userID, req.Flag, *req.Value); err != nil {
		h.writeError(w, branchID, err)
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{"user_id": userID, "flag": req.Flag, "value": *req.Value})
}

func (h *Handler) writeError(w http.ResponseWriter, branchID string, err error) {
	switch {
	case errors.Is(err, ErrInvalid), errors.Is(err, access.ErrUnknownFlag):
		httpjson.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrDuplicate):
		httpjson.Error(w, http.StatusConflict, "an invitation for this email already exists")
	case errors.Is(err, ErrNotFound):
		httpjson.Error(w, http.StatusNotFound, "invitation not found")
	case errors.Is(err, access.ErrNotMember):
		httpjson.Error(w, http.StatusNotFound, "member not found")
	default:
		h.logger.Error("staff request failed", "branch_id", branchID, "error", err)
		httpjson.Error(w, http.StatusInternalServerError, "internal server error")
	}
}
