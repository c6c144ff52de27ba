package profiles

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/draly94/SW/internal/http/httpjson"
	"github.com/draly94/SW/internal/tenancy"
	"github.com/draly94/SW/pkg/logging"
)

// Repository is satisfied by *Store.
type Repository interface {
	Get(ctx context.Context, userID string) (*Profile, error)
	Upsert(ctx context.Context, p Profile) (*Profile, error)
}

type Handler struct {
	repo   Repository
	logger *logging.Logger
}

func NewHandler(repo Repository, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, logger: logger}
}

// Get returns the caller's profile. A missing row yields an empty profile
// carrying the identity email.
// GET /api/me/profile
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := tenancy.IdentityFromContext(r.Context())
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	p, err := h.repo.Get(r.Context(), id.UserID)
	if errors.Is(err, ErrNotFound) {
		p, err = &Profile{UserID: id.UserID, Email: id.Email}, nil
	}
	if err != nil {
		h.logger.Error("failed to load profile", "user_id", id.UserID, "error", err)
		httpjson.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}
	httpjson.Write(w, http.StatusOK, p)
}

type updateRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Update upserts the caller's profile. The identity email wins over the body.
// PUT /api/me/profile
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := tenancy.IdentityFromContext(r.Context())
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	var req updateRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	email := id.Email
	if email == "" {
		email = strings.ToLower(strings.TrimSpace(req.Email))
	}
	p, err := h.repo.Upsert(r.Context(), Profile{
		UserID: id.UserID,
		Name:   strings.TrimSpace(req.Name),
		Email:  email,
		Phone:  strings.TrimSpace(req.Phone),
	})
	if err != nil {
		h.logger.Error("failed to save profile", "user_id", id.UserID, "error", err)
		httpjson.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}
	httpjson.Write(w, http.StatusOK, p)
}
