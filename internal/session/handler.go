package session

import (
	"errors"
	"net/http"

	"github.com/draly94/SW/internal/http/httpjson"
	"github.com/draly94/SW/internal/tenancy"
	"github.com/draly94/SW/pkg/logging"
)

type Handler struct {
	loader *Loader
	logger *logging.Logger
}

func NewHandler(loader *Loader, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{loader: loader, logger: logger}
}

// AppData returns the bootstrap payload.
// GET /api/me/app-data?branch_id=
func (h *Handler) AppData(w http.ResponseWriter, r *http.Request) {
	id, ok := tenancy.IdentityFromContext(r.Context())
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	data, err := h.loader.Load(r.Context(), id, r.URL.Query().Get("branch_id"))
	if err != nil {
		if errors.Is(err, ErrConnection) {
			httpjson.Error(w, http.StatusServiceUnavailable, ErrConnection.Error())
			return
		}
		h.logger.Error("app data request failed", "user_id", id.UserID, "error", err)
		httpjson.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}
	httpjson.Write(w, http.StatusOK, data)
}
