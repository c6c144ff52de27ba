package push

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/draly94/SW/internal/http/httpjson"
	"github.com/draly94/SW/internal/tenancy"
	"github.com/draly94/SW/pkg/logging"
)

// Subscriptions is satisfied by *Store.
type Subscriptions interface {
	Subscribe(ctx context.Context, userID string, subscription json.RawMessage) (bool, error)
	Unsubscribe(ctx context.Context, userID, endpoint string) error
}

type Handler struct {
	store  Subscriptions
	logger *logging.Logger
}

func NewHandler(store Subscriptions, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger}
}

// Subscribe registers the PushSubscription JSON in the body.
// POST /api/me/push-subscriptions
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	id, _ := tenancy.IdentityFromContext(r.Context())
	var sub json.RawMessage
	if err := httpjson.Decode(r, &sub); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	created, err := h.store.Subscribe(r.Context(), id.UserID, sub)
	if err != nil {
		h.writeError(w, id.UserID, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httpjson.Write(w, status, map[string]bool{"created": created})
}

type unsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

// Unsubscribe drops the subscription for an endpoint.
// DELETE /api/me/push-subscriptions
func (h *Handler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	id, _ := tenancy.IdentityFromContext(r.Context())
	var req unsubscribeRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.store.Unsubscribe(r.Context(), id.UserID, req.Endpoint); err != nil {
		h.writeError(w, id.UserID, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeError(w http.ResponseWriter, userID string, err error) {
	if errors.Is(err, ErrInvalid) {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	h.logger.Error("push subscription request failed", "user_id", userID, "error", err)
	httpjson.Error(w, http.StatusInternalServerError, "internal server error")
}
