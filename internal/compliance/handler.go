package compliance

import (
	"context"
	"net/http"
	"strconv"

	"github.com/draly94/SW/internal/http/httpjson"
	"github.com/draly94/SW/internal/tenancy"
	"github.com/draly94/SW/pkg/logging"
)

const maxAuditPage = 100

// EventQuerier lists audit events; *AuditService satisfies it.
type EventQuerier interface {
	QueryEvents(ctx context.Context, filter AuditFilter) ([]AuditEvent, error)
}

// Handler exposes the audit trail of a branch.
type Handler struct {
	events EventQuerier
	logger *logging.Logger
}

// NewHandler creates an audit trail handler.
func NewHandler(events EventQuerier, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{events: events, logger: logger}
}

// List returns recent audit events.
// GET /api/branches/{branchID}/audit?subject_id=&event_type=&limit=&offset=
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	branchID, _ := tenancy.BranchIDFromContext(r.Context())
	q := r.URL.Query()
	filter := AuditFilter{
		BranchID:  branchID,
		SubjectID: q.Get("subject_id"),
		EventType: AuditEventType(q.Get("event_type")),
		Limit:     50,
	}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		filter.Limit = min(n, maxAuditPage)
	}
	if n, err := strconv.Atoi(q.Get("offset")); err == nil && n > 0 {
		filter.Offset = n
	}

	events, err := h.events.QueryEvents(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to query audit events", "branch_id", branchID, "error", err)
		httpjson.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{"events": events})
}
