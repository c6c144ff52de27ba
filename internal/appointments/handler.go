package appointments

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/draly94/SW/internal/http/httpjson"
	"github.com/draly94/SW/internal/schedule"
	"github.com/draly94/SW/internal/tenancy"
	"github.com/draly94/SW/pkg/logging"
)

// Handler exposes booking and schedule endpoints for a branch.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates an appointments HTTP handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Create books an appointment.
// POST /api/branches/{branchID}/appointments
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := httpjson.Decode(r, &in); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	branchID, _ := tenancy.BranchIDFromContext(r.Context())
	id, _ := tenancy.IdentityFromContext(r.Context())

	a, err := h.service.Create(r.Context(), branchID, id.UserID, in)
	if err != nil {
		h.writeError(w, branchID, err)
		return
	}
	httpjson.Write(w, http.StatusCreated, a)
}

// Update edits an appointment.
// PUT /api/branches/{branchID}/appointments/{appointmentID}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var in UpdateInput
	if err := httpjson.Decode(r, &in); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	branchID, _ := tenancy.BranchIDFromContext(r.Context())
	a, err := h.service.Update(r.Context(), branchID, chi.URLParam(r, "appointmentID"), in)
	if err != nil {
		h.writeError(w, branchID, err)
		return
	}
	httpjson.Write(w, http.StatusOK, a)
}

// Schedule returns the day grid for one clinic room.
// GET /api/branches/{branchID}/schedule?date=YYYY-MM-DD&clinic=N
func (h *Handler) Schedule(w http.ResponseWriter, r *http.Request) {
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		date = time.Now().UTC().Format(schedule.DateLayout)
	}
	clinic := 1
	if raw := r.URL.Query().Get("clinic"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			httpjson.Error(w, http.StatusBadRequest, "clinic must be a number")
			return
		}
		clinic = n
	}
	branchID, _ := tenancy.BranchIDFromContext(r.Context())
	view, err := h.service.DayView(r.Context(), branchID, date, clinic)
	if err != nil {
		h.writeError(w, branchID, err)
		return
	}
	httpjson.Write(w, http.StatusOK, view)
}

// ForPatient lists a patient's appointments.
// GET /api/branches/{branchID}/patients/{patientID}/appointments
func (h *Handler) ForPatient(w http.ResponseWriter, r *http.Request) {
	branchID, _ := tenancy.BranchIDFromContext(r.Context())
	list, err := h.service.ListForPatient(r.Context(), branchID, chi.URLParam(r, "patientID"))
	if err != nil {
		h.writeError(w, branchID, err)
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{"appointments": list})
}

func (h *Handler) writeError(w http.ResponseWriter, branchID string, err error) {
	switch {
	case errors.Is(err, ErrSlotConflict):
		httpjson.Error(w, http.StatusConflict, ConflictMessage)
	case errors.Is(err, ErrInvalid):
		httpjson.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		httpjson.Error(w, http.StatusNotFound, "appointment not found")
	default:
		h.logger.Error("appointment request failed", "branch_id", branchID, "error", err)
		httpjson.Error(w, http.StatusInternalServerError, "internal server error")
	}
}
