package patients

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/draly94/SW/internal/http/httpjson"
	"github.com/draly94/SW/internal/tenancy"
	"github.com/draly94/SW/pkg/logging"
)

// Handler exposes the patient register of a branch.
type Handler struct {
	service *Service
	logger  *logging.Logger
	now     func() time.Time
}

// NewHandler creates a patients HTTP handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger, now: time.Now}
}

func (h *Handler) views(list []Patient) []View {
	now := h.now()
	out := make([]View, 0, len(list))
	for _, p := range list {
		out = append(out, NewView(p, false, now))
	}
	return out
}

// List returns the latest patients, or search results when q is set.
// GET /api/branches/{branchID}/patients?q=&limit=
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	branchID, _ := tenancy.BranchIDFromContext(r.Context())
	q := r.URL.Query()

	var (
		list []Patient
		err  error
	)
	if q.Has("q") {
		limit, _ := strconv.Atoi(q.Get("limit"))
		list, err = h.service.Search(r.Context(), branchID, q.Get("q"), limit)
	} else {
		list, err = h.service.Latest(r.Context(), branchID)
	}
	if err != nil {
		h.writeError(w, branchID, err)
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{"patients": h.views(list)})
}

// Create registers a patient.
// POST /api/branches/{branchID}/patients
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := httpjson.Decode(r, &in); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	branchID, _ := tenancy.BranchIDFromContext(r.Context())
	p, err := h.service.Create(r.Context(), branchID, in)
	if err != nil {
		h.writeError(w, branchID, err)
		return
	}
	httpjson.Write(w, http.StatusCreated, NewView(*p, false, h.now()))
}

// Get returns one patient; ?reveal=true returns sensitive fields in clear.
// GET /api/branches/{branchID}/patients/{patientID}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	branchID, _ := tenancy.BranchIDFromContext(r.Context())
	id, _ := tenancy.IdentityFromContext(r.Context())
	reveal, _ := strconv.ParseBool(r.URL.Query().Get("reveal"))

	p, err := h.service.Get(r.Context(), branchID, id.UserID, chi.URLParam(r, "patientID"), reveal)
	if err != nil {
		h.writeError(w, branchID, err)
		return
	}
	httpjson.Write(w, http.StatusOK, NewView(*p, reveal, h.now()))
}

// Update edits a patient.
// PUT /api/branches/{branchID}/patients/{patientID}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := httpjson.Decode(r, &in); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	branchID, _ := tenancy.BranchIDFromContext(r.Context())
	id, _ := tenancy.IdentityFromContext(r.Context())

	p, err := h.service.Update(r.Context(), branchID, id.UserID, chi.URLParam(r, "patientID"), in)
	if err != nil {
		h.writeError(w, branchID, err)
		return
	}
	httpjson.Write(w, http.StatusOK, NewView(*p, false, h.now()))
}

func (h *Handler) writeError(w http.ResponseWriter, branchID string, err error) {
	switch {
	case errors.Is(err, ErrInvalid):
		httpjson.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		httpjson.Error(w, http.StatusNotFound, "patient not found")
	default:
		h.logger.Error("patient request failed", "branch_id", branchID, "error", err)
		httpjson.Error(w, http.StatusInternalServerError, "internal server error")
	}
}
