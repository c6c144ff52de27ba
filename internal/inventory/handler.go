package inventory

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

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

// List returns a page of items.
// GET /api/branches/{branchID}/inventory?page=&category=&sub_category=&q=
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	branchID, _ := tenancy.BranchIDFromContext(r.Context())
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))

	result, err := h.service.List(r.Context(), branchID, Filter{
		Page:        page,
		Category:    q.Get("category"),
		SubCategory: q.Get("sub_category"),
		Query:       q.Get("q"),
	})
	if err != nil {
		h.writeError(w, branchID, err)
		return
	}
	httpjson.Write(w, http.StatusOK, result)
}

// Create adds an item.
// POST /api/branches/{branchID}/inventory
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := httpjson.Decode(r, &in); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	branchID, _ := tenancy.BranchIDFromContext(r.Context())
	item, err := h.service.Create(r.Context(), branchID, in)
	if err != nil {
		h.writeError(w, branchID, err)
		return
	}
	httpjson.Write(w, http.StatusCreated, item)
}

type stockRequest struct {
	Stock Quantity `json:"stock"`
}

// SetStock replaces the stock count.
// PUT /api/branches/{branchID}/inventory/{itemID}/stock
func (h *Handler) SetStock(w http.ResponseWriter, r *http.Request) {
	var req stockRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	branchID, _ := tenancy.BranchIDFromContext(r.Context())
	item, err := h.service.SetStock(r.Context(), branchID, chi.URLParam(r, "itemID"), int(req.Stock))
	if err != nil {
		h.writeError(w, branchID, err)
		return
	}
	httpjson.Write(w, http.StatusOK, item)
}

func (h *Handler) writeError(w http.ResponseWriter, branchID string, err error) {
	switch {
	case errors.Is(err, ErrInvalid):
		httpjson.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		httpjson.Error(w, http.StatusNotFound, "item not found")
	default:
		h.logger.Error("inventory request failed", "branch_id", branchID, "error", err)
		httpjson.Error(w, http.StatusInternalServerError, "internal server error")
	}
}
