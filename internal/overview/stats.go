// Package overview serves the landing counters of a branch.
package overview

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/draly94/SW/internal/http/httpjson"
	"github.com/draly94/SW/internal/profiles"
	"github.com/draly94/SW/internal/tenancy"
	"github.com/draly94/SW/pkg/logging"
)

// Stats are the per-branch counters shown on the overview.
type Stats struct {
	BranchID           string `json:"branch_id"`
	Date               string `json:"date"`
	DisplayName        string `json:"display_name"`
	Patients           int64  `json:"patients"`
	AppointmentsToday  int64  `json:"appointments_today"`
	OutOfStock         int64  `json:"out_of_stock"`
	PendingInvitations int64  `json:"pending_invitations"`
}

// statsDB defines the database interface needed by StatsRepository
type statsDB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// StatsRepository counts branch rows.
type StatsRepository struct {
	db statsDB
}

func NewStatsRepository(db statsDB) *StatsRepository {
	return &StatsRepository{db: db}
}

// GetStats counts the branch's patients, appointments on day, items with no
// stock and pending invitations.
func (r *StatsRepository) GetStats(ctx context.Context, branchID string, day time.Time) (*Stats, error) {
	date := day.UTC().Format("2006-01-02")
	stats := &Stats{BranchID: branchID, Date: date}

	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM patients WHERE branch_id = $1`, branchID).Scan(&stats.Patients); err != nil {
		return nil, fmt.Errorf("overview: count patients: %w", err)
	}
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM appointments WHERE branch_id = $1 AND appointment_date = $2::date`, branchID, date).Scan(&stats.AppointmentsToday); err != nil {
		return nil, fmt.Errorf("overview: count appointments: %w", err)
	}
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM inventory WHERE branch_id = $1 AND stock = 0`, branchID).Scan(&stats.OutOfStock); err != nil {
		return nil, fmt.Errorf("overview: count out of stock: %w", err)
	}
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM invitations WHERE branch_id = $1`, branchID).Scan(&stats.PendingInvitations); err != nil {
		return nil, fmt.Errorf("overview: count invitations: %w", err)
	}
	return stats, nil
}

// ProfileGetter is satisfied by *profiles.Store.
type ProfileGetter interface {
	Get(ctx context.Context, userID string) (*profiles.Profile, error)
}

// StatsHandler provides the overview endpoint.
type StatsHandler struct {
	repo     *StatsRepository
	profiles ProfileGetter
	logger   *logging.Logger
	now      func() time.Time
}

func NewStatsHandler(repo *StatsRepository, profileGetter ProfileGetter, logger *logging.Logger) *StatsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &StatsHandler{repo: repo, profiles: profileGetter, logger: logger, now: time.Now}
}

// GetStats returns the branch counters and the caller's display name.
// GET /api/branches/{branchID}/overview
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	branchID, _ := tenancy.BranchIDFromContext(r.Context())
	id, _ := tenancy.IdentityFromContext(r.Context())

	stats, err := h.repo.GetStats(r.Context(), branchID, h.now())
	if err != nil {
		h.logger.Error("failed to get overview stats", "branch_id", branchID, "error", err)
		httpjson.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}

	stats.DisplayName = id.Email
	if h.profiles != nil {
		p, err := h.profiles.Get(r.Context(), id.UserID)
		switch {
		case err == nil:
			if name := p.DisplayName(); name != "" {
				stats.DisplayName = name
			}
		case !errors.Is(err, profiles.ErrNotFound):
			h.logger.Warn("failed to load profile for overview", "user_id", id.UserID, "error", err)
		}
	}
	httpjson.Write(w, http.StatusOK, stats)
}
