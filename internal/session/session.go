// Package session builds the app-data payload a client loads after sign-in.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/draly94/SW/internal/access"
	"github.com/draly94/SW/internal/branches"
	"github.com/draly94/SW/internal/observability/metrics"
	"github.com/draly94/SW/internal/tenancy"
	"github.com/draly94/SW/pkg/logging"
)

// DefaultMaxAttempts bounds the app-data load.
const DefaultMaxAttempts = 5

// ErrConnection is returned once every attempt has failed.
var ErrConnection = errors.New("connection_timeout")

// Claimer turns pending invitations into memberships; *staff.Service
// satisfies it.
type Claimer interface {
	Claim(ctx context.Context, userID, email string) ([]string, error)
}

// BranchLister is satisfied by *branches.Store.
type BranchLister interface {
	ListForUser(ctx context.Context, userID string) ([]branches.Branch, error)
}

// AppData is the bootstrap payload.
type AppData struct {
	Branches         []branches.Branch  `json:"branches"`
	SelectedBranchID string             `json:"selected_branch_id"`
	Membership       *access.Membership `json:"membership,omitempty"`
	Navigation       []access.NavItem   `json:"navigation"`
	CreateViews      []string           `json:"create_views"`
}

type Loader struct {
	claims      Claimer
	branches    BranchLister
	members     access.MembershipGetter
	metrics     *metrics.ClinicMetrics
	logger      *logging.Logger
	maxAttempts int
	now         func() time.Time
}

func NewLoader(claims Claimer, branchLister BranchLister, members access.MembershipGetter, m *metrics.ClinicMetrics, maxAttempts int, logger *logging.Logger) *Loader {
	if logger == nil {
		logger = logging.Default()
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Loader{
		claims:      claims,
		branches:    branchLister,
		members:     members,
		metrics:     m,
		logger:      logger,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

// Load claims invitations for the caller and lists their branches, retrying
// the whole step up to maxAttempts times. preferred selects a branch when the
// caller is a member of it; otherwise the oldest branch is selected.
func (l *Loader) Load(ctx context.Context, id tenancy.Identity, preferred string) (*AppData, error) {
	var (
		list []branches.Branch
		err  error
	)
	for attempt := 1; attempt <= l.maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		list, err = l.attempt(ctx, id)
		l.metrics.ObserveAppDataAttempt(err == nil)
		if err == nil {
			break
		}
		l.logger.Warn("app data load failed", "user_id", id.UserID, "attempt", attempt, "error", err)
	}
	if err != nil {
		return nil, ErrConnection
	}

	data := &AppData{Branches: list, CreateViews: []string{}}
	if data.Branches == nil {
		data.Branches = []branches.Branch{}
	}
	data.SelectedBranchID = selectBranch(list, preferred)

	if data.SelectedBranchID != "" && l.members != nil {
		m, err := l.members.Get(ctx, id.UserID, data.SelectedBranchID)
		if err != nil {
			l.logger.Warn("failed to load membership for app data", "user_id", id.UserID, "branch_id", data.SelectedBranchID, "error", err)
		} else {
			data.Membership = m
		}
	}
	now := l.now()
	data.Navigation = access.Navigation(data.Membership, now)
	data.CreateViews = access.CreateViews(data.Membership, now)
	return data, nil
}

func (l *Loader) attempt(ctx context.Context, id tenancy.Identity) ([]branches.Branch, error) {
	if id.Email != "" && l.claims != nil {
		if _, err := l.claims.Claim(ctx, id.UserID, id.Email); err != nil {
			l.logger.Error("invitation claim failed", "user_id", id.UserID, "error", err)
		}
	}
	return l.branches.ListForUser(ctx, id.UserID)
}

func selectBranch(list []branches.Branch, preferred string) string {
	if len(list) == 0 {
		return ""
	}
	for _, b := range list {
		if preferred != "" && b.ID == preferred {
			return b.ID
		}
	}
	return list[0].ID
}
