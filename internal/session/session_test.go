package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draly94/SW/internal/access"
	"github.com/draly94/SW/internal/branches"
	"github.com/draly94/SW/internal/observability/metrics"
	"github.com/draly94/SW/internal/tenancy"
)

type flakyBranches struct {
	failures int
	calls    int
	list     []branches.Branch
}

func (f *flakyBranches) ListForUser(context.Context, string) ([]branches.Branch, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("dial tcp: i/o timeout")
	}
	return f.list, nil
}

type countingClaimer struct {
	calls int
	err   error
}

func (c *countingClaimer) Claim(context.Context, string, string) ([]string, error) {
	c.calls++
	return nil, c.err
}

type stubMembers struct {
	flags access.Flags
}

func (s stubMembers) Get(_ context.Context, userID, branchID string) (*access.Membership, error) {
	if branchID == "b-missing" {
		return nil, access.ErrNotMember
	}
	return &access.Membership{UserID: userID, BranchID: branchID, Role: "nurse", Flags: s.flags}, nil
}

var (
	identity    = tenancy.Identity{UserID: "u1", Email: "lina@clinic.test"}
	twoBranches = []branches.Branch{{ID: "b1", Name: "Downtown"}, {ID: "b2", Name: "Uptown"}}
)

func attempts(t *testing.T, reg *prometheus.Registry, result string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "clinic_session_app_data_attempts_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelValue(m, "result") == result {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

func TestLoadRetriesUntilSuccess(t *testing.T) {
	reg := prometheus.NewRegistry()
	lister := &flakyBranches{failures: 4, list: twoBranches}
	claims := &countingClaimer{err: errors.New("rpc failed")}
	flags, _ := access.DefaultFlags("nurse")
	loader := NewLoader(claims, lister, stubMembers{flags: flags}, metrics.NewClinicMetrics(reg), 0, nil)

	data, err := loader.Load(context.Background(), identity, "")
	require.NoError(t, err)
	assert.Equal(t, 5, lister.calls)
	assert.Equal(t, 5, claims.calls)
	assert.Equal(t, "b1", data.SelectedBranchID)
	require.NotNil(t, data.Membership)
	assert.Equal(t, float64(4), attempts(t, reg, "failure"))
	assert.Equal(t, float64(1), attempts(t, reg, "success"))

	var ids []string
	for _, item := range data.Navigation {
		ids = append(ids, item.ID)
	}
	assert.Equal(t, []string{"overview", "patients", "appointments", "inventory", "profile", "settings"}, ids)
	assert.Empty(t, data.CreateViews)
}

func TestLoadGivesUpAfterFiveAttempts(t *testing.T) {
	lister := &flakyBranches{failures: 10}
	loader := NewLoader(nil, lister, nil, nil, DefaultMaxAttempts, nil)

	_, err := loader.Load(context.Background(), identity, "")
	assert.ErrorIs(t, err, ErrConnection)
	assert.Equal(t, 5, lister.calls)
}

func TestLoadSelection(t *testing.T) {
	loader := NewLoader(nil, &flakyBranches{list: twoBranches}, stubMembers{}, nil, 0, nil)

	data, err := loader.Load(context.Background(), identity, "b2")
	require.NoError(t, err)
	assert.Equal(t, "b2", data.SelectedBranchID)

	data, err = loader.Load(context.Background(), identity, "not-mine")
	require.NoError(t, err)
	assert.Equal(t, "b1", data.SelectedBranchID)

	empty := NewLoader(nil, &flakyBranches{}, stubMembers{}, nil, 0, nil)
	data, err = empty.Load(context.Background(), identity, "")
	require.NoError(t, err)
	assert.Equal(t, "", data.SelectedBranchID)
	assert.NotNil(t, data.Branches)
	assert.Nil(t, data.Membership)
	assert.Len(t, data.Navigation, 3)
}

func TestLoadSkipsClaimWithoutEmail(t *testing.T) {
	claims := &countingClaimer{}
	loader := NewLoader(claims, &flakyBranches{list: twoBranches}, nil, nil, 0, nil)

	_, err := loader.Load(context.Background(), tenancy.Identity{UserID: "u1"}, "")
	require.NoError(t, err)
	assert.Equal(t, 0, claims.calls)
}

func TestLoadStopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	lister := &flakyBranches{failures: 10}
	_, err := NewLoader(nil, lister, nil, nil, 0, nil).Load(ctx, identity, "")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, lister.calls)
}

func TestHandlerStatuses(t *testing.T) {
	down := NewHandler(NewLoader(nil, &flakyBranches{failures: 10}, nil, nil, 0, nil), nil)
	req := httptest.NewRequest(http.MethodGet, "/api/me/app-data", nil)
	req = req.WithContext(tenancy.WithIdentity(req.Context(), identity))

	rec := httptest.NewRecorder()
	down.AppData(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"error":"connection_timeout"}`, rec.Body.String())

	up := NewHandler(NewLoader(nil, &flakyBranches{list: twoBranches}, nil, nil, 0, nil), nil)
	up.loader.now = func() time.Time { return time.Date(2026, 6, 15, 9, 0, 0, 0, time.UTC) }
	rec = httptest.NewRecorder()
	up.AppData(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"selected_branch_id":"b1"`)

	rec = httptest.NewRecorder()
	up.AppData(rec, httptest.NewRequest(http.MethodGet, "/api/me/app-data", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
