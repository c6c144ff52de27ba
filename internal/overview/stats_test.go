package overview

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"

	"github.com/draly94/SW/internal/profiles"
	"github.com/draly94/SW/internal/tenancy"
)

var day = time.Date(2026, 6, 15, 22, 30, 0, 0, time.UTC)

func expectCounts(mock pgxmock.PgxPoolIface, branchID string) {
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM patients WHERE branch_id = \$1`).
		WithArgs(branchID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(42)))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM appointments WHERE branch_id = \$1 AND appointment_date = \$2::date`).
		WithArgs(branchID, "2026-06-15").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(7)))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM inventory WHERE branch_id = \$1 AND stock = 0`).
		WithArgs(branchID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(3)))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM invitations WHERE branch_id = \$1`).
		WithArgs(branchID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(2)))
}

func TestStatsRepository_GetStats(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	expectCounts(mock, "b1")

	stats, err := NewStatsRepository(mock).GetStats(context.Background(), "b1", day)
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.Patients != 42 || stats.AppointmentsToday != 7 || stats.OutOfStock != 3 || stats.PendingInvitations != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.Date != "2026-06-15" {
		t.Errorf("Date = %q", stats.Date)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestStatsRepository_GetStats_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM patients`).
		WithArgs("b1").
		WillReturnError(errors.New("connection reset"))

	if _, err := NewStatsRepository(mock).GetStats(context.Background(), "b1", day); err == nil {
		t.Fatal("expected error")
	}
}

type stubProfiles struct {
	profile *profiles.Profile
	err     error
}

func (s stubProfiles) Get(context.Context, string) (*profiles.Profile, error) {
	return s.profile, s.err
}

func TestStatsHandler_DisplayName(t *testing.T) {
	tests := []struct {
		name     string
		profiles ProfileGetter
		want     string
	}{
		{"profile name", stubProfiles{profile: &profiles.Profile{Name: "Dr. Lina"}}, "Dr. Lina"},
		{"no profile", stubProfiles{err: profiles.ErrNotFound}, "lina@clinic.test"},
		{"profile error", stubProfiles{err: errors.New("boom")}, "lina@clinic.test"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			if err != nil {
				t.Fatalf("failed to create mock pool: %v", err)
			}
			defer mock.Close()
			expectCounts(mock, "b1")

			h := NewStatsHandler(NewStatsRepository(mock), tt.profiles, nil)
			h.now = func() time.Time { return day }

			req := httptest.NewRequest(http.MethodGet, "/api/branches/b1/overview", nil)
			ctx := tenancy.WithBranchID(req.Context(), "b1")
			ctx = tenancy.WithIdentity(ctx, tenancy.Identity{UserID: "u1", Email: "lina@clinic.test"})
			rec := httptest.NewRecorder()
			h.GetStats(rec, req.WithContext(ctx))

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
			}
			var got Stats
			if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got.DisplayName != tt.want {
				t.Errorf("DisplayName = %q, want %q", got.DisplayName, tt.want)
			}
			if got.Patients != 42 {
				t.Errorf("Patients = %d", got.Patients)
			}
		})
	}
}
