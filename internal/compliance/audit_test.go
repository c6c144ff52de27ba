package compliance

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draly94/SW/internal/tenancy"
)

func TestAuditService_LogEvent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewAuditService(db)

	tests := []struct {
		name    string
		event   AuditEvent
		wantErr bool
	}{
		{
			name: "log patient updated",
			event: AuditEvent{
				EventType:     EventPatientUpdated,
				BranchID:      "b1",
				ActorID:       "u1",
				SubjectID:     "p1",
				ChangedFields: []string{"name", "phone"},
			},
		},
		{
			name: "log permission changed",
			event: AuditEvent{
				EventType: EventPermissionChanged,
				BranchID:  "b1",
				SubjectID: "u2",
				Details:   json.RawMessage(`{"flag": "inv_u"}`),
			},
		},
		{
			name: "database failure",
			event: AuditEvent{
				EventType: EventInvitationSent,
				BranchID:  "b1",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp := mock.ExpectExec("INSERT INTO audit_events")
			if tt.wantErr {
				exp.WillReturnError(errors.New("connection reset"))
			} else {
				exp.WillReturnResult(sqlmock.NewResult(1, 1))
			}

			err := service.LogEvent(context.Background(), tt.event)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditService_LogPatientUpdated(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO audit_events").
		WithArgs(sqlmock.AnyArg(), "patient.updated", "b1", "u1", "p1", `{"name","gov_id"}`, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = NewAuditService(db).LogPatientUpdated(context.Background(), "b1", "u1", "p1", []string{"name", "gov_id"})
	assert.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditService_LogPermissionChanged(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO audit_events").
		WithArgs(sqlmock.AnyArg(), "permission.changed", "b1", "admin", "u2", `{"inv_d"}`,
			[]byte(`{"flag":"inv_d","value":false}`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = NewAuditService(db).LogPermissionChanged(context.Background(), "b1", "admin", "u2", "inv_d", false)
	assert.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditService_QueryEvents(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewAuditService(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "event_type", "branch_id", "actor_id", "subject_id",
		"changed_fields", "details", "created_at",
	}).AddRow(
		"evt-1", "patient.updated", "b1", "u1", "p1",
		`{name,phone}`, nil, now,
	)

	mock.ExpectQuery("SELECT (.+) FROM audit_events").
		WithArgs("b1", "p1").
		WillReturnRows(rows)

	events, err := service.QueryEvents(context.Background(), AuditFilter{
		BranchID:  "b1",
		SubjectID: "p1",
		Limit:     10,
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventPatientUpdated, events[0].EventType)
	assert.Equal(t, []string{"name", "phone"}, events[0].ChangedFields)
	assert.Nil(t, events[0].Details)
	require.NoError(t, mock.ExpectationsWereMet())
}

type stubQuerier struct {
	got AuditFilter
}

func (s *stubQuerier) QueryEvents(_ context.Context, f AuditFilter) ([]AuditEvent, error) {
	s.got = f
	return []AuditEvent{{ID: "evt-1", EventType: EventPermissionChanged}}, nil
}

func TestHandlerList(t *testing.T) {
	q := &stubQuerier{}
	h := NewHandler(q, nil)

	req := httptest.NewRequest(http.MethodGet, "/audit?subject_id=u2&limit=500&offset=10", nil)
	req = req.WithContext(tenancy.WithBranchID(req.Context(), "b1"))
	rec := httptest.NewRecorder()
	h.List(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "b1", q.got.BranchID)
	assert.Equal(t, "u2", q.got.SubjectID)
	assert.Equal(t, maxAuditPage, q.got.Limit)
	assert.Equal(t, 10, q.got.Offset)
	assert.Contains(t, rec.Body.String(), "permission.changed")
}
