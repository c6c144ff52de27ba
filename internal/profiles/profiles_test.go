package profiles

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draly94/SW/internal/tenancy"
)

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Amal", Profile{Name: "Amal", Email: "amal@clinic.test"}.DisplayName())
	assert.Equal(t, "amal@clinic.test", Profile{Name: " ", Email: "amal@clinic.test"}.DisplayName())
}

func TestStoreGetAndUpsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT name, email, phone FROM profiles").
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"name", "email", "phone"}))
	mock.ExpectQuery("INSERT INTO profiles").
		WithArgs("u1", "Amal", "amal@clinic.test", "0501").
		WillReturnRows(pgxmock.NewRows([]string{"name", "email", "phone"}).AddRow("Amal", "amal@clinic.test", "0501"))

	store := NewStore(mock)
	_, err = store.Get(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	p, err := store.Upsert(context.Background(), Profile{UserID: "u1", Name: "Amal", Email: "amal@clinic.test", Phone: "0501"})
	require.NoError(t, err)
	assert.Equal(t, "0501", p.Phone)
	require.NoError(t, mock.ExpectationsWereMet())
}

type memoryRepo struct {
	rows map[string]Profile
}

func (m *memoryRepo) Get(_ context.Context, userID string) (*Profile, error) {
	p, ok := m.rows[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *memoryRepo) Upsert(_ context.Context, p Profile) (*Profile, error) {
	m.rows[p.UserID] = p
	return &p, nil
}

func withIdentity(req *http.Request) *http.Request {
	ctx := tenancy.WithIdentity(req.Context(), tenancy.Identity{UserID: "u1", Email: "Amal@Clinic.test"})
	return req.WithContext(ctx)
}

func TestHandlerRoundTrip(t *testing.T) {
	h := NewHandler(&memoryRepo{rows: map[string]Profile{}}, nil)

	rec := httptest.NewRecorder()
	h.Get(rec, withIdentity(httptest.NewRequest(http.MethodGet, "/api/me/profile", nil)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":"u1","name":"","email":"amal@clinic.test","phone":""}`, rec.Body.String())

	rec = httptest.NewRecorder()
	body := strings.NewReader(`{"name":" Amal ","email":"other@clinic.test","phone":"0501"}`)
	h.Update(rec, withIdentity(httptest.NewRequest(http.MethodPut, "/api/me/profile", body)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":"u1","name":"Amal","email":"amal@clinic.test","phone":"0501"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/api/me/profile", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
