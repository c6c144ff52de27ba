package patients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draly94/SW/internal/tenancy"
)

var now = time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)

func TestAge(t *testing.T) {
	tests := []struct {
		dob    string
		want   int
		wantOK bool
	}{
		{"1990-06-15", 36, true},
		{"1990-06-16", 35, true},
		{"2000-12-31", 25, true},
		{"", 0, false},
		{"15/06/1990", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.dob, func(t *testing.T) {
			got, ok := Age(tt.dob, now)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMask(t *testing.T) {
	assert.Equal(t, "****4567", Mask("+9665551234567"))
	assert.Equal(t, "****", Mask("1234"))
	assert.Equal(t, "****", Mask("12"))
	assert.Equal(t, "", Mask(""))
	assert.Equal(t, "****رياض", Mask("حي الرياض"))
}

func TestCleanPhone(t *testing.T) {
	assert.Equal(t, "966555123456", CleanPhone("+966 (555) 123-456"))
	assert.Equal(t, "", CleanPhone("n/a"))
}

func TestNewView(t *testing.T) {
	p := Patient{ID: "p1", Name: "Sara", DOB: "1990-06-15", Phone: "+966 555 123 456", Address: "King Fahd Rd", GovID: "1029384756"}

	masked := NewView(p, false, now)
	assert.True(t, masked.Masked)
	assert.Equal(t, "36", masked.Age)
	assert.Equal(t, "**** 456", masked.Phone)
	assert.Equal(t, "****d Rd", masked.Address)
	assert.Equal(t, "****4756", masked.GovID)
	assert.Empty(t, masked.PhoneLink)

	clear := NewView(p, true, now)
	assert.False(t, clear.Masked)
	assert.Equal(t, "+966 555 123 456", clear.Phone)
	assert.Equal(t, "966555123456", clear.PhoneLink)

	noDOB := NewView(Patient{Name: "X"}, false, now)
	assert.Equal(t, AgeUnknown, noDOB.Age)
}

func TestChangedFields(t *testing.T) {
	p := &Patient{Name: "Sara", Phone: "1"}
	assert.Equal(t, []string{"phone", "gov_id"}, ChangedFields(p, Input{Name: "Sara", Phone: "2", GovID: "9"}))
	assert.Empty(t, ChangedFields(p, Input{Name: "Sara", Phone: "1"}))
}

func patientColumnsList() []string {
	return []string{"id", "branch_id", "name", "dob", "phone", "address", "gov_id", "created_at"}
}

func TestStoreSearchEscapesPattern(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`name ILIKE \$2`).
		WithArgs("b1", `Sa\%`+"%", 5).
		WillReturnRows(pgxmock.NewRows(patientColumnsList()).
			AddRow("p1", "b1", "Sa%ra", "", "", "", "", now))

	list, err := NewStore(mock).SearchByName(context.Background(), "b1", "Sa%", 5)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Sa%ra", list[0].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreCreateAndGet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	store := NewStore(mock)

	mock.ExpectQuery(`INSERT INTO patients`).
		WithArgs(pgxmock.AnyArg(), "b1", "Sara", nil, "555", "", "").
		WillReturnRows(pgxmock.NewRows(patientColumnsList()).
			AddRow("p1", "b1", "Sara", "", "555", "", "", now))
	p, err := store.Create(context.Background(), "b1", Input{Name: "Sara", Phone: "555"})
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)

	mock.ExpectQuery(`WHERE id = \$1 AND branch_id = \$2`).
		WithArgs("missing", "b1").
		WillReturnError(pgx.ErrNoRows)
	_, err = store.Get(context.Background(), "b1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	mock.ExpectQuery(`ORDER BY created_at DESC`).
		WithArgs("b1", 10).
		WillReturnRows(pgxmock.NewRows(patientColumnsList()))
	latest, err := store.Latest(context.Background(), "b1", 10)
	require.NoError(t, err)
	assert.Empty(t, latest)

	require.NoError(t, mock.ExpectationsWereMet())
}

type fakeRepo struct {
	patients    map[string]*Patient
	searchCalls int
	lastLimit   int
	updates     int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{patients: map[string]*Patient{
		"p1": {ID: "p1", BranchID: "b1", Name: "Sara", Phone: "555123456"},
	}}
}

func (f *fakeRepo) Create(_ context.Context, branchID string, in Input) (*Patient, error) {
	p := &Patient{ID: "p-new", BranchID: branchID, Name: in.Name, DOB: in.DOB, Phone: in.Phone}
	f.patients[p.ID] = p
	return p, nil
}

func (f *fakeRepo) Latest(context.Context, string, int) ([]Patient, error) {
	return []Patient{*f.patients["p1"]}, nil
}

func (f *fakeRepo) SearchByName(_ context.Context, _, _ string, limit int) ([]Patient, error) {
	f.searchCalls++
	f.lastLimit = limit
	return []Patient{*f.patients["p1"]}, nil
}

func (f *fakeRepo) Get(_ context.Context, _, id string) (*Patient, error) {
	p, ok := f.patients[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeRepo) Update(_ context.Context, _, id string, in Input) (*Patient, error) {
	f.updates++
	p := f.patients[id]
	p.Name, p.DOB, p.Phone, p.Address, p.GovID = in.Name, in.DOB, in.Phone, in.Address, in.GovID
	cp := *p
	return &cp, nil
}

type recordingAuditor struct {
	updated  [][]string
	revealed int
}

func (a *recordingAuditor) LogPatientUpdated(_ context.Context, _, _, _ string, fields []string) error {
	a.updated = append(a.updated, fields)
	return nil
}

func (a *recordingAuditor) LogPatientRevealed(context.Context, string, string, string, []string) error {
	a.revealed++
	return nil
}

func TestServiceSearch(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	list, err := svc.Search(ctx, "b1", " S ", 0)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Zero(t, repo.searchCalls)

	_, err = svc.Search(ctx, "b1", "Sa", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, repo.lastLimit)

	_, err = svc.Search(ctx, "b1", "Sa", 50)
	require.NoError(t, err)
	assert.Equal(t, PageSize, repo.lastLimit)
}

func TestServiceCreateValidates(t *testing.T) {
	svc := NewService(newFakeRepo(), nil, nil)
	_, err := svc.Create(context.Background(), "b1", Input{Name: "  "})
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = svc.Create(context.Background(), "b1", Input{Name: "Ali", DOB: "1/1/1990"})
	assert.ErrorIs(t, err, ErrInvalid)

	p, err := svc.Create(context.Background(), "b1", Input{Name: " Ali ", DOB: "1990-01-01"})
	require.NoError(t, err)
	assert.Equal(t, "Ali", p.Name)
}

func TestServiceUpdateAuditsChangedFields(t *testing.T) {
	repo := newFakeRepo()
	audit := &recordingAuditor{}
	svc := NewService(repo, audit, nil)
	ctx := context.Background()

	_, err := svc.Update(ctx, "b1", "u1", "p1", Input{Name: "Sara", Phone: "555123456"})
	require.NoError(t, err)
	assert.Zero(t, repo.updates)
	assert.Empty(t, audit.updated)

	p, err := svc.Update(ctx, "b1", "u1", "p1", Input{Name: "Sara K", Phone: "555123456", Address: "Olaya"})
	require.NoError(t, err)
	assert.Equal(t, "Sara K", p.Name)
	require.Len(t, audit.updated, 1)
	assert.Equal(t, []string{"name", "address"}, audit.updated[0])

	_, err = svc.Update(ctx, "b1", "u1", "ghost", Input{Name: "X"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Get(ctx, "b1", "u1", "p1", true)
	require.NoError(t, err)
	assert.Equal(t, 1, audit.revealed)
}

func request(method, target, body string, params map[string]string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	ctx = tenancy.WithBranchID(ctx, "b1")
	ctx = tenancy.WithIdentity(ctx, tenancy.Identity{UserID: "u1"})
	return req.WithContext(ctx)
}

func TestHandlerGetMasksUnlessRevealed(t *testing.T) {
	h := NewHandler(NewService(newFakeRepo(), nil, nil), nil)
	h.now = func() time.Time { return now }

	rec := httptest.NewRecorder()
	h.Get(rec, request(http.MethodGet, "/patients/p1", "", map[string]string{"patientID": "p1"}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"phone":"****3456"`)
	assert.Contains(t, rec.Body.String(), `"age":"N/A"`)

	rec = httptest.NewRecorder()
	h.Get(rec, request(http.MethodGet, "/patients/p1?reveal=true", "", map[string]string{"patientID": "p1"}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"phone":"555123456"`)

	rec = httptest.NewRecorder()
	h.Get(rec, request(http.MethodGet, "/patients/nope", "", map[string]string{"patientID": "nope"}))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerListAndCreate(t *testing.T) {
	repo := newFakeRepo()
	h := NewHandler(NewService(repo, nil, nil), nil)

	rec := httptest.NewRecorder()
	h.List(rec, request(http.MethodGet, "/patients?q=S", "", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"patients":[]}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.List(rec, request(http.MethodGet, "/patients", "", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Sara")

	rec = httptest.NewRecorder()
	h.Create(rec, request(http.MethodPost, "/patients", `{"name":"Omar","phone":"0501234567"}`, nil))
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	h.Create(rec, request(http.MethodPost, "/patients", `{"phone":"0501234567"}`, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
