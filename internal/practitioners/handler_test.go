package practitioners

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
)

func newHandlerRouter(t *testing.T) (http.Handler, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(mock.Close)

	handler := NewHandler(NewRepository(mock), nil)
	r := chi.NewRouter()
	r.Get("/practitioners", handler.List)
	r.Get("/practitioners/{id}", handler.Get)
	r.Put("/admin/practitioners/{id}/rate", handler.UpdateRate)
	return r, mock
}

func practitionerRows() *pgxmock.Rows {
	now := time.Now()
	return pgxmock.NewRows([]string{
		"id", "name", "email", "description", "hourly_rate_minor", "created_at", "updated_at",
	}).AddRow("prac-1", "Grace Hopper", "grace@example.com", "Compilers", int64(12000), now, now)
}

func TestListPractitioners(t *testing.T) {
	router, mock := newHandlerRouter(t)
	mock.ExpectQuery("SELECT (.+) FROM practitioners").WillReturnRows(practitionerRows())

	req := httptest.NewRequest(http.MethodGet, "/practitioners", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Practitioners []Practitioner `json:"practitioners"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Practitioners) != 1 || resp.Practitioners[0].Name != "Grace Hopper" {
		t.Errorf("unexpected body: %+v", resp)
	}
}

func TestGetPractitionerNotFound(t *testing.T) {
	router, mock := newHandlerRouter(t)
	mock.ExpectQuery("SELECT (.+) FROM practitioners").
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	req := httptest.NewRequest(http.MethodGet, "/practitioners/ghost", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestUpdateRateEndpoint(t *testing.T) {
	router, mock := newHandlerRouter(t)
	mock.ExpectExec("UPDATE practitioners").
		WithArgs("prac-1", int64(15000)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	req := httptest.NewRequest(http.MethodPut, "/admin/practitioners/prac-1/rate",
		strings.NewReader(`{"hourly_rate_minor": 15000}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestUpdateRateRejectsNegative(t *testing.T) {
	router, _ := newHandlerRouter(t)

	req := httptest.NewRequest(http.MethodPut, "/admin/practitioners/prac-1/rate",
		strings.NewReader(`{"hourly_rate_minor": -5}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
