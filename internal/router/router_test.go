package router

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/text/language"

	"github.com/GregMSThompson/dashboard-backend/internal/charting"
	"github.com/GregMSThompson/dashboard-backend/internal/handlers"
	"github.com/GregMSThompson/dashboard-backend/internal/models"
	"github.com/GregMSThompson/dashboard-backend/internal/response"
	"github.com/GregMSThompson/dashboard-backend/internal/services"
	"github.com/GregMSThompson/dashboard-backend/pkg/logger"
)

type emptyStore struct{}

func (emptyStore) Create(context.Context, *models.Dashboard) error { return nil }
func (emptyStore) Get(context.Context, string) (*models.Dashboard, error) {
	return nil, nil
}
func (emptyStore) List(context.Context) ([]models.DashboardSummary, error) { return nil, nil }
func (emptyStore) Update(context.Context, string, models.DashboardPatch, int64) (*models.Dashboard, error) {
	return nil, nil
}
func (emptyStore) Delete(context.Context, string, int64) error        { return nil }
func (emptyStore) ListFields(context.Context) ([]models.Field, error) { return nil, nil }

func newTestRouter() http.Handler {
	log := slog.New(logger.NewTestHandler(slog.LevelInfo))
	deps := &handlers.Deps{
		Log:             log,
		ResponseHandler: response.New(log),
		DashboardSvc:    services.NewDashboardService(emptyStore{}, emptyStore{}, charting.NewRenderer(language.English)),
	}
	return NewRouter(deps)
}

func TestRouter_Healthz(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestRouter_AnonymousFields(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/dashboards/fields", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestRouter_UnknownRoute(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/users", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}
