package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/GregMSThompson/dashboard-backend/internal/charting"
	"github.com/GregMSThompson/dashboard-backend/internal/dto"
	"github.com/GregMSThompson/dashboard-backend/internal/errs"
	"github.com/GregMSThompson/dashboard-backend/internal/middleware"
	"github.com/GregMSThompson/dashboard-backend/internal/models"
)

// --- Stub service ---

type stubDashboardService struct {
	doc       *models.Dashboard
	docErr    error
	view      *dto.DashboardView
	change    *dto.ChartChangeResponse
	render    *dto.ChartRenderResponse
	export    []byte
	page      []byte
	fields    []models.Field
	list      []models.DashboardSummary
	deleteErr error

	lastUID        string
	lastID         string
	lastChartID    string
	lastVersion    int64
	lastCreateReq  dto.CreateDashboardRequest
	lastUpdateReq  dto.UpdateDashboardRequest
	lastLayout     []models.LayoutCell
	lastSpecs      []models.ChartSpec
	lastKind       models.ChartKind
	lastFieldReq   dto.UpdateChartFieldRequest
	lastRange      dto.DateRangeQuery
	lastTableQuery dto.TableQuery
}

func (s *stubDashboardService) ListFields(_ context.Context) ([]models.Field, error) {
	return s.fields, s.docErr
}

func (s *stubDashboardService) ChartKinds() []charting.KindInfo {
	return charting.Kinds()
}

func (s *stubDashboardService) ListDashboards(_ context.Context) ([]models.DashboardSummary, error) {
	return s.list, s.docErr
}

func (s *stubDashboardService) GetDashboard(_ context.Context, id string) (*models.Dashboard, error) {
	s.lastID = id
	return s.doc, s.docErr
}

func (s *stubDashboardService) CreateDashboard(_ context.Context, uid string, req dto.CreateDashboardRequest) (*models.Dashboard, error) {
	s.lastUID = uid
	s.lastCreateReq = req
	return s.doc, s.docErr
}

func (s *stubDashboardService) UpdateDashboard(_ context.Context, id string, req dto.UpdateDashboardRequest, version int64) (*models.Dashboard, error) {
	s.lastID, s.lastUpdateReq, s.lastVersion = id, req, version
	return s.doc, s.docErr
}

func (s *stubDashboardService) DeleteDashboard(_ context.Context, id string, version int64) error {
	s.lastID, s.lastVersion = id, version
	return s.deleteErr
}

func (s *stubDashboardService) SaveLayout(_ context.Context, id string, layout []models.LayoutCell, version int64) (*models.Dashboard, error) {
	s.lastID, s.lastLayout, s.lastVersion = id, layout, version
	return s.doc, s.docErr
}

func (s *stubDashboardService) SaveCharts(_ context.Context, id string, specs []models.ChartSpec, version int64) (*models.Dashboard, error) {
	s.lastID, s.lastSpecs, s.lastVersion = id, specs, version
	return s.doc, s.docErr
}

func (s *stubDashboardService) AddChart(_ context.Context, id string, kind models.ChartKind, version int64) (*dto.ChartChangeResponse, error) {
	s.lastID, s.lastKind, s.lastVersion = id, kind, version
	return s.change, s.docErr
}

func (s *stubDashboardService) UpdateChart(_ context.Context, id, chartID string, req dto.UpdateChartFieldRequest, version int64) (*dto.ChartChangeResponse, error) {
	s.lastID, s.lastChartID, s.lastFieldReq, s.lastVersion = id, chartID, req, version
	return s.change, s.docErr
}

func (s *stubDashboardService) RemoveChart(_ context.Context, id, chartID string, version int64) (*models.Dashboard, error) {
	s.lastID, s.lastChartID, s.lastVersion = id, chartID, version
	return s.doc, s.docErr
}

func (s *stubDashboardService) RenderDashboard(_ context.Context, id string, q dto.DateRangeQuery) (*dto.DashboardView, error) {
	s.lastID, s.lastRange = id, q
	return s.view, s.docErr
}

func (s *stubDashboardService) RenderChart(_ context.Context, id, chartID string, q dto.DateRangeQuery, tq dto.TableQuery) (*dto.ChartRenderResponse, error) {
	s.lastID, s.lastChartID, s.lastRange, s.lastTableQuery = id, chartID, q, tq
	return s.render, s.docErr
}

func (s *stubDashboardService) ExportChart(_ context.Context, id, chartID string, q dto.DateRangeQuery) ([]byte, string, error) {
	s.lastID, s.lastChartID, s.lastRange = id, chartID, q
	return s.export, chartID + ".xlsx", s.docErr
}

func (s *stubDashboardService) Preview(_ context.Context, id string, q dto.DateRangeQuery) ([]byte, error) {
	s.lastID, s.lastRange = id, q
	return s.page, s.docErr
}

// withUID injects a UID into the request context.
func withUID(r *http.Request, uid string) *http.Request {
	ctx := context.WithValue(r.Context(), middleware.UIDKey, uid)
	return r.WithContext(ctx)
}

// withChiParams injects chi URL parameters into the request context.
func withChiParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

func newHandlers(svc *stubDashboardService) (*dashboardHandlers, *stubResponseHandler) {
	resp := &stubResponseHandler{}
	return NewDashboardHandlers(&Deps{ResponseHandler: resp, DashboardSvc: svc}), resp
}

// --- Tests ---

func TestGetDashboard_OK(t *testing.T) {
	svc := &stubDashboardService{doc: &models.Dashboard{ID: "d1", Version: 7}}
	h, resp := newHandlers(svc)

	req := withChiParams(httptest.NewRequest(http.MethodGet, "/dashboards/d1", nil), "id", "d1")
	rr := httptest.NewRecorder()
	h.GetDashboard(rr, req)

	if !resp.writeSuccessCalled || resp.writeSuccessStatus != http.StatusOK {
		t.Fatalf("expected WriteSuccess with 200, got called=%v status=%d", resp.writeSuccessCalled, resp.writeSuccessStatus)
	}
	if got := rr.Header().Get("ETag"); got != `"7"` {
		t.Errorf("expected ETag \"7\", got %q", got)
	}
	if svc.lastID != "d1" {
		t.Errorf("expected id d1, got %q", svc.lastID)
	}
}

func TestGetDashboard_ServiceError(t *testing.T) {
	svc := &stubDashboardService{docErr: errs.NewNotFoundError("dashboard not found")}
	h, resp := newHandlers(svc)

	req := withChiParams(httptest.NewRequest(http.MethodGet, "/dashboards/d1", nil), "id", "d1")
	rr := httptest.NewRecorder()
	h.GetDashboard(rr, req)

	if !resp.handleErrorCalled {
		t.Fatal("expected HandleError to be called")
	}
	if rr.Header().Get("ETag") != "" {
		t.Error("expected no ETag on error")
	}
}

func TestCreateDashboard_OK(t *testing.T) {
	svc := &stubDashboardService{doc: &models.Dashboard{ID: "d1", Version: 1}}
	h, resp := newHandlers(svc)

	body := `{"name":"Ops","layout":[{"i":"c1","x":0,"y":0,"w":6,"h":8}],"config":{"charts":{"c1":{"type":"pie","categoryField":"category","valueField":"sales"}},"data":[{"date":"2026-01-30","sales":100}]}}`
	req := withUID(httptest.NewRequest(http.MethodPost, "/dashboards", strings.NewReader(body)), "uid1")
	rr := httptest.NewRecorder()
	h.CreateDashboard(rr, req)

	if !resp.writeSuccessCalled || resp.writeSuccessStatus != http.StatusCreated {
		t.Fatalf("expected WriteSuccess with 201, got called=%v status=%d", resp.writeSuccessCalled, resp.writeSuccessStatus)
	}
	if svc.lastUID != "uid1" {
		t.Errorf("expected uid1, got %q", svc.lastUID)
	}
	pie, ok := svc.lastCreateReq.Config.Charts["c1"].(*models.PieChart)
	if !ok {
		t.Fatalf("expected pie chart, got %T", svc.lastCreateReq.Config.Charts["c1"])
	}
	if pie.ID != "c1" || pie.ValueField != "sales" {
		t.Errorf("unexpected pie spec: %+v", pie)
	}
	if len(svc.lastCreateReq.Config.Data) != 1 {
		t.Errorf("expected 1 row, got %d", len(svc.lastCreateReq.Config.Data))
	}
}

func TestCreateDashboard_BadJSON(t *testing.T) {
	svc := &stubDashboardService{}
	h, resp := newHandlers(svc)

	req := httptest.NewRequest(http.MethodPost, "/dashboards", strings.NewReader(`{"name":`))
	rr := httptest.NewRecorder()
	h.CreateDashboard(rr, req)

	var ve *errs.ValidationError
	if !resp.handleErrorCalled || !errors.As(resp.handleError, &ve) {
		t.Fatalf("expected ValidationError, got %T: %v", resp.handleError, resp.handleError)
	}
}

func TestCreateDashboard_UnknownChartType(t *testing.T) {
	svc := &stubDashboardService{}
	h, resp := newHandlers(svc)

	body := `{"name":"Ops","config":{"charts":{"c1":{"type":"radar"}}}}`
	req := httptest.NewRequest(http.MethodPost, "/dashboards", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.CreateDashboard(rr, req)

	if !resp.handleErrorCalled {
		t.Fatal("expected HandleError to be called")
	}
	if svc.lastCreateReq.Name != "" {
		t.Error("service should not be called")
	}
}

func TestSaveCharts_IfMatch(t *testing.T) {
	svc := &stubDashboardService{doc: &models.Dashboard{ID: "d1", Version: 5}}
	h, resp := newHandlers(svc)

	body := `{"charts":[{"id":"a","type":"bar","xField":"date","yField":"sales"},{"type":"table","fields":["date"]}]}`
	req := httptest.NewRequest(http.MethodPut, "/dashboards/d1/charts", strings.NewReader(body))
	req.Header.Set("If-Match", `W/"4"`)
	req = withChiParams(req, "id", "d1")
	rr := httptest.NewRecorder()
	h.SaveCharts(rr, req)

	if !resp.writeSuccessCalled {
		t.Fatalf("expected WriteSuccess, got error %v", resp.handleError)
	}
	if svc.lastVersion != 4 {
		t.Errorf("expected version 4, got %d", svc.lastVersion)
	}
	if len(svc.lastSpecs) != 2 || svc.lastSpecs[1].Kind() != models.ChartTable {
		t.Errorf("unexpected specs: %+v", svc.lastSpecs)
	}
	if got := rr.Header().Get("ETag"); got != `"5"` {
		t.Errorf("expected ETag \"5\", got %q", got)
	}
}

func TestSaveLayout_BadIfMatch(t *testing.T) {
	svc := &stubDashboardService{}
	h, resp := newHandlers(svc)

	req := httptest.NewRequest(http.MethodPut, "/dashboards/d1/layout", strings.NewReader(`{"layout":[]}`))
	req.Header.Set("If-Match", "abc")
	req = withChiParams(req, "id", "d1")
	rr := httptest.NewRecorder()
	h.SaveLayout(rr, req)

	var ve *errs.ValidationError
	if !errors.As(resp.handleError, &ve) {
		t.Fatalf("expected ValidationError, got %T: %v", resp.handleError, resp.handleError)
	}
	if svc.lastID != "" {
		t.Error("service should not be called")
	}
}

func TestUpdateChart_OK(t *testing.T) {
	svc := &stubDashboardService{change: &dto.ChartChangeResponse{
		Chart:     &models.BarChart{ChartBase: models.ChartBase{ID: "c1", Title: "Revenue"}},
		Dashboard: &models.Dashboard{ID: "d1", Version: 2},
	}}
	h, resp := newHandlers(svc)

	req := httptest.NewRequest(http.MethodPatch, "/dashboards/d1/charts/c1", strings.NewReader(`{"field":"title","value":"Revenue"}`))
	req = withChiParams(req, "id", "d1", "chartId", "c1")
	rr := httptest.NewRecorder()
	h.UpdateChart(rr, req)

	if !resp.writeSuccessCalled || resp.writeSuccessStatus != http.StatusOK {
		t.Fatalf("expected WriteSuccess with 200, got called=%v status=%d", resp.writeSuccessCalled, resp.writeSuccessStatus)
	}
	if svc.lastChartID != "c1" || svc.lastFieldReq.Field != "title" || svc.lastFieldReq.Value != "Revenue" {
		t.Errorf("unexpected call: chart=%q req=%+v", svc.lastChartID, svc.lastFieldReq)
	}
	if svc.lastVersion != 0 {
		t.Errorf("expected no version check, got %d", svc.lastVersion)
	}
}

func TestDeleteDashboard_Conflict(t *testing.T) {
	svc := &stubDashboardService{deleteErr: errs.NewConflictError(2, 3)}
	h, resp := newHandlers(svc)

	req := httptest.NewRequest(http.MethodDelete, "/dashboards/d1", nil)
	req.Header.Set("If-Match", `"2"`)
	req = withChiParams(req, "id", "d1")
	rr := httptest.NewRecorder()
	h.DeleteDashboard(rr, req)

	var ce *errs.ConflictError
	if !errors.As(resp.handleError, &ce) {
		t.Fatalf("expected ConflictError, got %T: %v", resp.handleError, resp.handleError)
	}
	if svc.lastVersion != 2 {
		t.Errorf("expected version 2, got %d", svc.lastVersion)
	}
}

func TestRouter_RenderWithRange(t *testing.T) {
	svc := &stubDashboardService{view: &dto.DashboardView{ID: "d1", Version: 3}}
	h, resp := newHandlers(svc)

	req := httptest.NewRequest(http.MethodGet, "/d1/render?from=2026-01-30&to=2026-01-31", nil)
	rr := httptest.NewRecorder()
	h.DashboardRoutes().ServeHTTP(rr, req)

	if !resp.writeSuccessCalled {
		t.Fatalf("expected WriteSuccess, got status %d", rr.Code)
	}
	want := dto.DateRangeQuery{From: "2026-01-30", To: "2026-01-31"}
	if svc.lastRange != want || svc.lastID != "d1" {
		t.Errorf("unexpected call: id=%q range=%+v", svc.lastID, svc.lastRange)
	}
}

func TestRouter_FieldsNotTreatedAsID(t *testing.T) {
	svc := &stubDashboardService{fields: charting.DefaultFields()}
	h, resp := newHandlers(svc)

	rr := httptest.NewRecorder()
	h.DashboardRoutes().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/fields", nil))

	if !resp.writeSuccessCalled {
		t.Fatalf("expected WriteSuccess, got status %d", rr.Code)
	}
	if svc.lastID != "" {
		t.Errorf("expected GetDashboard not to be called, got id %q", svc.lastID)
	}
	fields, ok := resp.writeSuccessData.([]models.Field)
	if !ok || len(fields) != 4 {
		t.Errorf("unexpected data: %#v", resp.writeSuccessData)
	}
}

func TestRouter_ChartKinds(t *testing.T) {
	svc := &stubDashboardService{}
	h, resp := newHandlers(svc)

	rr := httptest.NewRecorder()
	h.DashboardRoutes().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/chart-kinds", nil))

	kinds, ok := resp.writeSuccessData.([]charting.KindInfo)
	if !ok || len(kinds) != len(models.ChartKinds) {
		t.Fatalf("unexpected data: %#v", resp.writeSuccessData)
	}
	if kinds[0].Kind != models.ChartBar || kinds[3].Defaults.PageSize != models.DefaultPageSize {
		t.Errorf("unexpected catalog: %+v", kinds)
	}
	if svc.lastID != "" {
		t.Errorf("expected GetDashboard not to be called, got id %q", svc.lastID)
	}
}

func TestRouter_RenderChartTableQuery(t *testing.T) {
	svc := &stubDashboardService{render: &dto.ChartRenderResponse{}}
	h, _ := newHandlers(svc)

	req := httptest.NewRequest(http.MethodGet, "/d1/charts/t1?sort=sales&desc=true&page=2&filter.category=Food&filter.category=Clothing", nil)
	rr := httptest.NewRecorder()
	h.DashboardRoutes().ServeHTTP(rr, req)

	tq := svc.lastTableQuery
	if svc.lastChartID != "t1" || tq.Sort != "sales" || !tq.Desc || tq.Page != 2 {
		t.Errorf("unexpected table query: chart=%q %+v", svc.lastChartID, tq)
	}
	if got := tq.Filters["category"]; len(got) != 2 || got[0] != "Food" || got[1] != "Clothing" {
		t.Errorf("unexpected filters: %v", tq.Filters)
	}
}

func TestRouter_ExportChart(t *testing.T) {
	svc := &stubDashboardService{export: []byte("PK\x03\x04")}
	h, _ := newHandlers(svc)

	rr := httptest.NewRecorder()
	h.DashboardRoutes().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/d1/charts/c2/export", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := rr.Header().Get("Content-Disposition"); got != `attachment; filename="c2.xlsx"` {
		t.Errorf("unexpected Content-Disposition %q", got)
	}
	if rr.Body.String() != "PK\x03\x04" {
		t.Errorf("unexpected body %q", rr.Body.String())
	}
}

func TestRouter_Preview(t *testing.T) {
	svc := &stubDashboardService{page: []byte("<html></html>")}
	h, _ := newHandlers(svc)

	rr := httptest.NewRecorder()
	h.DashboardRoutes().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/d1/preview", nil))

	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("unexpected Content-Type %q", ct)
	}
}
