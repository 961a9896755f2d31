package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/GregMSThompson/dashboard-backend/internal/charting"
	"github.com/GregMSThompson/dashboard-backend/internal/dto"
	"github.com/GregMSThompson/dashboard-backend/internal/export"
	"github.com/GregMSThompson/dashboard-backend/internal/middleware"
	"github.com/GregMSThompson/dashboard-backend/internal/models"
	"github.com/GregMSThompson/dashboard-backend/internal/response"
)

type DashboardService interface {
	ListFields(ctx context.Context) ([]models.Field, error)
	ChartKinds() []charting.KindInfo
	ListDashboards(ctx context.Context) ([]models.DashboardSummary, error)
	GetDashboard(ctx context.Context, id string) (*models.Dashboard, error)
	CreateDashboard(ctx context.Context, uid string, req dto.CreateDashboardRequest) (*models.Dashboard, error)
	UpdateDashboard(ctx context.Context, id string, req dto.UpdateDashboardRequest, version int64) (*models.Dashboard, error)
	DeleteDashboard(ctx context.Context, id string, version int64) error
	SaveLayout(ctx context.Context, id string, layout []models.LayoutCell, version int64) (*models.Dashboard, error)
	SaveCharts(ctx context.Context, id string, specs []models.ChartSpec, version int64) (*models.Dashboard, error)
	AddChart(ctx context.Context, id string, kind models.ChartKind, version int64) (*dto.ChartChangeResponse, error)
	UpdateChart(ctx context.Context, id, chartID string, req dto.UpdateChartFieldRequest, version int64) (*dto.ChartChangeResponse, error)
	RemoveChart(ctx context.Context, id, chartID string, version int64) (*models.Dashboard, error)
	RenderDashboard(ctx context.Context, id string, q dto.DateRangeQuery) (*dto.DashboardView, error)
	RenderChart(ctx context.Context, id, chartID string, q dto.DateRangeQuery, tq dto.TableQuery) (*dto.ChartRenderResponse, error)
	ExportChart(ctx context.Context, id, chartID string, q dto.DateRangeQuery) ([]byte, string, error)
	Preview(ctx context.Context, id string, q dto.DateRangeQuery) ([]byte, error)
}

type dashboardHandlers struct {
	ResponseHandler response.ResponseHandler
	DashboardSvc    DashboardService
}

func NewDashboardHandlers(deps *Deps) *dashboardHandlers {
	return &dashboardHandlers{
		ResponseHandler: deps.ResponseHandler,
		DashboardSvc:    deps.DashboardSvc,
	}
}

func (h *dashboardHandlers) DashboardRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListDashboards)
	r.Post("/", h.CreateDashboard)
	r.Get("/fields", h.ListFields)          // must be before /{id}
	r.Get("/chart-kinds", h.ListChartKinds) // must be before /{id}
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.GetDashboard)
		r.Put("/", h.UpdateDashboard)
		r.Delete("/", h.DeleteDashboard)
		r.Get("/render", h.RenderDashboard)
		r.Get("/preview", h.Preview)
		r.Put("/layout", h.SaveLayout)
		r.Put("/charts", h.SaveCharts)
		r.Post("/charts", h.AddChart)
		r.Get("/charts/{chartId}", h.RenderChart)
		r.Patch("/charts/{chartId}", h.UpdateChart)
		r.Delete("/charts/{chartId}", h.RemoveChart)
		r.Get("/charts/{chartId}/export", h.ExportChart)
	})
	return r
}

func (h *dashboardHandlers) ListFields(w http.ResponseWriter, r *http.Request) {
	fields, err := h.DashboardSvc.ListFields(r.Context())
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, fields)
}

func (h *dashboardHandlers) ListChartKinds(w http.ResponseWriter, r *http.Request) {
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, h.DashboardSvc.ChartKinds())
}

func (h *dashboardHandlers) ListDashboards(w http.ResponseWriter, r *http.Request) {
	list, err := h.DashboardSvc.ListDashboards(r.Context())
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, list)
}

func (h *dashboardHandlers) GetDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.DashboardSvc.GetDashboard(r.Context(), chi.URLParam(r, "id"))
	h.writeDocument(w, r, http.StatusOK, d, err)
}

func (h *dashboardHandlers) CreateDashboard(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateDashboardRequest
	if err := decodeJSON(r, &req); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	uid := middleware.UID(r.Context())
	d, err := h.DashboardSvc.CreateDashboard(r.Context(), uid, req)
	h.writeDocument(w, r, http.StatusCreated, d, err)
}

func (h *dashboardHandlers) UpdateDashboard(w http.ResponseWriter, r *http.Request) {
	version, err := ifMatch(r)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	var req dto.UpdateDashboardRequest
	if err := decodeJSON(r, &req); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	d, err := h.DashboardSvc.UpdateDashboard(r.Context(), chi.URLParam(r, "id"), req, version)
	h.writeDocument(w, r, http.StatusOK, d, err)
}

func (h *dashboardHandlers) DeleteDashboard(w http.ResponseWriter, r *http.Request) {
	version, err := ifMatch(r)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	if err := h.DashboardSvc.DeleteDashboard(r.Context(), chi.URLParam(r, "id"), version); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, nil)
}

func (h *dashboardHandlers) SaveLayout(w http.ResponseWriter, r *http.Request) {
	version, err := ifMatch(r)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	var req dto.SaveLayoutRequest
	if err := decodeJSON(r, &req); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	d, err := h.DashboardSvc.SaveLayout(r.Context(), chi.URLParam(r, "id"), req.Layout, version)
	h.writeDocument(w, r, http.StatusOK, d, err)
}

func (h *dashboardHandlers) SaveCharts(w http.ResponseWriter, r *http.Request) {
	version, err := ifMatch(r)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	var req dto.SaveChartsRequest
	if err := decodeJSON(r, &req); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	d, err := h.DashboardSvc.SaveCharts(r.Context(), chi.URLParam(r, "id"), req.Charts, version)
	h.writeDocument(w, r, http.StatusOK, d, err)
}

func (h *dashboardHandlers) AddChart(w http.ResponseWriter, r *http.Request) {
	version, err := ifMatch(r)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	var req dto.AddChartRequest
	if err := decodeJSON(r, &req); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	res, err := h.DashboardSvc.AddChart(r.Context(), chi.URLParam(r, "id"), req.Type, version)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	setETag(w, res.Dashboard.Version)
	h.ResponseHandler.WriteSuccess(w, r, http.StatusCreated, res)
}

func (h *dashboardHandlers) UpdateChart(w http.ResponseWriter, r *http.Request) {
	version, err := ifMatch(r)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	var req dto.UpdateChartFieldRequest
	if err := decodeJSON(r, &req); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	res, err := h.DashboardSvc.UpdateChart(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "chartId"), req, version)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	setETag(w, res.Dashboard.Version)
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, res)
}

func (h *dashboardHandlers) RemoveChart(w http.ResponseWriter, r *http.Request) {
	version, err := ifMatch(r)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	d, err := h.DashboardSvc.RemoveChart(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "chartId"), version)
	h.writeDocument(w, r, http.StatusOK, d, err)
}

func (h *dashboardHandlers) RenderDashboard(w http.ResponseWriter, r *http.Request) {
	view, err := h.DashboardSvc.RenderDashboard(r.Context(), chi.URLParam(r, "id"), dateRange(r))
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	setETag(w, view.Version)
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, view)
}

func (h *dashboardHandlers) RenderChart(w http.ResponseWriter, r *http.Request) {
	res, err := h.DashboardSvc.RenderChart(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "chartId"), dateRange(r), tableQuery(r.URL.Query()))
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, res)
}

// ExportChart streams the chart's render model as an xlsx download.
func (h *dashboardHandlers) ExportChart(w http.ResponseWriter, r *http.Request) {
	data, name, err := h.DashboardSvc.ExportChart(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "chartId"), dateRange(r))
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *dashboardHandlers) Preview(w http.ResponseWriter, r *http.Request) {
	page, err := h.DashboardSvc.Preview(r.Context(), chi.URLParam(r, "id"), dateRange(r))
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(page)
}

// writeDocument writes d with its version as the ETag, or the error.
func (h *dashboardHandlers) writeDocument(w http.ResponseWriter, r *http.Request, status int, d *models.Dashboard, err error) {
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	setETag(w, d.Version)
	h.ResponseHandler.WriteSuccess(w, r, status, d)
}
