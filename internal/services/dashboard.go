package services

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/GregMSThompson/dashboard-backend/internal/charting"
	"github.com/GregMSThompson/dashboard-backend/internal/dto"
	"github.com/GregMSThompson/dashboard-backend/internal/errs"
	"github.com/GregMSThompson/dashboard-backend/internal/export"
	"github.com/GregMSThompson/dashboard-backend/internal/models"
	"github.com/GregMSThompson/dashboard-backend/internal/preview"
	"github.com/GregMSThompson/dashboard-backend/pkg/logger"
)

// dashboardStore persists whole dashboard documents. Update and Delete
// check expectedVersion unless it is zero.
type dashboardStore interface {
	Create(ctx context.Context, d *models.Dashboard) error
	Get(ctx context.Context, id string) (*models.Dashboard, error)
	List(ctx context.Context) ([]models.DashboardSummary, error)
	Update(ctx context.Context, id string, patch models.DashboardPatch, expectedVersion int64) (*models.Dashboard, error)
	Delete(ctx context.Context, id string, expectedVersion int64) error
}

type fieldStore interface {
	ListFields(ctx context.Context) ([]models.Field, error)
}

type dashboardService struct {
	store    dashboardStore
	fields   fieldStore
	renderer *charting.Renderer
	ids      *charting.IDGenerator
	newID    func() string
}

func NewDashboardService(store dashboardStore, fields fieldStore, renderer *charting.Renderer) *dashboardService {
	return &dashboardService{
		store:    store,
		fields:   fields,
		renderer: renderer,
		ids:      charting.NewIDGenerator(nil),
		newID:    func() string { return uuid.New().String() },
	}
}

// --- Catalogs ---

// ListFields returns the stored field catalog, or the default one when
// nothing is configured.
func (s *dashboardService) ListFields(ctx context.Context) ([]models.Field, error) {
	fields, err := s.fields.ListFields(ctx)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return charting.DefaultFields(), nil
	}
	return fields, nil
}

func (s *dashboardService) ChartKinds() []charting.KindInfo {
	return charting.Kinds()
}

// --- Documents ---

func (s *dashboardService) ListDashboards(ctx context.Context) ([]models.DashboardSummary, error) {
	return s.store.List(ctx)
}

func (s *dashboardService) GetDashboard(ctx context.Context, id string) (*models.Dashboard, error) {
	return s.store.Get(ctx, id)
}

// CreateDashboard lays the charts out in the order the request's layout
// lists them, then stores the document. An empty dataset is replaced by
// the sample dataset.
func (s *dashboardService) CreateDashboard(ctx context.Context, uid string, req dto.CreateDashboardRequest) (*models.Dashboard, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	charts, err := normalize(req.Config.Charts)
	if err != nil {
		return nil, err
	}
	specs := charting.OrderCharts(charts, req.Layout)

	data := req.Config.Data
	if len(data) == 0 {
		data = charting.SampleDataset()
	}

	d := &models.Dashboard{
		ID:          s.newID(),
		Name:        req.Name,
		Description: req.Description,
		OwnerID:     uid,
		Layout:      charting.BuildLayout(specs),
		Config:      models.DashboardConfig{Charts: charts, Data: data},
	}
	if err := s.store.Create(ctx, d); err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx)
	log.Info("dashboard created", "dashboard_id", d.ID, "chart_count", len(charts), "row_count", len(data))
	return d, nil
}

// UpdateDashboard applies a partial update. New charts are laid out in the
// order of the supplied layout, or the stored one when none is given.
func (s *dashboardService) UpdateDashboard(ctx context.Context, id string, req dto.UpdateDashboardRequest, version int64) (*models.Dashboard, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if req.Layout != nil {
		if err := validateLayout(req.Layout); err != nil {
			return nil, err
		}
	}

	patch := models.DashboardPatch{
		Name:        req.Name,
		Description: req.Description,
		Layout:      req.Layout,
	}
	expected := version

	if req.Config != nil && req.Config.Charts != nil {
		charts, err := normalize(req.Config.Charts)
		if err != nil {
			return nil, err
		}
		layout := req.Layout
		if layout == nil {
			d, err := s.loadForWrite(ctx, id, version)
			if err != nil {
				return nil, err
			}
			layout = d.Layout
			expected = d.Version
		}
		cp, err := s.chartsPatch(charting.OrderCharts(charts, layout))
		if err != nil {
			return nil, err
		}
		patch.Layout, patch.Charts = cp.Layout, cp.Charts
	}
	if req.Config != nil && req.Config.Data != nil {
		patch.Data = req.Config.Data
	}

	return s.store.Update(ctx, id, patch, expected)
}

func (s *dashboardService) DeleteDashboard(ctx context.Context, id string, version int64) error {
	if err := s.store.Delete(ctx, id, version); err != nil {
		return err
	}
	log := logger.FromContext(ctx)
	log.Info("dashboard deleted", "dashboard_id", id)
	return nil
}

// SaveLayout replaces only the layout.
func (s *dashboardService) SaveLayout(ctx context.Context, id string, layout []models.LayoutCell, version int64) (*models.Dashboard, error) {
	if layout == nil {
		layout = []models.LayoutCell{}
	}
	if err := validateLayout(layout); err != nil {
		return nil, err
	}
	return s.store.Update(ctx, id, models.DashboardPatch{Layout: layout}, version)
}

// SaveCharts replaces the charts and recomputes the layout from their order.
// Saving no charts is rejected before the store is touched.
func (s *dashboardService) SaveCharts(ctx context.Context, id string, specs []models.ChartSpec, version int64) (*models.Dashboard, error) {
	patch, err := s.chartsPatch(specs)
	if err != nil {
		return nil, err
	}
	d, err := s.store.Update(ctx, id, patch, version)
	if err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx)
	log.Info("dashboard charts saved", "dashboard_id", id, "chart_count", len(specs), "version", d.Version)
	return d, nil
}

// --- Single-chart edits ---

// AddChart appends a new chart of kind with default bindings.
func (s *dashboardService) AddChart(ctx context.Context, id string, kind models.ChartKind, version int64) (*dto.ChartChangeResponse, error) {
	if err := validateStruct(dto.AddChartRequest{Type: kind}); err != nil {
		return nil, err
	}
	d, err := s.loadForWrite(ctx, id, version)
	if err != nil {
		return nil, err
	}
	spec, err := charting.NewChartWith(s.ids, kind)
	if err != nil {
		return nil, errs.NewValidationError(err.Error())
	}
	specs := append(charting.OrderCharts(d.Config.Charts, d.Layout), spec)
	updated, err := s.SaveCharts(ctx, id, specs, d.Version)
	if err != nil {
		return nil, err
	}
	return &dto.ChartChangeResponse{Chart: spec, Dashboard: updated}, nil
}

// UpdateChart sets one field of one chart. Fields that do not apply to the
// chart's kind are accepted and dropped.
func (s *dashboardService) UpdateChart(ctx context.Context, id, chartID string, req dto.UpdateChartFieldRequest, version int64) (*dto.ChartChangeResponse, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	d, err := s.loadForWrite(ctx, id, version)
	if err != nil {
		return nil, err
	}
	current, ok := d.Config.Charts[chartID]
	if !ok {
		return nil, errs.NewNotFoundError("chart not found")
	}
	next := charting.UpdateChartField(current, req.Field, req.Value)

	specs := charting.OrderCharts(d.Config.Charts, d.Layout)
	for i, spec := range specs {
		if spec.ChartID() == chartID {
			specs[i] = next
		}
	}
	updated, err := s.SaveCharts(ctx, id, specs, d.Version)
	if err != nil {
		return nil, err
	}
	return &dto.ChartChangeResponse{Chart: next, Dashboard: updated}, nil
}

// RemoveChart deletes one chart. Removing the last chart is a zero-chart
// save and is rejected.
func (s *dashboardService) RemoveChart(ctx context.Context, id, chartID string, version int64) (*models.Dashboard, error) {
	d, err := s.loadForWrite(ctx, id, version)
	if err != nil {
		return nil, err
	}
	if _, ok := d.Config.Charts[chartID]; !ok {
		return nil, errs.NewNotFoundError("chart not found")
	}
	specs := charting.RemoveChart(charting.OrderCharts(d.Config.Charts, d.Layout), chartID)
	return s.SaveCharts(ctx, id, specs, d.Version)
}

// --- Rendering ---

// RenderDashboard renders every layout cell against the dataset filtered
// by q. Cells whose chart is missing are reported as not renderable.
func (s *dashboardService) RenderDashboard(ctx context.Context, id string, q dto.DateRangeQuery) (*dto.DashboardView, error) {
	d, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return BuildView(ctx, s.renderer, d, q), nil
}

// BuildView renders d cell by cell in layout order.
func BuildView(ctx context.Context, renderer *charting.Renderer, d *models.Dashboard, q dto.DateRangeQuery) *dto.DashboardView {
	rows, rng := filteredRows(d, q)

	view := &dto.DashboardView{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Version:     d.Version,
		RowCount:    len(rows),
		Cells:       make([]dto.CellView, 0, len(d.Layout)),
	}
	if rng != nil {
		view.Range = &dto.DateRangeQuery{From: q.From, To: q.To}
	}

	log := logger.FromContext(ctx)
	for _, cell := range d.Layout {
		cv := dto.CellView{Cell: cell}
		if spec, ok := d.Config.Charts[cell.ID]; ok {
			cv.Renderable = true
			cv.Chart = spec
			cv.Model = renderer.Render(spec, rows)
		} else {
			log.Warn("layout cell has no chart", "dashboard_id", d.ID, "chart_id", cell.ID)
		}
		view.Cells = append(view.Cells, cv)
	}
	return view
}

// RenderChart renders one chart. Table results are then filtered, sorted
// and paged by tq.
func (s *dashboardService) RenderChart(ctx context.Context, id, chartID string, q dto.DateRangeQuery, tq dto.TableQuery) (*dto.ChartRenderResponse, error) {
	d, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	spec, ok := d.Config.Charts[chartID]
	if !ok {
		return nil, errs.NewNotFoundError("chart not found")
	}
	rows, _ := filteredRows(d, q)
	model := s.renderer.Render(spec, rows)
	if t, ok := model.(*charting.TabularRows); ok {
		t = charting.FilterRows(t, tq.Filters)
		if tq.Sort != "" {
			t = charting.SortRows(t, tq.Sort, tq.Desc)
		}
		if tq.Page > 0 {
			t = charting.Page(t, tq.Page)
		}
		model = t
	}
	return &dto.ChartRenderResponse{Chart: spec, Model: model}, nil
}

// ExportChart renders one chart into an xlsx workbook and returns the
// workbook bytes with a download file name.
func (s *dashboardService) ExportChart(ctx context.Context, id, chartID string, q dto.DateRangeQuery) ([]byte, string, error) {
	res, err := s.RenderChart(ctx, id, chartID, q, dto.TableQuery{})
	if err != nil {
		return nil, "", err
	}
	var buf bytes.Buffer
	if err := export.Write(&buf, res.Model); err != nil {
		return nil, "", fmt.Errorf("export chart %s: %w", chartID, err)
	}
	return buf.Bytes(), chartID + ".xlsx", nil
}

// Preview renders the dashboard as an HTML page in layout order.
func (s *dashboardService) Preview(ctx context.Context, id string, q dto.DateRangeQuery) ([]byte, error) {
	view, err := s.RenderDashboard(ctx, id, q)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := WritePreview(&buf, view); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WritePreview writes view as an HTML page.
func WritePreview(w io.Writer, view *dto.DashboardView) error {
	panels := make([]preview.Panel, len(view.Cells))
	for i, c := range view.Cells {
		title := c.Cell.Title
		if c.Chart != nil && c.Chart.ChartTitle() != "" {
			title = c.Chart.ChartTitle()
		}
		panels[i] = preview.Panel{ID: c.Cell.ID, Title: title, Model: c.Model}
	}
	return preview.Render(w, view.Name, panels)
}

// --- Helpers ---

// loadForWrite reads the document a read-modify-write starts from.
func (s *dashboardService) loadForWrite(ctx context.Context, id string, version int64) (*models.Dashboard, error) {
	d, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if version != 0 && d.Version != version {
		return nil, errs.NewConflictError(version, d.Version)
	}
	return d, nil
}

// chartsPatch builds the layout and chart set written by a chart save.
// Specs without an id get a fresh one.
func (s *dashboardService) chartsPatch(specs []models.ChartSpec) (models.DashboardPatch, error) {
	if len(specs) == 0 {
		return models.DashboardPatch{}, errs.NewValidationError("a dashboard needs at least one chart")
	}
	withIDs := make([]models.ChartSpec, len(specs))
	for i, spec := range specs {
		if spec == nil {
			return models.DashboardPatch{}, errs.NewValidationError(fmt.Sprintf("charts[%d] is empty", i))
		}
		if spec.ChartID() == "" {
			rec := spec.Record()
			rec.ID = s.ids.Next()
			var err error
			if spec, err = rec.Spec(); err != nil {
				return models.DashboardPatch{}, errs.NewValidationError(err.Error())
			}
		}
		withIDs[i] = spec
	}
	set, dup := charting.ChartSetOf(withIDs)
	if dup != "" {
		return models.DashboardPatch{}, errs.NewValidationError(fmt.Sprintf("duplicate chart id %q", dup))
	}
	return models.DashboardPatch{Layout: charting.BuildLayout(withIDs), Charts: set}, nil
}

// normalize makes every spec's id match its key in the set.
func normalize(charts models.ChartSet) (models.ChartSet, error) {
	if charts == nil {
		return models.ChartSet{}, nil
	}
	out, err := models.ChartSetFromRecords(charts.Records())
	if err != nil {
		return nil, errs.NewValidationError(err.Error())
	}
	return out, nil
}

// filteredRows returns the rows a render sees and the range applied, if
// any. Documents without data render the sample dataset.
func filteredRows(d *models.Dashboard, q dto.DateRangeQuery) ([]models.Row, *charting.DateRange) {
	rows := d.Config.Data
	if len(rows) == 0 {
		rows = charting.SampleDataset()
	}
	rng := charting.ParseDateRange([]string{q.From, q.To})
	return charting.Filter(rows, rng), rng
}
