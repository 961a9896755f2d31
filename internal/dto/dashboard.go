package dto

import (
	"github.com/GregMSThompson/dashboard-backend/internal/charting"
	"github.com/GregMSThompson/dashboard-backend/internal/models"
)

// DashboardConfigRequest carries chart specs keyed by id and the dataset.
type DashboardConfigRequest struct {
	Charts models.ChartSet `json:"charts"`
	Data   []models.Row    `json:"data"`
}

type CreateDashboardRequest struct {
	Name        string                 `json:"name" validate:"required,max=200"`
	Description string                 `json:"description" validate:"max=2000"`
	Layout      []models.LayoutCell    `json:"layout" validate:"dive"`
	Config      DashboardConfigRequest `json:"config"`
}

// UpdateDashboardRequest is a partial update. Absent members are left as stored.
type UpdateDashboardRequest struct {
	Name        *string                 `json:"name,omitempty" validate:"omitnil,min=1,max=200"`
	Description *string                 `json:"description,omitempty" validate:"omitnil,max=2000"`
	Layout      []models.LayoutCell     `json:"layout,omitempty" validate:"dive"`
	Config      *DashboardConfigRequest `json:"config,omitempty"`
}

type SaveLayoutRequest struct {
	Layout []models.LayoutCell `json:"layout" validate:"required,dive"`
}

// SaveChartsRequest lists chart specs in display order.
type SaveChartsRequest struct {
	Charts models.ChartList `json:"charts"`
}

type AddChartRequest struct {
	Type models.ChartKind `json:"type" validate:"required,chartkind"`
}

type UpdateChartFieldRequest struct {
	Field string `json:"field" validate:"required"`
	Value any    `json:"value"`
}

// DateRangeQuery is the optional render filter. Anything but two readable
// dates means no filter.
type DateRangeQuery struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

// DashboardView is a dashboard rendered cell by cell in layout order.
type DashboardView struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Version     int64           `json:"version"`
	Range       *DateRangeQuery `json:"range,omitempty"`
	RowCount    int             `json:"rowCount"`
	Cells       []CellView      `json:"cells"`
}

// CellView is one layout cell. Cells without a chart spec are not renderable.
type CellView struct {
	Cell       models.LayoutCell    `json:"cell"`
	Renderable bool                 `json:"renderable"`
	Chart      models.ChartSpec     `json:"chart,omitempty"`
	Model      charting.RenderModel `json:"model,omitempty"`
}

// ChartRenderResponse is one chart rendered on its own.
type ChartRenderResponse struct {
	Chart models.ChartSpec     `json:"chart"`
	Model charting.RenderModel `json:"model"`
}

// ChartChangeResponse reports a single-chart edit and the document it produced.
type ChartChangeResponse struct {
	Chart     models.ChartSpec  `json:"chart,omitempty"`
	Dashboard *models.Dashboard `json:"dashboard"`
}

// TableQuery narrows a rendered table. Filters maps a column key to the
// values a row may hold; Page is 1-based and zero means all rows.
type TableQuery struct {
	Sort    string
	Desc    bool
	Page    int
	Filters map[string][]string
}
