package charting

import (
	"strconv"

	"golang.org/x/text/language"

	"github.com/GregMSThompson/dashboard-backend/internal/models"
)

// ModelKind discriminates render models.
type ModelKind string

const (
	ModelCategorical   ModelKind = "categoricalSeries"
	ModelTimeSeries    ModelKind = "timeSeries"
	ModelGroupedTotals ModelKind = "groupedTotals"
	ModelTabular       ModelKind = "tabularRows"
)

// RenderModel is the presentation-ready projection of one chart. The
// implementations are *CategoricalSeries, *TimeSeries, *GroupedTotals and
// *TabularRows.
type RenderModel interface {
	ModelKind() ModelKind
}

// Series is an index-aligned category axis and value series. A nil entry
// in Values is a gap.
type Series struct {
	Title      string         `json:"title"`
	XField     string         `json:"xField"`
	YField     string         `json:"yField"`
	YLabel     string         `json:"yLabel"`
	Color      string         `json:"color,omitempty"`
	Categories []models.Value `json:"categories"`
	Values     []*float64     `json:"values"`
}

type CategoricalSeries struct {
	Kind ModelKind `json:"kind"`
	Series
}

type TimeSeries struct {
	Kind ModelKind `json:"kind"`
	Series
	AreaColor string `json:"areaColor,omitempty"`
}

// Slice is one category total. Name is absent for rows missing the
// category field.
type Slice struct {
	Name  models.Value `json:"name"`
	Value float64      `json:"value"`
}

type GroupedTotals struct {
	Kind          ModelKind `json:"kind"`
	Title         string    `json:"title"`
	CategoryField string    `json:"categoryField"`
	ValueField    string    `json:"valueField"`
	Slices        []Slice   `json:"slices"`
	Total         float64   `json:"total"`
}

func (*CategoricalSeries) ModelKind() ModelKind { return ModelCategorical }
func (*TimeSeries) ModelKind() ModelKind        { return ModelTimeSeries }
func (*GroupedTotals) ModelKind() ModelKind     { return ModelGroupedTotals }
func (*TabularRows) ModelKind() ModelKind       { return ModelTabular }

// Renderer projects filtered rows through chart specs.
type Renderer struct {
	locale language.Tag
}

// NewRenderer returns a renderer that formats table numbers for locale.
func NewRenderer(locale language.Tag) *Renderer {
	return &Renderer{locale: locale}
}

var defaultRenderer = NewRenderer(language.English)

// Render projects rows through spec using English number formatting.
func Render(spec models.ChartSpec, rows []models.Row) RenderModel {
	return defaultRenderer.Render(spec, rows)
}

// Render dispatches on the chart kind. A nil spec renders nothing.
func (r *Renderer) Render(spec models.ChartSpec, rows []models.Row) RenderModel {
	switch c := spec.(type) {
	case *models.BarChart:
		return &CategoricalSeries{Kind: ModelCategorical, Series: projectSeries(c.ChartTitle(), c.AxisBinding, rows)}
	case *models.LineChart:
		return &TimeSeries{Kind: ModelTimeSeries, Series: projectSeries(c.ChartTitle(), c.AxisBinding, rows), AreaColor: c.AreaColor}
	case *models.PieChart:
		return groupTotals(c, rows)
	case *models.TableChart:
		return r.tabulate(c, rows)
	default:
		return nil
	}
}

func projectSeries(title string, axis models.AxisBinding, rows []models.Row) Series {
	s := Series{
		Title:      title,
		XField:     axis.XField,
		YField:     axis.YField,
		YLabel:     axis.YLabel,
		Color:      axis.Color,
		Categories: make([]models.Value, len(rows)),
		Values:     make([]*float64, len(rows)),
	}
	for i, row := range rows {
		s.Categories[i] = row.Get(axis.XField)
		if f, ok := row.Get(axis.YField).Float(); ok {
			s.Values[i] = &f
		}
	}
	return s
}

func groupTotals(c *models.PieChart, rows []models.Row) *GroupedTotals {
	out := &GroupedTotals{
		Kind:          ModelGroupedTotals,
		Title:         c.ChartTitle(),
		CategoryField: c.CategoryField,
		ValueField:    c.ValueField,
		Slices:        []Slice{},
	}
	index := make(map[string]int)
	for _, row := range rows {
		name := row.Get(c.CategoryField)
		key := groupKey(name)
		f, _ := row.Get(c.ValueField).Float()
		i, ok := index[key]
		if !ok {
			i = len(out.Slices)
			index[key] = i
			out.Slices = append(out.Slices, Slice{Name: name})
		}
		out.Slices[i].Value += f
		out.Total += f
	}
	return out
}

func groupKey(v models.Value) string {
	return strconv.Itoa(int(v.Kind())) + ":" + v.Text()
}
