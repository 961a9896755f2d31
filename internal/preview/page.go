// Package preview renders a dashboard view as a standalone HTML page.
package preview

import (
	"bytes"
	"fmt"
	"html/template"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/GregMSThompson/dashboard-backend/internal/charting"
	"github.com/GregMSThompson/dashboard-backend/internal/models"
)

// Panel is one layout cell in display order. A nil Model marks a cell
// whose chart could not be rendered.
type Panel struct {
	ID    string
	Title string
	Model charting.RenderModel
}

const chartHeight = "360px"

// gap is the placeholder echarts draws as a missing point.
const gap = "-"

var extrasTmpl = template.Must(template.New("extras").Parse(`
<section class="dashboard-extras">
{{- range .Tables}}
<h3>{{.Title}}</h3>
<table border="1" cellspacing="0" cellpadding="4">
<thead><tr>{{range .Columns}}<th>{{.Title}}</th>{{end}}</tr></thead>
<tbody>
{{- range .Rows}}
<tr>{{range .Display}}<td>{{.}}</td>{{end}}</tr>
{{- end}}
</tbody>
</table>
{{- end}}
{{- range .Missing}}
<p class="unavailable">{{.}}: chart unavailable</p>
{{- end}}
</section>
`))

type extras struct {
	Tables  []*charting.TabularRows
	Missing []string
}

// Render writes the page for panels to w.
func Render(w io.Writer, pageTitle string, panels []Panel) error {
	page := components.NewPage()
	page.PageTitle = pageTitle
	page.SetLayout(components.PageFlexLayout)

	var ex extras
	for _, p := range panels {
		switch m := p.Model.(type) {
		case *charting.CategoricalSeries:
			page.AddCharts(barChart(p.Title, m))
		case *charting.TimeSeries:
			page.AddCharts(lineChart(p.Title, m))
		case *charting.GroupedTotals:
			page.AddCharts(pieChart(p.Title, m))
		case *charting.TabularRows:
			ex.Tables = append(ex.Tables, m)
		default:
			ex.Missing = append(ex.Missing, label(p))
		}
	}

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return fmt.Errorf("render preview: %w", err)
	}

	var tail bytes.Buffer
	if err := extrasTmpl.Execute(&tail, ex); err != nil {
		return fmt.Errorf("render preview tables: %w", err)
	}

	html := buf.Bytes()
	if i := bytes.LastIndex(html, []byte("</body>")); i >= 0 {
		out := make([]byte, 0, len(html)+tail.Len())
		out = append(out, html[:i]...)
		out = append(out, tail.Bytes()...)
		out = append(out, html[i:]...)
		html = out
	} else {
		html = append(html, tail.Bytes()...)
	}
	_, err := w.Write(html)
	return err
}

func label(p Panel) string {
	if p.Title != "" {
		return p.Title
	}
	return p.ID
}

func globalOpts(title string) []charts.GlobalOpts {
	return []charts.GlobalOpts{
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithInitializationOpts(opts.Initialization{
			Width:  "100%",
			Height: chartHeight,
		}),
	}
}

func categories(s charting.Series) []string {
	out := make([]string, len(s.Categories))
	for i, c := range s.Categories {
		out[i] = c.Text()
	}
	return out
}

func seriesName(s charting.Series) string {
	if s.YLabel != "" {
		return s.YLabel
	}
	return s.YField
}

func barChart(title string, m *charting.CategoricalSeries) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(globalOpts(title)...)

	data := make([]opts.BarData, len(m.Values))
	for i, v := range m.Values {
		if v == nil {
			data[i] = opts.BarData{Value: gap}
			continue
		}
		data[i] = opts.BarData{Value: *v}
	}

	bar.SetXAxis(categories(m.Series))
	var seriesOpts []charts.SeriesOpts
	if m.Color != "" {
		seriesOpts = append(seriesOpts, charts.WithItemStyleOpts(opts.ItemStyle{Color: m.Color}))
	}
	bar.AddSeries(seriesName(m.Series), data, seriesOpts...)
	return bar
}

func lineChart(title string, m *charting.TimeSeries) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(append(globalOpts(title),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
	)...)

	data := make([]opts.LineData, len(m.Values))
	for i, v := range m.Values {
		if v == nil {
			data[i] = opts.LineData{Value: gap}
			continue
		}
		data[i] = opts.LineData{Value: *v}
	}

	line.SetXAxis(categories(m.Series))
	var seriesOpts []charts.SeriesOpts
	if m.Color != "" {
		seriesOpts = append(seriesOpts, charts.WithItemStyleOpts(opts.ItemStyle{Color: m.Color}))
	}
	if m.AreaColor != "" {
		seriesOpts = append(seriesOpts, charts.WithAreaStyleOpts(opts.AreaStyle{Color: m.AreaColor, Opacity: opts.Float(1)}))
	}
	line.AddSeries(seriesName(m.Series), data, seriesOpts...)
	return line
}

func pieChart(title string, m *charting.GroupedTotals) *charts.Pie {
	pie := charts.NewPie()
	pie.SetGlobalOptions(globalOpts(title)...)

	data := make([]opts.PieData, len(m.Slices))
	for i, s := range m.Slices {
		data[i] = opts.PieData{Name: sliceName(s.Name), Value: s.Value}
	}
	pie.AddSeries(m.ValueField, data)
	return pie
}

func sliceName(v models.Value) string {
	if v.IsAbsent() {
		return "(none)"
	}
	return v.Text()
}
