package charting

import "github.com/GregMSThompson/dashboard-backend/internal/models"

// Initial placement: two half-width columns, fixed height.
const (
	cellWidth  = models.GridColumns / 2
	cellHeight = 8
	cellMinW   = 4
	cellMinH   = 6
)

// BuildLayout places charts in order, two per row. Cell n sits at
// x = (n%2)*6, y = (n/2)*8. Interactive repositioning is left to the grid.
func BuildLayout(specs []models.ChartSpec) []models.LayoutCell {
	cells := make([]models.LayoutCell, len(specs))
	for n, spec := range specs {
		cells[n] = models.LayoutCell{
			ID:    spec.ChartID(),
			X:     (n % 2) * cellWidth,
			Y:     (n / 2) * cellHeight,
			W:     cellWidth,
			H:     cellHeight,
			MinW:  cellMinW,
			MinH:  cellMinH,
			Title: spec.ChartTitle(),
		}
	}
	return cells
}

// OrderCharts lists the charts of a set following the layout's cell
// order. Charts the layout does not reference follow in id order; cells
// without a chart are skipped.
func OrderCharts(charts models.ChartSet, layout []models.LayoutCell) []models.ChartSpec {
	out := make([]models.ChartSpec, 0, len(charts))
	seen := make(map[string]bool, len(charts))
	for _, cell := range layout {
		spec, ok := charts[cell.ID]
		if !ok || seen[cell.ID] {
			continue
		}
		seen[cell.ID] = true
		out = append(out, spec)
	}
	for _, id := range charts.IDs() {
		if !seen[id] {
			out = append(out, charts[id])
		}
	}
	return out
}

// ChartSetOf keys specs by id. The second result is the first duplicate
// id found, if any.
func ChartSetOf(specs []models.ChartSpec) (models.ChartSet, string) {
	set := make(models.ChartSet, len(specs))
	for _, s := range specs {
		if _, dup := set[s.ChartID()]; dup {
			return nil, s.ChartID()
		}
		set[s.ChartID()] = s
	}
	return set, ""
}

// DanglingCells returns the ids of layout cells with no chart spec.
func DanglingCells(charts models.ChartSet, layout []models.LayoutCell) []string {
	var out []string
	for _, cell := range layout {
		if _, ok := charts[cell.ID]; !ok {
			out = append(out, cell.ID)
		}
	}
	return out
}
