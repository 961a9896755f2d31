package charting

import (
	"cmp"
	"slices"
	"strings"

	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/GregMSThompson/dashboard-backend/internal/models"
)

// Column describes one table column and how a grid may sort or filter it.
type Column struct {
	Key         string                `json:"key"`
	Title       string                `json:"title"`
	SortByDate  bool                  `json:"sortByDate,omitempty"`
	SortNumeric bool                  `json:"sortNumeric,omitempty"`
	Filterable  bool                  `json:"filterable,omitempty"`
	Filters     []models.FilterOption `json:"filters,omitempty"`
}

// TableRow carries cells aligned with the table's columns. Key is the
// row's index in the rendered dataset and stays stable across re-renders.
type TableRow struct {
	Key     int            `json:"key"`
	Cells   []models.Value `json:"cells"`
	Display []string       `json:"display"`
}

type TabularRows struct {
	Kind     ModelKind  `json:"kind"`
	Title    string     `json:"title"`
	Columns  []Column   `json:"columns"`
	Rows     []TableRow `json:"rows"`
	PageSize int        `json:"pageSize"`
	Total    int        `json:"total"`
}

func (r *Renderer) tabulate(c *models.TableChart, rows []models.Row) *TabularRows {
	fields := c.Fields
	if len(fields) == 0 && len(rows) > 0 {
		fields = rows[0].Keys()
	}

	var first models.Row
	if len(rows) > 0 {
		first = rows[0]
	}

	cols := make([]Column, len(fields))
	for i, f := range fields {
		title := f
		if l, ok := c.FieldLabels[f]; ok && l != "" {
			title = l
		}
		col := Column{
			Key:         f,
			Title:       title,
			SortNumeric: first.Get(f).Kind() == models.KindNumber,
			SortByDate:  isDateColumn(f),
		}
		if opts := c.Filters[f]; len(opts) > 0 {
			col.Filterable = true
			col.Filters = slices.Clone(opts)
		}
		cols[i] = col
	}

	p := message.NewPrinter(r.locale)
	out := &TabularRows{
		Kind:     ModelTabular,
		Title:    c.ChartTitle(),
		Columns:  cols,
		Rows:     make([]TableRow, len(rows)),
		PageSize: c.EffectivePageSize(),
		Total:    len(rows),
	}
	for i, row := range rows {
		tr := TableRow{
			Key:     i,
			Cells:   make([]models.Value, len(cols)),
			Display: make([]string, len(cols)),
		}
		for j, col := range cols {
			v := row.Get(col.Key)
			tr.Cells[j] = v
			tr.Display[j] = display(p, col, v)
		}
		out.Rows[i] = tr
	}
	return out
}

func isDateColumn(field string) bool {
	return field == DateField || strings.Contains(field, "Date") || strings.Contains(field, "Time")
}

func display(p *message.Printer, col Column, v models.Value) string {
	if col.SortNumeric && v.Kind() == models.KindNumber {
		f, _ := v.Float()
		return p.Sprint(number.Decimal(f, number.MaxFractionDigits(2)))
	}
	return v.Text()
}

// FilterRows keeps table rows whose cell text exactly matches one of the
// selected values for every filterable column named in selections.
// Selections on columns without a configured filter set are ignored.
func FilterRows(t *TabularRows, selections map[string][]string) *TabularRows {
	active := make(map[int][]string)
	for j, col := range t.Columns {
		if sel := selections[col.Key]; col.Filterable && len(sel) > 0 {
			active[j] = sel
		}
	}
	if len(active) == 0 {
		return t
	}
	out := *t
	out.Rows = make([]TableRow, 0, len(t.Rows))
	for _, row := range t.Rows {
		keep := true
		for j, sel := range active {
			if !slices.Contains(sel, row.Cells[j].Text()) {
				keep = false
				break
			}
		}
		if keep {
			out.Rows = append(out.Rows, row)
		}
	}
	out.Total = len(out.Rows)
	return &out
}

// SortRows orders rows by a sortable column. Unknown or unsortable
// columns leave the order unchanged. Absent and unreadable cells sort last.
func SortRows(t *TabularRows, key string, desc bool) *TabularRows {
	j := slices.IndexFunc(t.Columns, func(c Column) bool { return c.Key == key })
	if j < 0 {
		return t
	}
	col := t.Columns[j]
	var less func(a, b models.Value) (int, bool)
	switch {
	case col.SortNumeric:
		less = func(a, b models.Value) (int, bool) {
			fa, oka := a.Float()
			fb, okb := b.Float()
			if !oka || !okb {
				return missingLast(oka, okb), false
			}
			return cmp.Compare(fa, fb), true
		}
	case col.SortByDate:
		less = func(a, b models.Value) (int, bool) {
			ta, oka := a.Time()
			tb, okb := b.Time()
			if !oka || !okb {
				return missingLast(oka, okb), false
			}
			return ta.Compare(tb), true
		}
	default:
		return t
	}
	out := *t
	out.Rows = slices.Clone(t.Rows)
	slices.SortStableFunc(out.Rows, func(a, b TableRow) int {
		c, both := less(a.Cells[j], b.Cells[j])
		if both && desc {
			return -c
		}
		return c
	})
	return &out
}

func missingLast(oka, okb bool) int {
	switch {
	case oka && !okb:
		return -1
	case !oka && okb:
		return 1
	default:
		return 0
	}
}

// Page returns the 1-based page of rows. Out-of-range pages are empty.
func Page(t *TabularRows, page int) *TabularRows {
	if page < 1 {
		page = 1
	}
	size := t.PageSize
	if size <= 0 {
		size = models.DefaultPageSize
	}
	start := (page - 1) * size
	out := *t
	if start >= len(t.Rows) {
		out.Rows = []TableRow{}
		return &out
	}
	end := min(start+size, len(t.Rows))
	out.Rows = t.Rows[start:end]
	return &out
}
