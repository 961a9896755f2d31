// Package charting holds the dashboard core: chart construction and
// editing, grid placement, date-range filtering and render projections.
// Everything here is pure and synchronous.
package charting

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/GregMSThompson/dashboard-backend/internal/models"
)

// ErrUnknownKind is returned by NewChart for kinds outside the closed set.
var ErrUnknownKind = errors.New("unknown chart kind")

// KindInfo describes one chart kind for editors.
type KindInfo struct {
	Kind          models.ChartKind   `json:"type"`
	Label         string             `json:"label"`
	BindingFields []string           `json:"bindingFields"`
	Defaults      models.ChartRecord `json:"defaults"`
}

var kindLabels = map[models.ChartKind]string{
	models.ChartBar:   "Bar chart",
	models.ChartLine:  "Line chart",
	models.ChartPie:   "Pie chart",
	models.ChartTable: "Data table",
}

// KindLabel returns the human label of a kind, or "Chart" when unknown.
func KindLabel(kind models.ChartKind) string {
	if l, ok := kindLabels[kind]; ok {
		return l
	}
	return "Chart"
}

// IDGenerator hands out time-based chart ids that never repeat within one
// generator, even when the clock does not advance between calls.
type IDGenerator struct {
	mu       sync.Mutex
	clockNow func() time.Time
	last     int64
}

func NewIDGenerator(clockNow func() time.Time) *IDGenerator {
	if clockNow == nil {
		clockNow = time.Now
	}
	return &IDGenerator{clockNow: clockNow}
}

func (g *IDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ms := g.clockNow().UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	return fmt.Sprintf("chart_%d", ms)
}

var defaultIDs = NewIDGenerator(nil)

// NewChart creates a chart of the given kind with a fresh id and the
// kind's default bindings.
func NewChart(kind models.ChartKind) (models.ChartSpec, error) {
	return newChart(defaultIDs, kind)
}

// NewChartWith is NewChart with an explicit id source.
func NewChartWith(ids *IDGenerator, kind models.ChartKind) (models.ChartSpec, error) {
	return newChart(ids, kind)
}

func newChart(ids *IDGenerator, kind models.ChartKind) (models.ChartSpec, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	rec := defaultRecord(kind)
	rec.ID = ids.Next()
	return rec.Spec()
}

func defaultRecord(kind models.ChartKind) models.ChartRecord {
	rec := models.ChartRecord{Type: kind, Title: KindLabel(kind)}
	switch kind {
	case models.ChartBar:
		rec.XField, rec.YField, rec.YLabel, rec.Color = "date", "sales", "Sales", "#5470c6"
	case models.ChartLine:
		rec.XField, rec.YField, rec.YLabel, rec.Color = "date", "profit", "Profit", "#91cc75"
		rec.AreaColor = "rgba(145, 204, 117, 0.3)"
	case models.ChartPie:
		rec.CategoryField, rec.ValueField = "category", "sales"
	case models.ChartTable:
		rec.Fields = []string{"date", "sales", "profit", "category"}
		rec.FieldLabels = map[string]string{
			"date":     "Date",
			"sales":    "Sales",
			"profit":   "Profit",
			"category": "Category",
		}
		rec.PageSize = models.DefaultPageSize
	}
	return rec
}

// Kinds returns the editor catalog of chart kinds.
func Kinds() []KindInfo {
	out := make([]KindInfo, 0, len(models.ChartKinds))
	for _, k := range models.ChartKinds {
		out = append(out, KindInfo{
			Kind:          k,
			Label:         KindLabel(k),
			BindingFields: bindingFields(k),
			Defaults:      defaultRecord(k),
		})
	}
	return out
}

func bindingFields(kind models.ChartKind) []string {
	switch kind {
	case models.ChartBar:
		return []string{"xField", "yField", "yLabel", "color"}
	case models.ChartLine:
		return []string{"xField", "yField", "yLabel", "color", "areaColor"}
	case models.ChartPie:
		return []string{"categoryField", "valueField"}
	case models.ChartTable:
		return []string{"fields", "fieldLabels", "filters", "pageSize"}
	default:
		return nil
	}
}

// UpdateChartField returns a copy of spec with one wire field replaced.
// The field name is not checked against the kind; fields that do not
// belong to the kind are dropped. Values of the wrong shape and changes
// to an unknown type leave the spec unchanged.
func UpdateChartField(spec models.ChartSpec, field string, value any) models.ChartSpec {
	rec := spec.Record()
	if !setRecordField(&rec, field, value) {
		return spec
	}
	out, err := rec.Spec()
	if err != nil {
		return spec
	}
	return out
}

func setRecordField(rec *models.ChartRecord, field string, value any) bool {
	switch field {
	case "type":
		s, ok := asString(value)
		rec.Type = models.ChartKind(s)
		return ok
	case "title":
		return setString(&rec.Title, value)
	case "xField":
		return setString(&rec.XField, value)
	case "yField":
		return setString(&rec.YField, value)
	case "yLabel":
		return setString(&rec.YLabel, value)
	case "color":
		return setString(&rec.Color, value)
	case "areaColor":
		return setString(&rec.AreaColor, value)
	case "categoryField":
		return setString(&rec.CategoryField, value)
	case "valueField":
		return setString(&rec.ValueField, value)
	case "pageSize":
		switch n := value.(type) {
		case int:
			rec.PageSize = n
		case float64:
			rec.PageSize = int(n)
		default:
			return false
		}
		return true
	case "fields":
		fields, ok := asStrings(value)
		if ok {
			rec.Fields = fields
		}
		return ok
	case "fieldLabels":
		labels, ok := asStringMap(value)
		if ok {
			rec.FieldLabels = labels
		}
		return ok
	case "filters":
		filters, ok := asFilters(value)
		if ok {
			rec.Filters = filters
		}
		return ok
	default:
		return false
	}
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func setString(dst *string, v any) bool {
	s, ok := asString(v)
	if ok {
		*dst = s
	}
	return ok
}

func asStrings(v any) ([]string, bool) {
	switch x := v.(type) {
	case []string:
		return slices.Clone(x), true
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

func asStringMap(v any) (map[string]string, bool) {
	switch x := v.(type) {
	case map[string]string:
		out := make(map[string]string, len(x))
		for k, s := range x {
			out[k] = s
		}
		return out, true
	case map[string]any:
		out := make(map[string]string, len(x))
		for k, e := range x {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out[k] = s
		}
		return out, true
	default:
		return nil, false
	}
}

func asFilters(v any) (map[string][]models.FilterOption, bool) {
	switch x := v.(type) {
	case map[string][]models.FilterOption:
		out := make(map[string][]models.FilterOption, len(x))
		for k, opts := range x {
			out[k] = slices.Clone(opts)
		}
		return out, true
	case map[string]any:
		out := make(map[string][]models.FilterOption, len(x))
		for k, e := range x {
			list, ok := e.([]any)
			if !ok {
				return nil, false
			}
			opts := make([]models.FilterOption, 0, len(list))
			for _, item := range list {
				switch o := item.(type) {
				case string:
					opts = append(opts, models.FilterOption{Text: o, Value: o})
				case map[string]any:
					val, _ := o["value"].(string)
					text, _ := o["text"].(string)
					if text == "" {
						text = val
					}
					opts = append(opts, models.FilterOption{Text: text, Value: val})
				default:
					return nil, false
				}
			}
			out[k] = opts
		}
		return out, true
	default:
		return nil, false
	}
}

// RemoveChart returns specs without the entry whose id matches. An id that
// is not present leaves the list as it was.
func RemoveChart(specs []models.ChartSpec, id string) []models.ChartSpec {
	out := make([]models.ChartSpec, 0, len(specs))
	for _, s := range specs {
		if s.ChartID() == id {
			continue
		}
		out = append(out, s)
	}
	return out
}
