package models

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// ChartKind is the discriminator of a chart spec.
type ChartKind string

const (
	ChartBar   ChartKind = "bar"
	ChartLine  ChartKind = "line"
	ChartPie   ChartKind = "pie"
	ChartTable ChartKind = "table"
)

// ChartKinds lists the supported kinds in display order.
var ChartKinds = []ChartKind{ChartBar, ChartLine, ChartPie, ChartTable}

func (k ChartKind) Valid() bool {
	return slices.Contains(ChartKinds, k)
}

// ChartSpec is one renderable widget configuration. The set of
// implementations is closed: *BarChart, *LineChart, *PieChart, *TableChart.
type ChartSpec interface {
	ChartID() string
	ChartTitle() string
	Kind() ChartKind
	Record() ChartRecord
	chartSpec()
}

// ChartBase holds the fields every chart kind shares.
type ChartBase struct {
	ID    string
	Title string
}

func (b ChartBase) ChartID() string    { return b.ID }
func (b ChartBase) ChartTitle() string { return b.Title }

// AxisBinding is the x/y binding shared by bar and line charts.
type AxisBinding struct {
	XField string
	YField string
	YLabel string
	Color  string
}

type BarChart struct {
	ChartBase
	AxisBinding
}

type LineChart struct {
	ChartBase
	AxisBinding
	AreaColor string
}

type PieChart struct {
	ChartBase
	CategoryField string
	ValueField    string
}

// DefaultPageSize is used by table charts that do not set one.
const DefaultPageSize = 10

type TableChart struct {
	ChartBase
	Fields      []string
	FieldLabels map[string]string
	Filters     map[string][]FilterOption
	PageSize    int
}

func (*BarChart) chartSpec()   {}
func (*LineChart) chartSpec()  {}
func (*PieChart) chartSpec()   {}
func (*TableChart) chartSpec() {}

func (*BarChart) Kind() ChartKind   { return ChartBar }
func (*LineChart) Kind() ChartKind  { return ChartLine }
func (*PieChart) Kind() ChartKind   { return ChartPie }
func (*TableChart) Kind() ChartKind { return ChartTable }

// EffectivePageSize returns PageSize or the default when unset.
func (c *TableChart) EffectivePageSize() int {
	if c.PageSize <= 0 {
		return DefaultPageSize
	}
	return c.PageSize
}

// FilterOption is one allowed discrete value of a filterable table column.
type FilterOption struct {
	Text  string `firestore:"text" json:"text"`
	Value string `firestore:"value" json:"value"`
}

// UnmarshalJSON accepts either {"text","value"} or a bare string.
func (o *FilterOption) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*o = FilterOption{Text: s, Value: s}
		return nil
	}
	type plain FilterOption
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if p.Text == "" {
		p.Text = p.Value
	}
	*o = FilterOption(p)
	return nil
}

// ChartRecord is the flat, persisted and wire shape of a chart spec. Not
// every field applies to every type; conversion to a ChartSpec keeps only
// the fields of its kind.
type ChartRecord struct {
	ID            string                    `firestore:"id,omitempty" json:"id,omitempty"`
	Type          ChartKind                 `firestore:"type" json:"type"`
	Title         string                    `firestore:"title" json:"title"`
	XField        string                    `firestore:"xField,omitempty" json:"xField,omitempty"`
	YField        string                    `firestore:"yField,omitempty" json:"yField,omitempty"`
	YLabel        string                    `firestore:"yLabel,omitempty" json:"yLabel,omitempty"`
	Color         string                    `firestore:"color,omitempty" json:"color,omitempty"`
	AreaColor     string                    `firestore:"areaColor,omitempty" json:"areaColor,omitempty"`
	CategoryField string                    `firestore:"categoryField,omitempty" json:"categoryField,omitempty"`
	ValueField    string                    `firestore:"valueField,omitempty" json:"valueField,omitempty"`
	Fields        []string                  `firestore:"fields,omitempty" json:"fields,omitempty"`
	FieldLabels   map[string]string         `firestore:"fieldLabels,omitempty" json:"fieldLabels,omitempty"`
	Filters       map[string][]FilterOption `firestore:"filters,omitempty" json:"filters,omitempty"`
	PageSize      int                       `firestore:"pageSize,omitempty" json:"pageSize,omitempty"`
}

// UnknownChartKindError is returned when a record carries an unsupported type.
type UnknownChartKindError struct {
	Kind ChartKind
}

func (e *UnknownChartKindError) Error() string {
	return fmt.Sprintf("unknown chart type %q", e.Kind)
}

// Spec converts the record into its typed variant.
func (r ChartRecord) Spec() (ChartSpec, error) {
	base := ChartBase{ID: r.ID, Title: r.Title}
	axis := AxisBinding{XField: r.XField, YField: r.YField, YLabel: r.YLabel, Color: r.Color}
	switch r.Type {
	case ChartBar:
		return &BarChart{ChartBase: base, AxisBinding: axis}, nil
	case ChartLine:
		return &LineChart{ChartBase: base, AxisBinding: axis, AreaColor: r.AreaColor}, nil
	case ChartPie:
		return &PieChart{ChartBase: base, CategoryField: r.CategoryField, ValueField: r.ValueField}, nil
	case ChartTable:
		return &TableChart{
			ChartBase:   base,
			Fields:      slices.Clone(r.Fields),
			FieldLabels: maps.Clone(r.FieldLabels),
			Filters:     cloneFilters(r.Filters),
			PageSize:    r.PageSize,
		}, nil
	default:
		return nil, &UnknownChartKindError{Kind: r.Type}
	}
}

func (c *BarChart) Record() ChartRecord {
	return ChartRecord{
		ID: c.ID, Type: ChartBar, Title: c.Title,
		XField: c.XField, YField: c.YField, YLabel: c.YLabel, Color: c.Color,
	}
}

func (c *LineChart) Record() ChartRecord {
	return ChartRecord{
		ID: c.ID, Type: ChartLine, Title: c.Title,
		XField: c.XField, YField: c.YField, YLabel: c.YLabel, Color: c.Color,
		AreaColor: c.AreaColor,
	}
}

func (c *PieChart) Record() ChartRecord {
	return ChartRecord{
		ID: c.ID, Type: ChartPie, Title: c.Title,
		CategoryField: c.CategoryField, ValueField: c.ValueField,
	}
}

func (c *TableChart) Record() ChartRecord {
	return ChartRecord{
		ID: c.ID, Type: ChartTable, Title: c.Title,
		Fields:      slices.Clone(c.Fields),
		FieldLabels: maps.Clone(c.FieldLabels),
		Filters:     cloneFilters(c.Filters),
		PageSize:    c.PageSize,
	}
}

func (c *BarChart) MarshalJSON() ([]byte, error)   { return json.Marshal(c.Record()) }
func (c *LineChart) MarshalJSON() ([]byte, error)  { return json.Marshal(c.Record()) }
func (c *PieChart) MarshalJSON() ([]byte, error)   { return json.Marshal(c.Record()) }
func (c *TableChart) MarshalJSON() ([]byte, error) { return json.Marshal(c.Record()) }

func cloneFilters(in map[string][]FilterOption) map[string][]FilterOption {
	if in == nil {
		return nil
	}
	out := make(map[string][]FilterOption, len(in))
	for k, v := range in {
		out[k] = slices.Clone(v)
	}
	return out
}

// DecodeChart decodes one wire chart object.
func DecodeChart(data []byte) (ChartSpec, error) {
	var rec ChartRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return rec.Spec()
}

// ChartList is an ordered list of chart specs.
type ChartList []ChartSpec

func (l *ChartList) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	out := make(ChartList, 0, len(raws))
	for i, raw := range raws {
		spec, err := DecodeChart(raw)
		if err != nil {
			return fmt.Errorf("charts[%d]: %w", i, err)
		}
		out = append(out, spec)
	}
	*l = out
	return nil
}

// ChartSet maps chart id to spec. Specs decoded from a set take the map
// key as their id.
type ChartSet map[string]ChartSpec

func (s *ChartSet) UnmarshalJSON(data []byte) error {
	var raws map[string]json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	out := make(ChartSet, len(raws))
	for id, raw := range raws {
		var rec ChartRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("charts[%q]: %w", id, err)
		}
		rec.ID = id
		spec, err := rec.Spec()
		if err != nil {
			return fmt.Errorf("charts[%q]: %w", id, err)
		}
		out[id] = spec
	}
	*s = out
	return nil
}

// Records converts the set into its persisted form.
func (s ChartSet) Records() map[string]ChartRecord {
	out := make(map[string]ChartRecord, len(s))
	for id, spec := range s {
		rec := spec.Record()
		rec.ID = id
		out[id] = rec
	}
	return out
}

// ChartSetFromRecords rebuilds a set from its persisted form.
func ChartSetFromRecords(recs map[string]ChartRecord) (ChartSet, error) {
	out := make(ChartSet, len(recs))
	for id, rec := range recs {
		rec.ID = id
		spec, err := rec.Spec()
		if err != nil {
			return nil, fmt.Errorf("chart %q: %w", id, err)
		}
		out[id] = spec
	}
	return out, nil
}

// IDs returns the set's chart ids in sorted order.
func (s ChartSet) IDs() []string {
	return slices.Sorted(maps.Keys(s))
}
