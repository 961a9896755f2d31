package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// ValueKind is the closed set of scalar kinds a dataset cell can hold.
type ValueKind int

const (
	KindAbsent ValueKind = iota
	KindString
	KindNumber
	KindDate
)

// Accepted date layouts, tried in order. The first one is the canonical calendar date.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
}

// Value is one dataset cell. The zero Value is the absent cell.
type Value struct {
	kind ValueKind
	text string
	num  float64
	at   time.Time
}

func String(s string) Value {
	if t, ok := ParseDate(s); ok {
		return Value{kind: KindDate, text: s, at: t}
	}
	return Value{kind: KindString, text: s}
}

func Number(f float64) Value {
	return Value{kind: KindNumber, num: f}
}

func Date(t time.Time) Value {
	return Value{kind: KindDate, text: t.Format(dateLayouts[0]), at: t}
}

func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsAbsent() bool  { return v.kind == KindAbsent }

// Text returns the string form of the value; absent values are "".
func (v Value) Text() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindString, KindDate:
		return v.text
	default:
		return ""
	}
}

// Float reports the numeric reading of the value. Numeric strings are coerced.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.text), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Time reports the calendar-date reading of the value.
func (v Value) Time() (time.Time, bool) {
	switch v.kind {
	case KindDate:
		return v.at, true
	case KindString:
		return ParseDate(v.text)
	default:
		return time.Time{}, false
	}
}

// Interface returns the plain Go value used by JSON and document stores.
func (v Value) Interface() any {
	switch v.kind {
	case KindNumber:
		return v.num
	case KindString, KindDate:
		return v.text
	default:
		return nil
	}
}

func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNumber:
		return v.num == o.num
	case KindAbsent:
		return true
	default:
		return v.text == o.text
	}
}

func (v Value) String() string { return v.Text() }

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	out, err := ValueOf(raw)
	if err != nil {
		return err
	}
	*v = out
	return nil
}

// ValueOf converts a decoded scalar (JSON or document store) into a Value.
func ValueOf(raw any) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return Value{}, nil
	case string:
		return String(x), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return Value{}, err
		}
		return Number(f), nil
	case float64:
		return Number(x), nil
	case float32:
		return Number(float64(x)), nil
	case int:
		return Number(float64(x)), nil
	case int64:
		return Number(float64(x)), nil
	case bool:
		return Value{kind: KindString, text: strconv.FormatBool(x)}, nil
	case time.Time:
		return Date(x), nil
	default:
		return Value{}, fmt.Errorf("unsupported cell value of type %T", raw)
	}
}

// ParseDate reads a calendar date. Time-of-day parts are dropped.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if len(s) < len(dateLayouts[0]) {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// Row is one dataset record. A missing key is an absent cell.
type Row map[string]Value

// Get returns the cell for field, or the absent value.
func (r Row) Get(field string) Value {
	if r == nil {
		return Value{}
	}
	return r[field]
}

// Map returns the row as plain Go values, dropping absent cells.
func (r Row) Map() map[string]any {
	out := make(map[string]any, len(r))
	for k, v := range r {
		if v.IsAbsent() {
			continue
		}
		out[k] = v.Interface()
	}
	return out
}

func (r *Row) UnmarshalJSON(data []byte) error {
	var raw map[string]Value
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Row, len(raw))
	for k, v := range raw {
		if v.IsAbsent() {
			continue
		}
		out[k] = v
	}
	*r = out
	return nil
}

// RowFromMap converts a plain map (e.g. a Firestore array element) into a Row.
func RowFromMap(m map[string]any) (Row, error) {
	out := make(Row, len(m))
	for k, raw := range m {
		v, err := ValueOf(raw)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		if v.IsAbsent() {
			continue
		}
		out[k] = v
	}
	return out, nil
}

// Keys returns the row's field names in sorted order.
func (r Row) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
