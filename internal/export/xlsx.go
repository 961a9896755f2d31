// Package export writes rendered charts to spreadsheet workbooks.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/GregMSThompson/dashboard-backend/internal/charting"
	"github.com/GregMSThompson/dashboard-backend/internal/models"
)

// ContentType is the media type of the workbooks produced here.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	defaultSheet = "Sheet1"
	maxSheetName = 31
	numFmtNumber = 4 // #,##0.00
)

// Workbook lays a render model out as a single-sheet workbook. The header
// row is bold and numeric columns carry a thousands-separated format.
// Callers must Close the returned file.
func Workbook(model charting.RenderModel) (*excelize.File, error) {
	title, header, rows, numeric := table(model)
	if header == nil {
		return nil, fmt.Errorf("export: unsupported render model %T", model)
	}

	f := excelize.NewFile()
	sheet := SheetName(title)
	if err := f.SetSheetName(defaultSheet, sheet); err != nil {
		f.Close()
		return nil, err
	}

	if err := writeRows(f, sheet, header, rows); err != nil {
		f.Close()
		return nil, err
	}
	if err := styleSheet(f, sheet, len(header), len(rows), numeric); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// Write streams the workbook for model to w.
func Write(w io.Writer, model charting.RenderModel) error {
	f, err := Workbook(model)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteTo(w)
	return err
}

// SheetName turns a chart title into a valid worksheet name.
func SheetName(title string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, strings.TrimSpace(title))
	name = strings.Trim(name, "'")
	if name == "" {
		return "Chart"
	}
	if r := []rune(name); len(r) > maxSheetName {
		name = string(r[:maxSheetName])
	}
	return name
}

func writeRows(f *excelize.File, sheet string, header []any, rows [][]any) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func styleSheet(f *excelize.File, sheet string, cols, rows int, numeric []bool) error {
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(cols, 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
		return err
	}
	if rows == 0 {
		return nil
	}

	num, err := f.NewStyle(&excelize.Style{NumFmt: numFmtNumber})
	if err != nil {
		return err
	}
	for c, isNum := range numeric {
		if !isNum {
			continue
		}
		top, _ := excelize.CoordinatesToCellName(c+1, 2)
		bottom, _ := excelize.CoordinatesToCellName(c+1, rows+1)
		if err := f.SetCellStyle(sheet, top, bottom, num); err != nil {
			return err
		}
	}
	return nil
}

// table flattens a model into a header, rows and per-column numeric flags.
func table(model charting.RenderModel) (string, []any, [][]any, []bool) {
	switch m := model.(type) {
	case *charting.CategoricalSeries:
		h, r := seriesTable(m.Series)
		return m.Title, h, r, []bool{false, true}
	case *charting.TimeSeries:
		h, r := seriesTable(m.Series)
		return m.Title, h, r, []bool{false, true}
	case *charting.GroupedTotals:
		rows := make([][]any, 0, len(m.Slices)+1)
		for _, s := range m.Slices {
			rows = append(rows, []any{cellValue(s.Name), s.Value})
		}
		rows = append(rows, []any{"Total", m.Total})
		return m.Title, []any{m.CategoryField, m.ValueField}, rows, []bool{false, true}
	case *charting.TabularRows:
		header := make([]any, len(m.Columns))
		numeric := make([]bool, len(m.Columns))
		for i, c := range m.Columns {
			header[i] = c.Title
			numeric[i] = c.SortNumeric
		}
		rows := make([][]any, len(m.Rows))
		for i, r := range m.Rows {
			row := make([]any, len(r.Cells))
			for j, v := range r.Cells {
				row[j] = cellValue(v)
			}
			rows[i] = row
		}
		return m.Title, header, rows, numeric
	default:
		return "", nil, nil, nil
	}
}

func seriesTable(s charting.Series) ([]any, [][]any) {
	label := s.YLabel
	if label == "" {
		label = s.YField
	}
	rows := make([][]any, len(s.Categories))
	for i, c := range s.Categories {
		var v any
		if s.Values[i] != nil {
			v = *s.Values[i]
		}
		rows[i] = []any{cellValue(c), v}
	}
	return []any{s.XField, label}, rows
}

func cellValue(v models.Value) any {
	switch v.Kind() {
	case models.KindNumber:
		f, _ := v.Float()
		return f
	case models.KindAbsent:
		return nil
	default:
		return v.Text()
	}
}
