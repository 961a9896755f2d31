package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/GregMSThompson/dashboard-backend/internal/charting"
	"github.com/GregMSThompson/dashboard-backend/internal/models"
)

func rows() []models.Row {
	return []models.Row{
		{"date": models.String("2026-01-30"), "sales": models.Number(100), "category": models.String("A")},
		{"date": models.String("2026-01-31"), "category": models.String("A")},
		{"date": models.String("2026-02-01"), "sales": models.Number(50), "category": models.String("B")},
	}
}

func reopen(t *testing.T, model charting.RenderModel) *excelize.File {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, model))
	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestWrite_Bar(t *testing.T) {
	spec := &models.BarChart{
		ChartBase:   models.ChartBase{ID: "c1", Title: "Daily sales"},
		AxisBinding: models.AxisBinding{XField: "date", YField: "sales", YLabel: "Sales"},
	}
	f := reopen(t, charting.Render(spec, rows()))

	got, err := f.GetRows("Daily sales")
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, []string{"date", "Sales"}, got[0])
	assert.Equal(t, "2026-01-30", got[1][0])

	v, err := f.GetCellValue("Daily sales", "B2", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "100", v)
}

func TestWrite_PieHasTotalRow(t *testing.T) {
	spec := &models.PieChart{ChartBase: models.ChartBase{Title: "Share"}, CategoryField: "category", ValueField: "sales"}
	f := reopen(t, charting.Render(spec, rows()))

	got, err := f.GetRows("Share")
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, "A", got[1][0])
	assert.Equal(t, "Total", got[3][0])

	total, err := f.GetCellValue("Share", "B4", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "150", total)
}

func TestWrite_Table(t *testing.T) {
	spec := &models.TableChart{
		ChartBase:   models.ChartBase{Title: "Detail"},
		Fields:      []string{"category", "sales"},
		FieldLabels: map[string]string{"category": "Category", "sales": "Sales"},
	}
	f := reopen(t, charting.Render(spec, rows()))

	got, err := f.GetRows("Detail")
	require.NoError(t, err)
	assert.Equal(t, []string{"Category", "Sales"}, got[0])
	assert.Len(t, got, 4)
}

func TestWorkbook_Unsupported(t *testing.T) {
	_, err := Workbook(nil)
	assert.Error(t, err)
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "Chart", SheetName("  "))
	assert.Equal(t, "a_b_c", SheetName("a/b:c"))
	assert.Len(t, []rune(SheetName("a very long chart title that will not fit")), 31)
}
