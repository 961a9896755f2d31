package charting

import "github.com/GregMSThompson/dashboard-backend/internal/models"

type sampleRow struct {
	date     string
	sales    float64
	profit   float64
	category string
}

var sampleRows = []sampleRow{
	{"2026-01-26", 9800, 2940, "Food"},
	{"2026-01-27", 11300, 3390, "Electronics"},
	{"2026-01-28", 8700, 2175, "Clothing"},
	{"2026-01-29", 13900, 4170, "Electronics"},
	{"2026-01-30", 12500, 3750, "Electronics"},
	{"2026-01-31", 15200, 4560, "Clothing"},
	{"2026-02-01", 7600, 1900, "Food"},
	{"2026-02-02", 10400, 3120, "Clothing"},
	{"2026-02-03", 14100, 4230, "Electronics"},
	{"2026-02-04", 9100, 2275, "Food"},
}

// SampleDataset returns the dataset used when a dashboard has none. Each
// call returns fresh rows.
func SampleDataset() []models.Row {
	out := make([]models.Row, len(sampleRows))
	for i, s := range sampleRows {
		out[i] = models.Row{
			"date":     models.String(s.date),
			"sales":    models.Number(s.sales),
			"profit":   models.Number(s.profit),
			"category": models.String(s.category),
		}
	}
	return out
}

// DefaultFields is the field catalog served when none is configured.
func DefaultFields() []models.Field {
	return []models.Field{
		{Name: "date", Label: "Date", Type: models.FieldDate},
		{Name: "sales", Label: "Sales", Type: models.FieldNumber},
		{Name: "profit", Label: "Profit", Type: models.FieldNumber},
		{Name: "category", Label: "Category", Type: models.FieldString},
	}
}
