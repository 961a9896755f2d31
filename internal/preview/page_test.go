package preview

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GregMSThompson/dashboard-backend/internal/charting"
	"github.com/GregMSThompson/dashboard-backend/internal/models"
)

func TestRender(t *testing.T) {
	rows := charting.SampleDataset()
	bar := &models.BarChart{
		ChartBase:   models.ChartBase{ID: "b", Title: "Daily sales"},
		AxisBinding: models.AxisBinding{XField: "date", YField: "sales", Color: "#5470c6"},
	}
	table := &models.TableChart{
		ChartBase: models.ChartBase{ID: "t", Title: "<b>Detail</b>"},
		Fields:    []string{"category", "sales"},
	}
	panels := []Panel{
		{ID: "b", Title: "Daily sales", Model: charting.Render(bar, rows)},
		{ID: "t", Title: "Detail", Model: charting.Render(table, rows)},
		{ID: "ghost"},
	}

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, "Sales overview", panels))
	html := buf.String()

	assert.Contains(t, html, "Sales overview")
	assert.Contains(t, html, "Daily sales")
	assert.Contains(t, html, "12,500")
	assert.Contains(t, html, "&lt;b&gt;Detail&lt;/b&gt;")
	assert.Contains(t, html, "ghost: chart unavailable")
	assert.Less(t, strings.Index(html, "dashboard-extras"), strings.LastIndex(html, "</body>"))
}
