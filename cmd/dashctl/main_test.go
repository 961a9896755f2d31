package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const doc = `{
  "id": "d1",
  "name": "Ops",
  "layout": [
    {"i": "pie", "x": 0, "y": 0, "w": 6, "h": 8},
    {"i": "bar", "x": 6, "y": 0, "w": 6, "h": 8}
  ],
  "config": {
    "charts": {
      "bar": {"type": "bar", "title": "Sales", "xField": "date", "yField": "sales"},
      "pie": {"type": "pie", "title": "Mix", "categoryField": "category", "valueField": "sales"}
    },
    "data": [
      {"date": "2026-01-30", "sales": 100, "category": "A"},
      {"date": "2026-01-31", "sales": 200, "category": "A"},
      {"date": "2026-02-01", "sales": 50, "category": "B"}
    ]
  }
}`

func writeDoc(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.json")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute(), errOut.String())
	return out.String()
}

func TestRender_FilteredPie(t *testing.T) {
	out := run(t, "render", "--file", writeDoc(t), "--from", "2026-01-30", "--to", "2026-01-31")

	var view struct {
		RowCount int `json:"rowCount"`
		Cells    []struct {
			Model struct {
				Kind   string `json:"kind"`
				Slices []struct {
					Name  string  `json:"name"`
					Value float64 `json:"value"`
				} `json:"slices"`
			} `json:"model"`
		} `json:"cells"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, 2, view.RowCount)
	require.Len(t, view.Cells, 2)
	pie := view.Cells[0].Model
	assert.Equal(t, "groupedTotals", pie.Kind)
	require.Len(t, pie.Slices, 1)
	assert.Equal(t, "A", pie.Slices[0].Name)
	assert.Equal(t, 300.0, pie.Slices[0].Value)
}

func TestLayout(t *testing.T) {
	out := run(t, "layout", "--file", writeDoc(t))

	var cells []struct {
		ID string `json:"i"`
		X  int    `json:"x"`
		Y  int    `json:"y"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &cells))
	require.Len(t, cells, 2)
	assert.Equal(t, "pie", cells[0].ID)
	assert.Equal(t, "bar", cells[1].ID)
	assert.Equal(t, 6, cells[1].X)
}

func TestExport(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out.xlsx")
	run(t, "export", "--file", writeDoc(t), "--chart", "bar", "--out", dest)

	f, err := excelize.OpenFile(dest)
	require.NoError(t, err)
	defer f.Close()
	assert.NotEmpty(t, f.GetSheetList())
}

func TestExport_UnknownChart(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"export", "--file", writeDoc(t), "--chart", "ghost", "--out", filepath.Join(t.TempDir(), "x.xlsx")})
	assert.Error(t, cmd.Execute())
}

func TestSeedFields(t *testing.T) {
	db := filepath.Join(t.TempDir(), "dash.db")
	out := run(t, "seed-fields", "--db", db)
	assert.Contains(t, out, "seeded 4 fields")
}
