package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GregMSThompson/dashboard-backend/internal/charting"
	"github.com/GregMSThompson/dashboard-backend/internal/errs"
	"github.com/GregMSThompson/dashboard-backend/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "dashboards.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleDashboard(t *testing.T, id string) *models.Dashboard {
	t.Helper()
	ids := charting.NewIDGenerator(func() time.Time { return time.UnixMilli(100) })
	var specs []models.ChartSpec
	for _, k := range []models.ChartKind{models.ChartBar, models.ChartPie} {
		s, err := charting.NewChartWith(ids, k)
		require.NoError(t, err)
		specs = append(specs, s)
	}
	set, dup := charting.ChartSetOf(specs)
	require.Empty(t, dup)
	return &models.Dashboard{
		ID:     id,
		Name:   "Sales",
		Layout: charting.BuildLayout(specs),
		Config: models.DashboardConfig{Charts: set, Data: charting.SampleDataset()},
	}
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}

func TestCreateGetList(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	s.clockNow = func() time.Time { return time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC) }

	d := sampleDashboard(t, "d1")
	require.NoError(t, s.Create(ctx, d))
	assert.Equal(t, int64(1), d.Version)

	got, err := s.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "Sales", got.Name)
	assert.Equal(t, d.Layout, got.Layout)
	assert.Equal(t, d.Config.Charts.IDs(), got.Config.Charts.IDs())
	require.Len(t, got.Config.Data, len(d.Config.Data))
	assert.True(t, d.CreatedAt.Equal(got.CreatedAt))

	bar, ok := got.Config.Charts["chart_100"].(*models.BarChart)
	require.True(t, ok)
	assert.Equal(t, "sales", bar.YField)

	err = s.Create(ctx, sampleDashboard(t, "d1"))
	var validation *errs.ValidationError
	assert.ErrorAs(t, err, &validation)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].ChartCount)
}

func TestGet_NotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(context.Background(), "missing")
	var notFound *errs.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestSaveChartsThenGet(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.Create(ctx, sampleDashboard(t, "d1")))

	ids := charting.NewIDGenerator(func() time.Time { return time.UnixMilli(500) })
	var specs []models.ChartSpec
	for _, k := range []models.ChartKind{models.ChartTable, models.ChartLine, models.ChartBar} {
		spec, err := charting.NewChartWith(ids, k)
		require.NoError(t, err)
		specs = append(specs, spec)
	}
	set, _ := charting.ChartSetOf(specs)
	updated, err := s.Update(ctx, "d1", models.DashboardPatch{
		Layout: charting.BuildLayout(specs),
		Charts: set,
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)

	got, err := s.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Len(t, got.Layout, len(specs))
	assert.ElementsMatch(t, []string{"chart_500", "chart_501", "chart_502"}, got.Config.Charts.IDs())
	assert.Equal(t, "Sales", got.Name)

	table := got.Config.Charts["chart_500"].(*models.TableChart)
	assert.Equal(t, []string{"date", "sales", "profit", "category"}, table.Fields)
}

func TestUpdate_VersionConflict(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.Create(ctx, sampleDashboard(t, "d1")))

	name := "Renamed"
	_, err := s.Update(ctx, "d1", models.DashboardPatch{Name: &name}, 1)
	require.NoError(t, err)

	_, err = s.Update(ctx, "d1", models.DashboardPatch{Name: &name}, 1)
	var conflict *errs.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, int64(2), conflict.Actual)

	_, err = s.Update(ctx, "missing", models.DashboardPatch{Name: &name}, 0)
	var notFound *errs.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.Create(ctx, sampleDashboard(t, "d1")))

	var conflict *errs.ConflictError
	require.ErrorAs(t, s.Delete(ctx, "d1", 7), &conflict)
	require.NoError(t, s.Delete(ctx, "d1", 1))

	var notFound *errs.NotFoundError
	assert.ErrorAs(t, s.Delete(ctx, "d1", 0), &notFound)
}

func TestFields(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	fields, err := s.ListFields(ctx)
	require.NoError(t, err)
	assert.Empty(t, fields)

	require.NoError(t, s.PutFields(ctx, charting.DefaultFields()))
	fields, err = s.ListFields(ctx)
	require.NoError(t, err)
	assert.Equal(t, charting.DefaultFields(), fields)

	dup := []models.Field{{Name: "a"}, {Name: "a"}}
	var validation *errs.ValidationError
	assert.ErrorAs(t, s.PutFields(ctx, dup), &validation)
}
