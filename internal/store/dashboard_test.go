package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/GregMSThompson/dashboard-backend/internal/errs"
	"github.com/GregMSThompson/dashboard-backend/internal/models"
	"github.com/GregMSThompson/dashboard-backend/pkg/helpers"
)

func TestDocRoundTrip(t *testing.T) {
	now := time.Date(2026, time.January, 30, 9, 0, 0, 0, time.UTC)
	d := &models.Dashboard{
		ID:   "d1",
		Name: "Sales",
		Layout: []models.LayoutCell{
			{ID: "c1", X: 0, Y: 0, W: 6, H: 8, MinW: 4, MinH: 6, Title: "Bar"},
		},
		Config: models.DashboardConfig{
			Charts: models.ChartSet{
				"c1": &models.BarChart{
					ChartBase:   models.ChartBase{ID: "c1", Title: "Bar"},
					AxisBinding: models.AxisBinding{XField: "date", YField: "sales"},
				},
			},
			Data: []models.Row{
				{"date": models.String("2026-01-30"), "sales": models.Number(12500)},
			},
		},
		Version:   2,
		CreatedAt: now,
		UpdatedAt: now,
	}

	doc := toDoc(d)
	if doc.Charts["c1"].Type != models.ChartBar || doc.Data[0]["sales"] != 12500.0 {
		t.Fatalf("unexpected doc: %+v", doc)
	}
	// Firestore hands integral numbers back as int64.
	doc.Data[0]["sales"] = int64(12500)

	got, err := doc.toModel()
	if err != nil {
		t.Fatalf("toModel: %v", err)
	}
	bar, ok := got.Config.Charts["c1"].(*models.BarChart)
	if !ok || bar.YField != "sales" || bar.ID != "c1" {
		t.Fatalf("unexpected chart: %#v", got.Config.Charts["c1"])
	}
	if f, _ := got.Config.Data[0].Get("sales").Float(); f != 12500 {
		t.Fatalf("unexpected sales: %v", f)
	}
	if got.Config.Data[0].Get("date").Kind() != models.KindDate {
		t.Fatalf("date not decoded as date")
	}
}

func TestDashboardStoreWithEmulator(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	ctx := helpers.TestCtx()
	client, err := firestore.NewClient(context.Background(), "test-project")
	if err != nil {
		t.Fatalf("firestore client error: %v", err)
	}
	defer client.Close()

	store := NewDashboardStore(client)
	id := "emulator-" + time.Now().Format("150405.000000")
	d := &models.Dashboard{
		ID:     id,
		Name:   "Emulator",
		Layout: []models.LayoutCell{{ID: "c1", W: 6, H: 8}},
		Config: models.DashboardConfig{
			Charts: models.ChartSet{"c1": &models.PieChart{ChartBase: models.ChartBase{ID: "c1"}, CategoryField: "category", ValueField: "sales"}},
			Data:   []models.Row{{"category": models.String("A"), "sales": models.Number(1)}},
		},
	}
	if err := store.Create(ctx, d); err != nil {
		t.Fatalf("create: %v", err)
	}
	defer store.Delete(ctx, id, 0)

	name := "Renamed"
	updated, err := store.Update(ctx, id, models.DashboardPatch{Name: &name}, 1)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Version != 2 || updated.Name != name {
		t.Fatalf("unexpected update result: %+v", updated)
	}

	_, err = store.Update(ctx, id, models.DashboardPatch{Name: &name}, 1)
	var conflict *errs.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	got, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Config.Charts) != 1 || len(got.Layout) != 1 {
		t.Fatalf("unexpected document: %+v", got)
	}

	if _, err := store.Get(ctx, "does-not-exist"); err == nil {
		t.Fatal("expected not found")
	}
}
