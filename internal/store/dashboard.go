package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/GregMSThompson/dashboard-backend/internal/errs"
	"github.com/GregMSThompson/dashboard-backend/internal/models"
	"github.com/GregMSThompson/dashboard-backend/pkg/logger"
)

const dashboardsCollection = "dashboards"

// dashboardDoc is the Firestore shape of a dashboard. Charts are stored
// flat and rows as plain maps since Firestore cannot hold interfaces.
type dashboardDoc struct {
	ID          string                        `firestore:"id"`
	Name        string                        `firestore:"name"`
	Description string                        `firestore:"description"`
	OwnerID     string                        `firestore:"ownerId,omitempty"`
	Layout      []models.LayoutCell           `firestore:"layout"`
	Charts      map[string]models.ChartRecord `firestore:"charts"`
	Data        []map[string]any              `firestore:"data"`
	Version     int64                         `firestore:"version"`
	CreatedAt   time.Time                     `firestore:"createdAt"`
	UpdatedAt   time.Time                     `firestore:"updatedAt"`
}

// summaryDoc is the projection read by List.
type summaryDoc struct {
	ID          string         `firestore:"id"`
	Name        string         `firestore:"name"`
	Description string         `firestore:"description"`
	Charts      map[string]any `firestore:"charts"`
	Version     int64          `firestore:"version"`
	CreatedAt   time.Time      `firestore:"createdAt"`
	UpdatedAt   time.Time      `firestore:"updatedAt"`
}

func toDoc(d *models.Dashboard) dashboardDoc {
	data := make([]map[string]any, len(d.Config.Data))
	for i, row := range d.Config.Data {
		data[i] = row.Map()
	}
	layout := d.Layout
	if layout == nil {
		layout = []models.LayoutCell{}
	}
	return dashboardDoc{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		OwnerID:     d.OwnerID,
		Layout:      layout,
		Charts:      d.Config.Charts.Records(),
		Data:        data,
		Version:     d.Version,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func (doc dashboardDoc) toModel() (*models.Dashboard, error) {
	charts, err := models.ChartSetFromRecords(doc.Charts)
	if err != nil {
		return nil, err
	}
	rows := make([]models.Row, len(doc.Data))
	for i, m := range doc.Data {
		row, err := models.RowFromMap(m)
		if err != nil {
			return nil, fmt.Errorf("data[%d]: %w", i, err)
		}
		rows[i] = row
	}
	return &models.Dashboard{
		ID:          doc.ID,
		Name:        doc.Name,
		Description: doc.Description,
		OwnerID:     doc.OwnerID,
		Layout:      doc.Layout,
		Config:      models.DashboardConfig{Charts: charts, Data: rows},
		Version:     doc.Version,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}, nil
}

type dashboardStore struct {
	client   *firestore.Client
	clockNow func() time.Time
}

func NewDashboardStore(client *firestore.Client) *dashboardStore {
	return &dashboardStore{client: client, clockNow: time.Now}
}

func (s *dashboardStore) collection() *firestore.CollectionRef {
	return s.client.Collection(dashboardsCollection)
}

func (s *dashboardStore) Create(ctx context.Context, d *models.Dashboard) error {
	now := s.clockNow().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now
	d.Version = 1
	_, err := s.collection().Doc(d.ID).Create(ctx, toDoc(d))
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return errs.NewValidationError("dashboard id already in use")
		}
		return errs.NewDatabaseError("create", "failed to create dashboard", err)
	}
	return nil
}

func (s *dashboardStore) Get(ctx context.Context, id string) (*models.Dashboard, error) {
	snap, err := s.collection().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errs.NewNotFoundError("dashboard not found")
		}
		return nil, errs.NewDatabaseError("read", "failed to get dashboard", err)
	}
	return decodeSnapshot(snap)
}

func decodeSnapshot(snap *firestore.DocumentSnapshot) (*models.Dashboard, error) {
	var doc dashboardDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, errs.NewDatabaseError("read", "failed to parse dashboard data", err)
	}
	d, err := doc.toModel()
	if err != nil {
		return nil, errs.NewDatabaseError("read", "failed to decode dashboard", err)
	}
	return d, nil
}

func (s *dashboardStore) List(ctx context.Context) ([]models.DashboardSummary, error) {
	iter := s.collection().
		Select("id", "name", "description", "charts", "version", "createdAt", "updatedAt").
		OrderBy("updatedAt", firestore.Desc).
		Documents(ctx)
	defer iter.Stop()

	out := []models.DashboardSummary{}
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errs.NewDatabaseError("read", "failed to list dashboards", err)
		}
		var doc summaryDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, errs.NewDatabaseError("read", "failed to parse dashboard summary", err)
		}
		out = append(out, models.DashboardSummary{
			ID:          doc.ID,
			Name:        doc.Name,
			Description: doc.Description,
			ChartCount:  len(doc.Charts),
			Version:     doc.Version,
			CreatedAt:   doc.CreatedAt,
			UpdatedAt:   doc.UpdatedAt,
		})
	}
	return out, nil
}

// Update applies patch inside a transaction. A non-zero expectedVersion
// must match the stored version or the write is rejected.
func (s *dashboardStore) Update(ctx context.Context, id string, patch models.DashboardPatch, expectedVersion int64) (*models.Dashboard, error) {
	log := logger.FromContext(ctx)
	ref := s.collection().Doc(id)

	var updated *models.Dashboard
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return errs.NewNotFoundError("dashboard not found")
			}
			return errs.NewDatabaseError("read", "failed to get dashboard", err)
		}
		d, err := decodeSnapshot(snap)
		if err != nil {
			return err
		}
		if expectedVersion != 0 && d.Version != expectedVersion {
			return errs.NewConflictError(expectedVersion, d.Version)
		}
		d.Apply(patch)
		d.Version++
		d.UpdatedAt = s.clockNow().UTC()
		if err := tx.Set(ref, toDoc(d)); err != nil {
			return errs.NewDatabaseError("update", "failed to update dashboard", err)
		}
		updated = d
		return nil
	})
	if err != nil {
		if isTyped(err) {
			return nil, err
		}
		log.Error("dashboard update transaction failed", "dashboard_id", id, "error", err)
		return nil, errs.NewDatabaseError("update", "failed to update dashboard", err)
	}
	return updated, nil
}

func (s *dashboardStore) Delete(ctx context.Context, id string, expectedVersion int64) error {
	ref := s.collection().Doc(id)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return errs.NewNotFoundError("dashboard not found")
			}
			return errs.NewDatabaseError("read", "failed to get dashboard", err)
		}
		if expectedVersion != 0 {
			v, err := snap.DataAt("version")
			if err != nil {
				return errs.NewDatabaseError("read", "failed to read dashboard version", err)
			}
			if actual, _ := v.(int64); actual != expectedVersion {
				return errs.NewConflictError(expectedVersion, actual)
			}
		}
		return tx.Delete(ref)
	})
	if err != nil {
		if isTyped(err) {
			return err
		}
		return errs.NewDatabaseError("delete", "failed to delete dashboard", err)
	}
	return nil
}

func isTyped(err error) bool {
	var (
		notFound *errs.NotFoundError
		conflict *errs.ConflictError
		database *errs.DatabaseError
	)
	return errors.As(err, &notFound) || errors.As(err, &conflict) || errors.As(err, &database)
}
