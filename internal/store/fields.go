package store

import (
	"context"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/GregMSThompson/dashboard-backend/internal/errs"
	"github.com/GregMSThompson/dashboard-backend/internal/models"
)

const fieldsCollection = "dashboard_fields"

type fieldStore struct {
	client *firestore.Client
}

func NewFieldStore(client *firestore.Client) *fieldStore {
	return &fieldStore{client: client}
}

// ListFields returns the configured field catalog in document id order.
// An empty collection yields an empty slice.
func (s *fieldStore) ListFields(ctx context.Context) ([]models.Field, error) {
	iter := s.client.Collection(fieldsCollection).Documents(ctx)
	defer iter.Stop()

	out := []models.Field{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errs.NewDatabaseError("read", "failed to list fields", err)
		}
		var f models.Field
		if err := doc.DataTo(&f); err != nil {
			return nil, errs.NewDatabaseError("read", "failed to parse field data", err)
		}
		if f.Name == "" {
			f.Name = doc.Ref.ID
		}
		out = append(out, f)
	}
	return out, nil
}
