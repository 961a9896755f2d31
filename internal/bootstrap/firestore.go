package bootstrap

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
)

// InitFirestore connects to projectID. The client honours
// FIRESTORE_EMULATOR_HOST for local runs.
func InitFirestore(ctx context.Context, projectID string) (*firestore.Client, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("firestore client for %s: %w", projectID, err)
	}
	return client, nil
}
