package firestore

import (
	"encoding/json"
	"fmt"

	"github.com/pulumi/pulumi-gcp/sdk/v9/go/gcp"
	"github.com/pulumi/pulumi-gcp/sdk/v9/go/gcp/firestore"
	"github.com/pulumi/pulumi-gcp/sdk/v9/go/gcp/projects"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi/config"
)

// fieldsCollection must match the collection the API reads the catalog from.
const fieldsCollection = "dashboard_fields"

type field struct {
	name, label, typ string
}

// defaultFields is seeded in display order; document ids sort the same way.
var defaultFields = []field{
	{"date", "Date", "date"},
	{"sales", "Sales", "number"},
	{"profit", "Profit", "number"},
	{"category", "Category", "string"},
}

func SetupFirestore(ctx *pulumi.Context, prov *gcp.Provider) (*firestore.Database, error) {
	svc, err := enableFireStore(ctx, prov)
	if err != nil {
		return nil, err
	}

	db, err := createDatabase(ctx, prov, svc)
	if err != nil {
		return nil, err
	}

	if err := seedFields(ctx, prov, db); err != nil {
		return nil, err
	}
	return db, nil
}

func enableFireStore(ctx *pulumi.Context, prov *gcp.Provider) (*projects.Service, error) {
	return projects.NewService(ctx, "firestore", &projects.ServiceArgs{
		Service: pulumi.String("firestore.googleapis.com"),
	},
		pulumi.Provider(prov),
	)
}

func createDatabase(ctx *pulumi.Context, prov *gcp.Provider, res ...pulumi.Resource) (*firestore.Database, error) {
	gcpCfg := config.New(ctx, "gcp")
	projectID := gcpCfg.Require("project")
	region := gcpCfg.Require("region")

	return firestore.NewDatabase(ctx, "firestoreDatabase", &firestore.DatabaseArgs{
		Name:       pulumi.String("(default)"),
		Project:    pulumi.String(projectID),
		LocationId: pulumi.String(region),
		Type:       pulumi.String("FIRESTORE_NATIVE"),
	},
		pulumi.Provider(prov),
		pulumi.DependsOn(res),
	)
}

// seedFields writes the default field catalog. Editors may change the
// documents afterwards; pulumi only recreates ones that were deleted.
func seedFields(ctx *pulumi.Context, prov *gcp.Provider, db *firestore.Database) error {
	gcpCfg := config.New(ctx, "gcp")
	projectID := gcpCfg.Require("project")

	for i, f := range defaultFields {
		body, err := json.Marshal(map[string]any{
			"name":  map[string]string{"stringValue": f.name},
			"label": map[string]string{"stringValue": f.label},
			"type":  map[string]string{"stringValue": f.typ},
		})
		if err != nil {
			return err
		}
		_, err = firestore.NewDocument(ctx, "field-"+f.name, &firestore.DocumentArgs{
			Project:    pulumi.String(projectID),
			Database:   db.Name,
			Collection: pulumi.String(fieldsCollection),
			DocumentId: pulumi.String(fmt.Sprintf("%02d_%s", i+1, f.name)),
			Fields:     pulumi.String(string(body)),
		},
			pulumi.Provider(prov),
			pulumi.IgnoreChanges([]string{"fields"}),
		)
		if err != nil {
			return err
		}
	}
	return nil
}
