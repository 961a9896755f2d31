package cloudrun

import (
	"fmt"
	"strconv"

	"github.com/pulumi/pulumi-docker/sdk/v4/go/docker"
	"github.com/pulumi/pulumi-gcp/sdk/v9/go/gcp"
	"github.com/pulumi/pulumi-gcp/sdk/v9/go/gcp/cloudrun"
	"github.com/pulumi/pulumi-gcp/sdk/v9/go/gcp/projects"
	"github.com/pulumi/pulumi-gcp/sdk/v9/go/gcp/serviceaccount"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi/config"

	"github.com/GregMSThompson/dashboard-backend/infra/common"
)

const apiPort = 8080

// settings are the stack values the API service is deployed with.
type settings struct {
	projectID   string
	region      string
	minScale    string
	maxScale    string
	cpu         string
	memory      string
	concurrency string
	logLevel    string
	timeout     int
	locale      string
}

func loadSettings(ctx *pulumi.Context) settings {
	gcpCfg := config.New(ctx, "gcp")
	crCfg := config.New(ctx, "cloudrun")
	dashCfg := config.New(ctx, "dashboard")

	s := settings{
		projectID:   gcpCfg.Require("project"),
		region:      gcpCfg.Require("region"),
		minScale:    crCfg.Require("minScale"),
		maxScale:    crCfg.Require("maxScale"),
		cpu:         crCfg.Require("cpu"),
		memory:      crCfg.Require("memory"),
		concurrency: crCfg.Require("concurrency"),
		logLevel:    crCfg.Require("logLevel"),
		locale:      dashCfg.Get("numberLocale"),
	}
	s.timeout, _ = strconv.Atoi(crCfg.Require("timeout"))
	if s.locale == "" {
		s.locale = "en"
	}
	return s
}

// env lists the container environment in the order the API reads it.
func (s settings) env() cloudrun.ServiceTemplateSpecContainerEnvArray {
	vars := [][2]string{
		{"PROJECTID", s.projectID},
		{"REGION", s.region},
		{"LOGLEVEL", s.logLevel},
		{"STOREBACKEND", "firestore"},
		{"AUTHMODE", "firebase"},
		{"NUMBERLOCALE", s.locale},
	}
	out := make(cloudrun.ServiceTemplateSpecContainerEnvArray, 0, len(vars))
	for _, v := range vars {
		out = append(out, &cloudrun.ServiceTemplateSpecContainerEnvArgs{
			Name:  pulumi.String(v[0]),
			Value: pulumi.String(v[1]),
		})
	}
	return out
}

// annotations carry autoscaling, sizing and the Firebase identity provider.
func (s settings) annotations() pulumi.StringMap {
	return pulumi.StringMap{
		"run.googleapis.com/launch-stage":          pulumi.String("BETA"),
		"run.googleapis.com/identity-provider":     pulumi.String("firebase"),
		"autoscaling.knative.dev/minScale":         pulumi.String(s.minScale),
		"autoscaling.knative.dev/maxScale":         pulumi.String(s.maxScale),
		"run.googleapis.com/cpu":                   pulumi.String(s.cpu),
		"run.googleapis.com/memory":                pulumi.String(s.memory),
		"run.googleapis.com/cpu-throttling":        pulumi.String("true"),
		"run.googleapis.com/container-concurrency": pulumi.String(s.concurrency),
	}
}

// SetupCloudRun builds the API image and deploys it with a dedicated
// service account that can read and write Firestore. deps are waited on
// before the image build and the service.
func SetupCloudRun(ctx *pulumi.Context, prov *gcp.Provider, deps ...pulumi.Resource) (*serviceaccount.Account, error) {
	s := loadSettings(ctx)

	img, err := buildImage(ctx, s, deps...)
	if err != nil {
		return nil, err
	}
	api, err := projects.NewService(ctx, "cloudRunApi", &projects.ServiceArgs{
		Service: pulumi.String("run.googleapis.com"),
	}, pulumi.Provider(prov))
	if err != nil {
		return nil, err
	}
	sa, err := serviceAccount(ctx, s, prov)
	if err != nil {
		return nil, err
	}
	svc, err := service(ctx, s, img, sa, prov, append(deps, api)...)
	if err != nil {
		return nil, err
	}

	// Cloud Run lets every caller through; the API verifies Firebase tokens itself.
	_, err = cloudrun.NewIamMember(ctx, "publicInvoker", &cloudrun.IamMemberArgs{
		Service:  svc.Name,
		Location: pulumi.String(s.region),
		Role:     pulumi.String("roles/run.invoker"),
		Member:   pulumi.String("allUsers"),
	}, pulumi.Provider(prov))
	if err != nil {
		return nil, err
	}

	ctx.Export("apiUrl", svc.Statuses.Index(pulumi.Int(0)).Url())
	return sa, nil
}

func buildImage(ctx *pulumi.Context, s settings, deps ...pulumi.Resource) (*docker.Image, error) {
	hash, err := common.GenerateHash("../")
	if err != nil {
		return nil, err
	}
	name := fmt.Sprintf("%s-docker.pkg.dev/%s/dashboard/dashboard-api:%s", s.region, s.projectID, hash)

	return docker.NewImage(ctx, "dashboardApiImage", &docker.ImageArgs{
		Build: docker.DockerBuildArgs{
			Platform:   pulumi.String("linux/amd64"),
			Context:    pulumi.String(".."),
			Dockerfile: pulumi.String("../cmd/api/Dockerfile"),
		},
		ImageName: pulumi.String(name),
	}, pulumi.DependsOn(deps))
}

func serviceAccount(ctx *pulumi.Context, s settings, prov *gcp.Provider) (*serviceaccount.Account, error) {
	sa, err := serviceaccount.NewAccount(ctx, "dashboardApiAccount", &serviceaccount.AccountArgs{
		AccountId:   pulumi.String("dashboard-api"),
		DisplayName: pulumi.String("Dashboard API"),
	}, pulumi.Provider(prov))
	if err != nil {
		return nil, err
	}

	member := sa.Email.ApplyT(func(email string) string {
		return "serviceAccount:" + email
	}).(pulumi.StringOutput)
	_, err = projects.NewIAMMember(ctx, "dashboardFirestoreUser", &projects.IAMMemberArgs{
		Project: pulumi.String(s.projectID),
		Role:    pulumi.String("roles/datastore.user"),
		Member:  member,
	}, pulumi.Provider(prov))
	if err != nil {
		return nil, err
	}
	return sa, nil
}

func service(ctx *pulumi.Context, s settings, img *docker.Image, sa *serviceaccount.Account, prov *gcp.Provider, deps ...pulumi.Resource) (*cloudrun.Service, error) {
	return cloudrun.NewService(ctx, "dashboardApi", &cloudrun.ServiceArgs{
		Location: pulumi.String(s.region),
		Template: &cloudrun.ServiceTemplateArgs{
			Metadata: &cloudrun.ServiceTemplateMetadataArgs{
				Annotations: s.annotations(),
			},
			Spec: &cloudrun.ServiceTemplateSpecArgs{
				ServiceAccountName: sa.Email,
				TimeoutSeconds:     pulumi.Int(s.timeout),
				Containers: cloudrun.ServiceTemplateSpecContainerArray{
					&cloudrun.ServiceTemplateSpecContainerArgs{
						Image: img.ImageName,
						Ports: cloudrun.ServiceTemplateSpecContainerPortArray{
							&cloudrun.ServiceTemplateSpecContainerPortArgs{
								ContainerPort: pulumi.Int(apiPort),
							},
						},
						Envs: s.env(),
					},
				},
			},
		},
	}, pulumi.Provider(prov), pulumi.DependsOn(deps))
}
