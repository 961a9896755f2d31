// Command dashctl renders dashboard documents offline and talks to a
// running dashboard API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/GregMSThompson/dashboard-backend/internal/charting"
	dashboardclient "github.com/GregMSThompson/dashboard-backend/internal/client/dashboard"
	"github.com/GregMSThompson/dashboard-backend/internal/dto"
	"github.com/GregMSThompson/dashboard-backend/internal/export"
	"github.com/GregMSThompson/dashboard-backend/internal/models"
	"github.com/GregMSThompson/dashboard-backend/internal/services"
	"github.com/GregMSThompson/dashboard-backend/internal/store/sqlite"
	"github.com/GregMSThompson/dashboard-backend/pkg/logger"
)

type options struct {
	file     string
	from     string
	to       string
	locale   string
	out      string
	chartID  string
	pretty   bool
	db       string
	baseURL  string
	token    string
	logLevel string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var o options
	root := &cobra.Command{
		Use:          "dashctl",
		Short:        "Render, export and inspect dashboards",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			log := logger.New(o.logLevel, logger.CloudRunHandlerTo(cmd.ErrOrStderr()))
			cmd.SetContext(logger.ToContext(cmd.Context(), log))
		},
	}
	root.PersistentFlags().BoolVar(&o.pretty, "pretty", false, "Pretty-print JSON output")
	root.PersistentFlags().StringVar(&o.logLevel, "log-level", "warn", "Log level written to stderr")

	root.AddCommand(
		newRenderCmd(&o),
		newLayoutCmd(&o),
		newExportCmd(&o),
		newPreviewCmd(&o),
		newSeedFieldsCmd(&o),
		newRemoteCmd(&o),
	)
	return root
}

// --- Offline commands ---

func addDocFlags(cmd *cobra.Command, o *options) {
	cmd.Flags().StringVarP(&o.file, "file", "f", "", "Dashboard document (JSON)")
	cmd.Flags().StringVar(&o.from, "from", "", "Range start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&o.to, "to", "", "Range end (YYYY-MM-DD)")
	cmd.Flags().StringVar(&o.locale, "locale", "en", "Locale for table numbers")
	_ = cmd.MarkFlagRequired("file")
}

func newRenderCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render every layout cell of a document",
		RunE: func(cmd *cobra.Command, _ []string) error {
			view, err := offlineView(cmd.Context(), o)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), view, o.pretty)
		},
	}
	addDocFlags(cmd, o)
	return cmd
}

func newLayoutCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Recompute the grid layout from the document's chart order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := readDocument(o.file)
			if err != nil {
				return err
			}
			specs := charting.OrderCharts(d.Config.Charts, d.Layout)
			return writeJSON(cmd.OutOrStdout(), charting.BuildLayout(specs), o.pretty)
		},
	}
	cmd.Flags().StringVarP(&o.file, "file", "f", "", "Dashboard document (JSON)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newExportCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export one chart's rendered data to an xlsx workbook",
		RunE: func(cmd *cobra.Command, _ []string) error {
			view, err := offlineView(cmd.Context(), o)
			if err != nil {
				return err
			}
			var model charting.RenderModel
			for _, c := range view.Cells {
				if c.Cell.ID == o.chartID && c.Renderable {
					model = c.Model
				}
			}
			if model == nil {
				return fmt.Errorf("chart %q is not on the dashboard", o.chartID)
			}
			out := o.out
			if out == "" {
				out = o.chartID + ".xlsx"
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := export.Write(f, model); err != nil {
				_ = f.Close()
				return err
			}
			return f.Close()
		},
	}
	addDocFlags(cmd, o)
	cmd.Flags().StringVar(&o.chartID, "chart", "", "Chart id")
	cmd.Flags().StringVarP(&o.out, "out", "o", "", "Output file (default: <chart>.xlsx)")
	_ = cmd.MarkFlagRequired("chart")
	return cmd
}

func newPreviewCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Write an HTML preview page of a document",
		RunE: func(cmd *cobra.Command, _ []string) error {
			view, err := offlineView(cmd.Context(), o)
			if err != nil {
				return err
			}
			if o.out == "" {
				return services.WritePreview(cmd.OutOrStdout(), view)
			}
			f, err := os.Create(o.out)
			if err != nil {
				return err
			}
			if err := services.WritePreview(f, view); err != nil {
				_ = f.Close()
				return err
			}
			return f.Close()
		},
	}
	addDocFlags(cmd, o)
	cmd.Flags().StringVarP(&o.out, "out", "o", "", "Output file (default: stdout)")
	return cmd
}

func newSeedFieldsCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed-fields",
		Short: "Write the default field catalog into a SQLite store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := sqlite.Open(o.db)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.PutFields(cmd.Context(), charting.DefaultFields()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d fields into %s\n", len(charting.DefaultFields()), o.db)
			return nil
		},
	}
	cmd.Flags().StringVar(&o.db, "db", "dashboards.db", "SQLite database path")
	return cmd
}

// --- Remote commands ---

func newRemoteCmd(o *options) *cobra.Command {
	remote := &cobra.Command{
		Use:   "remote",
		Short: "Call a running dashboard API",
	}
	remote.PersistentFlags().StringVar(&o.baseURL, "url", "http://localhost:8080", "API base URL")
	remote.PersistentFlags().StringVar(&o.token, "token", os.Getenv("DASHCTL_TOKEN"), "Bearer token")

	remote.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List dashboards",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				c, err := newClient(o)
				if err != nil {
					return err
				}
				list, err := c.ListDashboards(cmd.Context())
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), list, o.pretty)
			},
		},
		&cobra.Command{
			Use:   "get <id>",
			Short: "Fetch a dashboard document",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := newClient(o)
				if err != nil {
					return err
				}
				d, err := c.GetDashboard(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), d, o.pretty)
			},
		},
		&cobra.Command{
			Use:   "fields",
			Short: "List the field catalog",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				c, err := newClient(o)
				if err != nil {
					return err
				}
				fields, err := c.ListFields(cmd.Context())
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), fields, o.pretty)
			},
		},
	)

	render := &cobra.Command{
		Use:   "render <id>",
		Short: "Render a dashboard on the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(o)
			if err != nil {
				return err
			}
			view, err := c.LoadDashboard(cmd.Context(), args[0], dto.DateRangeQuery{From: o.from, To: o.to})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), view, o.pretty)
		},
	}
	render.Flags().StringVar(&o.from, "from", "", "Range start (YYYY-MM-DD)")
	render.Flags().StringVar(&o.to, "to", "", "Range end (YYYY-MM-DD)")
	remote.AddCommand(render)
	return remote
}

func newClient(o *options) (*dashboardclient.Client, error) {
	return dashboardclient.New(o.baseURL, dashboardclient.Credentials{BearerToken: o.token})
}

// --- Helpers ---

func readDocument(path string) (*models.Dashboard, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	d := new(models.Dashboard)
	if err := json.Unmarshal(raw, d); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return d, nil
}

// offlineView renders the document named by o.file. Documents without a
// layout get one computed from their charts.
func offlineView(ctx context.Context, o *options) (*dto.DashboardView, error) {
	d, err := readDocument(o.file)
	if err != nil {
		return nil, err
	}
	tag, err := language.Parse(o.locale)
	if err != nil {
		return nil, fmt.Errorf("parse locale %q: %w", o.locale, err)
	}
	if len(d.Layout) == 0 {
		d.Layout = charting.BuildLayout(charting.OrderCharts(d.Config.Charts, nil))
	}
	log := logger.FromContext(ctx)
	log.Debug("rendering document", "file", o.file, "charts", len(d.Config.Charts))
	return services.BuildView(ctx, charting.NewRenderer(tag), d, dto.DateRangeQuery{From: o.from, To: o.to}), nil
}

func writeJSON(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
