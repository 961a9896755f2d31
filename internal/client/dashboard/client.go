// Package dashboardclient is a Go client for the dashboard REST API.
package dashboardclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/GregMSThompson/dashboard-backend/internal/dto"
	"github.com/GregMSThompson/dashboard-backend/internal/errs"
	"github.com/GregMSThompson/dashboard-backend/internal/models"
)

const serviceName = "dashboard-api"

// ErrStale is returned by LoadDashboard when a later load was started
// before this one completed. The result of the later load wins.
var ErrStale = errors.New("dashboard load superseded by a newer request")

// Credentials authenticate every call. They are fixed when the client is
// built.
type Credentials struct {
	BearerToken string
}

type Client struct {
	baseURL *url.URL
	creds   Credentials
	http    *http.Client
	loads   atomic.Uint64
}

type Option func(*Client)

// WithHTTPClient replaces the default client, which times out after 30s.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func New(baseURL string, creds Credentials, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", baseURL)
	}
	c := &Client{
		baseURL: u,
		creds:   creds,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CellView is one rendered layout cell. Model is the raw render model;
// its "kind" member names the projection.
type CellView struct {
	Cell       models.LayoutCell `json:"cell"`
	Renderable bool              `json:"renderable"`
	Chart      models.ChartSpec  `json:"chart,omitempty"`
	Model      json.RawMessage   `json:"model,omitempty"`
}

// View is a rendered dashboard as returned by the render endpoint.
type View struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Version     int64               `json:"version"`
	Range       *dto.DateRangeQuery `json:"range,omitempty"`
	RowCount    int                 `json:"rowCount"`
	Cells       []CellView          `json:"cells"`
}

type wireCell struct {
	Cell       models.LayoutCell `json:"cell"`
	Renderable bool              `json:"renderable"`
	Chart      json.RawMessage   `json:"chart"`
	Model      json.RawMessage   `json:"model"`
}

func (v *View) UnmarshalJSON(data []byte) error {
	var w struct {
		ID          string              `json:"id"`
		Name        string              `json:"name"`
		Description string              `json:"description"`
		Version     int64               `json:"version"`
		Range       *dto.DateRangeQuery `json:"range"`
		RowCount    int                 `json:"rowCount"`
		Cells       []wireCell          `json:"cells"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*v = View{ID: w.ID, Name: w.Name, Description: w.Description, Version: w.Version, Range: w.Range, RowCount: w.RowCount}
	v.Cells = make([]CellView, len(w.Cells))
	for i, wc := range w.Cells {
		cv := CellView{Cell: wc.Cell, Renderable: wc.Renderable, Model: wc.Model}
		if len(wc.Chart) > 0 && string(wc.Chart) != "null" {
			spec, err := models.DecodeChart(wc.Chart)
			if err != nil {
				return fmt.Errorf("cells[%d]: %w", i, err)
			}
			cv.Chart = spec
		}
		v.Cells[i] = cv
	}
	return nil
}

// --- Calls ---

func (c *Client) ListFields(ctx context.Context) ([]models.Field, error) {
	var out []models.Field
	_, err := c.do(ctx, http.MethodGet, "/dashboards/fields", nil, 0, nil, &out)
	return out, err
}

func (c *Client) ListDashboards(ctx context.Context) ([]models.DashboardSummary, error) {
	var out []models.DashboardSummary
	_, err := c.do(ctx, http.MethodGet, "/dashboards", nil, 0, nil, &out)
	return out, err
}

func (c *Client) GetDashboard(ctx context.Context, id string) (*models.Dashboard, error) {
	out := new(models.Dashboard)
	if _, err := c.do(ctx, http.MethodGet, "/dashboards/"+url.PathEscape(id), nil, 0, nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateDashboard(ctx context.Context, req dto.CreateDashboardRequest) (*models.Dashboard, error) {
	out := new(models.Dashboard)
	if _, err := c.do(ctx, http.MethodPost, "/dashboards", nil, 0, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveLayout replaces the layout. A non-zero version is sent as If-Match.
func (c *Client) SaveLayout(ctx context.Context, id string, layout []models.LayoutCell, version int64) (*models.Dashboard, error) {
	out := new(models.Dashboard)
	body := dto.SaveLayoutRequest{Layout: layout}
	if _, err := c.do(ctx, http.MethodPut, "/dashboards/"+url.PathEscape(id)+"/layout", nil, version, body, out); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveCharts replaces the charts. Saving no charts is rejected here,
// without a request.
func (c *Client) SaveCharts(ctx context.Context, id string, specs []models.ChartSpec, version int64) (*models.Dashboard, error) {
	if len(specs) == 0 {
		return nil, errs.NewValidationError("a dashboard needs at least one chart")
	}
	out := new(models.Dashboard)
	body := dto.SaveChartsRequest{Charts: specs}
	if _, err := c.do(ctx, http.MethodPut, "/dashboards/"+url.PathEscape(id)+"/charts", nil, version, body, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DeleteDashboard(ctx context.Context, id string, version int64) error {
	_, err := c.do(ctx, http.MethodDelete, "/dashboards/"+url.PathEscape(id), nil, version, nil, nil)
	return err
}

func (c *Client) RenderDashboard(ctx context.Context, id string, q dto.DateRangeQuery) (*View, error) {
	out := new(View)
	if _, err := c.do(ctx, http.MethodGet, "/dashboards/"+url.PathEscape(id)+"/render", rangeQuery(q), 0, nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadDashboard renders a dashboard for display. When loads overlap, only
// the most recently started one returns its view; earlier ones that
// complete afterwards return ErrStale.
func (c *Client) LoadDashboard(ctx context.Context, id string, q dto.DateRangeQuery) (*View, error) {
	seq := c.loads.Add(1)
	view, err := c.RenderDashboard(ctx, id, q)
	if c.loads.Load() != seq {
		return nil, ErrStale
	}
	return view, err
}

func rangeQuery(q dto.DateRangeQuery) url.Values {
	v := url.Values{}
	if q.From != "" {
		v.Set("from", q.From)
	}
	if q.To != "" {
		v.Set("to", q.To)
	}
	return v
}

// --- Transport ---

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
}

// do sends one request and decodes the data member into out. Failures are
// returned as they happen; nothing is retried.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, version int64, body, out any) (http.Header, error) {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		rd = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.creds.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.creds.BearerToken)
	}
	if version > 0 {
		req.Header.Set("If-Match", strconv.Quote(strconv.FormatInt(version, 10)))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errs.NewExternalServiceError(serviceName, fmt.Sprintf("%s %s failed", method, path), true, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && !errors.Is(err, io.EOF) {
		return resp.Header, errs.NewExternalServiceError(serviceName, fmt.Sprintf("%s %s: unreadable response (status %d)", method, path, resp.StatusCode), false, err)
	}

	if resp.StatusCode >= 300 {
		return resp.Header, statusError(resp, env)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return resp.Header, errs.NewExternalServiceError(serviceName, fmt.Sprintf("%s %s: unexpected response body", method, path), false, err)
		}
	}
	return resp.Header, nil
}

func statusError(resp *http.Response, env envelope) error {
	msg := env.Message
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	switch resp.StatusCode {
	case http.StatusNotFound:
		return errs.NewNotFoundError(msg)
	case http.StatusBadRequest:
		return errs.NewValidationError(msg)
	case http.StatusConflict:
		actual, _ := strconv.ParseInt(strings.Trim(resp.Header.Get("ETag"), `"`), 10, 64)
		expected, _ := strconv.ParseInt(strings.Trim(resp.Request.Header.Get("If-Match"), `"`), 10, 64)
		return errs.NewConflictError(expected, actual)
	default:
		transient := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return errs.NewExternalServiceError(serviceName, fmt.Sprintf("status %d: %s", resp.StatusCode, msg), transient, nil)
	}
}
