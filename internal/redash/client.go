// Package redash talks to a Redash server's REST API. It fetches remote
// snapshots, projected through the projector, and sends the payloads the
// reconciliation engine builds.
package redash

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/agentstation/redpush/internal/transport"
	"github.com/agentstation/redpush/pkg/constants"
	"github.com/agentstation/redpush/pkg/errors"
	"github.com/agentstation/redpush/pkg/logging"
	"github.com/agentstation/redpush/pkg/projector"
	"github.com/agentstation/redpush/pkg/resources"
)

// API paths.
const (
	pathQueries        = "/api/queries"
	pathVisualizations = "/api/visualizations"
	pathDashboards     = "/api/dashboards"
	pathWidgets        = "/api/widgets"
	pathUsers          = "/api/users"
)

// Client is a Redash API client.
type Client struct {
	http     *transport.Client
	pageSize int
}

// Option configures a Client.
type Option func(*Client)

// WithPageSize sets the page size requested when listing queries.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 && n <= constants.MaxPageSize {
			c.pageSize = n
		}
	}
}

// New wraps a transport client.
func New(tc *transport.Client, opts ...Option) *Client {
	c := &Client{
		http:     tc,
		pageSize: constants.DefaultPageSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// page is the paginated listing envelope.
type page struct {
	Count    int                `json:"count"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
	Results  []projector.Record `json:"results"`
}

// more reports whether another page follows page number n.
func (p page) more(n int) bool {
	return hasMore(n, p.PageSize, p.Count, len(p.Results))
}

// hasMore continues while n*size < count. An empty page or a missing
// page size ends the listing.
func hasMore(n, size, count, got int) bool {
	if size <= 0 || got == 0 {
		return false
	}
	return n*size < count
}

// Queries lists every query, projected. Bulk listings omit visualizations.
func (c *Client) Queries(ctx context.Context) ([]resources.Query, error) {
	var out []resources.Query
	for n := 1; ; n++ {
		var p page
		query := url.Values{
			"page":      {strconv.Itoa(n)},
			"page_size": {strconv.Itoa(c.pageSize)},
		}
		if err := c.http.Get(ctx, pathQueries, query, &p); err != nil {
			return nil, errors.WrapResource("list", "queries", "page "+strconv.Itoa(n), err)
		}
		for _, r := range p.Results {
			out = append(out, projector.ProjectQuery(r))
		}
		if !p.more(n) {
			break
		}
	}
	logging.FromContext(ctx).Debug().Int("count", len(out)).Msg("Listed queries")
	return out, nil
}

// Query fetches one query including its visualizations.
func (c *Client) Query(ctx context.Context, id int) (resources.Query, error) {
	var r projector.Record
	if err := c.http.Get(ctx, queryPath(id), nil, &r); err != nil {
		return resources.Query{}, errors.WrapResource("fetch", "query", strconv.Itoa(id), err)
	}
	return projector.ProjectQuery(r), nil
}

// FullQueries re-fetches each query by id so that visualizations are
// included. A query whose fetch fails keeps its listed form and its error
// is joined into err; the returned slice always holds every query unless
// ctx is done.
func (c *Client) FullQueries(ctx context.Context, queries []resources.Query) ([]resources.Query, error) {
	out := make([]resources.Query, 0, len(queries))
	var errs []error
	for _, q := range queries {
		full, err := c.Query(ctx, q.ID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			logging.FromContext(ctx).Warn().Err(err).
				Int("query_id", q.ID).
				Str("tracking_id", q.TrackingID.String()).
				Msg("Failed to fetch query, keeping listed copy")
			errs = append(errs, err)
			out = append(out, q)
			continue
		}
		out = append(out, full)
	}
	return out, errors.Join(errs...)
}

// SaveQuery creates the query when id is zero, otherwise updates query id.
// It returns the remote id of the saved query.
func (c *Client) SaveQuery(ctx context.Context, id int, payload projector.Record) (int, error) {
	return c.save(ctx, "query", pathQueries, id, payload)
}

// ArchiveQuery archives query id.
func (c *Client) ArchiveQuery(ctx context.Context, id int) error {
	if err := c.http.Delete(ctx, queryPath(id), nil); err != nil {
		return errors.WrapResource("archive", "query", strconv.Itoa(id), err)
	}
	return nil
}

// SaveVisualization creates or updates a visualization.
func (c *Client) SaveVisualization(ctx context.Context, id int, payload projector.Record) (int, error) {
	return c.save(ctx, "visualization", pathVisualizations, id, payload)
}

// SaveWidget creates or updates a widget.
func (c *Client) SaveWidget(ctx context.Context, id int, payload projector.Record) (int, error) {
	return c.save(ctx, "widget", pathWidgets, id, payload)
}

func (c *Client) save(ctx context.Context, resource, base string, id int, payload projector.Record) (int, error) {
	path, op := base, "create"
	if id != 0 {
		path, op = fmt.Sprintf("%s/%d", base, id), "update"
	}

	var resp projector.Record
	if err := c.http.Post(ctx, path, payload, &resp); err != nil {
		return 0, errors.WrapResource(op, resource, idLabel(id), err)
	}
	if msg, rejected := projector.Rejection(resp); rejected {
		return 0, errors.WrapResource(op, resource, idLabel(id),
			&errors.RejectionError{Resource: resource, ID: idLabel(id), Message: msg})
	}
	saved, ok := projector.ID(resp)
	if !ok {
		if id == 0 {
			return 0, errors.WrapResource(op, resource, "", errors.New("response carries no id"))
		}
		saved = id
	}
	return saved, nil
}

// Dashboards lists every dashboard with its widgets. The summary listing
// omits widgets, so each dashboard is fetched again by slug.
func (c *Client) Dashboards(ctx context.Context) ([]resources.Dashboard, error) {
	summaries, err := c.dashboardSummaries(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]resources.Dashboard, 0, len(summaries))
	for _, s := range summaries {
		d, err := c.Dashboard(ctx, dashboardKey(s))
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			logging.FromContext(ctx).Warn().Err(err).
				Str("dashboard", s.Name).
				Str("slug", s.Slug).
				Msg("Failed to fetch dashboard, keeping listing entry")
			s.Partial = true
			out = append(out, s)
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// Dashboard fetches one dashboard by slug or id.
func (c *Client) Dashboard(ctx context.Context, key string) (resources.Dashboard, error) {
	var r projector.Record
	if err := c.http.Get(ctx, pathDashboards+"/"+url.PathEscape(key), nil, &r); err != nil {
		return resources.Dashboard{}, errors.WrapResource("fetch", "dashboard", key, err)
	}
	return projector.ProjectDashboard(r), nil
}

// dashboardSummaries accepts both the bare array older servers return and
// the paginated envelope of newer ones.
func (c *Client) dashboardSummaries(ctx context.Context) ([]resources.Dashboard, error) {
	var out []resources.Dashboard
	for n := 1; ; n++ {
		var raw any
		query := url.Values{"page": {strconv.Itoa(n)}, "page_size": {strconv.Itoa(c.pageSize)}}
		if err := c.http.Get(ctx, pathDashboards, query, &raw); err != nil {
			return nil, errors.WrapResource("list", "dashboards", "page "+strconv.Itoa(n), err)
		}

		switch v := raw.(type) {
		case []any:
			return appendDashboards(out, v), nil
		case map[string]any:
			results, _ := v["results"].([]any)
			out = appendDashboards(out, results)
			if !hasMore(n, intOf(v["page_size"]), intOf(v["count"]), len(results)) {
				return out, nil
			}
		default:
			return out, nil
		}
	}
}

// CreateDashboard creates a dashboard and publishes it. A rejected publish
// is logged and the dashboard is re-read so the caller gets the state the
// server actually holds.
func (c *Client) CreateDashboard(ctx context.Context, name string) (resources.Dashboard, error) {
	log := logging.FromContext(ctx)

	var created projector.Record
	if err := c.http.Post(ctx, pathDashboards, projector.DashboardCreatePayload(name), &created); err != nil {
		return resources.Dashboard{}, errors.WrapResource("create", "dashboard", name, err)
	}
	if msg, rejected := projector.Rejection(created); rejected {
		return resources.Dashboard{}, errors.WrapResource("create", "dashboard", name,
			&errors.RejectionError{Resource: "dashboard", ID: name, Message: msg})
	}
	dash := projector.ProjectDashboard(created)
	if dash.Name == "" {
		dash.Name = name
	}

	var published projector.Record
	err := c.http.Post(ctx, fmt.Sprintf("%s/%d", pathDashboards, dash.ID), projector.DashboardPublishPayload(), &published)
	if err == nil {
		if msg, rejected := projector.Rejection(published); rejected {
			err = &errors.RejectionError{Resource: "dashboard", ID: strconv.Itoa(dash.ID), Message: msg}
		}
	}
	if err == nil {
		if p := projector.ProjectDashboard(published); p.ID == dash.ID {
			if p.Name == "" {
				p.Name = dash.Name
			}
			return p, nil
		}
	}
	if err != nil {
		log.Warn().Err(err).Str("dashboard", name).Int("dashboard_id", dash.ID).
			Msg("Dashboard publish was not confirmed, re-reading it")
	}

	confirmed, rerr := c.Dashboard(ctx, dashboardKey(dash))
	if rerr != nil {
		log.Warn().Err(rerr).Str("dashboard", name).Msg("Could not re-read created dashboard")
		return dash, nil
	}
	if confirmed.IsDraft {
		log.Warn().Str("dashboard", name).Int("dashboard_id", confirmed.ID).
			Msg("Dashboard is still a draft after publishing")
	}
	return confirmed, nil
}

// CreateUsers creates each user, best effort. It returns how many were
// created and the errors of the rest.
func (c *Client) CreateUsers(ctx context.Context, users []resources.User) (int, []error) {
	log := logging.FromContext(ctx)
	created := 0
	var errs []error
	for _, u := range users {
		var resp projector.Record
		err := c.http.Post(ctx, pathUsers, projector.UserPayload(u), &resp)
		if err == nil {
			if msg, rejected := projector.Rejection(resp); rejected {
				err = &errors.RejectionError{Resource: "user", ID: u.Email, Message: msg}
			}
		}
		if err != nil {
			log.Warn().Err(err).Str("email", u.Email).Msg("User not created")
			errs = append(errs, errors.WrapResource("create", "user", u.Email, err))
			continue
		}
		log.Info().Str("email", u.Email).Msg("Created user")
		created++
	}
	return created, errs
}

func appendDashboards(out []resources.Dashboard, items []any) []resources.Dashboard {
	for _, item := range items {
		if r, ok := item.(map[string]any); ok {
			out = append(out, projector.ProjectDashboard(r))
		}
	}
	return out
}

// dashboardKey addresses a dashboard by slug, falling back to id.
func dashboardKey(d resources.Dashboard) string {
	if d.Slug != "" {
		return d.Slug
	}
	return strconv.Itoa(d.ID)
}

func queryPath(id int) string {
	return fmt.Sprintf("%s/%d", pathQueries, id)
}

func idLabel(id int) string {
	if id == 0 {
		return ""
	}
	return strconv.Itoa(id)
}

func intOf(v any) int {
	f, _ := v.(float64)
	return int(f)
}
