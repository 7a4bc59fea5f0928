package redash_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/redpush/internal/redash"
	"github.com/agentstation/redpush/internal/redash/redashtest"
	"github.com/agentstation/redpush/internal/transport"
	"github.com/agentstation/redpush/pkg/errors"
	"github.com/agentstation/redpush/pkg/logging"
	"github.com/agentstation/redpush/pkg/projector"
	"github.com/agentstation/redpush/pkg/resources"
)

func newClient(t *testing.T, srv *redashtest.Server, opts ...redash.Option) *redash.Client {
	t.Helper()
	tc, err := transport.New(srv.URL, "secret")
	require.NoError(t, err)
	return redash.New(tc, opts...)
}

func TestQueriesPaginates(t *testing.T) {
	srv := redashtest.New(t)
	srv.PageSize = 2
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		srv.SeedQuery(redashtest.Record{"name": name, "options": redashtest.Record{"redpush_id": name}})
	}

	qs, err := newClient(t, srv).Queries(context.Background())
	require.NoError(t, err)

	require.Len(t, qs, 5)
	assert.Equal(t, resources.TrackingID("e"), qs[4].TrackingID)
	assert.Equal(t, 3, srv.CountCalls(http.MethodGet, "/api/queries"), "pages 1..3 of 5 items at size 2")
}

func TestQueriesExactMultipleStops(t *testing.T) {
	srv := redashtest.New(t)
	srv.PageSize = 2
	srv.SeedQuery(redashtest.Record{"name": "a"})
	srv.SeedQuery(redashtest.Record{"name": "b"})

	qs, err := newClient(t, srv).Queries(context.Background())
	require.NoError(t, err)
	assert.Len(t, qs, 2)
	assert.Equal(t, 1, srv.CountCalls(http.MethodGet, "/api/queries"))
}

func TestFullQueries(t *testing.T) {
	srv := redashtest.New(t)
	srv.SeedQuery(
		redashtest.Record{"name": "Sales", "options": redashtest.Record{"redpush_id": "q1"}},
		redashtest.Record{"type": "CHART", "name": "Revenue", "options": redashtest.Record{"redpush_id": "v1"}},
	)
	c := newClient(t, srv)
	ctx := context.Background()

	listed, err := c.Queries(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Nil(t, listed[0].Visualizations)

	full, err := c.FullQueries(ctx, listed)
	require.NoError(t, err)
	require.Len(t, full[0].Visualizations, 1)
	assert.Equal(t, resources.TrackingID("v1"), full[0].Visualizations[0].TrackingID)
}

func TestFullQueriesKeepsListedCopyOnFailure(t *testing.T) {
	srv := redashtest.New(t)
	srv.SeedQuery(redashtest.Record{"name": "Sales", "options": redashtest.Record{"redpush_id": "q1"}},
		redashtest.Record{"type": "CHART", "name": "Revenue"})
	broken := srv.SeedQuery(redashtest.Record{"name": "Broken", "options": redashtest.Record{"redpush_id": "q2"}},
		redashtest.Record{"type": "TABLE", "name": "Rows"})
	srv.FailQueryFetches[broken] = true
	c := newClient(t, srv)
	ctx := context.Background()

	listed, err := c.Queries(ctx)
	require.NoError(t, err)

	full, err := c.FullQueries(ctx, listed)
	require.Error(t, err)
	assert.True(t, errors.IsServerUnavailable(err))
	require.Len(t, full, 2)
	assert.Len(t, full[0].Visualizations, 1)
	assert.Equal(t, broken, full[1].ID)
	assert.Nil(t, full[1].Visualizations)
}

func TestSaveQuery(t *testing.T) {
	srv := redashtest.New(t)
	c := newClient(t, srv)
	ctx := context.Background()

	id, err := c.SaveQuery(ctx, 0, projector.Record{"name": "Sales", "query": "select 1"})
	require.NoError(t, err)
	assert.NotZero(t, id)

	again, err := c.SaveQuery(ctx, id, projector.Record{"name": "Sales v2"})
	require.NoError(t, err)
	assert.Equal(t, id, again)

	stored, ok := srv.Query(id)
	require.True(t, ok)
	assert.Equal(t, "Sales v2", stored["name"])
}

func TestSaveQueryServerError(t *testing.T) {
	srv := redashtest.New(t)
	srv.FailQueryNames["Broken"] = true

	_, err := newClient(t, srv).SaveQuery(context.Background(), 0, projector.Record{"name": "Broken"})
	require.Error(t, err)
	assert.True(t, errors.IsServerUnavailable(err))

	var resErr *errors.ResourceError
	require.True(t, errors.As(err, &resErr))
	assert.Equal(t, "create", resErr.Operation)
}

func TestArchiveQuery(t *testing.T) {
	srv := redashtest.New(t)
	id := srv.SeedQuery(redashtest.Record{"name": "Old"})
	c := newClient(t, srv)

	require.NoError(t, c.ArchiveQuery(context.Background(), id))

	stored, _ := srv.Query(id)
	assert.Equal(t, true, stored["is_archived"])

	err := c.ArchiveQuery(context.Background(), 99999)
	assert.True(t, errors.IsNotFound(err))
}

func TestDashboards(t *testing.T) {
	for _, paginate := range []bool{false, true} {
		name := "bare array"
		if paginate {
			name = "paginated envelope"
		}
		t.Run(name, func(t *testing.T) {
			srv := redashtest.New(t)
			srv.PageSize = 1
			srv.PaginateDashboards = paginate
			d1 := srv.SeedDashboard("Exec Overview")
			srv.SeedDashboard("Ops")
			srv.SeedWidget(d1, 55)

			ds, err := newClient(t, srv).Dashboards(context.Background())
			require.NoError(t, err)
			require.Len(t, ds, 2)
			assert.Equal(t, "Exec Overview", ds[0].Name)
			require.Len(t, ds[0].Widgets, 1)
			assert.Equal(t, 55, ds[0].Widgets[0].VisualizationID)
			assert.Empty(t, ds[1].Widgets)
		})
	}
}

func TestDashboardsKeepsListingEntryOnFetchFailure(t *testing.T) {
	srv := redashtest.New(t)
	broken := srv.SeedDashboard("Broken")
	ops := srv.SeedDashboard("Ops")
	srv.SeedWidget(ops, 55)
	srv.FailDashboardFetches["Broken"] = true

	ds, err := newClient(t, srv).Dashboards(context.Background())
	require.NoError(t, err)
	require.Len(t, ds, 2)

	assert.Equal(t, broken, ds[0].ID)
	assert.True(t, ds[0].Partial)
	assert.Empty(t, ds[0].Widgets)

	assert.False(t, ds[1].Partial)
	require.Len(t, ds[1].Widgets, 1)
}

func TestCreateDashboard(t *testing.T) {
	srv := redashtest.New(t)

	d, err := newClient(t, srv).CreateDashboard(context.Background(), "Exec Overview")
	require.NoError(t, err)

	assert.Equal(t, "Exec Overview", d.Name)
	assert.Equal(t, "exec-overview", d.Slug)
	assert.False(t, d.IsDraft)
	assert.Equal(t, 2, srv.CountCalls(http.MethodPost, "/api/dashboards"), "create then publish")
}

func TestCreateDashboardPublishRejected(t *testing.T) {
	srv := redashtest.New(t)
	srv.RejectPublish = true
	logs := logging.NewTestLogger(t)
	ctx := logging.WithLogger(context.Background(), logs.Logger)

	d, err := newClient(t, srv).CreateDashboard(ctx, "Exec Overview")
	require.NoError(t, err)

	assert.True(t, d.IsDraft, "the confirmed server state is returned")
	assert.True(t, logs.Contains("Dashboard publish was not confirmed"))
	assert.True(t, logs.Contains("still a draft"))
	assert.Equal(t, 1, srv.CountCalls(http.MethodGet, "/api/dashboards/exec-overview"))
}

func TestCreateUsers(t *testing.T) {
	srv := redashtest.New(t)
	c := newClient(t, srv)
	users := []resources.User{
		{Name: "Ada", Email: "ada@example.com"},
		{Name: "Ada again", Email: "ada@example.com"},
		{Name: "Grace", Email: "grace@example.com"},
	}

	created, errs := c.CreateUsers(context.Background(), users)

	assert.Equal(t, 2, created)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "Email already taken")
	assert.Len(t, srv.Users(), 2)
}

func TestUnauthorized(t *testing.T) {
	srv := redashtest.New(t)
	srv.APIKey = "other"

	_, err := newClient(t, srv).Queries(context.Background())
	assert.True(t, errors.IsAPIKeyError(err))
}
