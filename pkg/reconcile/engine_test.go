package reconcile_test

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/redpush/internal/redash"
	"github.com/agentstation/redpush/internal/redash/redashtest"
	"github.com/agentstation/redpush/internal/transport"
	"github.com/agentstation/redpush/internal/utils/ptr"
	"github.com/agentstation/redpush/pkg/errors"
	"github.com/agentstation/redpush/pkg/logging"
	"github.com/agentstation/redpush/pkg/reconcile"
	"github.com/agentstation/redpush/pkg/resources"
)

type harness struct {
	srv    *redashtest.Server
	client *redash.Client
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	srv := redashtest.New(t)
	tc, err := transport.New(srv.URL, "secret")
	require.NoError(t, err)
	return &harness{srv: srv, client: redash.New(tc)}
}

// snapshot fetches the remote queries with their visualizations.
func (h *harness) snapshot(t *testing.T) []resources.Query {
	t.Helper()
	ctx := context.Background()
	qs, err := h.client.Queries(ctx)
	require.NoError(t, err)
	full, err := h.client.FullQueries(ctx, qs)
	require.NoError(t, err)
	return full
}

func (h *harness) push(t *testing.T, declared []resources.Query, opts ...reconcile.Option) *reconcile.Result {
	t.Helper()
	engine, err := reconcile.New(h.client, opts...)
	require.NoError(t, err)
	res, err := engine.Reconcile(context.Background(), h.snapshot(t), declared)
	require.NoError(t, err)
	return res
}

// posts returns the POST calls whose path is exactly path.
func (h *harness) posts(path string) []redashtest.Call {
	var out []redashtest.Call
	for _, c := range h.srv.Calls() {
		if c.Method == http.MethodPost && c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

func placed(tid, name string, placements ...resources.Placement) resources.Visualization {
	return resources.Visualization{
		TrackingID: resources.TrackingID(tid),
		Type:       "CHART",
		Name:       name,
		Options:    resources.Options{"globalSeriesType": "line"},
		Placements: placements,
	}
}

func TestReconcileCreatesQuery(t *testing.T) {
	h := newHarness(t)
	declared := []resources.Query{{TrackingID: "q1", Name: "Sales", Query: "select 1"}}

	res := h.push(t, declared)

	creates := h.posts("/api/queries")
	require.Len(t, creates, 1)
	body := creates[0].Body
	assert.Equal(t, "Sales", body["name"])
	assert.Equal(t, false, body["is_draft"])
	assert.Equal(t, false, body["is_archived"])
	assert.Equal(t, "q1", body["options"].(map[string]any)["redpush_id"])
	assert.NotContains(t, body, "id")

	assert.Equal(t, 1, res.Count(reconcile.KindQuery, reconcile.ActionCreate))
	id := res.IDs["q1"]
	require.NotZero(t, id)
	stored, ok := h.srv.Query(id)
	require.True(t, ok)
	assert.Equal(t, "select 1", stored["query"])
}

func TestReconcileUpdatesMatchedQuery(t *testing.T) {
	h := newHarness(t)
	id := h.srv.SeedQuery(redashtest.Record{
		"name":    "Old",
		"query":   "select 0",
		"options": redashtest.Record{"redpush_id": "q1", "refresh_interval": 60.0, "parameters": []any{}},
	})
	declared := []resources.Query{{
		TrackingID: "q1",
		Name:       "Sales",
		Query:      "select 1",
		Options:    resources.Options{"parameters": []any{"region"}},
	}}

	res := h.push(t, declared)

	assert.Empty(t, h.posts("/api/queries"), "no create")
	updates := h.posts("/api/queries/" + strconv.Itoa(id))
	require.Len(t, updates, 1)
	opts := updates[0].Body["options"].(map[string]any)
	assert.Equal(t, "q1", opts["redpush_id"])
	assert.Equal(t, 60.0, opts["refresh_interval"], "remote-only keys survive")
	assert.Equal(t, []any{"region"}, opts["parameters"], "declared keys win")
	assert.Equal(t, 1, res.Count(reconcile.KindQuery, reconcile.ActionUpdate))
	assert.Equal(t, id, res.IDs["q1"])
}

func TestReconcileReusesDashboardByName(t *testing.T) {
	h := newHarness(t)
	exec := resources.Placement{Name: "Exec Overview"}
	declared := []resources.Query{
		{TrackingID: "q1", Name: "Sales", Query: "select 1", Visualizations: []resources.Visualization{placed("v1", "Revenue", exec)}},
		{TrackingID: "q2", Name: "Costs", Query: "select 2", Visualizations: []resources.Visualization{placed("v2", "Spend", exec)}},
	}

	res := h.push(t, declared)

	assert.Len(t, h.posts("/api/dashboards"), 1, "one dashboard create")
	dashes := h.srv.DashboardsNamed("Exec Overview")
	require.Len(t, dashes, 1)
	dashID := dashes[0]["id"].(int)
	assert.Len(t, h.srv.Widgets(dashID), 2)
	assert.Equal(t, false, dashes[0]["is_draft"], "published after create")

	assert.Equal(t, 1, res.Count(reconcile.KindDashboard, reconcile.ActionCreate))
	assert.Equal(t, 2, res.Count(reconcile.KindWidget, reconcile.ActionCreate))
	assert.Equal(t, 2, res.Count(reconcile.KindVisualization, reconcile.ActionCreate))
}

func TestReconcileIsIdempotent(t *testing.T) {
	h := newHarness(t)
	declared := []resources.Query{{
		TrackingID: "q1",
		Name:       "Sales",
		Query:      "select 1",
		Visualizations: []resources.Visualization{
			placed("v1", "Revenue", resources.Placement{Name: "Exec Overview", Size: resources.SizeLarge}),
		},
	}}

	first := h.push(t, declared)
	require.True(t, first.IsSuccess())
	h.srv.ResetCalls()

	second := h.push(t, declared)
	require.True(t, second.IsSuccess())

	for _, kind := range reconcile.Kinds() {
		assert.Zero(t, second.Count(kind, reconcile.ActionCreate), "no %s created on the second run", kind)
	}
	assert.Equal(t, 1, second.Count(reconcile.KindQuery, reconcile.ActionUpdate))
	assert.Equal(t, 1, second.Count(reconcile.KindVisualization, reconcile.ActionUpdate))
	assert.Equal(t, 1, second.Count(reconcile.KindWidget, reconcile.ActionUpdate))

	assert.Len(t, h.srv.QueryIDs(), 1)
	dashes := h.srv.DashboardsNamed("Exec Overview")
	require.Len(t, dashes, 1)
	assert.Len(t, h.srv.Widgets(dashes[0]["id"].(int)), 1)
	assert.Empty(t, h.posts("/api/dashboards"))
	assert.Empty(t, h.posts("/api/widgets"))
}

func TestReconcileSkipsQueryWithoutTrackingID(t *testing.T) {
	h := newHarness(t)
	logger := logging.NewTestLogger(t)
	engine, err := reconcile.New(h.client)
	require.NoError(t, err)

	ctx := logging.WithLogger(context.Background(), logger.Logger)
	res, err := engine.Reconcile(ctx, nil, []resources.Query{{Name: "Adhoc", Query: "select 1"}})
	require.NoError(t, err)

	assert.Empty(t, h.posts("/api/queries"))
	assert.Equal(t, 1, res.Count(reconcile.KindQuery, reconcile.ActionSkip))
	require.Len(t, res.Anomalies, 1)
	assert.Equal(t, reconcile.AnomalyMissingTrackingID, res.Anomalies[0].Type)
	assert.ErrorIs(t, res.Anomalies[0].Err, errors.ErrMissingTrackingID)
	assert.True(t, logger.Contains("Query without tracking id, ignored"))
}

func TestReconcileSkipsVisualizationWithoutTrackingID(t *testing.T) {
	h := newHarness(t)
	declared := []resources.Query{{
		TrackingID:     "q1",
		Name:           "Sales",
		Query:          "select 1",
		Visualizations: []resources.Visualization{{Type: "TABLE", Name: "Raw"}},
	}}

	res := h.push(t, declared)

	assert.Empty(t, h.posts("/api/visualizations"))
	assert.Equal(t, 1, res.Count(reconcile.KindVisualization, reconcile.ActionSkip))
	assert.Equal(t, 1, res.Count(reconcile.KindQuery, reconcile.ActionCreate))
}

func TestReconcileContinuesAfterFailure(t *testing.T) {
	h := newHarness(t)
	h.srv.FailQueryNames["Broken"] = true
	declared := []resources.Query{
		{TrackingID: "q1", Name: "Broken", Query: "select 1"},
		{TrackingID: "q2", Name: "Fine", Query: "select 2"},
	}

	res := h.push(t, declared)

	assert.False(t, res.IsSuccess())
	require.Len(t, res.Errors, 1)
	var syncErr *errors.SyncError
	require.True(t, errors.As(res.Errors[0], &syncErr))
	assert.Equal(t, "q1", syncErr.TrackingID)
	assert.True(t, errors.IsServerUnavailable(res.Errors[0]))

	assert.Equal(t, 1, res.Count(reconcile.KindQuery, reconcile.ActionFail))
	assert.Equal(t, 1, res.Count(reconcile.KindQuery, reconcile.ActionCreate))
	assert.NotZero(t, res.IDs["q2"])
}

func TestReconcilePlacesWidgets(t *testing.T) {
	h := newHarness(t)
	declared := []resources.Query{{
		TrackingID: "q1",
		Name:       "Sales",
		Query:      "select 1",
		Visualizations: []resources.Visualization{
			placed("v1", "Revenue", resources.Placement{Name: "Ops", Size: resources.SizeSmall, Row: ptr.To(2), Col: ptr.To(1)}),
		},
	}}

	h.push(t, declared)

	creates := h.posts("/api/widgets")
	require.Len(t, creates, 1)
	body := creates[0].Body
	assert.Equal(t, 1.0, body["width"])
	pos := body["options"].(map[string]any)["position"].(map[string]any)
	assert.Equal(t, 2.0, pos["row"])
	assert.Equal(t, 2.0, pos["col"])
	assert.Equal(t, 2.0, pos["sizeX"])
	assert.Equal(t, 5.0, pos["sizeY"])
	assert.Equal(t, false, pos["autoHeight"])
}

func TestReconcileReportsPlacementAnomalies(t *testing.T) {
	h := newHarness(t)
	declared := []resources.Query{{
		TrackingID: "q1",
		Name:       "Sales",
		Query:      "select 1",
		Visualizations: []resources.Visualization{
			placed("v1", "Revenue",
				resources.Placement{Name: ""},
				resources.Placement{Name: "Ops", Size: "huge"},
			),
		},
	}}

	res := h.push(t, declared)

	var types []reconcile.AnomalyType
	for _, a := range res.Anomalies {
		types = append(types, a.Type)
	}
	assert.ElementsMatch(t, []reconcile.AnomalyType{reconcile.AnomalyUnnamedPlacement, reconcile.AnomalyUnknownSize}, types)

	creates := h.posts("/api/widgets")
	require.Len(t, creates, 1, "unknown size still placed")
	pos := creates[0].Body["options"].(map[string]any)["position"].(map[string]any)
	assert.Equal(t, 3.0, pos["sizeX"])
	assert.Equal(t, 9.0, pos["sizeY"])
}

func TestReconcileReportsDuplicateDashboards(t *testing.T) {
	h := newHarness(t)
	first := h.srv.SeedDashboard("Ops")
	h.srv.SeedDashboard("Ops")
	declared := []resources.Query{{
		TrackingID:     "q1",
		Name:           "Sales",
		Query:          "select 1",
		Visualizations: []resources.Visualization{placed("v1", "Revenue", resources.Placement{Name: "Ops"})},
	}}

	res := h.push(t, declared)

	require.Len(t, res.Anomalies, 1)
	assert.Equal(t, reconcile.AnomalyDuplicateDashboard, res.Anomalies[0].Type)
	assert.ErrorIs(t, res.Anomalies[0].Err, errors.ErrDuplicateDashboard)
	assert.Len(t, h.srv.Widgets(first), 1, "first dashboard wins")
	assert.Empty(t, h.posts("/api/dashboards"))
}

func TestReconcileReportsDuplicateDashboardOncePerName(t *testing.T) {
	h := newHarness(t)
	h.srv.SeedDashboard("Ops")
	h.srv.SeedDashboard("Ops")
	ops := resources.Placement{Name: "Ops"}
	declared := []resources.Query{
		{
			TrackingID: "q1",
			Name:       "Sales",
			Query:      "select 1",
			Visualizations: []resources.Visualization{
				placed("v1", "Revenue", ops),
				placed("v2", "Orders", ops),
			},
		},
		{
			TrackingID:     "q2",
			Name:           "Costs",
			Query:          "select 2",
			Visualizations: []resources.Visualization{placed("v3", "Spend", ops)},
		},
	}

	res := h.push(t, declared)

	require.Len(t, res.Anomalies, 1)
	assert.Equal(t, reconcile.AnomalyDuplicateDashboard, res.Anomalies[0].Type)
	assert.Equal(t, 3, res.Count(reconcile.KindWidget, reconcile.ActionCreate))
}

func TestReconcileSkipsPlacementOnUnreadableDashboard(t *testing.T) {
	h := newHarness(t)
	h.srv.SeedDashboard("Broken")
	ops := h.srv.SeedDashboard("Ops")
	h.srv.FailDashboardFetches["Broken"] = true
	declared := []resources.Query{
		{
			TrackingID:     "q1",
			Name:           "Sales",
			Query:          "select 1",
			Visualizations: []resources.Visualization{placed("v1", "Revenue", resources.Placement{Name: "Broken"}, resources.Placement{Name: "Ops"})},
		},
		{
			TrackingID:     "q2",
			Name:           "Costs",
			Query:          "select 2",
			Visualizations: []resources.Visualization{placed("v2", "Spend", resources.Placement{Name: "Ops"})},
		},
	}

	res := h.push(t, declared)

	require.Len(t, res.Errors, 1)
	var syncErr *errors.SyncError
	assert.ErrorAs(t, res.Errors[0], &syncErr)
	assert.Equal(t, 1, res.Count(reconcile.KindWidget, reconcile.ActionFail))
	assert.Equal(t, 2, res.Count(reconcile.KindWidget, reconcile.ActionCreate))
	assert.Len(t, h.srv.Widgets(ops), 2)
	assert.Len(t, h.srv.DashboardsNamed("Broken"), 1, "no replacement dashboard is created")
}

func TestReconcileReportsDraftDashboard(t *testing.T) {
	h := newHarness(t)
	h.srv.RejectPublish = true
	declared := []resources.Query{{
		TrackingID:     "q1",
		Name:           "Sales",
		Query:          "select 1",
		Visualizations: []resources.Visualization{placed("v1", "Revenue", resources.Placement{Name: "Ops"})},
	}}

	res := h.push(t, declared)

	require.Len(t, res.Anomalies, 1)
	assert.Equal(t, reconcile.AnomalyDraftDashboard, res.Anomalies[0].Type)
	assert.True(t, errors.IsRejected(res.Anomalies[0].Err))
	assert.Equal(t, 1, res.Count(reconcile.KindWidget, reconcile.ActionCreate))
}

func TestReconcileReportsDuplicateRemoteTrackingIDs(t *testing.T) {
	h := newHarness(t)
	first := h.srv.SeedQuery(redashtest.Record{"name": "A", "options": redashtest.Record{"redpush_id": "q1"}})
	h.srv.SeedQuery(redashtest.Record{"name": "B", "options": redashtest.Record{"redpush_id": "q1"}})

	res := h.push(t, []resources.Query{{TrackingID: "q1", Name: "Sales", Query: "select 1"}})

	require.Len(t, res.Anomalies, 1)
	assert.Equal(t, reconcile.AnomalyDuplicateTrackingID, res.Anomalies[0].Type)
	assert.ErrorIs(t, res.Anomalies[0].Err, errors.ErrDuplicateTrackingID)
	assert.Len(t, h.posts("/api/queries/"+strconv.Itoa(first)), 1, "first match is updated")
}

func TestReconcileDryRunWritesNothing(t *testing.T) {
	h := newHarness(t)
	h.srv.SeedQuery(redashtest.Record{"name": "Old", "options": redashtest.Record{"redpush_id": "q1"}})
	declared := []resources.Query{
		{TrackingID: "q1", Name: "Sales", Query: "select 1"},
		{
			TrackingID:     "q2",
			Name:           "Costs",
			Query:          "select 2",
			Visualizations: []resources.Visualization{placed("v2", "Spend", resources.Placement{Name: "New Board"})},
		},
	}

	res := h.push(t, declared, reconcile.WithDryRun(true))

	for _, c := range h.srv.Calls() {
		assert.Equal(t, http.MethodGet, c.Method, "%s %s", c.Method, c.Path)
	}
	assert.True(t, res.Metadata.DryRun)
	assert.Equal(t, 1, res.Count(reconcile.KindQuery, reconcile.ActionUpdate))
	assert.Equal(t, 1, res.Count(reconcile.KindQuery, reconcile.ActionCreate))
	assert.Equal(t, 1, res.Count(reconcile.KindDashboard, reconcile.ActionCreate))
	assert.Equal(t, 1, res.Count(reconcile.KindWidget, reconcile.ActionCreate))
	assert.Negative(t, res.IDs["q2"])
	assert.Empty(t, h.srv.DashboardsNamed("New Board"))
}

func TestReconcileDryRunKeepsPlannedWidgetsAcrossRefetch(t *testing.T) {
	h := newHarness(t)
	h.srv.SeedDashboard("Ops")
	declared := []resources.Query{{
		TrackingID: "q1",
		Name:       "Sales",
		Query:      "select 1",
		Visualizations: []resources.Visualization{placed("v1", "Revenue",
			resources.Placement{Name: "Ops", Row: ptr.To(0)},
			resources.Placement{Name: "New Board"},
			resources.Placement{Name: "Ops", Row: ptr.To(4)},
		)},
	}}

	res := h.push(t, declared, reconcile.WithDryRun(true))

	assert.Equal(t, 1, res.Count(reconcile.KindDashboard, reconcile.ActionCreate))
	assert.Equal(t, 2, res.Count(reconcile.KindWidget, reconcile.ActionCreate), "one widget planned per dashboard")
	assert.Equal(t, 1, res.Count(reconcile.KindWidget, reconcile.ActionUpdate))
	assert.Zero(t, h.srv.CountCalls(http.MethodPost, "/api/"))
}

func TestReconcileParallelCreatesEachDashboardOnce(t *testing.T) {
	h := newHarness(t)
	var declared []resources.Query
	for i, board := range []string{"A", "B", "A", "C", "B", "A", "D", "E"} {
		tid := "q" + strconv.Itoa(i)
		declared = append(declared, resources.Query{
			TrackingID:     resources.TrackingID(tid),
			Name:           tid,
			Query:          "select 1",
			Visualizations: []resources.Visualization{placed("v"+strconv.Itoa(i), tid, resources.Placement{Name: board})},
		})
	}

	res := h.push(t, declared, reconcile.WithParallelism(4))

	require.True(t, res.IsSuccess())
	for board, widgets := range map[string]int{"A": 3, "B": 2, "C": 1, "D": 1, "E": 1} {
		dashes := h.srv.DashboardsNamed(board)
		require.Len(t, dashes, 1, board)
		assert.Len(t, h.srv.Widgets(dashes[0]["id"].(int)), widgets, board)
	}
	assert.Equal(t, 8, res.Count(reconcile.KindQuery, reconcile.ActionCreate))
	assert.Equal(t, 5, res.Count(reconcile.KindDashboard, reconcile.ActionCreate))
}

func TestReconcileNotifiesObservers(t *testing.T) {
	h := newHarness(t)
	var (
		mu     sync.Mutex
		events []reconcile.Event
	)
	observer := reconcile.ObserverFunc(func(_ context.Context, ev reconcile.Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	})

	h.push(t, []resources.Query{{TrackingID: "q1", Name: "Sales", Query: "select 1"}},
		reconcile.WithObservers(observer), reconcile.WithRunID("run-1"))

	require.Len(t, events, 1)
	assert.Equal(t, "run-1", events[0].RunID)
	assert.Equal(t, reconcile.KindQuery, events[0].Kind)
	assert.Equal(t, reconcile.ActionCreate, events[0].Action)
	assert.Equal(t, resources.TrackingID("q1"), events[0].TrackingID)
	assert.False(t, events[0].Time.IsZero())
}

func TestReconcileStopsOnCanceledContext(t *testing.T) {
	h := newHarness(t)
	engine, err := reconcile.New(h.client)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = engine.Reconcile(ctx, nil, []resources.Query{{TrackingID: "q1", Name: "Sales"}})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, h.srv.Calls())
}

func TestArchiveUnlisted(t *testing.T) {
	h := newHarness(t)
	kept := h.srv.SeedQuery(redashtest.Record{"name": "Kept", "options": redashtest.Record{"redpush_id": "q1"}})
	gone := h.srv.SeedQuery(redashtest.Record{"name": "Gone", "options": redashtest.Record{"redpush_id": "q2"}})
	untracked := h.srv.SeedQuery(redashtest.Record{"name": "Untracked"})

	engine, err := reconcile.New(h.client)
	require.NoError(t, err)
	res, err := engine.ArchiveUnlisted(context.Background(), h.snapshot(t),
		[]resources.Query{{TrackingID: "q1", Name: "Kept"}})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Count(reconcile.KindQuery, reconcile.ActionArchive))
	assert.Equal(t, 2, h.srv.CountCalls(http.MethodDelete, "/api/queries/"))
	for id, archived := range map[int]bool{kept: false, gone: true, untracked: true} {
		q, ok := h.srv.Query(id)
		require.True(t, ok)
		assert.Equal(t, archived, q["is_archived"], "query %d", id)
	}
	live, err := h.client.Queries(context.Background())
	require.NoError(t, err)
	require.Len(t, live, 1, "archived queries drop out of the listing")
	assert.Equal(t, kept, live[0].ID)
}

func TestArchiveUnlistedDryRun(t *testing.T) {
	h := newHarness(t)
	h.srv.SeedQuery(redashtest.Record{"name": "Gone", "options": redashtest.Record{"redpush_id": "q2"}})

	engine, err := reconcile.New(h.client, reconcile.WithDryRun(true))
	require.NoError(t, err)
	res, err := engine.ArchiveUnlisted(context.Background(), h.snapshot(t), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Count(reconcile.KindQuery, reconcile.ActionArchive))
	assert.Zero(t, h.srv.CountCalls(http.MethodDelete, "/api/queries/"))
}

func TestNewRejectsBadOptions(t *testing.T) {
	h := newHarness(t)
	for name, opt := range map[string]reconcile.Option{
		"zero parallelism": reconcile.WithParallelism(0),
		"huge parallelism": reconcile.WithParallelism(33),
		"empty run id":     reconcile.WithRunID(""),
		"nil observer":     reconcile.WithObservers(nil),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := reconcile.New(h.client, opt)
			assert.True(t, errors.IsValidationError(err))
		})
	}
}

func TestNewGeneratesRunID(t *testing.T) {
	h := newHarness(t)
	a, err := reconcile.New(h.client)
	require.NoError(t, err)
	b, err := reconcile.New(h.client)
	require.NoError(t, err)
	assert.NotEmpty(t, a.RunID())
	assert.NotEqual(t, a.RunID(), b.RunID())
}
