package reconcile

import (
	"context"
	"strconv"

	"github.com/agentstation/redpush/pkg/errors"
	"github.com/agentstation/redpush/pkg/layout"
	"github.com/agentstation/redpush/pkg/logging"
	"github.com/agentstation/redpush/pkg/projector"
	"github.com/agentstation/redpush/pkg/resources"
	"github.com/agentstation/redpush/pkg/tracking"
)

// VisualizationReconciler creates or updates one visualization and places
// it on its declared dashboards.
type VisualizationReconciler struct {
	run *run
}

// Reconcile saves v under query queryID, matching it against the
// visualizations of oldQuery (nil when the query was just created), then
// reconciles its dashboard placements.
//
// The returned list replaces list: creating a dashboard refetches the
// dashboards and creating a widget records it, and later placements must
// see both. An error means a remote call failed and the rest of the
// query's steps should be abandoned.
func (vr *VisualizationReconciler) Reconcile(ctx context.Context, v resources.Visualization, queryID int, oldQuery *resources.Query, list *DashboardList) (*DashboardList, error) {
	if v.TrackingID.IsZero() {
		logging.FromContext(ctx).Warn().Int("query_id", queryID).Str("name", v.Name).
			Msg("Visualization without tracking id, ignored")
		vr.run.anomaly(ctx, Anomaly{
			Type:    AnomalyMissingTrackingID,
			Kind:    KindVisualization,
			Name:    v.Name,
			Message: "visualization has no tracking id and was not synced",
		})
		vr.run.record(ctx, Event{Kind: KindVisualization, Action: ActionSkip, Name: v.Name})
		return list, nil
	}

	ctx = logging.WithField(ctx, "visualization_tracking_id", v.TrackingID.String())
	log := logging.FromContext(ctx)

	var oldID int
	var remoteOptions resources.Options
	action := ActionCreate
	if oldQuery != nil {
		matches := tracking.FindAll(oldQuery.Visualizations, v.TrackingID)
		if len(matches) > 1 {
			log.Warn().Int("count", len(matches)).Msg("There are repeated visualizations, using the first")
			vr.run.anomaly(ctx, Anomaly{
				Type:       AnomalyDuplicateTrackingID,
				Kind:       KindVisualization,
				TrackingID: v.TrackingID,
				Message:    "tracking id carried by more than one remote visualization",
			})
		}
		if len(matches) > 0 {
			oldID, remoteOptions, action = matches[0].ID, matches[0].Options, ActionUpdate
		}
	}

	id, err := vr.run.remote.SaveVisualization(ctx, oldID, projector.VisualizationPayload(v, queryID, remoteOptions))
	if err != nil {
		log.Error().Err(err).Int("visualization_id", oldID).Msg("Failed to save visualization")
		vr.fail(ctx, KindVisualization, v.TrackingID, v.Name, oldID, err)
		return list, err
	}
	log.Info().Int("visualization_id", id).Int("query_id", queryID).Msg(vr.run.message(action, KindVisualization))
	vr.run.record(ctx, Event{
		Kind:       KindVisualization,
		Action:     action,
		TrackingID: v.TrackingID,
		RemoteID:   id,
		Name:       v.Name,
	})

	for _, p := range v.Placements {
		list, err = vr.place(ctx, v, id, p, list)
		if err != nil {
			return list, err
		}
	}
	return list, nil
}

// place puts visualization id on the dashboard named by p, or moves the
// widget already showing it there.
func (vr *VisualizationReconciler) place(ctx context.Context, v resources.Visualization, id int, p resources.Placement, list *DashboardList) (*DashboardList, error) {
	log := logging.FromContext(logging.WithDashboard(ctx, p.Name))

	if p.Name == "" {
		log.Warn().Msg("Dashboard placement without a name, ignored")
		vr.run.anomaly(ctx, Anomaly{
			Type:       AnomalyUnnamedPlacement,
			Kind:       KindWidget,
			TrackingID: v.TrackingID,
			Message:    "dashboard placement has no dashboard name",
		})
		vr.run.record(ctx, Event{Kind: KindWidget, Action: ActionSkip, TrackingID: v.TrackingID})
		return list, nil
	}
	if _, known := layout.SpecFor(p.Size); !known {
		log.Warn().Str("size", string(p.Size)).Msg("Unknown widget size, using medium")
		vr.run.anomaly(ctx, Anomaly{
			Type:       AnomalyUnknownSize,
			Kind:       KindWidget,
			TrackingID: v.TrackingID,
			Name:       p.Name,
			Message:    "unknown size " + strconv.Quote(string(p.Size)),
		})
	}

	res, err := vr.run.resolver.ResolveOrCreate(ctx, list, p.Name)
	if errors.Is(err, errPartialDashboard) {
		log.Error().Err(err).Msg("Dashboard widgets unknown, placement skipped")
		vr.fail(ctx, KindWidget, v.TrackingID, p.Name, 0, err)
		return res.List, nil
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to resolve dashboard")
		vr.fail(ctx, KindDashboard, "", p.Name, 0, err)
		return list, err
	}
	list = res.List
	dash := res.Dashboard

	if res.Duplicates > 0 {
		reported := vr.run.anomalyOnce(ctx, string(AnomalyDuplicateDashboard)+"/"+p.Name, Anomaly{
			Type:    AnomalyDuplicateDashboard,
			Kind:    KindDashboard,
			Name:    p.Name,
			Message: "more than one remote dashboard has this name",
		})
		if reported {
			log.Error().Int("dashboard_id", dash.ID).Int("duplicates", res.Duplicates).
				Msg("More than one dashboard with the same name, using the first")
		}
	}
	if res.Created {
		log.Info().Int("dashboard_id", dash.ID).Msg(vr.run.message(ActionCreate, KindDashboard))
		vr.run.record(ctx, Event{Kind: KindDashboard, Action: ActionCreate, RemoteID: dash.ID, Name: p.Name})
		if dash.IsDraft {
			vr.run.anomaly(ctx, Anomaly{
				Type:    AnomalyDraftDashboard,
				Kind:    KindDashboard,
				Name:    p.Name,
				Message: "dashboard is still a draft after publishing",
			})
		}
	}

	pos := layout.ForPlacement(p)
	widget, exists := dash.WidgetFor(id)

	var payload projector.Record
	action := ActionCreate
	if exists {
		payload, action = projector.WidgetUpdatePayload(dash.ID, pos), ActionUpdate
	} else {
		payload = projector.WidgetCreatePayload(dash.ID, id, pos)
	}

	wid, err := vr.run.remote.SaveWidget(ctx, widget.ID, payload)
	if err != nil {
		log.Error().Err(err).Int("dashboard_id", dash.ID).Int("widget_id", widget.ID).Msg("Failed to save widget")
		vr.fail(ctx, KindWidget, v.TrackingID, p.Name, widget.ID, err)
		return list, err
	}

	widget.ID = wid
	widget.DashboardID = dash.ID
	widget.VisualizationID = id
	widget.Position = pos
	list = list.withWidget(dash.ID, widget)

	log.Info().Int("dashboard_id", dash.ID).Int("widget_id", wid).
		Int("row", pos.Row).Int("col", pos.Col).Int("size_x", pos.SizeX).Int("size_y", pos.SizeY).
		Msg(vr.run.message(action, KindWidget))
	vr.run.record(ctx, Event{
		Kind:       KindWidget,
		Action:     action,
		TrackingID: v.TrackingID,
		RemoteID:   wid,
		Name:       p.Name,
	})
	return list, nil
}

func (vr *VisualizationReconciler) fail(ctx context.Context, kind Kind, id resources.TrackingID, name string, remoteID int, err error) {
	label := id.String()
	if label == "" {
		label = name
	}
	vr.run.record(ctx, Event{
		Kind:       kind,
		Action:     ActionFail,
		TrackingID: id,
		RemoteID:   remoteID,
		Name:       name,
		Err:        errors.NewSyncError(string(kind), label, err),
	})
}
