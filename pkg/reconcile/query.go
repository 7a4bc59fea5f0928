package reconcile

import (
	"context"
	"strings"

	"github.com/agentstation/redpush/pkg/errors"
	"github.com/agentstation/redpush/pkg/logging"
	"github.com/agentstation/redpush/pkg/projector"
	"github.com/agentstation/redpush/pkg/resources"
	"github.com/agentstation/redpush/pkg/tracking"
)

// QueryReconciler creates or updates declared queries, then hands each
// declared visualization to the VisualizationReconciler.
type QueryReconciler struct {
	run            *run
	snapshot       *tracking.Index[resources.Query]
	visualizations *VisualizationReconciler
}

// Reconcile processes declared in order, threading the dashboard list
// through every visualization. A failure on one query is recorded and the
// next query is processed; only ctx ending stops the loop.
func (qr *QueryReconciler) Reconcile(ctx context.Context, declared []resources.Query, list *DashboardList) (*DashboardList, error) {
	for _, q := range declared {
		if err := ctx.Err(); err != nil {
			return list, err
		}
		list = qr.reconcileOne(ctx, q, list)
	}
	return list, nil
}

func (qr *QueryReconciler) reconcileOne(ctx context.Context, q resources.Query, list *DashboardList) *DashboardList {
	if q.TrackingID.IsZero() {
		logging.FromContext(ctx).Warn().Str("name", q.Name).Msg("Query without tracking id, ignored")
		qr.run.anomaly(ctx, Anomaly{
			Type:    AnomalyMissingTrackingID,
			Kind:    KindQuery,
			Name:    q.Name,
			Message: "query has no tracking id and was not synced",
		})
		qr.run.record(ctx, Event{Kind: KindQuery, Action: ActionSkip, Name: q.Name})
		return list
	}

	ctx = logging.WithResource(ctx, string(KindQuery), q.TrackingID.String())
	log := logging.FromContext(ctx)

	old, found := qr.snapshot.Lookup(q.TrackingID)
	var oldID int
	var remoteOptions resources.Options
	action := ActionCreate
	if found {
		oldID, remoteOptions, action = old.ID, old.Options, ActionUpdate
	}

	id, err := qr.run.remote.SaveQuery(ctx, oldID, projector.QueryPayload(q, remoteOptions))
	if err != nil {
		log.Error().Err(err).Str("name", q.Name).Int("query_id", oldID).Msg("Failed to save query")
		qr.run.record(ctx, Event{
			Kind:       KindQuery,
			Action:     ActionFail,
			TrackingID: q.TrackingID,
			RemoteID:   oldID,
			Name:       q.Name,
			Err:        errors.NewSyncError(string(KindQuery), q.TrackingID.String(), err),
		})
		return list
	}

	log.Info().Str("name", q.Name).Int("query_id", id).Str("action", string(action)).
		Msg(qr.run.message(action, KindQuery))
	qr.run.record(ctx, Event{
		Kind:       KindQuery,
		Action:     action,
		TrackingID: q.TrackingID,
		RemoteID:   id,
		Name:       q.Name,
	})

	var oldQuery *resources.Query
	if found {
		oldQuery = &old
	}
	for _, v := range q.Visualizations {
		list, err = qr.visualizations.Reconcile(ctx, v, id, oldQuery, list)
		if err != nil {
			log.Error().Err(err).Msg("Stopped syncing the rest of this query")
			return list
		}
	}
	return list
}

// message is the log line for a successful action.
func (r *run) message(action Action, kind Kind) string {
	var verb string
	switch action {
	case ActionCreate:
		verb = "Created"
	case ActionUpdate:
		verb = "Updated"
	case ActionArchive:
		verb = "Archived"
	default:
		verb = string(action)
	}
	if r.dryRun {
		return "Would have " + strings.ToLower(verb) + " " + string(kind)
	}
	return verb + " " + string(kind)
}
