package reconcile

import (
	"context"

	"github.com/agentstation/redpush/pkg/errors"
	"github.com/agentstation/redpush/pkg/logging"
	"github.com/agentstation/redpush/pkg/resources"
	"github.com/agentstation/redpush/pkg/tracking"
)

// OrphanCollector archives remote queries that nothing declares.
type OrphanCollector struct {
	run *run
}

// ArchiveUnlisted archives every query in snapshot whose tracking id is
// missing or absent from declared. A failed archive is recorded and the
// remaining queries are still processed.
func (oc *OrphanCollector) ArchiveUnlisted(ctx context.Context, snapshot, declared []resources.Query) error {
	keep := tracking.NewIndex(declared)
	log := logging.FromContext(ctx)

	for _, q := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		reason := "not declared"
		if q.TrackingID.IsZero() {
			reason = "no tracking id"
		} else if keep.Has(q.TrackingID) {
			continue
		}

		qlog := log.With().Int("query_id", q.ID).Str("name", q.Name).
			Str("tracking_id", q.TrackingID.String()).Str("reason", reason).Logger()

		if err := oc.run.remote.ArchiveQuery(ctx, q.ID); err != nil {
			qlog.Error().Err(err).Msg("Failed to archive query")
			oc.run.record(ctx, Event{
				Kind:       KindQuery,
				Action:     ActionFail,
				TrackingID: q.TrackingID,
				RemoteID:   q.ID,
				Name:       q.Name,
				Err:        errors.NewSyncError(string(KindQuery), q.Label(), err),
			})
			continue
		}
		qlog.Info().Msg(oc.run.message(ActionArchive, KindQuery))
		oc.run.record(ctx, Event{
			Kind:       KindQuery,
			Action:     ActionArchive,
			TrackingID: q.TrackingID,
			RemoteID:   q.ID,
			Name:       q.Name,
			Message:    reason,
		})
	}
	return nil
}
