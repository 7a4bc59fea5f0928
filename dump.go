package redpush

import (
	"context"

	"github.com/agentstation/redpush/pkg/logging"
	"github.com/agentstation/redpush/pkg/resources"
)

// Dump lists every remote query in declared form. Server ids are kept.
// When some queries could not be fetched in full, every query is still
// returned, those without visualizations, together with the fetch errors.
func (c *client) Dump(ctx context.Context, visualizations bool) ([]resources.Query, error) {
	queries, err := c.remote.Queries(ctx)
	if err != nil {
		return nil, err
	}
	var fetchErr error
	if visualizations {
		full, err := c.remote.FullQueries(ctx, queries)
		if full == nil {
			return nil, err
		}
		queries, fetchErr = full, err
	}

	untracked := 0
	for _, q := range queries {
		if q.TrackingID.IsZero() {
			untracked++
		}
	}
	logging.FromContext(ctx).Info().
		Int("queries", len(queries)).
		Int("untracked", untracked).
		Bool("visualizations", visualizations).
		Msg("Dumped queries")
	return queries, fetchErr
}
