package reconcile

import (
	"context"

	"github.com/agentstation/redpush/pkg/projector"
	"github.com/agentstation/redpush/pkg/resources"
)

// Remote is the dashboard server as the engine sees it. Save methods
// create when id is zero and update resource id otherwise; they return
// the remote id of the saved resource.
type Remote interface {
	SaveQuery(ctx context.Context, id int, payload projector.Record) (int, error)
	ArchiveQuery(ctx context.Context, id int) error
	SaveVisualization(ctx context.Context, id int, payload projector.Record) (int, error)
	Dashboards(ctx context.Context) ([]resources.Dashboard, error)
	CreateDashboard(ctx context.Context, name string) (resources.Dashboard, error)
	SaveWidget(ctx context.Context, id int, payload projector.Record) (int, error)
}
