package reconcile

import (
	"context"
	"sync/atomic"

	"github.com/agentstation/redpush/pkg/projector"
	"github.com/agentstation/redpush/pkg/resources"
)

// dryRunRemote passes reads through and turns writes into no-ops. Created
// resources get negative ids so they can never collide with real ones.
type dryRunRemote struct {
	Remote
	next atomic.Int64
}

func newDryRunRemote(r Remote) *dryRunRemote {
	return &dryRunRemote{Remote: r}
}

func (d *dryRunRemote) synthetic(id int) int {
	if id != 0 {
		return id
	}
	return int(-d.next.Add(1))
}

func (d *dryRunRemote) SaveQuery(_ context.Context, id int, _ projector.Record) (int, error) {
	return d.synthetic(id), nil
}

func (d *dryRunRemote) ArchiveQuery(context.Context, int) error {
	return nil
}

func (d *dryRunRemote) SaveVisualization(_ context.Context, id int, _ projector.Record) (int, error) {
	return d.synthetic(id), nil
}

func (d *dryRunRemote) CreateDashboard(_ context.Context, name string) (resources.Dashboard, error) {
	return resources.Dashboard{ID: d.synthetic(0), Name: name}, nil
}

func (d *dryRunRemote) SaveWidget(_ context.Context, id int, _ projector.Record) (int, error) {
	return d.synthetic(id), nil
}
