package reconcile

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/agentstation/redpush/pkg/errors"
	"github.com/agentstation/redpush/pkg/resources"
)

// errPartialDashboard marks a placement on a dashboard whose widgets could
// not be fetched.
var errPartialDashboard = errors.New("dashboard widgets could not be fetched")

// DashboardList is the run's view of the remote dashboards. It is never
// mutated: every change yields a new list, and holders of an older list
// keep a consistent, if stale, view. A nil list has not been fetched yet.
type DashboardList struct {
	dashboards []resources.Dashboard
}

// NewDashboardList copies ds into a list.
func NewDashboardList(ds []resources.Dashboard) *DashboardList {
	l := &DashboardList{dashboards: make([]resources.Dashboard, 0, len(ds))}
	for _, d := range ds {
		l.dashboards = append(l.dashboards, d.Clone())
	}
	return l
}

// Len returns the number of dashboards.
func (l *DashboardList) Len() int {
	if l == nil {
		return 0
	}
	return len(l.dashboards)
}

// Dashboards returns a copy of the dashboards in list order.
func (l *DashboardList) Dashboards() []resources.Dashboard {
	if l == nil {
		return nil
	}
	out := make([]resources.Dashboard, 0, len(l.dashboards))
	for _, d := range l.dashboards {
		out = append(out, d.Clone())
	}
	return out
}

// Named returns every dashboard whose name is exactly name.
func (l *DashboardList) Named(name string) []resources.Dashboard {
	if l == nil {
		return nil
	}
	var out []resources.Dashboard
	for _, d := range l.dashboards {
		if d.Name == name {
			out = append(out, d.Clone())
		}
	}
	return out
}

// withDashboard returns a list that also holds d.
func (l *DashboardList) withDashboard(d resources.Dashboard) *DashboardList {
	next := NewDashboardList(l.Dashboards())
	next.dashboards = append(next.dashboards, d.Clone())
	return next
}

// withWidget returns a list where dashboard dashboardID holds w, replacing
// any widget with the same id.
func (l *DashboardList) withWidget(dashboardID int, w resources.Widget) *DashboardList {
	next := NewDashboardList(l.Dashboards())
	for i := range next.dashboards {
		d := &next.dashboards[i]
		if d.ID != dashboardID {
			continue
		}
		replaced := false
		for j := range d.Widgets {
			if d.Widgets[j].ID == w.ID {
				d.Widgets[j] = w
				replaced = true
				break
			}
		}
		if !replaced {
			d.Widgets = append(d.Widgets, w)
		}
		break
	}
	return next
}

// withKnownWidgets returns a list where each dashboard also holds the
// widgets old recorded for it that the list does not carry yet.
func (l *DashboardList) withKnownWidgets(old *DashboardList) *DashboardList {
	next := NewDashboardList(l.Dashboards())
	if old == nil {
		return next
	}
	known := make(map[int][]resources.Widget, len(old.dashboards))
	for _, d := range old.dashboards {
		known[d.ID] = d.Widgets
	}
	for i := range next.dashboards {
		d := &next.dashboards[i]
		seen := make(map[int]bool, len(d.Widgets))
		for _, w := range d.Widgets {
			seen[w.ID] = true
		}
		for _, w := range known[d.ID] {
			if !seen[w.ID] {
				d.Widgets = append(d.Widgets, w)
			}
		}
	}
	return next
}

// Resolution is the outcome of resolving a dashboard name.
type Resolution struct {
	// Dashboard is the resolved dashboard.
	Dashboard resources.Dashboard
	// List is the list the caller must use from now on.
	List *DashboardList
	// Created is set for the one caller that created the dashboard.
	Created bool
	// Duplicates counts other dashboards sharing the name.
	Duplicates int
}

// DashboardResolver finds dashboards by exact name and creates missing
// ones. At most one create is issued per name per run, however many
// goroutines ask for it.
type DashboardResolver struct {
	remote Remote
	flight singleflight.Group

	mu      sync.Mutex
	created map[string]resources.Dashboard
}

// NewDashboardResolver creates a resolver over remote.
func NewDashboardResolver(remote Remote) *DashboardResolver {
	return &DashboardResolver{
		remote:  remote,
		created: make(map[string]resources.Dashboard),
	}
}

// Load fetches the remote dashboards. Dashboards this resolver created
// that the server does not list yet are kept.
func (r *DashboardResolver) Load(ctx context.Context) (*DashboardList, error) {
	ds, err := r.remote.Dashboards(ctx)
	if err != nil {
		return nil, err
	}
	list := NewDashboardList(ds)

	r.mu.Lock()
	defer r.mu.Unlock()
	for name, d := range r.created {
		if len(list.Named(name)) == 0 {
			list.dashboards = append(list.dashboards, d.Clone())
		}
	}
	return list, nil
}

// ResolveOrCreate returns the first dashboard in list named name, creating
// it when absent. After a create the list is refetched, and the returned
// Resolution.List replaces the caller's list. A nil list is fetched first.
func (r *DashboardResolver) ResolveOrCreate(ctx context.Context, list *DashboardList, name string) (Resolution, error) {
	if list == nil {
		var err error
		if list, err = r.Load(ctx); err != nil {
			return Resolution{}, err
		}
	}

	if matches := list.Named(name); len(matches) > 0 {
		return resolution(list, matches, false)
	}

	var mine bool
	_, err, _ := r.flight.Do(name, func() (any, error) {
		if d, ok := r.claimed(name); ok {
			return d, nil
		}
		d, err := r.remote.CreateDashboard(ctx, name)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.created[name] = d
		r.mu.Unlock()
		mine = true
		return d, nil
	})
	if err != nil {
		return Resolution{}, err
	}

	fresh, err := r.Load(ctx)
	if err != nil {
		return Resolution{}, err
	}
	fresh = fresh.withKnownWidgets(list)
	return resolution(fresh, fresh.Named(name), mine)
}

// resolution picks the first of matches. Its widgets must be known.
func resolution(list *DashboardList, matches []resources.Dashboard, created bool) (Resolution, error) {
	d := matches[0]
	if d.Partial {
		return Resolution{List: list}, errors.WrapResource("resolve", "dashboard", d.Name, errPartialDashboard)
	}
	return Resolution{
		Dashboard:  d,
		List:       list,
		Created:    created,
		Duplicates: len(matches) - 1,
	}, nil
}

// claimed returns the dashboard created under name earlier in the run.
func (r *DashboardResolver) claimed(name string) (resources.Dashboard, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.created[name]
	return d, ok
}
