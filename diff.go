package redpush

import (
	"context"

	"github.com/agentstation/redpush/pkg/differ"
	"github.com/agentstation/redpush/pkg/resources"
)

// Diff is the difference between the remote and declared queries.
type Diff struct {
	Changeset *differ.Changeset `json:"changeset" yaml:"changeset"`
	Unified   string            `json:"unified,omitempty" yaml:"unified,omitempty"`
	Stats     differ.Stats      `json:"stats" yaml:"stats"`
}

// HasChanges returns true if a push followed by a prune would change anything.
func (d *Diff) HasChanges() bool {
	return d.Changeset.HasChanges() || d.Unified != ""
}

// Diff compares declared against every remote query. Dashboard placements
// are not stored by the server, so they are left out of the comparison.
func (c *client) Diff(ctx context.Context, declared []resources.Query) (*Diff, error) {
	remote, err := c.Dump(ctx, true)
	if err != nil {
		return nil, err
	}
	return Compare(remote, declared, "remote", "declared", differ.WithIgnoredFields("dashboardPlacements"))
}

// Compare diffs two query sets, for example two declared files.
func Compare(existing, declared []resources.Query, fromName, toName string, opts ...differ.Option) (*Diff, error) {
	d := differ.New(opts...)

	unified, err := d.Unified(existing, declared, fromName, toName)
	if err != nil {
		return nil, err
	}
	stats, err := differ.Stat(unified)
	if err != nil {
		return nil, err
	}
	return &Diff{
		Changeset: d.Queries(existing, declared),
		Unified:   unified,
		Stats:     stats,
	}, nil
}
