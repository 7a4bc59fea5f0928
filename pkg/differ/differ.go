package differ

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/agentstation/redpush/pkg/resources"
	"github.com/agentstation/redpush/pkg/tracking"
)

// Differ handles change detection between query sets.
type Differ interface {
	// Queries compares existing queries with declared ones and returns
	// what a push followed by a prune would change.
	Queries(existing, declared []resources.Query) *Changeset

	// Unified renders a unified diff of the canonical forms of both sets.
	Unified(existing, declared []resources.Query, fromName, toName string) (string, error)
}

// differ is the default implementation of Differ.
type differ struct {
	ignoreFields  map[string]bool
	remoteOptions bool
}

// New creates a Differ with default settings.
func New(opts ...Option) Differ {
	d := &differ{
		ignoreFields: make(map[string]bool),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Queries compares two sets of queries and returns changes.
func (d *differ) Queries(existing, declared []resources.Query) *Changeset {
	changeset := &Changeset{
		Added:   []resources.Query{},
		Updated: []QueryUpdate{},
		Removed: []resources.Query{},
	}

	existingIndex := tracking.NewIndex(existing)
	declaredIndex := tracking.NewIndex(declared)
	seen := make(map[resources.TrackingID]bool)

	for _, q := range declared {
		if q.TrackingID.IsZero() {
			changeset.Untracked++
			continue
		}
		if seen[q.TrackingID] {
			continue
		}
		seen[q.TrackingID] = true

		old, exists := existingIndex.Lookup(q.TrackingID)
		if !exists {
			changeset.Added = append(changeset.Added, q)
			continue
		}
		if update := d.query(old, q); update != nil {
			changeset.Updated = append(changeset.Updated, *update)
		}
	}

	for _, q := range existing {
		if q.TrackingID.IsZero() || !declaredIndex.Has(q.TrackingID) {
			changeset.Removed = append(changeset.Removed, q)
		}
	}

	sortChangeset(changeset)
	changeset.summarize()
	return changeset
}

// query compares two queries and returns an update if they differ.
func (d *differ) query(existing, updated resources.Query) *QueryUpdate {
	var changes []FieldChange

	changes = d.compare(changes, "name", existing.Name, updated.Name)
	if updated.Description != nil {
		changes = d.compare(changes, "description", deref(existing.Description), *updated.Description)
	}
	changes = d.compare(changes, "query", existing.Query, updated.Query)
	if updated.DataSourceID != nil {
		changes = d.compare(changes, "dataSourceId", derefInt(existing.DataSourceID), *updated.DataSourceID)
	}
	changes = append(changes, d.options("options", existing.Options, updated.Options)...)
	if !d.ignoreFields["visualizations"] {
		changes = append(changes, d.visualizations(existing.Visualizations, updated.Visualizations)...)
	}

	if len(changes) == 0 {
		return nil
	}
	return &QueryUpdate{
		TrackingID: updated.TrackingID,
		Existing:   existing,
		New:        updated,
		Changes:    changes,
	}
}

func (d *differ) visualizations(existing, updated []resources.Visualization) []FieldChange {
	var changes []FieldChange
	index := tracking.NewIndex(existing)
	declared := tracking.NewIndex(updated)

	for _, v := range updated {
		if v.TrackingID.IsZero() {
			continue
		}
		path := fmt.Sprintf("visualizations[%s]", v.TrackingID)
		old, ok := index.Lookup(v.TrackingID)
		if !ok {
			changes = append(changes, FieldChange{Path: path, NewValue: v.Name, Type: ChangeTypeAdd})
			continue
		}
		changes = d.compare(changes, path+".type", old.Type, v.Type)
		changes = d.compare(changes, path+".name", old.Name, v.Name)
		if v.Description != nil {
			changes = d.compare(changes, path+".description", deref(old.Description), *v.Description)
		}
		changes = append(changes, d.options(path+".options", old.Options, v.Options)...)
		if !d.ignoreFields["dashboardPlacements"] && !reflect.DeepEqual(placements(old.Placements), placements(v.Placements)) {
			changes = append(changes, FieldChange{
				Path:     path + ".dashboardPlacements",
				OldValue: formatValue(placements(old.Placements)),
				NewValue: formatValue(placements(v.Placements)),
				Type:     ChangeTypeUpdate,
			})
		}
	}

	for _, v := range existing {
		if !v.TrackingID.IsZero() && !declared.Has(v.TrackingID) {
			changes = append(changes, FieldChange{
				Path:     fmt.Sprintf("visualizations[%s]", v.TrackingID),
				OldValue: v.Name,
				Type:     ChangeTypeRemove,
			})
		}
	}
	return changes
}

// options compares option bags key by key. Keys only the existing side
// carries are skipped unless remote options are compared.
func (d *differ) options(path string, existing, updated resources.Options) []FieldChange {
	if d.ignoreFields["options"] {
		return nil
	}
	var changes []FieldChange
	keys := updated.Keys()
	if d.remoteOptions {
		for _, k := range existing.Keys() {
			if _, ok := updated[k]; !ok {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
	}
	for _, k := range keys {
		oldValue, had := existing[k]
		newValue, has := updated[k]
		p := path + "." + k
		switch {
		case !had:
			changes = append(changes, FieldChange{Path: p, NewValue: formatValue(newValue), Type: ChangeTypeAdd})
		case !has:
			changes = append(changes, FieldChange{Path: p, OldValue: formatValue(oldValue), Type: ChangeTypeRemove})
		case !reflect.DeepEqual(normalize(oldValue), normalize(newValue)):
			changes = append(changes, FieldChange{
				Path:     p,
				OldValue: formatValue(oldValue),
				NewValue: formatValue(newValue),
				Type:     ChangeTypeUpdate,
			})
		}
	}
	return changes
}

func (d *differ) compare(changes []FieldChange, path string, existing, updated any) []FieldChange {
	if d.ignoreFields[lastSegment(path)] || reflect.DeepEqual(existing, updated) {
		return changes
	}
	return append(changes, FieldChange{
		Path:     path,
		OldValue: formatValue(existing),
		NewValue: formatValue(updated),
		Type:     ChangeTypeUpdate,
	})
}

// sortChangeset orders every list by tracking id for stable output.
func sortChangeset(c *Changeset) {
	byID := func(qs []resources.Query) func(i, j int) bool {
		return func(i, j int) bool {
			return qs[i].Label() < qs[j].Label()
		}
	}
	sort.Slice(c.Added, byID(c.Added))
	sort.Slice(c.Removed, byID(c.Removed))
	sort.Slice(c.Updated, func(i, j int) bool {
		return c.Updated[i].TrackingID < c.Updated[j].TrackingID
	})
}

func lastSegment(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			return path[i+1:]
		}
	}
	return path
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}

// truncateString truncates a string to maxLen characters.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
