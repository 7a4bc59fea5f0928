package reconcile

import (
	"github.com/agentstation/redpush/pkg/resources"
)

// partition splits queries into groups that share no dashboard name and
// no tracking id. Declaration order is kept within each group, and groups are ordered by
// their first query.
func partition(queries []resources.Query) [][]resources.Query {
	parent := make([]int, len(queries))
	for i := range parent {
		parent[i] = i
	}
	find := func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra == rb {
			return
		}
		if ra < rb {
			parent[rb] = ra
		} else {
			parent[ra] = rb
		}
	}

	owner := make(map[string]int)
	claim := func(key string, i int) {
		if first, ok := owner[key]; ok {
			union(first, i)
		} else {
			owner[key] = i
		}
	}
	for i, q := range queries {
		if !q.TrackingID.IsZero() {
			claim("query:"+q.TrackingID.String(), i)
		}
		for _, v := range q.Visualizations {
			for _, p := range v.Placements {
				claim("dashboard:"+p.Name, i)
			}
		}
	}

	index := make(map[int]int)
	var groups [][]resources.Query
	for i, q := range queries {
		root := find(i)
		g, ok := index[root]
		if !ok {
			g = len(groups)
			index[root] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], q)
	}
	return groups
}
