package differ

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/agentstation/redpush/pkg/errors"
	"github.com/agentstation/redpush/pkg/resources"
)

// Canonicalize returns queries in a form where neither query order nor map
// key order matters: queries and visualizations are sorted by tracking id,
// every mapping is sorted by key, and numbers are normalized. Remote ids are
// dropped since declared files need not carry them.
func Canonicalize(queries []resources.Query) []yaml.MapSlice {
	return (&differ{ignoreFields: map[string]bool{}}).canonicalize(queries)
}

// Text renders the canonical form of queries as YAML.
func Text(queries []resources.Query) (string, error) {
	return (&differ{ignoreFields: map[string]bool{}}).text(queries)
}

// Unified renders a unified diff from existing to declared.
func (d *differ) Unified(existing, declared []resources.Query, fromName, toName string) (string, error) {
	a, err := d.text(existing)
	if err != nil {
		return "", err
	}
	b, err := d.text(declared)
	if err != nil {
		return "", err
	}
	if a == b {
		return "", nil
	}
	out, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(a),
		B:        difflib.SplitLines(b),
		FromFile: fromName,
		ToFile:   toName,
		Context:  3,
	})
	if err != nil {
		return "", errors.WrapParse("diff", "", err)
	}
	return out, nil
}

func (d *differ) text(queries []resources.Query) (string, error) {
	data, err := yaml.MarshalWithOptions(d.canonicalize(queries),
		yaml.Indent(2),
		yaml.IndentSequence(true),
		yaml.UseLiteralStyleIfMultiline(true),
	)
	if err != nil {
		return "", errors.WrapParse("yaml", "", err)
	}
	return string(data), nil
}

func (d *differ) canonicalize(queries []resources.Query) []yaml.MapSlice {
	sorted := append([]resources.Query(nil), queries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return less(sorted[i].TrackingID, sorted[i].Name, sorted[j].TrackingID, sorted[j].Name)
	})

	out := make([]yaml.MapSlice, 0, len(sorted))
	for _, q := range sorted {
		record := map[string]any{
			"name":  q.Name,
			"query": q.Query,
		}
		d.put(record, "trackingId", q.TrackingID.String(), !q.TrackingID.IsZero())
		d.put(record, "description", deref(q.Description), q.Description != nil)
		d.put(record, "dataSourceId", derefInt(q.DataSourceID), q.DataSourceID != nil)
		d.put(record, "options", map[string]any(q.Options), len(q.Options) > 0)
		if vs := d.canonicalVisualizations(q.Visualizations); len(vs) > 0 {
			d.put(record, "visualizations", vs, true)
		}
		out = append(out, sortKeys(record).(yaml.MapSlice))
	}
	return out
}

func (d *differ) canonicalVisualizations(vs []resources.Visualization) []any {
	sorted := append([]resources.Visualization(nil), vs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return less(sorted[i].TrackingID, sorted[i].Name, sorted[j].TrackingID, sorted[j].Name)
	})

	var out []any
	for _, v := range sorted {
		record := map[string]any{}
		d.put(record, "trackingId", v.TrackingID.String(), !v.TrackingID.IsZero())
		d.put(record, "type", v.Type, v.Type != "")
		d.put(record, "name", v.Name, v.Name != "")
		d.put(record, "description", deref(v.Description), v.Description != nil)
		d.put(record, "options", map[string]any(v.Options), len(v.Options) > 0)
		d.put(record, "dashboardPlacements", placements(v.Placements), len(v.Placements) > 0)
		out = append(out, record)
	}
	return out
}

func (d *differ) put(record map[string]any, key string, value any, present bool) {
	if present && !d.ignoreFields[key] {
		record[key] = value
	}
}

// placements renders placements with their defaults filled in, so an
// omitted size and an explicit medium compare equal.
func placements(ps []resources.Placement) []any {
	if len(ps) == 0 {
		return nil
	}
	out := make([]any, 0, len(ps))
	for _, p := range ps {
		size := p.Size
		if size == "" {
			size = resources.DefaultSize
		}
		record := map[string]any{"name": p.Name, "size": string(size)}
		if p.Row != nil && *p.Row > 0 {
			record["row"] = int64(*p.Row)
		}
		if p.Col != nil && *p.Col > 0 {
			record["col"] = int64(*p.Col)
		}
		out = append(out, record)
	}
	return out
}

// less orders by tracking id, with untracked entries last by name.
func less(a resources.TrackingID, aName string, b resources.TrackingID, bName string) bool {
	switch {
	case a.IsZero() && b.IsZero():
		return aName < bName
	case a.IsZero():
		return false
	case b.IsZero():
		return true
	default:
		return a < b
	}
}

// sortKeys converts every mapping under v to a key-sorted yaml.MapSlice.
func sortKeys(v any) any {
	switch t := normalize(v).(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(yaml.MapSlice, 0, len(keys))
		for _, k := range keys {
			out = append(out, yaml.MapItem{Key: k, Value: sortKeys(t[k])})
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = sortKeys(item)
		}
		return out
	default:
		return t
	}
}

// normalize maps every number to int64 when integral and float64
// otherwise, and every mapping to map[string]any, so values decoded from
// JSON and from YAML compare equal.
func normalize(v any) any {
	switch t := v.(type) {
	case int:
		return int64(t)
	case int8:
		return int64(t)
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case int64:
		return t
	case uint:
		return int64(t)
	case uint8:
		return int64(t)
	case uint16:
		return int64(t)
	case uint32:
		return int64(t)
	case uint64:
		return int64(t)
	case float32:
		return normalize(float64(t))
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1<<53 {
			return int64(t)
		}
		return t
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		f, _ := t.Float64()
		return normalize(f)
	case resources.Options:
		return normalize(map[string]any(t))
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = normalize(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[fmt.Sprint(k)] = normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalize(item)
		}
		return out
	default:
		return v
	}
}

// formatValue renders a value for a FieldChange.
func formatValue(v any) string {
	switch t := normalize(v).(type) {
	case nil:
		return ""
	case string:
		return truncateString(strings.ReplaceAll(t, "\n", "⏎"), 50)
	case map[string]any, []any:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return truncateString(string(data), 50)
	default:
		return fmt.Sprint(t)
	}
}
