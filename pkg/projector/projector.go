// Package projector converts between the untyped records the dashboard
// server speaks and the typed resources redpush reconciles.
//
// The server has no notion of a tracking id, so it travels inside each
// resource's options bag under TrackingKey. Project promotes it out of the
// bag; the payload builders demote it back in. No other package reads or
// writes that key.
package projector

import (
	"encoding/json"
	"maps"
	"strconv"

	"github.com/agentstation/redpush/pkg/resources"
)

// TrackingKey is the reserved options key carrying the tracking id.
const TrackingKey = "redpush_id"

// Record is one resource in the server's wire shape.
type Record = map[string]any

// Wire field names.
const (
	fieldID              = "id"
	fieldName            = "name"
	fieldDescription     = "description"
	fieldQuery           = "query"
	fieldDataSourceID    = "data_source_id"
	fieldOptions         = "options"
	fieldVisualizations  = "visualizations"
	fieldType            = "type"
	fieldQueryID         = "query_id"
	fieldIsDraft         = "is_draft"
	fieldIsArchived      = "is_archived"
	fieldSlug            = "slug"
	fieldWidgets         = "widgets"
	fieldVisualization   = "visualization"
	fieldVisualizationID = "visualization_id"
	fieldDashboardID     = "dashboard_id"
	fieldText            = "text"
	fieldWidth           = "width"
	fieldPosition        = "position"
	fieldMessage         = "message"
)

// DecodeTrackingID splits the tracking id out of an options bag. raw is
// the stored scalar when it is not a string. The returned bag is a copy
// without TrackingKey; it is nil when opts is nil.
func DecodeTrackingID(opts map[string]any) (id resources.TrackingID, raw any, rest resources.Options) {
	if opts == nil {
		return "", nil, nil
	}
	id, raw = resources.NewTrackingID(opts[TrackingKey])
	rest = resources.Options(opts).Clone()
	delete(rest, TrackingKey)
	return id, raw, rest
}

// EncodeTrackingID returns a copy of opts carrying id under TrackingKey,
// stored as raw when raw still denotes id. The result is never nil.
func EncodeTrackingID(opts resources.Options, id resources.TrackingID, raw any) Record {
	out := make(Record, len(opts)+1)
	for k, v := range opts.Clone() {
		out[k] = v
	}
	if !id.IsZero() {
		out[TrackingKey] = resources.TrackingValue(id, raw)
	}
	return out
}

// MergeOptions overlays declared option keys on the remote bag. Declared
// keys win; remote keys the declaration does not mention are preserved.
// The reserved key is never carried over from either side.
func MergeOptions(remote, declared resources.Options) resources.Options {
	out := remote.Clone()
	if out == nil {
		out = resources.Options{}
	}
	maps.Copy(out, declared.Clone())
	delete(out, TrackingKey)
	return out
}

// ProjectQuery canonicalizes a remote query record. Only the declarative
// fields survive; the tracking id is promoted out of the options bag and
// nested visualizations are projected too. Visualizations stays nil when
// the record has no visualizations key (bulk listings omit it).
func ProjectQuery(r Record) resources.Query {
	q := resources.Query{
		ID:    intField(r, fieldID),
		Name:  stringField(r, fieldName),
		Query: stringField(r, fieldQuery),
	}
	if v, ok := r[fieldDescription].(string); ok {
		q.Description = &v
	}
	if v, ok := asInt(r[fieldDataSourceID]); ok {
		q.DataSourceID = &v
	}
	if opts, ok := asMap(r[fieldOptions]); ok {
		q.TrackingID, q.TrackingRaw, q.Options = DecodeTrackingID(opts)
	}
	q.IsDraft, _ = r[fieldIsDraft].(bool)
	q.IsArchived, _ = r[fieldIsArchived].(bool)

	if raw, ok := r[fieldVisualizations].([]any); ok {
		q.Visualizations = make([]resources.Visualization, 0, len(raw))
		for _, item := range raw {
			if vr, ok := asMap(item); ok {
				v := ProjectVisualization(vr)
				v.QueryID = q.ID
				q.Visualizations = append(q.Visualizations, v)
			}
		}
	}
	return q
}

// UnprojectQuery is the inverse of ProjectQuery for the declarative fields:
// it demotes the tracking id into the options bag.
func UnprojectQuery(q resources.Query) Record {
	r := Record{
		fieldName:    q.Name,
		fieldQuery:   q.Query,
		fieldOptions: EncodeTrackingID(q.Options, q.TrackingID, q.TrackingRaw),
	}
	if q.ID != 0 {
		r[fieldID] = q.ID
	}
	if q.Description != nil {
		r[fieldDescription] = *q.Description
	}
	if q.DataSourceID != nil {
		r[fieldDataSourceID] = *q.DataSourceID
	}
	if q.Visualizations != nil {
		vs := make([]any, 0, len(q.Visualizations))
		for _, v := range q.Visualizations {
			vs = append(vs, UnprojectVisualization(v))
		}
		r[fieldVisualizations] = vs
	}
	return r
}

// ProjectVisualization canonicalizes a remote visualization record,
// dropping server timestamps and the embedded query.
func ProjectVisualization(r Record) resources.Visualization {
	v := resources.Visualization{
		ID:   intField(r, fieldID),
		Type: stringField(r, fieldType),
		Name: stringField(r, fieldName),
	}
	if d, ok := r[fieldDescription].(string); ok {
		v.Description = &d
	}
	if opts, ok := asMap(r[fieldOptions]); ok {
		v.TrackingID, v.TrackingRaw, v.Options = DecodeTrackingID(opts)
	}
	v.QueryID = intField(r, fieldQueryID)
	return v
}

// UnprojectVisualization is the inverse of ProjectVisualization.
func UnprojectVisualization(v resources.Visualization) Record {
	r := Record{
		fieldOptions: EncodeTrackingID(v.Options, v.TrackingID, v.TrackingRaw),
	}
	if v.ID != 0 {
		r[fieldID] = v.ID
	}
	if v.Type != "" {
		r[fieldType] = v.Type
	}
	if v.Name != "" {
		r[fieldName] = v.Name
	}
	if v.Description != nil {
		r[fieldDescription] = *v.Description
	}
	return r
}

// QueryPayload builds the create-or-update body for a declared query.
// Visualizations are never sent with the query; draft and archived flags
// are forced off. remote holds the options of the matched remote query,
// or nil when the query is being created.
func QueryPayload(q resources.Query, remote resources.Options) Record {
	body := UnprojectQuery(resources.Query{
		Name:         q.Name,
		Description:  q.Description,
		Query:        q.Query,
		DataSourceID: q.DataSourceID,
		TrackingID:   q.TrackingID,
		TrackingRaw:  q.TrackingRaw,
		Options:      MergeOptions(remote, q.Options),
	})
	body[fieldIsDraft] = false
	body[fieldIsArchived] = false
	return body
}

// VisualizationPayload builds the create-or-update body for a declared
// visualization owned by queryID. Dashboard placements stay local.
func VisualizationPayload(v resources.Visualization, queryID int, remote resources.Options) Record {
	body := UnprojectVisualization(resources.Visualization{
		Type:        v.Type,
		Name:        v.Name,
		Description: v.Description,
		TrackingID:  v.TrackingID,
		TrackingRaw: v.TrackingRaw,
		Options:     MergeOptions(remote, v.Options),
	})
	body[fieldQueryID] = queryID
	return body
}

// ProjectDashboard canonicalizes a remote dashboard record. Only identity,
// draft state and widgets survive.
func ProjectDashboard(r Record) resources.Dashboard {
	d := resources.Dashboard{
		ID:   intField(r, fieldID),
		Name: stringField(r, fieldName),
		Slug: stringField(r, fieldSlug),
	}
	d.IsDraft, _ = r[fieldIsDraft].(bool)
	if raw, ok := r[fieldWidgets].([]any); ok {
		for _, item := range raw {
			if wr, ok := asMap(item); ok {
				w := ProjectWidget(wr)
				if w.DashboardID == 0 {
					w.DashboardID = d.ID
				}
				d.Widgets = append(d.Widgets, w)
			}
		}
	}
	return d
}

// ProjectWidget canonicalizes a remote widget record. The visualization
// binding is read from the nested visualization object when present.
func ProjectWidget(r Record) resources.Widget {
	w := resources.Widget{
		ID:          intField(r, fieldID),
		DashboardID: intField(r, fieldDashboardID),
		Text:        stringField(r, fieldText),
		Width:       intField(r, fieldWidth),
	}
	if vis, ok := asMap(r[fieldVisualization]); ok {
		w.VisualizationID = intField(vis, fieldID)
	}
	if w.VisualizationID == 0 {
		w.VisualizationID = intField(r, fieldVisualizationID)
	}
	if opts, ok := asMap(r[fieldOptions]); ok {
		if pos, ok := asMap(opts[fieldPosition]); ok {
			w.Position = resources.Geometry{
				Row:   intField(pos, "row"),
				Col:   intField(pos, "col"),
				SizeX: intField(pos, "sizeX"),
				SizeY: intField(pos, "sizeY"),
			}
			w.Position.AutoHeight, _ = pos["autoHeight"].(bool)
		}
	}
	return w
}

// WidgetCreatePayload binds visualizationID to dashboardID at pos.
func WidgetCreatePayload(dashboardID, visualizationID int, pos resources.Geometry) Record {
	return Record{
		fieldDashboardID:     dashboardID,
		fieldVisualizationID: visualizationID,
		fieldOptions:         Record{fieldPosition: positionRecord(pos)},
		fieldWidth:           1,
	}
}

// WidgetUpdatePayload moves an existing widget. The visualization binding
// is not re-sent.
func WidgetUpdatePayload(dashboardID int, pos resources.Geometry) Record {
	return Record{
		fieldDashboardID: dashboardID,
		fieldOptions:     Record{fieldPosition: positionRecord(pos)},
		fieldText:        "",
		fieldWidth:       1,
	}
}

// DashboardCreatePayload names a new dashboard.
func DashboardCreatePayload(name string) Record {
	return Record{fieldName: name}
}

// DashboardPublishPayload takes a dashboard out of draft.
func DashboardPublishPayload() Record {
	return Record{fieldIsDraft: false}
}

// UserPayload builds the body for creating a user.
func UserPayload(u resources.User) Record {
	return Record{fieldName: u.Name, "email": u.Email}
}

// ID returns the remote id of a response record.
func ID(r Record) (int, bool) {
	return asInt(r[fieldID])
}

// Rejection returns the error message a server placed in a response body.
// A body that also carries an id is not a rejection.
func Rejection(r Record) (string, bool) {
	if _, ok := ID(r); ok {
		return "", false
	}
	msg, ok := r[fieldMessage].(string)
	if !ok || msg == "" {
		return "", false
	}
	return msg, true
}

func positionRecord(g resources.Geometry) Record {
	return Record{
		"autoHeight": g.AutoHeight,
		"row":        g.Row,
		"col":        g.Col,
		"sizeX":      g.SizeX,
		"sizeY":      g.SizeY,
	}
}

func stringField(r Record, key string) string {
	s, _ := r[key].(string)
	return s
}

func intField(r Record, key string) int {
	n, _ := asInt(r[key])
	return n
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case resources.Options:
		return m, true
	}
	return nil, false
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		return int(n), n == float64(int(n))
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	}
	return 0, false
}
