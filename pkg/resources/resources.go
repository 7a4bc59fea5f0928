// Package resources defines the typed entities redpush reconciles: queries,
// their visualizations, dashboards and the widgets placing visualizations
// on them. Records here carry no wire encoding of identity; the tracking id
// is a first-class field and only the projector knows how it travels inside
// a remote options bag.
package resources

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// TrackingID is the caller-chosen identifier that recognizes the same
// logical resource across runs. The zero value means "absent".
type TrackingID string

// String returns the id as a string.
func (id TrackingID) String() string {
	return string(id)
}

// IsZero reports whether the tracking id is absent.
func (id TrackingID) IsZero() bool {
	return strings.TrimSpace(string(id)) == ""
}

// ParseTrackingID converts a decoded scalar (string or number) to a TrackingID.
// Numbers are rendered in decimal without a fractional part when integral.
func ParseTrackingID(v any) (TrackingID, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return TrackingID(t), t != ""
	case TrackingID:
		return t, t != ""
	case json.Number:
		return TrackingID(t.String()), t != ""
	case int:
		return TrackingID(strconv.Itoa(t)), true
	case int64:
		return TrackingID(strconv.FormatInt(t, 10)), true
	case uint64:
		return TrackingID(strconv.FormatUint(t, 10)), true
	case float64:
		return TrackingID(strconv.FormatFloat(t, 'f', -1, 64)), true
	case bool:
		return "", false
	default:
		s := fmt.Sprint(t)
		return TrackingID(s), s != ""
	}
}

// NewTrackingID parses a decoded scalar like ParseTrackingID. When the
// scalar is not a string it is returned as raw, so the id can be stored
// back with the type it was read with.
func NewTrackingID(v any) (id TrackingID, raw any) {
	id, ok := ParseTrackingID(v)
	if !ok {
		return "", nil
	}
	switch v.(type) {
	case string, TrackingID:
		return id, nil
	}
	return id, v
}

// TrackingValue returns the scalar to store for id: raw when it still
// parses to id, otherwise the id as a string.
func TrackingValue(id TrackingID, raw any) any {
	if raw != nil {
		if parsed, ok := ParseTrackingID(raw); ok && parsed == id {
			return raw
		}
	}
	return id.String()
}

// UnmarshalYAML accepts both string and numeric tracking ids.
func (id *TrackingID) UnmarshalYAML(unmarshal func(any) error) error {
	var raw any
	if err := unmarshal(&raw); err != nil {
		return err
	}
	parsed, _ := ParseTrackingID(raw)
	*id = parsed
	return nil
}

// UnmarshalJSON accepts both string and numeric tracking ids.
func (id *TrackingID) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, _ := ParseTrackingID(raw)
	*id = parsed
	return nil
}

// Options is the free-form key/value bag the server keeps per resource.
type Options map[string]any

// Clone returns a deep copy of nested maps and slices.
func (o Options) Clone() Options {
	if o == nil {
		return nil
	}
	out := make(Options, len(o))
	for k, v := range o {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[k] = cloneValue(vv)
		}
		return m
	case Options:
		return t.Clone()
	case []any:
		s := make([]any, len(t))
		for i, vv := range t {
			s[i] = cloneValue(vv)
		}
		return s
	default:
		return v
	}
}

// Keys returns the option keys in sorted order.
func (o Options) Keys() []string {
	return slices.Sorted(maps.Keys(o))
}

// Query is an analytics query and the visualizations built on it.
type Query struct {
	ID             int             `json:"id,omitempty" yaml:"id,omitempty"`
	TrackingID     TrackingID      `json:"trackingId,omitempty" yaml:"trackingId,omitempty"`
	TrackingRaw    any             `json:"-" yaml:"-"` // non-string scalar TrackingID was read from
	Name           string          `json:"name" yaml:"name" validate:"required"`
	Description    *string         `json:"description,omitempty" yaml:"description,omitempty"`
	Query          string          `json:"query" yaml:"query"`
	DataSourceID   *int            `json:"dataSourceId,omitempty" yaml:"dataSourceId,omitempty"`
	Options        Options         `json:"options,omitempty" yaml:"options,omitempty"`
	Visualizations []Visualization `json:"visualizations,omitempty" yaml:"visualizations,omitempty" validate:"dive"`

	// Server-side flags; every sync forces both to false.
	IsDraft    bool `json:"-" yaml:"-"`
	IsArchived bool `json:"-" yaml:"-"`
}

// Tracking returns the query's tracking id.
func (q Query) Tracking() TrackingID {
	return q.TrackingID
}

// Label identifies the query in log lines.
func (q Query) Label() string {
	switch {
	case !q.TrackingID.IsZero():
		return q.TrackingID.String()
	case q.ID != 0:
		return strconv.Itoa(q.ID)
	default:
		return q.Name
	}
}

// Visualization renders the results of its owning query.
type Visualization struct {
	ID          int         `json:"id,omitempty" yaml:"id,omitempty"`
	TrackingID  TrackingID  `json:"trackingId,omitempty" yaml:"trackingId,omitempty"`
	TrackingRaw any         `json:"-" yaml:"-"` // non-string scalar TrackingID was read from
	QueryID     int         `json:"-" yaml:"-"`
	Type        string      `json:"type,omitempty" yaml:"type,omitempty"`
	Name        string      `json:"name,omitempty" yaml:"name,omitempty"`
	Description *string     `json:"description,omitempty" yaml:"description,omitempty"`
	Options     Options     `json:"options,omitempty" yaml:"options,omitempty"`
	Placements  []Placement `json:"dashboardPlacements,omitempty" yaml:"dashboardPlacements,omitempty" validate:"dive"`
}

// Tracking returns the visualization's tracking id.
func (v Visualization) Tracking() TrackingID {
	return v.TrackingID
}

// Placement asks for a visualization to appear on the named dashboard.
type Placement struct {
	Name string    `json:"name" yaml:"name" validate:"required"`
	Size SizeClass `json:"size,omitempty" yaml:"size,omitempty" validate:"omitempty,oneof=small medium large"`
	Row  *int      `json:"row,omitempty" yaml:"row,omitempty"`
	Col  *int      `json:"col,omitempty" yaml:"col,omitempty"`
}

// Dashboard is a named grid of widgets. Dashboards are matched by name.
type Dashboard struct {
	ID      int      `json:"id" yaml:"id"`
	Name    string   `json:"name" yaml:"name"`
	Slug    string   `json:"slug,omitempty" yaml:"slug,omitempty"`
	IsDraft bool     `json:"is_draft,omitempty" yaml:"isDraft,omitempty"`
	Widgets []Widget `json:"widgets,omitempty" yaml:"widgets,omitempty"`

	// Partial is set when only the listing entry could be read, so
	// Widgets is unknown rather than empty.
	Partial bool `json:"-" yaml:"-"`
}

// WidgetFor returns the first widget bound to the visualization id.
func (d Dashboard) WidgetFor(visualizationID int) (Widget, bool) {
	for _, w := range d.Widgets {
		if w.VisualizationID != 0 && w.VisualizationID == visualizationID {
			return w, true
		}
	}
	return Widget{}, false
}

// Clone returns a copy whose widget slice can be appended independently.
func (d Dashboard) Clone() Dashboard {
	d.Widgets = append([]Widget(nil), d.Widgets...)
	return d
}

// Widget places one visualization on one dashboard.
type Widget struct {
	ID              int      `json:"id" yaml:"id"`
	DashboardID     int      `json:"dashboard_id,omitempty" yaml:"dashboardId,omitempty"`
	VisualizationID int      `json:"visualization_id,omitempty" yaml:"visualizationId,omitempty"`
	Text            string   `json:"text,omitempty" yaml:"text,omitempty"`
	Width           int      `json:"width,omitempty" yaml:"width,omitempty"`
	Position        Geometry `json:"position" yaml:"position"`
}

// Geometry is a widget's absolute position on the dashboard grid.
type Geometry struct {
	Row        int  `json:"row" yaml:"row"`
	Col        int  `json:"col" yaml:"col"`
	SizeX      int  `json:"sizeX" yaml:"sizeX"`
	SizeY      int  `json:"sizeY" yaml:"sizeY"`
	AutoHeight bool `json:"autoHeight" yaml:"autoHeight"`
}

// User is an account to create on the server.
type User struct {
	Name  string `json:"name" yaml:"name" validate:"required"`
	Email string `json:"email" yaml:"email" validate:"required,email"`
}
