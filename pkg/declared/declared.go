// Package declared reads and writes the YAML files that declare queries,
// their visualizations and dashboard placements.
//
// A declared file is a sequence of queries:
//
//	- trackingId: sales
//	  name: Sales
//	  dataSourceId: 1
//	  query: |
//	    select day, sum(amount) from orders group by 1
//	  visualizations:
//	    - trackingId: sales-chart
//	      type: CHART
//	      name: Revenue
//	      dashboardPlacements:
//	        - name: Exec Overview
//	          size: large
//
// Files written by older releases spell the tracking id redpush_id (either
// as a key or inside options), the placements redpush_dashboards and the
// data source data_source_id. Those spellings are read but never written.
package declared

import (
	"bytes"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/redpush/pkg/constants"
	"github.com/agentstation/redpush/pkg/errors"
	"github.com/agentstation/redpush/pkg/projector"
	"github.com/agentstation/redpush/pkg/resources"
)

// fileQuery is the on-disk layout of a query. Tracking ids are kept as
// decoded so a numeric id is written back unquoted.
type fileQuery struct {
	ID             int                 `yaml:"id,omitempty"`
	TrackingID     any                 `yaml:"trackingId,omitempty"`
	LegacyID       any                 `yaml:"redpush_id,omitempty"`
	Name           string              `yaml:"name"`
	Description    *string             `yaml:"description,omitempty"`
	Query          string              `yaml:"query"`
	DataSourceID   *int                `yaml:"dataSourceId,omitempty"`
	LegacySourceID *int                `yaml:"data_source_id,omitempty"`
	Options        resources.Options   `yaml:"options,omitempty"`
	Visualizations []fileVisualization `yaml:"visualizations,omitempty"`
}

type fileVisualization struct {
	ID               int                   `yaml:"id,omitempty"`
	TrackingID       any                   `yaml:"trackingId,omitempty"`
	LegacyID         any                   `yaml:"redpush_id,omitempty"`
	Type             string                `yaml:"type,omitempty"`
	Name             string                `yaml:"name,omitempty"`
	Description      *string               `yaml:"description,omitempty"`
	Options          resources.Options     `yaml:"options,omitempty"`
	Placements       []resources.Placement `yaml:"dashboardPlacements,omitempty"`
	LegacyPlacements []resources.Placement `yaml:"redpush_dashboards,omitempty"`
}

// Read decodes a declared file. An empty document declares nothing.
func Read(r io.Reader) ([]resources.Query, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.WrapIO("read", "declared file", err)
	}
	return parse("", data)
}

// Load reads and validates the declared file at path.
func Load(path string) ([]resources.Query, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("declared file", path)
		}
		return nil, errors.WrapIO("read", path, err)
	}
	queries, err := parse(path, data)
	if err != nil {
		return nil, err
	}
	if err := Validate(queries); err != nil {
		return nil, err
	}
	return queries, nil
}

func parse(path string, data []byte) ([]resources.Query, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var raw []fileQuery
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.WrapParse("yaml", path, err)
	}
	queries := make([]resources.Query, 0, len(raw))
	for _, fq := range raw {
		queries = append(queries, fq.resource())
	}
	return queries, nil
}

func (fq fileQuery) resource() resources.Query {
	id, raw, opts := trackingID(fq.TrackingID, fq.LegacyID, fq.Options)
	q := resources.Query{
		ID:           fq.ID,
		TrackingID:   id,
		TrackingRaw:  raw,
		Name:         fq.Name,
		Description:  fq.Description,
		Query:        fq.Query,
		DataSourceID: fq.DataSourceID,
		Options:      opts,
	}
	if q.DataSourceID == nil {
		q.DataSourceID = fq.LegacySourceID
	}
	for _, fv := range fq.Visualizations {
		q.Visualizations = append(q.Visualizations, fv.resource())
	}
	return q
}

func (fv fileVisualization) resource() resources.Visualization {
	id, raw, opts := trackingID(fv.TrackingID, fv.LegacyID, fv.Options)
	v := resources.Visualization{
		ID:          fv.ID,
		TrackingID:  id,
		TrackingRaw: raw,
		Type:        fv.Type,
		Name:        fv.Name,
		Description: fv.Description,
		Options:     opts,
		Placements:  fv.Placements,
	}
	if v.Placements == nil {
		v.Placements = fv.LegacyPlacements
	}
	return v
}

// trackingID picks the canonical id over the legacy spellings and removes
// the reserved key from the options bag.
func trackingID(canonical, legacy any, opts resources.Options) (resources.TrackingID, any, resources.Options) {
	fromOptions, optionsRaw, rest := projector.DecodeTrackingID(opts)
	for _, v := range []any{canonical, legacy} {
		if id, raw := resources.NewTrackingID(v); !id.IsZero() {
			return id, raw, rest
		}
	}
	return fromOptions, optionsRaw, rest
}

// fileTrackingValue writes integral floats, as decoded from JSON, as
// integers so they do not gain a fractional part in YAML.
func fileTrackingValue(id resources.TrackingID, raw any) any {
	v := resources.TrackingValue(id, raw)
	if f, ok := v.(float64); ok && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	return v
}

func newFileQuery(q resources.Query) fileQuery {
	fq := fileQuery{
		ID:           q.ID,
		Name:         q.Name,
		Description:  q.Description,
		Query:        q.Query,
		DataSourceID: q.DataSourceID,
		Options:      q.Options,
	}
	if !q.TrackingID.IsZero() {
		fq.TrackingID = fileTrackingValue(q.TrackingID, q.TrackingRaw)
	}
	for _, v := range q.Visualizations {
		fq.Visualizations = append(fq.Visualizations, newFileVisualization(v))
	}
	return fq
}

func newFileVisualization(v resources.Visualization) fileVisualization {
	fv := fileVisualization{
		ID:          v.ID,
		Type:        v.Type,
		Name:        v.Name,
		Description: v.Description,
		Options:     v.Options,
		Placements:  v.Placements,
	}
	if !v.TrackingID.IsZero() {
		fv.TrackingID = fileTrackingValue(v.TrackingID, v.TrackingRaw)
	}
	return fv
}

// Write encodes queries in the canonical file layout. Multi-line query
// text is written as a literal block.
func Write(w io.Writer, queries []resources.Query) error {
	data, err := marshal(queries)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return errors.WrapIO("write", "declared file", err)
	}
	return nil
}

// Save writes queries to path, creating parent directories as needed.
func Save(path string, queries []resources.Query) error {
	data, err := marshal(queries)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
			return errors.WrapIO("mkdir", dir, err)
		}
	}
	if err := os.WriteFile(path, data, constants.FilePermissions); err != nil {
		return errors.WrapIO("write", path, err)
	}
	return nil
}

func marshal(queries []resources.Query) ([]byte, error) {
	out := make([]fileQuery, 0, len(queries))
	for _, q := range queries {
		out = append(out, newFileQuery(q))
	}
	data, err := yaml.MarshalWithOptions(out,
		yaml.Indent(2),
		yaml.IndentSequence(true),
		yaml.UseLiteralStyleIfMultiline(true),
	)
	if err != nil {
		return nil, errors.WrapParse("yaml", "", err)
	}
	return data, nil
}
