// Package layout computes where a widget sits on the dashboard grid.
package layout

import (
	"github.com/agentstation/redpush/internal/utils/ptr"
	"github.com/agentstation/redpush/pkg/resources"
)

// Spec is the fixed geometry of one size class.
type Spec struct {
	// ColumnMultiplier scales the declared logical column to grid units.
	ColumnMultiplier int
	SizeX            int
	SizeY            int
}

var specs = map[resources.SizeClass]Spec{
	resources.SizeSmall:  {ColumnMultiplier: 2, SizeX: 2, SizeY: 5},
	resources.SizeMedium: {ColumnMultiplier: 3, SizeX: 3, SizeY: 9},
	resources.SizeLarge:  {ColumnMultiplier: 1, SizeX: 6, SizeY: 12},
}

// SpecFor returns the geometry of size. Empty or unknown sizes resolve to
// the default size; ok is false only for unknown sizes.
func SpecFor(size resources.SizeClass) (Spec, bool) {
	if size == "" {
		return specs[resources.DefaultSize], true
	}
	s, ok := specs[size]
	if !ok {
		return specs[resources.DefaultSize], false
	}
	return s, true
}

// ComputePosition maps a size class and logical grid coordinates to
// absolute geometry. Only strictly positive row and col override the
// default of zero. AutoHeight is always false.
func ComputePosition(size resources.SizeClass, row, col int) resources.Geometry {
	spec, _ := SpecFor(size)
	if row < 0 {
		row = 0
	}
	if col < 0 {
		col = 0
	}
	return resources.Geometry{
		Row:        row,
		Col:        col * spec.ColumnMultiplier,
		SizeX:      spec.SizeX,
		SizeY:      spec.SizeY,
		AutoHeight: false,
	}
}

// ForPlacement computes the geometry of a declared placement.
func ForPlacement(p resources.Placement) resources.Geometry {
	return ComputePosition(p.Size, ptr.Positive(p.Row, 0), ptr.Positive(p.Col, 0))
}
