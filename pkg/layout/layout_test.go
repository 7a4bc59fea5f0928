package layout_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentstation/redpush/internal/utils/ptr"
	"github.com/agentstation/redpush/pkg/layout"
	"github.com/agentstation/redpush/pkg/resources"
)

func TestComputePosition(t *testing.T) {
	tests := []struct {
		name string
		size resources.SizeClass
		row  int
		col  int
		want resources.Geometry
	}{
		{
			name: "small at row 2 col 1",
			size: resources.SizeSmall, row: 2, col: 1,
			want: resources.Geometry{Row: 2, Col: 2, SizeX: 2, SizeY: 5},
		},
		{
			name: "medium scales column by three",
			size: resources.SizeMedium, row: 0, col: 2,
			want: resources.Geometry{Row: 0, Col: 6, SizeX: 3, SizeY: 9},
		},
		{
			name: "large keeps column",
			size: resources.SizeLarge, row: 4, col: 3,
			want: resources.Geometry{Row: 4, Col: 3, SizeX: 6, SizeY: 12},
		},
		{
			name: "empty size is medium",
			size: "", row: 1, col: 1,
			want: resources.Geometry{Row: 1, Col: 3, SizeX: 3, SizeY: 9},
		},
		{
			name: "unknown size is medium",
			size: "huge", row: 0, col: 0,
			want: resources.Geometry{SizeX: 3, SizeY: 9},
		},
		{
			name: "negatives default to zero",
			size: resources.SizeSmall, row: -1, col: -5,
			want: resources.Geometry{Row: 0, Col: 0, SizeX: 2, SizeY: 5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := layout.ComputePosition(tt.size, tt.row, tt.col)
			assert.Equal(t, tt.want, got)
			assert.False(t, got.AutoHeight)
		})
	}
}

func TestComputePositionDeterministic(t *testing.T) {
	a := layout.ComputePosition(resources.SizeMedium, 0, 2)
	b := layout.ComputePosition(resources.SizeMedium, 0, 2)
	assert.Equal(t, a, b)

	assert.Equal(t,
		layout.ComputePosition(resources.SizeMedium, 0, 1),
		layout.ComputePosition(resources.SizeMedium, -1, 1),
	)
}

func TestForPlacement(t *testing.T) {
	tests := []struct {
		name string
		p    resources.Placement
		want resources.Geometry
	}{
		{
			name: "absent row and col",
			p:    resources.Placement{Name: "Ops", Size: resources.SizeLarge},
			want: resources.Geometry{SizeX: 6, SizeY: 12},
		},
		{
			name: "zero means unset",
			p:    resources.Placement{Name: "Ops", Size: resources.SizeSmall, Row: ptr.To(0), Col: ptr.To(0)},
			want: resources.Geometry{SizeX: 2, SizeY: 5},
		},
		{
			name: "positive values override",
			p:    resources.Placement{Name: "Ops", Size: resources.SizeSmall, Row: ptr.To(2), Col: ptr.To(1)},
			want: resources.Geometry{Row: 2, Col: 2, SizeX: 2, SizeY: 5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, layout.ForPlacement(tt.p))
		})
	}
}

func TestSpecFor(t *testing.T) {
	_, ok := layout.SpecFor("tiny")
	assert.False(t, ok)

	spec, ok := layout.SpecFor(resources.SizeSmall)
	assert.True(t, ok)
	assert.Equal(t, layout.Spec{ColumnMultiplier: 2, SizeX: 2, SizeY: 5}, spec)
}
