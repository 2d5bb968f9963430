package graph

import (
	"math"

	"github.com/flywave/go3d/float64/vec2"
)

// ChartID identifies a chart within one Graph. IDs are stable: a merged
// chart keeps the ID of the absorbing chart and the absorbed ID is never
// reused.
type ChartID int

// HalfEdge names edge Edge of face Face.
type HalfEdge struct {
	Face int
	Edge int
}

// Chart is a UV-connected set of faces. Charts live in the Graph arena;
// Alive is false once the chart has been merged into another one.
type Chart struct {
	ID      ChartID
	Faces   []int
	Tex     int
	Alive   bool
	Version uint64

	// Scale is the texel density (texels per model unit) the chart's
	// parameterization is measured against.
	Scale float64

	// Boundary lists the half-edges whose opposite face is missing or
	// belongs to another chart.
	Boundary []HalfEdge

	areaUV   float64
	signedUV float64
	area3D   float64
	borderUV float64
	min, max vec2.T
}

// FN returns the number of faces.
func (c *Chart) FN() int { return len(c.Faces) }

// AreaUV returns the unsigned texture-space area.
func (c *Chart) AreaUV() float64 { return c.areaUV }

// Area3D returns the surface area.
func (c *Chart) Area3D() float64 { return c.area3D }

// BorderUV returns the texture-space perimeter.
func (c *Chart) BorderUV() float64 { return c.borderUV }

// UVFlipped reports whether the parameterization is mirrored (clockwise).
func (c *Chart) UVFlipped() bool { return c.signedUV < 0 }

// UVBox returns the texture-space bounding box.
func (c *Chart) UVBox() (vec2.T, vec2.T) { return c.min, c.max }

// UVSize returns the width and height of the texture-space bounding box.
func (c *Chart) UVSize() (float64, float64) {
	if c.max[0] < c.min[0] {
		return 0, 0
	}
	return c.max[0] - c.min[0], c.max[1] - c.min[1]
}

func emptyBox() (vec2.T, vec2.T) {
	return vec2.T{math.Inf(1), math.Inf(1)}, vec2.T{math.Inf(-1), math.Inf(-1)}
}
