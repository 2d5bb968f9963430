// Package orient makes chart orientations consistent and picks the
// placement rotation of each chart before packing.
package orient

import (
	"math"

	"github.com/flywave/go3d/float64/vec2"

	"texdefrag/internal/graph"
	"texdefrag/internal/mathutil"
	"texdefrag/internal/mesh"
)

// AnchorMap maps a chart to the wedge (3*face + corner) whose position
// pins the chart to the source texel grid.
type AnchorMap map[graph.ChartID]int

// Options tunes RotateChartForResampling.
type Options struct {
	// RotationStep is the angular resolution of the rotation search, in
	// degrees. Values <= 0 or >= 90 only try the principal axis.
	RotationStep float64

	// MinZeroFraction is the share of a chart's 3D area that must be
	// reproducible by translation alone for the chart to be anchored.
	MinZeroFraction float64
}

// DefaultOptions returns the stock rotation search settings.
func DefaultOptions() Options {
	return Options{RotationStep: 90, MinZeroFraction: 0.5}
}

const translationEpsilon = 1e-6

// ReorientCharts mirrors every chart with clockwise texture coordinates so
// that all charts share the counter-clockwise convention. It returns the
// number of mirrored charts.
func ReorientCharts(g *graph.Graph) int {
	n := 0
	for _, c := range g.Charts() {
		if c.UVFlipped() {
			mirror(g, c)
			n++
		}
	}
	return n
}

// mirror reflects a chart about the vertical axis through its bounding box
// center.
func mirror(g *graph.Graph, c *graph.Chart) {
	lo, hi := c.UVBox()
	s := lo[0] + hi[0]
	for _, f := range c.Faces {
		face := &g.Mesh.Faces[f]
		for k := range face.WT {
			face.WT[k][0] = s - face.WT[k][0]
		}
	}
	g.Refresh(c.ID)
}

// RotateChartForResampling restores the input orientation of charts that
// were mirrored, then measures the area of the chart that can be copied
// from the input texture without resampling. If that area is large enough
// the chart keeps its orientation and the anchor wedge is returned with the
// area. Otherwise the chart is rotated to the angle with the smallest
// bounding box and -1 is returned.
func RotateChartForResampling(g *graph.Graph, c *graph.Chart, flipped map[graph.ChartID]bool, opt Options) (int, float64) {
	if flipped[c.ID] && !c.UVFlipped() {
		mirror(g, c)
	}
	if c.AreaUV() == 0 {
		return -1, 0
	}

	m := g.Mesh
	if m.HasWedgeTexCoordStorage() {
		anchor, area := zeroResampling(m, c.Faces)
		if anchor >= 0 && area >= opt.MinZeroFraction*c.Area3D() {
			return anchor, area
		}
	}

	angle := bestAngle(m, c.Faces, opt.RotationStep)
	if angle != 0 {
		lo, hi := c.UVBox()
		cx, cy := (lo[0]+hi[0])/2, (lo[1]+hi[1])/2
		xf := mathutil.Mat3Mul(mathutil.Translate(cx, cy), mathutil.Mat3Mul(mathutil.RotZ(angle), mathutil.Translate(-cx, -cy)))
		for _, f := range c.Faces {
			face := &m.Faces[f]
			for k := range face.WT {
				x, y := xf.Apply(face.WT[k][0], face.WT[k][1])
				face.WT[k] = vec2.T{x, y}
			}
		}
		g.Refresh(c.ID)
	}
	return -1, 0
}

// zeroResampling groups the faces whose current coordinates are their
// input coordinates moved by one common translation and returns the first
// wedge and the 3D area of the largest group.
func zeroResampling(m *mesh.Mesh, faces []int) (int, float64) {
	type group struct {
		first int
		area  float64
	}
	groups := make(map[[2]int64]*group)
	var order [][2]int64
	for _, f := range faces {
		t, ok := translationOf(m, f)
		if !ok {
			continue
		}
		key := [2]int64{int64(math.Round(t[0] / translationEpsilon / 10)), int64(math.Round(t[1] / translationEpsilon / 10))}
		gr, ok := groups[key]
		if !ok {
			gr = &group{first: f}
			groups[key] = gr
			order = append(order, key)
		}
		gr.area += m.Area3D(f)
	}
	best := -1
	var bestArea float64
	for _, key := range order {
		if gr := groups[key]; gr.area > bestArea {
			best, bestArea = 3*gr.first, gr.area
		}
	}
	return best, bestArea
}

// translationOf returns the translation taking the stored coordinates of f
// onto the current ones, if the face moved by a pure translation.
func translationOf(m *mesh.Mesh, f int) (vec2.T, bool) {
	cur := m.Faces[f].WT
	src := m.Stored(f).WT
	t := vec2.Sub(&cur[0], &src[0])
	for k := 1; k < 3; k++ {
		d := vec2.Sub(&cur[k], &src[k])
		if math.Abs(d[0]-t[0]) > translationEpsilon || math.Abs(d[1]-t[1]) > translationEpsilon {
			return vec2.T{}, false
		}
	}
	return t, true
}

// bestAngle returns the rotation in [0, 90) degrees, or the one aligning
// the principal axis with u, that minimizes the bounding box area.
func bestAngle(m *mesh.Mesh, faces []int, step float64) float64 {
	pts := make([][2]float64, 0, 3*len(faces))
	for _, f := range faces {
		for _, p := range m.Faces[f].WT {
			pts = append(pts, [2]float64(p))
		}
	}

	candidates := []float64{0}
	if step > 0 && step < 90 {
		for a := step; a < 90; a += step {
			candidates = append(candidates, mathutil.Deg2Rad(a))
		}
	}
	candidates = append(candidates, -mathutil.PrincipalAngle(pts))

	best, bestArea := 0.0, boxArea(pts, 0)
	for _, a := range candidates[1:] {
		if area := boxArea(pts, a); area < bestArea*(1-1e-9) {
			best, bestArea = a, area
		}
	}
	return best
}

func boxArea(pts [][2]float64, angle float64) float64 {
	c, s := math.Cos(angle), math.Sin(angle)
	x0, y0 := math.Inf(1), math.Inf(1)
	x1, y1 := math.Inf(-1), math.Inf(-1)
	for _, p := range pts {
		x := c*p[0] - s*p[1]
		y := s*p[0] + c*p[1]
		x0, x1 = math.Min(x0, x), math.Max(x1, x)
		y0, y1 = math.Min(y0, y), math.Max(y1, y)
	}
	return (x1 - x0) * (y1 - y0)
}
