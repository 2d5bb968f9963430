package packing

import (
	"math"

	"github.com/flywave/go3d/float64/vec2"

	"texdefrag/internal/graph"
)

const alignEpsilon = 1e-6

// IntegerShift moves charts by less than one texel. Anchored charts are
// moved so that their anchor wedge sits at its input position plus a whole
// number of texels, which lets the renderer copy their texels unchanged.
// Other charts get their bounding box minimum on a texel corner. It
// returns the number of anchored charts that could not be aligned.
func IntegerShift(g *graph.Graph, charts []*graph.Chart, sizes []TextureSize, anchors map[graph.ChartID]int) int {
	m := g.Mesh
	misaligned := 0
	for _, c := range charts {
		var d vec2.T
		anchor, anchored := anchors[c.ID]
		if anchored && m.HasWedgeTexCoordStorage() {
			f, k := anchor/3, anchor%3
			src := m.Stored(f).WT[k]
			off := vec2.Sub(&m.Faces[f].WT[k], &src)
			d = vec2.T{math.Round(off[0]) - off[0], math.Round(off[1]) - off[1]}
		} else {
			lo, _ := c.UVBox()
			d = vec2.T{math.Floor(lo[0]) - lo[0], math.Floor(lo[1]) - lo[1]}
			anchored = false
		}

		if !fits(c, d, sizes) {
			if anchored {
				misaligned++
			}
			continue
		}
		if d[0] != 0 || d[1] != 0 {
			for _, f := range c.Faces {
				face := &m.Faces[f]
				for k := range face.WT {
					face.WT[k] = vec2.Add(&face.WT[k], &d)
				}
			}
			g.Refresh(c.ID)
		}

		if anchored && !aligned(g, anchor) {
			misaligned++
		}
	}
	return misaligned
}

// fits reports whether the chart moved by d stays on its sheet.
func fits(c *graph.Chart, d vec2.T, sizes []TextureSize) bool {
	if c.Tex < 0 || c.Tex >= len(sizes) {
		return false
	}
	lo, hi := c.UVBox()
	s := sizes[c.Tex]
	return lo[0]+d[0] >= 0 && lo[1]+d[1] >= 0 && hi[0]+d[0] <= float64(s.W) && hi[1]+d[1] <= float64(s.H)
}

// aligned reports whether the face of the anchor wedge is a whole-texel
// translation of its input coordinates.
func aligned(g *graph.Graph, anchor int) bool {
	m := g.Mesh
	f := anchor / 3
	cur := m.Faces[f].WT
	src := m.Stored(f).WT
	for k := 0; k < 3; k++ {
		d := vec2.Sub(&cur[k], &src[k])
		if math.Abs(d[0]-math.Round(d[0])) > alignEpsilon || math.Abs(d[1]-math.Round(d[1])) > alignEpsilon {
			return false
		}
	}
	return true
}
