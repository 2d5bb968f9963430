package packing

import (
	"math"

	"github.com/flywave/go3d/float64/vec2"

	"texdefrag/internal/graph"
)

// TrimTexture moves the content of each sheet so that it starts at the
// gutter and shrinks the sheet to the content plus the gutter, rounded up
// to a multiple of granularity. Content moves by whole texels only.
func TrimTexture(g *graph.Graph, charts []*graph.Chart, sizes []TextureSize, gutter, granularity int) []TextureSize {
	if granularity < 1 {
		granularity = 1
	}
	n := len(sizes)
	lo := make([]vec2.T, n)
	hi := make([]vec2.T, n)
	used := make([]bool, n)
	for i := range lo {
		lo[i] = vec2.T{math.Inf(1), math.Inf(1)}
		hi[i] = vec2.T{math.Inf(-1), math.Inf(-1)}
	}
	for _, c := range charts {
		s := c.Tex
		if s < 0 || s >= n || c.FN() == 0 {
			continue
		}
		cl, ch := c.UVBox()
		lo[s] = vec2.T{math.Min(lo[s][0], cl[0]), math.Min(lo[s][1], cl[1])}
		hi[s] = vec2.T{math.Max(hi[s][0], ch[0]), math.Max(hi[s][1], ch[1])}
		used[s] = true
	}

	out := make([]TextureSize, n)
	shift := make([]vec2.T, n)
	for s := range sizes {
		if !used[s] {
			out[s] = sizes[s]
			continue
		}
		dx := float64(gutter) - math.Floor(lo[s][0])
		dy := float64(gutter) - math.Floor(lo[s][1])
		shift[s] = vec2.T{dx, dy}
		w := int(math.Ceil(hi[s][0]+dx)) + gutter
		h := int(math.Ceil(hi[s][1]+dy)) + gutter
		out[s] = TextureSize{W: roundUp(w, granularity), H: roundUp(h, granularity)}
	}

	m := g.Mesh
	for _, c := range charts {
		s := c.Tex
		if s < 0 || s >= n || !used[s] {
			continue
		}
		d := shift[s]
		if d[0] == 0 && d[1] == 0 {
			continue
		}
		for _, f := range c.Faces {
			face := &m.Faces[f]
			for k := range face.WT {
				face.WT[k] = vec2.Add(&face.WT[k], &d)
			}
		}
		g.Refresh(c.ID)
	}
	return out
}

func roundUp(x, k int) int {
	return (x + k - 1) / k * k
}
