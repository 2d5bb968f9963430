// Package packing places charts into atlas sheets and aligns them to the
// texel grid.
package packing

import (
	"errors"
	"math"
	"slices"

	"github.com/flywave/go3d/float64/vec2"

	"texdefrag/internal/graph"
)

// ErrPackFailed is returned by callers when fewer charts were packed than
// requested.
var ErrPackFailed = errors.New("packing: not all charts fit")

// Options controls sheet allocation.
type Options struct {
	Gutter       int // empty texels around every chart
	MaxSheetSize int // power of two
	MaxSheets    int // 0 = unlimited
}

// TextureSize is the pixel size of one output sheet.
type TextureSize struct {
	W, H int
}

// Item is a rectangle to pack.
type Item struct {
	W, H      int
	Rotatable bool
}

// Placement is the position of an Item. X, Y is the minimum corner of the
// item itself, inside the gutter.
type Placement struct {
	Sheet   int
	X, Y    int
	Rotated bool
	Packed  bool
}

// PackRects packs items into square power-of-two sheets. A single sheet
// grows until everything fits or MaxSheetSize is reached; past that,
// sheets of MaxSheetSize are filled one after the other. Items are placed
// by decreasing area, then by index, so equal inputs give equal outputs.
// It returns the placements, the sheet sizes and the number of packed items.
func PackRects(items []Item, opt Options) ([]Placement, []TextureSize, int) {
	g := opt.Gutter
	order := make([]int, len(items))
	var total, maxSide int
	for i, it := range items {
		order[i] = i
		total += (it.W + g) * (it.H + g)
		maxSide = max(maxSide, it.W+g, it.H+g)
	}
	slices.SortStableFunc(order, func(a, b int) int {
		aa, ab := items[a].W*items[a].H, items[b].W*items[b].H
		if aa != ab {
			return ab - aa
		}
		sa, sb := max(items[a].W, items[a].H), max(items[b].W, items[b].H)
		if sa != sb {
			return sb - sa
		}
		return a - b
	})

	side := nextPow2(max(maxSide+g, int(math.Ceil(math.Sqrt(float64(total))))+g))
	if opt.MaxSheetSize > 0 && side > opt.MaxSheetSize {
		side = opt.MaxSheetSize
	}

	for {
		placements, n := fill(items, order, side, g)
		if n == len(items) {
			return placements, []TextureSize{{side, side}}, n
		}
		if opt.MaxSheetSize > 0 && side >= opt.MaxSheetSize {
			break
		}
		side *= 2
	}

	// multiple sheets of the maximum size
	placements := make([]Placement, len(items))
	var sizes []TextureSize
	remaining := order
	packed := 0
	for len(remaining) > 0 {
		if opt.MaxSheets > 0 && len(sizes) >= opt.MaxSheets {
			break
		}
		sheet := len(sizes)
		bin := NewMaxRects(side-g, side-g)
		var left []int
		for _, i := range remaining {
			it := items[i]
			r, rot, ok := bin.Insert(it.W+g, it.H+g, it.Rotatable)
			if !ok {
				left = append(left, i)
				continue
			}
			placements[i] = Placement{Sheet: sheet, X: r.X + g, Y: r.Y + g, Rotated: rot, Packed: true}
			packed++
		}
		if len(left) == len(remaining) {
			break
		}
		sizes = append(sizes, TextureSize{side, side})
		remaining = left
	}
	return placements, sizes, packed
}

// fill packs the items in order into one side×side sheet.
func fill(items []Item, order []int, side, g int) ([]Placement, int) {
	placements := make([]Placement, len(items))
	bin := NewMaxRects(side-g, side-g)
	n := 0
	for _, i := range order {
		it := items[i]
		r, rot, ok := bin.Insert(it.W+g, it.H+g, it.Rotatable)
		if !ok {
			continue
		}
		placements[i] = Placement{Sheet: 0, X: r.X + g, Y: r.Y + g, Rotated: rot, Packed: true}
		n++
	}
	return placements, n
}

func nextPow2(x int) int {
	p := 1
	for p < x {
		p <<= 1
	}
	return p
}

// chartRect returns the integer texel box enclosing a chart.
func chartRect(c *graph.Chart) (x0, y0, w, h int) {
	lo, hi := c.UVBox()
	x0, y0 = int(math.Floor(lo[0])), int(math.Floor(lo[1]))
	x1, y1 := int(math.Ceil(hi[0])), int(math.Ceil(hi[1]))
	return x0, y0, max(x1-x0, 1), max(y1-y0, 1)
}

// Pack places the charts into atlas sheets, moves their texture
// coordinates into sheet space and sets the texture index of their faces
// to the sheet. Anchored charts are never rotated. It returns the sheet
// sizes and the number of packed charts; charts that did not fit keep
// their coordinates.
func Pack(g *graph.Graph, charts []*graph.Chart, anchors map[graph.ChartID]int, opt Options) ([]TextureSize, int) {
	items := make([]Item, len(charts))
	for i, c := range charts {
		_, _, w, h := chartRect(c)
		_, anchored := anchors[c.ID]
		items[i] = Item{W: w, H: h, Rotatable: !anchored}
	}

	placements, sizes, packed := PackRects(items, opt)

	m := g.Mesh
	for i, c := range charts {
		pl := placements[i]
		if !pl.Packed {
			continue
		}
		x0, y0, w, _ := chartRect(c)
		x1 := x0 + w
		for _, f := range c.Faces {
			face := &m.Faces[f]
			for k, p := range face.WT {
				if pl.Rotated {
					face.WT[k] = vec2.T{float64(pl.X) + (p[1] - float64(y0)), float64(pl.Y) + (float64(x1) - p[0])}
				} else {
					face.WT[k] = vec2.T{float64(pl.X) + (p[0] - float64(x0)), float64(pl.Y) + (p[1] - float64(y0))}
				}
			}
			face.Tex = pl.Sheet
		}
		c.Tex = pl.Sheet
		g.Refresh(c.ID)
	}
	return sizes, packed
}
