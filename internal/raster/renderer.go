// Package raster renders the repacked atlas by resampling every face from
// its input texture position into its new sheet position.
package raster

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/image/vector"

	"texdefrag/internal/graph"
	"texdefrag/internal/mesh"
	"texdefrag/internal/packing"
	"texdefrag/internal/texture"
)

// Filter selects the resampling kernel.
type Filter int

const (
	Nearest Filter = iota
	Linear
	Cubic
)

func (f Filter) String() string {
	switch f {
	case Nearest:
		return "nearest"
	case Linear:
		return "linear"
	case Cubic:
		return "cubic"
	}
	return fmt.Sprintf("Filter(%d)", int(f))
}

// ParseFilter parses a filter name.
func ParseFilter(s string) (Filter, error) {
	switch strings.ToLower(s) {
	case "nearest":
		return Nearest, nil
	case "linear", "bilinear":
		return Linear, nil
	case "cubic", "catmullrom":
		return Cubic, nil
	}
	return Linear, fmt.Errorf("raster: unknown filter %q", s)
}

// Options controls RenderTexture.
type Options struct {
	Filter     Filter
	Background color.NRGBA
	Workers    int
}

// Atlas is the rendered output: one image per sheet and the mask of
// texels covered by some chart.
type Atlas struct {
	Sheets   []*image.NRGBA
	Coverage []*image.Alpha
}

// group is a set of faces rendered into one tile.
type group struct {
	sheet int
	faces []int
	rect  image.Rectangle
}

// RenderTexture resamples the input textures into sheets of the given
// sizes. Each face is read from its stored input coordinates and written
// at its current coordinates. Charts are rendered in parallel into private
// tiles that are then composited in a fixed order.
func RenderTexture(ctx context.Context, m *mesh.Mesh, textures *texture.Object, sizes []packing.TextureSize, opt Options, log *zap.Logger) (*Atlas, error) {
	if !m.HasWedgeTexCoordStorage() {
		return nil, fmt.Errorf("raster: %w", mesh.ErrNoWedgeTexCoords)
	}

	atlas := &Atlas{
		Sheets:   make([]*image.NRGBA, len(sizes)),
		Coverage: make([]*image.Alpha, len(sizes)),
	}
	for i, s := range sizes {
		r := image.Rect(0, 0, s.W, s.H)
		img := image.NewNRGBA(r)
		bg := opt.Background
		for p := 0; p < len(img.Pix); p += 4 {
			img.Pix[p] = bg.R
			img.Pix[p+1] = bg.G
			img.Pix[p+2] = bg.B
			img.Pix[p+3] = bg.A
		}
		atlas.Sheets[i] = img
		atlas.Coverage[i] = image.NewAlpha(r)
	}

	groups := faceGroups(m, sizes)
	tiles := make([]*Tile, len(groups))

	workers := opt.Workers
	if workers < 1 {
		workers = 1
	}
	var rendered atomic.Int64
	jobs := make(chan int, workers*2)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			z := vector.NewRasterizer(1, 1)
			for gi := range jobs {
				if ctx.Err() != nil {
					continue
				}
				tiles[gi] = renderGroup(m, textures, groups[gi], z, opt.Filter)
				rendered.Add(1)
			}
		}()
	}
	for gi := range groups {
		jobs <- gi
	}
	close(jobs)
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, t := range tiles {
		if t != nil {
			t.composite(atlas.Sheets[t.Sheet], atlas.Coverage[t.Sheet])
		}
	}

	log.Debug("rendered atlas",
		zap.Int("sheets", len(sizes)),
		zap.Int64("tiles", rendered.Load()),
		zap.Stringer("filter", opt.Filter))
	return atlas, nil
}

func renderGroup(m *mesh.Mesh, textures *texture.Object, g group, z *vector.Rasterizer, filter Filter) *Tile {
	t := NewTile(g.sheet, g.rect)
	for _, f := range g.faces {
		st := m.Stored(f)
		if st.Tex < 0 || st.Tex >= textures.Count() {
			continue
		}
		var dst, src [3][2]float64
		for k := 0; k < 3; k++ {
			dst[k] = [2]float64(m.Faces[f].WT[k])
			src[k] = [2]float64(st.WT[k])
		}
		if mesh.SignedArea(m.Faces[f].WT) == 0 {
			continue
		}
		RasterizeTriangle(t, z, dst, src, textures.Images[st.Tex], filter)
	}
	return t
}

// faceGroups splits the faces into texture-space islands per sheet and
// computes the tile rectangle of each.
func faceGroups(m *mesh.Mesh, sizes []packing.TextureSize) []group {
	parent := make([]int, m.FN())
	for i := range parent {
		parent[i] = i
	}
	find := func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	for f := range m.Faces {
		for i := 0; i < 3; i++ {
			n := m.Faces[f].FF[i]
			if n < 0 || n < f {
				continue
			}
			if graph.UVConnected(m, f, i) {
				ra, rb := find(f), find(n)
				if ra != rb {
					parent[rb] = ra
				}
			}
		}
	}

	index := make(map[int]int)
	var groups []group
	for f := range m.Faces {
		sheet := m.Faces[f].Tex
		if sheet < 0 || sheet >= len(sizes) {
			continue
		}
		clip := image.Rect(0, 0, sizes[sheet].W, sizes[sheet].H)
		var tri [3][2]float64
		for k := 0; k < 3; k++ {
			tri[k] = [2]float64(m.Faces[f].WT[k])
		}
		fr := triangleBounds(tri, 1, clip)
		if fr.Empty() {
			continue
		}
		r := find(f)
		gi, ok := index[r]
		if !ok {
			gi = len(groups)
			index[r] = gi
			groups = append(groups, group{sheet: sheet, rect: fr})
		}
		groups[gi].faces = append(groups[gi].faces, f)
		groups[gi].rect = groups[gi].rect.Union(fr)
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].sheet < groups[j].sheet })
	return groups
}
