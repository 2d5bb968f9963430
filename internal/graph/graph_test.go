package graph

import (
	"math"
	"slices"
	"testing"

	"github.com/flywave/go3d/float64/vec2"
	"github.com/flywave/go3d/float64/vec3"

	"texdefrag/internal/mesh"
)

// twoSquares builds two unit squares sharing the edge x=1. The texture
// coordinates are the positions times s; the right square is moved by off
// in texture space.
func twoSquares(s float64, off vec2.T) *mesh.Mesh {
	pos := []vec3.T{{0, 0, 0}, {1, 0, 0}, {2, 0, 0}, {0, 1, 0}, {1, 1, 0}, {2, 1, 0}}
	tris := [][3]int{{0, 1, 4}, {0, 4, 3}, {1, 2, 5}, {1, 5, 4}}
	faces := make([]mesh.Face, len(tris))
	for fi, tri := range tris {
		faces[fi].V = tri
		for k, v := range tri {
			uv := vec2.T{pos[v][0] * s, pos[v][1] * s}
			if fi >= 2 {
				uv = vec2.Add(&uv, &off)
			}
			faces[fi].WT[k] = uv
		}
	}
	return mesh.New("squares", pos, faces)
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestComputeGraphSingleChart(t *testing.T) {
	g, err := ComputeGraph(twoSquares(10, vec2.T{}), nil)
	if err != nil {
		t.Fatal(err)
	}
	if g.Count() != 1 {
		t.Fatalf("Count = %d, want 1", g.Count())
	}
	c := g.Chart(0)
	if c.FN() != 4 || !approx(c.BorderUV(), 60) || !approx(c.AreaUV(), 200) || !approx(c.Area3D(), 2) {
		t.Fatalf("chart: faces %d border %g areaUV %g area3D %g", c.FN(), c.BorderUV(), c.AreaUV(), c.Area3D())
	}
	if !approx(c.Scale, 10) {
		t.Errorf("Scale = %g, want 10", c.Scale)
	}
	if len(g.Edges()) != 0 {
		t.Errorf("single chart has %d edges", len(g.Edges()))
	}
}

func TestComputeGraphTwoCharts(t *testing.T) {
	g, err := ComputeGraph(twoSquares(10, vec2.T{20, 0}), nil)
	if err != nil {
		t.Fatal(err)
	}
	if g.Count() != 2 {
		t.Fatalf("Count = %d, want 2", g.Count())
	}
	if !approx(g.BorderUV(), 80) {
		t.Errorf("BorderUV = %g, want 80", g.BorderUV())
	}
	if got := g.Neighbors(0); !slices.Equal(got, []ChartID{1}) {
		t.Fatalf("Neighbors(0) = %v", got)
	}
	e := g.Edge(0, 1)
	if e == nil || e != g.Edge(1, 0) {
		t.Fatal("edge missing or not shared")
	}
	if !approx(e.LenA, 10) || !approx(e.LenB, 10) || !approx(e.Len3D, 1) {
		t.Errorf("edge lengths %g %g %g", e.LenA, e.LenB, e.Len3D)
	}
	if e.Other(0) != 1 || !approx(e.SideLen(1), 10) {
		t.Errorf("Other/SideLen wrong")
	}
	if seam := g.Seam(0, 1); len(seam) != 1 {
		t.Errorf("seam = %v", seam)
	}
	lo, hi := g.Chart(1).UVBox()
	if lo != (vec2.T{30, 0}) || hi != (vec2.T{40, 10}) {
		t.Errorf("UVBox = %v %v", lo, hi)
	}
}

func TestComputeGraphTextureSplitsCharts(t *testing.T) {
	m := twoSquares(10, vec2.T{})
	m.Faces[2].Tex, m.Faces[3].Tex = 1, 1
	g, err := ComputeGraph(m, nil)
	if err != nil {
		t.Fatal(err)
	}
	if g.Count() != 2 {
		t.Fatalf("Count = %d, want 2", g.Count())
	}
}

func TestComputeGraphRequiresWedges(t *testing.T) {
	m := twoSquares(1, vec2.T{})
	m.LoadMask = 0
	if _, err := ComputeGraph(m, nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestMerge(t *testing.T) {
	g, err := ComputeGraph(twoSquares(10, vec2.T{20, 0}), nil)
	if err != nil {
		t.Fatal(err)
	}
	va, vb := g.Chart(0).Version, g.Chart(1).Version

	// write the merged parameterization first
	m := g.Mesh
	off := vec2.T{-20, 0}
	for _, f := range g.Chart(1).Faces {
		for k := range m.Faces[f].WT {
			m.Faces[f].WT[k] = vec2.Add(&m.Faces[f].WT[k], &off)
		}
	}
	g.Merge(0, 1)

	if g.Count() != 1 || g.Chart(1).Alive {
		t.Fatalf("Count = %d, chart 1 alive = %v", g.Count(), g.Chart(1).Alive)
	}
	a := g.Chart(0)
	if a.FN() != 4 || !approx(a.BorderUV(), 60) {
		t.Errorf("merged chart: faces %d border %g", a.FN(), a.BorderUV())
	}
	if a.Version == va || g.Chart(1).Version == vb {
		t.Error("versions not bumped")
	}
	for f := range m.Faces {
		if g.ChartOf(f) != 0 {
			t.Errorf("face %d belongs to %d", f, g.ChartOf(f))
		}
	}
	if len(g.Neighbors(0)) != 0 || len(g.Edges()) != 0 {
		t.Error("stale adjacency after merge")
	}
}

func TestUVFlipped(t *testing.T) {
	m := twoSquares(10, vec2.T{20, 0})
	for _, f := range []int{2, 3} {
		for k := range m.Faces[f].WT {
			m.Faces[f].WT[k][0] = -m.Faces[f].WT[k][0]
		}
	}
	g, err := ComputeGraph(m, nil)
	if err != nil {
		t.Fatal(err)
	}
	if g.Chart(0).UVFlipped() || !g.Chart(1).UVFlipped() {
		t.Errorf("flipped = %v %v", g.Chart(0).UVFlipped(), g.Chart(1).UVFlipped())
	}
}
