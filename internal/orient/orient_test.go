package orient

import (
	"math"
	"testing"

	"github.com/flywave/go3d/float64/vec2"
	"github.com/flywave/go3d/float64/vec3"

	"texdefrag/internal/graph"
	"texdefrag/internal/mathutil"
	"texdefrag/internal/mesh"
)

// rect returns a w×h rectangle with texture coordinates xf(position).
func rect(w, h float64, xf mathutil.Mat3) *mesh.Mesh {
	pos := []vec3.T{{0, 0, 0}, {w, 0, 0}, {w, h, 0}, {0, h, 0}}
	tris := [][3]int{{0, 1, 2}, {0, 2, 3}}
	faces := make([]mesh.Face, len(tris))
	for fi, tri := range tris {
		faces[fi].V = tri
		for k, v := range tri {
			x, y := xf.Apply(pos[v][0], pos[v][1])
			faces[fi].WT[k] = vec2.T{x, y}
		}
	}
	return mesh.New("rect", pos, faces)
}

func build(t *testing.T, m *mesh.Mesh) *graph.Graph {
	t.Helper()
	g, err := graph.ComputeGraph(m, nil)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func transform(g *graph.Graph, xf mathutil.Mat3) {
	m := g.Mesh
	for f := range m.Faces {
		for k := range m.Faces[f].WT {
			x, y := xf.Apply(m.Faces[f].WT[k][0], m.Faces[f].WT[k][1])
			m.Faces[f].WT[k] = vec2.T{x, y}
		}
	}
	for _, c := range g.Charts() {
		g.Refresh(c.ID)
	}
}

func TestReorientCharts(t *testing.T) {
	g := build(t, rect(4, 2, mathutil.Mat3Mul(mathutil.Translate(10, 0), mathutil.MirrorX())))
	c := g.Chart(0)
	if !c.UVFlipped() {
		t.Fatal("fixture not flipped")
	}
	lo0, hi0 := c.UVBox()
	if n := ReorientCharts(g); n != 1 {
		t.Fatalf("mirrored %d charts, want 1", n)
	}
	if c.UVFlipped() {
		t.Error("chart still flipped")
	}
	lo, hi := c.UVBox()
	if lo != lo0 || hi != hi0 {
		t.Errorf("box moved from %v-%v to %v-%v", lo0, hi0, lo, hi)
	}
	if n := ReorientCharts(g); n != 0 {
		t.Errorf("second pass mirrored %d charts", n)
	}
}

func TestRotateChartAnchored(t *testing.T) {
	g := build(t, rect(4, 2, mathutil.Mat3Diag(10, 10, 1)))
	g.Mesh.StoreWedgeTexCoords()
	transform(g, mathutil.Translate(5.5, 3))

	before := g.Mesh.Faces[0].WT
	anchor, area := RotateChartForResampling(g, g.Chart(0), nil, DefaultOptions())
	if anchor < 0 {
		t.Fatal("translated chart not anchored")
	}
	if math.Abs(area-8) > 1e-9 {
		t.Errorf("zero resampling area = %g, want 8", area)
	}
	if g.Mesh.Faces[0].WT != before {
		t.Error("anchored chart was moved")
	}
}

func TestRotateChartMinimizesBox(t *testing.T) {
	g := build(t, rect(10, 1, mathutil.Mat3Identity()))
	g.Mesh.StoreWedgeTexCoords()
	transform(g, mathutil.Mat3Mul(mathutil.Translate(20, 20), mathutil.RotZ(math.Pi/4)))

	c := g.Chart(0)
	w0, h0 := c.UVSize()
	opt := DefaultOptions()
	opt.RotationStep = 45
	anchor, _ := RotateChartForResampling(g, c, nil, opt)
	if anchor >= 0 {
		t.Fatal("rotated chart must not be anchored")
	}
	w, h := c.UVSize()
	if w*h >= w0*h0 || math.Abs(w*h-10) > 1e-6 {
		t.Errorf("box %gx%g (was %gx%g), want area 10", w, h, w0, h0)
	}
	if math.Abs(c.AreaUV()-10) > 1e-9 {
		t.Errorf("rotation changed the area to %g", c.AreaUV())
	}
}

func TestRotateChartRestoresMirror(t *testing.T) {
	g := build(t, rect(4, 2, mathutil.Mat3Mul(mathutil.Translate(10, 0), mathutil.MirrorX())))
	g.Mesh.StoreWedgeTexCoords()
	flipped := map[graph.ChartID]bool{0: true}
	ReorientCharts(g)

	anchor, _ := RotateChartForResampling(g, g.Chart(0), flipped, DefaultOptions())
	if !g.Chart(0).UVFlipped() {
		t.Error("chart orientation not restored")
	}
	if anchor < 0 {
		t.Error("chart restored to its input position should be anchored")
	}
}

func TestRotateZeroAreaChart(t *testing.T) {
	g := build(t, rect(4, 2, mathutil.Mat3Diag(0, 0, 1)))
	if anchor, area := RotateChartForResampling(g, g.Chart(0), nil, DefaultOptions()); anchor != -1 || area != 0 {
		t.Errorf("got %d %g for a zero-area chart", anchor, area)
	}
}
