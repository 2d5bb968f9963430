package optimizer

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/flywave/go3d/float64/vec2"
	"github.com/flywave/go3d/float64/vec3"
	"go.uber.org/zap"

	"texdefrag/internal/config"
	"texdefrag/internal/graph"
	"texdefrag/internal/mathutil"
	"texdefrag/internal/mesh"
)

// strip builds n unit squares in a row. Square i is parameterized at s
// texels per unit and moved by xf(i) in texture space, so every square is
// its own chart unless xf keeps them in place.
func strip(n int, s float64, xf func(i int) mathutil.Mat3) *mesh.Mesh {
	var pos []vec3.T
	for i := 0; i <= n; i++ {
		pos = append(pos, vec3.T{float64(i), 0, 0})
	}
	for i := 0; i <= n; i++ {
		pos = append(pos, vec3.T{float64(i), 1, 0})
	}
	top := func(i int) int { return n + 1 + i }
	var faces []mesh.Face
	for i := 0; i < n; i++ {
		t := xf(i)
		for _, tri := range [][3]int{{i, i + 1, top(i + 1)}, {i, top(i + 1), top(i)}} {
			f := mesh.Face{V: tri}
			for k, v := range tri {
				x, y := t.Apply(pos[v][0]*s, pos[v][1]*s)
				f.WT[k] = vec2.T{x, y}
			}
			faces = append(faces, f)
		}
	}
	return mesh.New("strip", pos, faces)
}

func spread(gap float64) func(i int) mathutil.Mat3 {
	return func(i int) mathutil.Mat3 { return mathutil.Translate(gap*float64(i), 0) }
}

func defaultParams() Params {
	return ParamsFromConfig(config.Default().Algorithm)
}

func run(t *testing.T, m *mesh.Mesh, p Params) (*graph.Graph, *State, Outcome) {
	t.Helper()
	g, err := graph.ComputeGraph(m, nil)
	if err != nil {
		t.Fatal(err)
	}
	s := InitializeState(g, p)
	out, err := GreedyOptimization(context.Background(), g, s, p, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	return g, s, out
}

func TestMergeTwoSquares(t *testing.T) {
	g, s, out := run(t, strip(2, 10, spread(20)), defaultParams())
	if out != Converged {
		t.Errorf("outcome = %v", out)
	}
	if g.Count() != 1 {
		t.Fatalf("Count = %d, want 1", g.Count())
	}
	if b := g.BorderUV(); b >= 70 || math.Abs(b-60) > 1e-6 {
		t.Errorf("BorderUV = %g, want 60", b)
	}
	if len(s.Changes) != 1 || s.Changes[0].A != 0 || s.Changes[0].B != 1 {
		t.Fatalf("changes = %+v", s.Changes)
	}
	if s.GlobalDistortion() > 1e-6 {
		t.Errorf("global distortion = %g", s.GlobalDistortion())
	}
}

func TestMergeRotatedChart(t *testing.T) {
	xf := func(i int) mathutil.Mat3 {
		if i == 0 {
			return mathutil.Mat3Identity()
		}
		return mathutil.Mat3Mul(mathutil.Translate(50, 50), mathutil.RotZ(math.Pi/2))
	}
	g, s, _ := run(t, strip(2, 10, xf), defaultParams())
	if g.Count() != 1 {
		t.Fatalf("Count = %d, rejected %v", g.Count(), s.Rejected)
	}
	if math.Abs(s.Changes[0].MatchingError) > 1e-6 {
		t.Errorf("matching error = %g", s.Changes[0].MatchingError)
	}
}

func TestSingleChartConverges(t *testing.T) {
	m := strip(3, 10, func(int) mathutil.Mat3 { return mathutil.Mat3Identity() })
	before := make([][3]vec2.T, m.FN())
	for f := range m.Faces {
		before[f] = m.Faces[f].WT
	}
	g, s, out := run(t, m, defaultParams())
	if out != Converged {
		t.Errorf("outcome = %v", out)
	}
	if g.Count() != 1 || len(s.Changes) != 0 || s.Iterations != 0 {
		t.Fatalf("Count = %d, changes = %d, iterations = %d", g.Count(), len(s.Changes), s.Iterations)
	}
	for f := range m.Faces {
		if m.Faces[f].WT != before[f] {
			t.Errorf("face %d moved from %v to %v", f, before[f], m.Faces[f].WT)
		}
	}
}

// randomStrip places every square of a strip at a random rotation and
// offset. A square keeps its left neighbor's transform with probability
// 1/4, so some pairs start out connected in texture space.
func randomStrip(r *rand.Rand, n int, s float64) *mesh.Mesh {
	xfs := make([]mathutil.Mat3, n)
	for i := range xfs {
		if i > 0 && r.Intn(4) == 0 {
			xfs[i] = xfs[i-1]
			continue
		}
		place := mathutil.Translate(8*s*float64(i)+r.Float64()*s, r.Float64()*s)
		turn := mathutil.RotZ(r.Float64() * 2 * math.Pi)
		xfs[i] = mathutil.Mat3Mul(place, mathutil.Mat3Mul(turn, mathutil.Translate(-s*float64(i), 0)))
	}
	return strip(n, s, func(i int) mathutil.Mat3 { return xfs[i] })
}

func TestRandomStripsHoldTolerances(t *testing.T) {
	p := defaultParams()
	for seed := int64(1); seed <= 30; seed++ {
		r := rand.New(rand.NewSource(seed))
		m := randomStrip(r, 2+r.Intn(5), 5+r.Float64()*10)
		g, err := graph.ComputeGraph(m, nil)
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		count, border := g.Count(), g.BorderUV()
		s := InitializeState(g, p)
		if _, err := GreedyOptimization(context.Background(), g, s, p, zap.NewNop()); err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		if g.Count() != count-len(s.Changes) {
			t.Errorf("seed %d: Count = %d after %d merges of %d charts", seed, g.Count(), len(s.Changes), count)
		}
		if g.BorderUV() > border+1e-6 {
			t.Errorf("seed %d: BorderUV grew from %g to %g", seed, border, g.BorderUV())
		}
		for i, c := range s.Changes {
			if c.BorderAfter >= c.BorderBefore {
				t.Errorf("seed %d change %d: border %g -> %g", seed, i, c.BorderBefore, c.BorderAfter)
			}
			if c.MatchingError > p.MatchingThreshold ||
				c.LocalDistortion > p.DistortionTolerance ||
				c.GlobalDistortion > p.GlobalDistortionThreshold ||
				c.BoundaryRatio > p.BoundaryTolerance+ratioEpsilon {
				t.Errorf("seed %d change %d exceeds tolerances: %+v", seed, i, c)
			}
		}
		if d := s.GlobalDistortion(); d > p.GlobalDistortionThreshold {
			t.Errorf("seed %d: global distortion = %g", seed, d)
		}
	}
}

func TestMatchingThresholdRejects(t *testing.T) {
	// the second square is parameterized at twice the density
	m := strip(2, 10, spread(40))
	for f := 2; f < 4; f++ {
		for k := range m.Faces[f].WT {
			m.Faces[f].WT[k][0] *= 2
			m.Faces[f].WT[k][1] *= 2
		}
	}
	p := defaultParams()
	p.MatchingThreshold = 1
	g, s, _ := run(t, m, p)
	if g.Count() != 2 {
		t.Fatalf("Count = %d, want 2", g.Count())
	}
	if s.Rejected[RejectMatching] != 1 {
		t.Errorf("rejected = %v", s.Rejected)
	}
	if len(s.Changes) != 0 {
		t.Errorf("changes = %v", s.Changes)
	}
}

func TestRejectedMergeRestoresMesh(t *testing.T) {
	m := strip(2, 10, spread(40))
	for f := 2; f < 4; f++ {
		for k := range m.Faces[f].WT {
			m.Faces[f].WT[k][1] *= 3
		}
	}
	before := make([][3]vec2.T, m.FN())
	for f := range m.Faces {
		before[f] = m.Faces[f].WT
	}
	p := defaultParams()
	p.MatchingThreshold = 100
	// no merge can pass a negative threshold, so the candidate is fully
	// evaluated and then undone
	p.GlobalDistortionThreshold = -1
	g, s, _ := run(t, m, p)
	if g.Count() != 2 || len(s.Changes) != 0 {
		t.Fatalf("Count = %d, changes = %d", g.Count(), len(s.Changes))
	}
	for f := range m.Faces {
		if m.Faces[f].WT != before[f] {
			t.Fatalf("face %d changed from %v to %v", f, before[f], m.Faces[f].WT)
		}
	}
}

func TestStripMergesMonotonically(t *testing.T) {
	m := strip(4, 10, spread(30))
	g, err := graph.ComputeGraph(m, nil)
	if err != nil {
		t.Fatal(err)
	}
	p := defaultParams()
	s := InitializeState(g, p)
	if _, err := GreedyOptimization(context.Background(), g, s, p, zap.NewNop()); err != nil {
		t.Fatal(err)
	}
	if g.Count() != 1 || math.Abs(g.BorderUV()-100) > 1e-6 {
		t.Fatalf("Count = %d BorderUV = %g", g.Count(), g.BorderUV())
	}
	for i, c := range s.Changes {
		if c.BorderAfter >= c.BorderBefore {
			t.Errorf("change %d grew the border: %g -> %g", i, c.BorderBefore, c.BorderAfter)
		}
		if c.LocalDistortion > p.DistortionTolerance ||
			c.GlobalDistortion > p.GlobalDistortionThreshold ||
			c.BoundaryRatio > p.BoundaryTolerance+ratioEpsilon {
			t.Errorf("change %d exceeds tolerances: %+v", i, c)
		}
	}
}

func TestBorderReductionTarget(t *testing.T) {
	p := defaultParams()
	p.UVReduction = 0.1
	g, s, out := run(t, strip(3, 10, spread(30)), p)
	// 120 texels of border; the first merge reaches 100 <= 108
	if g.Count() != 2 || len(s.Changes) != 1 {
		t.Fatalf("Count = %d, changes = %d", g.Count(), len(s.Changes))
	}
	if out != Converged {
		t.Errorf("outcome = %v", out)
	}
}

func TestCancelledContext(t *testing.T) {
	g, err := graph.ComputeGraph(strip(2, 10, spread(20)), nil)
	if err != nil {
		t.Fatal(err)
	}
	p := defaultParams()
	s := InitializeState(g, p)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := GreedyOptimization(ctx, g, s, p, zap.NewNop()); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if g.Count() != 2 {
		t.Errorf("Count = %d after cancelled run", g.Count())
	}
}

func TestFinalize(t *testing.T) {
	g, _, _ := run(t, strip(2, 10, spread(20)), defaultParams())
	dup := Finalize(g)
	if dup != 0 {
		t.Errorf("duplicated vertices = %d, want 0 for a single chart", dup)
	}
	for f := range g.Mesh.Faces {
		if g.Mesh.Faces[f].Tex != g.Chart(0).Tex {
			t.Errorf("face %d tex = %d", f, g.Mesh.Faces[f].Tex)
		}
	}
}

func TestDefaultScore(t *testing.T) {
	g, err := graph.ComputeGraph(strip(2, 10, spread(20)), nil)
	if err != nil {
		t.Fatal(err)
	}
	c := Candidate{Edge: g.Edge(0, 1), A: g.Chart(0), B: g.Chart(1)}
	if got := DefaultScore(c); math.Abs(got-0.25) > 1e-9 {
		t.Errorf("score = %g, want 0.25", got)
	}
	c.MatchingError = 1
	if got := DefaultScore(c); math.Abs(got-0.125) > 1e-9 {
		t.Errorf("score = %g, want 0.125", got)
	}
}

func TestQueueOrder(t *testing.T) {
	var q candidateQueue
	q.push(entry{candidateKey{A: 2, B: 3}, 0.5})
	q.push(entry{candidateKey{A: 1, B: 4}, 0.5})
	q.push(entry{candidateKey{A: 5, B: 6}, 0.9})
	q.push(entry{candidateKey{A: 1, B: 2}, 0.5})
	want := []candidateKey{{A: 5, B: 6}, {A: 1, B: 2}, {A: 1, B: 4}, {A: 2, B: 3}}
	for i, w := range want {
		if got := q.pop().candidateKey; got != w {
			t.Fatalf("pop %d = %+v, want %+v", i, got, w)
		}
	}
}
