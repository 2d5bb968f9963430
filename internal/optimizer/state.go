package optimizer

import (
	"math"

	"texdefrag/internal/arap"
	"texdefrag/internal/graph"
	"texdefrag/internal/mathutil"
)

// Outcome is the terminal state of a run. Both outcomes are successful.
type Outcome int

const (
	Converged Outcome = iota
	TimedOut
)

func (o Outcome) String() string {
	switch o {
	case Converged:
		return "converged"
	case TimedOut:
		return "timed out"
	}
	return "unknown"
}

// Change records one accepted merge.
type Change struct {
	A, B graph.ChartID // A absorbed B

	MatchingError    float64
	LocalDistortion  float64
	GlobalDistortion float64 // atlas-wide value after the merge
	BoundaryRatio    float64
	BorderBefore     float64 // border of A plus border of B
	BorderAfter      float64
	Expanded         bool  // the free region reached into A
	Moved            []int // faces whose texture coordinates changed
}

// Reject reasons, counted in State.Rejected.
const (
	RejectMatching   = "matching"
	RejectConflict   = "conflict"
	RejectLocal      = "local-distortion"
	RejectInjective  = "injectivity"
	RejectBoundary   = "boundary"
	RejectBorder     = "border-length"
	RejectGlobal     = "global-distortion"
	RejectDegenerate = "degenerate"
)

// State is the mutable state of one optimization run.
type State struct {
	Changes  []Change
	Rejected map[string]int

	InitialBorder float64
	Iterations    int

	queue    candidateQueue
	rejected map[candidateKey]struct{}

	energy    []float64 // current per-face energy
	baseline  []float64 // per-face energy of the input parameterization
	weight    []float64 // per-face 3D area, 0 for degenerate faces
	totalArea float64
	excess    float64 // sum of weight * max(0, energy - baseline)
}

// InitializeState measures the input parameterization and queues every
// chart pair of g.
func InitializeState(g *graph.Graph, p Params) *State {
	m := g.Mesh
	s := &State{
		Rejected:      make(map[string]int),
		InitialBorder: g.BorderUV(),
		rejected:      make(map[candidateKey]struct{}),
		energy:        make([]float64, m.FN()),
		baseline:      make([]float64, m.FN()),
		weight:        make([]float64, m.FN()),
	}
	minArea := m.DegenerateArea()
	for _, c := range g.Charts() {
		for _, f := range c.Faces {
			a := m.Area3D(f)
			if a <= minArea {
				continue
			}
			e, ok := arap.FaceEnergy(m, f, c.Scale, c.UVFlipped())
			if !ok {
				continue
			}
			s.weight[f] = a
			s.energy[f] = e
			s.baseline[f] = e
			s.totalArea += a
		}
	}
	for _, e := range g.Edges() {
		s.enqueue(g, p, e.A, e.B)
	}
	return s
}

// GlobalDistortion returns the area-weighted mean energy increase over
// the input parameterization.
func (s *State) GlobalDistortion() float64 {
	if s.totalArea == 0 {
		return 0
	}
	return s.excess / s.totalArea
}

// Changed returns the set of charts that absorbed another chart.
func (s *State) Changed() map[graph.ChartID]bool {
	out := make(map[graph.ChartID]bool, len(s.Changes))
	for _, c := range s.Changes {
		out[c.A] = true
	}
	return out
}

// Pending returns the number of queued candidates, stale ones included.
func (s *State) Pending() int { return s.queue.Len() }

func (s *State) faceExcess(f int, e float64) float64 {
	return s.weight[f] * math.Max(0, e-s.baseline[f])
}

// order returns the pair as (absorbing, absorbed): the larger chart by 3D
// area absorbs the smaller, ties go to the lower id.
func order(g *graph.Graph, x, y graph.ChartID) (graph.ChartID, graph.ChartID) {
	cx, cy := g.Chart(x), g.Chart(y)
	if cy.Area3D() > cx.Area3D() || (cy.Area3D() == cx.Area3D() && y < x) {
		return y, x
	}
	return x, y
}

// seamPoints pairs the texture coordinates of b and a at each seam vertex.
func seamPoints(g *graph.Graph, a, b graph.ChartID) (src, dst [][2]float64) {
	m := g.Mesh
	for _, h := range g.Seam(b, a) {
		fb := &m.Faces[h.Face]
		n := fb.FF[h.Edge]
		fa := &m.Faces[n]
		for _, c := range [2]int{h.Edge, (h.Edge + 1) % 3} {
			for k := 0; k < 3; k++ {
				if fa.V[k] == fb.V[c] {
					src = append(src, [2]float64(fb.WT[c]))
					dst = append(dst, [2]float64(fa.WT[k]))
				}
			}
		}
	}
	return src, dst
}

// alignment returns the rigid transform taking b onto a along their seam
// and its RMS residual in texels.
func alignment(g *graph.Graph, a, b graph.ChartID) (mathutil.Mat3, float64) {
	src, dst := seamPoints(g, a, b)
	reflect := g.Chart(a).UVFlipped() != g.Chart(b).UVFlipped()
	return mathutil.FitRigid2D(src, dst, reflect)
}

func (s *State) enqueue(g *graph.Graph, p Params, x, y graph.ChartID) {
	e := g.Edge(x, y)
	if e == nil {
		return
	}
	a, b := order(g, x, y)
	ca, cb := g.Chart(a), g.Chart(b)
	key := candidateKey{A: a, B: b, VA: ca.Version, VB: cb.Version}
	if _, ok := s.rejected[key]; ok {
		return
	}
	_, rms := alignment(g, a, b)
	score := p.score()(Candidate{Edge: e, A: ca, B: cb, MatchingError: rms})
	if math.IsNaN(score) {
		score = 0
	}
	s.queue.push(entry{candidateKey: key, score: score})
}

func (s *State) reject(key candidateKey, reason string) {
	s.rejected[key] = struct{}{}
	s.Rejected[reason]++
}
