package optimizer

import (
	"context"
	"errors"
	"math"

	"github.com/flywave/go3d/float64/vec2"

	"texdefrag/internal/arap"
	"texdefrag/internal/graph"
	"texdefrag/internal/mesh"
)

const ratioEpsilon = 1e-9

type wedgeBackup struct {
	wt  [3]vec2.T
	tex int
}

// evaluation is the outcome of trying one candidate.
type evaluation struct {
	change  Change
	excess  float64
	energy  map[int]float64
	reason  string
	backups map[int]wedgeBackup
}

// tryMerge aligns b onto a, stitches the seam and re-optimizes a free
// region. On success the mesh holds the merged parameterization; on
// failure the mesh is restored and reason is set.
func (s *State) tryMerge(ctx context.Context, g *graph.Graph, p Params, a, b graph.ChartID) (*evaluation, error) {
	m := g.Mesh
	ca, cb := g.Chart(a), g.Chart(b)
	ev := &evaluation{backups: make(map[int]wedgeBackup, ca.FN()+cb.FN())}
	ev.change = Change{A: a, B: b, BorderBefore: ca.BorderUV() + cb.BorderUV()}

	xf, rms := alignment(g, a, b)
	ev.change.MatchingError = rms
	if math.IsNaN(rms) || rms > p.MatchingThreshold {
		ev.reason = RejectMatching
		return ev, nil
	}

	inA := make(map[int]bool, ca.FN())
	inB := make(map[int]bool, cb.FN())
	faces := make([]int, 0, ca.FN()+cb.FN())
	for _, f := range ca.Faces {
		inA[f] = true
		faces = append(faces, f)
	}
	for _, f := range cb.Faces {
		inB[f] = true
		faces = append(faces, f)
	}
	for _, f := range faces {
		ev.backups[f] = wedgeBackup{wt: m.Faces[f].WT, tex: m.Faces[f].Tex}
	}

	for _, f := range cb.Faces {
		face := &m.Faces[f]
		for k := range face.WT {
			x, y := xf.Apply(face.WT[k][0], face.WT[k][1])
			face.WT[k] = vec2.T{x, y}
		}
		face.Tex = ca.Tex
	}

	connected := func(f, i int) bool {
		n := m.Faces[f].FF[i]
		if n < 0 {
			return false
		}
		if (inA[f] && inB[n]) || (inB[f] && inA[n]) {
			return true
		}
		return graph.UVConnected(m, f, i)
	}
	patch, err := arap.NewPatch(m, faces, connected, func(f int) bool { return inA[f] })
	if err != nil {
		s.restore(m, ev)
		if errors.Is(err, arap.ErrConflict) {
			ev.reason = RejectConflict
			return ev, nil
		}
		return nil, err
	}
	stitched := patch.Snapshot()

	mirrored := ca.UVFlipped()
	minArea := m.DegenerateArea()
	opt := arap.Options{Iterations: p.ARAPIterations, Scale: ca.Scale, Mirrored: mirrored}

	attempt := func(free []int) (float64, bool, error) {
		patch.Restore(stitched)
		patch.SetFree(free)
		if err := patch.Solve(ctx, opt); err != nil {
			return 0, false, err
		}
		patch.Apply()
		local := arap.Distortion(m, free, ca.Scale, mirrored, minArea)
		moved := make(map[int]bool, len(free))
		for _, f := range free {
			moved[f] = true
		}
		injective := !arap.Flipped(m, free, mirrored, minArea) && !arap.Overlaps(m, faces, moved)
		return local, injective, nil
	}

	free := append([]int(nil), cb.Faces...)
	local, injective, err := attempt(free)
	if err != nil {
		s.restore(m, ev)
		return nil, err
	}
	var freedA map[int]bool
	if local > p.DistortionTolerance || !injective {
		freedA = growRegion(g, a, b, p.OffsetFactor*cb.Area3D())
		if len(freedA) > 0 {
			free = append([]int(nil), cb.Faces...)
			for _, f := range ca.Faces {
				if freedA[f] {
					free = append(free, f)
				}
			}
			ev.change.Expanded = true
			local, injective, err = attempt(free)
			if err != nil {
				s.restore(m, ev)
				return nil, err
			}
		}
	}
	ev.change.LocalDistortion = local
	ev.change.Moved = free

	switch {
	case math.IsNaN(local) || local > p.DistortionTolerance:
		ev.reason = RejectLocal
	case !injective:
		ev.reason = RejectInjective
	}
	if ev.reason != "" {
		s.restore(m, ev)
		return ev, nil
	}

	// Only border on faces of A that the expanded region freed counts as
	// moved: B is realigned as a whole and A outside the region is pinned.
	// The ratio is therefore 0 unless the free region reached into A.
	perimeter, freedBorder := mergedBorder(m, faces, inA, inB, freedA)
	ev.change.BorderAfter = perimeter
	if perimeter > 0 {
		ev.change.BoundaryRatio = freedBorder / perimeter
	}
	switch {
	case ev.change.BoundaryRatio > p.BoundaryTolerance+ratioEpsilon:
		ev.reason = RejectBoundary
	case perimeter >= ev.change.BorderBefore:
		ev.reason = RejectBorder
	}
	if ev.reason != "" {
		s.restore(m, ev)
		return ev, nil
	}

	ev.energy = make(map[int]float64, len(faces))
	ev.excess = s.excess
	for _, f := range faces {
		if s.weight[f] == 0 {
			continue
		}
		e, ok := arap.FaceEnergy(m, f, ca.Scale, mirrored)
		if !ok {
			ev.reason = RejectDegenerate
			s.restore(m, ev)
			return ev, nil
		}
		ev.energy[f] = e
		ev.excess += s.faceExcess(f, e) - s.faceExcess(f, s.energy[f])
	}
	if s.totalArea > 0 {
		ev.change.GlobalDistortion = math.Max(0, ev.excess) / s.totalArea
	}
	if ev.change.GlobalDistortion > p.GlobalDistortionThreshold {
		ev.reason = RejectGlobal
		s.restore(m, ev)
		return ev, nil
	}
	return ev, nil
}

func (s *State) restore(m *mesh.Mesh, ev *evaluation) {
	for f, bk := range ev.backups {
		m.Faces[f].WT = bk.wt
		m.Faces[f].Tex = bk.tex
	}
}

// growRegion collects faces of a by breadth-first search from the seam
// with b until their 3D area reaches limit.
func growRegion(g *graph.Graph, a, b graph.ChartID, limit float64) map[int]bool {
	m := g.Mesh
	region := make(map[int]bool)
	if limit <= 0 {
		return region
	}
	var queue []int
	for _, h := range g.Seam(a, b) {
		if !region[h.Face] {
			region[h.Face] = true
			queue = append(queue, h.Face)
		}
	}
	var area float64
	for _, f := range queue {
		area += m.Area3D(f)
	}
	for len(queue) > 0 && area < limit {
		f := queue[0]
		queue = queue[1:]
		for i := 0; i < 3; i++ {
			n := m.Faces[f].FF[i]
			if n < 0 || region[n] || g.ChartOf(n) != a {
				continue
			}
			region[n] = true
			area += m.Area3D(n)
			queue = append(queue, n)
			if area >= limit {
				break
			}
		}
	}
	return region
}

// mergedBorder returns the texture-space perimeter of the union of the two
// charts and the part of it lying on faces of freedA.
func mergedBorder(m *mesh.Mesh, faces []int, inA, inB, freedA map[int]bool) (float64, float64) {
	var total, freed float64
	for _, f := range faces {
		for i := 0; i < 3; i++ {
			n := m.Faces[f].FF[i]
			if n >= 0 && (inA[n] || inB[n]) {
				continue
			}
			l := m.EdgeLengthUV(f, i)
			total += l
			if freedA[f] {
				freed += l
			}
		}
	}
	return total, freed
}
