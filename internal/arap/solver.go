package arap

import (
	"context"
	"math"

	"github.com/flywave/go3d/float64/vec2"

	"texdefrag/internal/mathutil"
)

// Options controls a Solve call.
type Options struct {
	Iterations int
	Scale      float64 // texels per model unit of the target shape
	Mirrored   bool
}

const (
	minWeight   = 1e-6
	cgTolerance = 1e-10
)

type sparseRow struct {
	cols []int
	vals []float64
}

func (r *sparseRow) add(col int, v float64) {
	for i, c := range r.cols {
		if c == col {
			r.vals[i] += v
			return
		}
	}
	r.cols = append(r.cols, col)
	r.vals = append(r.vals, v)
}

// Solve runs local/global ARAP iterations over the faces touching a free
// vertex. Fixed vertices act as boundary conditions. A connected group of
// free vertices without any fixed neighbor gets one vertex pinned.
func (p *Patch) Solve(ctx context.Context, opt Options) error {
	active := p.activeFaces()
	if len(active) == 0 {
		return nil
	}

	rest := make([][3][2]float64, len(active))
	weights := make([][3]float64, len(active))
	for k, li := range active {
		rest[k] = RestTriangle(p.Mesh, p.Faces[li], opt.Scale, opt.Mirrored)
		weights[k] = cotWeights(rest[k])
	}

	free := append([]bool(nil), p.free...)
	p.pinIsolated(active, free)

	unknown := make([]int, len(p.UV))
	var vars []int
	for v := range unknown {
		unknown[v] = -1
		if free[v] {
			unknown[v] = len(vars)
			vars = append(vars, v)
		}
	}
	if len(vars) == 0 {
		return nil
	}

	// System matrix is constant across iterations.
	rows := make([]sparseRow, len(vars))
	for k, li := range active {
		for e := 0; e < 3; e++ {
			i, j := p.corner[li][e], p.corner[li][(e+1)%3]
			w := weights[k][e]
			if ui := unknown[i]; ui >= 0 {
				rows[ui].add(ui, w)
				if uj := unknown[j]; uj >= 0 {
					rows[ui].add(uj, -w)
				}
			}
			if uj := unknown[j]; uj >= 0 {
				rows[uj].add(uj, w)
				if ui := unknown[i]; ui >= 0 {
					rows[uj].add(ui, -w)
				}
			}
		}
	}

	bx := make([]float64, len(vars))
	by := make([]float64, len(vars))
	x := make([]float64, len(vars))
	y := make([]float64, len(vars))

	for it := 0; it < opt.Iterations; it++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		// local step
		rots := make([]mathutil.Mat2, len(active))
		for k, li := range active {
			rots[k] = p.bestRotation(li, rest[k])
		}

		// global step
		for i := range bx {
			bx[i], by[i] = 0, 0
		}
		for k, li := range active {
			r := rots[k]
			for e := 0; e < 3; e++ {
				a, b := e, (e+1)%3
				i, j := p.corner[li][a], p.corner[li][b]
				w := weights[k][e]
				dx, dy := r.MulVec(rest[k][a][0]-rest[k][b][0], rest[k][a][1]-rest[k][b][1])
				if ui := unknown[i]; ui >= 0 {
					bx[ui] += w * dx
					by[ui] += w * dy
					if unknown[j] < 0 {
						bx[ui] += w * p.UV[j][0]
						by[ui] += w * p.UV[j][1]
					}
				}
				if uj := unknown[j]; uj >= 0 {
					bx[uj] -= w * dx
					by[uj] -= w * dy
					if unknown[i] < 0 {
						bx[uj] += w * p.UV[i][0]
						by[uj] += w * p.UV[i][1]
					}
				}
			}
		}

		for u, v := range vars {
			x[u], y[u] = p.UV[v][0], p.UV[v][1]
		}
		conjugateGradient(rows, bx, x)
		conjugateGradient(rows, by, y)
		for u, v := range vars {
			if math.IsNaN(x[u]) || math.IsNaN(y[u]) {
				continue
			}
			p.UV[v] = vec2.T{x[u], y[u]}
		}
	}
	return nil
}

// activeFaces returns the local indices of faces with a free corner.
func (p *Patch) activeFaces() []int {
	var out []int
	for li := range p.Faces {
		for c := 0; c < 3; c++ {
			if p.free[p.corner[li][c]] {
				out = append(out, li)
				break
			}
		}
	}
	return out
}

// pinIsolated fixes one vertex of every group of free vertices that is not
// connected to a fixed vertex through the active faces.
func (p *Patch) pinIsolated(active []int, free []bool) {
	parent := make([]int, len(p.UV))
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
	for _, li := range active {
		c := p.corner[li]
		for e := 0; e < 3; e++ {
			ra, rb := find(c[e]), find(c[(e+1)%3])
			if ra != rb {
				parent[rb] = ra
			}
		}
	}
	anchored := make(map[int]bool)
	for _, li := range active {
		for _, v := range p.corner[li] {
			if !free[v] {
				anchored[find(v)] = true
			}
		}
	}
	for _, li := range active {
		for _, v := range p.corner[li] {
			r := find(v)
			if !anchored[r] {
				free[v] = false
				anchored[r] = true
			}
		}
	}
}

// bestRotation returns the rotation closest to the Jacobian of face li.
func (p *Patch) bestRotation(li int, rest [3][2]float64) mathutil.Mat2 {
	c := p.corner[li]
	u := mathutil.Mat2{
		p.UV[c[1]][0] - p.UV[c[0]][0], p.UV[c[2]][0] - p.UV[c[0]][0],
		p.UV[c[1]][1] - p.UV[c[0]][1], p.UV[c[2]][1] - p.UV[c[0]][1],
	}
	q := mathutil.Mat2{
		rest[1][0] - rest[0][0], rest[2][0] - rest[0][0],
		rest[1][1] - rest[0][1], rest[2][1] - rest[0][1],
	}
	qi, ok := q.Inverse()
	if !ok {
		return mathutil.Mat2Identity()
	}
	return u.Mul(qi).ClosestRotation()
}

// cotWeights returns half the cotangent of the angle opposite each edge
// (edge e joins corners e and e+1), clamped to a small positive value.
func cotWeights(t [3][2]float64) [3]float64 {
	var w [3]float64
	for e := 0; e < 3; e++ {
		o := (e + 2) % 3
		ax, ay := t[e][0]-t[o][0], t[e][1]-t[o][1]
		bx, by := t[(e+1)%3][0]-t[o][0], t[(e+1)%3][1]-t[o][1]
		cross := math.Abs(ax*by - ay*bx)
		dot := ax*bx + ay*by
		c := minWeight
		if cross > 0 {
			c = 0.5 * dot / cross
		}
		w[e] = math.Max(c, minWeight)
	}
	return w
}

// conjugateGradient solves A x = b in place for the symmetric positive
// definite matrix given by rows, starting from the current x.
func conjugateGradient(rows []sparseRow, b, x []float64) {
	n := len(b)
	mul := func(v, out []float64) {
		for i := range rows {
			var s float64
			for k, c := range rows[i].cols {
				s += rows[i].vals[k] * v[c]
			}
			out[i] = s
		}
	}
	r := make([]float64, n)
	d := make([]float64, n)
	ad := make([]float64, n)

	mul(x, ad)
	var bnorm, rr float64
	for i := 0; i < n; i++ {
		r[i] = b[i] - ad[i]
		d[i] = r[i]
		rr += r[i] * r[i]
		bnorm += b[i] * b[i]
	}
	tol := cgTolerance * cgTolerance * math.Max(bnorm, 1)
	for it := 0; it < 2*n+50 && rr > tol; it++ {
		mul(d, ad)
		var dad float64
		for i := 0; i < n; i++ {
			dad += d[i] * ad[i]
		}
		if dad <= 0 {
			return
		}
		alpha := rr / dad
		var rr2 float64
		for i := 0; i < n; i++ {
			x[i] += alpha * d[i]
			r[i] -= alpha * ad[i]
			rr2 += r[i] * r[i]
		}
		beta := rr2 / rr
		rr = rr2
		for i := 0; i < n; i++ {
			d[i] = r[i] + beta*d[i]
		}
	}
}
