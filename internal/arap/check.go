package arap

import (
	"math"

	"texdefrag/internal/mesh"
)

const overlapEpsilon = 1e-7

// Flipped reports whether any face in faces with a 3D area above minArea
// has a texture-space orientation opposite to the chart's.
func Flipped(m *mesh.Mesh, faces []int, mirrored bool, minArea float64) bool {
	sign := 1.0
	if mirrored {
		sign = -1
	}
	for _, f := range faces {
		if m.Area3D(f) <= minArea {
			continue
		}
		if sign*m.SignedAreaUV(f) <= 0 {
			return true
		}
	}
	return false
}

// Overlaps reports whether any moved face overlaps another face of the
// chart in texture space. Faces that only touch along edges or corners do
// not overlap.
func Overlaps(m *mesh.Mesh, faces []int, moved map[int]bool) bool {
	if len(faces) < 2 || len(moved) == 0 {
		return false
	}

	type box struct{ x0, y0, x1, y1 float64 }
	boxes := make([]box, len(faces))
	skip := make([]bool, len(faces))
	gx0, gy0 := math.Inf(1), math.Inf(1)
	gx1, gy1 := math.Inf(-1), math.Inf(-1)
	var ext float64
	for i, f := range faces {
		wt := m.Faces[f].WT
		b := box{wt[0][0], wt[0][1], wt[0][0], wt[0][1]}
		for _, p := range wt[1:] {
			b.x0 = math.Min(b.x0, p[0])
			b.y0 = math.Min(b.y0, p[1])
			b.x1 = math.Max(b.x1, p[0])
			b.y1 = math.Max(b.y1, p[1])
		}
		boxes[i] = b
		skip[i] = math.Abs(mesh.SignedArea(wt)) < overlapEpsilon
		gx0, gy0 = math.Min(gx0, b.x0), math.Min(gy0, b.y0)
		gx1, gy1 = math.Max(gx1, b.x1), math.Max(gy1, b.y1)
		ext += (b.x1 - b.x0) + (b.y1 - b.y0)
	}
	cell := ext / float64(len(faces))
	if cell <= 0 {
		return false
	}
	nx := int((gx1-gx0)/cell) + 1
	ny := int((gy1-gy0)/cell) + 1
	const maxCells = 1 << 22
	for nx*ny > maxCells {
		cell *= 2
		nx = int((gx1-gx0)/cell) + 1
		ny = int((gy1-gy0)/cell) + 1
	}

	grid := make(map[int][]int)
	for i, b := range boxes {
		cx0, cy0 := int((b.x0-gx0)/cell), int((b.y0-gy0)/cell)
		cx1, cy1 := int((b.x1-gx0)/cell), int((b.y1-gy0)/cell)
		for y := cy0; y <= cy1; y++ {
			for x := cx0; x <= cx1; x++ {
				grid[y*nx+x] = append(grid[y*nx+x], i)
			}
		}
	}

	tested := make(map[[2]int]bool)
	for _, bucket := range grid {
		for a := 0; a < len(bucket); a++ {
			for b := a + 1; b < len(bucket); b++ {
				i, j := bucket[a], bucket[b]
				fi, fj := faces[i], faces[j]
				if skip[i] || skip[j] || (!moved[fi] && !moved[fj]) {
					continue
				}
				key := [2]int{min(i, j), max(i, j)}
				if tested[key] {
					continue
				}
				tested[key] = true
				bi, bj := boxes[i], boxes[j]
				if bi.x1 <= bj.x0 || bj.x1 <= bi.x0 || bi.y1 <= bj.y0 || bj.y1 <= bi.y0 {
					continue
				}
				if trianglesOverlap(m.Faces[fi].WT, m.Faces[fj].WT) {
					return true
				}
			}
		}
	}
	return false
}

// trianglesOverlap tests whether two triangles share interior area using
// separating axes along the edge normals.
func trianglesOverlap[T ~[2]float64](a, b [3]T) bool {
	for _, t := range [2][3]T{a, b} {
		for e := 0; e < 3; e++ {
			p, q := t[e], t[(e+1)%3]
			nx, ny := q[1]-p[1], p[0]-q[0]
			l := math.Hypot(nx, ny)
			if l == 0 {
				continue
			}
			nx, ny = nx/l, ny/l
			amin, amax := project(a, nx, ny)
			bmin, bmax := project(b, nx, ny)
			if amax <= bmin+overlapEpsilon || bmax <= amin+overlapEpsilon {
				return false
			}
		}
	}
	return true
}

func project[T ~[2]float64](t [3]T, nx, ny float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range t {
		d := p[0]*nx + p[1]*ny
		lo = math.Min(lo, d)
		hi = math.Max(hi, d)
	}
	return lo, hi
}
