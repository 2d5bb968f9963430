// Package arap measures and reduces the as-rigid-as-possible distortion of
// a chart's parameterization with respect to the 3D surface.
package arap

import (
	"math"

	"github.com/flywave/go3d/float64/vec3"

	"texdefrag/internal/mathutil"
	"texdefrag/internal/mesh"
)

// RestTriangle returns face f flattened into a local 2D frame and scaled
// by scale: corner 0 at the origin, corner 1 on the positive x axis.
// Mirrored frames have corner 2 below the x axis.
func RestTriangle(m *mesh.Mesh, f int, scale float64, mirrored bool) [3][2]float64 {
	p0 := m.Corner(f, 0)
	p1 := m.Corner(f, 1)
	p2 := m.Corner(f, 2)
	e1 := vec3.Sub(&p1, &p0)
	e2 := vec3.Sub(&p2, &p0)
	l1 := e1.Length()
	if l1 == 0 {
		return [3][2]float64{}
	}
	c := vec3.Cross(&e1, &e2)
	x := vec3.Dot(&e1, &e2) / l1
	y := c.Length() / l1
	if mirrored {
		y = -y
	}
	return [3][2]float64{{0, 0}, {l1 * scale, 0}, {x * scale, y * scale}}
}

// Jacobian returns the linear part of the map from the rest triangle to
// the current texture coordinates of face f.
func Jacobian(m *mesh.Mesh, f int, rest [3][2]float64) (mathutil.Mat2, bool) {
	wt := m.Faces[f].WT
	u := mathutil.Mat2{
		wt[1][0] - wt[0][0], wt[2][0] - wt[0][0],
		wt[1][1] - wt[0][1], wt[2][1] - wt[0][1],
	}
	q := mathutil.Mat2{
		rest[1][0] - rest[0][0], rest[2][0] - rest[0][0],
		rest[1][1] - rest[0][1], rest[2][1] - rest[0][1],
	}
	qi, ok := q.Inverse()
	if !ok {
		return mathutil.Mat2{}, false
	}
	return u.Mul(qi), true
}

// FaceEnergy returns (s1-1)^2 + (s2-1)^2 for the singular values of the
// Jacobian of face f measured at texel density scale. A Jacobian that
// reverses the expected orientation gets a negative s2. ok is false for
// degenerate faces.
func FaceEnergy(m *mesh.Mesh, f int, scale float64, mirrored bool) (float64, bool) {
	j, ok := Jacobian(m, f, RestTriangle(m, f, scale, mirrored))
	if !ok {
		return 0, false
	}
	s1, s2 := j.SingularValues()
	if j.Det() < 0 {
		s2 = -s2
	}
	e := (s1-1)*(s1-1) + (s2-1)*(s2-1)
	if math.IsNaN(e) || math.IsInf(e, 0) {
		return 0, false
	}
	return e, true
}

// Distortion returns the area-weighted mean energy over faces. Faces whose
// 3D area is at most minArea are left out of both sums.
func Distortion(m *mesh.Mesh, faces []int, scale float64, mirrored bool, minArea float64) float64 {
	var sum, area float64
	for _, f := range faces {
		a := m.Area3D(f)
		if a <= minArea {
			continue
		}
		e, ok := FaceEnergy(m, f, scale, mirrored)
		if !ok {
			continue
		}
		sum += a * e
		area += a
	}
	if area == 0 {
		return 0
	}
	return sum / area
}
