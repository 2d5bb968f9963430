package mathutil

import "math"

// Mat2 is a 2×2 matrix stored row-major: [a, b, c, d].
type Mat2 [4]float64

func Mat2Identity() Mat2 {
	return Mat2{1, 0, 0, 1}
}

func (m Mat2) Det() float64 {
	return m[0]*m[3] - m[1]*m[2]
}

// Mul returns m × b.
func (m Mat2) Mul(b Mat2) Mat2 {
	return Mat2{
		m[0]*b[0] + m[1]*b[2], m[0]*b[1] + m[1]*b[3],
		m[2]*b[0] + m[3]*b[2], m[2]*b[1] + m[3]*b[3],
	}
}

// MulVec returns m × (x, y).
func (m Mat2) MulVec(x, y float64) (float64, float64) {
	return m[0]*x + m[1]*y, m[2]*x + m[3]*y
}

// Inverse returns the inverse of m, ok is false for singular matrices.
func (m Mat2) Inverse() (Mat2, bool) {
	d := m.Det()
	if math.Abs(d) < 1e-300 {
		return Mat2Identity(), false
	}
	inv := 1 / d
	return Mat2{m[3] * inv, -m[1] * inv, -m[2] * inv, m[0] * inv}, true
}

// SingularValues returns s1 >= s2 >= 0 using the closed form for 2×2
// matrices. The sign of the determinant is not carried.
func (m Mat2) SingularValues() (float64, float64) {
	e := (m[0] + m[3]) / 2
	f := (m[0] - m[3]) / 2
	g := (m[2] + m[1]) / 2
	h := (m[2] - m[1]) / 2
	q := math.Hypot(e, h)
	r := math.Hypot(f, g)
	return q + r, math.Abs(q - r)
}

// ClosestRotation returns the rotation nearest to m in the Frobenius norm.
func (m Mat2) ClosestRotation() Mat2 {
	x := m[0] + m[3]
	y := m[2] - m[1]
	if x == 0 && y == 0 {
		return Mat2Identity()
	}
	a := math.Atan2(y, x)
	c, s := math.Cos(a), math.Sin(a)
	return Mat2{c, -s, s, c}
}
