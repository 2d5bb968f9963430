package mathutil

import "math"

// RotZ returns a rotation around the Z axis, which in homogeneous 2D
// coordinates is a plane rotation about the origin. Angle in radians.
func RotZ(a float64) Mat3 {
	c, s := math.Cos(a), math.Sin(a)
	return Mat3{
		c, -s, 0,
		s, c, 0,
		0, 0, 1,
	}
}

// Translate returns the homogeneous 2D translation by (tx, ty).
func Translate(tx, ty float64) Mat3 {
	return Mat3{1, 0, tx, 0, 1, ty, 0, 0, 1}
}

// MirrorX returns the reflection u -> -u.
func MirrorX() Mat3 {
	return Mat3Diag(-1, 1, 1)
}

// Deg2Rad converts degrees to radians.
func Deg2Rad(d float64) float64 {
	return d * math.Pi / 180
}
