package mathutil

import "math"

// FitRigid2D finds the rotation and translation that best map src onto dst
// in the least squares sense and returns it as a homogeneous transform
// together with the RMS residual. When reflect is true src is mirrored
// (u -> -u) before fitting and the returned transform includes the mirror.
func FitRigid2D(src, dst [][2]float64, reflect bool) (Mat3, float64) {
	n := len(src)
	if n == 0 || n != len(dst) {
		return Mat3Identity(), math.Inf(1)
	}

	pre := Mat3Identity()
	if reflect {
		pre = MirrorX()
	}
	p := make([][2]float64, n)
	for i, s := range src {
		x, y := pre.Apply(s[0], s[1])
		p[i] = [2]float64{x, y}
	}

	var pcx, pcy, qcx, qcy float64
	for i := 0; i < n; i++ {
		pcx += p[i][0]
		pcy += p[i][1]
		qcx += dst[i][0]
		qcy += dst[i][1]
	}
	fn := float64(n)
	pcx, pcy, qcx, qcy = pcx/fn, pcy/fn, qcx/fn, qcy/fn

	var sdot, scross float64
	for i := 0; i < n; i++ {
		px, py := p[i][0]-pcx, p[i][1]-pcy
		qx, qy := dst[i][0]-qcx, dst[i][1]-qcy
		sdot += px*qx + py*qy
		scross += px*qy - py*qx
	}
	angle := 0.0
	if sdot != 0 || scross != 0 {
		angle = math.Atan2(scross, sdot)
	}

	// x' = R (x - pc) + qc
	m := Mat3Mul(Translate(qcx, qcy), Mat3Mul(RotZ(angle), Translate(-pcx, -pcy)))

	var sq float64
	for i := 0; i < n; i++ {
		x, y := m.Apply(p[i][0], p[i][1])
		dx, dy := x-dst[i][0], y-dst[i][1]
		sq += dx*dx + dy*dy
	}
	return Mat3Mul(m, pre), math.Sqrt(sq / fn)
}
