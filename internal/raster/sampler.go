package raster

import (
	"image"
	"math"
)

// SampleBilinear filters tex at the continuous texel position (x, y),
// where texel (i, j) covers [i, i+1)×[j, j+1) and its value sits at the
// center. Positions exactly on a texel center return that texel. Reads
// outside the image clamp to the edge.
func SampleBilinear(tex *image.NRGBA, x, y float64) (r, g, b, a uint8) {
	w := tex.Rect.Dx()
	h := tex.Rect.Dy()

	fx := x - 0.5
	fy := y - 0.5
	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	dx := fx - float64(x0)
	dy := fy - float64(y0)
	x1 := clampInt(x0+1, w)
	y1 := clampInt(y0+1, h)
	x0 = clampInt(x0, w)
	y0 = clampInt(y0, h)

	stride := tex.Stride
	pix := tex.Pix

	// Four texels
	i00 := y0*stride + x0*4
	i10 := y0*stride + x1*4
	i01 := y1*stride + x0*4
	i11 := y1*stride + x1*4

	w00 := (1 - dx) * (1 - dy)
	w10 := dx * (1 - dy)
	w01 := (1 - dx) * dy
	w11 := dx * dy

	// Weight colors by alpha so transparent texels do not darken edges.
	fa := float64(pix[i00+3])*w00 + float64(pix[i10+3])*w10 + float64(pix[i01+3])*w01 + float64(pix[i11+3])*w11
	if fa <= 0 {
		return 0, 0, 0, 0
	}
	a00, a10, a01, a11 := float64(pix[i00+3])*w00, float64(pix[i10+3])*w10, float64(pix[i01+3])*w01, float64(pix[i11+3])*w11
	fr := (float64(pix[i00])*a00 + float64(pix[i10])*a10 + float64(pix[i01])*a01 + float64(pix[i11])*a11) / fa
	fg := (float64(pix[i00+1])*a00 + float64(pix[i10+1])*a10 + float64(pix[i01+1])*a01 + float64(pix[i11+1])*a11) / fa
	fb := (float64(pix[i00+2])*a00 + float64(pix[i10+2])*a10 + float64(pix[i01+2])*a01 + float64(pix[i11+2])*a11) / fa

	return clamp8(fr), clamp8(fg), clamp8(fb), clamp8(fa)
}

func clampInt(v, n int) int {
	if v < 0 {
		return 0
	}
	if v >= n {
		return n - 1
	}
	return v
}

func clamp8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
