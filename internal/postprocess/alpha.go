// Package postprocess holds pixel passes applied to rendered sheets.
package postprocess

import "image"

// Unpremultiply converts a premultiplied RGBA image to NRGBA with the same
// bounds.
func Unpremultiply(img *image.RGBA) *image.NRGBA {
	b := img.Bounds()
	result := image.NewNRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			si := img.PixOffset(x, y)
			di := result.PixOffset(x, y)
			a := uint32(img.Pix[si+3])
			if a > 0 {
				result.Pix[di] = unpremul(img.Pix[si], a)
				result.Pix[di+1] = unpremul(img.Pix[si+1], a)
				result.Pix[di+2] = unpremul(img.Pix[si+2], a)
			}
			result.Pix[di+3] = img.Pix[si+3]
		}
	}
	return result
}

// unpremul divides c by a/255 with rounding.
func unpremul(c uint8, a uint32) uint8 {
	v := (uint32(c)*255 + a/2) / a
	if v > 255 {
		return 255
	}
	return uint8(v)
}
