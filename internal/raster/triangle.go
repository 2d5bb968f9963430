package raster

import (
	"image"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/vector"

	"texdefrag/internal/mathutil"
	"texdefrag/internal/postprocess"
)

// coverage returns the texels of r touched by the triangle, as an alpha
// mask over r. Any texel with non-zero area coverage counts, so adjacent
// triangles leave no gaps between them.
func coverage(z *vector.Rasterizer, tri [3][2]float64, r image.Rectangle) *image.Alpha {
	mask := image.NewAlpha(r)
	z.Reset(r.Dx(), r.Dy())
	ox, oy := float64(r.Min.X), float64(r.Min.Y)
	z.MoveTo(float32(tri[0][0]-ox), float32(tri[0][1]-oy))
	z.LineTo(float32(tri[1][0]-ox), float32(tri[1][1]-oy))
	z.LineTo(float32(tri[2][0]-ox), float32(tri[2][1]-oy))
	z.ClosePath()
	z.Draw(mask, r, image.Opaque, image.Point{})
	return mask
}

// triangleBounds returns the texel box of a triangle grown by pad texels
// and clipped to clip.
func triangleBounds(tri [3][2]float64, pad int, clip image.Rectangle) image.Rectangle {
	x0, y0 := math.Inf(1), math.Inf(1)
	x1, y1 := math.Inf(-1), math.Inf(-1)
	for _, p := range tri {
		x0, x1 = math.Min(x0, p[0]), math.Max(x1, p[0])
		y0, y1 = math.Min(y0, p[1]), math.Max(y1, p[1])
	}
	r := image.Rect(int(math.Floor(x0))-pad, int(math.Floor(y0))-pad, int(math.Ceil(x1))+pad, int(math.Ceil(y1))+pad)
	return r.Intersect(clip)
}

// RasterizeTriangle resamples the src triangle of tex into the dst
// triangle of the tile. Both triangles are in texel units.
func RasterizeTriangle(t *Tile, z *vector.Rasterizer, dst, src [3][2]float64, tex *image.NRGBA, filter Filter) {
	fb := triangleBounds(dst, 1, t.Rect)
	if fb.Empty() || tex == nil {
		return
	}
	d2s, ok := mathutil.AffineFromTriangles(dst, src)
	if !ok {
		return
	}
	mask := coverage(z, dst, fb)

	if filter == Linear {
		for y := fb.Min.Y; y < fb.Max.Y; y++ {
			for x := fb.Min.X; x < fb.Max.X; x++ {
				if mask.AlphaAt(x, y).A == 0 {
					continue
				}
				sx, sy := d2s.Apply(float64(x)+0.5, float64(y)+0.5)
				r, g, b, a := SampleBilinear(tex, sx, sy)
				t.set(x, y, r, g, b, a)
			}
		}
		return
	}

	s2d, ok := mathutil.AffineFromTriangles(src, dst)
	if !ok {
		return
	}
	sr := triangleBounds(src, 2, tex.Rect)
	if sr.Empty() {
		return
	}
	scratch := image.NewRGBA(fb)
	aff := f64.Aff3{s2d[0], s2d[1], s2d[2], s2d[3], s2d[4], s2d[5]}
	interpolator(filter).Transform(scratch, aff, tex, sr, draw.Src, nil)
	out := postprocess.Unpremultiply(scratch)
	for y := fb.Min.Y; y < fb.Max.Y; y++ {
		for x := fb.Min.X; x < fb.Max.X; x++ {
			if mask.AlphaAt(x, y).A == 0 {
				continue
			}
			c := out.NRGBAAt(x, y)
			t.set(x, y, c.R, c.G, c.B, c.A)
		}
	}
}

func interpolator(f Filter) draw.Interpolator {
	if f == Cubic {
		return draw.CatmullRom
	}
	return draw.NearestNeighbor
}
