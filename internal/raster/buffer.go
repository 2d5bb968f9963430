package raster

import "image"

// Tile is the private render target of one chart: a color buffer and a
// coverage mask over the chart's texel box on its sheet.
type Tile struct {
	Sheet int
	Rect  image.Rectangle
	Color *image.NRGBA
	Mask  []bool // len = W*H, row-major from Rect.Min
}

// NewTile allocates a transparent tile over r.
func NewTile(sheet int, r image.Rectangle) *Tile {
	return &Tile{
		Sheet: sheet,
		Rect:  r,
		Color: image.NewNRGBA(r),
		Mask:  make([]bool, r.Dx()*r.Dy()),
	}
}

func (t *Tile) set(x, y int, r, g, b, a uint8) {
	i := t.Color.PixOffset(x, y)
	t.Color.Pix[i] = r
	t.Color.Pix[i+1] = g
	t.Color.Pix[i+2] = b
	t.Color.Pix[i+3] = a
	t.Mask[(y-t.Rect.Min.Y)*t.Rect.Dx()+(x-t.Rect.Min.X)] = true
}

// composite copies the covered texels of t into dst and marks them in
// coverage.
func (t *Tile) composite(dst *image.NRGBA, coverage *image.Alpha) {
	w := t.Rect.Dx()
	for y := t.Rect.Min.Y; y < t.Rect.Max.Y; y++ {
		for x := t.Rect.Min.X; x < t.Rect.Max.X; x++ {
			if !t.Mask[(y-t.Rect.Min.Y)*w+(x-t.Rect.Min.X)] {
				continue
			}
			si := t.Color.PixOffset(x, y)
			di := dst.PixOffset(x, y)
			copy(dst.Pix[di:di+4], t.Color.Pix[si:si+4])
			coverage.Pix[coverage.PixOffset(x, y)] = 0xff
		}
	}
}
