// Package texture loads, caches and describes the texture sheets of a
// mesh.
package texture

import "image"

// Object holds the texture sheets a mesh samples from, indexed by the
// face texture index.
type Object struct {
	Paths  []string
	Images []*image.NRGBA
}

// Add appends a sheet and returns its index.
func (o *Object) Add(path string, img *image.NRGBA) int {
	o.Paths = append(o.Paths, path)
	o.Images = append(o.Images, img)
	return len(o.Images) - 1
}

// Count returns the number of sheets.
func (o *Object) Count() int {
	if o == nil {
		return 0
	}
	return len(o.Images)
}

// Size returns the pixel size of sheet i.
func (o *Object) Size(i int) image.Point {
	if o == nil || i < 0 || i >= len(o.Images) || o.Images[i] == nil {
		return image.Point{}
	}
	return o.Images[i].Rect.Size()
}

// Sizes returns the pixel sizes of all sheets.
func (o *Object) Sizes() []image.Point {
	out := make([]image.Point, o.Count())
	for i := range out {
		out[i] = o.Size(i)
	}
	return out
}

// ResolutionMP returns the total resolution in megapixels.
func (o *Object) ResolutionMP() float64 {
	var px int64
	for i := 0; i < o.Count(); i++ {
		s := o.Size(i)
		px += int64(s.X) * int64(s.Y)
	}
	return float64(px) / 1e6
}
